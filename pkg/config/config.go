// Package config loads and validates the agent configuration. The file
// is declarative: it describes the desired port layout and mirror
// sessions; the sync engine moves hardware toward it.
package config

import (
	"fmt"
	"net"
	"net/netip"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/crosspoint-network/crosspoint/pkg/hw"
	"github.com/crosspoint-network/crosspoint/pkg/port"
	"github.com/crosspoint-network/crosspoint/pkg/stats"
	"github.com/crosspoint-network/crosspoint/pkg/util"
)

// DefaultPath is where the agent looks when no --config flag is given.
const DefaultPath = "/etc/crosspoint/config.yaml"

// Config is the root of the configuration file.
type Config struct {
	Backend string `yaml:"backend"` // "standard" or "legacy"

	ObjectDB ObjectDBConfig `yaml:"object_db"`

	CountersDB string `yaml:"counters_db"` // "" disables export

	// ColdBoot forces all ports admin-down before the first sync, so
	// programming starts from a known state. Off for warm restarts.
	ColdBoot bool `yaml:"cold_boot"`

	PollInterval time.Duration `yaml:"poll_interval"`
	MMUMode      string        `yaml:"mmu_mode"` // "lossy" (default) or "lossless"
	SampleRate   int           `yaml:"sample_rate"`
	MetricsAddr  string        `yaml:"metrics_addr"` // "" disables the scrape endpoint

	Ports    []PortConfig    `yaml:"ports"`
	Sessions []SessionConfig `yaml:"mirror_sessions"`
}

// ObjectDBConfig locates the standard backend's object database.
type ObjectDBConfig struct {
	Addr    string `yaml:"addr"`
	SSHHost string `yaml:"ssh_host"`
	SSHUser string `yaml:"ssh_user"`
	SSHPass string `yaml:"ssh_pass"`
}

// PortConfig describes one port.
type PortConfig struct {
	ID            uint32        `yaml:"id"`
	Name          string        `yaml:"name"`
	Admin         string        `yaml:"admin"` // "enabled" or "disabled"
	Speed         int           `yaml:"speed"` // Mbps, 0 = lane maximum
	FEC           bool          `yaml:"fec"`
	Loopback      string        `yaml:"loopback"` // "", "phy", "mac"
	PauseTx       bool          `yaml:"pause_tx"`
	PauseRx       bool          `yaml:"pause_rx"`
	IngressVlan   uint16        `yaml:"ingress_vlan"`
	IngressMirror string        `yaml:"ingress_mirror"`
	EgressMirror  string        `yaml:"egress_mirror"`
	Lanes         []uint32      `yaml:"lanes"`
	HwPort        int           `yaml:"hw_port"`
	Queues        []QueueConfig `yaml:"queues"`
}

type QueueConfig struct {
	ID     uint8  `yaml:"id"`
	Name   string `yaml:"name"`
	Weight int    `yaml:"weight"`
}

// SessionConfig describes one GRE mirror destination.
type SessionConfig struct {
	Name     string `yaml:"name"`
	SrcIP    string `yaml:"src_ip"`
	DstIP    string `yaml:"dst_ip"`
	SrcMAC   string `yaml:"src_mac"`
	DstMAC   string `yaml:"dst_mac"`
	DSCP     uint8  `yaml:"dscp"`
	Truncate bool   `yaml:"truncate"`
}

// Load reads the configuration from the default path.
func Load() (*Config, error) {
	return LoadFrom(DefaultPath)
}

// LoadFrom reads and validates a configuration file.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Backend == "" {
		c.Backend = "standard"
	}
	if c.PollInterval == 0 {
		c.PollInterval = 10 * time.Second
	}
	if c.MMUMode == "" {
		c.MMUMode = "lossy"
	}
	if c.ObjectDB.Addr == "" {
		c.ObjectDB.Addr = "127.0.0.1:6379"
	}
}

var validSpeeds = func() map[int]bool {
	m := map[int]bool{0: true}
	for _, s := range port.Speeds {
		m[int(s)] = true
	}
	return m
}()

// Validate checks the whole configuration and reports every problem at
// once.
func (c *Config) Validate() error {
	v := &util.ValidationBuilder{}

	v.Add(c.Backend == "standard" || c.Backend == "legacy",
		fmt.Sprintf("backend must be standard or legacy, got %q", c.Backend))
	v.Add(c.MMUMode == "lossy" || c.MMUMode == "lossless",
		fmt.Sprintf("mmu_mode must be lossy or lossless, got %q", c.MMUMode))
	v.Add(c.PollInterval >= time.Second,
		"poll_interval must be at least 1s")
	v.Add(c.SampleRate >= 0, "sample_rate must not be negative")

	sessions := make(map[string]bool)
	for _, s := range c.Sessions {
		if s.Name == "" {
			v.AddErrorf("mirror session without a name")
			continue
		}
		if sessions[s.Name] {
			v.AddErrorf("duplicate mirror session %q", s.Name)
		}
		sessions[s.Name] = true
		if _, err := netip.ParseAddr(s.SrcIP); err != nil {
			v.AddErrorf("session %q: bad src_ip %q", s.Name, s.SrcIP)
		}
		if _, err := netip.ParseAddr(s.DstIP); err != nil {
			v.AddErrorf("session %q: bad dst_ip %q", s.Name, s.DstIP)
		}
		if _, err := net.ParseMAC(s.SrcMAC); err != nil {
			v.AddErrorf("session %q: bad src_mac %q", s.Name, s.SrcMAC)
		}
		if _, err := net.ParseMAC(s.DstMAC); err != nil {
			v.AddErrorf("session %q: bad dst_mac %q", s.Name, s.DstMAC)
		}
	}

	ids := make(map[uint32]bool)
	names := make(map[string]bool)
	for _, p := range c.Ports {
		if p.Name == "" {
			v.AddErrorf("port %d without a name", p.ID)
		}
		if ids[p.ID] {
			v.AddErrorf("duplicate port id %d", p.ID)
		}
		ids[p.ID] = true
		if names[p.Name] {
			v.AddErrorf("duplicate port name %q", p.Name)
		}
		names[p.Name] = true

		v.Add(p.Admin == "" || p.Admin == "enabled" || p.Admin == "disabled",
			fmt.Sprintf("port %s: admin must be enabled or disabled, got %q", p.Name, p.Admin))
		v.Add(validSpeeds[p.Speed],
			fmt.Sprintf("port %s: unsupported speed %d", p.Name, p.Speed))
		v.Add(p.Loopback == "" || p.Loopback == "phy" || p.Loopback == "mac",
			fmt.Sprintf("port %s: loopback must be phy or mac, got %q", p.Name, p.Loopback))
		if c.Backend == "standard" {
			v.Add(len(p.Lanes) > 0,
				fmt.Sprintf("port %s: lanes required for the standard backend", p.Name))
		}

		for _, dir := range []string{p.IngressMirror, p.EgressMirror} {
			if dir != "" && !sessions[dir] {
				v.AddErrorf("port %s: unknown mirror session %q", p.Name, dir)
			}
		}
		seen := make(map[uint8]bool)
		for _, q := range p.Queues {
			if seen[q.ID] {
				v.AddErrorf("port %s: duplicate queue %d", p.Name, q.ID)
			}
			seen[q.ID] = true
			v.Add(q.Weight >= 0, fmt.Sprintf("port %s: queue %d weight negative", p.Name, q.ID))
		}
	}

	return v.Build()
}

// MMU maps the configured mode string onto the stats poller's mode.
func (c *Config) MMU() stats.MMUMode {
	if c.MMUMode == "lossless" {
		return stats.MMULossless
	}
	return stats.MMULossy
}

// ToLogicalPorts converts the port list into the sync layer's model.
func (c *Config) ToLogicalPorts() port.Map {
	m := make(port.Map, len(c.Ports))
	for _, p := range c.Ports {
		lp := &port.LogicalPort{
			ID:            port.ID(p.ID),
			Name:          p.Name,
			Speed:         port.Speed(p.Speed),
			IngressVlan:   p.IngressVlan,
			IngressMirror: p.IngressMirror,
			EgressMirror:  p.EgressMirror,
			Pause:         port.PauseConfig{Tx: p.PauseTx, Rx: p.PauseRx},
		}
		if p.Admin == "enabled" {
			lp.Admin = port.AdminEnabled
		}
		if p.FEC {
			lp.FEC = port.FECOn
		}
		switch p.Loopback {
		case "phy":
			lp.Loopback = port.LoopbackPHY
		case "mac":
			lp.Loopback = port.LoopbackMAC
		}
		for _, q := range p.Queues {
			lp.Queues = append(lp.Queues, port.QueueConfig{ID: q.ID, Name: q.Name, Weight: q.Weight})
		}
		m[lp.ID] = lp
	}
	return m
}

// ToSessions converts the mirror session list. Validate must have
// passed; parse failures here are invariant violations.
func (c *Config) ToSessions() []*hw.MirrorSession {
	out := make([]*hw.MirrorSession, 0, len(c.Sessions))
	for _, s := range c.Sessions {
		srcIP, err := netip.ParseAddr(s.SrcIP)
		if err != nil {
			util.Invariantf("session %s src_ip unparsable after validation: %v", s.Name, err)
		}
		dstIP, err := netip.ParseAddr(s.DstIP)
		if err != nil {
			util.Invariantf("session %s dst_ip unparsable after validation: %v", s.Name, err)
		}
		srcMAC, _ := net.ParseMAC(s.SrcMAC)
		dstMAC, _ := net.ParseMAC(s.DstMAC)
		out = append(out, &hw.MirrorSession{
			Name:     s.Name,
			SrcIP:    srcIP,
			DstIP:    dstIP,
			SrcMAC:   srcMAC,
			DstMAC:   dstMAC,
			TTL:      hw.MirrorDefaultTTL,
			GREProto: hw.MirrorGREProto,
			DSCP:     s.DSCP,
			Truncate: s.Truncate,
		})
	}
	return out
}
