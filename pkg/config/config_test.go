package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/crosspoint-network/crosspoint/pkg/port"
	"github.com/crosspoint-network/crosspoint/pkg/util"
)

const sampleConfig = `
backend: standard
poll_interval: 5s
mmu_mode: lossy
sample_rate: 2048

mirror_sessions:
  - name: collector
    src_ip: 10.0.0.1
    dst_ip: 10.1.0.1
    src_mac: "02:00:00:00:00:01"
    dst_mac: "02:00:00:00:00:02"
    dscp: 10

ports:
  - id: 1
    name: eth1/1
    admin: enabled
    speed: 100000
    fec: true
    ingress_vlan: 2001
    ingress_mirror: collector
    lanes: [16, 17, 18, 19]
    queues:
      - id: 0
        name: queue0
        weight: 1
  - id: 2
    name: eth1/2
    admin: disabled
    lanes: [20]
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFrom(t *testing.T) {
	cfg, err := LoadFrom(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Backend != "standard" {
		t.Errorf("backend = %q", cfg.Backend)
	}
	if cfg.PollInterval != 5*time.Second {
		t.Errorf("poll interval = %v, want 5s", cfg.PollInterval)
	}

	ports := cfg.ToLogicalPorts()
	if len(ports) != 2 {
		t.Fatalf("ports = %d, want 2", len(ports))
	}
	p1 := ports[1]
	if p1.Speed != port.SpeedHundredG || p1.Admin != port.AdminEnabled {
		t.Errorf("port 1 = %+v", p1)
	}
	if p1.FEC != port.FECOn {
		t.Error("port 1 FEC not ON")
	}
	if p1.IngressMirror != "collector" {
		t.Errorf("port 1 ingress mirror = %q", p1.IngressMirror)
	}
	if len(p1.Queues) != 1 || p1.Queues[0].Name != "queue0" {
		t.Errorf("port 1 queues = %v", p1.Queues)
	}
	p2 := ports[2]
	if p2.Admin != port.AdminDisabled || p2.Speed != port.SpeedDefault {
		t.Errorf("port 2 = %+v", p2)
	}

	sessions := cfg.ToSessions()
	if len(sessions) != 1 {
		t.Fatalf("sessions = %d, want 1", len(sessions))
	}
	s := sessions[0]
	if s.TTL != 255 || s.GREProto != 0x88be {
		t.Errorf("session encap = ttl %d proto 0x%x, want 255/0x88be", s.TTL, s.GREProto)
	}
	if s.DSCP != 10 {
		t.Errorf("session dscp = %d, want 10", s.DSCP)
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := LoadFrom(writeConfig(t, "ports: []\n"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Backend != "standard" {
		t.Errorf("default backend = %q", cfg.Backend)
	}
	if cfg.PollInterval != 10*time.Second {
		t.Errorf("default poll interval = %v", cfg.PollInterval)
	}
	if cfg.MMUMode != "lossy" {
		t.Errorf("default mmu mode = %q", cfg.MMUMode)
	}
}

func TestValidationErrors(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{
			name:    "bad backend",
			mutate:  func(c *Config) { c.Backend = "vendor3" },
			wantMsg: "backend must be",
		},
		{
			name: "duplicate port id",
			mutate: func(c *Config) {
				c.Ports = append(c.Ports, c.Ports[0])
			},
			wantMsg: "duplicate port id",
		},
		{
			name: "unknown mirror session",
			mutate: func(c *Config) {
				c.Ports[0].EgressMirror = "ghost"
			},
			wantMsg: "unknown mirror session",
		},
		{
			name: "unsupported speed",
			mutate: func(c *Config) {
				c.Ports[0].Speed = 12345
			},
			wantMsg: "unsupported speed",
		},
		{
			name: "bad session address",
			mutate: func(c *Config) {
				c.Sessions[0].DstIP = "not-an-ip"
			},
			wantMsg: "bad dst_ip",
		},
		{
			name: "missing lanes on standard backend",
			mutate: func(c *Config) {
				c.Ports[0].Lanes = nil
			},
			wantMsg: "lanes required",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := LoadFrom(writeConfig(t, sampleConfig))
			if err != nil {
				t.Fatalf("LoadFrom: %v", err)
			}
			tc.mutate(cfg)
			err = cfg.Validate()
			if !errors.Is(err, util.ErrInvalidConfig) {
				t.Fatalf("Validate = %v, want ErrInvalidConfig", err)
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tc.wantMsg)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := LoadFrom("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
