// Package port defines the logical port model: the declarative, in-memory
// description of a switch port that the hardware layer synchronizes the
// ASIC against.
package port

import "fmt"

// ID identifies a logical port. IDs are assigned by configuration and are
// stable across the agent's lifetime.
type ID uint32

func (id ID) String() string {
	return fmt.Sprintf("port%d", uint32(id))
}

// AdminState is the configured administrative state of a port.
type AdminState int

const (
	AdminDisabled AdminState = iota
	AdminEnabled
)

func (s AdminState) String() string {
	switch s {
	case AdminDisabled:
		return "DISABLED"
	case AdminEnabled:
		return "ENABLED"
	}
	return fmt.Sprintf("AdminState(%d)", int(s))
}

// Speed is a port speed in Mbps. SpeedDefault means "use the maximum speed
// the lanes support", resolved against hardware at program time.
type Speed int

const (
	SpeedDefault    Speed = 0
	SpeedGigE       Speed = 1000
	SpeedXG         Speed = 10000
	SpeedTwentyG    Speed = 20000
	SpeedTwentyFive Speed = 25000
	SpeedFortyG     Speed = 40000
	SpeedFiftyG     Speed = 50000
	SpeedHundredG   Speed = 100000
)

func (s Speed) String() string {
	if s == SpeedDefault {
		return "DEFAULT"
	}
	if s%1000 == 0 {
		return fmt.Sprintf("%dG", int(s)/1000)
	}
	return fmt.Sprintf("%dM", int(s))
}

// Speeds lists every discrete speed a port may be configured with,
// excluding the DEFAULT sentinel.
var Speeds = []Speed{
	SpeedGigE,
	SpeedXG,
	SpeedTwentyG,
	SpeedTwentyFive,
	SpeedFortyG,
	SpeedFiftyG,
	SpeedHundredG,
}

// FECMode is the forward error correction mode negotiated on the link.
type FECMode int

const (
	FECOff FECMode = iota
	FECOn
)

func (f FECMode) String() string {
	if f == FECOn {
		return "ON"
	}
	return "OFF"
}

// LoopbackMode is the internal loopback configuration of a port.
type LoopbackMode int

const (
	LoopbackNone LoopbackMode = iota
	LoopbackPHY
	LoopbackMAC
)

func (l LoopbackMode) String() string {
	switch l {
	case LoopbackPHY:
		return "PHY"
	case LoopbackMAC:
		return "MAC"
	}
	return "NONE"
}

// PauseConfig enables 802.3x pause frames per direction.
type PauseConfig struct {
	Tx bool
	Rx bool
}

// QueueConfig describes one egress queue bound to a port.
type QueueConfig struct {
	ID     uint8
	Name   string
	Weight int
}

// Direction distinguishes the ingress and egress path of a port, e.g. for
// mirror attachment.
type Direction int

const (
	Ingress Direction = iota
	Egress
)

func (d Direction) String() string {
	if d == Egress {
		return "EGRESS"
	}
	return "INGRESS"
}

// Directions lists both traffic directions.
var Directions = []Direction{Ingress, Egress}

// LogicalPort is the declarative configuration of one switch port.
// Instances are treated as immutable once handed to the sync layer.
type LogicalPort struct {
	ID            ID
	Name          string
	Admin         AdminState
	Speed         Speed
	FEC           FECMode
	Loopback      LoopbackMode
	Pause         PauseConfig
	IngressVlan   uint16
	IngressMirror string // mirror session name, "" = unbound
	EgressMirror  string
	Queues        []QueueConfig
}

// Mirror returns the configured mirror session name for a direction,
// or "" when unbound.
func (p *LogicalPort) Mirror(d Direction) string {
	if d == Egress {
		return p.EgressMirror
	}
	return p.IngressMirror
}

// Equal reports whether two port configurations are field-for-field
// identical, including queue bindings.
func (p *LogicalPort) Equal(o *LogicalPort) bool {
	if p == nil || o == nil {
		return p == o
	}
	if p.ID != o.ID ||
		p.Name != o.Name ||
		p.Admin != o.Admin ||
		p.Speed != o.Speed ||
		p.FEC != o.FEC ||
		p.Loopback != o.Loopback ||
		p.Pause != o.Pause ||
		p.IngressVlan != o.IngressVlan ||
		p.IngressMirror != o.IngressMirror ||
		p.EgressMirror != o.EgressMirror {
		return false
	}
	if len(p.Queues) != len(o.Queues) {
		return false
	}
	for i := range p.Queues {
		if p.Queues[i] != o.Queues[i] {
			return false
		}
	}
	return true
}
