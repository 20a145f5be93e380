package hw

import (
	"github.com/crosspoint-network/crosspoint/pkg/port"
)

// FECMode is the hardware FEC encoding derived from the logical FEC switch.
type FECMode int

const (
	FECNone FECMode = iota
	FECRS
)

func (f FECMode) String() string {
	if f == FECRS {
		return "RS"
	}
	return "NONE"
}

// FlowControlMode is the hardware pause configuration.
type FlowControlMode int

const (
	FlowControlDisable FlowControlMode = iota
	FlowControlTxOnly
	FlowControlRxOnly
	FlowControlBoth
)

func (f FlowControlMode) String() string {
	switch f {
	case FlowControlTxOnly:
		return "TX_ONLY"
	case FlowControlRxOnly:
		return "RX_ONLY"
	case FlowControlBoth:
		return "BOTH"
	}
	return "DISABLE"
}

// MediaType is the hardware media classification of a port.
type MediaType int

const (
	MediaUnknown MediaType = iota
	MediaCopper
	MediaFiber
)

func (m MediaType) String() string {
	switch m {
	case MediaCopper:
		return "COPPER"
	case MediaFiber:
		return "FIBER"
	}
	return "UNKNOWN"
}

// AttributeSet is the vendor-neutral description of a port's desired
// hardware configuration. Lanes is the backend identity key: creating a
// port twice with the same lanes is an upsert, not a duplicate.
type AttributeSet struct {
	Lanes       []uint32
	Speed       port.Speed
	AdminUp     bool
	FEC         FECMode
	Loopback    port.LoopbackMode
	Media       MediaType
	FlowControl FlowControlMode
	IngressVlan uint16
	Queues      []port.QueueConfig
}

// Translate derives the attribute set for a logical port. It is pure and
// deterministic: the same port and technology always produce the same
// attributes. The DEFAULT speed sentinel passes through unresolved; the
// backend resolves it against the lanes' maximum speed at program time.
func Translate(p *port.LogicalPort, tech TransmitterTechnology, lanes []uint32) AttributeSet {
	attrs := AttributeSet{
		Lanes:       lanes,
		Speed:       p.Speed,
		AdminUp:     p.Admin == port.AdminEnabled,
		Loopback:    p.Loopback,
		IngressVlan: p.IngressVlan,
		Queues:      p.Queues,
	}

	if p.FEC == port.FECOn {
		attrs.FEC = FECRS
	}

	switch {
	case p.Pause.Tx && p.Pause.Rx:
		attrs.FlowControl = FlowControlBoth
	case p.Pause.Tx:
		attrs.FlowControl = FlowControlTxOnly
	case p.Pause.Rx:
		attrs.FlowControl = FlowControlRxOnly
	}

	switch tech {
	case TechCopper:
		attrs.Media = MediaCopper
	case TechOptical:
		attrs.Media = MediaFiber
	}

	return attrs
}
