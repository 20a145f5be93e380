// Package hw defines the vendor-neutral contract between the port
// synchronization layer and a switching-ASIC backend. Exactly one Backend
// implementation is selected at process start; it is never switched at
// runtime.
package hw

import (
	"context"
	"fmt"
	"net"
	"net/netip"

	"github.com/crosspoint-network/crosspoint/pkg/port"
)

// ResourceID is an opaque backend resource identity (a gport on the legacy
// SDK, an object OID on the standard SDK). It is the key of the registry's
// reverse index, so it must be stable for the life of the resource.
type ResourceID uint64

func (r ResourceID) String() string {
	return fmt.Sprintf("oid:0x%x", uint64(r))
}

// QueueRef binds one configured egress queue to its backend resource.
// Counter keys carry the configured queue ID, not the slice position,
// so non-contiguous queue layouts report under the right queue.
type QueueRef struct {
	ID       uint8
	Resource ResourceID
}

// Handle references one port's backend resources. Handles are exclusively
// owned by the registry: created on add, mutated in place on change,
// released on remove. Existence of a handle implies the backend resource
// and all sub-resources exist.
type Handle struct {
	Port       port.ID
	Resource   ResourceID
	BridgePort ResourceID
	Queues     []QueueRef

	// HwPort is the SDK port number on the legacy backend (0 otherwise).
	HwPort int
	// Key is the object-store identity key on the standard backend
	// ("" otherwise).
	Key string
}

// MirrorAction starts or stops traffic replication on a port.
type MirrorAction int

const (
	MirrorStop MirrorAction = iota
	MirrorStart
)

func (a MirrorAction) String() string {
	if a == MirrorStart {
		return "START"
	}
	return "STOP"
}

// GRE encapsulation constants for mirror tunnels.
const (
	MirrorDefaultTTL = 255
	MirrorGREProto   = 0x88be
)

// MirrorSession describes a GRE-tunnel mirror destination.
type MirrorSession struct {
	Name     string
	SrcIP    netip.Addr
	DstIP    netip.Addr
	SrcMAC   net.HardwareAddr
	DstMAC   net.HardwareAddr
	TTL      uint8
	GREProto uint16
	DSCP     uint8
	Truncate bool
}

// Backend programs one logical port's hardware resources. All calls are
// synchronous: a failure surfaces to the caller at the point of the call,
// and no call is retried or backgrounded by this layer. The write path is
// single-writer per port; cross-port calls may run concurrently.
type Backend interface {
	Name() string

	// CreatePort creates the port resource and its dependent sub-resources
	// (bridge attachment, queues) from the port's translated attributes.
	// Creation is an idempotent upsert keyed by the port's lane assignment.
	CreatePort(ctx context.Context, p *port.LogicalPort) (*Handle, error)

	// UpdatePort re-translates attributes and updates the resource in
	// place, recreating queue bindings to match the new queue config.
	UpdatePort(ctx context.Context, h *Handle, p *port.LogicalPort) error

	// DestroyPort releases the port resource and its sub-resources.
	DestroyPort(ctx context.Context, h *Handle) error

	// EnablePort reads hardware admin state and no-ops if already enabled.
	// Otherwise it programs VLAN membership, the full attribute set,
	// counter collection, and the sampling rate, in that order, before
	// flipping admin-up.
	EnablePort(ctx context.Context, h *Handle, p *port.LogicalPort) error

	// DisablePort reads hardware admin state and no-ops if already
	// disabled. Otherwise it removes VLAN membership, stops sampling,
	// stops counter collection, then flips admin-down.
	DisablePort(ctx context.Context, h *Handle, p *port.LogicalPort) error

	// LinkUp reads the current link status from hardware.
	LinkUp(ctx context.Context, h *Handle) (bool, error)

	// ReadCounters returns the software-accumulated counter values for the
	// port (not a hardware-synchronized read, to bound poll latency).
	ReadCounters(ctx context.Context, h *Handle) (map[string]uint64, error)

	// ReadPacketLengths returns the per-size-bucket packet counters for a
	// direction; the bucket layout is fixed (see stats.PacketLengthBuckets).
	ReadPacketLengths(ctx context.Context, h *Handle, dir port.Direction) ([]uint64, error)

	// QueueLength returns the current egress queue occupancy in bytes.
	QueueLength(ctx context.Context, h *Handle) (uint64, error)

	// ApplyPortMirror attaches or detaches a mirror session on one
	// direction of the port. A MirrorStop may be issued with a nil session
	// (the session may already have been deleted); backends must treat
	// that as detach.
	ApplyPortMirror(ctx context.Context, h *Handle, dir port.Direction, action MirrorAction, session *MirrorSession) error
}

// Quiescer is implemented by backends that can force all ports
// admin-down before the first synchronization of a cold start.
type Quiescer interface {
	Quiesce(ctx context.Context) error
}
