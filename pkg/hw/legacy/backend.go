package legacy

import (
	"context"
	"fmt"

	"github.com/crosspoint-network/crosspoint/pkg/hw"
	"github.com/crosspoint-network/crosspoint/pkg/port"
	"github.com/crosspoint-network/crosspoint/pkg/util"
)

// PortMapping binds a logical port to its physical resources.
type PortMapping struct {
	HwPort int
	Lanes  []uint32
}

// Backend programs ports through the register/counter-style SDK.
type Backend struct {
	sdk        SDK
	resolver   *hw.TechResolver
	portMap    map[port.ID]PortMapping
	sampleRate int
}

// New creates a legacy backend over the given SDK. portMap must cover every
// port the configuration may reference; sampleRate is the sFlow rate
// programmed on enable.
func New(sdk SDK, resolver *hw.TechResolver, portMap map[port.ID]PortMapping, sampleRate int) *Backend {
	return &Backend{
		sdk:        sdk,
		resolver:   resolver,
		portMap:    portMap,
		sampleRate: sampleRate,
	}
}

func (b *Backend) Name() string { return "legacy" }

func (b *Backend) mapping(id port.ID) (PortMapping, error) {
	m, ok := b.portMap[id]
	if !ok {
		return PortMapping{}, util.NewUnsupportedConfigError(id.String(), "no lane assignment")
	}
	return m, nil
}

// queueResource derives a stable sub-resource identity for an egress queue.
func queueResource(gport hw.ResourceID, queue uint8) hw.ResourceID {
	return gport | hw.ResourceID(queue+1)<<48
}

func (b *Backend) CreatePort(ctx context.Context, p *port.LogicalPort) (*hw.Handle, error) {
	m, err := b.mapping(p.ID)
	if err != nil {
		return nil, err
	}
	gport, err := b.sdk.PortGport(m.HwPort)
	if err != nil {
		return nil, util.NewBackendError("gport-get", p.Name, 0, err)
	}

	h := &hw.Handle{
		Port:     p.ID,
		Resource: gport,
		HwPort:   m.HwPort,
	}
	for _, q := range p.Queues {
		h.Queues = append(h.Queues, hw.QueueRef{ID: q.ID, Resource: queueResource(gport, q.ID)})
	}

	if err := b.program(ctx, h, p); err != nil {
		return nil, err
	}
	if err := b.sdk.LinkscanModeSet(m.HwPort, true); err != nil {
		return nil, util.NewBackendError("linkscan-enable", p.Name, 0, err)
	}

	util.WithPort(p.Name).Debugf("Created legacy port, gport %s", gport)
	return h, nil
}

func (b *Backend) UpdatePort(ctx context.Context, h *hw.Handle, p *port.LogicalPort) error {
	if err := b.program(ctx, h, p); err != nil {
		return err
	}
	// Queue bindings are recreated to match the new queue configuration.
	h.Queues = h.Queues[:0]
	for _, q := range p.Queues {
		h.Queues = append(h.Queues, hw.QueueRef{ID: q.ID, Resource: queueResource(h.Resource, q.ID)})
	}
	return nil
}

func (b *Backend) DestroyPort(ctx context.Context, h *hw.Handle) error {
	if err := b.sdk.LinkscanModeSet(h.HwPort, false); err != nil {
		return util.NewBackendError("linkscan-disable", h.Port.String(), 0, err)
	}
	enabled, err := b.sdk.PortEnableGet(h.HwPort)
	if err != nil {
		return util.NewBackendError("enable-get", h.Port.String(), 0, err)
	}
	if enabled {
		if err := b.sdk.PortEnableSet(h.HwPort, false); err != nil {
			return util.NewBackendError("enable-set", h.Port.String(), 0, err)
		}
	}
	return nil
}

// program applies the full attribute set to hardware. Each step reads
// current state first where the write is disruptive, so re-running the
// sequence converges without traffic impact.
func (b *Backend) program(ctx context.Context, h *hw.Handle, p *port.LogicalPort) error {
	util.WithPort(p.Name).Debug("Reprogramming port")
	if err := b.setIngressVlan(h, p); err != nil {
		return err
	}
	if err := b.setSpeed(ctx, h, p); err != nil {
		return err
	}
	if err := b.setFEC(h, p); err != nil {
		return err
	}
	if err := b.setPause(h, p); err != nil {
		return err
	}
	return b.setLoopback(h, p)
}

func (b *Backend) setIngressVlan(h *hw.Handle, p *port.LogicalPort) error {
	cur, err := b.sdk.PortUntaggedVlanGet(h.HwPort)
	if err != nil {
		return util.NewBackendError("untagged-vlan-get", p.Name, 0, err)
	}
	if cur == p.IngressVlan {
		return nil
	}
	if err := b.sdk.PortUntaggedVlanSet(h.HwPort, p.IngressVlan); err != nil {
		return util.NewBackendError("untagged-vlan-set", p.Name, 0, err)
	}
	return nil
}

// desiredSpeed resolves the DEFAULT sentinel against the port's maximum
// lane speed.
func (b *Backend) desiredSpeed(h *hw.Handle, p *port.LogicalPort) (int, error) {
	if p.Speed != port.SpeedDefault {
		return int(p.Speed), nil
	}
	maxSpeed, err := b.sdk.PortSpeedMax(h.HwPort)
	if err != nil {
		return 0, util.NewBackendError("speed-max", p.Name, 0, err)
	}
	return maxSpeed, nil
}

// setSpeed gates the disruptive speed write on observed hardware state.
// An unnecessary speed write flaps the port even when it should be a noop,
// so an up port already running at the desired speed is left untouched.
// Speed changes are applied to up ports regardless: running below the
// configured speed can trigger non-obvious outages, which is worse than a
// flap.
func (b *Backend) setSpeed(ctx context.Context, h *hw.Handle, p *port.LogicalPort) error {
	desired, err := b.desiredSpeed(h, p)
	if err != nil {
		return err
	}
	cur, err := b.sdk.PortSpeedGet(h.HwPort)
	if err != nil {
		return util.NewBackendError("speed-get", p.Name, 0, err)
	}
	up, err := b.sdk.PortLinkStatusGet(h.HwPort)
	if err != nil {
		return util.NewBackendError("link-status-get", p.Name, 0, err)
	}
	if up && cur == desired {
		return nil
	}

	if err := b.setInterfaceMode(ctx, h, p, port.Speed(desired), up); err != nil {
		return err
	}
	if up {
		util.WithPort(p.Name).Warnf("Changing speed %d -> %d on up port, traffic will be disrupted", cur, desired)
	}
	// The speed write also re-initializes the MAC, picking up a pending
	// interface-mode change; it runs even when cur == desired on a down
	// port to finalize mode transitions.
	if err := b.sdk.PortSpeedSet(h.HwPort, desired); err != nil {
		return util.NewBackendError("speed-set", p.Name, 0, err)
	}
	return nil
}

// setInterfaceMode programs the interface type for the desired speed and
// resolved transmitter technology. The write is skipped when the hardware
// already has the desired mode and the port is up; mode changes only take
// effect on the next speed write.
func (b *Backend) setInterfaceMode(ctx context.Context, h *hw.Handle, p *port.LogicalPort, speed port.Speed, up bool) error {
	tech := b.resolver.Technology(ctx, p.Name)
	desired, err := hw.DesiredInterfaceMode(speed, tech)
	if err != nil {
		return err
	}
	cur, err := b.sdk.PortInterfaceGet(h.HwPort)
	if err != nil {
		return util.NewBackendError("interface-get", p.Name, 0, err)
	}
	if cur == desired && up {
		return nil
	}
	if err := b.sdk.PortInterfaceSet(h.HwPort, desired); err != nil {
		return util.NewBackendError("interface-set", p.Name, 0, err)
	}
	return nil
}

func (b *Backend) setFEC(h *hw.Handle, p *port.LogicalPort) error {
	cur, err := b.sdk.PortFECGet(h.HwPort)
	if err != nil {
		return util.NewBackendError("fec-get", p.Name, 0, err)
	}
	want := p.FEC == port.FECOn
	if cur == want {
		return nil
	}
	if err := b.sdk.PortFECSet(h.HwPort, want); err != nil {
		return util.NewBackendError("fec-set", p.Name, 0, err)
	}
	return nil
}

func (b *Backend) setPause(h *hw.Handle, p *port.LogicalPort) error {
	curTx, curRx, err := b.sdk.PortPauseGet(h.HwPort)
	if err != nil {
		return util.NewBackendError("pause-get", p.Name, 0, err)
	}
	if curTx == p.Pause.Tx && curRx == p.Pause.Rx {
		return nil
	}
	if err := b.sdk.PortPauseSet(h.HwPort, p.Pause.Tx, p.Pause.Rx); err != nil {
		return util.NewBackendError("pause-set", p.Name, 0, err)
	}
	return nil
}

func (b *Backend) setLoopback(h *hw.Handle, p *port.LogicalPort) error {
	cur, err := b.sdk.PortLoopbackGet(h.HwPort)
	if err != nil {
		return util.NewBackendError("loopback-get", p.Name, 0, err)
	}
	if cur == p.Loopback {
		return nil
	}
	if err := b.sdk.PortLoopbackSet(h.HwPort, p.Loopback); err != nil {
		return util.NewBackendError("loopback-set", p.Name, 0, err)
	}
	return nil
}

// EnablePort brings a port up: VLAN membership, attribute programming,
// counter collection, sampling rate, then admin-up. Hardware admin state
// (not a cached flag) decides whether any of it runs.
func (b *Backend) EnablePort(ctx context.Context, h *hw.Handle, p *port.LogicalPort) error {
	enabled, err := b.sdk.PortEnableGet(h.HwPort)
	if err != nil {
		return util.NewBackendError("enable-get", p.Name, 0, err)
	}
	if enabled {
		return nil
	}

	if err := b.sdk.VlanPortAdd(p.IngressVlan, h.HwPort, true); err != nil {
		return util.NewBackendError("vlan-port-add", p.Name, 0, err)
	}
	// Drop traffic tagged with VLANs this port is not a member of.
	if err := b.sdk.PortVlanFilterSet(h.HwPort, true, true); err != nil {
		return util.NewBackendError("vlan-filter-set", p.Name, 0, err)
	}
	if err := b.program(ctx, h, p); err != nil {
		return err
	}
	if err := b.sdk.PortStatCollectionSet(h.Resource, true); err != nil {
		return util.NewBackendError("stat-enable", p.Name, 0, err)
	}
	if err := b.sdk.PortSampleRateSet(h.HwPort, b.sampleRate, b.sampleRate); err != nil {
		return util.NewBackendError("sample-rate-set", p.Name, 0, err)
	}
	if err := b.sdk.PortEnableSet(h.HwPort, true); err != nil {
		return util.NewBackendError("enable-set", p.Name, 0, err)
	}
	util.WithPort(p.Name).Info("Port enabled")
	return nil
}

// DisablePort tears a port down: VLAN removal, sampling off, counter
// collection off, then admin-down.
func (b *Backend) DisablePort(ctx context.Context, h *hw.Handle, p *port.LogicalPort) error {
	enabled, err := b.sdk.PortEnableGet(h.HwPort)
	if err != nil {
		return util.NewBackendError("enable-get", p.Name, 0, err)
	}
	if !enabled {
		return nil
	}

	if err := b.sdk.VlanPortRemove(p.IngressVlan, h.HwPort); err != nil {
		return util.NewBackendError("vlan-port-remove", p.Name, 0, err)
	}
	if err := b.sdk.PortSampleRateSet(h.HwPort, 0, 0); err != nil {
		return util.NewBackendError("sample-rate-clear", p.Name, 0, err)
	}
	if err := b.sdk.PortStatCollectionSet(h.Resource, false); err != nil {
		return util.NewBackendError("stat-disable", p.Name, 0, err)
	}
	if err := b.sdk.PortEnableSet(h.HwPort, false); err != nil {
		return util.NewBackendError("disable-set", p.Name, 0, err)
	}
	util.WithPort(p.Name).Info("Port disabled")
	return nil
}

// Quiesce forces every mapped port admin-down. Run on cold start so
// programming begins from a known state regardless of what the previous
// process left behind.
func (b *Backend) Quiesce(ctx context.Context) error {
	n := 0
	for id, m := range b.portMap {
		enabled, err := b.sdk.PortEnableGet(m.HwPort)
		if err != nil {
			return util.NewBackendError("quiesce-get", id.String(), 0, err)
		}
		if !enabled {
			continue
		}
		if err := b.sdk.PortEnableSet(m.HwPort, false); err != nil {
			return util.NewBackendError("quiesce", id.String(), 0, err)
		}
		n++
	}
	util.Infof("Quiesced %d ports for cold start", n)
	return nil
}

func (b *Backend) LinkUp(ctx context.Context, h *hw.Handle) (bool, error) {
	up, err := b.sdk.PortLinkStatusGet(h.HwPort)
	if err != nil {
		return false, util.NewBackendError("link-status-get", h.Port.String(), 0, err)
	}
	return up, nil
}

// ReadCounters reads the SDK's software-accumulated counter values. A
// single failing counter is logged and skipped rather than failing the
// whole read; the poller treats missing keys as unchanged.
func (b *Backend) ReadCounters(ctx context.Context, h *hw.Handle) (map[string]uint64, error) {
	out := make(map[string]uint64, len(hw.PortCounters)+2*len(h.Queues))
	for _, key := range hw.PortCounters {
		v, err := b.sdk.StatGet(h.HwPort, portStatTypes[key])
		if err != nil {
			util.WithPort(h.Port).Errorf("Failed to read stat %s: %v", key, err)
			continue
		}
		out[key] = v
	}
	for _, q := range h.Queues {
		if v, err := b.sdk.QueueStatGet(h.HwPort, q.ID, false); err == nil {
			out[fmt.Sprintf("%s.%d", hw.QueueOutBytes, q.ID)] = v
		}
		if v, err := b.sdk.QueueStatGet(h.HwPort, q.ID, true); err == nil {
			out[fmt.Sprintf("%s.%d", hw.QueueOutDiscardBytes, q.ID)] = v
		}
	}
	return out, nil
}

func (b *Backend) ReadPacketLengths(ctx context.Context, h *hw.Handle, dir port.Direction) ([]uint64, error) {
	stats := rxLengthStats
	if dir == port.Egress {
		stats = txLengthStats
	}
	vals, err := b.sdk.StatMultiGet(h.HwPort, stats)
	if err != nil {
		return nil, util.NewBackendError("pkt-length-stats", h.Port.String(), 0, err)
	}
	return vals, nil
}

func (b *Backend) QueueLength(ctx context.Context, h *hw.Handle) (uint64, error) {
	n, err := b.sdk.PortQueuedCountGet(h.HwPort)
	if err != nil {
		return 0, util.NewBackendError("queued-count-get", h.Port.String(), 0, err)
	}
	return n, nil
}

func (b *Backend) ApplyPortMirror(ctx context.Context, h *hw.Handle, dir port.Direction, action hw.MirrorAction, session *hw.MirrorSession) error {
	err := b.sdk.PortMirrorSet(h.HwPort, dir == port.Ingress, action == hw.MirrorStart, session)
	if err != nil {
		return util.NewBackendError("mirror-"+action.String(), h.Port.String(), 0, err)
	}
	return nil
}
