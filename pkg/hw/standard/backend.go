package standard

import (
	"context"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"

	"github.com/crosspoint-network/crosspoint/pkg/hw"
	"github.com/crosspoint-network/crosspoint/pkg/port"
	"github.com/crosspoint-network/crosspoint/pkg/util"
)

// Port object attribute names.
const (
	attrLanes       = "SAI_PORT_ATTR_HW_LANE_LIST"
	attrSpeed       = "SAI_PORT_ATTR_SPEED"
	attrAdmin       = "SAI_PORT_ATTR_ADMIN_STATE"
	attrOperStatus  = "SAI_PORT_ATTR_OPER_STATUS"
	attrFEC         = "SAI_PORT_ATTR_FEC_MODE"
	attrLoopback    = "SAI_PORT_ATTR_INTERNAL_LOOPBACK_MODE"
	attrMedia       = "SAI_PORT_ATTR_MEDIA_TYPE"
	attrFlowControl = "SAI_PORT_ATTR_GLOBAL_FLOW_CONTROL_MODE"
	attrPortVlan    = "SAI_PORT_ATTR_PORT_VLAN_ID"
	attrSampleRate  = "SAI_PORT_ATTR_INGRESS_SAMPLE_RATE"

	attrIngressMirror = "SAI_PORT_ATTR_INGRESS_MIRROR_SESSION"
	attrEgressMirror  = "SAI_PORT_ATTR_EGRESS_MIRROR_SESSION"

	attrBridgePortID    = "SAI_BRIDGE_PORT_ATTR_PORT_ID"
	attrBridgePortAdmin = "SAI_BRIDGE_PORT_ATTR_ADMIN_STATE"

	attrQueuePort   = "SAI_QUEUE_ATTR_PORT"
	attrQueueIndex  = "SAI_QUEUE_ATTR_INDEX"
	attrQueueWeight = "SAI_QUEUE_ATTR_WFQ_WEIGHT"

	attrMirrorType     = "SAI_MIRROR_SESSION_ATTR_TYPE"
	attrMirrorSrcIP    = "SAI_MIRROR_SESSION_ATTR_SRC_IP_ADDRESS"
	attrMirrorDstIP    = "SAI_MIRROR_SESSION_ATTR_DST_IP_ADDRESS"
	attrMirrorSrcMAC   = "SAI_MIRROR_SESSION_ATTR_SRC_MAC_ADDRESS"
	attrMirrorDstMAC   = "SAI_MIRROR_SESSION_ATTR_DST_MAC_ADDRESS"
	attrMirrorTTL      = "SAI_MIRROR_SESSION_ATTR_TTL"
	attrMirrorGREProto = "SAI_MIRROR_SESSION_ATTR_GRE_PROTOCOL_TYPE"
	attrMirrorTOS      = "SAI_MIRROR_SESSION_ATTR_TOS"
	attrMirrorTruncate = "SAI_MIRROR_SESSION_ATTR_TRUNCATE_SIZE"

	valueTrue  = "true"
	valueFalse = "false"
	operUp     = "SAI_PORT_OPER_STATUS_UP"

	mirrorTypeERSPAN = "SAI_MIRROR_SESSION_TYPE_ENHANCED_REMOTE"
	truncateSize     = "128"
)

// Counter field names, by backend-neutral counter key.
var statNames = map[string]string{
	hw.InBytes:          "SAI_PORT_STAT_IF_IN_OCTETS",
	hw.InUnicastPkts:    "SAI_PORT_STAT_IF_IN_UCAST_PKTS",
	hw.InMulticastPkts:  "SAI_PORT_STAT_IF_IN_MULTICAST_PKTS",
	hw.InBroadcastPkts:  "SAI_PORT_STAT_IF_IN_BROADCAST_PKTS",
	hw.InDiscards:       "SAI_PORT_STAT_IF_IN_DISCARDS",
	hw.InErrors:         "SAI_PORT_STAT_IF_IN_ERRORS",
	hw.InPause:          "SAI_PORT_STAT_PAUSE_RX_PKTS",
	hw.InIPv4HdrErrors:  "SAI_PORT_STAT_IP_IN_HDR_ERRORS",
	hw.InIPv6HdrErrors:  "SAI_PORT_STAT_IPV6_IN_HDR_ERRORS",
	hw.OutBytes:         "SAI_PORT_STAT_IF_OUT_OCTETS",
	hw.OutUnicastPkts:   "SAI_PORT_STAT_IF_OUT_UCAST_PKTS",
	hw.OutMulticastPkts: "SAI_PORT_STAT_IF_OUT_MULTICAST_PKTS",
	hw.OutBroadcastPkts: "SAI_PORT_STAT_IF_OUT_BROADCAST_PKTS",
	hw.OutDiscards:      "SAI_PORT_STAT_IF_OUT_DISCARDS",
	hw.OutErrors:        "SAI_PORT_STAT_IF_OUT_ERRORS",
	hw.OutPause:         "SAI_PORT_STAT_PAUSE_TX_PKTS",
	hw.OutECN:           "SAI_PORT_STAT_ECN_MARKED_PACKETS",
}

// Packet-length bucket field names, in bucket order.
var rxLengthStats = []string{
	"SAI_PORT_STAT_ETHER_IN_PKTS_64_OCTETS",
	"SAI_PORT_STAT_ETHER_IN_PKTS_65_TO_127_OCTETS",
	"SAI_PORT_STAT_ETHER_IN_PKTS_128_TO_255_OCTETS",
	"SAI_PORT_STAT_ETHER_IN_PKTS_256_TO_511_OCTETS",
	"SAI_PORT_STAT_ETHER_IN_PKTS_512_TO_1023_OCTETS",
	"SAI_PORT_STAT_ETHER_IN_PKTS_1024_TO_1518_OCTETS",
	"SAI_PORT_STAT_ETHER_IN_PKTS_1519_TO_2047_OCTETS",
	"SAI_PORT_STAT_ETHER_IN_PKTS_2048_TO_4095_OCTETS",
	"SAI_PORT_STAT_ETHER_IN_PKTS_4096_TO_9216_OCTETS",
	"SAI_PORT_STAT_ETHER_IN_PKTS_9217_TO_16383_OCTETS",
}

var txLengthStats = []string{
	"SAI_PORT_STAT_ETHER_OUT_PKTS_64_OCTETS",
	"SAI_PORT_STAT_ETHER_OUT_PKTS_65_TO_127_OCTETS",
	"SAI_PORT_STAT_ETHER_OUT_PKTS_128_TO_255_OCTETS",
	"SAI_PORT_STAT_ETHER_OUT_PKTS_256_TO_511_OCTETS",
	"SAI_PORT_STAT_ETHER_OUT_PKTS_512_TO_1023_OCTETS",
	"SAI_PORT_STAT_ETHER_OUT_PKTS_1024_TO_1518_OCTETS",
	"SAI_PORT_STAT_ETHER_OUT_PKTS_1519_TO_2047_OCTETS",
	"SAI_PORT_STAT_ETHER_OUT_PKTS_2048_TO_4095_OCTETS",
	"SAI_PORT_STAT_ETHER_OUT_PKTS_4096_TO_9216_OCTETS",
	"SAI_PORT_STAT_ETHER_OUT_PKTS_9217_TO_16383_OCTETS",
}

const queueStatBytes = "SAI_QUEUE_STAT_BYTES"
const queueStatDroppedBytes = "SAI_QUEUE_STAT_DROPPED_BYTES"
const queueStatOccupancy = "SAI_QUEUE_STAT_CURR_OCCUPANCY_BYTES"

// OID type prefixes, kept in the top byte so object identities never
// collide across types.
const (
	oidTypePort       = 0x01
	oidTypeBridgePort = 0x3a
	oidTypeQueue      = 0x15
	oidTypeMirror     = 0x16
)

// Mapping binds a logical port to its serdes lanes.
type Mapping struct {
	Lanes []uint32
}

// Backend implements hw.Backend over an ObjectStore.
type Backend struct {
	store      ObjectStore
	resolver   *hw.TechResolver
	portMap    map[port.ID]Mapping
	sampleRate int
}

func New(store ObjectStore, resolver *hw.TechResolver, portMap map[port.ID]Mapping, sampleRate int) *Backend {
	return &Backend{
		store:      store,
		resolver:   resolver,
		portMap:    portMap,
		sampleRate: sampleRate,
	}
}

func (b *Backend) Name() string { return "standard" }

// laneKey is the object identity: the same lane set always maps to the
// same OID, which makes CreatePort an upsert.
func laneKey(lanes []uint32) string {
	parts := make([]string, len(lanes))
	for i, l := range lanes {
		parts[i] = strconv.FormatUint(uint64(l), 10)
	}
	return strings.Join(parts, ",")
}

func objectOID(typ byte, name string) hw.ResourceID {
	h := fnv.New64a()
	h.Write([]byte(name))
	return hw.ResourceID(uint64(typ)<<56 | h.Sum64()&0x00ffffffffffffff)
}

func (b *Backend) mapping(id port.ID) (Mapping, error) {
	m, ok := b.portMap[id]
	if !ok {
		return Mapping{}, util.NewUnsupportedConfigError(id.String(), "no lane assignment")
	}
	return m, nil
}

// desiredAttrs translates the port into the object attribute map. Admin
// state is excluded; EnablePort and DisablePort own that field.
func (b *Backend) desiredAttrs(ctx context.Context, p *port.LogicalPort, lanes []uint32) map[string]string {
	tech := b.resolver.Technology(ctx, p.Name)
	attrs := hw.Translate(p, tech, lanes)

	speed := attrs.Speed
	if speed == port.SpeedDefault {
		speed = maxLaneSpeed(lanes)
	}

	return map[string]string{
		attrLanes:       fmt.Sprintf("%d:%s", len(lanes), laneKey(lanes)),
		attrSpeed:       strconv.Itoa(int(speed)),
		attrFEC:         fecValue(attrs.FEC),
		attrLoopback:    loopbackValue(attrs.Loopback),
		attrMedia:       mediaValue(attrs.Media),
		attrFlowControl: flowControlValue(attrs.FlowControl),
		attrPortVlan:    strconv.Itoa(int(attrs.IngressVlan)),
	}
}

// maxLaneSpeed resolves the DEFAULT speed sentinel from the lane count.
// Each serdes lane runs at 25G; a single lane falls back to 10G for
// compatibility with SFP+ optics.
func maxLaneSpeed(lanes []uint32) port.Speed {
	switch len(lanes) {
	case 4:
		return port.SpeedHundredG
	case 2:
		return port.SpeedFiftyG
	case 1:
		return port.SpeedTwentyFive
	}
	return port.SpeedXG
}

func fecValue(m hw.FECMode) string {
	if m == hw.FECRS {
		return "SAI_PORT_FEC_MODE_RS"
	}
	return "SAI_PORT_FEC_MODE_NONE"
}

func loopbackValue(m port.LoopbackMode) string {
	switch m {
	case port.LoopbackPHY:
		return "SAI_PORT_INTERNAL_LOOPBACK_MODE_PHY"
	case port.LoopbackMAC:
		return "SAI_PORT_INTERNAL_LOOPBACK_MODE_MAC"
	}
	return "SAI_PORT_INTERNAL_LOOPBACK_MODE_NONE"
}

func mediaValue(m hw.MediaType) string {
	switch m {
	case hw.MediaCopper:
		return "SAI_PORT_MEDIA_TYPE_COPPER"
	case hw.MediaFiber:
		return "SAI_PORT_MEDIA_TYPE_FIBER"
	}
	return "SAI_PORT_MEDIA_TYPE_UNKNOWN"
}

func flowControlValue(m hw.FlowControlMode) string {
	switch m {
	case hw.FlowControlTxOnly:
		return "SAI_PORT_FLOW_CONTROL_MODE_TX_ONLY"
	case hw.FlowControlRxOnly:
		return "SAI_PORT_FLOW_CONTROL_MODE_RX_ONLY"
	case hw.FlowControlBoth:
		return "SAI_PORT_FLOW_CONTROL_MODE_BOTH_ENABLE"
	}
	return "SAI_PORT_FLOW_CONTROL_MODE_DISABLE"
}

// program writes only the attributes that differ from the store's current
// view. Redundant attribute writes are not free: the sync daemon forwards
// each one to the SDK, and a speed write resets the port MAC.
func (b *Backend) program(ctx context.Context, h *hw.Handle, p *port.LogicalPort) error {
	m, err := b.mapping(p.ID)
	if err != nil {
		return err
	}
	cur, err := b.store.Get(ctx, TypePort, h.Resource.String())
	if err != nil {
		return util.NewBackendError("port-read", p.Name, 0, err)
	}
	desired := b.desiredAttrs(ctx, p, m.Lanes)

	changed := make(map[string]string)
	for k, v := range desired {
		if cur[k] != v {
			changed[k] = v
		}
	}
	if len(changed) == 0 {
		return nil
	}
	if _, ok := changed[attrSpeed]; ok && cur[attrOperStatus] == operUp {
		util.WithPort(p.Name).Warnf("Changing speed %s -> %s on up port, traffic will be disrupted",
			cur[attrSpeed], changed[attrSpeed])
	}
	if err := b.store.Set(ctx, TypePort, h.Resource.String(), changed); err != nil {
		return util.NewBackendError("port-write", p.Name, 0, err)
	}
	return nil
}

func (b *Backend) CreatePort(ctx context.Context, p *port.LogicalPort) (*hw.Handle, error) {
	m, err := b.mapping(p.ID)
	if err != nil {
		return nil, err
	}
	key := laneKey(m.Lanes)
	oid := objectOID(oidTypePort, key)

	h := &hw.Handle{
		Port:       p.ID,
		Resource:   oid,
		BridgePort: objectOID(oidTypeBridgePort, key),
		Key:        key,
	}

	if err := b.program(ctx, h, p); err != nil {
		return nil, err
	}

	bridgeAttrs := map[string]string{
		attrBridgePortID:    oid.String(),
		attrBridgePortAdmin: valueTrue,
	}
	if err := b.store.Set(ctx, TypeBridgePort, h.BridgePort.String(), bridgeAttrs); err != nil {
		return nil, util.NewBackendError("bridge-port-write", p.Name, 0, err)
	}

	if err := b.createQueues(ctx, h, p); err != nil {
		return nil, err
	}

	util.WithPort(p.Name).Debugf("Created standard port, oid %s", oid)
	return h, nil
}

func (b *Backend) createQueues(ctx context.Context, h *hw.Handle, p *port.LogicalPort) error {
	h.Queues = h.Queues[:0]
	for _, q := range p.Queues {
		qoid := objectOID(oidTypeQueue, fmt.Sprintf("%s/%d", h.Key, q.ID))
		attrs := map[string]string{
			attrQueuePort:   h.Resource.String(),
			attrQueueIndex:  strconv.Itoa(int(q.ID)),
			attrQueueWeight: strconv.Itoa(q.Weight),
		}
		if err := b.store.Set(ctx, TypeQueue, qoid.String(), attrs); err != nil {
			return util.NewBackendError("queue-write", p.Name, 0, err)
		}
		h.Queues = append(h.Queues, hw.QueueRef{ID: q.ID, Resource: qoid})
	}
	return nil
}

func (b *Backend) UpdatePort(ctx context.Context, h *hw.Handle, p *port.LogicalPort) error {
	if err := b.program(ctx, h, p); err != nil {
		return err
	}
	return b.createQueues(ctx, h, p)
}

func (b *Backend) DestroyPort(ctx context.Context, h *hw.Handle) error {
	for _, q := range h.Queues {
		if err := b.store.Delete(ctx, TypeQueue, q.Resource.String()); err != nil {
			return util.NewBackendError("queue-delete", h.Port.String(), 0, err)
		}
	}
	if err := b.store.Delete(ctx, TypeBridgePort, h.BridgePort.String()); err != nil {
		return util.NewBackendError("bridge-port-delete", h.Port.String(), 0, err)
	}
	if err := b.store.Delete(ctx, TypePort, h.Resource.String()); err != nil {
		return util.NewBackendError("port-delete", h.Port.String(), 0, err)
	}
	return nil
}

func (b *Backend) EnablePort(ctx context.Context, h *hw.Handle, p *port.LogicalPort) error {
	cur, err := b.store.Get(ctx, TypePort, h.Resource.String())
	if err != nil {
		return util.NewBackendError("port-read", p.Name, 0, err)
	}
	if cur[attrAdmin] == valueTrue {
		return nil
	}
	if err := b.program(ctx, h, p); err != nil {
		return err
	}
	up := map[string]string{
		attrSampleRate: strconv.Itoa(b.sampleRate),
		attrAdmin:      valueTrue,
	}
	if err := b.store.Set(ctx, TypePort, h.Resource.String(), up); err != nil {
		return util.NewBackendError("admin-up", p.Name, 0, err)
	}
	util.WithPort(p.Name).Info("Port enabled")
	return nil
}

func (b *Backend) DisablePort(ctx context.Context, h *hw.Handle, p *port.LogicalPort) error {
	cur, err := b.store.Get(ctx, TypePort, h.Resource.String())
	if err != nil {
		return util.NewBackendError("port-read", p.Name, 0, err)
	}
	if cur[attrAdmin] == valueFalse || cur[attrAdmin] == "" {
		return nil
	}
	down := map[string]string{
		attrSampleRate: "0",
		attrAdmin:      valueFalse,
	}
	if err := b.store.Set(ctx, TypePort, h.Resource.String(), down); err != nil {
		return util.NewBackendError("admin-down", p.Name, 0, err)
	}
	util.WithPort(p.Name).Info("Port disabled")
	return nil
}

func (b *Backend) LinkUp(ctx context.Context, h *hw.Handle) (bool, error) {
	cur, err := b.store.Get(ctx, TypePort, h.Resource.String())
	if err != nil {
		return false, util.NewBackendError("port-read", h.Port.String(), 0, err)
	}
	return cur[attrOperStatus] == operUp, nil
}

func (b *Backend) ReadCounters(ctx context.Context, h *hw.Handle) (map[string]uint64, error) {
	vals, err := b.store.Get(ctx, TypeCounters, h.Resource.String())
	if err != nil {
		return nil, util.NewBackendError("counters-read", h.Port.String(), 0, err)
	}
	out := make(map[string]uint64, len(statNames)+2*len(h.Queues))
	for key, field := range statNames {
		raw, ok := vals[field]
		if !ok {
			continue
		}
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			logStoreError(h.Port.String(), field, err)
			continue
		}
		out[key] = v
	}

	for _, q := range h.Queues {
		qvals, err := b.store.Get(ctx, TypeCounters, q.Resource.String())
		if err != nil {
			logStoreError(h.Port.String(), "queue counters", err)
			continue
		}
		if v, err := strconv.ParseUint(qvals[queueStatBytes], 10, 64); err == nil {
			out[fmt.Sprintf("%s.%d", hw.QueueOutBytes, q.ID)] = v
		}
		if v, err := strconv.ParseUint(qvals[queueStatDroppedBytes], 10, 64); err == nil {
			out[fmt.Sprintf("%s.%d", hw.QueueOutDiscardBytes, q.ID)] = v
		}
	}
	return out, nil
}

func (b *Backend) ReadPacketLengths(ctx context.Context, h *hw.Handle, dir port.Direction) ([]uint64, error) {
	fields := rxLengthStats
	if dir == port.Egress {
		fields = txLengthStats
	}
	vals, err := b.store.Get(ctx, TypeCounters, h.Resource.String())
	if err != nil {
		return nil, util.NewBackendError("counters-read", h.Port.String(), 0, err)
	}
	out := make([]uint64, len(fields))
	for i, f := range fields {
		if v, err := strconv.ParseUint(vals[f], 10, 64); err == nil {
			out[i] = v
		}
	}
	return out, nil
}

// QueueLength sums the current occupancy across the port's queues.
func (b *Backend) QueueLength(ctx context.Context, h *hw.Handle) (uint64, error) {
	var total uint64
	for _, q := range h.Queues {
		qvals, err := b.store.Get(ctx, TypeCounters, q.Resource.String())
		if err != nil {
			return 0, util.NewBackendError("queue-read", h.Port.String(), 0, err)
		}
		if v, err := strconv.ParseUint(qvals[queueStatOccupancy], 10, 64); err == nil {
			total += v
		}
	}
	return total, nil
}

// Quiesce forces every port object admin-down. Run on cold start: the
// previous process may have left ports up, and programming must begin
// from a known state.
func (b *Backend) Quiesce(ctx context.Context) error {
	keys, err := b.store.Keys(ctx, TypePort)
	if err != nil {
		return util.NewBackendError("quiesce-scan", "", 0, err)
	}
	for _, key := range keys {
		down := map[string]string{attrSampleRate: "0", attrAdmin: valueFalse}
		if err := b.store.Set(ctx, TypePort, key, down); err != nil {
			return util.NewBackendError("quiesce", key, 0, err)
		}
	}
	util.Infof("Quiesced %d ports for cold start", len(keys))
	return nil
}

func mirrorAttr(dir port.Direction) string {
	if dir == port.Egress {
		return attrEgressMirror
	}
	return attrIngressMirror
}

// ApplyPortMirror binds or unbinds a mirror session on one direction. A
// stop with a nil session clears the binding; the session object may
// already be gone.
func (b *Backend) ApplyPortMirror(ctx context.Context, h *hw.Handle, dir port.Direction, action hw.MirrorAction, session *hw.MirrorSession) error {
	if action == hw.MirrorStop {
		if err := b.store.DeleteField(ctx, TypePort, h.Resource.String(), mirrorAttr(dir)); err != nil {
			return util.NewBackendError("mirror-stop", h.Port.String(), 0, err)
		}
		return nil
	}

	soid := objectOID(oidTypeMirror, session.Name)
	attrs := map[string]string{
		attrMirrorType:     mirrorTypeERSPAN,
		attrMirrorSrcIP:    session.SrcIP.String(),
		attrMirrorDstIP:    session.DstIP.String(),
		attrMirrorSrcMAC:   session.SrcMAC.String(),
		attrMirrorDstMAC:   session.DstMAC.String(),
		attrMirrorTTL:      strconv.Itoa(int(session.TTL)),
		attrMirrorGREProto: fmt.Sprintf("0x%x", session.GREProto),
		attrMirrorTOS:      strconv.Itoa(int(session.DSCP) << 2),
	}
	if session.Truncate {
		attrs[attrMirrorTruncate] = truncateSize
	}
	if err := b.store.Set(ctx, TypeMirrorSession, soid.String(), attrs); err != nil {
		return util.NewBackendError("mirror-session-write", h.Port.String(), 0, err)
	}
	if err := b.store.Set(ctx, TypePort, h.Resource.String(), map[string]string{
		mirrorAttr(dir): soid.String(),
	}); err != nil {
		return util.NewBackendError("mirror-start", h.Port.String(), 0, err)
	}
	return nil
}

var _ hw.Backend = (*Backend)(nil)
