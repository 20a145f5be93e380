package standard

import (
	"context"
	"net"
	"net/netip"
	"testing"

	"github.com/crosspoint-network/crosspoint/pkg/hw"
	"github.com/crosspoint-network/crosspoint/pkg/port"
)

// countingStore wraps MemStore and counts attribute writes per object.
type countingStore struct {
	*MemStore
	sets map[string]int
}

func newCountingStore() *countingStore {
	return &countingStore{MemStore: NewMemStore(), sets: map[string]int{}}
}

func (s *countingStore) Set(ctx context.Context, typ, key string, attrs map[string]string) error {
	s.sets[typ+":"+key] += len(attrs)
	return s.MemStore.Set(ctx, typ, key, attrs)
}

func testBackend(store ObjectStore) *Backend {
	return New(store, hw.NewTechResolver(nil), map[port.ID]Mapping{
		1: {Lanes: []uint32{16, 17, 18, 19}},
		2: {Lanes: []uint32{20}},
	}, 2048)
}

func testPort(id port.ID) *port.LogicalPort {
	return &port.LogicalPort{
		ID:          id,
		Name:        "eth1/1",
		Admin:       port.AdminEnabled,
		Speed:       port.SpeedHundredG,
		IngressVlan: 1000,
		Queues:      []port.QueueConfig{{ID: 0, Name: "queue0", Weight: 1}},
	}
}

func TestCreatePortWritesObjects(t *testing.T) {
	store := NewMemStore()
	b := testBackend(store)
	ctx := context.Background()

	h, err := b.CreatePort(ctx, testPort(1))
	if err != nil {
		t.Fatalf("CreatePort: %v", err)
	}

	attrs, _ := store.Get(ctx, TypePort, h.Resource.String())
	if attrs[attrSpeed] != "100000" {
		t.Errorf("speed attr = %q, want 100000", attrs[attrSpeed])
	}
	if attrs[attrLanes] != "4:16,17,18,19" {
		t.Errorf("lanes attr = %q, want 4:16,17,18,19", attrs[attrLanes])
	}
	if attrs[attrPortVlan] != "1000" {
		t.Errorf("vlan attr = %q, want 1000", attrs[attrPortVlan])
	}

	bridge, _ := store.Get(ctx, TypeBridgePort, h.BridgePort.String())
	if bridge[attrBridgePortID] != h.Resource.String() {
		t.Errorf("bridge port binding = %q, want %s", bridge[attrBridgePortID], h.Resource)
	}

	if len(h.Queues) != 1 {
		t.Fatalf("queues = %v, want 1", h.Queues)
	}
	q, _ := store.Get(ctx, TypeQueue, h.Queues[0].Resource.String())
	if q[attrQueueIndex] != "0" {
		t.Errorf("queue index = %q, want 0", q[attrQueueIndex])
	}
}

// Creating twice with the same lane set must yield the same OID: the
// object identity is the lane assignment, so a replay is an upsert.
func TestCreatePortIsUpsert(t *testing.T) {
	store := NewMemStore()
	b := testBackend(store)
	ctx := context.Background()

	h1, err := b.CreatePort(ctx, testPort(1))
	if err != nil {
		t.Fatalf("first CreatePort: %v", err)
	}
	h2, err := b.CreatePort(ctx, testPort(1))
	if err != nil {
		t.Fatalf("second CreatePort: %v", err)
	}
	if h1.Resource != h2.Resource {
		t.Errorf("OIDs differ across replays: %s vs %s", h1.Resource, h2.Resource)
	}

	keys, _ := store.Keys(ctx, TypePort)
	if len(keys) != 1 {
		t.Errorf("port objects = %d, want 1", len(keys))
	}
}

// Reprogramming an unchanged port must not issue any attribute write.
func TestProgramSkipsUnchangedAttributes(t *testing.T) {
	store := newCountingStore()
	b := testBackend(store)
	ctx := context.Background()
	p := testPort(1)

	h, err := b.CreatePort(ctx, p)
	if err != nil {
		t.Fatalf("CreatePort: %v", err)
	}
	portKey := TypePort + ":" + h.Resource.String()
	before := store.sets[portKey]

	if err := b.program(ctx, h, p); err != nil {
		t.Fatalf("program: %v", err)
	}
	if got := store.sets[portKey] - before; got != 0 {
		t.Errorf("attribute writes on unchanged port = %d, want 0", got)
	}

	p.IngressVlan = 2000
	if err := b.program(ctx, h, p); err != nil {
		t.Fatalf("program: %v", err)
	}
	if got := store.sets[portKey] - before; got != 1 {
		t.Errorf("attribute writes after vlan change = %d, want 1", got)
	}
}

func TestDefaultSpeedFromLanes(t *testing.T) {
	store := NewMemStore()
	b := testBackend(store)
	ctx := context.Background()

	p := testPort(2)
	p.Speed = port.SpeedDefault
	h, err := b.CreatePort(ctx, p)
	if err != nil {
		t.Fatalf("CreatePort: %v", err)
	}
	attrs, _ := store.Get(ctx, TypePort, h.Resource.String())
	if attrs[attrSpeed] != "25000" {
		t.Errorf("single-lane DEFAULT speed = %q, want 25000", attrs[attrSpeed])
	}
}

func TestEnableDisableAdminState(t *testing.T) {
	store := newCountingStore()
	b := testBackend(store)
	ctx := context.Background()
	p := testPort(1)

	h, err := b.CreatePort(ctx, p)
	if err != nil {
		t.Fatalf("CreatePort: %v", err)
	}

	if err := b.EnablePort(ctx, h, p); err != nil {
		t.Fatalf("EnablePort: %v", err)
	}
	attrs, _ := store.Get(ctx, TypePort, h.Resource.String())
	if attrs[attrAdmin] != valueTrue {
		t.Errorf("admin = %q after enable, want true", attrs[attrAdmin])
	}
	if attrs[attrSampleRate] != "2048" {
		t.Errorf("sample rate = %q after enable, want 2048", attrs[attrSampleRate])
	}

	// Second enable is a no-op.
	portKey := TypePort + ":" + h.Resource.String()
	before := store.sets[portKey]
	if err := b.EnablePort(ctx, h, p); err != nil {
		t.Fatalf("second EnablePort: %v", err)
	}
	if store.sets[portKey] != before {
		t.Error("second enable issued attribute writes")
	}

	if err := b.DisablePort(ctx, h, p); err != nil {
		t.Fatalf("DisablePort: %v", err)
	}
	attrs, _ = store.Get(ctx, TypePort, h.Resource.String())
	if attrs[attrAdmin] != valueFalse {
		t.Errorf("admin = %q after disable, want false", attrs[attrAdmin])
	}
	if attrs[attrSampleRate] != "0" {
		t.Errorf("sample rate = %q after disable, want 0", attrs[attrSampleRate])
	}
}

func TestDestroyPortRemovesObjects(t *testing.T) {
	store := NewMemStore()
	b := testBackend(store)
	ctx := context.Background()

	h, err := b.CreatePort(ctx, testPort(1))
	if err != nil {
		t.Fatalf("CreatePort: %v", err)
	}
	if err := b.DestroyPort(ctx, h); err != nil {
		t.Fatalf("DestroyPort: %v", err)
	}

	for _, typ := range []string{TypePort, TypeBridgePort, TypeQueue} {
		keys, _ := store.Keys(context.Background(), typ)
		if len(keys) != 0 {
			t.Errorf("%s objects after destroy = %v, want none", typ, keys)
		}
	}
}

func TestReadCounters(t *testing.T) {
	store := NewMemStore()
	b := testBackend(store)
	ctx := context.Background()

	h, err := b.CreatePort(ctx, testPort(1))
	if err != nil {
		t.Fatalf("CreatePort: %v", err)
	}
	store.Set(ctx, TypeCounters, h.Resource.String(), map[string]string{
		"SAI_PORT_STAT_IF_IN_OCTETS":   "12345",
		"SAI_PORT_STAT_IF_IN_DISCARDS": "7",
		"SAI_PORT_STAT_PAUSE_RX_PKTS":  "3",
	})
	store.Set(ctx, TypeCounters, h.Queues[0].Resource.String(), map[string]string{
		queueStatBytes:        "900",
		queueStatDroppedBytes: "5",
	})

	counters, err := b.ReadCounters(ctx, h)
	if err != nil {
		t.Fatalf("ReadCounters: %v", err)
	}
	if counters[hw.InBytes] != 12345 {
		t.Errorf("in_bytes = %d, want 12345", counters[hw.InBytes])
	}
	if counters[hw.InDiscards] != 7 {
		t.Errorf("in_discards = %d, want 7", counters[hw.InDiscards])
	}
	if counters[hw.InPause] != 3 {
		t.Errorf("in_pause = %d, want 3", counters[hw.InPause])
	}
	if counters["queue_out_bytes.0"] != 900 {
		t.Errorf("queue_out_bytes.0 = %d, want 900", counters["queue_out_bytes.0"])
	}
	if counters["queue_out_discard_bytes.0"] != 5 {
		t.Errorf("queue_out_discard_bytes.0 = %d, want 5", counters["queue_out_discard_bytes.0"])
	}
}

// A port whose only queue is queue 5 must report its counters under the
// .5 suffix; nothing may appear under the slice position.
func TestQueueCountersKeyedByConfiguredID(t *testing.T) {
	store := NewMemStore()
	b := testBackend(store)
	ctx := context.Background()

	p := testPort(1)
	p.Queues = []port.QueueConfig{{ID: 5, Name: "queue5", Weight: 1}}
	h, err := b.CreatePort(ctx, p)
	if err != nil {
		t.Fatalf("CreatePort: %v", err)
	}
	store.Set(ctx, TypeCounters, h.Queues[0].Resource.String(), map[string]string{
		queueStatBytes:        "5000",
		queueStatDroppedBytes: "50",
	})

	counters, err := b.ReadCounters(ctx, h)
	if err != nil {
		t.Fatalf("ReadCounters: %v", err)
	}
	if counters["queue_out_bytes.5"] != 5000 {
		t.Errorf("queue_out_bytes.5 = %d, want 5000", counters["queue_out_bytes.5"])
	}
	if counters["queue_out_discard_bytes.5"] != 50 {
		t.Errorf("queue_out_discard_bytes.5 = %d, want 50", counters["queue_out_discard_bytes.5"])
	}
	if _, ok := counters["queue_out_bytes.0"]; ok {
		t.Error("counters contain queue_out_bytes.0 for a port without queue 0")
	}
}

func TestMirrorStartStop(t *testing.T) {
	store := NewMemStore()
	b := testBackend(store)
	ctx := context.Background()

	h, err := b.CreatePort(ctx, testPort(1))
	if err != nil {
		t.Fatalf("CreatePort: %v", err)
	}

	session := &hw.MirrorSession{
		Name:     "sflow-collector",
		SrcIP:    netip.MustParseAddr("10.0.0.1"),
		DstIP:    netip.MustParseAddr("10.0.0.2"),
		SrcMAC:   net.HardwareAddr{0x02, 0, 0, 0, 0, 1},
		DstMAC:   net.HardwareAddr{0x02, 0, 0, 0, 0, 2},
		TTL:      hw.MirrorDefaultTTL,
		GREProto: hw.MirrorGREProto,
	}
	if err := b.ApplyPortMirror(ctx, h, port.Ingress, hw.MirrorStart, session); err != nil {
		t.Fatalf("mirror start: %v", err)
	}

	attrs, _ := store.Get(ctx, TypePort, h.Resource.String())
	soid := attrs[attrIngressMirror]
	if soid == "" {
		t.Fatal("ingress mirror attr not set after start")
	}
	sess, _ := store.Get(ctx, TypeMirrorSession, soid)
	if sess[attrMirrorTTL] != "255" {
		t.Errorf("mirror TTL = %q, want 255", sess[attrMirrorTTL])
	}
	if sess[attrMirrorGREProto] != "0x88be" {
		t.Errorf("mirror GRE proto = %q, want 0x88be", sess[attrMirrorGREProto])
	}

	// Stop with nil session: the binding clears even when the session
	// definition is already gone.
	if err := b.ApplyPortMirror(ctx, h, port.Ingress, hw.MirrorStop, nil); err != nil {
		t.Fatalf("mirror stop: %v", err)
	}
	attrs, _ = store.Get(ctx, TypePort, h.Resource.String())
	if _, ok := attrs[attrIngressMirror]; ok {
		t.Error("ingress mirror attr still set after stop")
	}
}

// Cold-boot quiesce forces every existing port object admin-down.
func TestQuiesce(t *testing.T) {
	store := NewMemStore()
	b := testBackend(store)
	ctx := context.Background()

	p := testPort(1)
	h, err := b.CreatePort(ctx, p)
	if err != nil {
		t.Fatalf("CreatePort: %v", err)
	}
	if err := b.EnablePort(ctx, h, p); err != nil {
		t.Fatalf("EnablePort: %v", err)
	}

	if err := b.Quiesce(ctx); err != nil {
		t.Fatalf("Quiesce: %v", err)
	}
	attrs, _ := store.Get(ctx, TypePort, h.Resource.String())
	if attrs[attrAdmin] != valueFalse {
		t.Errorf("admin = %q after quiesce, want false", attrs[attrAdmin])
	}
	if attrs[attrSampleRate] != "0" {
		t.Errorf("sample rate = %q after quiesce, want 0", attrs[attrSampleRate])
	}
}

func TestLinkUpFromOperStatus(t *testing.T) {
	store := NewMemStore()
	b := testBackend(store)
	ctx := context.Background()

	h, err := b.CreatePort(ctx, testPort(1))
	if err != nil {
		t.Fatalf("CreatePort: %v", err)
	}
	up, err := b.LinkUp(ctx, h)
	if err != nil || up {
		t.Fatalf("LinkUp = %v, %v; want false, nil", up, err)
	}

	store.Set(ctx, TypePort, h.Resource.String(), map[string]string{attrOperStatus: operUp})
	up, err = b.LinkUp(ctx, h)
	if err != nil || !up {
		t.Fatalf("LinkUp = %v, %v; want true, nil", up, err)
	}
}
