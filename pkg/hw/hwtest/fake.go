// Package hwtest provides an in-memory hw.Backend for tests. It keeps
// just enough state to exercise the sync engine and the stats poller
// without hardware, and records the call sequence for order assertions.
package hwtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/crosspoint-network/crosspoint/pkg/hw"
	"github.com/crosspoint-network/crosspoint/pkg/port"
)

type portState struct {
	handle  *hw.Handle
	config  port.LogicalPort
	enabled bool
	linkUp  bool
}

// Fake implements hw.Backend in memory.
type Fake struct {
	mu     sync.Mutex
	ports  map[port.ID]*portState
	nextID uint64

	// Counters and PacketLengths are returned verbatim from reads; tests
	// set them per port.
	Counters      map[port.ID]map[string]uint64
	PacketLengths map[port.ID]map[port.Direction][]uint64
	QueueLengths  map[port.ID]uint64

	// Errs makes the named operation fail ("create", "update", "destroy",
	// "enable", "disable", "counters", "mirror").
	Errs map[string]error

	// Calls records operations as "<op>:<port>" strings in order.
	Calls []string
}

func New() *Fake {
	return &Fake{
		ports:         make(map[port.ID]*portState),
		nextID:        0x1000,
		Counters:      make(map[port.ID]map[string]uint64),
		PacketLengths: make(map[port.ID]map[port.Direction][]uint64),
		QueueLengths:  make(map[port.ID]uint64),
		Errs:          make(map[string]error),
	}
}

func (f *Fake) record(op string, id port.ID) {
	f.Calls = append(f.Calls, fmt.Sprintf("%s:%s", op, id))
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) CreatePort(ctx context.Context, p *port.LogicalPort) (*hw.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("create", p.ID)
	if err := f.Errs["create"]; err != nil {
		return nil, err
	}
	f.nextID++
	h := &hw.Handle{
		Port:     p.ID,
		Resource: hw.ResourceID(f.nextID),
	}
	f.ports[p.ID] = &portState{handle: h, config: *p}
	return h, nil
}

func (f *Fake) UpdatePort(ctx context.Context, h *hw.Handle, p *port.LogicalPort) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("update", h.Port)
	if err := f.Errs["update"]; err != nil {
		return err
	}
	if st := f.ports[h.Port]; st != nil {
		st.config = *p
	}
	return nil
}

func (f *Fake) DestroyPort(ctx context.Context, h *hw.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("destroy", h.Port)
	if err := f.Errs["destroy"]; err != nil {
		return err
	}
	delete(f.ports, h.Port)
	return nil
}

func (f *Fake) EnablePort(ctx context.Context, h *hw.Handle, p *port.LogicalPort) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("enable", h.Port)
	if err := f.Errs["enable"]; err != nil {
		return err
	}
	if st := f.ports[h.Port]; st != nil {
		st.enabled = true
	}
	return nil
}

func (f *Fake) DisablePort(ctx context.Context, h *hw.Handle, p *port.LogicalPort) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("disable", h.Port)
	if err := f.Errs["disable"]; err != nil {
		return err
	}
	if st := f.ports[h.Port]; st != nil {
		st.enabled = false
	}
	return nil
}

func (f *Fake) LinkUp(ctx context.Context, h *hw.Handle) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := f.ports[h.Port]
	return st != nil && st.linkUp, nil
}

// SetLinkUp flips the simulated link state.
func (f *Fake) SetLinkUp(id port.ID, up bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st := f.ports[id]; st != nil {
		st.linkUp = up
	}
}

// Enabled reports the simulated admin state.
func (f *Fake) Enabled(id port.ID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := f.ports[id]
	return st != nil && st.enabled
}

func (f *Fake) ReadCounters(ctx context.Context, h *hw.Handle) (map[string]uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Errs["counters"]; err != nil {
		return nil, err
	}
	out := make(map[string]uint64)
	for k, v := range f.Counters[h.Port] {
		out[k] = v
	}
	return out, nil
}

func (f *Fake) ReadPacketLengths(ctx context.Context, h *hw.Handle, dir port.Direction) ([]uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if buckets := f.PacketLengths[h.Port][dir]; buckets != nil {
		out := make([]uint64, len(buckets))
		copy(out, buckets)
		return out, nil
	}
	return make([]uint64, hw.NumPacketLengthBuckets), nil
}

func (f *Fake) QueueLength(ctx context.Context, h *hw.Handle) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.QueueLengths[h.Port], nil
}

func (f *Fake) ApplyPortMirror(ctx context.Context, h *hw.Handle, dir port.Direction, action hw.MirrorAction, session *hw.MirrorSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := ""
	if session != nil {
		name = session.Name
	}
	f.Calls = append(f.Calls, fmt.Sprintf("mirror-%s-%s:%s:%s", action, dir, h.Port, name))
	return f.Errs["mirror"]
}

// SetCounters replaces a port's counter map.
func (f *Fake) SetCounters(id port.ID, counters map[string]uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Counters[id] = counters
}

var _ hw.Backend = (*Fake)(nil)
