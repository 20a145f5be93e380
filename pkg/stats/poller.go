package stats

import (
	"context"
	"sync"
	"time"

	"github.com/crosspoint-network/crosspoint/pkg/hw"
	"github.com/crosspoint-network/crosspoint/pkg/port"
	"github.com/crosspoint-network/crosspoint/pkg/registry"
	"github.com/crosspoint-network/crosspoint/pkg/util"
)

// MMUMode selects the buffer-management discipline of the ASIC. Only in
// lossy mode do ingress discards include dropped pause frames, so only
// then is the non-pause discard counter derived.
type MMUMode int

const (
	MMULossy MMUMode = iota
	MMULossless
)

type portStats struct {
	name string

	// published is the last completed snapshot. Guarded by the poller
	// mutex; the snapshot itself is immutable.
	published *Snapshot

	// lastPoll is the last snapshot produced by an actual counter read.
	// nil until the first poll completes. The zero snapshot seeded at
	// registration is a placeholder for readers, not a delta baseline:
	// deriving against it would fold the port's absolute warm-boot
	// counter values into the accumulators.
	lastPoll *Snapshot

	// nonPauseDiscards accumulates across polls. The hardware has no such
	// counter; it is derived from the in_discards and in_pause deltas.
	nonPauseDiscards uint64
}

// Poller reads counters for every registered port and publishes
// per-port snapshots. It implements syncer.Observer so collection state
// tracks port lifecycle.
type Poller struct {
	backend hw.Backend
	reg     *registry.Registry
	mmu     MMUMode

	mu    sync.RWMutex
	ports map[port.ID]*portStats
}

func NewPoller(backend hw.Backend, reg *registry.Registry, mmu MMUMode) *Poller {
	return &Poller{
		backend: backend,
		reg:     reg,
		mmu:     mmu,
		ports:   make(map[port.ID]*portStats),
	}
}

// PortAdded seeds an all-zero snapshot so readers see the port
// immediately, before the first poll completes.
func (p *Poller) PortAdded(id port.ID, name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ports[id] = &portStats{
		name:      name,
		published: emptySnapshot(name, time.Now()),
	}
}

// PortChanged renames the collection state in place. Accumulated values
// carry over; the port identity did not change, only its label.
func (p *Poller) PortChanged(id port.ID, name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.ports[id]
	if !ok {
		return
	}
	st.name = name
	snap := st.published.clone()
	snap.PortName = name
	st.published = snap
}

func (p *Poller) PortRemoved(id port.ID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.ports, id)
}

// Poll reads counters for every tracked port and publishes new
// snapshots. Each snapshot is built aside and swapped in under the lock,
// so a concurrent reader sees either the previous complete snapshot or
// the new one, never a partial state.
func (p *Poller) Poll(ctx context.Context) {
	now := time.Now()
	for _, id := range p.trackedPorts() {
		p.pollPort(ctx, id, now)
	}
}

func (p *Poller) trackedPorts() []port.ID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]port.ID, 0, len(p.ports))
	for id := range p.ports {
		ids = append(ids, id)
	}
	return ids
}

func (p *Poller) pollPort(ctx context.Context, id port.ID, now time.Time) {
	p.mu.RLock()
	st, ok := p.ports[id]
	var prev, prevPoll *Snapshot
	var name string
	if ok {
		prev = st.published
		prevPoll = st.lastPoll
		name = st.name
	}
	p.mu.RUnlock()
	if !ok {
		return
	}

	h, err := p.reg.Get(id)
	if err != nil {
		// The port is mid-removal; the observer callback will drop it.
		return
	}

	counters, err := p.backend.ReadCounters(ctx, h)
	if err != nil {
		util.WithPort(name).Errorf("Counter read failed: %v", err)
		return
	}

	snap := &Snapshot{
		PortName: name,
		Time:     now,
		Counters: counters,
	}
	if rx, err := p.backend.ReadPacketLengths(ctx, h, port.Ingress); err == nil {
		snap.RxLengths = rx
	} else {
		snap.RxLengths = append([]uint64(nil), prev.RxLengths...)
	}
	if tx, err := p.backend.ReadPacketLengths(ctx, h, port.Egress); err == nil {
		snap.TxLengths = tx
	} else {
		snap.TxLengths = append([]uint64(nil), prev.TxLengths...)
	}
	if qlen, err := p.backend.QueueLength(ctx, h); err == nil {
		snap.QueueLen = qlen
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok = p.ports[id]
	if !ok {
		return
	}
	// A rename may have landed while the read was in flight.
	snap.PortName = st.name
	st.nonPauseDiscards = p.deriveNonPauseDiscards(st, prevPoll, counters)
	snap.Counters[hw.InNonPauseDiscards] = st.nonPauseDiscards
	st.published = snap
	st.lastPoll = snap
}

// deriveNonPauseDiscards separates real packet drops from pause-frame
// consumption. In lossy MMU mode received pause frames are counted as
// ingress discards; subtracting the pause delta from the discard delta
// over the same window yields the discards that were actual traffic.
// The first poll after registration has no baseline and derives nothing;
// counter resets show up as negative deltas and skip the accumulation
// for that window.
func (p *Poller) deriveNonPauseDiscards(st *portStats, prev *Snapshot, counters map[string]uint64) uint64 {
	if p.mmu != MMULossy || prev == nil {
		return st.nonPauseDiscards
	}
	prevDiscards, okD := prev.Counters[hw.InDiscards]
	prevPause, okP := prev.Counters[hw.InPause]
	if !okD || !okP {
		return st.nonPauseDiscards
	}
	curDiscards := counters[hw.InDiscards]
	curPause := counters[hw.InPause]
	if curDiscards < prevDiscards || curPause < prevPause {
		return st.nonPauseDiscards
	}
	deltaDiscards := curDiscards - prevDiscards
	deltaPause := curPause - prevPause
	if deltaDiscards > deltaPause {
		return st.nonPauseDiscards + (deltaDiscards - deltaPause)
	}
	return st.nonPauseDiscards
}

// GetStats returns a copy of a port's latest snapshot.
func (p *Poller) GetStats(id port.ID) (*Snapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	st, ok := p.ports[id]
	if !ok {
		return nil, false
	}
	return st.published.clone(), true
}

// ForEach visits the latest snapshot of every tracked port.
func (p *Poller) ForEach(fn func(id port.ID, snap *Snapshot)) {
	p.mu.RLock()
	snaps := make(map[port.ID]*Snapshot, len(p.ports))
	for id, st := range p.ports {
		snaps[id] = st.published
	}
	p.mu.RUnlock()
	for id, snap := range snaps {
		fn(id, snap)
	}
}

// Run polls on the given interval until the context is cancelled.
func (p *Poller) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}
