// Package stats polls port counters from the hardware backend, derives
// secondary counters, and publishes immutable per-port snapshots for
// concurrent readers.
package stats

import (
	"time"

	"github.com/crosspoint-network/crosspoint/pkg/hw"
)

// PacketLengthBuckets labels the fixed packet-size histogram layout, in
// the order backends return the buckets.
var PacketLengthBuckets = []string{
	"64",
	"65-127",
	"128-255",
	"256-511",
	"512-1023",
	"1024-1518",
	"1519-2047",
	"2048-4095",
	"4096-9216",
	"9217-16383",
}

// Snapshot is one port's counter state at a point in time. Snapshots are
// immutable once published: readers hold a reference without locking, and
// a new poll publishes a fresh snapshot rather than mutating in place.
type Snapshot struct {
	PortName  string
	Time      time.Time
	Counters  map[string]uint64
	RxLengths []uint64
	TxLengths []uint64
	QueueLen  uint64
}

func emptySnapshot(name string, now time.Time) *Snapshot {
	counters := make(map[string]uint64, len(hw.PortCounters)+1)
	for _, key := range hw.PortCounters {
		counters[key] = 0
	}
	counters[hw.InNonPauseDiscards] = 0
	return &Snapshot{
		PortName:  name,
		Time:      now,
		Counters:  counters,
		RxLengths: make([]uint64, hw.NumPacketLengthBuckets),
		TxLengths: make([]uint64, hw.NumPacketLengthBuckets),
	}
}

// clone deep-copies a snapshot so callers can hand it out without
// aliasing the published one.
func (s *Snapshot) clone() *Snapshot {
	out := &Snapshot{
		PortName: s.PortName,
		Time:     s.Time,
		QueueLen: s.QueueLen,
		Counters: make(map[string]uint64, len(s.Counters)),
	}
	for k, v := range s.Counters {
		out.Counters[k] = v
	}
	out.RxLengths = append([]uint64(nil), s.RxLengths...)
	out.TxLengths = append([]uint64(nil), s.TxLengths...)
	return out
}
