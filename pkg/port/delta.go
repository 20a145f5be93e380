package port

import "sort"

// Map is a full port-configuration snapshot keyed by port ID.
type Map map[ID]*LogicalPort

// Delta is the port subtree of a before/after configuration pair. It
// classifies every port present in either snapshot as added, changed, or
// removed; unchanged ports are skipped.
type Delta struct {
	before Map
	after  Map
}

// NewDelta builds a delta from two configuration snapshots. Either map may
// be nil (nil before = everything added, nil after = everything removed).
func NewDelta(before, after Map) *Delta {
	return &Delta{before: before, after: after}
}

// ForEach invokes exactly one callback per port present in either snapshot:
// changed for ports in both whose fields differ, added for ports only in
// after, removed for ports only in before. Ports are visited in ID order.
// A callback error does not stop the walk; all errors are reported to the
// visit function's caller via the returned slice, keeping failure handling
// per port.
func (d *Delta) ForEach(
	changed func(oldPort, newPort *LogicalPort) error,
	added func(newPort *LogicalPort) error,
	removed func(oldPort *LogicalPort) error,
) []error {
	var errs []error
	for _, id := range d.ids() {
		oldPort, inBefore := d.before[id]
		newPort, inAfter := d.after[id]
		var err error
		switch {
		case inBefore && inAfter:
			if !oldPort.Equal(newPort) {
				err = changed(oldPort, newPort)
			}
		case inAfter:
			err = added(newPort)
		default:
			err = removed(oldPort)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// Empty reports whether the delta contains no additions, changes, or removals.
func (d *Delta) Empty() bool {
	n := 0
	d.ForEach(
		func(_, _ *LogicalPort) error { n++; return nil },
		func(_ *LogicalPort) error { n++; return nil },
		func(_ *LogicalPort) error { n++; return nil },
	)
	return n == 0
}

func (d *Delta) ids() []ID {
	seen := make(map[ID]struct{}, len(d.before)+len(d.after))
	for id := range d.before {
		seen[id] = struct{}{}
	}
	for id := range d.after {
		seen[id] = struct{}{}
	}
	ids := make([]ID, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
