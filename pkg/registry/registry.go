// Package registry owns the live port handles. It is the single source of
// truth for which ports have backend resources and maintains the reverse
// index from backend resource identity to port.
package registry

import (
	"sort"
	"sync"

	"github.com/crosspoint-network/crosspoint/pkg/hw"
	"github.com/crosspoint-network/crosspoint/pkg/port"
	"github.com/crosspoint-network/crosspoint/pkg/util"
)

// Registry maps port IDs to their backend handles. All methods are safe
// for concurrent use; readers (the stats poller, CLI queries) share the
// lock with the single writer (the sync engine).
type Registry struct {
	mu         sync.RWMutex
	handles    map[port.ID]*hw.Handle
	byResource map[hw.ResourceID]port.ID
}

func New() *Registry {
	return &Registry{
		handles:    make(map[port.ID]*hw.Handle),
		byResource: make(map[hw.ResourceID]port.ID),
	}
}

// Insert registers a new handle. Inserting a port that already has a
// handle is a duplicate-add bug in the caller.
func (r *Registry) Insert(h *hw.Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handles[h.Port]; ok {
		return util.NewDuplicateError("insert", h.Port.String(), h.Resource.String())
	}
	r.handles[h.Port] = h
	r.byResource[h.Resource] = h.Port
	return nil
}

// Get returns the handle for a port, or a missing-resource error.
func (r *Registry) Get(id port.ID) (*hw.Handle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[id]
	if !ok {
		return nil, util.NewMissingError("get", id.String())
	}
	return h, nil
}

// Has reports whether the port has a registered handle.
func (r *Registry) Has(id port.ID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handles[id]
	return ok
}

// DropReverse removes the resource-to-port mapping while leaving the
// handle registered. Removal drops the reverse index first so that no
// reader can resolve the resource to a port that is mid-teardown, while
// the handle itself stays valid for the remaining teardown steps.
func (r *Registry) DropReverse(res hw.ResourceID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byResource, res)
}

// Release removes the port's handle. The reverse index entry must have
// been dropped already; a still-present entry means teardown ran out of
// order.
func (r *Registry) Release(id port.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[id]
	if !ok {
		return
	}
	if _, present := r.byResource[h.Resource]; present {
		util.Invariantf("releasing %s with live reverse index entry %s", id, h.Resource)
	}
	delete(r.handles, id)
}

// PortByResource resolves a backend resource identity to its port.
func (r *Registry) PortByResource(res hw.ResourceID) (port.ID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byResource[res]
	return id, ok
}

// Len returns the number of registered handles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}

// ForEach visits every handle in port-ID order. The lock is held for the
// whole walk; callbacks must not call back into the registry.
func (r *Registry) ForEach(fn func(h *hw.Handle)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]port.ID, 0, len(r.handles))
	for id := range r.handles {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		fn(r.handles[id])
	}
}
