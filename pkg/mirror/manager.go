// Package mirror manages GRE mirror sessions and their per-port,
// per-direction bindings. Session definitions and bindings live here;
// the backend only ever sees start and stop actions.
package mirror

import (
	"context"
	"sync"

	"github.com/crosspoint-network/crosspoint/pkg/hw"
	"github.com/crosspoint-network/crosspoint/pkg/port"
	"github.com/crosspoint-network/crosspoint/pkg/util"
)

// Backend is the slice of the hardware contract the manager needs.
type Backend interface {
	ApplyPortMirror(ctx context.Context, h *hw.Handle, dir port.Direction, action hw.MirrorAction, session *hw.MirrorSession) error
}

type bindingKey struct {
	port port.ID
	dir  port.Direction
}

// Manager tracks mirror sessions by name and which session each port
// direction is bound to.
type Manager struct {
	mu       sync.Mutex
	backend  Backend
	sessions map[string]*hw.MirrorSession
	bindings map[bindingKey]string
}

func New(backend Backend) *Manager {
	return &Manager{
		backend:  backend,
		sessions: make(map[string]*hw.MirrorSession),
		bindings: make(map[bindingKey]string),
	}
}

// AddSession defines a session. Defaults are filled in for the GRE
// encapsulation fields when left zero.
func (m *Manager) AddSession(s *hw.MirrorSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.Name]; ok {
		return util.NewDuplicateError("add-session", "", s.Name)
	}
	if s.TTL == 0 {
		s.TTL = hw.MirrorDefaultTTL
	}
	if s.GREProto == 0 {
		s.GREProto = hw.MirrorGREProto
	}
	m.sessions[s.Name] = s
	util.WithSession(s.Name).Debugf("Mirror session defined, destination %s", s.DstIP)
	return nil
}

// RemoveSession deletes a session definition. Ports still bound to it
// keep their binding records; their next rebind or teardown stops the
// hardware mirror with a nil session.
func (m *Manager) RemoveSession(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[name]; !ok {
		return util.NewMissingError("remove-session", name)
	}
	delete(m.sessions, name)
	util.WithSession(name).Debug("Mirror session removed")
	return nil
}

// Session returns a session definition by name.
func (m *Manager) Session(name string) (*hw.MirrorSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[name]
	return s, ok
}

// Binding returns the session name bound to a port direction ("" when
// unbound).
func (m *Manager) Binding(id port.ID, dir port.Direction) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bindings[bindingKey{id, dir}]
}

// ApplyBinding rebinds one direction of a port to the named session
// ("" unbinds). The previous binding is always stopped first, then the
// new one started; stop of a session whose definition was deleted still
// succeeds, the backend clears the binding without a session.
func (m *Manager) ApplyBinding(ctx context.Context, h *hw.Handle, dir port.Direction, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := bindingKey{h.Port, dir}
	if prev := m.bindings[key]; prev != "" {
		if err := m.backend.ApplyPortMirror(ctx, h, dir, hw.MirrorStop, m.sessions[prev]); err != nil {
			return err
		}
		delete(m.bindings, key)
	}
	if name == "" {
		return nil
	}

	session, ok := m.sessions[name]
	if !ok {
		return util.NewMissingError("bind-mirror", name)
	}
	// Record before the hardware call: a failed start leaves the binding
	// on the books so a retry stops it first.
	m.bindings[key] = name
	if err := m.backend.ApplyPortMirror(ctx, h, dir, hw.MirrorStart, session); err != nil {
		return err
	}
	util.WithPort(h.Port).Debugf("Mirror %s bound to session %s", dir, name)
	return nil
}

// TeardownPort stops mirroring on both directions of a port regardless
// of recorded bindings. It runs during port removal while the handle is
// still valid; errors are logged, teardown continues.
func (m *Manager) TeardownPort(ctx context.Context, h *hw.Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, dir := range port.Directions {
		key := bindingKey{h.Port, dir}
		session := m.sessions[m.bindings[key]]
		if err := m.backend.ApplyPortMirror(ctx, h, dir, hw.MirrorStop, session); err != nil {
			util.WithPort(h.Port).Errorf("Failed to stop %s mirror during teardown: %v", dir, err)
		}
		delete(m.bindings, key)
	}
}
