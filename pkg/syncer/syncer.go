// Package syncer applies port-configuration deltas to hardware. It is the
// single writer of the port registry: every backend resource is created,
// reprogrammed, and destroyed from here.
package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/crosspoint-network/crosspoint/pkg/hw"
	"github.com/crosspoint-network/crosspoint/pkg/mirror"
	"github.com/crosspoint-network/crosspoint/pkg/port"
	"github.com/crosspoint-network/crosspoint/pkg/registry"
	"github.com/crosspoint-network/crosspoint/pkg/util"
)

// Observer is notified after a port's hardware identity is created or
// about to be released. The stats poller uses it to keep its per-port
// collection state aligned with the registry.
type Observer interface {
	PortAdded(id port.ID, name string)
	PortChanged(id port.ID, name string)
	PortRemoved(id port.ID)
}

// Engine drives the backend from configuration deltas.
type Engine struct {
	backend  hw.Backend
	reg      *registry.Registry
	mirrors  *mirror.Manager
	observer Observer
}

func New(backend hw.Backend, reg *registry.Registry, mirrors *mirror.Manager) *Engine {
	return &Engine{backend: backend, reg: reg, mirrors: mirrors}
}

// SetObserver attaches the lifecycle observer. Must be called before the
// first Apply.
func (e *Engine) SetObserver(o Observer) { e.observer = o }

// Apply walks the delta and applies each port's transition. A failing
// port does not stop the walk; the remaining ports are still synchronized
// and all failures are joined into the returned error.
func (e *Engine) Apply(ctx context.Context, delta *port.Delta) error {
	errs := delta.ForEach(
		func(oldPort, newPort *port.LogicalPort) error {
			if err := e.changePort(ctx, oldPort, newPort); err != nil {
				util.WithPort(newPort.Name).Errorf("Change failed: %v", err)
				return fmt.Errorf("change %s: %w", newPort.Name, err)
			}
			return nil
		},
		func(newPort *port.LogicalPort) error {
			if err := e.addPort(ctx, newPort); err != nil {
				util.WithPort(newPort.Name).Errorf("Add failed: %v", err)
				return fmt.Errorf("add %s: %w", newPort.Name, err)
			}
			return nil
		},
		func(oldPort *port.LogicalPort) error {
			if err := e.removePort(ctx, oldPort); err != nil {
				util.WithPort(oldPort.Name).Errorf("Remove failed: %v", err)
				return fmt.Errorf("remove %s: %w", oldPort.Name, err)
			}
			return nil
		},
	)
	return errors.Join(errs...)
}

func (e *Engine) addPort(ctx context.Context, p *port.LogicalPort) error {
	if e.reg.Has(p.ID) {
		return util.NewDuplicateError("add-port", p.Name, p.ID.String())
	}

	h, err := e.backend.CreatePort(ctx, p)
	if err != nil {
		return err
	}
	if err := e.reg.Insert(h); err != nil {
		return err
	}

	if err := e.applyAdmin(ctx, h, p); err != nil {
		return err
	}
	for _, dir := range port.Directions {
		if name := p.Mirror(dir); name != "" {
			if err := e.mirrors.ApplyBinding(ctx, h, dir, name); err != nil {
				return err
			}
		}
	}

	if e.observer != nil {
		e.observer.PortAdded(p.ID, p.Name)
	}
	util.WithPort(p.Name).Info("Port added")
	return nil
}

func (e *Engine) changePort(ctx context.Context, oldPort, newPort *port.LogicalPort) error {
	h, err := e.reg.Get(newPort.ID)
	if err != nil {
		return err
	}

	if err := e.backend.UpdatePort(ctx, h, newPort); err != nil {
		return err
	}
	if err := e.applyAdmin(ctx, h, newPort); err != nil {
		return err
	}
	for _, dir := range port.Directions {
		if oldPort.Mirror(dir) != newPort.Mirror(dir) {
			if err := e.mirrors.ApplyBinding(ctx, h, dir, newPort.Mirror(dir)); err != nil {
				return err
			}
		}
	}

	if e.observer != nil && oldPort.Name != newPort.Name {
		e.observer.PortChanged(newPort.ID, newPort.Name)
	}
	util.WithPort(newPort.Name).Info("Port reconfigured")
	return nil
}

// removePort tears down in a fixed order: the reverse index entry goes
// first so the resource stops resolving to the port, the mirror teardown
// runs while the handle is still registered, then the handle is released
// and the backend resource destroyed.
func (e *Engine) removePort(ctx context.Context, p *port.LogicalPort) error {
	h, err := e.reg.Get(p.ID)
	if err != nil {
		return err
	}

	if e.observer != nil {
		e.observer.PortRemoved(p.ID)
	}

	e.reg.DropReverse(h.Resource)
	e.mirrors.TeardownPort(ctx, h)
	e.reg.Release(p.ID)

	if err := e.backend.DestroyPort(ctx, h); err != nil {
		return err
	}
	util.WithPort(p.Name).Info("Port removed")
	return nil
}

func (e *Engine) applyAdmin(ctx context.Context, h *hw.Handle, p *port.LogicalPort) error {
	if p.Admin == port.AdminEnabled {
		return e.backend.EnablePort(ctx, h, p)
	}
	return e.backend.DisablePort(ctx, h, p)
}
