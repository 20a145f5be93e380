package syncer

import (
	"context"
	"errors"
	"net/netip"
	"strings"
	"testing"

	"github.com/crosspoint-network/crosspoint/pkg/hw"
	"github.com/crosspoint-network/crosspoint/pkg/hw/hwtest"
	"github.com/crosspoint-network/crosspoint/pkg/mirror"
	"github.com/crosspoint-network/crosspoint/pkg/port"
	"github.com/crosspoint-network/crosspoint/pkg/registry"
	"github.com/crosspoint-network/crosspoint/pkg/util"
)

type fixture struct {
	backend *hwtest.Fake
	reg     *registry.Registry
	mirrors *mirror.Manager
	engine  *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend := hwtest.New()
	reg := registry.New()
	mirrors := mirror.New(backend)
	return &fixture{
		backend: backend,
		reg:     reg,
		mirrors: mirrors,
		engine:  New(backend, reg, mirrors),
	}
}

func (f *fixture) addSession(t *testing.T, name string) {
	t.Helper()
	err := f.mirrors.AddSession(&hw.MirrorSession{
		Name:  name,
		SrcIP: netip.MustParseAddr("10.0.0.1"),
		DstIP: netip.MustParseAddr("10.0.0.2"),
	})
	if err != nil {
		t.Fatalf("AddSession(%s): %v", name, err)
	}
}

func enabledPort(id port.ID) *port.LogicalPort {
	return &port.LogicalPort{
		ID:          id,
		Name:        "eth1/1",
		Admin:       port.AdminEnabled,
		Speed:       port.SpeedHundredG,
		IngressVlan: 1000,
	}
}

func TestAddEnablesPort(t *testing.T) {
	f := newFixture(t)
	p := enabledPort(1)

	err := f.engine.Apply(context.Background(), port.NewDelta(nil, port.Map{1: p}))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !f.reg.Has(1) {
		t.Error("no handle registered after add")
	}
	if !f.backend.Enabled(1) {
		t.Error("port not enabled after add of ENABLED config")
	}
}

func TestAddDisabledPortStaysDown(t *testing.T) {
	f := newFixture(t)
	p := enabledPort(1)
	p.Admin = port.AdminDisabled

	err := f.engine.Apply(context.Background(), port.NewDelta(nil, port.Map{1: p}))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if f.backend.Enabled(1) {
		t.Error("DISABLED port enabled after add")
	}
}

func TestAddDuplicate(t *testing.T) {
	f := newFixture(t)
	p := enabledPort(1)
	ctx := context.Background()

	if err := f.engine.Apply(ctx, port.NewDelta(nil, port.Map{1: p})); err != nil {
		t.Fatalf("first Apply: %v", err)
	}
	err := f.engine.Apply(ctx, port.NewDelta(nil, port.Map{1: p}))
	if !errors.Is(err, util.ErrDuplicateResource) {
		t.Errorf("duplicate add error = %v, want ErrDuplicateResource", err)
	}
}

func TestChangeMissingPort(t *testing.T) {
	f := newFixture(t)
	before := enabledPort(1)
	after := enabledPort(1)
	after.Speed = port.SpeedFortyG

	err := f.engine.Apply(context.Background(), port.NewDelta(port.Map{1: before}, port.Map{1: after}))
	if !errors.Is(err, util.ErrMissingResource) {
		t.Errorf("change of unregistered port error = %v, want ErrMissingResource", err)
	}
}

func TestRemoveMissingPort(t *testing.T) {
	f := newFixture(t)
	err := f.engine.Apply(context.Background(), port.NewDelta(port.Map{1: enabledPort(1)}, nil))
	if !errors.Is(err, util.ErrMissingResource) {
		t.Errorf("remove of unregistered port error = %v, want ErrMissingResource", err)
	}
}

func TestChangeAdminTransition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	up := enabledPort(1)

	if err := f.engine.Apply(ctx, port.NewDelta(nil, port.Map{1: up})); err != nil {
		t.Fatalf("add: %v", err)
	}

	down := enabledPort(1)
	down.Admin = port.AdminDisabled
	if err := f.engine.Apply(ctx, port.NewDelta(port.Map{1: up}, port.Map{1: down})); err != nil {
		t.Fatalf("change: %v", err)
	}
	if f.backend.Enabled(1) {
		t.Error("port still enabled after DISABLED change")
	}
}

// Rebinding a mirror on change must stop the old session before starting
// the new one.
func TestChangeRebindsMirror(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addSession(t, "a")
	f.addSession(t, "b")

	before := enabledPort(1)
	before.IngressMirror = "a"
	if err := f.engine.Apply(ctx, port.NewDelta(nil, port.Map{1: before})); err != nil {
		t.Fatalf("add: %v", err)
	}
	f.backend.Calls = nil

	after := enabledPort(1)
	after.IngressMirror = "b"
	if err := f.engine.Apply(ctx, port.NewDelta(port.Map{1: before}, port.Map{1: after})); err != nil {
		t.Fatalf("change: %v", err)
	}

	var stopIdx, startIdx int
	for i, c := range f.backend.Calls {
		if strings.HasPrefix(c, "mirror-STOP") && strings.HasSuffix(c, ":a") {
			stopIdx = i
		}
		if strings.HasPrefix(c, "mirror-START") && strings.HasSuffix(c, ":b") {
			startIdx = i
		}
	}
	if stopIdx >= startIdx {
		t.Errorf("STOP of old session must precede START of new: %v", f.backend.Calls)
	}
	if f.mirrors.Binding(1, port.Ingress) != "b" {
		t.Errorf("binding = %q, want b", f.mirrors.Binding(1, port.Ingress))
	}
}

// Removal drops the reverse index before the handle and destroys the
// backend resource last, with mirror teardown in between.
func TestRemoveOrdering(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addSession(t, "a")

	p := enabledPort(1)
	p.EgressMirror = "a"
	if err := f.engine.Apply(ctx, port.NewDelta(nil, port.Map{1: p})); err != nil {
		t.Fatalf("add: %v", err)
	}
	h, err := f.reg.Get(1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	res := h.Resource
	f.backend.Calls = nil

	if err := f.engine.Apply(ctx, port.NewDelta(port.Map{1: p}, nil)); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if f.reg.Has(1) {
		t.Error("handle still registered after remove")
	}
	if _, ok := f.reg.PortByResource(res); ok {
		t.Error("reverse index still resolves after remove")
	}

	// Mirror stops precede the destroy.
	destroyIdx := -1
	lastStopIdx := -1
	for i, c := range f.backend.Calls {
		if strings.HasPrefix(c, "destroy:") {
			destroyIdx = i
		}
		if strings.HasPrefix(c, "mirror-STOP") {
			lastStopIdx = i
		}
	}
	if destroyIdx == -1 || lastStopIdx == -1 || lastStopIdx > destroyIdx {
		t.Errorf("mirror teardown must precede destroy: %v", f.backend.Calls)
	}
}

// One failing port must not prevent the others from being synchronized.
func TestApplyContinuesPastErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Port 1 exists already so its duplicate add fails; port 2 is new.
	if err := f.engine.Apply(ctx, port.NewDelta(nil, port.Map{1: enabledPort(1)})); err != nil {
		t.Fatalf("seed add: %v", err)
	}

	p2 := enabledPort(2)
	p2.Name = "eth1/2"
	err := f.engine.Apply(ctx, port.NewDelta(nil, port.Map{1: enabledPort(1), 2: p2}))
	if !errors.Is(err, util.ErrDuplicateResource) {
		t.Errorf("joined error = %v, want to contain ErrDuplicateResource", err)
	}
	if !f.reg.Has(2) {
		t.Error("port 2 not added after port 1 failure")
	}
}

type recordingObserver struct {
	events []string
}

func (r *recordingObserver) PortAdded(id port.ID, name string) {
	r.events = append(r.events, "added:"+name)
}
func (r *recordingObserver) PortChanged(id port.ID, name string) {
	r.events = append(r.events, "changed:"+name)
}
func (r *recordingObserver) PortRemoved(id port.ID) {
	r.events = append(r.events, "removed:"+id.String())
}

func TestObserverLifecycle(t *testing.T) {
	f := newFixture(t)
	obs := &recordingObserver{}
	f.engine.SetObserver(obs)
	ctx := context.Background()

	p := enabledPort(1)
	if err := f.engine.Apply(ctx, port.NewDelta(nil, port.Map{1: p})); err != nil {
		t.Fatalf("add: %v", err)
	}

	renamed := enabledPort(1)
	renamed.Name = "eth1/1:renamed"
	if err := f.engine.Apply(ctx, port.NewDelta(port.Map{1: p}, port.Map{1: renamed})); err != nil {
		t.Fatalf("rename: %v", err)
	}

	if err := f.engine.Apply(ctx, port.NewDelta(port.Map{1: renamed}, nil)); err != nil {
		t.Fatalf("remove: %v", err)
	}

	want := []string{"added:eth1/1", "changed:eth1/1:renamed", "removed:port1"}
	if len(obs.events) != len(want) {
		t.Fatalf("events = %v, want %v", obs.events, want)
	}
	for i := range want {
		if obs.events[i] != want[i] {
			t.Fatalf("events = %v, want %v", obs.events, want)
		}
	}
}
