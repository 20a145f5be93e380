package registry

import (
	"errors"
	"testing"

	"github.com/crosspoint-network/crosspoint/pkg/hw"
	"github.com/crosspoint-network/crosspoint/pkg/port"
	"github.com/crosspoint-network/crosspoint/pkg/util"
)

func handle(id port.ID, res hw.ResourceID) *hw.Handle {
	return &hw.Handle{Port: id, Resource: res}
}

func TestInsertAndGet(t *testing.T) {
	r := New()
	h := handle(1, 0x100)

	if err := r.Insert(h); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	got, err := r.Get(1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != h {
		t.Error("Get returned a different handle")
	}
	if !r.Has(1) {
		t.Error("Has(1) = false after insert")
	}
}

func TestInsertDuplicate(t *testing.T) {
	r := New()
	if err := r.Insert(handle(1, 0x100)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	err := r.Insert(handle(1, 0x200))
	if !errors.Is(err, util.ErrDuplicateResource) {
		t.Errorf("duplicate insert error = %v, want ErrDuplicateResource", err)
	}
}

func TestGetMissing(t *testing.T) {
	r := New()
	_, err := r.Get(9)
	if !errors.Is(err, util.ErrMissingResource) {
		t.Errorf("Get(missing) error = %v, want ErrMissingResource", err)
	}
}

func TestReverseIndex(t *testing.T) {
	r := New()
	if err := r.Insert(handle(1, 0x100)); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	id, ok := r.PortByResource(0x100)
	if !ok || id != 1 {
		t.Fatalf("PortByResource = %v, %v; want 1, true", id, ok)
	}

	// After DropReverse the resource no longer resolves, but the handle
	// remains registered for the rest of teardown.
	r.DropReverse(0x100)
	if _, ok := r.PortByResource(0x100); ok {
		t.Error("resource still resolves after DropReverse")
	}
	if !r.Has(1) {
		t.Error("handle gone after DropReverse; must survive until Release")
	}

	r.Release(1)
	if r.Has(1) {
		t.Error("handle still present after Release")
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d after release, want 0", r.Len())
	}
}

func TestReleaseUnknownIsNoop(t *testing.T) {
	r := New()
	r.Release(42)
	if r.Len() != 0 {
		t.Errorf("Len = %d, want 0", r.Len())
	}
}

func TestForEachOrdered(t *testing.T) {
	r := New()
	for _, id := range []port.ID{5, 1, 3} {
		if err := r.Insert(handle(id, hw.ResourceID(id)*0x10)); err != nil {
			t.Fatalf("Insert(%d): %v", id, err)
		}
	}

	var visited []port.ID
	r.ForEach(func(h *hw.Handle) {
		visited = append(visited, h.Port)
	})
	want := []port.ID{1, 3, 5}
	if len(visited) != len(want) {
		t.Fatalf("visited %v, want %v", visited, want)
	}
	for i := range want {
		if visited[i] != want[i] {
			t.Fatalf("visited %v, want %v", visited, want)
		}
	}
}
