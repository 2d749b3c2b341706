package scope

import (
	stderrors "errors"
	"testing"

	"github.com/wippyai/polyglot-native/errors"
	"github.com/wippyai/polyglot-native/handle"
)

var errInvalid = &errors.Error{Phase: errors.PhaseScope, Kind: errors.KindInvalidHandle}

func TestStack_Basic(t *testing.T) {
	s := NewStack(0)
	if s.Depth() != 1 {
		t.Fatalf("Depth = %d, want 1 (base frame)", s.Depth())
	}

	h, err := s.Create("a")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if h.Kind() != handle.KindScoped {
		t.Fatalf("Kind = %v, want scoped", h.Kind())
	}

	v, err := s.Get(h)
	if err != nil || v != "a" {
		t.Fatalf("Get = %v, %v", v, err)
	}
}

func TestStack_LIFOValidity(t *testing.T) {
	s := NewStack(0)
	outer, _ := s.Create("outer")

	m := s.PushFrame(0)
	inner, _ := s.Create("inner")

	if _, err := s.Get(outer); err != nil {
		t.Fatalf("outer handle must stay valid in nested frame: %v", err)
	}
	if err := s.PopFramesIncluding(m); err != nil {
		t.Fatalf("PopFramesIncluding failed: %v", err)
	}

	if _, err := s.Get(inner); !stderrors.Is(err, errInvalid) {
		t.Fatalf("inner handle after close: err = %v, want invalid handle", err)
	}
	if v, err := s.Get(outer); err != nil || v != "outer" {
		t.Fatalf("outer handle after inner close = %v, %v", v, err)
	}
}

func TestStack_StaleHandleAfterReuse(t *testing.T) {
	s := NewStack(0)

	m := s.PushFrame(0)
	old, _ := s.Create("old")
	s.PopFramesIncluding(m)

	s.PushFrame(0)
	fresh, _ := s.Create("fresh")

	if old.Index() != fresh.Index() {
		t.Fatalf("expected slot reuse, got %d and %d", old.Index(), fresh.Index())
	}
	if _, err := s.Get(old); !stderrors.Is(err, errInvalid) {
		t.Fatalf("stale handle resolved: err = %v", err)
	}
	if v, _ := s.Get(fresh); v != "fresh" {
		t.Fatalf("Get(fresh) = %v", v)
	}
}

func TestStack_PopFramesIncludingClosesAbove(t *testing.T) {
	s := NewStack(0)
	m1 := s.PushFrame(0)
	s.PushFrame(0)
	s.PushFrame(0)
	h, _ := s.Create(1)

	if s.Depth() != 4 {
		t.Fatalf("Depth = %d, want 4", s.Depth())
	}
	if err := s.PopFramesIncluding(m1); err != nil {
		t.Fatal(err)
	}
	if s.Depth() != 1 {
		t.Fatalf("Depth = %d, want 1", s.Depth())
	}
	if _, err := s.Get(h); err == nil {
		t.Fatal("handle from closed frame resolved")
	}

	// Already closed: no-op.
	if err := s.PopFramesIncluding(m1); err != nil {
		t.Fatalf("repeated close failed: %v", err)
	}
	if s.Depth() != 1 {
		t.Fatalf("repeated close changed depth to %d", s.Depth())
	}

	if err := s.PopFramesIncluding(0); err == nil {
		t.Fatal("marker 0 must be rejected")
	}
}

func TestStack_NoFrame(t *testing.T) {
	s := NewStack(0)
	if err := s.PopFrame(); err != nil {
		t.Fatal(err)
	}
	if s.Depth() != 0 {
		t.Fatalf("Depth = %d, want 0", s.Depth())
	}

	_, err := s.Create("x")
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseScope, Kind: errors.KindNoScope}) {
		t.Fatalf("Create without frame: err = %v", err)
	}
	if err := s.PopFrame(); err == nil {
		t.Fatal("PopFrame with no frame must fail")
	}
}

func TestStack_Growth(t *testing.T) {
	s := NewStack(2)
	var hs []handle.Handle
	for i := 0; i < 100; i++ {
		h, err := s.Create(i)
		if err != nil {
			t.Fatal(err)
		}
		hs = append(hs, h)
	}
	for i, h := range hs {
		v, err := s.Get(h)
		if err != nil || v != i {
			t.Fatalf("Get(%d) = %v, %v", i, v, err)
		}
	}
	if s.Len() != 100 {
		t.Fatalf("Len = %d", s.Len())
	}
}

func TestStack_Close(t *testing.T) {
	s := NewStack(0)
	s.PushFrame(0)
	h, _ := s.Create("x")
	s.Close()
	if s.Depth() != 0 || s.Len() != 0 {
		t.Fatalf("Depth = %d, Len = %d after Close", s.Depth(), s.Len())
	}
	if _, err := s.Get(h); err == nil {
		t.Fatal("handle resolved after Close")
	}
}

func TestStack_ForeignHandle(t *testing.T) {
	a := NewStack(0)
	b := NewStack(0)
	ha, _ := a.Create("a")
	b.Create("b")

	if _, err := b.Get(ha); err == nil {
		t.Fatal("handle from another stack resolved")
	}
	if _, err := a.Get(handle.Persistent(0, 0)); err == nil {
		t.Fatal("persistent handle resolved on a scope stack")
	}
}
