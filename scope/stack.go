// Package scope implements the per-thread frame stack that backs scoped
// handles.
//
// Frames are strictly nested. Every scoped handle belongs to the frame that
// was on top when it was created and stays valid until that frame, or a
// frame below it, is closed. Closing a frame is O(1) in the number of frames
// closed plus a clear of the released slots; handles into released slots are
// caught by the slot generation on the next resolution.
//
// A Stack is owned by exactly one thread and is not safe for concurrent use.
package scope

import (
	"slices"
	"sync/atomic"

	"github.com/wippyai/polyglot-native/errors"
	"github.com/wippyai/polyglot-native/handle"
)

// DefaultFrameCapacity is the slot capacity reserved by a frame when the
// caller does not ask for more.
const DefaultFrameCapacity = 16

// genSeed spreads the starting generation of each stack so a handle leaked
// to another thread is unlikely to match a live slot there.
var genSeed atomic.Uint32

// Stack is the scoped handle allocator of one thread.
type Stack struct {
	values []any
	gens   []uint32
	frames []int
	base   uint32
}

// NewStack creates a stack with its base frame open.
func NewStack(capacity int) *Stack {
	s := &Stack{
		base:   genSeed.Add(0x9E3779B1) & handle.MaxGeneration,
		frames: make([]int, 0, 8),
	}
	s.PushFrame(capacity)
	return s
}

// PushFrame opens a frame with room for at least capacity handles and
// returns its marker. Markers start at 1 for the base frame.
func (s *Stack) PushFrame(capacity int) int {
	if capacity <= 0 {
		capacity = DefaultFrameCapacity
	}
	s.values = slices.Grow(s.values, capacity)
	s.frames = append(s.frames, len(s.values))
	return len(s.frames)
}

// PopFrame closes the top frame.
func (s *Stack) PopFrame() error {
	if len(s.frames) == 0 {
		return errors.NoScope()
	}
	s.truncate(len(s.frames) - 1)
	return nil
}

// PopFramesIncluding closes every frame from the top down to and including
// the frame identified by marker. Closing a marker that is already closed is
// a no-op so an outer cleanup can run after an inner one.
func (s *Stack) PopFramesIncluding(marker int) error {
	if marker < 1 {
		return errors.New(errors.PhaseScope, errors.KindInvalidInput).
			Detail("invalid frame marker %d", marker).
			Build()
	}
	if marker > len(s.frames) {
		return nil
	}
	s.truncate(marker - 1)
	return nil
}

func (s *Stack) truncate(depth int) {
	start := s.frames[depth]
	clear(s.values[start:])
	s.values = s.values[:start]
	s.frames = s.frames[:depth]
}

// Create stores v in the top frame and returns its handle.
func (s *Stack) Create(v any) (handle.Handle, error) {
	if len(s.frames) == 0 {
		return handle.Null, errors.NoScope()
	}
	idx := len(s.values)
	if idx > handle.MaxIndex {
		return handle.Null, errors.New(errors.PhaseScope, errors.KindOverflow).
			Detail("scoped handle space exhausted").
			Build()
	}
	if idx < len(s.gens) {
		s.gens[idx] = handle.NextGeneration(s.gens[idx])
	} else {
		s.gens = append(s.gens, s.base)
	}
	s.values = append(s.values, v)
	return handle.Scoped(idx, s.gens[idx]), nil
}

// Get resolves a scoped handle created by this stack.
func (s *Stack) Get(h handle.Handle) (any, error) {
	if h.Kind() != handle.KindScoped {
		return nil, errors.InvalidHandle(errors.PhaseScope, uint64(h), "not a scoped handle")
	}
	idx := h.Index()
	if idx >= len(s.values) {
		return nil, errors.InvalidHandle(errors.PhaseScope, uint64(h), "handle scope already closed")
	}
	if s.gens[idx] != h.Generation() {
		return nil, errors.InvalidHandle(errors.PhaseScope, uint64(h), "stale scoped handle")
	}
	return s.values[idx], nil
}

// Depth returns the number of open frames.
func (s *Stack) Depth() int { return len(s.frames) }

// Len returns the number of live slots across all frames.
func (s *Stack) Len() int { return len(s.values) }

// Close releases every frame, including the base frame.
func (s *Stack) Close() {
	if len(s.frames) > 0 {
		s.truncate(0)
	}
}
