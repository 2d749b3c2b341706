package reference

import (
	"github.com/puzpuzpuz/xsync"

	"github.com/wippyai/polyglot-native/errors"
	"github.com/wippyai/polyglot-native/handle"
)

// DefaultQuarantine is the number of freed slots held back before the
// oldest one is reused.
const DefaultQuarantine = 64

// LocalBackend is an in-memory reference store shared by all threads.
//
// Freed slots go through a FIFO queue and are only reused once more than
// quarantine slots are waiting, and every reuse carries a bumped generation.
// A slot whose generation would wrap is retired for good.
type LocalBackend struct {
	entries    []entry
	free       []int
	quarantine int
	live       int
	mu         xsync.RBMutex
	closed     bool
}

type entry struct {
	value any
	gen   uint32
	valid bool
}

// NewLocalBackend creates a new in-memory backend. A negative quarantine
// selects DefaultQuarantine.
func NewLocalBackend(quarantine int) *LocalBackend {
	if quarantine < 0 {
		quarantine = DefaultQuarantine
	}
	return &LocalBackend{
		entries:    make([]entry, 0, 64),
		free:       make([]int, 0, 16),
		quarantine: quarantine,
	}
}

// Create stores a value and returns a handle.
func (b *LocalBackend) Create(value any) (handle.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return handle.Null, errors.Closed(errors.PhaseReference, "reference table")
	}

	if len(b.free) > b.quarantine {
		idx := b.free[0]
		b.free = b.free[1:]
		e := &b.entries[idx]
		e.value = value
		e.valid = true
		b.live++
		return handle.Persistent(idx, e.gen), nil
	}

	idx := len(b.entries)
	if idx > handle.MaxIndex {
		return handle.Null, errors.New(errors.PhaseReference, errors.KindOverflow).
			Detail("reference table exhausted").
			Build()
	}
	b.entries = append(b.entries, entry{value: value, valid: true})
	b.live++
	return handle.Persistent(idx, 0), nil
}

// Get retrieves a value by handle.
func (b *LocalBackend) Get(h handle.Handle) (any, error) {
	tk := b.mu.RLock()
	defer b.mu.RUnlock(tk)

	e, err := b.lookup(h)
	if err != nil {
		return nil, err
	}
	return e.value, nil
}

// Delete removes a reference and returns its value.
func (b *LocalBackend) Delete(h handle.Handle) (any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, err := b.lookup(h)
	if err != nil {
		return nil, err
	}

	value := e.value
	e.value = nil
	e.valid = false
	b.live--

	if e.gen == handle.MaxGeneration {
		return value, nil
	}
	e.gen = handle.NextGeneration(e.gen)
	b.free = append(b.free, h.Index())
	return value, nil
}

// lookup must be called with b.mu held.
func (b *LocalBackend) lookup(h handle.Handle) (*entry, error) {
	if h.Kind() != handle.KindPersistent {
		return nil, errors.InvalidHandle(errors.PhaseReference, uint64(h), "not a persistent handle")
	}
	if b.closed {
		return nil, errors.Closed(errors.PhaseReference, "reference table")
	}
	idx := h.Index()
	if idx >= len(b.entries) {
		return nil, errors.InvalidHandle(errors.PhaseReference, uint64(h), "reference was never created")
	}
	e := &b.entries[idx]
	if !e.valid || e.gen != h.Generation() {
		return nil, errors.InvalidHandle(errors.PhaseReference, uint64(h), "reference already deleted")
	}
	return e, nil
}

// Len returns the number of live references.
func (b *LocalBackend) Len() int {
	tk := b.mu.RLock()
	defer b.mu.RUnlock(tk)
	return b.live
}

// Close releases all references.
func (b *LocalBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for i := range b.entries {
		if b.entries[i].valid {
			if r, ok := b.entries[i].value.(Releaser); ok {
				r.Release()
			}
		}
	}

	b.entries = nil
	b.free = nil
	b.live = 0
	return nil
}

// Each iterates over all live references.
func (b *LocalBackend) Each(fn func(handle.Handle, any) bool) {
	tk := b.mu.RLock()
	defer b.mu.RUnlock(tk)

	for i, e := range b.entries {
		if e.valid {
			if !fn(handle.Persistent(i, e.gen), e.value) {
				break
			}
		}
	}
}
