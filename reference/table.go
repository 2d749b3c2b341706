package reference

import (
	"sync"

	"github.com/wippyai/polyglot-native/handle"
)

// Table is the process-wide persistent reference table. Promotion, deletion
// and resolution are safe for concurrent use.
type Table struct {
	backend   *LocalBackend
	observers []Observer
	obsMu     sync.RWMutex
}

// NewTable creates a table over a LocalBackend with the given quarantine.
func NewTable(quarantine int) *Table {
	return &Table{
		backend: NewLocalBackend(quarantine),
	}
}

// Create promotes value to a persistent reference.
func (t *Table) Create(value any) (handle.Handle, error) {
	h, err := t.backend.Create(value)
	if err != nil {
		return handle.Null, err
	}

	t.notify(Event{
		Type:   EventCreated,
		Handle: h,
		Value:  value,
	})

	return h, nil
}

// Get retrieves a value by handle.
func (t *Table) Get(h handle.Handle) (any, error) {
	return t.backend.Get(h)
}

// Delete removes a reference. Only the first delete of a handle succeeds.
func (t *Table) Delete(h handle.Handle) error {
	value, err := t.backend.Delete(h)
	if err != nil {
		return err
	}

	if r, ok := value.(Releaser); ok {
		r.Release()
	}

	t.notify(Event{
		Type:   EventDeleted,
		Handle: h,
		Value:  value,
	})

	return nil
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer.
func (t *Table) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

// Len returns the number of live references.
func (t *Table) Len() int {
	return t.backend.Len()
}

// Each iterates over all live references.
func (t *Table) Each(fn func(handle.Handle, any) bool) {
	t.backend.Each(fn)
}

// Close releases all references and stops accepting operations.
func (t *Table) Close() error {
	return t.backend.Close()
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnReferenceEvent(e)
	}
}
