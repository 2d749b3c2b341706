package reference

import "github.com/wippyai/polyglot-native/handle"

// Event types for reference lifecycle notifications.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDeleted
)

// Event represents a reference lifecycle event.
type Event struct {
	Value  any
	Handle handle.Handle
	Type   EventType
}

// Observer receives notifications about reference lifecycle events.
type Observer interface {
	OnReferenceEvent(Event)
}

// Backend provides the underlying storage for persistent references.
type Backend interface {
	// Create stores a value and returns a persistent handle.
	Create(value any) (handle.Handle, error)

	// Get retrieves a value by handle.
	Get(h handle.Handle) (any, error)

	// Delete removes a reference and returns its value.
	// A handle can be deleted successfully exactly once.
	Delete(h handle.Handle) (any, error)

	// Len returns the number of live references.
	Len() int

	// Close releases all references.
	Close() error
}

// Releaser is optionally implemented by values that need cleanup when
// their last reference is deleted.
type Releaser interface {
	Release()
}
