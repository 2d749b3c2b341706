// Package reference provides the process-wide persistent reference table.
//
// A persistent reference is created by promoting an object that a native
// caller already holds a handle to. It survives every frame closure and
// stays valid until it is deleted, exactly once:
//
//	table := reference.NewTable(reference.DefaultQuarantine)
//
//	h, err := table.Create(value)
//	v, err := table.Get(h)
//	err = table.Delete(h) // nil
//	err = table.Delete(h) // invalid handle
//
// # Slot Reuse
//
// Handles carry the slot generation. Deleting a reference bumps the
// generation of its slot and queues the slot behind a quarantine, so a
// handle kept after deletion keeps failing even after the slot is reused.
//
// # Observers
//
// Observers receive EventCreated and EventDeleted notifications, for
// example to keep a live-reference counter:
//
//	type counter struct{ live atomic.Int64 }
//
//	func (c *counter) OnReferenceEvent(e reference.Event) {
//	    if e.Type == reference.EventCreated {
//	        c.live.Add(1)
//	    } else {
//	        c.live.Add(-1)
//	    }
//	}
//
//	table.Subscribe(&counter{})
package reference
