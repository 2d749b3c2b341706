package nativeapi

import (
	"github.com/wippyai/polyglot-native/errors"
	"github.com/wippyai/polyglot-native/handle"
)

// CreateReference promotes a scoped or persistent handle to a new
// persistent reference. The reference outlives every scope and must be
// released with DeleteReference.
func CreateReference(t *Thread, h handle.Handle, result *handle.Handle) Status {
	return t.call("create_reference", func() error {
		if h.IsNull() {
			return errors.InvalidHandle(errors.PhaseReference, 0, "cannot reference the null handle")
		}
		obj, err := t.resolve(h)
		if err != nil {
			return err
		}
		if err := out(result, "result"); err != nil {
			return err
		}
		ref, err := t.iso.refs.Create(obj)
		if err != nil {
			return err
		}
		*result = ref
		return nil
	})
}

// DeleteReference releases a reference. Only the first delete succeeds.
func DeleteReference(t *Thread, ref handle.Handle) Status {
	return t.call("delete_reference", func() error {
		return t.iso.refs.Delete(ref)
	})
}

// OpenHandleScope opens a frame for scoped handles.
func OpenHandleScope(t *Thread) Status {
	return t.call("open_handle_scope", func() error {
		t.stack.PushFrame(t.iso.cfg.FrameCapacity)
		return nil
	})
}

// CloseHandleScope closes the top frame and invalidates its handles.
func CloseHandleScope(t *Thread) Status {
	return t.call("close_handle_scope", func() error {
		return t.stack.PopFrame()
	})
}

// PerfDataGetAddressOfInt64 returns the address of a performance counter.
// The counter is updated atomically for the lifetime of the isolate.
func PerfDataGetAddressOfInt64(t *Thread, key string, result **int64) Status {
	return t.call("perf_data_get_address_of_int64", func() error {
		if err := out(result, "result"); err != nil {
			return err
		}
		p := t.iso.perf.counter(key)
		if p == nil {
			return errors.New(errors.PhaseBoundary, errors.KindNotFound).
				Path(key).
				Detail("Key %s is not a valid performance data entry key.", key).
				Build()
		}
		*result = p
		return nil
	})
}
