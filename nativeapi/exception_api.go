package nativeapi

import (
	"github.com/wippyai/polyglot-native/engine"
	"github.com/wippyai/polyglot-native/errors"
	"github.com/wippyai/polyglot-native/handle"
)

func exceptionFlag(t *Thread, op string, exception handle.Handle, result *bool, fn func(*engine.Exception) bool) Status {
	return t.call(op, func() error {
		ex, err := fetch[*engine.Exception](t, exception, "exception")
		if err != nil {
			return err
		}
		if err := out(result, "result"); err != nil {
			return err
		}
		*result = fn(ex)
		return nil
	})
}

func exceptionText(t *Thread, op string, exception handle.Handle, buf []byte, result *uint64, fn func(*engine.Exception) string) Status {
	return t.call(op, func() error {
		ex, err := fetch[*engine.Exception](t, exception, "exception")
		if err != nil {
			return err
		}
		return writeString(fn(ex), buf, result)
	})
}

func ExceptionIsSyntaxError(t *Thread, exception handle.Handle, result *bool) Status {
	return exceptionFlag(t, "exception_is_syntax_error", exception, result, func(e *engine.Exception) bool { return e.SyntaxError })
}

func ExceptionIsCancelled(t *Thread, exception handle.Handle, result *bool) Status {
	return exceptionFlag(t, "exception_is_cancelled", exception, result, func(e *engine.Exception) bool { return e.Cancelled })
}

func ExceptionIsInternalError(t *Thread, exception handle.Handle, result *bool) Status {
	return exceptionFlag(t, "exception_is_internal_error", exception, result, func(e *engine.Exception) bool { return e.InternalError })
}

func ExceptionHasObject(t *Thread, exception handle.Handle, result *bool) Status {
	return exceptionFlag(t, "exception_has_object", exception, result, (*engine.Exception).HasGuestObject)
}

// ExceptionGetObject returns the guest object carried by the exception.
// An exception without one is a generic failure.
func ExceptionGetObject(t *Thread, exception handle.Handle, result *handle.Handle) Status {
	return t.call("exception_get_object", func() error {
		ex, err := fetch[*engine.Exception](t, exception, "exception")
		if err != nil {
			return err
		}
		if err := out(result, "result"); err != nil {
			return err
		}
		if !ex.HasGuestObject() {
			return errors.IllegalState(errors.PhaseValue, "Attempted to get the guest object of an exception that did not have one.")
		}
		return t.store(ex.Guest, result)
	})
}

// ExceptionGetStackTrace copies the full polyglot stack trace, one frame
// per line.
func ExceptionGetStackTrace(t *Thread, exception handle.Handle, buf []byte, result *uint64) Status {
	return exceptionText(t, "exception_get_stack_trace", exception, buf, result, (*engine.Exception).StackTrace)
}

// ExceptionGetGuestStackTrace copies only the guest frames.
func ExceptionGetGuestStackTrace(t *Thread, exception handle.Handle, buf []byte, result *uint64) Status {
	return exceptionText(t, "exception_get_guest_stack_trace", exception, buf, result, (*engine.Exception).GuestStackTrace)
}

func ExceptionGetMessage(t *Thread, exception handle.Handle, buf []byte, result *uint64) Status {
	return exceptionText(t, "exception_get_message", exception, buf, result, func(e *engine.Exception) string { return e.Message })
}
