package nativeapi

import (
	"context"
	stderrors "errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/polyglot-native/engine"
	"github.com/wippyai/polyglot-native/errors"
	"github.com/wippyai/polyglot-native/handle"
	"github.com/wippyai/polyglot-native/scope"
)

// Thread is the per-thread state of the boundary: the scoped handle stack,
// the error state of the last call, the pending guest exception, the throw
// request slot of the callback funnel and the recurring callback.
//
// A Thread is owned by exactly one native thread. None of its methods are
// safe for concurrent use; only the recurring timer touches it from
// elsewhere, and only through an atomic flag.
type Thread struct {
	iso   *Isolate
	stack *scope.Stack

	status  Status
	failure error
	op      string
	info    *ErrorInfo

	pending *engine.Exception
	throw   *engine.Exception
	// active counts callbacks currently running on this thread.
	active int

	recurring *recurring
	paused    int

	detached bool
}

// Isolate returns the isolate the thread is attached to.
func (t *Thread) Isolate() *Isolate { return t.iso }

// Depth returns the number of open handle scopes.
func (t *Thread) Depth() int { return t.stack.Depth() }

// LastStatus returns the status of the last call.
func (t *Thread) LastStatus() Status { return t.status }

// Detach stops the recurring callback, frees the error state and drops
// every scoped handle of the thread. The Thread must not be used again.
func (t *Thread) Detach() {
	if t.detached {
		return
	}
	t.release()
	t.iso.detach(t)
}

func (t *Thread) release() {
	if t.detached {
		return
	}
	t.detached = true
	t.setRecurring(nil)
	t.pauseRecurring()
	t.freeErrorInfo()
	t.resumeRecurring()
	t.failure = nil
	t.pending = nil
	t.throw = nil
	t.stack.Close()
}

// pauseRecurring and resumeRecurring bracket sections the recurring
// callback must not interleave with. They nest.
func (t *Thread) pauseRecurring()  { t.paused++ }
func (t *Thread) resumeRecurring() { t.paused-- }

// resetErrorState drops the outcome of the previous call. The error-info
// block of that call is freed here, never while the caller can still be
// reading it.
func (t *Thread) resetErrorState() {
	t.pauseRecurring()
	defer t.resumeRecurring()
	t.status = StatusOK
	t.failure = nil
	t.op = ""
	t.freeErrorInfo()
}

func (t *Thread) freeErrorInfo() {
	if t.info != nil {
		t.iso.alloc.Free(t.info.block)
		t.info = nil
	}
}

// call is the dispatch wrapper every entry point goes through: it resets
// the error state, runs fn, and turns any failure or panic into a status.
func (t *Thread) call(op string, fn func() error) (status Status) {
	if t == nil {
		return StatusGenericFailure
	}
	t.resetErrorState()
	atomic.AddInt64(&t.iso.perf.calls, 1)
	if t.detached {
		return t.fail(op, errors.Closed(errors.PhaseBoundary, "thread"))
	}
	if t.iso.shutdown.Load() {
		return t.fail(op, errors.Closed(errors.PhaseBoundary, "isolate"))
	}

	defer func() {
		if r := recover(); r != nil {
			err := errors.Panic(errors.PhaseBoundary, r, string(debug.Stack()))
			t.iso.logger.Error("entry point panicked", zap.String("op", op), zap.Any("panic", r))
			status = t.fail(op, err)
		}
	}()

	if err := fn(); err != nil {
		return t.fail(op, err)
	}
	return StatusOK
}

func (t *Thread) fail(op string, err error) Status {
	status := classify(err)
	t.status = status
	t.failure = err
	t.op = op
	if status == StatusPendingException {
		var ex *engine.Exception
		stderrors.As(err, &ex)
		t.pending = ex
	}
	atomic.AddInt64(&t.iso.perf.failures, 1)

	var e *errors.Error
	if stderrors.As(err, &e) && (e.Kind == errors.KindNoScope || e.Kind == errors.KindInvalidHandle) {
		t.iso.logger.Error("boundary contract violation", zap.String("op", op), zap.Error(err))
	} else {
		t.iso.logger.Debug("call failed", zap.String("op", op), zap.Stringer("status", status), zap.Error(err))
	}
	return status
}

// ErrorInfo is the extended description of the last failure. Its message
// lives in a block from the isolate allocator, NUL terminated, and stays
// valid until the next call on the same thread.
type ErrorInfo struct {
	Code  Status
	block []byte
}

// Message returns the message without the trailing NUL.
func (e *ErrorInfo) Message() string {
	if e == nil || len(e.block) == 0 {
		return ""
	}
	return string(e.block[:len(e.block)-1])
}

// Block returns the NUL terminated message block.
func (e *ErrorInfo) Block() []byte { return e.block }

// GetLastErrorInfo materializes the description of the last failure. The
// first retrieval after a failure returns a block; any further retrieval
// before the next failure stores nil. It does not reset the error state.
func GetLastErrorInfo(t *Thread, result **ErrorInfo) (status Status) {
	if t == nil || result == nil {
		return StatusGenericFailure
	}
	defer func() {
		if recover() != nil {
			status = StatusGenericFailure
		}
	}()
	t.pauseRecurring()
	defer t.resumeRecurring()

	if t.failure == nil {
		*result = nil
		return StatusOK
	}
	t.freeErrorInfo()

	text := renderFailure(t.op, t.failure)
	block, err := t.iso.alloc.Alloc(len(text) + 1)
	if err != nil {
		return StatusGenericFailure
	}
	copy(block, text)
	block[len(text)] = 0

	t.info = &ErrorInfo{Code: t.status, block: block}
	t.failure = nil
	*result = t.info
	return StatusOK
}

// renderFailure formats a failure the way the error-info block carries it:
// the message, then the trace that led to it.
func renderFailure(op string, err error) string {
	var b strings.Builder
	b.WriteString(failureMessage(err))
	b.WriteString("\nThe full stack trace is:\n")

	var ex *engine.Exception
	var e *errors.Error
	switch {
	case stderrors.As(err, &ex):
		b.WriteString(ex.StackTrace())
	case stderrors.As(err, &e) && e.Kind == errors.KindPanic:
		if stack, ok := e.Value.(string); ok {
			b.WriteString(stack)
		}
	default:
		fmt.Fprintf(&b, "\tat %s\n", op)
		for cause := stderrors.Unwrap(err); cause != nil; cause = stderrors.Unwrap(cause) {
			fmt.Fprintf(&b, "caused by: %v\n", cause)
		}
	}
	return b.String()
}

func failureMessage(err error) string {
	var ex *engine.Exception
	if stderrors.As(err, &ex) {
		return ex.Message
	}
	var e *errors.Error
	if stderrors.As(err, &e) {
		return e.Message()
	}
	return err.Error()
}

// GetLastException hands out the pending guest exception once and stores
// handle.Null when there is none.
func GetLastException(t *Thread, result *handle.Handle) (status Status) {
	if t == nil || result == nil {
		return StatusGenericFailure
	}
	defer func() {
		if recover() != nil {
			status = StatusGenericFailure
		}
	}()
	if t.pending == nil {
		*result = handle.Null
		return StatusOK
	}
	h, err := t.stack.Create(t.pending)
	if err != nil {
		return StatusGenericFailure
	}
	t.pending = nil
	*result = h
	return StatusOK
}

// resolve returns the object behind h from either handle range.
func (t *Thread) resolve(h handle.Handle) (any, error) {
	r := handle.Resolver{Scoped: t.stack, Persistent: t.iso.refs}
	return r.Resolve(h)
}

// newHandle stores obj in the top frame.
func (t *Thread) newHandle(obj any) (handle.Handle, error) {
	return t.stack.Create(obj)
}

// fetch resolves h and checks the object type. name labels the argument in
// error messages.
func fetch[T any](t *Thread, h handle.Handle, name string) (T, error) {
	var zero T
	obj, err := t.resolve(h)
	if err != nil {
		return zero, err
	}
	if obj == nil {
		return zero, errors.New(errors.PhaseHandle, errors.KindNilPointer).
			Path(name).
			Detail("%s is null", name).
			Build()
	}
	v, ok := obj.(T)
	if !ok {
		return zero, errors.TypeMismatch(errors.PhaseHandle, []string{name}, fmt.Sprintf("%T", zero), fmt.Sprintf("%T", obj))
	}
	return v, nil
}

func out[T any](p *T, name string) error {
	if p == nil {
		return errors.NilPointer(errors.PhaseBoundary, name)
	}
	return nil
}

type threadKey struct{}

// evalContext is the context handed to the engine for calls made on t. It
// carries the thread for the callback funnel and polls the recurring
// callback at every safepoint.
func (t *Thread) evalContext() context.Context {
	ctx := context.WithValue(context.Background(), threadKey{}, t)
	return engine.WithSafepoint(ctx, t.safepoint)
}

func threadFrom(ctx context.Context) *Thread {
	t, _ := ctx.Value(threadKey{}).(*Thread)
	return t
}
