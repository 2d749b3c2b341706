package nativeapi

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/polyglot-native/engine"
	"github.com/wippyai/polyglot-native/errors"
	"github.com/wippyai/polyglot-native/handle"
)

// Callback is a native function the engine can call. info is a handle to
// the activation record, readable with GetCallbackInfo. The returned handle
// becomes the call result; handle.Null means null.
type Callback func(t *Thread, info handle.Handle) handle.Handle

// callbackInfo is the activation record of one callback invocation.
type callbackInfo struct {
	args []handle.Handle
	data any
}

// invokeCallback runs cb inside its own frame. Arguments become scoped
// handles in that frame, and the frame, together with anything cb left
// open above it, is closed on every exit path. A throw requested by cb is
// returned as the call failure. A throw the enclosing callback requested
// before re-entering the engine is kept for that callback's own return;
// requests made outside any callback are dropped.
func (t *Thread) invokeCallback(cb Callback, data any, args []*engine.Value, wantResult bool) (any, error) {
	marker := t.stack.PushFrame(t.iso.cfg.FrameCapacity)
	defer t.stack.PopFramesIncluding(marker)

	info := &callbackInfo{data: data, args: make([]handle.Handle, len(args))}
	for i, a := range args {
		h, err := t.newHandle(a)
		if err != nil {
			return nil, err
		}
		info.args[i] = h
	}
	ih, err := t.newHandle(info)
	if err != nil {
		return nil, err
	}

	atomic.AddInt64(&t.iso.perf.callbacks, 1)
	outer := t.throw
	if t.active == 0 {
		outer = nil
	}
	t.throw = nil
	t.active++
	defer func() {
		t.active--
		t.throw = outer
	}()
	res := cb(t, ih)
	if ex := t.takeThrow(); ex != nil {
		return nil, ex
	}
	if !wantResult {
		return nil, nil
	}

	obj, err := t.resolve(res)
	if err != nil {
		return nil, err
	}
	switch v := obj.(type) {
	case nil:
		return nil, nil
	case *engine.Value:
		return v.Raw(), nil
	default:
		return nil, errors.TypeMismatch(errors.PhaseCallback, []string{"result"}, "value", describe(v))
	}
}

func describe(x any) string {
	switch x.(type) {
	case *engine.Context:
		return "context"
	case *engine.Engine:
		return "engine"
	case *engine.Exception:
		return "exception"
	case *callbackInfo:
		return "callback info"
	default:
		return "handle"
	}
}

func (t *Thread) takeThrow() *engine.Exception {
	ex := t.throw
	t.throw = nil
	return ex
}

// CreateFunction wraps cb as an executable value of context. data is
// handed back to cb through GetCallbackInfo.
func CreateFunction(t *Thread, contextHandle handle.Handle, cb Callback, data any, result *handle.Handle) Status {
	return t.call("create_function", func() error {
		c, err := fetch[*engine.Context](t, contextHandle, "context")
		if err != nil {
			return err
		}
		if cb == nil {
			return errors.NilPointer(errors.PhaseCallback, "callback")
		}
		if err := out(result, "result"); err != nil {
			return err
		}
		fn := engine.NewFunction("native", func(ctx context.Context, args []*engine.Value) (any, error) {
			caller := threadFrom(ctx)
			if caller == nil || caller.detached {
				return nil, errors.IllegalState(errors.PhaseCallback, "native function called outside an attached thread")
			}
			return caller.invokeCallback(cb, data, args, true)
		})
		v, err := c.AsValue(fn)
		if err != nil {
			return err
		}
		h, err := t.newHandle(v)
		if err != nil {
			return err
		}
		*result = h
		return nil
	})
}

// GetCallbackInfo reads an activation record. argc holds the capacity of
// argv on entry and the number of arguments written on return.
func GetCallbackInfo(t *Thread, info handle.Handle, argc *int, argv []handle.Handle, data *any) Status {
	return t.call("get_callback_info", func() error {
		ci, err := fetch[*callbackInfo](t, info, "callback_info")
		if err != nil {
			return err
		}
		if err := out(argc, "argc"); err != nil {
			return err
		}
		n := min(*argc, len(ci.args), len(argv))
		if n < 0 {
			n = 0
		}
		copy(argv[:n], ci.args[:n])
		*argc = n
		if data != nil {
			*data = ci.data
		}
		return nil
	})
}

// ThrowException requests that the current callback fail with message once
// it returns. Only the last request before the return takes effect.
func ThrowException(t *Thread, message string) Status {
	return t.call("throw_exception", func() error {
		t.throw = engine.NewHostException(message, nil)
		return nil
	})
}

// recurring is a registered recurring callback. The timer only raises the
// due flag; the callback itself runs on the owning thread at its next
// safepoint.
type recurring struct {
	fn   Callback
	data any
	due  atomic.Bool
	stop chan struct{}
	done chan struct{}
}

// run raises the due flag every interval until the registration is halted
// or the isolate closes.
func (r *recurring) run(interval time.Duration, down <-chan struct{}) {
	defer close(r.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.due.Store(true)
		case <-r.stop:
			return
		case <-down:
			return
		}
	}
}

func (r *recurring) halt() {
	close(r.stop)
	<-r.done
}

// setRecurring swaps the registration with firing paused, so no firing
// ever observes a half-replaced callback.
func (t *Thread) setRecurring(r *recurring) {
	t.pauseRecurring()
	defer t.resumeRecurring()
	if old := t.recurring; old != nil {
		old.halt()
	}
	t.recurring = r
}

// RegisterRecurringCallback installs cb to run about every interval while
// the thread executes guest code. A nil cb unregisters. The callback gets
// no arguments, its result is ignored, and a throw it requests aborts the
// running guest code with a pending exception.
func RegisterRecurringCallback(t *Thread, interval time.Duration, cb Callback, data any) Status {
	return t.call("register_recurring_callback", func() error {
		if !t.iso.cfg.RecurringCallbacks {
			return errors.Unsupported(errors.PhaseCallback, "recurring callbacks are disabled")
		}
		if cb == nil {
			t.setRecurring(nil)
			t.iso.logger.Debug("recurring callback unregistered")
			return nil
		}
		if interval < t.iso.cfg.MinRecurringInterval.Duration {
			interval = t.iso.cfg.MinRecurringInterval.Duration
		}
		r := &recurring{
			fn:   cb,
			data: data,
			stop: make(chan struct{}),
			done: make(chan struct{}),
		}
		t.setRecurring(r)
		go r.run(interval, t.iso.down)
		t.iso.logger.Debug("recurring callback registered", zap.Duration("interval", interval))
		return nil
	})
}

// safepoint is polled by the engine while it runs guest code for t.
func (t *Thread) safepoint(ctx context.Context) error {
	r := t.recurring
	if r == nil || t.paused > 0 || !r.due.CompareAndSwap(true, false) {
		return nil
	}
	t.pauseRecurring()
	defer t.resumeRecurring()
	_, err := t.invokeCallback(r.fn, r.data, nil, false)
	return err
}
