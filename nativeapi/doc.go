// Package nativeapi is the flat, status-returning boundary native callers
// use to drive the engine.
//
// An Isolate holds what is shared by the whole process: the persistent
// reference table, the allocator for error-info blocks and the performance
// counters. Each native thread attaches once and receives a Thread, which
// it passes first to every entry point:
//
//	iso, _ := nativeapi.NewIsolate(nativeapi.DefaultConfig())
//	t, _ := iso.AttachThread()
//	defer t.Detach()
//
//	var ctx, v handle.Handle
//	if nativeapi.CreateContext(t, nil, &ctx) != nativeapi.StatusOK {
//		var info *nativeapi.ErrorInfo
//		nativeapi.GetLastErrorInfo(t, &info)
//		log.Fatal(info.Message())
//	}
//	st := nativeapi.ContextEval(t, ctx, "jq", "query", "[1, 2] | add", &v)
//
// # Handles
//
// Results come back as handles. Scoped handles live in the innermost open
// scope of the thread (OpenHandleScope / CloseHandleScope) and become
// invalid once it closes. CreateReference promotes any valid handle to a
// persistent reference usable from every thread until DeleteReference.
//
// # Failures
//
// Every entry point resets the thread error state, runs, and reports the
// outcome as a Status. Guest exceptions are StatusPendingException and are
// fetched once with GetLastException; wrong value shapes report one of the
// *Expected statuses; anything else is StatusGenericFailure. The message of
// the last failure is available once through GetLastErrorInfo. Panics never
// cross the boundary.
//
// # Callbacks
//
// CreateFunction turns a Callback into an executable value. Each call runs
// inside its own scope that is closed when the callback returns, and a
// ThrowException made during the callback fails the guest call once the
// callback returns. RegisterRecurringCallback runs a callback periodically
// at the next safepoint of running guest code on the registering thread.
package nativeapi
