// Package polyglot is a native boundary for a managed polyglot engine.
//
// Native callers drive the engine through flat functions that return a
// status code and write results through out parameters. Engine objects
// never cross the boundary directly; callers see opaque handles that are
// either scoped to a frame of the calling thread or persistent until
// explicitly deleted.
//
// # Architecture Overview
//
//	polyglot/          Root package with the Allocator for error-info blocks
//	├── handle/        Handle encoding: kind tag, slot index and generation
//	├── scope/         Per-thread frame stack backing scoped handles
//	├── reference/     Process-wide table of persistent references
//	├── errors/        Structured error types and status classification input
//	├── engine/        The managed engine: contexts, values, languages
//	├── nativeapi/     Status-returning entry points, callbacks, error state
//	└── cmd/
//	    ├── libpolyglot/   C shared library exporting nativeapi as poly_*
//	    └── polyrun/       Command line and REPL driving the boundary
//
// # Quick Start
//
//	iso, err := nativeapi.NewIsolate(nativeapi.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer iso.Close()
//
//	t, _ := iso.AttachThread()
//	defer t.Detach()
//
//	var ctx, v handle.Handle
//	nativeapi.CreateContext(t, nil, &ctx)
//	nativeapi.ContextEval(t, ctx, "jq", "q", "[1, 2] | add", &v)
//
// # Thread Safety
//
// An Isolate is safe for concurrent use. A Thread belongs to the native
// thread that attached it; scoped handles are only valid on that thread,
// while persistent references may be used from any attached thread.
//
// # Errors
//
// Every entry point resets the thread's error state on entry. After a
// failing call the status names the failure class, GetLastErrorInfo
// returns the message once, and a guest exception stays pending until it
// is retrieved with GetLastException.
package polyglot
