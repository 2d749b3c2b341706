package main

/*
#include "polyglot.h"
*/
import "C"

import (
	"time"
	"unsafe"

	"github.com/wippyai/polyglot-native/handle"
	"github.com/wippyai/polyglot-native/nativeapi"
)

// callback adapts a C function pointer. The thread token handed to C is
// the token of the thread the engine is calling back on.
func callback(cb C.poly_callback) nativeapi.Callback {
	if cb == nil {
		return nil
	}
	return func(th *nativeapi.Thread, info handle.Handle) handle.Handle {
		tok, ok := tokens.Load(th)
		if !ok {
			return handle.Null
		}
		return handle.Handle(C.poly_call_callback(cb, tok.(C.poly_thread), C.poly_handle(info)))
	}
}

//export poly_create_function
func poly_create_function(thread C.poly_thread, context C.poly_handle, cb C.poly_callback, data unsafe.Pointer, result *C.poly_handle) C.poly_status {
	return status(nativeapi.CreateFunction(threadOf(thread), handleIn(context), callback(cb), data, handleOut(result)))
}

// poly_get_callback_info reads the arguments of the running callback. argc
// holds the capacity of argv on entry and the number written on return.
//
//export poly_get_callback_info
func poly_get_callback_info(thread C.poly_thread, info C.poly_handle, argc *C.size_t, argv *C.poly_handle, data *unsafe.Pointer) C.poly_status {
	var (
		n   int
		np  *int
		buf []handle.Handle
		d   any
	)
	if argc != nil {
		n = int(*argc)
		np = &n
		buf = handlesIn(argv, *argc)
	}
	st := nativeapi.GetCallbackInfo(threadOf(thread), handleIn(info), np, buf, &d)
	if st != nativeapi.StatusOK {
		return status(st)
	}
	*argc = C.size_t(n)
	if data != nil {
		*data, _ = d.(unsafe.Pointer)
	}
	return C.poly_ok
}

//export poly_throw_exception
func poly_throw_exception(thread C.poly_thread, message *C.char) C.poly_status {
	return status(nativeapi.ThrowException(threadOf(thread), C.GoString(message)))
}

// poly_register_recurring_callback runs cb about every intervalMillis while
// the thread executes guest code. A NULL cb unregisters.
//
//export poly_register_recurring_callback
func poly_register_recurring_callback(thread C.poly_thread, intervalMillis C.int64_t, cb C.poly_callback, data unsafe.Pointer) C.poly_status {
	interval := time.Duration(intervalMillis) * time.Millisecond
	return status(nativeapi.RegisterRecurringCallback(threadOf(thread), interval, callback(cb), data))
}
