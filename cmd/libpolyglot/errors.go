package main

/*
#include "polyglot.h"
*/
import "C"

import (
	"unsafe"

	"github.com/wippyai/polyglot-native/nativeapi"
)

// poly_get_last_error_info stores the description of the last failure of
// the thread, or NULL when it was already retrieved or there was none.
//
//export poly_get_last_error_info
func poly_get_last_error_info(thread C.poly_thread, result **C.poly_extended_error_info) C.poly_status {
	if result == nil {
		return C.poly_generic_failure
	}
	var info *nativeapi.ErrorInfo
	if st := nativeapi.GetLastErrorInfo(threadOf(thread), &info); st != nativeapi.StatusOK {
		return status(st)
	}
	if info == nil {
		*result = nil
		return C.poly_ok
	}
	block := info.Block()
	hdr := header(block)
	hdr.error_message = (*C.char)(unsafe.Pointer(&block[0]))
	hdr.error_code = status(info.Code)
	*result = hdr
	return C.poly_ok
}

//export poly_get_last_exception
func poly_get_last_exception(thread C.poly_thread, result *C.poly_handle) C.poly_status {
	return status(nativeapi.GetLastException(threadOf(thread), handleOut(result)))
}

//export poly_exception_is_syntax_error
func poly_exception_is_syntax_error(thread C.poly_thread, exception C.poly_handle, result *C.bool) C.poly_status {
	return status(nativeapi.ExceptionIsSyntaxError(threadOf(thread), handleIn(exception), boolOut(result)))
}

//export poly_exception_is_cancelled
func poly_exception_is_cancelled(thread C.poly_thread, exception C.poly_handle, result *C.bool) C.poly_status {
	return status(nativeapi.ExceptionIsCancelled(threadOf(thread), handleIn(exception), boolOut(result)))
}

//export poly_exception_is_internal_error
func poly_exception_is_internal_error(thread C.poly_thread, exception C.poly_handle, result *C.bool) C.poly_status {
	return status(nativeapi.ExceptionIsInternalError(threadOf(thread), handleIn(exception), boolOut(result)))
}

//export poly_exception_has_object
func poly_exception_has_object(thread C.poly_thread, exception C.poly_handle, result *C.bool) C.poly_status {
	return status(nativeapi.ExceptionHasObject(threadOf(thread), handleIn(exception), boolOut(result)))
}

//export poly_exception_get_object
func poly_exception_get_object(thread C.poly_thread, exception C.poly_handle, result *C.poly_handle) C.poly_status {
	return status(nativeapi.ExceptionGetObject(threadOf(thread), handleIn(exception), handleOut(result)))
}

//export poly_exception_get_stack_trace
func poly_exception_get_stack_trace(thread C.poly_thread, exception C.poly_handle, buf *C.char, size C.size_t, result *C.size_t) C.poly_status {
	return status(nativeapi.ExceptionGetStackTrace(threadOf(thread), handleIn(exception), bufferOut(buf, size), sizeOut(result)))
}

//export poly_exception_get_guest_stack_trace
func poly_exception_get_guest_stack_trace(thread C.poly_thread, exception C.poly_handle, buf *C.char, size C.size_t, result *C.size_t) C.poly_status {
	return status(nativeapi.ExceptionGetGuestStackTrace(threadOf(thread), handleIn(exception), bufferOut(buf, size), sizeOut(result)))
}

//export poly_exception_get_message
func poly_exception_get_message(thread C.poly_thread, exception C.poly_handle, buf *C.char, size C.size_t, result *C.size_t) C.poly_status {
	return status(nativeapi.ExceptionGetMessage(threadOf(thread), handleIn(exception), bufferOut(buf, size), sizeOut(result)))
}

//export poly_create_reference
func poly_create_reference(thread C.poly_thread, value C.poly_handle, result *C.poly_handle) C.poly_status {
	return status(nativeapi.CreateReference(threadOf(thread), handleIn(value), handleOut(result)))
}

//export poly_delete_reference
func poly_delete_reference(thread C.poly_thread, reference C.poly_handle) C.poly_status {
	return status(nativeapi.DeleteReference(threadOf(thread), handleIn(reference)))
}

//export poly_open_handle_scope
func poly_open_handle_scope(thread C.poly_thread) C.poly_status {
	return status(nativeapi.OpenHandleScope(threadOf(thread)))
}

//export poly_close_handle_scope
func poly_close_handle_scope(thread C.poly_thread) C.poly_status {
	return status(nativeapi.CloseHandleScope(threadOf(thread)))
}

// poly_perf_data_get_address_of_int64_t stores the address of a counter
// that stays valid, and is updated atomically, until the isolate is torn
// down.
//
//export poly_perf_data_get_address_of_int64_t
func poly_perf_data_get_address_of_int64_t(thread C.poly_thread, key *C.char, result **C.int64_t) C.poly_status {
	if result == nil {
		return C.poly_generic_failure
	}
	var p *int64
	st := nativeapi.PerfDataGetAddressOfInt64(threadOf(thread), C.GoString(key), &p)
	if st != nativeapi.StatusOK {
		return status(st)
	}
	pin(p)
	*result = (*C.int64_t)(unsafe.Pointer(p))
	return C.poly_ok
}
