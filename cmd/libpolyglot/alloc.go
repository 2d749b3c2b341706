package main

/*
#include "polyglot.h"
*/
import "C"

import (
	"unsafe"

	"github.com/wippyai/polyglot-native/errors"
)

// headerSize is the room reserved in front of every block for the
// poly_extended_error_info it is handed out with.
var headerSize = int(C.sizeof_poly_extended_error_info)

// mallocAllocator backs error-info blocks with C memory so C callers can
// keep the message pointer until their next call.
type mallocAllocator struct{}

func (mallocAllocator) Alloc(size int) ([]byte, error) {
	if size <= 0 {
		size = 1
	}
	p := C.calloc(1, C.size_t(headerSize+size))
	if p == nil {
		return nil, errors.New(errors.PhaseBoundary, errors.KindOverflow).
			Detail("cannot allocate %d bytes", size).
			Build()
	}
	return unsafe.Slice((*byte)(unsafe.Add(p, headerSize)), size), nil
}

func (mallocAllocator) Free(block []byte) {
	if len(block) == 0 {
		return
	}
	C.free(unsafe.Add(unsafe.Pointer(&block[0]), -headerSize))
}

// header returns the poly_extended_error_info slot in front of a block.
func header(block []byte) *C.poly_extended_error_info {
	return (*C.poly_extended_error_info)(unsafe.Add(unsafe.Pointer(&block[0]), -headerSize))
}
