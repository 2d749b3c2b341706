// Command libpolyglot builds the C shared library of the boundary:
//
//	go build -buildmode=c-shared -o libpolyglot.so ./cmd/libpolyglot
//
// Every poly_* symbol takes the token of an attached thread first and
// returns a poly_status. The process-wide isolate is created on the first
// poly_attach_thread from the file named by POLYGLOT_CONFIG, if set.
package main

/*
#include "polyglot.h"
*/
import "C"

import (
	"runtime"
	"runtime/cgo"
	"sync"
	"unsafe"

	"go.uber.org/zap"

	"github.com/wippyai/polyglot-native/handle"
	"github.com/wippyai/polyglot-native/nativeapi"
)

func main() {}

// size_t must be 64 bits wide; buffer sizes are passed through as uint64.
var _ [unsafe.Sizeof(C.size_t(0)) - 8]byte

var (
	isoOnce sync.Once
	iso     *nativeapi.Isolate
	isoErr  error

	// tokens maps an attached thread back to the token C code knows it by.
	tokens sync.Map

	pins struct {
		sync.Mutex
		p runtime.Pinner
	}
)

func isolate() (*nativeapi.Isolate, error) {
	isoOnce.Do(func() {
		cfg, err := nativeapi.ConfigFromEnv()
		if err != nil {
			isoErr = err
			if l, lerr := nativeapi.NewLogger(nativeapi.DefaultConfig().Log); lerr == nil {
				l.Error("invalid configuration", zap.String("env", nativeapi.ConfigEnv), zap.Error(err))
				_ = l.Sync()
			}
			return
		}
		iso, isoErr = nativeapi.NewIsolate(cfg, nativeapi.WithAllocator(mallocAllocator{}))
	})
	return iso, isoErr
}

func status(st nativeapi.Status) C.poly_status { return C.poly_status(st) }

// threadOf returns the thread behind a token, or nil for a token that was
// never handed out or is already detached.
func threadOf(tok C.poly_thread) (th *nativeapi.Thread) {
	if tok == 0 {
		return nil
	}
	defer func() {
		if recover() != nil {
			th = nil
		}
	}()
	th, _ = cgo.Handle(tok).Value().(*nativeapi.Thread)
	return th
}

//export poly_attach_thread
func poly_attach_thread(result *C.poly_thread) C.poly_status {
	if result == nil {
		return C.poly_generic_failure
	}
	i, err := isolate()
	if err != nil {
		return C.poly_generic_failure
	}
	th, err := i.AttachThread()
	if err != nil {
		i.Logger().Warn("attach refused", zap.Error(err))
		return C.poly_generic_failure
	}
	tok := C.poly_thread(cgo.NewHandle(th))
	tokens.Store(th, tok)
	*result = tok
	return C.poly_ok
}

//export poly_detach_thread
func poly_detach_thread(thread C.poly_thread) C.poly_status {
	th := threadOf(thread)
	if th == nil {
		return C.poly_generic_failure
	}
	th.Detach()
	tokens.Delete(th)
	cgo.Handle(thread).Delete()
	return C.poly_ok
}

// poly_tear_down_isolate closes the isolate. Calls on threads that are
// still attached fail afterwards, their tokens become invalid and no thread
// can attach again.
//
//export poly_tear_down_isolate
func poly_tear_down_isolate() C.poly_status {
	i, err := isolate()
	if err != nil {
		return C.poly_generic_failure
	}
	err = i.Close()
	tokens.Range(func(k, v any) bool {
		cgo.Handle(v.(C.poly_thread)).Delete()
		tokens.Delete(k)
		return true
	})
	pins.Lock()
	pins.p.Unpin()
	pins.Unlock()
	if err != nil {
		return C.poly_generic_failure
	}
	return C.poly_ok
}

func pin(p any) {
	pins.Lock()
	pins.p.Pin(p)
	pins.Unlock()
}

func cast[T, P any](p *P) *T { return (*T)(unsafe.Pointer(p)) }

func handleIn(h C.poly_handle) handle.Handle { return handle.Handle(h) }

func handleOut(p *C.poly_handle) *handle.Handle { return cast[handle.Handle](p) }

func sizeOut(p *C.size_t) *uint64 { return cast[uint64](p) }

func boolOut(p *C.bool) *bool { return cast[bool](p) }

// handlesIn views a C array of handles without copying.
func handlesIn(p *C.poly_handle, n C.size_t) []handle.Handle {
	if p == nil || n == 0 {
		return nil
	}
	return unsafe.Slice(cast[handle.Handle](p), int(n))
}

// bufferOut views a caller buffer. A NULL buffer is the size query of the
// two-pass convention.
func bufferOut(p *C.char, n C.size_t) []byte {
	if p == nil {
		return nil
	}
	return unsafe.Slice(cast[byte](p), int(n))
}

// stringIn views length bytes at p, or the bytes up to the NUL for
// POLY_AUTO_LENGTH.
func stringIn(p *C.char, length C.size_t) ([]byte, uint64) {
	n := uint64(length)
	if p == nil {
		return nil, n
	}
	if n == nativeapi.AutoLength {
		return unsafe.Slice(cast[byte](p), int(C.strlen(p))), n
	}
	return unsafe.Slice(cast[byte](p), int(n)), n
}

func stringsIn(p **C.char, n C.size_t) []string {
	if p == nil || n == 0 {
		return nil
	}
	out := make([]string, n)
	for i, s := range unsafe.Slice(p, int(n)) {
		out[i] = C.GoString(s)
	}
	return out
}
