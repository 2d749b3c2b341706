package polyglot

import (
	"sync"
	"sync/atomic"
)

// Allocator hands out blocks that outlive a single call across the native
// boundary. The last-error message of every thread is allocated from one.
type Allocator interface {
	// Alloc returns a zeroed block of exactly size bytes.
	Alloc(size int) ([]byte, error)
	// Free releases a block previously returned by Alloc.
	Free(block []byte)
}

// HeapAllocator allocates from the Go heap and tracks what is live.
// It is the default for in-process embedders and for tests.
type HeapAllocator struct {
	live   atomic.Int64
	allocs atomic.Int64
	frees  atomic.Int64

	mu     sync.Mutex
	blocks map[*byte]int
}

// NewHeapAllocator creates a tracking heap allocator.
func NewHeapAllocator() *HeapAllocator {
	return &HeapAllocator{blocks: make(map[*byte]int)}
}

// Alloc returns a new zeroed block.
func (a *HeapAllocator) Alloc(size int) ([]byte, error) {
	if size <= 0 {
		size = 1
	}
	b := make([]byte, size)
	a.mu.Lock()
	a.blocks[&b[0]] = size
	a.mu.Unlock()
	a.live.Add(1)
	a.allocs.Add(1)
	return b, nil
}

// Free forgets a block. Freeing an unknown block is ignored.
func (a *HeapAllocator) Free(block []byte) {
	if len(block) == 0 {
		return
	}
	a.mu.Lock()
	_, ok := a.blocks[&block[0]]
	delete(a.blocks, &block[0])
	a.mu.Unlock()
	if ok {
		a.live.Add(-1)
		a.frees.Add(1)
	}
}

// Live returns the number of blocks allocated and not yet freed.
func (a *HeapAllocator) Live() int64 { return a.live.Load() }

// Allocs returns the total number of allocations.
func (a *HeapAllocator) Allocs() int64 { return a.allocs.Load() }

// Frees returns the total number of successful frees.
func (a *HeapAllocator) Frees() int64 { return a.frees.Load() }
