package buffer

import (
	"sync/atomic"

	"github.com/wippyai/wasm-bridge/errors"
)

// Region is a byte region with an ownership flag. An owned region was
// obtained from an Allocator and is returned to it exactly once. A borrowed
// region belongs to someone else, typically engine linear memory.
type Region struct {
	data   []byte
	length uint32
	owned  bool
}

// Len returns the fixed length of the region in bytes.
func (r *Region) Len() uint32 {
	return r.length
}

// Owned reports whether this layer allocated the region.
func (r *Region) Owned() bool {
	return r.owned
}

// Allocator obtains and releases owned regions.
type Allocator interface {
	// Alloc returns n zeroed bytes.
	Alloc(n uint32) ([]byte, error)

	// Free releases bytes previously returned by Alloc.
	Free(b []byte)
}

// DefaultLimit is the byte limit a HeapAllocator gets when none is given.
const DefaultLimit uint64 = 1 << 30

// HeapAllocator allocates from the Go heap and keeps byte accounting.
//
// The limit is the only source of allocation errors. The Go runtime treats
// heap exhaustion as fatal, so an allocation that passes the limit check
// either succeeds or takes the process down.
type HeapAllocator struct {
	limit       uint64
	outstanding atomic.Uint64
	allocs      atomic.Uint64
	frees       atomic.Uint64
}

// DefaultAllocator is used by New.
var DefaultAllocator Allocator = NewHeapAllocator(0)

// NewHeapAllocator creates an allocator that refuses to hold more than
// limit bytes at once. A zero limit selects DefaultLimit.
func NewHeapAllocator(limit uint64) *HeapAllocator {
	if limit == 0 {
		limit = DefaultLimit
	}
	return &HeapAllocator{limit: limit}
}

// Limit returns the most bytes the allocator holds at once.
func (a *HeapAllocator) Limit() uint64 {
	return a.limit
}

// Alloc allocates n zeroed bytes, or fails with an allocation error when
// that would exceed the limit.
func (a *HeapAllocator) Alloc(n uint32) ([]byte, error) {
	size := uint64(n)
	for {
		cur := a.outstanding.Load()
		if cur+size > a.limit {
			return nil, errors.New(errors.PhaseBuffer, errors.KindAllocation).
				Value(size).
				Detail("failed to allocate %d bytes: %d of %d bytes in use", size, cur, a.limit).
				Build()
		}
		if a.outstanding.CompareAndSwap(cur, cur+size) {
			break
		}
	}

	b := make([]byte, n)
	a.allocs.Add(1)
	return b, nil
}

// Free returns b's bytes to the accounting pool.
func (a *HeapAllocator) Free(b []byte) {
	if b == nil {
		return
	}
	a.outstanding.Add(^(uint64(len(b)) - 1))
	a.frees.Add(1)
}

// Outstanding returns the number of bytes allocated and not yet freed.
func (a *HeapAllocator) Outstanding() uint64 {
	return a.outstanding.Load()
}

// Stats returns the number of Alloc and Free calls that succeeded.
func (a *HeapAllocator) Stats() (allocs, frees uint64) {
	return a.allocs.Load(), a.frees.Load()
}
