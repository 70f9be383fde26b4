package alloc

import "github.com/joshuapare/segalloc/dirty"

// Ptr is a payload address: a byte offset from the start of the heap region.
// Free-list links store the same offsets, so a heap is position independent.
type Ptr uint32

// Nil is the null pointer. Offset 0 is never a payload.
const Nil Ptr = 0

// Region is the heap growth primitive the allocator sits on.
//
// Grow must return the previous break and extend the region contiguously;
// a failed Grow must leave the region untouched. Bytes returns the region
// from offset 0 up to the break and must keep the same base across grows.
// The implementations in package region satisfy this contract.
type Region interface {
	Grow(n int) (int, error)
	Bytes() []byte
}

// DirtyTracker is an alias for the interface defined in package dirty.
type DirtyTracker = dirty.DirtyTracker
