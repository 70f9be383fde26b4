// Package alloc implements a segregated free-list heap allocator over a
// growable byte region.
//
// # Overview
//
// The heap is a single contiguous region obtained from a Region (see
// package region). Every block carries a 4-byte boundary-tag header packing
// its size with an allocated bit and a prev-allocated bit. Free blocks also
// carry a footer and store their free-list links in the payload, so the
// allocator keeps no metadata outside the heap: a file-backed heap can be
// closed and reattached with Attach.
//
// # Usage Example
//
//	r, err := region.NewMem(0)
//	if err != nil {
//	    return err
//	}
//	a, err := alloc.New(r, nil, nil)
//	if err != nil {
//	    return err
//	}
//
//	p, err := a.Alloc(100)
//	if err != nil {
//	    return err
//	}
//	copy(a.Bytes(p), "hello")
//
//	p, err = a.Realloc(p, 400)
//	...
//	_ = a.Free(p)
//
// # Size Classes
//
// Free blocks are kept in 13 power-of-two buckets, the last one holding
// every block of 4096 bytes or more. Allocation scans the request's bucket
// first-fit and then each larger bucket; insertion pushes at the head, so
// the most recently freed block of a class is reused first.
//
// # Placement and Coalescing
//
// A block is split when the remainder can hold a minimum 16-byte block.
// Freed blocks are merged with free neighbours immediately, so no two free
// blocks are ever adjacent. When nothing fits the heap grows by the larger
// of the request and Config.ChunkSize.
//
// # Pointers
//
// A Ptr is the payload offset from the start of the heap and is always
// 8-byte aligned; Nil (0) is the null pointer. Bytes returns the payload as
// a slice aliasing the heap.
//
// # Diagnostics
//
// Check walks the free lists and the heap and reports the first broken
// invariant as a *Violation (matching ErrCorrupt). Config.CheckEveryOp runs
// it after every call. Setting SEGALLOC_LOG_ALLOC=1 logs each operation at
// debug level.
//
// # Thread Safety
//
// An Allocator is NOT thread-safe. Callers must serialize access or use one
// allocator per goroutine.
package alloc
