package alloc

import (
	"github.com/joshuapare/segalloc/internal/buf"
	"github.com/joshuapare/segalloc/internal/format"
)

// Block describes one physical block seen by Walk.
type Block struct {
	Ptr       Ptr
	Size      uint32 // Block size, header included
	Alloc     bool
	PrevAlloc bool
}

// Walk calls fn for every block between the prologue and the epilogue in
// address order, stopping early when fn returns false. The walk also stops
// at the first malformed header; use Check to diagnose one.
func (a *Allocator) Walk(fn func(Block) bool) {
	for p := uint32(firstPayload); buf.Has(a.heap, format.HeaderOff(p), format.WordSize); {
		size, alloc, prevAlloc := format.Unpack(format.ReadTag(a.heap, p))
		if size < format.MinBlockSize || !buf.Has(a.heap, int(p), int(size)) {
			return
		}
		if !fn(Block{Ptr: Ptr(p), Size: size, Alloc: alloc, PrevAlloc: prevAlloc}) {
			return
		}
		p = format.NextBlock(p, size)
	}
}
