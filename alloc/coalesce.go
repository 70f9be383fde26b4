package alloc

import "github.com/joshuapare/segalloc/internal/format"

// coalesce merges the free block p with whichever physical neighbours are
// free and returns the merged block, identified by its lowest address.
//
// p must already carry free tags and must not be on a free list. Free
// neighbours are unlinked before their tags are overwritten. The result is
// not inserted; that is left to the caller.
func (a *Allocator) coalesce(p Ptr) Ptr {
	hdr := a.header(p)
	size := format.SizeOf(hdr)
	prevFree := !format.IsPrevAlloc(hdr)
	next := p + Ptr(size)
	nextFree := !format.IsAlloc(a.header(next))

	switch {
	case !prevFree && !nextFree:
		a.stats.CoalesceNone++
		return p

	case !prevFree && nextFree:
		a.stats.CoalesceForward++
		a.remove(next)
		size += a.blockSize(next)
		a.setFree(p, size, true)
		return p

	case prevFree && !nextFree:
		a.stats.CoalesceBackward++
		prev := a.prevBlock(p)
		a.remove(prev)
		size += a.blockSize(prev)
		a.setFree(prev, size, format.IsPrevAlloc(a.header(prev)))
		return prev

	default:
		a.stats.CoalesceBoth++
		prev := a.prevBlock(p)
		a.remove(prev)
		a.remove(next)
		size += a.blockSize(prev) + a.blockSize(next)
		a.setFree(prev, size, format.IsPrevAlloc(a.header(prev)))
		return prev
	}
}

// prevBlock returns the physical predecessor of p. Only valid when the
// predecessor is free, since allocated blocks carry no footer.
func (a *Allocator) prevBlock(p Ptr) Ptr {
	return Ptr(format.PrevBlock(uint32(p), format.PrevFooter(a.heap, uint32(p))))
}
