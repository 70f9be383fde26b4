package alloc

import "github.com/joshuapare/segalloc/internal/format"

// Free lists are doubly linked through the first two payload words of each
// free block:
//
//	p     next  offset of the next member, 0 at the tail
//	p+4   prev  offset of the previous member, or the bucket slot itself
//
// A bucket slot holds the offset of its head. Because a slot's own offset
// is where its "next" field lives, the slot behaves like a list node and
// unlinking never special-cases the head.

func (a *Allocator) next(p Ptr) Ptr { return Ptr(a.get(format.NextLinkOff(uint32(p)))) }

func (a *Allocator) prev(p Ptr) Ptr { return Ptr(a.get(format.PrevLinkOff(uint32(p)))) }

func (a *Allocator) setNext(p, q Ptr) { a.put(format.NextLinkOff(uint32(p)), uint32(q)) }

func (a *Allocator) setPrev(p, q Ptr) { a.put(format.PrevLinkOff(uint32(p)), uint32(q)) }

// head returns the first member of bucket b.
func (a *Allocator) head(b int) Ptr {
	return Ptr(a.get(int(format.BucketSlot(b))))
}

// insert pushes the free block p onto the head of its bucket.
func (a *Allocator) insert(p Ptr) {
	slot := Ptr(format.BucketSlot(selectBucket(a.blockSize(p))))
	old := a.next(slot)

	a.setNext(p, old)
	a.setPrev(p, slot)
	if old != Nil {
		a.setPrev(old, p)
	}
	a.setNext(slot, p)
}

// remove unlinks the free block p from whichever bucket holds it. p must be
// a current member of some list.
func (a *Allocator) remove(p Ptr) {
	prev, next := a.prev(p), a.next(p)
	a.setNext(prev, next)
	if next != Nil {
		a.setPrev(next, prev)
	}
}

// findFit returns the first free block of at least asize bytes, scanning
// the matching bucket and then each larger one. Nil when nothing fits.
func (a *Allocator) findFit(asize uint32) Ptr {
	for b := selectBucket(asize); b < format.NumBuckets; b++ {
		for p := a.head(b); p != Nil; p = a.next(p) {
			if a.blockSize(p) >= asize {
				return p
			}
		}
	}
	return Nil
}
