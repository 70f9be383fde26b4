package alloc

import (
	"fmt"

	"github.com/joshuapare/segalloc/internal/format"
)

// ViolationKind classifies a broken heap invariant.
type ViolationKind uint8

const (
	KindBadPrologue ViolationKind = iota + 1
	KindBadEpilogue
	KindOutOfHeap
	KindMisaligned
	KindTooSmall
	KindAllocatedInList
	KindBadLink
	KindWrongBucket
	KindListCycle
	KindFooterMismatch
	KindAdjacentFree
	KindPrevAllocMismatch
	KindFreeNotListed
	KindListedNotInHeap
)

var kindNames = map[ViolationKind]string{
	KindBadPrologue:       "bad prologue",
	KindBadEpilogue:       "bad epilogue",
	KindOutOfHeap:         "block outside heap",
	KindMisaligned:        "misaligned block",
	KindTooSmall:          "block below minimum size",
	KindAllocatedInList:   "allocated block in free list",
	KindBadLink:           "inconsistent free-list link",
	KindWrongBucket:       "block in wrong bucket",
	KindListCycle:         "free-list cycle",
	KindFooterMismatch:    "footer does not match header",
	KindAdjacentFree:      "adjacent free blocks",
	KindPrevAllocMismatch: "stale prev-allocated bit",
	KindFreeNotListed:     "free block missing from free lists",
	KindListedNotInHeap:   "free-list member not found in heap walk",
}

func (k ViolationKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("ViolationKind(%d)", uint8(k))
}

// Violation describes the first broken invariant Check found. It usually
// means the caller overran a block or freed one twice.
type Violation struct {
	Kind   ViolationKind
	Off    Ptr // Payload offset of the offending block (0 for heap-level faults)
	Bucket int // Bucket being walked, or -1 during the heap walk
	Detail string
}

func (v *Violation) Error() string {
	loc := ""
	if v.Bucket >= 0 {
		loc = fmt.Sprintf(" in bucket %d", v.Bucket)
	}
	return fmt.Sprintf("%s: %s at 0x%x%s: %s", ErrCorrupt, v.Kind, uint32(v.Off), loc, v.Detail)
}

// Is makes errors.Is(v, ErrCorrupt) hold for every violation.
func (v *Violation) Is(target error) bool { return target == ErrCorrupt }

// Check walks every free list and then the whole heap, verifying:
//
//   - each list member is free, in bounds, aligned and in its size class
//   - prev/next links agree in both directions and lists are acyclic
//   - prologue and epilogue are intact and the epilogue ends the heap
//   - free blocks have a footer equal to their header
//   - no two free blocks are adjacent
//   - every prev-allocated bit matches its predecessor
//   - the free blocks found by the walk are exactly the listed ones
//
// It returns nil or a *Violation. Check never modifies the heap.
func (a *Allocator) Check() error {
	h := a.heap
	if len(h) < format.PrologueBytes+format.WordSize || len(h)&format.BlockAlignmentMask != 0 {
		return &Violation{Kind: KindBadEpilogue, Bucket: -1,
			Detail: fmt.Sprintf("heap length %d", len(h))}
	}
	want := format.Pack(format.PrologueSize, true, true)
	if a.get(format.PrologueHeaderOffset) != want || a.get(format.ProloguePtr) != want {
		return &Violation{Kind: KindBadPrologue, Off: format.ProloguePtr, Bucket: -1,
			Detail: fmt.Sprintf("tags 0x%08x/0x%08x", a.get(format.PrologueHeaderOffset), a.get(format.ProloguePtr))}
	}

	listed, err := a.checkLists()
	if err != nil {
		return err
	}
	if err := a.checkHeap(listed); err != nil {
		return err
	}
	if len(listed) > 0 {
		stray := Ptr(0)
		for p := range listed {
			if stray == Nil || p < stray {
				stray = p
			}
		}
		return &Violation{Kind: KindListedNotInHeap, Off: stray, Bucket: listed[stray],
			Detail: "member does not start a block"}
	}
	return nil
}

// inBounds reports whether a free block at p has room for its header and
// both links below the epilogue.
func (a *Allocator) inBounds(p Ptr) bool {
	return p >= firstPayload && int(p) <= len(a.heap)-format.MinBlockSize
}

// checkLists walks each bucket and returns the members by offset.
func (a *Allocator) checkLists() (map[Ptr]int, error) {
	listed := make(map[Ptr]int)
	maxMembers := len(a.heap) / format.MinBlockSize

	for b := range format.NumBuckets {
		slot := Ptr(format.BucketSlot(b))
		prev := slot
		steps := 0
		for p := a.head(b); p != Nil; p = a.next(p) {
			v := &Violation{Off: p, Bucket: b}
			_, dup := listed[p]
			switch {
			case dup || steps > maxMembers:
				v.Kind, v.Detail = KindListCycle, fmt.Sprintf("revisited after %d members", steps)
			case !a.inBounds(p):
				v.Kind, v.Detail = KindOutOfHeap, fmt.Sprintf("heap is 0x%x bytes", len(a.heap))
			case p&format.BlockAlignmentMask != 0:
				v.Kind, v.Detail = KindMisaligned, "payload not 8-byte aligned"
			case format.IsAlloc(a.header(p)):
				v.Kind, v.Detail = KindAllocatedInList, fmt.Sprintf("header 0x%08x", a.header(p))
			case a.prev(p) != prev:
				v.Kind, v.Detail = KindBadLink, fmt.Sprintf("prev is 0x%x, want 0x%x", uint32(a.prev(p)), uint32(prev))
			case selectBucket(a.blockSize(p)) != b:
				v.Kind, v.Detail = KindWrongBucket, fmt.Sprintf("size %d belongs in bucket %d", a.blockSize(p), selectBucket(a.blockSize(p)))
			}
			if v.Kind != 0 {
				return nil, v
			}
			listed[p] = b
			prev = p
			steps++
		}
	}
	return listed, nil
}

// checkHeap walks blocks from the first payload to the epilogue. Each free
// block found is removed from listed.
func (a *Allocator) checkHeap(listed map[Ptr]int) error {
	top := len(a.heap) - format.WordSize
	prevAlloc := true
	for p := firstPayload; ; {
		hdr := a.header(p)
		size := format.SizeOf(hdr)
		v := &Violation{Off: p, Bucket: -1}

		if format.IsPrevAlloc(hdr) != prevAlloc {
			v.Kind, v.Detail = KindPrevAllocMismatch, fmt.Sprintf("bit is %t, predecessor allocated is %t", !prevAlloc, prevAlloc)
			return v
		}

		if size == 0 {
			switch {
			case format.HeaderOff(uint32(p)) != top:
				v.Kind, v.Detail = KindBadEpilogue, fmt.Sprintf("zero-size header at 0x%x, heap top 0x%x", format.HeaderOff(uint32(p)), top)
			case !format.IsAlloc(hdr):
				v.Kind, v.Detail = KindBadEpilogue, "epilogue not marked allocated"
			}
			if v.Kind != 0 {
				return v
			}
			return nil
		}

		switch {
		case size < format.MinBlockSize:
			v.Kind, v.Detail = KindTooSmall, fmt.Sprintf("size %d", size)
		case int(p)+int(size) > len(a.heap):
			v.Kind, v.Detail = KindOutOfHeap, fmt.Sprintf("size %d runs past heap top 0x%x", size, top)
		case !format.IsAlloc(hdr) && a.get(format.FooterOff(uint32(p), size)) != hdr:
			v.Kind, v.Detail = KindFooterMismatch, fmt.Sprintf("header 0x%08x footer 0x%08x", hdr, a.get(format.FooterOff(uint32(p), size)))
		case !format.IsAlloc(hdr) && !prevAlloc:
			v.Kind, v.Detail = KindAdjacentFree, "predecessor is free too"
		}
		if v.Kind == 0 && !format.IsAlloc(hdr) {
			if _, ok := listed[p]; !ok {
				v.Kind, v.Detail = KindFreeNotListed, fmt.Sprintf("size %d", size)
			}
			delete(listed, p)
		}
		if v.Kind != 0 {
			return v
		}

		prevAlloc = format.IsAlloc(hdr)
		p += Ptr(size)
	}
}
