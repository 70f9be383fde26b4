package format

import "fmt"

// Boundary tag layout. Every block starts with a header word; free blocks
// also carry an identical footer word in their last four bytes.
//
//	Bit    Meaning
//	0      allocated
//	1      previous physical block allocated
//	2      reserved (always zero)
//	3-31   block size (a multiple of 8, header included)
//
// Block layout around a payload pointer p:
//
//	p-4     header
//	p       payload (allocated) / next link (free)
//	p+4     prev link (free)
//	p+sz-8  footer (free only)
//	p+sz-4  header of the next physical block
const (
	// AllocBit marks the block itself as allocated.
	AllocBit = 0x1

	// PrevAllocBit marks the physical predecessor as allocated.
	PrevAllocBit = 0x2

	// FlagMask covers every bit that is not part of the size.
	FlagMask = BlockAlignmentMask
)

// Pack encodes size and status flags into a header or footer word.
// size must be a multiple of 8; a misaligned size is an engine bug and panics.
func Pack(size uint32, alloc, prevAlloc bool) uint32 {
	if size&FlagMask != 0 {
		panic(fmt.Errorf("%w: pack of %d", ErrMisaligned, size))
	}
	w := size
	if alloc {
		w |= AllocBit
	}
	if prevAlloc {
		w |= PrevAllocBit
	}
	return w
}

// Unpack decodes a header or footer word.
func Unpack(w uint32) (size uint32, alloc, prevAlloc bool) {
	return SizeOf(w), IsAlloc(w), IsPrevAlloc(w)
}

// SizeOf returns the size field of a tag word.
func SizeOf(w uint32) uint32 { return w &^ FlagMask }

// IsAlloc reports the allocated flag of a tag word.
func IsAlloc(w uint32) bool { return w&AllocBit != 0 }

// IsPrevAlloc reports the prev-allocated flag of a tag word.
func IsPrevAlloc(w uint32) bool { return w&PrevAllocBit != 0 }

// WithPrevAlloc returns w with the prev-allocated flag set or cleared.
func WithPrevAlloc(w uint32, prevAlloc bool) uint32 {
	if prevAlloc {
		return w | PrevAllocBit
	}
	return w &^ PrevAllocBit
}

// HeaderOff returns the offset of the header of the block whose payload is at p.
func HeaderOff(p uint32) int { return int(p) - WordSize }

// FooterOff returns the offset of the footer of a block of the given size.
func FooterOff(p, size uint32) int { return int(p) + int(size) - DoubleWordSize }

// NextLinkOff returns the offset of a free block's next link.
func NextLinkOff(p uint32) int { return int(p) }

// PrevLinkOff returns the offset of a free block's prev link.
func PrevLinkOff(p uint32) int { return int(p) + WordSize }

// NextBlock returns the payload offset of the physical successor of a block
// of the given size.
func NextBlock(p, size uint32) uint32 { return p + size }

// PrevBlock returns the payload offset of the physical predecessor, given the
// predecessor's footer word. Only valid when the predecessor is free.
func PrevBlock(p, prevFooter uint32) uint32 { return p - SizeOf(prevFooter) }

// ReadTag reads the header of the block at p from the heap bytes.
func ReadTag(heap []byte, p uint32) uint32 {
	return ReadU32(heap, HeaderOff(p))
}

// PrevFooter reads the word just before p's header: the predecessor's footer.
func PrevFooter(heap []byte, p uint32) uint32 {
	return ReadU32(heap, int(p)-DoubleWordSize)
}
