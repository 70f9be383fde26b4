// Package format houses the low-level binary layout of a segregated-list heap:
// word encoding, boundary-tag packing and the fixed offsets of the heap
// prologue. Nothing in here knows about free lists or allocation policy, so
// the engine in package alloc can treat these helpers as its only view of raw
// heap bytes.
package format

const (
	// WordSize is the size of a header, footer or link word in bytes.
	WordSize = 4

	// DoubleWordSize is the payload alignment unit.
	DoubleWordSize = 8

	// BlockAlignment is the required alignment of block sizes and payload
	// offsets.
	BlockAlignment = DoubleWordSize

	// BlockAlignmentMask masks the low bits that must be zero in an aligned size.
	BlockAlignmentMask = BlockAlignment - 1

	// MinBlockSize is the smallest legal block: header, next link, prev link
	// and footer. Every block must be able to become free again.
	MinBlockSize = 4 * WordSize

	// MaxBlockSize is the largest size representable in a header word once
	// the three low flag bits are masked off.
	MaxBlockSize = 0xFFFFFFFF &^ FlagMask

	// DefaultChunkSize is the number of bytes the heap grows by when no free
	// block fits and the request itself is smaller.
	DefaultChunkSize = 1 << 9

	// DefaultMaxHeap is the default capacity of a reserved region (20 MiB).
	DefaultMaxHeap = 20 * (1 << 20)
)

// Heap prologue layout. Offsets are relative to the start of the heap region.
//
//	Word  Offset  Contents
//	0     0x00    unused (offset 0 is the "no link" value)
//	1-13  0x04    bucket sentinel slots, one per size class
//	14    0x38    alignment pad
//	15    0x3C    prologue header  pack(8, alloc)
//	16    0x40    prologue footer  pack(8, alloc)
//	17    0x44    epilogue header  pack(0, alloc)
//
// The prologue payload sits at 0x40 and the first real block's payload at
// 0x48, both 8-byte aligned.
const (
	// NumBuckets is the number of segregated size classes.
	NumBuckets = 13

	// BucketBase is the offset of the first bucket slot.
	BucketBase = WordSize

	// PrologueHeaderOffset is the offset of the prologue header word.
	PrologueHeaderOffset = 15 * WordSize

	// ProloguePtr is the payload offset of the prologue block.
	ProloguePtr = 16 * WordSize

	// PrologueSize is the total size of the prologue block.
	PrologueSize = DoubleWordSize

	// InitialEpilogueOffset is the offset of the epilogue header right after
	// initialization, before the first extension.
	InitialEpilogueOffset = 17 * WordSize

	// PrologueWords is the number of words requested by the first grow call.
	PrologueWords = 18

	// PrologueBytes is PrologueWords in bytes.
	PrologueBytes = PrologueWords * WordSize

	// NilOffset marks the end of a free list.
	NilOffset = 0
)

// BucketSlot returns the heap offset of the sentinel slot for bucket i.
func BucketSlot(i int) uint32 {
	return uint32(BucketBase + i*WordSize)
}
