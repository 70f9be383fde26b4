package alloc

import (
	"math/bits"

	"github.com/joshuapare/segalloc/internal/format"
)

// Size classes. Bucket i holds free blocks whose size lies in [2^i, 2^(i+1));
// the last bucket holds everything from 4096 bytes up.
//
//	Bucket   Sizes
//	0-3      never used (blocks are at least 16 bytes)
//	4        16 - 31
//	5        32 - 63
//	...
//	11       2048 - 4095
//	12       4096+
//
// Insertion and search share selectBucket, so every member of bucket b is at
// least bucketMin(b) bytes and a search never needs to look below its own
// bucket.
const lastBucket = format.NumBuckets - 1

// selectBucket returns the size class for a block of the given size.
func selectBucket(size uint32) int {
	if size == 0 {
		return 0
	}
	return min(bits.Len32(size)-1, lastBucket)
}

// bucketMin returns the smallest size that maps to bucket b.
func bucketMin(b int) uint32 {
	return 1 << b
}

// bucketMax returns the largest size that maps to bucket b, or 0 for the
// unbounded last bucket.
func bucketMax(b int) uint32 {
	if b == lastBucket {
		return 0
	}
	return 1<<(b+1) - 1
}
