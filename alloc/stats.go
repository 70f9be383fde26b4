package alloc

import (
	"fmt"
	"io"

	"github.com/joshuapare/segalloc/internal/format"
)

// Stats holds allocator counters for tests and instrumentation.
type Stats struct {
	GrowCalls        int   // Successful region grows, including initialization
	GrowBytes        int64 // Total bytes taken from the region
	AllocCalls       int   // Alloc calls, including those made by Realloc and Calloc
	AllocFastPath    int   // Allocations served from a free list
	AllocSlowPath    int   // Allocations that had to extend the heap
	FreeCalls        int   // Free calls, including those made by Realloc
	ReallocCalls     int   // Realloc calls
	CallocCalls      int   // Calloc calls
	BytesAllocated   int64 // Total block bytes handed out (headers included)
	BytesFreed       int64 // Total block bytes released
	LiveBlocks       int   // Blocks currently allocated
	LiveBytes        int64 // Block bytes currently allocated (headers included)
	SplitCount       int   // Placements that split off a free remainder
	CoalesceNone     int   // Frees and extensions with no free neighbour
	CoalesceForward  int   // Merges with the following block only
	CoalesceBackward int   // Merges with the preceding block only
	CoalesceBoth     int   // Merges with both neighbours
}

// BucketInfo summarizes one free list.
type BucketInfo struct {
	Bucket  int
	MinSize uint32 // Smallest block size the bucket accepts
	MaxSize uint32 // Largest, or 0 for the unbounded last bucket
	Blocks  int
	Bytes   int64
	Largest uint32
}

// FreeBlocks walks every bucket and reports its occupancy. The heap must be
// consistent; run Check first on a heap of unknown provenance.
func (a *Allocator) FreeBlocks() []BucketInfo {
	out := make([]BucketInfo, format.NumBuckets)
	for b := range format.NumBuckets {
		info := BucketInfo{Bucket: b, MinSize: bucketMin(b), MaxSize: bucketMax(b)}
		for p := a.head(b); p != Nil; p = a.next(p) {
			sz := a.blockSize(p)
			info.Blocks++
			info.Bytes += int64(sz)
			info.Largest = max(info.Largest, sz)
		}
		out[b] = info
	}
	return out
}

// PrintStats writes a human-readable summary of counters and free lists.
func (a *Allocator) PrintStats(w io.Writer) {
	s := a.stats
	fmt.Fprintf(w, "heap:      %d bytes (%d grows)\n", len(a.heap), s.GrowCalls)
	fmt.Fprintf(w, "live:      %d blocks, %d bytes\n", s.LiveBlocks, s.LiveBytes)
	fmt.Fprintf(w, "alloc:     %d calls (fast %d, slow %d), %d splits\n",
		s.AllocCalls, s.AllocFastPath, s.AllocSlowPath, s.SplitCount)
	fmt.Fprintf(w, "free:      %d calls, realloc %d, calloc %d\n",
		s.FreeCalls, s.ReallocCalls, s.CallocCalls)
	fmt.Fprintf(w, "coalesce:  none %d, forward %d, backward %d, both %d\n",
		s.CoalesceNone, s.CoalesceForward, s.CoalesceBackward, s.CoalesceBoth)

	for _, b := range a.FreeBlocks() {
		if b.Blocks == 0 {
			continue
		}
		upper := "+"
		if b.MaxSize != 0 {
			upper = fmt.Sprintf("-%d", b.MaxSize)
		}
		fmt.Fprintf(w, "bucket %2d: %6d%-7s %4d blocks, %8d bytes, largest %d\n",
			b.Bucket, b.MinSize, upper, b.Blocks, b.Bytes, b.Largest)
	}
}
