// Package region provides implementations of the heap growth primitive: an
// append-only byte region whose break only moves up. Each grant is contiguous
// with the previous ones, so heap offsets handed out by an allocator stay
// meaningful for the life of the region.
//
// Implementations:
//
//   - Mem: a byte slice reserved up front, the classic simulated sbrk
//   - Anon: anonymous mmap reservation committed page by page (linux, darwin)
//   - File: a file-backed heap mapped shared, grown with ftruncate (linux, darwin)
//   - Counting: wrapper recording how often and by how much a region grew
//
// Regions are NOT thread-safe.
package region

import (
	"fmt"

	"github.com/joshuapare/segalloc/internal/format"
)

// MaxHeap is the largest region any implementation accepts. Heap offsets and
// free-list links are 32-bit words.
const MaxHeap int64 = 1<<32 - format.BlockAlignment

// Grower is the growth primitive contract shared by every region.
type Grower interface {
	// Grow extends the region by n bytes and returns the offset where the
	// new bytes start (the previous break). On failure nothing changes.
	Grow(n int) (int, error)

	// Bytes returns the region from offset 0 up to the current break.
	Bytes() []byte
}

// checkMax validates a requested reservation size.
func checkMax(maxHeap int) (int, error) {
	if maxHeap <= 0 {
		maxHeap = format.DefaultMaxHeap
	}
	if int64(maxHeap) > MaxHeap {
		return 0, fmt.Errorf("%w: %d bytes (limit %d)", ErrTooLarge, maxHeap, MaxHeap)
	}
	return maxHeap, nil
}

// checkGrow validates a grow request against the space left in a reservation.
func checkGrow(brk, n, limit int) error {
	if n < 0 {
		return fmt.Errorf("%w: %d", ErrBadGrow, n)
	}
	if n > limit-brk {
		return fmt.Errorf("%w: need %d bytes, %d left", ErrExhausted, n, limit-brk)
	}
	return nil
}

// Counting wraps a Grower and records successful grow calls.
type Counting struct {
	Grower

	GrowCalls int   // Number of successful Grow calls
	GrowBytes int64 // Total bytes granted
}

// NewCounting wraps g.
func NewCounting(g Grower) *Counting {
	return &Counting{Grower: g}
}

// Grow forwards to the wrapped region and counts successful grants.
func (c *Counting) Grow(n int) (int, error) {
	off, err := c.Grower.Grow(n)
	if err != nil {
		return 0, err
	}
	c.GrowCalls++
	c.GrowBytes += int64(n)
	return off, nil
}

// Reset clears the counters.
func (c *Counting) Reset() {
	c.GrowCalls = 0
	c.GrowBytes = 0
}
