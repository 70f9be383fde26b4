//go:build linux || darwin

package region

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Anon reserves address space with an inaccessible anonymous mapping and
// commits pages with mprotect as the break advances. The mapping never moves.
type Anon struct {
	data      []byte
	brk       int
	committed int
	pageSize  int
}

// NewAnon reserves maxHeap bytes of address space (format.DefaultMaxHeap
// when maxHeap <= 0). No memory is committed until Grow.
func NewAnon(maxHeap int) (*Anon, error) {
	n, err := checkMax(maxHeap)
	if err != nil {
		return nil, err
	}
	data, err := unix.Mmap(-1, 0, n, unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("region: reserve %d bytes: %w", n, err)
	}
	return &Anon{data: data, pageSize: unix.Getpagesize()}, nil
}

// Grow commits enough pages to cover the new break.
func (a *Anon) Grow(n int) (int, error) {
	if a.data == nil {
		return 0, ErrClosed
	}
	if err := checkGrow(a.brk, n, len(a.data)); err != nil {
		return 0, err
	}
	newBrk := a.brk + n
	if newBrk > a.committed {
		end := min((newBrk+a.pageSize-1)/a.pageSize*a.pageSize, len(a.data))
		if err := unix.Mprotect(a.data[a.committed:end], unix.PROT_READ|unix.PROT_WRITE); err != nil {
			return 0, fmt.Errorf("%w: commit: %w", ErrExhausted, err)
		}
		a.committed = end
	}
	old := a.brk
	a.brk = newBrk
	return old, nil
}

// Bytes returns the region up to the break.
func (a *Anon) Bytes() []byte {
	if a.data == nil {
		return nil
	}
	return a.data[:a.brk]
}

// Close releases the reservation. Payload slices become invalid.
func (a *Anon) Close() error {
	if a.data == nil {
		return nil
	}
	err := unix.Munmap(a.data)
	a.data = nil
	a.brk, a.committed = 0, 0
	return err
}
