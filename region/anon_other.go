//go:build !linux && !darwin

package region

// Anon falls back to a reserved byte slice where anonymous mmap is not used.
type Anon struct {
	*Mem
}

// NewAnon reserves maxHeap bytes (format.DefaultMaxHeap when maxHeap <= 0).
func NewAnon(maxHeap int) (*Anon, error) {
	m, err := NewMem(maxHeap)
	if err != nil {
		return nil, err
	}
	return &Anon{Mem: m}, nil
}

// Close releases the reservation.
func (a *Anon) Close() error {
	a.Mem = &Mem{}
	return nil
}
