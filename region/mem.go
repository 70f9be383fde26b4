package region

// Mem is a region backed by a byte slice reserved once at construction. Its
// base never moves, so payload slices taken from Bytes stay valid while the
// break advances.
type Mem struct {
	data []byte
	brk  int
}

// NewMem reserves maxHeap bytes (format.DefaultMaxHeap when maxHeap <= 0).
func NewMem(maxHeap int) (*Mem, error) {
	n, err := checkMax(maxHeap)
	if err != nil {
		return nil, err
	}
	return &Mem{data: make([]byte, n)}, nil
}

// Grow moves the break up by n bytes.
func (m *Mem) Grow(n int) (int, error) {
	if err := checkGrow(m.brk, n, len(m.data)); err != nil {
		return 0, err
	}
	old := m.brk
	m.brk += n
	return old, nil
}

// Bytes returns the region up to the break.
func (m *Mem) Bytes() []byte { return m.data[:m.brk] }

// Len returns the current break.
func (m *Mem) Len() int { return m.brk }

// Cap returns the reservation size.
func (m *Mem) Cap() int { return len(m.data) }

// Reset moves the break back to zero and clears the used bytes so the region
// can host a fresh heap.
func (m *Mem) Reset() {
	clear(m.data[:m.brk])
	m.brk = 0
}
