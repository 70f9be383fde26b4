package alloc

import (
	"bytes"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/segalloc/internal/format"
	"github.com/joshuapare/segalloc/region"
)

// newTestAllocator builds an allocator over a fresh 1 MiB Mem region wrapped
// in a grow counter.
func newTestAllocator(t testing.TB, cfg *Config) (*Allocator, *region.Counting) {
	t.Helper()
	return newSizedAllocator(t, 1<<20, cfg)
}

func newSizedAllocator(t testing.TB, maxHeap int, cfg *Config) (*Allocator, *region.Counting) {
	t.Helper()
	m, err := region.NewMem(maxHeap)
	require.NoError(t, err)
	r := region.NewCounting(m)
	a, err := New(r, nil, cfg)
	require.NoError(t, err)
	return a, r
}

// mustAlloc allocates n bytes and fills them with fill.
func mustAlloc(t testing.TB, a *Allocator, n int, fill byte) Ptr {
	t.Helper()
	p, err := a.Alloc(n)
	require.NoError(t, err)
	require.NotEqual(t, Nil, p)
	b := a.Bytes(p)
	require.GreaterOrEqual(t, len(b), n)
	for i := range n {
		b[i] = fill
	}
	return p
}

// requireFilled asserts the first n bytes of p all equal fill.
func requireFilled(t testing.TB, a *Allocator, p Ptr, n int, fill byte) {
	t.Helper()
	b := a.Bytes(p)
	require.GreaterOrEqual(t, len(b), n)
	require.True(t, bytes.Equal(b[:n], bytes.Repeat([]byte{fill}, n)),
		"block 0x%x lost its contents", uint32(p))
}

// requireHeapOK fails the test on any heap violation.
func requireHeapOK(t testing.TB, a *Allocator) {
	t.Helper()
	require.NoError(t, a.Check())
}

// blockAt returns the block starting at p as seen by Walk.
func blockAt(t testing.TB, a *Allocator, p Ptr) Block {
	t.Helper()
	var found *Block
	a.Walk(func(b Block) bool {
		if b.Ptr == p {
			found = &b
			return false
		}
		return b.Ptr < p
	})
	require.NotNil(t, found, "no block starts at 0x%x", uint32(p))
	return *found
}

// freeBlocks returns every free block in address order.
func freeBlocks(a *Allocator) []Block {
	var out []Block
	a.Walk(func(b Block) bool {
		if !b.Alloc {
			out = append(out, b)
		}
		return true
	})
	return out
}

// requireDisjoint asserts that no two live blocks overlap, headers included.
func requireDisjoint(t testing.TB, a *Allocator, live []Ptr) {
	t.Helper()
	ptrs := append([]Ptr(nil), live...)
	sort.Slice(ptrs, func(i, j int) bool { return ptrs[i] < ptrs[j] })
	for i := 1; i < len(ptrs); i++ {
		end := int(ptrs[i-1]) + a.UsableSize(ptrs[i-1])
		require.LessOrEqual(t, end, format.HeaderOff(uint32(ptrs[i])),
			"blocks 0x%x and 0x%x overlap", uint32(ptrs[i-1]), uint32(ptrs[i]))
	}
}

// poke overwrites a heap word behind the allocator's back.
func poke(a *Allocator, off int, v uint32) {
	format.PutU32(a.heap, off, v)
}

// stubRegion is a Region whose grants can be made to misbehave.
type stubRegion struct {
	data  []byte
	skew  int // added to every returned offset after the first
	calls int
}

func (s *stubRegion) Grow(n int) (int, error) {
	old := len(s.data)
	s.data = append(s.data, make([]byte, n)...)
	s.calls++
	if s.calls > 1 {
		return old + s.skew, nil
	}
	return old, nil
}

func (s *stubRegion) Bytes() []byte { return s.data }
