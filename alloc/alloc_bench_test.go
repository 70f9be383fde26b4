package alloc

import (
	"math/rand"
	"testing"
)

func BenchmarkAllocFree_Small(b *testing.B) {
	a, _ := newSizedAllocator(b, 1<<24, nil)
	b.ReportAllocs()
	for b.Loop() {
		p, err := a.Alloc(48)
		if err != nil {
			b.Fatal(err)
		}
		if err := a.Free(p); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkAllocFree_Mixed(b *testing.B) {
	a, _ := newSizedAllocator(b, 1<<26, nil)
	rng := rand.New(rand.NewSource(7))
	ring := make([]Ptr, 256)
	b.ReportAllocs()
	i := 0
	for b.Loop() {
		slot := i % len(ring)
		if ring[slot] != Nil {
			if err := a.Free(ring[slot]); err != nil {
				b.Fatal(err)
			}
		}
		p, err := a.Alloc(8 + rng.Intn(2048))
		if err != nil {
			b.Fatal(err)
		}
		ring[slot] = p
		i++
	}
}
