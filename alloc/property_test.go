package alloc

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// Test_Property_RandomOps drives a seeded mix of alloc, free, realloc and
// calloc and verifies after every step that live blocks are disjoint, keep
// their contents, and that the heap passes Check.
func Test_Property_RandomOps(t *testing.T) {
	for _, seed := range []int64{1, 42, 2024} {
		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			runRandomOps(t, seed, 1500)
		})
	}
}

type liveBlock struct {
	n    int
	fill byte
}

func runRandomOps(t *testing.T, seed int64, steps int) {
	a, _ := newSizedAllocator(t, 1<<22, &Config{CheckEveryOp: true})
	rng := rand.New(rand.NewSource(seed))
	live := make(map[Ptr]liveBlock)
	var order []Ptr // insertion order, for deterministic victim choice

	pick := func() Ptr {
		for {
			i := rng.Intn(len(order))
			if _, ok := live[order[i]]; ok {
				return order[i]
			}
			order = append(order[:i], order[i+1:]...)
		}
	}
	size := func() int {
		switch rng.Intn(10) {
		case 0:
			return 1000 + rng.Intn(6000)
		case 1, 2:
			return 100 + rng.Intn(400)
		default:
			return 1 + rng.Intn(64)
		}
	}

	for step := range steps {
		fill := byte(step%250 + 1)
		switch op := rng.Intn(10); {
		case op < 5 || len(live) == 0:
			n := size()
			p, err := a.Alloc(n)
			require.NoError(t, err, "step %d", step)
			require.NotContains(t, live, p, "step %d: 0x%x handed out twice", step, uint32(p))
			fillBlock(a, p, n, fill)
			live[p] = liveBlock{n, fill}
			order = append(order, p)

		case op < 8:
			p := pick()
			b := live[p]
			requireFilled(t, a, p, b.n, b.fill)
			require.NoError(t, a.Free(p), "step %d", step)
			delete(live, p)

		case op < 9:
			p := pick()
			b := live[p]
			n := size()
			q, err := a.Realloc(p, n)
			require.NoError(t, err, "step %d", step)
			requireFilled(t, a, q, min(b.n, n), b.fill)
			delete(live, p)
			fillBlock(a, q, n, fill)
			live[q] = liveBlock{n, fill}
			order = append(order, q)

		default:
			n := 1 + rng.Intn(32)
			p, err := a.Calloc(n, 4)
			require.NoError(t, err, "step %d", step)
			requireFilled(t, a, p, n*4, 0)
			fillBlock(a, p, n*4, fill)
			live[p] = liveBlock{n * 4, fill}
			order = append(order, p)
		}

		if step%50 == 0 {
			ptrs := make([]Ptr, 0, len(live))
			for p := range live {
				ptrs = append(ptrs, p)
			}
			requireDisjoint(t, a, ptrs)
		}
	}

	for p, b := range live {
		requireFilled(t, a, p, b.n, b.fill)
		require.NoError(t, a.Free(p))
	}
	requireHeapOK(t, a)

	// Everything merged back into one block.
	require.Len(t, freeBlocks(a), 1)
	require.Zero(t, a.Stats().LiveBlocks)
}

func fillBlock(a *Allocator, p Ptr, n int, fill byte) {
	b := a.Bytes(p)[:n]
	for i := range b {
		b[i] = fill
	}
}
