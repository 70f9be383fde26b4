package trace

import "math/rand"

// GenOptions shapes a synthetic trace.
type GenOptions struct {
	Ops      int     // Approximate number of operations before the final frees
	MaxLive  int     // Cap on simultaneously live ids
	MinSize  int     // Smallest request
	MaxSize  int     // Largest request
	Realloc  float64 // Fraction of steps that reallocate a live id
	FreeBias float64 // Probability of freeing instead of allocating when both are possible
}

// DefaultGenOptions produces a small mixed workload.
var DefaultGenOptions = GenOptions{
	Ops:      2000,
	MaxLive:  200,
	MinSize:  1,
	MaxSize:  4096,
	Realloc:  0.1,
	FreeBias: 0.45,
}

// Generate builds a random, valid trace from seed. Every id is freed by the
// end, so a correct allocator ends with an empty heap.
func Generate(seed int64, opts GenOptions) *Trace {
	if opts.MaxLive <= 0 {
		opts.MaxLive = 1
	}
	if opts.MinSize <= 0 {
		opts.MinSize = 1
	}
	opts.MaxSize = max(opts.MaxSize, opts.MinSize)

	rng := rand.New(rand.NewSource(seed))
	size := func() int { return opts.MinSize + rng.Intn(opts.MaxSize-opts.MinSize+1) }

	t := &Trace{Weight: 1}
	var live []int
	nextID := 0
	cur := map[int]int{}
	total, peak := 0, 0

	for range opts.Ops {
		switch r := rng.Float64(); {
		case len(live) > 0 && r < opts.Realloc:
			id := live[rng.Intn(len(live))]
			n := size()
			t.Ops = append(t.Ops, Op{Kind: OpRealloc, ID: id, Size: n})
			total += n - cur[id]
			cur[id] = n
		case len(live) > 0 && (len(live) >= opts.MaxLive || r < opts.Realloc+opts.FreeBias):
			i := rng.Intn(len(live))
			id := live[i]
			live[i] = live[len(live)-1]
			live = live[:len(live)-1]
			t.Ops = append(t.Ops, Op{Kind: OpFree, ID: id})
			total -= cur[id]
			delete(cur, id)
		default:
			n := size()
			t.Ops = append(t.Ops, Op{Kind: OpAlloc, ID: nextID, Size: n})
			live = append(live, nextID)
			cur[nextID] = n
			total += n
			nextID++
		}
		peak = max(peak, total)
	}
	for _, id := range live {
		t.Ops = append(t.Ops, Op{Kind: OpFree, ID: id})
	}

	t.NumIDs = nextID
	t.SuggestedHeap = peak
	return t
}
