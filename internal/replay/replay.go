// Package replay drives an allocator through a trace and checks every result:
// pointers must be aligned and inside the heap, live blocks must not
// overlap, and each block's contents must survive until it is freed.
package replay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/joshuapare/segalloc/alloc"
	"github.com/joshuapare/segalloc/internal/format"
	"github.com/joshuapare/segalloc/internal/logger"
	"github.com/joshuapare/segalloc/internal/trace"
)

// ctxCheckInterval is how many ops run between context checks.
const ctxCheckInterval = 1024

var (
	// ErrMisaligned indicates a returned pointer that is not 8-byte aligned.
	ErrMisaligned = errors.New("replay: misaligned pointer")

	// ErrOutOfHeap indicates a block that does not lie inside the heap.
	ErrOutOfHeap = errors.New("replay: block outside heap")

	// ErrOverlap indicates a block overlapping another live block.
	ErrOverlap = errors.New("replay: blocks overlap")

	// ErrPayload indicates a live block whose contents changed.
	ErrPayload = errors.New("replay: payload corrupted")

	// ErrLiveID indicates an alloc for an id whose block is still live.
	ErrLiveID = errors.New("replay: id already live")

	// ErrAlloc indicates the allocator returned an error or a nil pointer.
	ErrAlloc = errors.New("replay: allocator failed")
)

// OpError reports the op at which replay stopped.
type OpError struct {
	Index int
	Op    trace.Op
	Err   error
}

func (e *OpError) Error() string {
	if e.Op.Line > 0 {
		return fmt.Sprintf("op %d (line %d, %v): %v", e.Index, e.Op.Line, e.Op, e.Err)
	}
	return fmt.Sprintf("op %d (%v): %v", e.Index, e.Op, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// Options tunes a replay.
type Options struct {
	// Check runs alloc.Check after every op.
	Check bool

	// Logger receives progress records. Nil selects the process logger.
	Logger *slog.Logger
}

// Result summarizes a completed replay.
type Result struct {
	Trace       string
	Ops         int
	PeakPayload int64 // Largest sum of live requested bytes
	HeapSize    int
	Utilization float64 // PeakPayload / HeapSize
	Stats       alloc.Stats
	Elapsed     time.Duration
}

// Allocator is the part of *alloc.Allocator a replay drives.
type Allocator interface {
	Alloc(n int) (alloc.Ptr, error)
	Realloc(p alloc.Ptr, n int) (alloc.Ptr, error)
	Free(p alloc.Ptr) error
	Bytes(p alloc.Ptr) []byte
	HeapSize() int
	Check() error
	Stats() alloc.Stats
}

type block struct {
	ptr  alloc.Ptr
	size int
}

type replayer struct {
	a     Allocator
	opts  Options
	log   *slog.Logger
	live  map[int]block // by trace id
	spans []block       // live blocks sorted by ptr
	total int64
	peak  int64
}

// Run replays tr against a. The context is checked periodically.
func Run(ctx context.Context, a Allocator, tr *trace.Trace, opts Options) (*Result, error) {
	r := &replayer{
		a:    a,
		opts: opts,
		log:  opts.Logger,
		live: make(map[int]block, tr.NumIDs),
	}
	if r.log == nil {
		r.log = logger.L
	}

	start := time.Now()
	for i, op := range tr.Ops {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if err := r.step(op); err != nil {
			return nil, &OpError{Index: i, Op: op, Err: err}
		}
		if opts.Check {
			if err := a.Check(); err != nil {
				return nil, &OpError{Index: i, Op: op, Err: err}
			}
		}
	}

	res := &Result{
		Trace:       tr.Name,
		Ops:         len(tr.Ops),
		PeakPayload: r.peak,
		HeapSize:    a.HeapSize(),
		Stats:       a.Stats(),
		Elapsed:     time.Since(start),
	}
	if res.HeapSize > 0 {
		res.Utilization = float64(res.PeakPayload) / float64(res.HeapSize)
	}
	r.log.Info("replay done", "trace", tr.Name, "ops", res.Ops, "heap", res.HeapSize,
		"util", fmt.Sprintf("%.1f%%", res.Utilization*100))
	return res, nil
}

func (r *replayer) step(op trace.Op) error {
	switch op.Kind {
	case trace.OpAlloc:
		if b, ok := r.live[op.ID]; ok {
			return fmt.Errorf("%w: id %d holds 0x%x", ErrLiveID, op.ID, uint32(b.ptr))
		}
		p, err := r.a.Alloc(op.Size)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrAlloc, err)
		}
		return r.add(op.ID, p, op.Size)

	case trace.OpRealloc:
		old := r.live[op.ID]
		if err := r.verify(op.ID, old); err != nil {
			return err
		}
		p, err := r.a.Realloc(old.ptr, op.Size)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrAlloc, err)
		}
		r.drop(op.ID)
		if op.Size == 0 {
			return nil
		}
		// The preserved prefix must still carry the old pattern.
		if err := r.verify(op.ID, block{ptr: p, size: min(old.size, op.Size)}); err != nil {
			return err
		}
		return r.add(op.ID, p, op.Size)

	case trace.OpFree:
		b, ok := r.live[op.ID]
		if !ok {
			// Realloc to zero already released it.
			return nil
		}
		if err := r.verify(op.ID, b); err != nil {
			return err
		}
		r.drop(op.ID)
		return r.a.Free(b.ptr)
	}
	return fmt.Errorf("unknown op kind %v", op.Kind)
}

// add validates a fresh block, fills it with the id's pattern and records it.
func (r *replayer) add(id int, p alloc.Ptr, size int) error {
	if size == 0 {
		if p != alloc.Nil {
			return fmt.Errorf("%w: zero-byte request returned 0x%x", ErrAlloc, uint32(p))
		}
		return nil
	}
	if p == alloc.Nil {
		return fmt.Errorf("%w: nil pointer for %d bytes", ErrAlloc, size)
	}
	if uint32(p)&format.BlockAlignmentMask != 0 {
		return fmt.Errorf("%w: 0x%x", ErrMisaligned, uint32(p))
	}
	if int(p) < format.PrologueBytes || int(p)+size > r.a.HeapSize() {
		return fmt.Errorf("%w: [0x%x, 0x%x) heap 0x%x", ErrOutOfHeap, uint32(p), int(p)+size, r.a.HeapSize())
	}
	b := block{ptr: p, size: size}
	if err := r.insertSpan(b); err != nil {
		return err
	}

	payload := r.a.Bytes(p)
	if len(payload) < size {
		return fmt.Errorf("%w: %d usable bytes for a %d-byte request", ErrOutOfHeap, len(payload), size)
	}
	fill(payload[:size], id)

	r.live[id] = b
	r.total += int64(size)
	r.peak = max(r.peak, r.total)
	return nil
}

func (r *replayer) drop(id int) {
	b := r.live[id]
	delete(r.live, id)
	r.total -= int64(b.size)
	i := sort.Search(len(r.spans), func(i int) bool { return r.spans[i].ptr >= b.ptr })
	if i < len(r.spans) && r.spans[i].ptr == b.ptr {
		r.spans = append(r.spans[:i], r.spans[i+1:]...)
	}
}

// insertSpan adds b to the sorted live set, rejecting overlap with either
// neighbour. A block's header word counts as part of it.
func (r *replayer) insertSpan(b block) error {
	start := int(b.ptr) - format.WordSize
	i := sort.Search(len(r.spans), func(i int) bool { return r.spans[i].ptr >= b.ptr })
	if i > 0 {
		prev := r.spans[i-1]
		if int(prev.ptr)+prev.size > start {
			return fmt.Errorf("%w: 0x%x+%d and 0x%x+%d", ErrOverlap, uint32(prev.ptr), prev.size, uint32(b.ptr), b.size)
		}
	}
	if i < len(r.spans) {
		next := r.spans[i]
		if int(b.ptr)+b.size > int(next.ptr)-format.WordSize {
			return fmt.Errorf("%w: 0x%x+%d and 0x%x+%d", ErrOverlap, uint32(b.ptr), b.size, uint32(next.ptr), next.size)
		}
	}
	r.spans = append(r.spans, block{})
	copy(r.spans[i+1:], r.spans[i:])
	r.spans[i] = b
	return nil
}

func (r *replayer) verify(id int, b block) error {
	payload := r.a.Bytes(b.ptr)
	if len(payload) < b.size {
		return fmt.Errorf("%w: id %d at 0x%x shrank to %d bytes", ErrPayload, id, uint32(b.ptr), len(payload))
	}
	for i := range b.size {
		if payload[i] != pattern(id, i) {
			return fmt.Errorf("%w: id %d at 0x%x byte %d", ErrPayload, id, uint32(b.ptr), i)
		}
	}
	return nil
}

// pattern is the byte stored at offset i of id's block.
func pattern(id, i int) byte {
	return byte(id*131 + i*7 + 1)
}

func fill(b []byte, id int) {
	for i := range b {
		b[i] = pattern(id, i)
	}
}
