package alloc

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joshuapare/segalloc/dirty"
	"github.com/joshuapare/segalloc/internal/buf"
	"github.com/joshuapare/segalloc/internal/format"
	"github.com/joshuapare/segalloc/internal/logger"
)

// Runtime debug flag for per-operation logging, controlled by SEGALLOC_LOG_ALLOC.
var logAlloc = os.Getenv("SEGALLOC_LOG_ALLOC") != ""

// firstPayload is the payload offset of the first block after the prologue.
const firstPayload = Ptr(format.PrologueBytes)

// Allocator manages a segregated free-list heap inside a Region.
//
// All metadata (bucket heads, boundary tags, free-list links) lives in the
// heap bytes themselves; the struct only caches the region's current view.
// An Allocator is NOT safe for concurrent use.
type Allocator struct {
	r    Region
	dt   DirtyTracker
	cfg  Config
	log  *slog.Logger
	heap []byte // r.Bytes() as of the last grow

	stats Stats
}

// New initializes a fresh heap in r and returns an allocator for it.
//
// Parameters:
//   - r: an empty region; its first grant becomes heap offset 0
//   - dt: receives every heap word written (nil to skip dirty tracking)
//   - cfg: allocator configuration (nil for DefaultConfig)
//
// The heap is laid out as bucket slots, prologue and epilogue, then extended
// once by cfg.ChunkSize. Any failure is reported wrapped in ErrInit.
func New(r Region, dt DirtyTracker, cfg *Config) (*Allocator, error) {
	a, err := newAllocator(r, dt, cfg)
	if err != nil {
		return nil, err
	}

	if n := len(r.Bytes()); n != 0 {
		return nil, fmt.Errorf("%w: region already holds %d bytes", ErrInit, n)
	}
	off, err := r.Grow(format.PrologueBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInit, err)
	}
	if off != 0 {
		return nil, fmt.Errorf("%w: %w: first grant at %d", ErrInit, ErrRegion, off)
	}
	a.heap = r.Bytes()
	a.stats.GrowCalls++
	a.stats.GrowBytes += format.PrologueBytes

	for i := range format.NumBuckets {
		a.put(int(format.BucketSlot(i)), format.NilOffset)
	}
	a.put(0, 0)
	a.put(format.PrologueHeaderOffset-format.WordSize, 0)
	prologue := format.Pack(format.PrologueSize, true, true)
	a.put(format.PrologueHeaderOffset, prologue)
	a.put(format.ProloguePtr, prologue)
	a.put(format.InitialEpilogueOffset, format.Pack(0, true, true))

	if _, err := a.extend(a.cfg.ChunkSize / format.WordSize); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInit, err)
	}

	if logAlloc {
		a.log.Debug("alloc: heap initialized", "heap", len(a.heap), "chunk", a.cfg.ChunkSize)
	}
	return a, nil
}

// Attach returns an allocator for a heap that New already laid out in r,
// typically a file-backed region reopened after a restart. The heap is
// verified with Check before use.
func Attach(r Region, dt DirtyTracker, cfg *Config) (*Allocator, error) {
	a, err := newAllocator(r, dt, cfg)
	if err != nil {
		return nil, err
	}
	a.heap = r.Bytes()

	if len(a.heap) < format.PrologueBytes+format.MinBlockSize {
		return nil, fmt.Errorf("%w: heap of %d bytes is too short", ErrInit, len(a.heap))
	}
	if err := a.Check(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInit, err)
	}

	a.Walk(func(b Block) bool {
		if b.Alloc {
			a.stats.LiveBlocks++
			a.stats.LiveBytes += int64(b.Size)
		}
		return true
	})
	return a, nil
}

func newAllocator(r Region, dt DirtyTracker, cfg *Config) (*Allocator, error) {
	c := DefaultConfig
	if cfg != nil {
		c = *cfg
	}
	c = c.withDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if dt == nil {
		dt = dirty.Discard
	}
	l := c.Logger
	if l == nil {
		l = logger.L
	}
	return &Allocator{r: r, dt: dt, cfg: c, log: l}, nil
}

// Alloc returns a pointer to a block with at least n usable bytes.
//
// n == 0 returns (Nil, nil) without touching the heap. The pointer is 8-byte
// aligned. When no free block fits, the heap grows by max(adjusted size,
// ChunkSize); if that fails the error wraps ErrNoSpace and the heap is
// unchanged. A CheckEveryOp violation is returned with the placed block so
// the caller can still free it.
func (a *Allocator) Alloc(n int) (Ptr, error) {
	a.stats.AllocCalls++
	if n == 0 {
		return Nil, nil
	}

	asize, err := adjustSize(n)
	if err != nil {
		return Nil, err
	}

	p := a.findFit(asize)
	if p == Nil {
		a.stats.AllocSlowPath++
		grow := max(asize, uint32(a.cfg.ChunkSize))
		p, err = a.extend(int(grow / format.WordSize))
		if err != nil {
			if logAlloc {
				a.log.Debug("alloc: extend failed", "n", n, "asize", asize, "err", err)
			}
			return Nil, err
		}
	} else {
		a.stats.AllocFastPath++
	}

	a.place(p, asize)

	if logAlloc {
		a.log.Debug("alloc", "n", n, "asize", asize, "ptr", uint32(p), "block", a.blockSize(p))
	}
	if err := a.checkAfter("alloc"); err != nil {
		return p, err
	}
	return p, nil
}

// adjustSize converts a request into a block size: header included, rounded
// up to 8 and floored at the minimum block size.
func adjustSize(n int) (uint32, error) {
	if n < 0 {
		return 0, fmt.Errorf("%w: %d", ErrBadSize, n)
	}
	sz, ok := buf.AddOverflowSafe(n, format.WordSize)
	if ok {
		sz, ok = buf.RoundUpSafe(sz, format.BlockAlignment)
	}
	if !ok || uint64(sz) > uint64(format.MaxBlockSize) {
		return 0, fmt.Errorf("%w: %d bytes", ErrTooLarge, n)
	}
	return max(uint32(sz), format.MinBlockSize), nil
}

// place carves asize bytes for allocation out of the free block p, which
// must be at least asize bytes. A remainder of at least MinBlockSize is
// split off and reinserted.
func (a *Allocator) place(p Ptr, asize uint32) {
	hdr := a.header(p)
	size := format.SizeOf(hdr)
	prevAlloc := format.IsPrevAlloc(hdr)
	a.remove(p)

	if size-asize >= format.MinBlockSize {
		a.setHeader(p, format.Pack(asize, true, prevAlloc))
		rest := p + Ptr(asize)
		// The successor of rest already records a free predecessor.
		a.setFree(rest, size-asize, true)
		a.insert(rest)
		a.stats.SplitCount++
		size = asize
	} else {
		a.setHeader(p, format.Pack(size, true, prevAlloc))
		a.setPrevAlloc(p+Ptr(size), true)
	}

	a.stats.BytesAllocated += int64(size)
	a.stats.LiveBlocks++
	a.stats.LiveBytes += int64(size)
}

// Free releases the block at p. Free(Nil) is a no-op.
//
// p must come from Alloc, Calloc or Realloc on this allocator and must not
// have been freed already; violating this corrupts the heap and is only
// caught by Check. A pointer outside the heap is rejected with ErrBadPtr.
func (a *Allocator) Free(p Ptr) error {
	a.stats.FreeCalls++
	if p == Nil {
		return nil
	}
	if err := a.validate(p); err != nil {
		return err
	}

	hdr := a.header(p)
	size := format.SizeOf(hdr)
	a.setFree(p, size, format.IsPrevAlloc(hdr))
	a.setPrevAlloc(p+Ptr(size), false)

	a.stats.BytesFreed += int64(size)
	a.stats.LiveBlocks--
	a.stats.LiveBytes -= int64(size)

	merged := a.coalesce(p)
	a.insert(merged)

	if logAlloc {
		a.log.Debug("free", "ptr", uint32(p), "block", size, "merged", uint32(merged),
			"merged_size", a.blockSize(merged))
	}
	return a.checkAfter("free")
}

// Realloc resizes the block at p to hold n bytes.
//
// Realloc(p, 0) frees p and returns Nil; Realloc(Nil, n) is Alloc(n).
// Otherwise a new block is allocated, the first min(UsableSize(p), n) bytes
// are copied over and p is freed. If the new allocation fails p stays valid
// and untouched.
func (a *Allocator) Realloc(p Ptr, n int) (Ptr, error) {
	a.stats.ReallocCalls++
	if n == 0 {
		return Nil, a.Free(p)
	}
	if p == Nil {
		return a.Alloc(n)
	}
	if err := a.validate(p); err != nil {
		return Nil, err
	}

	keep := min(a.usable(p), n)
	np, err := a.Alloc(n)
	if np == Nil {
		return Nil, err
	}
	copy(a.payload(np), a.payload(p)[:keep])
	a.dt.Add(int(np), keep)

	if ferr := a.Free(p); err == nil {
		err = ferr
	}
	return np, err
}

// Calloc allocates room for count elements of size bytes each and zeroes it.
// A zero total behaves like Alloc(0).
func (a *Allocator) Calloc(count, size int) (Ptr, error) {
	a.stats.CallocCalls++
	if count < 0 || size < 0 {
		return Nil, fmt.Errorf("%w: %d x %d", ErrBadSize, count, size)
	}
	total, ok := buf.MulOverflowSafe(count, size)
	if !ok {
		return Nil, fmt.Errorf("%w: %d x %d overflows", ErrTooLarge, count, size)
	}

	p, err := a.Alloc(total)
	if err != nil || p == Nil {
		return p, err
	}
	clear(a.payload(p))
	a.dt.Add(int(p), a.usable(p))
	return p, nil
}

// Bytes returns the usable payload of the live block at p. The slice aliases
// the heap and stays valid until the block is freed. Bytes(Nil) is nil.
func (a *Allocator) Bytes(p Ptr) []byte {
	if p == Nil || a.validate(p) != nil {
		return nil
	}
	return a.payload(p)
}

// UsableSize returns how many bytes the block at p can hold, or 0 for Nil or
// a pointer outside the heap.
func (a *Allocator) UsableSize(p Ptr) int {
	if p == Nil || a.validate(p) != nil {
		return 0
	}
	return a.usable(p)
}

// HeapSize returns the number of bytes the heap has taken from its region.
func (a *Allocator) HeapSize() int { return len(a.heap) }

// Heap returns the raw heap bytes. Intended for diagnostics and tests.
func (a *Allocator) Heap() []byte { return a.heap }

// Config returns the effective configuration.
func (a *Allocator) Config() Config { return a.cfg }

// Stats returns a copy of the allocator counters.
func (a *Allocator) Stats() Stats { return a.stats }

// validate rejects pointers that cannot name a block inside the heap. It does
// not detect stale pointers into the middle of a block.
func (a *Allocator) validate(p Ptr) error {
	if p < firstPayload || p&format.BlockAlignmentMask != 0 ||
		int(p) > len(a.heap)-format.MinBlockSize {
		return fmt.Errorf("%w: 0x%x (heap 0x%x)", ErrBadPtr, uint32(p), len(a.heap))
	}
	size := a.blockSize(p)
	if size < format.MinBlockSize || int(p)+int(size) > len(a.heap) {
		return fmt.Errorf("%w: 0x%x has block size %d", ErrBadPtr, uint32(p), size)
	}
	return nil
}

func (a *Allocator) checkAfter(op string) error {
	if !a.cfg.CheckEveryOp {
		return nil
	}
	if err := a.Check(); err != nil {
		a.log.Error("alloc: heap check failed", "op", op, "err", err)
		return err
	}
	return nil
}

// ============================================================================
// Heap word access
// ============================================================================

func (a *Allocator) get(off int) uint32 {
	return format.ReadU32(a.heap, off)
}

// put writes one heap word and reports it to the dirty tracker.
func (a *Allocator) put(off int, v uint32) {
	format.PutU32(a.heap, off, v)
	a.dt.Add(off, format.WordSize)
}

func (a *Allocator) header(p Ptr) uint32 {
	return a.get(format.HeaderOff(uint32(p)))
}

func (a *Allocator) setHeader(p Ptr, w uint32) {
	a.put(format.HeaderOff(uint32(p)), w)
}

func (a *Allocator) blockSize(p Ptr) uint32 {
	return format.SizeOf(a.header(p))
}

// setFree writes matching free header and footer tags for the block at p.
func (a *Allocator) setFree(p Ptr, size uint32, prevAlloc bool) {
	w := format.Pack(size, false, prevAlloc)
	a.setHeader(p, w)
	a.put(format.FooterOff(uint32(p), size), w)
}

// setPrevAlloc updates the prev-allocated bit of the block at p. A free
// block's footer mirrors its header, so it is rewritten too.
func (a *Allocator) setPrevAlloc(p Ptr, prevAlloc bool) {
	hdr := a.header(p)
	w := format.WithPrevAlloc(hdr, prevAlloc)
	if w == hdr {
		return
	}
	a.setHeader(p, w)
	if size := format.SizeOf(w); !format.IsAlloc(w) && size != 0 {
		a.put(format.FooterOff(uint32(p), size), w)
	}
}

func (a *Allocator) usable(p Ptr) int {
	return int(a.blockSize(p)) - format.WordSize
}

func (a *Allocator) payload(p Ptr) []byte {
	end := int(p) + a.usable(p)
	return a.heap[p:end:end]
}
