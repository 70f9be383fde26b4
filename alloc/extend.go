package alloc

import (
	"fmt"

	"github.com/joshuapare/segalloc/internal/buf"
	"github.com/joshuapare/segalloc/internal/format"
)

// minExtendWords is the smallest extension: one minimum-size block.
const minExtendWords = format.MinBlockSize / format.WordSize

// extend grows the heap by words words (rounded up to an even count, at
// least minExtendWords) and publishes the new space as a free block.
//
// The old epilogue header becomes the new block's header and a fresh
// epilogue is written at the new top. The block is coalesced with a free
// predecessor and inserted into its bucket before it is returned. On a grow
// failure nothing in the heap has been written.
func (a *Allocator) extend(words int) (Ptr, error) {
	words = max(words+words&1, minExtendWords)
	n, ok := buf.MulOverflowSafe(words, format.WordSize)
	if !ok || uint64(n) > uint64(format.MaxBlockSize) {
		return Nil, fmt.Errorf("%w: extend by %d words", ErrTooLarge, words)
	}

	brk := len(a.heap)
	off, err := a.r.Grow(n)
	if err != nil {
		return Nil, fmt.Errorf("%w: grow %d bytes: %w", ErrNoSpace, n, err)
	}
	if off != brk {
		return Nil, fmt.Errorf("%w: grant at %d, break was %d", ErrRegion, off, brk)
	}
	a.heap = a.r.Bytes()
	a.stats.GrowCalls++
	a.stats.GrowBytes += int64(n)

	p := Ptr(off)
	size := uint32(n)
	prevAlloc := format.IsPrevAlloc(a.header(p))
	a.setFree(p, size, prevAlloc)
	a.setHeader(p+Ptr(size), format.Pack(0, true, false))

	if logAlloc {
		a.log.Debug("alloc: heap extended", "bytes", n, "heap", len(a.heap))
	}

	p = a.coalesce(p)
	a.insert(p)
	return p, nil
}
