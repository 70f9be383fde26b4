package alloc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/segalloc/internal/format"
)

// setupHoles returns an allocator with a free 32-byte block x between
// allocated neighbours, plus the big free block at the top.
func setupHoles(t *testing.T) (*Allocator, Ptr, Ptr) {
	t.Helper()
	a, _ := newTestAllocator(t, nil)
	x := mustAlloc(t, a, 24, 1)
	y := mustAlloc(t, a, 24, 2)
	require.NoError(t, a.Free(x))
	requireHeapOK(t, a)
	return a, x, y
}

func requireViolation(t *testing.T, err error, kind ViolationKind) *Violation {
	t.Helper()
	require.Error(t, err)
	require.ErrorIs(t, err, ErrCorrupt)
	var v *Violation
	require.True(t, errors.As(err, &v), "got %T", err)
	require.Equal(t, kind, v.Kind, "violation: %v", err)
	return v
}

func Test_Check_Fresh(t *testing.T) {
	a, _ := newTestAllocator(t, nil)
	requireHeapOK(t, a)
}

func Test_Check_CorruptedPrevLink(t *testing.T) {
	a, x, _ := setupHoles(t)
	poke(a, format.PrevLinkOff(uint32(x)), 0x1238)

	v := requireViolation(t, a.Check(), KindBadLink)
	assert.Equal(t, x, v.Off)
	assert.Equal(t, selectBucket(32), v.Bucket)
}

func Test_Check_AllocatedInList(t *testing.T) {
	a, x, _ := setupHoles(t)
	hdr := format.ReadU32(a.heap, format.HeaderOff(uint32(x)))
	poke(a, format.HeaderOff(uint32(x)), hdr|format.AllocBit)

	v := requireViolation(t, a.Check(), KindAllocatedInList)
	assert.Equal(t, x, v.Off)
}

func Test_Check_NextLinkOutOfHeap(t *testing.T) {
	a, x, _ := setupHoles(t)
	poke(a, format.NextLinkOff(uint32(x)), 1<<24)

	v := requireViolation(t, a.Check(), KindOutOfHeap)
	assert.Equal(t, Ptr(1<<24), v.Off)
}

func Test_Check_SelfCycle(t *testing.T) {
	a, x, _ := setupHoles(t)
	poke(a, format.NextLinkOff(uint32(x)), uint32(x))
	poke(a, format.PrevLinkOff(uint32(x)), uint32(x))

	// The head still points at x, whose prev link no longer names the slot.
	requireViolation(t, a.Check(), KindBadLink)
}

func Test_Check_WrongBucket(t *testing.T) {
	a, x, _ := setupHoles(t)
	// Move x from bucket 5 to bucket 6 without touching its size.
	poke(a, int(format.BucketSlot(5)), 0)
	poke(a, format.PrevLinkOff(uint32(x)), format.BucketSlot(6))
	poke(a, format.NextLinkOff(uint32(x)), uint32(a.head(6)))
	poke(a, int(format.BucketSlot(6)), uint32(x))

	requireViolation(t, a.Check(), KindWrongBucket)
}

func Test_Check_FooterMismatch(t *testing.T) {
	a, x, _ := setupHoles(t)
	poke(a, format.FooterOff(uint32(x), 32), 0xFFFF0)

	v := requireViolation(t, a.Check(), KindFooterMismatch)
	assert.Equal(t, -1, v.Bucket)
}

func Test_Check_StalePrevAllocBit(t *testing.T) {
	a, _, y := setupHoles(t)
	hdr := format.ReadU32(a.heap, format.HeaderOff(uint32(y)))
	poke(a, format.HeaderOff(uint32(y)), format.WithPrevAlloc(hdr, true))

	v := requireViolation(t, a.Check(), KindPrevAllocMismatch)
	assert.Equal(t, y, v.Off)
}

func Test_Check_AdjacentFree(t *testing.T) {
	a, _ := newTestAllocator(t, nil)
	x := mustAlloc(t, a, 24, 1)
	y := mustAlloc(t, a, 24, 2)
	mustAlloc(t, a, 24, 3)

	// Hand-free both blocks without coalescing.
	for _, p := range []Ptr{x, y} {
		a.setFree(p, 32, p == x)
		a.insert(p)
	}
	a.setPrevAlloc(y+32, false)

	requireViolation(t, a.Check(), KindAdjacentFree)
}

func Test_Check_FreeNotListed(t *testing.T) {
	a, x, _ := setupHoles(t)
	a.remove(x)

	v := requireViolation(t, a.Check(), KindFreeNotListed)
	assert.Equal(t, x, v.Off)
}

func Test_Check_ListedNotInHeap(t *testing.T) {
	a, _ := newTestAllocator(t, nil)
	x := mustAlloc(t, a, 56, 1)
	mustAlloc(t, a, 8, 2)

	// Forge a free block in the middle of x's payload.
	inner := x + 16
	a.setFree(inner, 32, true)
	a.insert(inner)

	requireViolation(t, a.Check(), KindListedNotInHeap)
}

func Test_Check_BadEpilogue(t *testing.T) {
	a, _ := newTestAllocator(t, nil)
	poke(a, a.HeapSize()-format.WordSize, 0)
	requireViolation(t, a.Check(), KindBadEpilogue)
}

func Test_Check_BadPrologue(t *testing.T) {
	a, _ := newTestAllocator(t, nil)
	poke(a, format.PrologueHeaderOffset, format.Pack(16, true, true))
	requireViolation(t, a.Check(), KindBadPrologue)
}

func Test_Check_TooSmall(t *testing.T) {
	a, _ := newTestAllocator(t, nil)
	x := mustAlloc(t, a, 24, 1)
	poke(a, format.HeaderOff(uint32(x)), format.Pack(8, true, true))
	requireViolation(t, a.Check(), KindTooSmall)
}

// Test_Check_DoubleFree shows a second release of the same block is caught
// by the checker, not by Free.
func Test_Check_DoubleFree(t *testing.T) {
	a, x, _ := setupHoles(t)
	require.NoError(t, a.Free(x))

	err := a.Check()
	require.ErrorIs(t, err, ErrCorrupt)
}

func Test_Violation_Error(t *testing.T) {
	v := &Violation{Kind: KindBadLink, Off: 0x48, Bucket: 5, Detail: "prev is 0x0"}
	assert.Equal(t, "alloc: heap corrupt: inconsistent free-list link at 0x48 in bucket 5: prev is 0x0", v.Error())

	v = &Violation{Kind: KindAdjacentFree, Off: 0x68, Bucket: -1, Detail: "x"}
	assert.Equal(t, "alloc: heap corrupt: adjacent free blocks at 0x68: x", v.Error())

	assert.Equal(t, "ViolationKind(99)", ViolationKind(99).String())
}
