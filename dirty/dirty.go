package dirty

import (
	"context"
	"sort"
)

const (
	// defaultRangeCapacity is the pre-allocated capacity for dirty ranges.
	defaultRangeCapacity = 64

	// DefaultPageSize is the flush granularity used by NewTracker.
	DefaultPageSize = 4096
)

// Range is a dirty byte range in heap offsets.
type Range struct {
	Off int64
	Len int64
}

// End returns the first offset past the range.
func (r Range) End() int64 { return r.Off + r.Len }

// Tracker accumulates dirty ranges and flushes them through a Syncer.
//
// NOT thread-safe.
type Tracker struct {
	s        Syncer
	ranges   []Range
	pageSize int64
	flushes  int
}

// NewTracker creates a tracker flushing through s. s may be nil for a tracker
// used only to observe writes.
func NewTracker(s Syncer) *Tracker {
	return NewTrackerPageSize(s, DefaultPageSize)
}

// NewTrackerPageSize is NewTracker with an explicit page size. Values <= 0
// select DefaultPageSize.
func NewTrackerPageSize(s Syncer, pageSize int) *Tracker {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Tracker{
		s:        s,
		ranges:   make([]Range, 0, defaultRangeCapacity),
		pageSize: int64(pageSize),
	}
}

// Add records a dirty range. Empty and negative ranges are ignored.
func (t *Tracker) Add(off, length int) {
	if length <= 0 || off < 0 {
		return
	}
	t.ranges = append(t.ranges, Range{Off: int64(off), Len: int64(length)})
}

// Pending reports the number of raw ranges recorded since the last flush.
func (t *Tracker) Pending() int { return len(t.ranges) }

// Flushes reports how many SyncRange calls the tracker has issued.
func (t *Tracker) Flushes() int { return t.flushes }

// Flush syncs every coalesced dirty range and clears the tracker.
//
// The context is checked between ranges. On cancellation or a sync error some
// ranges may already be on disk; the tracker keeps all ranges so a retry
// covers them again.
func (t *Tracker) Flush(ctx context.Context) error {
	if len(t.ranges) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.s == nil {
		t.ranges = t.ranges[:0]
		return nil
	}
	for _, r := range t.coalesce() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := t.s.SyncRange(int(r.Off), int(r.Len)); err != nil {
			return err
		}
		t.flushes++
	}
	t.ranges = t.ranges[:0]
	return nil
}

// Reset clears all tracked ranges without flushing.
func (t *Tracker) Reset() {
	t.ranges = t.ranges[:0]
}

// DebugRanges returns a copy of the raw, uncoalesced ranges.
func (t *Tracker) DebugRanges() []Range {
	result := make([]Range, len(t.ranges))
	copy(result, t.ranges)
	return result
}

// DebugCoalescedRanges returns the page-aligned, merged ranges Flush would sync.
func (t *Tracker) DebugCoalescedRanges() []Range {
	return t.coalesce()
}

// coalesce page-aligns all ranges, sorts them, and merges overlapping or
// adjacent ones.
func (t *Tracker) coalesce() []Range {
	if len(t.ranges) == 0 {
		return nil
	}

	aligned := make([]Range, len(t.ranges))
	for i, r := range t.ranges {
		start := r.Off / t.pageSize * t.pageSize
		end := (r.End() + t.pageSize - 1) / t.pageSize * t.pageSize
		aligned[i] = Range{Off: start, Len: end - start}
	}

	sort.Slice(aligned, func(i, j int) bool {
		return aligned[i].Off < aligned[j].Off
	})

	merged := make([]Range, 0, len(aligned))
	cur := aligned[0]
	for _, next := range aligned[1:] {
		if next.Off <= cur.End() {
			if next.End() > cur.End() {
				cur.Len = next.End() - cur.Off
			}
			continue
		}
		merged = append(merged, cur)
		cur = next
	}
	return append(merged, cur)
}
