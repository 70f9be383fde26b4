package dirty

// DirtyTracker is the minimal interface for components that only report
// modified byte ranges (allocators, replay drivers) and never flush.
type DirtyTracker interface {
	// Add marks [off, off+length) as dirty.
	Add(off, length int)
}

// Syncer persists a byte range of a heap. region.File implements it.
type Syncer interface {
	SyncRange(off, n int) error
}

// Discard is a DirtyTracker that records nothing.
var Discard DirtyTracker = discard{}

type discard struct{}

func (discard) Add(int, int) {}
