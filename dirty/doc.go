// Package dirty tracks which byte ranges of a persistent heap were modified
// so a flush only syncs the pages an allocator actually wrote.
//
// # Usage
//
//	f, _ := region.OpenFile("heap.bin", 0)
//	tr := dirty.NewTracker(f)
//	a, _ := alloc.New(f, tr, nil)
//	p, _ := a.Alloc(100)
//	_ = tr.Flush(ctx) // msync the touched pages
//
// Ranges are recorded raw by Add and page-aligned, sorted, and merged at flush
// time.
//
// # Thread Safety
//
// Trackers are NOT thread-safe.
package dirty
