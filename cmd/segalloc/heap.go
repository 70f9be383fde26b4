package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joshuapare/segalloc/alloc"
	"github.com/joshuapare/segalloc/dirty"
	"github.com/joshuapare/segalloc/internal/config"
	"github.com/joshuapare/segalloc/region"
)

// heap bundles an allocator with the region and dirty tracker behind it.
type heap struct {
	a       *alloc.Allocator
	grows   *region.Counting
	tracker *dirty.Tracker // nil unless file-backed
	file    *region.File
	closer  func() error
}

// openRegion creates the backing region selected by rc.
func openRegion(rc config.RegionConfig) (region.Grower, *region.File, func() error, error) {
	noop := func() error { return nil }
	switch rc.Backend {
	case config.BackendMem:
		m, err := region.NewMem(int(rc.MaxHeap))
		return m, nil, noop, err
	case config.BackendAnon:
		an, err := region.NewAnon(int(rc.MaxHeap))
		if err != nil {
			return nil, nil, nil, err
		}
		return an, nil, an.Close, nil
	case config.BackendFile:
		f, err := region.OpenFile(rc.Path, int(rc.MaxHeap))
		if err != nil {
			return nil, nil, nil, err
		}
		return f, f, f.Close, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown region backend %q", rc.Backend)
}

// newHeap initializes a fresh heap as configured. A file-backed heap must
// start empty.
func newHeap(cfg *config.Config) (*heap, error) {
	return buildHeap(cfg, alloc.New)
}

// attachHeap reattaches to a heap a previous run persisted.
func attachHeap(cfg *config.Config) (*heap, error) {
	return buildHeap(cfg, alloc.Attach)
}

func buildHeap(cfg *config.Config, mk func(alloc.Region, alloc.DirtyTracker, *alloc.Config) (*alloc.Allocator, error)) (*heap, error) {
	g, f, closer, err := openRegion(cfg.Region)
	if err != nil {
		return nil, err
	}
	h := &heap{grows: region.NewCounting(g), file: f, closer: closer}

	var dt alloc.DirtyTracker
	if f != nil {
		h.tracker = dirty.NewTrackerPageSize(f, os.Getpagesize())
		dt = h.tracker
	}

	ac := cfg.AllocatorConfig()
	h.a, err = mk(h.grows, dt, &ac)
	if err != nil {
		_ = closer()
		return nil, err
	}
	return h, nil
}

// Close flushes dirty pages of a file-backed heap and releases the region.
func (h *heap) Close(ctx context.Context) error {
	var err error
	if h.tracker != nil {
		err = h.tracker.Flush(ctx)
	}
	if cerr := h.closer(); err == nil {
		err = cerr
	}
	return err
}

// closeHeap closes h, storing the close error in *errp unless it already
// holds one.
func closeHeap(ctx context.Context, h *heap, errp *error) {
	if err := h.Close(ctx); *errp == nil {
		*errp = err
	}
}
