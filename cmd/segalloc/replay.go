package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joshuapare/segalloc/internal/config"
	"github.com/joshuapare/segalloc/internal/replay"
	"github.com/joshuapare/segalloc/internal/trace"
)

// heapFlags are the region and allocator overrides shared by replay and check.
type heapFlags struct {
	backend  string
	maxHeap  string
	path     string
	chunk    string
	checkAll bool
}

func (f *heapFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.backend, "backend", "", "Region backend: mem, anon or file")
	fl.StringVar(&f.maxHeap, "max-heap", "", "Region reservation, e.g. 20MiB")
	fl.StringVar(&f.path, "path", "", "Heap file for the file backend")
	fl.StringVar(&f.chunk, "chunk", "", "Minimum heap extension, e.g. 4KiB")
	fl.BoolVar(&f.checkAll, "check", false, "Run the heap checker after every op")
}

// apply overlays the flags on a copy of cfg.
func (f *heapFlags) apply(cfg *config.Config) (*config.Config, error) {
	c := *cfg
	if f.backend != "" {
		c.Region.Backend = f.backend
	}
	if f.path != "" {
		c.Region.Path = f.path
	}
	if f.maxHeap != "" {
		n, err := config.ParseByteSize(f.maxHeap)
		if err != nil {
			return nil, fmt.Errorf("--max-heap: %w", err)
		}
		c.Region.MaxHeap = n
	}
	if f.chunk != "" {
		n, err := config.ParseByteSize(f.chunk)
		if err != nil {
			return nil, fmt.Errorf("--chunk: %w", err)
		}
		c.Alloc.ChunkSize = n
	}
	if f.checkAll {
		c.Alloc.CheckEveryOp = true
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func newReplayCmd(g *globals) *cobra.Command {
	var hf heapFlags
	cmd := &cobra.Command{
		Use:   "replay <trace>...",
		Short: "Replay allocation traces and report utilization",
		Long: `The replay command runs each trace against a fresh heap, validating
that every pointer is aligned, inside the heap and disjoint from every live
block, and that block contents survive until they are freed.

Example:
  segalloc replay traces/*.rep
  segalloc replay --check --chunk 4KiB amptjp.rep
  segalloc replay --backend file --path heap.bin short.rep --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := hf.apply(g.cfg)
			if err != nil {
				return err
			}
			return runReplay(cmd.Context(), g, cfg, args, cfg.Alloc.CheckEveryOp)
		},
	}
	hf.register(cmd)
	return cmd
}

func newCheckCmd(g *globals) *cobra.Command {
	var hf heapFlags
	cmd := &cobra.Command{
		Use:   "check <trace>...",
		Short: "Replay traces with the heap checker after every op",
		Long: `The check command is replay with full consistency checking: after
every operation the free lists and the whole heap are walked and the first
broken invariant is reported.

Example:
  segalloc check short.rep`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hf.checkAll = true
			cfg, err := hf.apply(g.cfg)
			if err != nil {
				return err
			}
			return runReplay(cmd.Context(), g, cfg, args, true)
		},
	}
	hf.register(cmd)
	return cmd
}

// replayReport is the per-trace JSON record.
type replayReport struct {
	Trace       string  `json:"trace"`
	Ops         int     `json:"ops"`
	PeakPayload int64   `json:"peak_payload"`
	HeapSize    int     `json:"heap_size"`
	Utilization float64 `json:"utilization"`
	GrowCalls   int     `json:"grow_calls"`
	ElapsedMS   float64 `json:"elapsed_ms"`
	Error       string  `json:"error,omitempty"`
}

func runReplay(ctx context.Context, g *globals, cfg *config.Config, paths []string, check bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Region.Backend == config.BackendFile && len(paths) > 1 {
		return errors.New("the file backend replays one trace at a time")
	}

	var (
		reports []replayReport
		failed  int
	)
	for _, p := range paths {
		rep, err := replayOne(ctx, g, cfg, p, check)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			failed++
			rep.Error = err.Error()
		}
		reports = append(reports, rep)
	}

	if g.jsonOut {
		if err := g.printJSON(reports); err != nil {
			return err
		}
	} else {
		printReports(g, reports)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d traces failed", failed, len(paths))
	}
	return nil
}

func replayOne(ctx context.Context, g *globals, cfg *config.Config, path string, check bool) (replayReport, error) {
	rep := replayReport{Trace: filepath.Base(path)}

	tr, err := trace.ParseFile(path)
	if err != nil {
		return rep, err
	}
	g.printVerbose("Replaying %s: %d ops, %d ids\n", tr.Name, len(tr.Ops), tr.NumIDs)

	h, err := newHeap(cfg)
	if err != nil {
		return rep, err
	}

	res, err := replay.Run(ctx, h.a, tr, replay.Options{Check: check})
	if cerr := h.Close(ctx); err == nil {
		err = cerr
	}
	if err != nil {
		return rep, err
	}
	if h.tracker != nil {
		g.printVerbose("Flushed %d dirty ranges to %s\n", h.tracker.Flushes(), cfg.Region.Path)
	}

	rep.Ops = res.Ops
	rep.PeakPayload = res.PeakPayload
	rep.HeapSize = res.HeapSize
	rep.Utilization = res.Utilization
	rep.GrowCalls = h.grows.GrowCalls
	rep.ElapsedMS = float64(res.Elapsed.Microseconds()) / 1000
	return rep, nil
}

func printReports(g *globals, reports []replayReport) {
	g.printInfo("%-24s %8s %10s %10s %6s %6s\n", "TRACE", "OPS", "PEAK", "HEAP", "UTIL", "GROWS")
	for _, r := range reports {
		if r.Error != "" {
			g.printInfo("%-24s FAILED: %s\n", r.Trace, r.Error)
			continue
		}
		g.printInfo("%-24s %8d %10d %10d %5.1f%% %6d\n",
			r.Trace, r.Ops, r.PeakPayload, r.HeapSize, r.Utilization*100, r.GrowCalls)
	}
}
