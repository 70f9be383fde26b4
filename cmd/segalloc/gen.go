package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/segalloc/internal/trace"
)

func newGenCmd(g *globals) *cobra.Command {
	var (
		seed   int64
		output string
		opts   = trace.DefaultGenOptions
	)
	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate a random allocation trace",
		Long: `The gen command writes a synthetic trace in malloc-lab format. Every
id is freed by the end of the trace.

Example:
  segalloc gen --seed 7 --ops 10000 -o random.rep
  segalloc gen --max-size 64 | segalloc replay /dev/stdin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tr := trace.Generate(seed, opts)
			if output == "" {
				return trace.Write(g.out, tr)
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := trace.Write(f, tr); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			g.printVerbose("Wrote %d ops (%d ids) to %s\n", len(tr.Ops), tr.NumIDs, output)
			return nil
		},
	}
	fl := cmd.Flags()
	fl.Int64Var(&seed, "seed", 1, "Random seed")
	fl.StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	fl.IntVar(&opts.Ops, "ops", opts.Ops, "Number of random operations")
	fl.IntVar(&opts.MaxLive, "max-live", opts.MaxLive, "Maximum simultaneously live blocks")
	fl.IntVar(&opts.MinSize, "min-size", opts.MinSize, "Smallest request in bytes")
	fl.IntVar(&opts.MaxSize, "max-size", opts.MaxSize, "Largest request in bytes")
	fl.Float64Var(&opts.Realloc, "realloc", opts.Realloc, "Fraction of reallocations")
	return cmd
}
