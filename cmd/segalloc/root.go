package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/segalloc/internal/config"
	"github.com/joshuapare/segalloc/internal/logger"
)

// globals holds the persistent flags and the loaded configuration shared by
// every subcommand.
type globals struct {
	verbose    bool
	quiet      bool
	jsonOut    bool
	configPath string
	logLevel   string

	cfg       *config.Config
	logCloser io.Closer
	out       io.Writer
}

func newRootCmd() *cobra.Command {
	g := &globals{out: os.Stdout}

	root := &cobra.Command{
		Use:   "segalloc",
		Short: "Exercise and inspect a segregated free-list heap allocator",
		Long: `segalloc drives the allocator with malloc-lab style trace files,
validating every pointer it returns and reporting heap utilization. It can
also generate synthetic traces and inspect file-backed heaps.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			g.out = cmd.OutOrStdout()
			return g.load(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if g.logCloser != nil {
				return g.logCloser.Close()
			}
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "Enable verbose output")
	pf.BoolVarP(&g.quiet, "quiet", "q", false, "Suppress all output except errors")
	pf.BoolVar(&g.jsonOut, "json", false, "Output in JSON format")
	pf.StringVarP(&g.configPath, "config", "c", "", "YAML configuration file")
	pf.StringVar(&g.logLevel, "log-level", "", "Enable logging to stderr at this level (debug, info, warn, error)")

	root.AddCommand(
		newReplayCmd(g),
		newCheckCmd(g),
		newGenCmd(g),
		newInspectCmd(g),
		newVersionCmd(g),
	)
	return root
}

// load reads the configuration file, if any, and initializes logging.
func (g *globals) load(cmd *cobra.Command) error {
	g.cfg = config.Default()
	if g.configPath != "" {
		cfg, err := config.Load(g.configPath)
		if err != nil {
			return err
		}
		g.cfg = cfg
	}
	if g.logLevel != "" {
		g.cfg.Log.Enabled = true
		g.cfg.Log.Level = g.logLevel
		if err := g.cfg.Validate(); err != nil {
			return err
		}
	}

	level, err := g.cfg.LogLevel()
	if err != nil {
		return err
	}
	opts := logger.Options{
		Enabled: g.cfg.Log.Enabled,
		LogDir:  g.cfg.Log.Dir,
		JSON:    g.cfg.Log.JSON,
		Level:   level,
	}
	if opts.LogDir == "" {
		opts.Writer = cmd.ErrOrStderr()
	}
	g.logCloser, err = logger.Init(opts)
	return err
}

func execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// printInfo prints an info message if not in quiet mode.
func (g *globals) printInfo(format string, args ...any) {
	if !g.quiet {
		fmt.Fprintf(g.out, format, args...)
	}
}

// printVerbose prints a verbose message if verbose mode is enabled.
func (g *globals) printVerbose(format string, args ...any) {
	if g.verbose && !g.quiet {
		fmt.Fprintf(g.out, format, args...)
	}
}

// printJSON outputs data as indented JSON.
func (g *globals) printJSON(v any) error {
	enc := json.NewEncoder(g.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
