package main

import (
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func newVersionCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			g.printInfo("segalloc %s\n", version)
			g.printInfo("  commit: %s\n", commit)
			g.printInfo("  built: %s\n", date)
		},
	}
}
