package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "quote",
		Short: "Price plan configurator selections from the command line",
		Long: `quote composes line items for a selection JSON file.

Examples:
  quote compose selection.json
  quote compose --format json < selection.json
  quote payload --kind business selection.json
  quote options`,
		SilenceUsage: true,
	}
	root.AddCommand(newComposeCmd())
	root.AddCommand(newPayloadCmd())
	root.AddCommand(newOptionsCmd())
	return root
}
