package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tish-sh/tish/pkg/version"
)

// newVersionCommand prints build metadata.
func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print tish version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Info())
		},
	}
}
