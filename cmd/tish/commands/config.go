package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tish-sh/tish/pkg/appctx"
)

// newConfigCommand groups configuration helpers.
func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration helpers",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective merged configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, ok := appctx.Config(cmd.Context())
			if !ok {
				return errors.New("configuration not initialized")
			}
			out, err := yaml.Marshal(manager.Get())
			if err != nil {
				return fmt.Errorf("render configuration: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.AddCommand(show)
	return cmd
}
