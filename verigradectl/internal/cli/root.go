// Package cli implements verigradectl, the operator tool for running schema
// migrations, minting development tokens and listing the services.
package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

type RootOptions struct {
	Format string
}

var validFormats = []string{"text", "json"}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "verigradectl",
		Short:         "Operate VeriGrade services",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(validFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewMigrateCommand())
	cmd.AddCommand(NewTokenCommand(opts))
	cmd.AddCommand(NewServicesCommand(opts))
	return cmd
}
