// Package cli implements the modkit command: inspection and testing
// tooling for a module linked into the same binary. Modules embed it
// in their own main; the registry the commands operate on is the one
// the module registered itself into.
package cli

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tesseradb/modkit/module"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the modkit root command operating on reg.
func NewRootCommand(reg *module.Registry) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "modkit",
		Short: "Inspect and exercise a database module",
		Long:  "Tooling for a module linked into this binary: describe and validate its definition, run call scenarios, replay recorded histories.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if opts.Verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewDescribeCommand(opts, reg))
	cmd.AddCommand(NewValidateCommand(opts, reg))
	cmd.AddCommand(NewLintCommand(opts))
	cmd.AddCommand(NewCallCommand(opts, reg))
	cmd.AddCommand(NewReplayCommand(opts, reg))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
