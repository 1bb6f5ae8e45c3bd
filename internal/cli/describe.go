package cli

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tesseradb/modkit/module"
)

// NewDescribeCommand creates the describe command: dump the module
// definition the host would receive at publish time.
func NewDescribeCommand(rootOpts *RootOptions, reg *module.Registry) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Print the module definition",
		Long: `Print the linked-in module's definition.

Text format shows the hex-encoded publish payload (--raw for the raw
bytes); JSON format shows the decoded structure.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDescribe(rootOpts, reg, cmd, raw)
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "write the raw publish payload to stdout")
	return cmd
}

func runDescribe(opts *RootOptions, reg *module.Registry, cmd *cobra.Command, raw bool) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	def, err := reg.ModuleDef()
	if err != nil {
		formatter.Error("invalid-def", err.Error(), nil)
		return &ExitError{Code: ExitFailure, Message: "module definition invalid", Err: err}
	}
	formatter.VerboseLog("module has %d types, %d tables, %d reducers",
		len(def.Typespace), len(def.Tables), len(def.Reducers))

	if opts.Format == "json" {
		return formatter.Success(defToJSON(def))
	}

	var buf bytes.Buffer
	if err := reg.Describe(&buf); err != nil {
		return &ExitError{Code: ExitCommandError, Message: "serialize definition", Err: err}
	}
	if raw {
		_, err := cmd.OutOrStdout().Write(buf.Bytes())
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(buf.Bytes()))
	return nil
}
