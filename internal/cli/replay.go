package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tesseradb/modkit/harness"
	"github.com/tesseradb/modkit/internal/calllog"
	"github.com/tesseradb/modkit/module"
)

// NewReplayCommand creates the replay command: feed a recorded call
// history back through the module and report diverging outcomes.
func NewReplayCommand(rootOpts *RootOptions, reg *module.Registry) *cobra.Command {
	return &cobra.Command{
		Use:   "replay <calls.db>",
		Short: "Replay a recorded call history",
		Long: `Replay every call in a recorded history against a fresh instance of
the module, with the recorded senders and timestamps, and report calls
whose outcome differs from the recording.

A divergence means the module changed behavior since the recording was
made, or a reducer is not deterministic.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(rootOpts, reg, cmd, args[0])
		},
	}
}

func runReplay(opts *RootOptions, reg *module.Registry, cmd *cobra.Command, path string) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	store, err := calllog.Open(path)
	if err != nil {
		formatter.Error("open-failed", err.Error(), nil)
		return &ExitError{Code: ExitCommandError, Message: fmt.Sprintf("open call log %s", path), Err: err}
	}
	defer store.Close()

	total, err := store.Count(cmd.Context())
	if err != nil {
		return &ExitError{Code: ExitCommandError, Message: "read call log", Err: err}
	}
	formatter.VerboseLog("replaying %d call(s) from %s", total, path)

	host, err := harness.New(reg)
	if err != nil {
		formatter.Error("invalid-def", err.Error(), nil)
		return &ExitError{Code: ExitFailure, Message: "module definition invalid", Err: err}
	}

	divergences, err := calllog.Replay(cmd.Context(), store, host.Apply)
	if err != nil {
		formatter.Error("replay-failed", err.Error(), nil)
		return &ExitError{Code: ExitFailure, Message: "replay aborted", Err: err}
	}

	if len(divergences) == 0 {
		return formatter.Success(fmt.Sprintf("replayed %d call(s), all outcomes match", total))
	}

	if opts.Format == "json" {
		formatter.Error("divergence", fmt.Sprintf("%d of %d call(s) diverged", len(divergences), total), divergences)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "%d of %d call(s) diverged:\n", len(divergences), total)
		for _, d := range divergences {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", d)
		}
	}
	return &ExitError{Code: ExitFailure, Message: "replay diverged from recording"}
}
