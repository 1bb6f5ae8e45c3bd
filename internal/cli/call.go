package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tesseradb/modkit/harness"
	"github.com/tesseradb/modkit/internal/calllog"
	"github.com/tesseradb/modkit/module"
)

// NewCallCommand creates the call command: run a YAML scenario of
// reducer calls against the linked-in module.
func NewCallCommand(rootOpts *RootOptions, reg *module.Registry) *cobra.Command {
	var record string
	cmd := &cobra.Command{
		Use:   "call <scenario.yaml>",
		Short: "Run a call scenario against the module",
		Long: `Run a scripted sequence of reducer calls against the module.

Each step is its own transaction; a failed call rolls back and the run
continues. With --record, every call is appended to a call log database
that replay can later verify against.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(rootOpts, reg, cmd, args[0], record)
		},
	}
	cmd.Flags().StringVar(&record, "record", "", "append every call to this call log database")
	return cmd
}

func runCall(opts *RootOptions, reg *module.Registry, cmd *cobra.Command, path, record string) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	sc, err := harness.LoadScenario(path)
	if err != nil {
		formatter.Error("bad-scenario", err.Error(), nil)
		return &ExitError{Code: ExitCommandError, Message: fmt.Sprintf("load %s", path), Err: err}
	}
	formatter.VerboseLog("scenario %q: %d step(s)", sc.Name, len(sc.Steps))

	var hostOpts []harness.Option
	if record != "" {
		store, err := calllog.Open(record)
		if err != nil {
			formatter.Error("record-failed", err.Error(), nil)
			return &ExitError{Code: ExitCommandError, Message: fmt.Sprintf("open call log %s", record), Err: err}
		}
		defer store.Close()
		hostOpts = append(hostOpts, harness.WithCallLog(store))
	}

	host, err := harness.New(reg, hostOpts...)
	if err != nil {
		formatter.Error("invalid-def", err.Error(), nil)
		return &ExitError{Code: ExitFailure, Message: "module definition invalid", Err: err}
	}

	results, err := host.RunScenario(sc)
	if err != nil {
		formatter.Error("scenario-failed", err.Error(), nil)
		return &ExitError{Code: ExitFailure, Message: "scenario setup failed", Err: err}
	}

	failed := 0
	for _, res := range results {
		if !res.OK {
			failed++
		}
	}

	if opts.Format == "json" {
		if failed == 0 {
			return formatter.Success(results)
		}
		formatter.Error("scenario-failed", fmt.Sprintf("%d of %d step(s) failed", failed, len(results)), results)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "scenario %s: %d step(s), %d failed\n", sc.Name, len(results), failed)
		for _, res := range results {
			mark := "ok  "
			if !res.OK {
				mark = "FAIL"
			}
			if res.Detail != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s %d %s: %s\n", mark, res.Step, res.Reducer, res.Detail)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s %d %s\n", mark, res.Step, res.Reducer)
			}
		}
	}
	if failed > 0 {
		return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("%d step(s) failed", failed)}
	}
	return nil
}
