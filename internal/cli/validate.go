package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tesseradb/modkit/internal/registry"
	"github.com/tesseradb/modkit/module"
)

// ValidationIssue is one problem reported by validate.
type ValidationIssue struct {
	Code    string `json:"code"`
	Where   string `json:"where"`
	Message string `json:"message"`
}

// NewValidateCommand creates the validate command: run the publish
// validation pass and report every problem the host would reject the
// module for.
func NewValidateCommand(rootOpts *RootOptions, reg *module.Registry) *cobra.Command {
	return &cobra.Command{
		Use:           "validate",
		Short:         "Validate the module definition",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, reg, cmd)
		},
	}
}

func runValidate(opts *RootOptions, reg *module.Registry, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	issues := validateRegistry(reg)
	if len(issues) == 0 {
		return formatter.Success("module definition is valid")
	}

	if opts.Format == "json" {
		formatter.Error("invalid-def", fmt.Sprintf("%d problem(s) found", len(issues)), issues)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "%d problem(s) found:\n", len(issues))
		for _, issue := range issues {
			fmt.Fprintf(cmd.OutOrStdout(), "  [%s] %s: %s\n", issue.Code, issue.Where, issue.Message)
		}
	}
	return &ExitError{Code: ExitFailure, Message: "module definition invalid"}
}

func validateRegistry(reg *module.Registry) []ValidationIssue {
	var issues []ValidationIssue
	for _, err := range registry.Validate(reg.RawDef()) {
		var ve *registry.ValidationError
		if errors.As(err, &ve) {
			issues = append(issues, ValidationIssue{Code: ve.Code, Where: ve.Where, Message: ve.Detail})
		} else {
			issues = append(issues, ValidationIssue{Code: "invalid", Message: err.Error()})
		}
	}
	return issues
}
