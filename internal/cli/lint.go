package cli

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/spf13/cobra"
)

//go:embed moduledef.cue
var moduleDefSchema string

// LintIssue is one schema conflict found in a definition file.
type LintIssue struct {
	Pos     string `json:"pos,omitempty"`
	Message string `json:"message"`
}

// NewLintCommand creates the lint command: check a JSON module
// definition file (the output of `describe --format json`) against the
// definition schema, without needing the module linked in.
func NewLintCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lint <definition.json>",
		Short: "Check a definition file against the schema",
		Long: `Check a JSON module definition file against the definition schema.

The file is the data payload of describe --format json. Lint works on
the file alone, so it can run in CI against a checked-in definition
without the module linked in.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLint(rootOpts, cmd, args[0])
		},
	}
}

func runLint(opts *RootOptions, cmd *cobra.Command, path string) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		formatter.Error("read-failed", err.Error(), nil)
		return &ExitError{Code: ExitCommandError, Message: fmt.Sprintf("read %s", path), Err: err}
	}
	formatter.VerboseLog("linting %s (%d bytes)", path, len(data))

	issues, err := lintDefinition(data, path)
	if err != nil {
		return &ExitError{Code: ExitCommandError, Message: "load definition schema", Err: err}
	}
	if len(issues) == 0 {
		return formatter.Success(fmt.Sprintf("%s conforms to the definition schema", path))
	}

	if opts.Format == "json" {
		formatter.Error("schema-conflict", fmt.Sprintf("%d problem(s) found", len(issues)), issues)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "%d problem(s) found:\n", len(issues))
		for _, issue := range issues {
			if issue.Pos != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s: %s\n", issue.Pos, issue.Message)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", issue.Message)
			}
		}
	}
	return &ExitError{Code: ExitFailure, Message: "definition does not conform to schema"}
}

// lintDefinition unifies the JSON document with #ModuleDef and returns
// the conflicts. A non-nil error means the embedded schema itself is
// broken, not the input.
func lintDefinition(data []byte, filename string) ([]LintIssue, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(moduleDefSchema, cue.Filename("moduledef.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compiling schema: %w", err)
	}
	defSchema := schema.LookupPath(cue.ParsePath("#ModuleDef"))
	if err := defSchema.Err(); err != nil {
		return nil, fmt.Errorf("looking up #ModuleDef: %w", err)
	}

	// JSON is valid CUE, so the document compiles directly.
	doc := ctx.CompileBytes(data, cue.Filename(filename))
	if err := doc.Err(); err != nil {
		return cueIssues(err), nil
	}

	unified := defSchema.Unify(doc)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return cueIssues(err), nil
	}
	return nil, nil
}

func cueIssues(err error) []LintIssue {
	var issues []LintIssue
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		issue := LintIssue{Message: fmt.Sprintf(format, args...)}
		if pos := e.Position(); pos.IsValid() {
			issue.Pos = fmt.Sprintf("%s:%d:%d", pos.Filename(), pos.Line(), pos.Column())
		}
		issues = append(issues, issue)
	}
	return issues
}
