package cli

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootRejectsInvalidFormat(t *testing.T) {
	cmd := NewRootCommand(newCounterRegistry(t))
	_, err := execute(t, cmd, "--format", "xml", "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestRootRunsSubcommand(t *testing.T) {
	cmd := NewRootCommand(newCounterRegistry(t))
	out, err := execute(t, cmd, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "valid")
}

func TestRootRegistersAllCommands(t *testing.T) {
	cmd := NewRootCommand(newCounterRegistry(t))
	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	for _, want := range []string{"describe", "validate", "lint", "call", "replay"} {
		assert.Contains(t, names, want)
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(fmt.Errorf("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(&ExitError{Code: ExitCommandError, Message: "bad args"}))
	wrapped := fmt.Errorf("outer: %w", &ExitError{Code: ExitFailure, Message: "inner"})
	assert.Equal(t, ExitFailure, GetExitCode(wrapped))
}

func TestExitErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("cause")
	err := &ExitError{Code: ExitFailure, Message: "context", Err: cause}
	assert.Equal(t, "context: cause", err.Error())
	assert.True(t, errors.Is(err, cause))
}
