package cli

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tesseradb/modkit/module"
)

// recordCounterLog runs the counter scenario with --record and returns
// the call log path.
func recordCounterLog(t *testing.T) string {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "calls.db")
	scenario := writeScenarioFile(t, counterScenario)

	cmd := NewCallCommand(&RootOptions{Format: "text"}, newCounterRegistry(t))
	_, err := execute(t, cmd, scenario, "--record", logPath)
	require.NoError(t, err)
	return logPath
}

func TestReplayConverges(t *testing.T) {
	logPath := recordCounterLog(t)

	cmd := NewReplayCommand(&RootOptions{Format: "text"}, newCounterRegistry(t))
	out, err := execute(t, cmd, logPath)
	require.NoError(t, err)
	assert.Contains(t, out, "all outcomes match")
}

func TestReplayReportsDivergence(t *testing.T) {
	logPath := recordCounterLog(t)

	// Same surface, different behavior: every bump now fails.
	broken := module.NewRegistry()
	module.MustRegisterTable[counterRow](broken, "counter", module.PrimaryKey("id"))
	broken.MustRegisterReducer("bump", func(ctx *module.ReducerContext, id uint64, delta int64) error {
		return fmt.Errorf("bump is broken")
	}, module.WithParams("id", "delta"))

	cmd := NewReplayCommand(&RootOptions{Format: "text"}, broken)
	out, err := execute(t, cmd, logPath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "diverged")
	assert.Contains(t, out, "bump is broken")
}

func TestReplayMissingLog(t *testing.T) {
	cmd := NewReplayCommand(&RootOptions{Format: "text"}, newCounterRegistry(t))
	_, err := execute(t, cmd, filepath.Join(t.TempDir(), "absent", "calls.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
