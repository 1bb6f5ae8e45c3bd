package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDefFile(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "def.json")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestLintAcceptsDescribeOutput(t *testing.T) {
	reg := newCounterRegistry(t)
	def, err := reg.ModuleDef()
	require.NoError(t, err)
	data, err := json.Marshal(defToJSON(def))
	require.NoError(t, err)
	path := writeDefFile(t, data)

	cmd := NewLintCommand(&RootOptions{Format: "text"})
	out, err := execute(t, cmd, path)
	require.NoError(t, err)
	assert.Contains(t, out, "conforms")
}

func TestLintRejectsBadKind(t *testing.T) {
	path := writeDefFile(t, []byte(`{"typespace": [{"kind": "u65"}]}`))

	cmd := NewLintCommand(&RootOptions{Format: "text"})
	out, err := execute(t, cmd, path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "problem(s) found")
}

func TestLintRejectsBadAccess(t *testing.T) {
	def := `{
		"typespace": [{"kind": "product", "elements": []}],
		"tables": [{"name": "t", "ref": 0, "access": "everyone"}]
	}`
	path := writeDefFile(t, []byte(def))

	cmd := NewLintCommand(&RootOptions{Format: "json"})
	out, err := execute(t, cmd, path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "schema-conflict", resp.Error.Code)
}

func TestLintRejectsUnknownField(t *testing.T) {
	path := writeDefFile(t, []byte(`{"typespace": [], "tabels": []}`))

	cmd := NewLintCommand(&RootOptions{Format: "text"})
	_, err := execute(t, cmd, path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestLintMissingFile(t *testing.T) {
	cmd := NewLintCommand(&RootOptions{Format: "text"})
	_, err := execute(t, cmd, filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
