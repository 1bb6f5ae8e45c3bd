package cli

import (
	"encoding/hex"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribeText(t *testing.T) {
	reg := newCounterRegistry(t)
	cmd := NewDescribeCommand(&RootOptions{Format: "text"}, reg)

	out, err := execute(t, cmd)
	require.NoError(t, err)

	payload, err := hex.DecodeString(strings.TrimSpace(out))
	require.NoError(t, err)
	require.NotEmpty(t, payload)
	assert.Equal(t, byte(1), payload[0], "publish payload starts with the format version")
}

func TestDescribeJSON(t *testing.T) {
	reg := newCounterRegistry(t)
	cmd := NewDescribeCommand(&RootOptions{Format: "json"}, reg)

	out, err := execute(t, cmd)
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, data, "typespace")
	tables, ok := data["tables"].([]any)
	require.True(t, ok)
	require.Len(t, tables, 1)
	table := tables[0].(map[string]any)
	assert.Equal(t, "counter", table["name"])
	assert.Equal(t, "private", table["access"])
}

func TestDescribeRaw(t *testing.T) {
	reg := newCounterRegistry(t)
	cmd := NewDescribeCommand(&RootOptions{Format: "text"}, reg)

	out, err := execute(t, cmd, "--raw")
	require.NoError(t, err)
	require.NotEmpty(t, out)
	assert.Equal(t, byte(1), out[0])
}
