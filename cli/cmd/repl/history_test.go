package repl

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory_AddAndReload(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), HistoryFile)
	h := NewHistory(path)
	require.NoError(t, h.Load())
	assert.Zero(t, h.Len())

	require.NoError(t, h.Add("1 + 1", modeEval))
	require.NoError(t, h.Add("vars", modeCtrl))
	require.NoError(t, h.Add("vars", modeCtrl))
	require.NoError(t, h.Add("  ", modeEval))
	require.NoError(t, h.Add("1 + 1", modeEval))

	want := []HistoryEntry{
		{Line: "vars", Mode: modeCtrl},
		{Line: "1 + 1", Mode: modeEval},
	}
	assert.Equal(t, want, h.Entries())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "C:vars\nE:1 + 1\n", string(data))

	reloaded := NewHistory(path)
	require.NoError(t, reloaded.Load())
	assert.Equal(t, want, reloaded.Entries())
}

func TestHistory_LoadUnprefixed(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), HistoryFile)
	require.NoError(t, os.WriteFile(path, []byte("plain\n\nC:help\nE:x\n"), 0o600))

	h := NewHistory(path)
	require.NoError(t, h.Load())

	assert.Equal(t, []HistoryEntry{
		{Line: "plain", Mode: modeEval},
		{Line: "help", Mode: modeCtrl},
		{Line: "x", Mode: modeEval},
	}, h.Entries())
}

func TestHistory_Entry(t *testing.T) {
	t.Parallel()

	h := NewHistory("")
	require.NoError(t, h.Load())
	require.NoError(t, h.Add("a", modeEval))

	e, err := h.Entry(0)
	require.NoError(t, err)
	assert.Equal(t, "a", e.Line)

	for _, i := range []int{-1, 1} {
		_, err := h.Entry(i)
		require.ErrorIs(t, err, ErrOutOfBounds)
	}
}
