package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreLoadMissingFile(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "history.json"))

	items, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "history.json"))

	items := []Item{
		ToolCall("messages", map[string]any{"method": "get_unread_messages"}, json.RawMessage(`{"messages":[]}`)),
		ReasoningError("no json here", "no JSON object found"),
		GoalUpdated("answer all unread messages"),
	}
	require.NoError(t, s.Save(items))

	loaded, err := s.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 3)

	assert.Equal(t, KindToolCall, loaded[0].Action.Kind)
	assert.Equal(t, "messages", loaded[0].Action.Tool)
	assert.JSONEq(t, `{"messages":[]}`, string(loaded[0].Result))
	assert.Equal(t, KindReasoningError, loaded[1].Action.Kind)
	assert.Equal(t, "no json here", loaded[1].Action.RawResponse)
	assert.Equal(t, KindGoalUpdated, loaded[2].Action.Kind)
	assert.Equal(t, "answer all unread messages", loaded[2].Action.NewGoal)
}

func TestStoreSaveOverwritesFully(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "history.json"))

	require.NoError(t, s.Save([]Item{
		ToolCall("a", nil, nil),
		ToolCall("b", nil, nil),
		ToolCall("c", nil, nil),
	}))
	// A trim keeps only the newest suffix; the file must reflect exactly that.
	require.NoError(t, s.Save([]Item{ToolCall("c", nil, nil)}))

	loaded, err := s.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "c", loaded[0].Action.Tool)
}

func TestStoreLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"action": {"kind": "tool_call"`), 0644))

	s := NewStore(path)
	_, err := s.Load()
	require.Error(t, err)
}

func TestStoreSaveEmptyHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	s := NewStore(path)

	require.NoError(t, s.Save(nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}

func TestStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(filepath.Join(dir, "history.json"))
	require.NoError(t, s.Save([]Item{ToolCall("a", nil, nil)}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "history.json", entries[0].Name())
}
