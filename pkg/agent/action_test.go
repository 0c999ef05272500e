package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONObjectFencedBlock(t *testing.T) {
	text := "Let me think about this.\n```json\n{\"tool\": \"messages\", \"arguments\": {\"method\": \"get_history\"}}\n```\nDone."

	obj, found, err := extractJSONObject(text)
	require.True(t, found)
	require.NoError(t, err)
	assert.Equal(t, "messages", obj["tool"])
}

func TestExtractJSONObjectBareNested(t *testing.T) {
	text := `Sure! {"action": {"tool": "messages", "arguments": {"method": "send_message", "params": {}}}} hope that helps`

	obj, found, err := extractJSONObject(text)
	require.True(t, found)
	require.NoError(t, err)
	inner, ok := obj["action"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "messages", inner["tool"])
}

func TestExtractJSONObjectNoObject(t *testing.T) {
	_, found, err := extractJSONObject("I am not sure what to do next.")
	assert.False(t, found)
	assert.NoError(t, err)
}

func TestExtractJSONObjectInvalidJSON(t *testing.T) {
	_, found, err := extractJSONObject(`here you go: {"tool": "messages",`)
	assert.True(t, found)
	assert.Error(t, err)
}

func TestDecodeActionUnwrapsEnvelope(t *testing.T) {
	obj := map[string]any{
		"action": map[string]any{
			"tool":      "messages",
			"arguments": map[string]any{"method": "get_unread_messages", "params": map[string]any{}},
		},
	}

	action, err := decodeAction(obj)
	require.NoError(t, err)
	assert.Equal(t, ActionToolCall, action.Kind)
	assert.Equal(t, "messages", action.Tool)
	assert.Equal(t, "get_unread_messages", action.Arguments["method"])
}

func TestDecodeActionFinalAnswer(t *testing.T) {
	action, err := decodeAction(map[string]any{"final_answer": "All unread messages answered."})
	require.NoError(t, err)
	assert.Equal(t, ActionFinalAnswer, action.Kind)
	assert.Equal(t, "All unread messages answered.", action.FinalAnswer)
}

func TestDecodeActionMissingTool(t *testing.T) {
	_, err := decodeAction(map[string]any{"arguments": map[string]any{}})
	assert.Error(t, err)
}

func TestDecodeActionNonStringTool(t *testing.T) {
	_, err := decodeAction(map[string]any{"tool": 42})
	assert.Error(t, err)
}

func TestDecodeActionArgumentsNotObject(t *testing.T) {
	_, err := decodeAction(map[string]any{"tool": "messages", "arguments": "get_unread_messages"})
	assert.Error(t, err)
}

func TestDecodeActionMissingArgumentsDefaultsEmpty(t *testing.T) {
	action, err := decodeAction(map[string]any{"tool": "messages"})
	require.NoError(t, err)
	assert.Equal(t, ActionToolCall, action.Kind)
	assert.NotNil(t, action.Arguments)
	assert.Empty(t, action.Arguments)
}
