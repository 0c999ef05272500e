package agent

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// ActionKind discriminates the decoded action variants.
type ActionKind string

const (
	// ActionToolCall dispatches a tool through the MCP client.
	ActionToolCall ActionKind = "tool_call"
	// ActionFinalAnswer proposes terminating the run.
	ActionFinalAnswer ActionKind = "final_answer"
)

// Action is the decoded next step extracted from free-form backend output.
type Action struct {
	Kind        ActionKind
	Tool        string
	Arguments   map[string]any
	FinalAnswer string
}

var fencedJSON = regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```")

// extractJSONObject locates the first JSON object in free-form text. A
// fenced code block tagged as JSON is preferred; otherwise the first
// balanced object starting at the first brace is decoded. found is false
// when no candidate object exists at all; err is set when a candidate was
// located but is not valid JSON.
func extractJSONObject(text string) (obj map[string]any, found bool, err error) {
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		if err := json.Unmarshal([]byte(m[1]), &obj); err != nil {
			return nil, true, fmt.Errorf("invalid JSON in fenced block: %w", err)
		}
		return obj, true, nil
	}

	start := strings.IndexByte(text, '{')
	if start < 0 {
		return nil, false, nil
	}

	dec := json.NewDecoder(strings.NewReader(text[start:]))
	if err := dec.Decode(&obj); err != nil {
		return nil, true, fmt.Errorf("invalid JSON object: %w", err)
	}
	return obj, true, nil
}

// decodeAction converts a raw JSON object into an Action. A one-level
// {"action": {...}} envelope is unwrapped first. An object with a
// final_answer field is a termination proposal; anything else must carry a
// tool name string and, optionally, an arguments object.
func decodeAction(obj map[string]any) (Action, error) {
	if inner, ok := obj["action"].(map[string]any); ok {
		obj = inner
	}

	if answer, ok := obj["final_answer"]; ok {
		text, ok := answer.(string)
		if !ok {
			text = fmt.Sprint(answer)
		}
		return Action{Kind: ActionFinalAnswer, FinalAnswer: text}, nil
	}

	tool, ok := obj["tool"].(string)
	if !ok || tool == "" {
		return Action{}, fmt.Errorf("invalid tool call structure: missing tool name")
	}

	arguments := map[string]any{}
	if raw, ok := obj["arguments"]; ok {
		args, ok := raw.(map[string]any)
		if !ok {
			return Action{}, fmt.Errorf("invalid tool call structure: arguments is not an object")
		}
		arguments = args
	}

	return Action{Kind: ActionToolCall, Tool: tool, Arguments: arguments}, nil
}
