// Package history models the agent's interaction history and persists it
// as a JSON array rewritten atomically after every step.
package history

import "encoding/json"

// ActionKind discriminates the closed set of action variants.
type ActionKind string

const (
	// KindToolCall is a dispatched tool invocation.
	KindToolCall ActionKind = "tool_call"
	// KindReasoningError records a backend response with no JSON object.
	KindReasoningError ActionKind = "reasoning_error"
	// KindParsingError records a located but malformed action object.
	KindParsingError ActionKind = "parsing_error"
	// KindEmergencyCorrection records an out-of-band user correction.
	KindEmergencyCorrection ActionKind = "emergency_correction"
	// KindGoalUpdated records a goal change observed while paused.
	KindGoalUpdated ActionKind = "goal_updated"
	// KindFinalAnswerProposed records a rejected termination proposal.
	KindFinalAnswerProposed ActionKind = "final_answer_proposed"
)

// Action is one record in the history. Kind selects which of the optional
// fields are meaningful; decoding from raw model output into this shape is
// done in the agent package, never by ad-hoc map indexing.
type Action struct {
	Kind        ActionKind     `json:"kind"`
	Tool        string         `json:"tool,omitempty"`
	Arguments   map[string]any `json:"arguments,omitempty"`
	RawResponse string         `json:"rawResponse,omitempty"`
	Error       string         `json:"error,omitempty"`
	Feedback    string         `json:"feedback,omitempty"`
	NewGoal     string         `json:"newGoal,omitempty"`
	FinalAnswer string         `json:"finalAnswer,omitempty"`
}

// Item pairs an action with its opaque result payload. The result's
// semantic content is never interpreted here.
type Item struct {
	Action Action          `json:"action"`
	Result json.RawMessage `json:"result,omitempty"`
}

// ToolCall builds a tool call item.
func ToolCall(tool string, arguments map[string]any, result json.RawMessage) Item {
	return Item{
		Action: Action{Kind: KindToolCall, Tool: tool, Arguments: arguments},
		Result: result,
	}
}

// ReasoningError builds an item for a response with no parsable JSON.
func ReasoningError(rawResponse, errMsg string) Item {
	return Item{
		Action: Action{Kind: KindReasoningError, RawResponse: rawResponse, Error: errMsg},
	}
}

// ParsingError builds an item for a malformed action object.
func ParsingError(rawResponse, errMsg string) Item {
	return Item{
		Action: Action{Kind: KindParsingError, RawResponse: rawResponse, Error: errMsg},
	}
}

// EmergencyCorrection builds an item for an out-of-band correction.
func EmergencyCorrection(feedback string) Item {
	return Item{
		Action: Action{Kind: KindEmergencyCorrection, Feedback: feedback},
	}
}

// GoalUpdated builds an item for a goal change.
func GoalUpdated(newGoal string) Item {
	return Item{
		Action: Action{Kind: KindGoalUpdated, NewGoal: newGoal},
	}
}

// FinalAnswerProposed builds an item for a rejected final answer together
// with the user's feedback.
func FinalAnswerProposed(answer, feedback string) Item {
	return Item{
		Action: Action{Kind: KindFinalAnswerProposed, FinalAnswer: answer, Feedback: feedback},
	}
}
