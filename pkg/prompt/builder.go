// Package prompt builds token-budgeted reasoning prompts. Token counts are
// a coarse deterministic heuristic, not a real tokenizer; output stability
// matters more than accuracy here.
package prompt

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"mcpagent/pkg/history"
)

// EstimateTokens estimates the token count of s as
// max(wordCount, byteLength/4). The heuristic is intentional: it must stay
// bit-for-bit reproducible across runs.
func EstimateTokens(s string) int {
	words := len(strings.Fields(s))
	if chars := len(s) / 4; chars > words {
		return chars
	}
	return words
}

const basePromptTemplate = `Messaging assistant. Task: %q

Tools: %s

History: %s

Decide the next action and respond with a single JSON object.
Tool call: {"tool": "<name>", "arguments": {"method": "<method>", "params": {...}}}
Finish: {"final_answer": "<text>"}

JSON response:`

// minimalPromptTemplate is the forced-reset fallback: no history at all,
// and an explicit reminder not to wrap the object.
const minimalPromptTemplate = `Messaging assistant. Task: %q

Tools: %s

History: []

Respond with exactly one JSON object and no wrapper object.
Tool call: {"tool": "<name>", "arguments": {"method": "<method>", "params": {...}}}
Finish: {"final_answer": "<text>"}

JSON response:`

// Builder computes budgeted prompts for a fixed tool-hint block and token
// ceiling.
type Builder struct {
	ToolHints    string
	TokenCeiling int
}

// Result is the budgeting decision. It is consumed atomically: the same
// decision determines both what is sent to the backend and what the caller
// keeps in its persisted history, so the two can never diverge.
type Result struct {
	Prompt string
	// Kept is how many of the newest history items the prompt carries.
	Kept int
	// Truncated reports that older items were dropped; the caller must
	// trim its history to the newest Kept items and renumber the step
	// counter to Kept+1.
	Truncated bool
	// ForcedReset reports that even the empty-history prompt exceeded
	// the ceiling and the minimal template was used instead.
	ForcedReset bool
}

// Build computes the largest chronologically contiguous suffix of items
// whose serialized prompt stays at or under the token ceiling. Items are
// accepted newest first; the first item that would overflow stops the
// walk, so the result never has gaps.
func (b *Builder) Build(task string, items []history.Item) Result {
	render := func(kept []history.Item) string {
		serialized := []byte("[]")
		if len(kept) > 0 {
			if data, err := json.MarshalIndent(kept, "", "  "); err == nil {
				serialized = data
			}
		}
		return fmt.Sprintf(basePromptTemplate, task, b.ToolHints, serialized)
	}

	if EstimateTokens(render(nil)) > b.TokenCeiling {
		prompt := fmt.Sprintf(minimalPromptTemplate, task, b.ToolHints)
		slog.Warn("[Prompt] empty-history prompt exceeds ceiling, forcing reset",
			"ceiling", b.TokenCeiling, "minimalTokens", EstimateTokens(prompt))
		return Result{Prompt: prompt, Kept: 0, Truncated: len(items) > 0, ForcedReset: true}
	}

	kept := make([]history.Item, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		candidate := append([]history.Item{items[i]}, kept...)
		if EstimateTokens(render(candidate)) > b.TokenCeiling {
			break
		}
		kept = candidate
	}

	result := Result{
		Prompt:    render(kept),
		Kept:      len(kept),
		Truncated: len(items) > 0 && len(kept) < len(items),
	}
	slog.Debug("[Prompt] built",
		"tokens", EstimateTokens(result.Prompt),
		"ceiling", b.TokenCeiling,
		"kept", result.Kept,
		"total", len(items),
		"truncated", result.Truncated)
	return result
}
