// Package agent runs the autonomous reasoning loop: build a budgeted
// prompt, ask the backend for the next action, dispatch it through the
// tool transport, record the outcome, persist, repeat.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"mcpagent/pkg/control"
	"mcpagent/pkg/history"
	"mcpagent/pkg/prompt"
)

// DefaultFinalAnswerSentinel is the exact final-answer text that ends a
// run as achieved. Any other proposed answer is routed to the user for
// feedback instead.
const DefaultFinalAnswerSentinel = "Your detailed answer here."

const defaultPollInterval = time.Second

// ToolCaller dispatches one tool call and blocks for its result. A failed
// call yields the empty marker, never an error; failures stay visible in
// history rather than aborting the loop.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, arguments map[string]any) json.RawMessage
}

// Backend produces a free-form completion for a prompt. Unavailability
// yields an empty string after the backend's own retry budget.
type Backend interface {
	Generate(ctx context.Context, prompt string) string
}

// Config wires an Agent's collaborators.
type Config struct {
	Signals *control.Signals
	Store   *history.Store
	Builder *prompt.Builder
	Tools   ToolCaller
	Backend Backend

	// PollInterval is the pause/feedback polling granularity.
	PollInterval time.Duration
	// FinalAnswerSentinel overrides DefaultFinalAnswerSentinel.
	FinalAnswerSentinel string
}

// Agent owns one run's state: the task, the append-only history, and the
// step counter. There is a single run per process; no shared globals
// beyond the process logger.
type Agent struct {
	signals *control.Signals
	store   *history.Store
	builder *prompt.Builder
	tools   ToolCaller
	backend Backend

	pollInterval time.Duration
	sentinel     string

	task    string
	history []history.Item
	step    int
}

// New creates an agent from cfg.
func New(cfg Config) *Agent {
	a := &Agent{
		signals:      cfg.Signals,
		store:        cfg.Store,
		builder:      cfg.Builder,
		tools:        cfg.Tools,
		backend:      cfg.Backend,
		pollInterval: cfg.PollInterval,
		sentinel:     cfg.FinalAnswerSentinel,
		step:         1,
	}
	if a.pollInterval <= 0 {
		a.pollInterval = defaultPollInterval
	}
	if a.sentinel == "" {
		a.sentinel = DefaultFinalAnswerSentinel
	}
	return a
}

// Step returns the current step counter.
func (a *Agent) Step() int {
	return a.step
}

// History returns a copy of the in-memory history.
func (a *Agent) History() []history.Item {
	return append([]history.Item(nil), a.history...)
}

// Run executes the reasoning loop until the goal is achieved, the context
// is cancelled, or the run turns out to be empty. Every failure mode short
// of those is recorded in history and the loop continues; showing the
// failure to the next reasoning step is the only recovery mechanism.
func (a *Agent) Run(ctx context.Context) error {
	task, err := a.signals.ReadGoal()
	if err != nil {
		return fmt.Errorf("agent: %w", err)
	}
	if task == "" {
		slog.Info("[Agent] goal is empty, nothing to do")
		return nil
	}
	a.task = task

	items, err := a.store.Load()
	if err != nil {
		slog.Warn("[Agent] could not load history, starting fresh", "error", err)
		items = nil
	} else if len(items) > 0 {
		slog.Info("[Agent] loaded previous steps", "count", len(items))
	}
	a.history = items
	a.step = len(items) + 1

	slog.Info("[Agent] starting run", "task", a.task)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if a.signals.Paused() {
			a.waitWhilePaused(ctx)
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		slog.Info("[Agent] step", "step", a.step)

		built := a.builder.Build(a.task, a.history)
		if built.Truncated {
			dropped := len(a.history) - built.Kept
			slog.Info("[Agent] trimming history to fit token budget",
				"kept", built.Kept, "dropped", dropped, "forcedReset", built.ForcedReset)
			a.history = append([]history.Item(nil), a.history[dropped:]...)
			a.step = built.Kept + 1
			// Persisted state must not diverge from what was sent.
			if err := a.store.Save(a.history); err != nil {
				slog.Warn("[Agent] could not persist trimmed history", "error", err)
			}
		}

		response := a.backend.Generate(ctx, built.Prompt)
		slog.Debug("[Agent] backend response", "tokens", prompt.EstimateTokens(response))

		done := a.handleResponse(ctx, response)
		if done {
			return nil
		}

		if text, ok := a.signals.TakeCorrection(); ok {
			slog.Info("[Agent] emergency correction received", "feedback", text)
			a.record(history.EmergencyCorrection(text))
		}

		a.step++
	}
}

// handleResponse runs one step's parse-and-dispatch. It returns true when
// the run reached successful terminal state.
func (a *Agent) handleResponse(ctx context.Context, response string) bool {
	obj, found, err := extractJSONObject(response)
	if !found {
		slog.Warn("[Agent] no JSON object in backend response")
		a.record(history.ReasoningError(response, "no JSON object found"))
		return false
	}
	if err != nil {
		slog.Warn("[Agent] unparsable action", "error", err)
		a.record(history.ParsingError(response, err.Error()))
		return false
	}

	action, err := decodeAction(obj)
	if err != nil {
		slog.Warn("[Agent] malformed action", "error", err)
		a.record(history.ParsingError(response, err.Error()))
		return false
	}

	switch action.Kind {
	case ActionFinalAnswer:
		slog.Info("[Agent] final answer proposed", "answer", action.FinalAnswer)
		if action.FinalAnswer == a.sentinel {
			slog.Info("[Agent] goal achieved")
			return true
		}
		feedback := a.awaitFeedback(ctx)
		if feedback == "" {
			feedback = "User rejected the answer."
		}
		slog.Info("[Agent] feedback received, continuing", "feedback", feedback)
		a.record(history.FinalAnswerProposed(action.FinalAnswer, feedback))

	case ActionToolCall:
		slog.Info("[Agent] executing tool", "tool", action.Tool, "arguments", action.Arguments)
		result := a.tools.CallTool(ctx, action.Tool, action.Arguments)
		// Failed calls come back as the empty marker and are recorded
		// like any other result: visible to the next reasoning step.
		a.record(history.ToolCall(action.Tool, action.Arguments, result))
	}
	return false
}

// record appends an item and persists the full history. Persistence
// failure is logged and non-fatal; the in-memory state stays authoritative
// for the rest of the run.
func (a *Agent) record(item history.Item) {
	a.history = append(a.history, item)
	if err := a.store.Save(a.history); err != nil {
		slog.Warn("[Agent] could not persist history", "error", err)
	}
}

// waitWhilePaused blocks until the pause flag clears, then re-reads the
// goal in case it changed while paused.
func (a *Agent) waitWhilePaused(ctx context.Context) {
	slog.Info("[Agent] paused, waiting")
	for a.signals.Paused() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(a.pollInterval):
		}
	}
	slog.Info("[Agent] resumed")

	newTask, err := a.signals.ReadGoal()
	if err != nil || newTask == "" {
		slog.Warn("[Agent] could not re-read goal after pause, keeping current goal", "error", err)
		return
	}
	if newTask != a.task {
		slog.Info("[Agent] goal updated", "goal", newTask)
		a.task = newTask
		a.record(history.GoalUpdated(newTask))
	}
}

// awaitFeedback blocks until the user submits feedback through the
// correction channel. Returns empty when the context is cancelled.
func (a *Agent) awaitFeedback(ctx context.Context) string {
	slog.Info("[Agent] waiting for user feedback on proposed answer")
	for {
		if text, ok := a.signals.TakeCorrection(); ok {
			return text
		}
		select {
		case <-ctx.Done():
			return ""
		case <-time.After(a.pollInterval):
		}
	}
}
