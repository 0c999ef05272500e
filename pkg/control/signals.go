// Package control implements the file-based signaling channel between the
// control panel and the agent: a goal file, a pause-flag marker, and a
// correction-text marker. The agent only ever reads and clears these; the
// panel writes them.
package control

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Signals holds the signal file paths for one agent working directory.
type Signals struct {
	GoalPath       string
	PausePath      string
	CorrectionPath string
}

// ReadGoal returns the trimmed goal text. A missing goal file reads as an
// empty goal, not an error.
func (s *Signals) ReadGoal() (string, error) {
	data, err := os.ReadFile(s.GoalPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("control: read goal: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// WriteGoal replaces the goal text.
func (s *Signals) WriteGoal(goal string) error {
	if err := os.WriteFile(s.GoalPath, []byte(goal), 0644); err != nil {
		return fmt.Errorf("control: write goal: %w", err)
	}
	return nil
}

// Paused reports whether the pause flag is set.
func (s *Signals) Paused() bool {
	_, err := os.Stat(s.PausePath)
	return err == nil
}

// SetPaused creates or removes the pause flag. It reports whether the flag
// state actually changed.
func (s *Signals) SetPaused(paused bool) (bool, error) {
	if paused {
		if s.Paused() {
			return false, nil
		}
		f, err := os.Create(s.PausePath)
		if err != nil {
			return false, fmt.Errorf("control: create pause flag: %w", err)
		}
		return true, f.Close()
	}
	if !s.Paused() {
		return false, nil
	}
	if err := os.Remove(s.PausePath); err != nil {
		return false, fmt.Errorf("control: remove pause flag: %w", err)
	}
	return true, nil
}

// WriteCorrection replaces the pending correction text.
func (s *Signals) WriteCorrection(text string) error {
	if err := os.WriteFile(s.CorrectionPath, []byte(text), 0644); err != nil {
		return fmt.Errorf("control: write correction: %w", err)
	}
	return nil
}

// TakeCorrection consumes the pending correction: it reads the marker,
// removes it, and returns the trimmed text. The second return value is
// false when there was no marker or it held only whitespace. The marker is
// cleared either way.
func (s *Signals) TakeCorrection() (string, bool) {
	data, err := os.ReadFile(s.CorrectionPath)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("[Control] could not read correction file", "error", err)
		}
		return "", false
	}
	if err := os.Remove(s.CorrectionPath); err != nil {
		slog.Warn("[Control] could not clear correction file", "error", err)
	}
	text := strings.TrimSpace(string(data))
	return text, text != ""
}
