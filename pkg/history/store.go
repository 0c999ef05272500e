package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Store persists the history as a single JSON array, fully rewritten on
// every save. The rewrite goes through a temp file and rename so a crash
// mid-write can never leave a half-written array behind for the next load.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a store backed by the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the persisted history. A missing file yields an empty
// history; a corrupt file yields an error so the caller can decide to
// start fresh.
func (s *Store) Load() ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("history: read %s: %w", s.path, err)
	}

	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("history: parse %s: %w", s.path, err)
	}
	return items, nil
}

// Save atomically replaces the persisted array with items.
func (s *Store) Save(items []Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if items == nil {
		items = []Item{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("history: marshal: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("history: create dir: %w", err)
	}

	tmpPath := fmt.Sprintf("%s.tmp-%d-%d", s.path, os.Getpid(), time.Now().UnixNano())
	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("history: open temp file: %w", err)
	}
	defer func() {
		_ = file.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := file.Write(data); err != nil {
		return fmt.Errorf("history: write: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("history: sync: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("history: close: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("history: rename: %w", err)
	}
	return nil
}
