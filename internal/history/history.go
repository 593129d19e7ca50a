// Package history keeps a local log of prompts submitted through scribe.
// History is stored as a JSON file in the user's config directory.
package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/arin/scribe-cli/internal/config"
)

const (
	fileName   = "history.json"
	maxEntries = 500

	// previewLen bounds the stored answer preview.
	previewLen = 200
)

// fileMu guards concurrent access to the history file.
var fileMu sync.Mutex

// Entry represents a single generation.
type Entry struct {
	Timestamp      time.Time `json:"timestamp"`
	Command        string    `json:"command"` // "chat", "generate", "blog", "social"
	ConversationID string    `json:"conversation_id,omitempty"`
	Prompt         string    `json:"prompt"`
	Preview        string    `json:"preview,omitempty"`
	State          string    `json:"state"`
	Error          string    `json:"error,omitempty"`
	Chars          int       `json:"chars"`
}

// Success reports whether the answer completed.
func (e Entry) Success() bool {
	return e.State == "complete"
}

func historyPath() string {
	return filepath.Join(config.Dir(), fileName)
}

// Preview shortens an answer for storage.
func Preview(answer string) string {
	answer = strings.Join(strings.Fields(answer), " ")
	r := []rune(answer)
	if len(r) <= previewLen {
		return answer
	}
	return string(r[:previewLen-1]) + "…"
}

// Save appends a new entry to the history file.
func Save(entry Entry) error {
	fileMu.Lock()
	defer fileMu.Unlock()

	entry.Timestamp = time.Now()
	entry.Preview = Preview(entry.Preview)

	entries, _ := loadAll()
	entries = append(entries, entry)

	// Trim to max entries, keeping the most recent.
	if len(entries) > maxEntries {
		entries = entries[len(entries)-maxEntries:]
	}

	if err := os.MkdirAll(config.Dir(), 0o700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(historyPath(), data, 0o600)
}

// Load returns the most recent n history entries.
func Load(limit int) ([]Entry, error) {
	entries, err := loadAll()
	if err != nil {
		return nil, err
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}

	return entries, nil
}

// Clear removes the history file.
func Clear() error {
	fileMu.Lock()
	defer fileMu.Unlock()

	if err := os.Remove(historyPath()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func loadAll() ([]Entry, error) {
	data, err := os.ReadFile(historyPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	return entries, nil
}
