// Package stats records generation timings for scribe.
// It tracks per-session metrics (first-byte latency, total time, chunk
// count, outcome) and persists them to ~/.scribe/stats.json.
package stats

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/arin/scribe-cli/internal/config"
	"github.com/arin/scribe-cli/internal/session"
)

const (
	fileName   = "stats.json"
	maxRecords = 1000
)

// Record is a single instrumented generation.
type Record struct {
	Timestamp      time.Time `json:"timestamp"`
	Command        string    `json:"command"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Mode           string    `json:"mode"` // "stream" or "single"
	FirstByteMs    int64     `json:"first_byte_ms,omitempty"`
	TotalMs        int64     `json:"total_ms"`
	Chunks         int       `json:"chunks"`
	Chars          int       `json:"chars"`
	State          string    `json:"state"`
}

// Success reports whether the generation completed.
func (r Record) Success() bool {
	return r.State == session.StateFinalized.String()
}

// FromReport converts a finished session's report.
func FromReport(command string, r session.Report) Record {
	return Record{
		Command:        command,
		ConversationID: r.ConversationID,
		Mode:           r.Mode,
		FirstByteMs:    r.FirstByte.Milliseconds(),
		TotalMs:        r.Total.Milliseconds(),
		Chunks:         r.Chunks,
		Chars:          r.Chars,
		State:          r.State.String(),
	}
}

// Summary is the aggregated stats dashboard.
type Summary struct {
	TotalGenerations int                 `json:"total_generations"`
	SuccessRate      float64             `json:"success_rate"`
	AvgFirstByteMs   int64               `json:"avg_first_byte_ms"`
	AvgTotalMs       int64               `json:"avg_total_ms"`
	AvgChunks        float64             `json:"avg_chunks"`
	ModeBreakdown    map[string]int      `json:"mode_breakdown"`
	CommandBreakdown map[string]int      `json:"command_breakdown"`
	StateBreakdown   map[string]int      `json:"state_breakdown"`
	TopConversations []ConversationCount `json:"top_conversations"`
	TodayCount       int                 `json:"today_count"`
	ThisWeekCount    int                 `json:"this_week_count"`
}

// ConversationCount pairs a conversation with its generation count.
type ConversationCount struct {
	ConversationID string `json:"conversation_id"`
	Count          int    `json:"count"`
}

var fileMu sync.Mutex

func statsPath() string {
	return filepath.Join(config.Dir(), fileName)
}

// Save appends a new record to the stats file.
func Save(r Record) error {
	fileMu.Lock()
	defer fileMu.Unlock()

	r.Timestamp = time.Now()

	records, _ := loadAll()
	records = append(records, r)

	if len(records) > maxRecords {
		records = records[len(records)-maxRecords:]
	}

	if err := os.MkdirAll(config.Dir(), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(statsPath(), data, 0o600)
}

// LoadAll returns all stored records.
func LoadAll() ([]Record, error) {
	return loadAll()
}

func loadAll() ([]Record, error) {
	data, err := os.ReadFile(statsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func newSummary() *Summary {
	return &Summary{
		ModeBreakdown:    map[string]int{},
		CommandBreakdown: map[string]int{},
		StateBreakdown:   map[string]int{},
	}
}

// Summarize computes aggregated stats from all records.
func Summarize() (*Summary, error) {
	records, err := loadAll()
	if err != nil {
		return nil, err
	}
	s := newSummary()
	if len(records) == 0 {
		return s, nil
	}
	s.TotalGenerations = len(records)

	var totalFirstByte, totalTime int64
	var firstByteCount, successCount, chunks int
	convFreq := map[string]int{}
	now := time.Now()
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	weekAgo := now.AddDate(0, 0, -7)

	for _, r := range records {
		if r.Success() {
			successCount++
		}
		totalTime += r.TotalMs
		chunks += r.Chunks
		// Generations that failed before any chunk have no first byte.
		if r.FirstByteMs > 0 {
			totalFirstByte += r.FirstByteMs
			firstByteCount++
		}
		if r.Mode != "" {
			s.ModeBreakdown[r.Mode]++
		}
		if r.Command != "" {
			s.CommandBreakdown[r.Command]++
		}
		if r.State != "" {
			s.StateBreakdown[r.State]++
		}
		if r.ConversationID != "" {
			convFreq[r.ConversationID]++
		}
		if !r.Timestamp.Before(today) {
			s.TodayCount++
		}
		if r.Timestamp.After(weekAgo) {
			s.ThisWeekCount++
		}
	}

	s.SuccessRate = float64(successCount) / float64(len(records)) * 100
	s.AvgTotalMs = totalTime / int64(len(records))
	s.AvgChunks = float64(chunks) / float64(len(records))
	if firstByteCount > 0 {
		s.AvgFirstByteMs = totalFirstByte / int64(firstByteCount)
	}

	s.TopConversations = topN(convFreq, 5)

	return s, nil
}

func topN(freq map[string]int, n int) []ConversationCount {
	all := make([]ConversationCount, 0, len(freq))
	for id, count := range freq {
		all = append(all, ConversationCount{ConversationID: id, Count: count})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Count != all[j].Count {
			return all[i].Count > all[j].Count
		}
		return all[i].ConversationID < all[j].ConversationID
	})
	if len(all) > n {
		all = all[:n]
	}
	return all
}
