package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"escparty/internal/game"
)

// ScoreRecord is one finished single-player quiz.
type ScoreRecord struct {
	Score      int             `json:"score"`
	Total      int             `json:"total"`
	Difficulty game.Difficulty `json:"difficulty,omitempty"`
	Date       time.Time       `json:"date"`
}

// SortKey orders the scoreboard view.
type SortKey string

const (
	SortByDate       SortKey = "date"
	SortByDifficulty SortKey = "difficulty"
	SortByScore      SortKey = "score"
)

// History persists the single-player score history as one JSON array,
// append-only. Multiplayer results never land here; those live and die with
// the room document.
type History struct {
	path string
}

// NewHistory stores records at dir/quiz-scores.json.
func NewHistory(dir string) (*History, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history dir: %w", err)
	}
	return &History{path: filepath.Join(dir, "quiz-scores.json")}, nil
}

// Load returns all records; a missing or corrupt file is an empty history.
func (h *History) Load() []ScoreRecord {
	data, err := os.ReadFile(h.path)
	if err != nil {
		return nil
	}
	var records []ScoreRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil
	}
	return records
}

// Append adds one record and rewrites the file.
func (h *History) Append(record ScoreRecord) error {
	if record.Date.IsZero() {
		record.Date = time.Now()
	}
	records := append(h.Load(), record)
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal score history: %w", err)
	}
	if err := os.WriteFile(h.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write score history: %w", err)
	}
	return nil
}

// Sorted returns records ordered by the given key: newest first, difficulty
// alphabetically, or highest score first.
func (h *History) Sorted(key SortKey) []ScoreRecord {
	records := h.Load()
	sort.SliceStable(records, func(i, j int) bool {
		switch key {
		case SortByDifficulty:
			return records[i].Difficulty < records[j].Difficulty
		case SortByScore:
			return records[i].Score > records[j].Score
		default:
			return records[i].Date.After(records[j].Date)
		}
	})
	return records
}

// Best returns the highest-scoring record, ok=false on empty history.
func (h *History) Best() (ScoreRecord, bool) {
	var best ScoreRecord
	found := false
	for _, r := range h.Load() {
		if !found || r.Score > best.Score {
			best = r
			found = true
		}
	}
	return best, found
}
