package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"escparty/internal/game"
)

// Context is the resumable session record for one client: everything needed
// to rejoin a live room after a reload. It is constructed once per client
// and threaded into the components that need it; the room document itself
// stays authoritative over every field here.
type Context struct {
	RoomCode       string          `json:"roomCode,omitempty"`
	PlayerID       string          `json:"playerId"`
	PlayerName     string          `json:"playerName"`
	IsHost         bool            `json:"isHost"`
	HostIsObserver bool            `json:"hostIsObserver"`
	Difficulty     game.Difficulty `json:"difficulty,omitempty"`
	QuestionIndex  int             `json:"questionIndex"`
	Score          int             `json:"score"`
	SavedAt        time.Time       `json:"savedAt"`
}

// Multiplayer reports whether the session belongs to a room.
func (c Context) Multiplayer() bool {
	return c.RoomCode != ""
}

// Store persists session records as one JSON file per session id. This is
// the single serialization boundary for session state; there is no second
// cache to fall back to.
type Store struct {
	dir string
}

// NewStore creates the state directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create session dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(sessionID string) string {
	return filepath.Join(s.dir, sessionID+".json")
}

// Save writes the record, stamping SavedAt.
func (s *Store) Save(sessionID string, c Context) error {
	c.SavedAt = time.Now()
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := os.WriteFile(s.path(sessionID), data, 0o644); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

// Restore reads a record back. ok is false when no usable record exists;
// a corrupt file counts as not found rather than an error, recovery is
// best-effort.
func (s *Store) Restore(sessionID string) (Context, bool) {
	data, err := os.ReadFile(s.path(sessionID))
	if err != nil {
		return Context{}, false
	}
	var c Context
	if err := json.Unmarshal(data, &c); err != nil {
		return Context{}, false
	}
	if c.PlayerID == "" {
		return Context{}, false
	}
	return c, true
}

// Clear removes the record; missing files are fine.
func (s *Store) Clear(sessionID string) error {
	err := os.Remove(s.path(sessionID))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
