package game

import (
	"time"
)

// Player is a participant embedded in the room document. Each client writes
// only its own score field; everything else is immutable after joining.
type Player struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Score    int       `json:"score"`
	JoinedAt time.Time `json:"joinedAt"`
}

// NewPlayer creates a player joining now
func NewPlayer(id, name string) Player {
	return Player{
		ID:       id,
		Name:     name,
		JoinedAt: time.Now(),
	}
}
