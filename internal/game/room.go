package game

import (
	"sort"
	"strings"
	"time"
)

// Difficulty selects which quiz file a room plays
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ParseDifficulty normalizes a difficulty token. Unknown tokens fall back to
// easy, the same way a bad URL parameter does.
func ParseDifficulty(s string) Difficulty {
	switch d := Difficulty(strings.ToLower(s)); d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return d
	}
	return DifficultyEasy
}

// Valid reports whether d is one of the three playable difficulties.
func (d Difficulty) Valid() bool {
	return d == DifficultyEasy || d == DifficultyMedium || d == DifficultyHard
}

// Room is the shared game document. One room exists per game, keyed by a
// short code. Every client mutates the document through the store and
// observes it through the store's subscription; the struct itself carries no
// locking because the store only ever hands out copies.
type Room struct {
	ID               string     `json:"id"`
	HostID           string     `json:"hostId"`
	HostIsObserver   bool       `json:"hostIsObserver"`
	Started          bool       `json:"started"`
	Difficulty       Difficulty `json:"difficulty,omitempty"`
	Players          []Player   `json:"players"`
	ContinueReady    bool       `json:"continueReady"`
	ContinueSeq      int64      `json:"continueSeq"`
	PlayersAtMidQuiz []string   `json:"playersAtMidQuiz"`
	CreatedAt        time.Time  `json:"createdAt"`
}

// Player returns the player with the given id, or nil.
func (r *Room) Player(id string) *Player {
	for i := range r.Players {
		if r.Players[i].ID == id {
			return &r.Players[i]
		}
	}
	return nil
}

// HasPlayerNamed reports whether any occupant already uses the given name.
func (r *Room) HasPlayerNamed(name string) bool {
	for i := range r.Players {
		if r.Players[i].Name == name {
			return true
		}
	}
	return false
}

// ActivePlayers returns the players who answer questions. When the host is
// in observer mode it is excluded from the list.
func (r *Room) ActivePlayers() []Player {
	players := make([]Player, 0, len(r.Players))
	for _, p := range r.Players {
		if r.HostIsObserver && p.ID == r.HostID {
			continue
		}
		players = append(players, p)
	}
	return players
}

// Standings returns the active players sorted by score descending. Equal
// scores keep join order so the table is stable across refreshes.
func (r *Room) Standings() []Player {
	players := r.ActivePlayers()
	sort.SliceStable(players, func(i, j int) bool {
		return players[i].Score > players[j].Score
	})
	return players
}

// Winners returns the top-scoring players; more than one entry means a tie.
func (r *Room) Winners() []Player {
	standings := r.Standings()
	if len(standings) == 0 {
		return nil
	}
	top := standings[0].Score
	winners := make([]Player, 0, 1)
	for _, p := range standings {
		if p.Score == top {
			winners = append(winners, p)
		}
	}
	return winners
}

// AtMidQuiz reports whether the player has reached the checkpoint screen.
func (r *Room) AtMidQuiz(playerID string) bool {
	for _, id := range r.PlayersAtMidQuiz {
		if id == playerID {
			return true
		}
	}
	return false
}

// AllPlayersAtMidQuiz reports whether every active player has reached the
// checkpoint. The observer host gates its continue button on this.
func (r *Room) AllPlayersAtMidQuiz() bool {
	active := r.ActivePlayers()
	if len(active) == 0 {
		return false
	}
	for _, p := range active {
		if !r.AtMidQuiz(p.ID) {
			return false
		}
	}
	return true
}

// CanStart reports whether the host may start the game.
func (r *Room) CanStart() bool {
	return !r.Started && r.Difficulty.Valid()
}

// ValidateJoin checks whether a new player may enter the room.
func (r *Room) ValidateJoin() error {
	if r.Started {
		return ErrGameStarted
	}
	return nil
}

// Clone returns a deep copy of the room. The store hands clones to
// subscribers so a client can never mutate another client's snapshot.
func (r *Room) Clone() *Room {
	if r == nil {
		return nil
	}
	c := *r
	c.Players = append([]Player(nil), r.Players...)
	c.PlayersAtMidQuiz = append([]string(nil), r.PlayersAtMidQuiz...)
	return &c
}
