// Package client implements the multiplayer coordination protocol: how a
// participant, an active host, and an observer host react to the shared room
// document to stay in lockstep through checkpoints, and how a client
// reconstructs its place after a reload.
package client

import (
	"context"
	"errors"
	"fmt"

	"escparty/internal/game"
	"escparty/internal/session"
	"escparty/internal/store"
)

// ErrNoSession means nothing recoverable was found for this client.
var ErrNoSession = errors.New("no recoverable session")

// EntryState is the tagged navigation payload for entering a quiz view.
// Exactly one variant applies; each carries only the fields its flow needs.
type EntryState interface {
	entryState()
}

// SinglePlayerEntry enters a local quiz with no room behind it.
type SinglePlayerEntry struct {
	Difficulty    game.Difficulty
	QuestionIndex int
	Score         int
}

// ParticipantEntry enters a multiplayer quiz as an answering player (the
// active host included).
type ParticipantEntry struct {
	RoomCode      string
	PlayerID      string
	PlayerName    string
	IsHost        bool
	Difficulty    game.Difficulty
	QuestionIndex int
	Score         int
	Players       []game.Player
}

// ObserverHostEntry enters the observer dashboard; the host never answers.
type ObserverHostEntry struct {
	RoomCode   string
	HostID     string
	Difficulty game.Difficulty
}

func (SinglePlayerEntry) entryState() {}
func (ParticipantEntry) entryState() {}
func (ObserverHostEntry) entryState() {}

// Recover rebuilds an entry state after a reload: the locally persisted
// session record supplies identity, a fresh room read supplies the
// authoritative game state. The session record never overrides the room
// document's own fields.
func Recover(ctx context.Context, sessions *session.Store, sessionID string, rooms store.RoomStore) (EntryState, error) {
	sc, ok := sessions.Restore(sessionID)
	if !ok {
		return nil, ErrNoSession
	}

	if !sc.Multiplayer() {
		return SinglePlayerEntry{
			Difficulty:    sc.Difficulty,
			QuestionIndex: sc.QuestionIndex,
			Score:         sc.Score,
		}, nil
	}

	room, err := rooms.GetRoom(ctx, sc.RoomCode)
	if err != nil {
		if errors.Is(err, game.ErrRoomNotFound) {
			return nil, fmt.Errorf("%w: room %s is gone", ErrNoSession, sc.RoomCode)
		}
		return nil, err
	}

	if sc.IsHost && room.HostIsObserver {
		return ObserverHostEntry{
			RoomCode:   room.ID,
			HostID:     room.HostID,
			Difficulty: room.Difficulty,
		}, nil
	}

	return ParticipantEntry{
		RoomCode:      room.ID,
		PlayerID:      sc.PlayerID,
		PlayerName:    sc.PlayerName,
		IsHost:        sc.IsHost,
		Difficulty:    room.Difficulty,
		QuestionIndex: sc.QuestionIndex,
		Score:         sc.Score,
		Players:       room.Players,
	}, nil
}
