package store

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"

	"escparty/internal/game"
)

// Unsubscribe detaches a room listener. Safe to call more than once and
// after the room is gone.
type Unsubscribe func()

// OnChange receives the full current room document on every observed change.
// A nil room signals that the document was deleted or the subscription
// failed; no further callbacks follow a nil.
type OnChange func(room *game.Room)

// RoomStore is the client contract with the shared room-document backend.
// All coordination between players runs through one document per room with
// last-write-wins semantics per field; the method set is deliberately
// field-targeted so concurrent writers never clobber each other's fields.
type RoomStore interface {
	// CreateRoom initializes the document at code. Fails with
	// game.ErrRoomExists when the code is occupied.
	CreateRoom(ctx context.Context, code, hostID, hostName string, hostIsObserver bool) error

	// GetRoom is a point-in-time read. game.ErrRoomNotFound when absent.
	GetRoom(ctx context.Context, code string) (*game.Room, error)

	// JoinRoom appends a player. Idempotent: an existing id or name is a
	// success without a duplicate entry. game.ErrGameStarted after start.
	JoinRoom(ctx context.Context, code, playerID, playerName string) error

	// SetDifficulty records the host's selection. Last selection before
	// start wins; rejected with game.ErrGameStarted afterwards.
	SetDifficulty(ctx context.Context, code string, d game.Difficulty) error

	// StartGame flips started to true, a monotonic transition. Requires a
	// difficulty (game.ErrNoDifficulty). Starting twice is a no-op.
	StartGame(ctx context.Context, code string) error

	// UpdatePlayerScore writes one player's score as a targeted per-player
	// update so concurrent score writes from different clients commute.
	UpdatePlayerScore(ctx context.Context, code, playerID string, score int) error

	// MarkAtMidQuiz adds the player to the checkpoint set (no duplicates).
	MarkAtMidQuiz(ctx context.Context, code, playerID string) error

	// ResetMidQuiz clears the checkpoint set for the next cycle.
	ResetMidQuiz(ctx context.Context, code string) error

	// SetContinueReady publishes the host's continue signal. Setting true
	// also advances the room's monotonic continue sequence so participants
	// can react exactly once per checkpoint cycle.
	SetContinueReady(ctx context.Context, code string, ready bool) error

	// ListenToRoom subscribes to document changes. The callback receives
	// the current document immediately, then the latest document after
	// every change. Intermediate states may be skipped; only the latest
	// view is guaranteed.
	ListenToRoom(ctx context.Context, code string, onChange OnChange) (Unsubscribe, error)

	// DeleteRoom removes the document and notifies listeners with nil.
	DeleteRoom(ctx context.Context, code string) error
}

const roomCodeChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// GenerateRoomCode returns a random uppercase code of the given length.
// Callers handle collisions via CreateRoomWithFreshCode.
func GenerateRoomCode(length int) string {
	b := make([]byte, length)
	rand.Read(b)

	for i := range b {
		b[i] = roomCodeChars[b[i]%byte(len(roomCodeChars))]
	}

	return string(b)
}

// CreateRoomWithFreshCode generates codes until create-if-absent succeeds.
// Collisions between live rooms are rare with 26^4 codes but not impossible,
// so creation retries rather than overwriting an existing document.
func CreateRoomWithFreshCode(ctx context.Context, s RoomStore, codeLength int, hostID, hostName string, hostIsObserver bool) (string, error) {
	var lastErr error
	for i := 0; i < 10; i++ {
		code := GenerateRoomCode(codeLength)
		err := s.CreateRoom(ctx, code, hostID, hostName, hostIsObserver)
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, game.ErrRoomExists) {
			return "", err
		}
		lastErr = err
	}
	return "", fmt.Errorf("could not find a free room code: %w", lastErr)
}
