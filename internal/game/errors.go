package game

import "errors"

// Shared failure taxonomy. Store implementations and handlers classify with
// errors.Is so a remote backend can wrap these with transport detail.
var (
	// ErrRoomNotFound means the room document is absent.
	ErrRoomNotFound = errors.New("room not found")

	// ErrRoomExists means a create hit an already-occupied room code.
	ErrRoomExists = errors.New("room already exists")

	// ErrGameStarted rejects lobby-only operations after start.
	ErrGameStarted = errors.New("game has already started")

	// ErrNoDifficulty rejects starting before the host picked a difficulty.
	ErrNoDifficulty = errors.New("no difficulty selected")

	// ErrPermissionDenied surfaces a store-level authorization failure.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrPlayerNotFound means the player id is not in the room document.
	ErrPlayerNotFound = errors.New("player not found in room")
)
