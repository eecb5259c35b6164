package client

import (
	"context"
	"sync"

	"escparty/internal/game"
	"escparty/internal/store"
)

// ObserverView is the observer host's live model of the room: current
// standings with per-player checkpoint readiness, fed by the room
// subscription. The observer host is excluded from the standings it views.
type ObserverView struct {
	store store.RoomStore
	code  string

	mu    sync.Mutex
	room  *game.Room
	unsub store.Unsubscribe
}

// NewObserverView creates an unwatched view; call Watch to go live.
func NewObserverView(s store.RoomStore, code string) *ObserverView {
	return &ObserverView{store: s, code: code}
}

// Watch subscribes to the room. onUpdate fires after every snapshot,
// onEvicted once if the room disappears.
func (v *ObserverView) Watch(ctx context.Context, onUpdate func(), onEvicted func()) error {
	unsub, err := v.store.ListenToRoom(ctx, v.code, func(room *game.Room) {
		if room == nil {
			v.Stop()
			onEvicted()
			return
		}
		v.mu.Lock()
		v.room = room
		v.mu.Unlock()
		onUpdate()
	})
	if err != nil {
		return err
	}

	v.mu.Lock()
	v.unsub = unsub
	v.mu.Unlock()
	return nil
}

// Stop drops the subscription; safe to call repeatedly.
func (v *ObserverView) Stop() {
	v.mu.Lock()
	unsub := v.unsub
	v.unsub = nil
	v.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// Standings returns the latest score-ordered player list.
func (v *ObserverView) Standings() []game.Player {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.room == nil {
		return nil
	}
	return v.room.Standings()
}

// Ready reports whether a player has reached the checkpoint.
func (v *ObserverView) Ready(playerID string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.room != nil && v.room.AtMidQuiz(playerID)
}

// CanContinue reports whether every answering player has reached the
// checkpoint. The dashboard gates its continue button on this; the gate is
// advisory and the UI may still offer an override.
func (v *ObserverView) CanContinue() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.room != nil && v.room.AllPlayersAtMidQuiz()
}
