package client

import (
	"context"
	"log"
	"time"

	"escparty/internal/store"
)

// Host is the continue-signaling side of the checkpoint handshake, shared by
// the active host (who also plays) and the observer host (who only watches).
type Host struct {
	store store.RoomStore
	code  string
	grace time.Duration
}

// NewHost creates the signaler for a room. grace is how long the continue
// flag stays true before the host resets it; participants advance on the
// sequence bump, so the reset only exists to arm the next cycle.
func NewHost(s store.RoomStore, code string, grace time.Duration) *Host {
	return &Host{store: s, code: code, grace: grace}
}

// ContinueQuiz signals every waiting participant to advance: set the
// continue flag, clear the checkpoint set for the next cycle, and schedule
// the flag reset after the grace delay. The caller advances its own local
// state (active host) or stays on the dashboard (observer host).
func (h *Host) ContinueQuiz(ctx context.Context) error {
	if err := h.store.SetContinueReady(ctx, h.code, true); err != nil {
		return err
	}
	if err := h.store.ResetMidQuiz(ctx, h.code); err != nil {
		return err
	}

	// The reset is background work: failures must not block anyone's
	// progression, so they are logged and swallowed.
	time.AfterFunc(h.grace, func() {
		resetCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.store.SetContinueReady(resetCtx, h.code, false); err != nil {
			log.Printf("❌ Failed to reset continue flag for room %s: %v", h.code, err)
		}
	})

	return nil
}
