package client

import (
	"context"
	"log"
	"sync"

	"escparty/internal/game"
	"escparty/internal/store"
)

// Participant is a non-host player's side of the checkpoint handshake: mark
// yourself ready, wait passively, and advance exactly once when the host
// signals continue. Advancement is keyed on the room's monotonic continue
// sequence compared against the last value this client reacted to, so a
// participant neither re-triggers on a still-true flag nor misses a cycle
// whose ready flag was already reset before this client subscribed.
type Participant struct {
	store    store.RoomStore
	code     string
	playerID string

	mu          sync.Mutex
	lastSeenSeq int64
	unsub       store.Unsubscribe
}

// NewParticipant tracks one player's checkpoint state. lastSeenSeq carries
// over between checkpoints within a session; start at 0 for a fresh game.
func NewParticipant(s store.RoomStore, code, playerID string, lastSeenSeq int64) *Participant {
	return &Participant{
		store:       s,
		code:        code,
		playerID:    playerID,
		lastSeenSeq: lastSeenSeq,
	}
}

// AwaitContinue marks the player at the mid-quiz checkpoint and subscribes
// for the host's continue signal. onAdvance fires exactly once, after which
// the subscription is dropped; onEvicted fires if the room disappears.
func (p *Participant) AwaitContinue(ctx context.Context, onAdvance func(), onEvicted func()) error {
	if err := p.store.MarkAtMidQuiz(ctx, p.code, p.playerID); err != nil {
		return err
	}

	unsub, err := p.store.ListenToRoom(ctx, p.code, func(room *game.Room) {
		if room == nil {
			p.Stop()
			onEvicted()
			return
		}

		// The flag itself is deliberately ignored: a participant arriving
		// after the host's grace window has cleared it must still advance.
		p.mu.Lock()
		fire := room.ContinueSeq > p.lastSeenSeq
		if fire {
			p.lastSeenSeq = room.ContinueSeq
		}
		p.mu.Unlock()

		if fire {
			p.Stop()
			onAdvance()
		}
	})
	if err != nil {
		return err
	}

	p.mu.Lock()
	prev := p.unsub
	p.unsub = unsub
	p.mu.Unlock()
	if prev != nil {
		prev()
	}
	return nil
}

// Stop drops the subscription; safe to call repeatedly.
func (p *Participant) Stop() {
	p.mu.Lock()
	unsub := p.unsub
	p.unsub = nil
	p.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// LastSeenSeq is the continue sequence this participant last reacted to.
func (p *Participant) LastSeenSeq() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSeenSeq
}

// PublishScore pushes this player's own score to the room document. Score
// writes are background work: a failure is logged and swallowed because the
// local machine remains the source of truth for the player's own run.
func (p *Participant) PublishScore(ctx context.Context, score int) {
	if err := p.store.UpdatePlayerScore(ctx, p.code, p.playerID, score); err != nil {
		log.Printf("❌ Failed to publish score for player %s in room %s: %v", p.playerID, p.code, err)
	}
}
