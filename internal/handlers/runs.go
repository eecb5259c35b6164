package handlers

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"escparty/internal/client"
	"escparty/internal/game"
	"escparty/internal/quiz"
	"escparty/internal/session"
)

// quizRun is one client's server-side quiz state: the question machine plus,
// for multiplayer runs, the checkpoint participant. The SSE stream drives the
// machine from a ticker; action handlers reach it through the run registry.
type quizRun struct {
	mu      sync.Mutex
	machine *quiz.Machine

	code       string // empty for single player
	playerID   string
	sessionID  string
	difficulty game.Difficulty

	participant *client.Participant
}

// do runs f while holding the run's lock.
func (qr *quizRun) do(f func(m *quiz.Machine)) {
	qr.mu.Lock()
	defer qr.mu.Unlock()
	f(qr.machine)
}

// runView is a consistent snapshot of the machine for rendering.
type runView struct {
	Phase       quiz.Phase
	Index       int
	Total       int
	Score       int
	Selected    string
	Submitted   bool
	TimedOut    bool
	LastCorrect bool
	LastAwarded int
	Question    quiz.Question
	HasQuestion bool
	RemainingMs int64
	FeedbackMs  int64
}

// view captures the machine state under the run's lock.
func (qr *quizRun) view(now time.Time) runView {
	qr.mu.Lock()
	defer qr.mu.Unlock()
	m := qr.machine

	v := runView{
		Phase:       m.Phase(),
		Index:       m.Index(),
		Total:       m.Total(),
		Score:       m.Score(),
		Selected:    m.Selected(),
		Submitted:   m.Submitted(),
		TimedOut:    m.TimedOut(),
		LastCorrect: m.LastCorrect(),
		LastAwarded: m.LastAwarded(),
		RemainingMs: m.Remaining(now).Milliseconds(),
		FeedbackMs:  m.FeedbackRemaining(now).Milliseconds(),
	}
	v.Question, v.HasQuestion = m.Current()
	return v
}

// runKey identifies a run: room code plus player id, or just the session id
// for a single-player run.
func runKey(code, playerID string) string {
	return code + "/" + playerID
}

// getRun looks up an active run
func (h *Handler) getRun(code, playerID string) *quizRun {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.runs[runKey(code, playerID)]
}

// startRun loads the question set and registers a fresh run. startIndex,
// score and lastSeenSeq are zero for a new game and carried values when
// resuming a recovered session.
func (h *Handler) startRun(ctx context.Context, code, playerID, sessionID string, d game.Difficulty, startIndex, score int, lastSeenSeq int64) (*quizRun, error) {
	questions, err := h.library.Load(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s quiz: %w", d, err)
	}

	machine, err := quiz.NewMachine(questions, h.rules(), startIndex, score, time.Now())
	if err != nil {
		return nil, err
	}

	run := &quizRun{
		machine:    machine,
		code:       code,
		playerID:   playerID,
		sessionID:  sessionID,
		difficulty: d,
	}
	if code != "" {
		run.participant = client.NewParticipant(h.store, code, playerID, lastSeenSeq)
	}

	h.mu.Lock()
	h.runs[runKey(code, playerID)] = run
	h.mu.Unlock()

	log.Printf("🎮 Started %s quiz run for player %s (room %q, question %d, score %d)",
		d, playerID, code, startIndex, score)
	return run, nil
}

// getOrStartRun returns the existing run or starts one from the given state.
func (h *Handler) getOrStartRun(ctx context.Context, code, playerID, sessionID string, d game.Difficulty, startIndex, score int, lastSeenSeq int64) (*quizRun, error) {
	if run := h.getRun(code, playerID); run != nil {
		return run, nil
	}
	return h.startRun(ctx, code, playerID, sessionID, d, startIndex, score, lastSeenSeq)
}

// dropRun removes a run from the registry and stops its checkpoint listener.
func (h *Handler) dropRun(code, playerID string) {
	h.mu.Lock()
	run := h.runs[runKey(code, playerID)]
	delete(h.runs, runKey(code, playerID))
	h.mu.Unlock()

	if run != nil && run.participant != nil {
		run.participant.Stop()
	}
}

// saveRunSession persists the run's resumable state. Failures are logged and
// swallowed: the live run is authoritative, the record is only for reloads.
func (h *Handler) saveRunSession(run *quizRun, playerName string, isHost, hostIsObserver bool) {
	var index, score int
	run.do(func(m *quiz.Machine) {
		index = m.Index()
		score = m.Score()
		// A checkpointed question is complete; resuming must not replay it
		if m.Phase() == quiz.PhaseCheckpoint || m.Phase() == quiz.PhaseFinished {
			index++
		}
	})

	err := h.sessions.Save(run.sessionID, session.Context{
		RoomCode:       run.code,
		PlayerID:       run.playerID,
		PlayerName:     playerName,
		IsHost:         isHost,
		HostIsObserver: hostIsObserver,
		Difficulty:     run.difficulty,
		QuestionIndex:  index,
		Score:          score,
	})
	if err != nil {
		log.Printf("❌ Failed to save session %s: %v", run.sessionID, err)
	}
}
