package quiz

import (
	"errors"
	"time"
)

// Phase is the client-local lifecycle stage of the current question.
type Phase string

const (
	// PhaseAnswering runs the countdown and accepts option selection.
	PhaseAnswering Phase = "answering"
	// PhaseFeedback reveals the correct answer; no input is accepted.
	PhaseFeedback Phase = "feedback"
	// PhaseCheckpoint pauses the run on the mid-quiz scoreboard.
	PhaseCheckpoint Phase = "checkpoint"
	// PhaseFinished means the last question is done.
	PhaseFinished Phase = "finished"
)

// Advance is the machine's decision at the end of a feedback window.
type Advance int

const (
	// AdvanceNone means nothing happened on this tick.
	AdvanceNone Advance = iota
	// AdvanceNext means a fresh question is now answering.
	AdvanceNext
	// AdvanceCheckpoint routes to the mid-quiz scoreboard flow.
	AdvanceCheckpoint
	// AdvanceFinished routes to the results flow.
	AdvanceFinished
)

// Rules are the timing and scoring constants for a quiz run.
type Rules struct {
	AnswerBudget       time.Duration
	FeedbackWindow     time.Duration
	CheckpointInterval int
	BasePoints         int
	BonusMax           int
}

// DefaultRules matches the multiplayer game: 10s to answer, 5s of feedback
// extended by unused answer time, a checkpoint every 5 questions, 500 base
// points plus up to 500 time bonus.
func DefaultRules() Rules {
	return Rules{
		AnswerBudget:       10 * time.Second,
		FeedbackWindow:     5 * time.Second,
		CheckpointInterval: 5,
		BasePoints:         500,
		BonusMax:           500,
	}
}

var (
	// ErrNotAnswering rejects input outside the answering phase.
	ErrNotAnswering = errors.New("not in answering phase")

	// ErrNoSelection rejects an explicit submit with no option chosen.
	ErrNoSelection = errors.New("no option selected")
)

// Machine drives one client's question lifecycle: countdown, submission or
// timeout, feedback, and the advance decision. It is purely deterministic —
// every method takes the current time — so the owning view drives it from a
// real ticker while tests feed it synthetic clocks.
type Machine struct {
	questions []Question
	rules     Rules

	index    int
	score    int
	phase    Phase
	selected string

	submitted   bool
	timedOut    bool
	lastCorrect bool
	lastAwarded int

	answerDeadline time.Time
	feedbackUntil  time.Time
}

// NewMachine starts a run at startIndex carrying score, normally 0/0 for a
// fresh quiz or the checkpoint-carried values when resuming mid-quiz.
func NewMachine(questions []Question, rules Rules, startIndex, score int, now time.Time) (*Machine, error) {
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}
	m := &Machine{
		questions: questions,
		rules:     rules,
		index:     startIndex,
		score:     score,
	}
	if startIndex >= len(questions) {
		m.phase = PhaseFinished
		return m, nil
	}
	m.beginQuestion(now)
	return m, nil
}

func (m *Machine) beginQuestion(now time.Time) {
	m.phase = PhaseAnswering
	m.selected = ""
	m.submitted = false
	m.timedOut = false
	m.lastCorrect = false
	m.lastAwarded = 0
	m.answerDeadline = now.Add(m.rules.AnswerBudget)
}

// Current returns the question being played. ok is false once finished.
func (m *Machine) Current() (Question, bool) {
	if m.index >= len(m.questions) {
		return Question{}, false
	}
	return m.questions[m.index], true
}

// Select records the player's choice. Selecting again before submission
// replaces the previous choice.
func (m *Machine) Select(option string) error {
	if m.phase != PhaseAnswering || m.submitted {
		return ErrNotAnswering
	}
	m.selected = option
	return nil
}

// Submit locks in the current selection. Only the first submission per
// question is honored; later calls are no-ops.
func (m *Machine) Submit(now time.Time) error {
	if m.phase != PhaseAnswering {
		return ErrNotAnswering
	}
	if m.submitted {
		return nil
	}
	if m.selected == "" {
		return ErrNoSelection
	}

	remaining := m.answerDeadline.Sub(now)
	if remaining < 0 {
		remaining = 0
	}

	q := m.questions[m.index]
	m.submitted = true
	m.lastCorrect = m.selected == q.CorrectAnswer
	if m.lastCorrect {
		m.lastAwarded = m.rules.BasePoints + timeBonus(m.rules.BonusMax, remaining, m.rules.AnswerBudget)
		m.score += m.lastAwarded
	}

	// Unused answering time extends the feedback window
	m.phase = PhaseFeedback
	m.feedbackUntil = now.Add(m.rules.FeedbackWindow + remaining)
	return nil
}

// timeBonus is floor(bonusMax * remaining / total) at millisecond resolution.
func timeBonus(bonusMax int, remaining, total time.Duration) int {
	if total <= 0 {
		return 0
	}
	return int(int64(bonusMax) * remaining.Milliseconds() / total.Milliseconds())
}

// Tick advances time-driven transitions: the countdown reaching zero forces
// a zero-point submission, and an elapsed feedback window produces the
// advance decision. Returns AdvanceNone unless this tick crossed a phase
// boundary out of feedback.
func (m *Machine) Tick(now time.Time) Advance {
	switch m.phase {
	case PhaseAnswering:
		if !now.Before(m.answerDeadline) {
			// Timeout: no points, straight to feedback
			m.submitted = true
			m.timedOut = true
			m.phase = PhaseFeedback
			m.feedbackUntil = now.Add(m.rules.FeedbackWindow)
		}
		return AdvanceNone
	case PhaseFeedback:
		if now.Before(m.feedbackUntil) {
			return AdvanceNone
		}
		return m.advance(now)
	default:
		return AdvanceNone
	}
}

// advance decides the route after feedback. A completed count that is a
// multiple of the checkpoint interval always routes to the checkpoint,
// even when it is also the final question.
func (m *Machine) advance(now time.Time) Advance {
	completed := m.index + 1
	if m.rules.CheckpointInterval > 0 && completed%m.rules.CheckpointInterval == 0 {
		m.phase = PhaseCheckpoint
		return AdvanceCheckpoint
	}
	if completed >= len(m.questions) {
		m.phase = PhaseFinished
		return AdvanceFinished
	}
	m.index++
	m.beginQuestion(now)
	return AdvanceNext
}

// ContinueFromCheckpoint resumes after the mid-quiz scoreboard. When the
// checkpoint fell on the final question there is nothing left to play and
// the run finishes instead.
func (m *Machine) ContinueFromCheckpoint(now time.Time) Advance {
	if m.phase != PhaseCheckpoint {
		return AdvanceNone
	}
	next := m.index + 1
	if next >= len(m.questions) {
		m.phase = PhaseFinished
		return AdvanceFinished
	}
	m.index = next
	m.beginQuestion(now)
	return AdvanceNext
}

// Phase returns the current lifecycle stage.
func (m *Machine) Phase() Phase { return m.phase }

// Index is the zero-based index of the current question.
func (m *Machine) Index() int { return m.index }

// Total is the number of playable questions.
func (m *Machine) Total() int { return len(m.questions) }

// Score is the accumulated score for this run.
func (m *Machine) Score() int { return m.score }

// Selected returns the current (not yet submitted) choice.
func (m *Machine) Selected() string { return m.selected }

// Submitted reports whether the current question is locked in.
func (m *Machine) Submitted() bool { return m.submitted }

// TimedOut reports whether the current question ended by countdown expiry.
func (m *Machine) TimedOut() bool { return m.timedOut }

// LastCorrect reports whether the locked-in answer was correct.
func (m *Machine) LastCorrect() bool { return m.lastCorrect }

// LastAwarded is the score awarded for the current question.
func (m *Machine) LastAwarded() int { return m.lastAwarded }

// Remaining is the answering time left, clamped at zero.
func (m *Machine) Remaining(now time.Time) time.Duration {
	if m.phase != PhaseAnswering {
		return 0
	}
	remaining := m.answerDeadline.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// FeedbackRemaining is the feedback display time left, clamped at zero.
func (m *Machine) FeedbackRemaining(now time.Time) time.Duration {
	if m.phase != PhaseFeedback {
		return 0
	}
	remaining := m.feedbackUntil.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}
