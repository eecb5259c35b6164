package quiz

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log"
	"time"

	"escparty/internal/game"
)

// Per-difficulty data files inside the embedded quizdata directory.
var difficultyFiles = map[game.Difficulty]string{
	game.DifficultyEasy:   "quizdata/escBeginnerQuiz.json",
	game.DifficultyMedium: "quizdata/escIntermediateQuiz.json",
	game.DifficultyHard:   "quizdata/escAdvancedQuiz.json",
}

// DefaultLoadTimeout bounds a quiz load; a load that exceeds it fails with
// ErrLoadTimeout instead of leaving the player on an infinite spinner.
const DefaultLoadTimeout = 10 * time.Second

// Library loads quiz questions per difficulty. The primary source is the
// embedded data FS; when a file is missing the library falls back to a small
// built-in question set so the game stays playable.
type Library struct {
	fsys    fs.FS
	timeout time.Duration
}

// NewLibrary creates a library over the given filesystem (normally the
// embedded quizdata FS).
func NewLibrary(fsys fs.FS) *Library {
	return &Library{fsys: fsys, timeout: DefaultLoadTimeout}
}

// WithTimeout overrides the load budget, mainly for tests.
func (l *Library) WithTimeout(d time.Duration) *Library {
	l.timeout = d
	return l
}

// Load returns the playable questions for a difficulty, disabled entries
// filtered out, in file order.
func (l *Library) Load(ctx context.Context, difficulty game.Difficulty) ([]Question, error) {
	if !difficulty.Valid() {
		difficulty = game.DifficultyEasy
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	type result struct {
		questions []Question
		err       error
	}
	done := make(chan result, 1)
	go func() {
		qs, err := l.load(difficulty)
		done <- result{qs, err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrLoadTimeout, ctx.Err())
	case res := <-done:
		return res.questions, res.err
	}
}

func (l *Library) load(difficulty game.Difficulty) ([]Question, error) {
	data, err := fs.ReadFile(l.fsys, difficultyFiles[difficulty])
	if err != nil {
		log.Printf("⚠️ Quiz file for %s unreadable (%v), using fallback data", difficulty, err)
		return filterDisabled(fallbackQuestions[difficulty]), nil
	}

	var questions []Question
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedQuiz, err)
	}

	playable := filterDisabled(questions)
	if len(playable) == 0 {
		return nil, ErrNoQuestions
	}
	return playable, nil
}

func filterDisabled(questions []Question) []Question {
	playable := make([]Question, 0, len(questions))
	for _, q := range questions {
		if !q.Disabled {
			playable = append(playable, q)
		}
	}
	return playable
}

// Minimal built-in question set used when a data file cannot be read.
var fallbackQuestions = map[game.Difficulty][]Question{
	game.DifficultyEasy: {
		{
			ID:            1,
			Question:      "Which two countries are tied for the most Eurovision wins?",
			Options:       []string{"Sweden and Ireland", "United Kingdom and France", "Sweden and Norway", "Ireland and Netherlands"},
			CorrectAnswer: "Sweden and Ireland",
		},
		{
			ID:            2,
			Question:      "What year did ABBA win Eurovision with 'Waterloo'?",
			Options:       []string{"1969", "1974", "1982", "1990"},
			CorrectAnswer: "1974",
		},
	},
	game.DifficultyMedium: {
		{
			ID:            11,
			Question:      "In which year did Alexander Rybak win Eurovision with 'Fairytale'?",
			Options:       []string{"2007", "2009", "2011", "2013"},
			CorrectAnswer: "2009",
		},
		{
			ID:            12,
			Question:      "Which country won Eurovision in 2010 with Lena's 'Satellite'?",
			Options:       []string{"Germany", "Denmark", "Norway", "Sweden"},
			CorrectAnswer: "Germany",
		},
	},
	game.DifficultyHard: {
		{
			ID:            21,
			Question:      "In which city did Dana International win Eurovision with 'Diva' in 1998?",
			Options:       []string{"Birmingham", "Jerusalem", "Dublin", "Oslo"},
			CorrectAnswer: "Birmingham",
		},
		{
			ID:            22,
			Question:      "Which countries were declared joint winners of the Eurovision Song Contest in 1969 due to a four-way tie?",
			Options:       []string{"Spain, United Kingdom, Netherlands, and France", "Spain, United Kingdom, Netherlands, and Germany", "Spain, United Kingdom, France, and Italy", "Spain, Netherlands, France, and Germany"},
			CorrectAnswer: "Spain, United Kingdom, Netherlands, and France",
		},
	},
}
