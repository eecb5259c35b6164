package quiz

import "errors"

// Question is one quiz entry as stored in the per-difficulty JSON files.
// Entries flagged disabled are filtered out before play.
type Question struct {
	ID            int      `json:"id"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
	Disabled      bool     `json:"disabled,omitempty"`
}

var (
	// ErrMalformedQuiz means the quiz payload is not an array of questions
	// in the expected shape.
	ErrMalformedQuiz = errors.New("quiz data is malformed")

	// ErrLoadTimeout means loading exceeded its budget.
	ErrLoadTimeout = errors.New("quiz data load timed out")

	// ErrNoQuestions means the file parsed fine but nothing is playable.
	ErrNoQuestions = errors.New("no playable questions")
)
