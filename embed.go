package escparty

import (
	"embed"
	_ "embed"
)

// Embed the quiz data files, one JSON file per difficulty
//
//go:embed quizdata/*.json
var QuizDataFS embed.FS

// Embed the themed display-name pool
//
//go:embed static/display-names.yaml
var DisplayNamesYAML []byte
