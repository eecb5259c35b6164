package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"escparty/internal/config"
	"escparty/internal/game"
	"escparty/internal/quiz"
	"escparty/internal/session"
	"escparty/internal/store"
)

const testQuizJSON = `[
  {"id": 1, "question": "Which country hosted in 2024?", "options": ["Sweden", "Finland", "Norway", "Denmark"], "correctAnswer": "Sweden"},
  {"id": 2, "question": "Who won in 2014?", "options": ["Conchita Wurst", "Loreen", "Duncan Laurence", "Netta"], "correctAnswer": "Conchita Wurst"},
  {"id": 3, "question": "How many times has Ireland won?", "options": ["5", "6", "7", "8"], "correctAnswer": "7"}
]`

const testNamesYAML = `hostName: "👑 Host"
names:
  - Loreen
  - Conchita
  - Verka
  - Käärijä
`

// newTestHandler wires a handler over in-memory everything: memory room
// store, a tiny quiz set, and session state in a temp dir.
func newTestHandler(t *testing.T) *Handler {
	t.Helper()

	fsys := fstest.MapFS{
		"quizdata/escBeginnerQuiz.json":     {Data: []byte(testQuizJSON)},
		"quizdata/escIntermediateQuiz.json": {Data: []byte(testQuizJSON)},
		"quizdata/escAdvancedQuiz.json":     {Data: []byte(testQuizJSON)},
	}
	library := quiz.NewLibrary(fsys).WithTimeout(time.Second)

	names, err := game.NewNamePool([]byte(testNamesYAML))
	require.NoError(t, err)

	sessions, err := session.NewStore(t.TempDir())
	require.NoError(t, err)
	history, err := session.NewHistory(t.TempDir())
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.Server.Port = "8080"
	cfg.Server.Host = "localhost"
	cfg.Game.ContinueGrace = 20 * time.Millisecond

	return New(store.NewMemoryStore(), library, names, sessions, history, cfg)
}

// newTestRouter builds the full route tree minus logging and rate limits.
func newTestRouter(t *testing.T, h *Handler) *chi.Mux {
	t.Helper()
	return SetupRouter(h, h.cfg, &RouterOptions{
		DisableRateLimiting:  true,
		DisableRequestLogger: true,
		StaticDir:            t.TempDir(),
	})
}

// postForm sends a form POST through the router, carrying any cookies.
func postForm(router *chi.Mux, path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// get sends a GET through the router, carrying any cookies.
func get(router *chi.Mux, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// createTestRoom makes a room through the real creation flow and returns the
// code plus the cookies the browser would carry afterwards.
func createTestRoom(t *testing.T, router *chi.Mux, playerName string, hostOnly bool) (string, []*http.Cookie) {
	t.Helper()

	form := url.Values{}
	form.Set("playerName", playerName)
	if hostOnly {
		form.Set("hostOnly", "true")
	}

	w := postForm(router, "/room/new", form)
	require.Equal(t, http.StatusSeeOther, w.Code)

	location := w.Result().Header.Get("Location")
	code := strings.TrimPrefix(location, "/room/")
	code = strings.TrimSuffix(code, "/observer")
	require.Len(t, code, 4)

	return code, w.Result().Cookies()
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}
