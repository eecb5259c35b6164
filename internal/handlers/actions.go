package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	datastar "github.com/starfederation/datastar-go/datastar"

	"escparty/internal/client"
	"escparty/internal/game"
	"escparty/internal/quiz"
)

// SetDifficulty records the host's difficulty choice for the room
func (h *Handler) SetDifficulty(w http.ResponseWriter, r *http.Request) {
	roomCode := strings.ToUpper(chi.URLParam(r, "code"))

	if cookieValue(r, "host_"+roomCode) != "true" {
		http.Error(w, "Unauthorized - Host access only", http.StatusUnauthorized)
		return
	}

	difficulty := game.ParseDifficulty(r.FormValue("difficulty"))

	if err := h.store.SetDifficulty(r.Context(), roomCode, difficulty); err != nil {
		log.Printf("❌ Failed to set difficulty for room %s: %v", roomCode, err)
		sse := datastar.NewSSE(w, r)
		msg := "Failed to set difficulty"
		if errors.Is(err, game.ErrGameStarted) {
			msg = "The game has already started"
		}
		sse.PatchElements(errorAlert(msg), datastar.WithSelector("#error-container"))
		return
	}

	log.Printf("🎯 Room %s difficulty set to %s", roomCode, difficulty)
	w.WriteHeader(http.StatusOK)
}

// StartGame starts the quiz for everyone in the room
func (h *Handler) StartGame(w http.ResponseWriter, r *http.Request) {
	roomCode := strings.ToUpper(chi.URLParam(r, "code"))
	log.Printf("🚀 StartGame called for room: %s", roomCode)

	if cookieValue(r, "host_"+roomCode) != "true" {
		http.Error(w, "Unauthorized - Host access only", http.StatusUnauthorized)
		return
	}

	if err := h.store.StartGame(r.Context(), roomCode); err != nil {
		log.Printf("❌ Failed to start game in room %s: %v", roomCode, err)

		// Always return HTTP 200 with an error fragment so the button
		// updates in place
		sse := datastar.NewSSE(w, r)
		msg := "Failed to start the game"
		switch {
		case errors.Is(err, game.ErrNoDifficulty):
			msg = "Pick a difficulty first"
		case errors.Is(err, game.ErrRoomNotFound):
			msg = "Room not found"
		}
		sse.PatchElements(errorAlert(msg), datastar.WithSelector("#error-container"))
		sse.MarshalAndPatchSignals(map[string]interface{}{
			"isStarting": false,
		})
		return
	}

	log.Printf("✅ Game started in room %s", roomCode)
	w.WriteHeader(http.StatusOK)
}

// SelectAnswer records the player's (not yet locked) option choice
func (h *Handler) SelectAnswer(w http.ResponseWriter, r *http.Request) {
	roomCode := strings.ToUpper(chi.URLParam(r, "code"))
	playerID := cookieValue(r, "player_"+roomCode)
	if playerID == "" {
		http.Error(w, "Not in room", http.StatusUnauthorized)
		return
	}
	h.selectAnswer(w, r, roomCode, playerID)
}

// SubmitAnswer locks in the player's current selection
func (h *Handler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	roomCode := strings.ToUpper(chi.URLParam(r, "code"))
	playerID := cookieValue(r, "player_"+roomCode)
	if playerID == "" {
		http.Error(w, "Not in room", http.StatusUnauthorized)
		return
	}
	h.submitAnswer(w, r, roomCode, playerID)
}

// ContinueQuiz is the host's checkpoint continue signal for the whole room
func (h *Handler) ContinueQuiz(w http.ResponseWriter, r *http.Request) {
	roomCode := strings.ToUpper(chi.URLParam(r, "code"))

	if cookieValue(r, "host_"+roomCode) != "true" {
		http.Error(w, "Unauthorized - Host access only", http.StatusUnauthorized)
		return
	}

	host := client.NewHost(h.store, roomCode, h.cfg.Game.ContinueGrace)
	if err := host.ContinueQuiz(r.Context()); err != nil {
		log.Printf("❌ Failed to signal continue for room %s: %v", roomCode, err)
		sse := datastar.NewSSE(w, r)
		sse.PatchElements(errorAlert("Failed to continue the quiz"), datastar.WithSelector("#error-container"))
		return
	}

	log.Printf("▶️ Host signaled continue for room %s", roomCode)
	w.WriteHeader(http.StatusOK)
}

// LeaveRoom removes this browser from the room. A leaving host tears the
// room down, which evicts everyone else through the nil snapshot.
func (h *Handler) LeaveRoom(w http.ResponseWriter, r *http.Request) {
	roomCode := strings.ToUpper(chi.URLParam(r, "code"))

	playerID := cookieValue(r, "player_"+roomCode)
	isHost := cookieValue(r, "host_"+roomCode) == "true"

	if isHost {
		if err := h.store.DeleteRoom(r.Context(), roomCode); err != nil {
			log.Printf("❌ Failed to delete room %s: %v", roomCode, err)
		} else {
			log.Printf("🗑️ Host closed room %s", roomCode)
		}
	}

	if playerID != "" {
		h.dropRun(roomCode, playerID)
	}

	sessionID := getOrCreateSession(w, r)
	h.sessions.Clear(sessionID)

	for _, name := range []string{"player_" + roomCode, "host_" + roomCode} {
		http.SetCookie(w, &http.Cookie{
			Name:   name,
			Value:  "",
			Path:   "/",
			MaxAge: -1,
		})
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// SoloSelect records a solo player's option choice
func (h *Handler) SoloSelect(w http.ResponseWriter, r *http.Request) {
	sessionID := getOrCreateSession(w, r)
	h.selectAnswer(w, r, "", sessionID)
}

// SoloSubmit locks in a solo player's selection
func (h *Handler) SoloSubmit(w http.ResponseWriter, r *http.Request) {
	sessionID := getOrCreateSession(w, r)
	h.submitAnswer(w, r, "", sessionID)
}

// SoloContinue resumes a solo run from the checkpoint scoreboard
func (h *Handler) SoloContinue(w http.ResponseWriter, r *http.Request) {
	sessionID := getOrCreateSession(w, r)

	run := h.getRun("", sessionID)
	if run == nil {
		http.Error(w, "No active quiz", http.StatusNotFound)
		return
	}

	h.eventBus.Publish(Event{Type: "continue_now", Key: runKey("", sessionID)})
	w.WriteHeader(http.StatusOK)
}

// selectAnswer is the shared select path for room and solo runs.
func (h *Handler) selectAnswer(w http.ResponseWriter, r *http.Request, code, playerID string) {
	run := h.getRun(code, playerID)
	if run == nil {
		http.Error(w, "No active quiz", http.StatusNotFound)
		return
	}

	option := r.FormValue("option")

	var selectErr error
	run.do(func(m *quiz.Machine) {
		selectErr = m.Select(option)
	})
	if selectErr != nil {
		// Late clicks after the countdown or submission are expected; the
		// stream has already moved the view on
		w.WriteHeader(http.StatusOK)
		return
	}

	h.eventBus.Publish(Event{Type: "selected", Key: runKey(code, playerID)})
	w.WriteHeader(http.StatusOK)
}

// submitAnswer is the shared submit path for room and solo runs.
func (h *Handler) submitAnswer(w http.ResponseWriter, r *http.Request, code, playerID string) {
	run := h.getRun(code, playerID)
	if run == nil {
		http.Error(w, "No active quiz", http.StatusNotFound)
		return
	}

	var submitErr error
	run.do(func(m *quiz.Machine) {
		submitErr = m.Submit(time.Now())
	})
	if submitErr != nil {
		if errors.Is(submitErr, quiz.ErrNoSelection) {
			sse := datastar.NewSSE(w, r)
			sse.PatchElements(errorAlert("Pick an answer first"), datastar.WithSelector("#error-container"))
			return
		}
		// Submitting outside the answering phase is a harmless late click
		w.WriteHeader(http.StatusOK)
		return
	}

	h.eventBus.Publish(Event{Type: "submitted", Key: runKey(code, playerID)})
	w.WriteHeader(http.StatusOK)
}
