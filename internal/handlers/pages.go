package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"escparty/internal/client"
	"escparty/internal/game"
	"escparty/internal/session"
	"escparty/internal/store"
)

// Home renders the home page, with a resume banner when a recoverable
// session exists for this browser.
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	sessionID := getOrCreateSession(w, r)

	banner := ""
	entry, err := client.Recover(r.Context(), h.sessions, sessionID, h.store)
	if err == nil {
		switch e := entry.(type) {
		case client.SinglePlayerEntry:
			banner = resumeBanner("You have an unfinished " + string(e.Difficulty) + " quiz.")
		case client.ParticipantEntry:
			banner = resumeBanner("You have an unfinished game in room " + e.RoomCode + ".")
		case client.ObserverHostEntry:
			banner = resumeBanner("You are hosting room " + e.RoomCode + ".")
		}
	} else if !errors.Is(err, client.ErrNoSession) {
		log.Printf("❌ Session recovery check failed for %s: %v", sessionID, err)
	}

	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte(homePage(banner)))
}

// CreateRoom creates a new room and redirects to it
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	playerName := strings.TrimSpace(r.FormValue("playerName"))
	if playerName == "" {
		playerName = h.names.HostName()
	}

	// Check if creating as host only (observer mode)
	hostOnly := r.FormValue("hostOnly") == "true"

	sessionID := getOrCreateSession(w, r)
	playerID := generatePlayerID()

	code, err := store.CreateRoomWithFreshCode(r.Context(), h.store, h.cfg.Game.RoomCodeLength, playerID, playerName, hostOnly)
	if err != nil {
		log.Printf("❌ Failed to create room: %v", err)
		http.Error(w, "Failed to create room", http.StatusInternalServerError)
		return
	}

	// Store player ID in session
	http.SetCookie(w, &http.Cookie{
		Name:     "player_" + code,
		Value:    playerID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   86400, // 1 day
	})

	http.SetCookie(w, &http.Cookie{
		Name:     "host_" + code,
		Value:    "true",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   86400, // 1 day
	})

	// Persist the session record for reload recovery
	if err := h.sessions.Save(sessionID, session.Context{
		RoomCode:       code,
		PlayerID:       playerID,
		PlayerName:     playerName,
		IsHost:         true,
		HostIsObserver: hostOnly,
	}); err != nil {
		log.Printf("❌ Failed to save session %s: %v", sessionID, err)
	}

	log.Printf("✅ Created room %s (host %s, observer=%v)", code, playerName, hostOnly)

	if hostOnly {
		http.Redirect(w, r, "/room/"+code+"/observer", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/room/"+code, http.StatusSeeOther)
}

// RoomPage shows the lobby, the join form, or forwards into the running game.
func (h *Handler) RoomPage(w http.ResponseWriter, r *http.Request) {
	roomCode := strings.ToUpper(chi.URLParam(r, "code"))

	room, err := h.store.GetRoom(r.Context(), roomCode)
	if err != nil {
		http.Error(w, "Room not found", http.StatusNotFound)
		return
	}

	// Check if player is already in room
	playerCookie, err := r.Cookie("player_" + roomCode)
	if err == nil {
		player := room.Player(playerCookie.Value)
		if player != nil {
			isHost := player.ID == room.HostID

			if isHost && room.HostIsObserver {
				http.Redirect(w, r, "/room/"+roomCode+"/observer", http.StatusSeeOther)
				return
			}
			if room.Started {
				http.Redirect(w, r, "/quiz/"+roomCode, http.StatusSeeOther)
				return
			}

			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte(lobbyPage(room, player.ID, isHost)))
			return
		}

		// Cookie exists but player not in room - clear the stale cookie
		http.SetCookie(w, &http.Cookie{
			Name:   "player_" + roomCode,
			Value:  "",
			Path:   "/",
			MaxAge: -1,
		})
	}

	if room.Started {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(joinFormPage(roomCode, "This game has already started.")))
		return
	}

	// Show join form
	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte(joinFormPage(roomCode, "")))
}

// JoinRoomPost joins a room from the home page or the join form
func (h *Handler) JoinRoomPost(w http.ResponseWriter, r *http.Request) {
	roomCode := strings.ToUpper(strings.TrimSpace(r.FormValue("code")))
	if roomCode == "" {
		http.Error(w, "Room code is required", http.StatusBadRequest)
		return
	}

	room, err := h.store.GetRoom(r.Context(), roomCode)
	if err != nil {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(joinFormPage(roomCode, "Room not found. Check the code and try again.")))
		return
	}

	// Reuse the player ID from an earlier visit so a re-join is idempotent
	var playerID string
	if cookie, err := r.Cookie("player_" + roomCode); err == nil && cookie.Value != "" {
		playerID = cookie.Value
	} else {
		playerID = generatePlayerID()
	}

	playerName := strings.TrimSpace(r.FormValue("playerName"))
	if playerName == "" {
		playerName = h.names.Pick(room)
	}

	if err := h.store.JoinRoom(r.Context(), roomCode, playerID, playerName); err != nil {
		if errors.Is(err, game.ErrGameStarted) {
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte(joinFormPage(roomCode, "This game has already started.")))
			return
		}
		log.Printf("❌ Failed to join room %s: %v", roomCode, err)
		http.Error(w, "Failed to join room", http.StatusInternalServerError)
		return
	}

	sessionID := getOrCreateSession(w, r)

	// Store player ID in session
	http.SetCookie(w, &http.Cookie{
		Name:     "player_" + roomCode,
		Value:    playerID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   86400, // 1 day
	})

	if err := h.sessions.Save(sessionID, session.Context{
		RoomCode:   roomCode,
		PlayerID:   playerID,
		PlayerName: playerName,
	}); err != nil {
		log.Printf("❌ Failed to save session %s: %v", sessionID, err)
	}

	log.Printf("✅ Player %s joined room %s", playerName, roomCode)
	http.Redirect(w, r, "/room/"+roomCode, http.StatusSeeOther)
}

// QuizPage shows the running quiz for a room participant. Entering the page
// starts (or resumes) the player's server-side run.
func (h *Handler) QuizPage(w http.ResponseWriter, r *http.Request) {
	roomCode := strings.ToUpper(chi.URLParam(r, "code"))

	room, err := h.store.GetRoom(r.Context(), roomCode)
	if err != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if !room.Started {
		http.Redirect(w, r, "/room/"+roomCode, http.StatusSeeOther)
		return
	}

	playerCookie, err := r.Cookie("player_" + roomCode)
	if err != nil || room.Player(playerCookie.Value) == nil {
		http.Redirect(w, r, "/room/"+roomCode, http.StatusSeeOther)
		return
	}
	playerID := playerCookie.Value

	sessionID := getOrCreateSession(w, r)

	// A saved record for this room carries the resume point; the room's
	// continue sequence seeds the edge trigger so a still-true continue
	// flag from before the reload cannot re-fire.
	startIndex, score := 0, 0
	if sc, ok := h.sessions.Restore(sessionID); ok && sc.RoomCode == roomCode && sc.PlayerID == playerID {
		startIndex, score = sc.QuestionIndex, sc.Score
	}

	if _, err := h.getOrStartRun(r.Context(), roomCode, playerID, sessionID, room.Difficulty, startIndex, score, room.ContinueSeq); err != nil {
		log.Printf("❌ Failed to start quiz run for room %s: %v", roomCode, err)
		http.Error(w, "Failed to load quiz", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte(quizPage("Quiz "+roomCode, "/sse/quiz/"+roomCode)))
}

// SoloQuizPage starts or resumes a single-player quiz.
func (h *Handler) SoloQuizPage(w http.ResponseWriter, r *http.Request) {
	sessionID := getOrCreateSession(w, r)
	difficulty := game.ParseDifficulty(r.URL.Query().Get("difficulty"))

	startIndex, score := 0, 0
	if sc, ok := h.sessions.Restore(sessionID); ok && !sc.Multiplayer() && sc.Difficulty == difficulty {
		startIndex, score = sc.QuestionIndex, sc.Score
	}

	if _, err := h.getOrStartRun(r.Context(), "", sessionID, sessionID, difficulty, startIndex, score, 0); err != nil {
		log.Printf("❌ Failed to start solo quiz: %v", err)
		http.Error(w, "Failed to load quiz", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte(quizPage("Solo quiz", "/sse/solo")))
}

// ResultsPage shows the final multiplayer scoreboard.
func (h *Handler) ResultsPage(w http.ResponseWriter, r *http.Request) {
	roomCode := strings.ToUpper(chi.URLParam(r, "code"))

	room, err := h.store.GetRoom(r.Context(), roomCode)
	if err != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte(resultsPage(room)))
}

// SoloResultsPage shows the final solo score and the local score history,
// then retires the run and its session record.
func (h *Handler) SoloResultsPage(w http.ResponseWriter, r *http.Request) {
	sessionID := getOrCreateSession(w, r)

	run := h.getRun("", sessionID)
	if run == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	v := run.view(time.Now())
	h.dropRun("", sessionID)
	if err := h.sessions.Clear(sessionID); err != nil {
		log.Printf("❌ Failed to clear session %s: %v", sessionID, err)
	}

	records := h.history.Sorted(session.SortByDate)

	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte(soloResultsPage(v.Score, v.Total, run.difficulty, records)))
}

// ObserverPage shows the observer host's dashboard.
func (h *Handler) ObserverPage(w http.ResponseWriter, r *http.Request) {
	roomCode := strings.ToUpper(chi.URLParam(r, "code"))

	if cookieValue(r, "host_"+roomCode) != "true" {
		http.Error(w, "Unauthorized - Host access only", http.StatusUnauthorized)
		return
	}

	if _, err := h.store.GetRoom(r.Context(), roomCode); err != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte(observerPage(roomCode)))
}

// ResumeSession re-enters whatever the saved session points at.
func (h *Handler) ResumeSession(w http.ResponseWriter, r *http.Request) {
	sessionID := getOrCreateSession(w, r)

	entry, err := client.Recover(r.Context(), h.sessions, sessionID, h.store)
	if err != nil {
		if !errors.Is(err, client.ErrNoSession) {
			log.Printf("❌ Session recovery failed for %s: %v", sessionID, err)
		}
		// Nothing to resume; the stale record is useless now
		h.sessions.Clear(sessionID)
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	switch e := entry.(type) {
	case client.SinglePlayerEntry:
		http.Redirect(w, r, "/solo?difficulty="+string(e.Difficulty), http.StatusSeeOther)

	case client.ParticipantEntry:
		h.restoreRoomCookies(w, e.RoomCode, e.PlayerID, e.IsHost)
		http.Redirect(w, r, "/room/"+e.RoomCode, http.StatusSeeOther)

	case client.ObserverHostEntry:
		h.restoreRoomCookies(w, e.RoomCode, e.HostID, true)
		http.Redirect(w, r, "/room/"+e.RoomCode+"/observer", http.StatusSeeOther)

	default:
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

// restoreRoomCookies re-establishes the room cookies after a reload that
// outlived them.
func (h *Handler) restoreRoomCookies(w http.ResponseWriter, roomCode, playerID string, isHost bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     "player_" + roomCode,
		Value:    playerID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   86400,
	})
	if isHost {
		http.SetCookie(w, &http.Cookie{
			Name:     "host_" + roomCode,
			Value:    "true",
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   86400,
		})
	}
}

// cookieValue returns the cookie's value or the empty string.
func cookieValue(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}
