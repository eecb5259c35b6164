package handlers

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	datastar "github.com/starfederation/datastar-go/datastar"
	"github.com/yeqown/go-qrcode/v2"
	"github.com/yeqown/go-qrcode/writer/standard"

	"escparty/internal/game"
	"escparty/internal/quiz"
	"escparty/internal/session"
	"escparty/internal/store"
)

// machine ticks drive countdown expiry and feedback advancement
const tickInterval = 250 * time.Millisecond

// StreamLobby streams lobby updates to a waiting player or active host
func (h *Handler) StreamLobby(w http.ResponseWriter, r *http.Request) {
	roomCode := chi.URLParam(r, "code")
	log.Printf("📡 SSE connection established for lobby %s", roomCode)

	room, err := h.store.GetRoom(r.Context(), roomCode)
	if err != nil {
		log.Printf("📡 SSE requested for non-existent room: %s", roomCode)
		http.Error(w, "Room not found", http.StatusNotFound)
		return
	}

	playerID := cookieValue(r, "player_"+roomCode)
	player := room.Player(playerID)
	if player == nil {
		http.Error(w, "Not in room", http.StatusUnauthorized)
		return
	}
	isHost := cookieValue(r, "host_"+roomCode) == "true"

	sse := datastar.NewSSE(w, r)

	if isHost {
		h.sendQRCode(sse, r, roomCode)
	}

	updates := make(chan *game.Room, 1)
	unsub, err := h.store.ListenToRoom(r.Context(), roomCode, forwardLatest(updates))
	if err != nil {
		log.Printf("❌ Failed to subscribe to room %s: %v", roomCode, err)
		return
	}
	defer unsub()

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			log.Printf("📡 Lobby SSE context cancelled for room %s", roomCode)
			return
		case <-heartbeat.C:
			if err := sse.Send("keepalive", []string{fmt.Sprintf(`{"time":"%s"}`, time.Now().Format(time.RFC3339))}); err != nil {
				log.Printf("📡 Keepalive failed for room %s: %v - closing connection", roomCode, err)
				return
			}
		case room := <-updates:
			if room == nil {
				log.Printf("📡 Room %s vanished, evicting lobby viewer %s", roomCode, playerID)
				sse.PatchElements(
					`<div id="lobby-content"><div class="alert alert-warning"><span>The host closed this room.</span></div></div>`,
					datastar.WithSelector("#lobby-content"))
				sse.ExecuteScript(vanishedScript(h.cfg.Game.EvictionDelay.Milliseconds()))
				return
			}

			if room.Started {
				log.Printf("🎮 Game started - redirecting player %s to quiz for room %s", playerID, roomCode)
				sse.ExecuteScript("window.location.href = '/quiz/" + roomCode + "'")
				if flusher, ok := w.(http.Flusher); ok {
					flusher.Flush()
				}
				return
			}

			sse.PatchElements(lobbyContent(room, playerID, isHost),
				datastar.WithSelector("#lobby-content"))
		}
	}
}

// StreamQuiz drives a room participant's quiz run: machine ticks, action
// events, the checkpoint handshake, and the finish redirect.
func (h *Handler) StreamQuiz(w http.ResponseWriter, r *http.Request) {
	roomCode := chi.URLParam(r, "code")

	playerID := cookieValue(r, "player_"+roomCode)
	if playerID == "" {
		http.Error(w, "Not in room", http.StatusUnauthorized)
		return
	}

	run := h.getRun(roomCode, playerID)
	if run == nil {
		// Server lost the run (restart); send the browser back through the
		// room page to rebuild it from the session record
		sse := datastar.NewSSE(w, r)
		sse.ExecuteScript("window.location.href = '/room/" + roomCode + "'")
		return
	}

	room, err := h.store.GetRoom(r.Context(), roomCode)
	if err != nil {
		http.Error(w, "Room not found", http.StatusNotFound)
		return
	}
	player := room.Player(playerID)
	if player == nil {
		http.Error(w, "Player not found", http.StatusUnauthorized)
		return
	}
	playerName := player.Name
	isHost := playerID == room.HostID

	continuePath := ""
	if isHost {
		// The active host plays and also controls checkpoint advancement
		continuePath = "/room/" + roomCode + "/continue"
	}

	log.Printf("📡 Quiz SSE connection ready for player %s in room %s", playerName, roomCode)
	h.streamRun(w, r, run, streamRunOptions{
		roomCode:     roomCode,
		playerName:   playerName,
		isHost:       isHost,
		continuePath: continuePath,
		resultsPath:  "/results/" + roomCode,
	})
}

// StreamSolo drives a single-player run. Same loop, no room behind it.
func (h *Handler) StreamSolo(w http.ResponseWriter, r *http.Request) {
	sessionID := getOrCreateSession(w, r)

	run := h.getRun("", sessionID)
	if run == nil {
		sse := datastar.NewSSE(w, r)
		sse.ExecuteScript("window.location.href = '/'")
		return
	}

	log.Printf("📡 Solo quiz SSE connection ready for session %s", sessionID)
	h.streamRun(w, r, run, streamRunOptions{
		continuePath: "/solo/continue",
		resultsPath:  "/solo/results",
	})
}

type streamRunOptions struct {
	roomCode     string // empty for solo
	playerName   string
	isHost       bool
	continuePath string // who may press continue at the checkpoint
	resultsPath  string
}

// streamRun is the shared quiz loop. The ticker drives the machine's timed
// transitions, the event channel reacts to this player's own actions and the
// checkpoint continue signal, and phase changes decide what gets rendered.
func (h *Handler) streamRun(w http.ResponseWriter, r *http.Request, run *quizRun, opts streamRunOptions) {
	sse := datastar.NewSSE(w, r)
	multiplayer := opts.roomCode != ""

	key := runKey(run.code, run.playerID)
	events := h.eventBus.Subscribe(key)
	defer h.eventBus.Unsubscribe(key, events)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	// Initial render
	now := time.Now()
	v := run.view(now)
	lastPhase, lastIndex := v.Phase, v.Index
	h.renderRunState(sse, r, run, v, opts)
	lastRemainingSec := int64(-1)

	// Re-arm the checkpoint listener if the stream reconnected while the
	// run was already waiting there
	if v.Phase == quiz.PhaseCheckpoint && multiplayer {
		h.armCheckpoint(r, run, key)
	}

	for {
		select {
		case <-r.Context().Done():
			log.Printf("📡 Quiz SSE context cancelled (room %q, player %s)", run.code, run.playerID)
			return

		case <-heartbeat.C:
			if multiplayer {
				if _, err := h.store.GetRoom(r.Context(), opts.roomCode); err != nil {
					log.Printf("📡 Heartbeat: room %s no longer exists, evicting player %s", opts.roomCode, run.playerID)
					h.evict(sse, run)
					return
				}
			}
			if err := sse.Send("keepalive", []string{fmt.Sprintf(`{"time":"%s"}`, time.Now().Format(time.RFC3339))}); err != nil {
				log.Printf("📡 Keepalive failed (room %q): %v - closing connection", run.code, err)
				return
			}

		case <-ticker.C:
			now := time.Now()
			run.do(func(m *quiz.Machine) { m.Tick(now) })
			v := run.view(now)

			if v.Phase != lastPhase || v.Index != lastIndex {
				lastPhase, lastIndex = v.Phase, v.Index
				lastRemainingSec = -1

				switch v.Phase {
				case quiz.PhaseCheckpoint:
					h.enterCheckpoint(sse, r, run, v, opts, key)
				case quiz.PhaseFinished:
					h.finishRun(sse, r, run, v, opts)
					return
				default:
					h.renderRunState(sse, r, run, v, opts)
				}
				continue
			}

			// Only the countdown number changes between phase transitions
			if v.Phase == quiz.PhaseAnswering {
				sec := (v.RemainingMs + 999) / 1000
				if sec != lastRemainingSec {
					lastRemainingSec = sec
					sse.MarshalAndPatchSignals(map[string]interface{}{"remaining": sec})
				}
			}

		case event, ok := <-events:
			if !ok {
				return
			}
			now := time.Now()

			switch event.Type {
			case "selected":
				h.renderRunState(sse, r, run, run.view(now), opts)

			case "submitted":
				v := run.view(now)
				lastPhase, lastIndex = v.Phase, v.Index
				h.renderRunState(sse, r, run, v, opts)
				if multiplayer && run.participant != nil {
					run.participant.PublishScore(r.Context(), v.Score)
				}
				h.saveRunSession(run, opts.playerName, opts.isHost, false)

			case "continue_now":
				var adv quiz.Advance
				run.do(func(m *quiz.Machine) { adv = m.ContinueFromCheckpoint(now) })
				v := run.view(now)
				lastPhase, lastIndex = v.Phase, v.Index
				lastRemainingSec = -1

				if adv == quiz.AdvanceFinished {
					h.finishRun(sse, r, run, v, opts)
					return
				}
				h.renderRunState(sse, r, run, v, opts)
				h.saveRunSession(run, opts.playerName, opts.isHost, false)

			case "evicted":
				h.evict(sse, run)
				return
			}
		}
	}
}

// renderRunState patches the quiz container for the machine's current phase.
func (h *Handler) renderRunState(sse *datastar.ServerSentEventGenerator, r *http.Request, run *quizRun, v runView, opts streamRunOptions) {
	actionBase := "/solo"
	if opts.roomCode != "" {
		actionBase = "/quiz/" + opts.roomCode
	}

	var html string
	switch v.Phase {
	case quiz.PhaseAnswering:
		html = questionCard(v, actionBase)
	case quiz.PhaseFeedback:
		html = feedbackCard(v)
	case quiz.PhaseCheckpoint:
		html = checkpointCard(v, h.checkpointRoom(r, opts.roomCode), opts.continuePath)
	default:
		return
	}

	sse.PatchElements(html, datastar.WithSelector("#quiz-container"))
	if v.Phase == quiz.PhaseAnswering {
		sse.MarshalAndPatchSignals(map[string]interface{}{"remaining": (v.RemainingMs + 999) / 1000})
	}
}

// checkpointRoom fetches the room snapshot for the checkpoint scoreboard.
// Solo runs have none.
func (h *Handler) checkpointRoom(r *http.Request, roomCode string) *game.Room {
	if roomCode == "" {
		return nil
	}
	room, err := h.store.GetRoom(r.Context(), roomCode)
	if err != nil {
		return nil
	}
	return room
}

// enterCheckpoint publishes the score, marks the player ready, and renders
// the mid-quiz scoreboard. The continue signal arrives through the event bus.
func (h *Handler) enterCheckpoint(sse *datastar.ServerSentEventGenerator, r *http.Request, run *quizRun, v runView, opts streamRunOptions, key string) {
	log.Printf("🏁 Player %s reached the checkpoint (room %q, score %d)", run.playerID, run.code, v.Score)

	if opts.roomCode != "" && run.participant != nil {
		run.participant.PublishScore(r.Context(), v.Score)
		h.armCheckpoint(r, run, key)
	}

	h.saveRunSession(run, opts.playerName, opts.isHost, false)
	h.renderRunState(sse, r, run, v, opts)
}

// armCheckpoint wires the participant's continue handshake into the stream's
// event channel.
func (h *Handler) armCheckpoint(r *http.Request, run *quizRun, key string) {
	err := run.participant.AwaitContinue(r.Context(),
		func() { h.eventBus.Publish(Event{Type: "continue_now", Key: key}) },
		func() { h.eventBus.Publish(Event{Type: "evicted", Key: key}) },
	)
	if err != nil {
		log.Printf("❌ Failed to arm checkpoint for player %s in room %s: %v", run.playerID, run.code, err)
		h.eventBus.Publish(Event{Type: "evicted", Key: key})
	}
}

// finishRun closes out a completed quiz and redirects to the results view.
func (h *Handler) finishRun(sse *datastar.ServerSentEventGenerator, r *http.Request, run *quizRun, v runView, opts streamRunOptions) {
	log.Printf("🏆 Player %s finished (room %q, score %d/%d questions)", run.playerID, run.code, v.Score, v.Total)

	if opts.roomCode != "" {
		if run.participant != nil {
			run.participant.PublishScore(r.Context(), v.Score)
		}
		h.dropRun(run.code, run.playerID)
		h.sessions.Clear(run.sessionID)
	} else {
		// Solo scores land in the local history; the run itself stays
		// registered until the results page consumes it
		if err := h.history.Append(session.ScoreRecord{
			Score:      v.Score,
			Total:      v.Total,
			Difficulty: run.difficulty,
		}); err != nil {
			log.Printf("❌ Failed to record score history: %v", err)
		}
	}

	sse.ExecuteScript("window.location.href = '" + opts.resultsPath + "'")
}

// evict handles a vanished room: message, cleanup, delayed redirect home.
func (h *Handler) evict(sse *datastar.ServerSentEventGenerator, run *quizRun) {
	sse.PatchElements(
		`<div id="quiz-container"><div class="alert alert-warning"><span>The host closed this room.</span></div></div>`,
		datastar.WithSelector("#quiz-container"))
	sse.ExecuteScript(vanishedScript(h.cfg.Game.EvictionDelay.Milliseconds()))

	h.dropRun(run.code, run.playerID)
	h.sessions.Clear(run.sessionID)
}

// StreamObserver streams the observer host's dashboard
func (h *Handler) StreamObserver(w http.ResponseWriter, r *http.Request) {
	roomCode := chi.URLParam(r, "code")
	log.Printf("📡 SSE connection established for observer dashboard %s", roomCode)

	if cookieValue(r, "host_"+roomCode) != "true" {
		log.Printf("📡 Unauthorized observer SSE attempt for room: %s", roomCode)
		http.Error(w, "Unauthorized - Host access only", http.StatusUnauthorized)
		return
	}

	sse := datastar.NewSSE(w, r)

	h.sendQRCode(sse, r, roomCode)

	updates := make(chan *game.Room, 1)
	unsub, err := h.store.ListenToRoom(r.Context(), roomCode, forwardLatest(updates))
	if err != nil {
		log.Printf("❌ Failed to subscribe to room %s: %v", roomCode, err)
		http.Error(w, "Room not found", http.StatusNotFound)
		return
	}
	defer unsub()

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			log.Printf("📡 Observer SSE context cancelled for room %s", roomCode)
			return
		case <-heartbeat.C:
			if err := sse.Send("keepalive", []string{fmt.Sprintf(`{"time":"%s"}`, time.Now().Format(time.RFC3339))}); err != nil {
				log.Printf("📡 Keepalive failed for observer %s: %v - closing connection", roomCode, err)
				return
			}
		case room := <-updates:
			if room == nil {
				sse.PatchElements(
					`<div id="observer-board"><div class="alert alert-warning"><span>This room is gone.</span></div></div>`,
					datastar.WithSelector("#observer-board"))
				sse.ExecuteScript(vanishedScript(h.cfg.Game.EvictionDelay.Milliseconds()))
				return
			}
			sse.PatchElements(observerBoard(room), datastar.WithSelector("#observer-board"))
		}
	}
}

// forwardLatest adapts the store callback to a channel with latest-wins
// delivery, so a slow SSE writer only ever sees the freshest snapshot.
func forwardLatest(ch chan *game.Room) store.OnChange {
	return func(room *game.Room) {
		for {
			select {
			case ch <- room:
				return
			default:
				select {
				case <-ch:
				default:
				}
			}
		}
	}
}

// sendQRCode pushes the join-link QR image to the host as a signal.
func (h *Handler) sendQRCode(sse *datastar.ServerSentEventGenerator, r *http.Request, roomCode string) {
	baseURL := getBaseURL(r)
	qrURL := fmt.Sprintf("%s/room/%s", baseURL, roomCode)

	encoded, err := generateQRCode(qrURL)
	if err != nil {
		log.Printf("❌ Failed to generate QR code for room %s: %v", roomCode, err)
		return
	}

	signals := map[string]string{
		"qrCode": fmt.Sprintf("data:image/png;base64,%s", encoded),
	}
	if err := sse.MarshalAndPatchSignals(signals); err != nil {
		log.Printf("❌ Failed to send QR code signal for room %s: %v", roomCode, err)
	} else {
		log.Printf("📱 Sent QR code for room %s", roomCode)
	}
}

// generateQRCode renders the URL as a base64 encoded PNG.
func generateQRCode(url string) (string, error) {
	qrc, err := qrcode.NewWith(url,
		qrcode.WithErrorCorrectionLevel(qrcode.ErrorCorrectionMedium),
		qrcode.WithEncodingMode(qrcode.EncModeByte),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create QR code: %w", err)
	}

	buf := &bytes.Buffer{}
	writer := standard.NewWithWriter(nopWriteCloser{buf},
		standard.WithBuiltinImageEncoder(standard.PNG_FORMAT),
		standard.WithQRWidth(8), // 8 pixels per module
	)
	if err := qrc.Save(writer); err != nil {
		return "", fmt.Errorf("failed to render QR code: %w", err)
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

type nopWriteCloser struct{ *bytes.Buffer }

func (nopWriteCloser) Close() error { return nil }

// getBaseURL constructs the base URL from the request
func getBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	// Check for X-Forwarded-Proto header (common in reverse proxy setups)
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	host := r.Host
	if forwardedHost := r.Header.Get("X-Forwarded-Host"); forwardedHost != "" {
		host = forwardedHost
	}

	return fmt.Sprintf("%s://%s", scheme, host)
}
