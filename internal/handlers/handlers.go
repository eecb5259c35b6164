package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"escparty/internal/config"
	"escparty/internal/game"
	"escparty/internal/quiz"
	"escparty/internal/session"
	"escparty/internal/store"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	store    store.RoomStore
	library  *quiz.Library
	names    *game.NamePool
	sessions *session.Store
	history  *session.History
	eventBus *EventBus
	cfg      *config.ServerConfig

	mu   sync.Mutex
	runs map[string]*quizRun
}

// New creates a new handler
func New(s store.RoomStore, library *quiz.Library, names *game.NamePool, sessions *session.Store, history *session.History, cfg *config.ServerConfig) *Handler {
	return &Handler{
		store:    s,
		library:  library,
		names:    names,
		sessions: sessions,
		history:  history,
		eventBus: NewEventBus(),
		cfg:      cfg,
		runs:     make(map[string]*quizRun),
	}
}

// Store returns the handler's store (for testing)
func (h *Handler) Store() store.RoomStore {
	return h.store
}

// rules builds the quiz timing and scoring rules from configuration
func (h *Handler) rules() quiz.Rules {
	return quiz.Rules{
		AnswerBudget:       h.cfg.Game.AnswerBudget,
		FeedbackWindow:     h.cfg.Game.FeedbackWindow,
		CheckpointInterval: h.cfg.Game.CheckpointInterval,
		BasePoints:         h.cfg.Game.BasePoints,
		BonusMax:           h.cfg.Game.BonusMax,
	}
}

// Event represents a quiz event
type Event struct {
	Type string
	Key  string
	Data interface{}
}

// EventBus manages event subscriptions. Keys are either a room code (room
// scoped events) or a room code plus player ID (per-player quiz events).
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[string][]chan Event
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[string][]chan Event),
	}
}

// Subscribe subscribes to events for a key
func (eb *EventBus) Subscribe(key string) chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(chan Event, 10)
	eb.subscribers[key] = append(eb.subscribers[key], ch)
	return ch
}

// Unsubscribe removes a subscription
func (eb *EventBus) Unsubscribe(key string, ch chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	subs := eb.subscribers[key]
	for i, sub := range subs {
		if sub == ch {
			eb.subscribers[key] = append(subs[:i], subs[i+1:]...)
			close(ch)
			break
		}
	}
}

// Publish publishes an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for _, ch := range eb.subscribers[event.Key] {
		select {
		case ch <- event:
		default:
			// Channel full, skip
		}
	}
}

// getOrCreateSession gets or creates a session for the user
func getOrCreateSession(w http.ResponseWriter, r *http.Request) string {
	cookie, err := r.Cookie("session")
	if err == nil {
		return cookie.Value
	}

	// Create new session
	b := make([]byte, 16)
	rand.Read(b)
	sessionID := hex.EncodeToString(b)

	http.SetCookie(w, &http.Cookie{
		Name:     "session",
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   86400 * 7, // 7 days
	})

	return sessionID
}

// generatePlayerID generates a unique player ID
func generatePlayerID() string {
	return uuid.NewString()
}
