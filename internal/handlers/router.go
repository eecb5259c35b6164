package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"escparty/internal/config"
	"escparty/internal/game"
	localMiddleware "escparty/internal/middleware"
)

// RouterOptions allows customization of router setup for tests
type RouterOptions struct {
	DisableRateLimiting  bool
	DisableRequestLogger bool
	CustomMiddleware     []func(http.Handler) http.Handler
	StaticDir            string // defaults to "static"
}

// SetupRouter creates the application router with all routes and middleware
func SetupRouter(h *Handler, cfg *config.ServerConfig, opts *RouterOptions) *chi.Mux {
	if opts == nil {
		opts = &RouterOptions{}
	}

	if opts.StaticDir == "" {
		opts.StaticDir = "static"
	}

	r := chi.NewRouter()

	// Chi's built-in middleware (conditionally applied)
	if !opts.DisableRequestLogger {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	// Our custom middleware
	r.Use(localMiddleware.RequestSizeLimiter(cfg.Server.MaxRequestSize))
	r.Use(localMiddleware.SecurityHeaders())

	// Rate limiting (conditionally applied)
	if !opts.DisableRateLimiting {
		rateLimiter := localMiddleware.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateLimitBurst)
		r.Use(rateLimiter.Middleware())
	}

	// Apply custom middleware if provided
	for _, mw := range opts.CustomMiddleware {
		r.Use(mw)
	}

	// Static files
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StaticDir))))

	// Pages and actions get the request timeout; SSE routes stay outside it
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.Server.RequestTimeout))

		// Main pages
		r.Get("/", h.Home)
		r.Get("/resume", h.ResumeSession)
		r.Post("/room/new", h.CreateRoom)
		r.Get("/room/{code}", h.RoomPage)
		r.Post("/join-room", h.JoinRoomPost)
		r.Get("/room/{code}/observer", h.ObserverPage)
		r.Get("/quiz/{code}", h.QuizPage)
		r.Get("/results/{code}", h.ResultsPage)

		// Room actions
		r.Post("/room/{code}/difficulty", h.SetDifficulty)
		r.Post("/room/{code}/start", h.StartGame)
		r.Post("/room/{code}/continue", h.ContinueQuiz)
		r.Post("/room/{code}/leave", h.LeaveRoom)
		r.Post("/quiz/{code}/select", h.SelectAnswer)
		r.Post("/quiz/{code}/submit", h.SubmitAnswer)

		// Solo quiz
		r.Get("/solo", h.SoloQuizPage)
		r.Get("/solo/results", h.SoloResultsPage)
		r.Post("/solo/select", h.SoloSelect)
		r.Post("/solo/submit", h.SoloSubmit)
		r.Post("/solo/continue", h.SoloContinue)
	})

	// SSE routes with validation middleware
	r.Get("/sse/lobby/{code}", ValidateSSERequest(h.StreamLobby))
	r.Get("/sse/quiz/{code}", ValidateSSERequest(h.StreamQuiz))
	r.Get("/sse/observer/{code}", ValidateSSERequest(h.StreamObserver))
	r.Get("/sse/solo", ValidateSSERequest(h.StreamSolo))

	// Health check endpoints (no auth required)
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		// Readiness means the room store answers; a missing room is still
		// an answer
		_, err := h.store.GetRoom(r.Context(), "PROBE")
		if err != nil && !errors.Is(err, game.ErrRoomNotFound) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("Store not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return r
}
