package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"escparty"
	"escparty/internal/config"
	"escparty/internal/game"
	"escparty/internal/handlers"
	"escparty/internal/quiz"
	"escparty/internal/session"
	"escparty/internal/store"
)

func main() {
	// Load server configuration
	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}
	log.Printf("Loaded configuration: store backend = %s", cfg.Server.StoreBackend)

	// Display-name pool from the embedded YAML, fail-fast
	names, err := game.NewNamePool(escparty.DisplayNamesYAML)
	if err != nil {
		log.Fatal("Failed to load display names: ", err)
	}

	// Quiz library over the embedded question files
	library := quiz.NewLibrary(escparty.QuizDataFS).WithTimeout(cfg.Game.QuizLoadTimeout)

	// Session records and score history on disk
	sessions, err := session.NewStore(cfg.Server.StateDir)
	if err != nil {
		log.Fatal("Failed to init session store: ", err)
	}
	history, err := session.NewHistory(cfg.Server.StateDir)
	if err != nil {
		log.Fatal("Failed to init score history: ", err)
	}

	// Room store backend
	var rooms store.RoomStore
	switch cfg.Server.StoreBackend {
	case "redis":
		client, err := store.ConnectRedis(cfg.Server.RedisAddr, cfg.Server.RedisDB)
		if err != nil {
			log.Fatal("Failed to connect to redis: ", err)
		}
		rooms = store.NewRedisStore(client)
		log.Printf("Connected to redis at %s (db %d)", cfg.Server.RedisAddr, cfg.Server.RedisDB)
	default:
		rooms = store.NewMemoryStore()
	}

	h := handlers.New(rooms, library, names, sessions, history, cfg)
	r := handlers.SetupRouter(h, cfg, nil)

	addr := cfg.Server.Host + ":" + cfg.Server.Port

	// Create custom server with production settings
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout, // 0 for SSE support
	}

	// Start server in goroutine
	go func() {
		log.Printf("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start:", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Attempt graceful shutdown
	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server gracefully stopped")
}
