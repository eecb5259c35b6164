package config

import (
	"fmt"
	"time"
)

// This file defines the configuration structures used by viper_config.go
// The actual loading is handled by viper in viper_config.go

// ServerConfig represents the full application configuration
type ServerConfig struct {
	Server ServerSettings `yaml:"server"`
	Game   GameSettings   `yaml:"game"`
}

// ServerSettings contains server-wide settings
type ServerSettings struct {
	Port            string        `yaml:"port" envconfig:"PORT" required:"true"`
	Host            string        `yaml:"host" envconfig:"HOST" required:"true"`
	ReadTimeout     time.Duration `yaml:"readTimeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"writeTimeout" envconfig:"WRITE_TIMEOUT" default:"0s"` // 0 for SSE support
	IdleTimeout     time.Duration `yaml:"idleTimeout" envconfig:"IDLE_TIMEOUT" default:"0s"`  // 0 for SSE support
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"` // Timeout for regular HTTP requests (middleware)

	// Rate limiting (using golang.org/x/time/rate)
	RateLimit      float64 `yaml:"rateLimit" envconfig:"RATE_LIMIT" default:"10"`
	RateLimitBurst int     `yaml:"rateLimitBurst" envconfig:"RATE_LIMIT_BURST" default:"20"`

	// Request limits
	MaxRequestSize int64 `yaml:"maxRequestSize" envconfig:"MAX_REQUEST_SIZE" default:"1048576"` // 1MB

	// Where session records and the score history live
	StateDir string `yaml:"stateDir" envconfig:"STATE_DIR" default:"state"`

	// Room store backend: "memory" or "redis"
	StoreBackend string `yaml:"storeBackend" envconfig:"STORE_BACKEND" default:"memory"`
	RedisAddr    string `yaml:"redisAddr" envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisDB      int    `yaml:"redisDb" envconfig:"REDIS_DB" default:"0"`
}

// GameSettings contains the quiz timing and scoring knobs
type GameSettings struct {
	RoomCodeLength     int           `yaml:"roomCodeLength"`
	AnswerBudget       time.Duration `yaml:"answerBudget"`
	FeedbackWindow     time.Duration `yaml:"feedbackWindow"`
	CheckpointInterval int           `yaml:"checkpointInterval"`
	BasePoints         int           `yaml:"basePoints"`
	BonusMax           int           `yaml:"bonusMax"`
	QuizLoadTimeout    time.Duration `yaml:"quizLoadTimeout"`
	ContinueGrace      time.Duration `yaml:"continueGrace"`
	EvictionDelay      time.Duration `yaml:"evictionDelay"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *ServerConfig {
	return &ServerConfig{
		Server: ServerSettings{
			Port:            "", // Must be set via env
			Host:            "", // Must be set via env
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    0, // SSE responses never complete; a write deadline would sever them
			IdleTimeout:     0, // 0 for SSE support
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  60 * time.Second,

			RateLimit:      10,
			RateLimitBurst: 20,

			MaxRequestSize: 1048576, // 1MB

			StateDir:     "state",
			StoreBackend: "memory",
			RedisAddr:    "localhost:6379",
		},
		Game: GameSettings{
			RoomCodeLength:     4,
			AnswerBudget:       10 * time.Second,
			FeedbackWindow:     5 * time.Second,
			CheckpointInterval: 5,
			BasePoints:         500,
			BonusMax:           500,
			QuizLoadTimeout:    10 * time.Second,
			ContinueGrace:      3 * time.Second,
			EvictionDelay:      2 * time.Second,
		},
	}
}

// Validate checks if the configuration is valid
func (c *ServerConfig) Validate() error {
	// Required fields
	if c.Server.Port == "" {
		return fmt.Errorf("PORT environment variable must be set")
	}
	if c.Server.Host == "" {
		return fmt.Errorf("HOST environment variable must be set")
	}

	switch c.Server.StoreBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("storeBackend must be \"memory\" or \"redis\", got %q", c.Server.StoreBackend)
	}
	if c.Server.StoreBackend == "redis" && c.Server.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR must be set when storeBackend is redis")
	}

	if c.Game.RoomCodeLength < 3 {
		return fmt.Errorf("roomCodeLength must be at least 3")
	}
	if c.Game.AnswerBudget <= 0 {
		return fmt.Errorf("answerBudget must be positive")
	}
	if c.Game.FeedbackWindow <= 0 {
		return fmt.Errorf("feedbackWindow must be positive")
	}
	if c.Game.CheckpointInterval < 0 {
		return fmt.Errorf("checkpointInterval cannot be negative")
	}
	if c.Game.BasePoints < 0 || c.Game.BonusMax < 0 {
		return fmt.Errorf("scoring values cannot be negative")
	}
	if c.Game.QuizLoadTimeout <= 0 {
		return fmt.Errorf("quizLoadTimeout must be positive")
	}

	return nil
}
