package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration using Viper
// Priority order: Environment variables > Config file > Defaults
func LoadConfig(configPath string) (*ServerConfig, error) {
	v := viper.New()

	// Set config file details
	v.SetConfigName("server")
	v.SetConfigType("yaml")

	// Add config paths
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/escparty")
	}

	// Enable environment variable binding
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Bind specific environment variables
	// These allow both ESCPARTY_SERVER_PORT and PORT to work
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.host", "HOST")
	v.BindEnv("server.ratelimit", "RATE_LIMIT")
	v.BindEnv("server.ratelimitburst", "RATE_LIMIT_BURST")
	v.BindEnv("server.maxrequestsize", "MAX_REQUEST_SIZE")
	v.BindEnv("server.statedir", "STATE_DIR")
	v.BindEnv("server.storebackend", "STORE_BACKEND")
	v.BindEnv("server.redisaddr", "REDIS_ADDR")
	v.BindEnv("server.redisdb", "REDIS_DB")

	// Timeout defaults
	v.SetDefault("server.readtimeout", "15s")
	v.SetDefault("server.writetimeout", "0s") // 0 for SSE support
	v.SetDefault("server.idletimeout", "0s")  // 0 for SSE support
	v.SetDefault("server.shutdowntimeout", "30s")
	v.SetDefault("server.requesttimeout", "60s")

	// Rate limiting defaults
	v.SetDefault("server.ratelimit", 10.0)
	v.SetDefault("server.ratelimitburst", 20)

	// Request limits
	v.SetDefault("server.maxrequestsize", 1048576) // 1MB

	// Storage defaults
	v.SetDefault("server.statedir", "state")
	v.SetDefault("server.storebackend", "memory")
	v.SetDefault("server.redisaddr", "localhost:6379")
	v.SetDefault("server.redisdb", 0)

	// Game defaults
	v.SetDefault("game.roomcodelength", 4)
	v.SetDefault("game.answerbudget", "10s")
	v.SetDefault("game.feedbackwindow", "5s")
	v.SetDefault("game.checkpointinterval", 5)
	v.SetDefault("game.basepoints", 500)
	v.SetDefault("game.bonusmax", 500)
	v.SetDefault("game.quizloadtimeout", "10s")
	v.SetDefault("game.continuegrace", "3s")
	v.SetDefault("game.evictiondelay", "2s")

	// Try to read config file (it's optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if strings.Contains(err.Error(), "no such file or directory") {
				// File doesn't exist, continue with defaults
			} else {
				// Config file was found but another error occurred
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
		// Config file not found; continue with env vars and defaults
	}

	// Create config struct
	cfg := &ServerConfig{}

	// Unmarshal into the struct
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate required fields
	if v.GetString("server.port") == "" {
		return nil, fmt.Errorf("PORT environment variable must be set")
	}
	if v.GetString("server.host") == "" {
		return nil, fmt.Errorf("HOST environment variable must be set")
	}

	// Additional validation
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
