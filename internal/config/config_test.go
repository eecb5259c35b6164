package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *ServerConfig {
	cfg := DefaultConfig()
	cfg.Server.Port = "8080"
	cfg.Server.Host = "localhost"
	return cfg
}

func TestValidate(t *testing.T) {
	t.Run("defaults with port and host are valid", func(t *testing.T) {
		assert.NoError(t, validConfig().Validate())
	})

	t.Run("port is required", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.Port = ""
		assert.ErrorContains(t, cfg.Validate(), "PORT")
	})

	t.Run("host is required", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.Host = ""
		assert.ErrorContains(t, cfg.Validate(), "HOST")
	})

	t.Run("unknown store backend", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.StoreBackend = "etcd"
		assert.ErrorContains(t, cfg.Validate(), "storeBackend")
	})

	t.Run("redis backend needs an address", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.StoreBackend = "redis"
		cfg.Server.RedisAddr = ""
		assert.ErrorContains(t, cfg.Validate(), "REDIS_ADDR")
	})

	t.Run("game knobs are bounded", func(t *testing.T) {
		cfg := validConfig()
		cfg.Game.RoomCodeLength = 2
		assert.ErrorContains(t, cfg.Validate(), "roomCodeLength")

		cfg = validConfig()
		cfg.Game.AnswerBudget = 0
		assert.ErrorContains(t, cfg.Validate(), "answerBudget")

		cfg = validConfig()
		cfg.Game.CheckpointInterval = -1
		assert.ErrorContains(t, cfg.Validate(), "checkpointInterval")

		cfg = validConfig()
		cfg.Game.BonusMax = -1
		assert.ErrorContains(t, cfg.Validate(), "scoring")
	})

	t.Run("checkpoint interval zero disables checkpoints", func(t *testing.T) {
		cfg := validConfig()
		cfg.Game.CheckpointInterval = 0
		assert.NoError(t, cfg.Validate())
	})
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("HOST", "0.0.0.0")
	t.Setenv("RATE_LIMIT", "25")
	t.Setenv("STORE_BACKEND", "memory")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, float64(25), cfg.Server.RateLimit)
	assert.Equal(t, "memory", cfg.Server.StoreBackend)

	// Unset knobs keep their defaults
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Zero(t, cfg.Server.WriteTimeout)
	assert.Equal(t, 4, cfg.Game.RoomCodeLength)
	assert.Equal(t, 10*time.Second, cfg.Game.AnswerBudget)
	assert.Equal(t, 5, cfg.Game.CheckpointInterval)
}

func TestStreamingTimeoutsStayDisabled(t *testing.T) {
	// http.Server.WriteTimeout is an absolute deadline from the start of the
	// request; any non-zero value severs every open event stream. The same
	// goes for IdleTimeout and reconnecting clients.
	cfg := DefaultConfig()
	assert.Zero(t, cfg.Server.WriteTimeout)
	assert.Zero(t, cfg.Server.IdleTimeout)

	t.Setenv("PORT", "8080")
	t.Setenv("HOST", "localhost")
	loaded, err := LoadConfig("")
	require.NoError(t, err)
	assert.Zero(t, loaded.Server.WriteTimeout)
	assert.Zero(t, loaded.Server.IdleTimeout)
}

func TestLoadConfigMissingRequired(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("HOST", "")

	_, err := LoadConfig("")
	assert.Error(t, err)
}
