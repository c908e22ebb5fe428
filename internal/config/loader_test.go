package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signrelay/signrelay/internal/ailink"
	"github.com/signrelay/signrelay/internal/core/engine"
)

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	BindEnv(v)
	return v
}

func TestLoad(t *testing.T) {
	t.Run("LoadDefaults", func(t *testing.T) {
		cfg, err := Load(newViper(t))
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 5001, cfg.Server.Port)
		assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

		assert.Equal(t, "info", cfg.Logging.Level)
		assert.True(t, cfg.Metrics.Enabled)
		assert.Equal(t, 9090, cfg.Metrics.Port)

		assert.Equal(t, []string{"http://localhost:5000", "http://127.0.0.1:5000"}, cfg.Perception.Candidates)
		assert.Equal(t, "default", cfg.Perception.ClientID)
		assert.Equal(t, "/liveness", cfg.Perception.LivenessPath)
		assert.Equal(t, "/display", cfg.UI.DisplayPath)

		assert.Equal(t, time.Second, cfg.Sync.PollInterval)
		assert.Equal(t, 5*time.Second, cfg.Sync.QuietThreshold)
		assert.Equal(t, 10*time.Second, cfg.Sync.StaleThreshold)
		assert.Equal(t, 15*time.Second, cfg.Monitor.Interval)
		assert.Equal(t, 3*time.Second, cfg.Monitor.ProbeTimeout)

		assert.Equal(t, ResponderLocal, cfg.Responder.Mode)
		assert.Equal(t, 60*time.Second, cfg.Responder.Timeout)
		assert.Equal(t, 2.0, cfg.Events.Rate)
		assert.Equal(t, 5, cfg.Events.Burst)
		assert.Equal(t, 5002, cfg.GenAI.Port)

		defaults := ailink.DefaultConfig()
		assert.Equal(t, "gemini", cfg.AILink.Provider)
		assert.Equal(t, defaults.Model, cfg.AILink.Model)
		assert.Equal(t, defaults.FallbackModels, cfg.AILink.FallbackModels)
		assert.Equal(t, 5, cfg.AILink.MaxWords)
		assert.Equal(t, 60*time.Second, cfg.AILink.DefaultCooldown)

		// A remote reply must outlast the backend's own retry chain.
		budget := time.Duration(cfg.AILink.MaxAttempts) * cfg.AILink.RequestTimeout
		for attempt := 0; attempt < cfg.AILink.MaxAttempts-1; attempt++ {
			budget += engine.ComputeDelay(attempt, cfg.AILink.BaseBackoff)
		}
		assert.Greater(t, cfg.Responder.Timeout, budget)
		assert.Equal(t, 30*time.Second, cfg.AILink.HeartbeatInterval)
	})

	t.Run("RuntimeOverrides", func(t *testing.T) {
		v := newViper(t)
		v.Set("server.port", 9000)
		v.Set("logging.level", "debug")

		cfg, err := Load(v)
		require.NoError(t, err)

		assert.Equal(t, 9000, cfg.Server.Port)
		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.Equal(t, 9090, cfg.Metrics.Port)
	})

	t.Run("EnvOverrides", func(t *testing.T) {
		t.Setenv("SIGNRELAY_SERVER_PORT", "3000")
		t.Setenv("SIGNRELAY_LOGGING_LEVEL", "warn")
		t.Setenv("SIGNRELAY_METRICS_ENABLED", "false")
		t.Setenv("SIGNRELAY_EVENTS_RATE", "0.5")
		t.Setenv("SIGNRELAY_PERCEPTION_CANDIDATES", "http://a:5000/, http://b:5000")
		t.Setenv("SIGNRELAY_SYNC_QUIET_THRESHOLD", "2s")

		cfg, err := Load(newViper(t))
		require.NoError(t, err)

		assert.Equal(t, 3000, cfg.Server.Port)
		assert.Equal(t, "warn", cfg.Logging.Level)
		assert.False(t, cfg.Metrics.Enabled)
		assert.Equal(t, 0.5, cfg.Events.Rate)
		assert.Equal(t, []string{"http://a:5000", "http://b:5000"}, cfg.Perception.Candidates)
		assert.Equal(t, 2*time.Second, cfg.Sync.QuietThreshold)
	})

	t.Run("GeminiKeyFallback", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", " from-gemini ")

		cfg, err := Load(newViper(t))
		require.NoError(t, err)
		assert.Equal(t, "from-gemini", cfg.AILink.APIKey)
	})

	t.Run("ConfigPrecedence", func(t *testing.T) {
		t.Setenv("SIGNRELAY_SERVER_PORT", "4000")

		v := newViper(t)
		v.Set("server.port", 5050)

		cfg, err := Load(v)
		require.NoError(t, err)
		assert.Equal(t, 5050, cfg.Server.Port)
	})

	t.Run("ConfigFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		body := strings.Join([]string{
			"responder:",
			"  mode: remote",
			"  candidates: [\"http://genai:5002\"]",
			"ailink:",
			"  provider: openai",
			"  base_url: http://localhost:11434/v1",
			"  model: llama3",
			"",
		}, "\n")
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

		v := newViper(t)
		v.SetConfigFile(path)
		require.NoError(t, v.ReadInConfig())

		cfg, err := Load(v)
		require.NoError(t, err)
		assert.Equal(t, ResponderRemote, cfg.Responder.Mode)
		assert.Equal(t, []string{"http://genai:5002"}, cfg.Responder.Candidates)
		assert.Equal(t, "openai", cfg.AILink.Provider)
		assert.Equal(t, "llama3", cfg.AILink.Model)
	})
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		key  string
		val  any
		msg  string
	}{
		{"bad port", "server.port", 0, "server.port"},
		{"bad mode", "responder.mode", "carrier-pigeon", "responder.mode"},
		{"bad provider", "ailink.provider", "llamafile", "ailink.provider"},
		{"no perception", "perception.candidates", []string{}, "perception.candidates"},
		{"negative burst", "events.burst", -1, "events"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := newViper(t)
			v.Set(tc.key, tc.val)
			_, err := Load(v)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.msg)
		})
	}

	require.Error(t, Validate(nil))
}

func TestGetConfig(t *testing.T) {
	v := newViper(t)
	v.Set("server.port", 6001)
	cfg, err := Load(v)
	require.NoError(t, err)

	retrieved := GetConfig()
	require.NotNil(t, retrieved)
	assert.Equal(t, cfg.Server.Port, retrieved.Server.Port)

	v.Set("server.port", 6002)
	_, err = Load(v)
	require.NoError(t, err)
	assert.Equal(t, 6002, GetConfig().Server.Port)
}

func TestDefaultConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	path := DefaultConfigPath()
	require.NotEmpty(t, path)
	assert.Equal(t, "config.yaml", filepath.Base(path))
	assert.Contains(t, path, AppName)
}
