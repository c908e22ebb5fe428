// Package config provides centralized configuration management for signrelay.
// Defaults are registered on a viper instance, overlaid by an optional YAML
// file and SIGNRELAY_* environment variables, then decoded into Config.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/signrelay/signrelay/internal/ailink"
)

const (
	// AppName names the config directory and the binary.
	AppName = "signrelay"

	// EnvPrefix is prepended to every environment override.
	EnvPrefix = "SIGNRELAY"
)

var (
	// appConfig holds the current application configuration
	appConfig *Config
	configMu  sync.RWMutex
)

// SetDefaults registers every known key so that environment variables can
// override it.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5001)
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "structured")
	v.SetDefault("logging.environment", "production")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	v.SetDefault("perception.candidates", []string{"http://localhost:5000", "http://127.0.0.1:5000"})
	v.SetDefault("perception.client_id", "default")
	v.SetDefault("perception.liveness_path", "/liveness")
	v.SetDefault("perception.timeout", "3s")

	v.SetDefault("ui.candidates", []string{"http://localhost:4200", "http://127.0.0.1:4200"})
	v.SetDefault("ui.display_path", "/display")
	v.SetDefault("ui.source_lang", "asl")
	v.SetDefault("ui.target_lang", "en")
	v.SetDefault("ui.timeout", "5s")

	v.SetDefault("sync.poll_interval", "1s")
	v.SetDefault("sync.quiet_threshold", "5s")
	v.SetDefault("sync.stale_threshold", "10s")
	v.SetDefault("sync.fetch_timeout", "3s")

	v.SetDefault("monitor.interval", "15s")
	v.SetDefault("monitor.probe_timeout", "3s")

	v.SetDefault("responder.mode", ResponderLocal)
	v.SetDefault("responder.candidates", []string{"http://localhost:5002", "http://127.0.0.1:5002"})
	v.SetDefault("responder.timeout", "60s")

	v.SetDefault("events.rate", 2.0)
	v.SetDefault("events.burst", 5)

	ai := ailink.DefaultConfig()
	v.SetDefault("ailink.provider", ai.Provider)
	v.SetDefault("ailink.base_url", "")
	v.SetDefault("ailink.api_key", "")
	v.SetDefault("ailink.model", ai.Model)
	v.SetDefault("ailink.fallback_models", ai.FallbackModels)
	v.SetDefault("ailink.prompts_dir", "")
	v.SetDefault("ailink.prompt_slug", "")
	v.SetDefault("ailink.temperature", ai.Temperature)
	v.SetDefault("ailink.max_output_tokens", ai.MaxOutputTokens)
	v.SetDefault("ailink.max_words", ai.MaxWords)
	v.SetDefault("ailink.request_timeout", ai.RequestTimeout.String())
	v.SetDefault("ailink.max_attempts", ai.MaxAttempts)
	v.SetDefault("ailink.base_backoff", ai.BaseBackoff.String())
	v.SetDefault("ailink.max_backoff", ai.MaxBackoff.String())
	v.SetDefault("ailink.default_cooldown", ai.DefaultCooldown.String())
	v.SetDefault("ailink.heartbeat_interval", ai.HeartbeatInterval.String())
	v.SetDefault("ailink.stale_threshold", ai.StaleThreshold.String())
	v.SetDefault("ailink.trace_path", "")

	v.SetDefault("genai.host", "0.0.0.0")
	v.SetDefault("genai.port", 5002)
}

// BindEnv wires SIGNRELAY_SECTION_KEY style variables onto dotted keys.
// GEMINI_API_KEY is honoured as a fallback for the provider key.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("ailink.api_key", EnvPrefix+"_AILINK_API_KEY", "GEMINI_API_KEY")
}

// Load decodes v into a Config, validates it and stores it as the current
// configuration. A nil v uses the global viper instance.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.GetViper()
	}

	var cfg Config
	hooks := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.StringToFloat64HookFunc(),
	))
	if err := v.Unmarshal(&cfg, hooks); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	normalize(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	setConfig(&cfg)
	return &cfg, nil
}

// Validate reports the first configuration problem found.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if err := validPort("server.port", cfg.Server.Port); err != nil {
		return err
	}
	if err := validPort("genai.port", cfg.GenAI.Port); err != nil {
		return err
	}
	if cfg.Metrics.Enabled && (cfg.Metrics.Port < 0 || cfg.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port out of range: %d", cfg.Metrics.Port)
	}
	if len(cfg.Perception.Candidates) == 0 {
		return fmt.Errorf("perception.candidates must list at least one base URL")
	}
	if len(cfg.UI.Candidates) == 0 {
		return fmt.Errorf("ui.candidates must list at least one base URL")
	}

	switch cfg.Responder.Mode {
	case ResponderLocal:
	case ResponderRemote:
		if len(cfg.Responder.Candidates) == 0 {
			return fmt.Errorf("responder.candidates must list at least one base URL in remote mode")
		}
	default:
		return fmt.Errorf("responder.mode must be %q or %q, got %q", ResponderLocal, ResponderRemote, cfg.Responder.Mode)
	}

	switch cfg.AILink.Provider {
	case "", "gemini", "openai":
	default:
		return fmt.Errorf("ailink.provider must be gemini or openai, got %q", cfg.AILink.Provider)
	}

	durations := map[string]time.Duration{
		"sync.poll_interval":   cfg.Sync.PollInterval,
		"sync.quiet_threshold": cfg.Sync.QuietThreshold,
		"sync.stale_threshold": cfg.Sync.StaleThreshold,
		"monitor.interval":     cfg.Monitor.Interval,
	}
	for key, d := range durations {
		if d < 0 {
			return fmt.Errorf("%s must not be negative", key)
		}
	}
	if cfg.Events.Rate < 0 || cfg.Events.Burst < 0 {
		return fmt.Errorf("events.rate and events.burst must not be negative")
	}
	return nil
}

func validPort(key string, port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("%s out of range: %d", key, port)
	}
	return nil
}

func normalize(cfg *Config) {
	cfg.Perception.Candidates = cleanURLs(cfg.Perception.Candidates)
	cfg.UI.Candidates = cleanURLs(cfg.UI.Candidates)
	cfg.Responder.Candidates = cleanURLs(cfg.Responder.Candidates)
	cfg.Responder.Mode = strings.ToLower(strings.TrimSpace(cfg.Responder.Mode))
	cfg.AILink.Provider = strings.ToLower(strings.TrimSpace(cfg.AILink.Provider))
	cfg.AILink.APIKey = strings.TrimSpace(cfg.AILink.APIKey)
	if strings.TrimSpace(cfg.Perception.ClientID) == "" {
		cfg.Perception.ClientID = "default"
	}
}

func cleanURLs(in []string) []string {
	out := make([]string, 0, len(in))
	for _, raw := range in {
		u := strings.TrimRight(strings.TrimSpace(raw), "/")
		if u != "" {
			out = append(out, u)
		}
	}
	return out
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// DefaultConfigDir returns the XDG-compliant config directory.
func DefaultConfigDir() string {
	return gfconfig.GetAppConfigDir(AppName)
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	dir := DefaultConfigDir()
	if strings.TrimSpace(dir) == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}
