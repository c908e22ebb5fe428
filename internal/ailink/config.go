package ailink

import (
	"time"

	"github.com/signrelay/signrelay/internal/ailink/prompt"
)

// Config defines the generative backend connection.
type Config struct {
	// Provider selects the driver: "gemini" or "openai" (any OpenAI-compatible
	// endpoint, including Ollama).
	Provider string `mapstructure:"provider"`
	BaseURL  string `mapstructure:"base_url"`
	APIKey   string `mapstructure:"api_key"`

	// Credentials allow several keys; the highest priority enabled key wins
	// over APIKey.
	Credentials []CredentialConfig `mapstructure:"credentials"`

	Model          string   `mapstructure:"model"`
	FallbackModels []string `mapstructure:"fallback_models"`

	// PromptsDir allows overriding the built-in prompt set.
	PromptsDir string `mapstructure:"prompts_dir"`
	PromptSlug string `mapstructure:"prompt_slug"`

	Temperature     float64 `mapstructure:"temperature"`
	MaxOutputTokens int     `mapstructure:"max_output_tokens"`
	MaxWords        int     `mapstructure:"max_words"`

	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	BaseBackoff       time.Duration `mapstructure:"base_backoff"`
	MaxBackoff        time.Duration `mapstructure:"max_backoff"`
	DefaultCooldown   time.Duration `mapstructure:"default_cooldown"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	StaleThreshold    time.Duration `mapstructure:"stale_threshold"`

	// TracePath enables NDJSON request tracing when set.
	TracePath string `mapstructure:"trace_path"`
}

// CredentialConfig is a single API key.
type CredentialConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Label    string `mapstructure:"label"`
	APIKey   string `mapstructure:"api_key"`
	Priority int    `mapstructure:"priority"`
}

// DefaultFallbackModels are tried in order when the selected model disappears.
var DefaultFallbackModels = []string{
	"gemini-1.5-flash-8b",
	"gemini-1.5-flash-8b-latest",
	"gemini-1.5-flash-latest",
	"gemini-1.5-pro-latest",
	"gemini-1.5-pro-002",
	"gemini-pro",
	"gemini-1.0-pro-latest",
}

// DefaultConfig returns the tuned connector defaults.
func DefaultConfig() Config {
	return Config{
		Provider:          "gemini",
		Model:             "gemini-1.5-flash-8b",
		FallbackModels:    append([]string(nil), DefaultFallbackModels...),
		Temperature:       0.7,
		MaxOutputTokens:   30,
		MaxWords:          5,
		RequestTimeout:    15 * time.Second,
		MaxAttempts:       3,
		BaseBackoff:       time.Second,
		MaxBackoff:        10 * time.Second,
		DefaultCooldown:   60 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		StaleThreshold:    60 * time.Second,
	}
}

// withDefaults fills zero values from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Provider == "" {
		c.Provider = d.Provider
	}
	if c.MaxWords <= 0 {
		c.MaxWords = d.MaxWords
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = d.RequestTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = d.BaseBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = d.MaxBackoff
	}
	if c.DefaultCooldown <= 0 {
		c.DefaultCooldown = d.DefaultCooldown
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = d.HeartbeatInterval
	}
	if c.StaleThreshold <= 0 {
		c.StaleThreshold = d.StaleThreshold
	}
	if len(c.FallbackModels) == 0 {
		c.FallbackModels = d.FallbackModels
	}
	if c.PromptSlug == "" {
		c.PromptSlug = prompt.SlugConversationReply
	}
	return c
}
