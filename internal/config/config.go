package config

import (
	"time"

	"github.com/signrelay/signrelay/internal/ailink"
)

// Config represents the complete application configuration.
// Values are layered: built-in defaults, then the optional YAML file, then
// SIGNRELAY_* environment variables and bound flags.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Perception PerceptionConfig `mapstructure:"perception"`
	UI         UIConfig         `mapstructure:"ui"`
	Sync       SyncConfig       `mapstructure:"sync"`
	Monitor    MonitorConfig    `mapstructure:"monitor"`
	Responder  ResponderConfig  `mapstructure:"responder"`
	Events     EventsConfig     `mapstructure:"events"`
	AILink     ailink.Config    `mapstructure:"ailink"`
	GenAI      GenAIConfig      `mapstructure:"genai"`
}

// ServerConfig contains HTTP server configuration for the orchestrator.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level
	// Valid values: SIMPLE, STRUCTURED
	Profile string `mapstructure:"profile"`

	// Environment is stamped on every structured log line.
	Environment string `mapstructure:"environment"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated Prometheus exporter port. The main HTTP port
	// proxies it at /metrics.
	Port int `mapstructure:"port"`
}

// PerceptionConfig locates the sign recognition service.
type PerceptionConfig struct {
	Candidates   []string      `mapstructure:"candidates"`
	ClientID     string        `mapstructure:"client_id"`
	LivenessPath string        `mapstructure:"liveness_path"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// UIConfig locates the rendering service.
type UIConfig struct {
	Candidates  []string      `mapstructure:"candidates"`
	DisplayPath string        `mapstructure:"display_path"`
	SourceLang  string        `mapstructure:"source_lang"`
	TargetLang  string        `mapstructure:"target_lang"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// SyncConfig tunes the sentence synchronizer.
type SyncConfig struct {
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	QuietThreshold time.Duration `mapstructure:"quiet_threshold"`
	StaleThreshold time.Duration `mapstructure:"stale_threshold"`
	FetchTimeout   time.Duration `mapstructure:"fetch_timeout"`
}

// MonitorConfig tunes dependency probing.
type MonitorConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
}

// Responder modes.
const (
	ResponderLocal  = "local"
	ResponderRemote = "remote"
)

// ResponderConfig selects where replies come from. In local mode the
// orchestrator runs the connector in-process; in remote mode it calls a
// `signrelay genai` service found among Candidates.
type ResponderConfig struct {
	Mode       string        `mapstructure:"mode"`
	Candidates []string      `mapstructure:"candidates"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// EventsConfig throttles inbound websocket events per connection.
type EventsConfig struct {
	Rate  float64 `mapstructure:"rate"`
	Burst int     `mapstructure:"burst"`
}

// GenAIConfig is the listener of the standalone generative backend.
type GenAIConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}
