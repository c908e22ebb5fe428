package ailink

import (
	"fmt"
	"strings"

	"github.com/signrelay/signrelay/internal/ailink/driver"
	"github.com/signrelay/signrelay/internal/ailink/driver/gemini"
	"github.com/signrelay/signrelay/internal/ailink/driver/openai"
	"github.com/signrelay/signrelay/internal/ailink/prompt"
)

// NewDriver builds the driver named by cfg.Provider.
func NewDriver(cfg Config) (driver.Driver, error) {
	cfg = cfg.withDefaults()
	apiKey := selectAPIKey(cfg)

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "gemini", "google":
		client := gemini.NewClient(cfg.BaseURL, apiKey)
		client.Timeout = cfg.RequestTimeout
		return client, nil
	case "openai", "ollama":
		client := openai.NewClient(cfg.BaseURL, apiKey)
		client.Timeout = cfg.RequestTimeout
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
	}
}

// selectAPIKey picks the highest-priority enabled credential, falling back
// to the flat api_key.
func selectAPIKey(cfg Config) string {
	best := -1
	key := ""
	for _, cred := range cfg.Credentials {
		if !cred.Enabled || strings.TrimSpace(cred.APIKey) == "" {
			continue
		}
		if best == -1 || cred.Priority > best {
			best = cred.Priority
			key = strings.TrimSpace(cred.APIKey)
		}
	}
	if key != "" {
		return key
	}
	return strings.TrimSpace(cfg.APIKey)
}

// resolveModel chooses the initial model: explicit config, then the prompt's
// preferred models, then the first fallback.
func resolveModel(cfg Config, promptDef *prompt.Prompt) (string, error) {
	if model := strings.TrimSpace(cfg.Model); model != "" {
		return model, nil
	}
	for _, m := range promptDef.PreferredModels() {
		if m = strings.TrimSpace(m); m != "" {
			return m, nil
		}
	}
	for _, m := range cfg.FallbackModels {
		if m = strings.TrimSpace(m); m != "" {
			return m, nil
		}
	}
	return "", fmt.Errorf("model not configured")
}

// pickModel rebinds to the first preferred model present in the listing,
// otherwise the first model that supports generation.
func pickModel(available []driver.Model, preferred []string, exclude string) (string, bool) {
	names := make(map[string]bool, len(available))
	for _, m := range available {
		if m.SupportsGeneration {
			names[normalizeModel(m.Name)] = true
		}
	}
	exclude = normalizeModel(exclude)
	for _, p := range preferred {
		p = normalizeModel(p)
		if p != "" && p != exclude && names[p] {
			return p, true
		}
	}
	for _, m := range available {
		name := normalizeModel(m.Name)
		if m.SupportsGeneration && name != exclude {
			return name, true
		}
	}
	return "", false
}

func normalizeModel(name string) string {
	return strings.TrimPrefix(strings.TrimSpace(name), "models/")
}
