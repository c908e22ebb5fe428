package prompt

import (
	"strconv"
	"strings"
)

// Config describes a prompt definition loaded from YAML front-matter.
type Config struct {
	Slug           string         `yaml:"slug" json:"slug"`
	Name           string         `yaml:"name,omitempty" json:"name,omitempty"`
	Description    string         `yaml:"description,omitempty" json:"description,omitempty"`
	Version        string         `yaml:"version,omitempty" json:"version,omitempty"`
	Updated        string         `yaml:"updated,omitempty" json:"updated,omitempty"`
	SystemTemplate string         `yaml:"system_template,omitempty" json:"system_template,omitempty"`
	UserTemplate   string         `yaml:"user_template,omitempty" json:"user_template,omitempty"`
	ProviderHints  map[string]any `yaml:"provider_hints,omitempty" json:"provider_hints,omitempty"`
}

// Prompt wraps a validated prompt configuration with its source.
type Prompt struct {
	Config Config
	Source string
}

const inputPlaceholder = "{{input}}"

// RenderUser substitutes input into the user template. Without a template the
// input is sent as-is.
func (p *Prompt) RenderUser(input string) string {
	if p == nil || strings.TrimSpace(p.Config.UserTemplate) == "" {
		return input
	}
	return strings.ReplaceAll(p.Config.UserTemplate, inputPlaceholder, input)
}

// PreferredModels returns the provider_hints.preferred_models list.
func (p *Prompt) PreferredModels() []string {
	if p == nil {
		return nil
	}
	value, ok := p.Config.ProviderHints["preferred_models"]
	if !ok || value == nil {
		return nil
	}

	switch typed := value.(type) {
	case []string:
		return typed
	case []any:
		models := make([]string, 0, len(typed))
		for _, item := range typed {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				models = append(models, s)
			}
		}
		return models
	case string:
		if strings.TrimSpace(typed) == "" {
			return nil
		}
		return []string{typed}
	default:
		return nil
	}
}

// FloatHint reads a numeric provider hint.
func (p *Prompt) FloatHint(key string) (float64, bool) {
	if p == nil {
		return 0, false
	}
	switch v := p.Config.ProviderHints[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// IntHint reads an integer provider hint.
func (p *Prompt) IntHint(key string) (int, bool) {
	f, ok := p.FloatHint(key)
	if !ok {
		return 0, false
	}
	return int(f), true
}
