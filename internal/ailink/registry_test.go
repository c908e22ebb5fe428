package ailink

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/signrelay/signrelay/internal/ailink/driver"
	"github.com/signrelay/signrelay/internal/ailink/driver/gemini"
	"github.com/signrelay/signrelay/internal/ailink/driver/openai"
	"github.com/signrelay/signrelay/internal/ailink/prompt"
)

func TestNewDriverByProvider(t *testing.T) {
	drv, err := NewDriver(Config{Provider: "gemini", APIKey: "k"})
	require.NoError(t, err)
	require.IsType(t, &gemini.Client{}, drv)

	drv, err = NewDriver(Config{Provider: "ollama", BaseURL: "http://localhost:11434/v1"})
	require.NoError(t, err)
	require.IsType(t, &openai.Client{}, drv)
	require.Equal(t, "http://localhost:11434/v1", drv.(*openai.Client).BaseURL)

	_, err = NewDriver(Config{Provider: "carrier-pigeon"})
	require.ErrorContains(t, err, "unsupported provider")
}

func TestSelectAPIKeyPrefersHighestPriority(t *testing.T) {
	cfg := Config{
		APIKey: "flat",
		Credentials: []CredentialConfig{
			{Enabled: true, Label: "low", APIKey: "k-low", Priority: 1},
			{Enabled: true, Label: "high", APIKey: "k-high", Priority: 5},
			{Enabled: false, Label: "off", APIKey: "k-off", Priority: 9},
		},
	}
	require.Equal(t, "k-high", selectAPIKey(cfg))
	require.Equal(t, "flat", selectAPIKey(Config{APIKey: " flat "}))
}

func TestResolveModelOrder(t *testing.T) {
	promptDef := &prompt.Prompt{Config: prompt.Config{ProviderHints: map[string]any{"preferred_models": []any{"prompt-model"}}}}

	model, err := resolveModel(Config{Model: "configured"}, promptDef)
	require.NoError(t, err)
	require.Equal(t, "configured", model)

	model, err = resolveModel(Config{}, promptDef)
	require.NoError(t, err)
	require.Equal(t, "prompt-model", model)

	model, err = resolveModel(Config{FallbackModels: []string{"gemini-pro"}}, nil)
	require.NoError(t, err)
	require.Equal(t, "gemini-pro", model)

	_, err = resolveModel(Config{}, nil)
	require.Error(t, err)
}

func TestPickModel(t *testing.T) {
	available := []driver.Model{
		{Name: "models/embedding-001", SupportsGeneration: false},
		{Name: "models/gemini-1.5-pro-latest", SupportsGeneration: true},
		{Name: "models/gemini-pro", SupportsGeneration: true},
	}

	model, ok := pickModel(available, DefaultFallbackModels, "gemini-1.5-flash-8b")
	require.True(t, ok)
	require.Equal(t, "gemini-1.5-pro-latest", model)

	model, ok = pickModel(available, []string{"unknown"}, "gemini-1.5-pro-latest")
	require.True(t, ok)
	require.Equal(t, "gemini-pro", model)

	_, ok = pickModel([]driver.Model{{Name: "embedding-001"}}, DefaultFallbackModels, "")
	require.False(t, ok)
}
