package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/signrelay/signrelay/internal/ailink/content"
	"github.com/signrelay/signrelay/internal/ailink/driver"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	providerName   = "openai"
)

// Client implements the driver for OpenAI-compatible chat APIs (OpenAI,
// Ollama, local gateways).
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Timeout    time.Duration

	api *goopenai.Client
}

// NewClient returns a client with defaults applied.
func NewClient(baseURL, apiKey string) *Client {
	u := strings.TrimSpace(baseURL)
	if u == "" {
		u = defaultBaseURL
	}
	return &Client{
		BaseURL: strings.TrimRight(u, "/"),
		APIKey:  strings.TrimSpace(apiKey),
	}
}

// Name returns the driver identifier.
func (c *Client) Name() string {
	return providerName
}

// Capabilities describes supported features.
func (c *Client) Capabilities() driver.Capabilities {
	return driver.Capabilities{
		SupportsSystemInstruction: true,
		SupportsModelListing:      true,
	}
}

// Complete sends a chat completion request.
func (c *Client) Complete(ctx context.Context, req *driver.Request) (*driver.Response, error) {
	if c == nil {
		return nil, fmt.Errorf("openai client not configured")
	}
	payload, err := buildChatRequest(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, c.Timeout)
	if cancel != nil {
		defer cancel()
	}

	start := time.Now()
	resp, err := c.client().CreateChatCompletion(ctx, payload)
	entry := driver.TraceEntry{Driver: providerName, Operation: "chat", Model: payload.Model, DurationMs: time.Since(start).Milliseconds()}
	if err != nil {
		err = toProviderError(err)
		entry.Error = err.Error()
		driver.Trace(entry)
		return nil, err
	}
	driver.Trace(entry)

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response choices")
	}
	choice := resp.Choices[0]
	return &driver.Response{
		Content:      []content.ContentBlock{{Type: content.ContentTypeText, Text: choice.Message.Content}},
		FinishReason: string(choice.FinishReason),
		Model:        resp.Model,
		Usage: &driver.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// ListModels returns the models exposed by the endpoint. Every listed model
// is assumed to accept chat completions.
func (c *Client) ListModels(ctx context.Context) ([]driver.Model, error) {
	if c == nil {
		return nil, fmt.Errorf("openai client not configured")
	}
	ctx, cancel := withTimeout(ctx, c.Timeout)
	if cancel != nil {
		defer cancel()
	}

	list, err := c.client().ListModels(ctx)
	if err != nil {
		return nil, toProviderError(err)
	}
	models := make([]driver.Model, 0, len(list.Models))
	for _, m := range list.Models {
		models = append(models, driver.Model{Name: m.ID, SupportsGeneration: true})
	}
	return models, nil
}

func (c *Client) client() *goopenai.Client {
	if c.api != nil {
		return c.api
	}
	cfg := goopenai.DefaultConfig(c.APIKey)
	cfg.BaseURL = c.BaseURL
	if c.HTTPClient != nil {
		cfg.HTTPClient = c.HTTPClient
	}
	c.api = goopenai.NewClientWithConfig(cfg)
	return c.api
}

func buildChatRequest(req *driver.Request) (goopenai.ChatCompletionRequest, error) {
	var payload goopenai.ChatCompletionRequest
	if req == nil {
		return payload, fmt.Errorf("request is required")
	}
	if strings.TrimSpace(req.Model) == "" {
		return payload, fmt.Errorf("model is required")
	}
	if len(req.Messages) == 0 {
		return payload, fmt.Errorf("messages are required")
	}

	payload.Model = req.Model
	if system := strings.TrimSpace(req.System); system != "" {
		payload.Messages = append(payload.Messages, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: system})
	}
	for _, msg := range req.Messages {
		role := goopenai.ChatMessageRoleUser
		switch msg.Role {
		case content.RoleSystem:
			role = goopenai.ChatMessageRoleSystem
		case content.RoleAssistant:
			role = goopenai.ChatMessageRoleAssistant
		}
		payload.Messages = append(payload.Messages, goopenai.ChatCompletionMessage{Role: role, Content: msg.Text()})
	}
	if req.Temperature != nil {
		payload.Temperature = float32(*req.Temperature)
	}
	if req.MaxTokens != nil {
		payload.MaxTokens = *req.MaxTokens
	}
	return payload, nil
}

func toProviderError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return &driver.ProviderError{Provider: providerName, StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		msg := strings.TrimSpace(string(reqErr.Body))
		if msg == "" && reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return &driver.ProviderError{Provider: providerName, StatusCode: reqErr.HTTPStatusCode, Message: msg, RawResponse: reqErr.Body}
	}
	return fmt.Errorf("request failed: %w", err)
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, nil
	}
	return context.WithTimeout(ctx, timeout)
}
