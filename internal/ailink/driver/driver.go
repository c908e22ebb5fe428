package driver

import (
	"context"
	"strings"

	"github.com/signrelay/signrelay/internal/ailink/content"
)

// Driver defines the interface for generative text providers.
type Driver interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req *Request) (*Response, error)
	// ListModels returns the models visible to the configured credentials.
	ListModels(ctx context.Context) ([]Model, error)
	// Name returns the driver identifier (e.g., "gemini").
	Name() string
	// Capabilities returns what this driver supports.
	Capabilities() Capabilities
}

// Capabilities describes driver features.
type Capabilities struct {
	SupportsSystemInstruction bool
	SupportsModelListing      bool
}

// Model is a provider model entry.
type Model struct {
	Name               string `json:"name"`
	DisplayName        string `json:"display_name,omitempty"`
	SupportsGeneration bool   `json:"supports_generation"`
}

// Usage contains token usage statistics.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Request is a provider-agnostic completion request.
type Request struct {
	Model       string
	System      string
	Messages    []content.Message
	Temperature *float64
	MaxTokens   *int
	PromptSlug  string
	Metadata    map[string]string
}

// Response is a provider-agnostic completion response.
type Response struct {
	Content      []content.ContentBlock
	FinishReason string
	Usage        *Usage
	Model        string
}

// Text concatenates the text blocks of the response.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	parts := make([]string, 0, len(r.Content))
	for _, block := range r.Content {
		if block.Type == content.ContentTypeText && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "")
}

// UserText builds a single-turn user message.
func UserText(text string) []content.Message {
	return []content.Message{{
		Role:    content.RoleUser,
		Content: []content.ContentBlock{{Type: content.ContentTypeText, Text: text}},
	}}
}
