package gemini

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/signrelay/signrelay/internal/ailink/content"
	"github.com/signrelay/signrelay/internal/ailink/driver"
)

type generateResponse struct {
	Candidates     []candidate     `json:"candidates"`
	UsageMetadata  *usageMetadata  `json:"usageMetadata,omitempty"`
	PromptFeedback *promptFeedback `json:"promptFeedback,omitempty"`
	ModelVersion   string          `json:"modelVersion,omitempty"`
}

type candidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type usageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type promptFeedback struct {
	BlockReason string `json:"blockReason,omitempty"`
}

type listModelsResponse struct {
	Models        []modelEntry `json:"models"`
	NextPageToken string       `json:"nextPageToken,omitempty"`
}

type modelEntry struct {
	Name                       string   `json:"name"`
	DisplayName                string   `json:"displayName"`
	SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (m modelEntry) toDriverModel() driver.Model {
	supports := false
	for _, method := range m.SupportedGenerationMethods {
		if method == "generateContent" {
			supports = true
			break
		}
	}
	return driver.Model{
		Name:               strings.TrimPrefix(m.Name, "models/"),
		DisplayName:        m.DisplayName,
		SupportsGeneration: supports,
	}
}

func toDriverResponse(resp *generateResponse, model string) (*driver.Response, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return nil, fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason)
		}
		return nil, fmt.Errorf("empty response candidates")
	}

	first := resp.Candidates[0]
	blocks := make([]content.ContentBlock, 0, len(first.Content.Parts))
	for _, p := range first.Content.Parts {
		blocks = append(blocks, content.ContentBlock{Type: content.ContentTypeText, Text: p.Text})
	}

	out := &driver.Response{
		Content:      blocks,
		FinishReason: first.FinishReason,
		Model:        model,
	}
	if resp.ModelVersion != "" {
		out.Model = resp.ModelVersion
	}
	if resp.UsageMetadata != nil {
		out.Usage = &driver.Usage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      resp.UsageMetadata.TotalTokenCount,
		}
	}
	return out, nil
}

// errorMessage keeps the full body when it carries retry details so the
// connector can read the provider's retry hint.
func errorMessage(body []byte) string {
	var parsed errorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		if strings.Contains(string(body), "retryDelay") {
			return parsed.Error.Message + " " + strings.TrimSpace(string(body))
		}
		return parsed.Error.Message
	}
	return strings.TrimSpace(string(body))
}
