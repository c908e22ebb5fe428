package gemini

import (
	"fmt"
	"strings"

	"github.com/signrelay/signrelay/internal/ailink/content"
	"github.com/signrelay/signrelay/internal/ailink/driver"
)

type generateRequest struct {
	SystemInstruction *geminiContent    `json:"systemInstruction,omitempty"`
	Contents          []geminiContent   `json:"contents"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
}

func buildGenerateRequest(req *driver.Request) (*generateRequest, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	if strings.TrimSpace(req.Model) == "" {
		return nil, fmt.Errorf("model is required")
	}
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("messages are required")
	}

	payload := &generateRequest{}
	system := strings.TrimSpace(req.System)
	for _, msg := range req.Messages {
		text := msg.Text()
		switch msg.Role {
		case content.RoleSystem:
			// Gemini takes a single system instruction; extra system turns are folded in.
			if system != "" {
				system += "\n\n"
			}
			system += text
		case content.RoleAssistant:
			payload.Contents = append(payload.Contents, geminiContent{Role: "model", Parts: []part{{Text: text}}})
		default:
			payload.Contents = append(payload.Contents, geminiContent{Role: "user", Parts: []part{{Text: text}}})
		}
	}
	if len(payload.Contents) == 0 {
		return nil, fmt.Errorf("at least one user message is required")
	}
	if system != "" {
		payload.SystemInstruction = &geminiContent{Parts: []part{{Text: system}}}
	}
	if req.Temperature != nil || req.MaxTokens != nil {
		payload.GenerationConfig = &generationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
		}
	}
	return payload, nil
}
