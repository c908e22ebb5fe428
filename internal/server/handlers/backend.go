package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/signrelay/signrelay/internal/ailink"
	"github.com/signrelay/signrelay/internal/core"
	apperrors "github.com/signrelay/signrelay/internal/errors"
)

// GenerativeConnector is the connector surface served by the genai routes.
type GenerativeConnector interface {
	GetResponse(ctx context.Context, input string) string
	CheckStatus(ctx context.Context) bool
	TriggerImmediateCheck()
	Model() string
}

// Backend serves the generative backend service routes.
type Backend struct {
	Connector GenerativeConnector
	now       func() time.Time
}

// NewBackend returns the genai route handlers.
func NewBackend(connector GenerativeConnector) *Backend {
	return &Backend{Connector: connector, now: time.Now}
}

// ProcessSentenceRequest is the body of POST /process_sentence.
type ProcessSentenceRequest struct {
	Sentence []string `json:"sentence"`
	ClientID string   `json:"clientId"`
}

// ProcessSentenceResponse is returned by POST /process_sentence.
type ProcessSentenceResponse struct {
	Success  bool   `json:"success"`
	Input    string `json:"input,omitempty"`
	Response string `json:"response,omitempty"`
	ClientID string `json:"clientId,omitempty"`
	Error    string `json:"error,omitempty"`
}

// BackendStatus is returned by GET /status.
type BackendStatus struct {
	Status    string    `json:"status"`
	Model     string    `json:"model"`
	Timestamp time.Time `json:"timestamp"`
}

// TriggerResponse is returned by POST /trigger_check.
type TriggerResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// TestResponse is returned by GET /test.
type TestResponse struct {
	Status    string    `json:"status"`
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
}

// Respond returns a sanitized reply for {input}.
func (b *Backend) Respond(w http.ResponseWriter, r *http.Request) {
	var req RespondRequest
	if err := decodeJSON(r, &req, false); err != nil {
		respondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, "invalid respond payload"))
		return
	}
	input := strings.TrimSpace(req.Input)
	if input == "" {
		writeJSON(w, http.StatusOK, RespondResponse{Success: false, Error: "No input provided", Response: ailink.PromptForInput})
		return
	}
	writeJSON(w, http.StatusOK, RespondResponse{
		Success:  true,
		Response: b.Connector.GetResponse(r.Context(), input),
		Input:    input,
	})
}

// ProcessSentence joins a token sequence and returns a reply for it.
func (b *Backend) ProcessSentence(w http.ResponseWriter, r *http.Request) {
	var req ProcessSentenceRequest
	if err := decodeJSON(r, &req, false); err != nil {
		respondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, "invalid sentence payload"))
		return
	}
	clientID := req.ClientID
	if clientID == "" {
		clientID = "default"
	}
	input := strings.TrimSpace(core.SentenceState{Tokens: req.Sentence}.Text())
	if input == "" {
		writeJSON(w, http.StatusOK, ProcessSentenceResponse{Success: false, Error: "Empty sentence", ClientID: clientID})
		return
	}
	writeJSON(w, http.StatusOK, ProcessSentenceResponse{
		Success:  true,
		Input:    input,
		Response: b.Connector.GetResponse(r.Context(), input),
		ClientID: clientID,
	})
}

// Status runs a live connector check.
func (b *Backend) Status(w http.ResponseWriter, r *http.Request) {
	status := "not_running"
	if b.Connector.CheckStatus(r.Context()) {
		status = "running"
	}
	writeJSON(w, http.StatusOK, BackendStatus{Status: status, Model: b.Connector.Model(), Timestamp: b.now().UTC()})
}

// TriggerCheck wakes the connector heartbeat.
func (b *Backend) TriggerCheck(w http.ResponseWriter, r *http.Request) {
	b.Connector.TriggerImmediateCheck()
	writeJSON(w, http.StatusOK, TriggerResponse{Success: true, Message: "Connection check triggered"})
}

// Test is a liveness endpoint that does not touch the provider.
func (b *Backend) Test(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, TestResponse{Status: "Generative backend service is running", Success: true, Timestamp: b.now().UTC()})
}
