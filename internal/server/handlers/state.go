package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/signrelay/signrelay/internal/core"
	apperrors "github.com/signrelay/signrelay/internal/errors"
	"github.com/signrelay/signrelay/internal/events"
	"github.com/signrelay/signrelay/internal/observability"
	"github.com/signrelay/signrelay/internal/orchestrator"
)

// SentenceStore is the synchronizer surface used by the façade.
type SentenceStore interface {
	Current() core.SentenceState
	ReceivePush(tokens []string) core.SentenceState
}

// StatusSource reports dependent service reachability.
type StatusSource interface {
	Snapshot() core.StatusSnapshot
	Refresh(ctx context.Context) core.StatusSnapshot
}

// ConversationRunner performs send-conversation round-trips.
type ConversationRunner interface {
	Respond(ctx context.Context, override string) (orchestrator.Result, error)
	ClearSentence(ctx context.Context) core.SentenceState
}

// Facade serves the orchestrator's state, respond and event routes.
type Facade struct {
	Sentences    SentenceStore
	Status       StatusSource
	Conversation ConversationRunner
	Hub          *events.Hub
	Inbound      EventsConfig
	Log          *logging.Logger
}

func (f *Facade) logger() *logging.Logger {
	if f.Log != nil {
		return f.Log
	}
	return observability.Logger()
}

// PushRequest is the body of POST /state/push.
type PushRequest struct {
	Tokens   *[]string `json:"tokens"`
	ClientID string    `json:"clientId"`
}

// SuccessResponse is the minimal acknowledgement body.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// StateResponse is the body of GET /state.
type StateResponse struct {
	Tokens          []string            `json:"tokens"`
	UpdatedAt       time.Time           `json:"updatedAt"`
	Source          core.Source         `json:"source"`
	DependentStatus core.StatusSnapshot `json:"dependentStatus"`
}

// RespondRequest is the optional body of POST /respond.
type RespondRequest struct {
	Input string `json:"input"`
}

// RespondResponse is the body returned by POST /respond.
type RespondResponse struct {
	Success  bool   `json:"success"`
	Response string `json:"response,omitempty"`
	Input    string `json:"input,omitempty"`
	Error    string `json:"error,omitempty"`
}

// PushState replaces the sentence with the pushed tokens.
func (f *Facade) PushState(w http.ResponseWriter, r *http.Request) {
	var req PushRequest
	if err := decodeJSON(r, &req, false); err != nil {
		respondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, "invalid push payload"))
		return
	}
	if req.Tokens == nil {
		respondWithError(w, r, apperrors.NewInvalidInputError("tokens is required"))
		return
	}

	state := f.Sentences.ReceivePush(*req.Tokens)
	f.logger().Debug("Sentence pushed",
		zap.String("client_id", req.ClientID),
		zap.Strings("tokens", state.Tokens),
		zap.Uint64("version", state.Version))
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// GetState returns the sentence and the last known dependency status.
func (f *Facade) GetState(w http.ResponseWriter, r *http.Request) {
	state := f.Sentences.Current()
	writeJSON(w, http.StatusOK, StateResponse{
		Tokens:          state.Tokens,
		UpdatedAt:       state.UpdatedAt,
		Source:          state.Source,
		DependentStatus: f.Status.Snapshot(),
	})
}

// ClearState clears the sentence locally and upstream.
func (f *Facade) ClearState(w http.ResponseWriter, r *http.Request) {
	f.Conversation.ClearSentence(r.Context())
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// Respond sends the current sentence, or the supplied input, for a reply.
func (f *Facade) Respond(w http.ResponseWriter, r *http.Request) {
	var req RespondRequest
	if err := decodeJSON(r, &req, true); err != nil {
		respondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, "invalid respond payload"))
		return
	}

	result, err := f.Conversation.Respond(r.Context(), req.Input)
	if errors.Is(err, orchestrator.ErrNoSentence) {
		writeJSON(w, http.StatusBadRequest, RespondResponse{Success: false, Error: err.Error()})
		return
	}
	if err != nil {
		respondWithError(w, r, apperrors.WrapInternal(r.Context(), err, "conversation failed"))
		return
	}
	writeJSON(w, http.StatusOK, RespondResponse{Success: true, Response: result.Response, Input: result.Input})
}

// GetStatus refreshes every dependency and returns the snapshot.
func (f *Facade) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, f.Status.Refresh(r.Context()))
}
