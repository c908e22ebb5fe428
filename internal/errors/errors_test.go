package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/signrelay/signrelay/internal/server/middleware"
)

func TestHTTPStatusFromCode(t *testing.T) {
	cases := map[string]int{
		CodeInvalidInput:       http.StatusBadRequest,
		CodeNotFound:           http.StatusNotFound,
		CodeMethodNotAllowed:   http.StatusMethodNotAllowed,
		CodeExternalService:    http.StatusBadGateway,
		CodeServiceUnavailable: http.StatusServiceUnavailable,
		"SOMETHING_ELSE":       http.StatusInternalServerError,
	}
	for code, want := range cases {
		require.Equal(t, want, HTTPStatusFromCode(code), code)
	}
}

func TestWrapCarriesRequestID(t *testing.T) {
	ctx := context.WithValue(context.Background(), middleware.RequestIDContextKey, "req-123")
	env := WrapExternalService(ctx, stderrors.New("connection refused"), "perception unavailable")

	require.Equal(t, CodeExternalService, env.Code)
	require.Equal(t, "req-123", env.CorrelationID)
	require.Equal(t, "connection refused", env.Context["wrapped_error"])
}

func TestRespondWithErrorWritesEnvelope(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/state/push", nil)
	rec := httptest.NewRecorder()

	RespondWithError(rec, req, NewInvalidInputError("tokens are required"))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, CodeInvalidInput, body.Error.Code)
	require.Equal(t, "tokens are required", body.Error.Message)
	require.NotEmpty(t, body.Error.RequestID)
}

func TestEnsureEnvelopeWrapsPlainErrors(t *testing.T) {
	env := EnsureEnvelope(stderrors.New("boom"))
	require.Equal(t, CodeInternal, env.Code)
	require.Equal(t, "boom", env.Context["wrapped_error"])
}
