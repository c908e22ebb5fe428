package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestRequestIDReusesWellFormedHeader(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/state/push", nil)
	req.Header.Set(RequestIDHeader, "ui-7f3a.push:1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, "ui-7f3a.push:1", seen)
	require.Equal(t, "ui-7f3a.push:1", rec.Header().Get(RequestIDHeader))
}

func TestRequestIDReplacesUnsafeHeader(t *testing.T) {
	for _, bad := range []string{"line\nbreak", "has space", strings.Repeat("a", maxRequestIDLen+1), "<script>"} {
		var seen string
		handler := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			seen = GetRequestID(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/state", nil)
		req.Header.Set(RequestIDHeader, bad)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		_, err := uuid.Parse(seen)
		require.NoError(t, err, "header %q", bad)
		require.Equal(t, seen, rec.Header().Get(RequestIDHeader))
	}
}

func TestRequestIDGeneratedWhenMissing(t *testing.T) {
	rec := httptest.NewRecorder()
	RequestID(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	_, err := uuid.Parse(rec.Header().Get(RequestIDHeader))
	require.NoError(t, err)
}
