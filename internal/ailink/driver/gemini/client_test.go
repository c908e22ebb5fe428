package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/signrelay/signrelay/internal/ailink/content"
	"github.com/signrelay/signrelay/internal/ailink/driver"
)

func testRequest() *driver.Request {
	temp := 0.7
	maxTokens := 30
	return &driver.Request{
		Model:       "gemini-1.5-flash-8b",
		System:      "Always respond in less than 5 words.",
		Messages:    driver.UserText("hello"),
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	}
}

func TestClientRequiresAPIKey(t *testing.T) {
	client := NewClient("", "")
	_, err := client.Complete(context.Background(), testRequest())
	require.ErrorIs(t, err, driver.ErrMissingAPIKey)

	_, err = client.ListModels(context.Background())
	require.ErrorIs(t, err, driver.ErrMissingAPIKey)
}

func TestClientSendsGenerateContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1beta/models/gemini-1.5-flash-8b:generateContent", r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var payload generateRequest
		require.NoError(t, json.Unmarshal(body, &payload))
		require.NotNil(t, payload.SystemInstruction)
		require.Equal(t, "Always respond in less than 5 words.", payload.SystemInstruction.Parts[0].Text)
		require.Len(t, payload.Contents, 1)
		require.Equal(t, "user", payload.Contents[0].Role)
		require.Equal(t, "hello", payload.Contents[0].Parts[0].Text)
		require.NotNil(t, payload.GenerationConfig)
		require.Equal(t, 30, *payload.GenerationConfig.MaxOutputTokens)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Hi there friend"}],"role":"model"},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":4,"candidatesTokenCount":3,"totalTokenCount":7}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL+"/v1beta", "test-key")
	client.HTTPClient = server.Client()

	resp, err := client.Complete(context.Background(), testRequest())
	require.NoError(t, err)
	require.Equal(t, "Hi there friend", resp.Text())
	require.Equal(t, "STOP", resp.FinishReason)
	require.NotNil(t, resp.Usage)
	require.Equal(t, 7, resp.Usage.TotalTokens)
}

func TestClientQuotaErrorCarriesRetryHint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "45")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"Resource has been exhausted (e.g. check quota).","status":"RESOURCE_EXHAUSTED","details":[{"@type":"type.googleapis.com/google.rpc.RetryInfo","retryDelay":"45s"}]}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	client.HTTPClient = server.Client()

	_, err := client.Complete(context.Background(), testRequest())
	require.Error(t, err)

	var perr *driver.ProviderError
	require.True(t, errors.As(err, &perr))
	require.Equal(t, http.StatusTooManyRequests, perr.StatusCode)
	require.Equal(t, 45*time.Second, perr.RetryAfter)
	require.Contains(t, perr.Message, "retryDelay")
}

func TestClientNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"models/gemini-old is not found for API version v1beta","status":"NOT_FOUND"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	client.HTTPClient = server.Client()

	_, err := client.Complete(context.Background(), testRequest())
	var perr *driver.ProviderError
	require.True(t, errors.As(err, &perr))
	require.Equal(t, http.StatusNotFound, perr.StatusCode)
	require.Equal(t, "models/gemini-old is not found for API version v1beta", perr.Message)
}

func TestClientListModelsPaginates(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/models", r.URL.Path)
		calls++
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("pageToken") == "" {
			_, _ = w.Write([]byte(`{"models":[{"name":"models/gemini-1.5-flash-8b","supportedGenerationMethods":["generateContent","countTokens"]}],"nextPageToken":"p2"}`))
			return
		}
		_, _ = w.Write([]byte(`{"models":[{"name":"models/embedding-001","supportedGenerationMethods":["embedContent"]}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	client.HTTPClient = server.Client()

	models, err := client.ListModels(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, calls)
	require.Equal(t, []driver.Model{
		{Name: "gemini-1.5-flash-8b", SupportsGeneration: true},
		{Name: "embedding-001", SupportsGeneration: false},
	}, models)
}

func TestBuildRequestMapsRoles(t *testing.T) {
	req := &driver.Request{
		Model: "m",
		Messages: []content.Message{
			{Role: content.RoleSystem, Content: []content.ContentBlock{{Type: content.ContentTypeText, Text: "be brief"}}},
			{Role: content.RoleUser, Content: []content.ContentBlock{{Type: content.ContentTypeText, Text: "hi"}}},
			{Role: content.RoleAssistant, Content: []content.ContentBlock{{Type: content.ContentTypeText, Text: "hello"}}},
		},
	}
	payload, err := buildGenerateRequest(req)
	require.NoError(t, err)
	require.Equal(t, "be brief", payload.SystemInstruction.Parts[0].Text)
	require.Len(t, payload.Contents, 2)
	require.Equal(t, "model", payload.Contents[1].Role)
	require.Nil(t, payload.GenerationConfig)
}

func TestModelPath(t *testing.T) {
	require.Equal(t, "models/gemini-pro", ModelPath("gemini-pro"))
	require.Equal(t, "models/gemini-pro", ModelPath("models/gemini-pro"))
}
