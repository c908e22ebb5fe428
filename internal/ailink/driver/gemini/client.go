package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/signrelay/signrelay/internal/ailink/driver"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	providerName   = "gemini"
	apiKeyHeader   = "x-goog-api-key"
)

// Client implements the Gemini driver via the REST API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Timeout    time.Duration
	Clock      func() time.Time
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

// Complete calls models/{model}:generateContent.
func (c *Client) Complete(ctx context.Context, req *driver.Request) (*driver.Response, error) {
	if c == nil {
		return nil, fmt.Errorf("gemini client not configured")
	}
	if c.APIKey == "" {
		return nil, driver.ErrMissingAPIKey
	}

	payload, err := buildGenerateRequest(req)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	endpoint := c.BaseURL + "/" + ModelPath(req.Model) + ":generateContent"
	respBody, err := c.do(ctx, http.MethodPost, endpoint, body, "generate", req.Model)
	if err != nil {
		return nil, err
	}

	var parsed generateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return toDriverResponse(&parsed, req.Model)
}

// ListModels pages through the models endpoint.
func (c *Client) ListModels(ctx context.Context) ([]driver.Model, error) {
	if c == nil {
		return nil, fmt.Errorf("gemini client not configured")
	}
	if c.APIKey == "" {
		return nil, driver.ErrMissingAPIKey
	}

	var models []driver.Model
	pageToken := ""
	for page := 0; page < 10; page++ {
		q := url.Values{}
		q.Set("pageSize", "100")
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}
		respBody, err := c.do(ctx, http.MethodGet, c.BaseURL+"/models?"+q.Encode(), nil, "list_models", "")
		if err != nil {
			return nil, err
		}

		var parsed listModelsResponse
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return nil, fmt.Errorf("decode models: %w", err)
		}
		for _, m := range parsed.Models {
			models = append(models, m.toDriverModel())
		}
		if parsed.NextPageToken == "" {
			break
		}
		pageToken = parsed.NextPageToken
	}
	return models, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, op, model string) ([]byte, error) {
	ctx, cancel := withTimeout(ctx, c.Timeout)
	if cancel != nil {
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set(apiKeyHeader, c.APIKey)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	start := time.Now()
	entry := driver.TraceEntry{Driver: providerName, Operation: op, Model: model, RequestBody: body}
	defer func() {
		entry.DurationMs = time.Since(start).Milliseconds()
		driver.Trace(entry)
	}()

	resp, err := client.Do(httpReq)
	if err != nil {
		entry.Error = err.Error()
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup

	entry.StatusCode = resp.StatusCode
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		entry.Error = err.Error()
		return nil, fmt.Errorf("read response: %w", err)
	}
	if json.Valid(respBody) {
		entry.Response = respBody
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		perr := &driver.ProviderError{
			Provider:    providerName,
			StatusCode:  resp.StatusCode,
			Message:     errorMessage(respBody),
			RetryAfter:  driver.ParseRetryAfter(resp.Header, c.now()),
			RawResponse: respBody,
		}
		entry.Error = perr.Error()
		return nil, perr
	}
	return respBody, nil
}

func (c *Client) now() time.Time {
	if c.Clock != nil {
		return c.Clock()
	}
	return time.Now()
}

// ModelPath normalizes a model id to the "models/<id>" resource form.
func ModelPath(model string) string {
	model = strings.TrimSpace(model)
	if strings.HasPrefix(model, "models/") {
		return model
	}
	return "models/" + model
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, nil
	}
	return context.WithTimeout(ctx, timeout)
}
