// Package remote talks to a separately deployed generative backend service.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/signrelay/signrelay/internal/ailink"
	"github.com/signrelay/signrelay/internal/httpclient"
	"github.com/signrelay/signrelay/internal/observability"
)

// Resolver returns the base URL to use for the generative service.
type Resolver func() string

// Client implements the orchestrator Responder over HTTP.
type Client struct {
	resolve Resolver
	http    *retryablehttp.Client
	log     *logging.Logger
}

type respondRequest struct {
	Input string `json:"input"`
}

type respondResponse struct {
	Success  bool   `json:"success"`
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// StatusResponse is the generative service status document.
type StatusResponse struct {
	Status    string    `json:"status"`
	Model     string    `json:"model"`
	Timestamp time.Time `json:"timestamp"`
}

// New returns a client resolving its base URL on every call.
func New(resolve Resolver, client *retryablehttp.Client, log *logging.Logger) *Client {
	if client == nil {
		client = httpclient.New(httpclient.Options{Timeout: 60 * time.Second})
	}
	if log == nil {
		log = observability.Logger()
	}
	return &Client{resolve: resolve, http: client, log: log}
}

// Respond posts input to /respond. Failures fall back to the continue reply.
func (c *Client) Respond(ctx context.Context, input string) string {
	if strings.TrimSpace(input) == "" {
		return ailink.PromptForInput
	}

	var out respondResponse
	url := httpclient.Join(c.resolve(), "/respond")
	if _, err := httpclient.DoJSON(ctx, c.http, http.MethodPost, url, respondRequest{Input: input}, &out); err != nil {
		c.log.Warn("Generative service request failed", zap.String("url", url), zap.Error(err))
		return ailink.ContinueFallback
	}
	if !out.Success || strings.TrimSpace(out.Response) == "" {
		c.log.Warn("Generative service reported failure", zap.String("error", out.Error))
		return ailink.ContinueFallback
	}
	return out.Response
}

// Status fetches /status from baseURL.
func (c *Client) Status(ctx context.Context, baseURL string) (*StatusResponse, error) {
	var out StatusResponse
	if _, err := httpclient.DoJSON(ctx, c.http, http.MethodGet, httpclient.Join(baseURL, "/status"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ErrNotRunning is returned by Probe when the service reports not_running.
var ErrNotRunning = errors.New("generative service not running")

// Probe implements the monitor probe contract for a generative service.
func (c *Client) Probe(ctx context.Context, baseURL string) error {
	status, err := c.Status(ctx, baseURL)
	if err != nil {
		return err
	}
	if status.Status != "running" {
		return fmt.Errorf("%w: status %q", ErrNotRunning, status.Status)
	}
	return nil
}
