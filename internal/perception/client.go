// Package perception is the client for the sign-recognition service.
package perception

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/signrelay/signrelay/internal/httpclient"
)

// DefaultClientID is used when no client id is configured.
const DefaultClientID = "default"

// ErrNotReady is returned when the service answers with success=false.
var ErrNotReady = errors.New("perception service reported no sentence")

// Client fetches and clears the recognized sentence.
type Client struct {
	resolve  func() string
	clientID string
	http     *retryablehttp.Client
}

type sentenceResponse struct {
	Success  bool      `json:"success"`
	Sentence *[]string `json:"sentence"`
	Error    string    `json:"error,omitempty"`
}

type clearRequest struct {
	ClientID string `json:"clientId"`
}

type clearResponse struct {
	Success bool `json:"success"`
}

// New returns a client. resolve yields the current base URL.
func New(resolve func() string, clientID string, client *retryablehttp.Client) *Client {
	if clientID == "" {
		clientID = DefaultClientID
	}
	if client == nil {
		client = httpclient.New(httpclient.Options{RetryMax: 1})
	}
	return &Client{resolve: resolve, clientID: clientID, http: client}
}

// ClientID returns the id sent upstream.
func (c *Client) ClientID() string {
	return c.clientID
}

// FetchSentence returns the tokens currently recognized upstream.
func (c *Client) FetchSentence(ctx context.Context) ([]string, error) {
	endpoint := httpclient.Join(c.resolve(), "/sentence") + "?clientId=" + url.QueryEscape(c.clientID)

	var out sentenceResponse
	if _, err := httpclient.DoJSON(ctx, c.http, http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		if out.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrNotReady, out.Error)
		}
		return nil, ErrNotReady
	}
	if out.Sentence == nil {
		return nil, fmt.Errorf("%w: missing sentence field", httpclient.ErrMalformed)
	}
	tokens := make([]string, 0, len(*out.Sentence))
	tokens = append(tokens, *out.Sentence...)
	return tokens, nil
}

// Clear asks the service to drop its sentence.
func (c *Client) Clear(ctx context.Context) error {
	var out clearResponse
	if _, err := httpclient.DoJSON(ctx, c.http, http.MethodPost, httpclient.Join(c.resolve(), "/clear"), clearRequest{ClientID: c.clientID}, &out); err != nil {
		return err
	}
	if !out.Success {
		return fmt.Errorf("perception service refused clear")
	}
	return nil
}
