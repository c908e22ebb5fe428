// Package display forwards replies to the UI service for rendering.
package display

import (
	"context"
	"net/http"
	"strings"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/signrelay/signrelay/internal/httpclient"
)

// Request is the display payload accepted by the UI service.
type Request struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// Client posts display requests.
type Client struct {
	resolve func() string
	path    string
	source  string
	target  string
	http    *retryablehttp.Client
}

// New returns a display client for the given language pair.
func New(resolve func() string, path, source, target string, client *retryablehttp.Client) *Client {
	if strings.TrimSpace(path) == "" {
		path = "/display"
	}
	if client == nil {
		client = httpclient.New(httpclient.Options{RetryMax: 1})
	}
	return &Client{resolve: resolve, path: path, source: source, target: target, http: client}
}

// Display sends text to the UI service.
func (c *Client) Display(ctx context.Context, text string) error {
	_, err := httpclient.DoJSON(ctx, c.http, http.MethodPost, httpclient.Join(c.resolve(), c.path), Request{
		Text:   text,
		Source: c.source,
		Target: c.target,
	}, nil)
	return err
}
