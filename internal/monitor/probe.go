package monitor

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/signrelay/signrelay/internal/httpclient"
)

// Probe checks whether a candidate base URL answers.
type Probe interface {
	Probe(ctx context.Context, baseURL string) error
}

// ProbeFunc adapts a function to Probe.
type ProbeFunc func(ctx context.Context, baseURL string) error

// Probe calls f.
func (f ProbeFunc) Probe(ctx context.Context, baseURL string) error {
	return f(ctx, baseURL)
}

// AcceptFunc decides whether an HTTP status counts as reachable.
type AcceptFunc func(status int) bool

// Accept2xx accepts any 2xx status.
func Accept2xx(status int) bool {
	return status >= 200 && status < 300
}

// AcceptNon5xx accepts any status below 500.
func AcceptNon5xx(status int) bool {
	return status > 0 && status < 500
}

// HTTPProbe issues GET {base}{Path} and applies Accept to the status.
type HTTPProbe struct {
	Path   string
	Accept AcceptFunc
	Client *retryablehttp.Client
}

// Probe implements Probe.
func (p HTTPProbe) Probe(ctx context.Context, baseURL string) error {
	client := p.Client
	if client == nil {
		client = httpclient.New(httpclient.Options{})
	}
	accept := p.Accept
	if accept == nil {
		accept = Accept2xx
	}

	target := baseURL
	if p.Path != "" {
		target = httpclient.Join(baseURL, p.Path)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()

	if !accept(resp.StatusCode) {
		return &httpclient.StatusError{URL: target, StatusCode: resp.StatusCode}
	}
	return nil
}

// TCPProbe opens a raw connection to the host and port of the base URL.
type TCPProbe struct{}

// Probe implements Probe.
func (TCPProbe) Probe(ctx context.Context, baseURL string) error {
	addr, err := hostPort(baseURL)
	if err != nil {
		return err
	}
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	return conn.Close()
}

func hostPort(baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", fmt.Errorf("parse candidate %q: %w", baseURL, err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("candidate %q has no host", baseURL)
	}
	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "https":
			port = "443"
		default:
			port = "80"
		}
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}
