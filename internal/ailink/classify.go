package ailink

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/signrelay/signrelay/internal/ailink/driver"
)

// ErrorKind is the connector's view of a provider failure.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindTimeout
	KindQuota
	KindNotFound
	KindAuth
	KindUnavailable
	KindOther
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindTimeout:
		return "timeout"
	case KindQuota:
		return "quota"
	case KindNotFound:
		return "not_found"
	case KindAuth:
		return "auth"
	case KindUnavailable:
		return "unavailable"
	default:
		return "other"
	}
}

// Classify maps a driver error to an ErrorKind.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	if errors.Is(err, driver.ErrMissingAPIKey) {
		return KindAuth
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	var perr *driver.ProviderError
	if errors.As(err, &perr) && perr != nil {
		status := perr.StatusCode
		switch {
		case status == 429:
			return KindQuota
		case status == 404:
			return KindNotFound
		case status == 401 || status == 403:
			return KindAuth
		case status == 408 || status == 504:
			return KindTimeout
		case status >= 500 && status <= 599:
			return KindUnavailable
		}
		if kind := classifyMessage(perr.Message); kind != KindOther {
			return kind
		}
		return KindOther
	}

	return classifyMessage(err.Error())
}

// classifyMessage recognizes providers that report quota or missing models
// with a generic status.
func classifyMessage(msg string) ErrorKind {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "resource_exhausted"),
		strings.Contains(lower, "quota") && (strings.Contains(lower, "exceeded") || strings.Contains(lower, "exhausted")),
		strings.Contains(lower, "rate limit"):
		return KindQuota
	case strings.Contains(lower, "not found") && strings.Contains(lower, "model"),
		strings.Contains(lower, "not_found"):
		return KindNotFound
	default:
		return KindOther
	}
}

// retryHintText returns the text the provider attached to a quota error.
func retryHintText(err error) string {
	var perr *driver.ProviderError
	if errors.As(err, &perr) && perr != nil {
		return perr.Message + " " + string(perr.RawResponse)
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
