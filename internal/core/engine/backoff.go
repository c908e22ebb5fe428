package engine

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultMaxDelay caps every retry wait.
	DefaultMaxDelay = 10 * time.Second
	// DefaultQuotaCooldown applies when a quota error carries no retry hint.
	DefaultQuotaCooldown = 60 * time.Second
)

// Backoff computes exponential retry delays.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// Delay returns Base*2^attempt capped at Max.
func (b Backoff) Delay(attempt int) time.Duration {
	base := b.Base
	if base <= 0 {
		base = time.Second
	}
	limit := b.Max
	if limit <= 0 {
		limit = DefaultMaxDelay
	}
	if attempt < 0 {
		attempt = 0
	}

	delay := base
	for i := 0; i < attempt; i++ {
		if delay >= limit/2 {
			return limit
		}
		delay *= 2
	}
	if delay > limit {
		return limit
	}
	return delay
}

// ComputeDelay returns base*2^attempt capped at DefaultMaxDelay.
func ComputeDelay(attempt int, base time.Duration) time.Duration {
	return Backoff{Base: base, Max: DefaultMaxDelay}.Delay(attempt)
}

// Cap bounds d to limit.
func Cap(d, limit time.Duration) time.Duration {
	if d > limit {
		return limit
	}
	if d < 0 {
		return 0
	}
	return d
}

var retryHintPatterns = []*regexp.Regexp{
	regexp.MustCompile(`retry_delay\s*\{\s*seconds:\s*(\d+)`),
	regexp.MustCompile(`"retryDelay"\s*:\s*"(\d+)(?:\.\d+)?s"`),
	regexp.MustCompile(`(?i)retry[- ]after[:\s]+(\d+)`),
	regexp.MustCompile(`(?i)retry in (\d+)(?:\.\d+)?\s*s`),
}

// ExtractQuotaRetryAfter parses a retry hint from provider error text.
func ExtractQuotaRetryAfter(text string) (time.Duration, bool) {
	if strings.TrimSpace(text) == "" {
		return 0, false
	}
	for _, re := range retryHintPatterns {
		match := re.FindStringSubmatch(text)
		if len(match) < 2 {
			continue
		}
		seconds, err := strconv.Atoi(match[1])
		if err != nil || seconds < 0 {
			continue
		}
		return time.Duration(seconds) * time.Second, true
	}
	return 0, false
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
