package core

import (
	"strings"
	"time"
)

// Source identifies which path produced a sentence transition.
type Source string

const (
	SourcePush     Source = "push"
	SourcePoll     Source = "poll"
	SourcePeriodic Source = "periodic"
	SourceClear    Source = "clear"
)

// SentenceState is the shared conversational sentence.
//
// Tokens are replaced wholesale; callers receive copies.
type SentenceState struct {
	Tokens    []string  `json:"tokens"`
	UpdatedAt time.Time `json:"updatedAt"`
	Source    Source    `json:"source"`
	Version   uint64    `json:"version"`
}

// Text joins the tokens into the phrase sent to the generative backend.
func (s SentenceState) Text() string {
	return strings.Join(s.Tokens, " ")
}

// Empty reports whether the sentence has no tokens.
func (s SentenceState) Empty() bool {
	return len(s.Tokens) == 0
}

// Clone returns a deep copy.
func (s SentenceState) Clone() SentenceState {
	s.Tokens = CopyTokens(s.Tokens)
	return s
}

// CopyTokens returns a non-nil copy of tokens.
func CopyTokens(tokens []string) []string {
	out := make([]string, len(tokens))
	copy(out, tokens)
	return out
}

// EqualTokens compares two token sequences, order-sensitive.
func EqualTokens(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ConnectionState tracks the generative backend binding.
type ConnectionState struct {
	SelectedModel string    `json:"selected_model"`
	LastSuccessAt time.Time `json:"last_success_at"`
	QuotaExceeded bool      `json:"quota_exceeded"`
	RetryAfter    time.Time `json:"retry_after"`
	Running       bool      `json:"running"`
}

// InCooldown reports whether requests must be shed locally at now.
func (c ConnectionState) InCooldown(now time.Time) bool {
	return c.QuotaExceeded && now.Before(c.RetryAfter)
}

// ServiceEndpoint is the monitor's view of one dependent service.
type ServiceEndpoint struct {
	Name          string    `json:"name"`
	Candidates    []string  `json:"candidates"`
	Selected      string    `json:"selected,omitempty"`
	LastGood      string    `json:"last_good,omitempty"`
	LastCheckedAt time.Time `json:"last_checked_at"`
	Reachable     bool      `json:"reachable"`
	LastError     string    `json:"last_error,omitempty"`
}

// StatusSnapshot maps service name to reachability.
type StatusSnapshot map[string]bool

// Clone returns a copy of the snapshot.
func (s StatusSnapshot) Clone() StatusSnapshot {
	out := make(StatusSnapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
