// Package orchestrator runs the send-conversation round-trip across the
// sentence synchronizer, the generative responder and the UI service.
package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/signrelay/signrelay/internal/core"
	"github.com/signrelay/signrelay/internal/events"
	"github.com/signrelay/signrelay/internal/metrics"
	"github.com/signrelay/signrelay/internal/observability"
)

// ErrNoSentence is returned when there is nothing to send.
var ErrNoSentence = errors.New("no sentence to send")

// DefaultDisplayTimeout bounds the best-effort UI call.
const DefaultDisplayTimeout = 5 * time.Second

// Responder produces a reply for an utterance. Implementations never fail;
// they return a fallback reply instead.
type Responder interface {
	Respond(ctx context.Context, input string) string
}

// Displayer forwards a reply to the UI service.
type Displayer interface {
	Display(ctx context.Context, text string) error
}

// SentenceStore is the part of the synchronizer the conversation needs.
type SentenceStore interface {
	Current() core.SentenceState
	Clear(ctx context.Context) core.SentenceState
}

// Broadcaster publishes events to subscribers.
type Broadcaster interface {
	Broadcast(eventType string, data any) events.Event
}

// Result is one completed round-trip.
type Result struct {
	Input    string `json:"input"`
	Response string `json:"response"`
	Cleared  bool   `json:"cleared"`
}

// Conversation serializes send-conversation round-trips.
type Conversation struct {
	sentences SentenceStore
	responder Responder
	display   Displayer
	hub       Broadcaster
	log       *logging.Logger

	displayTimeout time.Duration

	mu sync.Mutex
}

// New returns a conversation. display may be nil.
func New(sentences SentenceStore, responder Responder, display Displayer, hub Broadcaster) *Conversation {
	return &Conversation{
		sentences:      sentences,
		responder:      responder,
		display:        display,
		hub:            hub,
		log:            observability.Logger(),
		displayTimeout: DefaultDisplayTimeout,
	}
}

// Respond sends override, or the current sentence when override is blank,
// to the responder. The reply goes to the UI service and subscribers. The
// sentence is cleared only when it was the input.
func (c *Conversation) Respond(ctx context.Context, override string) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	input := strings.TrimSpace(override)
	fromSentence := input == ""
	if fromSentence {
		input = strings.TrimSpace(c.sentences.Current().Text())
	}
	if input == "" {
		metrics.RecordConversation(false)
		return Result{}, ErrNoSentence
	}

	reply := c.responder.Respond(ctx, input)
	c.log.Info("Conversation reply",
		zap.String("input", input),
		zap.String("response", reply),
		zap.Bool("from_sentence", fromSentence))

	if c.display != nil {
		dctx, cancel := context.WithTimeout(ctx, c.displayTimeout)
		if err := c.display.Display(dctx, reply); err != nil {
			c.log.Warn("Display request failed", zap.Error(err))
		}
		cancel()
	}

	c.hub.Broadcast(events.TypeConversationUpdate, events.ConversationData{Input: input, Response: reply})

	result := Result{Input: input, Response: reply}
	if fromSentence {
		c.sentences.Clear(ctx)
		result.Cleared = true
	}
	metrics.RecordConversation(true)
	return result, nil
}

// ClearSentence clears the sentence and tells subscribers.
func (c *Conversation) ClearSentence(ctx context.Context) core.SentenceState {
	state := c.sentences.Clear(ctx)
	c.hub.Broadcast(events.TypeSystemMessage, events.MessageData{Message: "Sentence cleared"})
	return state
}
