package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	apperrors "github.com/signrelay/signrelay/internal/errors"
	"github.com/signrelay/signrelay/internal/events"
	"github.com/signrelay/signrelay/internal/orchestrator"
)

// Inbound client event types.
const (
	ClientCheckStatus      = "check_status"
	ClientClearSentence    = "clear_sentence"
	ClientSendConversation = "send_conversation"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxInbound = 4096
)

// EventsConfig tunes the /events channel.
type EventsConfig struct {
	// Rate is the sustained inbound event rate per connection.
	Rate rate.Limit
	// Burst is the inbound token bucket size.
	Burst int
}

func (c EventsConfig) withDefaults() EventsConfig {
	if c.Rate <= 0 {
		c.Rate = rate.Limit(2)
	}
	if c.Burst <= 0 {
		c.Burst = 5
	}
	return c
}

// ClientEvent is a message sent by a subscriber.
type ClientEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Events upgrades to a websocket, sends the current status and sentence, then
// streams broadcasts and handles inbound client events.
func (f *Facade) Events(w http.ResponseWriter, r *http.Request) {
	if f.Hub.Closed() {
		apperrors.RespondWithEnvelope(w, r, apperrors.NewServiceUnavailableError("event stream is shutting down"))
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger().Warn("Websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close() // nolint:errcheck // best-effort cleanup

	sub := f.Hub.Subscribe()
	defer f.Hub.Unsubscribe(sub.ID)
	log := f.logger()
	log.Info("Subscriber connected", zap.String("subscriber", sub.ID))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	state := f.Sentences.Current()
	snapshot := []events.Event{
		{Type: events.TypeStatusUpdate, Timestamp: time.Now().UTC(), Data: f.Status.Snapshot()},
		{Type: events.TypeSentenceUpdate, Timestamp: time.Now().UTC(), Data: events.SentenceData{
			Tokens:    state.Tokens,
			Source:    string(state.Source),
			UpdatedAt: state.UpdatedAt,
		}},
	}

	direct := make(chan events.Event, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.writeLoop(ctx, conn, sub, snapshot, direct)
		cancel()
		// Unblocks the reader when the writer stops first.
		_ = conn.Close()
	}()

	f.readLoop(ctx, conn, direct)
	cancel()
	<-done
	log.Info("Subscriber disconnected", zap.String("subscriber", sub.ID))
}

// writeLoop sends snapshot before any broadcast so a newer update queued on
// the subscription is never overwritten by the older snapshot.
func (f *Facade) writeLoop(ctx context.Context, conn *websocket.Conn, sub *events.Subscription, snapshot []events.Event, direct <-chan events.Event) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	write := func(evt events.Event) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(evt); err != nil {
			f.logger().Debug("Websocket write failed", zap.Error(err))
			return false
		}
		return true
	}

	for _, evt := range snapshot {
		if !write(evt) {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case evt := <-direct:
			if !write(evt) {
				return
			}
		case evt, ok := <-sub.C:
			if !ok {
				// Dropped by the hub for falling behind.
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "subscriber too slow"), time.Now().Add(writeWait))
				return
			}
			if !write(evt) {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (f *Facade) readLoop(ctx context.Context, conn *websocket.Conn, direct chan<- events.Event) {
	cfg := f.Inbound.withDefaults()
	limiter := rate.NewLimiter(cfg.Rate, cfg.Burst)

	conn.SetReadLimit(maxInbound)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	reply := func(message string) {
		select {
		case direct <- events.Event{Type: events.TypeSystemMessage, Timestamp: time.Now().UTC(), Data: events.MessageData{Message: message}}:
		case <-ctx.Done():
		}
	}

	for {
		var evt ClientEvent
		if err := conn.ReadJSON(&evt); err != nil {
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) {
				reply("Malformed event")
				continue
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		if !limiter.Allow() {
			reply("Too many requests, slow down")
			continue
		}
		f.handleClientEvent(ctx, evt, reply)
	}
}

func (f *Facade) handleClientEvent(ctx context.Context, evt ClientEvent, reply func(string)) {
	switch evt.Type {
	case ClientCheckStatus:
		// The monitor publishes the refreshed snapshot to every subscriber.
		f.Status.Refresh(ctx)
	case ClientClearSentence:
		f.Conversation.ClearSentence(ctx)
	case ClientSendConversation:
		var req RespondRequest
		if len(evt.Data) > 0 {
			_ = json.Unmarshal(evt.Data, &req)
		}
		if _, err := f.Conversation.Respond(ctx, req.Input); err != nil {
			if errors.Is(err, orchestrator.ErrNoSentence) {
				reply("No sentence to send")
				return
			}
			f.logger().Warn("Conversation failed", zap.Error(err))
			reply("Conversation failed")
		}
	default:
		reply("Unknown event type: " + evt.Type)
	}
}
