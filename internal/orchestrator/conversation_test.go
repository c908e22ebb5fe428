package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/signrelay/signrelay/internal/events"
	"github.com/signrelay/signrelay/internal/sentence"
)

type stubResponder struct {
	mu     sync.Mutex
	reply  string
	inputs []string
}

func (s *stubResponder) Respond(_ context.Context, input string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs = append(s.inputs, input)
	return s.reply
}

type stubDisplay struct {
	texts []string
	err   error
}

func (s *stubDisplay) Display(_ context.Context, text string) error {
	s.texts = append(s.texts, text)
	return s.err
}

func TestRespondUsesAndClearsSentence(t *testing.T) {
	hub := events.New(8)
	sub := hub.Subscribe()
	store := sentence.New(sentence.Config{}, nil, nil)
	store.ReceivePush([]string{"hello", "friend"})

	responder := &stubResponder{reply: "Hi there friend"}
	display := &stubDisplay{}
	conv := New(store, responder, display, hub)

	result, err := conv.Respond(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, "hello friend", result.Input)
	require.Equal(t, "Hi there friend", result.Response)
	require.True(t, result.Cleared)

	require.Equal(t, []string{"Hi there friend"}, display.texts)
	require.Empty(t, store.Current().Tokens)

	evt := <-sub.C
	require.Equal(t, events.TypeConversationUpdate, evt.Type)
	require.Equal(t, events.ConversationData{Input: "hello friend", Response: "Hi there friend"}, evt.Data)
}

func TestRespondOverrideKeepsSentence(t *testing.T) {
	store := sentence.New(sentence.Config{}, nil, nil)
	store.ReceivePush([]string{"keep"})
	conv := New(store, &stubResponder{reply: "Sure"}, nil, events.New(4))

	result, err := conv.Respond(context.Background(), "how are you")
	require.NoError(t, err)
	require.Equal(t, "how are you", result.Input)
	require.False(t, result.Cleared)
	require.Equal(t, []string{"keep"}, store.Current().Tokens)
}

func TestRespondWithoutSentence(t *testing.T) {
	responder := &stubResponder{reply: "unused"}
	conv := New(sentence.New(sentence.Config{}, nil, nil), responder, nil, events.New(4))

	_, err := conv.Respond(context.Background(), "  ")
	require.ErrorIs(t, err, ErrNoSentence)
	require.Empty(t, responder.inputs)
}

func TestRespondToleratesDisplayFailure(t *testing.T) {
	store := sentence.New(sentence.Config{}, nil, nil)
	store.ReceivePush([]string{"hello"})
	conv := New(store, &stubResponder{reply: "Hello"}, &stubDisplay{err: errors.New("ui down")}, events.New(4))

	result, err := conv.Respond(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, "Hello", result.Response)
	require.Empty(t, store.Current().Tokens)
}

func TestClearSentenceBroadcastsSystemMessage(t *testing.T) {
	hub := events.New(8)
	sub := hub.Subscribe()
	store := sentence.New(sentence.Config{}, nil, nil)
	store.ReceivePush([]string{"x"})

	state := New(store, &stubResponder{}, nil, hub).ClearSentence(context.Background())
	require.Empty(t, state.Tokens)

	evt := <-sub.C
	require.Equal(t, events.TypeSystemMessage, evt.Type)
}
