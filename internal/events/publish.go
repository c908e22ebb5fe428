package events

import "github.com/signrelay/signrelay/internal/core"

// SentencePublisher broadcasts each applied sentence state as sentence_update.
func SentencePublisher(h *Hub) func(core.SentenceState) {
	return func(state core.SentenceState) {
		h.Broadcast(TypeSentenceUpdate, SentenceData{
			Tokens:    core.CopyTokens(state.Tokens),
			Source:    string(state.Source),
			UpdatedAt: state.UpdatedAt,
		})
	}
}

// StatusPublisher broadcasts each monitor snapshot as status_update.
func StatusPublisher(h *Hub) func(core.StatusSnapshot) {
	return func(snapshot core.StatusSnapshot) {
		h.Broadcast(TypeStatusUpdate, snapshot.Clone())
	}
}
