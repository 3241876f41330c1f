package usecase

import (
	"context"

	"rag-chat/internal/domain"
)

// User-facing messages emitted in place of an answer.
const (
	RetrievalFailedMessage  = "Failed to retrieve relevant documents. Please try again later."
	GenerationFailedMessage = "I'm sorry, I couldn't generate an answer right now. Please try again later."
	InternalErrorMessage    = "An unexpected internal error occurred. Please try again later."
)

type ChatEventKind string

const (
	ChatEventText      ChatEventKind = "text"
	ChatEventCitations ChatEventKind = "citations"
	ChatEventError     ChatEventKind = "error"
)

// ChatEvent is one element of a chat answer stream. Text and error events
// carry Text; the single terminal citations event carries Citations.
type ChatEvent struct {
	Kind      ChatEventKind
	Text      string
	Citations domain.CitationMap
}

// FlatText renders the event for transports that carry a single text stream.
// The citations event becomes the CITATION_MAP marker chunk.
func (e ChatEvent) FlatText() (string, error) {
	if e.Kind == ChatEventCitations {
		return domain.RenderCitationMarker(e.Citations)
	}
	return e.Text, nil
}

// ChatUsecase answers a chat message as a stream of events.
type ChatUsecase interface {
	// Chat validates the message and starts the answer stream. Validation
	// errors are returned before any event is produced.
	Chat(ctx context.Context, message string) (<-chan ChatEvent, error)
}
