package domain

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat message sent to the model.
type Message struct {
	Role    string
	Content string
}

// LLMResponse carries the LLM output and whether the generation finished.
type LLMResponse struct {
	Text string
	Done bool
}

// LLMStreamChunk is one streamed delta of a chat generation.
type LLMStreamChunk struct {
	Response string
	Done     bool
}

// LLMClient defines the capability to send chat prompts to a language model.
//
// Chat is used for the short single-shot calls (classification, answerability,
// place extraction). ChatStream is used for answer generation: the chunk
// channel is closed when generation ends and at most one error is delivered on
// the error channel.
type LLMClient interface {
	Chat(ctx context.Context, messages []Message, maxTokens int) (*LLMResponse, error)
	ChatStream(ctx context.Context, messages []Message, maxTokens int) (<-chan LLMStreamChunk, <-chan error, error)
	Version() string
}
