package usecase

import (
	"fmt"
	"strings"

	"rag-chat/internal/domain"
)

// PromptInput contains the pieces that feed into the answer prompt.
type PromptInput struct {
	Query string
	// WeatherText holds rendered weather facts, possibly empty.
	WeatherText string
	// ContextText holds the numbered grounding passages, possibly empty.
	ContextText string
}

// PromptBuilder builds the chat messages sent to the LLM for answer generation.
type PromptBuilder interface {
	Build(input PromptInput) ([]domain.Message, error)
}

// GroundedPromptBuilder builds a single grounding prompt from the question,
// optional weather facts and optional numbered document context.
type GroundedPromptBuilder struct {
	additionalInstructions []string
}

// NewGroundedPromptBuilder creates a prompt builder with optional extra instructions appended.
func NewGroundedPromptBuilder(additionalInstructions ...string) PromptBuilder {
	return &GroundedPromptBuilder{
		additionalInstructions: additionalInstructions,
	}
}

var answerInstructions = []string{
	"You are a helpful assistant.",
	"If weather facts are provided, include them.",
	"If document context is provided, use it when relevant and summarize the places and relevant details briefly.",
	"When you use a passage from the document context, cite it with its number in square brackets, one number per bracket, e.g. [2][4].",
	"If the context does not help, still answer concisely based on your general knowledge.",
	"Keep the final answer concise and useful.",
}

// Build renders the Messages for Chat API.
func (b *GroundedPromptBuilder) Build(input PromptInput) ([]domain.Message, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, fmt.Errorf("prompt query is required")
	}

	system := strings.Join(append(append([]string{}, answerInstructions...), b.additionalInstructions...), " ")

	var user strings.Builder
	user.WriteString("Question: ")
	user.WriteString(query)
	user.WriteString("\n\nWeather facts (optional):\n")
	user.WriteString(strings.TrimSpace(input.WeatherText))
	user.WriteString("\n\nDocument context (optional):\n")
	user.WriteString(strings.TrimSpace(input.ContextText))

	return []domain.Message{
		{Role: domain.RoleSystem, Content: system},
		{Role: domain.RoleUser, Content: user.String()},
	}, nil
}

func routerMessages(query string) []domain.Message {
	return []domain.Message{
		{Role: domain.RoleSystem, Content: "You are a router. Reply with exactly one token: weather | rag | both. " +
			"Choose 'weather' for questions about current conditions only, 'rag' for questions about the documents, " +
			"and 'both' if the user asks about places from the documents and also current conditions."},
		{Role: domain.RoleUser, Content: "Question: " + query},
	}
}

func answerabilityMessages(query, contextText string) []domain.Message {
	return []domain.Message{
		{Role: domain.RoleSystem, Content: "You check whether a document context contains information that answers a question. " +
			"Reply with exactly one word: yes or no."},
		{Role: domain.RoleUser, Content: "Question: " + query + "\n\nContext:\n" + contextText},
	}
}

func placeExtractionMessages(contextText string, maxPlaces int) []domain.Message {
	return []domain.Message{
		{Role: domain.RoleSystem, Content: fmt.Sprintf("Extract a JSON array of up to %d city names mentioned in the context. "+
			"Reply with only the JSON array, e.g., [\"Rome\", \"Florence\"]. If none, reply [].", maxPlaces)},
		{Role: domain.RoleUser, Content: "Context:\n" + contextText},
	}
}
