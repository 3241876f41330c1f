package domain

import "context"

// RerankCandidate represents a passage candidate for cross-encoder reranking.
type RerankCandidate struct {
	// ID is used to map results back to the passage it was built from.
	ID string
	// Content is the text content to be scored against the query.
	Content string
}

// RerankResult represents a reranked candidate with its cross-encoder relevance score.
type RerankResult struct {
	// ID matches the candidate ID for result mapping.
	ID string
	// Score is the cross-encoder relevance score (typically 0.0 to 1.0).
	Score float32
}

// Reranker scores (query, passage) pairs with a second model.
// Callers treat any error as a signal to keep the retriever's order.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []RerankCandidate) ([]RerankResult, error)

	// ModelName returns the model identifier for logging/debugging.
	ModelName() string
}
