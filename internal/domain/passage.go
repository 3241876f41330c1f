package domain

// Passage is a retrievable unit of document text with its source metadata.
// Passages are produced by a Retriever and are not mutated afterwards.
type Passage struct {
	Text     string
	SourceID string
	Metadata map[string]any
}

// ScoredPassage pairs a passage with the relevance score assigned by the reranker.
// Rank is the zero-based position the passage had in the retriever's output.
type ScoredPassage struct {
	Passage
	Score float32
	Rank  int
}
