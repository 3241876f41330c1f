package domain

import "context"

// Retriever returns candidate passages for a query from a pre-built index.
// An empty result is not an error; it means no relevant documents exist.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]Passage, error)
}
