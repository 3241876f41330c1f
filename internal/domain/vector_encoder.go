package domain

import (
	"context"
)

// VectorEncoder turns query text into embeddings for vector retrieval.
type VectorEncoder interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
	Version() string
}
