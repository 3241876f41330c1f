package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"rag-chat/internal/domain"
)

const searchPassagesSQL = `
		SELECT id, source_id, content, metadata, 1 - (embedding <=> $1) AS score
		FROM rag_passages
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $2
	`

type passageRepository struct {
	db      DBTX
	encoder domain.VectorEncoder
}

// NewPassageRepository creates a retriever over the rag_passages table. The
// query is embedded with encoder and matched by cosine distance.
func NewPassageRepository(db DBTX, encoder domain.VectorEncoder) domain.Retriever {
	return &passageRepository{db: db, encoder: encoder}
}

func (r *passageRepository) Search(ctx context.Context, query string, k int) ([]domain.Passage, error) {
	if k <= 0 {
		return []domain.Passage{}, nil
	}

	vectors, err := r.encoder.Encode(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, errors.New("encoder returned no vector")
	}

	rows, err := r.db.Query(ctx, searchPassagesSQL, pgvector.NewVector(vectors[0]), k)
	if err != nil {
		return nil, fmt.Errorf("failed to search passages: %w", err)
	}
	defer rows.Close()

	passages := make([]domain.Passage, 0, k)
	for rows.Next() {
		var (
			id, sourceID, content string
			metadata              []byte
			score                 float64
		)
		if err := rows.Scan(&id, &sourceID, &content, &metadata, &score); err != nil {
			return nil, fmt.Errorf("failed to scan passage: %w", err)
		}
		meta := map[string]any{}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &meta); err != nil {
				return nil, fmt.Errorf("failed to decode metadata of passage %s: %w", id, err)
			}
		}
		meta["passage_id"] = id
		meta["vector_score"] = score
		passages = append(passages, domain.Passage{
			Text:     content,
			SourceID: sourceID,
			Metadata: meta,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate passages: %w", err)
	}
	return passages, nil
}
