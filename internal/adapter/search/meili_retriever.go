package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/meilisearch/meilisearch-go"

	"rag-chat/internal/domain"
)

// Index is the part of meilisearch.IndexManager the retriever needs.
type Index interface {
	SearchRawWithContext(ctx context.Context, query string, request *meilisearch.SearchRequest) (*json.RawMessage, error)
}

type passageHit struct {
	ID           string         `json:"id"`
	SourceID     string         `json:"source_id"`
	Content      string         `json:"content"`
	Metadata     map[string]any `json:"metadata"`
	RankingScore *float64       `json:"_rankingScore"`
}

type searchResponse struct {
	Hits []passageHit `json:"hits"`
}

// MeiliRetriever retrieves passages from a Meilisearch index with keyword
// search. It needs no embedding model.
type MeiliRetriever struct {
	index  Index
	logger *slog.Logger
}

// NewMeiliClient connects to a Meilisearch host.
func NewMeiliClient(host, apiKey string) meilisearch.ServiceManager {
	return meilisearch.New(host, meilisearch.WithAPIKey(apiKey))
}

// NewMeiliRetriever creates a retriever over index.
func NewMeiliRetriever(index Index, logger *slog.Logger) *MeiliRetriever {
	return &MeiliRetriever{index: index, logger: logger}
}

// Search returns up to k passages in Meilisearch ranking order.
func (r *MeiliRetriever) Search(ctx context.Context, query string, k int) ([]domain.Passage, error) {
	if k <= 0 {
		return []domain.Passage{}, nil
	}

	start := time.Now()
	raw, err := r.index.SearchRawWithContext(ctx, query, &meilisearch.SearchRequest{
		Limit:            int64(k),
		ShowRankingScore: true,
	})
	if err != nil {
		return nil, fmt.Errorf("meilisearch search failed: %w", err)
	}
	if raw == nil {
		return nil, errors.New("meilisearch returned an empty body")
	}

	var resp searchResponse
	if err := json.Unmarshal(*raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode meilisearch response: %w", err)
	}

	passages := make([]domain.Passage, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		if hit.Content == "" {
			r.logger.WarnContext(ctx, "search_hit_without_content", slog.String("id", hit.ID))
			continue
		}
		meta := make(map[string]any, len(hit.Metadata)+2)
		for key, value := range hit.Metadata {
			meta[key] = value
		}
		meta["passage_id"] = hit.ID
		if hit.RankingScore != nil {
			meta["ranking_score"] = *hit.RankingScore
		}
		passages = append(passages, domain.Passage{
			Text:     hit.Content,
			SourceID: hit.SourceID,
			Metadata: meta,
		})
	}

	r.logger.DebugContext(ctx, "meilisearch_search_completed",
		slog.Int("hit_count", len(passages)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))
	return passages, nil
}

var _ domain.Retriever = (*MeiliRetriever)(nil)
