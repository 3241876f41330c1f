package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"rag-chat/internal/domain"
)

// ScorePassages asks the reranker to score every passage against the query and
// returns the scores in passage order.
func ScorePassages(
	ctx context.Context,
	reranker domain.Reranker,
	query string,
	passages []domain.Passage,
	logger *slog.Logger,
) ([]float32, error) {
	if len(passages) == 0 {
		return []float32{}, nil
	}

	start := time.Now()
	candidates := make([]domain.RerankCandidate, len(passages))
	for i, p := range passages {
		candidates[i] = domain.RerankCandidate{
			ID:      strconv.Itoa(i),
			Content: p.Text,
		}
	}

	results, err := reranker.Rerank(ctx, query, candidates)
	if err != nil {
		return nil, err
	}

	scores := make([]float32, len(passages))
	seen := make([]bool, len(passages))
	for _, r := range results {
		i, err := strconv.Atoi(r.ID)
		if err != nil || i < 0 || i >= len(passages) {
			return nil, fmt.Errorf("reranker returned unknown candidate id %q", r.ID)
		}
		scores[i] = r.Score
		seen[i] = true
	}
	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("reranker returned no score for candidate %d of %d", i, len(passages))
		}
	}

	logger.InfoContext(ctx, "passages_scored",
		slog.Int("candidate_count", len(candidates)),
		slog.String("model", reranker.ModelName()),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))

	return scores, nil
}

// Select orders passages by score (stable, so ties keep retrieval order),
// always keeps the first MinDocs, and keeps the following ranks up to TopN only
// when their score exceeds Threshold.
func Select(passages []domain.Passage, scores []float32, opts RerankOptions) []domain.ScoredPassage {
	scored := make([]domain.ScoredPassage, len(passages))
	for i, p := range passages {
		var score float32
		if i < len(scores) {
			score = scores[i]
		}
		scored[i] = domain.ScoredPassage{Passage: p, Score: score, Rank: i}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	topN := min(opts.TopN, len(scored))
	minDocs := max(min(opts.MinDocs, topN), 0)

	kept := make([]domain.ScoredPassage, 0, topN)
	kept = append(kept, scored[:minDocs]...)
	for _, sp := range scored[minDocs:topN] {
		if sp.Score > opts.Threshold {
			kept = append(kept, sp)
		}
	}
	return kept
}

// FallbackOrder keeps the first topN passages in retrieval order. It is used
// whenever the reranker cannot be consulted.
func FallbackOrder(passages []domain.Passage, topN int) []domain.Passage {
	if topN < 0 {
		topN = 0
	}
	if len(passages) <= topN {
		return passages
	}
	return passages[:topN]
}

// Passages strips the scores from a selection.
func Passages(scored []domain.ScoredPassage) []domain.Passage {
	out := make([]domain.Passage, len(scored))
	for i, sp := range scored {
		out[i] = sp.Passage
	}
	return out
}
