package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"rag-chat/internal/domain"
	"rag-chat/internal/usecase/retrieval"
)

const answerabilityMaxTokens = 4

var errUnparseableVerdict = errors.New("unparseable answerability verdict")

// RetrievalResult is the output of the retrieval stage.
type RetrievalResult struct {
	// Passages are the passages placed into context, in context order.
	Passages  []domain.Passage
	Context   string
	Citations domain.CitationMap
	// Answerable reports whether the context can answer the query. It is true
	// when the check is disabled, failed, or there is no context at all.
	Answerable bool
}

// RetrievalPipeline runs retrieval, optional reranking, context assembly and
// the optional answerability check.
type RetrievalPipeline struct {
	retriever domain.Retriever
	reranker  domain.Reranker
	verifier  domain.LLMClient
	clean     func(string) string
	cfg       PipelineConfig
	logger    *slog.Logger
	metrics   PipelineMetrics
}

// NewRetrievalPipeline wires the retrieval stage. reranker and verifier may be
// nil, which disables the matching stage.
func NewRetrievalPipeline(
	retriever domain.Retriever,
	reranker domain.Reranker,
	verifier domain.LLMClient,
	normalizer *domain.TextNormalizer,
	cfg PipelineConfig,
	logger *slog.Logger,
	metrics PipelineMetrics,
) *RetrievalPipeline {
	clean := domain.CleanSourceText
	if normalizer != nil {
		clean = normalizer.Clean
	}
	if reranker == nil {
		cfg.RerankEnabled = false
	}
	if verifier == nil {
		cfg.AnswerabilityEnabled = false
	}
	return &RetrievalPipeline{
		retriever: retriever,
		reranker:  reranker,
		verifier:  verifier,
		clean:     clean,
		cfg:       cfg,
		logger:    logger,
		metrics:   metricsOrNoop(metrics),
	}
}

// Run retrieves, reranks and assembles the grounding context for query.
// Only retrieval failures are returned; every later stage degrades locally.
func (p *RetrievalPipeline) Run(ctx context.Context, query string) (*RetrievalResult, error) {
	passages, err := p.Retrieve(ctx, query, p.cfg.candidateCount())
	if err != nil {
		return nil, err
	}
	if len(passages) == 0 {
		p.logger.WarnContext(ctx, "retrieval_empty")
		return &RetrievalResult{Citations: domain.CitationMap{}, Answerable: true}, nil
	}

	if p.cfg.RerankEnabled {
		passages = p.Rerank(ctx, query, passages)
	}

	contextText, citations := retrieval.PrepareContext(passages, p.clean)
	result := &RetrievalResult{
		Passages:   passages,
		Context:    contextText,
		Citations:  citations,
		Answerable: true,
	}
	if p.cfg.AnswerabilityEnabled {
		result.Answerable = p.CheckAnswerable(ctx, query, contextText)
	}
	return result, nil
}

// Retrieve fetches k candidate passages. Failures wrap domain.ErrRetrieval.
func (p *RetrievalPipeline) Retrieve(ctx context.Context, query string, k int) ([]domain.Passage, error) {
	ctx, cancel := withStageTimeout(ctx, p.cfg.Timeouts.Retrieval)
	defer cancel()

	start := time.Now()
	passages, err := p.retriever.Search(ctx, query, k)
	p.metrics.RecordStage("retrieve", time.Since(start))
	if err != nil {
		p.logger.ErrorContext(ctx, "retrieval_failed",
			slog.String("error", err.Error()),
			slog.Int("k", k))
		return nil, fmt.Errorf("%w: %w", domain.ErrRetrieval, err)
	}

	p.logger.InfoContext(ctx, "retrieval_completed",
		slog.Int("k", k),
		slog.Int("passage_count", len(passages)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))
	return passages, nil
}

// Rerank reorders passages by reranker score. When scoring fails the first
// TopN passages are kept in retrieval order.
func (p *RetrievalPipeline) Rerank(ctx context.Context, query string, passages []domain.Passage) []domain.Passage {
	ctx, cancel := withStageTimeout(ctx, p.cfg.Timeouts.Rerank)
	defer cancel()

	start := time.Now()
	scores, err := retrieval.ScorePassages(ctx, p.reranker, query, passages, p.logger)
	p.metrics.RecordStage("rerank", time.Since(start))
	if err != nil {
		p.logger.WarnContext(ctx, "reranking_degraded_using_retrieval_order",
			slog.String("error", err.Error()),
			slog.Int("candidate_count", len(passages)))
		p.metrics.RecordDegraded(domain.DegradeRerank)
		return retrieval.FallbackOrder(passages, p.cfg.TopN)
	}

	selected := retrieval.Select(passages, scores, p.cfg.rerankOptions())
	p.logger.InfoContext(ctx, "reranking_completed",
		slog.Int("candidate_count", len(passages)),
		slog.Int("kept_count", len(selected)))
	return retrieval.Passages(selected)
}

// CheckAnswerable asks whether contextText can answer query. Any failure is
// treated as answerable.
func (p *RetrievalPipeline) CheckAnswerable(ctx context.Context, query, contextText string) bool {
	answerable, err := p.askAnswerable(ctx, query, contextText)
	if err != nil {
		p.logger.WarnContext(ctx, "answerability_degraded",
			slog.String("error", err.Error()))
		p.metrics.RecordDegraded(domain.DegradeAnswerability)
		return true
	}
	p.logger.InfoContext(ctx, "answerability_checked", slog.Bool("answerable", answerable))
	return answerable
}

func (p *RetrievalPipeline) askAnswerable(ctx context.Context, query, contextText string) (bool, error) {
	ctx, cancel := withStageTimeout(ctx, p.cfg.Timeouts.Answerability)
	defer cancel()

	resp, err := p.verifier.Chat(ctx, answerabilityMessages(query, contextText), answerabilityMaxTokens)
	if err != nil {
		return false, fmt.Errorf("answerability call failed: %w", err)
	}
	verdict := strings.ToLower(strings.TrimSpace(resp.Text))
	verdict = strings.TrimLeft(verdict, "\"'*` ")
	switch {
	case strings.HasPrefix(verdict, "yes"):
		return true, nil
	case strings.HasPrefix(verdict, "no"):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q", errUnparseableVerdict, truncateString(resp.Text, 40))
	}
}
