package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"rag-chat/internal/domain"
)

const routerMaxTokens = 8

var errUnrecognizedLabel = errors.New("unrecognized routing label")

// Router decides which information sources a query needs.
type Router struct {
	llm     domain.LLMClient
	timeout time.Duration
	logger  *slog.Logger
	metrics PipelineMetrics
}

// NewRouter creates a router backed by the given classifier. A nil llm makes
// every query take the keyword route.
func NewRouter(llm domain.LLMClient, timeout time.Duration, logger *slog.Logger, metrics PipelineMetrics) *Router {
	return &Router{
		llm:     llm,
		timeout: timeout,
		logger:  logger,
		metrics: metricsOrNoop(metrics),
	}
}

// Route classifies the query, falling back to keyword routing when the
// classifier fails or replies with an unknown label.
func (r *Router) Route(ctx context.Context, query string) domain.RoutingDecision {
	decision, err := r.classify(ctx, query)
	if err != nil {
		fallback := domain.KeywordRoute(query)
		r.logger.WarnContext(ctx, "routing_classification_degraded",
			slog.String("error", err.Error()),
			slog.String("fallback_route", fallback.Label()))
		r.metrics.RecordDegraded(domain.DegradeClassification)
		return fallback
	}
	return decision
}

func (r *Router) classify(ctx context.Context, query string) (domain.RoutingDecision, error) {
	if r.llm == nil {
		return domain.RoutingDecision{}, fmt.Errorf("no classifier configured")
	}

	ctx, cancel := withStageTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.llm.Chat(ctx, routerMessages(query), routerMaxTokens)
	if err != nil {
		return domain.RoutingDecision{}, fmt.Errorf("classification call failed: %w", err)
	}
	decision, ok := domain.ParseRouteLabel(resp.Text)
	if !ok {
		return domain.RoutingDecision{}, fmt.Errorf("%w: %q", errUnrecognizedLabel, truncateString(resp.Text, 40))
	}

	r.logger.InfoContext(ctx, "routing_classified", slog.String("route", decision.Label()))
	return decision, nil
}

// truncateString shortens s to at most n runes for logging.
func truncateString(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
