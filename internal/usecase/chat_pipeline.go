package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"rag-chat/internal/domain"
	"rag-chat/internal/infra/logger"
)

var tracer = otel.Tracer("rag-chat/pipeline")

// ChatPipelineDeps are the collaborators of the chat pipeline. Weather,
// Reranker and ChatLog are optional.
type ChatPipelineDeps struct {
	LLM           domain.LLMClient
	Retriever     domain.Retriever
	Reranker      domain.Reranker
	Weather       domain.WeatherService
	ChatLog       domain.ChatLogSink
	Normalizer    *domain.TextNormalizer
	PromptBuilder PromptBuilder
	Logger        *slog.Logger
	Metrics       PipelineMetrics
}

// ChatPipeline answers chat messages by routing, gathering weather facts and
// document context, and streaming a grounded answer. It holds no per-request
// state and is safe for concurrent use.
type ChatPipeline struct {
	cfg       PipelineConfig
	llm       domain.LLMClient
	weather   domain.WeatherService
	chatLog   domain.ChatLogSink
	router    *Router
	retrieval *RetrievalPipeline
	places    *PlaceExtractor
	composer  *Composer
	logger    *slog.Logger
	metrics   PipelineMetrics
}

// NewChatPipeline validates cfg and wires the pipeline stages.
func NewChatPipeline(deps ChatPipelineDeps, cfg PipelineConfig) (*ChatPipeline, error) {
	if deps.LLM == nil {
		return nil, errors.New("chat pipeline requires an LLM client")
	}
	if deps.Retriever == nil {
		return nil, errors.New("chat pipeline requires a retriever")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	metrics := metricsOrNoop(deps.Metrics)

	return &ChatPipeline{
		cfg:       cfg,
		llm:       deps.LLM,
		weather:   deps.Weather,
		chatLog:   deps.ChatLog,
		router:    NewRouter(deps.LLM, cfg.Timeouts.Classification, log, metrics),
		retrieval: NewRetrievalPipeline(deps.Retriever, deps.Reranker, deps.LLM, deps.Normalizer, cfg, log, metrics),
		places:    NewPlaceExtractor(deps.LLM, deps.Weather, cfg, log, metrics),
		composer:  NewComposer(deps.LLM, deps.PromptBuilder, cfg.MaxTokens, cfg.Timeouts.Generation, log, metrics),
		logger:    log,
		metrics:   metrics,
	}, nil
}

// Chat validates message and starts answering it. The returned channel yields
// text events in generation order and ends with a single citations event, or
// with a single error event when the request could not be answered. The
// channel is closed when processing ends or ctx is cancelled.
func (p *ChatPipeline) Chat(ctx context.Context, message string) (<-chan ChatEvent, error) {
	query := strings.TrimSpace(message)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}

	events := make(chan ChatEvent, 8)
	go p.run(ctx, query, events)
	return events, nil
}

// gathered is what the Gathering state hands to Composing.
type gathered struct {
	weatherText string
	contextText string
	citations   domain.CitationMap
}

func (p *ChatPipeline) run(ctx context.Context, query string, events chan<- ChatEvent) {
	defer close(events)

	start := time.Now()
	recordID := uuid.New()
	if logger.RequestID(ctx) == "" {
		ctx = logger.WithRequestID(ctx, recordID.String())
	}
	ctx, span := tracer.Start(ctx, "ChatPipeline.Chat")
	defer span.End()

	outcome := OutcomeOK
	defer func() {
		if r := recover(); r != nil {
			outcome = OutcomeInternalError
			span.SetStatus(codes.Error, "panic")
			p.logger.ErrorContext(ctx, "chat_pipeline_panic",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			sendChatEvent(ctx, events, ChatEvent{Kind: ChatEventError, Text: InternalErrorMessage})
		}
		p.metrics.RecordRequest(outcome)
		p.metrics.RecordStage("total", time.Since(start))
	}()

	route := p.route(ctx, query)
	ctx = logger.WithRoute(ctx, route.Label())
	span.SetAttributes(
		attribute.Bool("ragchat.route.weather", route.UseWeather),
		attribute.Bool("ragchat.route.retrieval", route.UseRetrieval))

	g, err := p.gather(ctx, query, route)
	if err != nil {
		if ctx.Err() != nil {
			outcome = OutcomeCancelled
			return
		}
		outcome = OutcomeRetrievalError
		span.RecordError(err)
		span.SetStatus(codes.Error, "retrieval failed")
		sendChatEvent(ctx, events, ChatEvent{Kind: ChatEventError, Text: RetrievalFailedMessage})
		return
	}
	if ctx.Err() != nil {
		outcome = OutcomeCancelled
		return
	}

	composeCtx, composeSpan := tracer.Start(logger.WithStage(ctx, "compose"), "compose")
	result := p.composer.Compose(composeCtx, ComposeInput{
		Query:       query,
		WeatherText: g.weatherText,
		ContextText: g.contextText,
	}, events)
	if result.Err != nil {
		composeSpan.RecordError(result.Err)
	}
	composeSpan.End()

	switch {
	case result.Cancelled:
		outcome = OutcomeCancelled
	case result.Failed():
		outcome = OutcomeGenerationFail
	default:
		if result.Err != nil {
			outcome = OutcomeGenerationFail
		}
		citations := g.citations
		if citations == nil {
			citations = domain.CitationMap{}
		}
		sendChatEvent(ctx, events, ChatEvent{Kind: ChatEventCitations, Citations: citations})
	}

	p.persist(ctx, domain.ChatLogRecord{
		ID:                        recordID,
		Timestamp:                 time.Now().UTC(),
		Query:                     query,
		Response:                  result.Text,
		ContextUsed:               joinNonEmpty("\n\n", g.weatherText, g.contextText),
		ProcessingDurationSeconds: time.Since(start).Seconds(),
		Model:                     p.llm.Version(),
		Route:                     route,
	})
}

func (p *ChatPipeline) route(ctx context.Context, query string) domain.RoutingDecision {
	ctx, span := tracer.Start(logger.WithStage(ctx, "route"), "route")
	defer span.End()

	start := time.Now()
	decision := p.router.Route(ctx, query)
	p.metrics.RecordStage("route", time.Since(start))
	span.SetAttributes(attribute.String("ragchat.route", decision.Label()))
	return decision
}

// gather runs the sources chosen by route. Only a retrieval failure is
// returned; every other failure leaves its part empty.
func (p *ChatPipeline) gather(ctx context.Context, query string, route domain.RoutingDecision) (gathered, error) {
	ctx, span := tracer.Start(ctx, "gather")
	defer span.End()

	g := gathered{citations: domain.CitationMap{}}
	if route.UseWeather {
		g.weatherText = p.lookupWeather(logger.WithStage(ctx, "weather"), query)
	}
	if !route.UseRetrieval {
		return g, nil
	}

	res, err := p.retrieval.Run(logger.WithStage(ctx, "retrieve"), query)
	if err != nil {
		span.RecordError(err)
		return g, err
	}
	span.SetAttributes(
		attribute.Int("ragchat.passages", len(res.Passages)),
		attribute.Bool("ragchat.answerable", res.Answerable))
	if !res.Answerable {
		p.logger.InfoContext(ctx, "context_not_answerable_dropping_documents",
			slog.Int("passage_count", len(res.Passages)))
		return g, nil
	}
	g.contextText = res.Context
	g.citations = res.Citations

	if route.UseWeather && p.cfg.PlaceExtractionEnabled && g.contextText != "" {
		placesCtx := logger.WithStage(ctx, "places")
		places := p.places.Extract(placesCtx, g.contextText)
		if lines := p.places.LookupAll(placesCtx, places); len(lines) > 0 {
			g.weatherText = joinNonEmpty("\n\n", g.weatherText, strings.Join(lines, "\n"))
		}
	}
	return g, nil
}

// lookupWeather answers the query's own weather question. Failures yield no
// weather text.
func (p *ChatPipeline) lookupWeather(ctx context.Context, query string) string {
	if p.weather == nil {
		return ""
	}
	ctx, cancel := withStageTimeout(ctx, p.cfg.Timeouts.Weather)
	defer cancel()

	start := time.Now()
	answer, err := p.weather.GetWeatherAnswer(ctx, query)
	p.metrics.RecordStage("weather", time.Since(start))
	if err != nil {
		p.logger.WarnContext(ctx, "weather_lookup_degraded", slog.String("error", err.Error()))
		p.metrics.RecordDegraded(domain.DegradeWeather)
		return ""
	}
	p.logger.InfoContext(ctx, "weather_lookup_completed",
		slog.String("city", answer.Fact.City),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))
	return answer.Sentence
}

// persist writes the chat log record. It outlives caller cancellation and its
// failures are only logged.
func (p *ChatPipeline) persist(ctx context.Context, record domain.ChatLogRecord) {
	if p.chatLog == nil {
		return
	}
	ctx, cancel := withStageTimeout(logger.WithStage(context.WithoutCancel(ctx), "log"), p.cfg.Timeouts.LogPersist)
	defer cancel()

	if err := p.chatLog.Append(ctx, record); err != nil {
		p.logger.WarnContext(ctx, "chat_log_persist_failed",
			slog.String("record_id", record.ID.String()),
			slog.String("error", err.Error()))
		p.metrics.RecordDegraded(domain.DegradeLogPersist)
	}
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, sep)
}

var _ ChatUsecase = (*ChatPipeline)(nil)
