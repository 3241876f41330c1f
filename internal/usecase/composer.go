package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"rag-chat/internal/domain"
)

// ComposeInput is everything the answer prompt is grounded on.
type ComposeInput struct {
	Query       string
	WeatherText string
	ContextText string
}

// ComposeResult summarizes a finished generation.
type ComposeResult struct {
	// Text is the normalized answer text that was emitted.
	Text string
	// Err is set when generation failed. Text may still hold partial output.
	Err error
	// Cancelled reports that the caller went away during generation.
	Cancelled bool
}

// Failed reports a generation failure that produced no output at all.
func (r ComposeResult) Failed() bool {
	return r.Err != nil && r.Text == ""
}

// Composer streams a grounded answer from the generation model.
type Composer struct {
	llm           domain.LLMClient
	promptBuilder PromptBuilder
	maxTokens     int
	timeout       time.Duration
	logger        *slog.Logger
	metrics       PipelineMetrics
}

// NewComposer creates a Composer.
func NewComposer(llm domain.LLMClient, promptBuilder PromptBuilder, maxTokens int, timeout time.Duration, logger *slog.Logger, metrics PipelineMetrics) *Composer {
	if promptBuilder == nil {
		promptBuilder = NewGroundedPromptBuilder()
	}
	return &Composer{
		llm:           llm,
		promptBuilder: promptBuilder,
		maxTokens:     maxTokens,
		timeout:       timeout,
		logger:        logger,
		metrics:       metricsOrNoop(metrics),
	}
}

// Compose streams the answer into events as text events. Every chunk has its
// multi-index citations split and is NFC normalized before it is sent. When
// generation fails before any text was sent, a single error event carrying
// GenerationFailedMessage is sent instead.
func (c *Composer) Compose(ctx context.Context, input ComposeInput, events chan<- ChatEvent) ComposeResult {
	start := time.Now()
	defer func() { c.metrics.RecordStage("generate", time.Since(start)) }()

	var builder strings.Builder
	err := c.stream(ctx, input, events, &builder)
	result := ComposeResult{Text: builder.String(), Err: err}

	if ctx.Err() != nil {
		result.Cancelled = true
		c.logger.WarnContext(ctx, "generation_cancelled_by_caller",
			slog.Int("emitted_chars", builder.Len()))
		return result
	}
	if err == nil {
		c.logger.InfoContext(ctx, "generation_completed",
			slog.Int("answer_chars", builder.Len()),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()))
		return result
	}

	c.metrics.RecordDegraded(domain.DegradeGeneration)
	if result.Failed() {
		c.logger.ErrorContext(ctx, "generation_failed_without_output", slog.String("error", err.Error()))
		sendChatEvent(ctx, events, ChatEvent{Kind: ChatEventError, Text: GenerationFailedMessage})
		return result
	}
	c.logger.WarnContext(ctx, "generation_failed_keeping_partial_output",
		slog.String("error", err.Error()),
		slog.Int("emitted_chars", builder.Len()))
	return result
}

func (c *Composer) stream(ctx context.Context, input ComposeInput, events chan<- ChatEvent, builder *strings.Builder) error {
	messages, err := c.promptBuilder.Build(PromptInput(input))
	if err != nil {
		return fmt.Errorf("%w: build prompt: %w", domain.ErrGeneration, err)
	}

	genCtx, cancel := withStageTimeout(ctx, c.timeout)
	defer cancel()

	chunkCh, errCh, err := c.llm.ChatStream(genCtx, messages, c.maxTokens)
	if err != nil {
		return fmt.Errorf("%w: stream setup: %w", domain.ErrGeneration, err)
	}

	var splitter domain.CitationStreamSplitter
	emit := func(text string) bool {
		text = domain.NormalizeUnicode(text)
		if text == "" {
			return true
		}
		builder.WriteString(text)
		return sendChatEvent(ctx, events, ChatEvent{Kind: ChatEventText, Text: text})
	}

	chunkStream := chunkCh
	errStream := errCh
	done := false
	var streamErr error

	for !done && (chunkStream != nil || errStream != nil) {
		select {
		case <-genCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			streamErr = fmt.Errorf("%w: %w", domain.ErrGeneration, genCtx.Err())
			done = true
		case chunk, ok := <-chunkStream:
			if !ok {
				chunkStream = nil
				continue
			}
			if chunk.Response != "" && !emit(splitter.Push(chunk.Response)) {
				return ctx.Err()
			}
			if chunk.Done {
				done = true
			}
		case e, ok := <-errStream:
			if !ok {
				errStream = nil
				continue
			}
			if e != nil {
				streamErr = fmt.Errorf("%w: %w", domain.ErrGeneration, e)
				done = true
			}
		}
	}

	// partial output stands even when the stream failed
	if !emit(splitter.Flush()) {
		return ctx.Err()
	}
	if streamErr == nil && builder.Len() == 0 {
		return fmt.Errorf("%w: %w", domain.ErrGeneration, errEmptyGeneration)
	}
	return streamErr
}

var errEmptyGeneration = errors.New("model produced no output")

func sendChatEvent(ctx context.Context, events chan<- ChatEvent, event ChatEvent) bool {
	select {
	case <-ctx.Done():
		return false
	case events <- event:
		return true
	}
}
