package usecase

import (
	"context"
	"fmt"
	"time"

	"rag-chat/internal/usecase/retrieval"
)

// StageTimeouts bounds each external call made while answering a request.
// A zero value leaves the stage bounded only by the caller's context.
type StageTimeouts struct {
	Classification  time.Duration
	Retrieval       time.Duration
	Rerank          time.Duration
	Answerability   time.Duration
	Weather         time.Duration
	PlaceExtraction time.Duration
	Generation      time.Duration
	LogPersist      time.Duration
}

// PipelineConfig holds the stage toggles and sizes of the chat pipeline.
type PipelineConfig struct {
	// RetrievalK is the number of passages fetched when reranking is off.
	RetrievalK int
	// RerankEnabled turns on the reranking stage. It needs a reranker.
	RerankEnabled bool
	// RerankCandidates is the number of passages fetched when reranking is on.
	RerankCandidates int
	TopN             int
	MinDocs          int
	// RelevanceThreshold is the score a passage past MinDocs must exceed.
	RelevanceThreshold float32

	AnswerabilityEnabled   bool
	PlaceExtractionEnabled bool
	MaxPlaces              int
	// PlaceContextChars caps how much context is sent to place extraction.
	PlaceContextChars      int
	PlaceLookupConcurrency int

	// WeatherLocale selects the rendering of per-place weather lines.
	WeatherLocale string
	MaxTokens     int
	Timeouts      StageTimeouts
}

// DefaultPipelineConfig returns the defaults used when nothing is configured.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		RetrievalK:             5,
		RerankEnabled:          false,
		RerankCandidates:       20,
		TopN:                   10,
		MinDocs:                5,
		RelevanceThreshold:     0.1,
		AnswerabilityEnabled:   true,
		PlaceExtractionEnabled: true,
		MaxPlaces:              5,
		PlaceContextChars:      6000,
		PlaceLookupConcurrency: 3,
		WeatherLocale:          "en",
		MaxTokens:              1024,
		Timeouts: StageTimeouts{
			Classification:  15 * time.Second,
			Retrieval:       20 * time.Second,
			Rerank:          15 * time.Second,
			Answerability:   15 * time.Second,
			Weather:         10 * time.Second,
			PlaceExtraction: 15 * time.Second,
			Generation:      120 * time.Second,
			LogPersist:      5 * time.Second,
		},
	}
}

// Validate checks if the pipeline configuration is valid.
func (c PipelineConfig) Validate() error {
	if c.RetrievalK <= 0 {
		return fmt.Errorf("retrieval k must be positive, got %d", c.RetrievalK)
	}
	if c.RerankEnabled {
		if c.RerankCandidates <= 0 {
			return fmt.Errorf("rerank candidates must be positive, got %d", c.RerankCandidates)
		}
		if err := c.rerankOptions().Validate(); err != nil {
			return err
		}
	}
	if c.PlaceExtractionEnabled {
		if c.MaxPlaces <= 0 {
			return fmt.Errorf("max places must be positive, got %d", c.MaxPlaces)
		}
		if c.PlaceLookupConcurrency <= 0 {
			return fmt.Errorf("place lookup concurrency must be positive, got %d", c.PlaceLookupConcurrency)
		}
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max tokens must not be negative, got %d", c.MaxTokens)
	}
	return nil
}

func (c PipelineConfig) rerankOptions() retrieval.RerankOptions {
	return retrieval.RerankOptions{
		TopN:      c.TopN,
		MinDocs:   c.MinDocs,
		Threshold: c.RelevanceThreshold,
	}
}

// candidateCount is the number of passages requested from the retriever.
func (c PipelineConfig) candidateCount() int {
	if c.RerankEnabled {
		return c.RerankCandidates
	}
	return c.RetrievalK
}

func withStageTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
