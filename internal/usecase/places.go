package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"rag-chat/internal/domain"
)

const placeExtractionMaxTokens = 128

// PlaceExtractor finds place names in retrieved context and looks up their
// current weather.
type PlaceExtractor struct {
	llm     domain.LLMClient
	weather domain.WeatherService
	cfg     PipelineConfig
	logger  *slog.Logger
	metrics PipelineMetrics
}

// NewPlaceExtractor creates a PlaceExtractor.
func NewPlaceExtractor(llm domain.LLMClient, weather domain.WeatherService, cfg PipelineConfig, logger *slog.Logger, metrics PipelineMetrics) *PlaceExtractor {
	return &PlaceExtractor{
		llm:     llm,
		weather: weather,
		cfg:     cfg,
		logger:  logger,
		metrics: metricsOrNoop(metrics),
	}
}

// Extract returns up to MaxPlaces distinct place names mentioned in
// contextText. Any failure yields an empty list.
func (e *PlaceExtractor) Extract(ctx context.Context, contextText string) []string {
	if e.llm == nil || strings.TrimSpace(contextText) == "" {
		return nil
	}
	places, err := e.extractPlaces(ctx, contextText)
	if err != nil {
		e.logger.WarnContext(ctx, "place_extraction_degraded", slog.String("error", err.Error()))
		e.metrics.RecordDegraded(domain.DegradePlaceExtraction)
		return nil
	}
	e.logger.InfoContext(ctx, "places_extracted", slog.Int("place_count", len(places)))
	return places
}

func (e *PlaceExtractor) extractPlaces(ctx context.Context, contextText string) ([]string, error) {
	ctx, cancel := withStageTimeout(ctx, e.cfg.Timeouts.PlaceExtraction)
	defer cancel()

	excerpt := truncateRunes(contextText, e.cfg.PlaceContextChars)
	resp, err := e.llm.Chat(ctx, placeExtractionMessages(excerpt, e.cfg.MaxPlaces), placeExtractionMaxTokens)
	if err != nil {
		return nil, fmt.Errorf("place extraction call failed: %w", err)
	}
	return parsePlaceList(resp.Text, e.cfg.MaxPlaces)
}

// parsePlaceList decodes a JSON array of names, tolerating a surrounding code
// fence. Names are trimmed, deduplicated case-insensitively and capped at limit.
func parsePlaceList(reply string, limit int) ([]string, error) {
	raw := strings.TrimSpace(reply)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	start := strings.IndexByte(raw, '[')
	end := strings.LastIndexByte(raw, ']')
	if start < 0 || end < start {
		return nil, fmt.Errorf("reply is not a JSON array: %q", truncateString(reply, 60))
	}

	dec := json.NewDecoder(strings.NewReader(raw[start : end+1]))
	dec.UseNumber()
	var items []any
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("decode place list: %w", err)
	}

	seen := make(map[string]struct{}, len(items))
	places := make([]string, 0, len(items))
	for _, item := range items {
		name := strings.TrimSpace(placeName(item))
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		places = append(places, name)
		if limit > 0 && len(places) == limit {
			break
		}
	}
	return places, nil
}

// placeName keeps string and numeric entries of a place list. Other JSON
// values are not names.
func placeName(item any) string {
	switch v := item.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

// LookupAll fetches the weather of every place with bounded concurrency and
// renders one line per place in the configured weather locale.
// Failed lookups are skipped; the remaining lines keep the order of places.
func (e *PlaceExtractor) LookupAll(ctx context.Context, places []string) []string {
	if e.weather == nil || len(places) == 0 {
		return nil
	}

	start := time.Now()
	lines := make([]string, len(places))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(e.cfg.PlaceLookupConcurrency, 1))
	for i, place := range places {
		g.Go(func() error {
			lookupCtx, cancel := withStageTimeout(gctx, e.cfg.Timeouts.Weather)
			defer cancel()

			fact, err := e.weather.GetWeatherForCity(lookupCtx, place)
			if err != nil {
				e.logger.WarnContext(ctx, "place_weather_lookup_failed",
					slog.String("place", place),
					slog.String("error", err.Error()))
				e.metrics.RecordDegraded(domain.DegradeWeather)
				return nil
			}
			lines[i] = fact.Line(e.cfg.WeatherLocale)
			return nil
		})
	}
	_ = g.Wait()
	e.metrics.RecordStage("place_weather", time.Since(start))

	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
