package domain

import "errors"

var (
	// ErrEmptyQuery is returned before any external call when the trimmed query is empty.
	ErrEmptyQuery = errors.New("message must not be empty")
	// ErrRetrieval wraps failures of the retrieval capability.
	ErrRetrieval = errors.New("retrieval failed")
	// ErrGeocoding is returned when a place name resolves to no coordinates.
	ErrGeocoding = errors.New("location not found")
	// ErrWeatherUnavailable is returned when no weather provider is configured.
	ErrWeatherUnavailable = errors.New("weather provider unavailable")
	// ErrGeneration wraps failures of the streaming generation call.
	ErrGeneration = errors.New("generation failed")
)

// DegradeKind names a locally recovered failure. Degradations are logged and
// counted but never reach the caller.
type DegradeKind string

const (
	DegradeClassification  DegradeKind = "classification"
	DegradeRerank          DegradeKind = "rerank"
	DegradeAnswerability   DegradeKind = "answerability"
	DegradeWeather         DegradeKind = "weather"
	DegradePlaceExtraction DegradeKind = "place_extraction"
	DegradeGeneration      DegradeKind = "generation"
	DegradeLogPersist      DegradeKind = "log_persist"
)
