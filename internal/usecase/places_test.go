package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"rag-chat/internal/domain"
)

func TestParsePlaceList(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		limit   int
		want    []string
		wantErr bool
	}{
		{name: "plain array", reply: `["Rome", "Florence"]`, limit: 5, want: []string{"Rome", "Florence"}},
		{name: "fenced", reply: "```json\n[\"Rome\"]\n```", limit: 5, want: []string{"Rome"}},
		{name: "prose around array", reply: "Here you go: [\"Pisa\"]", limit: 5, want: []string{"Pisa"}},
		{name: "dedupe case insensitive", reply: `["Rome", "rome", " ROME "]`, limit: 5, want: []string{"Rome"}},
		{name: "capped", reply: `["A", "B", "C", "D"]`, limit: 2, want: []string{"A", "B"}},
		{name: "empty array", reply: `[]`, limit: 5, want: []string{}},
		{name: "blank names skipped", reply: `["", "Siena"]`, limit: 5, want: []string{"Siena"}},
		{name: "not an array", reply: "none", limit: 5, wantErr: true},
		{name: "numbers kept as text", reply: `["Rome", 3]`, limit: 5, want: []string{"Rome", "3"}},
		{name: "non-name values skipped", reply: `["Rome", null, true, {"city": "Pisa"}]`, limit: 5, want: []string{"Rome"}},
		{name: "object instead of array", reply: `{"places": "Rome"}`, limit: 5, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePlaceList(tt.reply, tt.limit)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPlaceExtractor_ExtractTruncatesContext(t *testing.T) {
	cfg := DefaultPipelineConfig()
	cfg.PlaceContextChars = 4
	llm := new(mockLLM)
	llm.On("Chat", mock.Anything, mock.MatchedBy(func(msgs []domain.Message) bool {
		return msgs[1].Content == "Context:\nMünc"
	}), placeExtractionMaxTokens).Return(&domain.LLMResponse{Text: `["München"]`}, nil).Once()

	e := NewPlaceExtractor(llm, nil, cfg, testLogger(), nil)
	assert.Equal(t, []string{"München"}, e.Extract(context.Background(), "München liegt in Bayern"))
	llm.AssertExpectations(t)
}

func TestPlaceExtractor_ExtractFailureIsEmpty(t *testing.T) {
	llm := new(mockLLM)
	llm.On("Chat", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("boom")).Once()
	metrics := &recordingMetrics{}

	e := NewPlaceExtractor(llm, nil, DefaultPipelineConfig(), testLogger(), metrics)
	assert.Empty(t, e.Extract(context.Background(), "some context"))
	assert.Equal(t, []domain.DegradeKind{domain.DegradePlaceExtraction}, metrics.degraded)
}

func TestPlaceExtractor_LookupAllKeepsOrderAndSkipsFailures(t *testing.T) {
	weather := new(mockWeather)
	weather.On("GetWeatherForCity", mock.Anything, "Rome").Return(placeFact("Rome"), nil).Once()
	weather.On("GetWeatherForCity", mock.Anything, "Atlantis").Return(nil, domain.ErrGeocoding).Once()
	weather.On("GetWeatherForCity", mock.Anything, "Pisa").Return(placeFact("Pisa"), nil).Once()
	weather.On("GetWeatherForCity", mock.Anything, "Siena").Return(placeFact("Siena"), nil).Once()

	e := NewPlaceExtractor(nil, weather, DefaultPipelineConfig(), testLogger(), nil)
	got := e.LookupAll(context.Background(), []string{"Rome", "Atlantis", "Pisa", "Siena"})

	assert.Equal(t, []string{
		"Rome, IT: clear sky, 20.0°C, humidity 50%, wind 2.0 m/s",
		"Pisa, IT: clear sky, 20.0°C, humidity 50%, wind 2.0 m/s",
		"Siena, IT: clear sky, 20.0°C, humidity 50%, wind 2.0 m/s",
	}, got)
	weather.AssertExpectations(t)
}

func TestPlaceExtractor_LookupAllUsesWeatherLocale(t *testing.T) {
	weather := new(mockWeather)
	weather.On("GetWeatherForCity", mock.Anything, "Rome").Return(placeFact("Rome"), nil).Once()
	cfg := DefaultPipelineConfig()
	cfg.WeatherLocale = domain.LocaleGerman

	e := NewPlaceExtractor(nil, weather, cfg, testLogger(), nil)
	got := e.LookupAll(context.Background(), []string{"Rome"})

	assert.Equal(t, []string{"Rome, IT: clear sky, 20.0°C, Luftfeuchtigkeit 50%, Wind 2.0 m/s"}, got)
}

func placeFact(city string) *domain.WeatherFact {
	return &domain.WeatherFact{
		City:         city,
		Country:      "IT",
		Conditions:   "clear sky",
		TemperatureC: 20,
		HumidityPct:  50,
		WindSpeedMs:  2,
	}
}

func TestPlaceExtractor_LookupAllWithoutWeatherService(t *testing.T) {
	e := NewPlaceExtractor(nil, nil, DefaultPipelineConfig(), testLogger(), nil)
	assert.Nil(t, e.LookupAll(context.Background(), []string{"Rome"}))
}
