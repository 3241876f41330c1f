package domain

import (
	"context"
	"fmt"
)

// Weather locales supported by WeatherFact.Sentence.
const (
	LocaleEnglish = "en"
	LocaleGerman  = "de"
)

// WeatherFact is the current condition at a resolved place.
type WeatherFact struct {
	City         string
	Country      string
	Conditions   string
	TemperatureC float64
	HumidityPct  int
	WindSpeedMs  float64
	Lat          float64
	Lon          float64
}

// WeatherAnswer is the rendered answer to a free-text weather query together
// with the sources it was built from.
type WeatherAnswer struct {
	Sentence string
	Fact     WeatherFact
	Sources  CitationMap
}

// WeatherService resolves places to current conditions.
type WeatherService interface {
	// GetWeatherAnswer extracts a place from a free-text query and describes its weather.
	GetWeatherAnswer(ctx context.Context, query string) (*WeatherAnswer, error)
	// GetWeatherForCity returns the current conditions for a place name.
	GetWeatherForCity(ctx context.Context, place string) (*WeatherFact, error)
}

func (f WeatherFact) place() string {
	if f.Country == "" {
		return f.City
	}
	return f.City + ", " + f.Country
}

// Sentence renders the fact as a full sentence in the given locale.
// Unknown locales fall back to English.
func (f WeatherFact) Sentence(locale string) string {
	if locale == LocaleGerman {
		return fmt.Sprintf("Aktuelles Wetter in %s: %s, %.1f°C, Luftfeuchtigkeit %d%%, Wind %.1f m/s.",
			f.place(), f.Conditions, f.TemperatureC, f.HumidityPct, f.WindSpeedMs)
	}
	return fmt.Sprintf("Current weather in %s: %s, %.1f°C, humidity %d%%, wind %.1f m/s.",
		f.place(), f.Conditions, f.TemperatureC, f.HumidityPct, f.WindSpeedMs)
}

// Line renders the fact as a compact line used when several places are listed.
func (f WeatherFact) Line(locale string) string {
	if locale == LocaleGerman {
		return fmt.Sprintf("%s: %s, %.1f°C, Luftfeuchtigkeit %d%%, Wind %.1f m/s",
			f.place(), f.Conditions, f.TemperatureC, f.HumidityPct, f.WindSpeedMs)
	}
	return fmt.Sprintf("%s: %s, %.1f°C, humidity %d%%, wind %.1f m/s",
		f.place(), f.Conditions, f.TemperatureC, f.HumidityPct, f.WindSpeedMs)
}
