package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"rag-chat/internal/domain"
	"rag-chat/internal/infra/httpclient"
)

const (
	geocodePath    = "/geo/1.0/direct"
	conditionsPath = "/data/2.5/weather"
)

// Config configures the OpenWeatherMap client.
type Config struct {
	APIKey  string
	BaseURL string
	// Locale selects the sentence language of GetWeatherAnswer.
	Locale           string
	RatePerSecond    float64
	GeocodeCacheSize int
	GeocodeCacheTTL  time.Duration
	Timeout          time.Duration
}

type location struct {
	Name    string  `json:"name"`
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

type currentResponse struct {
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
}

// OpenWeatherMapClient implements domain.WeatherService with the geocoding
// and current weather APIs of OpenWeatherMap.
type OpenWeatherMapClient struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	geocodes   *expirable.LRU[string, location]
	conditions ConditionsCache
	logger     *slog.Logger
}

// NewOpenWeatherMapClient creates a client. conditions may be nil.
func NewOpenWeatherMapClient(cfg Config, conditions ConditionsCache, logger *slog.Logger) *OpenWeatherMapClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openweathermap.org"
	}
	if cfg.Locale == "" {
		cfg.Locale = domain.LocaleEnglish
	}
	if cfg.GeocodeCacheSize <= 0 {
		cfg.GeocodeCacheSize = 512
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	return &OpenWeatherMapClient{
		cfg:        cfg,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpclient.NewPooledClient(cfg.Timeout),
		limiter:    rate.NewLimiter(limit, max(1, int(cfg.RatePerSecond))),
		geocodes:   expirable.NewLRU[string, location](cfg.GeocodeCacheSize, nil, cfg.GeocodeCacheTTL),
		conditions: conditions,
		logger:     logger,
	}
}

// GetWeatherAnswer extracts the place from query and renders its current
// weather as a sentence together with the API sources used.
func (c *OpenWeatherMapClient) GetWeatherAnswer(ctx context.Context, query string) (*domain.WeatherAnswer, error) {
	city := ExtractCity(query)
	if city == "" {
		return nil, fmt.Errorf("%w: no place in query", domain.ErrGeocoding)
	}
	fact, err := c.lookup(ctx, city)
	if err != nil {
		return nil, err
	}
	return &domain.WeatherAnswer{
		Sentence: fact.Sentence(c.cfg.Locale),
		Fact:     *fact,
		Sources: domain.NewCitationMap(
			fmt.Sprintf("OpenWeatherMap Current Weather API for lat=%s, lon=%s", formatCoord(fact.Lat), formatCoord(fact.Lon)),
			"OpenWeatherMap Geocoding API",
		),
	}, nil
}

// GetWeatherForCity returns the current weather of place.
func (c *OpenWeatherMapClient) GetWeatherForCity(ctx context.Context, place string) (*domain.WeatherFact, error) {
	return c.lookup(ctx, strings.TrimSpace(place))
}

func (c *OpenWeatherMapClient) lookup(ctx context.Context, place string) (*domain.WeatherFact, error) {
	if c.cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: OPENWEATHERMAP_API_KEY is not set", domain.ErrWeatherUnavailable)
	}
	loc, err := c.geocode(ctx, place)
	if err != nil {
		return nil, rejectedKey(err)
	}
	fact, err := c.current(ctx, loc)
	if err != nil {
		return nil, rejectedKey(err)
	}
	return fact, nil
}

// rejectedKey marks errors caused by an invalid API key as unavailability,
// since no retry with another place can succeed.
func rejectedKey(err error) error {
	if IsStatus(err, http.StatusUnauthorized) {
		return fmt.Errorf("%w: %w", domain.ErrWeatherUnavailable, err)
	}
	return err
}

func (c *OpenWeatherMapClient) geocode(ctx context.Context, place string) (location, error) {
	key := strings.ToLower(place)
	if loc, ok := c.geocodes.Get(key); ok {
		return loc, nil
	}

	params := url.Values{}
	params.Set("q", place)
	params.Set("limit", "1")

	var results []location
	if err := c.get(ctx, geocodePath, params, &results); err != nil {
		return location{}, fmt.Errorf("geocode %q: %w", place, err)
	}
	if len(results) == 0 {
		return location{}, fmt.Errorf("%w: no geocoding results for %q", domain.ErrGeocoding, place)
	}
	loc := results[0]
	if loc.Name == "" {
		loc.Name = place
	}
	c.geocodes.Add(key, loc)
	return loc, nil
}

func (c *OpenWeatherMapClient) current(ctx context.Context, loc location) (*domain.WeatherFact, error) {
	if c.conditions != nil {
		cached, ok, err := c.conditions.Get(ctx, loc.Lat, loc.Lon)
		if err != nil {
			c.logger.WarnContext(ctx, "weather_cache_read_failed", slog.String("error", err.Error()))
		} else if ok {
			cached.City, cached.Country = loc.Name, loc.Country
			return cached, nil
		}
	}

	params := url.Values{}
	params.Set("lat", formatCoord(loc.Lat))
	params.Set("lon", formatCoord(loc.Lon))
	params.Set("units", "metric")

	var resp currentResponse
	if err := c.get(ctx, conditionsPath, params, &resp); err != nil {
		return nil, fmt.Errorf("current weather for %s: %w", loc.Name, err)
	}

	fact := &domain.WeatherFact{
		City:         loc.Name,
		Country:      loc.Country,
		TemperatureC: resp.Main.Temp,
		HumidityPct:  resp.Main.Humidity,
		WindSpeedMs:  resp.Wind.Speed,
		Lat:          loc.Lat,
		Lon:          loc.Lon,
	}
	if len(resp.Weather) > 0 {
		fact.Conditions = resp.Weather[0].Description
	}

	if c.conditions != nil {
		if err := c.conditions.Set(ctx, *fact); err != nil {
			c.logger.WarnContext(ctx, "weather_cache_write_failed", slog.String("error", err.Error()))
		}
	}
	return fact, nil
}

func (c *OpenWeatherMapClient) get(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	params.Set("appid", c.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call openweathermap: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// StatusError is returned for non-200 responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("openweathermap returned %d: %s", e.StatusCode, e.Body)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var _ domain.WeatherService = (*OpenWeatherMapClient)(nil)
