package domain

import "strings"

// RoutingDecision selects the information sources used to answer a query.
// The router never produces the zero value.
type RoutingDecision struct {
	UseWeather   bool `json:"use_weather"`
	UseRetrieval bool `json:"use_retrieval"`
}

// Route labels understood by the classifier.
const (
	RouteLabelWeather = "weather"
	RouteLabelRAG     = "rag"
	RouteLabelBoth    = "both"
)

// WeatherKeywords trigger the weather source in keyword routing.
var WeatherKeywords = []string{"weather", "forecast", "temperature", "rain", "wind", "humid", "snow"}

// KeywordRoute is the deterministic fallback used when classification fails.
// Retrieval is always enabled.
func KeywordRoute(query string) RoutingDecision {
	q := strings.ToLower(query)
	useWeather := false
	for _, kw := range WeatherKeywords {
		if strings.Contains(q, kw) {
			useWeather = true
			break
		}
	}
	return RoutingDecision{UseWeather: useWeather, UseRetrieval: true}
}

// ParseRouteLabel maps a classifier reply to a decision. Labels are checked in
// the order both, weather, rag; ok is false when none is present.
func ParseRouteLabel(reply string) (RoutingDecision, bool) {
	label := strings.ToLower(strings.TrimSpace(reply))
	switch {
	case label == "":
		return RoutingDecision{}, false
	case strings.Contains(label, RouteLabelBoth):
		return RoutingDecision{UseWeather: true, UseRetrieval: true}, true
	case strings.Contains(label, RouteLabelWeather):
		return RoutingDecision{UseWeather: true}, true
	case strings.Contains(label, RouteLabelRAG):
		return RoutingDecision{UseRetrieval: true}, true
	default:
		return RoutingDecision{}, false
	}
}

// Label returns the classifier label that produces d.
func (d RoutingDecision) Label() string {
	switch {
	case d.UseWeather && d.UseRetrieval:
		return RouteLabelBoth
	case d.UseWeather:
		return RouteLabelWeather
	default:
		return RouteLabelRAG
	}
}
