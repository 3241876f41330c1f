package weather

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractCity(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"What is the weather in Rome?", "Rome"},
		{"Weather IN New York City!", "New York City"},
		{"temperature at Pisa.", "Pisa"},
		{"forecast for Siena, please", "Siena, please"},
		{"rain in Rome at noon", "Rome at noon"},
		{"  Florence?  ", "Florence"},
		{"?!", ""},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractCity(tt.query))
		})
	}
}
