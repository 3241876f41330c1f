package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-chat/internal/domain"
)

func TestGroundedPromptBuilder_Build(t *testing.T) {
	b := NewGroundedPromptBuilder("Answer in German.")

	msgs, err := b.Build(PromptInput{
		Query:       "  Where do we stay?  ",
		WeatherText: "Current weather in Rome, IT: clear sky, 21.0°C, humidity 40%, wind 1.0 m/s.",
		ContextText: "[1] Hotel Roma",
	})
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, domain.RoleSystem, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "one number per bracket")
	assert.Contains(t, msgs[0].Content, "general knowledge")
	assert.Contains(t, msgs[0].Content, "Answer in German.")

	assert.Equal(t, domain.RoleUser, msgs[1].Role)
	assert.Equal(t, "Question: Where do we stay?\n\n"+
		"Weather facts (optional):\nCurrent weather in Rome, IT: clear sky, 21.0°C, humidity 40%, wind 1.0 m/s.\n\n"+
		"Document context (optional):\n[1] Hotel Roma", msgs[1].Content)
}

func TestGroundedPromptBuilder_EmptySections(t *testing.T) {
	msgs, err := NewGroundedPromptBuilder().Build(PromptInput{Query: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "Question: hi\n\nWeather facts (optional):\n\n\nDocument context (optional):\n", msgs[1].Content)
}

func TestGroundedPromptBuilder_RequiresQuery(t *testing.T) {
	_, err := NewGroundedPromptBuilder().Build(PromptInput{Query: " "})
	assert.Error(t, err)
}
