package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCitationMap_MarshalKeepsNumericOrder(t *testing.T) {
	texts := make([]string, 11)
	for i := range texts {
		texts[i] = "t"
	}
	m := NewCitationMap(texts...)

	data, err := json.Marshal(m)
	require.NoError(t, err)

	assert.Equal(t,
		`{"1":"t","2":"t","3":"t","4":"t","5":"t","6":"t","7":"t","8":"t","9":"t","10":"t","11":"t"}`,
		string(data))
}

func TestCitationMap_EmptyMarshalsAsObject(t *testing.T) {
	var m CitationMap
	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestCitationMap_UnmarshalPreservesOrder(t *testing.T) {
	var m CitationMap
	require.NoError(t, json.Unmarshal([]byte(`{"2":"b","1":"a"}`), &m))

	assert.Equal(t, []string{"2", "1"}, m.Keys())
	text, ok := m.Get("1")
	assert.True(t, ok)
	assert.Equal(t, "a", text)
}

func TestCitationMap_UnmarshalRejectsArray(t *testing.T) {
	var m CitationMap
	assert.Error(t, json.Unmarshal([]byte(`["a"]`), &m))
}

func TestSplitCitationMarker(t *testing.T) {
	marker, err := RenderCitationMarker(NewCitationMap("first", "second"))
	require.NoError(t, err)

	prose, citations, found, err := SplitCitationMarker("Answer [1][2]." + marker)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Answer [1][2].", prose)
	assert.Equal(t, []string{"1", "2"}, citations.Keys())
}

func TestSplitCitationMarker_Missing(t *testing.T) {
	prose, citations, found, err := SplitCitationMarker("just prose")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, "just prose", prose)
	assert.Nil(t, citations)
}
