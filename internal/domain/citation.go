package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// CitationMapMarker separates prose from the structured citation map in a
// flat text stream. Consumers treat everything after the first occurrence as JSON.
const CitationMapMarker = "\n\nCITATION_MAP: "

// Citation is one entry of a CitationMap.
type Citation struct {
	Index string
	Text  string
}

// CitationMap maps 1-based citation indices to the cleaned passage text they
// cite. Entries keep insertion order, which is also the order passages appear
// in the grounding context. It serializes as a JSON object with keys "1".."n"
// in that order.
type CitationMap []Citation

// NewCitationMap numbers texts from 1 in the given order.
func NewCitationMap(texts ...string) CitationMap {
	m := make(CitationMap, 0, len(texts))
	for _, t := range texts {
		m = m.Append(t)
	}
	return m
}

// Append adds text under the next contiguous index.
func (m CitationMap) Append(text string) CitationMap {
	return append(m, Citation{Index: strconv.Itoa(len(m) + 1), Text: text})
}

// Get returns the text cited under index.
func (m CitationMap) Get(index string) (string, bool) {
	for _, c := range m {
		if c.Index == index {
			return c.Text, true
		}
	}
	return "", false
}

// Keys returns the citation indices in order.
func (m CitationMap) Keys() []string {
	keys := make([]string, len(m))
	for i, c := range m {
		keys[i] = c.Index
	}
	return keys
}

// MarshalJSON writes the map as an object, keeping entry order.
func (m CitationMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c.Index)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(c.Text)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object, keeping the key order found in the document.
func (m *CitationMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("citation map must be a JSON object")
	}

	out := CitationMap{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("citation map key must be a string")
		}
		var text string
		if err := dec.Decode(&text); err != nil {
			return fmt.Errorf("citation %s: %w", key, err)
		}
		out = append(out, Citation{Index: key, Text: text})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*m = out
	return nil
}

// RenderCitationMarker renders the terminal chunk of a flat text stream.
func RenderCitationMarker(m CitationMap) (string, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to marshal citation map: %w", err)
	}
	return CitationMapMarker + string(payload), nil
}

// SplitCitationMarker splits a full flat response into prose and citations.
// found is false when the response carries no marker.
func SplitCitationMarker(response string) (prose string, citations CitationMap, found bool, err error) {
	marker := strings.TrimLeft(CitationMapMarker, "\n")
	idx := strings.Index(response, marker)
	if idx < 0 {
		return response, nil, false, nil
	}
	prose = strings.TrimRight(response[:idx], "\n")
	if err := json.Unmarshal([]byte(response[idx+len(marker):]), &citations); err != nil {
		return prose, nil, true, fmt.Errorf("failed to decode citation map: %w", err)
	}
	return prose, citations, true, nil
}
