package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatServer(t *testing.T, chunks ...string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body["message"]) == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"detail":"Message must not be empty"}`))
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, c := range chunks {
			_, _ = w.Write([]byte(c))
			flusher.Flush()
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestAsk_PrintsProseAndReturnsCitations(t *testing.T) {
	server := chatServer(t,
		"We visit Siena ",
		"on day 3 [1][2].",
		"\n\nCITATION_MA",
		`P: {"1":"Day 3: Siena","2":"Hotel Palazzo"}`,
	)

	var out bytes.Buffer
	citations, err := ask(context.Background(), server.Client(), server.URL, "Where on day 3?", &out)
	require.NoError(t, err)

	assert.Equal(t, "We visit Siena on day 3 [1][2].\n", out.String())
	require.Len(t, citations, 2)
	text, _ := citations.Get("2")
	assert.Equal(t, "Hotel Palazzo", text)
}

func TestAsk_WithoutCitationMarker(t *testing.T) {
	server := chatServer(t, "Failed to retrieve relevant documents. Please try again later.")

	var out bytes.Buffer
	citations, err := ask(context.Background(), server.Client(), server.URL, "q", &out)
	require.NoError(t, err)

	assert.Equal(t, "Failed to retrieve relevant documents. Please try again later.\n", out.String())
	assert.Empty(t, citations)
}

func TestAsk_ServerRejectsEmptyMessage(t *testing.T) {
	server := chatServer(t)

	_, err := ask(context.Background(), server.Client(), server.URL, "  ", &bytes.Buffer{})
	assert.ErrorContains(t, err, "Message must not be empty")
}

func TestRouteCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"route", "--no-color", "What is the weather in Rome?"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "route: both")
	assert.Contains(t, out.String(), "weather")
}

func TestCleanCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader("Day one   in\nFlorence.\n\nSee [2, 4].\n"))
	cmd.SetArgs([]string{"clean", "--split-citations"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "Day one in Florence.\n\nSee [2][4].\n", out.String())
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "a b", preview("a\n  b", 10))
	assert.Equal(t, "abc...", preview("abcdef", 3))
}
