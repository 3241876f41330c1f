package rag_model

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-chat/internal/domain"
)

func newOpenAITestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, OpenAIConfig) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server, OpenAIConfig{
		APIKey:  "test-key",
		BaseURL: server.URL + "/v1/",
		Model:   "gpt-4o-mini",
	}
}

func TestOpenAIClient_Chat(t *testing.T) {
	_, cfg := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o-mini", body["model"])
		assert.EqualValues(t, 4, body["max_completion_tokens"])
		msgs := body["messages"].([]any)
		require.Len(t, msgs, 2)
		assert.Equal(t, "system", msgs[0].(map[string]any)["role"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o-mini",` +
			`"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"yes"}}]}`))
	})

	client := NewOpenAIClient(cfg, testLogger())
	resp, err := client.Chat(context.Background(), []domain.Message{
		{Role: domain.RoleSystem, Content: "Reply yes or no."},
		{Role: domain.RoleUser, Content: "Question: ok?"},
	}, 4)

	require.NoError(t, err)
	assert.Equal(t, "yes", resp.Text)
	assert.True(t, resp.Done)
	assert.Equal(t, "gpt-4o-mini", client.Version())
}

func TestOpenAIClient_ChatError(t *testing.T) {
	_, cfg := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	})

	_, err := NewOpenAIClient(cfg, testLogger()).Chat(context.Background(), []domain.Message{{Role: domain.RoleUser, Content: "hi"}}, 0)
	assert.Error(t, err)
}

func TestOpenAIClient_ChatStream(t *testing.T) {
	_, cfg := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, delta := range []string{"Rome ", "is ", "sunny [1]."} {
			_, _ = fmt.Fprintf(w, "data: {\"id\":\"s1\",\"object\":\"chat.completion.chunk\",\"created\":1,\"model\":\"gpt-4o-mini\","+
				"\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", delta)
		}
		_, _ = fmt.Fprint(w, "data: {\"id\":\"s1\",\"object\":\"chat.completion.chunk\",\"created\":1,\"model\":\"gpt-4o-mini\","+
			"\"choices\":[{\"index\":0,\"delta\":{},\"finish_reason\":\"stop\"}]}\n\n")
		_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	})

	client := NewOpenAIClient(cfg, testLogger())
	chunks, errs, err := client.ChatStream(context.Background(), []domain.Message{{Role: domain.RoleUser, Content: "hi"}}, 0)
	require.NoError(t, err)

	text, streamErr := drainStream(t, chunks, errs)
	assert.NoError(t, streamErr)
	assert.Equal(t, "Rome is sunny [1].", text)
}

func TestOpenAIClient_ChatStreamSetupFailure(t *testing.T) {
	_, cfg := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad model"}}`))
	})

	_, _, err := NewOpenAIClient(cfg, testLogger()).ChatStream(context.Background(), []domain.Message{{Role: domain.RoleUser, Content: "hi"}}, 0)
	assert.Error(t, err)
}

func TestOpenAIEmbedder_Encode(t *testing.T) {
	_, cfg := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","model":"text-embedding-3-small","data":[` +
			`{"object":"embedding","index":0,"embedding":[0.5,0.25]},` +
			`{"object":"embedding","index":1,"embedding":[1,0]}],` +
			`"usage":{"prompt_tokens":2,"total_tokens":2}}`))
	})
	cfg.Model = "text-embedding-3-small"

	vecs, err := NewOpenAIEmbedder(cfg).Encode(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.5, 0.25}, {1, 0}}, vecs)
}
