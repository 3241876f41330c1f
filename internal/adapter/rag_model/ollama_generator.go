package rag_model

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"rag-chat/internal/domain"
	"rag-chat/internal/infra/httpclient"
)

const keepAlive = "10m"

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string                 `json:"model"`
	Messages  []chatMessage          `json:"messages"`
	Stream    bool                   `json:"stream"`
	KeepAlive string                 `json:"keep_alive,omitempty"`
	Options   map[string]interface{} `json:"options,omitempty"`
}

type chatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error,omitempty"`
}

// OllamaGenerator sends chat prompts to Ollama's /api/chat endpoint.
type OllamaGenerator struct {
	BaseURL     string
	Model       string
	Temperature float64
	// Client serves single-shot calls; StreamClient has no overall deadline.
	Client       *http.Client
	StreamClient *http.Client
	logger       *slog.Logger
}

// NewOllamaGenerator constructs a generator using the provided endpoint and model name.
func NewOllamaGenerator(baseURL, model string, temperature float64, timeout time.Duration, logger *slog.Logger) *OllamaGenerator {
	return &OllamaGenerator{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		Model:        model,
		Temperature:  temperature,
		Client:       httpclient.NewPooledClient(timeout),
		StreamClient: httpclient.NewStreamingClient(),
		logger:       logger,
	}
}

func (g *OllamaGenerator) buildRequest(messages []domain.Message, maxTokens int, stream bool) chatRequest {
	msgs := make([]chatMessage, len(messages))
	for i, m := range messages {
		msgs[i] = chatMessage{Role: m.Role, Content: m.Content}
	}
	options := map[string]interface{}{
		"temperature": g.Temperature,
	}
	if maxTokens > 0 {
		options["num_predict"] = maxTokens
	}
	return chatRequest{
		Model:     g.Model,
		Messages:  msgs,
		Stream:    stream,
		KeepAlive: keepAlive,
		Options:   options,
	}
}

func (g *OllamaGenerator) post(ctx context.Context, client *http.Client, body chatRequest) (*http.Response, error) {
	jsonPayload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	url := fmt.Sprintf("%s/api/chat", g.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonPayload))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call chat endpoint: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("chat endpoint returned %d: %s", resp.StatusCode, string(respBody))
	}
	return resp, nil
}

// Chat sends messages and returns the complete assistant message.
func (g *OllamaGenerator) Chat(ctx context.Context, messages []domain.Message, maxTokens int) (*domain.LLMResponse, error) {
	start := time.Now()
	resp, err := g.post(ctx, g.Client, g.buildRequest(messages, maxTokens, false))
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("failed to decode chat response: %w", err)
	}
	if chatResp.Error != "" {
		return nil, fmt.Errorf("chat endpoint error: %s", chatResp.Error)
	}

	g.logger.DebugContext(ctx, "ollama_chat_completed",
		slog.String("model", g.Model),
		slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))

	return &domain.LLMResponse{
		Text: strings.TrimSpace(chatResp.Message.Content),
		Done: chatResp.Done,
	}, nil
}

// ChatStream sends messages with streaming enabled. The response body is
// newline-delimited JSON, one object per delta.
func (g *OllamaGenerator) ChatStream(ctx context.Context, messages []domain.Message, maxTokens int) (<-chan domain.LLMStreamChunk, <-chan error, error) {
	resp, err := g.post(ctx, g.StreamClient, g.buildRequest(messages, maxTokens, true))
	if err != nil {
		return nil, nil, err
	}

	chunks := make(chan domain.LLMStreamChunk, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(errs)
		defer close(chunks)
		defer func() { _ = resp.Body.Close() }()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}

			var chunk chatResponse
			if err := json.Unmarshal(line, &chunk); err != nil {
				errs <- fmt.Errorf("failed to decode stream chunk: %w", err)
				return
			}
			if chunk.Error != "" {
				errs <- fmt.Errorf("chat stream error: %s", chunk.Error)
				return
			}

			select {
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			case chunks <- domain.LLMStreamChunk{Response: chunk.Message.Content, Done: chunk.Done}:
			}
			if chunk.Done {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			errs <- fmt.Errorf("chat stream read failed: %w", err)
			return
		}
		errs <- io.ErrUnexpectedEOF
	}()

	return chunks, errs, nil
}

// Version returns the wrapped model name.
func (g *OllamaGenerator) Version() string {
	return g.Model
}

var _ domain.LLMClient = (*OllamaGenerator)(nil)
