package rag_model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/azure"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"

	"rag-chat/internal/domain"
	"rag-chat/internal/infra/httpclient"
)

// OpenAIConfig configures an OpenAI-compatible chat or embedding client.
// When AzureEndpoint is set the client talks to Azure OpenAI and Model is the
// deployment name.
type OpenAIConfig struct {
	APIKey          string
	BaseURL         string
	AzureEndpoint   string
	AzureAPIVersion string
	Model           string
	Temperature     float64
	// MaxRetries overrides the SDK default when >= 0.
	MaxRetries int
}

func (c OpenAIConfig) requestOptions() []option.RequestOption {
	opts := []option.RequestOption{
		option.WithHTTPClient(httpclient.NewStreamingClient()),
	}
	if c.AzureEndpoint != "" {
		opts = append(opts,
			azure.WithEndpoint(c.AzureEndpoint, c.AzureAPIVersion),
			azure.WithAPIKey(c.APIKey))
	} else {
		opts = append(opts, option.WithAPIKey(c.APIKey))
		if strings.TrimSpace(c.BaseURL) != "" {
			opts = append(opts, option.WithBaseURL(c.BaseURL))
		}
	}
	if c.MaxRetries >= 0 {
		opts = append(opts, option.WithMaxRetries(c.MaxRetries))
	}
	return opts
}

// OpenAIClient implements domain.LLMClient with the official OpenAI SDK.
type OpenAIClient struct {
	client openaisdk.Client
	cfg    OpenAIConfig
	logger *slog.Logger
}

// NewOpenAIClient creates a chat client for OpenAI, Azure OpenAI or any
// OpenAI-compatible endpoint.
func NewOpenAIClient(cfg OpenAIConfig, logger *slog.Logger) *OpenAIClient {
	if cfg.Model == "" {
		cfg.Model = string(openaisdk.ChatModelGPT4oMini)
	}
	return &OpenAIClient{
		client: openaisdk.NewClient(cfg.requestOptions()...),
		cfg:    cfg,
		logger: logger,
	}
}

func (c *OpenAIClient) params(messages []domain.Message, maxTokens int) openaisdk.ChatCompletionNewParams {
	openAIMessages := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case domain.RoleSystem:
			openAIMessages = append(openAIMessages, openaisdk.SystemMessage(msg.Content))
		case domain.RoleAssistant:
			openAIMessages = append(openAIMessages, openaisdk.AssistantMessage(msg.Content))
		default:
			openAIMessages = append(openAIMessages, openaisdk.UserMessage(msg.Content))
		}
	}

	params := openaisdk.ChatCompletionNewParams{
		Messages:    openAIMessages,
		Model:       openaisdk.ChatModel(c.cfg.Model),
		Temperature: param.NewOpt(c.cfg.Temperature),
	}
	if maxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(maxTokens))
	}
	return params
}

// Chat sends messages and returns the first choice.
func (c *OpenAIClient) Chat(ctx context.Context, messages []domain.Message, maxTokens int) (*domain.LLMResponse, error) {
	start := time.Now()
	completion, err := c.client.Chat.Completions.New(ctx, c.params(messages, maxTokens))
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, errors.New("no choices returned from openai")
	}

	c.logger.DebugContext(ctx, "openai_chat_completed",
		slog.String("model", c.cfg.Model),
		slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))

	choice := completion.Choices[0]
	return &domain.LLMResponse{
		Text: strings.TrimSpace(choice.Message.Content),
		Done: choice.FinishReason != "",
	}, nil
}

// ChatStream streams the first choice's content deltas.
func (c *OpenAIClient) ChatStream(ctx context.Context, messages []domain.Message, maxTokens int) (<-chan domain.LLMStreamChunk, <-chan error, error) {
	stream := c.client.Chat.Completions.NewStreaming(ctx, c.params(messages, maxTokens))
	if err := stream.Err(); err != nil {
		_ = stream.Close()
		return nil, nil, fmt.Errorf("openai chat stream setup: %w", err)
	}

	chunks := make(chan domain.LLMStreamChunk, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(errs)
		defer close(chunks)
		defer func() { _ = stream.Close() }()

		for stream.Next() {
			event := stream.Current()
			if len(event.Choices) == 0 {
				continue
			}
			choice := event.Choices[0]
			chunk := domain.LLMStreamChunk{
				Response: choice.Delta.Content,
				Done:     choice.FinishReason != "",
			}
			if chunk.Response == "" && !chunk.Done {
				continue
			}
			select {
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			case chunks <- chunk:
			}
			if chunk.Done {
				return
			}
		}
		if err := stream.Err(); err != nil {
			errs <- fmt.Errorf("openai streaming error: %w", err)
			return
		}
		select {
		case <-ctx.Done():
		case chunks <- domain.LLMStreamChunk{Done: true}:
		}
	}()

	return chunks, errs, nil
}

// Version returns the model or deployment name.
func (c *OpenAIClient) Version() string {
	return c.cfg.Model
}

var _ domain.LLMClient = (*OpenAIClient)(nil)

// OpenAIEmbedder implements domain.VectorEncoder with the embeddings API.
type OpenAIEmbedder struct {
	client openaisdk.Client
	model  string
}

// NewOpenAIEmbedder creates an embedder using cfg.Model.
func NewOpenAIEmbedder(cfg OpenAIConfig) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		client: openaisdk.NewClient(cfg.requestOptions()...),
		model:  cfg.Model,
	}
}

func (e *OpenAIEmbedder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Model: openaisdk.EmbeddingModel(e.model),
		Input: openaisdk.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	out := make([][]float32, len(resp.Data))
	for i, emb := range resp.Data {
		vec := make([]float32, len(emb.Embedding))
		for j, v := range emb.Embedding {
			vec[j] = float32(v)
		}
		out[i] = vec
	}
	return out, nil
}

func (e *OpenAIEmbedder) Version() string {
	return e.model
}

var _ domain.VectorEncoder = (*OpenAIEmbedder)(nil)
