package usecase

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"rag-chat/internal/domain"
)

type mockLLM struct {
	mock.Mock
}

func (m *mockLLM) Chat(ctx context.Context, messages []domain.Message, maxTokens int) (*domain.LLMResponse, error) {
	args := m.Called(ctx, messages, maxTokens)
	if res := args.Get(0); res != nil {
		return res.(*domain.LLMResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockLLM) ChatStream(ctx context.Context, messages []domain.Message, maxTokens int) (<-chan domain.LLMStreamChunk, <-chan error, error) {
	args := m.Called(ctx, messages, maxTokens)
	if err := args.Error(2); err != nil {
		return nil, nil, err
	}
	return args.Get(0).(<-chan domain.LLMStreamChunk), args.Get(1).(<-chan error), nil
}

func (m *mockLLM) Version() string { return "mock-llm" }

type mockRetriever struct {
	mock.Mock
}

func (m *mockRetriever) Search(ctx context.Context, query string, k int) ([]domain.Passage, error) {
	args := m.Called(ctx, query, k)
	if res := args.Get(0); res != nil {
		return res.([]domain.Passage), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockReranker struct {
	mock.Mock
}

func (m *mockReranker) Rerank(ctx context.Context, query string, candidates []domain.RerankCandidate) ([]domain.RerankResult, error) {
	args := m.Called(ctx, query, candidates)
	if res := args.Get(0); res != nil {
		return res.([]domain.RerankResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockReranker) ModelName() string { return "mock-reranker" }

type mockWeather struct {
	mock.Mock
}

func (m *mockWeather) GetWeatherAnswer(ctx context.Context, query string) (*domain.WeatherAnswer, error) {
	args := m.Called(ctx, query)
	if res := args.Get(0); res != nil {
		return res.(*domain.WeatherAnswer), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockWeather) GetWeatherForCity(ctx context.Context, place string) (*domain.WeatherFact, error) {
	args := m.Called(ctx, place)
	if res := args.Get(0); res != nil {
		return res.(*domain.WeatherFact), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockChatLog struct {
	mock.Mock
}

func (m *mockChatLog) Append(ctx context.Context, record domain.ChatLogRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// systemPromptContains matches a message list whose system prompt contains s.
func systemPromptContains(s string) interface{} {
	return mock.MatchedBy(func(msgs []domain.Message) bool {
		return len(msgs) > 0 && strings.Contains(msgs[0].Content, s)
	})
}

// userPromptContains matches a message list whose last message contains s.
func userPromptContains(s string) interface{} {
	return mock.MatchedBy(func(msgs []domain.Message) bool {
		return len(msgs) > 0 && strings.Contains(msgs[len(msgs)-1].Content, s)
	})
}

const (
	routerPrompt        = "You are a router"
	answerabilityPrompt = "Reply with exactly one word: yes or no"
	placesPrompt        = "city names"
)

// streamOf returns channels that deliver chunks one at a time and then either
// a Done chunk or err. Chunks are unbuffered so every chunk is received before
// err is sent.
func streamOf(err error, chunks ...string) (<-chan domain.LLMStreamChunk, <-chan error) {
	chunkCh := make(chan domain.LLMStreamChunk)
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		defer close(chunkCh)
		for _, c := range chunks {
			chunkCh <- domain.LLMStreamChunk{Response: c}
		}
		if err != nil {
			errCh <- err
			return
		}
		chunkCh <- domain.LLMStreamChunk{Done: true}
	}()
	return chunkCh, errCh
}

func collectEvents(t *testing.T, events <-chan ChatEvent) []ChatEvent {
	t.Helper()
	var out []ChatEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("timed out waiting for chat events")
			return out
		}
	}
}

func textOf(events []ChatEvent) string {
	var sb strings.Builder
	for _, ev := range events {
		if ev.Kind == ChatEventText {
			sb.WriteString(ev.Text)
		}
	}
	return sb.String()
}
