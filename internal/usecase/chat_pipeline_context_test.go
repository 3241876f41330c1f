package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"rag-chat/internal/domain"
	"rag-chat/internal/infra/logger"
)

func decodeLogLines(t *testing.T, buf *bytes.Buffer) map[string]map[string]any {
	t.Helper()
	byMsg := make(map[string]map[string]any)
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		byMsg[entry["msg"].(string)] = entry
	}
	return byMsg
}

func runWeatherOnlyChat(t *testing.T, ctx context.Context) (map[string]map[string]any, domain.ChatLogRecord) {
	t.Helper()
	var buf bytes.Buffer
	log := slog.New(logger.NewTraceContextHandler(slog.NewJSONHandler(&buf, nil)))

	llm := new(mockLLM)
	weather := new(mockWeather)
	chatLog := new(mockChatLog)
	p, err := NewChatPipeline(ChatPipelineDeps{
		LLM:       llm,
		Retriever: new(mockRetriever),
		Weather:   weather,
		ChatLog:   chatLog,
		Logger:    log,
	}, DefaultPipelineConfig())
	require.NoError(t, err)

	query := "What is the weather in Rome?"
	llm.On("Chat", mock.Anything, systemPromptContains(routerPrompt), mock.Anything).
		Return(&domain.LLMResponse{Text: "weather"}, nil).Once()
	weather.On("GetWeatherAnswer", mock.Anything, query).
		Return(&domain.WeatherAnswer{Sentence: "Sunny in Rome.", Fact: domain.WeatherFact{City: "Rome"}}, nil).Once()
	chunks, errs := streamOf(nil, "Sunny.")
	llm.On("ChatStream", mock.Anything, mock.Anything, mock.Anything).Return(chunks, errs, nil).Once()

	var record domain.ChatLogRecord
	chatLog.On("Append", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { record = args.Get(1).(domain.ChatLogRecord) }).
		Return(errors.New("disk full")).Once()

	events, err := p.Chat(ctx, query)
	require.NoError(t, err)
	collectEvents(t, events)

	return decodeLogLines(t, &buf), record
}

func TestChatPipeline_LogsCarryRequestStageAndRoute(t *testing.T) {
	lines, record := runWeatherOnlyChat(t, context.Background())

	weatherLine := lines["weather_lookup_completed"]
	require.NotNil(t, weatherLine)
	assert.Equal(t, "weather", weatherLine[string(logger.StageKey)])
	assert.Equal(t, "weather", weatherLine[string(logger.RouteKey)])
	assert.Equal(t, record.ID.String(), weatherLine[string(logger.RequestIDKey)])

	persistLine := lines["chat_log_persist_failed"]
	require.NotNil(t, persistLine)
	assert.Equal(t, "log", persistLine[string(logger.StageKey)])
	assert.Equal(t, record.ID.String(), persistLine[string(logger.RequestIDKey)])
	assert.Equal(t, record.ID.String(), persistLine["record_id"])
}

func TestChatPipeline_KeepsCallerRequestID(t *testing.T) {
	ctx := logger.WithRequestID(context.Background(), "req-42")
	lines, record := runWeatherOnlyChat(t, ctx)

	require.NotNil(t, lines["weather_lookup_completed"])
	assert.Equal(t, "req-42", lines["weather_lookup_completed"][string(logger.RequestIDKey)])
	assert.Equal(t, "req-42", lines["chat_log_persist_failed"][string(logger.RequestIDKey)])
	assert.NotEqual(t, "req-42", record.ID.String())
}
