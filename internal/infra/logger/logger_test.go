package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestTraceContextHandler_AddsRequestValues(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewTraceContextHandler(slog.NewJSONHandler(&buf, nil)))

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithStage(ctx, "routing")
	log.InfoContext(ctx, "routing_started")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "req-1", entry[string(RequestIDKey)])
	assert.Equal(t, "routing", entry[string(StageKey)])
	assert.NotContains(t, entry, "trace_id")
}

func TestTraceContextHandler_AddsSpanIDs(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewTraceContextHandler(slog.NewJSONHandler(&buf, nil)))

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	log.InfoContext(ctx, "inside_span")
	span.End()

	entry := decodeLine(t, &buf)
	assert.Equal(t, span.SpanContext().TraceID().String(), entry["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), entry["span_id"])
}

func TestMultiHandler_WritesStdoutCopy(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewMultiHandler(&buf, slog.LevelInfo)).With("component", "test")

	log.Debug("dropped")
	log.Info("kept")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "test", entry["component"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("WARNING"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
}

func TestRequestID(t *testing.T) {
	assert.Empty(t, RequestID(context.Background()))
	assert.Equal(t, "abc", RequestID(WithRequestID(context.Background(), "abc")))
}
