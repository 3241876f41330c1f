package chatlog

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-chat/internal/domain"
)

func testRecord() domain.ChatLogRecord {
	return domain.ChatLogRecord{
		ID:                        uuid.MustParse("a1b2c3d4-0000-4000-8000-000000000001"),
		Timestamp:                 time.Date(2026, 3, 9, 8, 7, 6, 0, time.UTC),
		Query:                     "Wie warm ist es in München?",
		Response:                  "Es sind 12 °C.",
		ContextUsed:               "",
		ProcessingDurationSeconds: 0.8,
		Model:                     "gpt-4o-mini",
		Route:                     domain.RoutingDecision{UseWeather: true},
	}
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "chat_20260309_080706_a1b2c3d4.json", FileName(testRecord()))
}

func TestFileSink_Append(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	sink := NewFileSink(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, sink.Append(context.Background(), testRecord()))

	body, err := os.ReadFile(filepath.Join(dir, "chat_20260309_080706_a1b2c3d4.json"))
	require.NoError(t, err)
	assert.Contains(t, string(body), "\n  \"query\": \"Wie warm ist es in München?\"")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "Es sind 12 °C.", decoded["response"])
	assert.Equal(t, 0.8, decoded["processing_time_seconds"])
	assert.Equal(t, "gpt-4o-mini", decoded["model"])
	assert.Contains(t, decoded, "context")
}

func TestFileSink_AppendNeverOverwrites(t *testing.T) {
	sink := NewFileSink(t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, sink.Append(context.Background(), testRecord()))
	assert.Error(t, sink.Append(context.Background(), testRecord()))

	entries, err := os.ReadDir(sink.dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileSink_AppendFailedWriteLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	sink := NewFileSink(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	sink.writeBody = func(w io.Writer, body []byte) error {
		if _, err := w.Write(body[:len(body)/2]); err != nil {
			return err
		}
		return errors.New("file too large")
	}

	err := sink.Append(context.Background(), testRecord())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write chat log")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// a retry after the failure stores the full record
	sink.writeBody = writeAll
	require.NoError(t, sink.Append(context.Background(), testRecord()))

	body, err := os.ReadFile(filepath.Join(dir, FileName(testRecord())))
	require.NoError(t, err)
	assert.True(t, json.Valid(body))

	entries, err = os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileSink_AppendCancelled(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	sink := NewFileSink(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, sink.Append(ctx, testRecord()), context.Canceled)
	assert.NoDirExists(t, dir)
}
