package chatlog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"rag-chat/internal/domain"
)

const fileTimeLayout = "20060102_150405"

// FileSink writes one pretty-printed JSON file per chat log record.
type FileSink struct {
	dir       string
	logger    *slog.Logger
	writeBody func(w io.Writer, body []byte) error
}

// NewFileSink creates a sink writing into dir. The directory is created on
// first write.
func NewFileSink(dir string, logger *slog.Logger) *FileSink {
	return &FileSink{dir: dir, logger: logger, writeBody: writeAll}
}

func writeAll(w io.Writer, body []byte) error {
	_, err := w.Write(body)
	return err
}

// Append writes record to chat_<timestamp>_<id8>.json.
func (s *FileSink) Append(ctx context.Context, record domain.ChatLogRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create chat log dir: %w", err)
	}

	body, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode chat log: %w", err)
	}

	path := filepath.Join(s.dir, FileName(record))
	if err := s.writeFile(path, body); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "chat_log_saved", slog.String("path", path))
	return nil
}

// writeFile writes body to a temp file and links it to path, so a failed
// write never leaves a partial record behind. Link fails when path exists.
func (s *FileSink) writeFile(path string, body []byte) error {
	tmp, err := os.CreateTemp(s.dir, ".chat_*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create chat log file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := s.writeBody(tmp, body); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write chat log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close chat log: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to chmod chat log: %w", err)
	}
	if err := os.Link(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to create chat log file: %w", err)
	}
	return nil
}

// FileName returns the file name a record is stored under.
func FileName(record domain.ChatLogRecord) string {
	return fmt.Sprintf("chat_%s_%s.json",
		record.Timestamp.UTC().Format(fileTimeLayout),
		record.ID.String()[:8])
}

var _ domain.ChatLogSink = (*FileSink)(nil)
