package repository

import (
	"context"
	"fmt"

	"rag-chat/internal/domain"
)

const insertChatLogSQL = `
		INSERT INTO chat_logs (
			id, created_at, query, response, context_used,
			processing_seconds, model, use_weather, use_retrieval
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

type chatLogRepository struct {
	db DBTX
}

// NewChatLogRepository creates a ChatLogSink backed by the chat_logs table.
func NewChatLogRepository(db DBTX) domain.ChatLogSink {
	return &chatLogRepository{db: db}
}

func (r *chatLogRepository) Append(ctx context.Context, record domain.ChatLogRecord) error {
	_, err := r.db.Exec(ctx, insertChatLogSQL,
		record.ID,
		record.Timestamp,
		record.Query,
		record.Response,
		record.ContextUsed,
		record.ProcessingDurationSeconds,
		record.Model,
		record.Route.UseWeather,
		record.Route.UseRetrieval,
	)
	if err != nil {
		return fmt.Errorf("failed to insert chat log %s: %w", record.ID, err)
	}
	return nil
}
