package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ChatLogRecord is the audit record of one answered request. Records are
// written once and never updated.
type ChatLogRecord struct {
	ID                        uuid.UUID       `json:"id"`
	Timestamp                 time.Time       `json:"timestamp"`
	Query                     string          `json:"query"`
	Response                  string          `json:"response"`
	ContextUsed               string          `json:"context"`
	ProcessingDurationSeconds float64         `json:"processing_time_seconds"`
	Model                     string          `json:"model"`
	Route                     RoutingDecision `json:"route"`
}

// ChatLogSink persists chat log records.
type ChatLogSink interface {
	Append(ctx context.Context, record ChatLogRecord) error
}
