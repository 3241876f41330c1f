package usecase

import (
	"time"

	"rag-chat/internal/domain"
)

// Request outcomes reported to PipelineMetrics.
const (
	OutcomeOK             = "ok"
	OutcomeRetrievalError = "retrieval_error"
	OutcomeGenerationFail = "generation_error"
	OutcomeCancelled      = "cancelled"
	OutcomeInternalError  = "internal_error"
)

// PipelineMetrics receives pipeline observations.
type PipelineMetrics interface {
	RecordRequest(outcome string)
	RecordStage(stage string, d time.Duration)
	RecordDegraded(kind domain.DegradeKind)
}

type noopMetrics struct{}

func (noopMetrics) RecordRequest(string)              {}
func (noopMetrics) RecordStage(string, time.Duration) {}
func (noopMetrics) RecordDegraded(domain.DegradeKind) {}

func metricsOrNoop(m PipelineMetrics) PipelineMetrics {
	if m == nil {
		return noopMetrics{}
	}
	return m
}
