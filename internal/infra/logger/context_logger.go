package logger

import (
	"context"
	"log/slog"
)

type ContextKey string

// Request context keys, prefixed like OpenTelemetry attribute names.
const (
	RequestIDKey ContextKey = "ragchat.request.id"
	StageKey     ContextKey = "ragchat.pipeline.stage"
	RouteKey     ContextKey = "ragchat.pipeline.route"
)

var contextKeys = []ContextKey{RequestIDKey, StageKey, RouteKey}

// WithRequestID adds the request ID to context for observability
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithStage adds the current pipeline stage to context
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, StageKey, stage)
}

// WithRoute adds the routing label to context
func WithRoute(ctx context.Context, route string) context.Context {
	return context.WithValue(ctx, RouteKey, route)
}

// RequestID returns the request ID stored in ctx, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

func contextAttrs(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var attrs []slog.Attr
	for _, key := range contextKeys {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			attrs = append(attrs, slog.String(string(key), v))
		}
	}
	return attrs
}
