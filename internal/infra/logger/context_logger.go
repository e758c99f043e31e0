package logger

import (
	"context"
	"log/slog"
)

type contextKey string

const (
	correlationIDKey contextKey = "rag.correlation.id"
	stageKey         contextKey = "rag.stage"
)

// WithCorrelationID stores the request correlation ID in the context.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDKey, correlationID)
}

// WithStage stores the active pipeline stage name in the context.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, stageKey, stage)
}

// FromContext returns base enriched with the request-scoped fields carried
// by ctx.
func FromContext(ctx context.Context, base *slog.Logger) *slog.Logger {
	log := base
	if id, ok := ctx.Value(correlationIDKey).(string); ok && id != "" {
		log = log.With(slog.String("correlation_id", id))
	}
	if stage, ok := ctx.Value(stageKey).(string); ok && stage != "" {
		log = log.With(slog.String("stage", stage))
	}
	return log
}
