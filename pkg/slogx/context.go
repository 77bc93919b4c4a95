package slogx

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the logger stored in ctx, or slog.Default.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := fromContext(ctx); ok {
		return l
	}
	return slog.Default()
}

func fromContext(ctx context.Context) (*slog.Logger, bool) {
	l, ok := ctx.Value(ctxKey{}).(*slog.Logger)
	return l, ok && l != nil
}

// WithAttemptID tags every log line of one login attempt.
func WithAttemptID(ctx context.Context, attemptID string) context.Context {
	return WithContext(ctx, FromContext(ctx).With("attempt_id", attemptID))
}
