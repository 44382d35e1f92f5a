package slogx

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

type reqIDKey struct{}

func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

func FromContext(ctx context.Context) *slog.Logger {
	l, ok := ctx.Value(ctxKey{}).(*slog.Logger)
	if !ok {
		return slog.Default()
	}
	return l
}

// WithRequestID stores reqID on ctx and tags the contextual logger with it.
func WithRequestID(ctx context.Context, reqID string) context.Context {
	ctx = context.WithValue(ctx, reqIDKey{}, reqID)
	return WithContext(ctx, FromContext(ctx).With("req_id", reqID))
}

// RequestID returns the id stored by WithRequestID, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(reqIDKey{}).(string)
	return id
}

// Leveled is implemented by classified errors that know how loudly they
// should be logged.
type Leveled interface {
	error
	LogLevel() slog.Level
	LogAttrs() []any
}

// LogError writes err through the contextual logger at the level err
// chooses.
func LogError(ctx context.Context, msg string, err Leveled) {
	attrs := append([]any{"err", err.Error()}, err.LogAttrs()...)
	FromContext(ctx).Log(ctx, err.LogLevel(), msg, attrs...)
}
