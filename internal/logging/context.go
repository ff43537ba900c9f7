package logging

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ctxKey struct{}

// WithUpdateID returns a context carrying a logger tagged with the triggering
// update's correlation id. Handlers set it once at entry; every log call made
// while handling that update picks the id up through FromContext without the
// id being threaded through each signature.
func WithUpdateID(ctx context.Context, logger *zap.Logger, updateID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger.With(zap.String("update_id", updateID)))
}

// FromContext returns the context-scoped logger, or the fallback when the
// handler never set one (startup, tests).
func FromContext(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if logger, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
		return logger
	}
	return fallback
}

// UpdateID renders a platform update id as a correlation id.
func UpdateID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// NewUpdateID mints a correlation id for work with no platform update behind
// it, such as administrative commands.
func NewUpdateID() string {
	return uuid.NewString()
}
