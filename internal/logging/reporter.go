package logging

import (
	"context"

	"go.uber.org/zap"
)

// StatusNotifier pushes an elevated event somewhere a human operator watches,
// typically a status chat on the platform. Failures are the notifier's to
// swallow.
type StatusNotifier interface {
	NotifyOperator(ctx context.Context, text string)
}

// EventReporter emits the engine's structured sub-events at debug level and
// its elevated human-readable events at info level, mirroring the elevated
// ones to the status notifier when one is configured.
type EventReporter struct {
	logger   *zap.Logger
	notifier StatusNotifier
}

// NewEventReporter creates a reporter. notifier may be nil.
func NewEventReporter(logger *zap.Logger, notifier StatusNotifier) *EventReporter {
	return &EventReporter{logger: logger, notifier: notifier}
}

// Event logs one structured sub-event with the context-scoped logger so the
// correlation id rides along.
func (r *EventReporter) Event(ctx context.Context, name string, fields map[string]any) {
	log := FromContext(ctx, r.logger)
	zapFields := make([]zap.Field, 0, len(fields)+1)
	zapFields = append(zapFields, zap.String("event", name))
	for k, v := range fields {
		zapFields = append(zapFields, zap.Any(k, v))
	}
	log.Debug("Engine event", zapFields...)
}

// Notify emits the single elevated event for a triggering update.
func (r *EventReporter) Notify(ctx context.Context, text string) {
	FromContext(ctx, r.logger).Info(text)
	if r.notifier != nil {
		r.notifier.NotifyOperator(ctx, text)
	}
}
