package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContextFallback(t *testing.T) {
	fallback := zap.NewNop()
	assert.Same(t, fallback, FromContext(context.Background(), fallback))
}

func TestWithUpdateIDTagsEveryLogCall(t *testing.T) {
	obs, logs := observer.New(zap.DebugLevel)
	logger := zap.New(obs)

	ctx := WithUpdateID(context.Background(), logger, "12345")
	FromContext(ctx, zap.NewNop()).Info("handled")

	entries := logs.All()
	assert.Len(t, entries, 1)
	assert.Equal(t, "12345", entries[0].ContextMap()["update_id"])
}

func TestNotifyMirrorsToStatusChat(t *testing.T) {
	obs, logs := observer.New(zap.InfoLevel)
	notifier := &recordingNotifier{}
	reporter := NewEventReporter(zap.New(obs), notifier)

	reporter.Notify(context.Background(), "user 1 banned")

	assert.Equal(t, []string{"user 1 banned"}, notifier.texts)
	assert.Len(t, logs.All(), 1)
}

func TestNotifyWithoutNotifier(t *testing.T) {
	reporter := NewEventReporter(zap.NewNop(), nil)

	// Must not panic.
	reporter.Notify(context.Background(), "no status chat configured")
}

func TestEventCarriesCorrelationID(t *testing.T) {
	obs, logs := observer.New(zap.DebugLevel)
	logger := zap.New(obs)
	reporter := NewEventReporter(logger, nil)

	ctx := WithUpdateID(context.Background(), logger, "777")
	reporter.Event(ctx, "user_trusted", map[string]any{"user_id": int64(1)})

	entries := logs.All()
	assert.Len(t, entries, 1)
	m := entries[0].ContextMap()
	assert.Equal(t, "777", m["update_id"])
	assert.Equal(t, "user_trusted", m["event"])
}

func TestNewUpdateIDUnique(t *testing.T) {
	assert.NotEqual(t, NewUpdateID(), NewUpdateID())
}

type recordingNotifier struct {
	texts []string
}

func (n *recordingNotifier) NotifyOperator(ctx context.Context, text string) {
	n.texts = append(n.texts, text)
}
