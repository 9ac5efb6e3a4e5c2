package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestEventCarriesRequestID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx := ContextWithRequestID(context.Background(), "req-1")

	Event(ctx, zap.New(core), "page_view", zap.String("page", "home"))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "page_view", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "home", fields["page"])
	assert.Equal(t, "page_view", fields["event"])
}

func TestEventToleratesNilLogger(t *testing.T) {
	assert.NotPanics(t, func() { Event(context.Background(), nil, "noop") })
}

func TestNewFallsBackToInfo(t *testing.T) {
	log, err := New(Config{Level: "chatty", Encoding: "console"})
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zap.InfoLevel))
	assert.False(t, log.Core().Enabled(zap.DebugLevel))
}
