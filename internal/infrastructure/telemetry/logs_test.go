package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerProvider_Disabled(t *testing.T) {
	base := zap.NewNop()
	lp, err := NewLoggerProvider(context.Background(), LogsConfig{Enabled: false}, base)
	require.NoError(t, err)

	assert.False(t, lp.IsEnabled())
	assert.Same(t, base, lp.Bridge(base))
	assert.NoError(t, lp.Shutdown(context.Background()))
}

func TestLevelFilterCore(t *testing.T) {
	inner, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(&levelFilterCore{Core: inner, minLevel: zapcore.WarnLevel})

	log.Info("budget applied")
	log.With(zap.String("budget_id", "b1")).Warn("retrying budget update")
	log.Error("compensation failed")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "retrying budget update", entries[0].Message)
	assert.Equal(t, "b1", entries[0].ContextMap()["budget_id"])
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
}
