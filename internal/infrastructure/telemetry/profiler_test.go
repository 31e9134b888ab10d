package telemetry_test

import (
	"context"
	"runtime/pprof"
	"testing"

	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewProfiler(t *testing.T) {
	t.Run("disabled is a no-op", func(t *testing.T) {
		p, err := telemetry.NewProfiler(telemetry.ProfilerConfig{}, zaptest.NewLogger(t))
		require.NoError(t, err)
		assert.False(t, p.IsEnabled())
		assert.NoError(t, p.Stop(context.Background()))
		assert.NoError(t, p.Stop(context.Background()))
	})

	t.Run("enabled without a server is rejected", func(t *testing.T) {
		_, err := telemetry.NewProfiler(telemetry.ProfilerConfig{Enabled: true, ApplicationName: "budget-ledger"}, zaptest.NewLogger(t))
		assert.Error(t, err)
	})
}

func TestWithProfilingLabels(t *testing.T) {
	var got string
	var ok bool
	telemetry.WithProfilingLabels(context.Background(), func(ctx context.Context) {
		got, ok = pprof.Label(ctx, "command")
	}, "command", "ledger expense create")

	assert.True(t, ok)
	assert.Equal(t, "ledger expense create", got)

	t.Run("odd label list runs fn unlabelled", func(t *testing.T) {
		called := false
		telemetry.WithProfilingLabels(context.Background(), func(ctx context.Context) {
			called = true
			_, ok := pprof.Label(ctx, "command")
			assert.False(t, ok)
		}, "command")
		assert.True(t, called)
	})
}
