package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

func zapNop() *zap.Logger { return zap.NewNop() }

func newTestMeter(t *testing.T) (*sdkmetric.ManualReader, *telemetry.LedgerMetrics) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := telemetry.NewLedgerMetrics(provider.Meter("test"))
	require.NoError(t, err)
	return reader, m
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumOf(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	cfg := telemetry.MetricsConfig{Enabled: false, ServiceName: "test-service", ExportInterval: time.Minute}

	mp, err := telemetry.NewMeterProvider(context.Background(), cfg, zapNop())
	require.NoError(t, err)

	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("x"))
	assert.NoError(t, mp.Shutdown(context.Background()))
}

func TestNewLedgerMetrics_NilMeter(t *testing.T) {
	_, err := telemetry.NewLedgerMetrics(nil)
	assert.ErrorIs(t, err, telemetry.ErrMeterNil)
}

func TestLedgerMetrics_Record(t *testing.T) {
	reader, m := newTestMeter(t)
	ctx := context.Background()

	m.RecordSaga(ctx, "create_expense", telemetry.OutcomeSuccess, 20*time.Millisecond)
	m.RecordSaga(ctx, "create_expense", telemetry.OutcomeCompensated, 30*time.Millisecond)
	m.RecordBudgetConflict(ctx)
	m.RecordBudgetConflict(ctx)
	m.RecordCompensation(ctx, "create_expense")
	m.RecordReconciliationRequired(ctx, "create_expense")
	m.RecordSettlementMisses(ctx, 2)
	m.RecordSettlementMisses(ctx, 0)

	got := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, got["ledger_saga_total"]))
	assert.Equal(t, int64(2), sumOf(t, got["ledger_budget_conflicts_total"]))
	assert.Equal(t, int64(1), sumOf(t, got["ledger_compensations_total"]))
	assert.Equal(t, int64(1), sumOf(t, got["ledger_reconciliation_required_total"]))
	assert.Equal(t, int64(2), sumOf(t, got["ledger_settlement_missing_total"]))

	hist, ok := got["ledger_saga_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(2), hist.DataPoints[0].Count)
	saga, _ := hist.DataPoints[0].Attributes.Value(attribute.Key("saga"))
	assert.Equal(t, "create_expense", saga.AsString())
}

func TestLedgerMetrics_NilReceiver(t *testing.T) {
	var m *telemetry.LedgerMetrics
	assert.NotPanics(t, func() {
		m.RecordSaga(context.Background(), "x", telemetry.OutcomeFailed, time.Second)
		m.RecordBudgetConflict(context.Background())
		m.RecordCompensation(context.Background(), "x")
		m.RecordReconciliationRequired(context.Background(), "x")
		m.RecordSettlementMisses(context.Background(), 1)
	})
}
