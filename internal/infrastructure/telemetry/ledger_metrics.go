package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// Saga outcomes recorded on ledger_saga_total
const (
	OutcomeSuccess     = "success"
	OutcomePartial     = "partial"
	OutcomeFailed      = "failed"
	OutcomeCompensated = "compensated"
)

// ErrMeterNil is returned when a metrics set is built without a meter
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// LedgerMetrics holds the instruments of the consistency engine
type LedgerMetrics struct {
	sagaTotal        *Counter
	sagaDuration     *Histogram
	budgetConflicts  *Counter
	compensations    *Counter
	reconciliations  *Counter
	settlementMisses *Counter
}

// NewLedgerMetrics creates the ledger instruments on meter
func NewLedgerMetrics(meter metric.Meter) (*LedgerMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	m := &LedgerMetrics{}
	var err error

	if m.sagaTotal, err = NewCounter(meter, "ledger_saga_total", "Ledger sagas by outcome", "{sagas}"); err != nil {
		return nil, err
	}
	if m.sagaDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "ledger_saga_duration_seconds",
		Description: "Duration of ledger sagas",
		Unit:        "s",
		Boundaries:  SagaDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.budgetConflicts, err = NewCounter(meter, "ledger_budget_conflicts_total", "Optimistic concurrency conflicts on budget updates", "{conflicts}"); err != nil {
		return nil, err
	}
	if m.compensations, err = NewCounter(meter, "ledger_compensations_total", "Compensating actions run by sagas", "{compensations}"); err != nil {
		return nil, err
	}
	if m.reconciliations, err = NewCounter(meter, "ledger_reconciliation_required_total", "Failed compensations that need an operator", "{events}"); err != nil {
		return nil, err
	}
	if m.settlementMisses, err = NewCounter(meter, "ledger_settlement_missing_total", "Expense ids an income referenced but could not settle", "{expenses}"); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordSaga records one finished saga. A nil receiver is a no-op.
func (m *LedgerMetrics) RecordSaga(ctx context.Context, saga, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.sagaTotal.Inc(ctx, AttrSaga.String(saga), AttrOutcome.String(outcome))
	m.sagaDuration.RecordDuration(ctx, d, AttrSaga.String(saga))
}

// RecordBudgetConflict counts a lost conditional update on a budget
func (m *LedgerMetrics) RecordBudgetConflict(ctx context.Context) {
	if m == nil {
		return
	}
	m.budgetConflicts.Inc(ctx)
}

// RecordCompensation counts a compensating action
func (m *LedgerMetrics) RecordCompensation(ctx context.Context, saga string) {
	if m == nil {
		return
	}
	m.compensations.Inc(ctx, AttrSaga.String(saga))
}

// RecordReconciliationRequired counts a failed compensation
func (m *LedgerMetrics) RecordReconciliationRequired(ctx context.Context, saga string) {
	if m == nil {
		return
	}
	m.reconciliations.Inc(ctx, AttrSaga.String(saga))
}

// RecordSettlementMisses counts expense ids that could not be settled
func (m *LedgerMetrics) RecordSettlementMisses(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}
	m.settlementMisses.Add(ctx, int64(n))
}
