package ledger

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/ledger"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/shared"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/shared/valueobject"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/infrastructure/logger"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/infrastructure/telemetry"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const sagaBudgetLedger = "budget_ledger"

// BudgetLedger moves budget amounts for expenses and keeps the append-only
// history that every amount must be derivable from.
type BudgetLedger struct {
	budgets   shared.Collection[ledger.Budget]
	history   shared.Collection[ledger.BudgetHistoryEntry]
	opts      Options
	logger    *zap.Logger
	publisher shared.EventPublisher
	metrics   *telemetry.LedgerMetrics
}

// NewBudgetLedger creates a new BudgetLedger
func NewBudgetLedger(
	budgets shared.Collection[ledger.Budget],
	history shared.Collection[ledger.BudgetHistoryEntry],
	opts Options,
	logger *zap.Logger,
) *BudgetLedger {
	return &BudgetLedger{
		budgets: budgets,
		history: history,
		opts:    opts.withDefaults(),
		logger:  logger,
	}
}

// SetEventPublisher sets the publisher for budget_applied events
func (l *BudgetLedger) SetEventPublisher(publisher shared.EventPublisher) {
	l.publisher = publisher
}

// SetMetrics sets the metrics recorder
func (l *BudgetLedger) SetMetrics(metrics *telemetry.LedgerMetrics) {
	l.metrics = metrics
}

// ApplyExpense adds the expense amount to each budget, in ascending id order,
// and appends one history entry per budget. Budgets already carrying the
// expense are reported as already applied and left alone, so a retried run
// never counts an expense twice.
func (l *BudgetLedger) ApplyExpense(ctx context.Context, expense *ledger.Expense, budgetIDs []string) ledger.ApplyResult {
	return l.run(ctx, "apply_expense", expense, budgetIDs, ledger.EntryKindApply)
}

// ReverseExpense undoes ApplyExpense with reversal entries. Budgets the
// expense is not currently applied to are reported as not applied.
func (l *BudgetLedger) ReverseExpense(ctx context.Context, expense *ledger.Expense, budgetIDs []string) ledger.ApplyResult {
	return l.run(ctx, "reverse_expense", expense, budgetIDs, ledger.EntryKindReversal)
}

func (l *BudgetLedger) run(ctx context.Context, method string, expense *ledger.Expense, budgetIDs []string, kind ledger.EntryKind) ledger.ApplyResult {
	ctx, span := telemetry.StartServiceSpan(ctx, sagaBudgetLedger, method)
	defer span.End()

	ids := sortedUnique(budgetIDs)
	telemetry.SetAttributes(span,
		telemetry.SpanAttrRecordID, expense.ID,
		telemetry.SpanAttrAmount, int64(expense.Amount),
		telemetry.SpanAttrBudgets, len(ids),
	)

	result := ledger.ApplyResult{Applied: make([]ledger.BudgetApplication, 0, len(ids))}
	for _, id := range ids {
		app, err := l.applyOne(ctx, expense, id, kind)
		if err != nil {
			result.Failures = append(result.Failures, ledger.BudgetFailure{
				BudgetID: id,
				Code:     failureCode(err),
				Err:      err,
			})
			logger.WithLogger(ctx, l.logger).Warn("budget update failed",
				zap.String("saga", sagaBudgetLedger),
				zap.String("step", string(kind)),
				zap.String("budget_id", id),
				zap.String("record_id", expense.ID),
				zap.Int("attempts", app.Attempts),
				zap.Error(err),
			)
			continue
		}
		result.Applied = append(result.Applied, app)
	}

	if err := result.FirstError(); err != nil {
		telemetry.RecordError(span, err)
	}
	return result
}

// errClaimHeld and errClaimMissing stop a shift whose claim on the budget
// already says the step happened or cannot happen.
var (
	errClaimHeld    = errors.New("record already applied to budget")
	errClaimMissing = errors.New("record not applied to budget")
)

func (l *BudgetLedger) applyOne(ctx context.Context, expense *ledger.Expense, budgetID string, kind ledger.EntryKind) (ledger.BudgetApplication, error) {
	app := ledger.BudgetApplication{BudgetID: budgetID}

	// History answers a plain retry early; the claim on the budget settles
	// callers racing on the same record.
	entries, err := l.history.FindMany(ctx, shared.Filter{
		shared.FieldOwnerID:  expense.OwnerID,
		ledger.FieldBudgetID: budgetID,
		ledger.FieldRecordID: expense.ID,
	})
	if err != nil {
		return app, ledger.StoreError("find budget history", err)
	}
	net := ledger.NetApplications(entries, expense.ID)
	if kind == ledger.EntryKindApply && net > 0 {
		app.Status = ledger.ApplicationAlreadyApplied
		return app, nil
	}
	if kind == ledger.EntryKindReversal && net <= 0 {
		app.Status = ledger.ApplicationNotApplied
		return app, nil
	}

	delta := expense.Amount
	if kind == ledger.EntryKindReversal {
		delta = delta.Neg()
	}
	shift, err := l.shiftAmount(ctx, budgetID, expense, delta, kind, kind == ledger.EntryKindApply)
	app.Attempts = shift.attempts
	switch {
	case errors.Is(err, errClaimHeld):
		app.Status = ledger.ApplicationAlreadyApplied
		return app, nil
	case errors.Is(err, errClaimMissing):
		app.Status = ledger.ApplicationNotApplied
		return app, nil
	case err != nil:
		return app, err
	}

	entry := ledger.NewBudgetHistoryEntry(shift.budget, expense, kind, shift.before, shift.after)
	if err := l.history.Insert(ctx, entry); err != nil {
		return app, l.revertShift(ctx, expense, budgetID, delta, kind, err)
	}

	app.Status = ledger.ApplicationApplied
	if kind == ledger.EntryKindReversal {
		app.Status = ledger.ApplicationReversed
	}
	app.AmountBefore = shift.before
	app.AmountAfter = shift.after
	app.HistoryEntryID = entry.ID

	if l.publisher != nil {
		if err := l.publisher.Publish(ctx, ledger.NewBudgetAppliedEvent(entry)); err != nil {
			logger.WithLogger(ctx, l.logger).Warn("failed to publish budget event",
				zap.String("budget_id", budgetID), zap.Error(err))
		}
	}
	return app, nil
}

type amountShift struct {
	budget   *ledger.Budget
	before   valueobject.Money
	after    valueobject.Money
	attempts int
}

// shiftAmount adds delta to the budget's current amount and moves the
// expense's claim with a conditional update on the version it read, retrying
// with backoff while other writers win. An apply adds the claim and a reversal
// removes it, so two runs for the same expense cannot both move the amount.
func (l *BudgetLedger) shiftAmount(ctx context.Context, budgetID string, expense *ledger.Expense, delta valueobject.Money, kind ledger.EntryKind, requireActive bool) (amountShift, error) {
	var shift amountShift

	op := func() error {
		shift.attempts++
		b, err := l.budgets.FindByID(ctx, budgetID)
		if err != nil {
			return backoff.Permanent(ledger.StoreError("find budget "+budgetID, err))
		}
		if b.OwnerID != expense.OwnerID {
			return backoff.Permanent(shared.WrapDomainError(ledger.ErrUnauthorized, "budget "+budgetID+" belongs to another user", nil))
		}

		next := b.CurrentAmount.Add(delta)
		patch := shared.Patch{Set: map[string]any{ledger.FieldBudgetCurrentAmount: next}}
		claim := map[string]any{ledger.FieldBudgetAppliedRecords: expense.ID}
		if kind == ledger.EntryKindApply {
			if b.HasApplied(expense.ID) {
				return backoff.Permanent(errClaimHeld)
			}
			patch.AddToSet = claim
		} else {
			if !b.HasApplied(expense.ID) {
				return backoff.Permanent(errClaimMissing)
			}
			patch.Pull = claim
		}
		if requireActive && !b.IsActive {
			return backoff.Permanent(ledger.NewValidationError(ledger.FieldViolation{
				Field:   "linked_budgets",
				Message: "budget " + budgetID + " is not active",
			}))
		}

		_, err = l.budgets.ConditionalUpdate(ctx, b.ID, b.Version, patch)
		if errors.Is(err, shared.ErrConcurrencyConflict) {
			l.metrics.RecordBudgetConflict(ctx)
			return err
		}
		if err != nil {
			return backoff.Permanent(ledger.StoreError("update budget "+budgetID, err))
		}
		shift.budget, shift.before, shift.after = b, b.CurrentAmount, next
		return nil
	}

	err := backoff.Retry(op, l.opts.newBackOff(ctx))
	if errors.Is(err, shared.ErrConcurrencyConflict) {
		err = shared.WrapDomainError(ledger.ErrBudgetConcurrencyConflict,
			fmt.Sprintf("budget %s still contended after %d attempts", budgetID, shift.attempts), err)
	}
	return shift, err
}

// revertShift takes back an amount change, and the claim moved with it, whose
// history entry could not be written. The revert is relative, so changes
// other writers made in between are kept.
func (l *BudgetLedger) revertShift(ctx context.Context, expense *ledger.Expense, budgetID string, delta valueobject.Money, kind ledger.EntryKind, cause error) error {
	partial := shared.WrapDomainError(ledger.ErrPartialBudgetUpdateFailure,
		"budget "+budgetID+" history entry not written, amount reverted", cause)
	l.metrics.RecordCompensation(ctx, sagaBudgetLedger)

	undo := ledger.EntryKindReversal
	if kind == ledger.EntryKindReversal {
		undo = ledger.EntryKindApply
	}
	if _, err := l.shiftAmount(ctx, budgetID, expense, delta.Neg(), undo, false); err != nil {
		l.metrics.RecordReconciliationRequired(ctx, sagaBudgetLedger)
		logger.WithLogger(ctx, l.logger).Error("budget amount drifted from history",
			zap.String("saga", sagaBudgetLedger),
			zap.String("budget_id", budgetID),
			zap.String("record_id", expense.ID),
			zap.Int64("unrecorded_delta", int64(delta)),
			zap.Error(err),
		)
		return &ledger.ReconciliationError{
			Saga:     sagaBudgetLedger,
			RecordID: expense.ID,
			Cause:    partial,
			Pending:  []string{budgetID},
		}
	}
	return partial
}

// Audit recomputes a budget's amount from its history
func (l *BudgetLedger) Audit(ctx context.Context, ownerID, budgetID string) (*ledger.BudgetAudit, error) {
	b, err := l.budgets.FindByID(ctx, budgetID)
	if err != nil {
		return nil, ledger.StoreError("find budget "+budgetID, err)
	}
	if b.OwnerID != ownerID {
		return nil, shared.WrapDomainError(ledger.ErrUnauthorized, "budget "+budgetID+" belongs to another user", nil)
	}
	entries, err := l.history.FindMany(ctx, shared.Filter{
		shared.FieldOwnerID:  ownerID,
		ledger.FieldBudgetID: budgetID,
	})
	if err != nil {
		return nil, ledger.StoreError("find budget history", err)
	}

	expected := ledger.ExpectedCurrentAmount(b.InitialAmount, entries)
	return &ledger.BudgetAudit{
		BudgetID:       b.ID,
		InitialAmount:  b.InitialAmount,
		CurrentAmount:  b.CurrentAmount,
		ExpectedAmount: expected,
		Entries:        len(entries),
		Consistent:     expected == b.CurrentAmount,
	}, nil
}

func failureCode(err error) string {
	if errors.Is(err, ledger.ErrManualReconciliationRequired) {
		return ledger.ErrManualReconciliationRequired.Code
	}
	if errors.Is(err, ledger.ErrValidation) {
		return ledger.ErrValidation.Code
	}
	return shared.CodeOf(err)
}

func sortedUnique(ids []string) []string {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}
