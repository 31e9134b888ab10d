package ledger

import (
	"context"
	"errors"

	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/ledger"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/shared"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/infrastructure/logger"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// SettlementLinker keeps expense paid flags in step with the incomes that
// settle them.
type SettlementLinker struct {
	expenses shared.Collection[ledger.Expense]
	incomes  shared.Collection[ledger.Income]
	logger   *zap.Logger
	metrics  *telemetry.LedgerMetrics
}

// NewSettlementLinker creates a new SettlementLinker
func NewSettlementLinker(expenses shared.Collection[ledger.Expense], incomes shared.Collection[ledger.Income], logger *zap.Logger) *SettlementLinker {
	return &SettlementLinker{expenses: expenses, incomes: incomes, logger: logger}
}

// SetMetrics sets the metrics recorder
func (s *SettlementLinker) SetMetrics(metrics *telemetry.LedgerMetrics) {
	s.metrics = metrics
}

// Link marks every expense the income pays as paid. Ids that do not name an
// expense of the income's owner are reported missing and dropped from the
// income's expenses_paid list.
func (s *SettlementLinker) Link(ctx context.Context, income *ledger.Income, expenseIDs []string) (ledger.LinkResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "settlement_linker", "link")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrRecordID, income.ID, "expenses_count", len(expenseIDs))

	result := ledger.LinkResult{Linked: []string{}}
	for _, id := range sortedUnique(expenseIDs) {
		found, err := s.markPaid(ctx, income.OwnerID, id)
		if err != nil {
			telemetry.RecordError(span, err)
			return result, err
		}
		if !found {
			result.Missing = append(result.Missing, id)
			continue
		}
		result.Linked = append(result.Linked, id)
	}

	if len(result.Missing) > 0 {
		s.metrics.RecordSettlementMisses(ctx, len(result.Missing))
		logger.WithLogger(ctx, s.logger).Warn("income references unknown expenses",
			zap.String("income_id", income.ID),
			zap.Strings("missing", result.Missing),
		)
		for _, id := range result.Missing {
			_, err := s.incomes.ConditionalUpdate(ctx, income.ID, shared.AnyVersion, shared.Patch{
				Pull: map[string]any{ledger.FieldExpensesPaid: id},
			})
			if err != nil {
				telemetry.RecordError(span, err)
				return result, ledger.StoreError("drop missing expense from income", err)
			}
		}
		income.ExpensesPaid = result.Linked
	}
	return result, nil
}

func (s *SettlementLinker) markPaid(ctx context.Context, ownerID, expenseID string) (bool, error) {
	exp, err := s.expenses.FindByID(ctx, expenseID)
	if errors.Is(err, shared.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, ledger.StoreError("find expense "+expenseID, err)
	}
	if exp.OwnerID != ownerID {
		return false, nil
	}
	if exp.IsPaid {
		return true, nil
	}

	_, err = s.expenses.ConditionalUpdate(ctx, expenseID, shared.AnyVersion, shared.Patch{
		Set: map[string]any{ledger.FieldIsPaid: true},
	})
	if errors.Is(err, shared.ErrNotFound) {
		// deleted between read and write
		return false, nil
	}
	if err != nil {
		return false, ledger.StoreError("mark expense "+expenseID+" paid", err)
	}
	return true, nil
}

// Unlink reverts the settlements of an income that is about to go away. An
// expense another income of the same owner also pays stays paid.
func (s *SettlementLinker) Unlink(ctx context.Context, income *ledger.Income) (ledger.UnlinkResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "settlement_linker", "unlink")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrRecordID, income.ID)

	result := ledger.UnlinkResult{Reverted: []string{}}
	for _, id := range sortedUnique(income.ExpensesPaid) {
		exp, err := s.expenses.FindByID(ctx, id)
		if errors.Is(err, shared.ErrNotFound) {
			result.Missing = append(result.Missing, id)
			continue
		}
		if err != nil {
			telemetry.RecordError(span, err)
			return result, ledger.StoreError("find expense "+id, err)
		}
		if exp.OwnerID != income.OwnerID {
			result.Missing = append(result.Missing, id)
			continue
		}

		retained, err := s.paidElsewhere(ctx, income, id)
		if err != nil {
			telemetry.RecordError(span, err)
			return result, err
		}
		if retained {
			result.Retained = append(result.Retained, id)
			continue
		}

		if exp.IsPaid {
			_, err = s.expenses.ConditionalUpdate(ctx, id, shared.AnyVersion, shared.Patch{
				Set: map[string]any{ledger.FieldIsPaid: false},
			})
			if err != nil && !errors.Is(err, shared.ErrNotFound) {
				telemetry.RecordError(span, err)
				return result, ledger.StoreError("mark expense "+id+" unpaid", err)
			}
		}
		result.Reverted = append(result.Reverted, id)
	}

	logger.WithLogger(ctx, s.logger).Debug("income settlements reverted",
		zap.String("income_id", income.ID),
		zap.Int("reverted", len(result.Reverted)),
		zap.Int("retained", len(result.Retained)),
	)
	return result, nil
}

// paidElsewhere reports whether an income other than self lists expenseID
func (s *SettlementLinker) paidElsewhere(ctx context.Context, self *ledger.Income, expenseID string) (bool, error) {
	others, err := s.incomes.FindMany(ctx, shared.Filter{
		shared.FieldOwnerID:      self.OwnerID,
		ledger.FieldExpensesPaid: expenseID,
	})
	if err != nil {
		return false, ledger.StoreError("find incomes paying "+expenseID, err)
	}
	for _, other := range others {
		if other.ID != self.ID {
			return true, nil
		}
	}
	return false, nil
}

// Detach removes expenseID from every income of ownerID that lists it and
// returns how many incomes changed.
func (s *SettlementLinker) Detach(ctx context.Context, ownerID, expenseID string) (int, error) {
	incomes, err := s.incomes.FindMany(ctx, shared.Filter{
		shared.FieldOwnerID:      ownerID,
		ledger.FieldExpensesPaid: expenseID,
	})
	if err != nil {
		return 0, ledger.StoreError("find incomes paying "+expenseID, err)
	}

	updated := 0
	for _, inc := range incomes {
		modified, err := s.incomes.ConditionalUpdate(ctx, inc.ID, shared.AnyVersion, shared.Patch{
			Pull: map[string]any{ledger.FieldExpensesPaid: expenseID},
		})
		if errors.Is(err, shared.ErrNotFound) {
			continue
		}
		if err != nil {
			return updated, ledger.StoreError("detach expense from income "+inc.ID, err)
		}
		if modified {
			updated++
		}
	}
	return updated, nil
}
