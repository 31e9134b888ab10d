package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/ledger"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/shared"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/infrastructure/logger"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/infrastructure/telemetry"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	sagaCreateExpense = "create_expense"
	sagaCreateIncome  = "create_income"
	sagaDeleteExpense = "delete_expense"
	sagaDeleteIncome  = "delete_income"
	sagaAdjustBalance = "adjust_balance"
)

// RecordOrchestrator runs the record sagas. Each saga validates the command,
// checks references, persists the primary record and then drives the budget
// ledger or the settlement linker. There is no transaction across steps; a
// retried command carrying the same RecordID resumes instead of duplicating.
type RecordOrchestrator struct {
	store     *ledger.Store
	resolver  *CategoryResolver
	budgets   *BudgetLedger
	linker    *SettlementLinker
	cascade   *AccountCascadeDeleter
	validator *commandValidator
	opts      Options
	logger    *zap.Logger
	publisher shared.EventPublisher
	metrics   *telemetry.LedgerMetrics
}

// NewRecordOrchestrator wires the engine components over one store
func NewRecordOrchestrator(store *ledger.Store, opts Options, logger *zap.Logger) *RecordOrchestrator {
	opts = opts.withDefaults()
	linker := NewSettlementLinker(store.Expenses, store.Incomes, logger)
	return &RecordOrchestrator{
		store:     store,
		resolver:  NewCategoryResolver(store.Categories, logger),
		budgets:   NewBudgetLedger(store.Budgets, store.BudgetHistory, opts, logger),
		linker:    linker,
		cascade:   NewAccountCascadeDeleter(store.Accounts, store.Expenses, store.Incomes, linker, logger),
		validator: newCommandValidator(opts.MaxLinkedBudgets),
		opts:      opts,
		logger:    logger,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (o *RecordOrchestrator) SetEventPublisher(publisher shared.EventPublisher) {
	o.publisher = publisher
	o.budgets.SetEventPublisher(publisher)
}

// SetMetrics sets the metrics recorder on every component
func (o *RecordOrchestrator) SetMetrics(metrics *telemetry.LedgerMetrics) {
	o.metrics = metrics
	o.budgets.SetMetrics(metrics)
	o.linker.SetMetrics(metrics)
}

// CreateExpense records an expense and applies it to its linked budgets. When
// the ledger cannot apply every budget the saga compensates once by reversing
// what was applied and deleting the expense, then returns the ledger failure.
func (o *RecordOrchestrator) CreateExpense(ctx context.Context, cmd ledger.CreateExpenseCommand) (*ledger.CreateExpenseResult, error) {
	start := time.Now()
	ctx, span := telemetry.StartServiceSpan(ctx, "record_orchestrator", sagaCreateExpense)
	defer span.End()
	ctx = logger.WithOwnerID(ctx, cmd.OwnerID)

	result, outcome, err := o.createExpense(ctx, &cmd)
	o.metrics.RecordSaga(ctx, sagaCreateExpense, outcome, time.Since(start))
	if err != nil {
		telemetry.RecordError(span, err)
		return result, err
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrRecordID, result.Expense.ID, "resumed", result.Resumed)
	telemetry.SetOK(span)
	return result, nil
}

func (o *RecordOrchestrator) createExpense(ctx context.Context, cmd *ledger.CreateExpenseCommand) (*ledger.CreateExpenseResult, string, error) {
	if err := o.validator.Expense(*cmd); err != nil {
		return nil, telemetry.OutcomeFailed, err
	}
	if cmd.RecordID == "" {
		cmd.RecordID = uuid.NewString()
	}
	log := logger.WithLogger(ctx, o.logger).With(
		zap.String("saga", sagaCreateExpense),
		zap.String("record_id", cmd.RecordID),
	)
	result := &ledger.CreateExpenseResult{}

	expense, err := o.existingExpense(ctx, cmd.RecordID, cmd.OwnerID)
	if err != nil {
		return nil, telemetry.OutcomeFailed, err
	}
	if expense != nil {
		log.Info("resuming expense", zap.String("step", "apply_budgets"))
		result.Resumed = true
		result.Category = ledger.ResolveResult{CategoryID: expense.CategoryID, Note: ledger.ResolutionUnchanged}
	} else {
		log.Debug("verifying references", zap.String("step", "verify"))
		if err := o.verifyAccount(ctx, cmd.AccountID, cmd.OwnerID); err != nil {
			return nil, telemetry.OutcomeFailed, err
		}
		if err := o.verifyBudgets(ctx, cmd.LinkedBudgets, cmd.OwnerID); err != nil {
			return nil, telemetry.OutcomeFailed, err
		}
		resolved, err := o.resolver.Resolve(ctx, cmd.Category, cmd.SubCategory, cmd.OwnerID)
		if err != nil {
			return nil, telemetry.OutcomeFailed, err
		}
		result.Category = resolved

		expense = ledger.NewExpense(*cmd, resolved.CategoryID)
		err = o.store.Expenses.Insert(ctx, expense)
		if errors.Is(err, shared.ErrAlreadyExists) {
			// a concurrent retry of the same command persisted it first
			if expense, err = o.existingExpense(ctx, cmd.RecordID, cmd.OwnerID); err == nil && expense == nil {
				err = shared.WrapDomainError(ledger.ErrNotFound, "expense "+cmd.RecordID+" vanished during insert", nil)
			}
			result.Resumed = true
		}
		if err != nil {
			return nil, telemetry.OutcomeFailed, ledger.StoreError("insert expense", err)
		}
		log.Info("expense persisted", zap.String("step", "persist"))
	}
	result.Expense = expense

	if len(expense.LinkedBudgets) > 0 {
		result.Budgets = o.budgets.ApplyExpense(ctx, expense, expense.LinkedBudgets)
		if !result.Budgets.OK() {
			return o.compensateExpense(ctx, log, result)
		}
	} else {
		result.Budgets = ledger.ApplyResult{Applied: []ledger.BudgetApplication{}}
	}

	o.publish(ctx, ledger.NewExpenseCreatedEvent(expense))
	log.Info("expense recorded",
		zap.String("step", "respond"),
		zap.Int("budgets", len(result.Budgets.Applied)),
		zap.Bool("resumed", result.Resumed),
	)
	return result, telemetry.OutcomeSuccess, nil
}

// compensateExpense reverses every budget the expense is applied to and
// deletes the expense. It runs once; anything it cannot undo is escalated.
func (o *RecordOrchestrator) compensateExpense(ctx context.Context, log *logger.ContextLogger, result *ledger.CreateExpenseResult) (*ledger.CreateExpenseResult, string, error) {
	expense := result.Expense
	cause := &ledger.BudgetApplyError{RecordID: expense.ID, Result: result.Budgets}
	log.Warn("budget ledger failed, compensating", zap.String("step", "compensate"), zap.Error(cause))
	o.metrics.RecordCompensation(ctx, sagaCreateExpense)

	var pending []string
	// amounts already moved without history cannot be reversed from history
	for _, f := range result.Budgets.Failures {
		if errors.Is(f.Err, ledger.ErrManualReconciliationRequired) {
			pending = append(pending, f.BudgetID)
		}
	}
	reversal := o.budgets.ReverseExpense(ctx, expense, expense.LinkedBudgets)
	for _, f := range reversal.Failures {
		pending = append(pending, f.BudgetID)
	}
	if len(pending) == 0 {
		if _, err := o.store.Expenses.DeleteByID(ctx, expense.ID); err != nil {
			log.Error("failed to delete expense during compensation", zap.Error(err))
			pending = append(pending, expense.ID)
		}
	}

	if len(pending) > 0 {
		rerr := &ledger.ReconciliationError{
			Saga:     sagaCreateExpense,
			RecordID: expense.ID,
			Cause:    cause,
			Pending:  sortedUnique(pending),
		}
		o.metrics.RecordReconciliationRequired(ctx, sagaCreateExpense)
		o.publish(ctx, ledger.NewReconciliationRequiredEvent(expense.OwnerID, rerr))
		log.Error("compensation incomplete", zap.Strings("pending", rerr.Pending), zap.Error(rerr))
		return result, telemetry.OutcomeFailed, rerr
	}

	result.Compensated = true
	log.Info("expense compensated", zap.Int("reversed", len(reversal.Applied)))
	return result, telemetry.OutcomeCompensated, cause
}

// CreateIncome records an income and marks the expenses it pays. Unknown
// expense ids are reported on the result; the income is kept.
func (o *RecordOrchestrator) CreateIncome(ctx context.Context, cmd ledger.CreateIncomeCommand) (*ledger.CreateIncomeResult, error) {
	start := time.Now()
	ctx, span := telemetry.StartServiceSpan(ctx, "record_orchestrator", sagaCreateIncome)
	defer span.End()
	ctx = logger.WithOwnerID(ctx, cmd.OwnerID)

	result, err := o.createIncome(ctx, &cmd)
	outcome := telemetry.OutcomeSuccess
	switch {
	case err != nil:
		outcome = telemetry.OutcomeFailed
		telemetry.RecordError(span, err)
	case len(result.Settled.Missing) > 0:
		outcome = telemetry.OutcomePartial
	}
	o.metrics.RecordSaga(ctx, sagaCreateIncome, outcome, time.Since(start))
	return result, err
}

func (o *RecordOrchestrator) createIncome(ctx context.Context, cmd *ledger.CreateIncomeCommand) (*ledger.CreateIncomeResult, error) {
	if err := o.validator.Income(*cmd); err != nil {
		return nil, err
	}
	if cmd.RecordID == "" {
		cmd.RecordID = uuid.NewString()
	}
	log := logger.WithLogger(ctx, o.logger).With(
		zap.String("saga", sagaCreateIncome),
		zap.String("record_id", cmd.RecordID),
	)
	result := &ledger.CreateIncomeResult{}

	income, err := o.existingIncome(ctx, cmd.RecordID, cmd.OwnerID)
	if err != nil {
		return nil, err
	}
	if income != nil {
		log.Info("resuming income", zap.String("step", "link"))
		result.Resumed = true
		result.Category = ledger.ResolveResult{CategoryID: income.CategoryID, Note: ledger.ResolutionUnchanged}
	} else {
		if err := o.verifyAccount(ctx, cmd.AccountID, cmd.OwnerID); err != nil {
			return nil, err
		}
		resolved, err := o.resolver.Resolve(ctx, cmd.Category, cmd.SubCategory, cmd.OwnerID)
		if err != nil {
			return nil, err
		}
		result.Category = resolved

		income = ledger.NewIncome(*cmd, resolved.CategoryID)
		err = o.store.Incomes.Insert(ctx, income)
		if errors.Is(err, shared.ErrAlreadyExists) {
			if income, err = o.existingIncome(ctx, cmd.RecordID, cmd.OwnerID); err == nil && income == nil {
				err = shared.WrapDomainError(ledger.ErrNotFound, "income "+cmd.RecordID+" vanished during insert", nil)
			}
			result.Resumed = true
		}
		if err != nil {
			return nil, ledger.StoreError("insert income", err)
		}
		log.Info("income persisted", zap.String("step", "persist"))
	}
	result.Income = income

	settled, err := o.linker.Link(ctx, income, income.ExpensesPaid)
	result.Settled = settled
	if err != nil {
		// the income stays; retrying the command resumes at this step
		log.Warn("settlement link failed", zap.String("step", "link"), zap.Error(err))
		return result, err
	}

	o.publish(ctx, ledger.NewIncomeCreatedEvent(income))
	if len(settled.Linked) > 0 || len(settled.Missing) > 0 {
		o.publish(ctx, ledger.NewExpensesSettledEvent(income, settled))
	}
	log.Info("income recorded",
		zap.String("step", "respond"),
		zap.Int("linked", len(settled.Linked)),
		zap.Int("missing", len(settled.Missing)),
	)
	return result, nil
}

// DeleteAccount deletes an account and every record on it
func (o *RecordOrchestrator) DeleteAccount(ctx context.Context, cmd ledger.DeleteAccountCommand) (*ledger.DeleteAccountResult, error) {
	start := time.Now()
	if err := o.validator.Struct(cmd); err != nil {
		return nil, err
	}
	ctx = logger.WithOwnerID(ctx, cmd.OwnerID)

	cascade, err := o.cascade.DeleteAccountCascade(ctx, cmd.AccountID, cmd.OwnerID)
	result := &ledger.DeleteAccountResult{
		ExpensesDeleted: cascade.ExpensesDeleted,
		IncomesDeleted:  cascade.IncomesDeleted,
		AccountDeleted:  cascade.AccountDeleted,
	}
	for _, outcome := range cascade.Outcomes {
		if outcome.Status == ledger.OutcomeFailed {
			result.PartialFailures = append(result.PartialFailures, outcome)
		}
	}

	switch {
	case errors.Is(err, ledger.ErrPartialCascadeFailure):
		o.metrics.RecordSaga(ctx, sagaDeleteAccount, telemetry.OutcomePartial, time.Since(start))
		return result, err
	case err != nil:
		o.metrics.RecordSaga(ctx, sagaDeleteAccount, telemetry.OutcomeFailed, time.Since(start))
		return result, err
	}

	if !cascade.AlreadyDeleted || cascade.ExpensesDeleted+cascade.IncomesDeleted > 0 {
		o.publish(ctx, ledger.NewAccountDeletedEvent(cmd.OwnerID, cascade))
	}
	o.metrics.RecordSaga(ctx, sagaDeleteAccount, telemetry.OutcomeSuccess, time.Since(start))
	return result, nil
}

// DeleteExpense removes an expense and drops it from the incomes that pay
// it. Budget history keeps its entries as audit trail, so budget amounts do
// not change.
func (o *RecordOrchestrator) DeleteExpense(ctx context.Context, cmd ledger.DeleteExpenseCommand) (*ledger.DeleteExpenseResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "record_orchestrator", sagaDeleteExpense)
	defer span.End()
	ctx = logger.WithOwnerID(ctx, cmd.OwnerID)

	if err := o.validator.Struct(cmd); err != nil {
		return nil, err
	}
	result := &ledger.DeleteExpenseResult{ExpenseID: cmd.ExpenseID}

	expense, err := o.existingExpense(ctx, cmd.ExpenseID, cmd.OwnerID)
	if err != nil || expense == nil {
		telemetry.RecordError(span, err)
		return result, err
	}

	updated, err := o.linker.Detach(ctx, cmd.OwnerID, cmd.ExpenseID)
	result.IncomesUpdated = updated
	if err != nil {
		telemetry.RecordError(span, err)
		return result, err
	}
	deleted, err := o.store.Expenses.DeleteByID(ctx, cmd.ExpenseID)
	if err != nil {
		telemetry.RecordError(span, err)
		return result, ledger.StoreError("delete expense", err)
	}
	result.Deleted = deleted

	logger.WithLogger(ctx, o.logger).Info("expense deleted",
		zap.String("saga", sagaDeleteExpense),
		zap.String("record_id", cmd.ExpenseID),
		zap.Int("incomes_updated", updated),
	)
	return result, nil
}

// DeleteIncome reverts the settlements an income recorded, then removes it
func (o *RecordOrchestrator) DeleteIncome(ctx context.Context, cmd ledger.DeleteIncomeCommand) (*ledger.DeleteIncomeResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "record_orchestrator", sagaDeleteIncome)
	defer span.End()
	ctx = logger.WithOwnerID(ctx, cmd.OwnerID)

	if err := o.validator.Struct(cmd); err != nil {
		return nil, err
	}
	result := &ledger.DeleteIncomeResult{IncomeID: cmd.IncomeID, Unlinked: ledger.UnlinkResult{Reverted: []string{}}}

	income, err := o.existingIncome(ctx, cmd.IncomeID, cmd.OwnerID)
	if err != nil || income == nil {
		telemetry.RecordError(span, err)
		return result, err
	}

	unlinked, err := o.linker.Unlink(ctx, income)
	result.Unlinked = unlinked
	if err != nil {
		telemetry.RecordError(span, err)
		return result, err
	}
	deleted, err := o.store.Incomes.DeleteByID(ctx, cmd.IncomeID)
	if err != nil {
		telemetry.RecordError(span, err)
		return result, ledger.StoreError("delete income", err)
	}
	result.Deleted = deleted

	logger.WithLogger(ctx, o.logger).Info("income deleted",
		zap.String("saga", sagaDeleteIncome),
		zap.String("record_id", cmd.IncomeID),
		zap.Int("reverted", len(unlinked.Reverted)),
		zap.Int("retained", len(unlinked.Retained)),
	)
	return result, nil
}

// AdjustAccountBalance moves an account's running balance by cmd.Delta with a
// conditional update, retrying while other writers win.
func (o *RecordOrchestrator) AdjustAccountBalance(ctx context.Context, cmd ledger.AdjustBalanceCommand) (*ledger.AdjustBalanceResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "record_orchestrator", sagaAdjustBalance)
	defer span.End()
	ctx = logger.WithOwnerID(ctx, cmd.OwnerID)
	telemetry.SetAttributes(span, telemetry.SpanAttrAccountID, cmd.AccountID, telemetry.SpanAttrAmount, int64(cmd.Delta))

	if err := o.validator.Struct(cmd); err != nil {
		return nil, err
	}

	result := &ledger.AdjustBalanceResult{AccountID: cmd.AccountID}
	op := func() error {
		result.Attempts++
		account, err := o.store.Accounts.FindByID(ctx, cmd.AccountID)
		if err != nil {
			return backoff.Permanent(ledger.StoreError("find account "+cmd.AccountID, err))
		}
		if account.OwnerID != cmd.OwnerID {
			return backoff.Permanent(shared.WrapDomainError(ledger.ErrUnauthorized, "account "+cmd.AccountID+" belongs to another user", nil))
		}
		next := account.Amount.Add(cmd.Delta)
		_, err = o.store.Accounts.ConditionalUpdate(ctx, account.ID, account.Version, shared.Patch{
			Set: map[string]any{ledger.FieldAccountAmount: next},
		})
		if errors.Is(err, shared.ErrConcurrencyConflict) {
			return err
		}
		if err != nil {
			return backoff.Permanent(ledger.StoreError("update account "+cmd.AccountID, err))
		}
		result.AmountBefore, result.AmountAfter = account.Amount, next
		return nil
	}

	if err := backoff.Retry(op, o.opts.newBackOff(ctx)); err != nil {
		if errors.Is(err, shared.ErrConcurrencyConflict) {
			err = fmt.Errorf("account %s still contended after %d attempts: %w", cmd.AccountID, result.Attempts, err)
		}
		telemetry.RecordError(span, err)
		return result, err
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrAttempts, result.Attempts)
	return result, nil
}

// VerifyBudget recomputes a budget's amount from its history and reports drift
func (o *RecordOrchestrator) VerifyBudget(ctx context.Context, ownerID, budgetID string) (*ledger.BudgetAudit, error) {
	ctx = logger.WithOwnerID(ctx, ownerID)
	audit, err := o.budgets.Audit(ctx, ownerID, budgetID)
	if err != nil {
		return nil, err
	}
	if !audit.Consistent {
		logger.WithLogger(ctx, o.logger).Warn("budget drifted from history",
			zap.String("budget_id", budgetID),
			zap.Int64("current", int64(audit.CurrentAmount)),
			zap.Int64("expected", int64(audit.ExpectedAmount)),
		)
	}
	return audit, nil
}

// existingExpense returns the expense with id, nil when there is none, or
// ErrUnauthorized when it belongs to another owner
func (o *RecordOrchestrator) existingExpense(ctx context.Context, id, ownerID string) (*ledger.Expense, error) {
	expense, err := o.store.Expenses.FindByID(ctx, id)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, ledger.StoreError("find expense "+id, err)
	}
	if expense.OwnerID != ownerID {
		return nil, shared.WrapDomainError(ledger.ErrUnauthorized, "expense "+id+" belongs to another user", nil)
	}
	return expense, nil
}

func (o *RecordOrchestrator) existingIncome(ctx context.Context, id, ownerID string) (*ledger.Income, error) {
	income, err := o.store.Incomes.FindByID(ctx, id)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, ledger.StoreError("find income "+id, err)
	}
	if income.OwnerID != ownerID {
		return nil, shared.WrapDomainError(ledger.ErrUnauthorized, "income "+id+" belongs to another user", nil)
	}
	return income, nil
}

func (o *RecordOrchestrator) verifyAccount(ctx context.Context, accountID, ownerID string) error {
	account, err := o.store.Accounts.FindByID(ctx, accountID)
	if err != nil {
		return ledger.StoreError("find account "+accountID, err)
	}
	if account.OwnerID != ownerID {
		return shared.WrapDomainError(ledger.ErrUnauthorized, "account "+accountID+" belongs to another user", nil)
	}
	return nil
}

// verifyBudgets checks every linked budget exists, belongs to the owner and
// is active
func (o *RecordOrchestrator) verifyBudgets(ctx context.Context, budgetIDs []string, ownerID string) error {
	var inactive []ledger.FieldViolation
	for _, id := range budgetIDs {
		budget, err := o.store.Budgets.FindByID(ctx, id)
		if err != nil {
			return ledger.StoreError("find budget "+id, err)
		}
		if budget.OwnerID != ownerID {
			return shared.WrapDomainError(ledger.ErrUnauthorized, "budget "+id+" belongs to another user", nil)
		}
		if !budget.IsActive {
			inactive = append(inactive, ledger.FieldViolation{
				Field:   "linked_budgets",
				Message: "Budget " + id + " is not active",
			})
		}
	}
	if len(inactive) > 0 {
		return ledger.NewValidationError(inactive...)
	}
	return nil
}

func (o *RecordOrchestrator) publish(ctx context.Context, events ...shared.DomainEvent) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.Publish(ctx, events...); err != nil {
		logger.WithLogger(ctx, o.logger).Warn("failed to publish ledger events", zap.Error(err))
	}
}
