package ledger

import (
	"context"
	"errors"

	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/ledger"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/shared"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/infrastructure/logger"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const sagaDeleteAccount = "delete_account"

// AccountCascadeDeleter deletes an account together with its records
type AccountCascadeDeleter struct {
	accounts shared.Collection[ledger.Account]
	expenses shared.Collection[ledger.Expense]
	incomes  shared.Collection[ledger.Income]
	linker   *SettlementLinker
	logger   *zap.Logger
}

// NewAccountCascadeDeleter creates a new AccountCascadeDeleter
func NewAccountCascadeDeleter(
	accounts shared.Collection[ledger.Account],
	expenses shared.Collection[ledger.Expense],
	incomes shared.Collection[ledger.Income],
	linker *SettlementLinker,
	logger *zap.Logger,
) *AccountCascadeDeleter {
	return &AccountCascadeDeleter{
		accounts: accounts,
		expenses: expenses,
		incomes:  incomes,
		linker:   linker,
		logger:   logger,
	}
}

// cascadeRun carries one execution of the state machine
type cascadeRun struct {
	d       *AccountCascadeDeleter
	span    trace.Span
	log     *logger.ContextLogger
	ownerID string
	result  ledger.CascadeResult
}

func (r *cascadeRun) enter(stage ledger.CascadeStage) {
	r.result.Stage = stage
	telemetry.AddEvent(r.span, "cascade.stage", telemetry.SpanAttrStage, string(stage))
	r.log.Info("cascade stage", zap.String("step", string(stage)))
}

// DeleteAccountCascade walks verify, gather, delete expenses, delete incomes
// and delete account in that order. A stage with any failed record halts the
// run before the account is touched; running again picks up what survived.
func (d *AccountCascadeDeleter) DeleteAccountCascade(ctx context.Context, accountID, ownerID string) (ledger.CascadeResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "account_cascade", "delete")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrAccountID, accountID, telemetry.SpanAttrOwnerID, ownerID)

	run := &cascadeRun{
		d:       d,
		span:    span,
		ownerID: ownerID,
		log: logger.WithLogger(ctx, d.logger).With(
			zap.String("saga", sagaDeleteAccount),
			zap.String("account_id", accountID),
		),
		result: ledger.CascadeResult{AccountID: accountID},
	}

	err := run.execute(ctx, accountID)
	if err != nil {
		telemetry.RecordError(span, err)
		run.log.Warn("cascade halted", zap.String("stage", string(run.result.Stage)), zap.Error(err))
		return run.result, err
	}
	telemetry.SetOK(span)
	return run.result, nil
}

func (r *cascadeRun) execute(ctx context.Context, accountID string) error {
	r.enter(ledger.StageVerifyOwnership)
	account, err := r.d.accounts.FindByID(ctx, accountID)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		// records may still survive a previous partial run
		r.result.AlreadyDeleted = true
	case err != nil:
		return ledger.StoreError("find account "+accountID, err)
	case account.OwnerID != r.ownerID:
		return shared.WrapDomainError(ledger.ErrUnauthorized, "account "+accountID+" belongs to another user", nil)
	}

	expenses, incomes, err := r.gather(ctx, accountID)
	if err != nil {
		return err
	}

	r.enter(ledger.StageDeleteExpenses)
	for i := range expenses {
		r.result.Outcomes = append(r.result.Outcomes, r.deleteExpense(ctx, &expenses[i]))
	}
	if err := r.halt(incomeIDs(incomes)); err != nil {
		return err
	}

	r.enter(ledger.StageDeleteIncomes)
	for i := range incomes {
		r.result.Outcomes = append(r.result.Outcomes, r.deleteIncome(ctx, &incomes[i]))
	}
	if err := r.halt(nil); err != nil {
		return err
	}

	r.enter(ledger.StageDeleteAccount)
	if !r.result.AlreadyDeleted {
		deleted, err := r.d.accounts.DeleteByID(ctx, accountID)
		if err != nil {
			return ledger.StoreError("delete account "+accountID, err)
		}
		r.result.AccountDeleted = deleted
	}

	r.enter(ledger.StageDone)
	r.log.Info("account deleted",
		zap.Int("expenses_deleted", r.result.ExpensesDeleted),
		zap.Int("incomes_deleted", r.result.IncomesDeleted),
		zap.Bool("already_deleted", r.result.AlreadyDeleted),
	)
	return nil
}

// gather loads both record sets concurrently. The stage left on the result
// names the set that failed to load.
func (r *cascadeRun) gather(ctx context.Context, accountID string) ([]ledger.Expense, []ledger.Income, error) {
	filter := shared.Filter{shared.FieldOwnerID: r.ownerID, ledger.FieldAccountID: accountID}

	var (
		expenses   []ledger.Expense
		incomes    []ledger.Income
		incomesErr error
	)
	r.enter(ledger.StageGatherExpenses)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		found, err := r.d.expenses.FindMany(gctx, filter)
		if err != nil {
			return ledger.StoreError("gather expenses", err)
		}
		expenses = found
		return nil
	})
	g.Go(func() error {
		found, err := r.d.incomes.FindMany(gctx, filter)
		if err != nil {
			incomesErr = ledger.StoreError("gather incomes", err)
			return incomesErr
		}
		incomes = found
		return nil
	})
	err := g.Wait()
	if err == nil || err == incomesErr {
		r.enter(ledger.StageGatherIncomes)
	}
	if err != nil {
		return nil, nil, err
	}
	r.log.Debug("records gathered", zap.Int("expenses", len(expenses)), zap.Int("incomes", len(incomes)))
	return expenses, incomes, nil
}

func (r *cascadeRun) deleteExpense(ctx context.Context, exp *ledger.Expense) ledger.DeleteOutcome {
	outcome := ledger.DeleteOutcome{ID: exp.ID, Collection: ledger.CollectionExpenses}

	// incomes on other accounts may still list it
	if _, err := r.d.linker.Detach(ctx, r.ownerID, exp.ID); err != nil {
		outcome.Status, outcome.Err = ledger.OutcomeFailed, err
		return outcome
	}
	deleted, err := r.d.expenses.DeleteByID(ctx, exp.ID)
	switch {
	case err != nil:
		outcome.Status, outcome.Err = ledger.OutcomeFailed, ledger.StoreError("delete expense "+exp.ID, err)
	case deleted:
		outcome.Status = ledger.OutcomeDeleted
		r.result.ExpensesDeleted++
	default:
		outcome.Status = ledger.OutcomeAlreadyAbsent
	}
	return outcome
}

func (r *cascadeRun) deleteIncome(ctx context.Context, inc *ledger.Income) ledger.DeleteOutcome {
	outcome := ledger.DeleteOutcome{ID: inc.ID, Collection: ledger.CollectionIncomes}

	if _, err := r.d.linker.Unlink(ctx, inc); err != nil {
		outcome.Status, outcome.Err = ledger.OutcomeFailed, err
		return outcome
	}
	deleted, err := r.d.incomes.DeleteByID(ctx, inc.ID)
	switch {
	case err != nil:
		outcome.Status, outcome.Err = ledger.OutcomeFailed, ledger.StoreError("delete income "+inc.ID, err)
	case deleted:
		outcome.Status = ledger.OutcomeDeleted
		r.result.IncomesDeleted++
	default:
		outcome.Status = ledger.OutcomeAlreadyAbsent
	}
	return outcome
}

// halt returns a PartialCascadeError when the current stage left failures.
// pending lists records of later stages that were not attempted.
func (r *cascadeRun) halt(pending []string) error {
	var failures []ledger.DeleteOutcome
	for _, o := range r.result.Outcomes {
		if o.Status == ledger.OutcomeFailed {
			failures = append(failures, o)
		}
	}
	if len(failures) == 0 {
		return nil
	}

	surviving := make([]string, 0, len(failures)+len(pending))
	for _, f := range failures {
		surviving = append(surviving, f.ID)
	}
	surviving = append(surviving, pending...)
	return &ledger.PartialCascadeError{
		AccountID: r.result.AccountID,
		Stage:     r.result.Stage,
		Surviving: surviving,
		Failures:  failures,
	}
}

func incomeIDs(incomes []ledger.Income) []string {
	ids := make([]string, len(incomes))
	for i := range incomes {
		ids[i] = incomes[i].ID
	}
	return ids
}
