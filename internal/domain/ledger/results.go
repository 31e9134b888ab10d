package ledger

import "github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/shared/valueobject"

// ResolutionNote tells what CategoryResolver did
type ResolutionNote string

const (
	ResolutionCreated   ResolutionNote = "created"
	ResolutionMerged    ResolutionNote = "merged"
	ResolutionUnchanged ResolutionNote = "unchanged"
)

// ResolveResult is the outcome of resolving a category reference
type ResolveResult struct {
	CategoryID string         `json:"category_id"`
	Note       ResolutionNote `json:"note"`
}

// ApplicationStatus is the per-budget outcome of a ledger run
type ApplicationStatus string

const (
	ApplicationApplied        ApplicationStatus = "applied"
	ApplicationAlreadyApplied ApplicationStatus = "already_applied"
	ApplicationReversed       ApplicationStatus = "reversed"
	ApplicationNotApplied     ApplicationStatus = "not_applied"
)

// BudgetApplication describes one budget the ledger changed (or found already changed)
type BudgetApplication struct {
	BudgetID       string            `json:"budget_id"`
	Status         ApplicationStatus `json:"status"`
	AmountBefore   valueobject.Money `json:"amount_before"`
	AmountAfter    valueobject.Money `json:"amount_after"`
	HistoryEntryID string            `json:"history_entry_id,omitempty"`
	Attempts       int               `json:"attempts"`
}

// BudgetFailure describes one budget the ledger could not update
type BudgetFailure struct {
	BudgetID string `json:"budget_id"`
	Code     string `json:"code"`
	Err      error  `json:"-"`
}

// ApplyResult aggregates the per-budget outcomes of a ledger run
type ApplyResult struct {
	Applied  []BudgetApplication `json:"applied"`
	Failures []BudgetFailure     `json:"failures,omitempty"`
}

// OK reports whether every budget was handled
func (r ApplyResult) OK() bool {
	return len(r.Failures) == 0
}

// FirstError returns the error of the first failure, or nil
func (r ApplyResult) FirstError() error {
	if len(r.Failures) == 0 {
		return nil
	}
	return r.Failures[0].Err
}

// ChangedBudgetIDs returns the budgets whose amount this run changed
func (r ApplyResult) ChangedBudgetIDs() []string {
	ids := make([]string, 0, len(r.Applied))
	for _, a := range r.Applied {
		if a.Status == ApplicationApplied || a.Status == ApplicationAlreadyApplied {
			ids = append(ids, a.BudgetID)
		}
	}
	return ids
}

// LinkResult is the outcome of linking an income to the expenses it pays
type LinkResult struct {
	Linked  []string `json:"linked"`
	Missing []string `json:"missing,omitempty"`
}

// UnlinkResult is the outcome of reverting an income's settlements
type UnlinkResult struct {
	Reverted []string `json:"reverted"`
	Retained []string `json:"retained,omitempty"`
	Missing  []string `json:"missing,omitempty"`
}

// DeleteOutcomeStatus is the per-record result of a cascade deletion
type DeleteOutcomeStatus string

const (
	OutcomeDeleted       DeleteOutcomeStatus = "deleted"
	OutcomeAlreadyAbsent DeleteOutcomeStatus = "already_absent"
	OutcomeFailed        DeleteOutcomeStatus = "failed"
)

// DeleteOutcome is the result of deleting one document during a cascade
type DeleteOutcome struct {
	ID         string              `json:"id"`
	Collection string              `json:"collection"`
	Status     DeleteOutcomeStatus `json:"status"`
	Err        error               `json:"-"`
}

// CascadeResult aggregates a cascade deletion
type CascadeResult struct {
	AccountID       string          `json:"account_id"`
	Stage           CascadeStage    `json:"stage"`
	ExpensesDeleted int             `json:"expenses_deleted"`
	IncomesDeleted  int             `json:"incomes_deleted"`
	AccountDeleted  bool            `json:"account_deleted"`
	AlreadyDeleted  bool            `json:"already_deleted"`
	Outcomes        []DeleteOutcome `json:"outcomes,omitempty"`
}

// CreateExpenseResult is returned by the create-expense saga
type CreateExpenseResult struct {
	Expense     *Expense      `json:"expense,omitempty"`
	Category    ResolveResult `json:"category"`
	Budgets     ApplyResult   `json:"budgets"`
	Resumed     bool          `json:"resumed"`
	Compensated bool          `json:"compensated"`
}

// CreateIncomeResult is returned by the create-income saga
type CreateIncomeResult struct {
	Income   *Income       `json:"income,omitempty"`
	Category ResolveResult `json:"category"`
	Settled  LinkResult    `json:"settled"`
	Resumed  bool          `json:"resumed"`
}

// DeleteAccountResult is returned by the delete-account saga
type DeleteAccountResult struct {
	ExpensesDeleted int             `json:"expenses_deleted"`
	IncomesDeleted  int             `json:"incomes_deleted"`
	AccountDeleted  bool            `json:"account_deleted"`
	PartialFailures []DeleteOutcome `json:"partial_failures,omitempty"`
}

// DeleteExpenseResult is returned when deleting a single expense
type DeleteExpenseResult struct {
	ExpenseID      string `json:"expense_id"`
	Deleted        bool   `json:"deleted"`
	IncomesUpdated int    `json:"incomes_updated"`
}

// DeleteIncomeResult is returned when deleting a single income
type DeleteIncomeResult struct {
	IncomeID string       `json:"income_id"`
	Deleted  bool         `json:"deleted"`
	Unlinked UnlinkResult `json:"unlinked"`
}

// AdjustBalanceResult is returned by an explicit balance adjustment
type AdjustBalanceResult struct {
	AccountID    string            `json:"account_id"`
	AmountBefore valueobject.Money `json:"amount_before"`
	AmountAfter  valueobject.Money `json:"amount_after"`
	Attempts     int               `json:"attempts"`
}

// BudgetAudit compares a budget's stored amount with the amount derived from its history
type BudgetAudit struct {
	BudgetID       string            `json:"budget_id"`
	InitialAmount  valueobject.Money `json:"initial_amount"`
	CurrentAmount  valueobject.Money `json:"current_amount"`
	ExpectedAmount valueobject.Money `json:"expected_amount"`
	Entries        int               `json:"entries"`
	Consistent     bool              `json:"consistent"`
}
