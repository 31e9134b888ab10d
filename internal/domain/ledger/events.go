package ledger

import (
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/shared"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/shared/valueobject"
)

// Event types published by the ledger engine
const (
	EventTypeExpenseCreated         = "ledger.expense_created"
	EventTypeIncomeCreated          = "ledger.income_created"
	EventTypeBudgetApplied          = "ledger.budget_applied"
	EventTypeExpensesSettled        = "ledger.expenses_settled"
	EventTypeAccountDeleted         = "ledger.account_deleted"
	EventTypeReconciliationRequired = "ledger.reconciliation_required"
)

// Aggregate types used on events
const (
	AggregateTypeExpense = "Expense"
	AggregateTypeIncome  = "Income"
	AggregateTypeBudget  = "Budget"
	AggregateTypeAccount = "Account"
)

// ExpenseCreatedEvent is published after an expense and its budgets are recorded
type ExpenseCreatedEvent struct {
	shared.BaseDomainEvent
	ExpenseID     string            `json:"expense_id"`
	AccountID     string            `json:"account_id"`
	CategoryID    string            `json:"category_id"`
	Amount        valueobject.Money `json:"amount"`
	LinkedBudgets []string          `json:"linked_budgets"`
}

// NewExpenseCreatedEvent creates an ExpenseCreatedEvent
func NewExpenseCreatedEvent(e *Expense) *ExpenseCreatedEvent {
	return &ExpenseCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeExpenseCreated, AggregateTypeExpense, e.ID, e.OwnerID),
		ExpenseID:       e.ID,
		AccountID:       e.AccountID,
		CategoryID:      e.CategoryID,
		Amount:          e.Amount,
		LinkedBudgets:   e.LinkedBudgets,
	}
}

// IncomeCreatedEvent is published after an income is recorded
type IncomeCreatedEvent struct {
	shared.BaseDomainEvent
	IncomeID   string            `json:"income_id"`
	AccountID  string            `json:"account_id"`
	CategoryID string            `json:"category_id"`
	Amount     valueobject.Money `json:"amount"`
}

// NewIncomeCreatedEvent creates an IncomeCreatedEvent
func NewIncomeCreatedEvent(i *Income) *IncomeCreatedEvent {
	return &IncomeCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeIncomeCreated, AggregateTypeIncome, i.ID, i.OwnerID),
		IncomeID:        i.ID,
		AccountID:       i.AccountID,
		CategoryID:      i.CategoryID,
		Amount:          i.Amount,
	}
}

// BudgetAppliedEvent is published for every budget amount change
type BudgetAppliedEvent struct {
	shared.BaseDomainEvent
	BudgetID     string            `json:"budget_id"`
	RecordID     string            `json:"record_id"`
	EntryKind    EntryKind         `json:"entry_kind"`
	AmountBefore valueobject.Money `json:"amount_before"`
	AmountAfter  valueobject.Money `json:"amount_after"`
}

// NewBudgetAppliedEvent creates a BudgetAppliedEvent from a history entry
func NewBudgetAppliedEvent(entry *BudgetHistoryEntry) *BudgetAppliedEvent {
	return &BudgetAppliedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeBudgetApplied, AggregateTypeBudget, entry.BudgetID, entry.OwnerID),
		BudgetID:        entry.BudgetID,
		RecordID:        entry.RecordID,
		EntryKind:       entry.EntryKind,
		AmountBefore:    entry.AmountBefore,
		AmountAfter:     entry.AmountAfter,
	}
}

// ExpensesSettledEvent is published when an income marks expenses as paid
type ExpensesSettledEvent struct {
	shared.BaseDomainEvent
	IncomeID   string   `json:"income_id"`
	ExpenseIDs []string `json:"expense_ids"`
	Missing    []string `json:"missing,omitempty"`
}

// NewExpensesSettledEvent creates an ExpensesSettledEvent
func NewExpensesSettledEvent(income *Income, result LinkResult) *ExpensesSettledEvent {
	return &ExpensesSettledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeExpensesSettled, AggregateTypeIncome, income.ID, income.OwnerID),
		IncomeID:        income.ID,
		ExpenseIDs:      result.Linked,
		Missing:         result.Missing,
	}
}

// AccountDeletedEvent is published after a cascade deletion completes
type AccountDeletedEvent struct {
	shared.BaseDomainEvent
	AccountID       string `json:"account_id"`
	ExpensesDeleted int    `json:"expenses_deleted"`
	IncomesDeleted  int    `json:"incomes_deleted"`
}

// NewAccountDeletedEvent creates an AccountDeletedEvent
func NewAccountDeletedEvent(ownerID string, result CascadeResult) *AccountDeletedEvent {
	return &AccountDeletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeAccountDeleted, AggregateTypeAccount, result.AccountID, ownerID),
		AccountID:       result.AccountID,
		ExpensesDeleted: result.ExpensesDeleted,
		IncomesDeleted:  result.IncomesDeleted,
	}
}

// ReconciliationRequiredEvent is published when a compensation fails and the
// ledger needs an operator
type ReconciliationRequiredEvent struct {
	shared.BaseDomainEvent
	Saga      string   `json:"saga"`
	RecordID  string   `json:"record_id"`
	Reason    string   `json:"reason"`
	BudgetIDs []string `json:"budget_ids,omitempty"`
}

// NewReconciliationRequiredEvent creates a ReconciliationRequiredEvent
func NewReconciliationRequiredEvent(ownerID string, rerr *ReconciliationError) *ReconciliationRequiredEvent {
	return &ReconciliationRequiredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeReconciliationRequired, AggregateTypeExpense, rerr.RecordID, ownerID),
		Saga:            rerr.Saga,
		RecordID:        rerr.RecordID,
		Reason:          rerr.Error(),
		BudgetIDs:       rerr.Pending,
	}
}
