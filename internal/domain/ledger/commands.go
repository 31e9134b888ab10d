package ledger

import (
	"time"

	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/shared/valueobject"
)

// DefaultMaxLinkedBudgets is the most budgets one expense may be linked to
const DefaultMaxLinkedBudgets = 3

// RecordFields are the user-supplied fields common to expense and income commands
type RecordFields struct {
	AccountID   string            `json:"account_id" validate:"required"`
	ShortName   string            `json:"short_name" validate:"required,max=100"`
	Description string            `json:"description" validate:"max=500"`
	Amount      valueobject.Money `json:"amount" validate:"gt=0"`
	Date        time.Time         `json:"date" validate:"required"`
	SubCategory string            `json:"sub_category" validate:"max=100"`
	Tags        []string          `json:"tags" validate:"max=20,dive,required,max=50"`
}

// CreateExpenseCommand records an expense and applies it to its linked budgets.
// RecordID is optional; supplying it makes retries of the same command resume
// instead of creating a second expense.
type CreateExpenseCommand struct {
	RecordID string      `json:"record_id" validate:"omitempty,uuid"`
	OwnerID  string      `json:"owner_id" validate:"required"`
	Kind     RecordKind  `json:"kind" validate:"required"`
	Category CategoryRef `json:"-"`
	RecordFields
	IsPaid        bool     `json:"is_paid"`
	LinkedBudgets []string `json:"linked_budgets" validate:"dive,required"`
}

// CreateIncomeCommand records an income and marks the expenses it pays as settled
type CreateIncomeCommand struct {
	RecordID string      `json:"record_id" validate:"omitempty,uuid"`
	OwnerID  string      `json:"owner_id" validate:"required"`
	Kind     RecordKind  `json:"kind" validate:"required"`
	Category CategoryRef `json:"-"`
	RecordFields
	ExpensesPaid []string `json:"expenses_paid" validate:"dive,required"`
}

// DeleteAccountCommand removes an account and every record on it
type DeleteAccountCommand struct {
	AccountID string `json:"account_id" validate:"required"`
	OwnerID   string `json:"owner_id" validate:"required"`
}

// DeleteExpenseCommand removes one expense
type DeleteExpenseCommand struct {
	ExpenseID string `json:"expense_id" validate:"required"`
	OwnerID   string `json:"owner_id" validate:"required"`
}

// DeleteIncomeCommand removes one income, reverting the settlement it recorded
type DeleteIncomeCommand struct {
	IncomeID string `json:"income_id" validate:"required"`
	OwnerID  string `json:"owner_id" validate:"required"`
}

// AdjustBalanceCommand changes an account's running balance by Delta
type AdjustBalanceCommand struct {
	AccountID string            `json:"account_id" validate:"required"`
	OwnerID   string            `json:"owner_id" validate:"required"`
	Delta     valueobject.Money `json:"delta" validate:"ne=0"`
}
