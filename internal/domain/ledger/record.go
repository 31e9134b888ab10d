package ledger

import (
	"time"

	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/shared"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/shared/valueobject"
)

// Record field names
const (
	FieldAccountID     = "account_id"
	FieldIsPaid        = "is_paid"
	FieldLinkedBudgets = "linked_budgets"
	FieldExpensesPaid  = "expenses_paid"
)

// RecordKind is the type of a financial record
type RecordKind string

const (
	RecordKindExpense  RecordKind = "expense"
	RecordKindIncome   RecordKind = "income"
	RecordKindTransfer RecordKind = "transfer"
)

// IsValid checks if the record kind is valid
func (k RecordKind) IsValid() bool {
	switch k {
	case RecordKindExpense, RecordKindIncome, RecordKindTransfer:
		return true
	}
	return false
}

// String returns the string representation
func (k RecordKind) String() string {
	return string(k)
}

// Record holds the fields shared by expenses and incomes
type Record struct {
	shared.BaseDocument `bson:",inline"`
	OwnerID             string            `bson:"owner_id" json:"owner_id"`
	ShortName           string            `bson:"short_name" json:"short_name"`
	Description         string            `bson:"description" json:"description"`
	Amount              valueobject.Money `bson:"amount" json:"amount"`
	Date                time.Time         `bson:"date" json:"date"`
	CategoryID          string            `bson:"category_id" json:"category_id"`
	SubCategory         string            `bson:"sub_category" json:"sub_category"`
	AccountID           string            `bson:"account_id" json:"account_id"`
	Kind                RecordKind        `bson:"kind" json:"kind"`
	Tags                []string          `bson:"tags" json:"tags"`
}

// Expense is a record that consumes budget and can be settled by an income
type Expense struct {
	Record        `bson:",inline"`
	IsPaid        bool     `bson:"is_paid" json:"is_paid"`
	LinkedBudgets []string `bson:"linked_budgets" json:"linked_budgets"`
}

// Income is a record that may settle previously recorded expenses
type Income struct {
	Record       `bson:",inline"`
	ExpensesPaid []string `bson:"expenses_paid" json:"expenses_paid"`
}

func newRecord(id, ownerID string, kind RecordKind, fields RecordFields, categoryID string) Record {
	tags := fields.Tags
	if tags == nil {
		tags = []string{}
	}
	return Record{
		BaseDocument: shared.NewBaseDocument(id),
		OwnerID:      ownerID,
		ShortName:    fields.ShortName,
		Description:  fields.Description,
		Amount:       fields.Amount,
		Date:         fields.Date.UTC().Truncate(time.Millisecond),
		CategoryID:   categoryID,
		SubCategory:  fields.SubCategory,
		AccountID:    fields.AccountID,
		Kind:         kind,
		Tags:         tags,
	}
}

// NewExpense builds an expense from a validated command and a resolved category
func NewExpense(cmd CreateExpenseCommand, categoryID string) *Expense {
	linked := append([]string{}, cmd.LinkedBudgets...)
	return &Expense{
		Record:        newRecord(cmd.RecordID, cmd.OwnerID, cmd.Kind, cmd.RecordFields, categoryID),
		IsPaid:        cmd.IsPaid,
		LinkedBudgets: linked,
	}
}

// NewIncome builds an income from a validated command and a resolved category
func NewIncome(cmd CreateIncomeCommand, categoryID string) *Income {
	paid := append([]string{}, cmd.ExpensesPaid...)
	return &Income{
		Record:       newRecord(cmd.RecordID, cmd.OwnerID, cmd.Kind, cmd.RecordFields, categoryID),
		ExpensesPaid: paid,
	}
}
