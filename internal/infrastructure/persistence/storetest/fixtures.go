package storetest

import (
	"testing"
	"time"

	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/ledger"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/require"
)

// FixedDate is the record date used by fixtures
var FixedDate = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

// MustCategory builds a category or fails the test
func MustCategory(t testing.TB, ownerID, name, sub string) *ledger.Category {
	t.Helper()
	c, err := ledger.NewCategory(ownerID, name, "", sub)
	require.NoError(t, err)
	return c
}

// MustAccount builds a debit account or fails the test
func MustAccount(t testing.TB, ownerID string) *ledger.Account {
	t.Helper()
	a, err := ledger.NewAccount(ownerID, "Checking", ledger.AccountTypeDebit, 100000)
	require.NoError(t, err)
	return a
}

// MustBudget builds an active monthly budget or fails the test
func MustBudget(t testing.TB, ownerID, name string, initial valueobject.Money) *ledger.Budget {
	t.Helper()
	b, err := ledger.NewBudget(ownerID, name, 500000, initial, ledger.BudgetPeriod{
		Type:  ledger.PeriodMonthly,
		Start: FixedDate.AddDate(0, 0, -3),
		End:   FixedDate.AddDate(0, 1, -3),
	})
	require.NoError(t, err)
	return b
}

// MustExpense builds an unpaid expense on accountID
func MustExpense(t testing.TB, ownerID, accountID string, amount valueobject.Money, budgets ...string) *ledger.Expense {
	t.Helper()
	return ledger.NewExpense(ledger.CreateExpenseCommand{
		OwnerID: ownerID,
		Kind:    ledger.RecordKindExpense,
		RecordFields: ledger.RecordFields{
			AccountID: accountID,
			ShortName: "Lunch",
			Amount:    amount,
			Date:      FixedDate,
		},
		LinkedBudgets: budgets,
	}, "category-"+ownerID)
}

// MustIncome builds an income on accountID that pays expenseIDs
func MustIncome(t testing.TB, ownerID, accountID string, expenseIDs ...string) *ledger.Income {
	t.Helper()
	return ledger.NewIncome(ledger.CreateIncomeCommand{
		OwnerID: ownerID,
		Kind:    ledger.RecordKindIncome,
		RecordFields: ledger.RecordFields{
			AccountID: accountID,
			ShortName: "Salary",
			Amount:    500000,
			Date:      FixedDate,
		},
		ExpensesPaid: expenseIDs,
	}, "category-"+ownerID)
}
