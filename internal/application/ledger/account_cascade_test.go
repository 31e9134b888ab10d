package ledger

import (
	"context"
	"testing"

	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/ledger"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestCascade(t *testing.T, store *ledger.Store) *AccountCascadeDeleter {
	log := zaptest.NewLogger(t)
	linker := NewSettlementLinker(store.Expenses, store.Incomes, log)
	return NewAccountCascadeDeleter(store.Accounts, store.Expenses, store.Incomes, linker, log)
}

func TestAccountCascadeDeleter(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes records then the account and is a no-op on re-run", func(t *testing.T) {
		store := newMemoryStore()
		account := seedAccount(t, store, ownerA)
		other := seedAccount(t, store, ownerA)
		var expenseIDs []string
		for i := 0; i < 3; i++ {
			expenseIDs = append(expenseIDs, seedExpense(t, store, ownerA, account.ID, 100).ID)
		}
		seedIncome(t, store, ownerA, account.ID, expenseIDs[0])
		seedIncome(t, store, ownerA, account.ID)
		survivor := seedExpense(t, store, ownerA, other.ID, 999)
		cascade := newTestCascade(t, store)

		result, err := cascade.DeleteAccountCascade(ctx, account.ID, ownerA)
		require.NoError(t, err)
		assert.Equal(t, 3, result.ExpensesDeleted)
		assert.Equal(t, 2, result.IncomesDeleted)
		assert.True(t, result.AccountDeleted)
		assert.Equal(t, ledger.StageDone, result.Stage)
		assert.Len(t, result.Outcomes, 5)

		onAccount := shared.Filter{ledger.FieldAccountID: account.ID}
		expenses, err := store.Expenses.FindMany(ctx, onAccount)
		require.NoError(t, err)
		assert.Empty(t, expenses)
		incomes, err := store.Incomes.FindMany(ctx, onAccount)
		require.NoError(t, err)
		assert.Empty(t, incomes)
		_, err = store.Accounts.FindByID(ctx, account.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
		_ = mustExpense(t, store, survivor.ID)

		again, err := cascade.DeleteAccountCascade(ctx, account.ID, ownerA)
		require.NoError(t, err)
		assert.True(t, again.AlreadyDeleted)
		assert.False(t, again.AccountDeleted)
		assert.Zero(t, again.ExpensesDeleted)
		assert.Zero(t, again.IncomesDeleted)
	})

	t.Run("an account without records is deleted", func(t *testing.T) {
		store := newMemoryStore()
		account := seedAccount(t, store, ownerA)

		result, err := newTestCascade(t, store).DeleteAccountCascade(ctx, account.ID, ownerA)
		require.NoError(t, err)
		assert.True(t, result.AccountDeleted)
		assert.Empty(t, result.Outcomes)
	})

	t.Run("refuses another owner's account", func(t *testing.T) {
		store := newMemoryStore()
		account := seedAccount(t, store, ownerB)
		expense := seedExpense(t, store, ownerB, account.ID, 100)

		result, err := newTestCascade(t, store).DeleteAccountCascade(ctx, account.ID, ownerA)
		assert.ErrorIs(t, err, ledger.ErrUnauthorized)
		assert.Equal(t, ledger.StageVerifyOwnership, result.Stage)
		_ = mustExpense(t, store, expense.ID)
	})

	t.Run("halts before the account when an expense cannot be deleted", func(t *testing.T) {
		store := newMemoryStore()
		account := seedAccount(t, store, ownerA)
		ok := seedExpense(t, store, ownerA, account.ID, 100)
		stuck := seedExpense(t, store, ownerA, account.ID, 100)
		income := seedIncome(t, store, ownerA, account.ID)

		expenses := &faultyCollection[ledger.Expense]{
			Collection: store.Expenses,
			onDelete: func(id string) error {
				if id == stuck.ID {
					return errInjected
				}
				return nil
			},
		}
		linker := NewSettlementLinker(expenses, store.Incomes, zaptest.NewLogger(t))
		cascade := NewAccountCascadeDeleter(store.Accounts, expenses, store.Incomes, linker, zaptest.NewLogger(t))

		result, err := cascade.DeleteAccountCascade(ctx, account.ID, ownerA)
		require.Error(t, err)
		assert.ErrorIs(t, err, ledger.ErrPartialCascadeFailure)
		assert.ErrorIs(t, err, errInjected)

		var perr *ledger.PartialCascadeError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, ledger.StageDeleteExpenses, perr.Stage)
		assert.ElementsMatch(t, []string{stuck.ID, income.ID}, perr.Surviving)

		assert.Equal(t, 1, result.ExpensesDeleted)
		assert.Zero(t, result.IncomesDeleted)
		assert.False(t, result.AccountDeleted)
		_, err = store.Expenses.FindByID(ctx, ok.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
		_, err = store.Accounts.FindByID(ctx, account.ID)
		assert.NoError(t, err)

		// a later run finishes the job
		result, err = newTestCascade(t, store).DeleteAccountCascade(ctx, account.ID, ownerA)
		require.NoError(t, err)
		assert.Equal(t, 1, result.ExpensesDeleted)
		assert.Equal(t, 1, result.IncomesDeleted)
		assert.True(t, result.AccountDeleted)
	})

	t.Run("a failed gather stops before any delete", func(t *testing.T) {
		store := newMemoryStore()
		account := seedAccount(t, store, ownerA)
		expense := seedExpense(t, store, ownerA, account.ID, 100)
		incomes := &faultyCollection[ledger.Income]{
			Collection: store.Incomes,
			onMany:     func(shared.Filter) error { return errInjected },
		}
		linker := NewSettlementLinker(store.Expenses, incomes, zaptest.NewLogger(t))
		cascade := NewAccountCascadeDeleter(store.Accounts, store.Expenses, incomes, linker, zaptest.NewLogger(t))

		result, err := cascade.DeleteAccountCascade(ctx, account.ID, ownerA)
		assert.ErrorIs(t, err, ledger.ErrExternalStore)
		assert.Equal(t, ledger.StageGatherIncomes, result.Stage)
		_ = mustExpense(t, store, expense.ID)
	})

	t.Run("unpays expenses on other accounts settled by deleted incomes", func(t *testing.T) {
		store := newMemoryStore()
		account := seedAccount(t, store, ownerA)
		other := seedAccount(t, store, ownerA)
		elsewhere := seedExpense(t, store, ownerA, other.ID, 100)
		income := seedIncome(t, store, ownerA, account.ID, elsewhere.ID)
		linker := NewSettlementLinker(store.Expenses, store.Incomes, zaptest.NewLogger(t))
		_, err := linker.Link(ctx, income, income.ExpensesPaid)
		require.NoError(t, err)
		require.True(t, mustExpense(t, store, elsewhere.ID).IsPaid)

		_, err = newTestCascade(t, store).DeleteAccountCascade(ctx, account.ID, ownerA)
		require.NoError(t, err)
		assert.False(t, mustExpense(t, store, elsewhere.ID).IsPaid)
	})
}
