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

func TestSettlementLinker_Link(t *testing.T) {
	ctx := context.Background()

	t.Run("marks every referenced expense paid", func(t *testing.T) {
		store := newMemoryStore()
		e1 := seedExpense(t, store, ownerA, "acc", 100)
		e2 := seedExpense(t, store, ownerA, "acc", 200)
		income := seedIncome(t, store, ownerA, "acc", e1.ID, e2.ID)
		linker := NewSettlementLinker(store.Expenses, store.Incomes, zaptest.NewLogger(t))

		result, err := linker.Link(ctx, income, income.ExpensesPaid)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{e1.ID, e2.ID}, result.Linked)
		assert.Empty(t, result.Missing)
		assert.True(t, mustExpense(t, store, e1.ID).IsPaid)
		assert.True(t, mustExpense(t, store, e2.ID).IsPaid)
	})

	t.Run("already paid expenses are linked without a write", func(t *testing.T) {
		store := newMemoryStore()
		e1 := seedExpense(t, store, ownerA, "acc", 100)
		income := seedIncome(t, store, ownerA, "acc", e1.ID)
		linker := NewSettlementLinker(store.Expenses, store.Incomes, zaptest.NewLogger(t))

		_, err := linker.Link(ctx, income, income.ExpensesPaid)
		require.NoError(t, err)
		version := mustExpense(t, store, e1.ID).Version

		result, err := linker.Link(ctx, income, income.ExpensesPaid)
		require.NoError(t, err)
		assert.Equal(t, []string{e1.ID}, result.Linked)
		assert.Equal(t, version, mustExpense(t, store, e1.ID).Version)
	})

	t.Run("unknown and foreign ids are reported missing and dropped", func(t *testing.T) {
		store := newMemoryStore()
		mine := seedExpense(t, store, ownerA, "acc", 100)
		theirs := seedExpense(t, store, ownerB, "acc", 100)
		income := seedIncome(t, store, ownerA, "acc", mine.ID, theirs.ID, "ghost")
		linker := NewSettlementLinker(store.Expenses, store.Incomes, zaptest.NewLogger(t))

		result, err := linker.Link(ctx, income, income.ExpensesPaid)
		require.NoError(t, err)
		assert.Equal(t, []string{mine.ID}, result.Linked)
		assert.ElementsMatch(t, []string{theirs.ID, "ghost"}, result.Missing)
		assert.False(t, mustExpense(t, store, theirs.ID).IsPaid)

		stored, err := store.Incomes.FindByID(ctx, income.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{mine.ID}, stored.ExpensesPaid)
		assert.Equal(t, []string{mine.ID}, income.ExpensesPaid)
	})

	t.Run("store failures abort", func(t *testing.T) {
		store := newMemoryStore()
		e1 := seedExpense(t, store, ownerA, "acc", 100)
		income := seedIncome(t, store, ownerA, "acc", e1.ID)
		expenses := &faultyCollection[ledger.Expense]{
			Collection: store.Expenses,
			onUpdate:   func(string, shared.Patch) error { return errInjected },
		}
		linker := NewSettlementLinker(expenses, store.Incomes, zaptest.NewLogger(t))

		_, err := linker.Link(ctx, income, income.ExpensesPaid)
		assert.ErrorIs(t, err, ledger.ErrExternalStore)
		assert.True(t, ledger.IsRetryable(err))
	})
}

func TestSettlementLinker_Unlink(t *testing.T) {
	ctx := context.Background()

	t.Run("reverts expenses no other income pays", func(t *testing.T) {
		store := newMemoryStore()
		e1 := seedExpense(t, store, ownerA, "acc", 100)
		e2 := seedExpense(t, store, ownerA, "acc", 200)
		first := seedIncome(t, store, ownerA, "acc", e1.ID, e2.ID)
		second := seedIncome(t, store, ownerA, "acc", e2.ID)
		linker := NewSettlementLinker(store.Expenses, store.Incomes, zaptest.NewLogger(t))
		_, err := linker.Link(ctx, first, first.ExpensesPaid)
		require.NoError(t, err)
		_, err = linker.Link(ctx, second, second.ExpensesPaid)
		require.NoError(t, err)

		result, err := linker.Unlink(ctx, first)
		require.NoError(t, err)
		assert.Equal(t, []string{e1.ID}, result.Reverted)
		assert.Equal(t, []string{e2.ID}, result.Retained)
		assert.Empty(t, result.Missing)
		assert.False(t, mustExpense(t, store, e1.ID).IsPaid)
		assert.True(t, mustExpense(t, store, e2.ID).IsPaid)
	})

	t.Run("missing expenses are skipped", func(t *testing.T) {
		store := newMemoryStore()
		income := seedIncome(t, store, ownerA, "acc", "gone")
		linker := NewSettlementLinker(store.Expenses, store.Incomes, zaptest.NewLogger(t))

		result, err := linker.Unlink(ctx, income)
		require.NoError(t, err)
		assert.Empty(t, result.Reverted)
		assert.Equal(t, []string{"gone"}, result.Missing)
	})
}

func TestSettlementLinker_Detach(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	e1 := seedExpense(t, store, ownerA, "acc", 100)
	e2 := seedExpense(t, store, ownerA, "acc", 100)
	i1 := seedIncome(t, store, ownerA, "acc", e1.ID, e2.ID)
	i2 := seedIncome(t, store, ownerA, "other", e1.ID)
	untouched := seedIncome(t, store, ownerA, "acc", e2.ID)
	linker := NewSettlementLinker(store.Expenses, store.Incomes, zaptest.NewLogger(t))

	updated, err := linker.Detach(ctx, ownerA, e1.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, updated)

	for id, want := range map[string][]string{
		i1.ID:        {e2.ID},
		untouched.ID: {e2.ID},
	} {
		stored, err := store.Incomes.FindByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, stored.ExpensesPaid)
	}
	stored, err := store.Incomes.FindByID(ctx, i2.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.ExpensesPaid)
}
