// Package storetest holds the behavioural suite every document store adapter must pass.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/ledger"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/shared"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory creates an empty store
type Factory func(t *testing.T) *ledger.Store

// RunConformance runs the document-store contract suite against a store factory
func RunConformance(t *testing.T, newStore Factory) {
	t.Run("insert and find by id", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		cat := MustCategory(t, "u1", "Food", "Groceries")
		require.NoError(t, s.Categories.Insert(ctx, cat))
		assert.Equal(t, shared.InitialVersion, cat.Version)

		got, err := s.Categories.FindByID(ctx, cat.ID)
		require.NoError(t, err)
		assert.Equal(t, "Food", got.Name)
		assert.Equal(t, []string{"Groceries"}, got.SubCategories)
		assert.Equal(t, shared.InitialVersion, got.Version)
	})

	t.Run("find by id of missing document", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Budgets.FindByID(context.Background(), "missing")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("duplicate id is rejected", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		b := MustBudget(t, "u1", "Food", 0)
		require.NoError(t, s.Budgets.Insert(ctx, b))
		dup := *b
		assert.ErrorIs(t, s.Budgets.Insert(ctx, &dup), shared.ErrAlreadyExists)
	})

	t.Run("category name is unique per owner", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Categories.Insert(ctx, MustCategory(t, "u1", "Food", "")))
		assert.ErrorIs(t, s.Categories.Insert(ctx, MustCategory(t, "u1", "Food", "")), shared.ErrAlreadyExists)
		assert.NoError(t, s.Categories.Insert(ctx, MustCategory(t, "u2", "Food", "")))
		assert.NoError(t, s.Categories.Insert(ctx, MustCategory(t, "u1", "food", "")))
	})

	t.Run("find one and find many filter by equality", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Categories.Insert(ctx, MustCategory(t, "u1", "Food", "")))
		require.NoError(t, s.Categories.Insert(ctx, MustCategory(t, "u1", "Rent", "")))
		require.NoError(t, s.Categories.Insert(ctx, MustCategory(t, "u2", "Food", "")))

		got, err := s.Categories.FindOne(ctx, shared.Filter{shared.FieldOwnerID: "u1", ledger.FieldCategoryName: "Rent"})
		require.NoError(t, err)
		assert.Equal(t, "Rent", got.Name)

		_, err = s.Categories.FindOne(ctx, shared.Filter{shared.FieldOwnerID: "u3"})
		assert.ErrorIs(t, err, shared.ErrNotFound)

		many, err := s.Categories.FindMany(ctx, shared.Filter{shared.FieldOwnerID: "u1"})
		require.NoError(t, err)
		require.Len(t, many, 2)
		assert.Less(t, many[0].ID, many[1].ID)

		none, err := s.Categories.FindMany(ctx, shared.Filter{shared.FieldOwnerID: "nobody"})
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("array field matches when it contains the value", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		inc := MustIncome(t, "u1", "a1", "e1", "e2")
		require.NoError(t, s.Incomes.Insert(ctx, inc))
		require.NoError(t, s.Incomes.Insert(ctx, MustIncome(t, "u1", "a1", "e3")))

		found, err := s.Incomes.FindMany(ctx, shared.Filter{shared.FieldOwnerID: "u1", ledger.FieldExpensesPaid: "e2"})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, inc.ID, found[0].ID)
	})

	t.Run("conditional update with matching version", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		b := MustBudget(t, "u1", "Food", 0)
		require.NoError(t, s.Budgets.Insert(ctx, b))

		modified, err := s.Budgets.ConditionalUpdate(ctx, b.ID, b.Version, shared.Patch{
			Set: map[string]any{ledger.FieldBudgetCurrentAmount: valueobject.Money(100)},
		})
		require.NoError(t, err)
		assert.True(t, modified)

		got, err := s.Budgets.FindByID(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, valueobject.Money(100), got.CurrentAmount)
		assert.Equal(t, b.Version+1, got.Version)
	})

	t.Run("conditional update with stale version conflicts", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		b := MustBudget(t, "u1", "Food", 0)
		require.NoError(t, s.Budgets.Insert(ctx, b))
		_, err := s.Budgets.ConditionalUpdate(ctx, b.ID, b.Version, shared.Patch{
			Set: map[string]any{ledger.FieldBudgetCurrentAmount: valueobject.Money(100)},
		})
		require.NoError(t, err)

		_, err = s.Budgets.ConditionalUpdate(ctx, b.ID, b.Version, shared.Patch{
			Set: map[string]any{ledger.FieldBudgetCurrentAmount: valueobject.Money(200)},
		})
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)

		got, err := s.Budgets.FindByID(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, valueobject.Money(100), got.CurrentAmount)
	})

	t.Run("conditional update sets a field and claims an array value together", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		b := MustBudget(t, "u1", "Food", 0)
		require.NoError(t, s.Budgets.Insert(ctx, b))

		_, err := s.Budgets.ConditionalUpdate(ctx, b.ID, b.Version, shared.Patch{
			Set:      map[string]any{ledger.FieldBudgetCurrentAmount: valueobject.Money(100)},
			AddToSet: map[string]any{ledger.FieldBudgetAppliedRecords: "r1"},
		})
		require.NoError(t, err)
		got, err := s.Budgets.FindByID(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, valueobject.Money(100), got.CurrentAmount)
		assert.Equal(t, []string{"r1"}, got.AppliedRecords)

		_, err = s.Budgets.ConditionalUpdate(ctx, b.ID, got.Version, shared.Patch{
			Set:  map[string]any{ledger.FieldBudgetCurrentAmount: valueobject.Money(0)},
			Pull: map[string]any{ledger.FieldBudgetAppliedRecords: "r1"},
		})
		require.NoError(t, err)
		got, err = s.Budgets.FindByID(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, valueobject.Money(0), got.CurrentAmount)
		assert.Empty(t, got.AppliedRecords)
	})

	t.Run("conditional update of missing document", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Budgets.ConditionalUpdate(context.Background(), "missing", 1, shared.Patch{
			Set: map[string]any{ledger.FieldBudgetCurrentAmount: valueobject.Money(1)},
		})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("add to set without version is add-if-absent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		cat := MustCategory(t, "u1", "Food", "Groceries")
		require.NoError(t, s.Categories.Insert(ctx, cat))

		modified, err := s.Categories.ConditionalUpdate(ctx, cat.ID, shared.AnyVersion, shared.Patch{
			AddToSet: map[string]any{ledger.FieldCategorySubCategories: "Groceries"},
		})
		require.NoError(t, err)
		assert.False(t, modified)

		modified, err = s.Categories.ConditionalUpdate(ctx, cat.ID, shared.AnyVersion, shared.Patch{
			AddToSet: map[string]any{ledger.FieldCategorySubCategories: "Snacks"},
		})
		require.NoError(t, err)
		assert.True(t, modified)

		got, err := s.Categories.FindByID(ctx, cat.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"Groceries", "Snacks"}, got.SubCategories)
		assert.Equal(t, int64(2), got.Version)
	})

	t.Run("set of unchanged value does not bump version", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		e := MustExpense(t, "u1", "a1", 100)
		require.NoError(t, s.Expenses.Insert(ctx, e))

		modified, err := s.Expenses.ConditionalUpdate(ctx, e.ID, shared.AnyVersion, shared.Patch{
			Set: map[string]any{ledger.FieldIsPaid: false},
		})
		require.NoError(t, err)
		assert.False(t, modified)

		modified, err = s.Expenses.ConditionalUpdate(ctx, e.ID, shared.AnyVersion, shared.Patch{
			Set: map[string]any{ledger.FieldIsPaid: true},
		})
		require.NoError(t, err)
		assert.True(t, modified)

		got, err := s.Expenses.FindByID(ctx, e.ID)
		require.NoError(t, err)
		assert.True(t, got.IsPaid)
		assert.Equal(t, int64(2), got.Version)
	})

	t.Run("pull removes a value from an array", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		inc := MustIncome(t, "u1", "a1", "e1", "e2")
		require.NoError(t, s.Incomes.Insert(ctx, inc))

		modified, err := s.Incomes.ConditionalUpdate(ctx, inc.ID, shared.AnyVersion, shared.Patch{
			Pull: map[string]any{ledger.FieldExpensesPaid: "e1"},
		})
		require.NoError(t, err)
		assert.True(t, modified)

		got, err := s.Incomes.FindByID(ctx, inc.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"e2"}, got.ExpensesPaid)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		a := MustAccount(t, "u1")
		require.NoError(t, s.Accounts.Insert(ctx, a))

		deleted, err := s.Accounts.DeleteByID(ctx, a.ID)
		require.NoError(t, err)
		assert.True(t, deleted)

		deleted, err = s.Accounts.DeleteByID(ctx, a.ID)
		require.NoError(t, err)
		assert.False(t, deleted)

		_, err = s.Accounts.FindByID(ctx, a.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("concurrent add to set keeps every value exactly once", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		cat := MustCategory(t, "u1", "Food", "")
		require.NoError(t, s.Categories.Insert(ctx, cat))

		const writers = 8
		var wg sync.WaitGroup
		errs := make(chan error, writers*2)
		for i := 0; i < writers; i++ {
			for _, sub := range []string{fmt.Sprintf("sub-%d", i), "shared"} {
				wg.Add(1)
				go func(sub string) {
					defer wg.Done()
					_, err := s.Categories.ConditionalUpdate(ctx, cat.ID, shared.AnyVersion, shared.Patch{
						AddToSet: map[string]any{ledger.FieldCategorySubCategories: sub},
					})
					errs <- err
				}(sub)
			}
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		got, err := s.Categories.FindByID(ctx, cat.ID)
		require.NoError(t, err)
		assert.Len(t, got.SubCategories, writers+1)
		assert.ElementsMatch(t, unique(got.SubCategories), got.SubCategories)
	})

	t.Run("concurrent compare-and-set increments are all applied", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		b := MustBudget(t, "u1", "Food", 0)
		require.NoError(t, s.Budgets.Insert(ctx, b))

		const writers = 10
		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					cur, err := s.Budgets.FindByID(ctx, b.ID)
					if !assert.NoError(t, err) {
						return
					}
					_, err = s.Budgets.ConditionalUpdate(ctx, b.ID, cur.Version, shared.Patch{
						Set: map[string]any{ledger.FieldBudgetCurrentAmount: cur.CurrentAmount.Add(10)},
					})
					if errors.Is(err, shared.ErrConcurrencyConflict) {
						time.Sleep(time.Millisecond)
						continue
					}
					assert.NoError(t, err)
					return
				}
			}()
		}
		wg.Wait()

		got, err := s.Budgets.FindByID(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, valueobject.Money(writers*10), got.CurrentAmount)
		assert.Equal(t, int64(writers+1), got.Version)
	})
}

func unique(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
