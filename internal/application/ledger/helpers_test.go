package ledger

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/ledger"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/shared"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/shared/valueobject"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/infrastructure/persistence/memory"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/infrastructure/persistence/storetest"
	"github.com/stretchr/testify/require"
)

const (
	ownerA = "owner-a"
	ownerB = "owner-b"
)

var errInjected = errors.New("injected store failure")

func testOptions() Options {
	return Options{
		MaxBudgetRetries:     4,
		RetryInitialInterval: time.Millisecond,
		RetryMaxInterval:     2 * time.Millisecond,
		MaxLinkedBudgets:     ledger.DefaultMaxLinkedBudgets,
	}
}

func newMemoryStore() *ledger.Store {
	return memory.NewLedgerStore(memory.NewBackend())
}

// faultyCollection wraps a collection and fails the operations a test hooks
type faultyCollection[T any] struct {
	shared.Collection[T]
	onFind   func(id string) error
	onInsert func(doc *T) error
	onUpdate func(id string, patch shared.Patch) error
	onDelete func(id string) error
	onMany   func(filter shared.Filter) error
}

func (c *faultyCollection[T]) FindByID(ctx context.Context, id string) (*T, error) {
	if c.onFind != nil {
		if err := c.onFind(id); err != nil {
			return nil, err
		}
	}
	return c.Collection.FindByID(ctx, id)
}

func (c *faultyCollection[T]) FindMany(ctx context.Context, filter shared.Filter) ([]T, error) {
	if c.onMany != nil {
		if err := c.onMany(filter); err != nil {
			return nil, err
		}
	}
	return c.Collection.FindMany(ctx, filter)
}

func (c *faultyCollection[T]) Insert(ctx context.Context, doc *T) error {
	if c.onInsert != nil {
		if err := c.onInsert(doc); err != nil {
			return err
		}
	}
	return c.Collection.Insert(ctx, doc)
}

func (c *faultyCollection[T]) ConditionalUpdate(ctx context.Context, id string, expectedVersion int64, patch shared.Patch) (bool, error) {
	if c.onUpdate != nil {
		if err := c.onUpdate(id, patch); err != nil {
			return false, err
		}
	}
	return c.Collection.ConditionalUpdate(ctx, id, expectedVersion, patch)
}

func (c *faultyCollection[T]) DeleteByID(ctx context.Context, id string) (bool, error) {
	if c.onDelete != nil {
		if err := c.onDelete(id); err != nil {
			return false, err
		}
	}
	return c.Collection.DeleteByID(ctx, id)
}

// failTimes returns a hook failing the first n calls with err
func failTimes(n int32, err error) func() error {
	var calls atomic.Int32
	return func() error {
		if calls.Add(1) <= n {
			return err
		}
		return nil
	}
}

// holdCalls returns a hook that blocks the first n calls until all n have
// arrived, so their reads see the same state before any of them writes
func holdCalls(n int32) func(shared.Filter) error {
	var calls atomic.Int32
	arrived := make(chan struct{})
	return func(shared.Filter) error {
		c := calls.Add(1)
		if c > n {
			return nil
		}
		if c == n {
			close(arrived)
		}
		select {
		case <-arrived:
		case <-time.After(5 * time.Second):
		}
		return nil
	}
}

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

func (p *recordingPublisher) ofType(eventType string) []shared.DomainEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []shared.DomainEvent
	for _, e := range p.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

func seedAccount(t *testing.T, store *ledger.Store, ownerID string) *ledger.Account {
	t.Helper()
	a := storetest.MustAccount(t, ownerID)
	require.NoError(t, store.Accounts.Insert(context.Background(), a))
	return a
}

func seedBudget(t *testing.T, store *ledger.Store, ownerID, name string, initial valueobject.Money) *ledger.Budget {
	t.Helper()
	b := storetest.MustBudget(t, ownerID, name, initial)
	require.NoError(t, store.Budgets.Insert(context.Background(), b))
	return b
}

func seedCategory(t *testing.T, store *ledger.Store, ownerID, name, sub string) *ledger.Category {
	t.Helper()
	c := storetest.MustCategory(t, ownerID, name, sub)
	require.NoError(t, store.Categories.Insert(context.Background(), c))
	return c
}

func seedExpense(t *testing.T, store *ledger.Store, ownerID, accountID string, amount valueobject.Money) *ledger.Expense {
	t.Helper()
	e := storetest.MustExpense(t, ownerID, accountID, amount)
	require.NoError(t, store.Expenses.Insert(context.Background(), e))
	return e
}

func seedIncome(t *testing.T, store *ledger.Store, ownerID, accountID string, expenseIDs ...string) *ledger.Income {
	t.Helper()
	i := storetest.MustIncome(t, ownerID, accountID, expenseIDs...)
	require.NoError(t, store.Incomes.Insert(context.Background(), i))
	return i
}

func mustBudget(t *testing.T, store *ledger.Store, id string) *ledger.Budget {
	t.Helper()
	b, err := store.Budgets.FindByID(context.Background(), id)
	require.NoError(t, err)
	return b
}

func mustExpense(t *testing.T, store *ledger.Store, id string) *ledger.Expense {
	t.Helper()
	e, err := store.Expenses.FindByID(context.Background(), id)
	require.NoError(t, err)
	return e
}

func historyOf(t *testing.T, store *ledger.Store, budgetID string) []ledger.BudgetHistoryEntry {
	t.Helper()
	entries, err := store.BudgetHistory.FindMany(context.Background(), shared.Filter{ledger.FieldBudgetID: budgetID})
	require.NoError(t, err)
	return entries
}

func expenseCommand(ownerID, accountID string, amount valueobject.Money, budgets ...string) ledger.CreateExpenseCommand {
	return ledger.CreateExpenseCommand{
		OwnerID:  ownerID,
		Kind:     ledger.RecordKindExpense,
		Category: ledger.CategoryByName("Food"),
		RecordFields: ledger.RecordFields{
			AccountID:   accountID,
			ShortName:   "Dinner",
			Amount:      amount,
			Date:        storetest.FixedDate,
			SubCategory: "Restaurants",
		},
		LinkedBudgets: budgets,
	}
}

func incomeCommand(ownerID, accountID string, expenseIDs ...string) ledger.CreateIncomeCommand {
	return ledger.CreateIncomeCommand{
		OwnerID:  ownerID,
		Kind:     ledger.RecordKindIncome,
		Category: ledger.CategoryByName("Salary"),
		RecordFields: ledger.RecordFields{
			AccountID: accountID,
			ShortName: "Paycheck",
			Amount:    250000,
			Date:      storetest.FixedDate,
		},
		ExpensesPaid: expenseIDs,
	}
}
