// Package memory provides an in-process implementation of the document store
// contract, used by tests and by the CLI's memory backend.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/ledger"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/shared"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/infrastructure/persistence/document"
	"go.mongodb.org/mongo-driver/bson"
)

// Backend holds every collection's documents as encoded BSON
type Backend struct {
	mu          sync.RWMutex
	collections map[string]map[string][]byte
	now         func() time.Time
}

// NewBackend creates an empty backend
func NewBackend() *Backend {
	return &Backend{
		collections: make(map[string]map[string][]byte),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Collection is a typed view of one collection of a Backend
type Collection[T any] struct {
	backend *Backend
	spec    shared.CollectionSpec
}

// NewCollection creates a typed collection
func NewCollection[T any](b *Backend, spec shared.CollectionSpec) *Collection[T] {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.collections[spec.Name]; !ok {
		b.collections[spec.Name] = make(map[string][]byte)
	}
	return &Collection[T]{backend: b, spec: spec}
}

// NewLedgerStore wires every ledger collection to the backend
func NewLedgerStore(b *Backend) *ledger.Store {
	specs := ledger.CollectionSpecs()
	return &ledger.Store{
		Categories:    NewCollection[ledger.Category](b, specs[ledger.CollectionCategories]),
		Accounts:      NewCollection[ledger.Account](b, specs[ledger.CollectionAccounts]),
		Expenses:      NewCollection[ledger.Expense](b, specs[ledger.CollectionExpenses]),
		Incomes:       NewCollection[ledger.Income](b, specs[ledger.CollectionIncomes]),
		Budgets:       NewCollection[ledger.Budget](b, specs[ledger.CollectionBudgets]),
		BudgetHistory: NewCollection[ledger.BudgetHistoryEntry](b, specs[ledger.CollectionBudgetHistory]),
	}
}

func (c *Collection[T]) docs() map[string][]byte {
	return c.backend.collections[c.spec.Name]
}

// FindByID returns a document by id
func (c *Collection[T]) FindByID(ctx context.Context, id string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.backend.mu.RLock()
	raw, ok := c.docs()[id]
	c.backend.mu.RUnlock()
	if !ok {
		return nil, shared.ErrNotFound
	}
	m, err := document.DecodeRaw(raw)
	if err != nil {
		return nil, err
	}
	return document.Decode[T](m)
}

// FindOne returns the first document matching filter
func (c *Collection[T]) FindOne(ctx context.Context, filter shared.Filter) (*T, error) {
	found, err := c.FindMany(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, shared.ErrNotFound
	}
	return &found[0], nil
}

// FindMany returns every document matching filter, ordered by id
func (c *Collection[T]) FindMany(ctx context.Context, filter shared.Filter) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.backend.mu.RLock()
	matched := make([]bson.M, 0)
	for _, raw := range c.docs() {
		m, err := document.DecodeRaw(raw)
		if err != nil {
			c.backend.mu.RUnlock()
			return nil, err
		}
		ok, err := document.Matches(m, filter)
		if err != nil {
			c.backend.mu.RUnlock()
			return nil, err
		}
		if ok {
			matched = append(matched, m)
		}
	}
	c.backend.mu.RUnlock()

	document.SortByID(matched)
	out := make([]T, 0, len(matched))
	for _, m := range matched {
		doc, err := document.Decode[T](m)
		if err != nil {
			return nil, err
		}
		out = append(out, *doc)
	}
	return out, nil
}

// Insert stores a new document
func (c *Collection[T]) Insert(ctx context.Context, doc *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m, err := document.Encode(doc)
	if err != nil {
		return err
	}
	if err := document.PrepareInsert(m, c.backend.now()); err != nil {
		return err
	}
	raw, err := document.Marshal(m)
	if err != nil {
		return err
	}

	c.backend.mu.Lock()
	defer c.backend.mu.Unlock()

	id := document.ID(m)
	if _, exists := c.docs()[id]; exists {
		return shared.NewDomainError(shared.ErrAlreadyExists.Code, c.spec.Name+" "+id+" already exists")
	}
	if err := c.checkUnique(m, id); err != nil {
		return err
	}
	c.docs()[id] = raw
	return document.DecodeInto(m, doc)
}

// checkUnique must be called with the write lock held
func (c *Collection[T]) checkUnique(m bson.M, selfID string) error {
	for _, fields := range c.spec.UniqueFields {
		key := document.UniqueKey(m, fields)
		for id, raw := range c.docs() {
			if id == selfID {
				continue
			}
			other, err := document.DecodeRaw(raw)
			if err != nil {
				return err
			}
			if document.UniqueKey(other, fields) == key {
				return shared.NewDomainError(shared.ErrAlreadyExists.Code, c.spec.Name+" unique key already taken")
			}
		}
	}
	return nil
}

// ConditionalUpdate applies patch under the backend lock
func (c *Collection[T]) ConditionalUpdate(ctx context.Context, id string, expectedVersion int64, patch shared.Patch) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := document.ValidatePatch(patch); err != nil {
		return false, err
	}

	c.backend.mu.Lock()
	defer c.backend.mu.Unlock()

	raw, ok := c.docs()[id]
	if !ok {
		return false, shared.ErrNotFound
	}
	m, err := document.DecodeRaw(raw)
	if err != nil {
		return false, err
	}
	if expectedVersion != shared.AnyVersion && document.Version(m) != expectedVersion {
		return false, shared.ErrConcurrencyConflict
	}
	changed, err := document.Apply(m, patch, c.backend.now())
	if err != nil || !changed {
		return false, err
	}
	if err := c.checkUnique(m, id); err != nil {
		return false, err
	}
	updated, err := document.Marshal(m)
	if err != nil {
		return false, err
	}
	c.docs()[id] = updated
	return true, nil
}

// DeleteByID removes a document
func (c *Collection[T]) DeleteByID(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	c.backend.mu.Lock()
	defer c.backend.mu.Unlock()
	if _, ok := c.docs()[id]; !ok {
		return false, nil
	}
	delete(c.docs(), id)
	return true, nil
}
