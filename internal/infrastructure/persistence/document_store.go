package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/ledger"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/shared"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/infrastructure/persistence/document"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// maxAnyVersionAttempts bounds the internal retries of unversioned updates,
// which re-read the row whenever another writer bumps the version first
const maxAnyVersionAttempts = 16

// GormCollection implements shared.Collection on a relational "documents" table
type GormCollection[T any] struct {
	db   *gorm.DB
	spec shared.CollectionSpec
	now  func() time.Time
}

// NewGormCollection creates a collection backed by the documents table
func NewGormCollection[T any](db *gorm.DB, spec shared.CollectionSpec) *GormCollection[T] {
	return &GormCollection[T]{
		db:   db,
		spec: spec,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// NewGormLedgerStore wires every ledger collection to db
func NewGormLedgerStore(db *gorm.DB) *ledger.Store {
	specs := ledger.CollectionSpecs()
	return &ledger.Store{
		Categories:    NewGormCollection[ledger.Category](db, specs[ledger.CollectionCategories]),
		Accounts:      NewGormCollection[ledger.Account](db, specs[ledger.CollectionAccounts]),
		Expenses:      NewGormCollection[ledger.Expense](db, specs[ledger.CollectionExpenses]),
		Incomes:       NewGormCollection[ledger.Income](db, specs[ledger.CollectionIncomes]),
		Budgets:       NewGormCollection[ledger.Budget](db, specs[ledger.CollectionBudgets]),
		BudgetHistory: NewGormCollection[ledger.BudgetHistoryEntry](db, specs[ledger.CollectionBudgetHistory]),
	}
}

// uniqueFields returns the field group stored in the unique_key column.
// The table has a single unique key column, so only the first group is enforced.
func (c *GormCollection[T]) uniqueFields() []string {
	if len(c.spec.UniqueFields) == 0 {
		return nil
	}
	return c.spec.UniqueFields[0]
}

func (c *GormCollection[T]) takeModel(ctx context.Context, id string) (*models.DocumentModel, error) {
	var model models.DocumentModel
	err := c.db.WithContext(ctx).
		Where("collection = ? AND id = ?", c.spec.Name, id).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &model, nil
}

// FindByID finds a document by its ID
func (c *GormCollection[T]) FindByID(ctx context.Context, id string) (*T, error) {
	model, err := c.takeModel(ctx, id)
	if err != nil {
		return nil, err
	}
	doc, err := model.ToDocument()
	if err != nil {
		return nil, err
	}
	return document.Decode[T](doc)
}

// FindOne returns the first document matching filter
func (c *GormCollection[T]) FindOne(ctx context.Context, filter shared.Filter) (*T, error) {
	found, err := c.FindMany(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, shared.ErrNotFound
	}
	return &found[0], nil
}

// FindMany narrows rows by the indexed id and owner columns, then applies the
// rest of the filter to the decoded bodies
func (c *GormCollection[T]) FindMany(ctx context.Context, filter shared.Filter) ([]T, error) {
	query := c.db.WithContext(ctx).Where("collection = ?", c.spec.Name)
	if owner, ok := filter[shared.FieldOwnerID].(string); ok {
		query = query.Where("owner_id = ?", owner)
	}
	if id, ok := filter[shared.FieldID].(string); ok {
		query = query.Where("id = ?", id)
	}

	var rows []models.DocumentModel
	if err := query.Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]T, 0, len(rows))
	for i := range rows {
		doc, err := rows[i].ToDocument()
		if err != nil {
			return nil, err
		}
		ok, err := document.Matches(doc, filter)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		typed, err := document.Decode[T](doc)
		if err != nil {
			return nil, err
		}
		out = append(out, *typed)
	}
	return out, nil
}

// Insert stores a new document
func (c *GormCollection[T]) Insert(ctx context.Context, doc *T) error {
	m, err := document.Encode(doc)
	if err != nil {
		return err
	}
	if err := document.PrepareInsert(m, c.now()); err != nil {
		return err
	}
	var model models.DocumentModel
	if err := model.FromDocument(c.spec.Name, m, c.uniqueFields()); err != nil {
		return err
	}
	if err := c.db.WithContext(ctx).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.WrapDomainError(shared.ErrAlreadyExists, c.spec.Name+" "+model.ID+" already exists", err)
		}
		return err
	}
	return document.DecodeInto(m, doc)
}

// ConditionalUpdate reads the row, applies patch in memory and writes it back
// guarded by the version it read.
func (c *GormCollection[T]) ConditionalUpdate(ctx context.Context, id string, expectedVersion int64, patch shared.Patch) (bool, error) {
	if err := document.ValidatePatch(patch); err != nil {
		return false, err
	}

	for attempt := 0; attempt < maxAnyVersionAttempts; attempt++ {
		model, err := c.takeModel(ctx, id)
		if err != nil {
			return false, err
		}
		if expectedVersion != shared.AnyVersion && model.Version != expectedVersion {
			return false, shared.ErrConcurrencyConflict
		}

		doc, err := model.ToDocument()
		if err != nil {
			return false, err
		}
		readVersion := model.Version
		doc[shared.FieldVersion] = readVersion
		changed, err := document.Apply(doc, patch, c.now())
		if err != nil || !changed {
			return false, err
		}

		var next models.DocumentModel
		if err := next.FromDocument(c.spec.Name, doc, c.uniqueFields()); err != nil {
			return false, err
		}

		result := c.db.WithContext(ctx).
			Model(&models.DocumentModel{}).
			Where("collection = ? AND id = ? AND version = ?", c.spec.Name, id, readVersion).
			Updates(map[string]any{
				"body":       next.Body,
				"version":    next.Version,
				"unique_key": next.UniqueKey,
				"updated_at": next.UpdatedAt,
			})
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
				return false, shared.WrapDomainError(shared.ErrAlreadyExists, c.spec.Name+" unique key already taken", result.Error)
			}
			return false, result.Error
		}
		if result.RowsAffected == 1 {
			return true, nil
		}
		if expectedVersion != shared.AnyVersion {
			return false, shared.ErrConcurrencyConflict
		}
	}
	return false, shared.ErrConcurrencyConflict
}

// DeleteByID removes a document, reporting false when it was already absent
func (c *GormCollection[T]) DeleteByID(ctx context.Context, id string) (bool, error) {
	result := c.db.WithContext(ctx).
		Where("collection = ? AND id = ?", c.spec.Name, id).
		Delete(&models.DocumentModel{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

var _ shared.Collection[ledger.Budget] = (*GormCollection[ledger.Budget])(nil)

