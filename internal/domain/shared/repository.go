package shared

import "context"

// AnyVersion skips the version predicate of a conditional update.
// Updates issued with AnyVersion only succeed in changing the document when the
// patch is not already reflected in it, which makes them atomic add-if-absent
// operations.
const AnyVersion int64 = -1

// Filter is a field-equality filter keyed by stored field name.
// An array field matches when it contains the value.
type Filter map[string]any

// Patch describes a partial update of a document
type Patch struct {
	// Set overwrites fields with the given values
	Set map[string]any
	// AddToSet appends each value to the array field unless already present
	AddToSet map[string]any
	// Pull removes every occurrence of the value from the array field
	Pull map[string]any
}

// IsEmpty returns true if the patch changes nothing
func (p Patch) IsEmpty() bool {
	return len(p.Set) == 0 && len(p.AddToSet) == 0 && len(p.Pull) == 0
}

// Collection is the document-store contract every ledger collection is accessed through.
// Implementations must make ConditionalUpdate atomic with respect to other
// ConditionalUpdate calls on the same document.
type Collection[T any] interface {
	// FindByID returns ErrNotFound if the document does not exist
	FindByID(ctx context.Context, id string) (*T, error)
	// FindOne returns the first match or ErrNotFound
	FindOne(ctx context.Context, filter Filter) (*T, error)
	// FindMany returns all matches ordered by id
	FindMany(ctx context.Context, filter Filter) ([]T, error)
	// Insert stores a new document and refreshes doc with the stored version and timestamps.
	// Returns ErrAlreadyExists when the id or a unique key is taken.
	Insert(ctx context.Context, doc *T) error
	// ConditionalUpdate applies patch if the stored version equals expectedVersion
	// (or unconditionally for AnyVersion). It returns ErrNotFound for a missing
	// document and ErrConcurrencyConflict for a version mismatch. modified is false
	// when the patch was already reflected in the document.
	ConditionalUpdate(ctx context.Context, id string, expectedVersion int64, patch Patch) (modified bool, err error)
	// DeleteByID returns false when the document was already absent
	DeleteByID(ctx context.Context, id string) (bool, error)
}

// CollectionSpec names a collection and the field groups that must be unique within it
type CollectionSpec struct {
	Name         string
	UniqueFields [][]string
}
