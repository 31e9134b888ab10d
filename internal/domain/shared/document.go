package shared

import (
	"time"

	"github.com/google/uuid"
)

// InitialVersion is the version every document starts at
const InitialVersion int64 = 1

// Document field names shared by every collection
const (
	FieldID        = "_id"
	FieldVersion   = "version"
	FieldOwnerID   = "owner_id"
	FieldCreatedAt = "created_at"
	FieldUpdatedAt = "updated_at"
)

// BaseDocument provides the identity, optimistic-concurrency version and
// timestamps carried by every stored document.
// Embed it with `bson:",inline"`.
type BaseDocument struct {
	ID        string    `bson:"_id" json:"id"`
	Version   int64     `bson:"version" json:"version"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// GetID returns the document ID
func (d *BaseDocument) GetID() string {
	return d.ID
}

// GetVersion returns the version the document was read at
func (d *BaseDocument) GetVersion() int64 {
	return d.Version
}

// NewBaseDocument creates a base document with a generated ID.
// A non-empty id is kept, which lets callers supply client-generated identifiers.
func NewBaseDocument(id string) BaseDocument {
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	return BaseDocument{
		ID:        id,
		Version:   InitialVersion,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
