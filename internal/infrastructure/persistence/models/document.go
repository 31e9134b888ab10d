package models

import (
	"time"

	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/shared"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/infrastructure/persistence/document"
	"go.mongodb.org/mongo-driver/bson"
)

// DocumentModel stores one ledger document as a BSON body.
// Identity, owner, version and the unique key are lifted into columns so they
// can be indexed and used as update predicates.
type DocumentModel struct {
	Collection string    `gorm:"type:varchar(64);primaryKey;uniqueIndex:idx_documents_unique_key,priority:1;index:idx_documents_owner,priority:1"`
	ID         string    `gorm:"type:varchar(64);primaryKey"`
	OwnerID    string    `gorm:"type:varchar(64);not null;index:idx_documents_owner,priority:2"`
	UniqueKey  *string   `gorm:"type:varchar(512);uniqueIndex:idx_documents_unique_key,priority:2"`
	Version    int64     `gorm:"not null"`
	Body       []byte    `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (DocumentModel) TableName() string {
	return "documents"
}

// ToDocument decodes the stored body
func (m *DocumentModel) ToDocument() (bson.M, error) {
	return document.DecodeRaw(m.Body)
}

// FromDocument fills the model from an encoded document.
// uniqueFields selects the fields that form the unique key; nil leaves it empty.
func (m *DocumentModel) FromDocument(collection string, doc bson.M, uniqueFields []string) error {
	body, err := document.Marshal(doc)
	if err != nil {
		return err
	}
	m.Collection = collection
	m.ID = document.ID(doc)
	m.OwnerID = document.OwnerID(doc)
	m.Version = document.Version(doc)
	m.Body = body
	m.UniqueKey = nil
	if key := document.UniqueKey(doc, uniqueFields); key != "" {
		m.UniqueKey = &key
	}
	m.CreatedAt = timeField(doc, shared.FieldCreatedAt)
	m.UpdatedAt = timeField(doc, shared.FieldUpdatedAt)
	return nil
}

func timeField(doc bson.M, field string) time.Time {
	if v, ok := doc[field].(interface{ Time() time.Time }); ok {
		return v.Time().UTC()
	}
	return time.Time{}
}
