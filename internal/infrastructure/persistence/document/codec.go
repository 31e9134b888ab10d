// Package document holds the BSON document handling shared by every store
// adapter: encoding, filter matching and patch application.
package document

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/shared"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsonrw"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Encode converts a typed document into a BSON map.
// Nil slices become empty arrays so array operators work on fresh documents.
func Encode(v any) (bson.M, error) {
	buf := new(bytes.Buffer)
	vw, err := bsonrw.NewBSONValueWriter(buf)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	enc, err := bson.NewEncoder(vw)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	enc.NilSliceAsEmpty()
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return DecodeRaw(buf.Bytes())
}

// DecodeRaw parses stored BSON bytes into a map
func DecodeRaw(raw []byte) (bson.M, error) {
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return m, nil
}

// Marshal converts a BSON map into stored bytes
func Marshal(m bson.M) ([]byte, error) {
	raw, err := bson.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return raw, nil
}

// Decode converts a BSON map into a typed document
func Decode[T any](m bson.M) (*T, error) {
	raw, err := Marshal(m)
	if err != nil {
		return nil, err
	}
	var out T
	if err := bson.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return &out, nil
}

// DecodeInto overwrites dst with the contents of m
func DecodeInto(m bson.M, dst any) error {
	raw, err := Marshal(m)
	if err != nil {
		return err
	}
	if err := bson.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

// ID returns the document identifier
func ID(m bson.M) string {
	id, _ := m[shared.FieldID].(string)
	return id
}

// OwnerID returns the owner_id field, or "" if the document has none
func OwnerID(m bson.M) string {
	owner, _ := m[shared.FieldOwnerID].(string)
	return owner
}

// Version returns the stored version
func Version(m bson.M) int64 {
	v, _ := toInt64(m[shared.FieldVersion])
	return v
}

// PrepareInsert stamps a new document with the initial version and timestamps.
// created_at is kept when the caller already set it.
func PrepareInsert(m bson.M, now time.Time) error {
	if ID(m) == "" {
		return shared.NewDomainError(shared.ErrInvalidInput.Code, "document has no id")
	}
	ts := primitive.NewDateTimeFromTime(now)
	m[shared.FieldVersion] = shared.InitialVersion
	if created, ok := m[shared.FieldCreatedAt].(primitive.DateTime); !ok || created.Time().IsZero() {
		m[shared.FieldCreatedAt] = ts
	}
	m[shared.FieldUpdatedAt] = ts
	return nil
}

// UniqueKey joins the values of fields into a single comparable key.
// It returns "" when fields is empty.
func UniqueKey(m bson.M, fields []string) string {
	if len(fields) == 0 {
		return ""
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprint(m[f]))
	}
	return strings.Join(parts, "\x1f")
}

// SortByID orders documents by identifier
func SortByID(docs []bson.M) {
	sort.Slice(docs, func(i, j int) bool {
		return ID(docs[i]) < ID(docs[j])
	})
}
