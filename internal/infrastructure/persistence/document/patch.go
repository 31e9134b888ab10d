package document

import (
	"fmt"
	"time"

	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/shared"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var protectedFields = map[string]bool{
	shared.FieldID:        true,
	shared.FieldVersion:   true,
	shared.FieldCreatedAt: true,
	shared.FieldUpdatedAt: true,
}

// ValidatePatch rejects patches that touch store-managed fields
func ValidatePatch(p shared.Patch) error {
	for _, fields := range []map[string]any{p.Set, p.AddToSet, p.Pull} {
		for f := range fields {
			if protectedFields[f] {
				return shared.NewDomainError(shared.ErrInvalidInput.Code, fmt.Sprintf("field %q is managed by the store", f))
			}
		}
	}
	return nil
}

// Apply mutates doc according to patch and reports whether anything changed.
// When it did, the version is incremented and updated_at is set to now.
func Apply(doc bson.M, p shared.Patch, now time.Time) (bool, error) {
	if err := ValidatePatch(p); err != nil {
		return false, err
	}
	changed := false

	for field, v := range p.Set {
		nv, err := Normalize(v)
		if err != nil {
			return false, err
		}
		if cur, ok := doc[field]; ok && Equal(cur, nv) {
			continue
		}
		doc[field] = nv
		changed = true
	}

	for field, v := range p.AddToSet {
		nv, err := Normalize(v)
		if err != nil {
			return false, err
		}
		arr, err := arrayField(doc, field)
		if err != nil {
			return false, err
		}
		if contains(arr, nv) {
			continue
		}
		doc[field] = append(arr, nv)
		changed = true
	}

	for field, v := range p.Pull {
		nv, err := Normalize(v)
		if err != nil {
			return false, err
		}
		arr, err := arrayField(doc, field)
		if err != nil {
			return false, err
		}
		kept := primitive.A{}
		for _, el := range arr {
			if !Equal(el, nv) {
				kept = append(kept, el)
			}
		}
		if len(kept) != len(arr) {
			doc[field] = kept
			changed = true
		}
	}

	if changed {
		doc[shared.FieldVersion] = Version(doc) + 1
		doc[shared.FieldUpdatedAt] = primitive.NewDateTimeFromTime(now)
	}
	return changed, nil
}

func arrayField(doc bson.M, field string) (primitive.A, error) {
	switch v := doc[field].(type) {
	case nil:
		return primitive.A{}, nil
	case primitive.A:
		return v, nil
	default:
		return nil, shared.NewDomainError(shared.ErrInvalidInput.Code, fmt.Sprintf("field %q is not an array", field))
	}
}
