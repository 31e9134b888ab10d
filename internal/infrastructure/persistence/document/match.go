package document

import (
	"fmt"
	"reflect"

	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/shared"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Normalize converts a Go value into the representation it has after a BSON
// round trip, so patch and filter values compare equal to stored values.
func Normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	m, err := Encode(bson.M{"v": v})
	if err != nil {
		return nil, fmt.Errorf("normalize %T: %w", v, err)
	}
	return m["v"], nil
}

// Matches reports whether doc satisfies every equality in filter.
// A stored array matches a scalar filter value when it contains the value.
func Matches(doc bson.M, filter shared.Filter) (bool, error) {
	for field, want := range filter {
		nv, err := Normalize(want)
		if err != nil {
			return false, err
		}
		got, present := doc[field]
		if !present {
			if nv != nil {
				return false, nil
			}
			continue
		}
		if arr, ok := got.(primitive.A); ok {
			if _, wantArr := nv.(primitive.A); !wantArr {
				if !contains(arr, nv) {
					return false, nil
				}
				continue
			}
		}
		if !Equal(got, nv) {
			return false, nil
		}
	}
	return true, nil
}

// Equal compares two normalized values, treating integer widths as equivalent
func Equal(a, b any) bool {
	if ai, ok := toInt64(a); ok {
		if bi, ok := toInt64(b); ok {
			return ai == bi
		}
	}
	return reflect.DeepEqual(a, b)
}

func contains(arr primitive.A, v any) bool {
	for _, el := range arr {
		if Equal(el, v) {
			return true
		}
	}
	return false
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	default:
		return 0, false
	}
}
