package ledger

import (
	"slices"
	"strings"

	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/shared"
)

// Category field names
const (
	FieldCategoryName          = "name"
	FieldCategorySubCategories = "sub_categories"
)

// Category groups records of one user. Names are unique per owner and the
// sub-category set never holds duplicates (compared case-sensitively).
type Category struct {
	shared.BaseDocument `bson:",inline"`
	OwnerID             string   `bson:"owner_id" json:"owner_id"`
	Name                string   `bson:"name" json:"name"`
	Icon                string   `bson:"icon" json:"icon"`
	SubCategories       []string `bson:"sub_categories" json:"sub_categories"`
}

// NewCategory creates a category seeded with at most one sub-category
func NewCategory(ownerID, name, icon, subCategory string) (*Category, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, NewValidationError(FieldViolation{Field: "owner_id", Message: "must not be empty"})
	}
	if strings.TrimSpace(name) == "" {
		return nil, NewValidationError(FieldViolation{Field: "category", Message: "name must not be empty"})
	}
	subs := []string{}
	if subCategory != "" {
		subs = append(subs, subCategory)
	}
	return &Category{
		BaseDocument:  shared.NewBaseDocument(""),
		OwnerID:       ownerID,
		Name:          name,
		Icon:          icon,
		SubCategories: subs,
	}, nil
}

// HasSubCategory reports whether name is already in the sub-category set
func (c *Category) HasSubCategory(name string) bool {
	return slices.Contains(c.SubCategories, name)
}

// CategoryRefKind tells which form a CategoryRef takes
type CategoryRefKind int

const (
	// CategoryRefByID references an existing category by identifier
	CategoryRefByID CategoryRefKind = iota + 1
	// CategoryRefByName references a category by name, creating it if absent
	CategoryRefByName
)

// String returns the kind label
func (k CategoryRefKind) String() string {
	switch k {
	case CategoryRefByID:
		return "id"
	case CategoryRefByName:
		return "name"
	default:
		return "unknown"
	}
}

// CategoryRef is a tagged reference to a category. The caller states the form
// explicitly, so a name that happens to look like an identifier is never
// mistaken for one.
type CategoryRef struct {
	kind  CategoryRefKind
	value string
}

// CategoryByID builds an identifier reference
func CategoryByID(id string) CategoryRef {
	return CategoryRef{kind: CategoryRefByID, value: id}
}

// CategoryByName builds a name reference
func CategoryByName(name string) CategoryRef {
	return CategoryRef{kind: CategoryRefByName, value: name}
}

// Kind returns the reference form
func (r CategoryRef) Kind() CategoryRefKind {
	return r.kind
}

// Value returns the identifier or the name
func (r CategoryRef) Value() string {
	return r.value
}

// IsZero returns true for an unset reference
func (r CategoryRef) IsZero() bool {
	return r.kind == 0
}

// Validate checks that the reference has a known form and a non-empty value
func (r CategoryRef) Validate() error {
	if r.kind != CategoryRefByID && r.kind != CategoryRefByName {
		return NewValidationError(FieldViolation{Field: "category", Message: "must reference a category by id or by name"})
	}
	if strings.TrimSpace(r.value) == "" {
		return NewValidationError(FieldViolation{Field: "category", Message: r.kind.String() + " must not be empty"})
	}
	return nil
}

// String renders the reference for logs
func (r CategoryRef) String() string {
	return r.kind.String() + ":" + r.value
}
