package ledger

import (
	"context"
	"errors"

	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/ledger"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/shared"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/infrastructure/logger"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// CategoryResolver turns a category reference into a category id, creating
// categories named for the first time and merging new sub-categories.
type CategoryResolver struct {
	categories shared.Collection[ledger.Category]
	logger     *zap.Logger
}

// NewCategoryResolver creates a new CategoryResolver
func NewCategoryResolver(categories shared.Collection[ledger.Category], logger *zap.Logger) *CategoryResolver {
	return &CategoryResolver{categories: categories, logger: logger}
}

// Resolve returns the id of the category ref points at, with subCategory
// present in its sub-category set. An empty subCategory leaves the set alone.
func (r *CategoryResolver) Resolve(ctx context.Context, ref ledger.CategoryRef, subCategory, ownerID string) (ledger.ResolveResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "category_resolver", "resolve")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrOwnerID, ownerID, "ref_kind", ref.Kind().String())

	if err := ref.Validate(); err != nil {
		return ledger.ResolveResult{}, err
	}

	var (
		result ledger.ResolveResult
		err    error
	)
	switch ref.Kind() {
	case ledger.CategoryRefByID:
		result, err = r.resolveByID(ctx, ref.Value(), subCategory, ownerID)
	default:
		result, err = r.resolveByName(ctx, ref.Value(), subCategory, ownerID)
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return ledger.ResolveResult{}, err
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrCategoryID, result.CategoryID, "note", string(result.Note))
	logger.WithLogger(ctx, r.logger).Debug("category resolved",
		zap.String("ref", ref.String()),
		zap.String("category_id", result.CategoryID),
		zap.String("note", string(result.Note)),
	)
	return result, nil
}

func (r *CategoryResolver) resolveByID(ctx context.Context, id, subCategory, ownerID string) (ledger.ResolveResult, error) {
	cat, err := r.categories.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return ledger.ResolveResult{}, invalidCategory(id)
		}
		return ledger.ResolveResult{}, ledger.StoreError("find category", err)
	}
	if cat.OwnerID != ownerID {
		// another user's category is indistinguishable from a missing one
		return ledger.ResolveResult{}, invalidCategory(id)
	}
	return r.mergeSubCategory(ctx, cat, subCategory)
}

func (r *CategoryResolver) resolveByName(ctx context.Context, name, subCategory, ownerID string) (ledger.ResolveResult, error) {
	filter := shared.Filter{shared.FieldOwnerID: ownerID, ledger.FieldCategoryName: name}

	cat, err := r.categories.FindOne(ctx, filter)
	if err == nil {
		return r.mergeSubCategory(ctx, cat, subCategory)
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return ledger.ResolveResult{}, ledger.StoreError("find category", err)
	}

	created, err := ledger.NewCategory(ownerID, name, "", subCategory)
	if err != nil {
		return ledger.ResolveResult{}, err
	}
	err = r.categories.Insert(ctx, created)
	if err == nil {
		return ledger.ResolveResult{CategoryID: created.ID, Note: ledger.ResolutionCreated}, nil
	}
	if !errors.Is(err, shared.ErrAlreadyExists) {
		return ledger.ResolveResult{}, ledger.StoreError("insert category", err)
	}

	// A concurrent resolve created it first
	cat, err = r.categories.FindOne(ctx, filter)
	if err != nil {
		return ledger.ResolveResult{}, ledger.StoreError("find category", err)
	}
	return r.mergeSubCategory(ctx, cat, subCategory)
}

// mergeSubCategory adds subCategory with an add-if-absent update, so two
// concurrent merges of different names both survive.
func (r *CategoryResolver) mergeSubCategory(ctx context.Context, cat *ledger.Category, subCategory string) (ledger.ResolveResult, error) {
	result := ledger.ResolveResult{CategoryID: cat.ID, Note: ledger.ResolutionUnchanged}
	if subCategory == "" || cat.HasSubCategory(subCategory) {
		return result, nil
	}

	modified, err := r.categories.ConditionalUpdate(ctx, cat.ID, shared.AnyVersion, shared.Patch{
		AddToSet: map[string]any{ledger.FieldCategorySubCategories: subCategory},
	})
	if err != nil {
		return ledger.ResolveResult{}, ledger.StoreError("merge sub-category", err)
	}
	if modified {
		result.Note = ledger.ResolutionMerged
	}
	return result, nil
}

func invalidCategory(id string) error {
	return shared.WrapDomainError(ledger.ErrInvalidCategoryReference, "category "+id+" does not exist", nil)
}
