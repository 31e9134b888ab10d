package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/shared"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/infrastructure/persistence/document"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection implements shared.Collection on a MongoDB collection.
// Conditional updates are single UpdateOne calls whose filter carries both the
// version predicate and a "would change something" predicate.
type Collection[T any] struct {
	coll *mongo.Collection
	spec shared.CollectionSpec
	now  func() time.Time
}

// NewCollection binds spec to its collection in db
func NewCollection[T any](db *mongo.Database, spec shared.CollectionSpec) *Collection[T] {
	return &Collection[T]{
		coll: db.Collection(spec.Name),
		spec: spec,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// FindByID finds a document by its ID
func (c *Collection[T]) FindByID(ctx context.Context, id string) (*T, error) {
	return c.FindOne(ctx, shared.Filter{shared.FieldID: id})
}

// FindOne returns the lowest-id match
func (c *Collection[T]) FindOne(ctx context.Context, filter shared.Filter) (*T, error) {
	var out T
	opts := options.FindOne().SetSort(bson.D{{Key: shared.FieldID, Value: 1}})
	err := c.coll.FindOne(ctx, bson.M(filter), opts).Decode(&out)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

// FindMany returns all matches ordered by id
func (c *Collection[T]) FindMany(ctx context.Context, filter shared.Filter) ([]T, error) {
	opts := options.Find().SetSort(bson.D{{Key: shared.FieldID, Value: 1}})
	cursor, err := c.coll.Find(ctx, bson.M(filter), opts)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Insert stores a new document
func (c *Collection[T]) Insert(ctx context.Context, doc *T) error {
	m, err := document.Encode(doc)
	if err != nil {
		return err
	}
	if err := document.PrepareInsert(m, c.now()); err != nil {
		return err
	}
	if _, err := c.coll.InsertOne(ctx, m); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return shared.WrapDomainError(shared.ErrAlreadyExists, c.spec.Name+" "+document.ID(m)+" already exists", err)
		}
		return err
	}
	return document.DecodeInto(m, doc)
}

// ConditionalUpdate applies patch in one round trip. When nothing matched, the
// current version tells a missing document, a stale version and an already
// applied patch apart. Versions only grow, so a document still at the expected
// version did not match because the patch was already reflected.
func (c *Collection[T]) ConditionalUpdate(ctx context.Context, id string, expectedVersion int64, patch shared.Patch) (bool, error) {
	if err := document.ValidatePatch(patch); err != nil {
		return false, err
	}

	if !patch.IsEmpty() {
		res, err := c.coll.UpdateOne(ctx,
			updateFilter(id, expectedVersion, patch),
			updateDocument(patch, c.now()),
		)
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return false, shared.WrapDomainError(shared.ErrAlreadyExists, c.spec.Name+" unique key already taken", err)
			}
			return false, err
		}
		if res.ModifiedCount > 0 {
			return true, nil
		}
	}

	var current struct {
		Version int64 `bson:"version"`
	}
	opts := options.FindOne().SetProjection(bson.M{shared.FieldVersion: 1})
	err := c.coll.FindOne(ctx, bson.M{shared.FieldID: id}, opts).Decode(&current)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, shared.ErrNotFound
		}
		return false, err
	}
	if expectedVersion != shared.AnyVersion && current.Version != expectedVersion {
		return false, shared.ErrConcurrencyConflict
	}
	return false, nil
}

// DeleteByID removes a document, reporting false when it was already absent
func (c *Collection[T]) DeleteByID(ctx context.Context, id string) (bool, error) {
	res, err := c.coll.DeleteOne(ctx, bson.M{shared.FieldID: id})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

// updateFilter matches the document only when the patch would change it
func updateFilter(id string, expectedVersion int64, patch shared.Patch) bson.M {
	changes := bson.A{}
	for field, v := range patch.Set {
		changes = append(changes, bson.M{field: bson.M{"$ne": v}})
	}
	for field, v := range patch.AddToSet {
		changes = append(changes, bson.M{field: bson.M{"$ne": v}})
	}
	for field, v := range patch.Pull {
		changes = append(changes, bson.M{field: v})
	}

	filter := bson.M{shared.FieldID: id, "$or": changes}
	if expectedVersion != shared.AnyVersion {
		filter[shared.FieldVersion] = expectedVersion
	}
	return filter
}

func updateDocument(patch shared.Patch, now time.Time) bson.M {
	set := bson.M{shared.FieldUpdatedAt: now.Truncate(time.Millisecond)}
	for field, v := range patch.Set {
		set[field] = v
	}
	update := bson.M{
		"$set": set,
		"$inc": bson.M{shared.FieldVersion: int64(1)},
	}
	if len(patch.AddToSet) > 0 {
		update["$addToSet"] = bson.M(patch.AddToSet)
	}
	if len(patch.Pull) > 0 {
		update["$pull"] = bson.M(patch.Pull)
	}
	return update
}

var _ shared.Collection[struct{}] = (*Collection[struct{}])(nil)
