package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/noah-isme/drive-api/internal/graph"
	"github.com/noah-isme/drive-api/internal/models"
)

// ErrNotFound is returned when no document matches.
var ErrNotFound = errors.New("document not found")

// QueryObserver receives store query timings.
type QueryObserver interface {
	ObserveDBQuery(label string, duration time.Duration)
}

// MongoNodeRepository persists nodes in the flat storage collection.
type MongoNodeRepository struct {
	coll     *mongo.Collection
	observer QueryObserver
}

// NewMongoNodeRepository constructs the repository. observer may be nil.
func NewMongoNodeRepository(db *mongo.Database, observer QueryObserver) *MongoNodeRepository {
	return &MongoNodeRepository{coll: db.Collection(models.NodeCollection), observer: observer}
}

func (r *MongoNodeRepository) observe(label string, start time.Time) {
	if r.observer != nil {
		r.observer.ObserveDBQuery("storage."+label, time.Since(start))
	}
}

// FindByID fetches a raw node document.
func (r *MongoNodeRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.NodeDocument, error) {
	return r.FindOne(ctx, bson.M{"_id": id})
}

// FindOne fetches the first document matching filter.
func (r *MongoNodeRepository) FindOne(ctx context.Context, filter bson.M) (*models.NodeDocument, error) {
	defer r.observe("find_one", time.Now())
	var doc models.NodeDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find node: %w", err)
	}
	return &doc, nil
}

// Find returns documents matching filter in id order. limit <= 0 is unbounded.
func (r *MongoNodeRepository) Find(ctx context.Context, filter bson.M, limit int64) ([]models.NodeDocument, error) {
	defer r.observe("find", time.Now())
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find nodes: %w", err)
	}
	var docs []models.NodeDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode nodes: %w", err)
	}
	return docs, nil
}

// Count counts documents matching filter.
func (r *MongoNodeRepository) Count(ctx context.Context, filter bson.M) (int64, error) {
	defer r.observe("count", time.Now())
	n, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count nodes: %w", err)
	}
	return n, nil
}

// Insert stores a new document, assigning an id when missing.
func (r *MongoNodeRepository) Insert(ctx context.Context, doc *models.NodeDocument) (primitive.ObjectID, error) {
	defer r.observe("insert", time.Now())
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return primitive.NilObjectID, fmt.Errorf("insert node: %w", err)
	}
	return doc.ID, nil
}

// Update applies an update document ($set/$unset) to one node atomically.
func (r *MongoNodeRepository) Update(ctx context.Context, id primitive.ObjectID, update bson.M) error {
	defer r.observe("update", time.Now())
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("update node: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateMany applies an update document to every match.
func (r *MongoNodeRepository) UpdateMany(ctx context.Context, filter bson.M, update bson.M) (int64, error) {
	defer r.observe("update_many", time.Now())
	res, err := r.coll.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("update nodes: %w", err)
	}
	return res.ModifiedCount, nil
}

// Delete removes one document.
func (r *MongoNodeRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	defer r.observe("delete", time.Now())
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete node: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMany removes every match.
func (r *MongoNodeRepository) DeleteMany(ctx context.Context, filter bson.M) (int64, error) {
	defer r.observe("delete_many", time.Now())
	res, err := r.coll.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("delete nodes: %w", err)
	}
	return res.DeletedCount, nil
}

// Children runs the children traversal in its count and page passes.
func (r *MongoNodeRepository) Children(ctx context.Context, q graph.ChildrenQuery) ([]models.NodeDocument, int64, error) {
	defer r.observe("children", time.Now())
	return r.paged(ctx, q.Query())
}

// TrashRoots runs the trash traversal in its count and page passes.
func (r *MongoNodeRepository) TrashRoots(ctx context.Context, q graph.TrashQuery) ([]models.NodeDocument, int64, error) {
	defer r.observe("trash", time.Now())
	return r.paged(ctx, q.Query())
}

// Descendants returns the ids below q.Root, pruning rejected subtrees.
func (r *MongoNodeRepository) Descendants(ctx context.Context, q graph.DescendantsQuery) ([]primitive.ObjectID, error) {
	defer r.observe("descendants", time.Now())
	cur, err := r.coll.Aggregate(ctx, q.Pipeline())
	if err != nil {
		return nil, fmt.Errorf("aggregate descendants: %w", err)
	}
	var rows []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode descendants: %w", err)
	}
	ids := make([]primitive.ObjectID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids, nil
}

func (r *MongoNodeRepository) paged(ctx context.Context, q graph.Query) ([]models.NodeDocument, int64, error) {
	countCur, err := r.coll.Aggregate(ctx, q.CountPipeline())
	if err != nil {
		return nil, 0, fmt.Errorf("aggregate count: %w", err)
	}
	var counts []struct {
		Total int64 `bson:"total"`
	}
	if err := countCur.All(ctx, &counts); err != nil {
		return nil, 0, fmt.Errorf("decode count: %w", err)
	}
	var total int64
	if len(counts) > 0 {
		total = counts[0].Total
	}
	if total == 0 {
		return nil, 0, nil
	}

	cur, err := r.coll.Aggregate(ctx, q.PagePipeline())
	if err != nil {
		return nil, 0, fmt.Errorf("aggregate page: %w", err)
	}
	var docs []models.NodeDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("decode page: %w", err)
	}
	return docs, total, nil
}
