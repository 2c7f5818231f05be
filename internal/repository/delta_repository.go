package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/noah-isme/drive-api/internal/graph"
	"github.com/noah-isme/drive-api/internal/models"
)

const deltaCounter = "delta"

// DeltaFilter selects the change log entries visible to a query: entries past
// the sequence, owned by the principal or belonging to one of its shares, and
// below the scope node when given.
func DeltaFilter(q models.DeltaQuery) bson.M {
	visible := bson.A{bson.M{"owner": q.Owner}}
	if len(q.Shares) > 0 {
		visible = append(visible, bson.M{"share": bson.M{"$in": q.Shares}})
	}
	filter := bson.M{
		"seq": bson.M{"$gt": q.AfterSeq},
		"$or": visible,
	}
	if q.Scope != nil {
		filter["ancestors"] = *q.Scope
	}
	return filter
}

// MongoDeltaRepository stores the change log and its sequence counter.
type MongoDeltaRepository struct {
	deltas   *mongo.Collection
	counters *mongo.Collection
	observer QueryObserver
}

// NewMongoDeltaRepository constructs the repository. observer may be nil.
func NewMongoDeltaRepository(db *mongo.Database, observer QueryObserver) *MongoDeltaRepository {
	return &MongoDeltaRepository{
		deltas:   db.Collection(models.DeltaCollection),
		counters: db.Collection(models.CounterCollection),
		observer: observer,
	}
}

func (r *MongoDeltaRepository) observe(label string, start time.Time) {
	if r.observer != nil {
		r.observer.ObserveDBQuery("delta."+label, time.Since(start))
	}
}

// Append assigns the next sequence number to rec and stores it.
func (r *MongoDeltaRepository) Append(ctx context.Context, rec *models.DeltaRecord) error {
	defer r.observe("append", time.Now())
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": deltaCounter},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return fmt.Errorf("next delta sequence: %w", err)
	}
	rec.Seq = counter.Seq
	if rec.ID.IsZero() {
		rec.ID = primitive.NewObjectID()
	}
	if _, err := r.deltas.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("insert delta: %w", err)
	}
	return nil
}

// LastSeq returns the most recently assigned sequence number, zero if none.
func (r *MongoDeltaRepository) LastSeq(ctx context.Context) (int64, error) {
	defer r.observe("last_seq", time.Now())
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := r.counters.FindOne(ctx, bson.M{"_id": deltaCounter}).Decode(&counter)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, nil
		}
		return 0, fmt.Errorf("read delta sequence: %w", err)
	}
	return counter.Seq, nil
}

// Since returns visible entries after q.AfterSeq in sequence order.
func (r *MongoDeltaRepository) Since(ctx context.Context, q models.DeltaQuery) ([]models.DeltaRecord, error) {
	defer r.observe("since", time.Now())
	opts := options.Find().SetSort(bson.D{{Key: "seq", Value: 1}})
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	cur, err := r.deltas.Find(ctx, DeltaFilter(q), opts)
	if err != nil {
		return nil, fmt.Errorf("find deltas: %w", err)
	}
	var records []models.DeltaRecord
	if err := cur.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decode deltas: %w", err)
	}
	return records, nil
}

// MemoryDeltaRepository is the in-process change log.
type MemoryDeltaRepository struct {
	mu      sync.RWMutex
	seq     int64
	records []models.DeltaRecord
}

// NewMemoryDeltaRepository constructs an empty change log.
func NewMemoryDeltaRepository() *MemoryDeltaRepository {
	return &MemoryDeltaRepository{}
}

// Append assigns the next sequence number to rec and stores it.
func (r *MemoryDeltaRepository) Append(ctx context.Context, rec *models.DeltaRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	rec.Seq = r.seq
	if rec.ID.IsZero() {
		rec.ID = primitive.NewObjectID()
	}
	r.records = append(r.records, *rec)
	return nil
}

// LastSeq returns the most recently assigned sequence number.
func (r *MemoryDeltaRepository) LastSeq(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.seq, nil
}

// Since returns visible entries after q.AfterSeq in sequence order.
func (r *MemoryDeltaRepository) Since(ctx context.Context, q models.DeltaQuery) ([]models.DeltaRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	filter := DeltaFilter(q)
	var out []models.DeltaRecord
	for _, rec := range r.records {
		raw, err := toRaw(rec)
		if err != nil {
			return nil, err
		}
		if !graph.Match(raw, filter) {
			continue
		}
		out = append(out, rec)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out, nil
}
