package repository

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/noah-isme/drive-api/internal/graph"
	"github.com/noah-isme/drive-api/internal/models"
)

// MemoryNodeRepository keeps node documents in process memory. Documents are
// held in their BSON form and queried with graph.Match, so filters and
// traversals behave like the MongoDB store. Used for development and tests.
type MemoryNodeRepository struct {
	mu sync.RWMutex

	// docs maps ids to raw documents.
	docs map[primitive.ObjectID]bson.M

	// order keeps insertion order, the natural order of the store.
	order []primitive.ObjectID
}

// NewMemoryNodeRepository constructs an empty store.
func NewMemoryNodeRepository() *MemoryNodeRepository {
	return &MemoryNodeRepository{docs: make(map[primitive.ObjectID]bson.M)}
}

// FindByID fetches a raw node document.
func (r *MemoryNodeRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.NodeDocument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	raw, ok := r.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return decodeNode(raw)
}

// FindOne fetches the first document matching filter.
func (r *MemoryNodeRepository) FindOne(ctx context.Context, filter bson.M) (*models.NodeDocument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.order {
		if raw := r.docs[id]; graph.Match(raw, filter) {
			return decodeNode(raw)
		}
	}
	return nil, ErrNotFound
}

// Find returns documents matching filter in id order.
func (r *MemoryNodeRepository) Find(ctx context.Context, filter bson.M, limit int64) ([]models.NodeDocument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	matches := r.match(filter)
	sortByID(matches)
	if limit > 0 && int64(len(matches)) > limit {
		matches = matches[:limit]
	}
	return decodeNodes(matches)
}

// Count counts documents matching filter.
func (r *MemoryNodeRepository) Count(ctx context.Context, filter bson.M) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.match(filter))), nil
}

// Insert stores a new document, assigning an id when missing.
func (r *MemoryNodeRepository) Insert(ctx context.Context, doc *models.NodeDocument) (primitive.ObjectID, error) {
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}
	raw, err := toRaw(doc)
	if err != nil {
		return primitive.NilObjectID, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.docs[doc.ID]; exists {
		return primitive.NilObjectID, fmt.Errorf("insert node: duplicate id %s", doc.ID.Hex())
	}
	r.docs[doc.ID] = raw
	r.order = append(r.order, doc.ID)
	return doc.ID, nil
}

// Update applies $set and $unset to one node.
func (r *MemoryNodeRepository) Update(ctx context.Context, id primitive.ObjectID, update bson.M) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	raw, ok := r.docs[id]
	if !ok {
		return ErrNotFound
	}
	next, err := applyUpdate(raw, update)
	if err != nil {
		return err
	}
	r.docs[id] = next
	return nil
}

// UpdateMany applies an update to every match.
func (r *MemoryNodeRepository) UpdateMany(ctx context.Context, filter bson.M, update bson.M) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, id := range r.order {
		raw := r.docs[id]
		if !graph.Match(raw, filter) {
			continue
		}
		next, err := applyUpdate(raw, update)
		if err != nil {
			return n, err
		}
		r.docs[id] = next
		n++
	}
	return n, nil
}

// Delete removes one document.
func (r *MemoryNodeRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[id]; !ok {
		return ErrNotFound
	}
	r.remove(map[primitive.ObjectID]struct{}{id: {}})
	return nil
}

// DeleteMany removes every match.
func (r *MemoryNodeRepository) DeleteMany(ctx context.Context, filter bson.M) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doomed := make(map[primitive.ObjectID]struct{})
	for _, id := range r.order {
		if graph.Match(r.docs[id], filter) {
			doomed[id] = struct{}{}
		}
	}
	r.remove(doomed)
	return int64(len(doomed)), nil
}

// Children evaluates the children traversal.
func (r *MemoryNodeRepository) Children(ctx context.Context, q graph.ChildrenQuery) ([]models.NodeDocument, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.page(r.match(q.Filter()), q.Restrict, q.Offset, q.Limit)
}

// TrashRoots evaluates the trash traversal: a deleted candidate survives when
// its parent is absent or does not satisfy the blocking predicate.
func (r *MemoryNodeRepository) TrashRoots(ctx context.Context, q graph.TrashQuery) ([]models.NodeDocument, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	blocking := q.Blocking()
	var roots []bson.M
	for _, raw := range r.match(q.Filter()) {
		parentID, ok := raw["parent"].(primitive.ObjectID)
		if ok {
			if parent, exists := r.docs[parentID]; exists && graph.Match(parent, blocking) {
				continue
			}
		}
		roots = append(roots, raw)
	}
	return r.page(roots, q.Restrict, q.Offset, q.Limit)
}

// Descendants walks the subtree below q.Root breadth-first, pruning every
// node rejected by the filter together with its subtree.
func (r *MemoryNodeRepository) Descendants(ctx context.Context, q graph.DescendantsQuery) ([]primitive.ObjectID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.docs[q.Root]; !ok {
		return nil, nil
	}
	children := r.childIndex()
	ids := graph.Walk(
		[]primitive.ObjectID{q.Root},
		func(id primitive.ObjectID) primitive.ObjectID { return id },
		func(id primitive.ObjectID) []primitive.ObjectID { return children[id] },
		func(id primitive.ObjectID) bool { return graph.Match(r.docs[id], q.Filter) },
		q.Limit,
	)
	return ids, nil
}

func (r *MemoryNodeRepository) match(filter bson.M) []bson.M {
	var out []bson.M
	for _, id := range r.order {
		if raw := r.docs[id]; graph.Match(raw, filter) {
			out = append(out, raw)
		}
	}
	return out
}

func (r *MemoryNodeRepository) page(matches []bson.M, restrict bson.M, offset, limit int64) ([]models.NodeDocument, int64, error) {
	total := int64(len(matches))
	if offset > 0 {
		if offset >= total {
			return nil, total, nil
		}
		matches = matches[offset:]
	}
	if limit > 0 && int64(len(matches)) > limit {
		matches = matches[:limit]
	}
	docs, err := decodeNodes(matches)
	if err != nil {
		return nil, 0, err
	}
	for i := range docs {
		if docs[i].IsDirectory() {
			docs[i].Size = r.liveChildren(docs[i].ChildParentID(), restrict)
		}
	}
	return docs, total, nil
}

func (r *MemoryNodeRepository) liveChildren(parent primitive.ObjectID, restrict bson.M) int64 {
	var n int64
	for _, raw := range r.docs {
		p, ok := raw["parent"].(primitive.ObjectID)
		if !ok || p != parent || raw["deleted"] != false {
			continue
		}
		if restrict == nil || graph.Match(raw, restrict) {
			n++
		}
	}
	return n
}

func (r *MemoryNodeRepository) childIndex() map[primitive.ObjectID][]primitive.ObjectID {
	index := make(map[primitive.ObjectID][]primitive.ObjectID)
	for _, id := range r.order {
		if p, ok := r.docs[id]["parent"].(primitive.ObjectID); ok {
			index[p] = append(index[p], id)
		}
	}
	return index
}

func (r *MemoryNodeRepository) remove(ids map[primitive.ObjectID]struct{}) {
	if len(ids) == 0 {
		return
	}
	kept := r.order[:0]
	for _, id := range r.order {
		if _, doomed := ids[id]; doomed {
			delete(r.docs, id)
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept
}

func toRaw(v interface{}) (bson.M, error) {
	data, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	var raw bson.M
	if err := bson.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return raw, nil
}

func decodeNode(raw bson.M) (*models.NodeDocument, error) {
	data, err := bson.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	var doc models.NodeDocument
	if err := bson.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode node: %w", err)
	}
	return &doc, nil
}

func decodeNodes(raws []bson.M) ([]models.NodeDocument, error) {
	docs := make([]models.NodeDocument, 0, len(raws))
	for _, raw := range raws {
		doc, err := decodeNode(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, nil
}

// applyUpdate returns a copy of raw with $set and $unset applied.
func applyUpdate(raw bson.M, update bson.M) (bson.M, error) {
	next := make(bson.M, len(raw))
	for k, v := range raw {
		next[k] = v
	}
	for op, arg := range update {
		fields, ok := arg.(bson.M)
		if !ok {
			return nil, fmt.Errorf("update operator %s: expected document", op)
		}
		switch op {
		case "$set":
			for k, v := range fields {
				if strings.Contains(k, ".") {
					return nil, fmt.Errorf("update operator $set: nested path %q not supported", k)
				}
				next[k] = v
			}
		case "$unset":
			for k := range fields {
				delete(next, k)
			}
		default:
			return nil, fmt.Errorf("update operator %s not supported", op)
		}
	}
	// round-trip so stored values are plain BSON again
	return toRaw(next)
}

func sortByID(docs []bson.M) {
	sort.SliceStable(docs, func(i, j int) bool {
		a, b := idOf(docs[i]), idOf(docs[j])
		return bytes.Compare(a[:], b[:]) < 0
	})
}

func idOf(raw bson.M) primitive.ObjectID {
	id, _ := raw["_id"].(primitive.ObjectID)
	return id
}
