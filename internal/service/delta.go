package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/noah-isme/drive-api/internal/graph"
	"github.com/noah-isme/drive-api/internal/models"
	appErrors "github.com/noah-isme/drive-api/pkg/errors"
)

// GetDelta returns one page of the change feed. Without a cursor the feed
// resets and walks the current visible state; the final snapshot page hands
// out an incremental cursor positioned at the change sequence observed when
// the snapshot began. Limits are soft: the default applies when limit is not
// positive and the configured maximum caps it.
func (s *Session) GetDelta(ctx context.Context, cursor string, limit int, scope *primitive.ObjectID) (*models.DeltaPage, error) {
	if s.principal == nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidArgument, "the delta feed requires a principal")
	}
	if limit <= 0 {
		limit = s.fs.deltaLimit
	}
	if limit > s.fs.deltaMaxLimit {
		limit = s.fs.deltaMaxLimit
	}

	var cur models.DeltaCursor
	if cursor != "" {
		decoded, err := DecodeCursor(cursor)
		if err != nil {
			return nil, err
		}
		cur = decoded
		switch {
		case scope == nil && !cur.Scope.IsZero():
			scope = models.ObjectIDPtr(cur.Scope)
		case scope != nil && *scope != cur.Scope:
			return nil, appErrors.Clone(appErrors.ErrInvalidArgument, "cursor belongs to another scope")
		}
	}

	if err := s.SyncShares(ctx); err != nil {
		return nil, err
	}
	var scopeRoot *primitive.ObjectID
	if scope != nil {
		c, err := s.FindCollection(ctx, scope.Hex(), "")
		if err != nil {
			return nil, err
		}
		scopeRoot = models.ObjectIDPtr(c.doc.ChildParentID())
	}

	if cursor == "" {
		seq, err := s.fs.deltas.LastSeq(ctx)
		if err != nil {
			return nil, err
		}
		cur = models.DeltaCursor{Kind: models.CursorInitial, LastSeq: seq}
		if scope != nil {
			cur.Scope = *scope
		}
		page, err := s.snapshot(ctx, cur, limit, scopeRoot)
		if err != nil {
			return nil, err
		}
		page.Reset = true
		return page, nil
	}
	if cur.Kind == models.CursorInitial {
		return s.snapshot(ctx, cur, limit, scopeRoot)
	}
	return s.incremental(ctx, cur, limit, scopeRoot)
}

// snapshot emits live nodes in id order past the cursor position.
func (s *Session) snapshot(ctx context.Context, cur models.DeltaCursor, limit int, scopeRoot *primitive.ObjectID) (*models.DeltaPage, error) {
	visible, err := s.visibility(ctx)
	if err != nil {
		return nil, err
	}
	filter := graph.And(
		bson.M{"deleted": false, "_id": bson.M{"$gt": cur.LastID}},
		visible,
	)
	if scopeRoot != nil {
		ids, err := s.fs.store.Descendants(ctx, graph.DescendantsQuery{
			Root:   *scopeRoot,
			Filter: bson.M{"deleted": false},
		})
		if err != nil {
			return nil, err
		}
		filter = graph.And(filter, bson.M{"_id": bson.M{"$in": ids}})
	}

	docs, err := s.fs.store.Find(ctx, filter, int64(limit)+1)
	if err != nil {
		return nil, err
	}
	hasMore := len(docs) > limit
	if hasMore {
		docs = docs[:limit]
	}

	items := make([]models.DeltaItem, 0, len(docs))
	for i := range docs {
		doc := docs[i]
		cur.LastID = doc.ID
		n, err := s.resolve(ctx, &doc, nil)
		if err != nil {
			if skippable(err) {
				continue
			}
			return nil, err
		}
		items = append(items, liveItem(n))
	}

	next := cur
	if !hasMore {
		next = models.DeltaCursor{Kind: models.CursorIncremental, LastSeq: cur.LastSeq, Scope: cur.Scope}
	}
	s.fs.metrics.RecordDeltaEntries(string(models.CursorInitial), len(items))
	return &models.DeltaPage{Cursor: EncodeCursor(next), HasMore: hasMore, Nodes: items}, nil
}

// incremental emits the latest state of every node changed past the cursor
// sequence. A node changed several times within the page appears once.
func (s *Session) incremental(ctx context.Context, cur models.DeltaCursor, limit int, scopeRoot *primitive.ObjectID) (*models.DeltaPage, error) {
	if err := s.pruneShares(ctx); err != nil {
		return nil, err
	}
	shares, err := s.Shares(ctx)
	if err != nil {
		return nil, err
	}
	records, err := s.fs.deltas.Since(ctx, models.DeltaQuery{
		AfterSeq: cur.LastSeq,
		Owner:    s.principal.ID,
		Shares:   shares,
		Scope:    scopeRoot,
		Limit:    limit + 1,
	})
	if err != nil {
		return nil, err
	}
	hasMore := len(records) > limit
	if hasMore {
		records = records[:limit]
	}
	if len(records) > 0 {
		cur.LastSeq = records[len(records)-1].Seq
	}

	latest := make(map[primitive.ObjectID]int, len(records))
	for i := range records {
		latest[records[i].Node] = i
	}
	items := make([]models.DeltaItem, 0, len(latest))
	for i := range records {
		rec := records[i]
		if latest[rec.Node] != i {
			continue
		}
		item, ok, err := s.changeItem(ctx, rec)
		if err != nil {
			return nil, err
		}
		if ok {
			items = append(items, item)
		}
	}

	s.fs.metrics.RecordDeltaEntries(string(models.CursorIncremental), len(items))
	return &models.DeltaPage{Cursor: EncodeCursor(cur), HasMore: hasMore, Nodes: items}, nil
}

// pruneShares resolves every reference of the principal so those whose share
// stopped admitting it are removed, and logged, before the log is read.
func (s *Session) pruneShares(ctx context.Context) error {
	refs, err := s.fs.store.Find(ctx, bson.M{
		"owner":     s.principal.ID,
		"reference": bson.M{"$exists": true},
	}, 0)
	if err != nil {
		return err
	}
	for i := range refs {
		if _, err := s.resolve(ctx, &refs[i], nil); err != nil && !skippable(err) {
			return err
		}
	}
	return nil
}

// changeItem renders a change record. Nodes that no longer resolve for the
// principal are reported deleted so clients drop them.
func (s *Session) changeItem(ctx context.Context, rec models.DeltaRecord) (models.DeltaItem, bool, error) {
	gone := models.DeltaItem{
		ID:        rec.Node,
		Deleted:   true,
		Changed:   rec.Timestamp,
		Path:      rec.Path,
		Directory: rec.Directory,
	}
	// A reference outlives a soft-deleted share, so its own state can not
	// tell the member the share is gone.
	if rec.Operation == models.EventDestroy || (rec.Reference != nil && rec.Deleted) {
		return gone, true, nil
	}
	n, err := s.FindNodeByID(ctx, rec.Node)
	if err != nil {
		if skippable(err) {
			return gone, true, nil
		}
		return models.DeltaItem{}, false, err
	}
	return liveItem(n), true, nil
}

func liveItem(n Node) models.DeltaItem {
	doc := n.base().doc
	item := models.DeltaItem{
		ID:        doc.ID,
		Deleted:   doc.Deleted.IsDeleted(),
		Changed:   doc.Changed,
		Path:      n.Path(),
		Directory: doc.IsDirectory(),
	}
	if !item.Deleted {
		created := doc.Created
		item.Created = &created
	}
	return item
}

// EncodeCursor renders a cursor as an opaque URL safe token.
func EncodeCursor(c models.DeltaCursor) string {
	scope := ""
	if !c.Scope.IsZero() {
		scope = c.Scope.Hex()
	}
	raw := fmt.Sprintf("%s|%d|%s|%s", c.Kind, c.LastSeq, c.LastID.Hex(), scope)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token produced by EncodeCursor.
func DecodeCursor(token string) (models.DeltaCursor, error) {
	invalid := appErrors.Clone(appErrors.ErrInvalidArgument, "invalid delta cursor")
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return models.DeltaCursor{}, invalid
	}
	parts := strings.Split(string(raw), "|")
	if len(parts) != 4 {
		return models.DeltaCursor{}, invalid
	}
	c := models.DeltaCursor{Kind: models.CursorKind(parts[0])}
	if c.Kind != models.CursorInitial && c.Kind != models.CursorIncremental {
		return models.DeltaCursor{}, invalid
	}
	if c.LastSeq, err = strconv.ParseInt(parts[1], 10, 64); err != nil || c.LastSeq < 0 {
		return models.DeltaCursor{}, invalid
	}
	if c.LastID, err = primitive.ObjectIDFromHex(parts[2]); err != nil {
		return models.DeltaCursor{}, invalid
	}
	if parts[3] != "" {
		if c.Scope, err = primitive.ObjectIDFromHex(parts[3]); err != nil {
			return models.DeltaCursor{}, invalid
		}
	}
	return c, nil
}
