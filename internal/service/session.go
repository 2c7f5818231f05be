package service

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/noah-isme/drive-api/internal/acl"
	"github.com/noah-isme/drive-api/internal/graph"
	"github.com/noah-isme/drive-api/internal/models"
	"github.com/noah-isme/drive-api/internal/repository"
	appErrors "github.com/noah-isme/drive-api/pkg/errors"
)

// NodeKind restricts the type a lookup must yield.
type NodeKind int

const (
	KindAny NodeKind = iota
	KindFile
	KindCollection
)

// Session is one unit of work: an HTTP request or a CLI invocation. It owns
// the node cache, the raw document cache and the set of nodes destroyed while
// resolving. Drop it when the unit of work ends. A Session is not safe for
// concurrent use.
type Session struct {
	fs        *Filesystem
	principal *models.Principal
	root      *Collection

	nodes     map[primitive.ObjectID]Node
	raws      map[primitive.ObjectID]*models.NodeDocument
	destroyed map[primitive.ObjectID]struct{}

	shares []primitive.ObjectID
	synced bool
	depth  int
}

func newSession(fs *Filesystem, principal *models.Principal) *Session {
	s := &Session{
		fs:        fs,
		principal: principal,
		nodes:     make(map[primitive.ObjectID]Node),
		raws:      make(map[primitive.ObjectID]*models.NodeDocument),
		destroyed: make(map[primitive.ObjectID]struct{}),
	}
	owner := primitive.NilObjectID
	if principal != nil {
		owner = principal.ID
	}
	s.root = &Collection{node: node{
		s:    s,
		root: true,
		doc:  &models.NodeDocument{Owner: owner, Directory: models.Bool(true)},
	}}
	s.root.self = s.root
	return s
}

// Principal returns the caller, nil in the system context.
func (s *Session) Principal() *models.Principal {
	return s.principal
}

// Filesystem returns the engine the session runs against.
func (s *Session) Filesystem() *Filesystem {
	return s.fs
}

// Root returns the synthetic root collection of the principal.
func (s *Session) Root() *Collection {
	return s.root
}

// Close drops every cached node.
func (s *Session) Close() {
	s.nodes = make(map[primitive.ObjectID]Node)
	s.raws = make(map[primitive.ObjectID]*models.NodeDocument)
	s.shares = nil
	s.synced = false
}

// Find resolves a node by id or, when id is empty, by path.
func (s *Session) Find(ctx context.Context, id, path string, kind NodeKind) (Node, error) {
	switch {
	case id != "":
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrInvalidArgument, "invalid node id")
		}
		n, err := s.FindNodeByID(ctx, oid)
		if err != nil {
			return nil, err
		}
		return n, checkKind(n, kind)
	case path != "":
		return s.FindNodeByPath(ctx, path, kind)
	default:
		return nil, appErrors.Clone(appErrors.ErrInvalidArgument, "either id or path is required")
	}
}

// FindCollection is Find for collections where neither id nor path selects the root.
func (s *Session) FindCollection(ctx context.Context, id, path string) (*Collection, error) {
	if id == "" && (path == "" || path == "/") {
		return s.root, nil
	}
	n, err := s.Find(ctx, id, path, KindCollection)
	if err != nil {
		return nil, err
	}
	return n.(*Collection), nil
}

// FindFile is Find for files.
func (s *Session) FindFile(ctx context.Context, id, path string) (*File, error) {
	n, err := s.Find(ctx, id, path, KindFile)
	if err != nil {
		return nil, err
	}
	return n.(*File), nil
}

// FindNodeByID resolves a node by id.
func (s *Session) FindNodeByID(ctx context.Context, id primitive.ObjectID) (Node, error) {
	if _, gone := s.destroyed[id]; gone {
		return nil, appErrors.Clone(appErrors.ErrNoLongerAvailable, "")
	}
	if n, ok := s.nodes[id]; ok {
		s.fs.metrics.RecordCacheOperation(true)
		return n, nil
	}
	raw, err := s.findRaw(ctx, id)
	if err != nil {
		return nil, notFound(err, appErrors.ErrNodeNotFound)
	}
	return s.resolve(ctx, raw, nil)
}

// FindNodesByID resolves every id, failing on the first error.
func (s *Session) FindNodesByID(ctx context.Context, ids []primitive.ObjectID) ([]Node, error) {
	nodes := make([]Node, 0, len(ids))
	for _, id := range ids {
		n, err := s.FindNodeByID(ctx, id)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// FindNodeByPath descends from the root one segment at a time. Names match
// case-insensitively among live siblings; the final segment falls back to
// deleted nodes so paths into the trash still resolve.
func (s *Session) FindNodeByPath(ctx context.Context, path string, kind NodeKind) (Node, error) {
	segments, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	var cur Node = s.root
	for i, segment := range segments {
		parent, ok := cur.(*Collection)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrNodeNotFound, "")
		}
		doc, err := parent.findChild(ctx, segment, models.DeletedExclude)
		if err != nil && i == len(segments)-1 && errors.Is(err, repository.ErrNotFound) {
			doc, err = parent.findChild(ctx, segment, models.DeletedInclude)
		}
		if err != nil {
			return nil, notFound(err, appErrors.ErrNodeNotFound)
		}
		if cur, err = s.resolve(ctx, doc, parent); err != nil {
			return nil, err
		}
	}
	return cur, checkKind(cur, kind)
}

// Trash lists the trash roots visible to the principal.
func (s *Session) Trash(ctx context.Context, page models.Page) ([]Node, int64, error) {
	if page.Offset < 0 {
		return nil, 0, appErrors.Clone(appErrors.ErrInvalidOffset, "")
	}
	shares, err := s.Shares(ctx)
	if err != nil {
		return nil, 0, err
	}
	q := graph.TrashQuery{Shares: shares, Restrict: acl.Restrict(s.principal), Offset: page.Offset, Limit: page.Limit}
	if s.principal != nil {
		q.Principal = models.ObjectIDPtr(s.principal.ID)
	}
	docs, total, err := s.fs.store.TrashRoots(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	nodes, err := s.materialize(ctx, docs, nil)
	if err != nil {
		return nil, 0, err
	}
	return nodes, total, nil
}

// Shares returns the foreign shares the principal holds a reference to.
func (s *Session) Shares(ctx context.Context) ([]primitive.ObjectID, error) {
	if s.principal == nil {
		return nil, nil
	}
	if s.shares != nil {
		return s.shares, nil
	}
	refs, err := s.fs.store.Find(ctx, bson.M{
		"owner":     s.principal.ID,
		"reference": bson.M{"$exists": true},
	}, 0)
	if err != nil {
		return nil, err
	}
	shares := make([]primitive.ObjectID, 0, len(refs))
	for i := range refs {
		shares = append(shares, *refs[i].Reference)
	}
	s.shares = shares
	return shares, nil
}

// SyncShares creates the missing reference nodes in the principal's root for
// every share granting it read access. Runs at most once per session.
func (s *Session) SyncShares(ctx context.Context) error {
	if s.principal == nil || s.synced {
		return nil
	}
	s.synced = true

	known, err := s.Shares(ctx)
	if err != nil {
		return err
	}
	seen := make(map[primitive.ObjectID]struct{}, len(known))
	for _, id := range known {
		seen[id] = struct{}{}
	}

	candidates, err := s.fs.store.Find(ctx, graph.And(bson.M{
		"shared":    true,
		"reference": bson.M{"$exists": false},
		"owner":     bson.M{"$ne": s.principal.ID},
		"deleted":   false,
	}, acl.Restrict(s.principal)), 0)
	if err != nil {
		return err
	}
	for i := range candidates {
		share := &candidates[i]
		if _, ok := seen[share.ID]; ok {
			continue
		}
		if !acl.Satisfies(acl.Effective(share.ACL, s.principal), acl.ModeRead) {
			continue
		}
		if err := s.root.addReference(ctx, share); err != nil {
			return err
		}
		s.shares = append(s.shares, share.ID)
	}
	return nil
}

// resolve turns a raw document into a typed node: share redirection, cache
// lookup, parent linkage, read check and expiry, in that order. Nodes are
// cached only once every check passed.
func (s *Session) resolve(ctx context.Context, raw *models.NodeDocument, parent *Collection) (Node, error) {
	s.depth++
	defer func() { s.depth-- }()
	if s.depth > maxDepth {
		s.fs.logger.Error("node graph too deep", zap.String("node", raw.ID.Hex()))
		return nil, appErrors.Clone(appErrors.ErrInternal, "node graph too deep")
	}

	raw, err := s.redirect(ctx, raw)
	if err != nil {
		return nil, err
	}
	if n, ok := s.nodes[raw.ID]; ok {
		s.fs.metrics.RecordCacheOperation(true)
		return n, nil
	}
	if _, gone := s.destroyed[raw.ID]; gone {
		return nil, appErrors.Clone(appErrors.ErrNoLongerAvailable, "")
	}
	s.fs.metrics.RecordCacheOperation(false)

	if raw.Directory == nil {
		s.fs.logger.Error("malformed node document",
			zap.String("node", raw.ID.Hex()),
			zap.String("reason", "missing directory flag"))
		return nil, appErrors.Clone(appErrors.ErrInternal, "malformed node document")
	}

	p, err := s.parentOf(ctx, raw, parent)
	if err != nil {
		return nil, err
	}
	n := s.instantiate(raw, p)
	if err := s.authorize(ctx, n); err != nil {
		return nil, err
	}
	if err := s.expire(ctx, n); err != nil {
		return nil, err
	}
	s.nodes[raw.ID] = n
	s.raws[raw.ID] = raw
	return n, nil
}

// redirect swaps a share root or reference owned by somebody else for the
// principal's own counterpart.
func (s *Session) redirect(ctx context.Context, raw *models.NodeDocument) (*models.NodeDocument, error) {
	p := s.principal
	if p == nil || !raw.Shared.Root || raw.Owner == p.ID {
		return raw, nil
	}
	if raw.Reference != nil {
		doc, err := s.fs.store.FindOne(ctx, bson.M{"owner": p.ID, "shared": true, "_id": *raw.Reference})
		if err != nil {
			return nil, notFound(err, appErrors.ErrShareNotFound)
		}
		return doc, nil
	}
	doc, err := s.fs.store.FindOne(ctx, bson.M{"owner": p.ID, "shared": true, "reference": raw.ID})
	if err != nil {
		return nil, notFound(err, appErrors.ErrReferenceNotFound)
	}
	return doc, nil
}

func (s *Session) parentOf(ctx context.Context, raw *models.NodeDocument, known *Collection) (*Collection, error) {
	if raw.Parent == nil {
		return s.root, nil
	}
	if known != nil && !known.root && known.doc.ChildParentID() == *raw.Parent {
		return known, nil
	}
	if n, ok := s.nodes[*raw.Parent]; ok {
		if c, ok := n.(*Collection); ok {
			return c, nil
		}
	}
	praw, err := s.findRaw(ctx, *raw.Parent)
	if err != nil {
		return nil, notFound(err, appErrors.ErrNodeNotFound)
	}
	pn, err := s.resolve(ctx, praw, nil)
	if err != nil {
		return nil, err
	}
	c, ok := pn.(*Collection)
	if !ok {
		s.fs.logger.Error("node parent is not a collection",
			zap.String("node", raw.ID.Hex()),
			zap.String("parent", raw.Parent.Hex()))
		return nil, appErrors.Clone(appErrors.ErrInternal, "malformed node graph")
	}
	return c, nil
}

func (s *Session) instantiate(raw *models.NodeDocument, parent *Collection) Node {
	base := node{s: s, doc: raw, parent: parent}
	if raw.IsDirectory() {
		c := &Collection{node: base}
		c.self = c
		return c
	}
	f := &File{node: base}
	f.self = f
	return f
}

// adopt caches a node the session itself just created.
func (s *Session) adopt(raw *models.NodeDocument, parent *Collection) Node {
	n := s.instantiate(raw, parent)
	s.nodes[raw.ID] = n
	s.raws[raw.ID] = raw
	return n
}

// authorize runs the read check. A denied reference is removed before the
// error surfaces since its share no longer admits the principal.
func (s *Session) authorize(ctx context.Context, n Node) error {
	b := n.base()
	ok, err := s.fs.acl.Allowed(ctx, b.doc, s.principal, acl.ModeRead)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if b.doc.IsReference() {
		if err := s.fs.store.Delete(ctx, b.doc.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		s.forget(b.doc.ID)
		s.shares = nil
		s.fs.metrics.RecordSelfHeal("orphaned_reference")
		s.fs.logger.Info("removed orphaned share reference",
			zap.String("node", b.doc.ID.Hex()),
			zap.String("share", b.doc.Reference.Hex()),
			zap.String("owner", b.doc.Owner.Hex()))
		if err := s.fs.record(ctx, s, models.EventDestroy, b, nil); err != nil {
			return err
		}
	}
	return appErrors.Forbidden(string(acl.ModeRead))
}

// expire hard-deletes a node whose destroy timestamp passed. The destroyed set
// makes later lookups in this session fail without touching the store again.
func (s *Session) expire(ctx context.Context, n Node) error {
	b := n.base()
	if b.doc.Destroy == nil || b.doc.Destroy.After(s.fs.now()) {
		return nil
	}
	s.destroyed[b.doc.ID] = struct{}{}
	if err := b.destroy(ctx); err != nil {
		return err
	}
	s.fs.metrics.RecordSelfHeal("expired")
	s.fs.logger.Info("destroyed expired node",
		zap.String("node", b.doc.ID.Hex()),
		zap.Time("destroy", *b.doc.Destroy))
	return appErrors.Clone(appErrors.ErrNoLongerAvailable, "")
}

// materialize resolves traversal results, skipping nodes the principal can
// no longer see.
func (s *Session) materialize(ctx context.Context, docs []models.NodeDocument, parent *Collection) ([]Node, error) {
	nodes := make([]Node, 0, len(docs))
	for i := range docs {
		doc := docs[i]
		n, err := s.resolve(ctx, &doc, parent)
		if err != nil {
			if skippable(err) {
				s.fs.logger.Debug("skipping node", zap.String("node", doc.ID.Hex()), zap.Error(err))
				continue
			}
			return nil, err
		}
		if c, ok := n.(*Collection); ok {
			c.size, c.sized = doc.Size, true
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func (s *Session) findRaw(ctx context.Context, id primitive.ObjectID) (*models.NodeDocument, error) {
	if raw, ok := s.raws[id]; ok {
		return raw, nil
	}
	raw, err := s.fs.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.raws[id] = raw
	return raw, nil
}

func (s *Session) forget(ids ...primitive.ObjectID) {
	for _, id := range ids {
		delete(s.nodes, id)
		delete(s.raws, id)
	}
}

func skippable(err error) bool {
	for _, target := range []error{
		appErrors.ErrForbidden,
		appErrors.ErrNoLongerAvailable,
		appErrors.ErrShareNotFound,
		appErrors.ErrReferenceNotFound,
		appErrors.ErrNodeNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func checkKind(n Node, kind NodeKind) error {
	switch {
	case kind == KindFile && n.IsDirectory():
		return appErrors.Clone(appErrors.ErrNotAFile, "")
	case kind == KindCollection && !n.IsDirectory():
		return appErrors.Clone(appErrors.ErrNotACollection, "")
	}
	return nil
}

func splitPath(path string) ([]string, error) {
	parts := strings.Split(path, "/")
	segments := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part {
		case "":
			continue
		case ".", "..":
			return nil, appErrors.Clone(appErrors.ErrInvalidArgument, "relative path segments are not allowed")
		}
		segments = append(segments, part)
	}
	return segments, nil
}
