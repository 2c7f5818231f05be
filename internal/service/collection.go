package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/noah-isme/drive-api/internal/acl"
	"github.com/noah-isme/drive-api/internal/graph"
	"github.com/noah-isme/drive-api/internal/models"
	"github.com/noah-isme/drive-api/internal/repository"
	appErrors "github.com/noah-isme/drive-api/pkg/errors"
)

const (
	maxNameLength = 255
	childPageSize = 500
)

// Collection is a directory node, the synthetic root included.
type Collection struct {
	node

	size  int64
	sized bool
}

// IsRoot reports whether this is the synthetic root.
func (c *Collection) IsRoot() bool { return c.root }

// IsVirtual reports whether the children are computed from a stored filter.
func (c *Collection) IsVirtual() bool { return c.doc.Filter != "" }

// Size is the number of live children visible to the principal.
func (c *Collection) Size(ctx context.Context) (int64, error) {
	if c.sized {
		return c.size, nil
	}
	q, err := c.childrenQuery(ctx, models.DeletedExclude)
	if err != nil {
		return 0, err
	}
	size, err := c.s.fs.store.Count(ctx, q.Filter())
	if err != nil {
		return 0, err
	}
	c.size, c.sized = size, true
	return size, nil
}

// Children lists one page of direct children. Listing the root first links
// any share the principal was granted since the last visit.
func (c *Collection) Children(ctx context.Context, mode models.DeletedMode, page models.Page) ([]Node, int64, error) {
	if !mode.Valid() {
		return nil, 0, appErrors.Clone(appErrors.ErrInvalidArgument, "invalid deleted mode")
	}
	if page.Offset < 0 {
		return nil, 0, appErrors.Clone(appErrors.ErrInvalidOffset, "")
	}
	if c.root && page.Offset == 0 {
		if err := c.s.SyncShares(ctx); err != nil {
			return nil, 0, err
		}
	}
	q, err := c.childrenQuery(ctx, mode)
	if err != nil {
		return nil, 0, err
	}
	q.Offset, q.Limit = page.Offset, page.Limit

	docs, total, err := c.s.fs.store.Children(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	parent := c
	if c.IsVirtual() {
		parent = nil
	}
	nodes, err := c.s.materialize(ctx, docs, parent)
	if err != nil {
		return nil, 0, err
	}
	return nodes, total, nil
}

// ChildExists reports whether a live child carries name, ignoring case.
func (c *Collection) ChildExists(ctx context.Context, name string) (bool, error) {
	doc, err := c.childByName(ctx, name, nil)
	return doc != nil, err
}

// AddDirectory creates a child collection. With the merge policy an existing
// collection of that name is returned instead.
func (c *Collection) AddDirectory(ctx context.Context, name string, policy models.ConflictPolicy, attrs NodeAttributes) (*Collection, error) {
	if err := c.prepareChild(ctx, name, policy); err != nil {
		return nil, err
	}
	if attrs.Filter != "" {
		if err := validateFilter(attrs.Filter); err != nil {
			return nil, err
		}
	}
	final, existing, err := c.resolveName(ctx, name, true, policy, nil)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		n, err := c.s.resolve(ctx, existing, c)
		if err != nil {
			return nil, err
		}
		return n.(*Collection), nil
	}

	doc, err := c.newChildDoc(ctx, final, true, attrs)
	if err != nil {
		return nil, err
	}
	if _, err := c.s.fs.store.Insert(ctx, doc); err != nil {
		return nil, err
	}
	created := c.s.adopt(doc, c).(*Collection)
	created.size, created.sized = 0, true
	if err := c.s.fs.record(ctx, c.s, models.EventAdd, created.base(), nil); err != nil {
		return nil, err
	}
	return created, nil
}

// AddFile creates a child file holding the content of r. With the merge
// policy an existing file of that name receives the content as a new version;
// created is false in that case.
func (c *Collection) AddFile(ctx context.Context, name string, r io.Reader, policy models.ConflictPolicy, attrs NodeAttributes) (file *File, created bool, err error) {
	if err := c.prepareChild(ctx, name, policy); err != nil {
		return nil, false, err
	}
	if attrs.Filter != "" {
		return nil, false, appErrors.Clone(appErrors.ErrNotACollection, "")
	}
	final, existing, err := c.resolveName(ctx, name, false, policy, nil)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		n, err := c.s.resolve(ctx, existing, c)
		if err != nil {
			return nil, false, err
		}
		f := n.(*File)
		if _, _, err := f.Put(ctx, r); err != nil {
			return nil, false, err
		}
		return f, false, nil
	}

	doc, err := c.newChildDoc(ctx, final, false, attrs)
	if err != nil {
		return nil, false, err
	}
	content, err := c.s.fs.writeContent(ctx, r)
	if err != nil {
		return nil, false, err
	}
	ref := content.ref
	doc.Storage = &ref
	doc.Hash, doc.Size, doc.Mime = content.hash, content.size, content.mime
	doc.Version = 1
	doc.History = []models.HistoryEntry{{
		Version: 1,
		Changed: doc.Created,
		User:    c.s.actor(),
		Type:    models.HistoryAdded,
		File:    &ref,
		Size:    content.size,
		Mime:    content.mime,
		Hash:    content.hash,
	}}
	if _, err := c.s.fs.store.Insert(ctx, doc); err != nil {
		c.s.fs.reaper.Release(ctx, ref)
		return nil, false, err
	}
	f := c.s.adopt(doc, c).(*File)
	if err := c.s.fs.record(ctx, c.s, models.EventAdd, f.base(), nil); err != nil {
		return nil, false, err
	}
	return f, true, nil
}

// Share turns the collection into a share root with the given ACL, or
// replaces the ACL of an existing share. Only the owner may share.
func (c *Collection) Share(ctx context.Context, entries []models.ACLEntry) error {
	if c.root {
		return appErrors.Clone(appErrors.ErrInvalidArgument, "the root collection can not be shared")
	}
	if err := c.checkContent(ctx, acl.ModeManage); err != nil {
		return err
	}
	if c.doc.IsReference() || c.doc.IsShareMember() {
		return appErrors.Clone(appErrors.ErrNestedShare, "")
	}
	if c.IsDeleted() {
		return appErrors.Clone(appErrors.ErrConflict, "deleted collections can not be shared")
	}
	if len(entries) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "acl must not be empty")
	}
	if err := c.s.fs.acl.Validate(entries); err != nil {
		return err
	}

	now := c.s.fs.now()
	if c.doc.IsShare() {
		if err := c.set(ctx, bson.M{"acl": entries, "changed": now}); err != nil {
			return err
		}
		c.doc.ACL, c.doc.Changed = entries, now
		if err := c.dropRevoked(ctx); err != nil {
			return err
		}
		return c.s.fs.record(ctx, c.s, models.EventShare, c.base(), nil)
	}

	nested, err := c.containsShare(ctx)
	if err != nil {
		return err
	}
	if nested {
		return appErrors.Clone(appErrors.ErrNestedShare, "")
	}
	if err := c.set(ctx, bson.M{"shared": true, "acl": entries, "changed": now}); err != nil {
		return err
	}
	c.doc.Shared, c.doc.ACL, c.doc.Changed = models.SharedRoot(), entries, now

	ids, err := c.s.fs.store.Descendants(ctx, graph.DescendantsQuery{Root: c.doc.ID})
	if err != nil {
		return err
	}
	if len(ids) > 0 {
		if _, err := c.s.fs.store.UpdateMany(ctx,
			bson.M{"_id": bson.M{"$in": ids}},
			bson.M{"$set": bson.M{"shared": c.doc.ID}}); err != nil {
			return err
		}
		c.s.forget(ids...)
	}
	return c.s.fs.record(ctx, c.s, models.EventShare, c.base(), nil)
}

// Unshare turns a share root back into a plain collection. Every reference
// to it is removed.
func (c *Collection) Unshare(ctx context.Context) error {
	if c.root || !c.doc.IsShare() {
		return appErrors.Clone(appErrors.ErrConflict, "collection is not shared")
	}
	if err := c.checkContent(ctx, acl.ModeManage); err != nil {
		return err
	}
	now := c.s.fs.now()
	if err := c.s.fs.store.Update(ctx, c.doc.ID, bson.M{
		"$set":   bson.M{"changed": now},
		"$unset": bson.M{"shared": "", "acl": ""},
	}); err != nil {
		return notFound(err, appErrors.ErrNodeNotFound)
	}
	if _, err := c.s.fs.store.UpdateMany(ctx,
		bson.M{"shared": c.doc.ID},
		bson.M{"$unset": bson.M{"shared": ""}}); err != nil {
		return err
	}
	if err := c.s.fs.dropReferences(ctx, c.s, bson.M{"reference": c.doc.ID}); err != nil {
		return err
	}
	c.doc.Shared, c.doc.ACL, c.doc.Changed = models.Shared{}, nil, now
	c.s.Close()
	return c.s.fs.record(ctx, c.s, models.EventUnshare, c.base(), nil)
}

// dropRevoked removes the references of members the current ACL no longer
// admits. Members kept only through a group are judged when they next read.
func (c *Collection) dropRevoked(ctx context.Context) error {
	refs, err := c.s.fs.store.Find(ctx, bson.M{"reference": c.doc.ID}, 0)
	if err != nil {
		return err
	}
	revoked := make([]primitive.ObjectID, 0)
	for i := range refs {
		if refs[i].Owner != c.doc.Owner && acl.Revoked(c.doc.ACL, refs[i].Owner) {
			revoked = append(revoked, refs[i].ID)
		}
	}
	if len(revoked) == 0 {
		return nil
	}
	return c.s.fs.dropReferences(ctx, c.s, bson.M{"_id": bson.M{"$in": revoked}})
}

// addReference links a foreign share into this collection.
func (c *Collection) addReference(ctx context.Context, share *models.NodeDocument) error {
	name, _, err := c.resolveName(ctx, share.Name, true, models.ConflictRename, nil)
	if err != nil {
		return err
	}
	now := c.s.fs.now()
	doc := &models.NodeDocument{
		ID:        primitive.NewObjectID(),
		Parent:    c.childParentPtr(),
		Name:      name,
		Owner:     c.s.principal.ID,
		Directory: models.Bool(true),
		Created:   now,
		Changed:   now,
		Shared:    models.SharedRoot(),
		Reference: models.ObjectIDPtr(share.ID),
	}
	if _, err := c.s.fs.store.Insert(ctx, doc); err != nil {
		return err
	}
	ref := c.s.adopt(doc, c)
	c.s.fs.logger.Info("linked share reference",
		zap.String("share", share.ID.Hex()),
		zap.String("reference", doc.ID.Hex()),
		zap.String("principal", c.s.principal.ID.Hex()))
	return c.s.fs.record(ctx, c.s, models.EventAdd, ref.base(), nil)
}

func (c *Collection) copyTo(ctx context.Context, dst *Collection, policy models.ConflictPolicy) (Node, error) {
	target, err := dst.AddDirectory(ctx, c.doc.Name, policy, NodeAttributes{Meta: c.doc.Meta, Filter: c.doc.Filter})
	if err != nil {
		return nil, err
	}
	if c.IsVirtual() {
		return target, nil
	}
	children, err := c.allChildren(ctx)
	if err != nil {
		return nil, err
	}
	for _, child := range children {
		if _, err := child.Copy(ctx, target, policy); err != nil {
			return nil, err
		}
	}
	return target, nil
}

// allChildren resolves every live child.
func (c *Collection) allChildren(ctx context.Context) ([]Node, error) {
	var result []Node
	for offset := int64(0); ; offset += childPageSize {
		nodes, total, err := c.Children(ctx, models.DeletedExclude, models.Page{Offset: offset, Limit: childPageSize})
		if err != nil {
			return nil, err
		}
		result = append(result, nodes...)
		if offset+childPageSize >= total {
			return result, nil
		}
	}
}

func (c *Collection) childrenQuery(ctx context.Context, mode models.DeletedMode) (graph.ChildrenQuery, error) {
	q := graph.ChildrenQuery{Deleted: mode, Restrict: acl.Restrict(c.s.principal)}
	switch {
	case c.root:
		if c.s.principal != nil {
			q.Extra = bson.M{"owner": c.s.principal.ID}
		}
	case c.IsVirtual():
		var filter bson.M
		if err := bson.UnmarshalExtJSON([]byte(c.doc.Filter), false, &filter); err != nil {
			c.s.fs.logger.Error("invalid collection filter", zap.String("node", c.doc.ID.Hex()), zap.Error(err))
			return q, appErrors.Clone(appErrors.ErrInternal, "invalid collection filter")
		}
		visible, err := c.s.visibility(ctx)
		if err != nil {
			return q, err
		}
		q.Match = graph.And(filter, visible)
	default:
		q.Parent = models.ObjectIDPtr(c.doc.ChildParentID())
	}
	return q, nil
}

func (c *Collection) prepareChild(ctx context.Context, name string, policy models.ConflictPolicy) error {
	if err := validateName(name); err != nil {
		return err
	}
	if !policy.Valid() {
		return appErrors.Clone(appErrors.ErrInvalidArgument, "invalid conflict policy")
	}
	return c.prepareWrite(ctx)
}

func (c *Collection) prepareWrite(ctx context.Context) error {
	if err := c.checkContent(ctx, acl.ModeWrite); err != nil {
		return err
	}
	if c.IsDeleted() {
		return appErrors.Clone(appErrors.ErrParentDeleted, "")
	}
	if c.IsVirtual() {
		return appErrors.Clone(appErrors.ErrConflict, "virtual collections can not hold nodes")
	}
	return nil
}

// resolveName applies the conflict policy to name. existing is set when the
// merge policy applies to a sibling of the same kind.
func (c *Collection) resolveName(ctx context.Context, name string, directory bool, policy models.ConflictPolicy, exclude *primitive.ObjectID) (string, *models.NodeDocument, error) {
	existing, err := c.childByName(ctx, name, exclude)
	if err != nil || existing == nil {
		return name, nil, err
	}
	if existing.IsDirectory() != directory {
		return "", nil, appErrors.Clone(appErrors.ErrNodeTypeMismatch, "")
	}
	switch policy {
	case models.ConflictRename:
		renamed, err := c.availableName(ctx, name, directory)
		return renamed, nil, err
	case models.ConflictMerge:
		return name, existing, nil
	default:
		return "", nil, appErrors.Clone(appErrors.ErrNodeAlreadyExists, "")
	}
}

// availableName finds the smallest N for which "name (N).ext" is free.
func (c *Collection) availableName(ctx context.Context, name string, directory bool) (string, error) {
	base, ext := name, ""
	if !directory {
		if e := path.Ext(name); e != name {
			base, ext = strings.TrimSuffix(name, e), e
		}
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, i, ext)
		existing, err := c.childByName(ctx, candidate, nil)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return candidate, nil
		}
	}
}

// childByName returns the live child carrying name, nil when there is none.
func (c *Collection) childByName(ctx context.Context, name string, exclude *primitive.ObjectID) (*models.NodeDocument, error) {
	var without bson.M
	if exclude != nil {
		without = bson.M{"_id": bson.M{"$ne": *exclude}}
	}
	doc, err := c.s.fs.store.FindOne(ctx, graph.And(c.childScope(), nameFilter(name), models.DeletedExclude.Filter(), without))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return doc, err
}

func (c *Collection) findChild(ctx context.Context, name string, mode models.DeletedMode) (*models.NodeDocument, error) {
	return c.s.fs.store.FindOne(ctx, graph.And(c.childScope(), nameFilter(name), mode.Filter()))
}

func (c *Collection) newChildDoc(ctx context.Context, name string, directory bool, attrs NodeAttributes) (*models.NodeDocument, error) {
	owner, err := c.childOwner(ctx)
	if err != nil {
		return nil, err
	}
	now := c.s.fs.now()
	doc := &models.NodeDocument{
		ID:        primitive.NewObjectID(),
		Parent:    c.childParentPtr(),
		Name:      name,
		Owner:     owner,
		Directory: models.Bool(directory),
		Created:   now,
		Changed:   now,
		Meta:      attrs.Meta,
		Filter:    attrs.Filter,
	}
	if attrs.Destroy != nil && !attrs.Destroy.IsZero() {
		ts := attrs.Destroy.UTC()
		doc.Destroy = &ts
	}
	if share, ok := c.childShare(); ok {
		doc.Shared = models.SharedMember(share)
	}
	return doc, nil
}

// childOwner is the owner new children get: the share owner inside shares,
// the collection owner elsewhere and the principal at the root.
func (c *Collection) childOwner(ctx context.Context) (primitive.ObjectID, error) {
	if c.doc.IsReference() {
		share, err := c.s.findRaw(ctx, *c.doc.Reference)
		if err != nil {
			return primitive.NilObjectID, notFound(err, appErrors.ErrShareNotFound)
		}
		return share.Owner, nil
	}
	return c.doc.Owner, nil
}

// childShare is the share new children belong to.
func (c *Collection) childShare() (primitive.ObjectID, bool) {
	if c.root {
		return primitive.NilObjectID, false
	}
	return c.doc.ShareID()
}

// childScope selects the children of the collection regardless of state.
func (c *Collection) childScope() bson.M {
	if !c.root {
		return bson.M{"parent": c.doc.ChildParentID()}
	}
	scope := bson.M{"parent": nil}
	if c.s.principal != nil {
		scope["owner"] = c.s.principal.ID
	}
	return scope
}

func (c *Collection) childParent() interface{} {
	if c.root {
		return nil
	}
	return c.doc.ChildParentID()
}

func (c *Collection) childParentPtr() *primitive.ObjectID {
	if c.root {
		return nil
	}
	return models.ObjectIDPtr(c.doc.ChildParentID())
}

// within reports whether c is n or lies below it.
func (c *Collection) within(n *node) bool {
	for cur := c; cur != nil && !cur.root; cur = cur.parent {
		if cur.doc.ID == n.doc.ID || cur.doc.ChildParentID() == n.doc.ChildParentID() {
			return true
		}
	}
	return false
}

// visibility selects the documents the principal may list outside a parent
// scope: its own and those of its shares.
func (s *Session) visibility(ctx context.Context) (bson.M, error) {
	if s.principal == nil {
		return nil, nil
	}
	shares, err := s.Shares(ctx)
	if err != nil {
		return nil, err
	}
	or := bson.A{bson.M{"owner": s.principal.ID}}
	if len(shares) > 0 {
		or = append(or, bson.M{"shared": bson.M{"$in": shares}})
	}
	return bson.M{"$or": or}, nil
}

func (s *Session) actor() *primitive.ObjectID {
	if s.principal == nil {
		return nil
	}
	return models.ObjectIDPtr(s.principal.ID)
}

func sameCollection(a, b *Collection) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.root || b.root {
		return a.root && b.root
	}
	return a.doc.ChildParentID() == b.doc.ChildParentID()
}

func nameFilter(name string) bson.M {
	return bson.M{"name": bson.M{"$regex": "^" + regexp.QuoteMeta(name) + "$", "$options": "i"}}
}

func validateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "", name == ".", name == "..",
		strings.ContainsAny(name, "/\\"),
		len(name) > maxNameLength,
		!utf8.ValidString(name):
		return appErrors.Clone(appErrors.ErrInvalidArgument, fmt.Sprintf("invalid node name %q", name))
	}
	return nil
}

func validateFilter(filter string) error {
	var parsed bson.M
	if err := bson.UnmarshalExtJSON([]byte(filter), false, &parsed); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInvalidArgument.Code, appErrors.ErrInvalidArgument.Status, "invalid collection filter")
	}
	return nil
}
