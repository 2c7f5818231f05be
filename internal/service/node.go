package service

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/noah-isme/drive-api/internal/acl"
	"github.com/noah-isme/drive-api/internal/graph"
	"github.com/noah-isme/drive-api/internal/models"
	"github.com/noah-isme/drive-api/internal/repository"
	appErrors "github.com/noah-isme/drive-api/pkg/errors"
)

// Node is a File or a Collection resolved within a Session.
type Node interface {
	ID() primitive.ObjectID
	Name() string
	Path() string
	IsDirectory() bool
	IsDeleted() bool
	Document() models.NodeDocument
	Parent() *Collection

	Rename(ctx context.Context, name string) error
	Move(ctx context.Context, dst *Collection, policy models.ConflictPolicy) (Node, error)
	Copy(ctx context.Context, dst *Collection, policy models.ConflictPolicy) (Node, error)
	Delete(ctx context.Context, force bool) error
	Undelete(ctx context.Context, policy models.ConflictPolicy) (Node, error)
	SetAttributes(ctx context.Context, attrs NodeAttributes) error

	base() *node
}

// NodeAttributes carries optional attributes set at creation or later.
type NodeAttributes struct {
	Meta *models.NodeMeta
	// Destroy schedules a hard delete; the zero time clears it.
	Destroy *time.Time
	// Filter turns a collection into a virtual one; collections only.
	Filter string
}

type node struct {
	s      *Session
	doc    *models.NodeDocument
	parent *Collection
	self   Node
	root   bool
}

func (n *node) base() *node { return n }

// ID returns the node id; the root has the nil id.
func (n *node) ID() primitive.ObjectID { return n.doc.ID }

func (n *node) Name() string { return n.doc.Name }

func (n *node) IsDirectory() bool { return n.doc.IsDirectory() }

func (n *node) IsDeleted() bool { return n.doc.Deleted.IsDeleted() }

// Parent returns the containing collection, nil for the root.
func (n *node) Parent() *Collection { return n.parent }

// Document returns a copy of the persisted document.
func (n *node) Document() models.NodeDocument {
	doc := *n.doc
	doc.History = append([]models.HistoryEntry(nil), n.doc.History...)
	doc.ACL = append([]models.ACLEntry(nil), n.doc.ACL...)
	return doc
}

// Path is the slash separated location as seen by the session principal.
func (n *node) Path() string {
	if n.parent == nil {
		return "/"
	}
	parent := n.parent.Path()
	if parent == "/" {
		return "/" + n.doc.Name
	}
	return parent + "/" + n.doc.Name
}

// Rename changes the name under the fail policy. A case-only rename of the
// node itself is not a collision.
func (n *node) Rename(ctx context.Context, name string) error {
	if n.root {
		return appErrors.Clone(appErrors.ErrInvalidArgument, "the root collection can not be renamed")
	}
	if err := validateName(name); err != nil {
		return err
	}
	if err := n.checkSelf(ctx); err != nil {
		return err
	}
	if name == n.doc.Name {
		return nil
	}
	if !n.IsDeleted() {
		existing, err := n.parent.childByName(ctx, name, &n.doc.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return appErrors.Clone(appErrors.ErrNodeAlreadyExists, "")
		}
	}

	now := n.s.fs.now()
	if err := n.set(ctx, bson.M{"name": name, "changed": now}); err != nil {
		return err
	}
	n.doc.Name, n.doc.Changed = name, now
	return n.s.fs.record(ctx, n.s, models.EventRename, n, nil)
}

// Move re-parents the node. Crossing a share boundary copies the node and
// hard-deletes the source.
func (n *node) Move(ctx context.Context, dst *Collection, policy models.ConflictPolicy) (Node, error) {
	if err := n.checkTarget(dst, policy); err != nil {
		return nil, err
	}
	if err := n.checkSelf(ctx); err != nil {
		return nil, err
	}
	if err := dst.prepareWrite(ctx); err != nil {
		return nil, err
	}
	if n.doc.IsDirectory() && dst.within(n) {
		return nil, appErrors.Clone(appErrors.ErrMoveIntoSelf, "")
	}
	if sameCollection(n.parent, dst) {
		return n.self, nil
	}

	dstShare, dstShared := dst.childShare()
	if dstShared {
		nested, err := n.containsShare(ctx)
		if err != nil {
			return nil, err
		}
		if nested {
			return nil, appErrors.Clone(appErrors.ErrNestedShare, "")
		}
	}
	srcShared := n.doc.IsShareMember()
	if srcShared != dstShared || (srcShared && n.doc.Shared.Share != dstShare) {
		copied, err := n.Copy(ctx, dst, policy)
		if err != nil {
			return nil, err
		}
		if err := n.destroy(ctx); err != nil {
			return nil, err
		}
		return copied, nil
	}

	name, existing, err := dst.resolveName(ctx, n.doc.Name, n.doc.IsDirectory(), policy, &n.doc.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return n.mergeInto(ctx, dst, existing)
	}

	previous := n.doc.Parent
	now := n.s.fs.now()
	if err := n.set(ctx, bson.M{"parent": dst.childParent(), "name": name, "changed": now}); err != nil {
		return nil, err
	}
	n.doc.Parent, n.doc.Name, n.doc.Changed = dst.childParentPtr(), name, now
	n.parent = dst
	if err := n.s.fs.record(ctx, n.s, models.EventMove, n, previous); err != nil {
		return nil, err
	}
	return n.self, nil
}

// Copy duplicates the node below dst. File content is written to new blobs.
func (n *node) Copy(ctx context.Context, dst *Collection, policy models.ConflictPolicy) (Node, error) {
	if err := n.checkTarget(dst, policy); err != nil {
		return nil, err
	}
	if err := dst.prepareWrite(ctx); err != nil {
		return nil, err
	}
	if n.doc.IsDirectory() && dst.within(n) {
		return nil, appErrors.Clone(appErrors.ErrMoveIntoSelf, "")
	}

	var (
		result Node
		err    error
	)
	switch src := n.self.(type) {
	case *File:
		result, err = src.copyTo(ctx, dst, policy)
	case *Collection:
		result, err = src.copyTo(ctx, dst, policy)
	}
	if err != nil {
		return nil, err
	}
	if err := n.s.fs.record(ctx, n.s, models.EventCopy, result.base(), models.ObjectIDPtr(n.doc.ID)); err != nil {
		return nil, err
	}
	return result, nil
}

// Delete soft-deletes the node, or removes it with every descendant and blob
// when force is set. A soft-deleted collection stamps its live descendants
// with the same timestamp so Undelete restores exactly that batch.
func (n *node) Delete(ctx context.Context, force bool) error {
	if n.root {
		return appErrors.Clone(appErrors.ErrInvalidArgument, "the root collection can not be deleted")
	}
	if err := n.checkSelf(ctx); err != nil {
		return err
	}
	if force {
		return n.destroy(ctx)
	}
	if n.IsDeleted() {
		return nil
	}

	now := n.s.fs.now()
	set := bson.M{"deleted": now, "changed": now}
	var evicted []models.BlobRef
	if f, ok := n.self.(*File); ok {
		evicted = f.stageHistory(set, f.markerEntry(models.HistoryDeleted, now))
	}
	if err := n.set(ctx, set); err != nil {
		return err
	}
	n.apply(set)
	n.doc.Deleted = models.DeletedAt(now)

	if n.doc.IsDirectory() && !n.doc.IsReference() {
		ids, err := n.s.fs.store.Descendants(ctx, graph.DescendantsQuery{
			Root:   n.doc.ID,
			Filter: bson.M{"deleted": false},
		})
		if err != nil {
			return err
		}
		if len(ids) > 0 {
			if _, err := n.s.fs.store.UpdateMany(ctx,
				bson.M{"_id": bson.M{"$in": ids}, "deleted": false},
				bson.M{"$set": bson.M{"deleted": now}}); err != nil {
				return err
			}
			n.s.forget(ids...)
		}
	}
	n.s.fs.reaper.Release(ctx, evicted...)
	if err := n.recordMembers(ctx, models.EventDelete); err != nil {
		return err
	}
	return n.s.fs.record(ctx, n.s, models.EventDelete, n, nil)
}

// recordMembers mirrors a share root change into the feed of every member
// holding a reference to it.
func (n *node) recordMembers(ctx context.Context, op models.EventOperation) error {
	if !n.doc.IsShare() {
		return nil
	}
	refs, err := n.s.fs.store.Find(ctx, bson.M{"reference": n.doc.ID}, 0)
	if err != nil {
		return err
	}
	return n.s.fs.recordReferences(ctx, n.s, op, refs)
}

// Undelete restores the node and the batch deleted with it. Deleted
// ancestors are restored first; a name taken in the meantime is handled by
// policy.
func (n *node) Undelete(ctx context.Context, policy models.ConflictPolicy) (Node, error) {
	if n.root {
		return nil, appErrors.Clone(appErrors.ErrInvalidArgument, "the root collection can not be restored")
	}
	if !policy.Valid() {
		return nil, appErrors.Clone(appErrors.ErrInvalidArgument, "invalid conflict policy")
	}
	if err := n.checkSelf(ctx); err != nil {
		return nil, err
	}
	if !n.IsDeleted() {
		return n.self, nil
	}
	if p := n.parent; !p.root && p.IsDeleted() {
		if _, err := p.Undelete(ctx, policy); err != nil {
			return nil, err
		}
		if err := n.reload(ctx); err != nil {
			return nil, err
		}
		if !n.IsDeleted() {
			return n.self, nil
		}
	}

	batch := *n.doc.Deleted.At
	name, existing, err := n.parent.resolveName(ctx, n.doc.Name, n.doc.IsDirectory(), policy, &n.doc.ID)
	if err != nil {
		return nil, err
	}

	now := n.s.fs.now()
	set := bson.M{"deleted": false, "changed": now, "name": name}
	var evicted []models.BlobRef
	if f, ok := n.self.(*File); ok {
		evicted = f.stageHistory(set, f.markerEntry(models.HistoryUndeleted, now))
	}
	if err := n.set(ctx, set); err != nil {
		return nil, err
	}
	n.apply(set)
	n.doc.Deleted = models.Deleted{}

	if n.doc.IsDirectory() && !n.doc.IsReference() {
		ids, err := n.s.fs.store.Descendants(ctx, graph.DescendantsQuery{
			Root:   n.doc.ID,
			Filter: bson.M{"deleted": batch},
		})
		if err != nil {
			return nil, err
		}
		if len(ids) > 0 {
			if _, err := n.s.fs.store.UpdateMany(ctx,
				bson.M{"_id": bson.M{"$in": ids}},
				bson.M{"$set": bson.M{"deleted": false}}); err != nil {
				return nil, err
			}
			n.s.forget(ids...)
		}
	}
	n.s.fs.reaper.Release(ctx, evicted...)
	if err := n.recordMembers(ctx, models.EventUndelete); err != nil {
		return nil, err
	}
	if err := n.s.fs.record(ctx, n.s, models.EventUndelete, n, nil); err != nil {
		return nil, err
	}
	if existing != nil {
		return n.mergeInto(ctx, n.parent, existing)
	}
	return n.self, nil
}

// SetAttributes updates meta data, the destroy schedule or the virtual filter.
func (n *node) SetAttributes(ctx context.Context, attrs NodeAttributes) error {
	if n.root {
		return appErrors.Clone(appErrors.ErrInvalidArgument, "the root collection has no attributes")
	}
	if err := n.checkSelf(ctx); err != nil {
		return err
	}
	now := n.s.fs.now()
	set := bson.M{"changed": now}
	unset := bson.M{}
	if attrs.Meta != nil {
		set["meta"] = attrs.Meta
	}
	if attrs.Destroy != nil {
		if attrs.Destroy.IsZero() {
			unset["destroy"] = ""
		} else {
			set["destroy"] = attrs.Destroy.UTC().Truncate(time.Millisecond)
		}
	}
	if attrs.Filter != "" {
		if !n.doc.IsDirectory() {
			return appErrors.Clone(appErrors.ErrNotACollection, "")
		}
		if err := validateFilter(attrs.Filter); err != nil {
			return err
		}
		set["filter"] = attrs.Filter
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	if err := n.s.fs.store.Update(ctx, n.doc.ID, update); err != nil {
		return notFound(err, appErrors.ErrNodeNotFound)
	}
	n.apply(set)
	if _, ok := unset["destroy"]; ok {
		n.doc.Destroy = nil
	}
	return n.s.fs.record(ctx, n.s, models.EventModify, n, nil)
}

// destroy removes the node without an access check. Collections take their
// subtree along; share roots take every reference pointing at them.
func (n *node) destroy(ctx context.Context) error {
	store := n.s.fs.store
	docs := []models.NodeDocument{*n.doc}
	var ids []primitive.ObjectID

	if n.doc.IsDirectory() && !n.doc.IsReference() {
		var err error
		ids, err = store.Descendants(ctx, graph.DescendantsQuery{Root: n.doc.ID})
		if err != nil {
			return err
		}
		if len(ids) > 0 {
			below, err := store.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, 0)
			if err != nil {
				return err
			}
			docs = append(docs, below...)
			shares := make([]primitive.ObjectID, 0)
			for i := range below {
				if below[i].IsShare() {
					shares = append(shares, below[i].ID)
				}
			}
			if len(shares) > 0 {
				if err := n.s.fs.dropReferences(ctx, n.s, bson.M{"reference": bson.M{"$in": shares}}); err != nil {
					return err
				}
			}
			if _, err := store.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
				return err
			}
		}
	}
	if n.doc.IsShare() {
		if err := n.s.fs.dropReferences(ctx, n.s, bson.M{"reference": n.doc.ID}); err != nil {
			return err
		}
	}
	if err := store.Delete(ctx, n.doc.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	n.s.forget(ids...)
	n.s.forget(n.doc.ID)
	n.s.fs.reaper.Release(ctx, collectBlobs(docs...)...)
	return n.s.fs.record(ctx, n.s, models.EventDestroy, n, nil)
}

// mergeInto folds the node into an existing sibling of the same kind: files
// overwrite the destination content, collections move their children over.
// The source is removed afterwards.
func (n *node) mergeInto(ctx context.Context, dst *Collection, existing *models.NodeDocument) (Node, error) {
	target, err := n.s.resolve(ctx, existing, dst)
	if err != nil {
		return nil, err
	}
	switch src := n.self.(type) {
	case *File:
		rc, err := src.Open(ctx, 0)
		if err != nil {
			return nil, err
		}
		_, _, err = target.(*File).Put(ctx, rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
	case *Collection:
		children, err := src.allChildren(ctx)
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			if _, err := child.Move(ctx, target.(*Collection), models.ConflictMerge); err != nil {
				return nil, err
			}
		}
	}
	if err := n.destroy(ctx); err != nil {
		return nil, err
	}
	return target, nil
}

// containsShare reports whether the node is, or holds, a share root or a
// reference. Such nodes can not live inside a share.
func (n *node) containsShare(ctx context.Context) (bool, error) {
	if n.doc.Shared.Root {
		return true, nil
	}
	if !n.doc.IsDirectory() {
		return false, nil
	}
	ids, err := n.s.fs.store.Descendants(ctx, graph.DescendantsQuery{Root: n.doc.ID})
	if err != nil || len(ids) == 0 {
		return false, err
	}
	count, err := n.s.fs.store.Count(ctx, bson.M{"_id": bson.M{"$in": ids}, "shared": true})
	return count > 0, err
}

func (n *node) checkTarget(dst *Collection, policy models.ConflictPolicy) error {
	if n.root {
		return appErrors.Clone(appErrors.ErrInvalidArgument, "the root collection can not be moved or copied")
	}
	if dst == nil {
		return appErrors.Clone(appErrors.ErrInvalidArgument, "destination collection is required")
	}
	if !policy.Valid() {
		return appErrors.Clone(appErrors.ErrInvalidArgument, "invalid conflict policy")
	}
	return nil
}

// checkSelf guards operations on the node document itself. A principal may
// always rearrange its own references.
func (n *node) checkSelf(ctx context.Context) error {
	if n.root {
		return nil
	}
	if p := n.s.principal; p != nil && n.doc.IsReference() && n.doc.Owner == p.ID {
		return nil
	}
	return n.s.fs.acl.Check(ctx, n.doc, n.s.principal, acl.ModeWrite)
}

// checkContent guards operations on what the node holds.
func (n *node) checkContent(ctx context.Context, mode acl.Mode) error {
	if n.root {
		return nil
	}
	return n.s.fs.acl.Check(ctx, n.doc, n.s.principal, mode)
}

func (n *node) set(ctx context.Context, set bson.M) error {
	if err := n.s.fs.store.Update(ctx, n.doc.ID, bson.M{"$set": set}); err != nil {
		return notFound(err, appErrors.ErrNodeNotFound)
	}
	return nil
}

// apply mirrors a $set onto the cached document.
func (n *node) apply(set bson.M) {
	for key, value := range set {
		switch key {
		case "name":
			n.doc.Name = value.(string)
		case "changed":
			n.doc.Changed = value.(time.Time)
		case "meta":
			n.doc.Meta = value.(*models.NodeMeta)
		case "destroy":
			ts := value.(time.Time)
			n.doc.Destroy = &ts
		case "filter":
			n.doc.Filter = value.(string)
		case "version":
			n.doc.Version = value.(int)
		case "history":
			n.doc.History = value.([]models.HistoryEntry)
		case "storage":
			ref := value.(models.BlobRef)
			n.doc.Storage = &ref
		case "hash":
			n.doc.Hash = value.(string)
		case "size":
			n.doc.Size = value.(int64)
		case "mime":
			n.doc.Mime = value.(string)
		}
	}
}

// reload refreshes the cached document from the store.
func (n *node) reload(ctx context.Context) error {
	raw, err := n.s.fs.store.FindByID(ctx, n.doc.ID)
	if err != nil {
		return notFound(err, appErrors.ErrNodeNotFound)
	}
	*n.doc = *raw
	n.s.nodes[n.doc.ID] = n.self
	n.s.raws[n.doc.ID] = n.doc
	return nil
}
