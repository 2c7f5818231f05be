package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/noah-isme/drive-api/internal/acl"
	"github.com/noah-isme/drive-api/internal/graph"
	"github.com/noah-isme/drive-api/internal/models"
	"github.com/noah-isme/drive-api/internal/repository"
	appErrors "github.com/noah-isme/drive-api/pkg/errors"
)

// NodeStore persists node documents and answers graph queries.
type NodeStore interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.NodeDocument, error)
	FindOne(ctx context.Context, filter bson.M) (*models.NodeDocument, error)
	Find(ctx context.Context, filter bson.M, limit int64) ([]models.NodeDocument, error)
	Count(ctx context.Context, filter bson.M) (int64, error)
	Insert(ctx context.Context, doc *models.NodeDocument) (primitive.ObjectID, error)
	Update(ctx context.Context, id primitive.ObjectID, update bson.M) error
	UpdateMany(ctx context.Context, filter bson.M, update bson.M) (int64, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	DeleteMany(ctx context.Context, filter bson.M) (int64, error)
	Children(ctx context.Context, q graph.ChildrenQuery) ([]models.NodeDocument, int64, error)
	TrashRoots(ctx context.Context, q graph.TrashQuery) ([]models.NodeDocument, int64, error)
	Descendants(ctx context.Context, q graph.DescendantsQuery) ([]primitive.ObjectID, error)
}

// DeltaLog is the append-only change log behind the delta feed.
type DeltaLog interface {
	Append(ctx context.Context, rec *models.DeltaRecord) error
	LastSeq(ctx context.Context) (int64, error)
	Since(ctx context.Context, q models.DeltaQuery) ([]models.DeltaRecord, error)
}

type blobStore interface {
	Write(ctx context.Context, src io.Reader) (models.BlobRef, int64, error)
	Open(ctx context.Context, ref models.BlobRef) (io.ReadCloser, error)
	Delete(ctx context.Context, ref models.BlobRef) error
}

const (
	defaultMaxFileVersion = 16
	defaultDeltaLimit     = 250
	defaultDeltaMaxLimit  = 1000

	// maxDepth bounds parent chain walks on corrupted graphs.
	maxDepth = 1024
)

// FilesystemOptions tunes a Filesystem. Zero values select defaults.
type FilesystemOptions struct {
	MaxFileVersion int
	DeltaLimit     int
	DeltaMaxLimit  int
	Clock          Clock
	Metrics        *MetricsService
	Events         *EventDispatcher
	Reaper         *BlobReaper
	Logger         *zap.Logger
}

// Filesystem binds the node store, change log and blob storage. It holds no
// per-request state; every unit of work runs in its own Session.
type Filesystem struct {
	store   NodeStore
	deltas  DeltaLog
	blobs   blobStore
	acl     *acl.Filter
	events  *EventDispatcher
	reaper  *BlobReaper
	metrics *MetricsService
	clock   Clock
	logger  *zap.Logger

	maxFileVersion int
	deltaLimit     int
	deltaMaxLimit  int
}

// NewFilesystem constructs the engine.
func NewFilesystem(store NodeStore, deltas DeltaLog, blobs blobStore, opts FilesystemOptions) *Filesystem {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	maxVersion := opts.MaxFileVersion
	if maxVersion <= 0 {
		maxVersion = defaultMaxFileVersion
	}
	if maxVersion < 2 {
		logger.Warn("max file version raised to the minimum",
			zap.Int("requested", maxVersion), zap.Int("max_file_version", 2))
		maxVersion = 2
	}
	deltaLimit := opts.DeltaLimit
	if deltaLimit <= 0 {
		deltaLimit = defaultDeltaLimit
	}
	deltaMax := opts.DeltaMaxLimit
	if deltaMax <= 0 {
		deltaMax = defaultDeltaMaxLimit
	}
	if deltaLimit > deltaMax {
		deltaLimit = deltaMax
	}
	reaper := opts.Reaper
	if reaper == nil {
		reaper = NewBlobReaper(nil, blobs, logger)
	}
	events := opts.Events
	if events == nil {
		events = NewEventDispatcher(logger)
	}

	return &Filesystem{
		store:          store,
		deltas:         deltas,
		blobs:          blobs,
		acl:            acl.NewFilter(store, logger),
		events:         events,
		reaper:         reaper,
		metrics:        opts.Metrics,
		clock:          clock,
		logger:         logger,
		maxFileVersion: maxVersion,
		deltaLimit:     deltaLimit,
		deltaMaxLimit:  deltaMax,
	}
}

// NewSession opens a unit of work for principal. A nil principal runs in the
// system context used by maintenance jobs.
func (f *Filesystem) NewSession(principal *models.Principal) *Session {
	return newSession(f, principal)
}

// MaxFileVersion returns the configured history bound.
func (f *Filesystem) MaxFileVersion() int {
	return f.maxFileVersion
}

func (f *Filesystem) now() time.Time {
	return f.clock.Now().UTC().Truncate(time.Millisecond)
}

// ancestors walks the raw parent chain of a document, nearest first.
func (f *Filesystem) ancestors(ctx context.Context, parent *primitive.ObjectID) ([]primitive.ObjectID, error) {
	result := make([]primitive.ObjectID, 0, 4)
	for depth := 0; parent != nil && depth < maxDepth; depth++ {
		result = append(result, *parent)
		doc, err := f.store.FindByID(ctx, *parent)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				break
			}
			return nil, err
		}
		parent = doc.Parent
	}
	return result, nil
}

// record appends the change log entry for a mutation and notifies sinks.
func (f *Filesystem) record(ctx context.Context, s *Session, op models.EventOperation, n *node, previous *primitive.ObjectID) error {
	return f.recordDoc(ctx, s, op, n.doc, n.Path(), previous)
}

func (f *Filesystem) recordDoc(ctx context.Context, s *Session, op models.EventOperation, doc *models.NodeDocument, path string, previous *primitive.ObjectID) error {
	ts := f.now()
	deleted := op == models.EventDestroy || op == models.EventDelete || doc.Deleted.IsDeleted()

	if f.deltas != nil {
		ancestors, err := f.ancestors(ctx, doc.Parent)
		if err != nil {
			return err
		}
		rec := &models.DeltaRecord{
			ID:        primitive.NewObjectID(),
			Operation: op,
			Node:      doc.ID,
			Owner:     doc.Owner,
			Reference: doc.Reference,
			Ancestors: ancestors,
			Name:      doc.Name,
			Path:      path,
			Directory: doc.IsDirectory(),
			Deleted:   deleted,
			Created:   doc.Created,
			Timestamp: ts,
		}
		if doc.IsShareMember() {
			rec.Share = models.ObjectIDPtr(doc.Shared.Share)
		}
		if err := f.deltas.Append(ctx, rec); err != nil {
			return err
		}
	}

	event := models.NodeEvent{
		Operation: op,
		Node:      doc.ID,
		Name:      doc.Name,
		Parent:    doc.Parent,
		Previous:  previous,
		Owner:     doc.Owner,
		Directory: doc.IsDirectory(),
		Version:   doc.Version,
		Timestamp: ts,
	}
	if s.principal != nil {
		event.Actor = models.ObjectIDPtr(s.principal.ID)
	}
	f.events.Dispatch(ctx, event)
	return nil
}

// recordReferences logs op once per reference, in the feed of the member
// owning it. Share roots never reach a member's feed on their own.
func (f *Filesystem) recordReferences(ctx context.Context, s *Session, op models.EventOperation, refs []models.NodeDocument) error {
	for i := range refs {
		path, err := f.ownerPath(ctx, &refs[i])
		if err != nil {
			return err
		}
		if err := f.recordDoc(ctx, s, op, &refs[i], path, nil); err != nil {
			return err
		}
	}
	return nil
}

// dropReferences removes the references matching filter and logs their
// destruction for each member.
func (f *Filesystem) dropReferences(ctx context.Context, s *Session, filter bson.M) error {
	refs, err := f.store.Find(ctx, graph.And(filter, bson.M{"reference": bson.M{"$exists": true}}), 0)
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		return nil
	}
	ids := make([]primitive.ObjectID, 0, len(refs))
	for i := range refs {
		ids = append(ids, refs[i].ID)
	}
	if _, err := f.store.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
		return err
	}
	s.forget(ids...)
	s.shares = nil
	return f.recordReferences(ctx, s, models.EventDestroy, refs)
}

// ownerPath renders the path of a document as its owner sees it.
func (f *Filesystem) ownerPath(ctx context.Context, doc *models.NodeDocument) (string, error) {
	names := []string{doc.Name}
	for parent, depth := doc.Parent, 0; parent != nil && depth < maxDepth; depth++ {
		p, err := f.store.FindByID(ctx, *parent)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				break
			}
			return "", err
		}
		names = append(names, p.Name)
		parent = p.Parent
	}
	var b strings.Builder
	for i := len(names) - 1; i >= 0; i-- {
		b.WriteString("/")
		b.WriteString(names[i])
	}
	return b.String(), nil
}

// collectBlobs returns every blob referenced by the given documents.
func collectBlobs(docs ...models.NodeDocument) []models.BlobRef {
	seen := make(map[models.BlobRef]struct{})
	refs := make([]models.BlobRef, 0)
	add := func(ref *models.BlobRef) {
		if ref == nil || ref.ID == "" {
			return
		}
		if _, ok := seen[*ref]; ok {
			return
		}
		seen[*ref] = struct{}{}
		refs = append(refs, *ref)
	}
	for i := range docs {
		add(docs[i].Storage)
		for j := range docs[i].History {
			add(docs[i].History[j].File)
		}
	}
	return refs
}

func notFound(err error, sentinel *appErrors.Error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return appErrors.Clone(sentinel, "")
	}
	return err
}
