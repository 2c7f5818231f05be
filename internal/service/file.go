package service

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"io"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/crypto/blake2b"

	"github.com/noah-isme/drive-api/internal/acl"
	"github.com/noah-isme/drive-api/internal/models"
	appErrors "github.com/noah-isme/drive-api/pkg/errors"
	"github.com/noah-isme/drive-api/pkg/storage"
)

// sniffLen is how much leading content is inspected for the mime type.
const sniffLen = 3072

// File is a versioned content node.
type File struct {
	node
}

// Version returns the current content version.
func (f *File) Version() int { return f.doc.Version }

// History returns a copy of the version log, oldest first.
func (f *File) History() []models.HistoryEntry {
	return append([]models.HistoryEntry(nil), f.doc.History...)
}

// Put stores new content. The blob is written before the document flips to
// it in a single update. Content equal to the current version changes
// nothing: the current version is returned and changed is false.
func (f *File) Put(ctx context.Context, r io.Reader) (version int, changed bool, err error) {
	if err := f.checkContent(ctx, acl.ModeWrite); err != nil {
		return 0, false, err
	}
	if f.IsDeleted() {
		return 0, false, appErrors.Clone(appErrors.ErrConflict, "file is deleted")
	}

	content, err := f.s.fs.writeContent(ctx, r)
	if err != nil {
		return 0, false, err
	}
	if f.doc.Version > 0 && content.hash == f.doc.Hash {
		f.s.fs.reaper.Release(ctx, content.ref)
		return f.doc.Version, false, nil
	}

	now := f.s.fs.now()
	kind := models.HistoryModified
	if f.doc.Version == 0 {
		kind = models.HistoryAdded
	}
	ref := content.ref
	entry := models.HistoryEntry{
		Version: f.doc.Version + 1,
		Changed: now,
		User:    f.s.actor(),
		Type:    kind,
		File:    &ref,
		Size:    content.size,
		Mime:    content.mime,
		Hash:    content.hash,
	}
	set := bson.M{
		"storage": ref,
		"hash":    content.hash,
		"size":    content.size,
		"mime":    content.mime,
		"changed": now,
	}
	evicted := f.stageHistory(set, entry)
	if err := f.set(ctx, set); err != nil {
		f.s.fs.reaper.Release(ctx, ref)
		return 0, false, err
	}
	f.apply(set)
	f.s.fs.reaper.Release(ctx, evicted...)
	if err := f.s.fs.record(ctx, f.s, models.EventModify, f.base(), nil); err != nil {
		return 0, false, err
	}
	return f.doc.Version, true, nil
}

// Rollback restores the content of an earlier version as a new version.
func (f *File) Rollback(ctx context.Context, version int) (int, error) {
	if err := f.checkContent(ctx, acl.ModeWrite); err != nil {
		return 0, err
	}
	if f.IsDeleted() {
		return 0, appErrors.Clone(appErrors.ErrConflict, "file is deleted")
	}
	target := f.historyEntry(version)
	if target == nil {
		return 0, appErrors.Clone(appErrors.ErrVersionNotFound, "")
	}

	now := f.s.fs.now()
	ref := *target.File
	entry := models.HistoryEntry{
		Version: f.doc.Version + 1,
		Changed: now,
		User:    f.s.actor(),
		Type:    models.HistoryRollback,
		File:    &ref,
		Size:    target.Size,
		Mime:    target.Mime,
		Hash:    target.Hash,
		Target:  version,
	}
	set := bson.M{
		"storage": ref,
		"hash":    target.Hash,
		"size":    target.Size,
		"mime":    target.Mime,
		"changed": now,
	}
	evicted := f.stageHistory(set, entry)
	if err := f.set(ctx, set); err != nil {
		return 0, err
	}
	f.apply(set)
	f.s.fs.reaper.Release(ctx, evicted...)
	if err := f.s.fs.record(ctx, f.s, models.EventRestore, f.base(), nil); err != nil {
		return 0, err
	}
	return f.doc.Version, nil
}

// Open streams the content of a version; zero selects the current one.
func (f *File) Open(ctx context.Context, version int) (io.ReadCloser, error) {
	ref := f.doc.Storage
	if version != 0 && version != f.doc.Version {
		entry := f.historyEntry(version)
		if entry == nil {
			return nil, appErrors.Clone(appErrors.ErrVersionNotFound, "")
		}
		ref = entry.File
	}
	if ref == nil {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	rc, err := f.s.fs.blobs.Open(ctx, *ref)
	if err != nil {
		if errors.Is(err, storage.ErrBlobNotFound) {
			return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "file content not found")
		}
		return nil, err
	}
	return rc, nil
}

func (f *File) copyTo(ctx context.Context, dst *Collection, policy models.ConflictPolicy) (Node, error) {
	rc, err := f.Open(ctx, 0)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	copied, _, err := dst.AddFile(ctx, f.doc.Name, rc, policy, NodeAttributes{Meta: f.doc.Meta})
	if err != nil {
		return nil, err
	}
	return copied, nil
}

// historyEntry returns the latest entry of version that still points at content.
func (f *File) historyEntry(version int) *models.HistoryEntry {
	for i := len(f.doc.History) - 1; i >= 0; i-- {
		if e := &f.doc.History[i]; e.Version == version && e.File != nil {
			return e
		}
	}
	return nil
}

// markerEntry records a state change that keeps the current content.
func (f *File) markerEntry(kind models.HistoryType, now time.Time) models.HistoryEntry {
	entry := models.HistoryEntry{
		Version: f.doc.Version + 1,
		Changed: now,
		User:    f.s.actor(),
		Type:    kind,
		Size:    f.doc.Size,
		Mime:    f.doc.Mime,
		Hash:    f.doc.Hash,
	}
	if f.doc.Storage != nil {
		ref := *f.doc.Storage
		entry.File = &ref
	}
	return entry
}

// stageHistory appends entry to the version log inside set and returns the
// blobs no longer referenced once the log is pruned.
func (f *File) stageHistory(set bson.M, entry models.HistoryEntry) []models.BlobRef {
	history := make([]models.HistoryEntry, 0, len(f.doc.History)+1)
	history = append(history, f.doc.History...)
	history = append(history, entry)
	history, dropped := pruneHistory(history, f.s.fs.maxFileVersion)
	set["history"] = history
	set["version"] = entry.Version
	return unreferenced(dropped, history)
}

// pruneHistory evicts the oldest entries until at most limit remain. The added
// entry is kept; the entry after it goes instead.
func pruneHistory(history []models.HistoryEntry, limit int) ([]models.HistoryEntry, []models.HistoryEntry) {
	var dropped []models.HistoryEntry
	for len(history) > limit && len(history) > 1 {
		idx := 0
		if history[0].Type == models.HistoryAdded {
			idx = 1
		}
		dropped = append(dropped, history[idx])
		history = append(history[:idx], history[idx+1:]...)
	}
	return history, dropped
}

func unreferenced(dropped, kept []models.HistoryEntry) []models.BlobRef {
	if len(dropped) == 0 {
		return nil
	}
	live := make(map[models.BlobRef]struct{}, len(kept))
	for _, e := range kept {
		if e.File != nil {
			live[*e.File] = struct{}{}
		}
	}
	refs := make([]models.BlobRef, 0, len(dropped))
	for _, e := range dropped {
		if e.File == nil {
			continue
		}
		if _, ok := live[*e.File]; ok {
			continue
		}
		live[*e.File] = struct{}{}
		refs = append(refs, *e.File)
	}
	return refs
}

type blobContent struct {
	ref  models.BlobRef
	size int64
	hash string
	mime string
}

// writeContent streams r into blob storage while hashing it with BLAKE2b-256
// and sniffing its mime type from the leading bytes.
func (f *Filesystem) writeContent(ctx context.Context, r io.Reader) (blobContent, error) {
	if r == nil {
		r = bytes.NewReader(nil)
	}
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return blobContent{}, err
	}
	head = head[:n]

	hasher, err := blake2b.New256(nil)
	if err != nil {
		return blobContent{}, err
	}
	src := io.TeeReader(io.MultiReader(bytes.NewReader(head), r), hasher)
	ref, size, err := f.blobs.Write(ctx, src)
	if err != nil {
		return blobContent{}, err
	}
	f.metrics.RecordContentWrite(size)
	return blobContent{
		ref:  ref,
		size: size,
		hash: hex.EncodeToString(hasher.Sum(nil)),
		mime: mimetype.Detect(head).String(),
	}, nil
}
