package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/drive-api/internal/models"
	"github.com/noah-isme/drive-api/pkg/jobs"
	"github.com/noah-isme/drive-api/pkg/storage"
)

// JobReleaseBlob is the queue job type deleting one blob.
const JobReleaseBlob = "blob.release"

type blobDeleter interface {
	Delete(ctx context.Context, ref models.BlobRef) error
}

// BlobReaper releases blobs no document references anymore. With a queue the
// deletes run in the background with retries; without one, or when the queue
// is not running, they run inline.
type BlobReaper struct {
	queue  *jobs.Queue
	blobs  blobDeleter
	logger *zap.Logger
}

// NewBlobReaper constructs the reaper and registers its handler on queue.
// Register before the queue starts.
func NewBlobReaper(queue *jobs.Queue, blobs blobDeleter, logger *zap.Logger) *BlobReaper {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &BlobReaper{queue: queue, blobs: blobs, logger: logger}
	if queue != nil {
		queue.Handle(JobReleaseBlob, r.handle)
	}
	return r
}

// Release schedules refs for deletion.
func (r *BlobReaper) Release(ctx context.Context, refs ...models.BlobRef) {
	if r == nil || r.blobs == nil {
		return
	}
	for _, ref := range refs {
		if r.queue != nil {
			err := r.queue.Enqueue(ctx, jobs.Job{
				ID:       uuid.NewString(),
				Type:     JobReleaseBlob,
				Payload:  ref,
				Enqueued: time.Now().UTC(),
			})
			if err == nil {
				continue
			}
			r.logger.Debug("releasing blob inline", zap.String("blob", ref.ID), zap.Error(err))
		}
		if err := r.delete(ctx, ref); err != nil {
			r.logger.Warn("failed to release blob",
				zap.String("adapter", ref.Adapter),
				zap.String("blob", ref.ID),
				zap.Error(err))
		}
	}
}

func (r *BlobReaper) handle(ctx context.Context, job jobs.Job) error {
	ref, ok := job.Payload.(models.BlobRef)
	if !ok {
		return fmt.Errorf("release blob: unexpected payload %T", job.Payload)
	}
	return r.delete(ctx, ref)
}

func (r *BlobReaper) delete(ctx context.Context, ref models.BlobRef) error {
	if err := r.blobs.Delete(ctx, ref); err != nil && !errors.Is(err, storage.ErrBlobNotFound) {
		return err
	}
	return nil
}
