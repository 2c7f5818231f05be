package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/drive-api/internal/models"
)

// AdapterLocal names the on-disk blob adapter.
const AdapterLocal = "local"

// LocalStorage persists blobs on disk under a base directory.
type LocalStorage struct {
	baseDir string
}

// NewLocalStorage ensures the base directory exists and returns a handle.
func NewLocalStorage(baseDir string) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "./blobs"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob directory: %w", err)
	}
	return &LocalStorage{baseDir: baseDir}, nil
}

// Name implements Adapter.
func (s *LocalStorage) Name() string {
	return AdapterLocal
}

// Write copies the reader into a new blob and returns its reference and size.
func (s *LocalStorage) Write(ctx context.Context, r io.Reader) (models.BlobRef, int64, error) {
	if err := ctx.Err(); err != nil {
		return models.BlobRef{}, 0, err
	}
	id := uuid.NewString()
	path := s.resolve(id)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return models.BlobRef{}, 0, fmt.Errorf("prepare blob directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return models.BlobRef{}, 0, fmt.Errorf("create blob file: %w", err)
	}
	written, err := io.Copy(file, r)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return models.BlobRef{}, 0, fmt.Errorf("write blob stream: %w", err)
	}
	return models.BlobRef{Adapter: AdapterLocal, ID: id}, written, nil
}

// Open returns a read-only handle for the stored blob.
func (s *LocalStorage) Open(ctx context.Context, ref models.BlobRef) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := os.Open(s.resolve(ref.ID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("open blob %s: %w", ref.ID, ErrBlobNotFound)
		}
		return nil, fmt.Errorf("open blob file: %w", err)
	}
	return file, nil
}

// Delete removes a stored blob if present.
func (s *LocalStorage) Delete(ctx context.Context, ref models.BlobRef) error {
	if err := os.Remove(s.resolve(ref.ID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete blob file: %w", err)
	}
	return nil
}

// Path exposes the underlying absolute path (useful for debugging).
func (s *LocalStorage) Path(ref models.BlobRef) string {
	return s.resolve(ref.ID)
}

// blobs are fanned out by the first two characters of their id
func (s *LocalStorage) resolve(id string) string {
	id = filepath.Base(strings.TrimSpace(id))
	if len(id) < 2 {
		return filepath.Join(s.baseDir, id)
	}
	return filepath.Join(s.baseDir, id[:2], id)
}
