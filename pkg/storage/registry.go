package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/noah-isme/drive-api/internal/models"
)

// ErrBlobNotFound is returned when a referenced blob does not exist.
var ErrBlobNotFound = errors.New("blob not found")

// Adapter is one blob backend.
type Adapter interface {
	Name() string
	Write(ctx context.Context, r io.Reader) (models.BlobRef, int64, error)
	Open(ctx context.Context, ref models.BlobRef) (io.ReadCloser, error)
	Delete(ctx context.Context, ref models.BlobRef) error
}

// Registry routes blob operations to the adapter named in the reference.
// New blobs always go to the default adapter.
type Registry struct {
	adapters map[string]Adapter
	def      Adapter
}

// NewRegistry registers the default adapter plus any additional ones.
func NewRegistry(def Adapter, others ...Adapter) *Registry {
	r := &Registry{adapters: map[string]Adapter{def.Name(): def}, def: def}
	for _, a := range others {
		r.adapters[a.Name()] = a
	}
	return r
}

// Write stores a new blob on the default adapter.
func (r *Registry) Write(ctx context.Context, src io.Reader) (models.BlobRef, int64, error) {
	return r.def.Write(ctx, src)
}

// Open reads a blob from the adapter that wrote it.
func (r *Registry) Open(ctx context.Context, ref models.BlobRef) (io.ReadCloser, error) {
	a, err := r.adapter(ref)
	if err != nil {
		return nil, err
	}
	return a.Open(ctx, ref)
}

// Delete releases a blob on the adapter that wrote it.
func (r *Registry) Delete(ctx context.Context, ref models.BlobRef) error {
	a, err := r.adapter(ref)
	if err != nil {
		return err
	}
	return a.Delete(ctx, ref)
}

func (r *Registry) adapter(ref models.BlobRef) (Adapter, error) {
	name := ref.Adapter
	if name == "" {
		return r.def, nil
	}
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("unknown blob adapter %q", name)
	}
	return a, nil
}
