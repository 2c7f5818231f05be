package service

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/noah-isme/drive-api/internal/models"
	"github.com/noah-isme/drive-api/internal/repository"
	"github.com/noah-isme/drive-api/pkg/storage"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// countingStore records hard deletes reaching the node store.
type countingStore struct {
	*repository.MemoryNodeRepository

	mu      sync.Mutex
	deletes int
}

func (s *countingStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	s.deletes++
	s.mu.Unlock()
	return s.MemoryNodeRepository.Delete(ctx, id)
}

func (s *countingStore) DeleteMany(ctx context.Context, filter bson.M) (int64, error) {
	s.mu.Lock()
	s.deletes++
	s.mu.Unlock()
	return s.MemoryNodeRepository.DeleteMany(ctx, filter)
}

func (s *countingStore) Deletes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deletes
}

type testEnv struct {
	fs     *Filesystem
	store  *countingStore
	deltas *repository.MemoryDeltaRepository
	blobs  *storage.LocalStorage
	clock  *fakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	blobs, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	env := &testEnv{
		store:  &countingStore{MemoryNodeRepository: repository.NewMemoryNodeRepository()},
		deltas: repository.NewMemoryDeltaRepository(),
		blobs:  blobs,
		clock:  &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)},
	}
	env.fs = NewFilesystem(env.store, env.deltas, env.blobs, FilesystemOptions{
		MaxFileVersion: 4,
		Clock:          env.clock,
	})
	return env
}

func newPrincipal(name string) *models.Principal {
	return &models.Principal{ID: primitive.NewObjectID(), Name: name}
}

func mustDir(t *testing.T, parent *Collection, name string) *Collection {
	t.Helper()
	c, err := parent.AddDirectory(context.Background(), name, models.ConflictFail, NodeAttributes{})
	require.NoError(t, err)
	return c
}

func mustFile(t *testing.T, parent *Collection, name, content string) *File {
	t.Helper()
	f, created, err := parent.AddFile(context.Background(), name, strings.NewReader(content), models.ConflictFail, NodeAttributes{})
	require.NoError(t, err)
	require.True(t, created)
	return f
}

func readAll(t *testing.T, f *File, version int) string {
	t.Helper()
	rc, err := f.Open(context.Background(), version)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func childNames(t *testing.T, c *Collection) []string {
	t.Helper()
	nodes, _, err := c.Children(context.Background(), models.DeletedExclude, models.Page{})
	require.NoError(t, err)
	names := make([]string, 0, len(nodes))
	for _, n := range nodes {
		names = append(names, n.Name())
	}
	return names
}

func TestNewFilesystemDefaults(t *testing.T) {
	blobs, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	fs := NewFilesystem(repository.NewMemoryNodeRepository(), repository.NewMemoryDeltaRepository(), blobs, FilesystemOptions{MaxFileVersion: 1})

	require.Equal(t, 2, fs.MaxFileVersion())
	require.Equal(t, defaultDeltaLimit, fs.deltaLimit)
	require.Equal(t, defaultDeltaMaxLimit, fs.deltaMaxLimit)
	require.NotNil(t, fs.reaper)
	require.NotNil(t, fs.events)
}

func TestRecordAppendsChangeWithAncestors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s := env.fs.NewSession(newPrincipal("alice"))

	docs := mustDir(t, s.Root(), "Docs")
	f := mustFile(t, docs, "a.txt", "hello")

	records, err := env.deltas.Since(ctx, models.DeltaQuery{Owner: s.Principal().ID})
	require.NoError(t, err)
	require.Len(t, records, 2)

	last := records[1]
	require.Equal(t, f.ID(), last.Node)
	require.Equal(t, models.EventAdd, last.Operation)
	require.Equal(t, "/Docs/a.txt", last.Path)
	require.Equal(t, []primitive.ObjectID{docs.ID()}, last.Ancestors)
	require.Nil(t, last.Share)
	require.False(t, last.Deleted)
}
