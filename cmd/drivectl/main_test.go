package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/noah-isme/drive-api/internal/models"
	"github.com/noah-isme/drive-api/internal/repository"
	"github.com/noah-isme/drive-api/internal/service"
	"github.com/noah-isme/drive-api/pkg/storage"
)

func newTestFilesystem(t *testing.T) *service.Filesystem {
	t.Helper()
	blobs, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return service.NewFilesystem(repository.NewMemoryNodeRepository(), repository.NewMemoryDeltaRepository(),
		storage.NewRegistry(blobs), service.FilesystemOptions{})
}

func TestParsePrincipal(t *testing.T) {
	p, err := parsePrincipal("", nil, false)
	require.NoError(t, err)
	assert.Nil(t, p)

	user, group := primitive.NewObjectID(), primitive.NewObjectID()
	p, err = parsePrincipal(user.Hex(), []string{" " + group.Hex()}, true)
	require.NoError(t, err)
	assert.Equal(t, user, p.ID)
	assert.Equal(t, []primitive.ObjectID{group}, p.Groups)
	assert.True(t, p.Admin)

	_, err = parsePrincipal("alice", nil, false)
	assert.Error(t, err)
	_, err = parsePrincipal(user.Hex(), []string{"staff"}, false)
	assert.Error(t, err)
}

func TestBuildTree(t *testing.T) {
	ctx := context.Background()
	fs := newTestFilesystem(t)
	s := fs.NewSession(&models.Principal{ID: primitive.NewObjectID()})
	defer s.Close()

	docs, err := s.Root().AddDirectory(ctx, "docs", models.ConflictFail, service.NodeAttributes{})
	require.NoError(t, err)
	drafts, err := docs.AddDirectory(ctx, "drafts", models.ConflictFail, service.NodeAttributes{})
	require.NoError(t, err)
	_, _, err = drafts.AddFile(ctx, "deep.txt", strings.NewReader("x"), models.ConflictFail, service.NodeAttributes{})
	require.NoError(t, err)
	old, _, err := docs.AddFile(ctx, "old.txt", strings.NewReader("y"), models.ConflictFail, service.NodeAttributes{})
	require.NoError(t, err)
	require.NoError(t, old.Delete(ctx, false))

	tree, err := buildTree(ctx, s.Root(), models.DeletedExclude, 0)
	require.NoError(t, err)
	out := tree.Print()
	assert.True(t, strings.HasPrefix(out, "/\n"))
	assert.Contains(t, out, "docs/")
	assert.Contains(t, out, "drafts/")
	assert.Contains(t, out, "deep.txt (v1)")
	assert.NotContains(t, out, "old.txt")

	tree, err = buildTree(ctx, docs, models.DeletedInclude, 1)
	require.NoError(t, err)
	out = tree.Print()
	assert.True(t, strings.HasPrefix(out, "/docs\n"))
	assert.Contains(t, out, "drafts/")
	assert.Contains(t, out, "[deleted]")
	assert.NotContains(t, out, "deep.txt")
}

func TestWriteDelta(t *testing.T) {
	ctx := context.Background()
	fs := newTestFilesystem(t)
	s := fs.NewSession(&models.Principal{ID: primitive.NewObjectID()})
	defer s.Close()

	_, err := s.Root().AddDirectory(ctx, "docs", models.ConflictFail, service.NodeAttributes{})
	require.NoError(t, err)
	page, err := s.GetDelta(ctx, "", 0, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, writeDelta(&buf, page))
	assert.Contains(t, buf.String(), `"path": "/docs"`)
	assert.Contains(t, buf.String(), `"cursor": "`+page.Cursor+`"`)
}
