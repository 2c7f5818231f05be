package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/noah-isme/drive-api/internal/models"
	"github.com/noah-isme/drive-api/internal/repository"
)

func TestCollectExpired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s := env.fs.NewSession(newPrincipal("alice"))

	soon := env.clock.Now().Add(time.Minute)
	later := env.clock.Now().Add(24 * time.Hour)
	a, _, err := s.Root().AddFile(ctx, "a.tmp", strings.NewReader("a"), models.ConflictFail, NodeAttributes{Destroy: &soon})
	require.NoError(t, err)
	b, err := s.Root().AddDirectory(ctx, "b", models.ConflictFail, NodeAttributes{Destroy: &soon})
	require.NoError(t, err)
	keep, _, err := s.Root().AddFile(ctx, "keep", strings.NewReader("k"), models.ConflictFail, NodeAttributes{Destroy: &later})
	require.NoError(t, err)

	n, err := env.fs.CollectExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	env.clock.Advance(time.Hour)
	n, err = env.fs.CollectExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, id := range []primitive.ObjectID{a.ID(), b.ID()} {
		_, err := env.store.FindByID(ctx, id)
		assert.ErrorIs(t, err, repository.ErrNotFound, id.Hex())
	}
	_, err = env.store.FindByID(ctx, keep.ID())
	require.NoError(t, err)

	n, err = env.fs.CollectExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
