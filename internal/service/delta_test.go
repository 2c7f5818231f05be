package service

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/noah-isme/drive-api/internal/models"
	"github.com/noah-isme/drive-api/internal/repository"
	appErrors "github.com/noah-isme/drive-api/pkg/errors"
)

func deltaPaths(page *models.DeltaPage) []string {
	paths := make([]string, 0, len(page.Nodes))
	for _, item := range page.Nodes {
		paths = append(paths, item.Path)
	}
	return paths
}

func TestDeltaResetThenIncremental(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := newPrincipal("alice")
	s := env.fs.NewSession(alice)

	docs := mustDir(t, s.Root(), "Docs")
	f := mustFile(t, docs, "a.txt", "x")

	first, err := env.fs.NewSession(alice).GetDelta(ctx, "", 0, nil)
	require.NoError(t, err)
	assert.True(t, first.Reset)
	assert.False(t, first.HasMore)
	assert.Equal(t, []string{"/Docs", "/Docs/a.txt"}, deltaPaths(first))
	require.NotNil(t, first.Nodes[1].Created)

	quiet, err := env.fs.NewSession(alice).GetDelta(ctx, first.Cursor, 0, nil)
	require.NoError(t, err)
	assert.False(t, quiet.Reset)
	assert.Empty(t, quiet.Nodes)

	require.NoError(t, f.Delete(ctx, false))
	changed, err := env.fs.NewSession(alice).GetDelta(ctx, quiet.Cursor, 0, nil)
	require.NoError(t, err)
	require.Len(t, changed.Nodes, 1)
	item := changed.Nodes[0]
	assert.Equal(t, f.ID(), item.ID)
	assert.True(t, item.Deleted)
	assert.Nil(t, item.Created)

	require.NoError(t, docs.Delete(ctx, true))
	gone, err := env.fs.NewSession(alice).GetDelta(ctx, changed.Cursor, 0, nil)
	require.NoError(t, err)
	require.Len(t, gone.Nodes, 1)
	assert.Equal(t, docs.ID(), gone.Nodes[0].ID)
	assert.True(t, gone.Nodes[0].Deleted)
	assert.Nil(t, gone.Nodes[0].Created)
	assert.True(t, gone.Nodes[0].Directory)
}

func TestDeltaDeduplicatesChanges(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := newPrincipal("alice")
	s := env.fs.NewSession(alice)

	f := mustFile(t, s.Root(), "a.txt", "1")
	start, err := env.fs.NewSession(alice).GetDelta(ctx, "", 0, nil)
	require.NoError(t, err)

	for _, content := range []string{"2", "3", "4"} {
		_, _, err := f.Put(ctx, strings.NewReader(content))
		require.NoError(t, err)
	}
	require.NoError(t, f.Rename(ctx, "b.txt"))

	page, err := env.fs.NewSession(alice).GetDelta(ctx, start.Cursor, 0, nil)
	require.NoError(t, err)
	require.Len(t, page.Nodes, 1)
	assert.Equal(t, "/b.txt", page.Nodes[0].Path)
	assert.False(t, page.Nodes[0].Deleted)
}

func TestDeltaPaging(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := newPrincipal("alice")
	s := env.fs.NewSession(alice)

	for _, name := range []string{"a", "b", "c"} {
		mustFile(t, s.Root(), name, name)
	}

	var paths []string
	cursor := ""
	for i := 0; i < 3; i++ {
		page, err := env.fs.NewSession(alice).GetDelta(ctx, cursor, 1, nil)
		require.NoError(t, err)
		assert.Equal(t, i == 0, page.Reset)
		assert.Equal(t, i < 2, page.HasMore)
		paths = append(paths, deltaPaths(page)...)
		cursor = page.Cursor
	}
	assert.Equal(t, []string{"/a", "/b", "/c"}, paths)

	decoded, err := DecodeCursor(cursor)
	require.NoError(t, err)
	assert.Equal(t, models.CursorIncremental, decoded.Kind)

	mustFile(t, s.Root(), "d", "d")
	page, err := env.fs.NewSession(alice).GetDelta(ctx, cursor, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"/d"}, deltaPaths(page))
}

func TestDeltaScope(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := newPrincipal("alice")
	s := env.fs.NewSession(alice)

	docs := mustDir(t, s.Root(), "Docs")
	mustFile(t, docs, "in.txt", "x")
	mustFile(t, s.Root(), "out.txt", "y")

	scope := docs.ID()
	page, err := env.fs.NewSession(alice).GetDelta(ctx, "", 0, &scope)
	require.NoError(t, err)
	assert.Equal(t, []string{"/Docs/in.txt"}, deltaPaths(page))

	mustFile(t, s.Root(), "later.txt", "z")
	mustFile(t, docs, "later.txt", "z")
	next, err := env.fs.NewSession(alice).GetDelta(ctx, page.Cursor, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"/Docs/later.txt"}, deltaPaths(next))

	other := primitive.NewObjectID()
	_, err = env.fs.NewSession(alice).GetDelta(ctx, page.Cursor, 0, &other)
	assert.ErrorIs(t, err, appErrors.ErrInvalidArgument)
}

func TestDeltaFollowsShares(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice, bob := newPrincipal("alice"), newPrincipal("bob")
	as := env.fs.NewSession(alice)

	team := mustDir(t, as.Root(), "Team")
	mustFile(t, team, "plan.txt", "plan")
	require.NoError(t, team.Share(ctx, []models.ACLEntry{{Type: models.ACLTypeUser, ID: bob.ID, Priv: models.PrivRead}}))

	first, err := env.fs.NewSession(bob).GetDelta(ctx, "", 0, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"/Team", "/Team/plan.txt"}, deltaPaths(first))

	mustFile(t, team, "minutes.txt", "notes")
	next, err := env.fs.NewSession(bob).GetDelta(ctx, first.Cursor, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"/Team/minutes.txt"}, deltaPaths(next))
}

func deltaItem(t *testing.T, page *models.DeltaPage, path string) models.DeltaItem {
	t.Helper()
	for _, item := range page.Nodes {
		if item.Path == path {
			return item
		}
	}
	require.Failf(t, "missing delta item", "no item at %s in %v", path, deltaPaths(page))
	return models.DeltaItem{}
}

func TestDeltaReportsUnshare(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice, bob := newPrincipal("alice"), newPrincipal("bob")
	as := env.fs.NewSession(alice)

	team := mustDir(t, as.Root(), "Team")
	mustFile(t, team, "plan.txt", "plan")
	require.NoError(t, team.Share(ctx, []models.ACLEntry{{Type: models.ACLTypeUser, ID: bob.ID, Priv: models.PrivRead}}))

	first, err := env.fs.NewSession(bob).GetDelta(ctx, "", 0, nil)
	require.NoError(t, err)
	ref := deltaItem(t, first, "/Team")
	assert.NotEqual(t, team.ID(), ref.ID)

	require.NoError(t, team.Unshare(ctx))

	next, err := env.fs.NewSession(bob).GetDelta(ctx, first.Cursor, 0, nil)
	require.NoError(t, err)
	require.Len(t, next.Nodes, 1)
	gone := next.Nodes[0]
	assert.Equal(t, ref.ID, gone.ID)
	assert.Equal(t, "/Team", gone.Path)
	assert.True(t, gone.Deleted)
	assert.True(t, gone.Directory)
	assert.Nil(t, gone.Created)

	own, err := env.fs.NewSession(alice).GetDelta(ctx, "", 0, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"/Team", "/Team/plan.txt"}, deltaPaths(own))
}

func TestDeltaReportsRevokedShare(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice, bob, carol := newPrincipal("alice"), newPrincipal("bob"), newPrincipal("carol")
	as := env.fs.NewSession(alice)

	team := mustDir(t, as.Root(), "Team")
	require.NoError(t, team.Share(ctx, []models.ACLEntry{
		{Type: models.ACLTypeUser, ID: bob.ID, Priv: models.PrivRead},
		{Type: models.ACLTypeUser, ID: carol.ID, Priv: models.PrivRead},
	}))
	require.NoError(t, env.fs.NewSession(carol).SyncShares(ctx))

	first, err := env.fs.NewSession(bob).GetDelta(ctx, "", 0, nil)
	require.NoError(t, err)
	ref := deltaItem(t, first, "/Team")

	require.NoError(t, team.Share(ctx, []models.ACLEntry{{Type: models.ACLTypeUser, ID: carol.ID, Priv: models.PrivRead}}))

	_, err = env.store.FindByID(ctx, ref.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	kept, err := env.store.Count(ctx, bson.M{"reference": team.ID()})
	require.NoError(t, err)
	assert.Equal(t, int64(1), kept)

	next, err := env.fs.NewSession(bob).GetDelta(ctx, first.Cursor, 0, nil)
	require.NoError(t, err)
	require.Len(t, next.Nodes, 1)
	assert.Equal(t, ref.ID, next.Nodes[0].ID)
	assert.Equal(t, "/Team", next.Nodes[0].Path)
	assert.True(t, next.Nodes[0].Deleted)
}

func TestDeltaReportsGroupRevokeOnRead(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice, bob := newPrincipal("alice"), newPrincipal("bob")
	staff, board := primitive.NewObjectID(), primitive.NewObjectID()
	bob.Groups = []primitive.ObjectID{staff}
	as := env.fs.NewSession(alice)

	team := mustDir(t, as.Root(), "Team")
	require.NoError(t, team.Share(ctx, []models.ACLEntry{{Type: models.ACLTypeGroup, ID: staff, Priv: models.PrivRead}}))

	first, err := env.fs.NewSession(bob).GetDelta(ctx, "", 0, nil)
	require.NoError(t, err)
	ref := deltaItem(t, first, "/Team")

	require.NoError(t, team.Share(ctx, []models.ACLEntry{{Type: models.ACLTypeGroup, ID: board, Priv: models.PrivRead}}))

	next, err := env.fs.NewSession(bob).GetDelta(ctx, first.Cursor, 0, nil)
	require.NoError(t, err)
	require.Len(t, next.Nodes, 1)
	assert.Equal(t, ref.ID, next.Nodes[0].ID)
	assert.True(t, next.Nodes[0].Deleted)
}

func TestDeltaReportsDeletedShare(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice, bob := newPrincipal("alice"), newPrincipal("bob")
	as := env.fs.NewSession(alice)

	team := mustDir(t, as.Root(), "Team")
	require.NoError(t, team.Share(ctx, []models.ACLEntry{{Type: models.ACLTypeUser, ID: bob.ID, Priv: models.PrivRead}}))

	first, err := env.fs.NewSession(bob).GetDelta(ctx, "", 0, nil)
	require.NoError(t, err)
	ref := deltaItem(t, first, "/Team")

	require.NoError(t, team.Delete(ctx, false))
	deleted, err := env.fs.NewSession(bob).GetDelta(ctx, first.Cursor, 0, nil)
	require.NoError(t, err)
	require.Len(t, deleted.Nodes, 1)
	assert.Equal(t, ref.ID, deleted.Nodes[0].ID)
	assert.True(t, deleted.Nodes[0].Deleted)

	_, err = team.Undelete(ctx, models.ConflictFail)
	require.NoError(t, err)
	restored, err := env.fs.NewSession(bob).GetDelta(ctx, deleted.Cursor, 0, nil)
	require.NoError(t, err)
	require.Len(t, restored.Nodes, 1)
	assert.Equal(t, ref.ID, restored.Nodes[0].ID)
	assert.False(t, restored.Nodes[0].Deleted)

	require.NoError(t, team.Delete(ctx, true))
	destroyed, err := env.fs.NewSession(bob).GetDelta(ctx, restored.Cursor, 0, nil)
	require.NoError(t, err)
	require.Len(t, destroyed.Nodes, 1)
	assert.Equal(t, ref.ID, destroyed.Nodes[0].ID)
	assert.True(t, destroyed.Nodes[0].Deleted)
}

func TestCursorCodec(t *testing.T) {
	scope := primitive.NewObjectID()
	last := primitive.NewObjectID()
	c := models.DeltaCursor{Kind: models.CursorInitial, LastSeq: 42, LastID: last, Scope: scope}

	decoded, err := DecodeCursor(EncodeCursor(c))
	require.NoError(t, err)
	assert.Equal(t, c, decoded)

	for _, token := range []string{
		"",
		"%%%",
		base64.RawURLEncoding.EncodeToString([]byte("bogus|1|" + last.Hex() + "|")),
		base64.RawURLEncoding.EncodeToString([]byte("initial|-1|" + last.Hex() + "|")),
		base64.RawURLEncoding.EncodeToString([]byte("initial|1|zz|")),
		base64.RawURLEncoding.EncodeToString([]byte("initial|1")),
	} {
		_, err := DecodeCursor(token)
		assert.ErrorIs(t, err, appErrors.ErrInvalidArgument, "token %q", token)
	}

	_, err = newTestEnv(t).fs.NewSession(newPrincipal("alice")).GetDelta(context.Background(), "%%%", 0, nil)
	assert.ErrorIs(t, err, appErrors.ErrInvalidArgument)
}
