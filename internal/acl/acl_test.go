package acl

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/noah-isme/drive-api/internal/graph"
	"github.com/noah-isme/drive-api/internal/models"
	"github.com/noah-isme/drive-api/internal/repository"
	appErrors "github.com/noah-isme/drive-api/pkg/errors"
)

type shareStub struct {
	docs map[primitive.ObjectID]*models.NodeDocument
}

func (s *shareStub) FindByID(ctx context.Context, id primitive.ObjectID) (*models.NodeDocument, error) {
	if doc, ok := s.docs[id]; ok {
		return doc, nil
	}
	return nil, repository.ErrNotFound
}

func shareRoot(owner primitive.ObjectID, acl ...models.ACLEntry) *models.NodeDocument {
	return &models.NodeDocument{
		ID:        primitive.NewObjectID(),
		Owner:     owner,
		Directory: models.Bool(true),
		Shared:    models.SharedRoot(),
		ACL:       acl,
	}
}

func TestPrivilegeOrdering(t *testing.T) {
	cases := []struct {
		priv  models.Privilege
		read  bool
		write bool
	}{
		{models.PrivReadWrite, true, true},
		{models.PrivRead, true, false},
		{models.PrivWrite, false, true},
		{models.PrivDeny, false, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.priv), func(t *testing.T) {
			assert.Equal(t, tc.read, Satisfies(tc.priv, ModeRead))
			assert.Equal(t, tc.write, Satisfies(tc.priv, ModeWrite))
			assert.False(t, Satisfies(tc.priv, ModeManage))
		})
	}
}

func TestAllowedRules(t *testing.T) {
	ctx := context.Background()
	owner := &models.Principal{ID: primitive.NewObjectID()}
	member := &models.Principal{ID: primitive.NewObjectID()}
	groupID := primitive.NewObjectID()
	grouped := &models.Principal{ID: primitive.NewObjectID(), Groups: []primitive.ObjectID{groupID}}
	stranger := &models.Principal{ID: primitive.NewObjectID()}

	share := shareRoot(owner.ID,
		models.ACLEntry{Type: models.ACLTypeUser, ID: member.ID, Priv: models.PrivRead},
		models.ACLEntry{Type: models.ACLTypeGroup, ID: groupID, Priv: models.PrivReadWrite},
	)
	child := &models.NodeDocument{ID: primitive.NewObjectID(), Owner: owner.ID, Shared: models.SharedMember(share.ID)}
	reference := &models.NodeDocument{ID: primitive.NewObjectID(), Owner: member.ID, Shared: models.SharedRoot(), Reference: models.ObjectIDPtr(share.ID)}
	orphan := &models.NodeDocument{ID: primitive.NewObjectID(), Owner: member.ID, Shared: models.SharedRoot(), Reference: models.ObjectIDPtr(primitive.NewObjectID())}
	plain := &models.NodeDocument{ID: primitive.NewObjectID(), Owner: owner.ID}

	filter := NewFilter(&shareStub{docs: map[primitive.ObjectID]*models.NodeDocument{share.ID: share}}, nil)

	check := func(doc *models.NodeDocument, p *models.Principal, mode Mode) bool {
		ok, err := filter.Allowed(ctx, doc, p, mode)
		require.NoError(t, err)
		return ok
	}

	assert.True(t, check(share, nil, ModeManage), "system context")
	assert.True(t, check(share, owner, ModeManage), "owner")
	assert.True(t, check(plain, stranger, ModeRead), "plain node read")
	assert.False(t, check(plain, stranger, ModeWrite), "plain node write")

	assert.True(t, check(share, member, ModeRead))
	assert.False(t, check(share, member, ModeWrite))
	assert.False(t, check(share, member, ModeManage))
	assert.True(t, check(child, member, ModeRead))
	assert.False(t, check(child, member, ModeWrite))
	assert.True(t, check(child, grouped, ModeWrite))
	assert.False(t, check(child, stranger, ModeRead))

	assert.True(t, check(reference, member, ModeRead), "reference judged by share acl")
	assert.False(t, check(reference, member, ModeWrite))
	assert.False(t, check(orphan, member, ModeRead), "orphaned reference")

	err := filter.Check(ctx, child, stranger, ModeWrite)
	require.True(t, errors.Is(err, appErrors.ErrForbidden))
	assert.Equal(t, "w", appErrors.FromError(err).Mode)
}

func TestEffectivePrecedence(t *testing.T) {
	g1, g2 := primitive.NewObjectID(), primitive.NewObjectID()
	p := &models.Principal{ID: primitive.NewObjectID(), Groups: []primitive.ObjectID{g1, g2}}

	groups := []models.ACLEntry{
		{Type: models.ACLTypeGroup, ID: g1, Priv: models.PrivRead},
		{Type: models.ACLTypeGroup, ID: g2, Priv: models.PrivReadWrite},
	}
	assert.Equal(t, models.PrivReadWrite, Effective(groups, p))

	withDeny := append(groups, models.ACLEntry{Type: models.ACLTypeGroup, ID: g1, Priv: models.PrivDeny})
	assert.Equal(t, models.PrivDeny, Effective(withDeny, p))

	withUser := append(withDeny, models.ACLEntry{Type: models.ACLTypeUser, ID: p.ID, Priv: models.PrivWrite})
	assert.Equal(t, models.PrivWrite, Effective(withUser, p))

	assert.Equal(t, models.PrivDeny, Effective(nil, p))
}

func TestRevoked(t *testing.T) {
	user, group := primitive.NewObjectID(), primitive.NewObjectID()

	assert.True(t, Revoked(nil, user))
	assert.False(t, Revoked([]models.ACLEntry{{Type: models.ACLTypeUser, ID: user, Priv: models.PrivRead}}, user))
	assert.True(t, Revoked([]models.ACLEntry{{Type: models.ACLTypeUser, ID: user, Priv: models.PrivWrite}}, user))
	assert.True(t, Revoked([]models.ACLEntry{{Type: models.ACLTypeUser, ID: primitive.NewObjectID(), Priv: models.PrivRead}}, user))

	groupRead := models.ACLEntry{Type: models.ACLTypeGroup, ID: group, Priv: models.PrivRead}
	assert.False(t, Revoked([]models.ACLEntry{groupRead}, user), "membership unknown")
	assert.True(t, Revoked([]models.ACLEntry{groupRead, {Type: models.ACLTypeUser, ID: user, Priv: models.PrivDeny}}, user))
}

func TestRestrictPredicate(t *testing.T) {
	assert.Nil(t, Restrict(nil))

	group := primitive.NewObjectID()
	p := &models.Principal{ID: primitive.NewObjectID(), Groups: []primitive.ObjectID{group}}
	restrict := Restrict(p)

	assert.True(t, graph.Match(bson.M{"owner": p.ID}, restrict))
	assert.True(t, graph.Match(bson.M{"owner": primitive.NewObjectID()}, restrict))
	assert.True(t, graph.Match(bson.M{
		"owner": primitive.NewObjectID(),
		"acl":   bson.A{bson.M{"type": "group", "id": group, "priv": "r"}},
	}, restrict))
	assert.False(t, graph.Match(bson.M{
		"owner": primitive.NewObjectID(),
		"acl":   bson.A{bson.M{"type": "user", "id": p.ID, "priv": "d"}},
	}, restrict))
}

func TestValidateEntries(t *testing.T) {
	filter := NewFilter(nil, nil)
	require.NoError(t, filter.Validate([]models.ACLEntry{{Type: "user", ID: primitive.NewObjectID(), Priv: "rw"}}))

	err := filter.Validate([]models.ACLEntry{{Type: "robot", ID: primitive.NewObjectID(), Priv: "x"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}
