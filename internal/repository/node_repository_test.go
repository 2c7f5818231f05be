package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/noah-isme/drive-api/internal/graph"
	"github.com/noah-isme/drive-api/internal/models"
)

func TestMongoNodeRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("find by id not found", func(mt *mtest.T) {
		repo := NewMongoNodeRepository(mt.DB, nil)
		ns := mt.DB.Name() + "." + models.NodeCollection
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := repo.FindByID(context.Background(), primitive.NewObjectID())
		require.ErrorIs(t, err, ErrNotFound)
	})

	mt.Run("find by id decodes", func(mt *mtest.T) {
		repo := NewMongoNodeRepository(mt.DB, nil)
		ns := mt.DB.Name() + "." + models.NodeCollection
		id := primitive.NewObjectID()
		share := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: id},
			{Key: "parent", Value: nil},
			{Key: "name", Value: "docs"},
			{Key: "directory", Value: true},
			{Key: "deleted", Value: false},
			{Key: "shared", Value: share},
		}))

		doc, err := repo.FindByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, "docs", doc.Name)
		assert.True(t, doc.IsDirectory())
		assert.True(t, doc.IsShareMember())
		assert.Equal(t, share, doc.Shared.Share)
	})

	mt.Run("update reports missing node", func(mt *mtest.T) {
		repo := NewMongoNodeRepository(mt.DB, nil)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))

		err := repo.Update(context.Background(), primitive.NewObjectID(), bson.M{"$set": bson.M{"name": "x"}})
		require.ErrorIs(t, err, ErrNotFound)
	})

	mt.Run("children runs count then page", func(mt *mtest.T) {
		observer := &observerStub{}
		repo := NewMongoNodeRepository(mt.DB, observer)
		ns := mt.DB.Name() + "." + models.NodeCollection
		parent := primitive.NewObjectID()
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{{Key: "total", Value: int32(2)}}),
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
				bson.D{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "parent", Value: parent}, {Key: "name", Value: "a"}, {Key: "directory", Value: true}, {Key: "size", Value: int32(3)}},
			),
		)

		docs, total, err := repo.Children(context.Background(), graph.ChildrenQuery{Parent: &parent, Limit: 1})
		require.NoError(t, err)
		assert.EqualValues(t, 2, total)
		require.Len(t, docs, 1)
		assert.EqualValues(t, 3, docs[0].Size)
		assert.Contains(t, observer.labels, "storage.children")
	})

	mt.Run("children short-circuits on zero total", func(mt *mtest.T) {
		repo := NewMongoNodeRepository(mt.DB, nil)
		ns := mt.DB.Name() + "." + models.NodeCollection
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		docs, total, err := repo.Children(context.Background(), graph.ChildrenQuery{})
		require.NoError(t, err)
		assert.Zero(t, total)
		assert.Empty(t, docs)
	})
}
