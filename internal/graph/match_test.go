package graph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestMatchEqualityAndOperators(t *testing.T) {
	owner := primitive.NewObjectID()
	deletedAt := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	doc := bson.M{
		"_id":       primitive.NewObjectID(),
		"name":      "Report.PDF",
		"owner":     owner,
		"parent":    nil,
		"deleted":   primitive.NewDateTimeFromTime(deletedAt),
		"directory": false,
		"size":      int64(42),
		"acl": primitive.A{
			bson.M{"type": "user", "id": owner, "priv": "rw"},
		},
	}

	cases := []struct {
		name   string
		filter bson.M
		want   bool
	}{
		{"owner equality", bson.M{"owner": owner}, true},
		{"owner pointer", bson.M{"owner": &owner}, true},
		{"null parent", bson.M{"parent": nil}, true},
		{"missing field equals null", bson.M{"reference": nil}, true},
		{"deleted is date", bson.M{"deleted": bson.M{"$type": "date"}}, true},
		{"deleted ne false", bson.M{"deleted": bson.M{"$ne": false}}, true},
		{"deleted false", bson.M{"deleted": false}, false},
		{"deleted equals time", bson.M{"deleted": deletedAt}, true},
		{"exists", bson.M{"acl": bson.M{"$exists": false}}, false},
		{"in", bson.M{"name": bson.M{"$in": []string{"a", "Report.PDF"}}}, true},
		{"nin", bson.M{"name": bson.M{"$nin": bson.A{"Report.PDF"}}}, false},
		{"regex options", bson.M{"name": bson.M{"$regex": "^report\\.pdf$", "$options": "i"}}, true},
		{"regex value", bson.M{"name": primitive.Regex{Pattern: "^report", Options: "i"}}, true},
		{"numeric normalisation", bson.M{"size": 42}, true},
		{"gt", bson.M{"size": bson.M{"$gt": 41}}, true},
		{"lte", bson.M{"size": bson.M{"$lte": 41}}, false},
		{"dotted path into array", bson.M{"acl.priv": "rw"}, true},
		{"elemMatch", bson.M{"acl": bson.M{"$elemMatch": bson.M{"id": owner, "priv": bson.M{"$ne": "d"}}}}, true},
		{"elemMatch miss", bson.M{"acl": bson.M{"$elemMatch": bson.M{"priv": "d"}}}, false},
		{"or", bson.M{"$or": bson.A{bson.M{"name": "x"}, bson.M{"owner": owner}}}, true},
		{"and", bson.M{"$and": []bson.M{{"name": "x"}, {"owner": owner}}}, false},
		{"nor", bson.M{"$nor": bson.A{bson.M{"directory": true}}}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Match(doc, tc.filter))
		})
	}
}

func TestMatchEmptyFilterMatchesEverything(t *testing.T) {
	assert.True(t, Match(bson.M{"a": 1}, bson.M{}))
	assert.True(t, Match(bson.M{"a": 1}, nil))
}
