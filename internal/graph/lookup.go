// Package graph builds the recursive traversal queries over the flat node
// collection. Every query shape is expressed once as plain BSON: the MongoDB
// store runs it as an aggregation pipeline while the in-memory store evaluates
// the same predicates with Match and Walk.
package graph

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/noah-isme/drive-api/internal/models"
)

// Lookup describes one $graphLookup stage.
type Lookup struct {
	From             string
	StartWith        interface{}
	ConnectFromField string
	ConnectToField   string
	As               string
	MaxDepth         *int
	Restrict         bson.M
}

// Stage renders the $graphLookup stage.
func (l Lookup) Stage() bson.D {
	spec := bson.D{
		{Key: "from", Value: l.From},
		{Key: "startWith", Value: l.StartWith},
		{Key: "connectFromField", Value: l.ConnectFromField},
		{Key: "connectToField", Value: l.ConnectToField},
		{Key: "as", Value: l.As},
	}
	if l.MaxDepth != nil {
		spec = append(spec, bson.E{Key: "maxDepth", Value: *l.MaxDepth})
	}
	if len(l.Restrict) > 0 {
		spec = append(spec, bson.E{Key: "restrictSearchWithMatch", Value: l.Restrict})
	}
	return bson.D{{Key: "$graphLookup", Value: spec}}
}

// And joins the non-empty filters. It returns an empty filter when all are empty.
func And(filters ...bson.M) bson.M {
	parts := make([]bson.M, 0, len(filters))
	for _, f := range filters {
		if len(f) > 0 {
			parts = append(parts, f)
		}
	}
	switch len(parts) {
	case 0:
		return bson.M{}
	case 1:
		return parts[0]
	}
	return bson.M{"$and": parts}
}

// Query is a traversal in its two passes: the count of every match and the
// materialised page. Pagination never reaches the traversal stages.
type Query struct {
	stages   mongo.Pipeline
	restrict bson.M
	offset   int64
	limit    int64
}

// CountPipeline returns the total-count pass.
func (q Query) CountPipeline() mongo.Pipeline {
	out := append(mongo.Pipeline{}, q.stages...)
	return append(out, bson.D{{Key: "$count", Value: "total"}})
}

// PagePipeline returns the materialisation pass: identical stages followed by
// the page window and the computed child counts.
func (q Query) PagePipeline() mongo.Pipeline {
	out := append(mongo.Pipeline{}, q.stages...)
	if q.offset > 0 {
		out = append(out, bson.D{{Key: "$skip", Value: q.offset}})
	}
	if q.limit > 0 {
		out = append(out, bson.D{{Key: "$limit", Value: q.limit}})
	}
	return append(out, SizeStages(q.restrict)...)
}

// SizeStages recompute size for collections as the number of live children
// passing restrict, the same predicate the listing itself applies.
// References count the children of the share they point to. Files keep their
// byte size.
func SizeStages(restrict bson.M) mongo.Pipeline {
	children := And(bson.M{
		"$expr":   bson.M{"$eq": bson.A{"$parent", "$$p"}},
		"deleted": false,
	}, restrict)
	return mongo.Pipeline{
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: models.NodeCollection},
			{Key: "let", Value: bson.D{{Key: "p", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$reference", "$_id"}}}}}},
			{Key: "pipeline", Value: bson.A{
				bson.D{{Key: "$match", Value: children}},
				bson.D{{Key: "$count", Value: "n"}},
			}},
			{Key: "as", Value: "_children"},
		}}},
		{{Key: "$addFields", Value: bson.D{
			{Key: "size", Value: bson.D{{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$eq", Value: bson.A{"$directory", true}}},
				bson.D{{Key: "$ifNull", Value: bson.A{bson.D{{Key: "$arrayElemAt", Value: bson.A{"$_children.n", 0}}}, 0}}},
				"$size",
			}}}},
		}}},
		{{Key: "$project", Value: bson.D{{Key: "_children", Value: 0}}}},
	}
}

// ChildrenQuery selects the direct children of a collection.
type ChildrenQuery struct {
	// Parent is the value children carry in their parent field; nil is the root.
	Parent *primitive.ObjectID
	// Match replaces the parent predicate, used by virtual collections.
	Match    bson.M
	Deleted  models.DeletedMode
	Restrict bson.M
	Extra    bson.M
	Offset   int64
	Limit    int64
}

// Filter is the single-document predicate of the query.
func (q ChildrenQuery) Filter() bson.M {
	if q.Match != nil {
		return And(q.Match, q.Deleted.Filter(), q.Restrict, q.Extra)
	}
	var parent interface{}
	if q.Parent != nil {
		parent = *q.Parent
	}
	return And(bson.M{"parent": parent}, q.Deleted.Filter(), q.Restrict, q.Extra)
}

// Query renders the aggregation passes.
func (q ChildrenQuery) Query() Query {
	return Query{
		stages:   mongo.Pipeline{{{Key: "$match", Value: q.Filter()}}},
		restrict: q.Restrict,
		offset:   q.Offset,
		limit:    q.Limit,
	}
}

// DescendantsQuery selects every node below Root. Filter is applied at each
// expansion step, so a rejected node hides its whole subtree.
type DescendantsQuery struct {
	// Root is the id descendants point at, the share id for references.
	Root   primitive.ObjectID
	Filter bson.M
	// Limit bounds the result; zero means unbounded.
	Limit int
}

// Lookup returns the recursive stage connecting children to parents.
func (q DescendantsQuery) Lookup() Lookup {
	return Lookup{
		From:             models.NodeCollection,
		StartWith:        "$_id",
		ConnectFromField: "_id",
		ConnectToField:   "parent",
		As:               "descendants",
		Restrict:         q.Filter,
	}
}

// Pipeline projects the descendant ids of Root.
func (q DescendantsQuery) Pipeline() mongo.Pipeline {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "_id", Value: q.Root}}}},
		q.Lookup().Stage(),
		{{Key: "$unwind", Value: "$descendants"}},
		{{Key: "$replaceRoot", Value: bson.D{{Key: "newRoot", Value: "$descendants"}}}},
		{{Key: "$project", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
	if q.Limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: q.Limit}})
	}
	return pipeline
}

// TrashQuery selects trash roots: deleted nodes whose parent does not block
// them. A parent blocks when it is deleted too, unless it is a share root owned
// by somebody other than the principal.
type TrashQuery struct {
	// Principal nil selects the trash of every owner.
	Principal *primitive.ObjectID
	// Shares are the foreign shares the principal may see.
	Shares []primitive.ObjectID
	// Restrict filters the children counted into collection sizes.
	Restrict bson.M
	Extra    bson.M
	Offset   int64
	Limit    int64
}

// Filter is the predicate every candidate must satisfy.
func (q TrashQuery) Filter() bson.M {
	scope := bson.M{}
	if q.Principal != nil {
		or := bson.A{bson.M{"owner": *q.Principal}}
		if len(q.Shares) > 0 {
			or = append(or, bson.M{"shared": bson.M{"$in": q.Shares}})
		}
		scope = bson.M{"$or": or}
	}
	return And(bson.M{"deleted": bson.M{"$ne": false}}, scope, q.Extra)
}

// Blocking is the predicate a parent must satisfy to hide a deleted child.
func (q TrashQuery) Blocking() bson.M {
	blocking := bson.M{"deleted": bson.M{"$ne": false}}
	if q.Principal != nil {
		blocking["$nor"] = bson.A{bson.M{"shared": true, "owner": bson.M{"$ne": *q.Principal}}}
	}
	return blocking
}

// Query renders the aggregation passes.
func (q TrashQuery) Query() Query {
	depth := 0
	parent := Lookup{
		From:             models.NodeCollection,
		StartWith:        "$parent",
		ConnectFromField: "parent",
		ConnectToField:   "_id",
		As:               "blocking",
		MaxDepth:         &depth,
		Restrict:         q.Blocking(),
	}
	return Query{
		stages: mongo.Pipeline{
			{{Key: "$match", Value: q.Filter()}},
			parent.Stage(),
			{{Key: "$match", Value: bson.D{{Key: "blocking", Value: bson.D{{Key: "$size", Value: 0}}}}}},
			{{Key: "$project", Value: bson.D{{Key: "blocking", Value: 0}}}},
		},
		restrict: q.Restrict,
		offset:   q.Offset,
		limit:    q.Limit,
	}
}
