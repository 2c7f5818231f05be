package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DeltaCollection stores the change log the delta feed reads from.
const DeltaCollection = "delta"

// CounterCollection holds monotonic sequences.
const CounterCollection = "counters"

// DeltaRecord is one entry of the change log.
type DeltaRecord struct {
	ID        primitive.ObjectID   `bson:"_id"`
	Seq       int64                `bson:"seq"`
	Operation EventOperation       `bson:"operation"`
	Node      primitive.ObjectID   `bson:"node"`
	Owner     primitive.ObjectID   `bson:"owner"`
	Share     *primitive.ObjectID  `bson:"share,omitempty"`
	Reference *primitive.ObjectID  `bson:"reference,omitempty"`
	Ancestors []primitive.ObjectID `bson:"ancestors"`
	Name      string               `bson:"name"`
	Path      string               `bson:"path"`
	Directory bool                 `bson:"directory"`
	Deleted   bool                 `bson:"deleted"`
	Created   time.Time            `bson:"created"`
	Timestamp time.Time            `bson:"timestamp"`
}

// DeltaQuery selects change log entries for one principal.
type DeltaQuery struct {
	AfterSeq int64
	Owner    primitive.ObjectID
	Shares   []primitive.ObjectID
	Scope    *primitive.ObjectID
	Limit    int
}

// CursorKind distinguishes snapshot and incremental delta cursors.
type CursorKind string

const (
	CursorInitial     CursorKind = "initial"
	CursorIncremental CursorKind = "incremental"
)

// DeltaCursor is the decoded form of the opaque delta cursor.
type DeltaCursor struct {
	Kind    CursorKind
	LastSeq int64
	LastID  primitive.ObjectID
	Scope   primitive.ObjectID
}

// DeltaItem is one node state emitted by the delta feed.
type DeltaItem struct {
	ID        primitive.ObjectID `json:"id"`
	Deleted   bool               `json:"deleted"`
	Created   *time.Time         `json:"created"`
	Changed   time.Time          `json:"changed"`
	Path      string             `json:"path"`
	Directory bool               `json:"directory"`
}

// DeltaPage is the response of one delta poll.
type DeltaPage struct {
	Reset   bool        `json:"reset"`
	Cursor  string      `json:"cursor"`
	HasMore bool        `json:"has_more"`
	Nodes   []DeltaItem `json:"nodes"`
}
