package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NodeCollection is the single flat collection holding files and collections.
const NodeCollection = "storage"

// DeletedMode selects the deletion bucket a traversal looks at.
type DeletedMode int

const (
	DeletedExclude DeletedMode = 0
	DeletedOnly    DeletedMode = 1
	DeletedInclude DeletedMode = 2
)

// Valid reports whether the mode is one of the three known buckets.
func (m DeletedMode) Valid() bool {
	return m >= DeletedExclude && m <= DeletedInclude
}

// Filter maps the mode to its document predicate. Include returns nil.
func (m DeletedMode) Filter() bson.M {
	switch m {
	case DeletedExclude:
		return bson.M{"deleted": false}
	case DeletedOnly:
		return bson.M{"deleted": bson.M{"$type": "date"}}
	default:
		return nil
	}
}

// ConflictPolicy governs name collisions on create, move, copy and undelete.
type ConflictPolicy int

const (
	ConflictFail   ConflictPolicy = 0
	ConflictRename ConflictPolicy = 1
	ConflictMerge  ConflictPolicy = 2
)

// Valid reports whether the policy is known.
func (p ConflictPolicy) Valid() bool {
	return p >= ConflictFail && p <= ConflictMerge
}

// Deleted is either false (live) or the soft-delete timestamp.
type Deleted struct {
	At *time.Time
}

// DeletedAt builds a soft-delete marker for the given instant.
func DeletedAt(ts time.Time) Deleted {
	ts = ts.UTC().Truncate(time.Millisecond)
	return Deleted{At: &ts}
}

// IsDeleted reports whether the marker carries a timestamp.
func (d Deleted) IsDeleted() bool {
	return d.At != nil
}

// Value returns the raw BSON value used in filters: false or a datetime.
func (d Deleted) Value() interface{} {
	if d.At == nil {
		return false
	}
	return primitive.NewDateTimeFromTime(*d.At)
}

// MarshalBSONValue implements bson.ValueMarshaler.
func (d Deleted) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(d.Value())
}

// UnmarshalBSONValue implements bson.ValueUnmarshaler.
func (d *Deleted) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	switch t {
	case bsontype.DateTime:
		ts := raw.Time().UTC()
		d.At = &ts
	case bsontype.Boolean:
		d.At = nil
		if raw.Boolean() {
			// legacy documents flagged with a bare true
			epoch := time.Unix(0, 0).UTC()
			d.At = &epoch
		}
	default:
		d.At = nil
	}
	return nil
}

// Shared tags a node as share root (Root) or as a member of share Share.
type Shared struct {
	Root  bool
	Share primitive.ObjectID
}

// SharedRoot marks a share root.
func SharedRoot() Shared {
	return Shared{Root: true}
}

// SharedMember marks a subordinate of the given share.
func SharedMember(share primitive.ObjectID) Shared {
	return Shared{Share: share}
}

// IsZero lets omitempty drop the field for plain nodes.
func (s Shared) IsZero() bool {
	return !s.Root && s.Share.IsZero()
}

// MarshalBSONValue implements bson.ValueMarshaler.
func (s Shared) MarshalBSONValue() (bsontype.Type, []byte, error) {
	switch {
	case s.Root:
		return bson.MarshalValue(true)
	case !s.Share.IsZero():
		return bson.MarshalValue(s.Share)
	default:
		return bson.MarshalValue(false)
	}
}

// UnmarshalBSONValue implements bson.ValueUnmarshaler.
func (s *Shared) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	*s = Shared{}
	switch t {
	case bsontype.Boolean:
		s.Root = raw.Boolean()
	case bsontype.ObjectID:
		s.Share = raw.ObjectID()
	}
	return nil
}

// Privilege is an ACL privilege.
type Privilege string

const (
	PrivDeny      Privilege = "d"
	PrivWrite     Privilege = "w"
	PrivRead      Privilege = "r"
	PrivReadWrite Privilege = "rw"
)

// Rank orders privileges: deny < w < r < rw. Unknown privileges rank as deny.
func (p Privilege) Rank() int {
	switch p {
	case PrivWrite:
		return 1
	case PrivRead:
		return 2
	case PrivReadWrite:
		return 3
	default:
		return 0
	}
}

// ACL entry subject types.
const (
	ACLTypeUser  = "user"
	ACLTypeGroup = "group"
)

// ACLEntry grants a privilege on a share root to a user or group.
type ACLEntry struct {
	Type string             `bson:"type" json:"type" validate:"required,oneof=user group"`
	ID   primitive.ObjectID `bson:"id" json:"id" validate:"required"`
	Priv Privilege          `bson:"priv" json:"privilege" validate:"required,oneof=d r w rw"`
}

// BlobRef points at content held by a storage adapter.
type BlobRef struct {
	Adapter string `bson:"adapter" json:"adapter"`
	ID      string `bson:"id" json:"id"`
}

// HistoryType enumerates file history entry kinds.
type HistoryType string

const (
	HistoryAdded     HistoryType = "added"
	HistoryModified  HistoryType = "modified"
	HistoryRollback  HistoryType = "rollback"
	HistoryDeleted   HistoryType = "deleted"
	HistoryUndeleted HistoryType = "undeleted"
)

// HistoryEntry is one element of a file's bounded version log.
type HistoryEntry struct {
	Version int                 `bson:"version" json:"version"`
	Changed time.Time           `bson:"changed" json:"changed"`
	User    *primitive.ObjectID `bson:"user,omitempty" json:"user,omitempty"`
	Type    HistoryType         `bson:"type" json:"type"`
	File    *BlobRef            `bson:"file,omitempty" json:"-"`
	Size    int64               `bson:"size" json:"size"`
	Mime    string              `bson:"mime,omitempty" json:"mime,omitempty"`
	Hash    string              `bson:"hash,omitempty" json:"hash,omitempty"`

	// Target is the version a rollback entry restored.
	Target int `bson:"target,omitempty" json:"target,omitempty"`
}

// Mount binds a collection to an external storage adapter.
type Mount struct {
	Adapter string            `bson:"adapter" json:"adapter"`
	Options map[string]string `bson:"options,omitempty" json:"options,omitempty"`
}

// NodeMeta carries the open-ended descriptive attributes of a node.
type NodeMeta struct {
	Description string            `bson:"description,omitempty" json:"description,omitempty"`
	Color       string            `bson:"color,omitempty" json:"color,omitempty"`
	Author      string            `bson:"author,omitempty" json:"author,omitempty"`
	Copyright   string            `bson:"copyright,omitempty" json:"copyright,omitempty"`
	License     string            `bson:"license,omitempty" json:"license,omitempty"`
	Tags        []string          `bson:"tags,omitempty" json:"tags,omitempty"`
	Extra       map[string]string `bson:"extra,omitempty" json:"extra,omitempty"`
}

// NodeDocument is the persisted shape of every file and collection.
type NodeDocument struct {
	ID               primitive.ObjectID  `bson:"_id"`
	Parent           *primitive.ObjectID `bson:"parent"`
	Name             string              `bson:"name"`
	Owner            primitive.ObjectID  `bson:"owner"`
	Directory        *bool               `bson:"directory"`
	Deleted          Deleted             `bson:"deleted"`
	Destroy          *time.Time          `bson:"destroy,omitempty"`
	Created          time.Time           `bson:"created"`
	Changed          time.Time           `bson:"changed"`
	Shared           Shared              `bson:"shared,omitempty"`
	Reference        *primitive.ObjectID `bson:"reference,omitempty"`
	ACL              []ACLEntry          `bson:"acl,omitempty"`
	StorageReference *primitive.ObjectID `bson:"storage_reference,omitempty"`
	Mount            *Mount              `bson:"mount,omitempty"`
	Filter           string              `bson:"filter,omitempty"`
	Meta             *NodeMeta           `bson:"meta,omitempty"`

	Size    int64          `bson:"size"`
	Hash    string         `bson:"hash,omitempty"`
	Version int            `bson:"version,omitempty"`
	Mime    string         `bson:"mime,omitempty"`
	Storage *BlobRef       `bson:"storage,omitempty"`
	History []HistoryEntry `bson:"history,omitempty"`
}

// IsDirectory reports the directory flag; missing flags read as false.
func (d *NodeDocument) IsDirectory() bool {
	return d.Directory != nil && *d.Directory
}

// IsShare reports whether the document is a canonical share root.
func (d *NodeDocument) IsShare() bool {
	return d.Shared.Root && d.Reference == nil
}

// IsReference reports whether the document aliases a share of another owner.
func (d *NodeDocument) IsReference() bool {
	return d.Reference != nil
}

// IsShareMember reports whether the document lives inside a share.
func (d *NodeDocument) IsShareMember() bool {
	return !d.Shared.Root && !d.Shared.Share.IsZero()
}

// IsSpecial reports any non-plain kind.
func (d *NodeDocument) IsSpecial() bool {
	return d.IsShare() || d.IsReference() || d.IsShareMember()
}

// ShareID returns the id of the share the document belongs to, if any.
func (d *NodeDocument) ShareID() (primitive.ObjectID, bool) {
	switch {
	case d.IsReference():
		return *d.Reference, true
	case d.IsShare():
		return d.ID, true
	case d.IsShareMember():
		return d.Shared.Share, true
	}
	return primitive.NilObjectID, false
}

// ChildParentID is the parent value children of this collection carry.
// References hold no children themselves; their share does.
func (d *NodeDocument) ChildParentID() primitive.ObjectID {
	if d.Reference != nil {
		return *d.Reference
	}
	return d.ID
}

// Bool returns a pointer to b, used for the directory flag.
func Bool(b bool) *bool {
	return &b
}

// ObjectIDPtr returns a pointer to a copy of id.
func ObjectIDPtr(id primitive.ObjectID) *primitive.ObjectID {
	return &id
}
