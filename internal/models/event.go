package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EventOperation names a node lifecycle notification.
type EventOperation string

const (
	EventAdd      EventOperation = "add"
	EventModify   EventOperation = "modify"
	EventRename   EventOperation = "rename"
	EventMove     EventOperation = "move"
	EventCopy     EventOperation = "copy"
	EventDelete   EventOperation = "delete"
	EventUndelete EventOperation = "undelete"
	EventDestroy  EventOperation = "destroy"
	EventRestore  EventOperation = "restore"
	EventShare    EventOperation = "share"
	EventUnshare  EventOperation = "unshare"
)

// NodeEvent is the structured lifecycle notification emitted by the engine.
type NodeEvent struct {
	Operation EventOperation      `json:"operation"`
	Node      primitive.ObjectID  `json:"node"`
	Name      string              `json:"name"`
	Parent    *primitive.ObjectID `json:"parent,omitempty"`
	Previous  *primitive.ObjectID `json:"previous,omitempty"`
	Owner     primitive.ObjectID  `json:"owner"`
	Actor     *primitive.ObjectID `json:"actor,omitempty"`
	Directory bool                `json:"directory"`
	Version   int                 `json:"version,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}
