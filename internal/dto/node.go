package dto

import (
	"time"

	"github.com/noah-isme/drive-api/internal/models"
)

// NodeResponse is the API shape of a file or collection.
type NodeResponse struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Path      string            `json:"path"`
	Parent    *string           `json:"parent"`
	Directory bool              `json:"directory"`
	Deleted   *time.Time        `json:"deleted,omitempty"`
	Owner     string            `json:"owner"`
	Created   time.Time         `json:"created"`
	Changed   time.Time         `json:"changed"`
	Destroy   *time.Time        `json:"destroy,omitempty"`
	Size      int64             `json:"size"`
	Version   int               `json:"version,omitempty"`
	Mime      string            `json:"mime,omitempty"`
	Hash      string            `json:"hash,omitempty"`
	Shared    bool              `json:"shared"`
	Share     string            `json:"share,omitempty"`
	Reference string            `json:"reference,omitempty"`
	Filter    string            `json:"filter,omitempty"`
	ACL       []models.ACLEntry `json:"acl,omitempty"`
	Meta      *models.NodeMeta  `json:"meta,omitempty"`
}

// NodeQuery selects a node by id or path.
type NodeQuery struct {
	ID   string `form:"id"`
	Path string `form:"path"`
}

// ChildrenQuery selects one page of a collection listing.
type ChildrenQuery struct {
	ID      string `form:"id"`
	Path    string `form:"path"`
	Deleted int    `form:"deleted" validate:"min=0,max=2"`
	Offset  int64  `form:"offset"`
	Limit   int64  `form:"limit" validate:"min=0,max=1000"`
}

// TrashQuery pages the trash listing.
type TrashQuery struct {
	Offset int64 `form:"offset"`
	Limit  int64 `form:"limit" validate:"min=0,max=1000"`
}

// DeltaQuery polls the change feed. ID optionally scopes the first poll to a
// collection; later polls take the scope from the cursor.
type DeltaQuery struct {
	Cursor string `form:"cursor"`
	Limit  int    `form:"limit" validate:"min=0"`
	ID     string `form:"id"`
}

// CreateCollectionRequest creates a collection below a parent.
type CreateCollectionRequest struct {
	ParentID   string                `json:"parent_id"`
	ParentPath string                `json:"parent_path"`
	Name       string                `json:"name" validate:"required"`
	Conflict   models.ConflictPolicy `json:"conflict" validate:"min=0,max=2"`
	Filter     string                `json:"filter"`
	Meta       *models.NodeMeta      `json:"meta"`
	Destroy    *time.Time            `json:"destroy"`
}

// UploadQuery addresses an upload. ID or Path overwrite an existing file;
// otherwise the file is added to the parent under Name.
type UploadQuery struct {
	ID         string                `form:"id"`
	Path       string                `form:"path"`
	ParentID   string                `form:"parent_id"`
	ParentPath string                `form:"parent_path"`
	Name       string                `form:"name"`
	Conflict   models.ConflictPolicy `form:"conflict" validate:"min=0,max=2"`
}

// ContentQuery selects a file version; zero is the current one.
type ContentQuery struct {
	ID      string `form:"id"`
	Path    string `form:"path"`
	Version int    `form:"version" validate:"min=0"`
}

// DownloadLinkResponse carries a signed content URL.
type DownloadLinkResponse struct {
	URL       string    `json:"url"`
	Version   int       `json:"version"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RollbackRequest restores an earlier file version.
type RollbackRequest struct {
	ID      string `json:"id"`
	Path    string `json:"path"`
	Version int    `json:"version" validate:"required,gt=0"`
}

// VersionResponse reports the current version of a file after a write.
type VersionResponse struct {
	ID      string `json:"id"`
	Version int    `json:"version"`
}

// TransferRequest moves or copies nodes into a destination collection.
type TransferRequest struct {
	IDs             []string              `json:"ids" validate:"required,min=1,dive,required"`
	DestinationID   string                `json:"destination_id"`
	DestinationPath string                `json:"destination_path"`
	Conflict        models.ConflictPolicy `json:"conflict" validate:"min=0,max=2"`
}

// DeleteRequest soft deletes nodes, or destroys them when Force is set.
type DeleteRequest struct {
	IDs   []string `json:"ids" validate:"required,min=1,dive,required"`
	Force bool     `json:"force"`
}

// UndeleteRequest restores nodes from the trash.
type UndeleteRequest struct {
	IDs      []string              `json:"ids" validate:"required,min=1,dive,required"`
	Conflict models.ConflictPolicy `json:"conflict" validate:"min=0,max=2"`
}

// RenameRequest renames one node.
type RenameRequest struct {
	ID   string `json:"id"`
	Path string `json:"path"`
	Name string `json:"name" validate:"required"`
}

// ShareRequest turns a collection into a share or replaces its ACL.
type ShareRequest struct {
	ID   string            `json:"id"`
	Path string            `json:"path"`
	ACL  []models.ACLEntry `json:"acl" validate:"required,min=1,dive"`
}

// AttributesRequest updates descriptive attributes. A zero destroy time
// clears a pending schedule.
type AttributesRequest struct {
	ID      string           `json:"id"`
	Path    string           `json:"path"`
	Meta    *models.NodeMeta `json:"meta"`
	Destroy *time.Time       `json:"destroy"`
	Filter  string           `json:"filter"`
}

// CollectResponse reports a garbage collection run.
type CollectResponse struct {
	Destroyed int `json:"destroyed"`
}
