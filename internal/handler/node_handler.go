package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/noah-isme/drive-api/internal/dto"
	"github.com/noah-isme/drive-api/internal/middleware"
	"github.com/noah-isme/drive-api/internal/models"
	"github.com/noah-isme/drive-api/internal/service"
	appErrors "github.com/noah-isme/drive-api/pkg/errors"
	"github.com/noah-isme/drive-api/pkg/response"
	"github.com/noah-isme/drive-api/pkg/storage"
)

// VersionHeader carries the file version after an upload.
const VersionHeader = "X-Node-Version"

const defaultContentType = "application/octet-stream"

// NodeHandler exposes the node graph, file content and the delta feed.
type NodeHandler struct {
	signer       *storage.SignedURLSigner
	downloadPath string
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewNodeHandler builds a node handler. downloadPath is the public route
// prefix signed download tokens are appended to.
func NewNodeHandler(signer *storage.SignedURLSigner, downloadPath string, validate *validator.Validate, logger *zap.Logger) *NodeHandler {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NodeHandler{signer: signer, downloadPath: downloadPath, validator: validate, logger: logger}
}

// Get godoc
// @Summary Get a node by id or path
// @Tags Nodes
// @Produce json
// @Param id query string false "Node id"
// @Param path query string false "Node path"
// @Success 200 {object} response.Envelope
// @Router /nodes [get]
func (h *NodeHandler) Get(c *gin.Context) {
	s, err := sessionFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var q dto.NodeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid node query"))
		return
	}
	ctx := c.Request.Context()
	var n service.Node
	if q.ID == "" && (q.Path == "" || q.Path == "/") {
		n = s.Root()
	} else if n, err = s.Find(ctx, q.ID, q.Path, service.KindAny); err != nil {
		response.Error(c, err)
		return
	}
	resp, err := nodeResponse(ctx, n)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// Children godoc
// @Summary List the children of a collection
// @Tags Nodes
// @Produce json
// @Param id query string false "Collection id"
// @Param path query string false "Collection path"
// @Param deleted query int false "0 live, 1 deleted only, 2 both"
// @Param offset query int false "Offset"
// @Param limit query int false "Limit"
// @Success 200 {object} response.Envelope
// @Router /nodes/children [get]
func (h *NodeHandler) Children(c *gin.Context) {
	s, err := sessionFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var q dto.ChildrenQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid children query"))
		return
	}
	if err := h.validator.Struct(q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid children query"))
		return
	}
	ctx := c.Request.Context()
	dir, err := s.FindCollection(ctx, q.ID, q.Path)
	if err != nil {
		response.Error(c, err)
		return
	}
	nodes, total, err := dir.Children(ctx, models.DeletedMode(q.Deleted), models.Page{Offset: q.Offset, Limit: q.Limit})
	if err != nil {
		response.Error(c, err)
		return
	}
	items, err := nodeResponses(ctx, nodes)
	if err != nil {
		response.Error(c, err)
		return
	}
	pagination := &models.Pagination{Offset: q.Offset, Limit: q.Limit, TotalCount: total}
	response.JSON(c, http.StatusOK, items, pagination, middleware.ExtractMeta(c))
}

// Trash godoc
// @Summary List trash roots
// @Tags Nodes
// @Produce json
// @Param offset query int false "Offset"
// @Param limit query int false "Limit"
// @Success 200 {object} response.Envelope
// @Router /nodes/trash [get]
func (h *NodeHandler) Trash(c *gin.Context) {
	s, err := sessionFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var q dto.TrashQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid trash query"))
		return
	}
	if err := h.validator.Struct(q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid trash query"))
		return
	}
	ctx := c.Request.Context()
	nodes, total, err := s.Trash(ctx, models.Page{Offset: q.Offset, Limit: q.Limit})
	if err != nil {
		response.Error(c, err)
		return
	}
	items, err := nodeResponses(ctx, nodes)
	if err != nil {
		response.Error(c, err)
		return
	}
	pagination := &models.Pagination{Offset: q.Offset, Limit: q.Limit, TotalCount: total}
	response.JSON(c, http.StatusOK, items, pagination, middleware.ExtractMeta(c))
}

// Delta godoc
// @Summary Poll the change feed
// @Tags Nodes
// @Produce json
// @Param cursor query string false "Cursor of the previous page"
// @Param limit query int false "Page size"
// @Param id query string false "Collection scoping the first poll"
// @Success 200 {object} response.Envelope
// @Router /nodes/delta [get]
func (h *NodeHandler) Delta(c *gin.Context) {
	s, err := sessionFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var q dto.DeltaQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid delta query"))
		return
	}
	if err := h.validator.Struct(q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid delta query"))
		return
	}
	var scope *primitive.ObjectID
	if q.ID != "" {
		id, err := primitive.ObjectIDFromHex(q.ID)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrInvalidArgument, "invalid scope id"))
			return
		}
		scope = &id
	}
	page, err := s.GetDelta(c.Request.Context(), q.Cursor, q.Limit, scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, page, nil, middleware.ExtractMeta(c))
}

// CreateCollection godoc
// @Summary Create a collection
// @Tags Nodes
// @Accept json
// @Produce json
// @Param payload body dto.CreateCollectionRequest true "Collection payload"
// @Success 201 {object} response.Envelope
// @Router /nodes/collections [post]
func (h *NodeHandler) CreateCollection(c *gin.Context) {
	s, err := sessionFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.CreateCollectionRequest
	if !h.bindJSON(c, &req, "invalid collection payload") {
		return
	}
	ctx := c.Request.Context()
	parent, err := s.FindCollection(ctx, req.ParentID, req.ParentPath)
	if err != nil {
		response.Error(c, err)
		return
	}
	dir, err := parent.AddDirectory(ctx, req.Name, req.Conflict, service.NodeAttributes{
		Meta:    req.Meta,
		Destroy: req.Destroy,
		Filter:  req.Filter,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	resp, err := nodeResponse(ctx, dir)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, resp)
}

// Upload godoc
// @Summary Upload file content
// @Description Overwrites the file selected by id or path, or adds a new file to the parent collection.
// @Tags Nodes
// @Accept octet-stream
// @Produce json
// @Param id query string false "File id"
// @Param path query string false "File path"
// @Param parent_id query string false "Parent collection id"
// @Param parent_path query string false "Parent collection path"
// @Param name query string false "File name for new files"
// @Param conflict query int false "0 fail, 1 rename, 2 merge"
// @Success 200 {object} response.Envelope
// @Success 201 {object} response.Envelope
// @Router /nodes/content [put]
func (h *NodeHandler) Upload(c *gin.Context) {
	s, err := sessionFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var q dto.UploadQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid upload query"))
		return
	}
	if err := h.validator.Struct(q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid upload query"))
		return
	}
	ctx := c.Request.Context()
	body := c.Request.Body
	defer body.Close()

	var (
		file    *service.File
		created bool
	)
	if q.ID != "" || q.Path != "" {
		if file, err = s.FindFile(ctx, q.ID, q.Path); err != nil {
			response.Error(c, err)
			return
		}
		if _, _, err = file.Put(ctx, body); err != nil {
			response.Error(c, err)
			return
		}
	} else {
		if q.Name == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "name is required for new files"))
			return
		}
		parent, err := s.FindCollection(ctx, q.ParentID, q.ParentPath)
		if err != nil {
			response.Error(c, err)
			return
		}
		if file, created, err = parent.AddFile(ctx, q.Name, body, q.Conflict, service.NodeAttributes{}); err != nil {
			response.Error(c, err)
			return
		}
	}

	resp, err := nodeResponse(ctx, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header(VersionHeader, strconv.Itoa(file.Version()))
	if created {
		response.Created(c, resp)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// Content godoc
// @Summary Stream file content
// @Tags Nodes
// @Produce octet-stream
// @Param id query string false "File id"
// @Param path query string false "File path"
// @Param version query int false "Version, current when omitted"
// @Success 200 {file} binary
// @Router /nodes/content [get]
func (h *NodeHandler) Content(c *gin.Context) {
	s, err := sessionFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var q dto.ContentQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid content query"))
		return
	}
	if err := h.validator.Struct(q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid content query"))
		return
	}
	file, err := s.FindFile(c.Request.Context(), q.ID, q.Path)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.stream(c, file, q.Version)
}

// DownloadLink godoc
// @Summary Create a signed download link
// @Tags Nodes
// @Produce json
// @Param id query string false "File id"
// @Param path query string false "File path"
// @Param version query int false "Version, current when omitted"
// @Success 200 {object} response.Envelope
// @Router /nodes/content/link [get]
func (h *NodeHandler) DownloadLink(c *gin.Context) {
	s, err := sessionFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var q dto.ContentQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid content query"))
		return
	}
	if err := h.validator.Struct(q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid content query"))
		return
	}
	file, err := s.FindFile(c.Request.Context(), q.ID, q.Path)
	if err != nil {
		response.Error(c, err)
		return
	}
	version := q.Version
	if version == 0 {
		version = file.Version()
	}
	if version != file.Version() && historyEntry(file, version) == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrVersionNotFound, ""))
		return
	}
	token, expiresAt, err := h.signer.Generate(file.ID().Hex(), version)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link"))
		return
	}
	response.JSON(c, http.StatusOK, dto.DownloadLinkResponse{
		URL:       h.downloadPath + "/" + token,
		Version:   version,
		ExpiresAt: expiresAt,
	}, nil)
}

// Download godoc
// @Summary Stream file content through a signed token
// @Tags Nodes
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Router /download/{token} [get]
func (h *NodeHandler) Download(c *gin.Context) {
	s, err := sessionFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	claims, err := h.signer.Parse(c.Param("token"))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token"))
		return
	}
	file, err := s.FindFile(c.Request.Context(), claims.NodeID, "")
	if err != nil {
		response.Error(c, err)
		return
	}
	h.stream(c, file, claims.Version)
}

// History godoc
// @Summary List the version history of a file
// @Tags Nodes
// @Produce json
// @Param id query string false "File id"
// @Param path query string false "File path"
// @Success 200 {object} response.Envelope
// @Router /nodes/history [get]
func (h *NodeHandler) History(c *gin.Context) {
	s, err := sessionFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var q dto.NodeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid node query"))
		return
	}
	file, err := s.FindFile(c.Request.Context(), q.ID, q.Path)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, file.History(), nil)
}

// Rollback godoc
// @Summary Restore an earlier file version
// @Tags Nodes
// @Accept json
// @Produce json
// @Param payload body dto.RollbackRequest true "Rollback payload"
// @Success 200 {object} response.Envelope
// @Router /nodes/rollback [post]
func (h *NodeHandler) Rollback(c *gin.Context) {
	s, err := sessionFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.RollbackRequest
	if !h.bindJSON(c, &req, "invalid rollback payload") {
		return
	}
	ctx := c.Request.Context()
	file, err := s.FindFile(ctx, req.ID, req.Path)
	if err != nil {
		response.Error(c, err)
		return
	}
	version, err := file.Rollback(ctx, req.Version)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header(VersionHeader, strconv.Itoa(version))
	response.JSON(c, http.StatusOK, dto.VersionResponse{ID: file.ID().Hex(), Version: version}, nil)
}

// Move godoc
// @Summary Move nodes into a collection
// @Tags Nodes
// @Accept json
// @Produce json
// @Param payload body dto.TransferRequest true "Move payload"
// @Success 200 {object} response.Envelope
// @Success 207 {object} response.Envelope
// @Router /nodes/move [post]
func (h *NodeHandler) Move(c *gin.Context) {
	h.transfer(c, func(ctx context.Context, n service.Node, dst *service.Collection, policy models.ConflictPolicy) (service.Node, error) {
		return n.Move(ctx, dst, policy)
	})
}

// Copy godoc
// @Summary Copy nodes into a collection
// @Tags Nodes
// @Accept json
// @Produce json
// @Param payload body dto.TransferRequest true "Copy payload"
// @Success 200 {object} response.Envelope
// @Success 207 {object} response.Envelope
// @Router /nodes/copy [post]
func (h *NodeHandler) Copy(c *gin.Context) {
	h.transfer(c, func(ctx context.Context, n service.Node, dst *service.Collection, policy models.ConflictPolicy) (service.Node, error) {
		return n.Copy(ctx, dst, policy)
	})
}

// Delete godoc
// @Summary Delete nodes
// @Tags Nodes
// @Accept json
// @Produce json
// @Param payload body dto.DeleteRequest true "Delete payload"
// @Success 200 {object} response.Envelope
// @Success 207 {object} response.Envelope
// @Router /nodes/delete [post]
func (h *NodeHandler) Delete(c *gin.Context) {
	s, err := sessionFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.DeleteRequest
	if !h.bindJSON(c, &req, "invalid delete payload") {
		return
	}
	done, failures := s.Bulk(c.Request.Context(), req.IDs, func(ctx context.Context, n service.Node) (service.Node, error) {
		return n, n.Delete(ctx, req.Force)
	})
	h.bulkResult(c, done, failures)
}

// Undelete godoc
// @Summary Restore nodes from the trash
// @Tags Nodes
// @Accept json
// @Produce json
// @Param payload body dto.UndeleteRequest true "Undelete payload"
// @Success 200 {object} response.Envelope
// @Success 207 {object} response.Envelope
// @Router /nodes/undelete [post]
func (h *NodeHandler) Undelete(c *gin.Context) {
	s, err := sessionFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.UndeleteRequest
	if !h.bindJSON(c, &req, "invalid undelete payload") {
		return
	}
	done, failures := s.Bulk(c.Request.Context(), req.IDs, func(ctx context.Context, n service.Node) (service.Node, error) {
		return n.Undelete(ctx, req.Conflict)
	})
	h.bulkResult(c, done, failures)
}

// Rename godoc
// @Summary Rename a node
// @Tags Nodes
// @Accept json
// @Produce json
// @Param payload body dto.RenameRequest true "Rename payload"
// @Success 200 {object} response.Envelope
// @Router /nodes/rename [post]
func (h *NodeHandler) Rename(c *gin.Context) {
	s, err := sessionFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.RenameRequest
	if !h.bindJSON(c, &req, "invalid rename payload") {
		return
	}
	ctx := c.Request.Context()
	n, err := s.Find(ctx, req.ID, req.Path, service.KindAny)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := n.Rename(ctx, req.Name); err != nil {
		response.Error(c, err)
		return
	}
	h.respondNode(c, http.StatusOK, n)
}

// Share godoc
// @Summary Share a collection or replace its ACL
// @Tags Nodes
// @Accept json
// @Produce json
// @Param payload body dto.ShareRequest true "Share payload"
// @Success 200 {object} response.Envelope
// @Router /nodes/share [put]
func (h *NodeHandler) Share(c *gin.Context) {
	s, err := sessionFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.ShareRequest
	if !h.bindJSON(c, &req, "invalid share payload") {
		return
	}
	ctx := c.Request.Context()
	dir, err := s.FindCollection(ctx, req.ID, req.Path)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := dir.Share(ctx, req.ACL); err != nil {
		response.Error(c, err)
		return
	}
	h.respondNode(c, http.StatusOK, dir)
}

// Unshare godoc
// @Summary Stop sharing a collection
// @Tags Nodes
// @Produce json
// @Param id query string false "Collection id"
// @Param path query string false "Collection path"
// @Success 200 {object} response.Envelope
// @Router /nodes/share [delete]
func (h *NodeHandler) Unshare(c *gin.Context) {
	s, err := sessionFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var q dto.NodeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid node query"))
		return
	}
	ctx := c.Request.Context()
	dir, err := s.FindCollection(ctx, q.ID, q.Path)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := dir.Unshare(ctx); err != nil {
		response.Error(c, err)
		return
	}
	h.respondNode(c, http.StatusOK, dir)
}

// SetAttributes godoc
// @Summary Update node attributes
// @Tags Nodes
// @Accept json
// @Produce json
// @Param payload body dto.AttributesRequest true "Attributes payload"
// @Success 200 {object} response.Envelope
// @Router /nodes/attributes [patch]
func (h *NodeHandler) SetAttributes(c *gin.Context) {
	s, err := sessionFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.AttributesRequest
	if !h.bindJSON(c, &req, "invalid attributes payload") {
		return
	}
	ctx := c.Request.Context()
	n, err := s.Find(ctx, req.ID, req.Path, service.KindAny)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := n.SetAttributes(ctx, service.NodeAttributes{Meta: req.Meta, Destroy: req.Destroy, Filter: req.Filter}); err != nil {
		response.Error(c, err)
		return
	}
	h.respondNode(c, http.StatusOK, n)
}

type transferFunc func(ctx context.Context, n service.Node, dst *service.Collection, policy models.ConflictPolicy) (service.Node, error)

func (h *NodeHandler) transfer(c *gin.Context, op transferFunc) {
	s, err := sessionFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.TransferRequest
	if !h.bindJSON(c, &req, "invalid transfer payload") {
		return
	}
	ctx := c.Request.Context()
	dst, err := s.FindCollection(ctx, req.DestinationID, req.DestinationPath)
	if err != nil {
		response.Error(c, err)
		return
	}
	done, failures := s.Bulk(ctx, req.IDs, func(ctx context.Context, n service.Node) (service.Node, error) {
		return op(ctx, n, dst, req.Conflict)
	})
	h.bulkResult(c, done, failures)
}

func (h *NodeHandler) bulkResult(c *gin.Context, done []service.Node, failures []service.BulkFailure) {
	items, err := nodeResponses(c.Request.Context(), done)
	if err != nil {
		response.Error(c, err)
		return
	}
	if len(failures) > 0 {
		h.logger.Debug("bulk operation partially failed", zap.String("path", c.FullPath()), zap.Int("failed", len(failures)))
		response.MultiStatus(c, items, failures)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

func (h *NodeHandler) respondNode(c *gin.Context, status int, n service.Node) {
	resp, err := nodeResponse(c.Request.Context(), n)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, status, resp, nil)
}

func (h *NodeHandler) bindJSON(c *gin.Context, req interface{}, message string) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	if err := h.validator.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	return true
}

func (h *NodeHandler) stream(c *gin.Context, file *service.File, version int) {
	rc, err := file.Open(c.Request.Context(), version)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer rc.Close()

	doc := file.Document()
	size, mime, current := doc.Size, doc.Mime, doc.Version
	if version != 0 && version != current {
		if entry := historyEntry(file, version); entry != nil {
			size, mime, current = entry.Size, entry.Mime, entry.Version
		}
	}
	if mime == "" {
		mime = defaultContentType
	}
	headers := map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", doc.Name),
		VersionHeader:         strconv.Itoa(current),
	}
	c.DataFromReader(http.StatusOK, size, mime, rc, headers)
}

func historyEntry(file *service.File, version int) *models.HistoryEntry {
	for _, entry := range file.History() {
		if entry.Version == version && entry.File != nil {
			e := entry
			return &e
		}
	}
	return nil
}

func nodeResponses(ctx context.Context, nodes []service.Node) ([]dto.NodeResponse, error) {
	items := make([]dto.NodeResponse, 0, len(nodes))
	for _, n := range nodes {
		resp, err := nodeResponse(ctx, n)
		if err != nil {
			return nil, err
		}
		items = append(items, resp)
	}
	return items, nil
}

func nodeResponse(ctx context.Context, n service.Node) (dto.NodeResponse, error) {
	doc := n.Document()
	resp := dto.NodeResponse{
		ID:        n.ID().Hex(),
		Name:      n.Name(),
		Path:      n.Path(),
		Directory: n.IsDirectory(),
		Deleted:   doc.Deleted.At,
		Owner:     doc.Owner.Hex(),
		Created:   doc.Created,
		Changed:   doc.Changed,
		Destroy:   doc.Destroy,
		Size:      doc.Size,
		Version:   doc.Version,
		Mime:      doc.Mime,
		Hash:      doc.Hash,
		Shared:    doc.IsSpecial(),
		Filter:    doc.Filter,
		ACL:       doc.ACL,
		Meta:      doc.Meta,
	}
	if parent := n.Parent(); parent != nil && !parent.IsRoot() {
		id := parent.ID().Hex()
		resp.Parent = &id
	}
	if share, ok := doc.ShareID(); ok {
		resp.Share = share.Hex()
	}
	if doc.Reference != nil {
		resp.Reference = doc.Reference.Hex()
	}
	if dir, ok := n.(*service.Collection); ok {
		size, err := dir.Size(ctx)
		if err != nil {
			return dto.NodeResponse{}, err
		}
		resp.Size = size
	}
	return resp, nil
}
