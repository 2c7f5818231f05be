package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/noah-isme/drive-api/internal/dto"
	"github.com/noah-isme/drive-api/internal/middleware"
	"github.com/noah-isme/drive-api/internal/models"
	"github.com/noah-isme/drive-api/internal/repository"
	"github.com/noah-isme/drive-api/internal/service"
	"github.com/noah-isme/drive-api/pkg/storage"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
	Pagination *models.Pagination         `json:"pagination"`
	Meta       map[string]json.RawMessage `json:"meta"`
}

func newTestFilesystem(t *testing.T) *service.Filesystem {
	t.Helper()
	blobs, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return service.NewFilesystem(repository.NewMemoryNodeRepository(), repository.NewMemoryDeltaRepository(), blobs, service.FilesystemOptions{MaxFileVersion: 4})
}

func newTestRouter(fs *service.Filesystem, principal *models.Principal) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewNodeHandler(storage.NewSignedURLSigner("secret", time.Minute), "/download", nil, nil)

	r := gin.New()
	r.Use(middleware.WithResponseMeta())
	r.GET("/download/:token", middleware.Session(fs), h.Download)

	api := r.Group("/", func(c *gin.Context) {
		if principal != nil {
			c.Set(middleware.ContextPrincipalKey, principal)
		}
	}, middleware.Session(fs))
	RegisterNodeRoutes(api, h)
	return r
}

func perform(r http.Handler, method, target string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if body != nil && method != http.MethodPut {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func performJSON(t *testing.T, r http.Handler, method, target string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return perform(r, method, target, bytes.NewReader(body))
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func TestNodeHandlerUploadAndDownload(t *testing.T) {
	fs := newTestFilesystem(t)
	r := newTestRouter(fs, &models.Principal{ID: primitive.NewObjectID()})

	rec := performJSON(t, r, http.MethodPost, "/nodes/collections", dto.CreateCollectionRequest{Name: "Docs"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var dir dto.NodeResponse
	decode(t, rec, &dir)
	assert.Equal(t, "/Docs", dir.Path)
	assert.True(t, dir.Directory)

	rec = perform(r, http.MethodPut, "/nodes/content?parent_path=/Docs&name=a.txt", strings.NewReader("hello"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "1", rec.Header().Get(VersionHeader))
	var file dto.NodeResponse
	decode(t, rec, &file)
	assert.Equal(t, "/Docs/a.txt", file.Path)
	assert.Equal(t, int64(5), file.Size)
	require.NotNil(t, file.Parent)
	assert.Equal(t, dir.ID, *file.Parent)

	rec = perform(r, http.MethodPut, "/nodes/content?parent_path=/Docs&name=a.txt", strings.NewReader("again"))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = perform(r, http.MethodPut, "/nodes/content?parent_path=/Docs", strings.NewReader("x"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = perform(r, http.MethodPut, "/nodes/content?path=/Docs/a.txt", strings.NewReader("world"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "2", rec.Header().Get(VersionHeader))

	rec = perform(r, http.MethodGet, "/nodes/content?path=/Docs/a.txt", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "world", rec.Body.String())
	assert.Equal(t, "2", rec.Header().Get(VersionHeader))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "a.txt")

	rec = perform(r, http.MethodGet, "/nodes/content?path=/Docs/a.txt&version=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", rec.Body.String())

	rec = perform(r, http.MethodGet, "/nodes/content/link?path=/Docs/a.txt&version=1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var link dto.DownloadLinkResponse
	decode(t, rec, &link)
	assert.Equal(t, 1, link.Version)
	require.True(t, strings.HasPrefix(link.URL, "/download/"))

	rec = perform(r, http.MethodGet, link.URL, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "hello", rec.Body.String())

	rec = perform(r, http.MethodGet, "/download/forged", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = perform(r, http.MethodGet, "/nodes/content/link?path=/Docs/a.txt&version=9", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = perform(r, http.MethodGet, "/nodes/history?path=/Docs/a.txt", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history []models.HistoryEntry
	decode(t, rec, &history)
	require.Len(t, history, 2)
	assert.Equal(t, models.HistoryAdded, history[0].Type)
	assert.Equal(t, models.HistoryModified, history[1].Type)

	rec = performJSON(t, r, http.MethodPost, "/nodes/rollback", dto.RollbackRequest{Path: "/Docs/a.txt", Version: 1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "3", rec.Header().Get(VersionHeader))

	rec = perform(r, http.MethodGet, "/nodes/content?path=/Docs/a.txt", nil)
	assert.Equal(t, "hello", rec.Body.String())

	rec = performJSON(t, r, http.MethodPost, "/nodes/rollback", dto.RollbackRequest{Path: "/Docs/a.txt"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNodeHandlerListing(t *testing.T) {
	fs := newTestFilesystem(t)
	alice := &models.Principal{ID: primitive.NewObjectID()}
	r := newTestRouter(fs, alice)
	ctx := context.Background()

	docs, err := fs.NewSession(alice).Root().AddDirectory(ctx, "Docs", models.ConflictFail, service.NodeAttributes{})
	require.NoError(t, err)
	for _, name := range []string{"a", "b", "c"} {
		_, _, err := docs.AddFile(ctx, name, strings.NewReader(name), models.ConflictFail, service.NodeAttributes{})
		require.NoError(t, err)
	}

	rec := perform(r, http.MethodGet, "/nodes/children?path=/Docs&limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var children []dto.NodeResponse
	env := decode(t, rec, &children)
	require.Len(t, children, 2)
	assert.Equal(t, "/Docs/a", children[0].Path)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, int64(3), env.Pagination.TotalCount)
	assert.Contains(t, env.Meta, "processing_time_ms")

	rec = perform(r, http.MethodGet, "/nodes/children?path=/Docs&deleted=5", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = perform(r, http.MethodGet, "/nodes/children?path=/Docs/a", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "NOT_A_COLLECTION", decode(t, rec, nil).Error.Code)

	rec = perform(r, http.MethodGet, "/nodes?path=/docs/B", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var b dto.NodeResponse
	decode(t, rec, &b)
	assert.Equal(t, "b", b.Name)
	require.NotNil(t, b.Parent)
	assert.Equal(t, docs.ID().Hex(), *b.Parent)

	rec = perform(r, http.MethodGet, "/nodes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var root dto.NodeResponse
	decode(t, rec, &root)
	assert.Equal(t, "/", root.Path)
	assert.Equal(t, int64(1), root.Size)
	assert.Nil(t, root.Parent)

	rec = perform(r, http.MethodGet, "/nodes?id=zz", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = perform(r, http.MethodGet, "/nodes?id="+primitive.NewObjectID().Hex(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNodeHandlerBulkOperations(t *testing.T) {
	fs := newTestFilesystem(t)
	alice := &models.Principal{ID: primitive.NewObjectID()}
	r := newTestRouter(fs, alice)
	ctx := context.Background()

	root := fs.NewSession(alice).Root()
	_, err := root.AddDirectory(ctx, "Docs", models.ConflictFail, service.NodeAttributes{})
	require.NoError(t, err)
	a, _, err := root.AddFile(ctx, "a", strings.NewReader("a"), models.ConflictFail, service.NodeAttributes{})
	require.NoError(t, err)
	b, _, err := root.AddFile(ctx, "b", strings.NewReader("b"), models.ConflictFail, service.NodeAttributes{})
	require.NoError(t, err)

	rec := performJSON(t, r, http.MethodPost, "/nodes/delete", dto.DeleteRequest{IDs: []string{a.ID().Hex(), "bad"}})
	require.Equal(t, http.StatusMultiStatus, rec.Code, rec.Body.String())
	var deleted []dto.NodeResponse
	env := decode(t, rec, &deleted)
	require.Len(t, deleted, 1)
	assert.NotNil(t, deleted[0].Deleted)
	var failures []service.BulkFailure
	require.NoError(t, json.Unmarshal(env.Meta["failures"], &failures))
	require.Len(t, failures, 1)
	assert.Equal(t, "bad", failures[0].ID)
	assert.Equal(t, "INVALID_ARGUMENT", failures[0].Error)

	rec = perform(r, http.MethodGet, "/nodes/trash", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), decode(t, rec, nil).Pagination.TotalCount)

	rec = performJSON(t, r, http.MethodPost, "/nodes/undelete", dto.UndeleteRequest{IDs: []string{a.ID().Hex()}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = performJSON(t, r, http.MethodPost, "/nodes/move", dto.TransferRequest{
		IDs:             []string{a.ID().Hex(), b.ID().Hex()},
		DestinationPath: "/Docs",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var moved []dto.NodeResponse
	decode(t, rec, &moved)
	require.Len(t, moved, 2)
	assert.Equal(t, "/Docs/a", moved[0].Path)
	assert.Equal(t, "/Docs/b", moved[1].Path)

	rec = performJSON(t, r, http.MethodPost, "/nodes/copy", dto.TransferRequest{IDs: []string{a.ID().Hex()}, DestinationPath: "/Docs"})
	require.Equal(t, http.StatusMultiStatus, rec.Code, rec.Body.String())

	rec = performJSON(t, r, http.MethodPost, "/nodes/copy", dto.TransferRequest{
		IDs:             []string{a.ID().Hex()},
		DestinationPath: "/Docs",
		Conflict:        models.ConflictRename,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var copied []dto.NodeResponse
	decode(t, rec, &copied)
	require.Len(t, copied, 1)
	assert.Equal(t, "a (1)", copied[0].Name)

	rec = performJSON(t, r, http.MethodPost, "/nodes/move", dto.TransferRequest{IDs: []string{b.ID().Hex()}, DestinationPath: "/Docs/a"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = performJSON(t, r, http.MethodPost, "/nodes/delete", dto.DeleteRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNodeHandlerShareRenameAttributes(t *testing.T) {
	fs := newTestFilesystem(t)
	alice := &models.Principal{ID: primitive.NewObjectID()}
	bob := &models.Principal{ID: primitive.NewObjectID()}
	ar, br := newTestRouter(fs, alice), newTestRouter(fs, bob)

	rec := performJSON(t, ar, http.MethodPost, "/nodes/collections", dto.CreateCollectionRequest{Name: "Team"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = performJSON(t, ar, http.MethodPut, "/nodes/share", dto.ShareRequest{
		Path: "/Team",
		ACL:  []models.ACLEntry{{Type: models.ACLTypeUser, ID: bob.ID, Priv: models.PrivReadWrite}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var team dto.NodeResponse
	decode(t, rec, &team)
	assert.True(t, team.Shared)
	assert.Equal(t, team.ID, team.Share)
	require.Len(t, team.ACL, 1)

	rec = performJSON(t, ar, http.MethodPut, "/nodes/share", dto.ShareRequest{Path: "/Team"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = perform(br, http.MethodGet, "/nodes/delta", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var page models.DeltaPage
	decode(t, rec, &page)
	assert.True(t, page.Reset)
	require.Len(t, page.Nodes, 1)
	assert.Equal(t, "/Team", page.Nodes[0].Path)

	rec = perform(br, http.MethodGet, "/nodes/delta?cursor=garbage", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = perform(br, http.MethodGet, "/nodes/delta?id=zz", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = performJSON(t, ar, http.MethodPost, "/nodes/rename", dto.RenameRequest{Path: "/Team", Name: "Crew"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var renamed dto.NodeResponse
	decode(t, rec, &renamed)
	assert.Equal(t, "/Crew", renamed.Path)

	rec = performJSON(t, ar, http.MethodPatch, "/nodes/attributes", dto.AttributesRequest{
		Path: "/Crew",
		Meta: &models.NodeMeta{Description: "weekly sync"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var attributed dto.NodeResponse
	decode(t, rec, &attributed)
	require.NotNil(t, attributed.Meta)
	assert.Equal(t, "weekly sync", attributed.Meta.Description)

	rec = perform(ar, http.MethodDelete, "/nodes/share?path=/Crew", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var unshared dto.NodeResponse
	decode(t, rec, &unshared)
	assert.False(t, unshared.Shared)

	rec = perform(ar, http.MethodDelete, "/nodes/share?path=/Crew", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestNodeHandlerRequiresSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewNodeHandler(storage.NewSignedURLSigner("secret", time.Minute), "/download", nil, nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/nodes", nil)

	h.Get(c)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
