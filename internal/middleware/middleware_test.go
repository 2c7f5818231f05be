package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/noah-isme/drive-api/internal/models"
	"github.com/noah-isme/drive-api/internal/repository"
	"github.com/noah-isme/drive-api/internal/service"
	appErrors "github.com/noah-isme/drive-api/pkg/errors"
	"github.com/noah-isme/drive-api/pkg/storage"
)

type tokenValidatorStub struct {
	principal *models.Principal
}

func (s tokenValidatorStub) Validate(token string) (*models.Principal, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return s.principal, nil
}

func TestJWTMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	principal := &models.Principal{ID: primitive.NewObjectID()}

	router := gin.New()
	router.Use(JWT(tokenValidatorStub{principal: principal}))
	router.GET("/", func(c *gin.Context) {
		value, ok := c.Get(ContextPrincipalKey)
		require.True(t, ok)
		assert.Same(t, principal, value)
		c.Status(http.StatusNoContent)
	})

	cases := map[string]int{
		"":             http.StatusUnauthorized,
		"Basic good":   http.StatusUnauthorized,
		"Bearer ":      http.StatusUnauthorized,
		"Bearer wrong": http.StatusUnauthorized,
		"Bearer good":  http.StatusNoContent,
		"bearer good":  http.StatusNoContent,
	}
	for header, status := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, status, rec.Code, "header %q", header)
	}
}

func TestRequireAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)

	for _, tc := range []struct {
		name      string
		principal *models.Principal
		status    int
	}{
		{name: "anonymous", status: http.StatusUnauthorized},
		{name: "user", principal: &models.Principal{ID: primitive.NewObjectID()}, status: http.StatusForbidden},
		{name: "admin", principal: &models.Principal{ID: primitive.NewObjectID(), Admin: true}, status: http.StatusNoContent},
	} {
		router := gin.New()
		principal := tc.principal
		router.Use(func(c *gin.Context) {
			if principal != nil {
				c.Set(ContextPrincipalKey, principal)
			}
		}, RequireAdmin())
		router.POST("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		assert.Equal(t, tc.status, rec.Code, tc.name)
	}
}

func TestSessionAndClientInfo(t *testing.T) {
	gin.SetMode(gin.TestMode)
	blobs, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	fs := service.NewFilesystem(repository.NewMemoryNodeRepository(), repository.NewMemoryDeltaRepository(), blobs, service.FilesystemOptions{})
	principal := &models.Principal{ID: primitive.NewObjectID()}

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(ContextPrincipalKey, principal)
	}, ClientInfo(), Session(fs))
	router.GET("/", func(c *gin.Context) {
		value, ok := c.Get(ContextSessionKey)
		require.True(t, ok)
		s := value.(*service.Session)
		assert.Same(t, principal, s.Principal())

		info, ok := service.ClientInfoFrom(c.Request.Context())
		require.True(t, ok)
		assert.Equal(t, "drivectl/1.0", info.UserAgent)
		assert.Equal(t, "192.0.2.1", info.IP)
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("User-Agent", "drivectl/1.0")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestMetricsAndResponseMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()

	router := gin.New()
	router.Use(Metrics(metrics), WithResponseMeta())
	router.GET("/nodes", func(c *gin.Context) {
		SetMeta(c, "reset", true)
		time.Sleep(time.Millisecond)
		meta := ExtractMeta(c)
		assert.Equal(t, true, meta["reset"])
		assert.Contains(t, meta, "processing_time_ms")
		c.Status(http.StatusOK)
	})

	for _, path := range []string{"/nodes", "/missing"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}
	assert.Equal(t, uint64(2), metrics.Snapshot().RequestsTotal)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Nil(t, ExtractMeta(c))
}
