package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/noah-isme/drive-api/internal/dto"
	"github.com/noah-isme/drive-api/internal/middleware"
	"github.com/noah-isme/drive-api/internal/models"
	"github.com/noah-isme/drive-api/internal/service"
)

type collectorStub struct {
	destroyed int
	err       error
	calls     int
}

func (s *collectorStub) CollectExpired(ctx context.Context) (int, error) {
	s.calls++
	return s.destroyed, s.err
}

func TestAdminHandlerCollectExpired(t *testing.T) {
	gin.SetMode(gin.TestMode)
	stub := &collectorStub{destroyed: 3}
	h := NewAdminHandler(stub, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/admin/gc", nil)
	c.Set(middleware.ContextPrincipalKey, &models.Principal{ID: primitive.NewObjectID(), Admin: true})

	h.CollectExpired(c)
	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.CollectResponse
	decode(t, w, &resp)
	assert.Equal(t, 3, resp.Destroyed)
	assert.Equal(t, 1, stub.calls)

	stub.err = errors.New("store down")
	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/admin/gc", nil)
	h.CollectExpired(c)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestMetricsHandlerEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	metrics.RecordSelfHeal("expired")
	h := NewMetricsHandler(metrics)

	r := gin.New()
	r.GET("/metrics", h.Prometheus)
	r.GET("/metrics/snapshot", h.Snapshot)
	r.GET("/health", h.Health)

	rec := perform(r, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "self_healed_nodes_total")

	rec = perform(r, http.MethodGet, "/metrics/snapshot", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var snap service.MetricsSnapshot
	decode(t, rec, &snap)
	assert.Equal(t, uint64(1), snap.SelfHealed)

	rec = perform(r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	disabled := gin.New()
	disabled.GET("/metrics", NewMetricsHandler(nil).Prometheus)
	rec = perform(disabled, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
