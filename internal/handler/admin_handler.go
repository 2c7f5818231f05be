package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/drive-api/internal/dto"
	"github.com/noah-isme/drive-api/pkg/response"
)

type expiredCollector interface {
	CollectExpired(ctx context.Context) (int, error)
}

// AdminHandler exposes maintenance endpoints for administrators.
type AdminHandler struct {
	collector expiredCollector
	logger    *zap.Logger
}

// NewAdminHandler builds a new handler.
func NewAdminHandler(collector expiredCollector, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{collector: collector, logger: logger}
}

// CollectExpired godoc
// @Summary Destroy nodes whose destroy timestamp passed
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/gc [post]
func (h *AdminHandler) CollectExpired(c *gin.Context) {
	destroyed, err := h.collector.CollectExpired(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	actor := ""
	if principal := principalFromContext(c); principal != nil {
		actor = principal.ID.Hex()
	}
	h.logger.Info("expired nodes collected", zap.String("actor", actor), zap.Int("destroyed", destroyed))
	response.JSON(c, http.StatusOK, dto.CollectResponse{Destroyed: destroyed}, nil)
}
