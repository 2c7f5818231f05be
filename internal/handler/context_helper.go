package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/drive-api/internal/middleware"
	"github.com/noah-isme/drive-api/internal/models"
	"github.com/noah-isme/drive-api/internal/service"
	appErrors "github.com/noah-isme/drive-api/pkg/errors"
)

func principalFromContext(c *gin.Context) *models.Principal {
	value, exists := c.Get(middleware.ContextPrincipalKey)
	if !exists {
		return nil
	}
	principal, ok := value.(*models.Principal)
	if !ok {
		return nil
	}
	return principal
}

func sessionFromContext(c *gin.Context) (*service.Session, error) {
	value, exists := c.Get(middleware.ContextSessionKey)
	if !exists {
		return nil, appErrors.Clone(appErrors.ErrInternal, "request session missing")
	}
	s, ok := value.(*service.Session)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInternal, "request session missing")
	}
	return s, nil
}
