package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/drive-api/internal/models"
	"github.com/noah-isme/drive-api/internal/service"
)

// ContextSessionKey is the gin context key storing the request session.
const ContextSessionKey = "session"

// Session opens one engine session per request for the authenticated
// principal and drops its caches once the handler chain returns.
func Session(fs *service.Filesystem) gin.HandlerFunc {
	return func(c *gin.Context) {
		var principal *models.Principal
		if value, ok := c.Get(ContextPrincipalKey); ok {
			principal, _ = value.(*models.Principal)
		}
		s := fs.NewSession(principal)
		c.Set(ContextSessionKey, s)
		defer s.Close()
		c.Next()
	}
}
