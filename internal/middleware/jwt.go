package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/drive-api/internal/models"
	appErrors "github.com/noah-isme/drive-api/pkg/errors"
	"github.com/noah-isme/drive-api/pkg/response"
)

// ContextPrincipalKey is the gin context key storing the authenticated principal.
const ContextPrincipalKey = "principal"

type tokenValidator interface {
	Validate(token string) (*models.Principal, error)
}

// JWT protects routes by requiring a valid access token.
func JWT(tokens tokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		principal, err := tokens.Validate(token)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextPrincipalKey, principal)
		c.Next()
	}
}

// RequireAdmin only lets administrators through. It must run after JWT.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get(ContextPrincipalKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		principal, ok := value.(*models.Principal)
		if !ok || !principal.Admin {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", appErrors.ErrUnauthorized
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}
