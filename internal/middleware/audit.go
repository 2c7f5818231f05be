package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/drive-api/internal/service"
)

// ClientInfo attaches the caller address and user agent to the request context
// so audit entries written further down can name the client.
func ClientInfo() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := service.WithClientInfo(c.Request.Context(), service.ClientInfo{
			IP:        c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
