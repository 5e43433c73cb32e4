package middlewares

import (
	"strings"

	"calman.com/worklog/web/common"
	"github.com/gin-gonic/gin"
)

const ClientIDHeader = "X-Client-ID"

// ClientID stores the caller's X-Client-ID in the context. Requests without one
// pass through; the id only attributes status changes.
func ClientID() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := strings.TrimSpace(c.GetHeader(ClientIDHeader)); id != "" {
			c.Set(common.ClientIDKey, id)
		}
		c.Next()
	}
}
