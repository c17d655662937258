package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"piecework.app/piecework/web/common"
)

// Degraded answers 503 for every request it guards while problems is
// non-empty.
func Degraded(problems []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(problems) == 0 {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, common.NewErrorResponse("the service is not configured: "+strings.Join(problems, "; ")))
	}
}
