package middlewares

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"piecework.app/piecework/utils"
	"piecework.app/piecework/web/common"
)

const (
	SessionCookie      = "piecework.session"
	RefreshTokenHeader = "X-Session-Token"
	principalKey       = "principal"
)

// SessionValidator resolves a token to the caller. A non-empty second
// result replaces the client's token.
type SessionValidator[T any] interface {
	Validate(ctx context.Context, token string) (T, string, error)
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		cookie, err := c.Cookie(SessionCookie)
		if err != nil || cookie == "" {
			return "", false
		}
		return cookie, true
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// Authentication rejects requests without a valid session. Sessions that
// could not be checked because the store is unreachable get 503 rather
// than sending the user back to sign in.
func Authentication[T any](sessions SessionValidator[T]) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, common.NewErrorResponse("sign in required"))
			return
		}

		principal, refreshed, err := sessions.Validate(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || utils.IsTransient(err) {
				_ = c.Error(err)
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, common.NewErrorResponse("the service is temporarily unavailable, please try again"))
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, common.NewErrorResponse(err.Error()))
			return
		}
		if refreshed != "" {
			c.Header(RefreshTokenHeader, refreshed)
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

// Principal returns the caller stored by Authentication.
func Principal[T any](c *gin.Context) (T, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		var zero T
		return zero, false
	}
	p, ok := v.(T)
	return p, ok
}
