package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/princinho/authgate/dto"
)

// TokenHeader carries the session token on privileged requests.
const TokenHeader = "x-auth-token"

// UserIDKey is where the verified identity id lives in the gin context.
const UserIDKey = "userID"

type TokenVerifier interface {
	Verify(token string) (string, error)
}

type ctxKey struct{}

// UserIDFromContext returns the identity id the auth gate attached to ctx.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

// WithUserID attaches id to ctx the way the auth gate does.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// AuthMiddleware rejects requests without a valid token. It makes no role
// decisions; those belong to the identity operations.
func AuthMiddleware(tokens TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader(TokenHeader))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{Msg: "no token, authorization denied"})
			return
		}

		userID, err := tokens.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{Msg: "token is not valid"})
			return
		}

		c.Set(UserIDKey, userID)
		c.Request = c.Request.WithContext(WithUserID(c.Request.Context(), userID))
		c.Next()
	}
}

// CallerID reads the identity id set by AuthMiddleware.
func CallerID(c *gin.Context) (string, bool) {
	id := c.GetString(UserIDKey)
	return id, id != ""
}
