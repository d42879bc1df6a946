package middleware

import (
	"bitwise74/identity-api/internal/model"
	"bitwise74/identity-api/pkg/security"
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Authenticator resolves a bearer token to the user it was issued for. It
// must wrap security.ErrUnauthorized for tokens that are bad or whose user is gone.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

// NewJWTMiddleware guards a route with a bearer session token. On success the
// user is available as "user" and its ID as "userID".
func NewJWTMiddleware(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetString("requestID")

		header := c.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			AbortJSON(c, http.StatusUnauthorized, "Not authorized, no token")
			return
		}

		user, err := a.Authenticate(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			if errors.Is(err, security.ErrUnauthorized) {
				AbortJSON(c, http.StatusUnauthorized, "Not authorized, token failed")
				return
			}

			abortInternal(c)
			zap.L().Error("Failed to authenticate request", zap.Error(err), zap.String("requestID", requestID))
			return
		}

		c.Set("user", user)
		c.Set("userID", user.ID)
		c.Next()
	}
}
