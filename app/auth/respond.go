// Package auth contains the handlers mounted under /api/auth
package auth

import (
	"bitwise74/identity-api/internal/model"
	"bitwise74/identity-api/internal/service"
	"bitwise74/identity-api/pkg/middleware"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func respond(c *gin.Context, status int, message string, data any) {
	body := gin.H{
		"success": true,
		"message": message,
	}

	if data != nil {
		body["data"] = data
	}

	c.JSON(status, body)
}

// fail translates a service error into the error envelope. Anything that
// isn't a known failure is logged and hidden behind a generic message.
func fail(c *gin.Context, err error) {
	var verr *service.ValidationError

	switch {
	case errors.As(err, &verr):
		middleware.AbortJSON(c, http.StatusBadRequest, verr.Message)
	case errors.Is(err, service.ErrAlreadyExists):
		middleware.AbortJSON(c, http.StatusBadRequest, "User already exists")
	case errors.Is(err, service.ErrInvalidOrExpiredToken):
		middleware.AbortJSON(c, http.StatusBadRequest, "Invalid or expired verification token")
	case errors.Is(err, service.ErrInvalidOrExpiredOTP):
		middleware.AbortJSON(c, http.StatusBadRequest, "Invalid or expired OTP")
	case errors.Is(err, service.ErrInvalidCredentials):
		middleware.AbortJSON(c, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, service.ErrInvalidToken), errors.Is(err, service.ErrMissingEmail):
		middleware.AbortJSON(c, http.StatusUnauthorized, "Invalid Google token")
	case errors.Is(err, service.ErrUnauthorized):
		middleware.AbortJSON(c, http.StatusUnauthorized, "Not authorized")
	case errors.Is(err, service.ErrEmailNotVerified):
		middleware.AbortJSON(c, http.StatusForbidden, "Please verify your email before logging in")
	case errors.Is(err, service.ErrNotFound):
		middleware.AbortJSON(c, http.StatusNotFound, "User not found")
	case errors.Is(err, service.ErrProviderUnavailable):
		middleware.AbortJSON(c, http.StatusInternalServerError, "Identity provider unavailable")
		zap.L().Warn("Identity provider unavailable", zap.Error(err), zap.String("requestID", c.GetString("requestID")))
	default:
		middleware.AbortJSON(c, http.StatusInternalServerError, "Internal server error")
		zap.L().Error("Request failed", zap.Error(err), zap.String("requestID", c.GetString("requestID")))
	}
}

// bind decodes the JSON body into dst. It reports false after answering the
// request itself.
func bind(c *gin.Context, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		middleware.AbortJSON(c, http.StatusRequestEntityTooLarge, "Request body size exceeds limit")
		return false
	}

	middleware.AbortJSON(c, http.StatusBadRequest, "Invalid request body")
	zap.L().Debug("Can't bind request body", zap.Error(err), zap.String("requestID", c.GetString("requestID")))
	return false
}

func userView(u *model.User) gin.H {
	return gin.H{
		"_id":          u.ID,
		"name":         u.Name,
		"email":        u.Email,
		"phoneNumber":  u.PhoneNumber,
		"profileImage": u.ProfileImage,
		"isVerified":   u.IsVerified,
	}
}

func sessionView(s *service.Session) gin.H {
	v := userView(s.User)
	v["token"] = s.Token
	return v
}
