// Package middleware contains any custom middleware used in the app
package middleware

import (
	"bitwise74/identity-api/pkg/util"
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequestIDHeader is echoed back so a client can quote it in bug reports
const RequestIDHeader = "X-Request-ID"

// NewRequestIDMiddleware returns a new middleware function that generates a request ID for
// each incoming request and sets it as requestID
func NewRequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := util.RandStr(10)

		c.Set("requestID", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// AbortJSON stops the chain with the error envelope used across the API.
func AbortJSON(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success":   false,
		"message":   message,
		"requestID": c.GetString("requestID"),
	})
}

func abortInternal(c *gin.Context) {
	AbortJSON(c, http.StatusInternalServerError, "Internal server error")
}
