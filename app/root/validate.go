package root

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Validate sits behind the JWT middleware, reaching it means the token is good
func Validate(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Token is valid",
		"data": gin.H{
			"userID": c.GetString("userID"),
		},
	})
}
