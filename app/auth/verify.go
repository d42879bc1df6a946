package auth

import (
	"bitwise74/identity-api/internal"
	"net/http"

	"github.com/gin-gonic/gin"
)

func VerifyEmail(c *gin.Context, d *internal.Deps) {
	user, err := d.Auth.VerifyEmail(c.Request.Context(), c.Param("token"))
	if err != nil {
		fail(c, err)
		return
	}

	respond(c, http.StatusOK, "Email verified successfully", gin.H{
		"_id":   user.ID,
		"name":  user.Name,
		"email": user.Email,
	})
}

type resendBody struct {
	Email string `json:"email"`
}

func ResendVerification(c *gin.Context, d *internal.Deps) {
	var data resendBody
	if !bind(c, &data) {
		return
	}

	if err := d.Auth.ResendVerification(c.Request.Context(), data.Email); err != nil {
		fail(c, err)
		return
	}

	respond(c, http.StatusOK, "If the account exists and is not verified, a new verification email has been sent", nil)
}
