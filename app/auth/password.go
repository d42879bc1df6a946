package auth

import (
	"bitwise74/identity-api/internal"
	"net/http"

	"github.com/gin-gonic/gin"
)

type forgotBody struct {
	Email string `json:"email"`
}

type otpBody struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type resetBody struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

func ForgotPassword(c *gin.Context, d *internal.Deps) {
	var data forgotBody
	if !bind(c, &data) {
		return
	}

	if err := d.Auth.ForgotPassword(c.Request.Context(), data.Email); err != nil {
		fail(c, err)
		return
	}

	respond(c, http.StatusOK, "If the email exists, an OTP has been sent", nil)
}

func VerifyOTP(c *gin.Context, d *internal.Deps) {
	var data otpBody
	if !bind(c, &data) {
		return
	}

	if err := d.Auth.VerifyOTP(c.Request.Context(), data.Email, data.OTP); err != nil {
		fail(c, err)
		return
	}

	respond(c, http.StatusOK, "OTP verified successfully", nil)
}

func ResetPassword(c *gin.Context, d *internal.Deps) {
	var data resetBody
	if !bind(c, &data) {
		return
	}

	session, err := d.Auth.ResetPassword(c.Request.Context(), data.Email, data.OTP, data.NewPassword)
	if err != nil {
		fail(c, err)
		return
	}

	respond(c, http.StatusOK, "Password reset successfully", gin.H{
		"_id":   session.User.ID,
		"name":  session.User.Name,
		"email": session.User.Email,
		"token": session.Token,
	})
}
