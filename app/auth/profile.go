package auth

import (
	"bitwise74/identity-api/internal"
	"bitwise74/identity-api/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

type profileBody struct {
	Name         string `json:"name" binding:"max=100"`
	Email        string `json:"email"`
	PhoneNumber  string `json:"phoneNumber" binding:"max=32"`
	ProfileImage string `json:"profileImage" binding:"omitempty,url"`
	Password     string `json:"password"`
}

func Me(c *gin.Context, d *internal.Deps) {
	user, err := d.Auth.Me(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		fail(c, err)
		return
	}

	respond(c, http.StatusOK, "User fetched", userView(user))
}

func UpdateProfile(c *gin.Context, d *internal.Deps) {
	var data profileBody
	if !bind(c, &data) {
		return
	}

	session, err := d.Auth.UpdateProfile(c.Request.Context(), c.GetString("userID"), service.ProfileInput{
		Name:         data.Name,
		Email:        data.Email,
		PhoneNumber:  data.PhoneNumber,
		ProfileImage: data.ProfileImage,
		Password:     data.Password,
	})
	if err != nil {
		fail(c, err)
		return
	}

	respond(c, http.StatusOK, "Profile updated", sessionView(session))
}
