package auth

import (
	"bitwise74/identity-api/internal"
	"bitwise74/identity-api/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

type registerBody struct {
	Provider          string `json:"provider"`
	ProviderAccountID string `json:"providerAccountId"`
	Name              string `json:"name" binding:"max=100"`
	Email             string `json:"email"`
	Password          string `json:"password"`
	PhoneNumber       string `json:"phoneNumber" binding:"max=32"`
}

func Register(c *gin.Context, d *internal.Deps) {
	var data registerBody
	if !bind(c, &data) {
		return
	}

	user, err := d.Auth.Register(c.Request.Context(), service.RegisterInput{
		Provider:          data.Provider,
		ProviderAccountID: data.ProviderAccountID,
		Name:              data.Name,
		Email:             data.Email,
		Password:          data.Password,
		PhoneNumber:       data.PhoneNumber,
	})
	if err != nil {
		fail(c, err)
		return
	}

	respond(c, http.StatusCreated, "User registered successfully. Please check your email to verify your account.", gin.H{
		"_id":         user.ID,
		"name":        user.Name,
		"email":       user.Email,
		"phoneNumber": user.PhoneNumber,
	})
}
