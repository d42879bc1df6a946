package internal

import (
	"bitwise74/identity-api/config"
	"bitwise74/identity-api/internal/identity"
	"bitwise74/identity-api/internal/secret"
	"bitwise74/identity-api/internal/service"
	"bitwise74/identity-api/internal/store"
	"bitwise74/identity-api/pkg/security"

	"gorm.io/gorm"
)

type Deps struct {
	Config   *config.Config
	DB       *gorm.DB
	Store    *store.Store
	Argon    *security.ArgonHash
	Sessions *security.SessionIssuer
	Google   service.IdentityVerifier
	Mailer   service.Mailer
	Auth     *service.Auth
}

// NewDeps wires the services on top of an open database.
func NewDeps(c *config.Config, db *gorm.DB) *Deps {
	d := &Deps{
		Config:   c,
		DB:       db,
		Store:    store.New(db),
		Argon:    security.New(),
		Sessions: security.NewSessionIssuer(c.JWT.Secret, c.JWT.TTL),
		Google: identity.NewGoogle(identity.GoogleConfig{
			ClientID:     c.Google.ClientID,
			ClientSecret: c.Google.ClientSecret,
			RedirectURL:  c.RedirectURL(),
			TokenInfoURL: c.Google.TokenInfoURL,
			Timeout:      c.Google.Timeout,
		}),
		Mailer: service.NewSMTPMailer(c.Mail, c.App.ClientURL),
	}

	d.Auth = d.NewAuth()

	return d
}

// NewAuth builds the coordinator from whatever d currently holds, so tests
// can swap a dependency and rebuild.
func (d *Deps) NewAuth() *service.Auth {
	return service.NewAuth(service.AuthDeps{
		Store:    d.Store,
		Secrets:  secret.NewManager(nil),
		Hasher:   d.Argon,
		Sessions: d.Sessions,
		Mailer:   d.Mailer,
		Google:   d.Google,
	})
}
