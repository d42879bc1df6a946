// Package identity verifies proofs of identity issued by external providers
// and normalizes them into an Identity.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

var (
	ErrInvalidToken        = errors.New("provider rejected the token")
	ErrProviderUnavailable = errors.New("identity provider unavailable")
	ErrMissingEmail        = errors.New("verified identity has no email")
	ErrTokenExchange       = errors.New("authorization code exchange failed")
	ErrNotConfigured       = errors.New("oauth provider not configured")
)

const DefaultTokenInfoURL = "https://www.googleapis.com/oauth2/v3/tokeninfo"

// Identity is a provider vouched identity. Subject is the provider scoped
// account id.
type Identity struct {
	Provider string
	Subject  string
	Email    string
	Name     string
	Picture  string
}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	TokenInfoURL string
	Timeout      time.Duration

	// Endpoint overrides google.Endpoint, only tests need it
	Endpoint *oauth2.Endpoint
}

type Google struct {
	oauth        *oauth2.Config
	tokenInfoURL string
	client       *http.Client
}

type tokenInfo struct {
	Sub     string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

func NewGoogle(c GoogleConfig) *Google {
	endpoint := google.Endpoint
	if c.Endpoint != nil {
		endpoint = *c.Endpoint
	}
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	if c.TokenInfoURL == "" {
		c.TokenInfoURL = DefaultTokenInfoURL
	}

	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}

	return &Google{
		oauth: &oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			Endpoint:     endpoint,
			RedirectURL:  c.RedirectURL,
			Scopes:       []string{"email", "profile"},
		},
		tokenInfoURL: c.TokenInfoURL,
		client:       &http.Client{Timeout: c.Timeout},
	}
}

func (g *Google) Configured() bool {
	return g.oauth.ClientID != "" && g.oauth.ClientSecret != ""
}

// AuthCodeURL returns the consent screen URL. state is echoed back to the
// callback untouched.
func (g *Google) AuthCodeURL(state string) string {
	return g.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// VerifyIDToken asks Google's tokeninfo endpoint whether idToken is genuine.
// The signature is not checked locally, a successful response is trusted.
func (g *Google) VerifyIDToken(ctx context.Context, idToken string) (*Identity, error) {
	if idToken == "" {
		return nil, ErrInvalidToken
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		g.tokenInfoURL+"?id_token="+url.QueryEscape(idToken), nil)
	if err != nil {
		return nil, fmt.Errorf("create tokeninfo request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: tokeninfo returned status %d", ErrInvalidToken, resp.StatusCode)
	}

	var info tokenInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("%w: decode tokeninfo: %v", ErrInvalidToken, err)
	}

	if info.Email == "" {
		return nil, ErrMissingEmail
	}

	if info.Sub == "" {
		return nil, fmt.Errorf("%w: tokeninfo has no subject", ErrInvalidToken)
	}

	return &Identity{
		Provider: "google",
		Subject:  info.Sub,
		Email:    info.Email,
		Name:     info.Name,
		Picture:  info.Picture,
	}, nil
}

// Exchange trades an authorization code for tokens and verifies the returned
// ID token.
func (g *Google) Exchange(ctx context.Context, code string) (*Identity, error) {
	if !g.Configured() {
		return nil, ErrNotConfigured
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.client)

	tok, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenExchange, err)
	}

	idToken, _ := tok.Extra("id_token").(string)
	if idToken == "" {
		return nil, fmt.Errorf("%w: response has no id_token", ErrTokenExchange)
	}

	return g.VerifyIDToken(ctx, idToken)
}
