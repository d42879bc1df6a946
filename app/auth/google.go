package auth

import (
	"bitwise74/identity-api/internal"
	"bitwise74/identity-api/internal/service"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type googleSignInBody struct {
	IDToken string `json:"idToken"`
}

// GoogleSignIn is the native app flow. The app obtained an ID token on its
// own and we only introspect it.
func GoogleSignIn(c *gin.Context, d *internal.Deps) {
	var data googleSignInBody
	if !bind(c, &data) {
		return
	}

	if data.IDToken == "" {
		fail(c, &service.ValidationError{Field: "idToken", Message: "idToken is required"})
		return
	}

	id, err := d.Google.VerifyIDToken(c.Request.Context(), data.IDToken)
	if err != nil {
		fail(c, err)
		return
	}

	session, err := d.Auth.OAuthSignIn(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}

	respond(c, http.StatusOK, "Google sign-in successful", sessionView(session))
}

// GoogleRedirect sends the browser to the consent screen. The optional
// redirect query is carried in state and used after the callback.
func GoogleRedirect(c *gin.Context, d *internal.Deps) {
	target := returnURL(d, c.Query("redirect"))

	if !d.Google.Configured() {
		redirectWith(c, target, "error", "oauth_not_configured")
		return
	}

	c.Redirect(http.StatusFound, d.Google.AuthCodeURL(target))
}

// GoogleCallback finishes the web flow. It never answers with JSON, every
// outcome is a redirect back to the client.
func GoogleCallback(c *gin.Context, d *internal.Deps) {
	requestID := c.GetString("requestID")
	target := returnURL(d, c.Query("state"))

	if e := c.Query("error"); e != "" {
		redirectWith(c, target, "error", e)
		return
	}

	code := c.Query("code")
	if code == "" {
		redirectWith(c, target, "error", "no_code")
		return
	}

	if !d.Google.Configured() {
		redirectWith(c, target, "error", "oauth_not_configured")
		return
	}

	id, err := d.Google.Exchange(c.Request.Context(), code)
	if err != nil {
		reason := "oauth_failed"
		switch {
		case errors.Is(err, service.ErrProviderNotConfigured):
			reason = "oauth_not_configured"
		case errors.Is(err, service.ErrTokenExchange):
			reason = "token_exchange_failed"
		case errors.Is(err, service.ErrInvalidToken), errors.Is(err, service.ErrMissingEmail):
			reason = "invalid_token"
		}

		zap.L().Warn("Google code exchange failed", zap.Error(err), zap.String("requestID", requestID))
		redirectWith(c, target, "error", reason)
		return
	}

	session, err := d.Auth.OAuthSignIn(c.Request.Context(), id)
	if err != nil {
		zap.L().Error("Google sign-in failed", zap.Error(err), zap.String("requestID", requestID))
		redirectWith(c, target, "error", "oauth_failed")
		return
	}

	redirectWith(c, target, "token", session.Token)
}

// returnURL accepts candidate only when it points at the client or one of
// the allowed CORS origins. Anything else falls back to the client URL.
func returnURL(d *internal.Deps, candidate string) string {
	fallback := d.Config.App.ClientURL
	if candidate == "" {
		return fallback
	}

	u, err := url.Parse(candidate)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fallback
	}
	origin := u.Scheme + "://" + u.Host

	for _, allowed := range append([]string{fallback}, d.Config.Host.CORS...) {
		allowed = strings.TrimSuffix(allowed, "/")
		if strings.EqualFold(allowed, origin) || candidate == allowed || strings.HasPrefix(candidate, allowed+"/") {
			return candidate
		}
	}

	return fallback
}

func redirectWith(c *gin.Context, target, key, value string) {
	u, err := url.Parse(target)
	if err != nil {
		c.Redirect(http.StatusFound, "/")
		return
	}

	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()

	c.Redirect(http.StatusFound, u.String())
}
