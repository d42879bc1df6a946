package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// fakeGoogle serves tokeninfo and the token endpoint. Tokens in infos are
// accepted, everything else gets a 400.
func fakeGoogle(t *testing.T, infos map[string]tokenInfo, codes map[string]string) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/tokeninfo", func(w http.ResponseWriter, r *http.Request) {
		info, ok := infos[r.URL.Query().Get("id_token")]
		if !ok {
			http.Error(w, `{"error":"invalid_token"}`, http.StatusBadRequest)
			return
		}

		_ = json.NewEncoder(w).Encode(info)
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()

		if r.PostForm.Get("client_secret") != "secret" {
			http.Error(w, `{"error":"invalid_client"}`, http.StatusUnauthorized)
			return
		}

		idToken, ok := codes[r.PostForm.Get("code")]
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}

		body := map[string]any{"access_token": "at", "token_type": "Bearer", "expires_in": 3600}
		if idToken != "" {
			body["id_token"] = idToken
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv
}

func newGoogle(srv *httptest.Server) *Google {
	return NewGoogle(GoogleConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "https://api.example.com/api/auth/callback/google",
		TokenInfoURL: srv.URL + "/tokeninfo",
		Timeout:      time.Second,
		Endpoint: &oauth2.Endpoint{
			AuthURL:  srv.URL + "/auth",
			TokenURL: srv.URL + "/token",
		},
	})
}

func TestVerifyIDToken(t *testing.T) {
	srv := fakeGoogle(t, map[string]tokenInfo{
		"good":     {Sub: "sub-1", Email: "alice@example.com", Name: "Alice", Picture: "https://img/a.png"},
		"no-email": {Sub: "sub-2"},
		"no-sub":   {Email: "bob@example.com"},
	}, nil)
	g := newGoogle(srv)
	ctx := context.Background()

	id, err := g.VerifyIDToken(ctx, "good")
	require.NoError(t, err)
	assert.Equal(t, &Identity{
		Provider: "google",
		Subject:  "sub-1",
		Email:    "alice@example.com",
		Name:     "Alice",
		Picture:  "https://img/a.png",
	}, id)

	_, err = g.VerifyIDToken(ctx, "forged")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = g.VerifyIDToken(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = g.VerifyIDToken(ctx, "no-email")
	assert.ErrorIs(t, err, ErrMissingEmail)

	_, err = g.VerifyIDToken(ctx, "no-sub")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyIDToken_Unreachable(t *testing.T) {
	srv := fakeGoogle(t, nil, nil)
	g := newGoogle(srv)
	srv.Close()

	_, err := g.VerifyIDToken(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestExchange(t *testing.T) {
	srv := fakeGoogle(t,
		map[string]tokenInfo{"id-1": {Sub: "sub-1", Email: "alice@example.com"}},
		map[string]string{"good-code": "id-1", "no-id-token": "", "bad-id-token": "forged"},
	)
	g := newGoogle(srv)
	ctx := context.Background()

	id, err := g.Exchange(ctx, "good-code")
	require.NoError(t, err)
	assert.Equal(t, "sub-1", id.Subject)

	_, err = g.Exchange(ctx, "unknown-code")
	assert.ErrorIs(t, err, ErrTokenExchange)

	_, err = g.Exchange(ctx, "no-id-token")
	assert.ErrorIs(t, err, ErrTokenExchange)

	_, err = g.Exchange(ctx, "bad-id-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExchange_NotConfigured(t *testing.T) {
	g := NewGoogle(GoogleConfig{})

	assert.False(t, g.Configured())

	_, err := g.Exchange(context.Background(), "code")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestAuthCodeURL_CarriesState(t *testing.T) {
	srv := fakeGoogle(t, nil, nil)
	g := newGoogle(srv)

	raw := g.AuthCodeURL("https://app.example.com/after")

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "https://app.example.com/after", u.Query().Get("state"))
	assert.Equal(t, "client", u.Query().Get("client_id"))
	assert.Equal(t, "https://api.example.com/api/auth/callback/google", u.Query().Get("redirect_uri"))
}
