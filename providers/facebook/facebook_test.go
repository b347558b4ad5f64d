package facebook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	wsoauth "github.com/WikibaseSolutions/WSOAuth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, profileHandler http.HandlerFunc) *Provider {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.FormValue("code") != "good-code" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"fb-token","token_type":"bearer"}`))
	})
	mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fb-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		profileHandler(w, r)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return New(Config{
		ClientID:     "app-id",
		ClientSecret: "app-secret",
		CallbackURL:  "https://host.example/oauth/callback",
		AuthURL:      server.URL + "/dialog/oauth",
		TokenURL:     server.URL + "/oauth/access_token",
		ProfileURL:   server.URL + "/me",
		HTTPClient:   server.Client(),
	})
}

func TestFacebookLogin(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {})

	hs, err := provider.Login(context.Background())
	require.NoError(t, err)
	require.NotNil(t, hs)
	assert.NotEmpty(t, hs.Secret)

	authURL, err := url.Parse(hs.AuthURL)
	require.NoError(t, err)
	assert.Equal(t, hs.Secret, authURL.Query().Get("state"))
	assert.Equal(t, "email", authURL.Query().Get("scope"))
}

func TestFacebookGetUser(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"1234567890","name":"Fran Doe","email":"fran@example.com"}`))
	})

	callback := url.Values{"code": {"good-code"}, "state": {"the-state"}}
	user, err := provider.GetUser(context.Background(), "", "the-state", callback)
	require.NoError(t, err)

	// The numeric profile id is the stable username; the display name only
	// rides along as realname.
	assert.Equal(t, "1234567890", user.Name)
	assert.Equal(t, "Fran Doe", user.RealName)
	assert.Equal(t, "fran@example.com", user.Email)
}

func TestFacebookGetUserStateMismatch(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {})

	callback := url.Values{"code": {"good-code"}, "state": {"evil"}}
	_, err := provider.GetUser(context.Background(), "", "the-state", callback)
	require.Error(t, err)

	var perr *wsoauth.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "facebook", perr.Provider)
}

func TestFacebookGetUserEmptyProfile(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	})

	callback := url.Values{"code": {"good-code"}, "state": {"the-state"}}
	_, err := provider.GetUser(context.Background(), "", "the-state", callback)
	require.Error(t, err)
}
