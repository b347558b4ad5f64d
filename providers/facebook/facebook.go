// Package facebook implements the broker AuthProvider for Facebook login.
// The remote username is the numeric Graph profile id; the display name
// and email ride along as realname/email.
package facebook

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	wsoauth "github.com/WikibaseSolutions/WSOAuth"
	"golang.org/x/oauth2"
	facebookendpoint "golang.org/x/oauth2/facebook"
)

const defaultProfileURL = "https://graph.facebook.com/v6.0/me?fields=id,name,email"

// Config holds Facebook OAuth configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
	Scopes       []string

	// AuthURL, TokenURL and ProfileURL override the Graph endpoints,
	// mainly for tests.
	AuthURL    string
	TokenURL   string
	ProfileURL string

	HTTPClient *http.Client
}

// DefaultScopes returns the default Facebook scopes.
func DefaultScopes() []string {
	return []string{"email"}
}

// Provider implements wsoauth.AuthProvider for Facebook.
type Provider struct {
	oauth      *oauth2.Config
	profileURL string
	httpClient *http.Client
}

// New creates a new Facebook provider.
func New(cfg Config) *Provider {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes()
	}

	endpoint := facebookendpoint.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	profileURL := cfg.ProfileURL
	if profileURL == "" {
		profileURL = defaultProfileURL
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Scopes:       cfg.Scopes,
			Endpoint:     endpoint,
		},
		profileURL: profileURL,
		httpClient: client,
	}
}

// Login implements wsoauth.AuthProvider.
func (p *Provider) Login(ctx context.Context) (*wsoauth.HandshakeInit, error) {
	state, err := generateState()
	if err != nil {
		return nil, providerError("initiate", 0, "failed to generate state", err)
	}

	return &wsoauth.HandshakeInit{
		Secret:  state,
		AuthURL: p.oauth.AuthCodeURL(state),
	}, nil
}

// GetUser implements wsoauth.AuthProvider.
func (p *Provider) GetUser(ctx context.Context, key, secret string, callback url.Values) (*wsoauth.RemoteUser, error) {
	code := callback.Get("code")
	if code == "" {
		return nil, providerError("callback", 0, "missing code parameter", nil)
	}

	state := callback.Get("state")
	if state == "" || state != secret {
		return nil, providerError("callback", 0, "state mismatch", nil)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, providerError("exchange", 0, "token exchange failed", err)
	}

	profile, err := p.fetchProfile(ctx, token.AccessToken)
	if err != nil {
		return nil, err
	}

	return &wsoauth.RemoteUser{
		Name:     profile.ID,
		RealName: profile.Name,
		Email:    profile.Email,
	}, nil
}

// Logout implements wsoauth.AuthProvider. Facebook sessions are revoked
// from the user's side; nothing to notify.
func (p *Provider) Logout(ctx context.Context, user wsoauth.Identity) {}

// SaveExtraAttributes implements wsoauth.AuthProvider.
func (p *Provider) SaveExtraAttributes(ctx context.Context, userID int64) error {
	return nil
}

func (p *Provider) fetchProfile(ctx context.Context, accessToken string) (*facebookProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.profileURL, nil)
	if err != nil {
		return nil, providerError("profile", 0, "", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, providerError("profile", 0, "", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, providerError("profile", resp.StatusCode, "", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, providerError("profile", resp.StatusCode, "profile request rejected", nil)
	}

	var profile facebookProfile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, providerError("profile", resp.StatusCode, "failed to decode profile response", err)
	}
	if profile.ID == "" {
		return nil, providerError("profile", resp.StatusCode, "response carries no profile id", nil)
	}

	return &profile, nil
}

type facebookProfile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func providerError(operation string, status int, description string, err error) *wsoauth.ProviderError {
	return &wsoauth.ProviderError{
		Provider:    "facebook",
		Operation:   operation,
		Status:      status,
		Description: description,
		Err:         err,
	}
}
