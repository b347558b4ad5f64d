// Package github implements the broker AuthProvider for GitHub's OAuth2
// code flow. The CSRF state travels in the handshake secret; no secondary
// exchange token is needed, so the handshake key stays empty.
package github

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
	githubendpoint "golang.org/x/oauth2/github"
)

const defaultUserURL = "https://api.github.com/user"

// Config holds GitHub OAuth configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
	Scopes       []string

	// AuthURL, TokenURL and UserURL override the GitHub endpoints, mainly
	// for tests.
	AuthURL  string
	TokenURL string
	UserURL  string

	HTTPClient *http.Client
}

// DefaultScopes returns the default GitHub scopes.
func DefaultScopes() []string {
	return []string{"read:user", "user:email"}
}

// Provider implements wsoauth.AuthProvider for GitHub.
type Provider struct {
	oauth      *oauth2.Config
	userURL    string
	httpClient *http.Client
}

// New creates a new GitHub provider.
func New(cfg Config) *Provider {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes()
	}

	endpoint := githubendpoint.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	userURL := cfg.UserURL
	if userURL == "" {
		userURL = defaultUserURL
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
		userURL:    userURL,
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

	user, err := p.fetchUser(ctx, token.AccessToken)
	if err != nil {
		return nil, err
	}

	return &wsoauth.RemoteUser{
		Name:     user.Login,
		RealName: user.Name,
		Email:    user.Email,
	}, nil
}

// Logout implements wsoauth.AuthProvider. GitHub has no logout endpoint.
func (p *Provider) Logout(ctx context.Context, user wsoauth.Identity) {}

// SaveExtraAttributes implements wsoauth.AuthProvider.
func (p *Provider) SaveExtraAttributes(ctx context.Context, userID int64) error {
	return nil
}

func (p *Provider) fetchUser(ctx context.Context, accessToken string) (*githubUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userURL, nil)
	if err != nil {
		return nil, providerError("user_info", 0, "", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, providerError("user_info", 0, "", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, providerError("user_info", resp.StatusCode, "", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, providerError("user_info", resp.StatusCode, "user request rejected", nil)
	}

	var user githubUser
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, providerError("user_info", resp.StatusCode, "failed to decode user response", err)
	}
	if user.Login == "" {
		return nil, providerError("user_info", resp.StatusCode, "response carries no login", nil)
	}

	return &user, nil
}

type githubUser struct {
	Login string `json:"login"`
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
		Provider:    "github",
		Operation:   operation,
		Status:      status,
		Description: description,
		Err:         err,
	}
}
