// Package mediawiki implements the broker AuthProvider against a wiki's
// Special:OAuth endpoints. The handshake follows the OAuth 1.0a flow with
// PLAINTEXT signatures; the identify step returns a compact JWT signed with
// the consumer secret, which is verified before the username is trusted.
package mediawiki

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	wsoauth "github.com/WikibaseSolutions/WSOAuth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Config holds MediaWiki OAuth consumer configuration. BaseURL points at
// the wiki root, e.g. https://meta.wikimedia.org/w.
type Config struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	CallbackURL    string

	// InitiateURL, AuthorizeURL, CompleteURL and IdentifyURL override the
	// Special:OAuth endpoints derived from BaseURL, mainly for tests.
	InitiateURL  string
	AuthorizeURL string
	CompleteURL  string
	IdentifyURL  string

	HTTPClient *http.Client
}

// Provider implements wsoauth.AuthProvider for MediaWiki wikis.
type Provider struct {
	consumerKey    string
	consumerSecret string
	callbackURL    string

	initiateURL  string
	authorizeURL string
	completeURL  string
	identifyURL  string

	httpClient *http.Client
	now        func() time.Time
}

// New creates a new MediaWiki provider.
func New(cfg Config) (*Provider, error) {
	if cfg.ConsumerKey == "" || cfg.ConsumerSecret == "" {
		return nil, fmt.Errorf("mediawiki: consumer key and secret are required")
	}
	if cfg.BaseURL == "" && (cfg.InitiateURL == "" || cfg.AuthorizeURL == "" || cfg.CompleteURL == "" || cfg.IdentifyURL == "") {
		return nil, fmt.Errorf("mediawiki: base URL is required")
	}

	base := strings.TrimRight(cfg.BaseURL, "/")
	endpoint := func(override, title string) string {
		if override != "" {
			return override
		}
		return base + "/index.php?title=Special:OAuth/" + title
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	return &Provider{
		consumerKey:    cfg.ConsumerKey,
		consumerSecret: cfg.ConsumerSecret,
		callbackURL:    cfg.CallbackURL,
		initiateURL:    endpoint(cfg.InitiateURL, "initiate"),
		authorizeURL:   endpoint(cfg.AuthorizeURL, "authorize"),
		completeURL:    endpoint(cfg.CompleteURL, "token"),
		identifyURL:    endpoint(cfg.IdentifyURL, "identify"),
		httpClient:     client,
		now:            time.Now,
	}, nil
}

// Login implements wsoauth.AuthProvider. It fetches a request token from
// the initiate endpoint and builds the authorize URL the user is sent to.
func (p *Provider) Login(ctx context.Context) (*wsoauth.HandshakeInit, error) {
	params := p.oauthParams("")
	params.Set("oauth_callback", "oob")
	if p.callbackURL != "" {
		params.Set("oauth_callback", p.callbackURL)
	}

	token, err := p.requestToken(ctx, "initiate", p.initiateURL, params)
	if err != nil {
		return nil, err
	}

	authURL, err := url.Parse(p.authorizeURL)
	if err != nil {
		return nil, providerError("initiate", 0, "invalid authorize URL", err)
	}
	q := authURL.Query()
	q.Set("oauth_token", token.Key)
	q.Set("oauth_consumer_key", p.consumerKey)
	authURL.RawQuery = q.Encode()

	return &wsoauth.HandshakeInit{
		Key:     token.Key,
		Secret:  token.Secret,
		AuthURL: authURL.String(),
	}, nil
}

// GetUser implements wsoauth.AuthProvider. It trades the request token and
// the callback verifier for an access token, then calls identify and
// verifies the returned JWT against the consumer secret.
func (p *Provider) GetUser(ctx context.Context, key, secret string, callback url.Values) (*wsoauth.RemoteUser, error) {
	verifier := callback.Get("oauth_verifier")
	if verifier == "" {
		return nil, providerError("callback", 0, "missing oauth_verifier parameter", nil)
	}

	params := p.oauthParams(secret)
	params.Set("oauth_token", key)
	params.Set("oauth_verifier", verifier)

	access, err := p.requestToken(ctx, "complete", p.completeURL, params)
	if err != nil {
		return nil, err
	}

	username, err := p.identify(ctx, access)
	if err != nil {
		return nil, err
	}

	return &wsoauth.RemoteUser{Name: username}, nil
}

// Logout implements wsoauth.AuthProvider. MediaWiki has no remote session
// to tear down on the consumer side.
func (p *Provider) Logout(ctx context.Context, user wsoauth.Identity) {}

// SaveExtraAttributes implements wsoauth.AuthProvider.
func (p *Provider) SaveExtraAttributes(ctx context.Context, userID int64) error {
	return nil
}

type requestTokenResponse struct {
	Key    string `json:"key"`
	Secret string `json:"secret"`
	Error  string `json:"error"`
}

func (p *Provider) requestToken(ctx context.Context, operation, endpoint string, params url.Values) (*requestTokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, providerError(operation, 0, "", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, providerError(operation, 0, "", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, providerError(operation, resp.StatusCode, "", err)
	}

	var token requestTokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, providerError(operation, resp.StatusCode, "failed to decode token response", err)
	}
	if token.Error != "" {
		return nil, providerError(operation, resp.StatusCode, token.Error, nil)
	}
	if resp.StatusCode != http.StatusOK || token.Key == "" || token.Secret == "" {
		return nil, providerError(operation, resp.StatusCode, "token request rejected", nil)
	}

	return &token, nil
}

func (p *Provider) identify(ctx context.Context, access *requestTokenResponse) (string, error) {
	params := p.oauthParams(access.Secret)
	params.Set("oauth_token", access.Key)

	identifyURL, err := url.Parse(p.identifyURL)
	if err != nil {
		return "", providerError("identify", 0, "invalid identify URL", err)
	}
	q := identifyURL.Query()
	for k := range params {
		q.Set(k, params.Get(k))
	}
	identifyURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, identifyURL.String(), nil)
	if err != nil {
		return "", providerError("identify", 0, "", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", providerError("identify", 0, "", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", providerError("identify", resp.StatusCode, "", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", providerError("identify", resp.StatusCode, "identify request rejected", nil)
	}

	return p.verifyIdentity(strings.TrimSpace(string(body)))
}

type identityClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

func (p *Provider) verifyIdentity(token string) (string, error) {
	claims := &identityClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(p.consumerSecret), nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithAudience(p.consumerKey),
	)
	if err != nil {
		return "", providerError("identify", 0, "identity token verification failed", err)
	}
	if claims.Username == "" {
		return "", providerError("identify", 0, "identity token carries no username", nil)
	}
	return claims.Username, nil
}

// oauthParams builds the common PLAINTEXT-signed parameter set. tokenSecret
// is empty for the initiate call.
func (p *Provider) oauthParams(tokenSecret string) url.Values {
	params := url.Values{}
	params.Set("format", "json")
	params.Set("oauth_version", "1.0")
	params.Set("oauth_consumer_key", p.consumerKey)
	params.Set("oauth_nonce", uuid.NewString())
	params.Set("oauth_timestamp", strconv.FormatInt(p.now().Unix(), 10))
	params.Set("oauth_signature_method", "PLAINTEXT")
	params.Set("oauth_signature", p.consumerSecret+"&"+tokenSecret)
	return params
}

func providerError(operation string, status int, description string, err error) *wsoauth.ProviderError {
	return &wsoauth.ProviderError{
		Provider:    "mediawiki",
		Operation:   operation,
		Status:      status,
		Description: description,
		Err:         err,
	}
}
