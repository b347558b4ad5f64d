package wsoauth

import (
	"context"
	"errors"
	"net/url"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/go-featuregate/gate/guard"
)

// Session keys carrying the pending handshake between the initiate and
// complete phases. The names are part of the host's session contract.
const (
	SessionKeyRequestKey    = "request_key"
	SessionKeyRequestSecret = "request_secret"
)

// FeatureMigrateByUsername gates the usurpation path at runtime, on top of
// the Config.MigrateUsersByUsername switch.
const FeatureMigrateByUsername = "wsoauth.migrate_by_username"

// AuthRequest is one inbound authentication call. Session is the caller's
// transient scope; Callback carries the raw query parameters of a provider
// redirect and is empty on plain login requests.
type AuthRequest struct {
	Session  SessionStore
	Callback url.Values
}

// Redirect tells the caller to send the user agent to the provider and
// stop processing the current request.
type Redirect struct {
	URL string
}

// VerifiedIdentity is the normalized result of a completed login. UserID
// is 0 when no local account exists yet and the host must create one.
type VerifiedIdentity struct {
	UserID   int64  `json:"id,omitempty"`
	Username string `json:"username"`
	RealName string `json:"realname,omitempty"`
	Email    string `json:"email,omitempty"`
}

// AuthOutcome is the result of one Authenticate call: exactly one of
// Redirect (handshake started) or Identity (handshake completed) is set.
type AuthOutcome struct {
	Redirect *Redirect
	Identity *VerifiedIdentity
}

// Authenticator drives the two-phase login state machine.
type Authenticator struct {
	registry      *Registry
	config        Config
	users         UserStore
	migrator      *Migrator
	groups        GroupStore
	hooks         Hooks
	gate          gate.FeatureGate
	sink          ActivitySink
	logger        Logger
	validUsername func(string) error
}

// AuthOption configures the authenticator.
type AuthOption func(*Authenticator)

// WithGroupStore enables PopulateGroups against the host's group system.
func WithGroupStore(groups GroupStore) AuthOption {
	return func(a *Authenticator) {
		a.groups = groups
	}
}

// WithHooks installs the broker's extension points.
func WithHooks(hooks Hooks) AuthOption {
	return func(a *Authenticator) {
		a.hooks = hooks
	}
}

// WithFeatureGate guards the usurpation path with a runtime feature gate.
func WithFeatureGate(g gate.FeatureGate) AuthOption {
	return func(a *Authenticator) {
		a.gate = g
	}
}

// WithActivitySink sets the audit sink for login events.
func WithActivitySink(sink ActivitySink) AuthOption {
	return func(a *Authenticator) {
		a.sink = normalizeActivitySink(sink)
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger Logger) AuthOption {
	return func(a *Authenticator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithUsernameValidator replaces the default username validity predicate.
func WithUsernameValidator(valid func(string) error) AuthOption {
	return func(a *Authenticator) {
		if valid != nil {
			a.validUsername = valid
		}
	}
}

// NewAuthenticator wires the coordinator and its migration engine.
func NewAuthenticator(registry *Registry, users UserStore, records MigrationStore, cfg Config, opts ...AuthOption) *Authenticator {
	a := &Authenticator{
		registry:      registry,
		config:        cfg,
		users:         users,
		sink:          noopActivitySink{},
		logger:        defLogger{},
		validUsername: ValidUsername,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	a.migrator = NewMigrator(records, users, a.resolveProvider,
		WithMigratorActivitySink(a.sink),
		WithMigratorLogger(a.logger),
	)

	return a
}

// Migrator exposes the batch migration entry points sharing this
// authenticator's provider resolution.
func (a *Authenticator) Migrator() *Migrator {
	return a.migrator
}

// Authenticate runs one step of the login state machine. With a pending
// handshake in the session it attempts completion; otherwise it initiates
// a new handshake and returns a redirect. A callback request that arrives
// without a pending handshake fails without any provider call, so a
// handshake can never be completed twice.
func (a *Authenticator) Authenticate(ctx context.Context, req *AuthRequest) (*AuthOutcome, error) {
	if req == nil || req.Session == nil {
		return nil, ErrAuthenticationFailed.Clone().WithMetadata(map[string]any{
			"reason": "no session scope",
		})
	}

	provider, err := a.resolveProvider()
	if err != nil {
		return nil, err
	}

	key, hasKey := req.Session.Get(SessionKeyRequestKey)
	secret, hasSecret := req.Session.Get(SessionKeyRequestSecret)
	if hasKey && hasSecret {
		return a.complete(ctx, provider, req, key, secret)
	}

	if len(req.Callback) > 0 {
		return nil, ErrAuthenticationFailed.Clone().WithMetadata(map[string]any{
			"reason": "callback without pending handshake",
		})
	}

	return a.initiate(ctx, provider, req.Session)
}

func (a *Authenticator) initiate(ctx context.Context, provider AuthProvider, session SessionStore) (*AuthOutcome, error) {
	hs, err := provider.Login(ctx)
	if err != nil || hs == nil || hs.AuthURL == "" {
		fail := ErrLoginInitFailed.Clone()
		if err != nil {
			fail.Source = err
		}
		return nil, fail
	}

	session.Set(SessionKeyRequestKey, hs.Key)
	session.Set(SessionKeyRequestSecret, hs.Secret)
	if err := session.Commit(); err != nil {
		return nil, wrapStoreError(err, "failed to persist handshake")
	}

	return &AuthOutcome{Redirect: &Redirect{URL: hs.AuthURL}}, nil
}

func (a *Authenticator) complete(ctx context.Context, provider AuthProvider, req *AuthRequest, key, secret string) (*AuthOutcome, error) {
	// Single use: the handshake is gone before the provider is consulted.
	req.Session.Remove(SessionKeyRequestKey)
	req.Session.Remove(SessionKeyRequestSecret)
	if err := req.Session.Commit(); err != nil {
		return nil, wrapStoreError(err, "failed to clear handshake")
	}

	user, err := provider.GetUser(ctx, key, secret, req.Callback)
	if err != nil || user == nil {
		return nil, a.authFailure(ctx, err)
	}

	if a.hooks.AfterGetUser != nil {
		if err := a.hooks.AfterGetUser(ctx, user); err != nil {
			return nil, a.authFailure(ctx, err)
		}
	}

	user.Name = NormalizeUsername(user.Name)
	if err := a.validUsername(user.Name); err != nil {
		return nil, err
	}

	id, err := a.users.IDByUsername(ctx, user.Name)
	if err != nil {
		return nil, wrapStoreError(err, "failed to look up user")
	}

	usurped := false
	if id != 0 {
		migrated, err := a.migrator.IsMigrated(ctx, id)
		if err != nil {
			return nil, err
		}
		if !migrated {
			if err := a.usurpationAllowed(ctx); err != nil {
				return nil, err
			}
			if _, err := a.migrator.migrateWith(ctx, provider, id); err != nil {
				return nil, err
			}
			usurped = true
		}
	}

	identity := &VerifiedIdentity{
		UserID:   id,
		Username: user.Name,
		RealName: user.RealName,
		Email:    user.Email,
	}

	a.record(ctx, ActivityEvent{
		EventType: ActivityEventOAuthLogin,
		UserID:    id,
		Username:  user.Name,
		Actor:     ActorRef{Type: "oauth", ID: a.config.Provider},
		Metadata: map[string]any{
			"provider":    a.config.Provider,
			"is_new_user": id == 0,
			"usurped":     usurped,
		},
	})
	if usurped {
		a.record(ctx, ActivityEvent{
			EventType: ActivityEventUsurpation,
			UserID:    id,
			Username:  user.Name,
			Actor:     ActorRef{Type: "oauth", ID: a.config.Provider},
		})
	}

	return &AuthOutcome{Identity: identity}, nil
}

// Deauthenticate notifies the provider of a logout. It is fire and forget:
// hook vetoes and provider failures are logged, never surfaced.
func (a *Authenticator) Deauthenticate(ctx context.Context, user Identity) {
	if a.hooks.BeforeLogout != nil {
		if err := a.hooks.BeforeLogout(ctx, user); err != nil {
			a.logger.Debug("logout hook vetoed provider notification: %v", err)
			return
		}
	}

	provider, err := a.resolveProvider()
	if err != nil {
		a.logger.Warn("logout skipped, provider unavailable: %v", err)
		return
	}

	provider.Logout(ctx, user)

	a.record(ctx, ActivityEvent{
		EventType: ActivityEventOAuthLogout,
		UserID:    identityID(user),
		Username:  identityName(user),
		Actor:     ActorRef{Type: "oauth", ID: a.config.Provider},
	})
}

// SaveExtraAttributes records the external link for a freshly materialized
// account and runs the provider's bookkeeping hook. The host calls it once
// after creating an account the broker signalled as new. Idempotent.
func (a *Authenticator) SaveExtraAttributes(ctx context.Context, userID int64) error {
	_, err := a.migrator.MigrateOne(ctx, userID)
	return err
}

// PopulateGroups adds the configured auto-populate groups to user, skipping
// groups already held, and returns the groups actually added.
func (a *Authenticator) PopulateGroups(ctx context.Context, user Identity) ([]string, error) {
	if a.groups == nil || len(a.config.AutoPopulateGroups) == 0 || user == nil {
		return nil, nil
	}

	if a.hooks.BeforePopulateGroups != nil {
		if err := a.hooks.BeforePopulateGroups(ctx, user); err != nil {
			a.logger.Debug("group population vetoed for %q: %v", user.Username(), err)
			return nil, nil
		}
	}

	held, err := a.groups.Groups(ctx, user.ID())
	if err != nil {
		return nil, wrapStoreError(err, "failed to list groups")
	}

	heldSet := make(map[string]struct{}, len(held))
	for _, g := range held {
		heldSet[g] = struct{}{}
	}

	var added []string
	for _, g := range a.config.AutoPopulateGroups {
		if _, ok := heldSet[g]; ok {
			continue
		}
		if err := a.groups.AddGroup(ctx, user.ID(), g); err != nil {
			return added, wrapStoreError(err, "failed to add group")
		}
		added = append(added, g)
	}

	return added, nil
}

// ListProviders enumerates the registry, filtered through the
// FilterProviders hook.
func (a *Authenticator) ListProviders() []string {
	names := a.registry.Names()
	if a.hooks.FilterProviders != nil {
		names = a.hooks.FilterProviders(names)
	}
	return names
}

func (a *Authenticator) resolveProvider() (AuthProvider, error) {
	return a.registry.Resolve(a.config.Provider, a.config)
}

func (a *Authenticator) usurpationAllowed(ctx context.Context) error {
	if !a.config.MigrateUsersByUsername {
		return ErrAccountExists
	}
	if a.gate == nil {
		return nil
	}
	return guard.Require(ctx, a.gate, FeatureMigrateByUsername,
		guard.WithDisabledError(ErrAccountExists),
		guard.WithErrorMapper(normalizeGateError),
	)
}

func (a *Authenticator) authFailure(ctx context.Context, cause error) error {
	fail := ErrAuthenticationFailed.Clone()
	if cause != nil {
		fail.Source = cause

		var perr *ProviderError
		if errors.As(cause, &perr) {
			fail = fail.WithMetadata(perr.Metadata())
		} else {
			fail = fail.WithMetadata(map[string]any{"reason": cause.Error()})
		}
	}

	a.record(ctx, ActivityEvent{
		EventType: ActivityEventOAuthFailure,
		Actor:     ActorRef{Type: "oauth", ID: a.config.Provider},
		Metadata:  map[string]any{"provider": a.config.Provider},
	})

	return fail
}

func (a *Authenticator) record(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if err := a.sink.Record(ctx, event); err != nil {
		a.logger.Warn("activity sink record error: %v", err)
	}
}

func normalizeGateError(err error) error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return err
	}

	return goerrors.Wrap(err, goerrors.CategoryAuthz, "feature gate check failed").
		WithCode(goerrors.CodeForbidden)
}

func identityID(user Identity) int64 {
	if user == nil {
		return 0
	}
	return user.ID()
}

func identityName(user Identity) string {
	if user == nil {
		return ""
	}
	return user.Username()
}
