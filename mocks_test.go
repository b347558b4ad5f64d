package wsoauth

import (
	"context"
	"net/url"

	"github.com/goliatone/go-featuregate/gate"
)

// stubProvider tracks how often each handshake phase runs.
type stubProvider struct {
	handshake *HandshakeInit
	loginErr  error

	user       *RemoteUser
	getUserErr error

	saveErr error

	loginCalls   int
	getUserCalls int
	logoutCalls  int
	saveCalls    []int64

	lastKey      string
	lastSecret   string
	lastCallback url.Values
}

func (p *stubProvider) Login(ctx context.Context) (*HandshakeInit, error) {
	p.loginCalls++
	if p.loginErr != nil {
		return nil, p.loginErr
	}
	if p.handshake != nil {
		return p.handshake, nil
	}
	return &HandshakeInit{
		Key:     "req-key",
		Secret:  "req-secret",
		AuthURL: "https://remote.example/authorize?token=req-key",
	}, nil
}

func (p *stubProvider) GetUser(ctx context.Context, key, secret string, callback url.Values) (*RemoteUser, error) {
	p.getUserCalls++
	p.lastKey = key
	p.lastSecret = secret
	p.lastCallback = callback
	if p.getUserErr != nil {
		return nil, p.getUserErr
	}
	return p.user, nil
}

func (p *stubProvider) Logout(ctx context.Context, user Identity) {
	p.logoutCalls++
}

func (p *stubProvider) SaveExtraAttributes(ctx context.Context, userID int64) error {
	p.saveCalls = append(p.saveCalls, userID)
	return p.saveErr
}

// stubUsers maps usernames to ids; 0 means absent.
type stubUsers struct {
	byName map[string]int64
	ids    []int64
	err    error
}

func (s *stubUsers) IDByUsername(ctx context.Context, username string) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.byName[username], nil
}

func (s *stubUsers) AllIDs(ctx context.Context) ([]int64, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.ids, nil
}

// stubMigrations is an in-memory MigrationStore.
type stubMigrations struct {
	migrated map[int64]bool
	inserts  []int64

	isMigratedErr error
	insertErr     error
}

func newStubMigrations(ids ...int64) *stubMigrations {
	migrated := make(map[int64]bool, len(ids))
	for _, id := range ids {
		migrated[id] = true
	}
	return &stubMigrations{migrated: migrated}
}

func (s *stubMigrations) IsMigrated(ctx context.Context, userID int64) (bool, error) {
	if s.isMigratedErr != nil {
		return false, s.isMigratedErr
	}
	return s.migrated[userID], nil
}

func (s *stubMigrations) Insert(ctx context.Context, userID int64) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserts = append(s.inserts, userID)
	s.migrated[userID] = true
	return nil
}

func (s *stubMigrations) MigratedIDs(ctx context.Context) ([]int64, error) {
	ids := make([]int64, 0, len(s.migrated))
	for id, ok := range s.migrated {
		if ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// stubGroups is an in-memory GroupStore.
type stubGroups struct {
	held  map[int64][]string
	added []string
	err   error
}

func (s *stubGroups) Groups(ctx context.Context, userID int64) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.held[userID], nil
}

func (s *stubGroups) AddGroup(ctx context.Context, userID int64, group string) error {
	if s.err != nil {
		return s.err
	}
	if s.held == nil {
		s.held = map[int64][]string{}
	}
	s.held[userID] = append(s.held[userID], group)
	s.added = append(s.added, group)
	return nil
}

type stubFeatureGate struct {
	enabled map[string]bool
	calls   []string
	err     error
}

func (s *stubFeatureGate) Enabled(ctx context.Context, key string, opts ...gate.ResolveOption) (bool, error) {
	s.calls = append(s.calls, key)
	if s.err != nil {
		return false, s.err
	}
	if s.enabled == nil {
		return true, nil
	}
	enabled, ok := s.enabled[key]
	if !ok {
		return true, nil
	}
	return enabled, nil
}

// capturingSink records every activity event it sees.
type capturingSink struct {
	events []ActivityEvent
}

func (s *capturingSink) Record(ctx context.Context, event ActivityEvent) error {
	s.events = append(s.events, event)
	return nil
}

func (s *capturingSink) ofType(t ActivityEventType) []ActivityEvent {
	var out []ActivityEvent
	for _, e := range s.events {
		if e.EventType == t {
			out = append(out, e)
		}
	}
	return out
}

// testIdentity satisfies Identity.
type testIdentity struct {
	id   int64
	name string
}

func (t testIdentity) ID() int64        { return t.id }
func (t testIdentity) Username() string { return t.name }

func singleProviderRegistry(provider AuthProvider) *Registry {
	return NewRegistry(map[string]Factory{
		"stub": func(Config) (AuthProvider, error) {
			return provider, nil
		},
	})
}
