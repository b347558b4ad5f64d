package wsoauth

import (
	"context"
	"fmt"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Identity is the minimal view of a logged-in host user the broker needs.
type Identity interface {
	ID() int64
	Username() string
}

// SessionStore is the transient key-value scope one user agent carries
// between the initiate and complete phases of a handshake. The broker is
// handed a store per request; it never holds one across requests.
type SessionStore interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Remove(key string)
	Exists(key string) bool
	Commit() error
}

// UserStore is the host's account lookup boundary. IDByUsername returns 0
// when no account exists for the (already normalized) username.
type UserStore interface {
	IDByUsername(ctx context.Context, username string) (int64, error)
	AllIDs(ctx context.Context) ([]int64, error)
}

// MigrationStore persists the fact that a local account has been linked to
// OAuth. Insert for an id that already has a record must be a no-op, never
// a duplicate row.
type MigrationStore interface {
	IsMigrated(ctx context.Context, userID int64) (bool, error)
	Insert(ctx context.Context, userID int64) error
	MigratedIDs(ctx context.Context) ([]int64, error)
}

// GroupStore is the host's group membership boundary used by PopulateGroups.
type GroupStore interface {
	Groups(ctx context.Context, userID int64) ([]string, error)
	AddGroup(ctx context.Context, userID int64, group string) error
}

// Hooks are the broker's extension points. Nil fields are skipped.
type Hooks struct {
	// AfterGetUser runs after the provider returned user info and may
	// mutate it. A non-nil error vetoes the authentication; its message is
	// surfaced to the user.
	AfterGetUser func(ctx context.Context, user *RemoteUser) error

	// BeforeLogout runs before the provider is notified of a logout. A
	// non-nil error skips the provider call; Deauthenticate still succeeds.
	BeforeLogout func(ctx context.Context, user Identity) error

	// BeforePopulateGroups may veto group auto-population for a user.
	BeforePopulateGroups func(ctx context.Context, user Identity) error

	// FilterProviders rewrites the provider list exposed to callers.
	FilterProviders func(names []string) []string
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] WSOAUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] WSOAUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] WSOAUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] WSOAUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
