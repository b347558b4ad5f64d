package wsoauth

import (
	"context"
	"fmt"
	"net/url"
)

// HandshakeInit is the result of a provider starting a login handshake.
// Key and Secret may be empty when the provider has no secondary exchange
// token; AuthURL must not be.
type HandshakeInit struct {
	Key     string
	Secret  string
	AuthURL string
}

// RemoteUser is the raw identity a provider returns on a successful
// callback. Name is required; RealName and Email are optional.
type RemoteUser struct {
	Name     string
	RealName string
	Email    string
}

// AuthProvider is the contract every identity provider must satisfy.
//
// Implementations convert their own failures (network errors, malformed
// callback parameters, state mismatches) into plain error returns. The
// broker never branches on concrete provider or error types; it only wraps
// them into its typed errors.
type AuthProvider interface {
	// Login begins the provider-specific handshake.
	Login(ctx context.Context) (*HandshakeInit, error)

	// GetUser completes the handshake. key and secret are the values Login
	// produced; callback carries the raw query parameters of the inbound
	// redirect from the provider.
	GetUser(ctx context.Context, key, secret string, callback url.Values) (*RemoteUser, error)

	// Logout is a best-effort notification; implementations must not panic
	// and callers ignore the outcome.
	Logout(ctx context.Context, user Identity)

	// SaveExtraAttributes runs once per new-link event so the provider can
	// persist its own bookkeeping for the local account.
	SaveExtraAttributes(ctx context.Context, userID int64) error
}

// ProviderError captures normalized provider response details. Providers
// return it so operators get wire-level context while the broker keeps
// treating it as an opaque failure.
type ProviderError struct {
	Provider    string
	Operation   string
	Status      int
	Description string
	Err         error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "provider error"
	}

	scope := "provider"
	if e.Provider != "" && e.Operation != "" {
		scope = fmt.Sprintf("%s %s", e.Provider, e.Operation)
	} else if e.Provider != "" {
		scope = e.Provider
	} else if e.Operation != "" {
		scope = e.Operation
	}

	if e.Description != "" {
		return fmt.Sprintf("%s failed: %s", scope, e.Description)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %v", scope, e.Err)
	}

	return fmt.Sprintf("%s failed", scope)
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Metadata renders the error in a map suitable for structured logging.
func (e *ProviderError) Metadata() map[string]any {
	if e == nil {
		return nil
	}

	meta := map[string]any{}
	if e.Provider != "" {
		meta["provider"] = e.Provider
	}
	if e.Operation != "" {
		meta["operation"] = e.Operation
	}
	if e.Status != 0 {
		meta["status"] = e.Status
	}
	if e.Description != "" {
		meta["description"] = e.Description
	}

	return meta
}
