package wsoauth

import "github.com/goliatone/go-errors"

const (
	TextCodeUnknownProvider = "oauth_unknown_provider"
	TextCodeInvalidProvider = "oauth_invalid_provider"
	TextCodeLoginInitFail   = "oauth_initiate_login_failure"
	TextCodeAuthFail        = "oauth_authentication_failure"
	TextCodeInvalidUsername = "oauth_invalid_username"
	TextCodeInvalidUserID   = "oauth_invalid_user_id"
	TextCodeAccountExists   = "oauth_account_exists"
	TextCodeMigrationStore  = "oauth_migration_store_failure"
)

// ErrUnknownProvider is returned when the configured provider name is not
// present in the registry.
var ErrUnknownProvider = errors.New("unknown auth provider", errors.CategoryNotFound).
	WithTextCode(TextCodeUnknownProvider).
	WithCode(errors.CodeNotFound)

// ErrInvalidProvider is returned when a registered entry cannot produce a
// working provider. Distinct from ErrUnknownProvider so operators can tell
// a typo from a broken registration.
var ErrInvalidProvider = errors.New("invalid auth provider", errors.CategoryConflict).
	WithTextCode(TextCodeInvalidProvider).
	WithCode(errors.CodeConflict)

// ErrLoginInitFailed is returned when the provider could not start a
// handshake or returned an empty authorization URL.
var ErrLoginInitFailed = errors.New("could not initiate login", errors.CategoryAuth).
	WithTextCode(TextCodeLoginInitFail).
	WithCode(errors.CodeUnauthorized)

// ErrAuthenticationFailed is the uniform completion failure. A more
// specific provider message, when available, is attached as metadata.
var ErrAuthenticationFailed = errors.New("authentication failure", errors.CategoryAuth).
	WithTextCode(TextCodeAuthFail).
	WithCode(errors.CodeUnauthorized)

// ErrInvalidUsername is returned when the normalized remote username does
// not pass the host's validity rules, or a migration target does not exist.
var ErrInvalidUsername = errors.New("invalid username", errors.CategoryValidation).
	WithTextCode(TextCodeInvalidUsername).
	WithCode(errors.CodeBadRequest)

// ErrInvalidUserID is returned for non-positive account ids.
var ErrInvalidUserID = errors.New("invalid user id", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidUserID).
	WithCode(errors.CodeBadRequest)

// ErrAccountExists is returned when a remote identity maps onto an existing
// unmigrated local account and usurpation is disabled.
var ErrAccountExists = errors.New("account already exists", errors.CategoryConflict).
	WithTextCode(TextCodeAccountExists).
	WithCode(errors.CodeConflict)

func wrapStoreError(err error, msg string) error {
	return errors.Wrap(err, errors.CategoryOperation, msg).
		WithTextCode(TextCodeMigrationStore)
}
