package wsoauth

import (
	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-errors"
)

// Config carries all broker configuration. It replaces the original
// ambient globals: construct one at startup and pass it to NewRegistry,
// NewAuthenticator, and provider factories.
type Config struct {
	// Provider selects the active auth provider by registry name.
	Provider string `env:"WSOAUTH_PROVIDER"`

	// ClientID and ClientSecret are the credentials registered with the
	// remote provider (consumer key/secret for OAuth1-style providers).
	ClientID     string `env:"WSOAUTH_CLIENT_ID"`
	ClientSecret string `env:"WSOAUTH_CLIENT_SECRET"`

	// RedirectURI is the callback URL the provider sends the user back to.
	RedirectURI string `env:"WSOAUTH_REDIRECT_URI"`

	// ProviderURI is the base URL of the remote identity host. Only used
	// by providers that talk to a configurable peer (e.g. mediawiki).
	ProviderURI string `env:"WSOAUTH_PROVIDER_URI"`

	// MigrateUsersByUsername enables the usurpation path: a remote identity
	// whose normalized username matches an existing unmigrated local
	// account takes that account over. This trusts the username match
	// alone, so it ships disabled; enable it only when the remote provider
	// owns the same username namespace as the host.
	MigrateUsersByUsername bool `env:"WSOAUTH_MIGRATE_USERS_BY_USERNAME"`

	// AutoPopulateGroups are added to every successfully authenticated
	// user, skipping groups already held.
	AutoPopulateGroups []string `env:"WSOAUTH_AUTO_POPULATE_GROUPS" envSeparator:","`
}

// FromEnv builds a validated Config from WSOAUTH_* environment variables.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Wrap(err, errors.CategoryOperation, "failed to parse environment")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the fields every provider relies on.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Provider, validation.Required),
		validation.Field(&c.RedirectURI, is.URL),
		validation.Field(&c.ProviderURI, is.URL),
	)
	if err != nil {
		return errors.Wrap(err, errors.CategoryValidation, "invalid configuration")
	}
	return nil
}
