// Package providers seeds the broker registry with the shipped
// AuthProvider implementations.
package providers

import (
	wsoauth "github.com/WikibaseSolutions/WSOAuth"
	"github.com/WikibaseSolutions/WSOAuth/providers/facebook"
	"github.com/WikibaseSolutions/WSOAuth/providers/github"
	"github.com/WikibaseSolutions/WSOAuth/providers/mediawiki"
)

// Builtin returns the default provider-name -> factory mapping. Hosts
// extend or shadow it through Registry.Register and provider sources.
func Builtin() map[string]wsoauth.Factory {
	return map[string]wsoauth.Factory{
		"mediawiki": func(cfg wsoauth.Config) (wsoauth.AuthProvider, error) {
			return mediawiki.New(mediawiki.Config{
				BaseURL:        cfg.ProviderURI,
				ConsumerKey:    cfg.ClientID,
				ConsumerSecret: cfg.ClientSecret,
				CallbackURL:    cfg.RedirectURI,
			})
		},
		"github": func(cfg wsoauth.Config) (wsoauth.AuthProvider, error) {
			return github.New(github.Config{
				ClientID:     cfg.ClientID,
				ClientSecret: cfg.ClientSecret,
				CallbackURL:  cfg.RedirectURI,
			}), nil
		},
		"facebook": func(cfg wsoauth.Config) (wsoauth.AuthProvider, error) {
			return facebook.New(facebook.Config{
				ClientID:     cfg.ClientID,
				ClientSecret: cfg.ClientSecret,
				CallbackURL:  cfg.RedirectURI,
			}), nil
		},
	}
}

// NewRegistry creates a registry seeded with the built-in providers.
func NewRegistry(opts ...wsoauth.RegistryOption) *wsoauth.Registry {
	return wsoauth.NewRegistry(Builtin(), opts...)
}
