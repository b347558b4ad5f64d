package wsoauth

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryResolveUnknown(t *testing.T) {
	registry := NewRegistry(nil)

	_, err := registry.Resolve("missing", Config{})
	require.ErrorIs(t, err, ErrUnknownProvider)
	assert.NotErrorIs(t, err, ErrInvalidProvider)
}

func TestRegistryResolveInvalid(t *testing.T) {
	registry := NewRegistry(map[string]Factory{
		"nilfactory": nil,
		"broken": func(Config) (AuthProvider, error) {
			return nil, errors.New("bad credentials")
		},
		"nilprovider": func(Config) (AuthProvider, error) {
			return nil, nil
		},
	})

	for _, name := range []string{"nilfactory", "broken", "nilprovider"} {
		_, err := registry.Resolve(name, Config{})
		require.ErrorIs(t, err, ErrInvalidProvider, name)
		assert.NotErrorIs(t, err, ErrUnknownProvider, name)
	}
}

func TestRegistryResolveSuccess(t *testing.T) {
	stub := &stubProvider{}
	registry := NewRegistry(map[string]Factory{
		"stub": func(cfg Config) (AuthProvider, error) {
			return stub, nil
		},
	})

	provider, err := registry.Resolve("stub", Config{})
	require.NoError(t, err)
	assert.Same(t, stub, provider)
}

func TestRegistryRegisterReplaces(t *testing.T) {
	first := &stubProvider{}
	second := &stubProvider{}
	registry := NewRegistry(map[string]Factory{
		"stub": func(Config) (AuthProvider, error) { return first, nil },
	})

	registry.Register("stub", func(Config) (AuthProvider, error) { return second, nil })

	provider, err := registry.Resolve("stub", Config{})
	require.NoError(t, err)
	assert.Same(t, second, provider)
}

func TestRegistrySourcesConsultedPerResolve(t *testing.T) {
	dynamic := map[string]Factory{}
	registry := NewRegistry(nil, WithProviderSource(func() map[string]Factory {
		return dynamic
	}))

	_, err := registry.Resolve("late", Config{})
	require.ErrorIs(t, err, ErrUnknownProvider)

	// Registered after construction, visible on the next resolution.
	stub := &stubProvider{}
	dynamic["late"] = func(Config) (AuthProvider, error) { return stub, nil }

	provider, err := registry.Resolve("late", Config{})
	require.NoError(t, err)
	assert.Same(t, stub, provider)
}

func TestRegistrySourceShadowsBuiltin(t *testing.T) {
	builtin := &stubProvider{}
	shadow := &stubProvider{}
	registry := NewRegistry(
		map[string]Factory{
			"stub": func(Config) (AuthProvider, error) { return builtin, nil },
		},
		WithProviderSource(func() map[string]Factory {
			return map[string]Factory{
				"stub": func(Config) (AuthProvider, error) { return shadow, nil },
			}
		}),
	)

	provider, err := registry.Resolve("stub", Config{})
	require.NoError(t, err)
	assert.Same(t, shadow, provider)
}

func TestRegistryNamesSorted(t *testing.T) {
	registry := NewRegistry(
		map[string]Factory{"gamma": nil, "alpha": nil},
		WithProviderSource(func() map[string]Factory {
			return map[string]Factory{"beta": nil}
		}),
	)

	assert.Equal(t, []string{"alpha", "beta", "gamma"}, registry.Names())
}
