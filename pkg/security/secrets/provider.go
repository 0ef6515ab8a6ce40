// Package secrets resolves secrets from environment variables and mounted
// files, with priority-based fallback across providers.
package secrets

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned when no provider holds the requested secret.
var ErrNotFound = errors.New("secret not found")

// Provider retrieves secrets from a backend.
type Provider interface {
	// Get retrieves a secret by name. Returns ErrNotFound (possibly
	// wrapped) when the provider does not hold the secret.
	Get(ctx context.Context, name string) (string, error)

	// Name identifies the provider in logs.
	Name() string
}

// Chain tries each provider in order and returns the first hit.
type chain struct {
	providers []Provider
}

// Chain combines providers with priority-based fallback. Earlier
// providers win.
func Chain(providers ...Provider) Provider {
	return &chain{providers: providers}
}

func (c *chain) Get(ctx context.Context, name string) (string, error) {
	for _, p := range c.providers {
		value, err := p.Get(ctx, name)
		if err == nil {
			return value, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", fmt.Errorf("provider %s: %w", p.Name(), err)
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, name)
}

func (c *chain) Name() string { return "chain" }
