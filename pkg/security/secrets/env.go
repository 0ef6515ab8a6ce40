package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// EnvProvider loads secrets from environment variables. The secret name
// is uppercased, hyphens become underscores, and the prefix is prepended:
// with prefix "RELAY_SECRET_", the secret "auth-secret" reads
// RELAY_SECRET_AUTH_SECRET.
type EnvProvider struct {
	Prefix string
}

// NewEnvProvider creates an environment variable secret provider.
func NewEnvProvider(prefix string) *EnvProvider {
	return &EnvProvider{Prefix: prefix}
}

// Get retrieves a secret from its environment variable.
func (p *EnvProvider) Get(_ context.Context, name string) (string, error) {
	envVar := p.Prefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	value := os.Getenv(envVar)
	if value == "" {
		return "", fmt.Errorf("%w: %s (env var %s)", ErrNotFound, name, envVar)
	}
	return value, nil
}

// Name identifies the provider.
func (p *EnvProvider) Name() string { return "env" }
