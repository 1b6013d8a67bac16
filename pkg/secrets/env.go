package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// DefaultEnvPrefix is the environment variable prefix for secrets.
const DefaultEnvPrefix = "VERDICT_SECRET_"

// EnvProvider loads secrets from environment variables.
//
// Example:
//   - Secret name: "rules-git-token"
//   - Env var name: "VERDICT_SECRET_RULES_GIT_TOKEN"
type EnvProvider struct {
	Prefix string
}

// NewEnvProvider creates an environment variable provider. The prefix is
// prepended to every variable name.
func NewEnvProvider(prefix string) *EnvProvider {
	return &EnvProvider{Prefix: prefix}
}

// Lookup reads the variable for name. An empty variable counts as unset.
func (p *EnvProvider) Lookup(_ context.Context, name string) (string, error) {
	envVar := p.envVar(name)
	value := os.Getenv(envVar)
	if value == "" {
		return "", fmt.Errorf("%w: env var %s is not set", ErrNotFound, envVar)
	}
	return value, nil
}

// Name returns "env".
func (p *EnvProvider) Name() string {
	return "env"
}

// envVar converts a secret name to an environment variable name.
func (p *EnvProvider) envVar(name string) string {
	return p.Prefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}
