package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// refPattern matches ${secret:name} references.
var refPattern = regexp.MustCompile(`\$\{secret:([^}]*)\}`)

// Resolver looks secrets up in an ordered list of providers. The first
// provider with a value wins.
type Resolver struct {
	providers []Provider
	logger    *slog.Logger
}

// NewResolver creates a resolver over providers, tried in order.
func NewResolver(logger *slog.Logger, providers ...Provider) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		providers: providers,
		logger:    logger.With("component", "secrets"),
	}
}

// Get returns the value of the named secret.
//
// A provider reporting ErrNotFound passes the lookup on to the next one;
// any other provider error stops the lookup.
func (r *Resolver) Get(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("secret name is empty")
	}

	for _, p := range r.providers {
		value, err := p.Lookup(ctx, name)
		if err == nil {
			r.logger.Debug("secret resolved", "provider", p.Name(), "name", redact(name))
			return value, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", fmt.Errorf("provider %s: %w", p.Name(), err)
		}
	}
	return "", fmt.Errorf("%w: %q (tried %d provider(s))", ErrNotFound, name, len(r.providers))
}

// Expand replaces every ${secret:name} reference in s. It fails if any
// reference cannot be resolved; strings without references are returned
// unchanged.
func (r *Resolver) Expand(ctx context.Context, s string) (string, error) {
	if !strings.Contains(s, "${secret:") {
		return s, nil
	}

	var errs []error
	out := refPattern.ReplaceAllStringFunc(s, func(ref string) string {
		name := refPattern.FindStringSubmatch(ref)[1]
		value, err := r.Get(ctx, name)
		if err != nil {
			errs = append(errs, err)
			return ref
		}
		return value
	})
	if len(errs) > 0 {
		return "", fmt.Errorf("failed to resolve secret references: %w", errors.Join(errs...))
	}
	return out, nil
}

// HasReference reports whether s contains a ${secret:name} reference.
func HasReference(s string) bool {
	return refPattern.MatchString(s)
}

// redact shortens a secret name for logs.
func redact(name string) string {
	if len(name) <= 4 {
		return "***"
	}
	return name[:2] + "..." + name[len(name)-2:]
}
