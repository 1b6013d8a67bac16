package secrets

import (
	"context"
	"errors"
)

// ErrNotFound is returned by a Provider that has no value for a name.
var ErrNotFound = errors.New("secret not found")

// Provider looks up secret values by name.
type Provider interface {
	// Lookup returns the value of the named secret, or an error wrapping
	// ErrNotFound when the provider has none.
	Lookup(ctx context.Context, name string) (string, error)

	// Name identifies the provider in logs (env, file).
	Name() string
}
