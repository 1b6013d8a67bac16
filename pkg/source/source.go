package source

import (
	"context"

	"mercator-hq/verdict/pkg/rdl/ast"
)

// Source loads rule definitions.
type Source interface {
	// Load returns the current rule definitions. Implementations must be
	// safe to call repeatedly; each call reflects the latest state.
	Load(ctx context.Context) (*ast.Document, error)

	// Name identifies the source in logs and metrics.
	Name() string
}

// Refresher is implemented by sources backed by remote state that must be
// fetched before Load sees changes.
type Refresher interface {
	// Refresh fetches remote changes and reports whether any arrived.
	Refresh(ctx context.Context) (bool, error)
}

// Watchable is implemented by sources backed by local files.
type Watchable interface {
	// WatchPaths returns the files or directories to watch for changes.
	WatchPaths() []string
}
