package health

import (
	"context"
	"fmt"

	"mercator-hq/verdict/pkg/engine"
)

// RuleSetProvider returns the active rule set, or nil before the first
// successful load. *reload.Manager satisfies it.
type RuleSetProvider interface {
	Current() *engine.RuleSet
}

// Pinger verifies a connection. *sqlx.DB and *sql.DB satisfy it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RuleSetCheck passes once a rule set has been loaded. A failed reload
// does not fail the check, since the previous rule set stays active.
func RuleSetCheck(p RuleSetProvider) CheckFunc {
	return func(context.Context) error {
		if p.Current() == nil {
			return fmt.Errorf("no rule set loaded")
		}
		return nil
	}
}

// PingCheck passes when p answers a ping.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := p.PingContext(ctx); err != nil {
			return fmt.Errorf("ping failed: %w", err)
		}
		return nil
	}
}
