package history

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// PrunerConfig contains configuration for the retention pruner.
type PrunerConfig struct {
	// MaxAge is how long runs are kept. 0 keeps runs forever.
	MaxAge time.Duration

	// MaxRuns is the maximum number of runs to keep. 0 means unlimited.
	MaxRuns int64

	// Schedule is a standard cron expression for automatic pruning.
	// Example: "0 3 * * *" (daily at 3 AM). Empty disables scheduling.
	Schedule string
}

// DefaultPrunerConfig returns the default retention configuration.
func DefaultPrunerConfig() *PrunerConfig {
	return &PrunerConfig{
		MaxAge:   30 * 24 * time.Hour,
		Schedule: "0 3 * * *",
	}
}

// Pruner enforces retention limits on a Store.
type Pruner struct {
	store     Store
	config    *PrunerConfig
	logger    *slog.Logger
	scheduler *Scheduler
	now       func() time.Time
}

// NewPruner creates a pruner for store.
func NewPruner(store Store, config *PrunerConfig, logger *slog.Logger) *Pruner {
	if config == nil {
		config = DefaultPrunerConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pruner{
		store:  store,
		config: config,
		logger: logger.With("component", "history.pruner"),
		now:    time.Now,
	}
	p.scheduler = newScheduler(p)
	return p
}

// Prune deletes runs older than MaxAge, then the oldest runs beyond
// MaxRuns. It returns the total number of runs deleted.
//
// Runs sharing the start time of the oldest kept run are never deleted, so
// a store may briefly hold slightly more than MaxRuns.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	var total int64

	if p.config.MaxAge > 0 {
		deleted, err := p.pruneByAge(ctx)
		if err != nil {
			return total, fmt.Errorf("prune by age failed: %w", err)
		}
		total += deleted
	}

	if p.config.MaxRuns > 0 {
		deleted, err := p.pruneByCount(ctx)
		if err != nil {
			return total, fmt.Errorf("prune by count failed: %w", err)
		}
		total += deleted
	}

	if total == 0 {
		p.logger.Debug("no runs pruned",
			"max_age", p.config.MaxAge,
			"max_runs", p.config.MaxRuns,
		)
	} else {
		p.logger.Info("run pruning completed",
			"total_deleted", total,
			"max_age", p.config.MaxAge,
			"max_runs", p.config.MaxRuns,
		)
	}
	return total, nil
}

func (p *Pruner) pruneByAge(ctx context.Context) (int64, error) {
	cutoff := p.now().Add(-p.config.MaxAge)
	p.logger.Debug("pruning by age", "cutoff_time", cutoff)
	return p.store.Delete(ctx, &Query{Until: &cutoff})
}

func (p *Pruner) pruneByCount(ctx context.Context) (int64, error) {
	count, err := p.store.Count(ctx, &Query{})
	if err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	if count <= p.config.MaxRuns {
		return 0, nil
	}

	// The oldest run to keep marks the cutoff.
	keep, err := p.store.List(ctx, &Query{Limit: 1, Offset: int(p.config.MaxRuns - 1)})
	if err != nil {
		return 0, fmt.Errorf("failed to find cutoff run: %w", err)
	}
	if len(keep) == 0 {
		return 0, nil
	}
	cutoff := keep[0].StartedAt

	p.logger.Info("run count exceeds limit, pruning oldest",
		"current_count", count,
		"max_runs", p.config.MaxRuns,
		"cutoff_time", cutoff,
	)

	deleted, err := p.store.Delete(ctx, &Query{Until: &cutoff})
	if err != nil {
		return 0, fmt.Errorf("delete failed: %w", err)
	}
	return deleted, nil
}

// Start starts scheduled pruning. It is a no-op when Schedule is empty.
func (p *Pruner) Start(ctx context.Context) error {
	return p.scheduler.Start(ctx)
}

// Stop stops scheduled pruning and waits for a running prune to finish.
func (p *Pruner) Stop() {
	p.scheduler.Stop()
}

// NextPruning returns the time of the next scheduled pruning, or nil.
func (p *Pruner) NextPruning() *time.Time {
	return p.scheduler.NextRun()
}
