package history

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"mercator-hq/verdict/pkg/engine"
)

// RecorderConfig contains configuration for the run recorder.
type RecorderConfig struct {
	// AsyncBuffer is the size of the async write channel buffer.
	// Default: 1000
	AsyncBuffer int

	// WriteTimeout is the timeout for writing one run to the store.
	// Default: 5 seconds
	WriteTimeout time.Duration

	// EnqueueTimeout is how long ObserveEvaluation waits for buffer space
	// before dropping the run.
	// Default: 100 milliseconds
	EnqueueTimeout time.Duration
}

// DefaultRecorderConfig returns the default recorder configuration.
func DefaultRecorderConfig() *RecorderConfig {
	return &RecorderConfig{
		AsyncBuffer:    1000,
		WriteTimeout:   5 * time.Second,
		EnqueueTimeout: 100 * time.Millisecond,
	}
}

// Recorder persists evaluation reports asynchronously. It implements
// engine.Observer so it can be attached to an Engine directly.
type Recorder struct {
	store   Store
	config  *RecorderConfig
	runChan chan *Run
	wg      sync.WaitGroup
	done    chan struct{}
	once    sync.Once
	logger  *slog.Logger

	recorded atomic.Int64
	dropped  atomic.Int64
	failed   atomic.Int64
}

var _ engine.Observer = (*Recorder)(nil)

// NewRecorder creates a recorder writing to store and starts its worker.
func NewRecorder(store Store, config *RecorderConfig, logger *slog.Logger) *Recorder {
	if config == nil {
		config = DefaultRecorderConfig()
	}
	if config.AsyncBuffer <= 0 {
		config.AsyncBuffer = 1000
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}
	if config.EnqueueTimeout <= 0 {
		config.EnqueueTimeout = 100 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Recorder{
		store:   store,
		config:  config,
		runChan: make(chan *Run, config.AsyncBuffer),
		done:    make(chan struct{}),
		logger:  logger.With("component", "history.recorder"),
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Info("run recorder initialized",
		"async_buffer", config.AsyncBuffer,
		"write_timeout", config.WriteTimeout,
	)
	return r
}

// ObserveEvaluation enqueues the run for writing. It never blocks longer
// than EnqueueTimeout.
func (r *Recorder) ObserveEvaluation(report *engine.Report, err error) {
	if report == nil {
		return
	}
	run := NewRun(report, err)

	select {
	case <-r.done:
		r.dropped.Add(1)
		r.logger.Warn("recorder shut down, dropping run", "run_id", run.ID)
		return
	default:
	}

	timer := time.NewTimer(r.config.EnqueueTimeout)
	defer timer.Stop()

	select {
	case r.runChan <- run:
	case <-timer.C:
		r.dropped.Add(1)
		r.logger.Error("run channel full, dropping run",
			"run_id", run.ID,
			"channel_capacity", r.config.AsyncBuffer,
		)
	case <-r.done:
		r.dropped.Add(1)
		r.logger.Warn("recorder shutting down, dropping run", "run_id", run.ID)
	}
}

// Recorded returns the number of runs written successfully.
func (r *Recorder) Recorded() int64 {
	return r.recorded.Load()
}

// Dropped returns the number of runs dropped because the buffer was full
// or the recorder was closed.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Failed returns the number of runs the store rejected.
func (r *Recorder) Failed() int64 {
	return r.failed.Load()
}

// Close drains queued runs and waits for the worker to exit. It does not
// close the store.
func (r *Recorder) Close() error {
	r.once.Do(func() {
		r.logger.Info("shutting down run recorder")
		close(r.done)
		r.wg.Wait()
		r.logger.Info("run recorder shut down",
			"recorded", r.recorded.Load(),
			"dropped", r.dropped.Load(),
			"failed", r.failed.Load(),
		)
	})
	return nil
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case run := <-r.runChan:
			r.write(run)

		case <-r.done:
			r.logger.Debug("draining run channel", "pending_count", len(r.runChan))
			for {
				select {
				case run := <-r.runChan:
					r.write(run)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(run *Run) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	start := time.Now()
	if err := r.store.Save(ctx, run); err != nil {
		r.failed.Add(1)
		r.logger.Error("failed to store run",
			"run_id", run.ID,
			"error", err,
		)
		return
	}
	r.recorded.Add(1)

	duration := time.Since(start)
	r.logger.Debug("run recorded",
		"run_id", run.ID,
		"terminal", run.Terminal,
		"fired", len(run.Fired),
		"duration_ms", duration.Milliseconds(),
	)
	if duration > r.config.WriteTimeout/2 {
		r.logger.Warn("slow run write",
			"run_id", run.ID,
			"duration_ms", duration.Milliseconds(),
		)
	}
}
