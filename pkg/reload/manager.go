package reload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/verdict/pkg/engine"
	"mercator-hq/verdict/pkg/facts"
	rdlErrors "mercator-hq/verdict/pkg/rdl/errors"
	"mercator-hq/verdict/pkg/source"
)

const tracerName = "mercator-hq/verdict/pkg/reload"

// ErrNotLoaded is returned when no rule set has been loaded yet.
var ErrNotLoaded = errors.New("no rule set loaded")

// Reload triggers.
const (
	TriggerManual   = "manual"
	TriggerWatch    = "watch"
	TriggerSchedule = "schedule"
)

// Snapshot is a published rule set with its load metadata.
type Snapshot struct {
	RuleSet *engine.RuleSet

	// Generation increases by one with every successful reload.
	Generation uint64

	LoadedAt time.Time
}

// Event describes one reload attempt.
type Event struct {
	Source     string
	Trigger    string
	Generation uint64
	Version    string
	Rules      int
	Duration   time.Duration

	// Err is non-nil when the reload failed and the previous rule set was
	// kept.
	Err error
}

// Listener is notified after every reload attempt.
type Listener interface {
	OnReload(event Event)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(event Event)

// OnReload calls f.
func (f ListenerFunc) OnReload(event Event) {
	f(event)
}

// Manager owns the current rule set of a running engine.
type Manager struct {
	source      source.Source
	compileOpts *engine.CompileOptions
	logger      *slog.Logger

	current atomic.Pointer[Snapshot]

	// reloadMu serializes reloads; readers never take it.
	reloadMu sync.Mutex
	lastErr  error

	listenersMu sync.RWMutex
	listeners   []Listener

	tracer trace.Tracer
}

// NewManager creates a manager for src. No rules are loaded until Reload
// is called.
func NewManager(src source.Source, opts *engine.CompileOptions, logger *slog.Logger) (*Manager, error) {
	if src == nil {
		return nil, fmt.Errorf("source cannot be nil")
	}
	if opts == nil {
		opts = engine.DefaultCompileOptions()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		source:      src,
		compileOpts: opts,
		logger:      logger.With("component", "reload", "source", src.Name()),
		tracer:      otel.Tracer(tracerName),
	}, nil
}

// WithTracer replaces the OpenTelemetry tracer used for reload spans.
func (m *Manager) WithTracer(t trace.Tracer) *Manager {
	if t != nil {
		m.tracer = t
	}
	return m
}

// AddListener registers l for reload events.
func (m *Manager) AddListener(l Listener) {
	if l == nil {
		return
	}
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()
	m.listeners = append(m.listeners, l)
}

// Source returns the manager's rule source.
func (m *Manager) Source() source.Source {
	return m.source
}

// Current returns the published rule set, or nil before the first
// successful load.
func (m *Manager) Current() *engine.RuleSet {
	if s := m.current.Load(); s != nil {
		return s.RuleSet
	}
	return nil
}

// Snapshot returns the published snapshot, or nil before the first
// successful load.
func (m *Manager) Snapshot() *Snapshot {
	return m.current.Load()
}

// Generation returns the generation of the published rule set, 0 before
// the first successful load.
func (m *Manager) Generation() uint64 {
	if s := m.current.Load(); s != nil {
		return s.Generation
	}
	return 0
}

// LastError returns the error of the most recent reload attempt, or nil
// if it succeeded.
func (m *Manager) LastError() error {
	m.reloadMu.Lock()
	defer m.reloadMu.Unlock()
	return m.lastErr
}

// Reload loads and compiles the source and publishes the result. On
// failure the previous rule set stays current and the error is returned.
func (m *Manager) Reload(ctx context.Context) error {
	return m.reload(ctx, TriggerManual)
}

// Evaluate runs eng against the current rule set.
func (m *Manager) Evaluate(ctx context.Context, eng *engine.Engine, fc *facts.Context, cfg *engine.Config) (*engine.Report, error) {
	rs := m.Current()
	if rs == nil {
		return nil, ErrNotLoaded
	}
	return eng.Evaluate(ctx, rs, fc, cfg)
}

// Validate loads and checks the source without publishing anything. It
// returns every problem found rather than the first.
func (m *Manager) Validate(ctx context.Context) []error {
	doc, err := m.source.Load(ctx)
	if err != nil {
		var list *rdlErrors.ErrorList
		if errors.As(err, &list) {
			out := make([]error, 0, list.Len())
			for _, e := range list.Errors {
				out = append(out, e)
			}
			return out
		}
		return []error{err}
	}
	return engine.Validate(doc.Rules, m.compileOpts)
}

func (m *Manager) reload(ctx context.Context, trigger string) error {
	m.reloadMu.Lock()
	defer m.reloadMu.Unlock()

	ctx, span := m.tracer.Start(ctx, "reload.Reload", trace.WithAttributes(
		attribute.String("verdict.source", m.source.Name()),
		attribute.String("verdict.reload.trigger", trigger),
	))
	defer span.End()

	start := time.Now()
	event := Event{Source: m.source.Name(), Trigger: trigger}

	rs, err := m.load(ctx)
	event.Duration = time.Since(start)

	if err != nil {
		m.lastErr = err
		event.Err = err
		event.Generation = m.Generation()
		if prev := m.Current(); prev != nil {
			event.Version = prev.Version()
			event.Rules = prev.Len()
		}
		m.logger.Error("rule reload failed, keeping previous rule set",
			"trigger", trigger,
			"generation", event.Generation,
			"error", err,
			"duration_ms", event.Duration.Milliseconds(),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.notify(event)
		return err
	}

	next := &Snapshot{
		RuleSet:    rs,
		Generation: m.Generation() + 1,
		LoadedAt:   time.Now(),
	}
	m.current.Store(next)
	m.lastErr = nil

	event.Generation = next.Generation
	event.Version = rs.Version()
	event.Rules = rs.Len()
	span.SetAttributes(
		attribute.Int64("verdict.reload.generation", int64(next.Generation)),
		attribute.String("verdict.rule_set.version", rs.Version()),
		attribute.Int("verdict.rule_set.rules", rs.Len()),
	)

	m.logger.Info("rules reloaded",
		"trigger", trigger,
		"generation", next.Generation,
		"version", rs.Version(),
		"rules", rs.Len(),
		"duration_ms", event.Duration.Milliseconds(),
	)
	m.notify(event)
	return nil
}

func (m *Manager) load(ctx context.Context) (*engine.RuleSet, error) {
	doc, err := m.source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	rs, err := engine.CompileDocument(doc, m.compileOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to compile rules: %w", err)
	}
	return rs, nil
}

func (m *Manager) notify(event Event) {
	m.listenersMu.RLock()
	listeners := make([]Listener, len(m.listeners))
	copy(listeners, m.listeners)
	m.listenersMu.RUnlock()

	for _, l := range listeners {
		l.OnReload(event)
	}
}
