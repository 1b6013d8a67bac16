package history

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mercator-hq/verdict/pkg/engine"
	"mercator-hq/verdict/pkg/facts"
	"mercator-hq/verdict/pkg/rdl/parser"
)

const votingRules = `
rules:
  - name: adult
    priority: 10
    condition: {attr: age, op: gte, value: 18}
    actions:
      - {type: tag, params: {value: adult}}
`

func TestRecorder_RecordsEngineRuns(t *testing.T) {
	doc, err := parser.ParseBytes([]byte(votingRules), "rules.yaml")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	rs, err := engine.CompileDocument(doc, nil)
	if err != nil {
		t.Fatalf("CompileDocument() error = %v", err)
	}

	store := NewMemoryStore()
	rec := NewRecorder(store, nil, quietLogger())
	eng := engine.NewEngine(nil, quietLogger()).WithObserver(rec)

	var runIDs []string
	for _, age := range []int{20, 10, 40} {
		fc, _ := facts.FromMap(map[string]any{"age": age})
		report, err := eng.Evaluate(context.Background(), rs, fc, nil)
		if err != nil {
			t.Fatalf("Evaluate() error = %v", err)
		}
		runIDs = append(runIDs, report.RunID)
	}

	if err := rec.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if rec.Recorded() != 3 {
		t.Errorf("Recorded() = %d, want 3", rec.Recorded())
	}

	run, err := store.Get(context.Background(), runIDs[1])
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if run.Terminal != string(engine.Idle) || len(run.Fired) != 0 {
		t.Errorf("run for age 10 = %+v, want idle with no firings", run)
	}
	run, _ = store.Get(context.Background(), runIDs[0])
	if run.RuleSetVersion != rs.Version() || len(run.Fired) != 1 || run.Fired[0].Rule != "adult" {
		t.Errorf("run for age 20 = %+v, want adult fired", run)
	}
}

func TestRecorder_RecordsEvaluationError(t *testing.T) {
	store := NewMemoryStore()
	rec := NewRecorder(store, nil, quietLogger())

	report := &engine.Report{
		RunID:     "run-err",
		Terminal:  engine.ActionAborted,
		StartedAt: baseTime,
		Fired:     []engine.Firing{},
	}
	rec.ObserveEvaluation(report, errors.New("handler exploded"))
	rec.Close()

	run, err := store.Get(context.Background(), "run-err")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if run.Error != "handler exploded" {
		t.Errorf("Error = %q, want %q", run.Error, "handler exploded")
	}
}

// blockingStore blocks Save until release is closed.
type blockingStore struct {
	*MemoryStore
	release chan struct{}
	once    sync.Once
	started chan struct{}
}

func (s *blockingStore) Save(ctx context.Context, run *Run) error {
	s.once.Do(func() { close(s.started) })
	<-s.release
	return s.MemoryStore.Save(ctx, run)
}

func TestRecorder_DropsWhenBufferFull(t *testing.T) {
	store := &blockingStore{
		MemoryStore: NewMemoryStore(),
		release:     make(chan struct{}),
		started:     make(chan struct{}),
	}
	rec := NewRecorder(store, &RecorderConfig{
		AsyncBuffer:    1,
		WriteTimeout:   time.Second,
		EnqueueTimeout: 10 * time.Millisecond,
	}, quietLogger())

	observe := func(id string) {
		rec.ObserveEvaluation(&engine.Report{RunID: id, StartedAt: baseTime, Fired: []engine.Firing{}}, nil)
	}

	observe("first")
	<-store.started // worker holds "first"
	observe("second")
	observe("third")

	if rec.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", rec.Dropped())
	}

	close(store.release)
	rec.Close()

	if rec.Recorded() != 2 {
		t.Errorf("Recorded() = %d, want 2", rec.Recorded())
	}
}

func TestRecorder_AfterCloseDrops(t *testing.T) {
	rec := NewRecorder(NewMemoryStore(), nil, quietLogger())
	rec.Close()
	rec.Close()

	rec.ObserveEvaluation(&engine.Report{RunID: "late", StartedAt: baseTime}, nil)
	if rec.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", rec.Dropped())
	}
}

// failingStore rejects every save.
type failingStore struct {
	*MemoryStore
}

func (failingStore) Save(context.Context, *Run) error {
	return errors.New("disk full")
}

func TestRecorder_CountsStoreFailures(t *testing.T) {
	rec := NewRecorder(failingStore{NewMemoryStore()}, nil, quietLogger())
	rec.ObserveEvaluation(&engine.Report{RunID: "x", StartedAt: baseTime}, nil)
	rec.Close()

	if rec.Failed() != 1 || rec.Recorded() != 0 {
		t.Errorf("Failed() = %d, Recorded() = %d; want 1, 0", rec.Failed(), rec.Recorded())
	}
}
