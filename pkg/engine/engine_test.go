package engine

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"mercator-hq/verdict/pkg/facts"
)

const adultRules = `
rules:
  - name: adult
    priority: 1
    condition: {attr: age, op: gte, value: 18}
    actions:
      - {type: tag, params: {value: adult}}
`

func newTestEngine() *Engine {
	return NewEngine(NewDefaultRegistry(quietLogger()), quietLogger())
}

func TestEngine_Evaluate_AdultExample(t *testing.T) {
	rs := mustCompile(t, adultRules)
	fc := mustFacts(t, map[string]any{"age": 20})

	report, err := newTestEngine().Evaluate(context.Background(), rs, fc, nil)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	if report.Cycles != 1 {
		t.Errorf("Cycles = %d, want 1", report.Cycles)
	}
	if got := report.FiredRules(); !reflect.DeepEqual(got, []string{"adult"}) {
		t.Errorf("FiredRules() = %v, want [adult]", got)
	}
	if report.Terminal != CycleLimitReached {
		t.Errorf("Terminal = %s, want %s", report.Terminal, CycleLimitReached)
	}
	if got := fc.Get("tags"); !got.Equal(facts.List(facts.String("adult"))) {
		t.Errorf("tags = %v, want [\"adult\"]", got)
	}
	if report.RunID == "" || report.RuleSetVersion != rs.Version() {
		t.Errorf("RunID = %q, RuleSetVersion = %q", report.RunID, report.RuleSetVersion)
	}
}

func TestEngine_Evaluate_NoMatchIsIdle(t *testing.T) {
	rs := mustCompile(t, adultRules)
	fc := mustFacts(t, map[string]any{"age": 10})

	report, err := newTestEngine().Evaluate(context.Background(), rs, fc, nil)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if len(report.Fired) != 0 {
		t.Errorf("Fired = %v, want none", report.Fired)
	}
	if report.Terminal != Idle {
		t.Errorf("Terminal = %s, want %s", report.Terminal, Idle)
	}
	if fc.Has("tags") {
		t.Error("tags set although nothing fired")
	}
}

func TestEngine_Evaluate_PriorityOrder(t *testing.T) {
	rs := mustCompile(t, `
rules:
  - {name: low, priority: 5, condition: {attr: x, op: exists}, actions: [{type: append, params: {attr: order, value: low}}]}
  - {name: high, priority: 10, condition: {attr: x, op: exists}, actions: [{type: append, params: {attr: order, value: high}}]}
`)
	fc := mustFacts(t, map[string]any{"x": 1})

	report, err := newTestEngine().Evaluate(context.Background(), rs, fc, nil)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if got := report.FiredRules(); !reflect.DeepEqual(got, []string{"high", "low"}) {
		t.Errorf("FiredRules() = %v, want [high low]", got)
	}
	want := facts.List(facts.String("high"), facts.String("low"))
	if got := fc.Get("order"); !got.Equal(want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestEngine_Evaluate_TieBreakIsDeclarationOrder(t *testing.T) {
	rs := mustCompile(t, `
rules:
  - {name: c, condition: {attr: x, op: exists}, actions: [{type: log}]}
  - {name: a, condition: {attr: x, op: exists}, actions: [{type: log}]}
  - {name: b, condition: {attr: x, op: exists}, actions: [{type: log}]}
`)
	report, err := newTestEngine().Evaluate(context.Background(), rs, mustFacts(t, map[string]any{"x": 1}), nil)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if got := report.FiredRules(); !reflect.DeepEqual(got, []string{"c", "a", "b"}) {
		t.Errorf("FiredRules() = %v, want [c a b]", got)
	}
}

func TestEngine_Evaluate_CycleLimit(t *testing.T) {
	rs := mustCompile(t, `
rules:
  - name: loop
    condition: {attr: n, op: lt, value: 100}
    actions: [{type: increment, params: {attr: n}}]
`)
	fc := mustFacts(t, map[string]any{"n": 0})

	report, err := newTestEngine().Evaluate(context.Background(), rs, fc, DefaultConfig().WithMaxCycles(5))
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if report.Cycles != 5 || len(report.Fired) != 5 {
		t.Errorf("Cycles = %d, Fired = %d, want 5 and 5", report.Cycles, len(report.Fired))
	}
	if report.Terminal != CycleLimitReached {
		t.Errorf("Terminal = %s, want %s", report.Terminal, CycleLimitReached)
	}
	if got := fc.Get("n"); !got.Equal(facts.Int(5)) {
		t.Errorf("n = %v, want 5", got)
	}
	for i, f := range report.Fired {
		if f.Cycle != i+1 {
			t.Errorf("Fired[%d].Cycle = %d, want %d", i, f.Cycle, i+1)
		}
	}
}

func TestEngine_Evaluate_ForwardChaining(t *testing.T) {
	rs := mustCompile(t, `
rules:
  - name: adult
    condition: {attr: age, op: gte, value: 18}
    actions: [{type: set, params: {attr: adult, value: true}}]
  - name: can-vote
    condition:
      all:
        - {attr: adult, op: eq, value: true}
        - {attr: voter, op: notExists}
    actions: [{type: set, params: {attr: voter, value: true}}]
`)
	fc := mustFacts(t, map[string]any{"age": 30})

	report, err := newTestEngine().Evaluate(context.Background(), rs, fc, DefaultConfig().WithMaxCycles(10))
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if !fc.Has("voter") {
		t.Error("voter not derived in a later cycle")
	}
	// adult keeps matching, so the run ends on the bound.
	if report.Terminal != CycleLimitReached {
		t.Errorf("Terminal = %s, want %s", report.Terminal, CycleLimitReached)
	}
	if report.Fired[1].Rule != "adult" || report.Fired[2].Rule != "can-vote" {
		t.Errorf("FiredRules() = %v", report.FiredRules())
	}
}

func TestEngine_Evaluate_StopOnFirstMatch(t *testing.T) {
	rs := mustCompile(t, `
rules:
  - {name: a, priority: 1, condition: {attr: x, op: exists}, actions: [{type: log}]}
  - {name: b, priority: 2, condition: {attr: x, op: exists}, actions: [{type: log}]}
`)
	cfg := DefaultConfig().WithStopOnFirstMatch(true).WithMaxCycles(3)

	report, err := newTestEngine().Evaluate(context.Background(), rs, mustFacts(t, map[string]any{"x": 1}), cfg)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if got := report.FiredRules(); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("FiredRules() = %v, want [b]", got)
	}
	if report.Terminal != StopOnFirstMatch || report.Cycles != 1 {
		t.Errorf("Terminal = %s after %d cycles, want %s after 1", report.Terminal, report.Cycles, StopOnFirstMatch)
	}
}

func newFailingRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewDefaultRegistry(quietLogger())
	if err := r.RegisterFunc("fail", func(context.Context, *ActionSpec, *facts.Context) error {
		return errors.New("boom")
	}); err != nil {
		t.Fatal(err)
	}
	return r
}

const failingRules = `
rules:
  - name: first
    priority: 2
    condition: {attr: x, op: exists}
    actions:
      - {type: append, params: {attr: seen, value: first-1}}
      - {type: fail}
      - {type: append, params: {attr: seen, value: first-2}}
  - name: second
    priority: 1
    condition: {attr: x, op: exists}
    actions:
      - {type: append, params: {attr: seen, value: second}}
`

func TestEngine_Evaluate_OnActionError(t *testing.T) {
	tests := []struct {
		policy       OnActionError
		wantSeen     []string
		wantTerminal TerminalReason
		wantErr      bool
	}{
		{policy: ContinueRule, wantSeen: []string{"first-1", "second"}, wantTerminal: CycleLimitReached},
		{policy: AbortCycle, wantSeen: []string{"first-1"}, wantTerminal: CycleLimitReached},
		{policy: AbortRun, wantSeen: []string{"first-1"}, wantTerminal: ActionAborted, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			rs := mustCompile(t, failingRules)
			fc := mustFacts(t, map[string]any{"x": 1})
			eng := NewEngine(newFailingRegistry(t), quietLogger())

			report, err := eng.Evaluate(context.Background(), rs, fc, DefaultConfig().WithOnActionError(tt.policy))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Evaluate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if report.Terminal != tt.wantTerminal {
				t.Errorf("Terminal = %s, want %s", report.Terminal, tt.wantTerminal)
			}

			var seen []string
			items, _ := fc.Get("seen").AsList()
			for _, item := range items {
				s, _ := item.AsString()
				seen = append(seen, s)
			}
			if !reflect.DeepEqual(seen, tt.wantSeen) {
				t.Errorf("seen = %v, want %v", seen, tt.wantSeen)
			}

			if len(report.ActionErrors) != 1 {
				t.Fatalf("ActionErrors = %v, want 1", report.ActionErrors)
			}
			actionErr := report.ActionErrors[0]
			if actionErr.Kind != HandlerFailed || actionErr.Rule != "first" || actionErr.ActionIndex != 1 {
				t.Errorf("ActionError = %+v", actionErr)
			}
			if !report.Fired[0].Failed || report.Fired[0].ActionsExecuted != 2 {
				t.Errorf("Fired[0] = %+v, want failed with 2 executed", report.Fired[0])
			}
		})
	}
}

func TestEngine_Evaluate_UnknownActionIsRecorded(t *testing.T) {
	rs := mustCompile(t, `
rules:
  - name: a
    condition: {attr: x, op: exists}
    actions: [{type: notify}, {type: tag, params: {value: never}}]
`)
	fc := mustFacts(t, map[string]any{"x": 1})

	report, err := newTestEngine().Evaluate(context.Background(), rs, fc, DefaultConfig().WithMaxCycles(3))
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if len(report.ActionErrors) != 1 || !errors.Is(report.ActionErrors[0], ErrUnknownAction) {
		t.Fatalf("ActionErrors = %v, want one unknown action", report.ActionErrors)
	}
	if fc.Has("tags") {
		t.Error("remaining actions of the firing ran after unknown action")
	}
	// No handler ran, so no new cycle starts.
	if report.Terminal != Idle || report.Cycles != 1 {
		t.Errorf("Terminal = %s after %d cycles, want idle after 1", report.Terminal, report.Cycles)
	}
}

func TestEngine_Evaluate_Cancelled(t *testing.T) {
	rs := mustCompile(t, adultRules)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := newTestEngine().Evaluate(ctx, rs, mustFacts(t, map[string]any{"age": 20}), nil)
	if !errors.Is(err, ErrContextCancelled) {
		t.Fatalf("Evaluate() error = %v, want ErrContextCancelled", err)
	}
	if report.Terminal != Cancelled || len(report.Fired) != 0 {
		t.Errorf("report = %+v", report)
	}
}

func TestEngine_Evaluate_InvalidInput(t *testing.T) {
	eng := newTestEngine()
	rs := mustCompile(t, adultRules)

	if _, err := eng.Evaluate(context.Background(), nil, facts.New(), nil); !errors.Is(err, ErrNilRuleSet) {
		t.Errorf("Evaluate(nil rule set) error = %v", err)
	}
	if _, err := eng.Evaluate(context.Background(), rs, nil, nil); err == nil {
		t.Error("Evaluate(nil facts) error = nil")
	}
	if _, err := eng.Evaluate(context.Background(), rs, facts.New(), DefaultConfig().WithMaxCycles(0)); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Evaluate(max cycles 0) error = %v, want ErrInvalidConfig", err)
	}
}

func TestEngine_Evaluate_Trace(t *testing.T) {
	rs := mustCompile(t, `
rules:
  - {name: hit, condition: {attr: x, op: exists}, actions: [{type: log}]}
  - {name: miss, condition: {attr: y, op: exists}, actions: [{type: log}]}
`)
	report, err := newTestEngine().Evaluate(context.Background(), rs, mustFacts(t, map[string]any{"x": 1}), DefaultConfig().WithTrace(true))
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if report.Trace == nil || len(report.Trace.Cycles) != 1 {
		t.Fatalf("Trace = %+v, want one cycle", report.Trace)
	}
	cycle := report.Trace.Cycles[0]
	wantMatches := []RuleMatch{{Rule: "hit", Matched: true}, {Rule: "miss", Matched: false}}
	if !reflect.DeepEqual(cycle.Matches, wantMatches) {
		t.Errorf("Matches = %+v, want %+v", cycle.Matches, wantMatches)
	}
	if !reflect.DeepEqual(cycle.Agenda, []string{"hit"}) || len(cycle.Actions) != 1 {
		t.Errorf("Agenda = %v, Actions = %v", cycle.Agenda, cycle.Actions)
	}
}

type recordingObserver struct {
	mu      sync.Mutex
	reports []*Report
}

func (o *recordingObserver) ObserveEvaluation(report *Report, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reports = append(o.reports, report)
}

func TestEngine_ConcurrentRunsShareRuleSet(t *testing.T) {
	rs := mustCompile(t, adultRules)
	observer := &recordingObserver{}
	eng := newTestEngine().WithObserver(observer)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(age int) {
			defer wg.Done()
			fc := facts.New()
			_ = fc.Set("age", facts.Int(int64(age)))
			if _, err := eng.Evaluate(context.Background(), rs, fc, nil); err != nil {
				t.Errorf("Evaluate() error = %v", err)
			}
			if want := age >= 18; fc.Has("tags") != want {
				t.Errorf("age %d: tagged = %v, want %v", age, fc.Has("tags"), want)
			}
		}(i * 3)
	}
	wg.Wait()

	if len(observer.reports) != 16 {
		t.Errorf("observer saw %d reports, want 16", len(observer.reports))
	}
}

func TestEngine_Evaluate_HandlersCannotMutateRuleSet(t *testing.T) {
	rs := mustCompile(t, `
rules:
  - name: put
    priority: 2
    condition: {attr: cfg, op: notExists}
    actions:
      - {type: put, params: {attr: cfg, value: {limit: 1, tags: [a]}}}
  - name: raise
    priority: 1
    condition: {attr: cfg.limit, op: eq, value: 1}
    actions:
      - {type: set, params: {attr: cfg.limit, value: 99}}
      - {type: append, params: {attr: cfg.tags, value: b}}
`)
	registry := NewDefaultRegistry(quietLogger())
	registry.MustRegister("put", HandlerFunc(func(_ context.Context, action *ActionSpec, fc *facts.Context) error {
		path, err := action.PathParam("attr")
		if err != nil {
			return err
		}
		// Both the copy from Param and the raw compiled value must be safe.
		if err := fc.SetPath(path, action.Param("value")); err != nil {
			return err
		}
		return fc.Set("raw", action.Params["value"])
	}))
	eng := NewEngine(registry, quietLogger())

	for run := 0; run < 2; run++ {
		fc := facts.New()
		if _, err := eng.Evaluate(context.Background(), rs, fc, DefaultConfig().WithMaxCycles(3)); err != nil {
			t.Fatalf("Evaluate() error = %v", err)
		}
		if got := fc.Get("cfg.limit"); !got.Equal(facts.Int(99)) {
			t.Errorf("run %d: cfg.limit = %v, want 99", run, got)
		}
		_ = fc.Set("raw.limit", facts.Int(7))
	}

	put, _ := rs.Get("put")
	want := facts.MustFromAny(map[string]any{"limit": 1, "tags": []any{"a"}})
	if got := put.Actions[0].Params["value"]; !got.Equal(want) {
		t.Errorf("compiled param = %v, want %v", got, want)
	}
}
