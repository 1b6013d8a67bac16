package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"mercator-hq/verdict/pkg/facts"
)

func rulesWithPriorities(priorities []int) string {
	var b strings.Builder
	b.WriteString("rules:\n")
	for i, p := range priorities {
		fmt.Fprintf(&b, "  - {name: r%d, priority: %d, condition: {attr: x, op: exists}, actions: [{type: log}]}\n", i, p)
	}
	return b.String()
}

func TestProperty_FiringOrderIsPriorityThenDeclaration(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("fired rules follow priority then declaration order", prop.ForAll(
		func(priorities []int) bool {
			if len(priorities) == 0 {
				return true
			}
			rs := mustCompile(t, rulesWithPriorities(priorities))
			report, err := newTestEngine().Evaluate(context.Background(), rs, mustFacts(t, map[string]any{"x": 1}), nil)
			if err != nil {
				return false
			}

			want := make([]int, len(priorities))
			for i := range want {
				want[i] = i
			}
			sort.SliceStable(want, func(a, b int) bool {
				return priorities[want[a]] > priorities[want[b]]
			})

			if len(report.Fired) != len(want) {
				return false
			}
			for i, idx := range want {
				if report.Fired[i].Rule != fmt.Sprintf("r%d", idx) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(-3, 3)),
	))

	properties.TestingRun(t)
}

func TestProperty_AbsentAttributeNeverMatches(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	operand := map[string]string{
		"eq": "value: 1", "neq": "value: 1", "lt": "value: 1", "lte": "value: 1",
		"gt": "value: 1", "gte": "value: 1", "in": "values: [1, a]", "notIn": "values: [1, a]",
		"matches": "pattern: '.*'", "exists": "", "notExists": "",
	}

	properties.Property("only notIn and notExists hold for absent attributes", prop.ForAll(
		func(op string, present int) bool {
			cond := fmt.Sprintf("{attr: missing.attr, op: %s", op)
			if o := operand[op]; o != "" {
				cond += ", " + o
			}
			cond += "}"
			rs := mustCompile(t, "rules:\n  - {name: r, condition: "+cond+", actions: [{type: log}]}\n")

			matched, err := rs.Rules()[0].Matches(mustFacts(t, map[string]any{"present": present}))
			if err != nil {
				return false
			}
			return matched == (op == "notIn" || op == "notExists")
		},
		gen.OneConstOf("eq", "neq", "lt", "lte", "gt", "gte", "in", "notIn", "matches", "exists", "notExists"),
		gen.IntRange(-100, 100),
	))

	properties.TestingRun(t)
}

func TestProperty_NumericComparisonIgnoresRepresentation(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("int and whole double literals agree", prop.ForAll(
		func(fact, literal int, op string) bool {
			asInt := mustCompile(t, fmt.Sprintf("rules:\n  - {name: r, condition: {attr: n, op: %s, value: %d}, actions: [{type: log}]}\n", op, literal))
			asDouble := mustCompile(t, fmt.Sprintf("rules:\n  - {name: r, condition: {attr: n, op: %s, value: %d.0}, actions: [{type: log}]}\n", op, literal))
			fc := mustFacts(t, map[string]any{"n": fact})

			a, errA := asInt.Rules()[0].Matches(fc)
			b, errB := asDouble.Rules()[0].Matches(fc)
			return errA == nil && errB == nil && a == b
		},
		gen.IntRange(-50, 50),
		gen.IntRange(-50, 50),
		gen.OneConstOf("eq", "neq", "lt", "lte", "gt", "gte"),
	))

	properties.TestingRun(t)
}

func TestProperty_EvaluationIsDeterministic(t *testing.T) {
	rs := mustCompile(t, `
rules:
  - name: bump
    priority: 2
    condition: {attr: n, op: lt, value: 20}
    actions: [{type: increment, params: {attr: n, by: 3}}]
  - name: label-high
    condition: {attr: n, op: gte, value: 10}
    actions: [{type: tag, params: {value: high}}]
  - name: label-odd
    condition: {attr: parity, op: in, values: [1, -1]}
    actions: [{type: append, params: {attr: seen, value: odd}}]
`)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("same input yields same firings and facts", prop.ForAll(
		func(n int, cycles int) bool {
			run := func() (*Report, *facts.Context) {
				fc := mustFacts(t, map[string]any{"n": n, "parity": n % 2})
				report, err := newTestEngine().Evaluate(context.Background(), rs, fc, DefaultConfig().WithMaxCycles(cycles))
				if err != nil {
					t.Fatalf("Evaluate() error = %v", err)
				}
				return report, fc
			}
			r1, f1 := run()
			r2, f2 := run()

			if r1.Terminal != r2.Terminal || r1.Cycles != r2.Cycles {
				return false
			}
			if strings.Join(r1.FiredRules(), ",") != strings.Join(r2.FiredRules(), ",") {
				return false
			}
			return f1.Value().Equal(f2.Value()) && r1.Cycles <= cycles
		},
		gen.IntRange(-30, 30),
		gen.IntRange(1, 8),
	))

	properties.TestingRun(t)
}
