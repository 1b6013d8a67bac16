package engine

import (
	"errors"
	"math"
	"testing"

	"mercator-hq/verdict/pkg/facts"
)

func TestCompare(t *testing.T) {
	list := facts.List(facts.Int(1))
	obj := facts.Object(map[string]facts.Value{"a": facts.Int(1)})

	tests := []struct {
		name        string
		op          Operator
		left, right facts.Value
		want        bool
	}{
		{name: "int eq", op: OpEq, left: facts.Int(5), right: facts.Int(5), want: true},
		{name: "int neq", op: OpNeq, left: facts.Int(5), right: facts.Int(6), want: true},
		{name: "int lt", op: OpLt, left: facts.Int(4), right: facts.Int(5), want: true},
		{name: "int lte equal", op: OpLte, left: facts.Int(5), right: facts.Int(5), want: true},
		{name: "int gt", op: OpGt, left: facts.Int(4), right: facts.Int(5), want: false},
		{name: "int gte", op: OpGte, left: facts.Int(20), right: facts.Int(18), want: true},
		{name: "large ints exact", op: OpEq, left: facts.Int(math.MaxInt64), right: facts.Int(math.MaxInt64 - 1), want: false},
		{name: "int double eq", op: OpEq, left: facts.Int(3), right: facts.Double(3.0), want: true},
		{name: "int double lt", op: OpLt, left: facts.Int(3), right: facts.Double(3.5), want: true},
		{name: "double int gte", op: OpGte, left: facts.Double(2.5), right: facts.Int(3), want: false},
		{name: "NaN eq", op: OpEq, left: facts.Double(math.NaN()), right: facts.Double(math.NaN()), want: false},
		{name: "NaN neq", op: OpNeq, left: facts.Double(math.NaN()), right: facts.Int(1), want: true},
		{name: "string eq", op: OpEq, left: facts.String("a"), right: facts.String("a"), want: true},
		{name: "string lt", op: OpLt, left: facts.String("apple"), right: facts.String("banana"), want: true},
		{name: "string gte", op: OpGte, left: facts.String("b"), right: facts.String("a"), want: true},
		{name: "bool eq", op: OpEq, left: facts.Bool(true), right: facts.Bool(true), want: true},
		{name: "bool neq", op: OpNeq, left: facts.Bool(true), right: facts.Bool(false), want: true},
		{name: "bool lt", op: OpLt, left: facts.Bool(false), right: facts.Bool(true), want: false},
		{name: "list eq", op: OpEq, left: list, right: facts.List(facts.Double(1)), want: true},
		{name: "object neq", op: OpNeq, left: obj, right: facts.Object(nil), want: true},
		{name: "object gt", op: OpGt, left: obj, right: obj, want: false},
		{name: "string vs int eq", op: OpEq, left: facts.String("5"), right: facts.Int(5), want: false},
		{name: "string vs int neq", op: OpNeq, left: facts.String("5"), right: facts.Int(5), want: false},
		{name: "bool vs int neq", op: OpNeq, left: facts.Bool(true), right: facts.Int(1), want: false},
		{name: "absent eq", op: OpEq, left: facts.Absent(), right: facts.Int(5), want: false},
		{name: "absent neq", op: OpNeq, left: facts.Absent(), right: facts.Int(5), want: false},
		{name: "absent both", op: OpEq, left: facts.Absent(), right: facts.Absent(), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := compare(tt.op, tt.left, tt.right); got != tt.want {
				t.Errorf("compare(%s, %v, %v) = %v, want %v", tt.op, tt.left, tt.right, got, tt.want)
			}
		})
	}
}

func TestValueSet_Contains(t *testing.T) {
	set := NewValueSet([]facts.Value{
		facts.String("GB"),
		facts.Int(3),
		facts.Double(2.0),
		facts.Double(2.5),
		facts.Bool(true),
	})

	tests := []struct {
		name string
		v    facts.Value
		want bool
	}{
		{name: "string", v: facts.String("GB"), want: true},
		{name: "string miss", v: facts.String("gb"), want: false},
		{name: "int", v: facts.Int(3), want: true},
		{name: "double equal to int member", v: facts.Double(3.0), want: true},
		{name: "int equal to double member", v: facts.Int(2), want: true},
		{name: "fractional double", v: facts.Double(2.5), want: true},
		{name: "bool", v: facts.Bool(true), want: true},
		{name: "bool miss", v: facts.Bool(false), want: false},
		{name: "string of number", v: facts.String("3"), want: false},
		{name: "absent", v: facts.Absent(), want: false},
		{name: "list", v: facts.List(facts.String("GB")), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := set.Contains(tt.v); got != tt.want {
				t.Errorf("Contains(%v) = %v, want %v", tt.v, got, tt.want)
			}
		})
	}

	if set.Len() != 5 {
		t.Errorf("Len() = %d, want 5", set.Len())
	}
}

func TestNode_Evaluate(t *testing.T) {
	fc := mustFacts(t, map[string]any{
		"age":   20,
		"email": "ada@example.com",
		"user":  map[string]any{"country": "GB", "limit": 100, "spent": 40.5},
		"tags":  []any{"vip"},
	})

	tests := []struct {
		name string
		cond string
		want bool
	}{
		{name: "gte", cond: `{attr: age, op: gte, value: 18}`, want: true},
		{name: "absent eq", cond: `{attr: x.y, op: eq, value: 5}`, want: false},
		{name: "absent neq", cond: `{attr: x.y, op: neq, value: 5}`, want: false},
		{name: "absent notExists", cond: `{attr: x.y, op: notExists}`, want: true},
		{name: "absent exists", cond: `{attr: x.y, op: exists}`, want: false},
		{name: "absent in", cond: `{attr: x.y, op: in, values: [1]}`, want: false},
		{name: "absent notIn", cond: `{attr: x.y, op: notIn, values: [1]}`, want: true},
		{name: "absent matches", cond: `{attr: x.y, op: matches, pattern: ".*"}`, want: false},
		{name: "through scalar", cond: `{attr: age.years, op: exists}`, want: false},
		{name: "nested in", cond: `{attr: user.country, op: in, values: [GB, IE]}`, want: true},
		{name: "nested notIn", cond: `{attr: user.country, op: notIn, values: [FR]}`, want: true},
		{name: "matches", cond: `{attr: email, op: matches, pattern: "@example\\.com$"}`, want: true},
		{name: "matches non-string", cond: `{attr: age, op: matches, pattern: "2"}`, want: false},
		{name: "attr2 gt", cond: `{attr: user.limit, op: gt, attr2: user.spent}`, want: true},
		{name: "attr2 absent", cond: `{attr: user.limit, op: gt, attr2: user.missing}`, want: false},
		{name: "attr2 kind mismatch", cond: `{attr: email, op: neq, attr2: age}`, want: false},
		{name: "list eq literal", cond: `{attr: tags, op: eq, value: [vip]}`, want: true},
		{name: "all", cond: `{all: [{attr: age, op: gt, value: 18}, {attr: email, op: exists}]}`, want: true},
		{name: "all short", cond: `{all: [{attr: age, op: lt, value: 18}, {attr: email, op: exists}]}`, want: false},
		{name: "any", cond: `{any: [{attr: age, op: lt, value: 18}, {attr: email, op: exists}]}`, want: true},
		{name: "not", cond: `{not: {attr: age, op: lt, value: 18}}`, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := mustCompile(t, "rules:\n  - name: r\n    condition: "+tt.cond+"\n    actions: [{type: log}]\n")
			rule, _ := rs.Get("r")
			got, err := rule.Matches(fc)
			if err != nil {
				t.Fatalf("Matches() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Matches(%s) = %v, want %v", tt.cond, got, tt.want)
			}
		})
	}
}

func TestNode_UnknownKind(t *testing.T) {
	rule := &Rule{Name: "broken", Condition: &Node{Kind: NodeKind(99)}}
	_, err := rule.Matches(facts.New())

	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("Matches() error = %v, want *EvaluationError", err)
	}
	if evalErr.Rule != "broken" {
		t.Errorf("EvaluationError.Rule = %q, want %q", evalErr.Rule, "broken")
	}
}
