package engine

import (
	"fmt"
	"regexp"

	"mercator-hq/verdict/pkg/facts"
	"mercator-hq/verdict/pkg/rdl/ast"
	rdlErrors "mercator-hq/verdict/pkg/rdl/errors"
	"mercator-hq/verdict/pkg/rdl/parser"
)

// ActionLookup reports which action types have handlers. A Registry
// satisfies it.
type ActionLookup interface {
	Has(actionType string) bool
	Names() []string
}

// CompileOptions contains limits and checks applied during compilation.
type CompileOptions struct {
	// MaxDepth is the maximum condition nesting depth.
	// Default: 10.
	MaxDepth int

	// MaxRules is the maximum number of rules in one rule set.
	// Default: 10000.
	MaxRules int

	// Actions, when set, makes compilation fail for action types that have
	// no handler. When nil, unknown actions surface at dispatch time.
	// Default: nil.
	Actions ActionLookup
}

// DefaultCompileOptions returns the default compile options.
func DefaultCompileOptions() *CompileOptions {
	return &CompileOptions{
		MaxDepth: parser.DefaultMaxDepth,
		MaxRules: 10000,
	}
}

// WithActions enables strict action checking against lookup.
func (o *CompileOptions) WithActions(lookup ActionLookup) *CompileOptions {
	o.Actions = lookup
	return o
}

// WithMaxDepth sets the maximum condition nesting depth.
func (o *CompileOptions) WithMaxDepth(depth int) *CompileOptions {
	o.MaxDepth = depth
	return o
}

// WithMaxRules sets the maximum number of rules.
func (o *CompileOptions) WithMaxRules(max int) *CompileOptions {
	o.MaxRules = max
	return o
}

// CompileDocument compiles every rule of a parsed document.
func CompileDocument(doc *ast.Document, opts *CompileOptions) (*RuleSet, error) {
	if doc == nil {
		return nil, &CompileError{Message: "document is nil"}
	}
	return Compile(doc.Rules, opts)
}

// Compile validates rule definitions and builds an immutable RuleSet.
// It stops at the first invalid definition and never returns a partial
// rule set. Compile performs no I/O.
func Compile(defs []*ast.RuleDefinition, opts *CompileOptions) (*RuleSet, error) {
	if opts == nil {
		opts = DefaultCompileOptions()
	}
	if opts.MaxRules > 0 && len(defs) > opts.MaxRules {
		return nil, &CompileError{
			Message: fmt.Sprintf("rule set has %d rules, maximum is %d", len(defs), opts.MaxRules),
		}
	}

	c := &compiler{opts: opts}
	rs := &RuleSet{
		rules:  make([]*Rule, 0, len(defs)),
		byName: make(map[string]*Rule, len(defs)),
	}

	for i, def := range defs {
		rule, err := c.compileRule(def, i)
		if err != nil {
			return nil, err
		}
		if first, dup := rs.byName[rule.Name]; dup {
			return nil, &CompileError{
				Rule:     rule.Name,
				Location: rule.Location,
				Message:  fmt.Sprintf("duplicate rule name, first declared as rule %d at %s", first.Index, first.Location),
			}
		}
		rs.rules = append(rs.rules, rule)
		rs.byName[rule.Name] = rule
	}

	rs.version = computeVersion(rs.Definitions())
	return rs, nil
}

// Validate checks every rule definition and returns all compile errors
// instead of stopping at the first. A nil result means Compile would
// succeed.
func Validate(defs []*ast.RuleDefinition, opts *CompileOptions) []error {
	if opts == nil {
		opts = DefaultCompileOptions()
	}

	var errs []error
	if opts.MaxRules > 0 && len(defs) > opts.MaxRules {
		errs = append(errs, &CompileError{
			Message: fmt.Sprintf("rule set has %d rules, maximum is %d", len(defs), opts.MaxRules),
		})
	}

	c := &compiler{opts: opts}
	seen := make(map[string]*Rule, len(defs))
	for i, def := range defs {
		rule, err := c.compileRule(def, i)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if first, dup := seen[rule.Name]; dup {
			errs = append(errs, &CompileError{
				Rule:     rule.Name,
				Location: rule.Location,
				Message:  fmt.Sprintf("duplicate rule name, first declared as rule %d at %s", first.Index, first.Location),
			})
			continue
		}
		seen[rule.Name] = rule
	}
	return errs
}

type compiler struct {
	opts *CompileOptions
}

func (c *compiler) compileRule(def *ast.RuleDefinition, index int) (*Rule, error) {
	if def == nil {
		return nil, &CompileError{Rule: fmt.Sprintf("#%d", index), Message: "rule definition is nil"}
	}
	if def.Name == "" {
		return nil, &CompileError{
			Rule:     fmt.Sprintf("#%d", index),
			Location: def.Location,
			Message:  "rule name is empty",
		}
	}

	rule := &Rule{
		Name:        def.Name,
		Description: def.Description,
		Priority:    def.Priority,
		Index:       index,
		Location:    def.Location,
	}

	if def.Condition == nil {
		return nil, &CompileError{Rule: def.Name, Node: "condition", Location: def.Location, Message: "rule has no condition"}
	}
	cond, err := c.compileCondition(def, def.Condition, "condition", 1)
	if err != nil {
		return nil, err
	}
	rule.Condition = cond

	if len(def.Actions) == 0 {
		return nil, &CompileError{Rule: def.Name, Node: "actions", Location: def.Location, Message: "rule has no actions"}
	}
	rule.Actions = make([]*ActionSpec, len(def.Actions))
	for i, action := range def.Actions {
		spec, err := c.compileAction(def, action, fmt.Sprintf("actions[%d]", i))
		if err != nil {
			return nil, err
		}
		rule.Actions[i] = spec
	}

	return rule, nil
}

func (c *compiler) compileAction(def *ast.RuleDefinition, action *ast.Action, node string) (*ActionSpec, error) {
	fail := func(loc ast.Location, format string, args ...any) error {
		return &CompileError{Rule: def.Name, Node: node, Location: loc, Message: fmt.Sprintf(format, args...)}
	}

	if action == nil {
		return nil, fail(def.Location, "action is nil")
	}
	if action.Type == "" {
		return nil, fail(action.Location, "action type is empty")
	}
	if c.opts.Actions != nil && !c.opts.Actions.Has(action.Type) {
		msg := fmt.Sprintf("unknown action type %q", action.Type)
		if hint := rdlErrors.SuggestActionType(action.Type, c.opts.Actions.Names()); hint != "" {
			msg += "; " + hint
		}
		return nil, &CompileError{Rule: def.Name, Node: node, Location: action.Location, Message: msg, Cause: ErrUnknownAction}
	}

	spec := &ActionSpec{
		Type:     action.Type,
		Params:   make(map[string]facts.Value, len(action.Params)),
		Location: action.Location,
	}
	for key, param := range action.Params {
		if param.IsNull() {
			return nil, fail(action.Location, "parameter %q is null", key)
		}
		v, err := facts.FromAny(param.Value)
		if err != nil {
			return nil, &CompileError{Rule: def.Name, Node: node, Location: param.Location, Message: fmt.Sprintf("parameter %q", key), Cause: err}
		}
		spec.Params[key] = v
	}
	return spec, nil
}

func (c *compiler) compileCondition(def *ast.RuleDefinition, cond *ast.ConditionNode, node string, depth int) (*Node, error) {
	fail := func(format string, args ...any) error {
		return &CompileError{Rule: def.Name, Node: node, Location: cond.Location, Message: fmt.Sprintf(format, args...)}
	}

	if cond == nil {
		return nil, &CompileError{Rule: def.Name, Node: node, Location: def.Location, Message: "condition is nil"}
	}
	if c.opts.MaxDepth > 0 && depth > c.opts.MaxDepth {
		return nil, fail("condition nesting exceeds maximum depth %d", c.opts.MaxDepth)
	}

	n := &Node{Location: cond.Location}

	switch cond.Type {
	case ast.ConditionTypeAll, ast.ConditionTypeAny:
		n.Kind = NodeAll
		if cond.Type == ast.ConditionTypeAny {
			n.Kind = NodeAny
		}
		if len(cond.Children) == 0 {
			return nil, fail("%s has no conditions", cond.Type)
		}
		n.Children = make([]*Node, len(cond.Children))
		for i, child := range cond.Children {
			compiled, err := c.compileCondition(def, child, fmt.Sprintf("%s.%s[%d]", node, cond.Type, i), depth+1)
			if err != nil {
				return nil, err
			}
			n.Children[i] = compiled
		}
		return n, nil

	case ast.ConditionTypeNot:
		if len(cond.Children) != 1 {
			return nil, fail("not requires exactly one condition, got %d", len(cond.Children))
		}
		child, err := c.compileCondition(def, cond.Children[0], node+".not", depth+1)
		if err != nil {
			return nil, err
		}
		n.Kind = NodeNot
		n.Children = []*Node{child}
		return n, nil
	}

	op, ok := operatorsByName[cond.Operator]
	if !ok {
		return nil, fail("unknown operator %q", cond.Operator)
	}
	if cond.Operator.ConditionType() != cond.Type {
		return nil, fail("operator %q cannot be used in a %s condition", cond.Operator, cond.Type)
	}
	path, err := facts.ParsePath(cond.Attr)
	if err != nil {
		return nil, &CompileError{Rule: def.Name, Node: node, Location: cond.Location, Message: "invalid attribute path", Cause: err}
	}
	n.Op = op
	n.Path = path

	switch cond.Type {
	case ast.ConditionTypeComparison:
		if cond.Attr2 != "" {
			if cond.Value != nil {
				return nil, fail("comparison has both a literal and a second attribute")
			}
			other, err := facts.ParsePath(cond.Attr2)
			if err != nil {
				return nil, &CompileError{Rule: def.Name, Node: node, Location: cond.Location, Message: "invalid second attribute path", Cause: err}
			}
			n.Kind = NodeCompareAttr
			n.Other = other
			return n, nil
		}
		if cond.Value.IsNull() {
			return nil, fail("comparison %s on %q has no literal", cond.Operator, cond.Attr)
		}
		literal, err := facts.FromAny(cond.Value.Value)
		if err != nil {
			return nil, &CompileError{Rule: def.Name, Node: node, Location: cond.Value.Location, Message: "invalid literal", Cause: err}
		}
		if op >= OpLt && op <= OpGte && !(literal.Kind().IsNumeric() || literal.Kind() == facts.KindString) {
			return nil, fail("operator %s cannot order a %s literal", cond.Operator, literal.Kind())
		}
		n.Kind = NodeCompare
		n.Literal = literal
		return n, nil

	case ast.ConditionTypeMembership:
		if len(cond.Values) == 0 {
			return nil, fail("%s on %q has an empty value list", cond.Operator, cond.Attr)
		}
		items := make([]facts.Value, len(cond.Values))
		for i, raw := range cond.Values {
			if raw.IsNull() {
				return nil, fail("%s value %d is null", cond.Operator, i)
			}
			v, err := facts.FromAny(raw.Value)
			if err != nil {
				return nil, &CompileError{Rule: def.Name, Node: node, Location: raw.Location, Message: "invalid literal", Cause: err}
			}
			if !v.Kind().IsScalar() {
				return nil, fail("%s value %d is a %s, want a scalar", cond.Operator, i, v.Kind())
			}
			items[i] = v
		}
		n.Kind = NodeMembership
		n.Set = NewValueSet(items)
		return n, nil

	case ast.ConditionTypePattern:
		re, err := regexp.Compile(cond.Pattern)
		if err != nil {
			return nil, &CompileError{Rule: def.Name, Node: node, Location: cond.Location, Message: fmt.Sprintf("invalid pattern %q", cond.Pattern), Cause: err}
		}
		n.Kind = NodePattern
		n.Pattern = re
		return n, nil

	case ast.ConditionTypeExistence:
		n.Kind = NodeExistence
		return n, nil
	}

	return nil, fail("unknown condition type %q", cond.Type)
}
