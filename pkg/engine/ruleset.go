package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"mercator-hq/verdict/pkg/facts"
	"mercator-hq/verdict/pkg/rdl/ast"
	"mercator-hq/verdict/pkg/rdl/parser"
)

// ActionSpec is a compiled action invocation. The engine never interprets
// Params; handlers do.
type ActionSpec struct {
	Type     string
	Params   map[string]facts.Value
	Location ast.Location
}

// Param returns a copy of the parameter value for the given key, or the
// absent value. Rule sets are shared between runs, so handlers never see
// the compiled value itself.
func (a *ActionSpec) Param(key string) facts.Value {
	return a.Params[key].Clone()
}

// HasParam returns true if the action has a parameter with the given key.
func (a *ActionSpec) HasParam(key string) bool {
	_, ok := a.Params[key]
	return ok
}

// StringParam returns the string value of a parameter.
// The boolean is false if the parameter doesn't exist or is not a string.
func (a *ActionSpec) StringParam(key string) (string, bool) {
	return a.Params[key].AsString()
}

// PathParam parses a parameter holding a dotted attribute path.
func (a *ActionSpec) PathParam(key string) (facts.Path, error) {
	s, ok := a.StringParam(key)
	if !ok {
		return nil, fmt.Errorf("parameter %q must be an attribute path string", key)
	}
	return facts.ParsePath(s)
}

// Rule is a compiled rule. Index is its position in the rule set and serves
// as the conflict-resolution tie-break.
type Rule struct {
	Name        string
	Description string
	Priority    int
	Condition   *Node
	Actions     []*ActionSpec
	Index       int
	Location    ast.Location
}

// Matches reports whether the rule's condition holds for fc.
func (r *Rule) Matches(fc *facts.Context) (bool, error) {
	matched, err := r.Condition.evaluate(fc)
	if err != nil {
		return false, &EvaluationError{Rule: r.Name, Message: err.Error()}
	}
	return matched, nil
}

// RuleSet is an immutable, ordered collection of compiled rules. It is safe
// to share across concurrent evaluation runs.
type RuleSet struct {
	rules   []*Rule
	byName  map[string]*Rule
	version string
}

// Rules returns the rules in declaration order. The slice must not be
// modified.
func (rs *RuleSet) Rules() []*Rule {
	return rs.rules
}

// Len returns the number of rules.
func (rs *RuleSet) Len() int {
	return len(rs.rules)
}

// Get returns the rule with the given name.
func (rs *RuleSet) Get(name string) (*Rule, bool) {
	r, ok := rs.byName[name]
	return r, ok
}

// Names returns the rule names in declaration order.
func (rs *RuleSet) Names() []string {
	names := make([]string, len(rs.rules))
	for i, r := range rs.rules {
		names[i] = r.Name
	}
	return names
}

// Version is a short content hash of the rule set's structural
// description. Two rule sets compiled from equivalent definitions share it.
func (rs *RuleSet) Version() string {
	return rs.version
}

// Definitions reconstructs rule definitions from the compiled rules.
// Compiling them again yields a rule set that matches identically.
func (rs *RuleSet) Definitions() []*ast.RuleDefinition {
	defs := make([]*ast.RuleDefinition, len(rs.rules))
	for i, r := range rs.rules {
		def := &ast.RuleDefinition{
			Name:        r.Name,
			Description: r.Description,
			Priority:    r.Priority,
			Condition:   r.Condition.definition(),
			Actions:     make([]*ast.Action, len(r.Actions)),
			Location:    r.Location,
		}
		for j, a := range r.Actions {
			action := &ast.Action{
				Type:     a.Type,
				Params:   make(map[string]*ast.ValueNode, len(a.Params)),
				Location: a.Location,
			}
			for k, v := range a.Params {
				action.Params[k] = ast.NewValue(v.Interface())
			}
			def.Actions[j] = action
		}
		defs[i] = def
	}
	return defs
}

// Document wraps Definitions in a document suitable for parser.Encode.
func (rs *RuleSet) Document() *ast.Document {
	return &ast.Document{Rules: rs.Definitions()}
}

// Encode serializes the rule set as a YAML rule document.
func (rs *RuleSet) Encode() ([]byte, error) {
	return parser.Encode(rs.Document())
}

func (n *Node) definition() *ast.ConditionNode {
	cond := &ast.ConditionNode{Location: n.Location}
	switch n.Kind {
	case NodeAll, NodeAny, NodeNot:
		cond.Type = map[NodeKind]ast.ConditionType{
			NodeAll: ast.ConditionTypeAll,
			NodeAny: ast.ConditionTypeAny,
			NodeNot: ast.ConditionTypeNot,
		}[n.Kind]
		cond.Children = make([]*ast.ConditionNode, len(n.Children))
		for i, child := range n.Children {
			cond.Children[i] = child.definition()
		}
		return cond
	}

	cond.Attr = n.Path.String()
	cond.Operator = operatorNames[n.Op]
	cond.Type = cond.Operator.ConditionType()
	switch n.Kind {
	case NodeCompare:
		cond.Value = ast.NewValue(n.Literal.Interface())
	case NodeCompareAttr:
		cond.Attr2 = n.Other.String()
	case NodeMembership:
		for _, item := range n.Set.Items() {
			cond.Values = append(cond.Values, ast.NewValue(item.Interface()))
		}
	case NodePattern:
		cond.Pattern = n.Pattern.String()
	}
	return cond
}

func computeVersion(defs []*ast.RuleDefinition) string {
	data, err := parser.Encode(&ast.Document{Rules: defs})
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:6])
}
