package engine

import (
	"fmt"
	"regexp"

	"mercator-hq/verdict/pkg/facts"
	"mercator-hq/verdict/pkg/rdl/ast"
)

// NodeKind tags the variant held by a Node.
type NodeKind uint8

const (
	NodeAll NodeKind = iota + 1
	NodeAny
	NodeNot
	NodeCompare     // Path op Literal
	NodeCompareAttr // Path op Other
	NodeMembership  // Path in|notIn Set
	NodePattern     // Path matches Pattern
	NodeExistence   // Path exists|notExists
)

// String returns the kind name.
func (k NodeKind) String() string {
	switch k {
	case NodeAll:
		return "all"
	case NodeAny:
		return "any"
	case NodeNot:
		return "not"
	case NodeCompare:
		return "compare"
	case NodeCompareAttr:
		return "compare-attr"
	case NodeMembership:
		return "membership"
	case NodePattern:
		return "pattern"
	case NodeExistence:
		return "existence"
	default:
		return fmt.Sprintf("node(%d)", uint8(k))
	}
}

// Operator is a compiled predicate operator.
type Operator uint8

const (
	OpEq Operator = iota + 1
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte
	OpIn
	OpNotIn
	OpMatches
	OpExists
	OpNotExists
)

var operatorNames = map[Operator]ast.Operator{
	OpEq:        ast.OperatorEq,
	OpNeq:       ast.OperatorNeq,
	OpLt:        ast.OperatorLt,
	OpLte:       ast.OperatorLte,
	OpGt:        ast.OperatorGt,
	OpGte:       ast.OperatorGte,
	OpIn:        ast.OperatorIn,
	OpNotIn:     ast.OperatorNotIn,
	OpMatches:   ast.OperatorMatches,
	OpExists:    ast.OperatorExists,
	OpNotExists: ast.OperatorNotExists,
}

var operatorsByName = func() map[ast.Operator]Operator {
	m := make(map[ast.Operator]Operator, len(operatorNames))
	for op, name := range operatorNames {
		m[name] = op
	}
	return m
}()

// String returns the operator as written in rule files.
func (o Operator) String() string {
	if name, ok := operatorNames[o]; ok {
		return string(name)
	}
	return fmt.Sprintf("op(%d)", uint8(o))
}

// Node is a compiled condition. Only the fields relevant to Kind are set.
// Nodes are immutable after compilation and safe for concurrent use.
type Node struct {
	Kind     NodeKind
	Op       Operator
	Path     facts.Path
	Literal  facts.Value
	Other    facts.Path
	Set      *ValueSet
	Pattern  *regexp.Regexp
	Children []*Node
	Location ast.Location
}

// evaluate reports whether n holds for fc. It never mutates fc or n.
func (n *Node) evaluate(fc *facts.Context) (bool, error) {
	switch n.Kind {
	case NodeAll:
		for _, child := range n.Children {
			matched, err := child.evaluate(fc)
			if err != nil || !matched {
				return false, err
			}
		}
		return true, nil

	case NodeAny:
		for _, child := range n.Children {
			matched, err := child.evaluate(fc)
			if err != nil {
				return false, err
			}
			if matched {
				return true, nil
			}
		}
		return false, nil

	case NodeNot:
		if len(n.Children) != 1 {
			return false, fmt.Errorf("not node has %d children", len(n.Children))
		}
		matched, err := n.Children[0].evaluate(fc)
		if err != nil {
			return false, err
		}
		return !matched, nil

	case NodeCompare:
		return compare(n.Op, fc.Lookup(n.Path), n.Literal), nil

	case NodeCompareAttr:
		return compare(n.Op, fc.Lookup(n.Path), fc.Lookup(n.Other)), nil

	case NodeMembership:
		member := n.Set.Contains(fc.Lookup(n.Path))
		if n.Op == OpNotIn {
			return !member, nil
		}
		return member, nil

	case NodePattern:
		s, ok := fc.Lookup(n.Path).AsString()
		if !ok {
			return false, nil
		}
		return n.Pattern.MatchString(s), nil

	case NodeExistence:
		present := !fc.Lookup(n.Path).IsAbsent()
		if n.Op == OpNotExists {
			return !present, nil
		}
		return present, nil

	default:
		return false, fmt.Errorf("unrecognized condition node kind %s", n.Kind)
	}
}

// Evaluate reports whether the condition holds for fc.
func (n *Node) Evaluate(fc *facts.Context) (bool, error) {
	return n.evaluate(fc)
}

// Depth returns the nesting depth of the tree rooted at n.
func (n *Node) Depth() int {
	deepest := 0
	for _, child := range n.Children {
		if d := child.Depth(); d > deepest {
			deepest = d
		}
	}
	return deepest + 1
}
