package ast

// ConditionType is the form of a condition node.
type ConditionType string

const (
	ConditionTypeAll        ConditionType = "all"        // AND of children
	ConditionTypeAny        ConditionType = "any"        // OR of children
	ConditionTypeNot        ConditionType = "not"        // negation of the single child
	ConditionTypeComparison ConditionType = "comparison" // attr op value|attr2
	ConditionTypeMembership ConditionType = "membership" // attr in|notIn values
	ConditionTypePattern    ConditionType = "pattern"    // attr matches pattern
	ConditionTypeExistence  ConditionType = "existence"  // attr exists|notExists
)

// Operator is a predicate operator as written in rule files.
type Operator string

const (
	OperatorEq        Operator = "eq"
	OperatorNeq       Operator = "neq"
	OperatorLt        Operator = "lt"
	OperatorLte       Operator = "lte"
	OperatorGt        Operator = "gt"
	OperatorGte       Operator = "gte"
	OperatorIn        Operator = "in"
	OperatorNotIn     Operator = "notIn"
	OperatorMatches   Operator = "matches"
	OperatorExists    Operator = "exists"
	OperatorNotExists Operator = "notExists"
)

// Operators lists every supported operator in documentation order.
var Operators = []Operator{
	OperatorEq, OperatorNeq, OperatorLt, OperatorLte, OperatorGt, OperatorGte,
	OperatorIn, OperatorNotIn, OperatorMatches, OperatorExists, OperatorNotExists,
}

// ConditionType returns the condition form the operator belongs to, or ""
// for an unknown operator.
func (o Operator) ConditionType() ConditionType {
	switch o {
	case OperatorEq, OperatorNeq, OperatorLt, OperatorLte, OperatorGt, OperatorGte:
		return ConditionTypeComparison
	case OperatorIn, OperatorNotIn:
		return ConditionTypeMembership
	case OperatorMatches:
		return ConditionTypePattern
	case OperatorExists, OperatorNotExists:
		return ConditionTypeExistence
	default:
		return ""
	}
}

// IsOrdering returns true for lt, lte, gt and gte.
func (o Operator) IsOrdering() bool {
	switch o {
	case OperatorLt, OperatorLte, OperatorGt, OperatorGte:
		return true
	}
	return false
}

// ConditionNode is one node of a rule's condition tree.
//
// Leaf nodes carry Attr and Operator. A comparison compares against either
// Value or the attribute named by Attr2. Logical nodes carry Children; a not
// node has exactly one child.
type ConditionNode struct {
	Type     ConditionType
	Attr     string
	Operator Operator
	Value    *ValueNode
	Attr2    string
	Values   []*ValueNode
	Pattern  string
	Children []*ConditionNode
	Location Location
}

// IsLogical returns true for all, any and not nodes.
func (c *ConditionNode) IsLogical() bool {
	return c.Type == ConditionTypeAll || c.Type == ConditionTypeAny || c.Type == ConditionTypeNot
}

// IsLeaf returns true for predicate nodes.
func (c *ConditionNode) IsLeaf() bool {
	return !c.IsLogical()
}

// Depth returns the nesting depth of the tree rooted at c. A leaf has depth 1.
func (c *ConditionNode) Depth() int {
	if c == nil {
		return 0
	}
	deepest := 0
	for _, child := range c.Children {
		if d := child.Depth(); d > deepest {
			deepest = d
		}
	}
	return deepest + 1
}
