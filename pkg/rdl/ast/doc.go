// Package ast defines the syntax tree for rule definition files.
//
// A Document holds the rules of one file in declaration order. Every node
// keeps its source Location so that parse and compile errors can point at
// the offending line.
//
// # Structure
//
//	Document
//	└── Rules ([]*RuleDefinition)
//	    ├── Name, Description, Priority
//	    ├── Condition (*ConditionNode)
//	    │   ├── all / any (Children)
//	    │   ├── not (single child)
//	    │   ├── comparison (attr, op, value | attr2)
//	    │   ├── membership (attr, in | notIn, values)
//	    │   ├── pattern (attr, matches, pattern)
//	    │   └── existence (attr, exists | notExists)
//	    └── Actions ([]*Action)
//	        └── Params (map[string]*ValueNode)
//
// # Immutability
//
// AST nodes should be treated as immutable after construction. The engine
// compiles them into its own representation and never keeps references.
package ast
