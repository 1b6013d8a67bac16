// Package rdl holds the Rule Definition Language used to describe rule sets.
//
// RDL is a declarative YAML (or JSON) format. A document lists rules; each
// rule pairs a condition tree over fact attributes with an ordered list of
// actions that update the facts when the rule fires.
//
// # Architecture
//
// The package is organized into subpackages:
//
// - ast: syntax tree for parsed documents, every node carrying its location
// - parser: YAML/JSON parsing into the AST, and encoding back to YAML
// - errors: located errors with source context and spelling suggestions
//
// Semantic checks (duplicate names, operator and operand compatibility,
// unknown action types) are done when the engine compiles a document, see
// package engine.
//
// # Basic Usage
//
//	import (
//	    "mercator-hq/verdict/pkg/engine"
//	    "mercator-hq/verdict/pkg/rdl/parser"
//	)
//
//	doc, err := parser.Parse("rules/discounts.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	rs, err := engine.CompileDocument(doc, engine.DefaultCompileOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("Rules:", rs.Len(), "Version:", rs.Version())
//
// # Document Structure
//
//	rules:
//	  - name: loyal-customer
//	    description: Long-standing customers get a discount
//	    priority: 10
//	    condition:
//	      all:
//	        - {attr: customer.years, op: gte, value: 5}
//	        - {attr: customer.country, op: in, values: [GB, IE]}
//	        - not: {attr: customer.flags, op: exists}
//	    actions:
//	      - type: set
//	        params: {attr: order.discount, value: 0.1}
//	      - type: tag
//	        params: {value: loyal}
//
// # Conditions
//
// Leaf conditions compare an attribute path against a literal (value), a
// second attribute (attr2), a list of literals (values), a regular
// expression (pattern), or test presence:
//
//	eq, neq, lt, lte, gt, gte     comparison
//	in, notIn                     membership
//	matches                       pattern
//	exists, notExists             existence
//
// Leaves combine with all, any and not. Nesting depth is bounded by the
// parser and compile options.
//
// # Actions
//
// An action names a handler type and passes it parameters. The built-in
// handlers are set, tag, increment, append, remove and log; embedders can
// register more on an engine.Registry.
//
// # Errors
//
// Parse errors are returned as *errors.ErrorList. Each entry carries the
// file, line and column, the offending source lines and, where a likely
// spelling can be found, a hint.
package rdl
