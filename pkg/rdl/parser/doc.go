// Package parser reads rule definition files into ASTs.
//
// Rule files are YAML or JSON documents of the form
//
//	rules:
//	  - name: adult
//	    priority: 1
//	    condition:
//	      all:
//	        - {attr: age, op: gte, value: 18}
//	        - {attr: country, op: in, values: [GB, IE]}
//	    actions:
//	      - type: tag
//	        params: {value: adult}
//
// Both formats go through the same YAML node tree so that every AST node
// carries a line and column. The parser checks structure only: unknown
// fields, missing operands, operator spelling and value types. Rule name
// uniqueness and operator/operand compatibility are checked when the engine
// compiles the document.
//
// # Basic Usage
//
//	doc, err := parser.Parse("rules/discounts.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Configure limits:
//
//	p := parser.NewParser().
//	    WithMaxFileSize(1 << 20).
//	    WithMaxDepth(8)
//
// # Error Handling
//
// Structural problems are accumulated and returned together as an
// *errors.ErrorList, each entry with its location and source context.
//
// # Encoding
//
// Encode renders a Document back to YAML. Parsing the output yields an
// equivalent Document, which is how compiled rule sets are serialized.
package parser
