// Verdict is a forward-chaining rule engine.
//
// It evaluates declarative rule sets against fact documents, records runs
// to a history store and exposes metrics and health endpoints while it
// serves a stream of facts.
//
// Usage:
//
//	# Check rule files
//	verdict lint --dir rules/
//
//	# Evaluate one fact document
//	verdict eval --rules rules/ --facts order.json
//
//	# Evaluate a JSON Lines stream with hot reload, metrics and history
//	verdict run --config verdict.yaml < facts.jsonl
//
//	# Inspect recorded runs
//	verdict history list --since 24h
package main

import "os"

func main() {
	os.Exit(Execute())
}
