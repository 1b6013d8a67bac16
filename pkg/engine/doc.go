// Package engine compiles rule definitions and evaluates them against fact
// contexts.
//
// # Architecture
//
// The package has four parts:
//
//   - Compiler: Compile turns []*ast.RuleDefinition into an immutable
//     RuleSet. Patterns are compiled and membership lists become hash sets
//     once, at compile time.
//   - Condition model: Node is a tagged tree (all, any, not, compare,
//     compare-attr, membership, pattern, existence) evaluated without side
//     effects.
//   - Engine: Evaluate drives the agenda cycle and produces a Report.
//   - Dispatcher: Registry maps action type names to Handlers. New action
//     types are added by registering handlers; the engine never interprets
//     action parameters.
//
// # Evaluation Flow
//
// Each cycle:
//
//  1. Evaluate every rule's condition against the current facts.
//  2. If nothing matched, stop with Idle.
//  3. Order matches by descending priority, then declaration order.
//  4. Dispatch the actions of each matched rule in that order, or only the
//     first rule when StopOnFirstMatch is set.
//  5. Start another cycle if an action ran and MaxCycles allows it;
//     otherwise stop with CycleLimitReached.
//
// A missing attribute never causes an error. Every operator is false on an
// absent attribute except notIn and notExists.
//
// # Basic Usage
//
//	doc, err := parser.Parse("rules.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	registry := engine.NewDefaultRegistry(logger)
//	rs, err := engine.Compile(doc.Rules, engine.DefaultCompileOptions().WithActions(registry))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fc, _ := facts.FromMap(map[string]any{"age": 20})
//	report, err := engine.NewEngine(registry, logger).Evaluate(ctx, rs, fc, nil)
//	fmt.Println(report.FiredRules(), report.Terminal, fc.Get("tags"))
//
// # Thread Safety
//
// RuleSet, Node and Engine are safe for concurrent use. A facts.Context
// belongs to exactly one run at a time.
package engine
