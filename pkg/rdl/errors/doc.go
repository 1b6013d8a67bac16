// Package errors reports problems found while reading rule files.
//
// Every *Error has a Kind (io, syntax or structure), a location and a
// message. Structural errors may also carry a hint, usually the nearest valid
// name by edit distance, and the parser attaches the numbered source lines
// around the location:
//
//	rules/discounts.yaml:8:11: structure: unknown operator "gte2"
//	   7 |       attr: age
//	-> 8 |       op: gte2
//	     |           ^
//	  hint: Did you mean 'gte'?
//
// The parser collects structural problems in an ErrorList and returns
// ErrorList.Err once the whole document has been walked, so a single run
// reports every mistake. Semantic checks such as duplicate rule names belong
// to the engine compiler, not to this package.
package errors
