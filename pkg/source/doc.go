// Package source provides rule sources for the engine.
//
// A rule source loads rule definitions from somewhere and returns them as a
// single parsed document. Compilation is left to the caller, so the same
// source can feed linting, one-off evaluation and hot reload.
//
// # File Source
//
// The file source loads a single rule file, or every .yaml, .yml and .json
// file below a directory in lexical path order:
//
//	src := source.NewFileSource("rules/", logger)
//	doc, err := src.Load(ctx)
//
// # Git Source
//
// The git source clones a repository and loads rule files from a
// sub-directory of the working tree. Refresh pulls the configured branch:
//
//	src, err := source.NewGitSource(&source.GitConfig{
//	    Repository: "https://github.com/acme/rules.git",
//	    Branch:     "main",
//	    Path:       "rules",
//	}, logger)
//	changed, err := src.Refresh(ctx)
//
// # In-Memory Source
//
// The in-memory source is useful for testing and for embedding systems that
// assemble rules programmatically:
//
//	src := source.NewMemorySource(doc)
//	doc, err := src.Load(ctx)
package source
