package engine

import (
	"io"
	"log/slog"
	"testing"

	"mercator-hq/verdict/pkg/facts"
	"mercator-hq/verdict/pkg/rdl/parser"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustCompile(t testing.TB, src string) *RuleSet {
	t.Helper()
	doc, err := parser.ParseBytes([]byte(src), "test.yaml")
	if err != nil {
		t.Fatalf("ParseBytes() failed: %v", err)
	}
	rs, err := CompileDocument(doc, nil)
	if err != nil {
		t.Fatalf("CompileDocument() failed: %v", err)
	}
	return rs
}

func compileErr(t *testing.T, src string, opts *CompileOptions) error {
	t.Helper()
	doc, err := parser.ParseBytes([]byte(src), "test.yaml")
	if err != nil {
		t.Fatalf("ParseBytes() failed: %v", err)
	}
	_, err = CompileDocument(doc, opts)
	return err
}

func mustFacts(t testing.TB, m map[string]any) *facts.Context {
	t.Helper()
	fc, err := facts.FromMap(m)
	if err != nil {
		t.Fatalf("FromMap() failed: %v", err)
	}
	return fc
}
