package source

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func rule(name string) string {
	return "rules:\n  - name: " + name + "\n    condition: {attr: x, op: exists}\n    actions: [{type: log}]\n"
}

func ruleNames(t *testing.T, src Source) []string {
	t.Helper()
	doc, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	var names []string
	for _, r := range doc.Rules {
		names = append(names, r.Name)
	}
	return names
}

func TestFileSource_SingleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	writeFile(t, path, rule("only"))

	if got := ruleNames(t, NewFileSource(path, quietLogger())); !reflect.DeepEqual(got, []string{"only"}) {
		t.Errorf("rules = %v, want [only]", got)
	}
}

func TestFileSource_DirectoryOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.yaml"), rule("b"))
	writeFile(t, filepath.Join(dir, "a.yml"), rule("a"))
	writeFile(t, filepath.Join(dir, "nested", "c.json"),
		`{"rules": [{"name": "c", "condition": {"attr": "x", "op": "exists"}, "actions": [{"type": "log"}]}]}`)
	writeFile(t, filepath.Join(dir, "README.md"), "not rules")
	writeFile(t, filepath.Join(dir, ".hidden", "d.yaml"), rule("d"))

	got := ruleNames(t, NewFileSource(dir, quietLogger()))
	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(got, want) {
		t.Errorf("rules = %v, want %v", got, want)
	}
}

func TestFileSource_InvalidFileFailsLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "good.yaml"), rule("good"))
	writeFile(t, filepath.Join(dir, "bad.yaml"), "rules: [unclosed")

	if _, err := NewFileSource(dir, quietLogger()).Load(context.Background()); err == nil {
		t.Fatal("Load() error = nil, want parse error")
	}
}

func TestFileSource_EmptyDirectory(t *testing.T) {
	doc, err := NewFileSource(t.TempDir(), quietLogger()).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(doc.Rules) != 0 {
		t.Errorf("Rules = %d, want 0", len(doc.Rules))
	}
}

func TestFileSource_MissingPath(t *testing.T) {
	_, err := NewFileSource(filepath.Join(t.TempDir(), "missing"), quietLogger()).Load(context.Background())
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load() error = %v, want ErrNotExist", err)
	}
}
