package source

import (
	"context"
	"reflect"
	"testing"
)

func TestMemorySource(t *testing.T) {
	src, err := NewMemorySourceFromBytes([]byte(rule("first")), "mem.yaml")
	if err != nil {
		t.Fatalf("NewMemorySourceFromBytes() error = %v", err)
	}

	doc, _ := src.Load(context.Background())
	doc.Rules = nil
	if got := ruleNames(t, src); !reflect.DeepEqual(got, []string{"first"}) {
		t.Errorf("rules = %v after caller modified the loaded document", got)
	}

	replacement, err := NewMemorySourceFromBytes([]byte(rule("second")), "mem.yaml")
	if err != nil {
		t.Fatal(err)
	}
	next, _ := replacement.Load(context.Background())
	src.Set(next)
	if got := ruleNames(t, src); !reflect.DeepEqual(got, []string{"second"}) {
		t.Errorf("rules = %v, want [second]", got)
	}
}

func TestNewMemorySourceFromBytes_Invalid(t *testing.T) {
	if _, err := NewMemorySourceFromBytes([]byte("rules: {"), "bad.yaml"); err == nil {
		t.Error("NewMemorySourceFromBytes() error = nil")
	}
}
