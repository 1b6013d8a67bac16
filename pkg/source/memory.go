package source

import (
	"context"
	"sync"

	"mercator-hq/verdict/pkg/rdl/ast"
	"mercator-hq/verdict/pkg/rdl/parser"
)

// MemorySource is an in-memory rule source.
type MemorySource struct {
	mu  sync.RWMutex
	doc *ast.Document
}

// NewMemorySource creates a new in-memory rule source.
func NewMemorySource(doc *ast.Document) *MemorySource {
	if doc == nil {
		doc = &ast.Document{}
	}
	return &MemorySource{doc: doc}
}

// NewMemorySourceFromBytes parses data and returns a source serving it.
func NewMemorySourceFromBytes(data []byte, name string) (*MemorySource, error) {
	doc, err := parser.ParseBytes(data, name)
	if err != nil {
		return nil, err
	}
	return NewMemorySource(doc), nil
}

// Name returns "memory".
func (s *MemorySource) Name() string {
	return "memory"
}

// Load returns a shallow copy of the stored document.
func (s *MemorySource) Load(ctx context.Context) (*ast.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Copy the rule slice so callers can't modify the stored document
	doc := *s.doc
	doc.Rules = make([]*ast.RuleDefinition, len(s.doc.Rules))
	copy(doc.Rules, s.doc.Rules)
	return &doc, nil
}

// Set replaces the stored document.
func (s *MemorySource) Set(doc *ast.Document) {
	if doc == nil {
		doc = &ast.Document{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = doc
}
