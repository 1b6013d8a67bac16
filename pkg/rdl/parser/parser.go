package parser

import (
	"fmt"
	"os"

	"mercator-hq/verdict/pkg/rdl/ast"
	rdlErrors "mercator-hq/verdict/pkg/rdl/errors"
)

const (
	// DefaultMaxFileSize is the largest rule file accepted by default.
	DefaultMaxFileSize = 10 * 1024 * 1024

	// DefaultMaxDepth is the default condition nesting limit.
	DefaultMaxDepth = 10
)

// Parser parses rule files into ASTs. It handles YAML and JSON input and
// checks document structure; semantic checks happen at compile time.
type Parser struct {
	maxFileSize  int64
	maxDepth     int
	contextLines int
}

// NewParser creates a new parser with default configuration.
func NewParser() *Parser {
	return &Parser{
		maxFileSize:  DefaultMaxFileSize,
		maxDepth:     DefaultMaxDepth,
		contextLines: 2,
	}
}

// WithMaxFileSize sets the maximum file size limit.
func (p *Parser) WithMaxFileSize(size int64) *Parser {
	p.maxFileSize = size
	return p
}

// WithMaxDepth sets the maximum condition nesting depth.
func (p *Parser) WithMaxDepth(depth int) *Parser {
	p.maxDepth = depth
	return p
}

// WithContextLines sets how many source lines surround each error. Zero
// disables context.
func (p *Parser) WithContextLines(n int) *Parser {
	p.contextLines = n
	return p
}

// Parse parses the rule file at path.
func (p *Parser) Parse(path string) (*ast.Document, error) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		return nil, &rdlErrors.Error{
			Kind:     rdlErrors.KindIO,
			Message:  fmt.Sprintf("cannot stat rule file: %v", err),
			Location: ast.Location{File: path},
			Err:      err,
		}
	}

	if fileInfo.Size() > p.maxFileSize {
		return nil, &rdlErrors.Error{
			Kind:     rdlErrors.KindIO,
			Message:  fmt.Sprintf("file is %d bytes, limit is %d", fileInfo.Size(), p.maxFileSize),
			Location: ast.Location{File: path},
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &rdlErrors.Error{
			Kind:     rdlErrors.KindIO,
			Message:  fmt.Sprintf("cannot read rule file: %v", err),
			Location: ast.Location{File: path},
			Err:      err,
		}
	}

	return p.ParseBytes(data, path)
}

// ParseBytes parses rule definitions held in memory. sourcePath is used
// only for locations in errors and may be empty.
func (p *Parser) ParseBytes(data []byte, sourcePath string) (*ast.Document, error) {
	if int64(len(data)) > p.maxFileSize {
		return nil, &rdlErrors.Error{
			Kind:     rdlErrors.KindIO,
			Message:  fmt.Sprintf("input is %d bytes, limit is %d", len(data), p.maxFileSize),
			Location: ast.Location{File: sourcePath},
		}
	}

	root, err := parseNode(data)
	if err != nil {
		syntaxErr := &rdlErrors.Error{
			Kind:    rdlErrors.KindSyntax,
			Message: err.Error(),
			Location: ast.Location{
				File:   sourcePath,
				Line:   syntaxErrorLine(err),
				Column: 1,
			},
			Hint: "check indentation, colons, quotes and brackets",
			Err:  err,
		}
		if p.contextLines > 0 {
			syntaxErr.Snippet = rdlErrors.Snippet(data, syntaxErr.Location, p.contextLines)
		}
		return nil, syntaxErr
	}

	b := newBuilder(sourcePath, p.maxDepth)
	doc, err := b.buildDocument(root)
	if err != nil {
		if p.contextLines > 0 {
			b.errors.AttachSnippets(data, p.contextLines)
		}
		return nil, err
	}
	return doc, nil
}

// ParseMulti parses several rule files and concatenates their rules in
// argument order.
func (p *Parser) ParseMulti(paths []string) (*ast.Document, error) {
	if len(paths) == 0 {
		return nil, &rdlErrors.Error{
			Kind:    rdlErrors.KindIO,
			Message: "no rule files given",
		}
	}

	merged := &ast.Document{
		SourceFile: paths[0],
		Location:   ast.Location{File: paths[0], Line: 1, Column: 1},
	}
	for _, path := range paths {
		doc, err := p.Parse(path)
		if err != nil {
			return nil, err
		}
		merged.Rules = append(merged.Rules, doc.Rules...)
	}
	return merged, nil
}

// Parse parses a rule file with the default parser.
func Parse(path string) (*ast.Document, error) {
	return NewParser().Parse(path)
}

// ParseBytes parses rule definitions from memory with the default parser.
func ParseBytes(data []byte, sourcePath string) (*ast.Document, error) {
	return NewParser().ParseBytes(data, sourcePath)
}
