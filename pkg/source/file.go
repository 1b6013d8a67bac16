package source

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"mercator-hq/verdict/pkg/rdl/ast"
	"mercator-hq/verdict/pkg/rdl/parser"
)

// ruleFileExtensions are the extensions loaded from directories.
var ruleFileExtensions = map[string]bool{
	".yaml": true,
	".yml":  true,
	".json": true,
}

// FileSource loads rules from files on disk.
type FileSource struct {
	path   string
	parser *parser.Parser
	logger *slog.Logger
}

// NewFileSource creates a new file-based rule source.
// The path can be either a single file or a directory.
// If it's a directory, all .yaml, .yml and .json files below it are loaded.
func NewFileSource(path string, logger *slog.Logger) *FileSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSource{
		path:   path,
		parser: parser.NewParser(),
		logger: logger.With("component", "source", "source", path),
	}
}

// WithParser replaces the parser, e.g. to change size or depth limits.
func (s *FileSource) WithParser(p *parser.Parser) *FileSource {
	if p != nil {
		s.parser = p
	}
	return s
}

// Name returns the configured path.
func (s *FileSource) Name() string {
	return s.path
}

// WatchPaths returns the configured path.
func (s *FileSource) WatchPaths() []string {
	return []string{s.path}
}

// Load parses the rule files. Any unreadable or invalid file fails the
// whole load so a partial rule set is never returned.
func (s *FileSource) Load(ctx context.Context) (*ast.Document, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path %q: %w", s.path, err)
	}

	if !info.IsDir() {
		doc, err := s.parser.Parse(s.path)
		if err != nil {
			return nil, err
		}
		s.logger.Debug("loaded rule file", "rule_count", len(doc.Rules))
		return doc, nil
	}

	files, err := ListRuleFiles(s.path)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		s.logger.Warn("no rule files found in directory")
		return &ast.Document{SourceFile: s.path}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := s.parser.ParseMulti(files)
	if err != nil {
		return nil, err
	}
	doc.SourceFile = s.path

	s.logger.Info("loaded rules from directory",
		"file_count", len(files),
		"rule_count", len(doc.Rules),
	)
	return doc, nil
}

// ListRuleFiles returns the rule files below dir in lexical order.
// Hidden files and directories are skipped.
func ListRuleFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if ruleFileExtensions[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory %q: %w", dir, err)
	}
	return files, nil
}
