package secrets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileProvider loads secrets from individual files in a directory, one
// file per secret, as Kubernetes mounts them.
//
// Files must be regular files with mode 0600 or 0400. Trailing whitespace
// is trimmed from the value.
type FileProvider struct {
	dir string
}

// NewFileProvider creates a provider reading from dir, which must exist.
func NewFileProvider(dir string) (*FileProvider, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve secrets directory: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to stat secrets directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("secrets path is not a directory: %s", dir)
	}
	return &FileProvider{dir: abs}, nil
}

// Lookup reads <dir>/<name>.
func (p *FileProvider) Lookup(_ context.Context, name string) (string, error) {
	path := filepath.Join(p.dir, name)
	if !strings.HasPrefix(path, p.dir+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid secret name %q: path escapes the secrets directory", name)
	}

	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: no file %s", ErrNotFound, name)
		}
		return "", fmt.Errorf("failed to stat secret file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("secret path is not a regular file: %s", name)
	}
	if mode := info.Mode().Perm(); mode != 0o600 && mode != 0o400 {
		return "", fmt.Errorf("insecure permissions on %s: %o (expected 0600 or 0400)", path, mode)
	}

	// #nosec G304 - path is confined to dir above
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read secret file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Name returns "file".
func (p *FileProvider) Name() string {
	return "file"
}
