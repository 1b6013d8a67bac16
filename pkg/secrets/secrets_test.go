package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mercator-hq/verdict/pkg/telemetry/logging"
)

func writeSecret(t *testing.T, dir, name, value string, mode os.FileMode) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(value), mode); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(path, mode); err != nil {
		t.Fatal(err)
	}
}

func TestEnvProvider_Lookup(t *testing.T) {
	t.Setenv("VERDICT_SECRET_RULES_GIT_TOKEN", "ghp_abc")

	p := NewEnvProvider(DefaultEnvPrefix)

	value, err := p.Lookup(context.Background(), "rules-git-token")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if value != "ghp_abc" {
		t.Errorf("Lookup() = %q, want %q", value, "ghp_abc")
	}

	if _, err := p.Lookup(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Lookup(missing) error = %v, want ErrNotFound", err)
	}
}

func TestFileProvider_Lookup(t *testing.T) {
	dir := t.TempDir()
	writeSecret(t, dir, "db-password", "s3cret\n", 0o600)
	writeSecret(t, dir, "readonly", "ro", 0o400)
	writeSecret(t, dir, "world-readable", "leaky", 0o644)
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0o700); err != nil {
		t.Fatal(err)
	}

	p, err := NewFileProvider(dir)
	if err != nil {
		t.Fatalf("NewFileProvider() error = %v", err)
	}

	tests := []struct {
		name         string
		secret       string
		want         string
		wantNotFound bool
		wantErr      bool
	}{
		{name: "trims whitespace", secret: "db-password", want: "s3cret"},
		{name: "read-only file", secret: "readonly", want: "ro"},
		{name: "insecure permissions", secret: "world-readable", wantErr: true},
		{name: "directory", secret: "nested", wantErr: true},
		{name: "missing", secret: "missing", wantNotFound: true, wantErr: true},
		{name: "traversal", secret: "../etc/passwd", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Lookup(context.Background(), tt.secret)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Lookup(%q) error = %v, wantErr %v", tt.secret, err, tt.wantErr)
			}
			if tt.wantNotFound && !errors.Is(err, ErrNotFound) {
				t.Errorf("Lookup(%q) error = %v, want ErrNotFound", tt.secret, err)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Lookup(%q) = %q, want %q", tt.secret, got, tt.want)
			}
		})
	}
}

func TestNewFileProvider_InvalidDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	for _, dir := range []string{filepath.Join(t.TempDir(), "missing"), file} {
		if _, err := NewFileProvider(dir); err == nil {
			t.Errorf("NewFileProvider(%q) error = nil, want error", dir)
		}
	}
}

func TestResolver_ProviderOrder(t *testing.T) {
	t.Setenv("VERDICT_SECRET_SHARED", "from-env")
	dir := t.TempDir()
	writeSecret(t, dir, "shared", "from-file", 0o600)
	writeSecret(t, dir, "file-only", "only-file", 0o600)

	files, err := NewFileProvider(dir)
	if err != nil {
		t.Fatal(err)
	}
	env := NewEnvProvider(DefaultEnvPrefix)

	tests := []struct {
		name      string
		providers []Provider
		secret    string
		want      string
	}{
		{name: "env first", providers: []Provider{env, files}, secret: "shared", want: "from-env"},
		{name: "file first", providers: []Provider{files, env}, secret: "shared", want: "from-file"},
		{name: "falls through", providers: []Provider{env, files}, secret: "file-only", want: "only-file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(logging.Discard(), tt.providers...)
			got, err := r.Get(context.Background(), tt.secret)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Get() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolver_StopsOnProviderError(t *testing.T) {
	t.Setenv("VERDICT_SECRET_LEAKY", "from-env")
	dir := t.TempDir()
	writeSecret(t, dir, "leaky", "x", 0o644)

	files, err := NewFileProvider(dir)
	if err != nil {
		t.Fatal(err)
	}
	r := NewResolver(logging.Discard(), files, NewEnvProvider(DefaultEnvPrefix))

	if _, err := r.Get(context.Background(), "leaky"); err == nil {
		t.Error("Get() error = nil, want insecure permissions error")
	}
}

func TestResolver_Expand(t *testing.T) {
	t.Setenv("VERDICT_SECRET_DB_USER", "verdict")
	t.Setenv("VERDICT_SECRET_DB_PASSWORD", "pa55")

	r := NewResolver(logging.Discard(), NewEnvProvider(DefaultEnvPrefix))

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "no reference", input: "data/history.db", want: "data/history.db"},
		{name: "single reference", input: "${secret:db-password}", want: "pa55"},
		{
			name:  "embedded references",
			input: "postgres://${secret:db-user}:${secret:db-password}@db/verdict",
			want:  "postgres://verdict:pa55@db/verdict",
		},
		{name: "unresolved", input: "token ${secret:missing}", wantErr: true},
		{name: "empty name", input: "${secret:}", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Expand(context.Background(), tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expand(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Expand(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if tt.wantErr && strings.Contains(err.Error(), "pa55") {
				t.Errorf("Expand() error leaks a secret value: %v", err)
			}
		})
	}
}

func TestHasReference(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{input: "${secret:token}", want: true},
		{input: "prefix ${secret:a} suffix", want: true},
		{input: "$secret:token", want: false},
		{input: "plain", want: false},
	}
	for _, tt := range tests {
		if got := HasReference(tt.input); got != tt.want {
			t.Errorf("HasReference(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestRedact(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{name: "abc", want: "***"},
		{name: "rules-git-token", want: "ru...en"},
	}
	for _, tt := range tests {
		if got := redact(tt.name); got != tt.want {
			t.Errorf("redact(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
