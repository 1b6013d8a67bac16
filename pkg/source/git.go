package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"mercator-hq/verdict/pkg/rdl/ast"
)

// DefaultGitTimeout bounds clone and pull operations.
const DefaultGitTimeout = 30 * time.Second

// GitConfig configures a git-backed rule source.
type GitConfig struct {
	// Repository is the remote URL or a local repository path.
	Repository string `yaml:"repository"`

	// Branch is checked out and pulled.
	Branch string `yaml:"branch"`

	// Path is the rule directory relative to the repository root.
	Path string `yaml:"path"`

	// LocalPath is where the repository is cloned. Defaults to a
	// directory under os.TempDir().
	LocalPath string `yaml:"local_path"`

	// Depth limits clone history. 0 clones everything.
	Depth int `yaml:"depth"`

	// CleanOnStart removes LocalPath before the first clone.
	CleanOnStart bool `yaml:"clean_on_start"`

	// Timeout bounds each clone or pull.
	Timeout time.Duration `yaml:"timeout"`

	Auth AuthConfig `yaml:"auth"`
}

// CommitInfo describes the checked-out commit.
type CommitInfo struct {
	SHA       string    `json:"sha"`
	Author    string    `json:"author"`
	Email     string    `json:"email"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Branch    string    `json:"branch"`
}

// GitSource loads rules from a git repository working tree.
type GitSource struct {
	config *GitConfig
	logger *slog.Logger

	mu   sync.Mutex
	repo *gogit.Repository
}

// NewGitSource validates cfg and returns a source. The repository is not
// cloned until the first Load or Refresh.
func NewGitSource(cfg *GitConfig, logger *slog.Logger) (*GitSource, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Repository == "" {
		return nil, fmt.Errorf("repository URL cannot be empty")
	}
	if cfg.Branch == "" {
		return nil, fmt.Errorf("branch cannot be empty")
	}
	if _, err := authMethod(cfg.Auth); err != nil {
		return nil, fmt.Errorf("invalid git auth: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := *cfg
	if c.LocalPath == "" {
		c.LocalPath = filepath.Join(os.TempDir(), "verdict-rules")
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultGitTimeout
	}

	return &GitSource{
		config: &c,
		logger: logger.With("component", "source", "repository", c.Repository, "branch", c.Branch),
	}, nil
}

// Name returns the repository URL and branch.
func (s *GitSource) Name() string {
	return s.config.Repository + "@" + s.config.Branch
}

// RulesDir returns the local directory rules are loaded from.
func (s *GitSource) RulesDir() string {
	return filepath.Join(s.config.LocalPath, s.config.Path)
}

// Load clones the repository if needed and parses the rule files in the
// configured path. It does not pull; call Refresh for that.
func (s *GitSource) Load(ctx context.Context) (*ast.Document, error) {
	s.mu.Lock()
	err := s.ensureCloned(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	doc, err := NewFileSource(s.RulesDir(), s.logger).Load(ctx)
	if err != nil {
		return nil, err
	}
	doc.SourceFile = s.Name()
	return doc, nil
}

// Refresh pulls the branch and reports whether HEAD moved.
func (s *GitSource) Refresh(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureCloned(ctx); err != nil {
		return false, err
	}

	ref, err := s.repo.Head()
	if err != nil {
		return false, fmt.Errorf("failed to get HEAD: %w", err)
	}
	from := ref.Hash()

	worktree, err := s.repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("failed to get worktree: %w", err)
	}
	auth, err := authMethod(s.config.Auth)
	if err != nil {
		return false, err
	}

	pullCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	start := time.Now()
	err = worktree.PullContext(pullCtx, &gogit.PullOptions{
		RemoteName:    "origin",
		ReferenceName: plumbing.NewBranchReferenceName(s.config.Branch),
		Auth:          auth,
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return false, fmt.Errorf("failed to pull: %w", err)
	}

	ref, err = s.repo.Head()
	if err != nil {
		return false, fmt.Errorf("failed to get new HEAD: %w", err)
	}
	changed := ref.Hash() != from

	s.logger.Debug("pulled repository",
		"from", from.String(),
		"to", ref.Hash().String(),
		"changed", changed,
		"duration", time.Since(start),
	)
	return changed, nil
}

// CurrentCommit returns metadata about the checked-out commit.
func (s *GitSource) CurrentCommit() (*CommitInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.repo == nil {
		return nil, fmt.Errorf("repository not initialized")
	}
	ref, err := s.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD: %w", err)
	}
	commit, err := s.repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to get commit: %w", err)
	}
	return &CommitInfo{
		SHA:       commit.Hash.String(),
		Author:    commit.Author.Name,
		Email:     commit.Author.Email,
		Timestamp: commit.Author.When,
		Message:   commit.Message,
		Branch:    s.config.Branch,
	}, nil
}

// ensureCloned opens an existing clone or clones the repository.
// Callers hold s.mu.
func (s *GitSource) ensureCloned(ctx context.Context) error {
	if s.repo != nil {
		return nil
	}

	if s.config.CleanOnStart {
		if err := os.RemoveAll(s.config.LocalPath); err != nil {
			return fmt.Errorf("failed to clean existing repository: %w", err)
		}
	}

	if _, err := os.Stat(filepath.Join(s.config.LocalPath, ".git")); err == nil {
		repo, err := gogit.PlainOpen(s.config.LocalPath)
		if err != nil {
			return fmt.Errorf("failed to open existing repo: %w", err)
		}
		s.repo = repo
		return nil
	}

	if err := os.MkdirAll(s.config.LocalPath, 0755); err != nil {
		return fmt.Errorf("failed to create repository directory: %w", err)
	}
	auth, err := authMethod(s.config.Auth)
	if err != nil {
		return err
	}

	cloneCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	start := time.Now()
	repo, err := gogit.PlainCloneContext(cloneCtx, s.config.LocalPath, false, &gogit.CloneOptions{
		URL:           s.config.Repository,
		ReferenceName: plumbing.NewBranchReferenceName(s.config.Branch),
		SingleBranch:  s.config.Depth > 0,
		Depth:         s.config.Depth,
		Auth:          auth,
	})
	if err != nil {
		return fmt.Errorf("failed to clone repository: %w", err)
	}
	s.repo = repo

	s.logger.Info("cloned repository", "local_path", s.config.LocalPath, "duration", time.Since(start))
	return nil
}
