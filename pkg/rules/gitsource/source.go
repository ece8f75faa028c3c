// Package gitsource keeps a local checkout of a git repository holding rule
// files and reports when a pull brings in rule changes.
package gitsource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"aidr-hq/bastion/pkg/config"
)

// SyncResult describes the outcome of a pull.
type SyncResult struct {
	FromSHA      string
	ToSHA        string
	ChangedFiles []string
}

// HadChanges reports whether HEAD moved.
func (r *SyncResult) HadChanges() bool {
	return r.FromSHA != r.ToSHA
}

// RuleChanges reports whether any changed file is a rule file.
func (r *SyncResult) RuleChanges() bool {
	for _, f := range r.ChangedFiles {
		switch strings.ToLower(filepath.Ext(f)) {
		case ".yml", ".yaml":
			return true
		}
	}
	return false
}

// Source manages the local clone of a rule repository.
type Source struct {
	cfg    config.RuleGitConfig
	auth   transport.AuthMethod
	logger *slog.Logger

	mu   sync.Mutex
	repo *gogit.Repository
}

// New validates cfg and creates a Source. Nothing is cloned until Sync.
func New(cfg config.RuleGitConfig, logger *slog.Logger) (*Source, error) {
	if cfg.Repository == "" {
		return nil, fmt.Errorf("repository URL cannot be empty")
	}
	if cfg.Branch == "" {
		return nil, fmt.Errorf("branch cannot be empty")
	}
	if cfg.LocalPath == "" {
		cfg.LocalPath = filepath.Join(os.TempDir(), "bastion-rules")
	}
	auth, err := newAuth(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		cfg:    cfg,
		auth:   auth,
		logger: logger.With("component", "rules.gitsource", "repository", cfg.Repository),
	}, nil
}

// RulesDir returns the rule directory inside the local checkout.
func (s *Source) RulesDir() string {
	return filepath.Join(s.cfg.LocalPath, s.cfg.Path)
}

// Sync clones the repository on first use (or opens an existing checkout)
// and pulls on later calls.
func (s *Source) Sync(ctx context.Context) (*SyncResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.repo == nil {
		if err := s.open(ctx); err != nil {
			return nil, err
		}
		head, err := s.head()
		if err != nil {
			return nil, err
		}
		return &SyncResult{FromSHA: "", ToSHA: head}, nil
	}
	return s.pull(ctx)
}

func (s *Source) open(ctx context.Context) error {
	if _, err := os.Stat(filepath.Join(s.cfg.LocalPath, ".git")); err == nil {
		repo, err := gogit.PlainOpen(s.cfg.LocalPath)
		if err != nil {
			return fmt.Errorf("failed to open existing repo: %w", err)
		}
		s.repo = repo
		s.logger.Info("opened existing rule checkout", "path", s.cfg.LocalPath)
		return nil
	}

	if err := os.MkdirAll(s.cfg.LocalPath, 0o755); err != nil {
		return fmt.Errorf("failed to create repository directory: %w", err)
	}

	cloneCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	repo, err := gogit.PlainCloneContext(cloneCtx, s.cfg.LocalPath, false, &gogit.CloneOptions{
		URL:           s.cfg.Repository,
		ReferenceName: plumbing.NewBranchReferenceName(s.cfg.Branch),
		SingleBranch:  s.cfg.Depth > 0,
		Depth:         s.cfg.Depth,
		Auth:          s.auth,
	})
	if err != nil {
		return fmt.Errorf("failed to clone repository: %w", err)
	}
	s.repo = repo
	s.logger.Info("cloned rule repository",
		"branch", s.cfg.Branch,
		"path", s.cfg.LocalPath,
		"duration", time.Since(start),
	)
	return nil
}

func (s *Source) pull(ctx context.Context) (*SyncResult, error) {
	from, err := s.head()
	if err != nil {
		return nil, err
	}

	wt, err := s.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree: %w", err)
	}

	pullCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	err = wt.PullContext(pullCtx, &gogit.PullOptions{
		RemoteName:    "origin",
		ReferenceName: plumbing.NewBranchReferenceName(s.cfg.Branch),
		SingleBranch:  s.cfg.Depth > 0,
		Auth:          s.auth,
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return nil, fmt.Errorf("failed to pull: %w", err)
	}

	to, err := s.head()
	if err != nil {
		return nil, err
	}
	result := &SyncResult{FromSHA: from, ToSHA: to}
	if result.HadChanges() {
		files, err := s.changedFiles(from, to)
		if err != nil {
			return nil, fmt.Errorf("failed to get changed files: %w", err)
		}
		result.ChangedFiles = files
	}
	return result, nil
}

func (s *Source) head() (string, error) {
	ref, err := s.repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to get HEAD: %w", err)
	}
	return ref.Hash().String(), nil
}

func (s *Source) changedFiles(fromSHA, toSHA string) ([]string, error) {
	fromCommit, err := s.repo.CommitObject(plumbing.NewHash(fromSHA))
	if err != nil {
		return nil, fmt.Errorf("failed to get from commit: %w", err)
	}
	toCommit, err := s.repo.CommitObject(plumbing.NewHash(toSHA))
	if err != nil {
		return nil, fmt.Errorf("failed to get to commit: %w", err)
	}
	fromTree, err := fromCommit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get from tree: %w", err)
	}
	toTree, err := toCommit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get to tree: %w", err)
	}
	changes, err := fromTree.Diff(toTree)
	if err != nil {
		return nil, fmt.Errorf("failed to diff trees: %w", err)
	}

	var files []string
	for _, change := range changes {
		if change.To.Name != "" {
			files = append(files, change.To.Name)
		} else if change.From.Name != "" {
			files = append(files, change.From.Name)
		}
	}
	return files, nil
}

// Rollback checks out sha, used when rules from a new commit fail to load.
func (s *Source) Rollback(sha string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.repo == nil {
		return fmt.Errorf("repository not initialized")
	}
	hash := plumbing.NewHash(sha)
	if _, err := s.repo.CommitObject(hash); err != nil {
		return fmt.Errorf("target commit not found: %w", err)
	}
	wt, err := s.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	if err := wt.Checkout(&gogit.CheckoutOptions{Hash: hash, Force: true}); err != nil {
		return fmt.Errorf("failed to checkout commit %s: %w", sha, err)
	}
	return nil
}

func (s *Source) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.Timeout)
}

// Poll pulls every interval until ctx is done and calls onChange after a
// pull that touched rule files. When onChange fails the checkout is rolled
// back to the previous commit and onChange is called again so the last good
// rules stay active.
func (s *Source) Poll(ctx context.Context, interval time.Duration, onChange func() error) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pollOnce(ctx, onChange)
		}
	}
}

func (s *Source) pollOnce(ctx context.Context, onChange func() error) {
	result, err := s.Sync(ctx)
	if err != nil {
		s.logger.Error("rule repository sync failed", "error", err)
		return
	}
	if !result.HadChanges() {
		return
	}
	if !result.RuleChanges() {
		s.logger.Info("non-rule files changed, skipping reload", "changed_files", len(result.ChangedFiles))
		return
	}

	s.logger.Info("rule changes pulled",
		"from_sha", short(result.FromSHA),
		"to_sha", short(result.ToSHA),
		"changed_files", len(result.ChangedFiles),
	)
	if err := onChange(); err != nil {
		s.logger.Error("rule reload failed, rolling back", "error", err, "rollback_to", short(result.FromSHA))
		if rbErr := s.Rollback(result.FromSHA); rbErr != nil {
			s.logger.Error("rollback failed", "error", rbErr)
			return
		}
		if err := onChange(); err != nil {
			s.logger.Error("reload after rollback failed", "error", err)
		}
	}
}

func short(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
