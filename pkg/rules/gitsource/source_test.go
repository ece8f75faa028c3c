package gitsource

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"aidr-hq/bastion/pkg/config"
)

func commitFile(t *testing.T, repo *gogit.Repository, dir, name, content string) {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("failed to get worktree: %v", err)
	}
	if _, err := wt.Add(name); err != nil {
		t.Fatalf("failed to add %s: %v", name, err)
	}
	_, err = wt.Commit("update "+name, &gogit.CommitOptions{
		Author: &object.Signature{Name: "Test User", Email: "test@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatalf("failed to commit: %v", err)
	}
}

// createRuleRepo creates a repository with one rule file. go-git init uses
// "master" as the default branch.
func createRuleRepo(t *testing.T) (string, *gogit.Repository) {
	t.Helper()
	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("failed to init repo: %v", err)
	}
	commitFile(t, repo, dir, "rules/sql.yml", "uuid: a\nname: a\ndetails: a\ndetection:\n  language: c\n  pattern: [x]\n")
	return dir, repo
}

func testConfig(t *testing.T, repoDir string) config.RuleGitConfig {
	return config.RuleGitConfig{
		Enabled:    true,
		Repository: repoDir,
		Branch:     "master",
		Path:       "rules",
		LocalPath:  filepath.Join(t.TempDir(), "checkout"),
		Timeout:    10 * time.Second,
		Auth:       config.GitAuthConfig{Type: "none"},
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.RuleGitConfig
		wantErr bool
	}{
		{"empty repository", config.RuleGitConfig{Branch: "main"}, true},
		{"empty branch", config.RuleGitConfig{Repository: "https://example.com/r.git"}, true},
		{"token without token", config.RuleGitConfig{Repository: "https://example.com/r.git", Branch: "main", Auth: config.GitAuthConfig{Type: "token"}}, true},
		{"unknown auth", config.RuleGitConfig{Repository: "https://example.com/r.git", Branch: "main", Auth: config.GitAuthConfig{Type: "kerberos"}}, true},
		{"ssh missing key", config.RuleGitConfig{Repository: "git@example.com:r.git", Branch: "main", Auth: config.GitAuthConfig{Type: "ssh", SSHKeyPath: "/nonexistent/key"}}, true},
		{"token", config.RuleGitConfig{Repository: "https://example.com/r.git", Branch: "main", Auth: config.GitAuthConfig{Type: "token", Token: "t"}}, false},
		{"anonymous", config.RuleGitConfig{Repository: "https://example.com/r.git", Branch: "main"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg, nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSSHKeyPermissions(t *testing.T) {
	key := filepath.Join(t.TempDir(), "id_rsa")
	if err := os.WriteFile(key, []byte("not a key"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := newAuth(config.GitAuthConfig{Type: "ssh", SSHKeyPath: key})
	if err == nil {
		t.Fatal("expected error for world-readable key")
	}
}

func TestSyncClonesThenPulls(t *testing.T) {
	repoDir, repo := createRuleRepo(t)
	src, err := New(testConfig(t, repoDir), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	first, err := src.Sync(context.Background())
	if err != nil {
		t.Fatalf("initial Sync() error = %v", err)
	}
	if first.ToSHA == "" {
		t.Error("initial sync should report HEAD")
	}
	if _, err := os.Stat(filepath.Join(src.RulesDir(), "sql.yml")); err != nil {
		t.Fatalf("rule file not checked out: %v", err)
	}

	second, err := src.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if second.HadChanges() {
		t.Error("sync without new commits should report no changes")
	}

	commitFile(t, repo, repoDir, "rules/new.yaml", "uuid: b\nname: b\ndetails: b\ndetection:\n  language: c\n  pattern: [y]\n")
	third, err := src.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync() after commit error = %v", err)
	}
	if !third.HadChanges() || !third.RuleChanges() {
		t.Fatalf("expected rule changes, got %+v", third)
	}
	if len(third.ChangedFiles) != 1 || third.ChangedFiles[0] != "rules/new.yaml" {
		t.Errorf("changed files = %v", third.ChangedFiles)
	}
}

func TestSyncOpensExistingCheckout(t *testing.T) {
	repoDir, _ := createRuleRepo(t)
	cfg := testConfig(t, repoDir)

	a, _ := New(cfg, nil)
	if _, err := a.Sync(context.Background()); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	b, _ := New(cfg, nil)
	if _, err := b.Sync(context.Background()); err != nil {
		t.Fatalf("Sync() on existing checkout error = %v", err)
	}
}

func TestSyncResultRuleChanges(t *testing.T) {
	tests := []struct {
		files []string
		want  bool
	}{
		{[]string{"README.md"}, false},
		{[]string{"docs/x.txt", "rules/a.YML"}, true},
		{[]string{"rules/b.yaml"}, true},
		{nil, false},
	}
	for _, tt := range tests {
		r := &SyncResult{FromSHA: "a", ToSHA: "b", ChangedFiles: tt.files}
		if got := r.RuleChanges(); got != tt.want {
			t.Errorf("RuleChanges(%v) = %v, want %v", tt.files, got, tt.want)
		}
	}
}

func TestPollOnceRollsBackOnReloadFailure(t *testing.T) {
	repoDir, repo := createRuleRepo(t)
	src, _ := New(testConfig(t, repoDir), nil)
	first, err := src.Sync(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	commitFile(t, repo, repoDir, "rules/broken.yml", "uuid: [\n")

	calls := 0
	src.pollOnce(context.Background(), func() error {
		calls++
		if calls == 1 {
			return os.ErrInvalid
		}
		return nil
	})

	if calls != 2 {
		t.Fatalf("reload called %d times, want 2 (failure then rollback)", calls)
	}
	if _, err := os.Stat(filepath.Join(src.RulesDir(), "broken.yml")); !os.IsNotExist(err) {
		t.Errorf("rollback should remove broken.yml, stat err = %v", err)
	}
	head, err := src.head()
	if err != nil {
		t.Fatal(err)
	}
	if head != first.ToSHA {
		t.Errorf("HEAD = %s, want %s", head, first.ToSHA)
	}
}
