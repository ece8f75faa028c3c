package secrets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileProvider reads secrets from individual files in a directory, the
// layout used by Kubernetes and Docker secret mounts. Files must be regular
// files with mode 0600 or 0400. Surrounding whitespace is trimmed.
type FileProvider struct {
	Dir string
}

// NewFileProvider creates a file provider rooted at dir. The directory is
// only accessed when a secret is requested.
func NewFileProvider(dir string) *FileProvider {
	return &FileProvider{Dir: dir}
}

// GetSecret implements Provider.
func (p *FileProvider) GetSecret(ctx context.Context, name string) (string, error) {
	absBase, err := filepath.Abs(p.Dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve secrets directory: %w", err)
	}
	absPath, err := filepath.Abs(filepath.Join(p.Dir, name))
	if err != nil {
		return "", fmt.Errorf("failed to resolve secret path: %w", err)
	}
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid secret name %q: outside the secrets directory", name)
	}

	info, err := os.Lstat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("secret file not found: %s", name)
		}
		return "", fmt.Errorf("failed to stat secret file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("secret %q is not a regular file", name)
	}
	if mode := info.Mode().Perm(); mode != 0o600 && mode != 0o400 {
		return "", fmt.Errorf("insecure permissions on %s: %o (expected 0600 or 0400)", absPath, mode)
	}

	// #nosec G304 - path is confined to the secrets directory above
	data, err := os.ReadFile(absPath)
	if err != nil {
		return "", fmt.Errorf("failed to read secret file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Scheme implements Provider.
func (p *FileProvider) Scheme() string { return "file" }
