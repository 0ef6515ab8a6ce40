package secrets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileProvider loads secrets from individual files in a directory, the
// way Kubernetes mounts them: one file per secret, named after the
// secret. File permissions must be 0600 or 0400.
type FileProvider struct {
	BasePath string
}

// NewFileProvider creates a file-based secret provider rooted at dir.
func NewFileProvider(dir string) (*FileProvider, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat secret directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("secret path is not a directory: %s", dir)
	}
	return &FileProvider{BasePath: dir}, nil
}

// Get reads the secret file and returns its trimmed contents.
func (p *FileProvider) Get(_ context.Context, name string) (string, error) {
	path := filepath.Join(p.BasePath, filepath.Base(name))

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return "", fmt.Errorf("failed to stat secret file: %w", err)
	}

	if perm := info.Mode().Perm(); perm != 0o600 && perm != 0o400 {
		return "", fmt.Errorf("secret file %s has permissions %o, want 0600 or 0400", path, perm)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read secret file: %w", err)
	}

	value := strings.TrimSpace(string(data))
	if value == "" {
		return "", fmt.Errorf("secret file %s is empty", path)
	}
	return value, nil
}

// Name identifies the provider.
func (p *FileProvider) Name() string { return "file" }
