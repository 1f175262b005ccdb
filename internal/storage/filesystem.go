package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Tier names the storage root an artifact belongs to. Stored asset paths
// are bare filenames; the tier decides which directory they resolve
// against.
type Tier string

const (
	TierImages     Tier = "images"
	TierPrototypes Tier = "prototypes"
	TierFinal      Tier = "final"
)

// Store is the blob storage contract the pipeline depends on.
type Store interface {
	Save(ctx context.Context, tier Tier, filename string, data []byte) (string, error)
	Read(ctx context.Context, tier Tier, filename string) ([]byte, error)
	Delete(ctx context.Context, tier Tier, filename string) bool
	URLFor(tier Tier, filename string) string
}

// FileStore persists artifacts onto the local filesystem under one root
// with a subdirectory per tier. It is the only storage backend; the
// original system serves the same layout over a static mount.
type FileStore struct {
	basePath string
	baseURL  string
}

// NewFileStore initializes a FileStore rooted at basePath. Tier
// directories are created eagerly. baseURL is the public prefix returned
// by URLFor.
func NewFileStore(basePath, baseURL string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	for _, tier := range []Tier{TierImages, TierPrototypes, TierFinal} {
		if err := os.MkdirAll(filepath.Join(basePath, string(tier)), 0o755); err != nil {
			return nil, fmt.Errorf("storage: ensure tier directory: %w", err)
		}
	}
	return &FileStore{basePath: basePath, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// BasePath returns the configured root directory.
func (s *FileStore) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

// Save persists the provided bytes under the tier directory and returns
// the stored filename. Filenames are sanitized to a single path element.
func (s *FileStore) Save(ctx context.Context, tier Tier, filename string, data []byte) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean, err := sanitizeFilename(filename)
	if err != nil {
		return "", err
	}
	fullPath := filepath.Join(s.basePath, string(tier), clean)
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	return clean, nil
}

// Read loads previously stored bytes.
func (s *FileStore) Read(ctx context.Context, tier Tier, filename string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean, err := sanitizeFilename(filename)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.basePath, string(tier), clean))
	if err != nil {
		return nil, fmt.Errorf("storage: read file: %w", err)
	}
	return data, nil
}

// Delete removes a stored file, reporting whether a file was removed.
// Used for best-effort cleanup: callers log a false return, nothing more.
func (s *FileStore) Delete(ctx context.Context, tier Tier, filename string) bool {
	if ctx.Err() != nil {
		return false
	}
	clean, err := sanitizeFilename(filename)
	if err != nil {
		return false
	}
	return os.Remove(filepath.Join(s.basePath, string(tier), clean)) == nil
}

// URLFor builds the public URL for a stored artifact.
func (s *FileStore) URLFor(tier Tier, filename string) string {
	if filename == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/%s", s.baseURL, tier, filename)
}

// sanitizeFilename rejects anything that is not a bare filename.
func sanitizeFilename(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("storage: filename is required")
	}
	name = strings.ReplaceAll(name, "\\", "/")
	cleaned := filepath.Clean(name)
	if cleaned == "." || cleaned == ".." || strings.Contains(cleaned, "/") {
		return "", fmt.Errorf("storage: invalid filename %q", name)
	}
	return cleaned, nil
}

var _ Store = (*FileStore)(nil)
