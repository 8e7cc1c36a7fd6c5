package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage keeps objects on the filesystem and serves them under a URL prefix.
type LocalStorage struct {
	basePath  string
	publicURL string
}

// NewLocalStorage creates the base directory if needed.
func NewLocalStorage(basePath, publicURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	absPath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve media dir: %w", err)
	}
	return &LocalStorage{basePath: absPath, publicURL: publicURL}, nil
}

// Dir returns the directory objects are written to.
func (s *LocalStorage) Dir() string {
	return s.basePath
}

func (s *LocalStorage) fullPath(key string) (string, error) {
	clean := filepath.Clean(key)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(os.PathSeparator)) || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(s.basePath, clean), nil
}

// Write stores r atomically via a temp file in the target directory.
func (s *LocalStorage) Write(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	path, err := s.fullPath(key)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write content: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	success = true
	return nil
}

// Delete removes the file for key.
func (s *LocalStorage) Delete(_ context.Context, key string) error {
	path, err := s.fullPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// URL returns the public URL for key.
func (s *LocalStorage) URL(key string) string {
	return joinURL(s.publicURL, key)
}

// Key extracts the object key from a URL returned by URL.
func (s *LocalStorage) Key(url string) (string, bool) {
	return trimURL(s.publicURL, url)
}
