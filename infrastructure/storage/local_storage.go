package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"social-publisher/domain/repository"
)

// LocalStorage writes objects below a directory that the router serves at /media.
type LocalStorage struct {
	dir     string
	baseURL string
}

var _ repository.IObjectStorage = (*LocalStorage)(nil)

func NewLocalStorage(dir, publicBaseURL string) *LocalStorage {
	return &LocalStorage{dir: dir, baseURL: strings.TrimRight(publicBaseURL, "/")}
}

func (s *LocalStorage) Dir() string { return s.dir }

func (s *LocalStorage) Upload(_ context.Context, path string, data []byte, _ string) (string, error) {
	clean := filepath.Clean("/" + path)
	full := filepath.Join(s.dir, clean)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("local storage: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("local storage: %w", err)
	}
	return s.baseURL + filepath.ToSlash(clean), nil
}
