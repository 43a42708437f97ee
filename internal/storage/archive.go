package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Archive stores uploaded files. Put returns a locator for the stored object.
type Archive interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// ObjectKey builds a collision-free key under prefix/owner, keeping the
// extension of filename.
func ObjectKey(prefix, owner, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return path.Join(prefix, sanitize(owner), uuid.New().String()+ext)
}

func sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
	if s == "" {
		return "_"
	}
	return s
}

// LocalArchive writes files below a directory on local disk.
type LocalArchive struct {
	dir string
}

// NewLocalArchive creates an archive rooted at dir.
func NewLocalArchive(dir string) *LocalArchive {
	return &LocalArchive{dir: dir}
}

func (a *LocalArchive) Put(_ context.Context, key, _ string, data []byte) (string, error) {
	dest := filepath.Join(a.dir, filepath.FromSlash(key))
	if !strings.HasPrefix(dest, filepath.Clean(a.dir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid key %q", key)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}

	return "/uploads/" + key, nil
}
