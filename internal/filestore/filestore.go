// Package filestore persists uploaded documents on disk under a managed
// directory, naming each file with a random UUID so uploads never collide.
package filestore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Store writes and reads uploaded documents.
type Store struct {
	dir string
}

// NewStore creates the storage directory if needed and returns a Store
// rooted at it.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create files directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Save writes content to a new file and returns its path relative to the
// store root. The original filename contributes only its extension.
func (s *Store) Save(originalName string, content []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	name := uuid.NewString() + ext
	if err := os.WriteFile(filepath.Join(s.dir, name), content, 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return name, nil
}

// Read returns the content of a previously saved file. The name must be a
// bare filename as returned by Save; path traversal is rejected.
func (s *Store) Read(name string) ([]byte, error) {
	if name != filepath.Base(name) {
		return nil, fmt.Errorf("invalid file name: %s", name)
	}
	return os.ReadFile(filepath.Join(s.dir, name))
}
