package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	dirPerm  = 0o750
	filePerm = 0o600
)

// FileStore persists timestamp lists as JSON files on disk. Files are
// sharded into subdirectories named after the first two characters of
// the key to keep directory sizes bounded.
type FileStore struct {
	baseDir string
	mu      sync.Mutex
}

// NewFileStore creates a file-backed timestamp store rooted at baseDir.
// The directory is created if it does not exist.
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("file store: base directory is required")
	}
	if err := os.MkdirAll(baseDir, dirPerm); err != nil {
		return nil, fmt.Errorf("file store: create base directory: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

// Load implements Store.
func (s *FileStore) Load(ctx context.Context, key string) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return []int64{}, nil
		}
		return nil, fmt.Errorf("file store: read %q: %w", key, err)
	}

	var timestamps []int64
	if err := json.Unmarshal(data, &timestamps); err != nil {
		// Corrupt record, treat as empty so the window restarts.
		return []int64{}, nil
	}
	return timestamps, nil
}

// Save implements Store.
func (s *FileStore) Save(ctx context.Context, key string, timestamps []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(key)
	if len(timestamps) == 0 {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("file store: remove %q: %w", key, err)
		}
		return nil
	}

	data, err := json.Marshal(timestamps)
	if err != nil {
		return fmt.Errorf("file store: marshal %q: %w", key, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return fmt.Errorf("file store: create shard directory: %w", err)
	}
	if err := os.WriteFile(path, data, filePerm); err != nil {
		return fmt.Errorf("file store: write %q: %w", key, err)
	}
	return nil
}

func (s *FileStore) path(key string) string {
	shard := key
	if len(shard) > 2 {
		shard = shard[:2]
	}
	return filepath.Join(s.baseDir, shard, key+".json")
}

var _ Store = (*FileStore)(nil)
