package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileStore keeps artifacts as flat files named <user>.<project>.<kind>.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory when missing.
func NewFileStore(dir string) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("data directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the data directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// Get reads one artifact.
func (s *FileStore) Get(_ context.Context, key Key, kind Kind) ([]byte, error) {
	if err := key.Validate(); err != nil {
		return nil, &Error{Op: "get", Key: key, Kind: kind, Err: err}
	}
	data, err := os.ReadFile(s.path(key, kind))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &Error{Op: "get", Key: key, Kind: kind, Err: err}
	}
	return data, nil
}

// Put writes one artifact atomically.
func (s *FileStore) Put(_ context.Context, key Key, kind Kind, data []byte) error {
	if err := key.Validate(); err != nil {
		return &Error{Op: "put", Key: key, Kind: kind, Err: err}
	}
	if err := writeAtomic(s.path(key, kind), data); err != nil {
		return &Error{Op: "put", Key: key, Kind: kind, Err: err}
	}
	return nil
}

// ListKeys returns every project that has an artifact of kind.
func (s *FileStore) ListKeys(_ context.Context, kind Kind) ([]Key, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, &Error{Op: "list", Kind: kind, Err: err}
	}
	suffix := "." + string(kind)
	var keys []Key
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, suffix) {
			continue
		}
		user, project, ok := strings.Cut(strings.TrimSuffix(name, suffix), ".")
		if !ok {
			continue
		}
		key := Key{User: user, Project: project}
		if key.Validate() != nil {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (s *FileStore) path(key Key, kind Kind) string {
	return filepath.Join(s.dir, key.User+"."+key.Project+"."+string(kind))
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
