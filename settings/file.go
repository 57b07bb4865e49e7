package settings

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/pithecene-io/desklink/iox"
)

// FileStore persists settings as a msgpack map. Every Set rewrites the file
// through a temporary file and rename.
type FileStore struct {
	path string

	mu     sync.Mutex
	values map[string]string
}

var _ Store = (*FileStore)(nil)

// OpenFile loads the store at path; a missing file yields an empty store.
func OpenFile(path string) (*FileStore, error) {
	s := &FileStore{path: path, values: make(map[string]string)}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read settings file %q: %w", path, err)
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := msgpack.Unmarshal(data, &s.values); err != nil {
		return nil, fmt.Errorf("invalid settings file %s: %w", path, err)
	}
	return s, nil
}

// Get implements Store.
func (s *FileStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Set implements Store.
func (s *FileStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.values[key]
	s.values[key] = value
	if err := s.writeLocked(); err != nil {
		if had {
			s.values[key] = prev
		} else {
			delete(s.values, key)
		}
		return err
	}
	return nil
}

// Delete implements Store.
func (s *FileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		return nil
	}
	delete(s.values, key)
	return s.writeLocked()
}

// Close implements Store.
func (s *FileStore) Close() error { return nil }

func (s *FileStore) writeLocked() error {
	data, err := msgpack.Marshal(s.values)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := iox.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}
