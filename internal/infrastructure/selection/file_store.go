// Package selection persists the profile override outside of HTTP.
package selection

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-yaml"
	"github.com/reglet-dev/classrunner/internal/application/ports"
)

// FileStore keeps override values in a YAML file, so a CLI user's profile
// choice sticks across invocations the way a cookie does in a browser.
type FileStore struct {
	path string

	mu     sync.Mutex
	values map[string]string
	loaded bool
	err    error
}

var _ ports.SelectionStore = (*FileStore)(nil)

// NewFileStore creates a store backed by path. The file is read on first use.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

// selectionFile is the YAML structure of the selection file.
type selectionFile struct {
	Selections map[string]string `yaml:"selections"`
}

// Err returns the first read or write failure. The SelectionStore methods
// cannot report errors, so callers check this after a run.
func (s *FileStore) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Get implements ports.SelectionStore.
func (s *FileStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()
	v, ok := s.values[key]
	return v, ok
}

// Set implements ports.SelectionStore.
func (s *FileStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()
	s.values[key] = value
	s.save()
}

// Clear implements ports.SelectionStore.
func (s *FileStore) Clear(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()
	if _, ok := s.values[key]; !ok {
		return
	}
	delete(s.values, key)
	s.save()
}

func (s *FileStore) load() {
	if s.loaded {
		return
	}
	s.loaded = true
	s.values = make(map[string]string)

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return
	}
	if err != nil {
		s.fail(fmt.Errorf("failed to read selection file: %w", err))
		return
	}

	var f selectionFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		s.fail(fmt.Errorf("failed to parse selection file: %w", err))
		return
	}
	for k, v := range f.Selections {
		s.values[k] = v
	}
}

func (s *FileStore) save() {
	//nolint:gosec // G301: 0o755 is standard for user config directories (~/.classrunner)
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		s.fail(fmt.Errorf("failed to create selection directory: %w", err))
		return
	}

	data, err := yaml.Marshal(selectionFile{Selections: s.values})
	if err != nil {
		s.fail(fmt.Errorf("failed to marshal selections to YAML: %w", err))
		return
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		s.fail(fmt.Errorf("failed to write selection file: %w", err))
	}
}

func (s *FileStore) fail(err error) {
	if s.err == nil {
		s.err = err
	}
}

// MemoryStore is a SelectionStore that lives for one process.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
}

var _ ports.SelectionStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// Get implements ports.SelectionStore.
func (s *MemoryStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

// Set implements ports.SelectionStore.
func (s *MemoryStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Clear implements ports.SelectionStore.
func (s *MemoryStore) Clear(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}
