package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"
	"github.com/puzpuzpuz/xsync/v3"
)

// TokenStore persists session tokens between runs
type TokenStore interface {
	// Get returns the value stored under key and whether it exists
	Get(key string) (string, bool, error)
	// Set stores value under key
	Set(key, value string) error
	// Delete removes key, deleting a missing key is not an error
	Delete(key string) error
}

// --------------------------------------------------------------------------
// Memory store
// --------------------------------------------------------------------------

type memoryTokenStore struct {
	values *xsync.MapOf[string, string]
}

// NewMemoryTokenStore creates a TokenStore that lives as long as the process
func NewMemoryTokenStore() TokenStore {
	return &memoryTokenStore{values: xsync.NewMapOf[string, string]()}
}

func (s *memoryTokenStore) Get(key string) (string, bool, error) {
	v, ok := s.values.Load(key)
	return v, ok, nil
}

func (s *memoryTokenStore) Set(key, value string) error {
	s.values.Store(key, value)
	return nil
}

func (s *memoryTokenStore) Delete(key string) error {
	s.values.Delete(key)
	return nil
}

// --------------------------------------------------------------------------
// File store
// --------------------------------------------------------------------------

// fileTokenStore keeps all tokens in one JSON object on disk
type fileTokenStore struct {
	path string
	mu   sync.Mutex
}

// NewFileTokenStore creates a TokenStore backed by the JSON file at path.
// The file and its directory are created on the first Set.
func NewFileTokenStore(path string) TokenStore {
	return &fileTokenStore{path: path}
}

func (s *fileTokenStore) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

func (s *fileTokenStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return err
	}
	values[key] = value
	return s.save(values)
}

func (s *fileTokenStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	return s.save(values)
}

func (s *fileTokenStore) load() (map[string]string, error) {
	values := make(map[string]string)
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return values, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token store %s: %w", s.path, err)
	}
	if len(b) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(b, &values); err != nil {
		return nil, fmt.Errorf("failed to parse token store %s: %w", s.path, err)
	}
	return values, nil
}

// save writes values to a temporary file and renames it over the store
func (s *fileTokenStore) save(values map[string]string) error {
	b, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode token store: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create token store directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("failed to write token store %s: %w", s.path, err)
	}
	return os.Rename(tmp, s.path)
}
