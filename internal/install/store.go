package install

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"lwdecomp/internal/runstore"
)

// Store persists small string values between runs.
type Store interface {
	Load(key string) (string, bool, error)
	Save(key, value string) error
}

// FileStore keeps each key in a plain-text file named after the key
// inside Dir.
type FileStore struct {
	Dir string
}

func (s FileStore) Path(key string) string {
	return filepath.Join(s.Dir, key)
}

func (s FileStore) Load(key string) (string, bool, error) {
	data, err := os.ReadFile(s.Path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read %s: %w", s.Path(key), err)
	}
	return strings.TrimSpace(string(data)), true, nil
}

func (s FileStore) Save(key, value string) error {
	return runstore.WriteBytes(s.Path(key), []byte(value))
}

// MemoryStore is an in-process Store. Writes counts Save calls.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
	Writes int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: map[string]string{}}
}

func (s *MemoryStore) Load(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *MemoryStore) Save(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values == nil {
		s.values = map[string]string{}
	}
	s.values[key] = value
	s.Writes++
	return nil
}

// ExecutableDir is the directory of the running binary.
func ExecutableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}
