package datasource

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/vanderheijden86/ember/pkg/progress"
)

// FileKV stores each key as <dir>/<key>.json.
type FileKV struct {
	mu  sync.Mutex
	dir string
}

// NewFileKV returns a store in dir. The directory is created on first write.
func NewFileKV(dir string) *FileKV {
	return &FileKV{dir: dir}
}

var keyReplacer = strings.NewReplacer("/", "_", "\\", "_", "..", "_")

func (s *FileKV) path(key string) string {
	return filepath.Join(s.dir, keyReplacer.Replace(key)+".json")
}

// Get returns progress.ErrNotFound for missing keys.
func (s *FileKV) Get(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, progress.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	return data, nil
}

func (s *FileKV) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeFileAtomic(s.path(key), value)
}

// Delete ignores missing keys.
func (s *FileKV) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
