// Package datasource stores everything ember reads from or writes to disk:
// per-chunk extraction caches, saved memories, the chat import registry and
// small key/value state. It also runs chunk extraction against an
// OpenAI-compatible endpoint.
package datasource

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/vanderheijden86/ember/pkg/model"
)

// ErrSchemaInvalid marks cache or extraction JSON that does not match the
// scene schema.
var ErrSchemaInvalid = errors.New("cache entry does not match scene schema")

// Layout resolves file locations under a data directory.
type Layout struct {
	Root string
}

// NewLayout returns a Layout rooted at dir.
func NewLayout(dir string) Layout {
	return Layout{Root: dir}
}

// CacheRoot holds one directory per chat.
func (l Layout) CacheRoot() string { return filepath.Join(l.Root, "cache") }

// ChatDir is the cache directory for chat.
func (l Layout) ChatDir(chat string) string {
	return filepath.Join(l.CacheRoot(), model.SanitizeChatName(chat))
}

// AnalysisPath is the saved memories document.
func (l Layout) AnalysisPath() string { return filepath.Join(l.Root, "analysis.json") }

// ImportsPath is the chat import registry.
func (l Layout) ImportsPath() string {
	return filepath.Join(l.Root, "imports", "chat_imports.json")
}

// StateDir holds key/value state.
func (l Layout) StateDir() string { return filepath.Join(l.Root, "state") }

// StateDBPath is the SQLite key/value database.
func (l Layout) StateDBPath() string { return filepath.Join(l.Root, "state.db") }

// writeFileAtomic writes data to a temp file and renames it over path.
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
