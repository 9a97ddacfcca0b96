package datasource

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/ember/pkg/debug"
	"github.com/vanderheijden86/ember/pkg/metrics"
	"github.com/vanderheijden86/ember/pkg/model"
)

// maxParallelReads bounds concurrent cache file reads.
const maxParallelReads = 16

// ChatCache is the on-disk cache of extraction results, one JSON file per
// day chunk at cache/<chat>/<index>.json.
type ChatCache struct {
	layout   Layout
	validate *validator.Validate
}

// NewChatCache returns a cache rooted in layout.
func NewChatCache(layout Layout) *ChatCache {
	return &ChatCache{layout: layout, validate: validator.New()}
}

// Layout returns the cache's file layout.
func (c *ChatCache) Layout() Layout { return c.layout }

// EntryPath is the cache file for one chunk.
func (c *ChatCache) EntryPath(chat string, index int) string {
	return filepath.Join(c.layout.ChatDir(chat), strconv.Itoa(index)+".json")
}

type indexedFile struct {
	index int
	path  string
}

// Indices lists cached chunk indices for chat in ascending order. Files
// whose stem is not a number are ignored.
func (c *ChatCache) Indices(chat string) ([]int, error) {
	files, err := c.list(chat)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(files))
	for i, f := range files {
		out[i] = f.index
	}
	return out, nil
}

func (c *ChatCache) list(chat string) ([]indexedFile, error) {
	dir := c.layout.ChatDir(chat)
	dirEntries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache dir %s: %w", dir, err)
	}
	var files []indexedFile
	for _, e := range dirEntries {
		if e.IsDir() {
			continue
		}
		stem, ok := strings.CutSuffix(e.Name(), ".json")
		if !ok {
			continue
		}
		idx, err := strconv.Atoi(stem)
		if err != nil || idx < 0 {
			continue
		}
		files = append(files, indexedFile{index: idx, path: filepath.Join(dir, e.Name())})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].index < files[j].index })
	return files, nil
}

// LoadCache returns the cached entries for chat ordered by chunk index. A
// chat with no cache directory yields an empty list. Entries that fail to
// decode or validate abort the load with an error wrapping ErrSchemaInvalid.
func (c *ChatCache) LoadCache(ctx context.Context, chat string) ([]model.CacheEntry, error) {
	defer metrics.TimerWithCallback(metrics.CacheLoad, func(d time.Duration) {
		debug.LogTiming("cache load "+chat, d)
	})()

	files, err := c.list(chat)
	if err != nil {
		return nil, err
	}
	entries := make([]model.CacheEntry, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelReads)
	for i, f := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			entry, err := c.readEntry(f.path)
			if err != nil {
				return err
			}
			entries[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	debug.Log("cache: loaded %d entries for %s", len(entries), chat)
	return entries, nil
}

func (c *ChatCache) readEntry(path string) (model.CacheEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.CacheEntry{}, fmt.Errorf("reading cache file %s: %w", path, err)
	}
	entry, err := decodeEntry(c.validate, data)
	if err != nil {
		return model.CacheEntry{}, fmt.Errorf("%s: %w", path, err)
	}
	return entry, nil
}

// decodeEntry parses and validates one cache entry. A bare array is read as
// the scene list.
func decodeEntry(v *validator.Validate, data []byte) (model.CacheEntry, error) {
	var entry model.CacheEntry
	var err error
	if trimmed := strings.TrimSpace(string(data)); strings.HasPrefix(trimmed, "[") {
		err = json.Unmarshal([]byte(trimmed), &entry.Scenes)
	} else {
		err = json.Unmarshal(data, &entry)
	}
	if err != nil {
		return model.CacheEntry{}, fmt.Errorf("%w: %v", ErrSchemaInvalid, err)
	}
	if err := v.Struct(entry); err != nil {
		return model.CacheEntry{}, fmt.Errorf("%w: %s", ErrSchemaInvalid, describeValidation(err))
	}
	return entry, nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}

// Has reports whether chunk index of chat is cached.
func (c *ChatCache) Has(chat string, index int) bool {
	_, err := os.Stat(c.EntryPath(chat, index))
	return err == nil
}

// Write validates entry and stores it as chunk index of chat.
func (c *ChatCache) Write(chat string, index int, entry model.CacheEntry) error {
	if err := c.validate.Struct(entry); err != nil {
		return fmt.Errorf("%w: %s", ErrSchemaInvalid, describeValidation(err))
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}
	return writeFileAtomic(c.EntryPath(chat, index), data)
}

// Delete removes the chat's cache directory. Missing directories are fine.
func (c *ChatCache) Delete(chat string) error {
	dir := c.layout.ChatDir(chat)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("removing cache dir %s: %w", dir, err)
	}
	return nil
}

// Chats lists chats with a cache directory.
func (c *ChatCache) Chats() ([]string, error) {
	dirEntries, err := os.ReadDir(c.layout.CacheRoot())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var chats []string
	for _, e := range dirEntries {
		if e.IsDir() {
			chats = append(chats, e.Name())
		}
	}
	sort.Strings(chats)
	return chats, nil
}
