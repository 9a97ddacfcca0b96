// Package progress persists what the player has already done: recall rounds
// played per chat, entities unlocked and graph chunks solved.
package progress

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/ember/pkg/model"
)

// KV is a small key/value store for JSON blobs.
type KV interface {
	// Get returns ErrNotFound when key has no value.
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// ErrNotFound is returned by KV.Get for missing keys.
var ErrNotFound = errors.New("key not found")

// PersistenceError wraps a failed progress read or write. Callers log it and
// keep their in-memory state.
type PersistenceError struct {
	Key   string
	Op    string
	Cause error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("progress %s %q: %v", e.Op, e.Key, e.Cause)
}

func (e *PersistenceError) Unwrap() error { return e.Cause }

// PlayedKey is the storage key for a chat's played round ids.
func PlayedKey(chat string) string {
	return "graphRecallState_" + model.SanitizeChatName(chat)
}

type playedBlob struct {
	PlayedIDs []string `json:"playedIds"`
}

// PlayedStore reads and writes played round ids per chat.
type PlayedStore struct {
	kv KV
}

// NewPlayedStore wraps kv.
func NewPlayedStore(kv KV) *PlayedStore {
	return &PlayedStore{kv: kv}
}

// LoadPlayed returns the played ids for chat. A missing or unreadable blob
// yields an empty set; only storage failures are reported.
func (s *PlayedStore) LoadPlayed(chat string) (map[string]struct{}, error) {
	key := PlayedKey(chat)
	out := make(map[string]struct{})
	raw, err := s.kv.Get(key)
	if errors.Is(err, ErrNotFound) {
		return out, nil
	}
	if err != nil {
		return out, &PersistenceError{Key: key, Op: "load", Cause: err}
	}
	var blob playedBlob
	if err := json.Unmarshal(raw, &blob); err != nil {
		return out, nil
	}
	for _, id := range blob.PlayedIDs {
		out[id] = struct{}{}
	}
	return out, nil
}

// SavePlayed overwrites the played ids for chat.
func (s *PlayedStore) SavePlayed(chat string, played map[string]struct{}) error {
	key := PlayedKey(chat)
	ids := make([]string, 0, len(played))
	for id := range played {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	raw, err := json.Marshal(playedBlob{PlayedIDs: ids})
	if err != nil {
		return &PersistenceError{Key: key, Op: "encode", Cause: err}
	}
	if err := s.kv.Set(key, raw); err != nil {
		return &PersistenceError{Key: key, Op: "save", Cause: err}
	}
	return nil
}

// ClearPlayed forgets every played round of chat.
func (s *PlayedStore) ClearPlayed(chat string) error {
	key := PlayedKey(chat)
	if err := s.kv.Delete(key); err != nil && !errors.Is(err, ErrNotFound) {
		return &PersistenceError{Key: key, Op: "delete", Cause: err}
	}
	return nil
}

// TrackerKey stores the global unlock/solve state.
const TrackerKey = "progress"

type trackerBlob struct {
	Unlocked []string `json:"unlocked"`
	Solved   []string `json:"solved"`
}

// Tracker records unlocked entities and solved graph chunks across chats.
// It is safe for concurrent use and writes through on every change.
type Tracker struct {
	mu       sync.Mutex
	kv       KV
	unlocked map[string]struct{}
	solved   map[string]struct{}
}

// LoadTracker reads the tracker from kv. Missing or corrupt data starts
// empty, matching a first launch.
func LoadTracker(kv KV) *Tracker {
	t := &Tracker{
		kv:       kv,
		unlocked: make(map[string]struct{}),
		solved:   make(map[string]struct{}),
	}
	raw, err := kv.Get(TrackerKey)
	if err != nil {
		return t
	}
	var blob trackerBlob
	if json.Unmarshal(raw, &blob) != nil {
		return t
	}
	for _, id := range blob.Unlocked {
		t.unlocked[id] = struct{}{}
	}
	for _, id := range blob.Solved {
		t.solved[id] = struct{}{}
	}
	return t
}

// MarkChunkSolved records solved chunk ids and unlocked entities, saving
// only when something changed.
func (t *Tracker) MarkChunkSolved(ids, entities []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	changed := false
	for _, id := range ids {
		if _, ok := t.solved[id]; !ok {
			t.solved[id] = struct{}{}
			changed = true
		}
	}
	for _, e := range entities {
		if _, ok := t.unlocked[e]; !ok {
			t.unlocked[e] = struct{}{}
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return t.saveLocked()
}

func (t *Tracker) saveLocked() error {
	raw, err := json.Marshal(trackerBlob{Unlocked: sortedKeys(t.unlocked), Solved: sortedKeys(t.solved)})
	if err != nil {
		return &PersistenceError{Key: TrackerKey, Op: "encode", Cause: err}
	}
	if err := t.kv.Set(TrackerKey, raw); err != nil {
		return &PersistenceError{Key: TrackerKey, Op: "save", Cause: err}
	}
	return nil
}

// SolvedSet returns a copy of the solved ids.
func (t *Tracker) SolvedSet() map[string]struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]struct{}, len(t.solved))
	for id := range t.solved {
		out[id] = struct{}{}
	}
	return out
}

// IsUnlocked reports whether an entity was unlocked.
func (t *Tracker) IsUnlocked(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.unlocked[id]
	return ok
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
