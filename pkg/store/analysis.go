package store

import (
	"sync"
	"time"

	"github.com/vanderheijden86/ember/pkg/debug"
	"github.com/vanderheijden86/ember/pkg/events"
	"github.com/vanderheijden86/ember/pkg/model"
)

// DateKeyLayout formats saved-memory dates.
const DateKeyLayout = "2006-01-02"

// DateKey formats t as a saved-memory key.
func DateKey(t time.Time) string { return t.Format(DateKeyLayout) }

// AnalysisPersistence loads and saves the saved-memories document.
type AnalysisPersistence interface {
	LoadAnalysis() (model.AnalysisData, error)
	SaveAnalysis(model.AnalysisData) error
}

// MemorySavedEvent is published after a sentence is stored.
type MemorySavedEvent struct {
	Date     string
	Sentence string
	// Err is non-nil when the write-through failed; the memory is still kept
	// in memory for the session.
	Err error
}

// AnalysisStore keeps saved recall sentences by date. It is safe for
// concurrent use.
type AnalysisStore struct {
	mu      sync.Mutex
	persist AnalysisPersistence
	bus     *events.Bus
	data    model.AnalysisData
}

// NewAnalysisStore returns an empty store writing through persist.
func NewAnalysisStore(persist AnalysisPersistence, bus *events.Bus) *AnalysisStore {
	return &AnalysisStore{
		persist: persist,
		bus:     bus,
		data:    model.AnalysisData{SavedMemories: map[string][]string{}},
	}
}

// Load replaces the in-memory memories with the persisted document.
func (s *AnalysisStore) Load() error {
	data, err := s.persist.LoadAnalysis()
	if err != nil {
		return err
	}
	if data.SavedMemories == nil {
		data.SavedMemories = map[string][]string{}
	}
	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	return nil
}

// SaveMemory appends sentence under dateKey and writes the whole document.
// A failed write is logged and returned, but the memory stays in the store.
func (s *AnalysisStore) SaveMemory(dateKey, sentence string) error {
	s.mu.Lock()
	s.data.SavedMemories[dateKey] = append(s.data.SavedMemories[dateKey], sentence)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	err := s.persist.SaveAnalysis(snapshot)
	if err != nil {
		debug.Log("analysis: saving memory for %s: %v", dateKey, err)
	}
	s.bus.Publish(events.MemorySaved, MemorySavedEvent{Date: dateKey, Sentence: sentence, Err: err})
	return err
}

// Memories returns the sentences saved for dateKey.
func (s *AnalysisStore) Memories(dateKey string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.data.SavedMemories[dateKey]...)
}

// Dates lists dates with saved memories in ascending order.
func (s *AnalysisStore) Dates() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Dates()
}

// Snapshot deep-copies the current document.
func (s *AnalysisStore) Snapshot() model.AnalysisData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *AnalysisStore) snapshotLocked() model.AnalysisData {
	out := model.AnalysisData{SavedMemories: make(map[string][]string, len(s.data.SavedMemories))}
	for k, v := range s.data.SavedMemories {
		out.SavedMemories[k] = append([]string(nil), v...)
	}
	return out
}
