// Package recall runs the fill-in-the-blank memory game for one chat.
//
// Rounds come from scenes extracted out of day chunks. The module keeps
// enough rounds processed ahead of the player, remembers which rounds were
// played, and saves completed sentences as memories.
package recall

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vanderheijden86/ember/pkg/debug"
	"github.com/vanderheijden86/ember/pkg/metrics"
	"github.com/vanderheijden86/ember/pkg/model"
)

// Processor is the chat processing service.
type Processor interface {
	// ProcessChat extracts and caches the batch's chunks. Already cached
	// chunks are skipped, so repeating a batch is harmless.
	ProcessChat(ctx context.Context, batch model.ChatBatch) error
	// LoadCache returns cached entries ordered by chunk index.
	LoadCache(ctx context.Context, chat string) ([]model.CacheEntry, error)
}

// MemorySaver stores a completed sentence under a YYYY-MM-DD key.
type MemorySaver interface {
	SaveMemory(dateKey, sentence string) error
}

// PlayedStore persists played round ids per chat.
type PlayedStore interface {
	LoadPlayed(chat string) (map[string]struct{}, error)
	SavePlayed(chat string, played map[string]struct{}) error
}

// Config tunes pacing.
type Config struct {
	// MinRounds is how many rounds bootstrap tries to have ready.
	MinRounds int `yaml:"min_rounds"`
	// FetchBatch is the number of chunks a background fetch processes.
	FetchBatch int `yaml:"fetch_batch"`
	// FetchEvery triggers a background fetch after this many completed rounds.
	FetchEvery int `yaml:"fetch_every"`
}

// DefaultConfig returns the standard pacing.
func DefaultConfig() Config {
	return Config{MinRounds: 10, FetchBatch: 5, FetchEvery: 2}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MinRounds <= 0 {
		c.MinRounds = d.MinRounds
	}
	if c.FetchBatch <= 0 {
		c.FetchBatch = d.FetchBatch
	}
	if c.FetchEvery <= 0 {
		c.FetchEvery = d.FetchEvery
	}
	return c
}

// Phase is the module's state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseBootstrapping
	PhaseReady
	PhaseInProgress
	PhaseComplete
	PhaseExhausted
	PhaseEmpty
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseBootstrapping:
		return "bootstrapping"
	case PhaseReady:
		return "ready"
	case PhaseInProgress:
		return "in_progress"
	case PhaseComplete:
		return "complete"
	case PhaseExhausted:
		return "exhausted"
	case PhaseEmpty:
		return "empty"
	case PhaseFailed:
		return "failed"
	}
	return "unknown"
}

// Playable reports whether a round is on screen.
func (p Phase) Playable() bool {
	return p == PhaseReady || p == PhaseInProgress || p == PhaseComplete
}

// Advance describes what happened after Next or Save.
type Advance struct {
	// Exhausted is set when no unplayed round remains; the caller should
	// leave the recall view.
	Exhausted bool
	// TriggerFetch asks the caller to start a BackgroundFetch.
	TriggerFetch bool
	// PersistErr carries a failed played-id or memory write. The session
	// continues with in-memory state.
	PersistErr error
	// Recalled lists the entity ids of the round just finished.
	Recalled []string
}

// FetchResult describes a BackgroundFetch call.
type FetchResult struct {
	// InFlight is set when another fetch was already running.
	InFlight bool
	// NothingLeft is set when every chunk was already processed.
	NothingLeft bool
	// Added is the number of new rounds.
	Added int
}

// Skipped reports whether the fetch did no processing.
func (r FetchResult) Skipped() bool { return r.InFlight || r.NothingLeft }

// Module is the recall game for a single chat. Methods are safe for
// concurrent use; processing calls run without holding the lock.
type Module struct {
	chat   string
	chunks []model.DayChunk
	proc   Processor
	saver  MemorySaver
	store  PlayedStore
	cfg    Config

	fetching    atomic.Bool
	fetchCycles atomic.Int64

	mu          sync.Mutex
	phase       Phase
	err         error
	rounds      []model.FillRound
	idx         int
	played      map[string]struct{}
	completed   int
	assignments []int // choice index per blank, -1 when empty
	cacheKeys   int
}

// New creates a module for chat. chunks is the chat's full day list; the
// chat name is sanitized for cache and storage keys.
func New(chat string, chunks []model.DayChunk, proc Processor, saver MemorySaver, store PlayedStore, cfg Config) *Module {
	return &Module{
		chat:   model.SanitizeChatName(chat),
		chunks: chunks,
		proc:   proc,
		saver:  saver,
		store:  store,
		cfg:    cfg.withDefaults(),
		played: make(map[string]struct{}),
	}
}

// Chat is the sanitized chat name.
func (m *Module) Chat() string { return m.chat }

// Flatten turns cache entries into rounds, one per scene, dated by the
// chunk each entry came from.
func Flatten(entries []model.CacheEntry, chat string, chunks []model.DayChunk) []model.FillRound {
	var rounds []model.FillRound
	for ci, entry := range entries {
		date := ""
		if ci < len(chunks) {
			date = chunks[ci].Date
		}
		for _, sc := range entry.Scenes {
			r := model.FillRound{
				ID:       model.RoundID(chat, ci, sc.ID),
				Template: sc.Memory,
				Date:     date,
				Entities: make([]model.RoundEntity, 0, len(sc.Entities)),
			}
			for _, e := range sc.Entities {
				r.Entities = append(r.Entities, model.RoundEntity{ID: e.Text, Text: e.Text})
			}
			rounds = append(rounds, r)
		}
	}
	return rounds
}

// Bootstrap loads the cache, processes chunks until MinRounds rounds exist
// or the chat runs out, restores played ids and picks the first unplayed
// round. A nil error means rounds are available (or all were played); the
// caller should then start a BackgroundFetch to prefetch ahead.
func (m *Module) Bootstrap(ctx context.Context) error {
	defer debug.LogEnterExit("recall.Bootstrap " + m.chat)()

	m.mu.Lock()
	m.phase = PhaseBootstrapping
	m.err = nil
	m.mu.Unlock()

	fail := func(phase string, cause error) error {
		err := BootstrapError{Chat: m.chat, Phase: phase, Cause: cause, Time: time.Now()}
		m.mu.Lock()
		m.phase = PhaseFailed
		m.err = err
		m.mu.Unlock()
		return err
	}

	entries, err := m.proc.LoadCache(ctx, m.chat)
	if err != nil {
		return fail("load_cache", err)
	}
	rounds := Flatten(entries, m.chat, m.chunks)
	processed, total := len(entries), len(m.chunks)

	for len(rounds) < m.cfg.MinRounds && processed < total {
		n := min(m.cfg.MinRounds-len(rounds), total-processed)
		batch := model.ChatBatch{Name: m.chat, Start: processed, Chunks: m.chunks[processed : processed+n]}
		debug.Log("recall: bootstrap processing chunks %d-%d", processed, processed+n)
		if err := m.proc.ProcessChat(ctx, batch); err != nil {
			return fail("process", err)
		}
		entries, err = m.proc.LoadCache(ctx, m.chat)
		if err != nil {
			return fail("reload_cache", err)
		}
		if len(entries) <= processed {
			return fail("process", ErrNoProgress)
		}
		processed = len(entries)
		rounds = Flatten(entries, m.chat, m.chunks)
	}

	played, perr := m.store.LoadPlayed(m.chat)
	if perr != nil {
		debug.Log("recall: loading played ids: %v", perr)
	}
	valid := make(map[string]struct{}, len(rounds))
	for _, r := range rounds {
		valid[r.ID] = struct{}{}
	}
	pruned := make(map[string]struct{}, len(played))
	for id := range played {
		if _, ok := valid[id]; ok {
			pruned[id] = struct{}{}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.rounds = rounds
	m.played = pruned
	m.completed = len(pruned)
	m.cacheKeys = processed
	debug.Log("recall: bootstrap loaded %d rounds from %d chunks, %d played", len(rounds), processed, len(pruned))

	if len(rounds) == 0 {
		m.phase = PhaseEmpty
		m.err = ErrNoPlayableContent
		return ErrNoPlayableContent
	}
	if next := m.nextUnplayedLocked(0); next >= 0 {
		m.enterRoundLocked(next)
	} else {
		m.idx = len(rounds)
		m.phase = PhaseExhausted
	}
	return nil
}

func (m *Module) nextUnplayedLocked(from int) int {
	for i := from; i < len(m.rounds); i++ {
		if _, ok := m.played[m.rounds[i].ID]; !ok {
			return i
		}
	}
	return -1
}

func (m *Module) enterRoundLocked(i int) {
	m.idx = i
	m.assignments = make([]int, len(m.rounds[i].Entities))
	for j := range m.assignments {
		m.assignments[j] = -1
	}
	if len(m.assignments) == 0 {
		m.phase = PhaseComplete
	} else {
		m.phase = PhaseReady
	}
}

func (m *Module) currentLocked() (model.FillRound, bool) {
	if !m.phase.Playable() || m.idx < 0 || m.idx >= len(m.rounds) {
		return model.FillRound{}, false
	}
	return m.rounds[m.idx], true
}

// Choice is one entity button.
type Choice struct {
	Index int
	Text  string
	// Used is set when the entity already fills a blank.
	Used bool
	// Slot is the blank the entity fills, -1 when unused.
	Slot int
	// Disabled is set when the entity cannot be assigned now.
	Disabled bool
}

func (m *Module) choicesLocked() []Choice {
	r, ok := m.currentLocked()
	if !ok {
		return nil
	}
	empty := 0
	slot := make(map[int]int, len(m.assignments))
	for j, a := range m.assignments {
		if a < 0 {
			empty++
		} else {
			slot[a] = j
		}
	}
	out := make([]Choice, len(r.Entities))
	for i, e := range r.Entities {
		j, used := slot[i]
		if !used {
			j = -1
		}
		out[i] = Choice{Index: i, Text: e.Text, Used: used, Slot: j, Disabled: used || empty == 0}
	}
	return out
}

// Choices lists the current round's entity buttons.
func (m *Module) Choices() []Choice {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.choicesLocked()
}

// AssignEntity puts choice i into the first empty blank. It reports false
// when the choice is already used, out of range, or no blank is empty.
func (m *Module) AssignEntity(i int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.currentLocked()
	if !ok || i < 0 || i >= len(r.Entities) {
		return false
	}
	slot := -1
	for j, a := range m.assignments {
		if a == i {
			return false
		}
		if a < 0 && slot < 0 {
			slot = j
		}
	}
	if slot < 0 {
		return false
	}
	m.assignments[slot] = i
	m.updateFillPhaseLocked()
	return true
}

// ClearSlot empties blank i. It reports false when the blank was empty.
func (m *Module) ClearSlot(i int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.currentLocked(); !ok || i < 0 || i >= len(m.assignments) || m.assignments[i] < 0 {
		return false
	}
	m.assignments[i] = -1
	m.updateFillPhaseLocked()
	return true
}

func (m *Module) updateFillPhaseLocked() {
	filled := 0
	for _, a := range m.assignments {
		if a >= 0 {
			filled++
		}
	}
	switch {
	case filled == len(m.assignments):
		m.phase = PhaseComplete
	case filled == 0:
		m.phase = PhaseReady
	default:
		m.phase = PhaseInProgress
	}
}

// IsComplete reports whether every blank of the current round is filled.
func (m *Module) IsComplete() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase == PhaseComplete
}

func (m *Module) assignedTextsLocked() []string {
	r, ok := m.currentLocked()
	if !ok {
		return nil
	}
	out := make([]string, len(m.assignments))
	for i, a := range m.assignments {
		if a >= 0 {
			out[i] = r.Entities[a].Text
		}
	}
	return out
}

// Assignments returns the entity text in each blank, "" for empty ones.
func (m *Module) Assignments() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.assignedTextsLocked()
}

// Fill substitutes values into the template's blanks in order. Missing
// values leave the blank empty.
func Fill(template string, values []string) string {
	parts := strings.Split(template, model.BlankMarker)
	var b strings.Builder
	for i, p := range parts {
		b.WriteString(p)
		if i < len(values) && i < len(parts)-1 {
			b.WriteString(values[i])
		}
	}
	return b.String()
}

// Sentence is the current round's template with assigned entities filled in.
func (m *Module) Sentence() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.currentLocked()
	if !ok {
		return ""
	}
	return Fill(r.Template, m.assignedTextsLocked())
}

// Next finishes the completed round without saving.
func (m *Module) Next() (Advance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.currentLocked(); !ok {
		return Advance{}, ErrNoActiveRound
	}
	if m.phase != PhaseComplete {
		return Advance{}, ErrRoundIncomplete
	}
	return m.advanceLocked(), nil
}

// Save stores the filled sentence under the round's date, then advances.
func (m *Module) Save() (Advance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.currentLocked()
	if !ok {
		return Advance{}, ErrNoActiveRound
	}
	if m.phase != PhaseComplete {
		return Advance{}, ErrRoundIncomplete
	}
	sentence := Fill(r.Template, m.assignedTextsLocked())
	saveErr := m.saver.SaveMemory(r.Date, sentence)
	if saveErr != nil {
		debug.Log("recall: saving memory for %s: %v", r.Date, saveErr)
	}
	adv := m.advanceLocked()
	if adv.PersistErr == nil {
		adv.PersistErr = saveErr
	}
	return adv, nil
}

func (m *Module) advanceLocked() Advance {
	var adv Advance
	done := m.rounds[m.idx]
	m.played[done.ID] = struct{}{}
	m.completed++
	for _, e := range done.Entities {
		adv.Recalled = append(adv.Recalled, e.ID)
	}

	snapshot := make(map[string]struct{}, len(m.played))
	for id := range m.played {
		snapshot[id] = struct{}{}
	}
	if err := m.store.SavePlayed(m.chat, snapshot); err != nil {
		debug.Log("recall: persisting played ids: %v", err)
		adv.PersistErr = err
	}

	adv.TriggerFetch = m.completed%m.cfg.FetchEvery == 0
	if next := m.nextUnplayedLocked(m.idx + 1); next >= 0 {
		m.enterRoundLocked(next)
	} else {
		m.idx = len(m.rounds)
		m.assignments = nil
		m.phase = PhaseExhausted
		adv.Exhausted = true
	}
	return adv
}

// BackgroundFetch processes the next FetchBatch unprocessed chunks and merges
// the new rounds. Overlapping calls are no-ops; every call counts as an
// attempt. Failures leave the current round untouched.
func (m *Module) BackgroundFetch(ctx context.Context) (FetchResult, error) {
	m.fetchCycles.Add(1)
	metrics.BackgroundFetches.Inc()
	if !m.fetching.CompareAndSwap(false, true) {
		debug.Log("recall: background fetch skipped, already in progress")
		return FetchResult{InFlight: true}, nil
	}
	defer m.fetching.Store(false)

	entries, err := m.proc.LoadCache(ctx, m.chat)
	if err != nil {
		return FetchResult{}, FetchError{Chat: m.chat, Phase: "load_cache", Cause: err}
	}
	start := len(entries)
	m.mu.Lock()
	m.cacheKeys = start
	m.mu.Unlock()
	if start >= len(m.chunks) {
		return FetchResult{NothingLeft: true}, nil
	}

	end := min(start+m.cfg.FetchBatch, len(m.chunks))
	batch := model.ChatBatch{Name: m.chat, Start: start, Chunks: m.chunks[start:end]}
	if err := m.proc.ProcessChat(ctx, batch); err != nil {
		return FetchResult{}, FetchError{Chat: m.chat, Start: start, Phase: "process", Cause: err}
	}
	entries, err = m.proc.LoadCache(ctx, m.chat)
	if err != nil {
		return FetchResult{}, FetchError{Chat: m.chat, Start: start, Phase: "reload_cache", Cause: err}
	}

	added := m.merge(entries)
	debug.Log("recall: background fetch added %d rounds", added)
	return FetchResult{Added: added}, nil
}

// merge swaps in rounds rebuilt from entries, keeping the current round and
// its assignments when it still exists.
func (m *Module) merge(entries []model.CacheEntry) int {
	rounds := Flatten(entries, m.chat, m.chunks)

	m.mu.Lock()
	defer m.mu.Unlock()
	added := len(rounds) - len(m.rounds)
	m.cacheKeys = len(entries)

	cur, hasCur := m.currentLocked()
	m.rounds = rounds
	if hasCur {
		for i, r := range rounds {
			if r.ID == cur.ID {
				m.idx = i
				return added
			}
		}
	}
	switch m.phase {
	case PhaseExhausted, PhaseEmpty:
		if next := m.nextUnplayedLocked(0); next >= 0 {
			m.err = nil
			m.enterRoundLocked(next)
		} else {
			m.idx = len(rounds)
		}
	case PhaseReady, PhaseInProgress, PhaseComplete:
		if next := m.nextUnplayedLocked(0); next >= 0 {
			m.enterRoundLocked(next)
		} else {
			m.idx = len(rounds)
			m.phase = PhaseExhausted
		}
	}
	return added
}

// Snapshot is a read-only view of the module for rendering.
type Snapshot struct {
	Phase       Phase
	Err         error
	Round       model.FillRound
	HasRound    bool
	Index       int
	Total       int
	Completed   int
	Assignments []string
	Choices     []Choice
	Sentence    string
	FetchCycles int64
	Fetching    bool
	CacheKeys   int
}

// Snapshot captures the current state.
func (m *Module) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Snapshot{
		Phase:       m.phase,
		Err:         m.err,
		Index:       m.idx,
		Total:       len(m.rounds),
		Completed:   m.completed,
		FetchCycles: m.fetchCycles.Load(),
		Fetching:    m.fetching.Load(),
		CacheKeys:   m.cacheKeys,
	}
	if r, ok := m.currentLocked(); ok {
		s.Round = r
		s.HasRound = true
		s.Assignments = m.assignedTextsLocked()
		s.Choices = m.choicesLocked()
		s.Sentence = Fill(r.Template, s.Assignments)
	}
	return s
}

// FetchCycles counts BackgroundFetch attempts, skipped ones included.
func (m *Module) FetchCycles() int64 { return m.fetchCycles.Load() }

// Played reports whether a round id has been played.
func (m *Module) Played(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.played[id]
	return ok
}
