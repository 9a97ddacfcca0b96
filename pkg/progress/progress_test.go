package progress

import (
	"errors"
	"strings"
	"testing"
)

type memKV struct {
	data    map[string][]byte
	sets    int
	failSet error
}

func newMemKV() *memKV { return &memKV{data: map[string][]byte{}} }

func (m *memKV) Get(key string) ([]byte, error) {
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (m *memKV) Set(key string, value []byte) error {
	if m.failSet != nil {
		return m.failSet
	}
	m.sets++
	m.data[key] = value
	return nil
}

func (m *memKV) Delete(key string) error {
	delete(m.data, key)
	return nil
}

func TestPlayedKeySanitizes(t *testing.T) {
	if got := PlayedKey("family/2024"); got != "graphRecallState_family_2024" {
		t.Errorf("PlayedKey = %q", got)
	}
}

func TestPlayedRoundTrip(t *testing.T) {
	kv := newMemKV()
	s := NewPlayedStore(kv)

	empty, err := s.LoadPlayed("chat")
	if err != nil || len(empty) != 0 {
		t.Fatalf("fresh load = %v, %v", empty, err)
	}

	played := map[string]struct{}{"chat|0|1": {}, "chat|1|2": {}}
	if err := s.SavePlayed("chat", played); err != nil {
		t.Fatal(err)
	}
	raw := string(kv.data["graphRecallState_chat"])
	if !strings.Contains(raw, `"playedIds"`) {
		t.Errorf("blob = %s", raw)
	}

	got, err := s.LoadPlayed("chat")
	if err != nil || len(got) != 2 {
		t.Fatalf("reload = %v, %v", got, err)
	}
	if err := s.ClearPlayed("chat"); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.LoadPlayed("chat"); len(got) != 0 {
		t.Errorf("after clear = %v", got)
	}
}

func TestPlayedCorruptBlobIsEmpty(t *testing.T) {
	kv := newMemKV()
	kv.data[PlayedKey("c")] = []byte("{not json")
	got, err := NewPlayedStore(kv).LoadPlayed("c")
	if err != nil || len(got) != 0 {
		t.Errorf("corrupt load = %v, %v", got, err)
	}
}

func TestSaveFailureIsPersistenceError(t *testing.T) {
	kv := newMemKV()
	kv.failSet = errors.New("disk full")
	err := NewPlayedStore(kv).SavePlayed("c", map[string]struct{}{"x": {}})
	var pe *PersistenceError
	if !errors.As(err, &pe) || pe.Op != "save" {
		t.Fatalf("err = %v", err)
	}
}

func TestTrackerSavesOnlyOnChange(t *testing.T) {
	kv := newMemKV()
	tr := LoadTracker(kv)

	if err := tr.MarkChunkSolved([]string{"alice"}, []string{"bob"}); err != nil {
		t.Fatal(err)
	}
	if err := tr.MarkChunkSolved([]string{"alice"}, []string{"bob"}); err != nil {
		t.Fatal(err)
	}
	if kv.sets != 1 {
		t.Errorf("sets = %d, want 1", kv.sets)
	}
	if !tr.IsUnlocked("bob") {
		t.Error("bob not unlocked")
	}

	again := LoadTracker(kv)
	if _, ok := again.SolvedSet()["alice"]; !ok {
		t.Error("solved set not persisted")
	}
}
