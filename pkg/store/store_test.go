package store

import (
	"errors"
	"math"
	"math/rand/v2"
	"slices"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/vanderheijden86/ember/pkg/anim"
	"github.com/vanderheijden86/ember/pkg/camera"
	"github.com/vanderheijden86/ember/pkg/events"
	"github.com/vanderheijden86/ember/pkg/model"
)

type fakeTracker struct {
	solved   map[string]struct{}
	unlocked map[string]struct{}
	calls    int
}

func (f *fakeTracker) MarkChunkSolved(ids, entities []string) error {
	f.calls++
	for _, id := range ids {
		f.solved[id] = struct{}{}
	}
	for _, e := range entities {
		if f.unlocked == nil {
			f.unlocked = map[string]struct{}{}
		}
		f.unlocked[e] = struct{}{}
	}
	return nil
}

func (f *fakeTracker) IsUnlocked(id string) bool {
	_, ok := f.unlocked[id]
	return ok
}

func (f *fakeTracker) SolvedSet() map[string]struct{} {
	out := map[string]struct{}{}
	for k := range f.solved {
		out[k] = struct{}{}
	}
	return out
}

func scene(id int, memory string, entities ...string) model.Scene {
	sc := model.Scene{ID: id, Memory: memory}
	for _, e := range entities {
		sc.Entities = append(sc.Entities, model.SceneEntity{Text: e, Type: "person"})
	}
	return sc
}

func loaded(t testing.TB, opts ...GraphOption) (*GraphStore, *events.Bus) {
	bus := events.NewBus()
	opts = append([]GraphOption{WithRand(rand.New(rand.NewPCG(3, 4)))}, opts...)
	s := NewGraphStore(bus, opts...)
	s.LoadGraph("family", []model.CacheEntry{
		{Scenes: []model.Scene{scene(1, "___ met ___", "Ann", "Bo")}},
		{Scenes: []model.Scene{scene(1, "___ called ___", "Ann", "Cy")}},
		{Scenes: []model.Scene{scene(1, "___ slept", "Dee")}},
	})
	return s, bus
}

func TestLoadGraph(t *testing.T) {
	s, _ := loaded(t)
	st := s.State()
	if len(st.Nodes) != 4 {
		t.Fatalf("nodes = %d", len(st.Nodes))
	}
	if st.Nodes["Ann"].Ring != 0 {
		t.Errorf("Ann ring = %d", st.Nodes["Ann"].Ring)
	}
	if s.Stats().Edges != 2 || s.Stats().Components != 2 {
		t.Errorf("stats = %+v", s.Stats())
	}
	if len(s.Scenes()) != 3 {
		t.Errorf("scenes = %d", len(s.Scenes()))
	}
}

func TestSelectionToggleAndExclusive(t *testing.T) {
	s, bus := loaded(t)
	var published []string
	bus.Subscribe(events.NodeSelected, func(e events.Event) { published = append(published, e.Payload.(string)) })

	s.ClickNode("Ann")
	if s.State().SelectedNode != "Ann" {
		t.Fatalf("selected = %q", s.State().SelectedNode)
	}
	s.ClickNode("Bo")
	if s.State().SelectedNode != "Bo" {
		t.Fatalf("selection not replaced: %q", s.State().SelectedNode)
	}
	s.ClickNode("Bo")
	if s.State().SelectedNode != "" {
		t.Fatalf("second click should deselect")
	}
	s.ClickNode("Ann")
	s.ClickBackground()
	if s.State().SelectedNode != "" {
		t.Fatalf("background click should deselect")
	}
	if len(published) != 5 {
		t.Errorf("events = %v", published)
	}
}

func TestSelectUnknownIsNoop(t *testing.T) {
	s, _ := loaded(t)
	s.SelectGraphNode("Ann")
	s.SelectGraphNode("nobody")
	if s.State().SelectedNode != "Ann" {
		t.Errorf("unknown id changed selection to %q", s.State().SelectedNode)
	}
}

func TestSelectionNudgesProgress(t *testing.T) {
	s, _ := loaded(t)
	st := s.State()
	for _, n := range st.Nodes {
		n.AnimationProgress = 0.6
	}
	s.SelectGraphNode("Ann")
	if st.Nodes["Ann"].AnimationProgress != 1 {
		t.Error("selected progress not 1")
	}
	if st.Nodes["Bo"].AnimationProgress != 1 {
		t.Errorf("connected progress = %v", st.Nodes["Bo"].AnimationProgress)
	}
	if st.Nodes["Dee"].AnimationProgress != model.MinProgress {
		t.Errorf("unconnected progress = %v", st.Nodes["Dee"].AnimationProgress)
	}

	s.SelectGraphNode("")
	for id, n := range st.Nodes {
		if n.AnimationProgress != n.RestingProgress() {
			t.Errorf("%s not reset to resting progress", id)
		}
	}
}

func TestSelectionNeverMovesCamera(t *testing.T) {
	s, _ := loaded(t)
	s.SetZoomLevel(2)
	s.SetViewOffset(model.Vec2{X: 40, Y: -10})
	s.ClickNode("Cy")
	s.ClickBackground()
	if s.State().ZoomLevel != 2 || s.State().ViewOffset != (model.Vec2{X: 40, Y: -10}) {
		t.Errorf("camera moved: zoom %v offset %v", s.State().ZoomLevel, s.State().ViewOffset)
	}
}

func TestHoverKeepsProgress(t *testing.T) {
	s, _ := loaded(t)
	before := s.State().Nodes["Dee"].AnimationProgress
	s.SetHoveredNode("Dee")
	if s.State().HoveredNode != "Dee" || s.State().Nodes["Dee"].AnimationProgress != before {
		t.Error("hover must only set HoveredNode")
	}
	s.SetHoveredNode("")
	if s.State().HoveredNode != "" {
		t.Error("hover not cleared")
	}
}

func TestZoomPanReset(t *testing.T) {
	s, _ := loaded(t)
	s.SetZoomLevel(100)
	if s.State().ZoomLevel != camera.MaxZoom {
		t.Errorf("zoom = %v", s.State().ZoomLevel)
	}
	s.SetZoomLevel(2)
	s.Pan(10, 20)
	if s.State().ViewOffset != (model.Vec2{X: -5, Y: 10}) {
		t.Errorf("offset = %v", s.State().ViewOffset)
	}
	s.SelectGraphNode("Ann")
	s.SetHoveredNode("Bo")
	s.ResetGraphView()
	st := s.State()
	if st.ZoomLevel != 1 || st.ViewOffset != (model.Vec2{}) || st.SelectedNode != "" || st.HoveredNode != "" {
		t.Errorf("reset left %+v", st)
	}
	for id, n := range st.Nodes {
		if n.AnimationProgress != n.RestingProgress() {
			t.Errorf("%s progress = %v, want resting %v", id, n.AnimationProgress, n.RestingProgress())
		}
	}
}

func TestReloadKeepsInteractionState(t *testing.T) {
	s, _ := loaded(t)
	s.SetZoomLevel(2)
	s.Pan(10, 0)
	s.ToggleLabelExpansion("person")
	s.SetHoveredNode("Cy")
	s.StartRecallRound([]string{"Bo", "Dee"})
	s.SelectGraphNode("Ann")

	// Dee's scene is gone from the rebuilt cache.
	s.LoadGraph("family", []model.CacheEntry{
		{Scenes: []model.Scene{scene(1, "___ met ___", "Ann", "Bo")}},
		{Scenes: []model.Scene{scene(1, "___ called ___", "Ann", "Cy")}},
	})
	st := s.State()
	if st.SelectedNode != "Ann" || st.HoveredNode != "Cy" || !st.IsLabelExpanded("person") {
		t.Errorf("interaction state lost: selected %q hovered %q", st.SelectedNode, st.HoveredNode)
	}
	if st.ZoomLevel != 2 || st.ViewOffset != (model.Vec2{X: -5}) {
		t.Errorf("camera = zoom %v offset %v", st.ZoomLevel, st.ViewOffset)
	}
	if !st.Game.Active || !slices.Equal(st.Game.ChunkIDs, []string{"Bo"}) || st.FilterMode != model.FilterUnlockedOnly {
		t.Errorf("game = %+v filter %v", st.Game, st.FilterMode)
	}
	if st.Nodes["Ann"].AnimationProgress != 1 {
		t.Errorf("selected node progress = %v", st.Nodes["Ann"].AnimationProgress)
	}
}

func TestLoadingAnotherChatResets(t *testing.T) {
	s, _ := loaded(t)
	s.StartRecallRound([]string{"Bo"})
	s.SelectGraphNode("Ann")
	s.LoadGraph("work", []model.CacheEntry{
		{Scenes: []model.Scene{scene(1, "___ met ___", "Ann", "Bo")}},
	})
	st := s.State()
	if st.SelectedNode != "" || st.Game.Active || st.FilterMode != model.FilterFull {
		t.Errorf("new chat kept state: %+v", st)
	}
}

func TestUnlockEntities(t *testing.T) {
	tr := &fakeTracker{solved: map[string]struct{}{}}
	s, _ := loaded(t, WithTracker(tr))
	s.UnlockEntities(nil)
	if tr.calls != 0 {
		t.Error("nothing to unlock should not write")
	}
	s.UnlockEntities([]string{"Ann", "Bo"})
	if !s.IsUnlocked("Ann") || !s.IsUnlocked("Bo") || s.IsUnlocked("Cy") {
		t.Errorf("unlocked = %v", tr.unlocked)
	}

	bare, _ := loaded(t)
	bare.UnlockEntities([]string{"Ann"})
	if bare.IsUnlocked("Ann") {
		t.Error("a store without a tracker has nothing unlocked")
	}
}

func TestToggleLabelExpansion(t *testing.T) {
	s, _ := loaded(t)
	s.ToggleLabelExpansion("person")
	if !s.State().IsLabelExpanded("person") {
		t.Fatal("label not expanded")
	}
	s.ToggleLabelExpansion("person")
	if s.State().IsLabelExpanded("person") {
		t.Fatal("label not collapsed")
	}
}

func TestRecallRoundLifecycle(t *testing.T) {
	tr := &fakeTracker{solved: map[string]struct{}{}}
	s, _ := loaded(t, WithTracker(tr))
	s.SetSelectedView(model.ViewRecall)

	s.StartRecallRound([]string{"Bo", "Cy"})
	st := s.State()
	if !st.Game.Active || st.FilterMode != model.FilterUnlockedOnly {
		t.Fatalf("game = %+v filter = %v", st.Game, st.FilterMode)
	}

	s.HandleRecallNodeSelected("Dee")
	if len(st.Game.ChunkIDs) != 2 {
		t.Fatal("non-pending node changed the round")
	}
	s.ClickNode("Bo")
	if len(st.Game.ChunkIDs) != 1 || st.Game.ChunkIDs[0] != "Cy" {
		t.Fatalf("pending = %v", st.Game.ChunkIDs)
	}
	s.HandleRecallNodeSelected("Cy")
	if st.Game.Active || st.FilterMode != model.FilterFull {
		t.Errorf("round should end: %+v", st.Game)
	}
	if tr.calls != 2 {
		t.Errorf("tracker calls = %d", tr.calls)
	}
}

func TestStartRecallRoundEmpty(t *testing.T) {
	s, _ := loaded(t)
	s.StartRecallRound([]string{})
	if !s.State().Game.Active || s.State().FilterMode != model.FilterFull {
		t.Errorf("empty round: %+v %v", s.State().Game, s.State().FilterMode)
	}
}

func TestLeavingRecallResetsGame(t *testing.T) {
	s, _ := loaded(t)
	s.SetSelectedView(model.ViewRecall)
	s.StartRecallRound(nil)
	s.SelectGraphNode("Ann")

	s.SetSelectedView(model.ViewGraph)
	st := s.State()
	if st.Game.Active || len(st.Game.ChunkIDs) != 0 || st.FilterMode != model.FilterFull || st.SelectedNode != "" {
		t.Errorf("state after leaving recall: %+v", st)
	}
	if s.SelectedView() != model.ViewGraph {
		t.Errorf("view = %v", s.SelectedView())
	}
}

func TestResumeActiveRound(t *testing.T) {
	s, _ := loaded(t)
	s.StartRecallRound([]string{"Ann"})
	s.State().Game.Active = false
	s.ResumeActiveRound()
	if !s.State().Game.Active || s.State().FilterMode != model.FilterUnlockedOnly {
		t.Errorf("resume failed: %+v", s.State().Game)
	}
}

func TestRandomPendingSliceSkipsSolved(t *testing.T) {
	tr := &fakeTracker{solved: map[string]struct{}{"Ann": {}, "Bo": {}, "Cy": {}}}
	s, _ := loaded(t, WithTracker(tr))
	for i := 0; i < 20; i++ {
		got := s.RandomPendingSlice()
		if len(got) != 1 || got[0] != "Dee" {
			t.Fatalf("slice = %v", got)
		}
	}
	tr.solved["Dee"] = struct{}{}
	if got := s.RandomPendingSlice(); got != nil {
		t.Errorf("all solved: %v", got)
	}
}

func TestPropertySelectDeselectRestoresRest(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s, _ := loaded(t)
		ids := []string{"Ann", "Bo", "Cy", "Dee"}
		var e anim.Engine
		ops := rapid.IntRange(1, 40).Draw(rt, "ops")
		for i := 0; i < ops; i++ {
			switch rapid.IntRange(0, 3).Draw(rt, "op") {
			case 0:
				s.ClickNode(rapid.SampledFrom(ids).Draw(rt, "id"))
			case 1:
				s.SetHoveredNode(rapid.SampledFrom(append(ids, "")).Draw(rt, "hover"))
			case 2:
				s.ClickBackground()
			default:
				e.Step(s.State())
			}
			for id, n := range s.State().Nodes {
				if n.AnimationProgress < model.MinProgress || n.AnimationProgress > 1 {
					rt.Fatalf("%s progress %v", id, n.AnimationProgress)
				}
			}
		}
		s.ClickBackground()
		for i := 0; i < 200; i++ {
			e.Step(s.State())
		}
		for id, n := range s.State().Nodes {
			if math.Abs(n.AnimationProgress-n.RestingProgress()) > 1e-9 {
				rt.Fatalf("%s progress %v, resting %v", id, n.AnimationProgress, n.RestingProgress())
			}
		}
	})
}

type memAnalysis struct {
	data  model.AnalysisData
	fail  error
	saves int
}

func (m *memAnalysis) LoadAnalysis() (model.AnalysisData, error) { return m.data, nil }

func (m *memAnalysis) SaveAnalysis(d model.AnalysisData) error {
	if m.fail != nil {
		return m.fail
	}
	m.saves++
	m.data = d
	return nil
}

func TestAnalysisSaveMemory(t *testing.T) {
	p := &memAnalysis{data: model.AnalysisData{SavedMemories: map[string][]string{"2024-01-01": {"old"}}}}
	bus := events.NewBus()
	var saved []MemorySavedEvent
	bus.Subscribe(events.MemorySaved, func(e events.Event) { saved = append(saved, e.Payload.(MemorySavedEvent)) })

	s := NewAnalysisStore(p, bus)
	if err := s.Load(); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveMemory("2024-01-01", "a met b today"); err != nil {
		t.Fatal(err)
	}
	if got := p.data.SavedMemories["2024-01-01"]; len(got) != 2 || got[1] != "a met b today" {
		t.Errorf("persisted = %v", got)
	}
	if len(saved) != 1 || saved[0].Err != nil {
		t.Errorf("events = %+v", saved)
	}
}

func TestAnalysisPersistenceFailureKeepsMemory(t *testing.T) {
	p := &memAnalysis{fail: errors.New("read-only")}
	s := NewAnalysisStore(p, events.NewBus())
	if err := s.SaveMemory("2024-02-02", "kept"); err == nil {
		t.Fatal("expected error")
	}
	if got := s.Memories("2024-02-02"); len(got) != 1 || got[0] != "kept" {
		t.Errorf("memories = %v", got)
	}
	if dates := s.Dates(); len(dates) != 1 {
		t.Errorf("dates = %v", dates)
	}
}

func TestDateKey(t *testing.T) {
	if got := DateKey(time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)); got != "2024-03-09" {
		t.Errorf("DateKey = %q", got)
	}
}
