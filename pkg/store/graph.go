// Package store owns ember's mutable application state and is the only place
// that changes it. Every mutation publishes an event on the injected bus.
package store

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/vanderheijden86/ember/pkg/camera"
	"github.com/vanderheijden86/ember/pkg/debug"
	"github.com/vanderheijden86/ember/pkg/events"
	"github.com/vanderheijden86/ember/pkg/layout"
	"github.com/vanderheijden86/ember/pkg/model"
	"github.com/vanderheijden86/ember/pkg/progress"
)

const (
	// SelectBoost is the immediate progress jump for neighbours of a new selection.
	SelectBoost = 0.5
	// SelectDrop is the immediate progress drop for everything else.
	SelectDrop = 0.5
	// MaxRecallSlice bounds how many nodes one graph recall round asks for.
	MaxRecallSlice = 3
)

// SolvedTracker is the subset of progress.Tracker the graph store needs.
type SolvedTracker interface {
	MarkChunkSolved(ids, entities []string) error
	SolvedSet() map[string]struct{}
	IsUnlocked(id string) bool
}

var _ SolvedTracker = (*progress.Tracker)(nil)

// GraphOption configures a GraphStore.
type GraphOption func(*GraphStore)

// WithRand sets the source for layout jitter and recall sampling.
func WithRand(r *rand.Rand) GraphOption {
	return func(s *GraphStore) { s.rng = r }
}

// WithBloom makes rebuilt graphs animate outward from the origin.
func WithBloom(on bool) GraphOption {
	return func(s *GraphStore) { s.bloom = on }
}

// WithTracker records solved recall nodes in t.
func WithTracker(t SolvedTracker) GraphOption {
	return func(s *GraphStore) { s.tracker = t }
}

// GraphStore holds the graph of the selected chat plus view state.
//
// It is not safe for concurrent use: the UI loop calls it from one goroutine
// and async results are applied there too.
type GraphStore struct {
	bus     *events.Bus
	tracker SolvedTracker
	rng     *rand.Rand
	bloom   bool

	chat   string
	view   model.ViewType
	scenes map[string][]model.EntityItem
	stats  layout.Stats
	state  *model.GraphState
}

// NewGraphStore returns an empty store on bus.
func NewGraphStore(bus *events.Bus, opts ...GraphOption) *GraphStore {
	s := &GraphStore{
		bus:   bus,
		view:  model.ViewGraph,
		state: model.NewGraphState(nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return s
}

// State exposes the graph state to the frame loop and renderers. Callers
// outside the animation engine must treat it as read-only.
func (s *GraphStore) State() *model.GraphState { return s.state }

// Chat is the currently loaded chat name.
func (s *GraphStore) Chat() string { return s.chat }

// Scenes returns the layout input keyed by chat|chunkIndex.
func (s *GraphStore) Scenes() map[string][]model.EntityItem { return s.scenes }

// Stats describes the current graph.
func (s *GraphStore) Stats() layout.Stats { return s.stats }

// SelectedView is the active top-level view.
func (s *GraphStore) SelectedView() model.ViewType { return s.view }

// LoadGraph replaces the graph with one built from chat's cache entries.
// Zoom is kept. Rebuilding the chat already loaded also keeps the selection,
// hover, pan, expanded labels and recall round for nodes that still exist;
// another chat starts from a fresh state.
func (s *GraphStore) LoadGraph(chat string, entries []model.CacheEntry) layout.Stats {
	scenes := model.ScenesFromCache(model.SanitizeChatName(chat), entries)
	res := layout.Build(scenes, layout.Options{Rand: s.rng, Bloom: s.bloom})

	prev := s.state
	same := chat == s.chat
	s.chat = chat
	s.scenes = scenes
	s.stats = res.Stats
	s.state = model.NewGraphState(res.Nodes)
	if prev.ZoomLevel > 0 {
		s.state.ZoomLevel = prev.ZoomLevel
	}
	if same {
		s.carryOver(prev)
	}

	debug.Log("graph: %s rebuilt with %d nodes, %d edges", chat, res.Stats.Nodes, res.Stats.Edges)
	s.bus.Publish(events.GraphRebuilt, res.Stats)
	return res.Stats
}

// carryOver restores interaction state from prev onto the rebuilt graph.
// Ids that vanished from the graph are dropped.
func (s *GraphStore) carryOver(prev *model.GraphState) {
	st := s.state
	st.ViewOffset = prev.ViewOffset
	for label := range prev.ExpandedLabels {
		st.ExpandedLabels[label] = struct{}{}
	}
	if _, ok := st.Nodes[prev.HoveredNode]; ok {
		st.HoveredNode = prev.HoveredNode
	}
	for _, id := range prev.Game.ChunkIDs {
		if _, ok := st.Nodes[id]; ok {
			st.Game.ChunkIDs = append(st.Game.ChunkIDs, id)
		}
	}
	if prev.Game.Active {
		s.ResumeActiveRound()
	}
	if _, ok := st.Nodes[prev.SelectedNode]; ok {
		s.SelectGraphNode(prev.SelectedNode)
	}
}

// SelectGraphNode selects id exclusively, or deselects when id is "".
// Unknown ids are ignored. Progress jumps immediately so the change reads
// on the next frame; the animation engine eases from there.
func (s *GraphStore) SelectGraphNode(id string) {
	if id != "" {
		if _, ok := s.state.Nodes[id]; !ok {
			return
		}
	}
	s.state.SelectedNode = id

	if id == "" {
		for _, n := range s.state.Nodes {
			n.AnimationProgress = n.RestingProgress()
		}
	} else {
		sel := s.state.Nodes[id]
		for nid, n := range s.state.Nodes {
			switch {
			case nid == id:
				n.AnimationProgress = 1
			case sel.IsConnectedTo(nid):
				n.AnimationProgress = math.Min(1, n.AnimationProgress+SelectBoost)
			default:
				n.AnimationProgress = math.Max(model.MinProgress, n.AnimationProgress-SelectDrop)
			}
		}
	}
	s.bus.Publish(events.NodeSelected, id)
}

// ClickNode toggles selection of id. During a graph recall round a click
// on a pending node also counts as finding it.
func (s *GraphStore) ClickNode(id string) {
	if id == "" {
		s.ClickBackground()
		return
	}
	if s.state.SelectedNode == id {
		s.SelectGraphNode("")
	} else {
		s.SelectGraphNode(id)
	}
	if s.state.Game.Active {
		s.HandleRecallNodeSelected(id)
	}
}

// ClickBackground clears the selection.
func (s *GraphStore) ClickBackground() {
	if s.state.SelectedNode != "" {
		s.SelectGraphNode("")
	}
}

// SetHoveredNode sets or clears ("") the hovered node. Progress is untouched.
func (s *GraphStore) SetHoveredNode(id string) {
	if s.state.HoveredNode == id {
		return
	}
	s.state.HoveredNode = id
	s.bus.Publish(events.NodeHovered, id)
}

// SetZoomLevel stores z clamped to the supported range.
func (s *GraphStore) SetZoomLevel(z float64) {
	s.state.ZoomLevel = camera.ClampZoom(z)
	s.bus.Publish(events.ZoomChanged, s.state.ZoomLevel)
}

// SetViewOffset moves the camera pan.
func (s *GraphStore) SetViewOffset(v model.Vec2) {
	s.state.ViewOffset = v
	s.bus.Publish(events.OffsetChanged, v)
}

// Pan shifts the view by a pointer drag in pixels.
func (s *GraphStore) Pan(dxPx, dyPx float64) {
	s.SetViewOffset(s.state.ViewOffset.Add(camera.PanDelta(dxPx, dyPx, s.state.ZoomLevel)))
}

// ResetGraphView restores zoom 1, no pan, no hover and no selection.
func (s *GraphStore) ResetGraphView() {
	s.SetZoomLevel(1)
	s.SetViewOffset(model.Vec2{})
	s.SetHoveredNode("")
	s.SelectGraphNode("")
}

// ToggleLabelExpansion opens or closes a label group in the sidebar.
func (s *GraphStore) ToggleLabelExpansion(label string) {
	if s.state.IsLabelExpanded(label) {
		delete(s.state.ExpandedLabels, label)
	} else {
		s.state.ExpandedLabels[label] = struct{}{}
	}
	s.bus.Publish(events.LabelExpanded, label)
}

// SetSelectedView switches the top-level view. Leaving recall abandons any
// graph recall round, restores the full graph and clears the selection.
func (s *GraphStore) SetSelectedView(v model.ViewType) {
	s.view = v
	if v != model.ViewRecall {
		s.state.Game = model.GameState{}
		s.state.FilterMode = model.FilterFull
		s.state.SelectedNode = ""
		s.bus.Publish(events.GameChanged, s.state.Game)
	}
	s.bus.Publish(events.ViewChanged, v)
}

// StartRecallRound begins a graph recall round over ids, or over a random
// slice of unsolved nodes when ids is nil.
func (s *GraphStore) StartRecallRound(ids []string) {
	if ids == nil {
		ids = s.RandomPendingSlice()
	}
	s.state.Game = model.GameState{Active: true, ChunkIDs: append([]string(nil), ids...)}
	s.applyGameFilter()
	s.bus.Publish(events.GameChanged, s.state.Game)
}

// ResumeActiveRound reactivates the round with its remaining ids.
func (s *GraphStore) ResumeActiveRound() {
	s.state.Game.Active = true
	s.applyGameFilter()
	s.bus.Publish(events.GameChanged, s.state.Game)
}

func (s *GraphStore) applyGameFilter() {
	if len(s.state.Game.ChunkIDs) > 0 {
		s.state.FilterMode = model.FilterUnlockedOnly
	} else {
		s.state.FilterMode = model.FilterFull
	}
}

// HandleRecallNodeSelected marks a pending node as found. The round ends
// when nothing is pending.
func (s *GraphStore) HandleRecallNodeSelected(id string) {
	g := &s.state.Game
	if !g.Active || !g.IsPending(id) {
		return
	}
	kept := g.ChunkIDs[:0]
	for _, c := range g.ChunkIDs {
		if c != id {
			kept = append(kept, c)
		}
	}
	g.ChunkIDs = kept
	if s.tracker != nil {
		if err := s.tracker.MarkChunkSolved([]string{id}, nil); err != nil {
			debug.Log("graph: recording solved node %s: %v", id, err)
			s.bus.Publish(events.PersistenceError, err)
		}
	}
	if len(g.ChunkIDs) == 0 {
		g.Active = false
		s.state.FilterMode = model.FilterFull
	}
	s.bus.Publish(events.GameChanged, *g)
}

// UnlockEntities records entities the player recalled in a finished round.
func (s *GraphStore) UnlockEntities(ids []string) {
	if s.tracker == nil || len(ids) == 0 {
		return
	}
	if err := s.tracker.MarkChunkSolved(nil, ids); err != nil {
		debug.Log("graph: recording unlocked entities: %v", err)
		s.bus.Publish(events.PersistenceError, err)
	}
}

// IsUnlocked reports whether the player has recalled entity id before.
func (s *GraphStore) IsUnlocked(id string) bool {
	return s.tracker != nil && s.tracker.IsUnlocked(id)
}

// RandomPendingSlice picks a contiguous run of 1 to 3 unsolved node ids in
// draw order. It returns nil when every node is solved.
func (s *GraphStore) RandomPendingSlice() []string {
	var solved map[string]struct{}
	if s.tracker != nil {
		solved = s.tracker.SolvedSet()
	}
	ids := make([]string, 0, len(s.state.Nodes))
	for id := range s.state.Nodes {
		if _, ok := solved[id]; !ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	sort.Strings(ids)
	start := s.rng.IntN(len(ids))
	maxLen := min(MaxRecallSlice, len(ids)-start)
	n := s.rng.IntN(maxLen) + 1
	return append([]string(nil), ids[start:start+n]...)
}

// GroupNodesByLabel buckets the current nodes for the sidebar.
func (s *GraphStore) GroupNodesByLabel() []model.LabelGroup {
	return model.GroupNodesByLabel(s.state.Nodes)
}
