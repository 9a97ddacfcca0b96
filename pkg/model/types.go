// Package model defines the graph, game and chat types shared across ember.
package model

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// BlankMarker is the placeholder for an entity slot inside a round template.
const BlankMarker = "___"

// Vec2 is a point or displacement in world units.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }
func (v Vec2) Scale(k float64) Vec2 { return Vec2{v.X * k, v.Y * k} }
func (v Vec2) LenSq() float64 { return v.X*v.X + v.Y*v.Y }
func (v Vec2) Len() float64 { return math.Sqrt(v.LenSq()) }
func (v Vec2) DistSq(o Vec2) float64 { return v.Sub(o).LenSq() }
func (v Vec2) String() string { return fmt.Sprintf("(%.2f, %.2f)", v.X, v.Y) }

// GraphNode is one entity on the radial graph.
//
// Target, Size and Ring are fixed by the layout. Position, Velocity,
// AnimationProgress, Scale, HaloOpacity and PulsePhase are mutated once per
// frame by the animation engine.
type GraphNode struct {
	ID                string
	Label             string
	Target            Vec2
	Position          Vec2
	Velocity          Vec2
	Size              float64
	Ring              int
	Connections       map[string]struct{}
	AnimationProgress float64
	Scale             float64
	HaloOpacity       float64
	PulsePhase        float64
}

// NewGraphNode returns a node resting at target with full progress.
func NewGraphNode(id, label string, target Vec2, size float64, ring int) *GraphNode {
	return &GraphNode{
		ID:                id,
		Label:             label,
		Target:            target,
		Position:          target,
		Size:              size,
		Ring:              ring,
		Connections:       make(map[string]struct{}),
		AnimationProgress: 1,
		Scale:             1,
	}
}

// IsConnectedTo reports whether id shares a scene with n.
func (n *GraphNode) IsConnectedTo(id string) bool {
	_, ok := n.Connections[id]
	return ok
}

// ConnectionIDs returns the neighbour ids in sorted order.
func (n *GraphNode) ConnectionIDs() []string {
	ids := make([]string, 0, len(n.Connections))
	for id := range n.Connections {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Degree is the number of distinct neighbours.
func (n *GraphNode) Degree() int { return len(n.Connections) }

// RestingProgress is the progress a node relaxes to when nothing is selected.
func (n *GraphNode) RestingProgress() float64 {
	return RestingProgress(n.Ring)
}

// RestingProgress returns 0.8 for the center ring and an exponential falloff
// (floored at MinProgress) for outer rings.
func RestingProgress(ring int) float64 {
	if ring == 0 {
		return 0.8
	}
	return math.Max(MinProgress, math.Exp(-0.25*float64(ring)))
}

// MinProgress is the lower bound of AnimationProgress.
const MinProgress = 0.2

// FilterMode controls which nodes the graph draws.
type FilterMode int

const (
	FilterFull FilterMode = iota
	FilterUnlockedOnly
)

func (f FilterMode) String() string {
	switch f {
	case FilterFull:
		return "full"
	case FilterUnlockedOnly:
		return "unlockedOnly"
	default:
		return fmt.Sprintf("FilterMode(%d)", int(f))
	}
}

// ViewType is the top-level screen shown to the user.
type ViewType int

const (
	ViewImport ViewType = iota
	ViewCalendar
	ViewGraph
	ViewRecall
	ViewMemories
)

func (v ViewType) String() string {
	switch v {
	case ViewImport:
		return "import"
	case ViewCalendar:
		return "calendar"
	case ViewGraph:
		return "graph"
	case ViewRecall:
		return "recall"
	case ViewMemories:
		return "memories"
	default:
		return fmt.Sprintf("ViewType(%d)", int(v))
	}
}

// ParseViewType maps a config string to a ViewType.
func ParseViewType(s string) (ViewType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "import":
		return ViewImport, nil
	case "calendar":
		return ViewCalendar, nil
	case "", "graph":
		return ViewGraph, nil
	case "recall":
		return ViewRecall, nil
	case "memories":
		return ViewMemories, nil
	}
	return ViewGraph, fmt.Errorf("unknown view %q", s)
}

// GameState tracks the pending nodes of an active graph recall round.
type GameState struct {
	Active   bool
	ChunkIDs []string
}

// IsPending reports whether id still needs to be found in the current round.
func (g GameState) IsPending(id string) bool {
	for _, c := range g.ChunkIDs {
		if c == id {
			return true
		}
	}
	return false
}

// GraphState is the whole mutable graph for one selected chat.
type GraphState struct {
	Nodes          map[string]*GraphNode
	SelectedNode   string
	HoveredNode    string
	ViewOffset     Vec2
	ZoomLevel      float64
	ExpandedLabels map[string]struct{}
	FilterMode     FilterMode
	Game           GameState
}

// NewGraphState wraps nodes in a fresh state at zoom 1.
func NewGraphState(nodes map[string]*GraphNode) *GraphState {
	if nodes == nil {
		nodes = make(map[string]*GraphNode)
	}
	return &GraphState{
		Nodes:          nodes,
		ZoomLevel:      1,
		ExpandedLabels: make(map[string]struct{}),
	}
}

// Selected returns the selected node or nil.
func (s *GraphState) Selected() *GraphNode {
	if s.SelectedNode == "" {
		return nil
	}
	return s.Nodes[s.SelectedNode]
}

// SortedIDs returns node ids sorted by ring, then id, which is the draw order.
func (s *GraphState) SortedIDs() []string {
	ids := make([]string, 0, len(s.Nodes))
	for id := range s.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := s.Nodes[ids[i]], s.Nodes[ids[j]]
		if a.Ring != b.Ring {
			return a.Ring < b.Ring
		}
		return ids[i] < ids[j]
	})
	return ids
}

// IsLabelExpanded reports whether a label group is open in the sidebar.
func (s *GraphState) IsLabelExpanded(label string) bool {
	_, ok := s.ExpandedLabels[label]
	return ok
}

// EntityItem is one entity occurrence inside a scene, as fed to the layout.
type EntityItem struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Label string `json:"label"`
}

// RoundEntity is one answer slot of a recall round.
type RoundEntity struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// FillRound is one fill-in-the-blank puzzle.
type FillRound struct {
	ID       string        `json:"id"`
	Template string        `json:"template"`
	Entities []RoundEntity `json:"entities"`
	Date     string        `json:"date"`
}

// Blanks returns the number of blank markers in the template.
func (r FillRound) Blanks() int {
	return strings.Count(r.Template, BlankMarker)
}

// RoundID builds the stable identifier chat|chunkIndex|sceneID.
func RoundID(chat string, chunkIndex, sceneID int) string {
	return fmt.Sprintf("%s|%d|%d", chat, chunkIndex, sceneID)
}

// SanitizeChatName makes a chat name safe for file and key names.
func SanitizeChatName(chat string) string {
	return strings.NewReplacer("/", "_", "\\", "_").Replace(chat)
}
