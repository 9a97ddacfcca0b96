// Package scene turns graph state into a per-frame draw list in screen
// pixels. It makes no graphics calls; the terminal view and the snapshot
// exporter both paint from the same Frame.
package scene

import (
	"image/color"
	"sort"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/ember/pkg/anim"
	"github.com/vanderheijden86/ember/pkg/camera"
	"github.com/vanderheijden86/ember/pkg/model"
)

const (
	// ChainWidth is the connection line width in world units.
	ChainWidth   = 4.0
	ChainOpacity = 0.9

	chainSaturation = 0.7
	chainLightness  = 0.5
)

// Halo is the glow behind a selected or hovered node.
type Halo struct {
	Radius  float64
	Opacity float64
	Color   color.RGBA
}

// Sprite is one node circle.
type Sprite struct {
	ID        string
	Label     string
	World     model.Vec2
	Center    model.Vec2
	Radius    float64
	Opacity   float64
	Fill      color.RGBA
	Pending   bool
	Selected  bool
	Hovered   bool
	Connected bool
	// Halo is nil when the node has no visible glow.
	Halo *Halo
}

// Segment is one link of a scene's connection chain.
type Segment struct {
	SceneKey     string
	FromID, ToID string
	From, To     model.Vec2
	Width        float64
	Opacity      float64
	Color        color.RGBA
}

// Label is a node caption with its background box.
type Label struct {
	NodeID   string
	Text     string
	Anchor   model.Vec2
	Box      camera.Rect
	FontSize float64
	Padding  float64
	Corner   float64
	Bold     bool
}

// Frame is everything drawn in one frame, in paint order.
type Frame struct {
	Camera   camera.Camera
	Segments []Segment
	Sprites  []Sprite
	Labels   []Label
}

// Options describes the parts of the session outside GraphState.
type Options struct {
	// RecallActive is set while the recall view has an active round; every
	// revealed node is then labelled.
	RecallActive bool
	// SceneColors overrides the per-scene chain colors.
	SceneColors map[string]color.RGBA
}

// SceneColors spreads scene hues evenly around the color wheel, keyed in
// sorted order.
func SceneColors(scenes map[string][]model.EntityItem) map[string]color.RGBA {
	keys := make([]string, 0, len(scenes))
	for k := range scenes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(map[string]color.RGBA, len(keys))
	for i, k := range keys {
		hue := float64(i) * 360 / float64(len(keys))
		r, g, b := colorful.Hsl(hue, chainSaturation, chainLightness).RGB255()
		out[k] = color.RGBA{R: r, G: g, B: b, A: 0xff}
	}
	return out
}

// TextWidth is the label width in glyph cells.
func TextWidth(s string) float64 {
	return float64(runewidth.StringWidth(s))
}

// Build lays out one frame of state as seen through cam.
func Build(state *model.GraphState, scenes map[string][]model.EntityItem, cam camera.Camera, opts Options) Frame {
	f := Frame{Camera: cam}
	if state == nil {
		return f
	}
	ppu := cam.PixelsPerUnit()
	sel := state.Selected()

	visible := func(id string) bool {
		return state.FilterMode != model.FilterUnlockedOnly || state.Game.IsPending(id)
	}
	connected := func(id string) bool {
		return sel != nil && sel.ID != id && sel.IsConnectedTo(id)
	}

	if sel != nil && state.FilterMode == model.FilterFull {
		colors := opts.SceneColors
		if colors == nil {
			colors = SceneColors(scenes)
		}
		f.Segments = chains(state, scenes, sel.ID, colors, cam, ppu)
	}

	order := state.SortedIDs()
	for _, id := range order {
		n := state.Nodes[id]
		if !visible(id) {
			continue
		}
		pending := state.Game.IsPending(id)
		fill := model.LabelColor(n.Label)
		if pending {
			fill = model.Pending
		}
		sp := Sprite{
			ID:        id,
			Label:     n.Label,
			World:     n.Position,
			Center:    cam.WorldToScreen(n.Position),
			Radius:    camera.NodeRadius(n) * ppu,
			Opacity:   anim.Opacity(state, n),
			Fill:      fill,
			Pending:   pending,
			Selected:  sel != nil && sel.ID == id,
			Hovered:   state.HoveredNode == id,
			Connected: connected(id),
		}
		if n.HaloOpacity > 0 {
			r := camera.HaloRadius(n) * ppu
			if sp.Selected {
				r *= anim.PulseScale(n.PulsePhase)
			}
			sp.Halo = &Halo{Radius: r, Opacity: n.HaloOpacity, Color: model.Ember}
		}
		f.Sprites = append(f.Sprites, sp)
	}

	f.Labels = labels(state, cam, opts, order, connected)
	return f
}

func chains(state *model.GraphState, scenes map[string][]model.EntityItem, selected string, colors map[string]color.RGBA, cam camera.Camera, ppu float64) []Segment {
	keys := make([]string, 0, len(scenes))
	for k, items := range scenes {
		for _, it := range items {
			if it.ID == selected {
				keys = append(keys, k)
				break
			}
		}
	}
	sort.Strings(keys)

	var segs []Segment
	for _, k := range keys {
		items := scenes[k]
		for i := 0; i+1 < len(items); i++ {
			a, okA := state.Nodes[items[i].ID]
			b, okB := state.Nodes[items[i+1].ID]
			if !okA || !okB {
				continue
			}
			segs = append(segs, Segment{
				SceneKey: k,
				FromID:   a.ID,
				ToID:     b.ID,
				From:     cam.WorldToScreen(a.Position),
				To:       cam.WorldToScreen(b.Position),
				Width:    ChainWidth * ppu,
				Opacity:  ChainOpacity,
				Color:    colors[k],
			})
		}
	}
	return segs
}

// labels ignores the filter mode: revealed nodes keep their captions while
// only pending sprites are drawn.
func labels(state *model.GraphState, cam camera.Camera, opts Options, order []string, connected func(string) bool) []Label {
	var out []Label
	add := func(n *model.GraphNode, bold bool) {
		font := camera.LabelFontSize(n.Size, cam.Zoom)
		out = append(out, Label{
			NodeID:   n.ID,
			Text:     n.ID,
			Anchor:   cam.LabelAnchor(n),
			Box:      cam.LabelBox(n, TextWidth(n.ID)),
			FontSize: font,
			Padding:  camera.LabelPad(cam.Zoom),
			Corner:   camera.LabelCornerRadius(cam.Zoom),
			Bold:     bold,
		})
	}

	if opts.RecallActive && state.Game.Active {
		for _, id := range order {
			if !state.Game.IsPending(id) {
				add(state.Nodes[id], false)
			}
		}
		return out
	}

	for _, id := range order {
		n := state.Nodes[id]
		if id == state.SelectedNode || id == state.HoveredNode {
			continue
		}
		if connected(id) && n.AnimationProgress > 0.5 {
			add(n, false)
		}
	}
	for _, id := range order {
		if id == state.SelectedNode || id == state.HoveredNode {
			add(state.Nodes[id], id == state.SelectedNode)
		}
	}
	return out
}

// HitLabel returns the node whose label box contains p, topmost first.
func (f Frame) HitLabel(p model.Vec2) string {
	for i := len(f.Labels) - 1; i >= 0; i-- {
		if f.Labels[i].Box.Contains(p) {
			return f.Labels[i].NodeID
		}
	}
	return ""
}

// HitNode returns the topmost drawn node under p.
func (f Frame) HitNode(p model.Vec2) string {
	for i := len(f.Sprites) - 1; i >= 0; i-- {
		s := f.Sprites[i]
		if s.Center.DistSq(p) <= s.Radius*s.Radius {
			return s.ID
		}
	}
	return ""
}

// Hit resolves a click: labels win over nodes, as they are drawn on top.
func (f Frame) Hit(p model.Vec2) string {
	if id := f.HitLabel(p); id != "" {
		return id
	}
	return f.HitNode(p)
}
