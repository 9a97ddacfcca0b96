package scene

import (
	"math"
	"testing"

	"github.com/vanderheijden86/ember/pkg/camera"
	"github.com/vanderheijden86/ember/pkg/model"
)

func connect(a, b *model.GraphNode) {
	a.Connections[b.ID] = struct{}{}
	b.Connections[a.ID] = struct{}{}
}

// fixture: Ann at the center linked to Bo and Cy, Dee alone on ring 2.
func fixture() (*model.GraphState, map[string][]model.EntityItem) {
	ann := model.NewGraphNode("Ann", "person", model.Vec2{}, 50, 0)
	bo := model.NewGraphNode("Bo", "person", model.Vec2{X: 180}, 30, 1)
	cy := model.NewGraphNode("Cy", "location", model.Vec2{X: -180}, 20, 1)
	dee := model.NewGraphNode("Dee", "food", model.Vec2{Y: 280}, 15, 2)
	connect(ann, bo)
	connect(ann, cy)
	state := model.NewGraphState(map[string]*model.GraphNode{"Ann": ann, "Bo": bo, "Cy": cy, "Dee": dee})
	scenes := map[string][]model.EntityItem{
		"c|0": {{ID: "Ann", Text: "Ann"}, {ID: "Bo", Text: "Bo"}},
		"c|1": {{ID: "Ann", Text: "Ann"}, {ID: "Cy", Text: "Cy"}},
		"c|2": {{ID: "Dee", Text: "Dee"}},
	}
	return state, scenes
}

func cam() camera.Camera { return camera.New(1000, 1000) }

func labelIDs(f Frame) []string {
	var ids []string
	for _, l := range f.Labels {
		ids = append(ids, l.NodeID)
	}
	return ids
}

func sameIDs(t *testing.T, what string, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s = %v, want %v", what, got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("%s = %v, want %v", what, got, want)
		}
	}
}

func TestBuildIdle(t *testing.T) {
	state, scenes := fixture()
	f := Build(state, scenes, cam(), Options{})
	if len(f.Sprites) != 4 || len(f.Segments) != 0 || len(f.Labels) != 0 {
		t.Fatalf("sprites %d segments %d labels %d", len(f.Sprites), len(f.Segments), len(f.Labels))
	}
	ann := f.Sprites[0]
	if ann.ID != "Ann" || ann.Center != (model.Vec2{X: 500, Y: 500}) {
		t.Errorf("first sprite = %+v", ann)
	}
	if ann.Radius != 20 {
		t.Errorf("Ann radius = %v, want 20", ann.Radius)
	}
	if ann.Fill != model.LabelColor("person") || ann.Halo != nil {
		t.Errorf("Ann fill %v halo %v", ann.Fill, ann.Halo)
	}
}

func TestBuildSelectionChainsAndLabels(t *testing.T) {
	state, scenes := fixture()
	state.SelectedNode = "Ann"
	state.Nodes["Ann"].HaloOpacity = 0.3
	state.Nodes["Ann"].PulsePhase = math.Pi / 2

	f := Build(state, scenes, cam(), Options{})
	if len(f.Segments) != 2 {
		t.Fatalf("segments = %+v", f.Segments)
	}
	if f.Segments[0].SceneKey != "c|0" || f.Segments[0].ToID != "Bo" || f.Segments[1].ToID != "Cy" {
		t.Errorf("segments = %+v", f.Segments)
	}
	if f.Segments[0].Color == f.Segments[1].Color {
		t.Error("scenes should get distinct colors")
	}
	if f.Segments[0].Width != ChainWidth {
		t.Errorf("width = %v", f.Segments[0].Width)
	}

	sameIDs(t, "labels", labelIDs(f), []string{"Bo", "Cy", "Ann"})
	if !f.Labels[2].Bold || f.Labels[0].Bold {
		t.Error("only the selected label is bold")
	}
	if got := f.Labels[2].Anchor.Y; got != 535 {
		t.Errorf("Ann label anchor y = %v, want 535", got)
	}

	ann := f.Sprites[0]
	if !ann.Selected || ann.Opacity != 1 || ann.Halo == nil {
		t.Fatalf("Ann sprite = %+v", ann)
	}
	if math.Abs(ann.Halo.Radius-28) > 1e-9 {
		t.Errorf("halo radius = %v, want 28", ann.Halo.Radius)
	}
	for _, s := range f.Sprites[1:3] {
		if !s.Connected {
			t.Errorf("%s should be connected", s.ID)
		}
	}
}

func TestDimConnectedNodesAreNotLabelled(t *testing.T) {
	state, scenes := fixture()
	state.SelectedNode = "Ann"
	state.Nodes["Bo"].AnimationProgress = 0.5
	state.HoveredNode = "Dee"
	f := Build(state, scenes, cam(), Options{})
	sameIDs(t, "labels", labelIDs(f), []string{"Cy", "Ann", "Dee"})
}

func TestUnlockedOnlyDrawsPendingNodes(t *testing.T) {
	state, scenes := fixture()
	state.SelectedNode = "Ann"
	state.FilterMode = model.FilterUnlockedOnly
	state.Game = model.GameState{Active: true, ChunkIDs: []string{"Dee"}}

	f := Build(state, scenes, cam(), Options{})
	if len(f.Sprites) != 1 || f.Sprites[0].ID != "Dee" || !f.Sprites[0].Pending {
		t.Fatalf("sprites = %+v", f.Sprites)
	}
	if f.Sprites[0].Fill != model.Pending {
		t.Errorf("pending fill = %v", f.Sprites[0].Fill)
	}
	if len(f.Segments) != 0 {
		t.Error("chains are drawn only in full filter mode")
	}
}

func TestRecallLabelsRevealedNodes(t *testing.T) {
	state, scenes := fixture()
	state.FilterMode = model.FilterUnlockedOnly
	state.Game = model.GameState{Active: true, ChunkIDs: []string{"Bo"}}

	f := Build(state, scenes, cam(), Options{RecallActive: true})
	sameIDs(t, "labels", labelIDs(f), []string{"Ann", "Cy", "Dee"})

	f = Build(state, scenes, cam(), Options{})
	if len(f.Labels) != 0 {
		t.Errorf("outside recall only selection labels show, got %v", labelIDs(f))
	}
}

func TestHitTesting(t *testing.T) {
	state, scenes := fixture()
	state.SelectedNode = "Ann"
	f := Build(state, scenes, cam(), Options{})

	if got := f.HitNode(model.Vec2{X: 515, Y: 500}); got != "Ann" {
		t.Errorf("HitNode inside Ann = %q", got)
	}
	if got := f.HitNode(model.Vec2{X: 700, Y: 700}); got != "" {
		t.Errorf("HitNode empty space = %q", got)
	}
	box := f.Labels[len(f.Labels)-1].Box
	center := model.Vec2{X: box.X + box.W/2, Y: box.Y + box.H/2}
	if got := f.HitLabel(center); got != "Ann" {
		t.Errorf("HitLabel = %q", got)
	}
	boBox := f.Labels[0].Box
	if got := f.Hit(model.Vec2{X: boBox.X + 1, Y: boBox.Y + 1}); got != "Bo" {
		t.Errorf("Hit on Bo label = %q", got)
	}
}

func TestZoomKeepsLabelsReadable(t *testing.T) {
	state, scenes := fixture()
	state.SelectedNode = "Ann"
	c := cam()
	c.Zoom = 2
	f := Build(state, scenes, c, Options{})
	ann := f.Labels[len(f.Labels)-1]
	if ann.FontSize != 7 || ann.Padding != 3 {
		t.Errorf("font %v padding %v at zoom 2", ann.FontSize, ann.Padding)
	}
	if f.Sprites[0].Radius != 40 {
		t.Errorf("radius at zoom 2 = %v, want 40", f.Sprites[0].Radius)
	}
}

func TestSceneColorsSpreadHues(t *testing.T) {
	colors := SceneColors(map[string][]model.EntityItem{"a": nil, "b": nil, "c": nil})
	red, green, blue := colors["a"], colors["b"], colors["c"]
	if !(red.R > red.G && red.G == red.B) {
		t.Errorf("hue 0 = %v", red)
	}
	if !(green.G > green.R && green.R == green.B) {
		t.Errorf("hue 120 = %v", green)
	}
	if !(blue.B > blue.R && blue.R == blue.G) {
		t.Errorf("hue 240 = %v", blue)
	}
}

func TestBuildNilState(t *testing.T) {
	f := Build(nil, nil, cam(), Options{})
	if len(f.Sprites) != 0 || f.Hit(model.Vec2{}) != "" {
		t.Error("nil state should produce an empty frame")
	}
}
