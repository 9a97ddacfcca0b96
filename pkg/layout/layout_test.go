package layout

import (
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"pgregory.net/rapid"

	"github.com/vanderheijden86/ember/pkg/model"
)

func ent(text, label string) model.EntityItem {
	return model.EntityItem{ID: text, Text: text, Label: label}
}

func seeded() Options {
	return Options{Rand: rand.New(rand.NewPCG(1, 2))}
}

func TestRingCapacity(t *testing.T) {
	want := []int{1, 8, 16, 24, 32}
	for k, w := range want {
		if got := RingCapacity(k); got != w {
			t.Errorf("RingCapacity(%d) = %d, want %d", k, got, w)
		}
	}
}

func TestExcluded(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"Alice", false},
		{"photo.jpg", true},
		{"IMG.PNG", true},
		{"route66", true},
		{"2024", true},
		{"Café", false},
	}
	for _, tt := range tests {
		if got := Excluded(tt.text); got != tt.want {
			t.Errorf("Excluded(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestBuildEmpty(t *testing.T) {
	res := Build(nil, seeded())
	if len(res.Nodes) != 0 || res.Stats.Nodes != 0 {
		t.Fatalf("expected empty graph, got %d nodes", len(res.Nodes))
	}
}

func TestBuildFrequencyRingsAndSize(t *testing.T) {
	scenes := map[string][]model.EntityItem{
		"c|0": {ent("Alice", "person"), ent("Bob", "person")},
		"c|1": {ent("Alice", "person"), ent("Paris", "location")},
		"c|2": {ent("Alice", "person"), ent("Bob", "person")},
	}
	res := Build(scenes, seeded())

	if len(res.Nodes) != 3 {
		t.Fatalf("nodes = %d, want 3", len(res.Nodes))
	}
	alice := res.Nodes["Alice"]
	if alice.Ring != 0 {
		t.Errorf("most frequent node ring = %d, want 0", alice.Ring)
	}
	if alice.Size != 50 {
		t.Errorf("max-frequency size = %v, want 50", alice.Size)
	}
	if got, want := res.Nodes["Paris"].Size, 15+35.0/3; math.Abs(got-want) > 1e-9 {
		t.Errorf("Paris size = %v, want %v", got, want)
	}
	if res.Nodes["Bob"].Ring != 1 || res.Nodes["Paris"].Ring != 1 {
		t.Errorf("expected Bob and Paris on ring 1")
	}
	if res.Order[0] != "Alice" || res.Order[1] != "Bob" {
		t.Errorf("order = %v", res.Order)
	}
	if !alice.IsConnectedTo("Bob") || !alice.IsConnectedTo("Paris") {
		t.Errorf("Alice connections = %v", alice.ConnectionIDs())
	}
	if res.Nodes["Bob"].IsConnectedTo("Paris") {
		t.Errorf("Bob and Paris never share a scene")
	}
	if res.Stats.Edges != 2 || res.Stats.Components != 1 || res.Stats.Hub != "Alice" {
		t.Errorf("stats = %+v", res.Stats)
	}
}

func TestBuildLastLabelWins(t *testing.T) {
	scenes := map[string][]model.EntityItem{
		"c|0": {ent("Rome", "person")},
		"c|1": {ent("Rome", "location")},
	}
	res := Build(scenes, seeded())
	if got := res.Nodes["Rome"].Label; got != "location" {
		t.Errorf("label = %q, want location", got)
	}
}

func TestBuildFiltersBeforeConnecting(t *testing.T) {
	scenes := map[string][]model.EntityItem{
		"c|0": {ent("Alice", "person"), ent("IMG_1.jpg", "file"), ent("Room 101", "location")},
	}
	res := Build(scenes, seeded())
	if len(res.Nodes) != 1 {
		t.Fatalf("nodes = %v, want only Alice", res.Order)
	}
	if res.Nodes["Alice"].Degree() != 0 {
		t.Errorf("filtered entities must not create connections")
	}
}

func TestBuildNoSelfLoops(t *testing.T) {
	scenes := map[string][]model.EntityItem{
		"c|0": {ent("Alice", "person"), ent("Alice", "person")},
	}
	res := Build(scenes, seeded())
	n := res.Nodes["Alice"]
	if n.IsConnectedTo("Alice") {
		t.Error("node connected to itself")
	}
	if res.Freq["Alice"] != 2 {
		t.Errorf("freq = %d, want 2 (each occurrence counts)", res.Freq["Alice"])
	}
}

func TestBuildPositionsNearRing(t *testing.T) {
	scenes := map[string][]model.EntityItem{}
	for i := 0; i < 30; i++ {
		key := fmt.Sprintf("c|%d", i)
		scenes[key] = []model.EntityItem{ent(fmt.Sprintf("entity-%c", 'a'+rune(i%26)), "misc")}
	}
	res := Build(scenes, seeded())
	for _, n := range res.Nodes {
		want := RingRadius(n.Ring)
		if d := math.Abs(n.Target.Len() - want); d > RadiusJitter*math.Sqrt2+1e-9 {
			t.Errorf("%s at radius %.2f, ring %d expects ~%.0f", n.ID, n.Target.Len(), n.Ring, want)
		}
		if n.Position != n.Target {
			t.Errorf("%s starts off target without bloom", n.ID)
		}
		if n.AnimationProgress != 1 || n.Velocity != (model.Vec2{}) {
			t.Errorf("%s has non-initial animation state", n.ID)
		}
	}
}

func TestBuildSeededIsDeterministic(t *testing.T) {
	scenes := map[string][]model.EntityItem{
		"c|0": {ent("Alice", "person"), ent("Bob", "person"), ent("Carol", "person")},
		"c|1": {ent("Bob", "person"), ent("Dave", "person")},
	}
	a := Build(scenes, Options{Rand: rand.New(rand.NewPCG(7, 7))})
	b := Build(scenes, Options{Rand: rand.New(rand.NewPCG(7, 7))})
	for id, n := range a.Nodes {
		if b.Nodes[id].Target != n.Target {
			t.Errorf("%s: %v vs %v", id, n.Target, b.Nodes[id].Target)
		}
	}
}

func TestBuildBloomStartsAtOrigin(t *testing.T) {
	scenes := map[string][]model.EntityItem{"c|0": {ent("Alice", "person"), ent("Bob", "person")}}
	opts := seeded()
	opts.Bloom = true
	for _, n := range Build(scenes, opts).Nodes {
		if n.Position != (model.Vec2{}) {
			t.Errorf("%s position = %v, want origin", n.ID, n.Position)
		}
	}
}

func genScenes() *rapid.Generator[map[string][]model.EntityItem] {
	return rapid.Custom(func(t *rapid.T) map[string][]model.EntityItem {
		names := []string{"Alice", "Bob", "Carol", "Dave", "Eve", "Paris", "Rome", "pizza", "x1", "a.png"}
		n := rapid.IntRange(0, 12).Draw(t, "scenes")
		out := make(map[string][]model.EntityItem, n)
		for i := 0; i < n; i++ {
			m := rapid.IntRange(0, 6).Draw(t, fmt.Sprintf("size%d", i))
			for j := 0; j < m; j++ {
				name := rapid.SampledFrom(names).Draw(t, fmt.Sprintf("e%d_%d", i, j))
				out[fmt.Sprintf("c|%d", i)] = append(out[fmt.Sprintf("c|%d", i)], ent(name, "misc"))
			}
		}
		return out
	})
}

func TestPropertyLayoutInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		res := Build(genScenes().Draw(t, "scenes"), seeded())

		perRing := map[int]int{}
		for id, n := range res.Nodes {
			if Excluded(id) {
				t.Fatalf("excluded entity %q placed", id)
			}
			for other := range n.Connections {
				if other == id {
					t.Fatalf("%s has a self loop", id)
				}
				if !res.Nodes[other].IsConnectedTo(id) {
					t.Fatalf("asymmetric edge %s -> %s", id, other)
				}
			}
			if n.Size < MinNodeSize || n.Size > MinNodeSize+NodeSizeRange {
				t.Fatalf("%s size %v out of range", id, n.Size)
			}
			perRing[n.Ring]++
		}
		for ring, count := range perRing {
			if count > RingCapacity(ring) {
				t.Fatalf("ring %d holds %d nodes, capacity %d", ring, count, RingCapacity(ring))
			}
		}
		for i := 1; i < len(res.Order); i++ {
			prev, cur := res.Nodes[res.Order[i-1]], res.Nodes[res.Order[i]]
			if res.Freq[prev.ID] < res.Freq[cur.ID] {
				t.Fatalf("order not by descending frequency at %d", i)
			}
			if prev.Ring > cur.Ring {
				t.Fatalf("ring decreases along frequency order")
			}
		}
	})
}
