// Package testutil provides fixture generators for chats with known graph
// topologies. All generators produce deterministic output for reproducible
// tests and benchmarks.
package testutil

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/vanderheijden86/ember/pkg/model"
)

// Fixture is a generated chat: the imported day chunks plus the scenes
// extraction would have cached for them, one entry per chunk.
type Fixture struct {
	Description string
	Import      model.ChatImport
	Entries     []model.CacheEntry
	Properties  Properties
}

// Properties holds what the fixture's co-occurrence graph is known to be.
type Properties struct {
	Nodes      int
	Edges      int
	Components int
	// Hub is the unique most connected entity, "" when there is a tie.
	Hub string
}

// GeneratorConfig controls fixture generation.
type GeneratorConfig struct {
	Seed      uint64    // Random seed for determinism
	Chat      string    // Chat name (default: "fixture")
	StartDate time.Time // Date of the first chunk (default: 2024-01-01)
	Labels    []string  // Entity types cycled by entity index
}

// DefaultConfig returns a config suitable for most tests.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:      42,
		Chat:      "fixture",
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Labels:    []string{"person", "location", "food", "organization"},
	}
}

// Generator creates chat fixtures with various topologies.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// New creates a Generator with the given config.
func New(cfg GeneratorConfig) *Generator {
	def := DefaultConfig()
	if cfg.Chat == "" {
		cfg.Chat = def.Chat
	}
	if cfg.StartDate.IsZero() {
		cfg.StartDate = def.StartDate
	}
	if len(cfg.Labels) == 0 {
		cfg.Labels = def.Labels
	}
	return &Generator{cfg: cfg, rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))}
}

// NewDefault creates a Generator with default config.
func NewDefault() *Generator {
	return New(DefaultConfig())
}

// Entity returns the i-th synthetic entity. Its type cycles through the
// configured labels, so entity i and i+len(labels) share a group. Names carry
// no digits since the graph drops those.
func (g *Generator) Entity(i int) model.SceneEntity {
	label := g.cfg.Labels[i%len(g.cfg.Labels)]
	return model.SceneEntity{Text: strings.ToUpper(label[:1]) + label[1:] + Letters(i), Type: label}
}

// Letters names i in bijective base 26: 0 is "A", 25 is "Z", 26 is "AA".
func Letters(i int) string {
	var b []byte
	for i++; i > 0; i = (i - 1) / 26 {
		b = append([]byte{byte('A' + (i-1)%26)}, b...)
	}
	return string(b)
}

var connectors = []string{" met ", " at ", " with ", " near "}

// Template is a scene sentence with one blank per entity.
func Template(n int) string {
	var b strings.Builder
	for i := range n {
		if i > 0 {
			b.WriteString(connectors[(i-1)%len(connectors)])
		}
		b.WriteString(model.BlankMarker)
	}
	b.WriteByte('.')
	return b.String()
}

func (g *Generator) scene(id int, entityIdx []int) model.Scene {
	ents := make([]model.SceneEntity, len(entityIdx))
	for i, idx := range entityIdx {
		ents[i] = g.Entity(idx)
	}
	return model.Scene{ID: id, Memory: Template(len(ents)), Entities: ents}
}

// build turns per-day scene entity lists into a fixture with one chunk per
// day and one message per scene.
func (g *Generator) build(desc string, days [][][]int, props Properties) Fixture {
	f := Fixture{
		Description: desc,
		Import:      model.ChatImport{Name: g.cfg.Chat},
		Properties:  props,
	}
	for d, scenes := range days {
		date := g.cfg.StartDate.AddDate(0, 0, d).Format("2006-01-02")
		chunk := model.DayChunk{Date: date}
		var entry model.CacheEntry
		for s, idx := range scenes {
			sc := g.scene(s, idx)
			entry.Scenes = append(entry.Scenes, sc)
			chunk.Messages = append(chunk.Messages, model.Message{
				Date:   date,
				Time:   fmt.Sprintf("%02d:00", 9+s%12),
				Author: g.Entity(idx[0]).Text,
				Text:   fillScene(sc),
			})
		}
		f.Import.Chunks = append(f.Import.Chunks, chunk)
		f.Entries = append(f.Entries, entry)
	}
	return f
}

func fillScene(s model.Scene) string {
	out := s.Memory
	for _, e := range s.Entities {
		out = strings.Replace(out, model.BlankMarker, e.Text, 1)
	}
	return out
}

// ============================================================================
// Topologies
// ============================================================================

// Star creates one day per spoke, each with a scene pairing the hub with
// that spoke. Properties: connected, hub degree = spokes.
func (g *Generator) Star(spokes int) Fixture {
	days := make([][][]int, spokes)
	for i := range spokes {
		days[i] = [][]int{{0, i + 1}}
	}
	hub := g.Entity(0).Text
	if spokes < 2 {
		hub = ""
	}
	return g.build(fmt.Sprintf("Star with hub and %d spokes", spokes), days, Properties{
		Nodes:      spokes + 1,
		Edges:      spokes,
		Components: 1,
		Hub:        hub,
	})
}

// Chain creates scenes pairing entity i with i+1, one scene per day.
// Properties: connected, a path of size nodes.
func (g *Generator) Chain(size int) Fixture {
	if size < 2 {
		size = 2
	}
	days := make([][][]int, size-1)
	for i := range size - 1 {
		days[i] = [][]int{{i, i + 1}}
	}
	return g.build(fmt.Sprintf("Chain of %d entities", size), days, Properties{
		Nodes:      size,
		Edges:      size - 1,
		Components: 1,
	})
}

// Clique creates a single scene mentioning size entities, so every pair is
// connected.
func (g *Generator) Clique(size int) Fixture {
	idx := make([]int, size)
	for i := range idx {
		idx[i] = i
	}
	return g.build(fmt.Sprintf("Clique of %d entities in one scene", size), [][][]int{{idx}}, Properties{
		Nodes:      size,
		Edges:      size * (size - 1) / 2,
		Components: 1,
	})
}

// Islands creates k disconnected pairs, one day each.
func (g *Generator) Islands(k int) Fixture {
	days := make([][][]int, k)
	for i := range k {
		days[i] = [][]int{{2 * i, 2*i + 1}}
	}
	return g.build(fmt.Sprintf("%d disconnected pairs", k), days, Properties{
		Nodes:      2 * k,
		Edges:      k,
		Components: k,
	})
}

// Random creates days of scenes drawing 1..maxPerScene distinct entities
// from a vocabulary of vocab entities. Graph properties are not computed.
func (g *Generator) Random(days, scenesPerDay, vocab, maxPerScene int) Fixture {
	if maxPerScene > vocab {
		maxPerScene = vocab
	}
	out := make([][][]int, days)
	for d := range days {
		for range scenesPerDay {
			n := 1 + g.rng.IntN(maxPerScene)
			out[d] = append(out[d], g.rng.Perm(vocab)[:n])
		}
	}
	return g.build(fmt.Sprintf("Random: %d days x %d scenes over %d entities", days, scenesPerDay, vocab), out, Properties{})
}
