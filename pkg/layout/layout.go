// Package layout places chat entities on concentric rings ordered by frequency.
//
// The most mentioned entity sits alone at the center; ring k holds 8k
// entities. Entities mentioned together in a scene become connected.
package layout

import (
	"math"
	"math/rand/v2"
	"sort"
	"strings"
	"unicode"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/vanderheijden86/ember/pkg/metrics"
	"github.com/vanderheijden86/ember/pkg/model"
)

const (
	BaseRadius    = 80.0
	RingSpacing   = 100.0
	MinNodeSize   = 15.0
	NodeSizeRange = 35.0
	RadiusJitter  = 5.0
	AngleJitter   = 0.1
)

// DefaultLabel is used for entities extracted without a type.
const DefaultLabel = "misc"

// Options tune a layout build.
type Options struct {
	// Rand drives the position jitter. Nil uses an unseeded source.
	Rand *rand.Rand
	// Bloom starts every node at the origin so the physics step animates
	// it out to its ring.
	Bloom bool
}

// Stats summarises the co-occurrence graph.
type Stats struct {
	Nodes      int
	Edges      int
	Components int
	Hub        string
	HubDegree  int
}

// Result is the output of Build.
type Result struct {
	Nodes map[string]*model.GraphNode
	// Order lists node ids by descending frequency (the ring assignment order).
	Order []string
	// Freq is the mention count per node id.
	Freq  map[string]int
	Stats Stats
}

// RingCapacity returns how many nodes ring k holds.
func RingCapacity(k int) int {
	if k <= 0 {
		return 1
	}
	return 8 * k
}

// RingRadius returns the base radius of ring k before jitter.
func RingRadius(k int) float64 {
	return BaseRadius + float64(k)*RingSpacing
}

// Excluded reports whether an entity text is dropped from the graph:
// image filenames and anything containing a digit.
func Excluded(text string) bool {
	lower := strings.ToLower(text)
	if strings.HasSuffix(lower, ".jpg") || strings.HasSuffix(lower, ".png") {
		return true
	}
	return strings.IndexFunc(text, unicode.IsDigit) >= 0
}

// Build computes the radial layout for the given scenes.
func Build(scenes map[string][]model.EntityItem, opts Options) Result {
	defer metrics.Timer(metrics.LayoutBuild)()

	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	keys := make([]string, 0, len(scenes))
	for k := range scenes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	freq := make(map[string]int)
	labels := make(map[string]string)
	ids := make(map[string]int64)
	g := simple.NewUndirectedGraph()

	nodeFor := func(id string) graph.Node {
		if gid, ok := ids[id]; ok {
			return g.Node(gid)
		}
		n := g.NewNode()
		g.AddNode(n)
		ids[id] = n.ID()
		return n
	}

	for _, key := range keys {
		var kept []model.EntityItem
		for _, e := range scenes[key] {
			if e.Text == "" || Excluded(e.Text) {
				continue
			}
			freq[e.Text]++
			labels[e.Text] = e.Label
			nodeFor(e.Text)
			kept = append(kept, e)
		}
		for i := 0; i < len(kept); i++ {
			for j := i + 1; j < len(kept); j++ {
				a, b := kept[i].Text, kept[j].Text
				if a == b {
					continue
				}
				g.SetEdge(g.NewEdge(g.Node(ids[a]), g.Node(ids[b])))
			}
		}
	}

	res := Result{
		Nodes: make(map[string]*model.GraphNode, len(freq)),
		Freq:  freq,
	}
	if len(freq) == 0 {
		return res
	}

	order := make([]string, 0, len(freq))
	maxFreq := 0
	for id, f := range freq {
		order = append(order, id)
		if f > maxFreq {
			maxFreq = f
		}
	}
	sort.Slice(order, func(i, j int) bool {
		if freq[order[i]] != freq[order[j]] {
			return freq[order[i]] > freq[order[j]]
		}
		return order[i] < order[j]
	})
	res.Order = order

	ring, slot := 0, 0
	for _, id := range order {
		capacity := RingCapacity(ring)
		radius := RingRadius(ring)
		angle := 0.0
		if capacity > 1 {
			angle = 2 * math.Pi * float64(slot) / float64(capacity)
		}
		rj := (rng.Float64()*2 - 1) * RadiusJitter
		aj := (rng.Float64()*2 - 1) * AngleJitter
		target := model.Vec2{
			X: radius*math.Cos(angle+aj) + rj,
			Y: radius*math.Sin(angle+aj) + rj,
		}
		size := MinNodeSize + float64(freq[id])/float64(maxFreq)*NodeSizeRange

		label := labels[id]
		if label == "" {
			label = DefaultLabel
		}
		n := model.NewGraphNode(id, label, target, size, ring)
		if opts.Bloom {
			n.Position = model.Vec2{}
		}
		res.Nodes[id] = n

		slot++
		if slot >= capacity {
			ring++
			slot = 0
		}
	}

	byGID := make(map[int64]string, len(ids))
	for id, gid := range ids {
		byGID[gid] = id
	}
	edges := g.Edges()
	for edges.Next() {
		e := edges.Edge()
		a, b := byGID[e.From().ID()], byGID[e.To().ID()]
		res.Nodes[a].Connections[b] = struct{}{}
		res.Nodes[b].Connections[a] = struct{}{}
		res.Stats.Edges++
	}

	res.Stats.Nodes = len(res.Nodes)
	res.Stats.Components = len(topo.ConnectedComponents(g))
	for _, id := range order {
		if d := res.Nodes[id].Degree(); d > res.Stats.HubDegree {
			res.Stats.Hub, res.Stats.HubDegree = id, d
		}
	}
	return res
}
