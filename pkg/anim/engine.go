// Package anim advances node positions and highlight state by one frame.
package anim

import (
	"math"

	"github.com/vanderheijden86/ember/pkg/metrics"
	"github.com/vanderheijden86/ember/pkg/model"
)

const (
	SpringFactor  = 0.08
	Damping       = 0.85
	MaxSpeed      = 5.0
	SnapDistSq    = 0.01
	PhysicsLimit  = 300
	ConnectedGain = 0.05
	FadeLoss      = 0.03
	RestEase      = 0.1
	RestSnap      = 1e-3

	SelectedScale  = 1.15
	ConnectedScale = 1.05
	ScaleEase      = 0.15

	SelectedHalo = 0.3
	HoveredHalo  = 0.2
	HaloFade     = 0.1
	PulseStep    = 0.03
)

// Engine is stateless; the zero value is ready to use. Physics can be turned
// off to render a static layout.
type Engine struct {
	DisablePhysics bool
}

// Step advances every node in state by one frame. It touches per-node
// animation fields only, never selection, hover or camera state.
func (e Engine) Step(state *model.GraphState) {
	defer metrics.Timer(metrics.FrameStep)()

	physics := !e.DisablePhysics && len(state.Nodes) <= PhysicsLimit
	selected := state.Selected()

	for id, n := range state.Nodes {
		if physics {
			integrate(n)
		} else {
			n.Position = n.Target
			n.Velocity = model.Vec2{}
		}

		isSelected := selected != nil && id == selected.ID
		isConnected := selected != nil && !isSelected && selected.IsConnectedTo(id)

		stepProgress(n, selected != nil, isSelected, isConnected)

		target := TargetScale(isSelected, isConnected)
		n.Scale += (target - n.Scale) * ScaleEase

		switch {
		case isSelected:
			n.HaloOpacity = SelectedHalo
			n.PulsePhase += PulseStep
		case id == state.HoveredNode:
			n.HaloOpacity = HoveredHalo
		default:
			n.HaloOpacity = math.Max(0, n.HaloOpacity-HaloFade)
			n.PulsePhase = 0
		}
	}
}

func integrate(n *model.GraphNode) {
	d := n.Target.Sub(n.Position)
	if d.LenSq() < SnapDistSq {
		n.Position = n.Target
		n.Velocity = model.Vec2{}
		return
	}
	v := n.Velocity.Add(d.Scale(SpringFactor)).Scale(Damping)
	if s := v.LenSq(); s > MaxSpeed*MaxSpeed {
		v = v.Scale(MaxSpeed / math.Sqrt(s))
	}
	n.Velocity = v
	n.Position = n.Position.Add(v)
}

func stepProgress(n *model.GraphNode, anySelected, isSelected, isConnected bool) {
	switch {
	case isSelected:
		n.AnimationProgress = 1
	case isConnected:
		n.AnimationProgress = math.Min(1, n.AnimationProgress+ConnectedGain)
	case anySelected:
		n.AnimationProgress = math.Max(model.MinProgress, n.AnimationProgress-FadeLoss)
	default:
		rest := n.RestingProgress()
		diff := rest - n.AnimationProgress
		if math.Abs(diff) <= RestSnap {
			n.AnimationProgress = rest
		} else {
			n.AnimationProgress += diff * RestEase
		}
	}
}

// TargetScale is the visual scale a node eases toward.
func TargetScale(isSelected, isConnected bool) float64 {
	switch {
	case isSelected:
		return SelectedScale
	case isConnected:
		return ConnectedScale
	}
	return 1
}

// PulseScale converts a halo pulse phase into a scale factor in [0.6, 1.0].
func PulseScale(phase float64) float64 {
	return 0.2*math.Sin(phase) + 0.8
}

// Opacity computes a node's draw opacity from its progress, ring and
// relation to the current selection.
func Opacity(state *model.GraphState, n *model.GraphNode) float64 {
	base := n.AnimationProgress
	if n.Ring == 0 {
		base = math.Max(model.MinProgress, base)
	} else {
		base = math.Max(model.MinProgress, math.Min(base, math.Exp(-0.25*float64(n.Ring))))
	}
	sel := state.Selected()
	switch {
	case sel != nil && sel.ID == n.ID:
		return 1
	case sel != nil && sel.IsConnectedTo(n.ID):
		return math.Min(1, base*1.5)
	}
	return base
}
