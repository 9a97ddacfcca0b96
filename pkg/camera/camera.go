// Package camera implements the orthographic projection between graph world
// units and viewport pixels, plus label placement and pointer hit testing.
package camera

import (
	"math"
	"time"

	"github.com/vanderheijden86/ember/pkg/model"
)

const (
	DefaultFrustumSize = 1000.0
	MinZoom            = 0.15
	MaxZoom            = 4.0
	ZoomStep           = 1.2
	WheelZoomIn        = 1.2
	WheelZoomOut       = 0.8
	ZoomDuration       = 300 * time.Millisecond

	// NodeScale shrinks node sprites relative to their layout size.
	NodeScale = 0.8
	// LabelGap is the pixel gap between a node's rim and its label.
	LabelGap      = 10.0
	MaxLabelFont  = 14.0
	LabelPadding  = 6.0
	LabelCorner   = 4.0
	HaloExtraSize = 20.0
)

// ClampZoom limits z to [MinZoom, MaxZoom].
func ClampZoom(z float64) float64 {
	if math.IsNaN(z) {
		return 1
	}
	return math.Max(MinZoom, math.Min(MaxZoom, z))
}

// Bounds is a world-space rectangle.
type Bounds struct {
	Left, Right, Bottom, Top float64
}

func (b Bounds) Width() float64  { return b.Right - b.Left }
func (b Bounds) Height() float64 { return b.Top - b.Bottom }

// Camera projects world coordinates onto a Width x Height viewport.
type Camera struct {
	Width, Height float64
	FrustumSize   float64
	Zoom          float64
	Offset        model.Vec2
}

// New returns a camera for the given viewport at zoom 1.
func New(width, height float64) Camera {
	return Camera{Width: width, Height: height, FrustumSize: DefaultFrustumSize, Zoom: 1}
}

// ForState returns a camera positioned by the state's zoom and pan.
func ForState(width, height float64, s *model.GraphState) Camera {
	c := New(width, height)
	c.Zoom = s.ZoomLevel
	c.Offset = s.ViewOffset
	return c
}

// Aspect is the viewport width over height.
func (c Camera) Aspect() float64 {
	if c.Height == 0 {
		return 1
	}
	return c.Width / c.Height
}

func (c Camera) zoom() float64 {
	if c.Zoom <= 0 {
		return 1
	}
	return c.Zoom
}

func (c Camera) frustumSize() float64 {
	if c.FrustumSize <= 0 {
		return DefaultFrustumSize
	}
	return c.FrustumSize
}

// Frustum is the visible world rectangle, shifted by the pan offset.
func (c Camera) Frustum() Bounds {
	z := c.zoom()
	halfW := c.frustumSize() * c.Aspect() / 2 / z
	halfH := c.frustumSize() / 2 / z
	return Bounds{
		Left:   -halfW + c.Offset.X,
		Right:  halfW + c.Offset.X,
		Bottom: -halfH + c.Offset.Y,
		Top:    halfH + c.Offset.Y,
	}
}

// WorldToScreen maps a world point to pixel coordinates with y growing down.
func (c Camera) WorldToScreen(p model.Vec2) model.Vec2 {
	f := c.Frustum()
	return model.Vec2{
		X: (p.X - f.Left) / f.Width() * c.Width,
		Y: (f.Top - p.Y) / f.Height() * c.Height,
	}
}

// ScreenToWorld is the inverse of WorldToScreen.
func (c Camera) ScreenToWorld(p model.Vec2) model.Vec2 {
	f := c.Frustum()
	return model.Vec2{
		X: f.Left + p.X/c.Width*f.Width(),
		Y: f.Top - p.Y/c.Height*f.Height(),
	}
}

// PixelsPerUnit is derived from the frustum width.
func (c Camera) PixelsPerUnit() float64 {
	return c.Width / c.Frustum().Width()
}

// NodeRadius is a node's world radius as drawn, including its visual scale.
func NodeRadius(n *model.GraphNode) float64 {
	scale := n.Scale
	if scale == 0 {
		scale = 1
	}
	return n.Size * NodeScale / 2 * scale
}

// HaloRadius is the world radius of a node's glow halo.
func HaloRadius(n *model.GraphNode) float64 {
	return (n.Size + HaloExtraSize) * NodeScale / 2
}

// LabelAnchor is the pixel position of a node's label text center.
func (c Camera) LabelAnchor(n *model.GraphNode) model.Vec2 {
	ppu := c.PixelsPerUnit()
	p := c.WorldToScreen(n.Position)
	p.Y += n.Size/2*ppu + LabelGap*ppu
	return p
}

// LabelFontSize keeps labels a constant on-screen size across zoom levels.
func LabelFontSize(nodeSize, zoom float64) float64 {
	if zoom <= 0 {
		zoom = 1
	}
	return math.Min(nodeSize*0.6, MaxLabelFont) / zoom
}

// LabelPad is the label box padding at zoom.
func LabelPad(zoom float64) float64 {
	if zoom <= 0 {
		zoom = 1
	}
	return LabelPadding / zoom
}

// LabelCornerRadius is the label box corner radius at zoom.
func LabelCornerRadius(zoom float64) float64 {
	if zoom <= 0 {
		zoom = 1
	}
	return LabelCorner / zoom
}

// Rect is a pixel rectangle.
type Rect struct {
	X, Y, W, H float64
}

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p model.Vec2) bool {
	return p.X >= r.X && p.X <= r.X+r.W && p.Y >= r.Y && p.Y <= r.Y+r.H
}

// LabelBox returns the pixel box of a label of textWidth glyph units,
// centered on the node's anchor.
func (c Camera) LabelBox(n *model.GraphNode, textWidth float64) Rect {
	anchor := c.LabelAnchor(n)
	font := LabelFontSize(n.Size, c.zoom())
	pad := LabelPad(c.zoom())
	w := textWidth*font*0.6 + 2*pad
	h := font + 2*pad
	return Rect{X: anchor.X - w/2, Y: anchor.Y - h/2, W: w, H: h}
}

// PanDelta converts a pointer drag in pixels into a view offset change.
// Dragging right moves the view left; screen y is inverted.
func PanDelta(dxPx, dyPx, zoom float64) model.Vec2 {
	if zoom <= 0 {
		zoom = 1
	}
	return model.Vec2{X: -dxPx / zoom, Y: dyPx / zoom}
}
