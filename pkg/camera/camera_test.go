package camera

import (
	"math"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/vanderheijden86/ember/pkg/model"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestFrustum(t *testing.T) {
	c := New(1600, 800)
	f := c.Frustum()
	if !approx(f.Left, -1000) || !approx(f.Right, 1000) || !approx(f.Bottom, -500) || !approx(f.Top, 500) {
		t.Fatalf("frustum = %+v", f)
	}

	c.Zoom = 2
	c.Offset = model.Vec2{X: 100, Y: -50}
	f = c.Frustum()
	if !approx(f.Left, -400) || !approx(f.Right, 600) || !approx(f.Bottom, -300) || !approx(f.Top, 200) {
		t.Fatalf("zoomed frustum = %+v", f)
	}
}

func TestWorldToScreenOrigin(t *testing.T) {
	c := New(1600, 800)
	p := c.WorldToScreen(model.Vec2{})
	if !approx(p.X, 800) || !approx(p.Y, 400) {
		t.Errorf("origin at %v, want viewport center", p)
	}
	top := c.WorldToScreen(model.Vec2{Y: 500})
	if !approx(top.Y, 0) {
		t.Errorf("world top maps to y=%v, want 0", top.Y)
	}
}

func TestPixelsPerUnit(t *testing.T) {
	c := New(1600, 800)
	if !approx(c.PixelsPerUnit(), 0.8) {
		t.Errorf("ppu = %v", c.PixelsPerUnit())
	}
	c.Zoom = 2
	if !approx(c.PixelsPerUnit(), 1.6) {
		t.Errorf("zoomed ppu = %v", c.PixelsPerUnit())
	}
}

func TestLabelAnchorBelowNode(t *testing.T) {
	c := New(1000, 1000)
	n := model.NewGraphNode("a", "person", model.Vec2{}, 40, 0)
	a := c.LabelAnchor(n)
	want := 500 + (20+LabelGap)*c.PixelsPerUnit()
	if !approx(a.X, 500) || !approx(a.Y, want) {
		t.Errorf("anchor = %v, want (500, %v)", a, want)
	}
}

func TestLabelSizing(t *testing.T) {
	if got := LabelFontSize(50, 1); got != 14 {
		t.Errorf("font capped at %v", got)
	}
	if got := LabelFontSize(10, 2); !approx(got, 3) {
		t.Errorf("font = %v, want 3", got)
	}
	if got := LabelPad(2); got != 3 {
		t.Errorf("pad = %v", got)
	}
	if got := LabelCornerRadius(4); got != 1 {
		t.Errorf("corner = %v", got)
	}
}

func TestLabelBoxCenteredOnAnchor(t *testing.T) {
	c := New(1000, 1000)
	n := model.NewGraphNode("a", "person", model.Vec2{}, 10, 0)
	a := c.LabelAnchor(n)
	box := c.LabelBox(n, 4)

	font, pad := LabelFontSize(10, 1), LabelPad(1)
	if !approx(box.H, font+2*pad) || !approx(box.W, 4*font*0.6+2*pad) {
		t.Errorf("box size = %vx%v", box.W, box.H)
	}
	if !approx(box.X+box.W/2, a.X) || !approx(box.Y+box.H/2, a.Y) {
		t.Errorf("box %+v not centered on anchor %v", box, a)
	}
	if !box.Contains(a) {
		t.Error("anchor should lie inside its label box")
	}
}

func TestPanDelta(t *testing.T) {
	d := PanDelta(10, 20, 2)
	if d.X != -5 || d.Y != 10 {
		t.Errorf("PanDelta = %v", d)
	}
}

func TestClampZoom(t *testing.T) {
	for _, tt := range []struct{ in, want float64 }{
		{0, MinZoom}, {-3, MinZoom}, {1, 1}, {10, MaxZoom}, {math.Inf(1), MaxZoom}, {math.NaN(), 1},
	} {
		if got := ClampZoom(tt.in); got != tt.want {
			t.Errorf("ClampZoom(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestZoomAnimation(t *testing.T) {
	var a ZoomAnimation
	t0 := time.Unix(0, 0)
	a.Start(1, 2, t0)
	if !a.Active() {
		t.Fatal("animation not active")
	}
	mid, done := a.At(t0.Add(ZoomDuration / 2))
	if done || !approx(mid, 1.75) {
		t.Errorf("midpoint zoom = %v (done=%v), want 1.75", mid, done)
	}
	end, done := a.At(t0.Add(ZoomDuration))
	if !done || end != 2 || a.Active() {
		t.Errorf("end zoom = %v done=%v active=%v", end, done, a.Active())
	}

	a.Start(2, 100, t0)
	if a.Target() != MaxZoom {
		t.Errorf("target not clamped: %v", a.Target())
	}
}

func TestEaseOutQuad(t *testing.T) {
	if EaseOutQuad(0) != 0 || EaseOutQuad(1) != 1 || EaseOutQuad(0.5) != 0.75 {
		t.Error("unexpected easing values")
	}
}

func TestPropertyScreenWorldRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		c := New(
			rapid.Float64Range(100, 4000).Draw(t, "w"),
			rapid.Float64Range(100, 4000).Draw(t, "h"),
		)
		c.Zoom = rapid.Float64Range(MinZoom, MaxZoom).Draw(t, "zoom")
		c.Offset = model.Vec2{
			X: rapid.Float64Range(-2000, 2000).Draw(t, "ox"),
			Y: rapid.Float64Range(-2000, 2000).Draw(t, "oy"),
		}
		p := model.Vec2{
			X: rapid.Float64Range(-3000, 3000).Draw(t, "x"),
			Y: rapid.Float64Range(-3000, 3000).Draw(t, "y"),
		}
		back := c.ScreenToWorld(c.WorldToScreen(p))
		if back.DistSq(p) > 1e-6 {
			t.Fatalf("round trip %v -> %v", p, back)
		}
	})
}

func TestPropertyZoomClamped(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		z := ClampZoom(rapid.Float64().Draw(t, "z"))
		if z < MinZoom || z > MaxZoom {
			t.Fatalf("zoom %v escaped clamp", z)
		}
	})
}
