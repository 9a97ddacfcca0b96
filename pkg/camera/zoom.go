package camera

import "time"

// EaseOutQuad maps linear progress p in [0,1] to decelerating progress.
func EaseOutQuad(p float64) float64 {
	if p <= 0 {
		return 0
	}
	if p >= 1 {
		return 1
	}
	return 1 - (1-p)*(1-p)
}

// ZoomAnimation interpolates the zoom level between two values over
// ZoomDuration. The zero value is idle.
type ZoomAnimation struct {
	from, to float64
	start    time.Time
	active   bool
}

// Start begins animating from the current zoom toward target (clamped).
// Starting while a previous animation runs retargets from its current value.
func (a *ZoomAnimation) Start(current, target float64, now time.Time) {
	if a.active {
		current, _ = a.At(now)
	}
	a.from = ClampZoom(current)
	a.to = ClampZoom(target)
	a.start = now
	a.active = a.from != a.to
}

// Active reports whether an animation is running.
func (a *ZoomAnimation) Active() bool { return a.active }

// Target is the zoom the animation ends at.
func (a *ZoomAnimation) Target() float64 { return a.to }

// At returns the zoom for now and whether the animation has finished.
// A finished animation becomes idle.
func (a *ZoomAnimation) At(now time.Time) (float64, bool) {
	if !a.active {
		return a.to, true
	}
	p := float64(now.Sub(a.start)) / float64(ZoomDuration)
	if p >= 1 {
		a.active = false
		return a.to, true
	}
	return a.from + (a.to-a.from)*EaseOutQuad(p), false
}

// Cancel stops the animation where it is.
func (a *ZoomAnimation) Cancel() { a.active = false }
