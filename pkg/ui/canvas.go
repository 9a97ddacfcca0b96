package ui

import (
	"image/color"
	"math"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/ember/pkg/camera"
	"github.com/vanderheijden86/ember/pkg/model"
	"github.com/vanderheijden86/ember/pkg/scene"
)

// A terminal cell stands in for a CellWidth x CellHeight pixel block, so the
// camera sees a viewport with roughly square pixels.
const (
	CellWidth  = 8
	CellHeight = 16
)

var (
	labelText = color.RGBA{0x1a, 0x1a, 0x1a, 0xff}
	chainDot  = '·'
	haloDot   = '░'
)

type cell struct {
	ch    rune
	fg    color.RGBA
	bg    color.RGBA
	hasBg bool
	bold  bool
	set   bool
}

// Canvas is a grid of terminal cells a scene frame is painted onto.
type Canvas struct {
	cols, rows int
	cells      []cell
}

// NewCanvas returns an empty cols x rows canvas.
func NewCanvas(cols, rows int) *Canvas {
	cols = max(cols, 0)
	rows = max(rows, 0)
	return &Canvas{cols: cols, rows: rows, cells: make([]cell, cols*rows)}
}

// Size returns the canvas dimensions in cells.
func (c *Canvas) Size() (cols, rows int) { return c.cols, c.rows }

// PixelSize is the viewport a camera should project onto for this canvas.
func (c *Canvas) PixelSize() (w, h float64) {
	return float64(c.cols * CellWidth), float64(c.rows * CellHeight)
}

// Camera returns the camera for state sized to this canvas.
func (c *Canvas) Camera(state *model.GraphState, frustum float64) camera.Camera {
	w, h := c.PixelSize()
	cam := camera.ForState(w, h, state)
	if frustum > 0 {
		cam.FrustumSize = frustum
	}
	return cam
}

// CellCenter is the pixel at the middle of a cell.
func CellCenter(col, row int) model.Vec2 {
	return model.Vec2{
		X: float64(col*CellWidth) + CellWidth/2,
		Y: float64(row*CellHeight) + CellHeight/2,
	}
}

func cellOf(p model.Vec2) (col, row int) {
	return int(math.Floor(p.X / CellWidth)), int(math.Floor(p.Y / CellHeight))
}

func (c *Canvas) at(col, row int) *cell {
	if col < 0 || row < 0 || col >= c.cols || row >= c.rows {
		return nil
	}
	return &c.cells[row*c.cols+col]
}

func (c *Canvas) put(col, row int, ch rune, fg color.RGBA, bold bool) {
	if p := c.at(col, row); p != nil {
		*p = cell{ch: ch, fg: fg, bold: bold, set: true}
	}
}

// Rune returns the glyph at a cell, ' ' when empty or out of range.
func (c *Canvas) Rune(col, row int) rune {
	p := c.at(col, row)
	if p == nil || !p.set {
		return ' '
	}
	return p.ch
}

// Paint draws f in paint order: chains, halos, node bodies, labels.
func (c *Canvas) Paint(f scene.Frame) {
	for _, s := range f.Segments {
		c.line(s.From, s.To, chainDot, s.Color)
	}
	for _, sp := range f.Sprites {
		if sp.Halo != nil && sp.Halo.Opacity > 0 {
			c.disk(sp.Center, sp.Halo.Radius, func(float64) rune { return haloDot }, sp.Halo.Color, false)
		}
	}
	for _, sp := range f.Sprites {
		c.sprite(sp)
	}
	for _, l := range f.Labels {
		c.label(l)
	}
}

// line plots a straight run of glyphs between two pixel points.
func (c *Canvas) line(from, to model.Vec2, ch rune, fg color.RGBA) {
	c0, r0 := cellOf(from)
	c1, r1 := cellOf(to)
	steps := max(abs(c1-c0), abs(r1-r0))
	if steps == 0 {
		c.put(c0, r0, ch, fg, false)
		return
	}
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		col := c0 + int(math.Round(float64(c1-c0)*t))
		row := r0 + int(math.Round(float64(r1-r0)*t))
		c.put(col, row, ch, fg, false)
	}
}

// disk fills every cell whose center lies within radius pixels of center.
// A disk smaller than one cell still marks the cell under its center.
func (c *Canvas) disk(center model.Vec2, radius float64, glyph func(dist float64) rune, fg color.RGBA, bold bool) {
	cc, cr := cellOf(center)
	c.put(cc, cr, glyph(0), fg, bold)
	if radius <= 0 {
		return
	}
	reachC := int(math.Ceil(radius/CellWidth)) + 1
	reachR := int(math.Ceil(radius/CellHeight)) + 1
	r2 := radius * radius
	for row := cr - reachR; row <= cr+reachR; row++ {
		for col := cc - reachC; col <= cc+reachC; col++ {
			d2 := CellCenter(col, row).DistSq(center)
			if d2 <= r2 {
				c.put(col, row, glyph(math.Sqrt(d2)/radius), fg, bold)
			}
		}
	}
}

func (c *Canvas) sprite(sp scene.Sprite) {
	glyph := func(float64) rune { return dotGlyph(sp.Opacity) }
	if sp.Radius >= CellWidth {
		glyph = func(float64) rune { return shadeGlyph(sp.Opacity) }
	}
	c.disk(sp.Center, sp.Radius, glyph, sp.Fill, sp.Selected)
}

// dotGlyph picks a single-cell node marker for opacity.
func dotGlyph(opacity float64) rune {
	switch {
	case opacity >= 0.5:
		return '●'
	case opacity >= 0.25:
		return '•'
	default:
		return '∙'
	}
}

// shadeGlyph picks a block shade for a multi-cell node at opacity.
func shadeGlyph(opacity float64) rune {
	switch {
	case opacity >= 0.75:
		return '█'
	case opacity >= 0.5:
		return '▓'
	case opacity >= 0.25:
		return '▒'
	default:
		return '░'
	}
}

// label writes a caption centered on its anchor with one cell of box
// padding either side.
func (c *Canvas) label(l scene.Label) {
	col, row := cellOf(l.Anchor)
	text := " " + l.Text + " "
	start := col - runewidth.StringWidth(text)/2
	x := start
	for _, r := range text {
		if p := c.at(x, row); p != nil {
			*p = cell{ch: r, fg: labelText, bg: model.LabelBgColor, hasBg: true, bold: l.Bold, set: true}
		}
		w := runewidth.RuneWidth(r)
		if w == 2 {
			// The wide glyph covers the next cell too.
			if p := c.at(x+1, row); p != nil {
				*p = cell{ch: 0, fg: labelText, bg: model.LabelBgColor, hasBg: true, bold: l.Bold, set: true}
			}
		}
		x += max(w, 1)
	}
}

// Plain renders the canvas without styling, one line per row.
func (c *Canvas) Plain() string {
	var b strings.Builder
	for row := 0; row < c.rows; row++ {
		for col := 0; col < c.cols; col++ {
			p := c.cells[row*c.cols+col]
			switch {
			case !p.set:
				b.WriteByte(' ')
			case p.ch != 0:
				b.WriteRune(p.ch)
			}
		}
		if row < c.rows-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Render styles runs of identical cells with theme t.
func (c *Canvas) Render(t Theme) string {
	var b strings.Builder
	for row := 0; row < c.rows; row++ {
		line := c.cells[row*c.cols : (row+1)*c.cols]
		for i := 0; i < len(line); {
			j := i + 1
			for j < len(line) && sameStyle(line[i], line[j]) {
				j++
			}
			var run strings.Builder
			for _, p := range line[i:j] {
				switch {
				case !p.set:
					run.WriteByte(' ')
				case p.ch != 0:
					run.WriteRune(p.ch)
				}
			}
			if line[i].set {
				b.WriteString(t.cellStyle(line[i].fg, line[i].bg, line[i].hasBg, line[i].bold).Render(run.String()))
			} else {
				b.WriteString(run.String())
			}
			i = j
		}
		if row < c.rows-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func sameStyle(a, b cell) bool {
	if a.set != b.set {
		return false
	}
	if !a.set {
		return true
	}
	return a.fg == b.fg && a.bg == b.bg && a.hasBg == b.hasBg && a.bold == b.bold
}

// HitCell resolves a click on a canvas cell. The frame's own hit test runs
// at the cell center first; nodes smaller than a cell are then matched by
// the cell their center falls in.
func HitCell(f scene.Frame, col, row int) string {
	if id := f.Hit(CellCenter(col, row)); id != "" {
		return id
	}
	for i := len(f.Sprites) - 1; i >= 0; i-- {
		sc, sr := cellOf(f.Sprites[i].Center)
		if sc == col && sr == row {
			return f.Sprites[i].ID
		}
	}
	return ""
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
