// Package export writes static snapshots of the graph view.
package export

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"

	"git.sr.ht/~sbinet/gg"
	svg "github.com/ajstarks/svgo"
	"golang.org/x/image/font/basicfont"

	"github.com/vanderheijden86/ember/pkg/layout"
	"github.com/vanderheijden86/ember/pkg/metrics"
	"github.com/vanderheijden86/ember/pkg/model"
	"github.com/vanderheijden86/ember/pkg/scene"
)

// ErrEmptyFrame is returned when there is nothing to draw.
var ErrEmptyFrame = errors.New("frame has no nodes to export")

// SnapshotOptions controls frame snapshot export.
type SnapshotOptions struct {
	Path   string // Output path; format inferred from extension when Format empty
	Format string // "svg" or "png" (case-insensitive)
	Chat   string
	Frame  scene.Frame
	Stats  layout.Stats
}

// SaveFrameSnapshot renders one frame of the graph view to an SVG or PNG
// file, with a summary block in the top-left corner.
func SaveFrameSnapshot(opts SnapshotOptions) error {
	defer metrics.Timer(metrics.SnapshotRender)()

	format, path, err := resolveFormat(opts.Format, opts.Path)
	if err != nil {
		return err
	}
	if len(opts.Frame.Sprites) == 0 {
		return ErrEmptyFrame
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteFrame(f, format, opts); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteFrame renders opts.Frame to w in format ("svg" or "png").
func WriteFrame(w io.Writer, format string, opts SnapshotOptions) error {
	switch format {
	case "svg":
		return renderSVG(w, opts)
	case "png":
		return renderPNG(w, opts)
	}
	return fmt.Errorf("unsupported format %q (want svg or png)", format)
}

func resolveFormat(format, path string) (string, string, error) {
	if path == "" {
		return "", "", errors.New("output path is required")
	}
	format = strings.ToLower(strings.TrimPrefix(format, "."))
	if format == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".png":
			format = "png"
		case ".svg":
			format = "svg"
		case "":
			format = "svg"
			path += ".svg"
		default:
			format = "svg"
		}
	}
	if format != "svg" && format != "png" {
		return "", "", fmt.Errorf("unsupported format %q (want svg or png)", format)
	}
	return format, path, nil
}

var (
	colorBackdrop = color.RGBA{0x00, 0x00, 0x00, 0xff}
	colorLabelBG  = model.LabelBgColor
	colorText     = color.RGBA{0x11, 0x11, 0x11, 0xff}
	colorSummary  = color.RGBA{0xee, 0xee, 0xee, 0xff}
	colorSubtle   = color.RGBA{0x99, 0x99, 0x99, 0xff}
)

func summaryLines(opts SnapshotOptions) []string {
	title := opts.Chat
	if strings.TrimSpace(title) == "" {
		title = "Graph Snapshot"
	}
	hub := "n/a"
	if opts.Stats.Hub != "" {
		hub = fmt.Sprintf("%s (%d)", opts.Stats.Hub, opts.Stats.HubDegree)
	}
	return []string{
		title,
		fmt.Sprintf("nodes: %d  edges: %d", opts.Stats.Nodes, opts.Stats.Edges),
		fmt.Sprintf("components: %d", opts.Stats.Components),
		fmt.Sprintf("hub: %s", hub),
	}
}

func frameSize(f scene.Frame) (int, int) {
	w, h := int(f.Camera.Width), int(f.Camera.Height)
	if w <= 0 {
		w = 1200
	}
	if h <= 0 {
		h = 800
	}
	return w, h
}

func renderPNG(w io.Writer, opts SnapshotOptions) error {
	width, height := frameSize(opts.Frame)
	dc := gg.NewContext(width, height)
	dc.SetColor(colorBackdrop)
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)

	for _, s := range opts.Frame.Segments {
		dc.SetColor(withAlpha(s.Color, s.Opacity))
		dc.SetLineWidth(s.Width)
		dc.DrawLine(s.From.X, s.From.Y, s.To.X, s.To.Y)
		dc.Stroke()
	}

	for _, sp := range opts.Frame.Sprites {
		if sp.Halo != nil {
			dc.SetColor(withAlpha(sp.Halo.Color, sp.Halo.Opacity))
			dc.DrawCircle(sp.Center.X, sp.Center.Y, sp.Halo.Radius)
			dc.Fill()
		}
		dc.SetColor(withAlpha(sp.Fill, sp.Opacity))
		dc.DrawCircle(sp.Center.X, sp.Center.Y, sp.Radius)
		dc.Fill()
	}

	for _, l := range opts.Frame.Labels {
		dc.SetColor(colorLabelBG)
		dc.DrawRoundedRectangle(l.Box.X, l.Box.Y, l.Box.W, l.Box.H, l.Corner)
		dc.Fill()
		dc.SetColor(colorText)
		cx, cy := l.Box.X+l.Box.W/2, l.Box.Y+l.Box.H/2
		dc.DrawStringAnchored(l.Text, cx, cy, 0.5, 0.5)
		if l.Bold {
			// basicfont has no bold face; overstrike instead.
			dc.DrawStringAnchored(l.Text, cx+1, cy, 0.5, 0.5)
		}
	}

	for i, line := range summaryLines(opts) {
		c := colorSubtle
		if i == 0 {
			c = colorSummary
		}
		dc.SetColor(c)
		dc.DrawStringAnchored(line, 16, 24+float64(i)*18, 0, 0.5)
	}

	return dc.EncodePNG(w)
}

func renderSVG(w io.Writer, opts SnapshotOptions) error {
	width, height := frameSize(opts.Frame)
	canvas := svg.New(w)
	canvas.Start(width, height)
	canvas.Rect(0, 0, width, height, fmt.Sprintf("fill:%s", model.Hex(colorBackdrop)))

	for _, s := range opts.Frame.Segments {
		canvas.Line(int(s.From.X), int(s.From.Y), int(s.To.X), int(s.To.Y),
			fmt.Sprintf("stroke:%s;stroke-width:%.1f;stroke-opacity:%.2f", model.Hex(s.Color), s.Width, s.Opacity))
	}

	for _, sp := range opts.Frame.Sprites {
		x, y := int(sp.Center.X), int(sp.Center.Y)
		if sp.Halo != nil {
			canvas.Circle(x, y, int(sp.Halo.Radius),
				fmt.Sprintf("fill:%s;fill-opacity:%.2f", model.Hex(sp.Halo.Color), sp.Halo.Opacity))
		}
		canvas.Circle(x, y, max(1, int(sp.Radius)),
			fmt.Sprintf("fill:%s;fill-opacity:%.2f", model.Hex(sp.Fill), sp.Opacity))
	}

	for _, l := range opts.Frame.Labels {
		corner := int(l.Corner)
		canvas.Roundrect(int(l.Box.X), int(l.Box.Y), int(l.Box.W), int(l.Box.H), corner, corner,
			fmt.Sprintf("fill:%s;fill-opacity:%.2f", model.Hex(colorLabelBG), float64(colorLabelBG.A)/255))
		weight := "normal"
		if l.Bold {
			weight = "bold"
		}
		canvas.Text(int(l.Box.X+l.Box.W/2), int(l.Box.Y+l.Box.H/2+l.FontSize/3), l.Text,
			fmt.Sprintf("fill:%s;font-size:%.1fpx;font-family:sans-serif;font-weight:%s;text-anchor:middle",
				model.Hex(colorText), l.FontSize, weight))
	}

	for i, line := range summaryLines(opts) {
		style := fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace", model.Hex(colorSubtle))
		if i == 0 {
			style = fmt.Sprintf("fill:%s;font-size:16px;font-family:monospace;font-weight:bold", model.Hex(colorSummary))
		}
		canvas.Text(16, 28+i*18, line, style)
	}

	canvas.End()
	return nil
}

func withAlpha(c color.RGBA, opacity float64) color.NRGBA {
	opacity = max(0, min(1, opacity))
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: uint8(opacity*255 + 0.5)}
}
