package export

import (
	"bytes"
	"encoding/xml"
	"errors"
	"image/png"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vanderheijden86/ember/pkg/camera"
	"github.com/vanderheijden86/ember/pkg/layout"
	"github.com/vanderheijden86/ember/pkg/model"
	"github.com/vanderheijden86/ember/pkg/scene"
)

func testSnapshot(t *testing.T) SnapshotOptions {
	t.Helper()
	scenes := map[string][]model.EntityItem{
		"trip|0": {
			{ID: "Ana", Text: "Ana", Label: "person"},
			{ID: "Lisbon", Text: "Lisbon", Label: "location"},
		},
		"trip|1": {
			{ID: "Ana", Text: "Ana", Label: "person"},
			{ID: "Pasteis", Text: "Pasteis", Label: "food"},
		},
	}
	res := layout.Build(scenes, layout.Options{Rand: rand.New(rand.NewPCG(1, 2))})
	state := model.NewGraphState(res.Nodes)
	state.SelectedNode = "Ana"
	state.Nodes["Ana"].HaloOpacity = 0.3
	cam := camera.ForState(640, 480, state)
	return SnapshotOptions{
		Chat:  "trip",
		Frame: scene.Build(state, scenes, cam, scene.Options{}),
		Stats: res.Stats,
	}
}

func TestSaveFrameSnapshot_SVGAndPNG(t *testing.T) {
	tmp := t.TempDir()
	for _, name := range []string{"graph.svg", "graph.png"} {
		t.Run(name, func(t *testing.T) {
			opts := testSnapshot(t)
			opts.Path = filepath.Join(tmp, "nested", name)
			if err := SaveFrameSnapshot(opts); err != nil {
				t.Fatalf("SaveFrameSnapshot: %v", err)
			}
			info, err := os.Stat(opts.Path)
			if err != nil {
				t.Fatalf("output not created: %v", err)
			}
			if info.Size() == 0 {
				t.Fatal("output file is empty")
			}
		})
	}
}

func TestWriteFrame_SVGIsValidXML(t *testing.T) {
	opts := testSnapshot(t)
	var buf bytes.Buffer
	if err := WriteFrame(&buf, "svg", opts); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	var doc interface{}
	if err := xml.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("SVG is not valid XML: %v\n%s", err, buf.String())
	}
	out := buf.String()
	for _, want := range []string{"trip", "nodes: 3  edges: 2", "components: 1", "hub: Ana (2)", "font-weight:bold"} {
		if !strings.Contains(out, want) {
			t.Errorf("SVG missing %q", want)
		}
	}
	if got := strings.Count(out, "<circle"); got != 4 {
		t.Errorf("circles = %d, want 3 nodes plus 1 halo", got)
	}
	if got := strings.Count(out, "<line"); got != 2 {
		t.Errorf("lines = %d, want one chain link per scene", got)
	}
}

func TestWriteFrame_PNGMatchesViewport(t *testing.T) {
	opts := testSnapshot(t)
	var buf bytes.Buffer
	if err := WriteFrame(&buf, "png", opts); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 640 || b.Dy() != 480 {
		t.Errorf("bounds = %v, want 640x480", b)
	}
}

func TestSaveFrameSnapshot_Errors(t *testing.T) {
	tmp := t.TempDir()

	opts := testSnapshot(t)
	opts.Path = filepath.Join(tmp, "graph.txt")
	opts.Format = "txt"
	if err := SaveFrameSnapshot(opts); err == nil {
		t.Error("expected error for unsupported format")
	}

	opts = testSnapshot(t)
	if err := SaveFrameSnapshot(opts); err == nil {
		t.Error("expected error for empty path")
	}

	opts = SnapshotOptions{Path: filepath.Join(tmp, "empty.svg")}
	if err := SaveFrameSnapshot(opts); !errors.Is(err, ErrEmptyFrame) {
		t.Errorf("err = %v, want ErrEmptyFrame", err)
	}
}

func TestResolveFormat(t *testing.T) {
	tests := []struct {
		format, path         string
		wantFormat, wantPath string
	}{
		{"", "a.svg", "svg", "a.svg"},
		{"", "a.PNG", "png", "a.PNG"},
		{"", "a", "svg", "a.svg"},
		{".png", "a.out", "png", "a.out"},
		{"SVG", "a.png", "svg", "a.png"},
	}
	for _, tt := range tests {
		f, p, err := resolveFormat(tt.format, tt.path)
		if err != nil {
			t.Fatalf("resolveFormat(%q, %q): %v", tt.format, tt.path, err)
		}
		if f != tt.wantFormat || p != tt.wantPath {
			t.Errorf("resolveFormat(%q, %q) = %q, %q", tt.format, tt.path, f, p)
		}
	}
}
