package testutil

import (
	"strings"
	"testing"

	"github.com/vanderheijden86/ember/pkg/model"
)

func TestLetters(t *testing.T) {
	tests := map[int]string{0: "A", 1: "B", 25: "Z", 26: "AA", 27: "AB", 701: "ZZ", 702: "AAA"}
	for i, want := range tests {
		if got := Letters(i); got != want {
			t.Errorf("Letters(%d) = %q, want %q", i, got, want)
		}
	}
}

func TestEntityCyclesLabels(t *testing.T) {
	gen := NewDefault()
	if e := gen.Entity(0); e.Text != "PersonA" || e.Type != "person" {
		t.Errorf("Entity(0) = %+v", e)
	}
	if e := gen.Entity(5); e.Type != "location" || strings.ContainsAny(e.Text, "0123456789") {
		t.Errorf("Entity(5) = %+v", e)
	}
}

func TestTemplateBlanks(t *testing.T) {
	for n := 1; n <= 6; n++ {
		if got := strings.Count(Template(n), model.BlankMarker); got != n {
			t.Errorf("Template(%d) has %d blanks", n, got)
		}
	}
}

func TestTopologies(t *testing.T) {
	gen := NewDefault()
	tests := []struct {
		name              string
		f                 Fixture
		wantDays, wantMax int
	}{
		{"star", gen.Star(5), 5, 2},
		{"chain", gen.Chain(4), 3, 2},
		{"clique", gen.Clique(4), 1, 4},
		{"islands", gen.Islands(3), 3, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if len(tt.f.Import.Chunks) != tt.wantDays || len(tt.f.Entries) != tt.wantDays {
				t.Fatalf("days = %d chunks / %d entries, want %d", len(tt.f.Import.Chunks), len(tt.f.Entries), tt.wantDays)
			}
			for i, entry := range tt.f.Entries {
				for _, sc := range entry.Scenes {
					if n := strings.Count(sc.Memory, model.BlankMarker); n != len(sc.Entities) || n > tt.wantMax {
						t.Errorf("day %d scene %d: %d blanks for %d entities", i, sc.ID, n, len(sc.Entities))
					}
				}
				if got := tt.f.Import.Chunks[i].Messages[0].Text; strings.Contains(got, model.BlankMarker) {
					t.Errorf("message left a blank: %q", got)
				}
			}
		})
	}
}

func TestDatesAreConsecutive(t *testing.T) {
	f := NewDefault().Chain(4)
	want := []string{"2024-01-01", "2024-01-02", "2024-01-03"}
	for i, c := range f.Import.Chunks {
		if c.Date != want[i] {
			t.Errorf("chunk %d date = %s, want %s", i, c.Date, want[i])
		}
	}
}

func TestRandomIsDeterministic(t *testing.T) {
	a := New(GeneratorConfig{Seed: 7}).Random(5, 3, 10, 4)
	b := New(GeneratorConfig{Seed: 7}).Random(5, 3, 10, 4)
	for d := range a.Entries {
		for s := range a.Entries[d].Scenes {
			ea, eb := a.Entries[d].Scenes[s].Entities, b.Entries[d].Scenes[s].Entities
			if len(ea) != len(eb) {
				t.Fatalf("day %d scene %d differs", d, s)
			}
			for i := range ea {
				if ea[i] != eb[i] {
					t.Fatalf("day %d scene %d entity %d: %v vs %v", d, s, i, ea[i], eb[i])
				}
			}
		}
	}
}

func TestRandomScenesHaveDistinctEntities(t *testing.T) {
	f := New(GeneratorConfig{Seed: 3}).Random(10, 2, 6, 10)
	for _, entry := range f.Entries {
		for _, sc := range entry.Scenes {
			seen := make(map[string]bool)
			for _, e := range sc.Entities {
				if seen[e.Text] {
					t.Fatalf("scene repeats %s", e.Text)
				}
				seen[e.Text] = true
			}
			if len(sc.Entities) < 1 || len(sc.Entities) > 6 {
				t.Errorf("scene has %d entities", len(sc.Entities))
			}
		}
	}
}
