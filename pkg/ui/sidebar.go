package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/vanderheijden86/ember/pkg/debug"
	"github.com/vanderheijden86/ember/pkg/model"
)

// maxGroupItems caps how many entities an expanded group lists.
const maxGroupItems = 12

// Sidebar lists the graph's entities grouped by label. Groups expand and
// collapse through the store; the sidebar only keeps a cursor.
type Sidebar struct {
	width    int
	cursor   int
	renderer *glamour.TermRenderer

	lastMarkdown string
	lastOutput   string
}

// NewSidebar returns a sidebar wrapping markdown at width cells.
func NewSidebar(width int) *Sidebar {
	s := &Sidebar{}
	s.SetWidth(width)
	return s
}

// SetWidth rebuilds the markdown renderer when the width changes.
func (s *Sidebar) SetWidth(width int) {
	if width == s.width && s.renderer != nil {
		return
	}
	s.width = width
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(max(width-2, 10)),
	)
	if err != nil {
		debug.Log("sidebar: markdown renderer unavailable: %v", err)
		r = nil
	}
	s.renderer = r
	s.lastMarkdown = ""
}

// Cursor is the index of the highlighted group.
func (s *Sidebar) Cursor() int { return s.cursor }

// MoveCursor shifts the cursor by delta within n groups, wrapping around.
func (s *Sidebar) MoveCursor(delta, n int) {
	if n <= 0 {
		s.cursor = 0
		return
	}
	s.cursor = ((s.cursor+delta)%n + n) % n
}

// CursorLabel returns the label of the highlighted group, "" when empty.
func (s *Sidebar) CursorLabel(groups []model.LabelGroup) string {
	if len(groups) == 0 {
		return ""
	}
	if s.cursor >= len(groups) {
		s.cursor = len(groups) - 1
	}
	return groups[s.cursor].Label
}

// Markdown is the sidebar document for groups. Entities for which unlocked
// reports true are ticked; unlocked may be nil.
func (s *Sidebar) Markdown(groups []model.LabelGroup, state *model.GraphState, unlocked func(id string) bool) string {
	var b strings.Builder
	b.WriteString("## Entities\n\n")
	if len(groups) == 0 {
		b.WriteString("_Nothing extracted yet._\n")
		return b.String()
	}
	for i, g := range groups {
		marker := "▸"
		expanded := state != nil && state.IsLabelExpanded(g.Label)
		if expanded {
			marker = "▾"
		}
		cursor := ""
		if i == s.cursor {
			cursor = "→ "
		}
		fmt.Fprintf(&b, "%s%s **%s** (%d)\n\n", cursor, marker, g.Label, len(g.Nodes))
		if !expanded {
			continue
		}
		for j, n := range g.Nodes {
			if j == maxGroupItems {
				fmt.Fprintf(&b, "- _…and %d more_\n", len(g.Nodes)-maxGroupItems)
				break
			}
			name := n.ID
			pending := state.Game.IsPending(n.ID)
			if pending {
				name = "?"
			}
			if state.SelectedNode == n.ID {
				name = "**" + name + "**"
			}
			if !pending && unlocked != nil && unlocked(n.ID) {
				name += " ✓"
			}
			fmt.Fprintf(&b, "- %s · %d\n", name, n.Degree())
		}
		b.WriteString("\n")
	}
	return b.String()
}

// View renders the sidebar, reusing the last output when nothing changed.
func (s *Sidebar) View(groups []model.LabelGroup, state *model.GraphState, unlocked func(id string) bool, height int) string {
	md := s.Markdown(groups, state, unlocked)
	if md != s.lastMarkdown {
		s.lastMarkdown = md
		s.lastOutput = md
		if s.renderer != nil {
			if out, err := s.renderer.Render(md); err == nil {
				s.lastOutput = out
			}
		}
	}
	lines := strings.Split(strings.Trim(s.lastOutput, "\n"), "\n")
	if height > 0 && len(lines) > height {
		lines = lines[:height]
	}
	return strings.Join(lines, "\n")
}
