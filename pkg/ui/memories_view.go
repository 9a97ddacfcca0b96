package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/ember/pkg/model"
)

// renderMemories lists saved sentences grouped by day, newest first.
func renderMemories(t Theme, data model.AnalysisData, width int) string {
	dates := data.Dates()
	if len(dates) == 0 {
		return t.MutedText.Render("No memories saved yet. Complete a recall round and press s to keep it.")
	}

	wrap := lipgloss.NewStyle().Width(max(width-4, 10))
	var b strings.Builder
	for i := len(dates) - 1; i >= 0; i-- {
		d := dates[i]
		b.WriteString(t.Title.Render(FormatDateKey(d)))
		b.WriteString(t.MutedText.Render("  " + pluralize(len(data.SavedMemories[d]), "memory")))
		b.WriteString("\n")
		for _, s := range data.SavedMemories[d] {
			b.WriteString(wrap.Render("  • " + s))
			b.WriteString("\n")
		}
		if i > 0 {
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
