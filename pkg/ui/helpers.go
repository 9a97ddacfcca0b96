package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/ember/pkg/store"
)

// truncate shortens s to at most maxWidth display cells, ending in "…"
// when cut.
func truncate(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth == 1 {
		return "…"
	}
	return runewidth.Truncate(s, maxWidth, "…")
}

// padRight pads s with spaces to width display cells.
func padRight(s string, width int) string {
	w := runewidth.StringWidth(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}

// center places s in the middle of width cells.
func center(s string, width int) string {
	w := runewidth.StringWidth(s)
	if w >= width {
		return truncate(s, width)
	}
	left := (width - w) / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", width-w-left)
}

// FormatDateKey renders a YYYY-MM-DD memory key as "Mon, Jan 2 2006". Keys
// that do not parse are returned unchanged.
func FormatDateKey(key string) string {
	t, err := time.Parse(store.DateKeyLayout, key)
	if err != nil {
		return key
	}
	return t.Format("Mon, Jan 2 2006")
}

// pluralize returns "1 node" or "3 nodes", "2 memories".
func pluralize(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	if strings.HasSuffix(noun, "y") {
		return fmt.Sprintf("%d %sies", n, strings.TrimSuffix(noun, "y"))
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
