package ui

import (
	"image/color"
	"os"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/ember/pkg/model"
)

// TermProfile holds the detected terminal color profile. Computed once at
// package init so every style helper can branch without re-detecting.
var TermProfile colorprofile.Profile

func init() {
	TermProfile = colorprofile.Detect(os.Stdout, os.Environ())
}

// ThemeBg returns the given hex color for TrueColor terminals and
// lipgloss.NoColor{} otherwise, so 16/256-color terminals keep their own
// background.
func ThemeBg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.TrueColor {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(hex)
}

// ThemeFg returns the given hex color for ANSI256+ terminals and a safe
// ANSI white (color 7) for 16-color or lower terminals.
func ThemeFg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.ANSI256 {
		return lipgloss.ANSIColor(7)
	}
	return lipgloss.Color(hex)
}

// Theme carries the renderer-bound styles used by the views.
type Theme struct {
	Renderer *lipgloss.Renderer

	Primary lipgloss.AdaptiveColor
	Muted   lipgloss.AdaptiveColor
	Pending lipgloss.AdaptiveColor

	Base       lipgloss.Style
	MutedText  lipgloss.Style
	Title      lipgloss.Style
	Selected   lipgloss.Style
	PendingDot lipgloss.Style
}

// DefaultTheme returns the ember theme for renderer r.
func DefaultTheme(r *lipgloss.Renderer) Theme {
	t := Theme{
		Renderer: r,
		Primary:  ColorPrimary,
		Muted:    ColorMuted,
		Pending:  ColorPending,
	}
	t.Base = r.NewStyle().Foreground(ColorText)
	t.MutedText = r.NewStyle().Foreground(ColorMuted)
	t.Title = r.NewStyle().Foreground(ColorPrimary).Bold(true)
	t.Selected = r.NewStyle().
		Background(ColorBgSubtle).
		Border(lipgloss.ThickBorder(), false, false, false, true).
		BorderForeground(ColorPrimary).
		PaddingLeft(1).
		Bold(true)
	t.PendingDot = r.NewStyle().Foreground(ColorPending).Bold(true)
	return t
}

// LabelStyle colors text with an entity label's swatch.
func (t Theme) LabelStyle(label string) lipgloss.Style {
	return t.Renderer.NewStyle().Foreground(ThemeFg(model.Hex(model.LabelColor(label))))
}

// cellStyle is the style of one canvas cell run.
func (t Theme) cellStyle(fg, bg color.RGBA, hasBg, bold bool) lipgloss.Style {
	s := t.Renderer.NewStyle().Foreground(ThemeFg(model.Hex(fg))).Bold(bold)
	if hasBg {
		s = s.Background(ThemeBg(model.Hex(bg)))
	}
	return s
}

// TestTheme returns a theme suitable for use in tests.
func TestTheme() Theme {
	return DefaultTheme(lipgloss.NewRenderer(os.Stdout))
}
