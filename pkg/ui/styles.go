package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// ══════════════════════════════════════════════════════════════════════════════
// DESIGN TOKENS
// ══════════════════════════════════════════════════════════════════════════════

const (
	SpaceXS = 1
	SpaceSM = 2
	SpaceMD = 3
)

// Layout sizes in terminal cells.
const (
	SidebarWidth    = 30
	MinCanvasWidth  = 20
	MinCanvasHeight = 6
	headerHeight    = 1
	footerHeight    = 1
)

// ══════════════════════════════════════════════════════════════════════════════
// COLOR PALETTE - Adaptive colors for light and dark terminals
// ══════════════════════════════════════════════════════════════════════════════

var (
	ColorBg       = lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#14080F"}
	ColorBgSubtle = lipgloss.AdaptiveColor{Light: "#F3E9E6", Dark: "#2A1420"}
	ColorText     = lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#F8F2EE"}
	ColorSubtext  = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#C9B8B2"}
	ColorMuted    = lipgloss.AdaptiveColor{Light: "#6E6E6E", Dark: "#7A6470"}

	// Ember accents, matching model.Ember and model.EmberDeep.
	ColorPrimary   = lipgloss.AdaptiveColor{Light: "#C73A1E", Dark: "#F1502F"}
	ColorSecondary = lipgloss.AdaptiveColor{Light: "#441151", Dark: "#9A5BAA"}
	ColorPending   = lipgloss.AdaptiveColor{Light: "#4E7D1E", Dark: "#8BC34A"}

	ColorSuccess = lipgloss.AdaptiveColor{Light: "#007700", Dark: "#50FA7B"}
	ColorWarning = lipgloss.AdaptiveColor{Light: "#B06800", Dark: "#FFB86C"}
	ColorDanger  = lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"}
	ColorBorder  = lipgloss.AdaptiveColor{Light: "#C9B8B2", Dark: "#44283A"}
)

// ══════════════════════════════════════════════════════════════════════════════
// PANEL AND TEXT STYLES
// ══════════════════════════════════════════════════════════════════════════════

var (
	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, SpaceXS)

	FocusedPanelStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(ColorPrimary).
				Padding(0, SpaceXS)

	HeaderStyle = lipgloss.NewStyle().
			Background(ColorPrimary).
			Foreground(lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#14080F"}).
			Bold(true).
			Padding(0, SpaceXS)

	TabStyle = lipgloss.NewStyle().
			Foreground(ColorSubtext).
			Padding(0, SpaceXS)

	ActiveTabStyle = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true).
			Underline(true).
			Padding(0, SpaceXS)

	FooterStyle = lipgloss.NewStyle().Foreground(ColorMuted)

	BlankStyle = lipgloss.NewStyle().
			Foreground(ColorMuted).
			Underline(true)

	FilledBlankStyle = lipgloss.NewStyle().
				Foreground(ColorPrimary).
				Bold(true).
				Underline(true)

	ChoiceStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(ColorBorder).
			Padding(0, SpaceXS)

	UsedChoiceStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(ColorMuted).
			Foreground(ColorMuted).
			Strikethrough(true).
			Padding(0, SpaceXS)

	ToastStyle = lipgloss.NewStyle().
			Foreground(ColorText).
			Background(ColorBgSubtle).
			Padding(0, SpaceXS)

	ErrorToastStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#14080F"}).
			Background(ColorDanger).
			Padding(0, SpaceXS)
)
