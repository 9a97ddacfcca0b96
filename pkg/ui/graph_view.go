package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/ember/pkg/camera"
	"github.com/vanderheijden86/ember/pkg/model"
	"github.com/vanderheijden86/ember/pkg/scene"
)

// panStepPx is how far one arrow key press pans the view, in canvas pixels.
const panStepPx = 4 * CellWidth

// zoomTarget is where zoom is heading, so repeated key presses compound.
func (m Model) zoomTarget() float64 {
	if m.zoom.Active() {
		return m.zoom.Target()
	}
	return m.graph.State().ZoomLevel
}

func (m *Model) startZoom(target float64) {
	m.zoom.Start(m.graph.State().ZoomLevel, target, m.now())
}

// cycleSelection moves the selection through drawn nodes in draw order.
func (m *Model) cycleSelection(delta int) {
	state := m.graph.State()
	var ids []string
	for _, id := range state.SortedIDs() {
		if state.FilterMode != model.FilterUnlockedOnly || state.Game.IsPending(id) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return
	}
	next := 0
	if delta < 0 {
		next = len(ids) - 1
	}
	for i, id := range ids {
		if id == state.SelectedNode {
			next = ((i+delta)%len(ids) + len(ids)) % len(ids)
			break
		}
	}
	m.graph.SelectGraphNode(ids[next])
}

func (m Model) handleGraphKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "left", "h":
		m.graph.Pan(panStepPx, 0)
	case "right", "l":
		m.graph.Pan(-panStepPx, 0)
	case "up", "k":
		m.graph.Pan(0, panStepPx)
	case "down", "j":
		m.graph.Pan(0, -panStepPx)
	case "+", "=":
		m.startZoom(m.zoomTarget() * camera.ZoomStep)
	case "-", "_":
		m.startZoom(m.zoomTarget() / camera.ZoomStep)
	case "r":
		m.zoom.Cancel()
		m.graph.ResetGraphView()
	case "esc":
		m.graph.ClickBackground()
	case "n":
		m.cycleSelection(1)
	case "p":
		m.cycleSelection(-1)
	case "]":
		m.sidebar.MoveCursor(1, len(m.graph.GroupNodesByLabel()))
	case "[":
		m.sidebar.MoveCursor(-1, len(m.graph.GroupNodesByLabel()))
	case "enter", " ":
		if label := m.sidebar.CursorLabel(m.graph.GroupNodesByLabel()); label != "" {
			m.graph.ToggleLabelExpansion(label)
		}
	}
	return m, nil
}

// handleMouse maps terminal mouse events onto the canvas.
func (m Model) handleMouse(msg tea.MouseMsg) (Model, tea.Cmd) {
	if m.canvas == nil || (m.view != model.ViewGraph && m.view != model.ViewRecall) {
		return m, nil
	}
	cols, rows := m.canvas.Size()
	col, row := msg.X, msg.Y-headerHeight
	if col < 0 || row < 0 || col >= cols || row >= rows {
		return m, nil
	}

	switch {
	case msg.Button == tea.MouseButtonWheelUp:
		m.startZoom(m.zoomTarget() * camera.WheelZoomIn)
	case msg.Button == tea.MouseButtonWheelDown:
		m.startZoom(m.zoomTarget() * camera.WheelZoomOut)
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		m.clickNode(HitCell(m.frame, col, row))
	case msg.Action == tea.MouseActionMotion:
		m.graph.SetHoveredNode(HitCell(m.frame, col, row))
	}
	return m, nil
}

// clickNode is a click on a node, or on the background when id is "".
func (m *Model) clickNode(id string) {
	if id == "" {
		m.graph.ClickBackground()
		return
	}
	pending := m.graph.State().Game.IsPending(id)
	m.graph.ClickNode(id)
	if pending && m.view == model.ViewRecall {
		m.assignByNode(id)
	}
}

// canvasSize is the cell area left for the graph in the current view.
func (m Model) canvasSize() (cols, rows int) {
	body := m.height - headerHeight - footerHeight
	switch m.view {
	case model.ViewGraph:
		cols = m.width
		if m.showSidebar() {
			cols -= SidebarWidth
		}
		rows = body
	case model.ViewRecall:
		cols = m.width
		rows = body - recallCardHeight
	default:
		return 0, 0
	}
	if cols < MinCanvasWidth || rows < MinCanvasHeight {
		return 0, 0
	}
	return cols, rows
}

func (m Model) showSidebar() bool {
	return m.width >= SidebarWidth+MinCanvasWidth*2
}

// rebuildFrame projects the current state onto a fresh canvas.
func (m *Model) rebuildFrame() {
	cols, rows := m.canvasSize()
	if cols == 0 {
		m.canvas = nil
		m.frame = scene.Frame{}
		return
	}
	c := NewCanvas(cols, rows)
	cam := c.Camera(m.graph.State(), m.cfg.UI.FrustumSize)
	m.frame = scene.Build(m.graph.State(), m.graph.Scenes(), cam, scene.Options{
		RecallActive: m.view == model.ViewRecall,
		SceneColors:  m.sceneColors,
	})
	c.Paint(m.frame)
	m.canvas = c
}

// graphStatus is the footer line for the graph views.
func (m Model) graphStatus() string {
	st := m.graph.Stats()
	state := m.graph.State()
	parts := fmt.Sprintf("%s · %s · zoom %.2f", pluralize(st.Nodes, "node"), pluralize(st.Edges, "edge"), state.ZoomLevel)
	if st.Hub != "" {
		parts += fmt.Sprintf(" · hub %s (%d)", st.Hub, st.HubDegree)
	}
	if sel := state.Selected(); sel != nil {
		parts += fmt.Sprintf(" · %s [%s] %s", sel.ID, sel.Label, pluralize(sel.Degree(), "link"))
	}
	return parts
}

func (m Model) renderGraphView() string {
	bodyHeight := m.height - headerHeight - footerHeight
	var canvas string
	if m.canvas != nil {
		canvas = m.canvas.Render(m.theme)
	} else {
		canvas = m.theme.MutedText.Render("Window too small for the graph.")
	}
	if st := m.graph.Stats(); st.Nodes == 0 && m.canvas != nil {
		cols, rows := m.canvas.Size()
		msg := "No entities yet."
		if m.loading {
			msg = m.spinner.View() + " Loading graph…"
		}
		canvas = lipgloss.Place(cols, rows, lipgloss.Center, lipgloss.Center, msg)
	}
	if !m.showSidebar() {
		return canvas
	}
	side := m.sidebar.View(m.graph.GroupNodesByLabel(), m.graph.State(), m.graph.IsUnlocked, bodyHeight)
	side = lipgloss.NewStyle().Width(SidebarWidth).MaxHeight(bodyHeight).Render(side)
	return lipgloss.JoinHorizontal(lipgloss.Top, canvas, side)
}

func (m Model) renderRecallView() string {
	var canvas string
	if m.canvas != nil {
		canvas = m.canvas.Render(m.theme)
	}
	var card string
	if m.recall != nil {
		card = renderRecallCard(m.theme, m.recall.Snapshot(), m.spinner.View(), m.width)
	} else {
		card = renderGraphGame(m.theme, m.graph.State().Game, m.width)
	}
	if canvas == "" {
		return card
	}
	return lipgloss.JoinVertical(lipgloss.Left, canvas, card)
}
