package ui

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/ember/pkg/debug"
	"github.com/vanderheijden86/ember/pkg/model"
	"github.com/vanderheijden86/ember/pkg/recall"
)

// recallCardHeight is the number of rows the round card takes below the
// graph canvas.
const recallCardHeight = 9

const blankPlaceholder = "_____"

// renderSentence draws template with each blank shown as its assignment or
// a placeholder.
func renderSentence(template string, assigned []string) string {
	parts := strings.Split(template, model.BlankMarker)
	var b strings.Builder
	for i, p := range parts {
		b.WriteString(p)
		if i == len(parts)-1 {
			break
		}
		if i < len(assigned) && assigned[i] != "" {
			b.WriteString(FilledBlankStyle.Render(assigned[i]))
		} else {
			b.WriteString(BlankStyle.Render(blankPlaceholder))
		}
	}
	return b.String()
}

// renderChoices lays out the numbered entity buttons.
func renderChoices(choices []recall.Choice, width int) string {
	if len(choices) == 0 {
		return ""
	}
	var row []string
	var rows []string
	used := 0
	for _, c := range choices {
		label := fmt.Sprintf("%d %s", c.Index+1, c.Text)
		style := ChoiceStyle
		if c.Used {
			style = UsedChoiceStyle
		}
		btn := style.Render(label)
		w := lipgloss.Width(btn)
		if used > 0 && used+w > width {
			rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
			row, used = nil, 0
		}
		row = append(row, btn)
		used += w
	}
	rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// renderRecallCard draws the round card for a module snapshot.
func renderRecallCard(t Theme, snap recall.Snapshot, spin string, width int) string {
	inner := max(width-4, 10)
	var body string
	switch snap.Phase {
	case recall.PhaseIdle, recall.PhaseBootstrapping:
		body = spin + " Preparing recall rounds…"
	case recall.PhaseFailed:
		msg := "Could not prepare rounds"
		if snap.Err != nil {
			msg = snap.Err.Error()
		}
		body = lipgloss.NewStyle().Foreground(ColorDanger).Render(truncate(msg, inner)) +
			"\n" + t.MutedText.Render("R retry")
	case recall.PhaseEmpty:
		body = t.MutedText.Render("No playable scenes in this chat yet.")
	case recall.PhaseExhausted:
		body = t.Title.Render("Every round has been played.") +
			"\n" + t.MutedText.Render(fmt.Sprintf("%s completed", pluralize(snap.Completed, "round")))
	default:
		header := t.Title.Render(fmt.Sprintf("Round %d of %d", snap.Index+1, snap.Total))
		if snap.Round.Date != "" {
			header += t.MutedText.Render("  " + FormatDateKey(snap.Round.Date))
		}
		if snap.Fetching {
			header += "  " + spin
		}
		sentence := lipgloss.NewStyle().Width(inner).Render(renderSentence(snap.Round.Template, snap.Assignments))
		hint := "number fills a blank · press again or ⌫ to clear"
		if len(snap.Choices) >= 10 {
			hint = "number fills a blank, enter confirms a short one · ⌫ clears"
		}
		if snap.Phase == recall.PhaseComplete {
			hint = "s save memory · n next · c copy · ⌫ undo"
		}
		body = lipgloss.JoinVertical(lipgloss.Left,
			header,
			"",
			sentence,
			"",
			renderChoices(snap.Choices, inner),
			t.MutedText.Render(hint),
		)
	}
	return PanelStyle.Width(width - 2).Render(body)
}

// renderGraphGame draws the card for a graph-only round, used when the chat
// has no recall rounds to play.
func renderGraphGame(t Theme, g model.GameState, width int) string {
	var body string
	switch {
	case g.Active:
		body = t.PendingDot.Render(fmt.Sprintf("Find %s on the graph.", pluralize(len(g.ChunkIDs), "hidden node"))) +
			"\n" + t.MutedText.Render("click a green node to reveal it")
	default:
		body = t.Title.Render("All found.") + "\n" + t.MutedText.Render("g new round")
	}
	return PanelStyle.Width(width - 2).Render(body)
}

// recallActive reports whether the recall module has a round on screen.
func (m Model) recallActive() bool {
	return m.recall != nil && m.recall.Snapshot().HasRound
}

// syncGraphRound starts a graph round over the current recall round's
// entities whenever the round changes. Entities missing from the graph are
// skipped; a round with none still starts so revealed labels show.
func (m *Model) syncGraphRound() {
	if m.view != model.ViewRecall {
		return
	}
	if m.recall == nil {
		if m.graphRoundID == "" {
			m.graphRoundID = "graph"
			m.graph.StartRecallRound(nil)
		}
		return
	}
	snap := m.recall.Snapshot()
	if !snap.HasRound {
		return
	}
	if snap.Round.ID == m.graphRoundID {
		return
	}
	m.graphRoundID = snap.Round.ID
	nodes := m.graph.State().Nodes
	ids := []string{}
	seen := make(map[string]bool)
	for _, e := range snap.Round.Entities {
		id := strings.TrimSpace(e.ID)
		if _, ok := nodes[id]; ok && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	debug.Log("ui: graph round %s over %d nodes", snap.Round.ID, len(ids))
	m.graph.StartRecallRound(ids)
}

// assignChoice fills the next blank with choice i, or clears the blank it
// already fills. Filling a choice also reveals its node on the graph.
func (m *Model) assignChoice(i int) {
	if m.recall == nil {
		return
	}
	snap := m.recall.Snapshot()
	if i < 0 || i >= len(snap.Choices) {
		return
	}
	c := snap.Choices[i]
	if c.Used {
		m.recall.ClearSlot(c.Slot)
		return
	}
	if m.recall.AssignEntity(i) {
		m.graph.HandleRecallNodeSelected(strings.TrimSpace(c.Text))
	}
}

// typeChoiceDigit handles a digit key. Rounds with ten or more choices take
// multi-digit numbers: a prefix that could still grow waits for the next
// digit or enter.
func (m *Model) typeChoiceDigit(d string) {
	n := 0
	if m.recall != nil {
		n = len(m.recall.Choices())
	}
	typed := m.choiceDigits + d
	v, _ := strconv.Atoi(typed)
	if v < 1 || v > n {
		m.choiceDigits = ""
		if typed == d {
			return
		}
		m.typeChoiceDigit(d)
		return
	}
	if v*10 <= n {
		m.choiceDigits = typed
		return
	}
	m.choiceDigits = ""
	m.assignChoice(v - 1)
}

// commitChoiceDigits assigns a pending multi-digit prefix. It reports false
// when nothing was pending.
func (m *Model) commitChoiceDigits() bool {
	if m.choiceDigits == "" {
		return false
	}
	v, _ := strconv.Atoi(m.choiceDigits)
	m.choiceDigits = ""
	m.assignChoice(v - 1)
	return true
}

// reconcileGraphRound keeps the graph round in step with the recall round
// after the graph was rebuilt from before. The store has already carried
// the pending nodes over; entities that only now appear on the graph and
// are not filled yet join them.
func (m *Model) reconcileGraphRound(before map[string]*model.GraphNode) {
	if m.recall == nil || m.graphRoundID == "" {
		m.syncGraphRound()
		return
	}
	snap := m.recall.Snapshot()
	if !snap.HasRound || snap.Round.ID != m.graphRoundID {
		m.syncGraphRound()
		return
	}
	filled := make(map[string]bool, len(snap.Assignments))
	for _, a := range snap.Assignments {
		filled[strings.TrimSpace(a)] = true
	}
	game := m.graph.State().Game
	nodes := m.graph.State().Nodes
	ids := append([]string(nil), game.ChunkIDs...)
	for _, e := range snap.Round.Entities {
		id := strings.TrimSpace(e.ID)
		_, now := nodes[id]
		_, was := before[id]
		if !now || was || filled[id] || slices.Contains(ids, id) {
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) > len(game.ChunkIDs) {
		debug.Log("ui: graph round %s gained %d nodes on reload", snap.Round.ID, len(ids)-len(game.ChunkIDs))
		m.graph.StartRecallRound(ids)
	}
}

// clearLastSlot empties the last filled blank.
func (m *Model) clearLastSlot() {
	if m.recall == nil {
		return
	}
	assigned := m.recall.Assignments()
	for slot := len(assigned) - 1; slot >= 0; slot-- {
		if assigned[slot] != "" {
			m.recall.ClearSlot(slot)
			return
		}
	}
}

// assignByNode fills the blank matching a clicked node, if any.
func (m *Model) assignByNode(id string) {
	if m.recall == nil || id == "" {
		return
	}
	for _, c := range m.recall.Choices() {
		if strings.TrimSpace(c.Text) == id && !c.Used {
			m.recall.AssignEntity(c.Index)
			return
		}
	}
}

func (m Model) handleRecallKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	key := msg.String()
	if len(key) == 1 && key[0] >= '0' && key[0] <= '9' {
		m.typeChoiceDigit(key)
		return m, nil
	}
	if key == "enter" && m.commitChoiceDigits() {
		return m, nil
	}
	m.choiceDigits = ""
	switch key {
	case "backspace", "delete":
		m.clearLastSlot()
	case "n":
		if m.recall != nil {
			return m, advanceCmd(m.recall, false)
		}
	case "s":
		if m.recall != nil {
			return m, advanceCmd(m.recall, true)
		}
	case "c":
		if m.recall != nil && m.recall.IsComplete() {
			return m, copyCmd(m.recall.Sentence())
		}
		m.setToast("Fill every blank before copying", true)
	case "R":
		if m.recall != nil && m.recall.Snapshot().Phase == recall.PhaseFailed {
			return m, bootstrapCmd(m.ctx, m.recall)
		}
	case "g":
		if !m.recallActive() {
			m.graphRoundID = "graph"
			m.graph.StartRecallRound(nil)
		}
	}
	return m, nil
}

// applyAdvance reacts to Next or Save finishing.
func (m *Model) applyAdvance(msg roundAdvancedMsg) tea.Cmd {
	if msg.err != nil {
		switch {
		case errors.Is(msg.err, recall.ErrRoundIncomplete):
			m.setToast("Fill every blank first", true)
		case errors.Is(msg.err, recall.ErrNoActiveRound):
			m.setToast("No round to finish", true)
		default:
			m.setToast(msg.err.Error(), true)
		}
		return nil
	}

	m.graph.UnlockEntities(msg.adv.Recalled)
	var cmds []tea.Cmd
	switch {
	case msg.adv.PersistErr != nil:
		m.setToast("Progress not saved: "+msg.adv.PersistErr.Error(), true)
	case msg.saved:
		m.setToast("Memory saved", false)
	}
	if msg.adv.TriggerFetch {
		cmds = append(cmds, fetchCmd(m.ctx, m.recall))
	}
	if msg.adv.Exhausted {
		m.setToast("Every round has been played", false)
		m.setView(model.ViewGraph)
		return tea.Batch(cmds...)
	}
	m.syncGraphRound()
	return tea.Batch(cmds...)
}
