package ui

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"strings"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/ember/pkg/anim"
	"github.com/vanderheijden86/ember/pkg/camera"
	"github.com/vanderheijden86/ember/pkg/config"
	"github.com/vanderheijden86/ember/pkg/debug"
	"github.com/vanderheijden86/ember/pkg/events"
	"github.com/vanderheijden86/ember/pkg/model"
	"github.com/vanderheijden86/ember/pkg/recall"
	"github.com/vanderheijden86/ember/pkg/scene"
	"github.com/vanderheijden86/ember/pkg/store"
	"github.com/vanderheijden86/ember/pkg/watcher"
)

// toastDuration is how long a status message stays in the footer.
const toastDuration = 4 * time.Second

// CacheLoader reads a chat's processed chunks.
type CacheLoader interface {
	LoadCache(ctx context.Context, chat string) ([]model.CacheEntry, error)
}

// frameTickMsg drives animation at the configured frame rate.
type frameTickMsg time.Time

// graphLoadedMsg carries a cache read for rebuilding the graph.
type graphLoadedMsg struct {
	entries []model.CacheEntry
	err     error
}

// bootstrapDoneMsg is sent when recall bootstrap returns.
type bootstrapDoneMsg struct{ err error }

// fetchDoneMsg is sent when a background fetch returns.
type fetchDoneMsg struct {
	res recall.FetchResult
	err error
}

// roundAdvancedMsg is sent after Next or Save.
type roundAdvancedMsg struct {
	adv   recall.Advance
	err   error
	saved bool
}

// clipboardMsg reports a copy to the system clipboard.
type clipboardMsg struct{ err error }

// CacheChangedMsg is sent when the chat's cache directory changed on disk.
type CacheChangedMsg struct{}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return frameTickMsg(t) })
}

func loadGraphCmd(ctx context.Context, cache CacheLoader, chat string) tea.Cmd {
	return func() tea.Msg {
		entries, err := cache.LoadCache(ctx, chat)
		return graphLoadedMsg{entries: entries, err: err}
	}
}

func bootstrapCmd(ctx context.Context, rm *recall.Module) tea.Cmd {
	return func() tea.Msg {
		return bootstrapDoneMsg{err: rm.Bootstrap(ctx)}
	}
}

func fetchCmd(ctx context.Context, rm *recall.Module) tea.Cmd {
	return func() tea.Msg {
		res, err := rm.BackgroundFetch(ctx)
		return fetchDoneMsg{res: res, err: err}
	}
}

func advanceCmd(rm *recall.Module, save bool) tea.Cmd {
	return func() tea.Msg {
		var (
			adv recall.Advance
			err error
		)
		if save {
			adv, err = rm.Save()
		} else {
			adv, err = rm.Next()
		}
		return roundAdvancedMsg{adv: adv, err: err, saved: save}
	}
}

func copyCmd(text string) tea.Cmd {
	return func() tea.Msg {
		return clipboardMsg{err: clipboard.WriteAll(text)}
	}
}

// WatchCacheCmd waits for the watcher to report a settled change.
func WatchCacheCmd(w *watcher.Watcher) tea.Cmd {
	return func() tea.Msg {
		<-w.Changed()
		return CacheChangedMsg{}
	}
}

// notices collects messages published on the bus, possibly from command
// goroutines, until Update drains them.
type notices struct {
	mu            sync.Mutex
	items         []notice
	memoriesDirty bool
}

type notice struct {
	text  string
	isErr bool
}

func (n *notices) push(text string, isErr bool) {
	n.mu.Lock()
	n.items = append(n.items, notice{text: text, isErr: isErr})
	n.mu.Unlock()
}

func (n *notices) drain() ([]notice, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	items, dirty := n.items, n.memoriesDirty
	n.items, n.memoriesDirty = nil, false
	return items, dirty
}

// Deps are the collaborators the UI drives.
type Deps struct {
	Config   config.Config
	Chat     string
	Bus      *events.Bus
	Graph    *store.GraphStore
	Analysis *store.AnalysisStore
	// Recall is nil when the chat has no imported messages to play.
	Recall *recall.Module
	Cache  CacheLoader
	// Watcher is optional; when set the graph reloads on cache changes.
	Watcher *watcher.Watcher
}

// Model is the bubbletea model for the whole application. It is the only
// goroutine that touches the graph store; async results arrive as messages.
type Model struct {
	ctx      context.Context
	cfg      config.Config
	chat     string
	bus      *events.Bus
	graph    *store.GraphStore
	analysis *store.AnalysisStore
	recall   *recall.Module
	cache    CacheLoader
	watcher  *watcher.Watcher
	engine   anim.Engine
	zoom     camera.ZoomAnimation
	now      func() time.Time

	theme    Theme
	sidebar  *Sidebar
	spinner  spinner.Model
	memories viewport.Model
	notices  *notices

	view          model.ViewType
	width, height int
	canvas        *Canvas
	frame         scene.Frame
	sceneColors   map[string]color.RGBA
	graphRoundID  string
	choiceDigits  string
	loading       bool

	toast      string
	toastIsErr bool
	toastUntil time.Time
}

// NewModel wires the UI to its collaborators.
func NewModel(d Deps) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(ColorPrimary)

	view, err := model.ParseViewType(d.Config.UI.DefaultView)
	if err != nil || (view != model.ViewRecall && view != model.ViewMemories) {
		view = model.ViewGraph
	}

	box := &notices{}
	d.Bus.Subscribe(events.PersistenceError, func(e events.Event) {
		if err, ok := e.Payload.(error); ok {
			box.push("Progress not saved: "+err.Error(), true)
		}
	})
	d.Bus.Subscribe(events.MemorySaved, func(e events.Event) {
		box.mu.Lock()
		box.memoriesDirty = true
		box.mu.Unlock()
	})

	m := Model{
		ctx:      context.Background(),
		cfg:      d.Config,
		chat:     d.Chat,
		bus:      d.Bus,
		graph:    d.Graph,
		analysis: d.Analysis,
		recall:   d.Recall,
		cache:    d.Cache,
		watcher:  d.Watcher,
		now:      time.Now,
		theme:    DefaultTheme(lipgloss.DefaultRenderer()),
		sidebar:  NewSidebar(SidebarWidth),
		spinner:  sp,
		memories: viewport.New(0, 0),
		notices:  box,
		view:     model.ViewGraph,
		loading:  d.Cache != nil,
	}
	m.setView(view)
	return m
}

// WithContext sets the context async work runs under.
func (m Model) WithContext(ctx context.Context) Model {
	m.ctx = ctx
	return m
}

// WithTheme replaces the theme, e.g. with one bound to the program's output.
func (m Model) WithTheme(t Theme) Model {
	m.theme = t
	return m
}

// ActiveView returns the top-level view on screen.
func (m Model) ActiveView() model.ViewType { return m.view }

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd(m.cfg.FrameInterval()), m.spinner.Tick}
	if m.cache != nil {
		cmds = append(cmds, loadGraphCmd(m.ctx, m.cache, m.chat))
	}
	if m.recall != nil {
		cmds = append(cmds, bootstrapCmd(m.ctx, m.recall))
	}
	if m.watcher != nil {
		cmds = append(cmds, WatchCacheCmd(m.watcher))
	}
	return tea.Batch(cmds...)
}

func (m *Model) setToast(text string, isErr bool) {
	m.toast = text
	m.toastIsErr = isErr
	m.toastUntil = m.now().Add(toastDuration)
}

// setView switches the top-level view and keeps the graph round in step.
func (m *Model) setView(v model.ViewType) {
	if v == m.view && m.graph.SelectedView() == v {
		return
	}
	m.view = v
	m.graph.SetSelectedView(v)
	m.graphRoundID = ""
	if v == model.ViewRecall {
		m.syncGraphRound()
	}
	if v == model.ViewMemories {
		m.refreshMemories()
	}
	m.rebuildFrame()
}

func (m *Model) nextView(delta int) {
	order := []model.ViewType{model.ViewGraph, model.ViewRecall, model.ViewMemories}
	i := 0
	for j, v := range order {
		if v == m.view {
			i = j
		}
	}
	m.setView(order[((i+delta)%len(order)+len(order))%len(order)])
}

func (m *Model) refreshMemories() {
	if m.analysis == nil {
		return
	}
	m.memories.SetContent(renderMemories(m.theme, m.analysis.Snapshot(), m.width))
}

func (m *Model) resize(w, h int) {
	m.width, m.height = w, h
	m.memories.Width = w
	m.memories.Height = max(h-headerHeight-footerHeight, 1)
	m.refreshMemories()
	m.rebuildFrame()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case frameTickMsg:
		now := time.Time(msg)
		if m.zoom.Active() {
			z, _ := m.zoom.At(now)
			m.graph.SetZoomLevel(z)
		}
		m.engine.Step(m.graph.State())
		m.rebuildFrame()
		if m.toast != "" && now.After(m.toastUntil) {
			m.toast = ""
		}
		cmds = append(cmds, tickCmd(m.cfg.FrameInterval()))

	case graphLoadedMsg:
		m.loading = false
		if msg.err != nil {
			debug.Log("ui: loading graph for %s: %v", m.chat, msg.err)
			m.setToast("Could not load graph: "+msg.err.Error(), true)
			break
		}
		before := m.graph.State().Nodes
		m.graph.LoadGraph(m.chat, msg.entries)
		m.sceneColors = scene.SceneColors(m.graph.Scenes())
		if m.view == model.ViewRecall {
			m.reconcileGraphRound(before)
		}
		m.rebuildFrame()

	case CacheChangedMsg:
		if m.cache != nil {
			cmds = append(cmds, loadGraphCmd(m.ctx, m.cache, m.chat))
		}
		if m.watcher != nil {
			cmds = append(cmds, WatchCacheCmd(m.watcher))
		}

	case bootstrapDoneMsg:
		switch {
		case errors.Is(msg.err, recall.ErrNoPlayableContent):
			m.setToast("No playable scenes in this chat", false)
		case msg.err != nil:
			m.setToast("Recall unavailable: "+msg.err.Error(), true)
		default:
			// Bootstrap may have processed new chunks; prefetch ahead and
			// pick them up on the graph.
			cmds = append(cmds, fetchCmd(m.ctx, m.recall))
			if m.cache != nil {
				cmds = append(cmds, loadGraphCmd(m.ctx, m.cache, m.chat))
			}
		}
		m.syncGraphRound()

	case fetchDoneMsg:
		if msg.err != nil {
			debug.Log("ui: background fetch: %v", msg.err)
			m.setToast("Background fetch failed, will retry", true)
			break
		}
		if msg.res.Added > 0 && m.cache != nil {
			cmds = append(cmds, loadGraphCmd(m.ctx, m.cache, m.chat))
		}
		m.syncGraphRound()

	case roundAdvancedMsg:
		cmds = append(cmds, m.applyAdvance(msg))

	case clipboardMsg:
		if msg.err != nil {
			m.setToast("Clipboard unavailable: "+msg.err.Error(), true)
		} else {
			m.setToast("Sentence copied", false)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case tea.MouseMsg:
		m, _ = m.handleMouse(msg)

	case tea.KeyMsg:
		var cmd tea.Cmd
		var quit bool
		m, cmd, quit = m.handleKey(msg)
		if quit {
			return m, tea.Quit
		}
		cmds = append(cmds, cmd)
	}

	items, dirty := m.notices.drain()
	for _, n := range items {
		m.setToast(n.text, n.isErr)
	}
	if dirty {
		m.refreshMemories()
	}
	return m, tea.Batch(cmds...)
}

// graphKeys are handled by the graph even while the recall card is shown.
var graphKeys = map[string]bool{
	"left": true, "right": true, "up": true, "down": true,
	"+": true, "=": true, "-": true, "_": true, "esc": true,
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, nil, true
	case "tab":
		m.nextView(1)
		return m, nil, false
	case "shift+tab":
		m.nextView(-1)
		return m, nil, false
	}

	var cmd tea.Cmd
	switch m.view {
	case model.ViewGraph:
		m, cmd = m.handleGraphKeys(msg)
	case model.ViewRecall:
		if graphKeys[msg.String()] {
			m, cmd = m.handleGraphKeys(msg)
		} else {
			m, cmd = m.handleRecallKeys(msg)
		}
	case model.ViewMemories:
		m.memories, cmd = m.memories.Update(msg)
	}
	return m, cmd, false
}

func (m Model) renderHeader() string {
	tabs := []struct {
		v    model.ViewType
		name string
	}{
		{model.ViewGraph, "Graph"},
		{model.ViewRecall, "Recall"},
		{model.ViewMemories, "Memories"},
	}
	var parts []string
	parts = append(parts, HeaderStyle.Render("ember"))
	for _, t := range tabs {
		style := TabStyle
		if t.v == m.view {
			style = ActiveTabStyle
		}
		parts = append(parts, style.Render(t.name))
	}
	left := lipgloss.JoinHorizontal(lipgloss.Top, parts...)
	right := m.theme.MutedText.Render(truncate(m.chat, max(m.width-lipgloss.Width(left)-2, 0)))
	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return left + strings.Repeat(" ", gap) + right
}

func (m Model) renderFooter() string {
	if m.toast != "" {
		style := ToastStyle
		if m.toastIsErr {
			style = ErrorToastStyle
		}
		return style.Render(truncate(m.toast, max(m.width-2, 1)))
	}
	var hint string
	switch m.view {
	case model.ViewGraph:
		hint = m.graphStatus() + " · ←↑↓→ pan · +/- zoom · r reset · [ ] enter groups · tab views · q quit"
	case model.ViewRecall:
		hint = m.graphStatus() + " · tab views · q quit"
	case model.ViewMemories:
		hint = fmt.Sprintf("%s · ↑↓ scroll · tab views · q quit", pluralize(m.memoryCount(), "memory"))
	}
	return FooterStyle.Render(truncate(hint, max(m.width, 1)))
}

func (m Model) memoryCount() int {
	if m.analysis == nil {
		return 0
	}
	n := 0
	for _, d := range m.analysis.Dates() {
		n += len(m.analysis.Memories(d))
	}
	return n
}

func (m Model) View() string {
	if m.width == 0 {
		return ""
	}
	var body string
	switch m.view {
	case model.ViewRecall:
		body = m.renderRecallView()
	case model.ViewMemories:
		body = m.memories.View()
	default:
		body = m.renderGraphView()
	}
	bodyHeight := max(m.height-headerHeight-footerHeight, 0)
	body = lipgloss.NewStyle().Height(bodyHeight).MaxHeight(bodyHeight).Render(body)
	return lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), body, m.renderFooter())
}
