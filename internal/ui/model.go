// Package ui renders the workspace with Bubble Tea. The renderer doubles as
// the drag resolver's geometry source: every frame registers the regions it
// drew, and mouse events are resolved against exactly that set.
package ui

import (
	"fmt"
	"log"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/workdeckhq/workdeck/internal/config"
	"github.com/workdeckhq/workdeck/internal/dragdrop"
	"github.com/workdeckhq/workdeck/internal/layout"
	"github.com/workdeckhq/workdeck/internal/sessionhost"
	"github.com/workdeckhq/workdeck/internal/workspace"
)

// Minimum terminal size. Below this the workspace degrades into overlapping
// edge zones, so we refuse to render panes at all.
const (
	minTerminalWidth  = 40
	minTerminalHeight = 10
)

// Chrome heights around the workspace area.
const (
	headerHeight = 1
	footerHeight = 1
)

// errDismissAfter auto-clears transient errors from the footer.
const errDismissAfter = 4 * time.Second

var (
	headerStyle    = lipgloss.NewStyle().Background(lipgloss.Color("235")).Foreground(lipgloss.Color("250"))
	activeEnvStyle = lipgloss.NewStyle().Background(lipgloss.Color("62")).Foreground(lipgloss.Color("229")).Bold(true).Padding(0, 1)
	envStyle       = lipgloss.NewStyle().Background(lipgloss.Color("238")).Foreground(lipgloss.Color("245")).Padding(0, 1)
	footerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
)

// SessionOutputMsg is sent by the session registry's output callback to
// trigger a repaint. The payload stays in the session's replay buffer; the
// message only schedules a frame.
type SessionOutputMsg struct{}

type clearErrMsg struct{}

// pressState tracks a mouse press that has not yet become a drag.
type pressState struct {
	x, y   int
	region *dragdrop.Region
}

// resizeState tracks an in-progress divider drag.
type resizeState struct {
	div divider
}

// Model is the root Bubble Tea model.
type Model struct {
	controller *workspace.Controller
	registry   *sessionhost.Registry
	keys       KeyMap

	width  int
	height int

	// frame holds the geometry of the most recent render.
	frame frame

	press    *pressState
	resizing *resizeState
	pointerX int
	pointerY int
	hover    *dragdrop.Region

	switcher *TabSwitcher

	err     error
	errTime time.Time
}

// NewModel creates the root model over an existing controller and registry.
func NewModel(controller *workspace.Controller, registry *sessionhost.Registry, cfg config.Config) *Model {
	return &Model{
		controller: controller,
		registry:   registry,
		keys:       NewKeyMap(cfg.Keymap),
		switcher:   NewTabSwitcher(),
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeSessions()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case SessionOutputMsg:
		// Repaint only; the content is read from replay buffers in View.
		return m, nil

	case clearErrMsg:
		if time.Since(m.errTime) >= errDismissAfter {
			m.err = nil
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	env := m.controller.ActiveEnvironment()

	if m.switcher.Visible() {
		selected, cmd := m.switcher.Update(msg)
		if selected != nil && env != nil {
			if err := m.controller.ActivateTab(env.ID, selected.TabID); err != nil {
				return m, m.setError(err)
			}
		}
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.NewTab):
		if env == nil {
			return m, nil
		}
		if _, err := m.controller.OpenTab(env.ID, env.ActivePaneID, layout.TabKindTerminal, "shell", ""); err != nil {
			return m, m.setError(err)
		}
		m.resizeSessions()
		return m, nil

	case key.Matches(msg, m.keys.CloseTab):
		if env == nil {
			return m, nil
		}
		pane := env.Tree.FindPane(env.ActivePaneID)
		if pane == nil || pane.ActiveTabID == "" {
			return m, nil
		}
		if err := m.controller.CloseTab(env.ID, pane.ID, pane.ActiveTabID); err != nil {
			return m, m.setError(err)
		}
		m.resizeSessions()
		return m, nil

	case key.Matches(msg, m.keys.NextTab):
		return m, m.cycleTab(env, 1)

	case key.Matches(msg, m.keys.PrevTab):
		return m, m.cycleTab(env, -1)

	case key.Matches(msg, m.keys.NextPane):
		if env != nil {
			m.controller.FocusNextPane(env.ID, 1)
		}
		return m, nil

	case key.Matches(msg, m.keys.PrevPane):
		if env != nil {
			m.controller.FocusNextPane(env.ID, -1)
		}
		return m, nil

	case key.Matches(msg, m.keys.TabSwitcher):
		if env != nil {
			m.switcher.Show(env.Tree)
		}
		return m, nil
	}

	m.forwardKey(env, msg)
	return m, nil
}

// cycleTab activates the tab delta positions away within the focused pane.
func (m *Model) cycleTab(env *workspace.Environment, delta int) tea.Cmd {
	if env == nil {
		return nil
	}
	pane := env.Tree.FindPane(env.ActivePaneID)
	if pane == nil || len(pane.Tabs) < 2 {
		return nil
	}
	cur := 0
	for i, t := range pane.Tabs {
		if t.ID == pane.ActiveTabID {
			cur = i
			break
		}
	}
	next := (cur + delta + len(pane.Tabs)) % len(pane.Tabs)
	if err := m.controller.ActivateTab(env.ID, pane.Tabs[next].ID); err != nil {
		return m.setError(err)
	}
	return nil
}

// forwardKey sends unbound keys to the focused tab's session.
func (m *Model) forwardKey(env *workspace.Environment, msg tea.KeyMsg) {
	if env == nil {
		return
	}
	pane := env.Tree.FindPane(env.ActivePaneID)
	if pane == nil || pane.ActiveTabID == "" {
		return
	}
	rec, ok := m.registry.Lookup(env.ID, pane.ActiveTabID)
	if !ok || rec.Failed() {
		return
	}

	var input []byte
	switch msg.Type {
	case tea.KeyRunes:
		input = []byte(string(msg.Runes))
	case tea.KeyEnter:
		input = []byte("\r")
	case tea.KeyBackspace:
		input = []byte{0x7f}
	case tea.KeyTab:
		input = []byte("\t")
	case tea.KeySpace:
		input = []byte(" ")
	case tea.KeyEsc:
		input = []byte{0x1b}
	case tea.KeyUp:
		input = []byte("\x1b[A")
	case tea.KeyDown:
		input = []byte("\x1b[B")
	case tea.KeyRight:
		input = []byte("\x1b[C")
	case tea.KeyLeft:
		input = []byte("\x1b[D")
	default:
		return
	}
	if _, err := rec.Session.Write(input); err != nil {
		log.Printf("[UI] Session write failed: %v", err)
	}
}

func (m *Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	env := m.controller.ActiveEnvironment()
	if env == nil {
		return m, nil
	}
	m.pointerX, m.pointerY = msg.X, msg.Y

	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft {
			return m, nil
		}
		if div, ok := m.dividerAt(msg.X, msg.Y); ok {
			m.resizing = &resizeState{div: div}
			return m, nil
		}
		m.press = &pressState{x: msg.X, y: msg.Y, region: m.clickRegion(msg.X, msg.Y)}
		return m, nil

	case tea.MouseActionMotion:
		if m.resizing != nil {
			return m, m.applyResize(env, msg.X, msg.Y)
		}
		if m.press != nil && !m.controller.Dragging() {
			// A press on a tab that moves becomes a drag.
			if r := m.press.region; r != nil && r.Kind == dragdrop.TargetTab &&
				(msg.X != m.press.x || msg.Y != m.press.y) {
				m.controller.BeginDrag(r.TabID, r.PaneID, r.TabIndex)
			}
		}
		if m.controller.Dragging() {
			if target, ok := m.controller.DragTick(m.snapshot()); ok {
				m.hover = &target
			} else {
				m.hover = nil
			}
		}
		return m, nil

	case tea.MouseActionRelease:
		defer func() { m.press = nil; m.hover = nil }()
		if m.resizing != nil {
			m.controller.EndResize(env.ID)
			m.resizing = nil
			m.resizeSessions()
			return m, nil
		}
		if m.controller.Dragging() {
			if err := m.controller.CompleteDrag(env.ID, m.snapshot()); err != nil {
				return m, m.setError(err)
			}
			m.resizeSessions()
			return m, nil
		}
		if m.press != nil && m.press.region != nil {
			m.handleClick(env, *m.press.region)
		}
		return m, nil
	}
	return m, nil
}

// handleClick activates whatever a plain click landed on.
func (m *Model) handleClick(env *workspace.Environment, r dragdrop.Region) {
	switch r.Kind {
	case dragdrop.TargetTab:
		if err := m.controller.ActivateTab(env.ID, r.TabID); err != nil {
			log.Printf("[UI] Activate tab failed: %v", err)
		}
	case dragdrop.TargetStrip, dragdrop.TargetEdge:
		_ = m.controller.SetActivePane(env.ID, r.PaneID)
	}
}

// applyResize maps the pointer position to a size ratio for the grabbed
// divider.
func (m *Model) applyResize(env *workspace.Environment, x, y int) tea.Cmd {
	div := m.resizing.div
	var frac float64
	if div.Direction == layout.DirectionRow {
		if div.Area.W <= 1 {
			return nil
		}
		frac = float64(x-div.Area.X) / float64(div.Area.W-1) * 100
	} else {
		if div.Area.H <= 1 {
			return nil
		}
		frac = float64(y-div.Area.Y) / float64(div.Area.H-1) * 100
	}
	if frac < 0 {
		frac = 0
	}
	if frac > 100 {
		frac = 100
	}
	if err := m.controller.ResizeSplit(env.ID, div.SplitID, [2]float64{frac, 100 - frac}); err != nil {
		return m.setError(err)
	}
	return nil
}

// snapshot packages the current pointer state with the last frame's geometry.
func (m *Model) snapshot() dragdrop.Snapshot {
	return dragdrop.Snapshot{
		PointerX: m.pointerX,
		PointerY: m.pointerY,
		Ghost:    dragdrop.Rect{X: m.pointerX - 4, Y: m.pointerY, W: 8, H: 1},
		Regions:  m.frame.regions,
	}
}

// clickRegion finds the most specific region containing the point, tabs
// before strips before edges. Unlike drag resolution there is no fallback: a
// click in dead space selects nothing.
func (m *Model) clickRegion(x, y int) *dragdrop.Region {
	var best *dragdrop.Region
	for i := range m.frame.regions {
		r := &m.frame.regions[i]
		if !r.Bounds.Contains(x, y) {
			continue
		}
		if best == nil || regionRank(r.Kind) < regionRank(best.Kind) {
			best = r
		}
	}
	return best
}

func regionRank(k dragdrop.TargetKind) int {
	switch k {
	case dragdrop.TargetTab:
		return 0
	case dragdrop.TargetStrip:
		return 1
	default:
		return 2
	}
}

func (m *Model) dividerAt(x, y int) (divider, bool) {
	for _, d := range m.frame.dividers {
		if d.Bounds.Contains(x, y) {
			return d, true
		}
	}
	return divider{}, false
}

func (m *Model) draggingTabID() string {
	return m.controller.DraggingTab()
}

func (m *Model) setError(err error) tea.Cmd {
	m.err = err
	m.errTime = time.Now()
	return tea.Tick(errDismissAfter, func(time.Time) tea.Msg { return clearErrMsg{} })
}

// resizeSessions pushes each pane's body size down to its tabs' sessions.
func (m *Model) resizeSessions() {
	env := m.controller.ActiveEnvironment()
	if env == nil || m.width < minTerminalWidth || m.height < minTerminalHeight {
		return
	}
	area := dragdrop.Rect{X: 0, Y: headerHeight, W: m.width, H: m.height - headerHeight - footerHeight}
	for paneID, rect := range paneRects(env.Tree, area) {
		pane := env.Tree.FindPane(paneID)
		if pane == nil {
			continue
		}
		for _, tab := range pane.Tabs {
			rec, ok := m.registry.Lookup(env.ID, tab.ID)
			if !ok || rec.Failed() {
				continue
			}
			if err := rec.Session.Resize(rect.W, rect.H-tabStripHeight); err != nil {
				log.Printf("[UI] Session resize failed for tab %s: %v", tab.ID, err)
			}
		}
	}
}

// paneRects computes each leaf's rectangle without rendering.
func paneRects(n *layout.Node, rect dragdrop.Rect) map[string]dragdrop.Rect {
	out := make(map[string]dragdrop.Rect)
	collectPaneRects(n, rect, out)
	return out
}

func collectPaneRects(n *layout.Node, rect dragdrop.Rect, out map[string]dragdrop.Rect) {
	if n.IsLeaf() {
		out[n.ID] = rect
		return
	}
	first, second := splitRects(n, rect)
	collectPaneRects(n.Children[0], first, out)
	collectPaneRects(n.Children[1], second, out)
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	if m.width < minTerminalWidth || m.height < minTerminalHeight {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
			fmt.Sprintf("terminal too small (min %dx%d)", minTerminalWidth, minTerminalHeight))
	}

	header := m.renderHeader()
	footer := m.renderFooter()

	contentH := m.height - headerHeight - footerHeight
	var content string
	env := m.controller.ActiveEnvironment()
	switch {
	case env == nil:
		content = lipgloss.Place(m.width, contentH, lipgloss.Center, lipgloss.Center,
			placeholderStyle.Render("no environment"))
	case m.switcher.Visible():
		content = lipgloss.Place(m.width, contentH, lipgloss.Center, lipgloss.Center,
			m.switcher.View(m.width))
	default:
		m.frame = frame{}
		content = m.renderTree(env.Tree, dragdrop.Rect{X: 0, Y: headerHeight, W: m.width, H: contentH}, &m.frame)
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, content, footer)
}

func (m *Model) renderHeader() string {
	active := m.controller.ActiveEnvironment()
	var parts []string
	for _, env := range m.controller.Environments() {
		style := envStyle
		if active != nil && env.ID == active.ID {
			style = activeEnvStyle
		}
		parts = append(parts, style.Render(env.Name))
	}
	bar := lipgloss.JoinHorizontal(lipgloss.Top, parts...)
	return headerStyle.Width(m.width).MaxWidth(m.width).Render(bar)
}

func (m *Model) renderFooter() string {
	if m.err != nil {
		return errStyle.Width(m.width).MaxWidth(m.width).Render(" " + m.err.Error())
	}
	if m.controller.Dragging() {
		hint := "drop on a tab, strip or pane edge — release elsewhere to cancel"
		if m.hover != nil {
			switch m.hover.Kind {
			case dragdrop.TargetTab, dragdrop.TargetStrip:
				hint = "drop: move into this strip"
			case dragdrop.TargetEdge:
				hint = fmt.Sprintf("drop: split %s", m.hover.Edge)
			}
		}
		return footerStyle.Width(m.width).MaxWidth(m.width).Render(" " + m.dragGhost() + " " + hint)
	}
	help := fmt.Sprintf(" %s new · %s close · %s switch · %s quit",
		m.keys.NewTab.Help().Key, m.keys.CloseTab.Help().Key,
		m.keys.TabSwitcher.Help().Key, m.keys.Quit.Help().Key)
	return footerStyle.Width(m.width).MaxWidth(m.width).Render(help)
}
