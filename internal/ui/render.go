package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"

	"github.com/workdeckhq/workdeck/internal/dragdrop"
	"github.com/workdeckhq/workdeck/internal/layout"
	"github.com/workdeckhq/workdeck/internal/term"
)

// Geometry constants for the pane renderer. Edge drop zones are narrow bands
// just inside each pane border; keeping them small is what makes the
// strip-over-edge priority rule feel right in practice.
const (
	tabStripHeight   = 1
	edgeZoneCells    = 2
	maxTabLabelWidth = 20
	// minEdgeBodyWidth/Height gate edge zone registration: a pane too small
	// to meaningfully split should not offer split targets.
	minEdgeBodyWidth  = 8
	minEdgeBodyHeight = 4
)

var (
	stripStyle       = lipgloss.NewStyle().Background(lipgloss.Color("236")).Foreground(lipgloss.Color("250"))
	activeTabStyle   = lipgloss.NewStyle().Background(lipgloss.Color("62")).Foreground(lipgloss.Color("229")).Bold(true)
	inactiveTabStyle = lipgloss.NewStyle().Background(lipgloss.Color("238")).Foreground(lipgloss.Color("245"))
	dividerStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	placeholderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true)
	dropHintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
)

// divider records where a split's resize handle landed this frame, so mouse
// drags on it can be mapped back to the split.
type divider struct {
	SplitID   string
	Direction layout.Direction
	Bounds    dragdrop.Rect
	// Area is the whole split's rectangle, used to turn a pointer position
	// into a size ratio.
	Area dragdrop.Rect
}

// frame accumulates the hit-test geometry produced while rendering one frame.
// The drag resolver consumes exactly what was drawn, so targets can never
// drift from pixels.
type frame struct {
	regions  []dragdrop.Region
	dividers []divider
}

// renderTree draws the layout tree into rect and registers drop regions and
// dividers along the way.
func (m *Model) renderTree(n *layout.Node, rect dragdrop.Rect, f *frame) string {
	if n.IsLeaf() {
		return m.renderPane(n, rect, f)
	}

	first, second := splitRects(n, rect)
	if n.Direction == layout.DirectionRow {
		div := dragdrop.Rect{X: first.X + first.W, Y: rect.Y, W: 1, H: rect.H}
		f.dividers = append(f.dividers, divider{SplitID: n.ID, Direction: n.Direction, Bounds: div, Area: rect})
		left := m.renderTree(n.Children[0], first, f)
		right := m.renderTree(n.Children[1], second, f)
		bar := dividerStyle.Render(strings.TrimRight(strings.Repeat("│\n", rect.H), "\n"))
		return lipgloss.JoinHorizontal(lipgloss.Top, left, bar, right)
	}

	div := dragdrop.Rect{X: rect.X, Y: first.Y + first.H, W: rect.W, H: 1}
	f.dividers = append(f.dividers, divider{SplitID: n.ID, Direction: n.Direction, Bounds: div, Area: rect})
	top := m.renderTree(n.Children[0], first, f)
	bottom := m.renderTree(n.Children[1], second, f)
	bar := dividerStyle.Render(strings.Repeat("─", rect.W))
	return lipgloss.JoinVertical(lipgloss.Left, top, bar, bottom)
}

// splitRects carves rect into the two child rectangles, leaving one cell for
// the divider.
func splitRects(n *layout.Node, rect dragdrop.Rect) (dragdrop.Rect, dragdrop.Rect) {
	if n.Direction == layout.DirectionRow {
		avail := rect.W - 1
		firstW := int(float64(avail) * n.Sizes[0] / 100)
		if firstW < 1 {
			firstW = 1
		}
		if firstW > avail-1 {
			firstW = avail - 1
		}
		first := dragdrop.Rect{X: rect.X, Y: rect.Y, W: firstW, H: rect.H}
		second := dragdrop.Rect{X: rect.X + firstW + 1, Y: rect.Y, W: avail - firstW, H: rect.H}
		return first, second
	}
	avail := rect.H - 1
	firstH := int(float64(avail) * n.Sizes[0] / 100)
	if firstH < 1 {
		firstH = 1
	}
	if firstH > avail-1 {
		firstH = avail - 1
	}
	first := dragdrop.Rect{X: rect.X, Y: rect.Y, W: rect.W, H: firstH}
	second := dragdrop.Rect{X: rect.X, Y: rect.Y + firstH + 1, W: rect.W, H: avail - firstH}
	return first, second
}

// renderPane draws one leaf: tab strip on top, active tab's content below.
func (m *Model) renderPane(n *layout.Node, rect dragdrop.Rect, f *frame) string {
	env := m.controller.ActiveEnvironment()
	isActivePane := env != nil && env.ActivePaneID == n.ID

	strip := m.renderStrip(n, rect, isActivePane, f)
	body := m.renderBody(n, rect)

	bodyRect := dragdrop.Rect{X: rect.X, Y: rect.Y + tabStripHeight, W: rect.W, H: rect.H - tabStripHeight}
	registerEdgeZones(n.ID, bodyRect, f)

	return lipgloss.JoinVertical(lipgloss.Left, strip, body)
}

// renderStrip draws the tab labels and registers a hit region per tab plus
// one for the remaining strip space.
func (m *Model) renderStrip(n *layout.Node, rect dragdrop.Rect, isActivePane bool, f *frame) string {
	var b strings.Builder
	x := rect.X
	for i, tab := range n.Tabs {
		if m.draggingTabID() == tab.ID {
			// The dragged tab renders as a ghost under the pointer instead.
			continue
		}
		label := " " + truncateTitle(tab.Title, maxTabLabelWidth) + " "
		w := runewidth.StringWidth(label)
		if x+w > rect.X+rect.W {
			break
		}
		style := inactiveTabStyle
		if tab.ID == n.ActiveTabID {
			style = activeTabStyle
			if !isActivePane {
				style = style.Faint(true)
			}
		}
		b.WriteString(style.Render(label))
		f.regions = append(f.regions, dragdrop.Region{
			Kind: dragdrop.TargetTab, PaneID: n.ID,
			TabID: tab.ID, TabIndex: i,
			Bounds: dragdrop.Rect{X: x, Y: rect.Y, W: w, H: tabStripHeight},
		})
		x += w
	}
	if rest := rect.X + rect.W - x; rest > 0 {
		f.regions = append(f.regions, dragdrop.Region{
			Kind: dragdrop.TargetStrip, PaneID: n.ID, TabCount: len(n.Tabs),
			Bounds: dragdrop.Rect{X: x, Y: rect.Y, W: rest, H: tabStripHeight},
		})
	}
	return stripStyle.Width(rect.W).MaxWidth(rect.W).Render(b.String())
}

// registerEdgeZones adds the four split drop bands inside the pane body.
func registerEdgeZones(paneID string, body dragdrop.Rect, f *frame) {
	if body.W < minEdgeBodyWidth || body.H < minEdgeBodyHeight {
		return
	}
	zones := []struct {
		edge   layout.Edge
		bounds dragdrop.Rect
	}{
		{layout.EdgeLeft, dragdrop.Rect{X: body.X, Y: body.Y, W: edgeZoneCells, H: body.H}},
		{layout.EdgeRight, dragdrop.Rect{X: body.X + body.W - edgeZoneCells, Y: body.Y, W: edgeZoneCells, H: body.H}},
		{layout.EdgeTop, dragdrop.Rect{X: body.X, Y: body.Y, W: body.W, H: 1}},
		{layout.EdgeBottom, dragdrop.Rect{X: body.X, Y: body.Y + body.H - 1, W: body.W, H: 1}},
	}
	for _, z := range zones {
		f.regions = append(f.regions, dragdrop.Region{
			Kind: dragdrop.TargetEdge, PaneID: paneID, Edge: z.edge, Bounds: z.bounds,
		})
	}
}

// renderBody draws the active tab's content area.
func (m *Model) renderBody(n *layout.Node, rect dragdrop.Rect) string {
	h := rect.H - tabStripHeight
	if h < 1 {
		h = 1
	}
	if len(n.Tabs) == 0 {
		hint := placeholderStyle.Render("no open tabs — " + m.keys.NewTab.Help().Key + " opens one")
		return lipgloss.Place(rect.W, h, lipgloss.Center, lipgloss.Center, hint)
	}

	tab, ok := n.TabByID(n.ActiveTabID)
	if !ok {
		return lipgloss.Place(rect.W, h, lipgloss.Center, lipgloss.Center, "")
	}
	content := m.tabContent(tab, rect.W, h)
	return lipgloss.NewStyle().Width(rect.W).MaxWidth(rect.W).Height(h).MaxHeight(h).Render(content)
}

// tabContent produces the visible text for one tab: session replay output
// for session-backed tabs, a static placeholder otherwise.
func (m *Model) tabContent(tab layout.Tab, width, height int) string {
	env := m.controller.ActiveEnvironment()
	if env == nil {
		return ""
	}
	if !tab.Kind.SessionBacked() {
		return placeholderStyle.Render(" " + tab.Payload)
	}

	rec, ok := m.registry.Lookup(env.ID, tab.ID)
	if !ok {
		return placeholderStyle.Render(" starting…")
	}
	if rec.Failed() {
		return dropHintStyle.Render(" session failed: " + rec.Err.Error())
	}
	sess, isPty := rec.Session.(*term.Session)
	if !isPty {
		return ""
	}
	text := ansi.Strip(string(sess.Replay()))
	lines := lastLines(text, height)
	for i, line := range lines {
		lines[i] = runewidth.Truncate(line, width, "")
	}
	return strings.Join(lines, "\n")
}

// dragGhost renders the dragged tab's floating label.
func (m *Model) dragGhost() string {
	env := m.controller.ActiveEnvironment()
	if env == nil {
		return ""
	}
	tab, ok := env.Tree.TabByID(m.draggingTabID())
	if !ok {
		return ""
	}
	return dropHintStyle.Render(" " + truncateTitle(tab.Title, maxTabLabelWidth) + " ")
}

func truncateTitle(s string, max int) string {
	return runewidth.Truncate(s, max, "…")
}

// lastLines returns the trailing n lines of text, dropping a trailing newline
// first so shells that end output with one do not waste a row.
func lastLines(text string, n int) []string {
	text = strings.TrimRight(text, "\n")
	lines := strings.Split(text, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}
