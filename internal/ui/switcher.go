package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"github.com/workdeckhq/workdeck/internal/layout"
)

// switcherMaxResults caps the visible result list.
const switcherMaxResults = 8

// switcherEntry is one selectable tab in the switcher.
type switcherEntry struct {
	TabID  string
	PaneID string
	Title  string
	Kind   layout.TabKind
}

// TabSwitcher is the fuzzy tab palette: type a few characters, jump to any
// tab in the active environment.
type TabSwitcher struct {
	visible bool
	input   textinput.Model
	entries []switcherEntry
	matches []switcherEntry
	cursor  int
}

// NewTabSwitcher creates a hidden switcher.
func NewTabSwitcher() *TabSwitcher {
	ti := textinput.New()
	ti.Placeholder = "tab name"
	ti.Prompt = "> "
	ti.CharLimit = 64
	return &TabSwitcher{input: ti}
}

// Visible reports whether the switcher overlay is shown.
func (s *TabSwitcher) Visible() bool { return s.visible }

// Show opens the switcher over the given tab set.
func (s *TabSwitcher) Show(tree *layout.Node) {
	s.entries = s.entries[:0]
	tree.Walk(func(n *layout.Node) bool {
		for _, tab := range n.Tabs {
			s.entries = append(s.entries, switcherEntry{
				TabID: tab.ID, PaneID: n.ID, Title: tab.Title, Kind: tab.Kind,
			})
		}
		return true
	})
	s.visible = true
	s.cursor = 0
	s.input.SetValue("")
	s.input.Focus()
	s.filter()
}

// Hide closes the switcher without selecting.
func (s *TabSwitcher) Hide() {
	s.visible = false
	s.input.Blur()
}

// filter recomputes matches for the current query. An empty query lists every
// tab in display order.
func (s *TabSwitcher) filter() {
	query := strings.TrimSpace(s.input.Value())
	if query == "" {
		s.matches = append(s.matches[:0], s.entries...)
	} else {
		titles := make([]string, len(s.entries))
		for i, e := range s.entries {
			titles[i] = e.Title
		}
		s.matches = s.matches[:0]
		for _, m := range fuzzy.Find(query, titles) {
			s.matches = append(s.matches, s.entries[m.Index])
		}
	}
	if s.cursor >= len(s.matches) {
		s.cursor = len(s.matches) - 1
	}
	if s.cursor < 0 {
		s.cursor = 0
	}
}

// Update handles one key press. Returns the selected entry when the user
// confirms a choice.
func (s *TabSwitcher) Update(msg tea.KeyMsg) (selected *switcherEntry, cmd tea.Cmd) {
	switch msg.String() {
	case "esc":
		s.Hide()
		return nil, nil
	case "enter":
		if s.cursor < len(s.matches) {
			e := s.matches[s.cursor]
			s.Hide()
			return &e, nil
		}
		s.Hide()
		return nil, nil
	case "up", "ctrl+k":
		if s.cursor > 0 {
			s.cursor--
		}
		return nil, nil
	case "down", "ctrl+j":
		if s.cursor < len(s.matches)-1 {
			s.cursor++
		}
		return nil, nil
	}
	var c tea.Cmd
	s.input, c = s.input.Update(msg)
	s.filter()
	return nil, c
}

var (
	switcherBoxStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				Padding(0, 1)
	switcherSelectedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("229")).
				Background(lipgloss.Color("62"))
	switcherDimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// View renders the switcher box.
func (s *TabSwitcher) View(width int) string {
	var b strings.Builder
	b.WriteString(s.input.View())
	b.WriteString("\n")

	shown := s.matches
	if len(shown) > switcherMaxResults {
		shown = shown[:switcherMaxResults]
	}
	for i, e := range shown {
		line := fmt.Sprintf("%s  %s", e.Title, switcherDimStyle.Render(string(e.Kind)))
		if i == s.cursor {
			line = switcherSelectedStyle.Render("▸ " + e.Title + "  " + string(e.Kind))
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	if len(s.matches) == 0 {
		b.WriteString(switcherDimStyle.Render("  no matching tabs"))
	}

	boxWidth := width / 2
	if boxWidth < 30 {
		boxWidth = 30
	}
	return switcherBoxStyle.Width(boxWidth).Render(strings.TrimRight(b.String(), "\n"))
}
