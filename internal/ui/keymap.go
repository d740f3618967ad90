package ui

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/workdeckhq/workdeck/internal/config"
)

// KeyMap holds all workspace key bindings. Bindings come from config so users
// on non-US layouts can remap everything.
type KeyMap struct {
	NewTab      key.Binding
	CloseTab    key.Binding
	NextTab     key.Binding
	PrevTab     key.Binding
	NextPane    key.Binding
	PrevPane    key.Binding
	TabSwitcher key.Binding
	Quit        key.Binding
}

// NewKeyMap builds bindings from the configured key strings.
func NewKeyMap(cfg config.Keymap) KeyMap {
	return KeyMap{
		NewTab:      key.NewBinding(key.WithKeys(cfg.NewTab), key.WithHelp(cfg.NewTab, "new tab")),
		CloseTab:    key.NewBinding(key.WithKeys(cfg.CloseTab), key.WithHelp(cfg.CloseTab, "close tab")),
		NextTab:     key.NewBinding(key.WithKeys(cfg.NextTab), key.WithHelp(cfg.NextTab, "next tab")),
		PrevTab:     key.NewBinding(key.WithKeys(cfg.PrevTab), key.WithHelp(cfg.PrevTab, "prev tab")),
		NextPane:    key.NewBinding(key.WithKeys(cfg.NextPane), key.WithHelp(cfg.NextPane, "next pane")),
		PrevPane:    key.NewBinding(key.WithKeys(cfg.PrevPane), key.WithHelp(cfg.PrevPane, "prev pane")),
		TabSwitcher: key.NewBinding(key.WithKeys(cfg.TabSwitcher), key.WithHelp(cfg.TabSwitcher, "switch tab")),
		Quit:        key.NewBinding(key.WithKeys(cfg.Quit), key.WithHelp(cfg.Quit, "quit")),
	}
}
