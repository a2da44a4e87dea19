package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the key bindings for the browser.
type keyMap struct {
	up      key.Binding
	down    key.Binding
	prev    key.Binding
	next    key.Binding
	choose  key.Binding
	extract key.Binding
	search  key.Binding
	filter  key.Binding
	reload  key.Binding
	cancel  key.Binding
	quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		prev: key.NewBinding(
			key.WithKeys("left", "["),
			key.WithHelp("←/[", "prev page"),
		),
		next: key.NewBinding(
			key.WithKeys("right", "]"),
			key.WithHelp("→/]", "next page"),
		),
		choose: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "select poster"),
		),
		extract: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "extract colors"),
		),
		search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "search"),
		),
		filter: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "filters"),
		),
		reload: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "discover"),
		),
		cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
		quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.prev, k.next, k.choose, k.extract, k.search, k.filter, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.prev, k.next},
		{k.choose, k.extract},
		{k.search, k.filter, k.reload, k.cancel, k.quit},
	}
}
