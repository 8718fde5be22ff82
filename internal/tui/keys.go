package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings of the practice screen.
type KeyMap struct {
	Toggle key.Binding
	Bars4  key.Binding
	Bars8  key.Binding
	Bars16 key.Binding

	Major    key.Binding
	Minor    key.Binding
	Dominant key.Binding

	Triads     key.Binding
	Extensions key.Binding
	Pentatonic key.Binding
	Paired     key.Binding

	LouderMaster key.Binding
	SofterMaster key.Binding
	Transcript   key.Binding
	Help         key.Binding
	Quit         key.Binding
}

// DefaultKeyMap provides the default key bindings.
var DefaultKeyMap = KeyMap{
	Toggle: key.NewBinding(
		key.WithKeys(" ", "enter"),
		key.WithHelp("space", "start/stop"),
	),
	Bars4: key.NewBinding(
		key.WithKeys("4"),
		key.WithHelp("4", "4 bars"),
	),
	Bars8: key.NewBinding(
		key.WithKeys("8"),
		key.WithHelp("8", "8 bars"),
	),
	Bars16: key.NewBinding(
		key.WithKeys("1"),
		key.WithHelp("1", "16 bars"),
	),
	Major: key.NewBinding(
		key.WithKeys("M"),
		key.WithHelp("M", "major 7"),
	),
	Minor: key.NewBinding(
		key.WithKeys("m"),
		key.WithHelp("m", "minor 7"),
	),
	Dominant: key.NewBinding(
		key.WithKeys("d"),
		key.WithHelp("d", "dominant 7"),
	),
	Triads: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "triads"),
	),
	Extensions: key.NewBinding(
		key.WithKeys("e"),
		key.WithHelp("e", "triad + ext"),
	),
	Pentatonic: key.NewBinding(
		key.WithKeys("p"),
		key.WithHelp("p", "pentatonic"),
	),
	Paired: key.NewBinding(
		key.WithKeys("a"),
		key.WithHelp("a", "paired triads"),
	),
	LouderMaster: key.NewBinding(
		key.WithKeys("+", "="),
		key.WithHelp("+/-", "master level"),
	),
	SofterMaster: key.NewBinding(
		key.WithKeys("-", "_"),
	),
	Transcript: key.NewBinding(
		key.WithKeys("t"),
		key.WithHelp("t", "transcript"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "more keys"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Bars4, k.Bars8, k.Bars16, k.Transcript, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Toggle, k.Bars4, k.Bars8, k.Bars16},
		{k.Major, k.Minor, k.Dominant},
		{k.Triads, k.Extensions, k.Pentatonic, k.Paired},
		{k.LouderMaster, k.Transcript, k.Help, k.Quit},
	}
}
