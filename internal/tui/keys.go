package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the dashboard key bindings with built-in help text.
type KeyMap struct {
	Quit         key.Binding
	ForceQuit    key.Binding
	PrevInterval key.Binding
	NextInterval key.Binding
	Refresh      key.Binding
	ToggleChart  key.Binding
	OmitZero     key.Binding
	Pause        key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		ForceQuit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "force quit"),
		),
		PrevInterval: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←/h", "shorter interval"),
		),
		NextInterval: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→/l", "longer interval"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		ToggleChart: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "throughput/severity"),
		),
		OmitZero: key.NewBinding(
			key.WithKeys("z"),
			key.WithHelp("z", "hide zero lag"),
		),
		Pause: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "pause/resume"),
		),
	}
}

// ShortHelp returns the bindings shown in the status line.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.PrevInterval, k.NextInterval, k.ToggleChart, k.OmitZero, k.Pause, k.Refresh, k.Quit}
}

// FullHelp returns every binding, grouped by purpose.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.PrevInterval, k.NextInterval, k.ToggleChart},
		{k.OmitZero, k.Pause, k.Refresh},
		{k.Quit, k.ForceQuit},
	}
}
