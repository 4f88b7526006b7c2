package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the keybindings of the review front end.
type KeyMap struct {
	Quit key.Binding
	Back key.Binding
	Up   key.Binding
	Down key.Binding

	// Files and verification steps.
	Skip     key.Binding
	Unassign key.Binding
	Verify   key.Binding
	Process  key.Binding
	Field    key.Binding
	Prev     key.Binding
	Next     key.Binding

	// Results step.
	Workshop   key.Binding
	View       key.Binding
	Review     key.Binding
	Toggle     key.Binding
	ToggleAll  key.Binding
	Commit     key.Binding
	Edit       key.Binding
	Delete     key.Binding
	Stage      key.Binding
	ClearStage key.Binding
	Export     key.Binding

	Confirm key.Binding
	Cancel  key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Back:       key.NewBinding(key.WithKeys("esc", "backspace"), key.WithHelp("esc", "back")),
		Up:         key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:       key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Skip:       key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "skip")),
		Unassign:   key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "unassign")),
		Verify:     key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "verify")),
		Process:    key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "process")),
		Field:      key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "field")),
		Prev:       key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "previous")),
		Next:       key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "next")),
		Workshop:   key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "workshop")),
		View:       key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "matches/discrepancies")),
		Review:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "review pairs")),
		Toggle:     key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "toggle")),
		ToggleAll:  key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "select all")),
		Commit:     key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "eliminate")),
		Edit:       key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit ref")),
		Delete:     key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete row")),
		Stage:      key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "add to report")),
		ClearStage: key.NewBinding(key.WithKeys("S"), key.WithHelp("S", "clear report")),
		Export:     key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "export")),
		Confirm:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "confirm")),
		Cancel:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
	}
}

// FilesHelp returns the bindings shown on the files step.
func (k *KeyMap) FilesHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Skip, k.Unassign, k.Verify, k.Process, k.Quit}
}

// VerifyHelp returns the bindings shown on the verification step.
func (k *KeyMap) VerifyHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Field, k.Prev, k.Next, k.Process, k.Back}
}

// ResultsHelp returns the bindings shown on the results step.
func (k *KeyMap) ResultsHelp(reviewing bool) []key.Binding {
	if reviewing {
		return []key.Binding{k.Up, k.Down, k.Toggle, k.ToggleAll, k.Commit, k.Cancel}
	}
	return []key.Binding{k.Workshop, k.View, k.Review, k.Edit, k.Delete, k.Stage, k.ClearStage, k.Export, k.Back}
}
