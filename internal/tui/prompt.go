package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type promptKind int

const (
	promptText promptKind = iota
	promptSelect
	promptConfirm
)

const (
	answerYes = "yes"
	answerNo  = "no"
)

// choice is one option of a select prompt. The label is shown, the value is
// stored as the answer.
type choice struct {
	label string
	value string
}

func (c choice) Title() string       { return c.label }
func (c choice) Description() string { return "" }
func (c choice) FilterValue() string { return c.label }

type prompt struct {
	kind    promptKind
	key     string
	label   string
	initial string
	choices []choice
	// defaultYes is what enter means on a confirm prompt.
	defaultYes bool
	// gate cancels the flow when a confirm prompt is answered no.
	gate     bool
	validate func(string) error
}

// flow walks the operator through a series of prompts. next looks at the
// answers so far and returns the following prompt, or nil once the flow has
// everything run needs. An error from next aborts the flow with its message.
type flow struct {
	title   string
	answers map[string]string
	next    func(answers map[string]string) (*prompt, error)
	run     func(answers map[string]string) tea.Msg

	current *prompt
	input   textinput.Model
	options list.Model
	err     string
}

func newFlow(title string, next func(map[string]string) (*prompt, error), run func(map[string]string) tea.Msg) *flow {
	return &flow{title: title, answers: map[string]string{}, next: next, run: run}
}

// show installs p as the active prompt.
func (f *flow) show(p *prompt, width, height int) {
	f.current = p
	f.err = ""
	switch p.kind {
	case promptText:
		in := textinput.New()
		in.Prompt = "› "
		in.CharLimit = 256
		in.Width = max(20, width-12)
		in.SetValue(p.initial)
		in.CursorEnd()
		in.Focus()
		f.input = in
	case promptSelect:
		items := make([]list.Item, len(p.choices))
		for i := range p.choices {
			items[i] = p.choices[i]
		}
		f.options = newList(p.label, items, width, height)
	}
}

// submit validates and stores an answer. It reports whether the flow may
// advance; false with f.err set means re-prompt, false with cancelled means
// the operator declined a gate.
func (f *flow) submit(value string) (advance bool, cancelled bool) {
	p := f.current
	if p == nil {
		return false, false
	}
	if p.kind == promptText {
		value = strings.TrimSpace(value)
	}
	if p.validate != nil {
		if err := p.validate(value); err != nil {
			f.err = err.Error()
			if p.kind == promptText {
				f.input.SetValue("")
			}
			return false, false
		}
	}
	f.answers[p.key] = value
	if p.kind == promptConfirm && p.gate && value == answerNo {
		return false, true
	}
	return true, false
}

// handleKey routes a key to the active prompt. It returns the submitted
// value, if any.
func (f *flow) handleKey(msg tea.KeyMsg) (string, bool, tea.Cmd) {
	p := f.current
	if p == nil {
		return "", false, nil
	}
	switch p.kind {
	case promptText:
		if msg.Type == tea.KeyEnter {
			return f.input.Value(), true, nil
		}
		var cmd tea.Cmd
		f.input, cmd = f.input.Update(msg)
		return "", false, cmd
	case promptSelect:
		if msg.Type == tea.KeyEnter {
			item, ok := f.options.SelectedItem().(choice)
			if !ok {
				return "", false, nil
			}
			return item.value, true, nil
		}
		var cmd tea.Cmd
		f.options, cmd = f.options.Update(msg)
		return "", false, cmd
	case promptConfirm:
		switch strings.ToLower(msg.String()) {
		case "y":
			return answerYes, true, nil
		case "n":
			return answerNo, true, nil
		case "enter":
			if p.defaultYes {
				return answerYes, true, nil
			}
			return answerNo, true, nil
		}
	}
	return "", false, nil
}

func (f *flow) resize(width, height int) {
	if f.current == nil {
		return
	}
	switch f.current.kind {
	case promptText:
		f.input.Width = max(20, width-12)
	case promptSelect:
		f.options.SetSize(max(20, width), max(6, height))
	}
}

func (f *flow) View() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF")).Render(f.title)
	p := f.current
	if p == nil {
		return lipgloss.JoinVertical(lipgloss.Left, title, "", "Working...")
	}
	var body string
	switch p.kind {
	case promptText:
		body = lipgloss.JoinVertical(lipgloss.Left, p.label, f.input.View())
	case promptSelect:
		body = f.options.View()
	case promptConfirm:
		hint := "[y/N]"
		if p.defaultYes {
			hint = "[Y/n]"
		}
		body = p.label + " " + hint
	}
	parts := []string{title, "", body}
	if f.err != "" {
		parts = append(parts, "", lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Render(f.err))
	}
	hint := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		MarginTop(1).
		Render("Enter → confirm    Esc → cancel")
	parts = append(parts, hint)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func newList(title string, items []list.Item, width, height int) list.Model {
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = false
	delegate.SetSpacing(0)
	l := list.New(items, delegate, max(20, width), max(6, height))
	l.Title = title
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.DisableQuitKeybindings()
	return l
}
