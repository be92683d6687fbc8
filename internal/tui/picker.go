package tui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"

	"github.com/BerkeliumLabs/berkelium/internal/commands"
)

const pickerMaxVisible = 8

type pickerKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Select key.Binding
	Cancel key.Binding
}

var pickerKeys = pickerKeyMap{
	Up:     key.NewBinding(key.WithKeys("up", "ctrl+p"), key.WithHelp("↑", "up")),
	Down:   key.NewBinding(key.WithKeys("down", "ctrl+n", "tab"), key.WithHelp("↓", "down")),
	Select: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "run")),
	Cancel: key.NewBinding(key.WithKeys("esc", "ctrl+c"), key.WithHelp("esc", "cancel")),
}

// optionSource adapts a command list to fuzzy.Source.
type optionSource []commands.Option

func (s optionSource) String(i int) string { return s[i].Label }
func (s optionSource) Len() int            { return len(s) }

// PickerModel lets the operator filter and choose a command.
type PickerModel struct {
	options  []commands.Option
	filtered []commands.Option
	input    textinput.Model
	selected int
	offset   int
	chosen   string
	done     bool
}

// NewPickerModel creates a picker over options.
func NewPickerModel(options []commands.Option) PickerModel {
	ti := textinput.New()
	ti.Placeholder = "Type to filter commands..."
	ti.Prompt = "› "
	ti.CharLimit = 64
	ti.Focus()

	return PickerModel{
		options:  options,
		filtered: options,
		input:    ti,
	}
}

// Init starts the cursor blink.
func (m PickerModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles navigation keys and forwards the rest to the filter input.
func (m PickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.done {
		return m, nil
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, pickerKeys.Cancel):
			m.done = true
			return m, tea.Quit
		case key.Matches(msg, pickerKeys.Up):
			m.move(-1)
			return m, nil
		case key.Matches(msg, pickerKeys.Down):
			m.move(1)
			return m, nil
		case key.Matches(msg, pickerKeys.Select):
			if len(m.filtered) > 0 {
				m.chosen = m.filtered[m.selected].Value
			}
			m.done = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	prev := m.input.Value()
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() != prev {
		m.filter(m.input.Value())
	}
	return m, cmd
}

func (m *PickerModel) move(delta int) {
	if len(m.filtered) == 0 {
		return
	}
	m.selected = (m.selected + delta + len(m.filtered)) % len(m.filtered)
	if m.selected < m.offset {
		m.offset = m.selected
	} else if m.selected >= m.offset+pickerMaxVisible {
		m.offset = m.selected - pickerMaxVisible + 1
	}
}

func (m *PickerModel) filter(query string) {
	m.selected = 0
	m.offset = 0
	query = strings.TrimSpace(strings.TrimPrefix(query, "/"))
	if query == "" {
		m.filtered = m.options
		return
	}

	matches := fuzzy.FindFrom(query, optionSource(m.options))
	m.filtered = make([]commands.Option, 0, len(matches))
	for _, match := range matches {
		m.filtered = append(m.filtered, m.options[match.Index])
	}
}

// Filtered returns the options matching the current filter, best first.
func (m PickerModel) Filtered() []commands.Option {
	return m.filtered
}

// Chosen returns the selected command value, or "" when cancelled.
func (m PickerModel) Chosen() string {
	return m.chosen
}

// View renders the filter input and the visible matches.
func (m PickerModel) View() string {
	if m.done {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.input.View() + "\n\n")

	if len(m.filtered) == 0 {
		b.WriteString(detailStyle.Render("  No matching commands") + "\n")
	}
	end := min(m.offset+pickerMaxVisible, len(m.filtered))
	for i := m.offset; i < end; i++ {
		opt := m.filtered[i]
		line := truncate(opt.Label, 72)
		if i == m.selected {
			b.WriteString(cursorStyle.Render(iconCursor) + " " + selectedChoiceStyle.Render(line) + "\n")
		} else {
			b.WriteString("  " + choiceStyle.Render(line) + "\n")
		}
	}
	if len(m.filtered) > pickerMaxVisible {
		b.WriteString(detailStyle.Render(fmt.Sprintf("  %d of %d", m.selected+1, len(m.filtered))) + "\n")
	}
	b.WriteString(helpStyle.Render("↑↓ navigate · enter run · esc cancel"))
	return b.String() + "\n"
}

// PickCommand runs the picker and returns the chosen command name. ok is
// false when the operator cancelled.
func PickCommand(ctx context.Context, options []commands.Option, in io.Reader, out io.Writer) (string, bool, error) {
	program := tea.NewProgram(
		NewPickerModel(options),
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
	)
	final, err := program.Run()
	if err != nil {
		return "", false, err
	}
	m, ok := final.(PickerModel)
	if !ok || m.Chosen() == "" {
		return "", false, nil
	}
	return m.Chosen(), true, nil
}
