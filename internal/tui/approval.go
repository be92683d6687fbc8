// Package tui holds the Bubble Tea prompts used by the interactive CLI.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/BerkeliumLabs/berkelium/internal/permissions"
)

// ErrRequestExpired is returned when the request timed out while displayed.
var ErrRequestExpired = errors.New("permission request expired")

// maxPreviewLines bounds the description shown in the prompt.
const maxPreviewLines = 20

type approvalChoice struct {
	label    string
	decision permissions.Decision
}

var approvalChoices = []approvalChoice{
	{"Allow once", permissions.AllowOnce},
	{"Allow for this session", permissions.AllowSession},
	{"Deny", permissions.Deny},
}

type approvalKeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Select  key.Binding
	Once    key.Binding
	Session key.Binding
	Deny    key.Binding
}

var approvalKeys = approvalKeyMap{
	Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:    key.NewBinding(key.WithKeys("down", "j", "tab"), key.WithHelp("↓/j", "down")),
	Select:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "choose")),
	Once:    key.NewBinding(key.WithKeys("y", "Y"), key.WithHelp("y", "allow once")),
	Session: key.NewBinding(key.WithKeys("a", "A"), key.WithHelp("a", "allow session")),
	Deny:    key.NewBinding(key.WithKeys("n", "N", "esc", "ctrl+c"), key.WithHelp("n/esc", "deny")),
}

// expiredMsg reports that the request was closed by the gate.
type expiredMsg struct{}

// ApprovalModel is the Bubble Tea model of one approval prompt.
type ApprovalModel struct {
	req      *permissions.Request
	cursor   int
	decision permissions.Decision
	done     bool
	expired  bool
	width    int
}

// NewApprovalModel creates a prompt for req with "Allow once" selected.
func NewApprovalModel(req *permissions.Request) ApprovalModel {
	return ApprovalModel{req: req, width: 80}
}

// Init watches for the request expiring underneath the prompt.
func (m ApprovalModel) Init() tea.Cmd {
	done := m.req.Done()
	return func() tea.Msg {
		<-done
		return expiredMsg{}
	}
}

// Update handles key presses and expiry.
func (m ApprovalModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.done {
		return m, nil
	}

	switch msg := msg.(type) {
	case expiredMsg:
		m.expired = true
		m.done = true
		m.decision = permissions.Deny
		return m, tea.Quit

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, approvalKeys.Up):
			m.cursor = (m.cursor + len(approvalChoices) - 1) % len(approvalChoices)
		case key.Matches(msg, approvalKeys.Down):
			m.cursor = (m.cursor + 1) % len(approvalChoices)
		case key.Matches(msg, approvalKeys.Select):
			return m.choose(approvalChoices[m.cursor].decision)
		case key.Matches(msg, approvalKeys.Once):
			return m.choose(permissions.AllowOnce)
		case key.Matches(msg, approvalKeys.Session):
			return m.choose(permissions.AllowSession)
		case key.Matches(msg, approvalKeys.Deny):
			return m.choose(permissions.Deny)
		}
	}
	return m, nil
}

func (m ApprovalModel) choose(d permissions.Decision) (tea.Model, tea.Cmd) {
	m.decision = d
	m.done = true
	return m, tea.Quit
}

// Decision returns the chosen decision and whether the prompt finished.
func (m ApprovalModel) Decision() (permissions.Decision, bool) {
	return m.decision, m.done
}

// Expired reports whether the request expired before a choice was made.
func (m ApprovalModel) Expired() bool {
	return m.expired
}

// View renders the prompt.
func (m ApprovalModel) View() string {
	if m.done {
		return ""
	}

	title := titleStyle
	if m.req.Level == "execute" || m.req.Level == "network" {
		title = dangerTitleStyle
	}

	var b strings.Builder
	b.WriteString(title.Render(fmt.Sprintf("%s Permission Required: %s", iconWarning, m.req.Call.Name)))
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("Level: ") + valueStyle.Render(m.req.Level) + "\n")
	b.WriteString(labelStyle.Render("Call:  ") + valueStyle.Render(truncate(m.req.Summary(), max(m.width-12, 20))) + "\n")

	if desc := strings.TrimRight(m.req.Description, "\n"); desc != "" && desc != m.req.Call.Name {
		b.WriteString("\n")
		lines := strings.Split(desc, "\n")
		if len(lines) > maxPreviewLines {
			hidden := len(lines) - maxPreviewLines
			lines = append(lines[:maxPreviewLines], fmt.Sprintf("... (%d more lines)", hidden))
		}
		for _, line := range lines {
			b.WriteString(renderPreviewLine(line) + "\n")
		}
	}

	b.WriteString("\n")
	for i, c := range approvalChoices {
		if i == m.cursor {
			b.WriteString(cursorStyle.Render(iconCursor) + " " + selectedChoiceStyle.Render(c.label) + "\n")
		} else {
			b.WriteString("  " + choiceStyle.Render(c.label) + "\n")
		}
	}
	b.WriteString(helpStyle.Render("y allow once · a allow session · n/esc deny · ↑↓ enter choose"))

	return boxStyle.Render(b.String()) + "\n"
}

func renderPreviewLine(line string) string {
	switch {
	case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		return detailStyle.Render(line)
	case strings.HasPrefix(line, "+"):
		return diffAddStyle.Render(line)
	case strings.HasPrefix(line, "-"):
		return diffDelStyle.Render(line)
	case strings.HasPrefix(line, "@@"):
		return diffHunkStyle.Render(line)
	}
	return detailStyle.Render(line)
}

// Ask shows the prompt for req on the given terminal streams and returns the
// operator's decision. A request that expires while shown returns Deny and
// ErrRequestExpired. The caller delivers the decision with req.Respond.
func Ask(ctx context.Context, req *permissions.Request, in io.Reader, out io.Writer) (permissions.Decision, error) {
	program := tea.NewProgram(
		NewApprovalModel(req),
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
	)
	final, err := program.Run()
	if err != nil {
		return permissions.Deny, err
	}

	m, ok := final.(ApprovalModel)
	if !ok {
		return permissions.Deny, fmt.Errorf("unexpected model %T", final)
	}
	if m.Expired() {
		return permissions.Deny, ErrRequestExpired
	}
	decision, done := m.Decision()
	if !done {
		return permissions.Deny, nil
	}
	return decision, nil
}
