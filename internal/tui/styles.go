package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Colors
var (
	primaryColor = lipgloss.Color("39")  // Cyan
	successColor = lipgloss.Color("82")  // Green
	warningColor = lipgloss.Color("214") // Orange/Yellow
	errorColor   = lipgloss.Color("196") // Red
	dimColor     = lipgloss.Color("240") // Gray
	textColor    = lipgloss.Color("252") // Light gray
)

// Styles
var (
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(warningColor).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Foreground(warningColor).
			Bold(true)

	dangerTitleStyle = lipgloss.NewStyle().
				Foreground(errorColor).
				Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	valueStyle = lipgloss.NewStyle().
			Foreground(textColor)

	cursorStyle = lipgloss.NewStyle().
			Foreground(primaryColor).
			Bold(true)

	choiceStyle = lipgloss.NewStyle().
			Foreground(textColor)

	selectedChoiceStyle = lipgloss.NewStyle().
				Foreground(primaryColor).
				Bold(true)

	detailStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	helpStyle = lipgloss.NewStyle().
			Foreground(dimColor).
			Italic(true)

	diffAddStyle = lipgloss.NewStyle().
			Foreground(successColor)

	diffDelStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	diffHunkStyle = lipgloss.NewStyle().
			Foreground(primaryColor)
)

// Icons
const (
	iconCursor  = "›"
	iconWarning = "⚠"
)

// truncate truncates a string to maxLen characters, adding "..." if truncated
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
