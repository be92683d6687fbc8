package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BerkeliumLabs/berkelium/internal/permissions"
	"github.com/BerkeliumLabs/berkelium/internal/tools"
	"github.com/BerkeliumLabs/berkelium/internal/ui/highlight"
)

// ANSI color codes
const (
	Reset     = "\033[0m"
	Bold      = "\033[1m"
	Dim       = "\033[2m"
	Italic    = "\033[3m"
	Underline = "\033[4m"

	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Blue    = "\033[34m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
)

// ANSI cursor control codes
const (
	CursorStart = "\r"      // Move cursor to start of line
	ClearLine   = "\033[2K" // Clear entire line
)

// maxResultPreview bounds how much of a tool result is echoed to the terminal.
const maxResultPreview = 500

// OutputHandler handles console output with colors
type OutputHandler struct {
	out         io.Writer
	err         io.Writer
	useColors   bool
	highlighter *highlight.Highlighter
}

// NewOutputHandler writes to stdout and stderr, with colors when stdout is a
// terminal and NO_COLOR is unset.
func NewOutputHandler() *OutputHandler {
	useColors := IsTerminal(os.Stdout)
	if os.Getenv("NO_COLOR") != "" {
		useColors = false
	}
	return NewOutputHandlerTo(os.Stdout, os.Stderr, useColors)
}

// NewOutputHandlerTo creates a handler over explicit writers.
func NewOutputHandlerTo(out, errOut io.Writer, useColors bool) *OutputHandler {
	return &OutputHandler{
		out:         out,
		err:         errOut,
		useColors:   useColors,
		highlighter: highlight.New(useColors),
	}
}

// IsTerminal reports whether f is a character device.
func IsTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// color applies color if colors are enabled
func (o *OutputHandler) color(color, text string) string {
	if !o.useColors {
		return text
	}
	return color + text + Reset
}

// IsTTY returns true if the output is a terminal (not piped/redirected)
func (o *OutputHandler) IsTTY() bool {
	return o.useColors
}

// UseColors returns true if colors are enabled
func (o *OutputHandler) UseColors() bool {
	return o.useColors
}

// Text outputs regular text
func (o *OutputHandler) Text(text string) {
	fmt.Fprint(o.out, text)
}

// TextLn outputs regular text with newline
func (o *OutputHandler) TextLn(text string) {
	fmt.Fprintln(o.out, text)
}

// Answer prints a model answer with highlighted code blocks.
func (o *OutputHandler) Answer(text string) {
	fmt.Fprintln(o.out)
	fmt.Fprintln(o.out, o.highlighter.HighlightMarkdownCodeBlocks(text))
	fmt.Fprintln(o.out)
}

// ToolCall outputs a tool call notification
func (o *OutputHandler) ToolCall(name string, description string) {
	prefix := o.color(Cyan+Bold, "⚡ ")
	toolName := o.color(Cyan, name)
	desc := ""
	if description != "" && description != name {
		desc = o.color(Dim, " - "+description)
	}
	fmt.Fprintln(o.out, prefix+toolName+desc)
}

// ToolResult outputs a tool result
func (o *OutputHandler) ToolResult(name string, result tools.Result) {
	if !result.Success {
		prefix := o.color(Red+Bold, "✗ ")
		fmt.Fprintln(o.out, prefix+o.color(Red, name+": ")+result.Error)
		return
	}

	display := result.Output
	if len(display) > maxResultPreview {
		display = display[:maxResultPreview] + "..."
	}
	display = o.highlighter.HighlightMarkdownCodeBlocks(display)

	fmt.Fprintln(o.out, o.color(Green, "✓ ")+o.color(Green, name))
	if display == "" {
		return
	}
	lines := strings.Split(display, "\n")
	if len(lines) > 10 {
		lines = append(lines[:10], "... (truncated)")
	}
	for _, line := range lines {
		fmt.Fprintln(o.out, o.color(Dim, "  │ ")+line)
	}
}

// Error outputs an error message
func (o *OutputHandler) Error(err error) {
	o.ErrorStr(err.Error())
}

// ErrorStr outputs an error string
func (o *OutputHandler) ErrorStr(msg string) {
	fmt.Fprintln(o.err, o.color(Red+Bold, "Error: ")+msg)
}

// Warning outputs a warning message
func (o *OutputHandler) Warning(msg string) {
	fmt.Fprintln(o.err, o.color(Yellow+Bold, "Warning: ")+msg)
}

// Success outputs a success message
func (o *OutputHandler) Success(msg string) {
	fmt.Fprintln(o.out, o.color(Green+Bold, "✓ ")+msg)
}

// Info outputs an info message
func (o *OutputHandler) Info(msg string) {
	fmt.Fprintln(o.out, o.color(Blue, "ℹ ")+msg)
}

// Prompt outputs a prompt
func (o *OutputHandler) Prompt(prompt string) {
	fmt.Fprint(o.out, o.color(Bold+Green, prompt))
}

// PermissionPrompt describes a pending approval request.
func (o *OutputHandler) PermissionPrompt(req *permissions.Request) {
	levelColor := Yellow
	icon := "✏️"
	switch req.Level {
	case tools.PermissionExecute.String(), tools.PermissionNetwork.String():
		levelColor = Red
		icon = "⚠️"
	}

	fmt.Fprintln(o.out)
	fmt.Fprintln(o.out, o.color(levelColor+Bold, fmt.Sprintf("%s Permission Required: %s", icon, req.Call.Name)))
	fmt.Fprintln(o.out, o.color(Dim, "   Level: ")+o.color(levelColor, req.Level))
	fmt.Fprintln(o.out, o.color(Dim, "   Call: ")+req.Summary())
	if req.Description != "" {
		fmt.Fprintln(o.out, o.color(Dim, "   Action:"))
		for _, line := range strings.Split(strings.TrimRight(req.Description, "\n"), "\n") {
			fmt.Fprintln(o.out, "     "+o.colorDiffLine(line))
		}
	}
	fmt.Fprintln(o.out)
}

func (o *OutputHandler) colorDiffLine(line string) string {
	switch {
	case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		return o.color(Bold, line)
	case strings.HasPrefix(line, "+"):
		return o.color(Green, line)
	case strings.HasPrefix(line, "-"):
		return o.color(Red, line)
	case strings.HasPrefix(line, "@@"):
		return o.color(Cyan, line)
	}
	return line
}

// Header outputs a header
func (o *OutputHandler) Header(text string) {
	fmt.Fprintln(o.out)
	fmt.Fprintln(o.out, o.color(Bold+Underline, text))
	fmt.Fprintln(o.out)
}

// Separator outputs a horizontal line
func (o *OutputHandler) Separator() {
	fmt.Fprintln(o.out, o.color(Dim, strings.Repeat("─", 40)))
}

// ModelInfo outputs the current model info
func (o *OutputHandler) ModelInfo(model string) {
	fmt.Fprintln(o.out, o.color(Dim, "Using model: ")+o.color(Cyan, model))
}

// Status prints a dim status line, such as token usage.
func (o *OutputHandler) Status(text string) {
	fmt.Fprintln(o.out, o.color(Dim, text))
}
