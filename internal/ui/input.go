package ui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BerkeliumLabs/berkelium/internal/permissions"
)

// InputHandler reads operator input line by line.
type InputHandler struct {
	reader *bufio.Reader
	out    io.Writer
}

// NewInputHandler reads from stdin and echoes prompts to stdout.
func NewInputHandler() *InputHandler {
	return NewInputHandlerFrom(os.Stdin, os.Stdout)
}

// NewInputHandlerFrom creates a handler over explicit streams.
func NewInputHandlerFrom(r io.Reader, w io.Writer) *InputHandler {
	return &InputHandler{
		reader: bufio.NewReader(r),
		out:    w,
	}
}

// ReadLine prints prompt and returns the next trimmed line. A final line
// without a newline is returned before io.EOF.
func (h *InputHandler) ReadLine(prompt string) (string, error) {
	fmt.Fprint(h.out, prompt)
	line, err := h.reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// ReadInput is ReadLine for the REPL prompt. Lines already buffered behind
// the first one are a paste and are joined into a single multi-line prompt.
func (h *InputHandler) ReadInput(prompt string) (string, error) {
	fmt.Fprint(h.out, prompt)

	first, err := h.reader.ReadString('\n')
	if err != nil && first == "" {
		return "", err
	}
	lines := []string{strings.TrimRight(first, "\r\n")}
	for h.reader.Buffered() > 0 {
		line, err := h.reader.ReadString('\n')
		lines = append(lines, strings.TrimRight(line, "\r\n"))
		if err != nil {
			break
		}
	}
	return strings.Join(lines, "\n"), nil
}

var approvalAnswers = map[string]permissions.Decision{
	"1": permissions.AllowOnce, "y": permissions.AllowOnce, "yes": permissions.AllowOnce,
	"2": permissions.AllowSession, "a": permissions.AllowSession, "always": permissions.AllowSession,
	"3": permissions.Deny, "n": permissions.Deny, "no": permissions.Deny, "": permissions.Deny,
}

// Approve asks for an approval decision until it gets a valid answer.
// An empty answer denies.
func (h *InputHandler) Approve(prompt string) (permissions.Decision, error) {
	fmt.Fprintln(h.out, prompt)
	fmt.Fprintln(h.out, "  [1/y] Allow once")
	fmt.Fprintln(h.out, "  [2/a] Allow for this session")
	fmt.Fprintln(h.out, "  [3/n] Deny")

	for {
		answer, err := h.ReadLine("Choice [n]: ")
		if err != nil {
			return permissions.Deny, err
		}
		if d, ok := approvalAnswers[strings.ToLower(answer)]; ok {
			return d, nil
		}
		fmt.Fprintf(h.out, "Unrecognized answer %q.\n", answer)
	}
}
