// Package commands resolves slash commands into prompt text.
package commands

import (
	"strings"
	"unicode"

	berrors "github.com/BerkeliumLabs/berkelium/internal/errors"
)

// Sigil marks input as a command.
const Sigil = "/"

// ArgumentsPlaceholder is replaced by the command's arguments.
const ArgumentsPlaceholder = "$ARGUMENTS"

// Parsed is a split command line. Arguments is "" when none were supplied.
type Parsed struct {
	Command   string
	Arguments string
}

// HasArguments reports whether any arguments followed the command name.
func (p Parsed) HasArguments() bool {
	return p.Arguments != ""
}

// IsCommand reports whether input should be routed to the resolver.
func IsCommand(input string) bool {
	return strings.HasPrefix(input, Sigil)
}

// Parse splits "/name args..." at the first whitespace into the command name and trimmed arguments.
func Parse(input string) (Parsed, error) {
	if !IsCommand(input) {
		return Parsed{}, berrors.InvalidCommandFormat(input)
	}

	rest := strings.TrimSpace(strings.TrimPrefix(input, Sigil))
	i := strings.IndexFunc(rest, unicode.IsSpace)
	if i < 0 {
		return Parsed{Command: rest}, nil
	}
	return Parsed{Command: rest[:i], Arguments: strings.TrimSpace(rest[i:])}, nil
}

// Interpolate substitutes every placeholder with args, or removes it when args is empty.
func Interpolate(template, args string) string {
	return strings.ReplaceAll(template, ArgumentsPlaceholder, args)
}
