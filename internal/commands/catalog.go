package commands

import (
	"fmt"
	"sort"

	"github.com/sahilm/fuzzy"

	berrors "github.com/BerkeliumLabs/berkelium/internal/errors"
)

// Command is a named prompt template.
type Command struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Prompt      string `yaml:"-"`
	// Source is "builtin" or the file the command was loaded from.
	Source string `yaml:"-"`
}

// Option is a display entry for command pickers.
type Option struct {
	Label string
	Value string
}

// Catalog is an immutable name to command mapping.
type Catalog struct {
	commands map[string]Command
	names    []string
}

// NewCatalog builds a catalog. Later commands replace earlier ones with the same name.
// Commands without a name or prompt are skipped.
func NewCatalog(cmds ...Command) *Catalog {
	c := &Catalog{commands: make(map[string]Command, len(cmds))}
	for _, cmd := range cmds {
		if cmd.Name == "" || cmd.Prompt == "" {
			continue
		}
		c.commands[cmd.Name] = cmd
	}
	c.names = make([]string, 0, len(c.commands))
	for name := range c.commands {
		c.names = append(c.names, name)
	}
	sort.Strings(c.names)
	return c
}

// Get returns a command by name.
func (c *Catalog) Get(name string) (Command, bool) {
	cmd, ok := c.commands[name]
	return cmd, ok
}

// Names returns the sorted command names.
func (c *Catalog) Names() []string {
	return append([]string(nil), c.names...)
}

// List returns all commands sorted by name.
func (c *Catalog) List() []Command {
	out := make([]Command, 0, len(c.names))
	for _, name := range c.names {
		out = append(out, c.commands[name])
	}
	return out
}

// Options returns {label, value} pairs for display.
func (c *Catalog) Options() []Option {
	out := make([]Option, 0, len(c.names))
	for _, cmd := range c.List() {
		out = append(out, Option{
			Label: fmt.Sprintf("%s%s - %s", Sigil, cmd.Name, cmd.Description),
			Value: Sigil + cmd.Name,
		})
	}
	return out
}

// Suggest returns known names that fuzzily match name, best first.
func (c *Catalog) Suggest(name string) []string {
	if name == "" {
		return nil
	}
	matches := fuzzy.Find(name, c.names)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Str)
	}
	return out
}

// Resolve parses input and returns the interpolated prompt of the named command.
// Unknown names yield an error listing every known command.
func (c *Catalog) Resolve(input string) (string, error) {
	parsed, err := Parse(input)
	if err != nil {
		return "", err
	}

	cmd, ok := c.commands[parsed.Command]
	if !ok {
		unknown := berrors.UnknownCommand(parsed.Command, c.names)
		if s := c.Suggest(parsed.Command); len(s) > 0 {
			unknown.Message += fmt.Sprintf(". Did you mean %s%s?", Sigil, s[0])
		}
		return "", unknown
	}

	return Interpolate(cmd.Prompt, parsed.Arguments), nil
}
