package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Loader reads markdown command files with optional YAML frontmatter.
type Loader struct {
	dirs   []string
	logger *zap.Logger
}

// NewLoader creates a loader over dirs, searched in order.
func NewLoader(logger *zap.Logger, dirs ...string) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{dirs: dirs, logger: logger}
}

// UserCommandsDir returns ~/.config/berkelium/commands, or "" when home is unknown.
func UserCommandsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "berkelium", "commands")
}

// Load returns every command found in the loader's directories. Missing
// directories are skipped and unreadable files are logged and skipped.
func (l *Loader) Load() []Command {
	var out []Command
	for _, dir := range l.dirs {
		if dir == "" {
			continue
		}
		out = append(out, l.loadFromDir(dir)...)
	}
	return out
}

// Catalog builds a catalog of the built-ins overridden by loaded files.
func (l *Loader) Catalog() *Catalog {
	cmds := append(Builtins(), l.Load()...)
	catalog := NewCatalog(cmds...)
	l.logger.Debug("commands loaded", zap.Strings("names", catalog.Names()))
	return catalog
}

func (l *Loader) loadFromDir(dir string) []Command {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var out []Command
	for _, name := range names {
		path := filepath.Join(dir, name)
		cmd, err := loadCommandFile(path)
		if err != nil {
			l.logger.Warn("failed to load command", zap.String("path", path), zap.Error(err))
			continue
		}
		out = append(out, cmd)
	}
	return out
}

// loadCommandFile parses one command file. The name defaults to the file
// name without extension.
func loadCommandFile(path string) (Command, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Command{}, err
	}

	cmd := Command{Source: path}
	text := strings.ReplaceAll(string(content), "\r\n", "\n")
	if strings.HasPrefix(text, "---\n") {
		front, body, found := strings.Cut("\n"+text[4:], "\n---")
		if !found {
			return Command{}, fmt.Errorf("unterminated frontmatter")
		}
		if err := yaml.Unmarshal([]byte(front), &cmd); err != nil {
			return Command{}, fmt.Errorf("invalid frontmatter: %w", err)
		}
		cmd.Prompt = strings.TrimSpace(body)
	} else {
		cmd.Prompt = strings.TrimSpace(text)
	}

	if cmd.Name == "" {
		cmd.Name = strings.TrimSuffix(filepath.Base(path), ".md")
	}
	if strings.ContainsAny(cmd.Name, " \t/") {
		return Command{}, fmt.Errorf("invalid command name %q", cmd.Name)
	}
	if cmd.Prompt == "" {
		return Command{}, fmt.Errorf("command %q has an empty prompt", cmd.Name)
	}
	return cmd, nil
}
