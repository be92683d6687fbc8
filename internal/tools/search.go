package tools

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

var defaultIgnores = []string{".git", "node_modules", ".DS_Store", "*.tmp", "*.log"}

const (
	maxSearchMatches = 500
	maxGlobResults   = 1000
)

// ignoreMatcher applies basename and root-relative patterns in gitignore style.
type ignoreMatcher struct {
	patterns []string
}

func newIgnoreMatcher(root string, extra []string, respectGitIgnore bool) *ignoreMatcher {
	m := &ignoreMatcher{patterns: append(append([]string{}, defaultIgnores...), extra...)}
	if respectGitIgnore {
		m.patterns = append(m.patterns, readGitIgnore(root)...)
	}
	return m
}

func readGitIgnore(root string) []string {
	f, err := os.Open(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns
}

// ignored reports whether rel (slash separated, relative to the walk root) is excluded.
func (m *ignoreMatcher) ignored(rel string, isDir bool) bool {
	base := pathBase(rel)
	for _, p := range m.patterns {
		dirOnly := strings.HasSuffix(p, "/")
		p = strings.TrimSuffix(p, "/")
		if dirOnly && !isDir {
			continue
		}
		if strings.Contains(strings.TrimPrefix(p, "/"), "/") {
			if ok, _ := matchGlob(strings.TrimPrefix(p, "/"), rel, true); ok {
				return true
			}
			continue
		}
		if ok, _ := filepath.Match(strings.TrimPrefix(p, "/"), base); ok {
			return true
		}
	}
	return false
}

func pathBase(rel string) string {
	if i := strings.LastIndex(rel, "/"); i >= 0 {
		return rel[i+1:]
	}
	return rel
}

// matchGlob matches a slash separated path against a pattern supporting "**".
func matchGlob(pattern, name string, caseSensitive bool) (bool, error) {
	if !caseSensitive {
		pattern = strings.ToLower(pattern)
		name = strings.ToLower(name)
	}
	return matchSegments(strings.Split(pattern, "/"), strings.Split(name, "/"))
}

func matchSegments(pattern, name []string) (bool, error) {
	for len(pattern) > 0 {
		if pattern[0] == "**" {
			rest := pattern[1:]
			for i := 0; i <= len(name); i++ {
				ok, err := matchSegments(rest, name[i:])
				if err != nil || ok {
					return ok, err
				}
			}
			return false, nil
		}
		if len(name) == 0 {
			return false, nil
		}
		ok, err := filepath.Match(pattern[0], name[0])
		if err != nil || !ok {
			return false, err
		}
		pattern, name = pattern[1:], name[1:]
	}
	return len(name) == 0, nil
}

// walkFiles visits every non-ignored regular file under dir.
func walkFiles(ctx context.Context, dir string, ignore *ignoreMatcher, fn func(path, rel string, d fs.DirEntry) error) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rel, relErr := filepath.Rel(dir, p)
		if relErr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if ignore.ignored(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		return fn(p, rel, d)
	})
}

// ListDirectoryTool lists the entries of one directory
type ListDirectoryTool struct {
	Workspace *Workspace
}

func (t *ListDirectoryTool) Name() string {
	return "list_directory"
}

func (t *ListDirectoryTool) Description() string {
	return "List the files and subdirectories directly within a directory. Directories are listed first and marked [DIR]."
}

func (t *ListDirectoryTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "The directory path to list (defaults to the project root).",
			},
			"ignore": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Glob patterns of entries to omit.",
			},
			"respect_git_ignore": map[string]any{
				"type":        "boolean",
				"description": "Skip entries listed in .gitignore (default: true).",
			},
		},
	}
}

func (t *ListDirectoryTool) Permission() PermissionLevel {
	return PermissionRead
}

func (t *ListDirectoryTool) Execute(ctx context.Context, input map[string]any) (string, error) {
	path := stringArg(input, "path")
	if path == "" {
		path = "."
	}

	absPath, err := t.Workspace.Resolve(path)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("failed to list directory %s: path not found", path)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("failed to list directory %s: path is not a directory", path)
	}

	entries, err := os.ReadDir(absPath)
	if err != nil {
		return "", fmt.Errorf("failed to list directory %s: %w", path, err)
	}

	ignore := newIgnoreMatcher(t.Workspace.Root(), stringSliceArg(input, "ignore"), boolArg(input, "respect_git_ignore", true))

	type entry struct {
		name  string
		isDir bool
	}
	var listed []entry
	for _, e := range entries {
		isDir := e.IsDir()
		if e.Type()&fs.ModeSymlink != 0 {
			if st, err := os.Stat(filepath.Join(absPath, e.Name())); err == nil {
				isDir = st.IsDir()
			}
		}
		if ignore.ignored(e.Name(), isDir) {
			continue
		}
		listed = append(listed, entry{name: e.Name(), isDir: isDir})
	}

	if len(listed) == 0 {
		return fmt.Sprintf("Directory %s is empty.", path), nil
	}

	sort.Slice(listed, func(i, j int) bool {
		if listed[i].isDir != listed[j].isDir {
			return listed[i].isDir
		}
		return listed[i].name < listed[j].name
	})

	var sb strings.Builder
	fmt.Fprintf(&sb, "Directory listing for %s:", path)
	for _, e := range listed {
		sb.WriteString("\n")
		if e.isDir {
			sb.WriteString("[DIR] ")
		}
		sb.WriteString(e.name)
	}
	return sb.String(), nil
}

// GlobTool finds files by glob pattern
type GlobTool struct {
	Workspace *Workspace
}

func (t *GlobTool) Name() string {
	return "glob"
}

func (t *GlobTool) Description() string {
	return "Find files matching a glob pattern such as 'src/**/*.go' or '*.md'. Results are sorted by modification time, newest first."
}

func (t *GlobTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"pattern": map[string]any{
				"type":        "string",
				"description": "The glob pattern to match against relative file paths. Supports '**'.",
			},
			"path": map[string]any{
				"type":        "string",
				"description": "Directory to search within (defaults to the project root).",
			},
			"case_sensitive": map[string]any{
				"type":        "boolean",
				"description": "Match case sensitively (default: false).",
			},
			"respect_git_ignore": map[string]any{
				"type":        "boolean",
				"description": "Skip files listed in .gitignore (default: true).",
			},
		},
		"required": []string{"pattern"},
	}
}

func (t *GlobTool) Permission() PermissionLevel {
	return PermissionRead
}

func (t *GlobTool) Execute(ctx context.Context, input map[string]any) (string, error) {
	pattern, err := requireString(input, "pattern")
	if err != nil {
		return "", err
	}
	path := stringArg(input, "path")
	if path == "" {
		path = "."
	}
	caseSensitive := boolArg(input, "case_sensitive", false)

	absPath, err := t.Workspace.Resolve(path)
	if err != nil {
		return "", err
	}
	if _, err := matchGlob(pattern, "probe", true); err != nil {
		return "", fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
	}

	ignore := newIgnoreMatcher(t.Workspace.Root(), nil, boolArg(input, "respect_git_ignore", true))

	// Patterns without a slash match at any depth.
	effective := pattern
	if !strings.Contains(pattern, "/") {
		effective = "**/" + pattern
	}

	type match struct {
		path  string
		mtime time.Time
	}
	var matches []match
	err = walkFiles(ctx, absPath, ignore, func(p, rel string, d fs.DirEntry) error {
		ok, _ := matchGlob(effective, rel, caseSensitive)
		if !ok {
			return nil
		}
		var mtime time.Time
		if info, err := d.Info(); err == nil {
			mtime = info.ModTime()
		}
		matches = append(matches, match{path: p, mtime: mtime})
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to find files with pattern %s: %w", pattern, err)
	}

	if len(matches) == 0 {
		return fmt.Sprintf("No files found matching %q within %s", pattern, path), nil
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].mtime.After(matches[j].mtime) })

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d file(s) matching %q within %s, sorted by modification time (newest first):", len(matches), pattern, path)
	for i, m := range matches {
		if i == maxGlobResults {
			fmt.Fprintf(&sb, "\n... (%d more)", len(matches)-maxGlobResults)
			break
		}
		sb.WriteString("\n")
		sb.WriteString(m.path)
	}
	return sb.String(), nil
}

// SearchFileContentTool searches file contents with a regular expression
type SearchFileContentTool struct {
	Workspace *Workspace
}

func (t *SearchFileContentTool) Name() string {
	return "search_file_content"
}

func (t *SearchFileContentTool) Description() string {
	return "Search for a regular expression in file contents. Returns matching lines grouped by file with line numbers."
}

func (t *SearchFileContentTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"pattern": map[string]any{
				"type":        "string",
				"description": "The regular expression (Go RE2 syntax) to search for.",
			},
			"path": map[string]any{
				"type":        "string",
				"description": "Directory to search within (defaults to the project root).",
			},
			"include": map[string]any{
				"type":        "string",
				"description": "Glob pattern restricting which files are searched (e.g. '*.go', 'src/**/*.ts').",
			},
		},
		"required": []string{"pattern"},
	}
}

func (t *SearchFileContentTool) Permission() PermissionLevel {
	return PermissionRead
}

func (t *SearchFileContentTool) Execute(ctx context.Context, input map[string]any) (string, error) {
	pattern, err := requireString(input, "pattern")
	if err != nil {
		return "", err
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", fmt.Errorf("invalid regular expression %q: %w", pattern, err)
	}

	path := stringArg(input, "path")
	if path == "" {
		path = "."
	}
	include := stringArg(input, "include")
	if include != "" && !strings.Contains(include, "/") {
		include = "**/" + include
	}

	absPath, err := t.Workspace.Resolve(path)
	if err != nil {
		return "", err
	}

	ignore := newIgnoreMatcher(t.Workspace.Root(), nil, true)

	type fileMatches struct {
		rel   string
		lines []string
	}
	var results []fileMatches
	total := 0

	err = walkFiles(ctx, absPath, ignore, func(p, rel string, d fs.DirEntry) error {
		if total >= maxSearchMatches {
			return filepath.SkipAll
		}
		if include != "" {
			if ok, _ := matchGlob(include, rel, false); !ok {
				return nil
			}
		}
		lines, err := grepFile(p, re, maxSearchMatches-total)
		if err != nil || len(lines) == 0 {
			return nil
		}
		total += len(lines)
		results = append(results, fileMatches{rel: rel, lines: lines})
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to search for pattern %s: %w", pattern, err)
	}

	filter := ""
	if s := stringArg(input, "include"); s != "" {
		filter = fmt.Sprintf(" (filter: %q)", s)
	}
	if total == 0 {
		return fmt.Sprintf("No matches found for pattern %q in path %q%s", pattern, path, filter), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d matches for pattern %q in path %q%s:\n---\n", total, pattern, path, filter)
	for _, r := range results {
		fmt.Fprintf(&sb, "File: %s\n%s\n---\n", r.rel, strings.Join(r.lines, "\n"))
	}
	if total >= maxSearchMatches {
		fmt.Fprintf(&sb, "(stopped after %d matches)", maxSearchMatches)
	}
	return strings.TrimSpace(sb.String()), nil
}

func grepFile(path string, re *regexp.Regexp, limit int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	head := make([]byte, 512)
	n, _ := f.Read(head)
	if isBinary(head[:n]) {
		return nil, nil
	}
	if _, err := f.Seek(0, 0); err != nil {
		return nil, err
	}

	var out []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if re.MatchString(line) {
			if len(line) > maxLineLength {
				line = line[:maxLineLength] + "..."
			}
			out = append(out, fmt.Sprintf("L%d: %s", lineNum, line))
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}
