package tools

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultReadLimit = 2000
	maxLineLength    = 2000
	binarySniffBytes = 8192
)

// ReadFileTool reads file contents
type ReadFileTool struct {
	Workspace *Workspace
}

func (t *ReadFileTool) Name() string {
	return "read_file"
}

func (t *ReadFileTool) Description() string {
	return "Read the contents of a text file. Large files are paginated: use offset and limit to read further sections."
}

func (t *ReadFileTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "The path to the file to read (relative to the project root or absolute).",
			},
			"offset": map[string]any{
				"type":        "integer",
				"description": "Optional: 0-based line number to start reading from.",
			},
			"limit": map[string]any{
				"type":        "integer",
				"description": "Optional: maximum number of lines to read (default: 2000).",
			},
		},
		"required": []string{"path"},
	}
}

func (t *ReadFileTool) Permission() PermissionLevel {
	return PermissionRead
}

func (t *ReadFileTool) Execute(ctx context.Context, input map[string]any) (string, error) {
	path, err := requireString(input, "path")
	if err != nil {
		return "", err
	}

	absPath, err := t.Workspace.Resolve(path)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("file not found: %s", path)
		}
		return "", fmt.Errorf("cannot access file: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("path is a directory, not a file: %s", path)
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	if isBinary(content) {
		return "", fmt.Errorf("cannot display content of binary file: %s", path)
	}

	offset := intArg(input, "offset", 0)
	limit := intArg(input, "limit", defaultReadLimit)
	if offset < 0 {
		return "", fmt.Errorf("offset must be a non-negative number")
	}
	if limit <= 0 {
		return "", fmt.Errorf("limit must be a positive number")
	}

	lines := strings.Split(string(content), "\n")
	if len(lines) > 1 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	total := len(lines)
	if offset >= total && total > 0 {
		return "", fmt.Errorf("offset %d is beyond the end of the file (%d lines)", offset, total)
	}

	end := min(offset+limit, total)
	var sb strings.Builder
	linesTruncated := false
	for _, line := range lines[offset:end] {
		if len(line) > maxLineLength {
			line = line[:maxLineLength] + "... [truncated]"
			linesTruncated = true
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	if offset > 0 || end < total {
		return fmt.Sprintf("[File content truncated: showing lines %d-%d of %d total lines. Use offset/limit parameters to view more.]\n%s",
			offset+1, end, total, sb.String()), nil
	}
	if linesTruncated {
		return fmt.Sprintf("[File content partially truncated: some lines exceeded maximum length of %d characters.]\n%s", maxLineLength, sb.String()), nil
	}
	return sb.String(), nil
}

func isBinary(content []byte) bool {
	sniff := content
	if len(sniff) > binarySniffBytes {
		sniff = sniff[:binarySniffBytes]
	}
	return bytes.IndexByte(sniff, 0) >= 0
}

// WriteFileTool writes content to a file
type WriteFileTool struct {
	Workspace *Workspace
}

func (t *WriteFileTool) Name() string {
	return "write_file"
}

func (t *WriteFileTool) Description() string {
	return "Write content to a file. Creates the file if it doesn't exist, or overwrites if it does. Creates parent directories as needed."
}

func (t *WriteFileTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"file_path": map[string]any{
				"type":        "string",
				"description": "The path to the file to write (relative to the project root or absolute).",
			},
			"content": map[string]any{
				"type":        "string",
				"description": "The content to write to the file.",
			},
		},
		"required": []string{"file_path", "content"},
	}
}

func (t *WriteFileTool) Permission() PermissionLevel {
	return PermissionWrite
}

func (t *WriteFileTool) Execute(ctx context.Context, input map[string]any) (string, error) {
	path, err := requireString(input, "file_path")
	if err != nil {
		return "", err
	}
	content, ok := input["content"].(string)
	if !ok {
		return "", fmt.Errorf("content is required")
	}

	absPath, err := t.Workspace.ResolveForWrite(path)
	if err != nil {
		return "", err
	}

	existed := false
	if info, err := os.Stat(absPath); err == nil {
		if info.IsDir() {
			return "", fmt.Errorf("path is a directory, not a file: %s", path)
		}
		existed = true
	}

	if err := t.Workspace.writeFile(absPath, content); err != nil {
		return "", fmt.Errorf("failed to write file %s: %w", path, err)
	}

	if existed {
		return fmt.Sprintf("Successfully overwrote file: %s", path), nil
	}
	return fmt.Sprintf("Successfully created and wrote to new file: %s", path), nil
}

// writeFile creates parent directories and writes content without following symlinks.
func (w *Workspace) writeFile(absPath, content string) error {
	if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}
	f, err := w.openNoFollow(absPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReplaceTool performs targeted edits on a file
type ReplaceTool struct {
	Workspace *Workspace
}

func (t *ReplaceTool) Name() string {
	return "replace"
}

func (t *ReplaceTool) Description() string {
	return "Replace text within a file. Replaces exactly expected_replacements occurrences of old_string (default 1). " +
		"Include enough surrounding context in old_string to make the match unique. An empty old_string creates a new file."
}

func (t *ReplaceTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"file_path": map[string]any{
				"type":        "string",
				"description": "The path to the file to modify.",
			},
			"old_string": map[string]any{
				"type":        "string",
				"description": "The exact literal text to replace.",
			},
			"new_string": map[string]any{
				"type":        "string",
				"description": "The exact literal text to replace old_string with.",
			},
			"expected_replacements": map[string]any{
				"type":        "integer",
				"description": "Number of replacements expected (default: 1).",
				"minimum":     1,
			},
		},
		"required": []string{"file_path", "old_string", "new_string"},
	}
}

func (t *ReplaceTool) Permission() PermissionLevel {
	return PermissionWrite
}

func (t *ReplaceTool) Execute(ctx context.Context, input map[string]any) (string, error) {
	path, err := requireString(input, "file_path")
	if err != nil {
		return "", err
	}
	oldString, ok := input["old_string"].(string)
	if !ok {
		return "", fmt.Errorf("old_string is required")
	}
	newString, ok := input["new_string"].(string)
	if !ok {
		return "", fmt.Errorf("new_string is required")
	}
	expected := intArg(input, "expected_replacements", 1)
	if expected < 1 {
		return "", fmt.Errorf("expected_replacements must be at least 1")
	}

	absPath, err := t.Workspace.ResolveForWrite(path)
	if err != nil {
		return "", err
	}

	content, err := os.ReadFile(absPath)
	switch {
	case err != nil && os.IsNotExist(err):
		if oldString != "" {
			return "", fmt.Errorf("file not found: %s. Use an empty old_string to create a new file", path)
		}
		if err := t.Workspace.writeFile(absPath, newString); err != nil {
			return "", fmt.Errorf("failed to create file %s: %w", path, err)
		}
		return fmt.Sprintf("Created new file: %s with provided content.", path), nil
	case err != nil:
		return "", fmt.Errorf("failed to read file: %w", err)
	case oldString == "":
		return "", fmt.Errorf("cannot create file %s: file already exists", path)
	}

	text := strings.ReplaceAll(string(content), "\r\n", "\n")
	count := strings.Count(text, oldString)
	if count == 0 {
		return "", fmt.Errorf("failed to edit, 0 occurrences found of the specified old_string in %s", path)
	}
	if count != expected {
		return "", fmt.Errorf("failed to edit, expected %d occurrence(s) but found %d in %s", expected, count, path)
	}

	updated := strings.ReplaceAll(text, oldString, newString)
	if err := t.Workspace.writeFile(absPath, updated); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return fmt.Sprintf("Successfully modified file: %s (%d replacements).", path, count), nil
}
