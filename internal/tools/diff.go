package tools

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Previewer is implemented by tools that can describe their effect before running,
// so an approver sees what would change.
type Previewer interface {
	Preview(ctx context.Context, input map[string]any) (string, error)
}

// Preview returns the tool's preview when it has one.
func Preview(ctx context.Context, tool Tool, input map[string]any) string {
	p, ok := tool.(Previewer)
	if !ok {
		return ""
	}
	out, err := p.Preview(ctx, input)
	if err != nil {
		return fmt.Sprintf("(preview unavailable: %v)", err)
	}
	return out
}

// GenerateUnifiedDiff produces a unified diff between old and new content
// followed by an insertion/deletion summary. It returns "" when nothing changes.
func GenerateUnifiedDiff(filename, oldContent, newContent string, contextLines int) string {
	if contextLines <= 0 {
		contextLines = 3
	}

	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(oldContent),
		B:        difflib.SplitLines(newContent),
		FromFile: "a/" + filename,
		ToFile:   "b/" + filename,
		Context:  contextLines,
	}

	result, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return fmt.Sprintf("(diff generation failed: %v)", err)
	}
	if result == "" {
		return ""
	}

	adds, dels := 0, 0
	for _, line := range strings.Split(result, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			adds++
		case strings.HasPrefix(line, "-"):
			dels++
		}
	}

	return fmt.Sprintf("%s\n%d insertion(s), %d deletion(s)", strings.TrimRight(result, "\n"), adds, dels)
}

// Preview shows the diff write_file would apply.
func (t *WriteFileTool) Preview(ctx context.Context, input map[string]any) (string, error) {
	path, err := requireString(input, "file_path")
	if err != nil {
		return "", err
	}
	absPath, err := t.Workspace.ResolveForWrite(path)
	if err != nil {
		return "", err
	}
	content, _ := input["content"].(string)
	old, err := os.ReadFile(absPath)
	if err != nil && !os.IsNotExist(err) {
		return "", err
	}
	diff := GenerateUnifiedDiff(t.Workspace.Rel(absPath), string(old), content, 3)
	if diff == "" {
		return "(no changes)", nil
	}
	return diff, nil
}

// Preview shows the diff replace would apply, or why it would fail.
func (t *ReplaceTool) Preview(ctx context.Context, input map[string]any) (string, error) {
	path, err := requireString(input, "file_path")
	if err != nil {
		return "", err
	}
	absPath, err := t.Workspace.ResolveForWrite(path)
	if err != nil {
		return "", err
	}
	oldString, _ := input["old_string"].(string)
	newString, _ := input["new_string"].(string)

	content, err := os.ReadFile(absPath)
	if err != nil {
		if os.IsNotExist(err) && oldString == "" {
			return GenerateUnifiedDiff(t.Workspace.Rel(absPath), "", newString, 3), nil
		}
		return "", err
	}
	text := strings.ReplaceAll(string(content), "\r\n", "\n")
	if oldString == "" || !strings.Contains(text, oldString) {
		return "(old_string not found; the edit will fail)", nil
	}
	return GenerateUnifiedDiff(t.Workspace.Rel(absPath), text, strings.ReplaceAll(text, oldString, newString), 3), nil
}
