package tools

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWorkspace(t *testing.T) *Workspace {
	t.Helper()
	ws, err := NewWorkspace(t.TempDir())
	require.NoError(t, err)
	return ws
}

func writeTestFile(t *testing.T, ws *Workspace, rel, content string) string {
	t.Helper()
	p := filepath.Join(ws.Root(), filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func TestDefaultRegistry(t *testing.T) {
	r := NewDefaultRegistry(newTestWorkspace(t))

	expected := map[string]bool{
		"read_file":             false,
		"list_directory":        false,
		"glob":                  false,
		"search_file_content":   false,
		"write_file":            true,
		"replace":               true,
		"run_shell_command":     true,
		"web_fetch":             true,
		"create_feature_branch": true,
	}
	for name, gated := range expected {
		_, ok := r.Get(name)
		assert.True(t, ok, "expected tool %s to be registered", name)
		assert.Equal(t, gated, r.RequiresPermission(name), "permission requirement for %s", name)
	}
	assert.Len(t, r.List(), len(expected))
	assert.False(t, r.RequiresPermission("nonexistent"))
}

func TestRegistryDefinitionsSorted(t *testing.T) {
	r := NewDefaultRegistry(newTestWorkspace(t))
	r.Register(&CompressMemoryTool{})

	defs := r.Definitions()
	require.Len(t, defs, 10)
	for i, def := range defs {
		assert.NotEmpty(t, def.Description, def.Name)
		assert.NotNil(t, def.InputSchema, def.Name)
		if i > 0 {
			assert.Less(t, defs[i-1].Name, def.Name)
		}
	}
}

func TestRegistryExecuteUnknownTool(t *testing.T) {
	res := NewRegistry().Execute(context.Background(), "nope", nil)
	assert.False(t, res.Success)
	assert.Equal(t, "unknown tool: nope", res.Error)
}

type panicTool struct{ ReadFileTool }

func (panicTool) Name() string { return "boom" }

func (panicTool) Execute(context.Context, map[string]any) (string, error) {
	panic("kaboom")
}

func TestRunRecoversPanics(t *testing.T) {
	res := Run(context.Background(), &panicTool{}, nil)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "kaboom")
}

func TestResultContent(t *testing.T) {
	assert.Equal(t, "done", OK("done").Content())
	assert.Equal(t, "(no output)", OK("").Content())
	assert.Equal(t, "Error: bad", Fail(errors.New("bad")).Content())
	assert.Equal(t, "Error: x 1", Failf("x %d", 1).Content())
}

func TestThreadIDContext(t *testing.T) {
	_, ok := ThreadIDFromContext(context.Background())
	assert.False(t, ok)

	id, ok := ThreadIDFromContext(WithThreadID(context.Background(), "t-1"))
	assert.True(t, ok)
	assert.Equal(t, "t-1", id)
}

func TestReadFileTool(t *testing.T) {
	ws := newTestWorkspace(t)
	writeTestFile(t, ws, "a.txt", "line 1\nline 2\nline 3\n")
	tool := &ReadFileTool{Workspace: ws}
	ctx := context.Background()

	out, err := tool.Execute(ctx, map[string]any{"path": "a.txt"})
	require.NoError(t, err)
	assert.Equal(t, "line 1\nline 2\nline 3\n", out)

	out, err = tool.Execute(ctx, map[string]any{"path": "a.txt", "offset": float64(1), "limit": float64(1)})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "[File content truncated: showing lines 2-2 of 3 total lines."))
	assert.True(t, strings.HasSuffix(out, "line 2\n"))

	_, err = tool.Execute(ctx, map[string]any{"path": "missing.txt"})
	assert.ErrorContains(t, err, "file not found")

	_, err = tool.Execute(ctx, map[string]any{"path": "."})
	assert.ErrorContains(t, err, "directory")

	_, err = tool.Execute(ctx, map[string]any{})
	assert.ErrorContains(t, err, "path is required")
}

func TestReadFileToolRejectsBinaryAndOutsidePaths(t *testing.T) {
	ws := newTestWorkspace(t)
	writeTestFile(t, ws, "bin.dat", "abc\x00def")
	tool := &ReadFileTool{Workspace: ws}

	_, err := tool.Execute(context.Background(), map[string]any{"path": "bin.dat"})
	assert.ErrorContains(t, err, "binary")

	_, err = tool.Execute(context.Background(), map[string]any{"path": "../outside.txt"})
	assert.ErrorContains(t, err, "access denied")
}

func TestWriteFileTool(t *testing.T) {
	ws := newTestWorkspace(t)
	tool := &WriteFileTool{Workspace: ws}
	ctx := context.Background()

	out, err := tool.Execute(ctx, map[string]any{"file_path": "dir/new.txt", "content": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "Successfully created and wrote to new file: dir/new.txt", out)

	out, err = tool.Execute(ctx, map[string]any{"file_path": "dir/new.txt", "content": "bye"})
	require.NoError(t, err)
	assert.Equal(t, "Successfully overwrote file: dir/new.txt", out)

	data, err := os.ReadFile(filepath.Join(ws.Root(), "dir", "new.txt"))
	require.NoError(t, err)
	assert.Equal(t, "bye", string(data))

	_, err = tool.Execute(ctx, map[string]any{"file_path": "x.txt"})
	assert.ErrorContains(t, err, "content is required")
}

func TestWriteFileToolRefusesSymlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	ws := newTestWorkspace(t)
	target := writeTestFile(t, ws, "target.txt", "orig")
	require.NoError(t, os.Symlink(target, filepath.Join(ws.Root(), "link.txt")))

	_, err := (&WriteFileTool{Workspace: ws}).Execute(context.Background(), map[string]any{"file_path": "link.txt", "content": "x"})
	assert.ErrorContains(t, err, "symlink")
}

func TestReplaceTool(t *testing.T) {
	ws := newTestWorkspace(t)
	p := writeTestFile(t, ws, "code.go", "foo bar foo\n")
	tool := &ReplaceTool{Workspace: ws}
	ctx := context.Background()

	_, err := tool.Execute(ctx, map[string]any{"file_path": "code.go", "old_string": "foo", "new_string": "baz"})
	assert.ErrorContains(t, err, "expected 1 occurrence(s) but found 2")

	_, err = tool.Execute(ctx, map[string]any{"file_path": "code.go", "old_string": "qux", "new_string": "baz"})
	assert.ErrorContains(t, err, "0 occurrences found")

	out, err := tool.Execute(ctx, map[string]any{
		"file_path": "code.go", "old_string": "foo", "new_string": "baz", "expected_replacements": float64(2),
	})
	require.NoError(t, err)
	assert.Equal(t, "Successfully modified file: code.go (2 replacements).", out)

	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "baz bar baz\n", string(data))
}

func TestReplaceToolCreatesFileWithEmptyOldString(t *testing.T) {
	ws := newTestWorkspace(t)
	tool := &ReplaceTool{Workspace: ws}
	ctx := context.Background()

	out, err := tool.Execute(ctx, map[string]any{"file_path": "fresh.txt", "old_string": "", "new_string": "content"})
	require.NoError(t, err)
	assert.Contains(t, out, "Created new file: fresh.txt")

	_, err = tool.Execute(ctx, map[string]any{"file_path": "fresh.txt", "old_string": "", "new_string": "again"})
	assert.ErrorContains(t, err, "file already exists")
}

func TestReplacePreview(t *testing.T) {
	ws := newTestWorkspace(t)
	writeTestFile(t, ws, "p.txt", "alpha\nbeta\n")
	tool := &ReplaceTool{Workspace: ws}

	preview := Preview(context.Background(), tool, map[string]any{"file_path": "p.txt", "old_string": "beta", "new_string": "gamma"})
	assert.Contains(t, preview, "-beta")
	assert.Contains(t, preview, "+gamma")
	assert.Contains(t, preview, "1 insertion(s), 1 deletion(s)")

	assert.Empty(t, Preview(context.Background(), &ReadFileTool{Workspace: ws}, nil))
}

func TestListDirectoryTool(t *testing.T) {
	ws := newTestWorkspace(t)
	writeTestFile(t, ws, "b.txt", "")
	writeTestFile(t, ws, "a.txt", "")
	writeTestFile(t, ws, "sub/c.txt", "")
	writeTestFile(t, ws, "debug.log", "")
	writeTestFile(t, ws, "node_modules/x/index.js", "")
	tool := &ListDirectoryTool{Workspace: ws}

	out, err := tool.Execute(context.Background(), map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "Directory listing for .:\n[DIR] sub\na.txt\nb.txt", out)

	out, err = tool.Execute(context.Background(), map[string]any{"ignore": []any{"a.*"}})
	require.NoError(t, err)
	assert.NotContains(t, out, "a.txt")

	_, err = tool.Execute(context.Background(), map[string]any{"path": "a.txt"})
	assert.ErrorContains(t, err, "not a directory")
}

func TestListDirectoryRespectsGitIgnore(t *testing.T) {
	ws := newTestWorkspace(t)
	writeTestFile(t, ws, ".gitignore", "# comment\ndist/\nsecret.env\n")
	writeTestFile(t, ws, "dist/out.js", "")
	writeTestFile(t, ws, "secret.env", "")
	writeTestFile(t, ws, "main.go", "")
	tool := &ListDirectoryTool{Workspace: ws}

	out, err := tool.Execute(context.Background(), map[string]any{})
	require.NoError(t, err)
	assert.NotContains(t, out, "dist")
	assert.NotContains(t, out, "secret.env")

	out, err = tool.Execute(context.Background(), map[string]any{"respect_git_ignore": false})
	require.NoError(t, err)
	assert.Contains(t, out, "[DIR] dist")
}

func TestGlobTool(t *testing.T) {
	ws := newTestWorkspace(t)
	old := writeTestFile(t, ws, "pkg/old.go", "")
	writeTestFile(t, ws, "pkg/deep/new.go", "")
	writeTestFile(t, ws, "README.md", "")
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))
	tool := &GlobTool{Workspace: ws}

	out, err := tool.Execute(context.Background(), map[string]any{"pattern": "**/*.go"})
	require.NoError(t, err)
	assert.Contains(t, out, "Found 2 file(s)")
	assert.Less(t, strings.Index(out, "new.go"), strings.Index(out, "old.go"), "newest first")
	assert.NotContains(t, out, "README.md")

	out, err = tool.Execute(context.Background(), map[string]any{"pattern": "readme.MD"})
	require.NoError(t, err)
	assert.Contains(t, out, "README.md")

	out, err = tool.Execute(context.Background(), map[string]any{"pattern": "readme.MD", "case_sensitive": true})
	require.NoError(t, err)
	assert.Contains(t, out, "No files found")
}

func TestMatchGlob(t *testing.T) {
	cases := []struct {
		pattern, name string
		want          bool
	}{
		{"*.go", "main.go", true},
		{"**/*.go", "main.go", true},
		{"**/*.go", "a/b/c.go", true},
		{"src/**/test/*.ts", "src/x/y/test/a.ts", true},
		{"src/*.ts", "src/x/a.ts", false},
		{"docs/**", "docs/a/b.md", true},
	}
	for _, tc := range cases {
		got, err := matchGlob(tc.pattern, tc.name, true)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "%s vs %s", tc.pattern, tc.name)
	}
}

func TestSearchFileContentTool(t *testing.T) {
	ws := newTestWorkspace(t)
	writeTestFile(t, ws, "a.go", "package a\nfunc Hello() {}\n")
	writeTestFile(t, ws, "b.txt", "hello world\n")
	tool := &SearchFileContentTool{Workspace: ws}
	ctx := context.Background()

	out, err := tool.Execute(ctx, map[string]any{"pattern": "(?i)hello"})
	require.NoError(t, err)
	assert.Contains(t, out, `Found 2 matches for pattern "(?i)hello"`)
	assert.Contains(t, out, "File: a.go\nL2: func Hello() {}")
	assert.Contains(t, out, "File: b.txt\nL1: hello world")

	out, err = tool.Execute(ctx, map[string]any{"pattern": "(?i)hello", "include": "*.go"})
	require.NoError(t, err)
	assert.Contains(t, out, "Found 1 matches")
	assert.Contains(t, out, `(filter: "*.go")`)

	out, err = tool.Execute(ctx, map[string]any{"pattern": "absent"})
	require.NoError(t, err)
	assert.Contains(t, out, "No matches found")

	_, err = tool.Execute(ctx, map[string]any{"pattern": "("})
	assert.ErrorContains(t, err, "invalid regular expression")
}

func TestShellTool(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses bash")
	}
	ws := newTestWorkspace(t)
	tool := &ShellTool{Workspace: ws}
	ctx := context.Background()

	out, err := tool.Execute(ctx, map[string]any{"command": "echo hi && echo $BERKELIUM_CLI"})
	require.NoError(t, err)
	assert.Contains(t, out, "Command: echo hi && echo $BERKELIUM_CLI")
	assert.Contains(t, out, "Stdout: hi\n1")
	assert.Contains(t, out, "Exit Code: 0")

	out, err = tool.Execute(ctx, map[string]any{"command": "echo oops >&2; exit 3"})
	require.NoError(t, err)
	assert.Contains(t, out, "Stderr: oops")
	assert.Contains(t, out, "Exit Code: 3")

	_, err = tool.Execute(ctx, map[string]any{"command": "rm -rf /"})
	assert.ErrorContains(t, err, "cancelled")
}

func TestShellToolTimeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses bash")
	}
	tool := &ShellTool{Workspace: newTestWorkspace(t), Timeout: 100 * time.Millisecond}

	out, err := tool.Execute(context.Background(), map[string]any{"command": "sleep 5"})
	require.NoError(t, err)
	assert.Contains(t, out, "Command timed out after 100ms")
}

type fakeCompressor struct {
	gotThread string
	summary   string
	err       error
}

func (f *fakeCompressor) Compress(_ context.Context, threadID string) (string, error) {
	f.gotThread = threadID
	return f.summary, f.err
}

func TestCompressMemoryTool(t *testing.T) {
	fc := &fakeCompressor{summary: "we fixed the bug"}
	tool := &CompressMemoryTool{Compressor: fc}

	out, err := tool.Execute(WithThreadID(context.Background(), "thread-7"), map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "thread-7", fc.gotThread)
	assert.Contains(t, out, "we fixed the bug")

	_, err = tool.Execute(context.Background(), map[string]any{"thread_id": "explicit"})
	require.NoError(t, err)
	assert.Equal(t, "explicit", fc.gotThread)

	_, err = tool.Execute(context.Background(), map[string]any{})
	assert.ErrorContains(t, err, "no thread ID")

	fc.err = errors.New("No conversation history found to compress")
	_, err = tool.Execute(context.Background(), map[string]any{"thread_id": "x"})
	assert.ErrorContains(t, err, "No conversation history found to compress")
}

func TestNextFeatureNumber(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, 1, nextFeatureNumber(dir))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "001-first"), 0755))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "012-later"), 0755))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "notes"), 0755))
	assert.Equal(t, 13, nextFeatureNumber(dir))
}
