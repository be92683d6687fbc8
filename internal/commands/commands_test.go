package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	berrors "github.com/BerkeliumLabs/berkelium/internal/errors"
)

func TestParse(t *testing.T) {
	cases := []struct {
		input string
		want  Parsed
	}{
		{"/clear", Parsed{Command: "clear"}},
		{"/clear   ", Parsed{Command: "clear"}},
		{"/init  my web app ", Parsed{Command: "init", Arguments: "my web app"}},
		{"/ spaced", Parsed{Command: "spaced"}},
		{"/init\tfoo", Parsed{Command: "init", Arguments: "foo"}},
		{"/init\nline one\nline two", Parsed{Command: "init", Arguments: "line one\nline two"}},
	}
	for _, tc := range cases {
		got, err := Parse(tc.input)
		require.NoError(t, err, tc.input)
		assert.Equal(t, tc.want, got, tc.input)
	}

	_, err := Parse("clear")
	require.Error(t, err)
	assert.True(t, berrors.HasCode(err, berrors.CodeInvalidCommandFormat))
}

func TestInterpolate(t *testing.T) {
	assert.Equal(t, "Clear extra args now", Interpolate("Clear $ARGUMENTS now", "extra args"))
	assert.Equal(t, "Clear  now", Interpolate("Clear $ARGUMENTS now", ""))
	assert.Equal(t, "x x", Interpolate("$ARGUMENTS $ARGUMENTS", "x"))
	assert.Equal(t, "no placeholder", Interpolate("no placeholder", "ignored"))
}

func TestCatalogResolve(t *testing.T) {
	catalog := NewCatalog(Command{Name: "clear", Prompt: "Clear the conversation"})

	got, err := catalog.Resolve("/clear")
	require.NoError(t, err)
	assert.Equal(t, "Clear the conversation", got)

	catalog = NewCatalog(Command{Name: "clear", Prompt: "Clear $ARGUMENTS now"})
	got, err = catalog.Resolve("/clear extra args")
	require.NoError(t, err)
	assert.Equal(t, "Clear extra args now", got)

	_, err = catalog.Resolve("/nonexistent")
	require.Error(t, err)
	assert.True(t, berrors.HasCode(err, berrors.CodeUnknownCommand))
	assert.Contains(t, berrors.UserMessage(err), "clear")
}

func TestCatalogResolveSuggests(t *testing.T) {
	catalog := NewCatalog(Builtins()...)

	_, err := catalog.Resolve("/cmprs")
	require.Error(t, err)
	msg := berrors.UserMessage(err)
	assert.Contains(t, msg, "Available commands: clear, compress, init")
	assert.Contains(t, msg, "Did you mean /compress?")
}

func TestCatalogIsImmutableAndSorted(t *testing.T) {
	cmds := []Command{
		{Name: "zeta", Prompt: "z", Description: "last"},
		{Name: "alpha", Prompt: "a", Description: "first"},
		{Name: "empty"},
		{Prompt: "nameless"},
		{Name: "alpha", Prompt: "override", Description: "first"},
	}
	catalog := NewCatalog(cmds...)
	cmds[0].Prompt = "mutated"

	assert.Equal(t, []string{"alpha", "zeta"}, catalog.Names())
	alpha, ok := catalog.Get("alpha")
	require.True(t, ok)
	assert.Equal(t, "override", alpha.Prompt)
	zeta, _ := catalog.Get("zeta")
	assert.Equal(t, "z", zeta.Prompt)

	names := catalog.Names()
	names[0] = "changed"
	assert.Equal(t, "alpha", catalog.Names()[0])

	assert.Equal(t, []Option{
		{Label: "/alpha - first", Value: "/alpha"},
		{Label: "/zeta - last", Value: "/zeta"},
	}, catalog.Options())
}

func writeCommand(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestLoaderCatalog(t *testing.T) {
	dir := t.TempDir()
	writeCommand(t, dir, "review.md", "---\nname: review\ndescription: Review code\n---\nReview $ARGUMENTS carefully.\n")
	writeCommand(t, dir, "plain.md", "Explain the project layout.")
	writeCommand(t, dir, "clear.md", "---\ndescription: Custom clear\n---\nCustom clear prompt")
	writeCommand(t, dir, "notes.txt", "ignored")
	writeCommand(t, dir, "broken.md", "---\nname: [unclosed\n---\nbody")
	writeCommand(t, dir, "empty.md", "---\nname: empty\n---\n")

	core, logs := observer.New(zap.WarnLevel)
	catalog := NewLoader(zap.New(core), dir, filepath.Join(dir, "missing")).Catalog()

	assert.Equal(t, []string{"clear", "compress", "init", "plain", "review"}, catalog.Names())

	review, ok := catalog.Get("review")
	require.True(t, ok)
	assert.Equal(t, "Review code", review.Description)
	assert.Equal(t, filepath.Join(dir, "review.md"), review.Source)

	got, err := catalog.Resolve("/review main.go")
	require.NoError(t, err)
	assert.Equal(t, "Review main.go carefully.", got)

	clearCmd, _ := catalog.Get("clear")
	assert.Equal(t, "Custom clear prompt", clearCmd.Prompt)

	plain, _ := catalog.Get("plain")
	assert.Equal(t, "Explain the project layout.", plain.Prompt)

	assert.Equal(t, 2, logs.FilterMessage("failed to load command").Len())
}

func TestBuiltins(t *testing.T) {
	catalog := NewCatalog(Builtins()...)

	got, err := catalog.Resolve("/init a CLI tool")
	require.NoError(t, err)
	assert.Contains(t, got, "project scope: a CLI tool")
	assert.NotContains(t, got, ArgumentsPlaceholder)

	got, err = catalog.Resolve("/compress")
	require.NoError(t, err)
	assert.Contains(t, got, "compress_memory")
}
