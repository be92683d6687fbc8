// Package highlight colors fenced code blocks in model answers.
package highlight

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// DefaultStyle is the chroma style used by New.
const DefaultStyle = "monokai"

// Highlighter provides syntax highlighting for code blocks
type Highlighter struct {
	enabled   bool
	formatter chroma.Formatter
	style     *chroma.Style
}

// New creates a highlighter with the default style.
func New(enabled bool) *Highlighter {
	return NewWithStyle(enabled, DefaultStyle)
}

// NewWithStyle creates a highlighter with a named chroma style. Unknown names
// fall back to chroma's default style.
func NewWithStyle(enabled bool, style string) *Highlighter {
	return &Highlighter{
		enabled:   enabled,
		formatter: formatters.Get("terminal256"),
		style:     styles.Get(style),
	}
}

// Enabled reports whether output is colored.
func (h *Highlighter) Enabled() bool {
	return h.enabled
}

// Highlight colors code. An empty language is guessed from the content.
func (h *Highlighter) Highlight(code, language string) string {
	if !h.enabled {
		return code
	}

	var lexer chroma.Lexer
	if language != "" {
		lexer = lexers.Get(language)
	}
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}

	iterator, err := chroma.Coalesce(lexer).Tokenise(nil, code)
	if err != nil {
		return code
	}
	var buf bytes.Buffer
	if err := h.formatter.Format(&buf, h.style, iterator); err != nil {
		return code
	}
	return buf.String()
}

// codeBlockRegex matches fenced code blocks with an optional language tag.
var codeBlockRegex = regexp.MustCompile("(?s)```([\\w+#.-]*)[ \\t]*\\n(.*?)```")

// HighlightMarkdownCodeBlocks replaces each fenced block with its highlighted
// code, preceded by a dim language label when one is given.
func (h *Highlighter) HighlightMarkdownCodeBlocks(text string) string {
	if !h.enabled {
		return text
	}

	return codeBlockRegex.ReplaceAllStringFunc(text, func(match string) string {
		parts := codeBlockRegex.FindStringSubmatch(match)
		language := parts[1]
		code := strings.TrimSuffix(parts[2], "\n")

		highlighted := h.Highlight(code, language)
		if language == "" {
			return highlighted
		}
		return "\033[2m" + language + "\033[0m\n" + highlighted
	})
}
