// Package highlight renders generated component source with syntax
// highlighting for the studio code tab and the terminal.
package highlight

import (
	"bytes"
	"fmt"
	"io"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/quick"
	"github.com/alecthomas/chroma/v2/styles"
)

const (
	// DefaultLanguage is used when no language or filename is given.
	DefaultLanguage = "tsx"
	// HTMLStyle matches the dark preview theme.
	HTMLStyle = "github-dark"
	// TerminalStyle is used by the CLI.
	TerminalStyle = "monokai"
)

func lexerFor(lang string) chroma.Lexer {
	if lang == "" {
		lang = DefaultLanguage
	}
	lexer := lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Match("component." + lang)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	return chroma.Coalesce(lexer)
}

// HTML returns code as a standalone highlighted HTML fragment with inline
// styles and line numbers.
func HTML(code, lang string) (string, error) {
	iterator, err := lexerFor(lang).Tokenise(nil, code)
	if err != nil {
		return "", fmt.Errorf("tokenise: %w", err)
	}

	formatter := html.New(
		html.WithClasses(false),
		html.WithLineNumbers(true),
		html.TabWidth(2),
	)

	var buf bytes.Buffer
	if err := formatter.Format(&buf, styles.Get(HTMLStyle), iterator); err != nil {
		return "", fmt.Errorf("format: %w", err)
	}
	return buf.String(), nil
}

// Terminal writes code to w with 256-color escape sequences.
func Terminal(w io.Writer, code, lang string) error {
	if lang == "" {
		lang = DefaultLanguage
	}
	return quick.Highlight(w, code, lang, "terminal256", TerminalStyle)
}
