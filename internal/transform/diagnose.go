package transform

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
)

// Dialect selects the grammar Diagnose parses with.
type Dialect int

const (
	// DialectJSX checks transformed output: any TypeScript syntax left
	// behind shows up as an error.
	DialectJSX Dialect = iota
	// DialectTSX checks raw generated source.
	DialectTSX
)

func (d Dialect) String() string {
	if d == DialectTSX {
		return "tsx"
	}
	return "jsx"
}

// SyntaxIssue is one error or missing node reported by the parser.
type SyntaxIssue struct {
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Missing bool   `json:"missing,omitempty"`
	Snippet string `json:"snippet"`
}

func (i SyntaxIssue) String() string {
	kind := "syntax error"
	if i.Missing {
		kind = "missing " + i.Snippet
	}
	return fmt.Sprintf("%d:%d: %s near %q", i.Line, i.Column, kind, i.Snippet)
}

// Diagnostics summarises a parse.
type Diagnostics struct {
	Dialect Dialect       `json:"-"`
	Issues  []SyntaxIssue `json:"issues"`
	// Declarations are the top-level function, class and variable names.
	Declarations []string `json:"declarations"`
}

// OK reports whether the parse produced no issues.
func (d *Diagnostics) OK() bool { return len(d.Issues) == 0 }

// Declares reports whether name is declared at top level.
func (d *Diagnostics) Declares(name string) bool {
	for _, decl := range d.Declarations {
		if decl == name {
			return true
		}
	}
	return false
}

const declarationQuery = `
(program (function_declaration name: (_) @name))
(program (class_declaration name: (_) @name))
(program (lexical_declaration (variable_declarator name: (identifier) @name)))
(program (variable_declaration (variable_declarator name: (identifier) @name)))
(program (export_statement declaration: (function_declaration name: (_) @name)))
`

const maxSnippet = 40

// Diagnose parses src and reports syntax errors and top-level declarations.
// It only observes; Transform output is never altered by it.
func Diagnose(ctx context.Context, src string, dialect Dialect) (*Diagnostics, error) {
	lang := javascript.GetLanguage()
	if dialect == DialectTSX {
		lang = tsx.GetLanguage()
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	source := []byte(src)
	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", dialect, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	diag := &Diagnostics{Dialect: dialect}
	if root.HasError() {
		collectIssues(root, source, diag)
	}

	query, err := sitter.NewQuery([]byte(declarationQuery), lang)
	if err != nil {
		return nil, fmt.Errorf("compile declaration query: %w", err)
	}
	defer query.Close()

	cursor := sitter.NewQueryCursor()
	defer cursor.Close()
	cursor.Exec(query, root)

	for {
		match, ok := cursor.NextMatch()
		if !ok {
			break
		}
		for _, c := range match.Captures {
			diag.Declarations = append(diag.Declarations, c.Node.Content(source))
		}
	}

	return diag, nil
}

func collectIssues(n *sitter.Node, source []byte, diag *Diagnostics) {
	if n.IsMissing() || n.Type() == "ERROR" {
		p := n.StartPoint()
		snippet := n.Content(source)
		if n.IsMissing() {
			snippet = n.Type()
		}
		if i := strings.IndexByte(snippet, '\n'); i >= 0 {
			snippet = snippet[:i]
		}
		if len(snippet) > maxSnippet {
			snippet = snippet[:maxSnippet]
		}
		diag.Issues = append(diag.Issues, SyntaxIssue{
			Line:    int(p.Row) + 1,
			Column:  int(p.Column) + 1,
			Missing: n.IsMissing(),
			Snippet: snippet,
		})
		if n.Type() == "ERROR" {
			return
		}
	}

	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child != nil && (child.HasError() || child.IsMissing()) {
			collectIssues(child, source, diag)
		}
	}
}
