package overlay

import (
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"

	"github.com/designforge/mimicry/internal/types"
)

const maxContextHTML = 2000

var mdConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(),
	),
)

// EditContext renders a selected element as a markdown snippet that can be
// prepended to a chat prompt asking for an edit to that element.
func EditContext(sel types.SelectedElement, component string) (string, error) {
	if strings.TrimSpace(sel.Path) == "" || strings.TrimSpace(sel.TagName) == "" {
		return "", fmt.Errorf("selection needs a path and a tag name")
	}

	var b strings.Builder
	if component != "" {
		fmt.Fprintf(&b, "Selected element in `%s`:\n\n", component)
	} else {
		b.WriteString("Selected element:\n\n")
	}
	fmt.Fprintf(&b, "- Element: `%s`\n", strings.ToLower(sel.TagName))
	if sel.Description != "" {
		fmt.Fprintf(&b, "- Description: %s\n", inlineCode(sel.Description))
	}
	fmt.Fprintf(&b, "- Path: %s\n", inlineCode(sel.Path))
	if text := strings.TrimSpace(sel.TextContent); text != "" {
		fmt.Fprintf(&b, "- Text: %q\n", text)
	}

	outer := strings.TrimSpace(sel.OuterHTML)
	if outer == "" {
		return b.String(), nil
	}
	if len(outer) > maxContextHTML {
		outer = outer[:maxContextHTML]
	}

	md, err := mdConverter.ConvertString(outer)
	if err != nil {
		return "", fmt.Errorf("convert selection markup: %w", err)
	}
	if md = strings.TrimSpace(md); md != "" {
		b.WriteString("\nRendered content:\n\n")
		for _, line := range strings.Split(md, "\n") {
			b.WriteString("> ")
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	b.WriteString("\nMarkup:\n\n```html\n")
	b.WriteString(outer)
	b.WriteString("\n```\n")
	return b.String(), nil
}

// inlineCode wraps s in a backtick run longer than any run inside it.
func inlineCode(s string) string {
	longest, run := 0, 0
	for _, r := range s {
		if r == '`' {
			run++
			if run > longest {
				longest = run
			}
		} else {
			run = 0
		}
	}
	fence := strings.Repeat("`", longest+1)
	if longest > 0 {
		return fence + " " + s + " " + fence
	}
	return fence + s + fence
}
