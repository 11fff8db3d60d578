// Package preview synthesizes the self-contained HTML document that renders
// one transformed component in the browser.
//
// The document is assembled in a fixed order: header (styles and CDN
// links), runtime harness (React, Babel, primitive stubs, icon factory,
// motion stand-ins), icon aliases, the component body, a deferred mount and
// a watchdog. Component source is only ever written into the Babel script
// body and never interpreted as template text.
package preview

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/designforge/mimicry/internal/transform"
)

const (
	// DefaultMountDelay lets the harness finish defining globals before the
	// component is mounted.
	DefaultMountDelay = 100 * time.Millisecond
	// DefaultRenderTimeout is how long the loading placeholder may remain
	// before the watchdog replaces it with a timeout panel.
	DefaultRenderTimeout = 5 * time.Second

	// PlaceholderAttr marks the initial loading element so the watchdog
	// ignores any .loading elements the component renders itself.
	PlaceholderAttr = "data-preview-placeholder"
)

// CDN assets loaded by every preview document.
const (
	TailwindURL   = "https://cdn.tailwindcss.com"
	InterFontURL  = "https://fonts.googleapis.com/css2?family=Inter:wght@300;400;500;600;700&display=swap"
	IconFontURL   = "https://fonts.googleapis.com/css2?family=Material+Symbols+Outlined:opsz,wght,FILL,GRAD@20..48,100..700,0..1,-50..200"
	ReactURL      = "https://unpkg.com/react@18/umd/react.development.js"
	ReactDOMURL   = "https://unpkg.com/react-dom@18/umd/react-dom.development.js"
	BabelURL      = "https://unpkg.com/@babel/standalone/babel.min.js"
	reactHookDecl = "const { useState, useEffect, useRef, useMemo, useCallback, useContext, useReducer, useLayoutEffect, useId, createContext, forwardRef, memo, Fragment } = React;"
)

var (
	//go:embed assets/harness.js
	harnessJS string

	//go:embed assets/theme.css
	themeCSS string

	titlePolicy = bluemonday.StrictPolicy()

	identifierPattern = regexp.MustCompile(`^[A-Za-z_$][\w$]*$`)
	scriptClose       = regexp.MustCompile(`(?i)</script`)
)

// Input is everything needed to build one preview document.
type Input struct {
	BrowserSource     string
	RootComponentName string
	// DisplayName is shown in the title and the loading placeholder.
	DisplayName string
	Icons       []transform.IconBinding

	MountDelay    time.Duration
	RenderTimeout time.Duration
}

// Synthesize returns the complete preview document for in.
func Synthesize(in Input) string {
	root := in.RootComponentName
	if !identifierPattern.MatchString(root) {
		root = transform.FallbackComponentName
	}
	display := in.DisplayName
	if strings.TrimSpace(display) == "" {
		display = root
	}
	mountDelay := in.MountDelay
	if mountDelay <= 0 {
		mountDelay = DefaultMountDelay
	}
	timeout := in.RenderTimeout
	if timeout <= 0 {
		timeout = DefaultRenderTimeout
	}

	safeDisplay := titlePolicy.Sanitize(display)

	var b strings.Builder
	b.Grow(len(in.BrowserSource) + len(harnessJS) + len(themeCSS) + 32*1024)

	writeHeader(&b, safeDisplay)
	writeHarness(&b)

	b.WriteString(`<script type="text/babel" data-presets="react">` + "\n")
	b.WriteString(reactHookDecl + "\n")
	b.WriteString(IconAliases(in.Icons))
	// The body and mount share a block so component declarations shadow
	// the hook and icon bindings above instead of redeclaring them.
	b.WriteString("{\n")
	b.WriteString(escapeScriptBody(in.BrowserSource))
	b.WriteString("\n\n")
	writeMount(&b, root, mountDelay)
	b.WriteString("}\n</script>\n")

	writeWatchdog(&b, root, timeout)
	b.WriteString("</body>\n</html>\n")
	return b.String()
}

func writeHeader(b *strings.Builder, safeDisplay string) {
	b.WriteString("<!DOCTYPE html>\n")
	b.WriteString(`<html lang="en" class="dark">` + "\n<head>\n")
	b.WriteString(`<meta charset="UTF-8">` + "\n")
	b.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1.0">` + "\n")
	fmt.Fprintf(b, "<title>%s - Preview</title>\n", safeDisplay)
	fmt.Fprintf(b, "<script src=\"%s\"></script>\n", TailwindURL)
	b.WriteString(`<script>tailwind.config = { darkMode: 'class', theme: { extend: { colors: {` +
		` border: 'hsl(var(--border))', input: 'hsl(var(--input))', ring: 'hsl(var(--ring))',` +
		` background: 'hsl(var(--background))', foreground: 'hsl(var(--foreground))',` +
		` primary: { DEFAULT: 'hsl(var(--primary))', foreground: 'hsl(var(--primary-foreground))' },` +
		` secondary: { DEFAULT: 'hsl(var(--secondary))', foreground: 'hsl(var(--secondary-foreground))' },` +
		` destructive: { DEFAULT: 'hsl(var(--destructive))', foreground: 'hsl(var(--destructive-foreground))' },` +
		` muted: { DEFAULT: 'hsl(var(--muted))', foreground: 'hsl(var(--muted-foreground))' },` +
		` accent: { DEFAULT: 'hsl(var(--accent))', foreground: 'hsl(var(--accent-foreground))' },` +
		` popover: { DEFAULT: 'hsl(var(--popover))', foreground: 'hsl(var(--popover-foreground))' },` +
		` card: { DEFAULT: 'hsl(var(--card))', foreground: 'hsl(var(--card-foreground))' } },` +
		` fontFamily: { sans: ['Inter', 'sans-serif'] } } } };</script>` + "\n")
	b.WriteString("<link rel=\"preconnect\" href=\"https://fonts.googleapis.com\">\n")
	fmt.Fprintf(b, "<link rel=\"stylesheet\" href=\"%s\">\n", InterFontURL)
	fmt.Fprintf(b, "<link rel=\"stylesheet\" href=\"%s\">\n", IconFontURL)
	b.WriteString("<style>\n")
	b.WriteString(themeCSS)
	b.WriteString("</style>\n</head>\n<body>\n")
	fmt.Fprintf(b, "<div id=\"root\"><div class=\"loading\" %s>Loading %s...</div></div>\n", PlaceholderAttr, safeDisplay)
}

func writeHarness(b *strings.Builder) {
	fmt.Fprintf(b, "<script crossorigin src=\"%s\"></script>\n", ReactURL)
	fmt.Fprintf(b, "<script crossorigin src=\"%s\"></script>\n", ReactDOMURL)
	fmt.Fprintf(b, "<script src=\"%s\"></script>\n", BabelURL)
	b.WriteString("<script>\nwindow.__PREVIEW_ICON_PATHS__ = ")
	b.WriteString(iconTableJSON())
	b.WriteString(";\n</script>\n")
	b.WriteString("<script>\n")
	b.WriteString(harnessJS)
	b.WriteString("</script>\n")
}

func writeMount(b *strings.Builder, root string, delay time.Duration) {
	name := jsString(root)
	b.WriteString("setTimeout(function () {\n")
	b.WriteString("  try {\n")
	fmt.Fprintf(b, "    if (typeof %s === 'undefined') {\n", root)
	fmt.Fprintf(b, "      throw new Error('Component ' + %s + ' is not defined');\n", name)
	b.WriteString("    }\n")
	fmt.Fprintf(b, "    ReactDOM.createRoot(document.getElementById('root')).render(React.createElement(%s));\n", root)
	b.WriteString("  } catch (err) {\n")
	b.WriteString("    console.error(err);\n")
	fmt.Fprintf(b, "    window.__previewShowError('Failed to render ' + %s, err);\n", name)
	b.WriteString("  }\n")
	fmt.Fprintf(b, "}, %d);\n", delay.Milliseconds())
}

func writeWatchdog(b *strings.Builder, root string, timeout time.Duration) {
	b.WriteString("<script>\n")
	b.WriteString("setTimeout(function () {\n")
	b.WriteString("  if (document.querySelector('#root > [" + PlaceholderAttr + "]')) {\n")
	fmt.Fprintf(b, "    window.__previewShowError('Render timeout', new Error('Component ' + %s + ' did not render within %d seconds'));\n",
		jsString(root), int(timeout.Round(time.Second)/time.Second))
	b.WriteString("  }\n")
	fmt.Fprintf(b, "}, %d);\n", timeout.Milliseconds())
	b.WriteString("</script>\n")
}

// IconAliases returns one `const Local = createIcon("Imported");` line per
// binding. Invalid identifiers and repeated local names are skipped.
func IconAliases(icons []transform.IconBinding) string {
	var b strings.Builder
	seen := make(map[string]bool, len(icons))
	for _, icon := range icons {
		if !identifierPattern.MatchString(icon.Local) || !identifierPattern.MatchString(icon.Imported) {
			continue
		}
		if seen[icon.Local] {
			continue
		}
		seen[icon.Local] = true
		fmt.Fprintf(&b, "const %s = createIcon(%s);\n", icon.Local, jsString(icon.Imported))
	}
	return b.String()
}

// escapeScriptBody keeps a literal closing script tag in component source
// from terminating the enclosing element.
func escapeScriptBody(src string) string {
	return scriptClose.ReplaceAllStringFunc(src, func(m string) string {
		return `<\/` + m[2:]
	})
}

// jsString quotes s for a JS string literal. encoding/json already escapes
// <, > and & so the result is safe inside a script element.
func jsString(s string) string {
	out, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(out)
}
