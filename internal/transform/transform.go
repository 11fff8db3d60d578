// Package transform turns generated TSX source into JSX the in-browser
// transpiler can run without a type system or a module loader.
//
// Transform is a fixed sequence of rewrite passes. It does not parse: each
// pass matches a textual pattern and deletes or rewrites it, and constructs
// no pass recognises are left as they are. Anything that is still invalid
// after the passes is reported by the preview document at runtime. Every
// pass removes the construct it matches rather than rewriting it into
// another matchable form, so Transform is idempotent on its own output.
package transform

import (
	"regexp"
	"strings"
)

// FallbackComponentName is used when no default export can be found.
const FallbackComponentName = "GeneratedComponent"

// Result is the browser-ready source and the identifier to mount.
type Result struct {
	BrowserSource     string
	RootComponentName string
	// Fallback is set when RootComponentName is FallbackComponentName
	// because no default export was recognised.
	Fallback bool
}

var (
	// pass 1
	leadingDirective = regexp.MustCompile(`^\s*(?:"use [A-Za-z ]+"|'use [A-Za-z ]+')[ \t]*;?[ \t]*(?:\n|$)`)

	// pass 2
	importFrom = regexp.MustCompile(`(?m)^[ \t]*import\s+(?:type\s+)?[\w$*\s{},]*?\s*from\s*(?:"[^"\n]*"|'[^'\n]*')[ \t]*;?[ \t]*(?:\n|$)`)
	importBare = regexp.MustCompile(`(?m)^[ \t]*import\s*(?:"[^"\n]*"|'[^'\n]*')[ \t]*;?[ \t]*(?:\n|$)`)

	// pass 3
	interfaceStart = regexp.MustCompile(`(?m)^[ \t]*(?:export[ \t]+)?(?:declare[ \t]+)?interface[ \t]+[A-Za-z_$][\w$]*[^{\n]*\{`)
	typeAliasStart = regexp.MustCompile(`(?m)^[ \t]*(?:export[ \t]+)?(?:declare[ \t]+)?type[ \t]+[A-Za-z_$][\w$]*(?:<[^=\n]*>)?[ \t]*=`)

	// pass 4
	destructuredObjectType = regexp.MustCompile(`(\(\s*\{[^{}()]*\})\s*:\s*\{`)

	// pass 5
	componentTypeMarker = regexp.MustCompile(`:\s*(?:React\.)?(?:FC|FunctionComponent|VFC|ComponentType)\b(?:<(?:[^<>]|<[^<>]*>)*>)?`)
	elementReturnType   = regexp.MustCompile(`\)\s*:\s*(?:React\.)?(?:JSX\.Element|ReactElement|ReactNode)(?:<[^<>]*>)?(?:\[\])?(?:\s*\|\s*null)?`)

	// pass 6
	nullableUnion      = regexp.MustCompile(`([^|\s])\s*\|\s*(?:undefined|null)\b`)
	returnAnnotation   = regexp.MustCompile(`\)\s*:\s*` + typeExpr + `\s*(=>|\{)`)
	bindingAnnotation  = regexp.MustCompile(`\b(const|let|var)(\s+(?:[A-Za-z_$][\w$]*|\[[^\]\n]*\]|\{[^}\n]*\}))\s*:\s*[^=;\n]+?\s*=([^=>])`)
	paramAnnotation    = regexp.MustCompile(`([\w$\]}])\s*\??\s*:\s*` + typeExpr + `(\s*(?:,|=|$))`)
	genericArguments   = regexp.MustCompile(`([\w$])<((?:[^<>()=\n"'/]|<[^<>()=\n"'/]*>)*)>(\s*\()`)
	typeAssertion      = regexp.MustCompile(`([\w$)\]])\s+as\s+(?:const|[A-Za-z_$][\w$.]*(?:<[^<>]*>)?(?:\[\])*)(\s*[;,)\]}])`)
	nonNullAssertion   = regexp.MustCompile(`([\w$)\]])!([.;,)\]])`)
	functionNameSuffix = regexp.MustCompile(`\bfunction\b\s*\*?\s*[A-Za-z_$]?[\w$]*\s*(?:<(?:[^<>]|<[^<>]*>)*>\s*)?$`)
	trailingIdentifier = regexp.MustCompile(`([A-Za-z_$][\w$]*)\s*$`)

	// pass 7
	blankLines = regexp.MustCompile(`(?:[ \t]*\n){3,}`)

	// pass 8
	defaultExportName = regexp.MustCompile(`\bexport\s+default\s+(?:async\s+)?(?:function\s*\*?\s+|class\s+)?([A-Za-z_$][\w$]*)`)
	defaultExportHOC  = regexp.MustCompile(`\bexport\s+default\s+(?:React\.)?(?:memo|forwardRef)\(\s*([A-Za-z_$][\w$]*)\s*\)`)

	// pass 9
	defaultExportDecl     = regexp.MustCompile(`\bexport\s+default\s+((?:async\s+)?function\b|class\b)`)
	anonymousDefaultFunc  = regexp.MustCompile(`\bexport\s+default\s+((?:async\s+)?function)\s*\(`)
	anonymousDefaultArrow = regexp.MustCompile(`\bexport\s+default\s+((?:async\s+)?\([^()]*\)\s*=>)`)
	standaloneDefaultLine = regexp.MustCompile(`(?m)^[ \t]*export\s+default\s+(?:(?:React\.)?(?:memo|forwardRef)\(\s*[A-Za-z_$][\w$]*\s*\)|[A-Za-z_$][\w$.]*)[ \t]*;?[ \t]*(?:\n|$)`)
	namedExportKeyword    = regexp.MustCompile(`(?m)^([ \t]*)export[ \t]+((?:async[ \t]+)?function\b|const\b|let\b|var\b|class\b)`)
	namedExportList       = regexp.MustCompile(`(?m)^[ \t]*export\s*\{[^}]*\}(?:\s*from\s*(?:"[^"\n]*"|'[^'\n]*'))?[ \t]*;?[ \t]*(?:\n|$)`)
)

// typeExpr matches a single type: a possibly qualified name with generic
// arguments and array suffixes, a tuple, an object shape or a string literal,
// optionally joined into a union.
const typeAtom = `(?:[A-Za-z_$][\w$.]*(?:<(?:[^<>]|<[^<>]*>)*>)?(?:\[\])*|\[[^\[\]\n]*\]|\{[^{}]*\}|'[^'\n]*'|"[^"\n]*")`
const typeExpr = typeAtom + `(?:\s*\|\s*` + typeAtom + `)*`

var reservedCallers = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "with": true,
	"return": true, "typeof": true, "await": true, "new": true, "do": true,
	"else": true, "in": true, "of": true, "case": true, "void": true, "delete": true,
}

// Transform rewrites raw generated source into browser-runnable JSX and
// reports the name of the default-exported component. It never fails.
func Transform(raw string) Result {
	src := strings.ReplaceAll(raw, "\r\n", "\n")

	src = stripDirective(src)
	src = stripImports(src)
	src = stripTypeDeclarations(src)
	src = stripDestructuredObjectTypes(src)
	src = stripComponentTypeMarkers(src)
	src = stripAnnotations(src)
	src = collapseBlankLines(src)

	name, fallback := rootComponentName(src)
	src = rewriteDefaultExport(src, name)

	return Result{BrowserSource: src, RootComponentName: name, Fallback: fallback}
}

// pass 1: a leading "use client" style directive.
func stripDirective(src string) string {
	return leadingDirective.ReplaceAllString(src, "")
}

// pass 2: every static import, whatever the module.
func stripImports(src string) string {
	src = importFrom.ReplaceAllString(src, "")
	return importBare.ReplaceAllString(src, "")
}

// pass 3: interface and type alias declarations, including multi-line bodies.
func stripTypeDeclarations(src string) string {
	src = removeDeclarations(src, interfaceStart, func(s string, m []int) int {
		close := matchingClose(s, m[1]-1)
		if close < 0 {
			return -1
		}
		end := close + 1
		if end < len(s) && s[end] == ';' {
			end++
		}
		return end
	})

	return removeDeclarations(src, typeAliasStart, func(s string, m []int) int {
		return typeAliasEnd(s, m[1])
	})
}

// removeDeclarations deletes every match of start through the offset
// returned by end, along with the rest of that line when it is blank.
func removeDeclarations(src string, start *regexp.Regexp, end func(s string, m []int) int) string {
	offset := 0
	for offset < len(src) {
		loc := start.FindStringIndex(src[offset:])
		if loc == nil {
			break
		}
		m := []int{offset + loc[0], offset + loc[1]}

		stop := end(src, m)
		if stop < 0 {
			offset = m[1]
			continue
		}
		stop = consumeLineRest(src, stop)
		src = src[:m[0]] + src[stop:]
		offset = m[0]
	}
	return src
}

// consumeLineRest extends i over trailing blanks and one newline.
func consumeLineRest(s string, i int) int {
	j := i
	for j < len(s) && (s[j] == ' ' || s[j] == '\t') {
		j++
	}
	if j < len(s) && s[j] == '\n' {
		return j + 1
	}
	if j == len(s) {
		return j
	}
	return i
}

// typeAliasEnd finds where a type alias whose "=" ends at from terminates:
// a ";" at nesting depth zero, or a newline at depth zero that neither
// follows a dangling operator nor precedes a continuing "|" or "&".
func typeAliasEnd(s string, from int) int {
	depth := 0
	sawBody := false
	for i := from; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"', '\'', '`':
			i = skipString(s, i)
			sawBody = true
		case '{', '(', '[':
			depth++
			sawBody = true
		case '}', ')', ']':
			depth--
			if depth < 0 {
				return i
			}
		case ';':
			if depth == 0 {
				return i + 1
			}
		case '\n':
			if depth > 0 || !sawBody {
				continue
			}
			prev := lastNonSpace(s[from:i])
			next := firstNonSpace(s[i+1:])
			if prev == '|' || prev == '&' || prev == '=' || prev == ',' || next == '|' || next == '&' {
				continue
			}
			return i
		case ' ', '\t':
		default:
			sawBody = true
		}
	}
	return len(s)
}

// pass 4: `({ a, b }: { a: string; b: number })` keeps only the pattern.
func stripDestructuredObjectTypes(src string) string {
	offset := 0
	for offset < len(src) {
		loc := destructuredObjectType.FindStringSubmatchIndex(src[offset:])
		if loc == nil {
			break
		}
		start, braceEnd := offset+loc[0], offset+loc[1]
		pattern := src[offset+loc[2] : offset+loc[3]]

		close := matchingClose(src, braceEnd-1)
		if close < 0 {
			offset = braceEnd
			continue
		}
		src = src[:start] + pattern + src[close+1:]
		offset = start + len(pattern)
	}
	return src
}

// pass 5: component and element marker types.
func stripComponentTypeMarkers(src string) string {
	src = componentTypeMarker.ReplaceAllString(src, "")
	return elementReturnType.ReplaceAllString(src, ")")
}

// pass 6: remaining annotations, generic arguments and assertions.
func stripAnnotations(src string) string {
	src = nullableUnion.ReplaceAllString(src, "$1")
	src = returnAnnotation.ReplaceAllString(src, ") $1")
	src = bindingAnnotation.ReplaceAllString(src, "$1$2 =$3")
	src = stripParameterAnnotations(src)
	src = genericArguments.ReplaceAllString(src, "$1$3")
	src = replaceOutsideJSXText(typeAssertion, src, "$1$2")
	return replaceOutsideJSXText(nonNullAssertion, src, "$1$2")
}

// replaceOutsideJSXText is ReplaceAllString for matches in expression
// position; matches inside JSX text children are kept verbatim.
func replaceOutsideJSXText(re *regexp.Regexp, src, template string) string {
	matches := re.FindAllStringSubmatchIndex(src, -1)
	if matches == nil {
		return src
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		if inJSXText(src, m[0]) {
			continue
		}
		b.WriteString(src[last:m[0]])
		b.Write(re.ExpandString(nil, template, src, m))
		last = m[1]
	}
	b.WriteString(src[last:])
	return b.String()
}

// inJSXText reports whether pos follows a tag's closing ">" with only text
// in between. Any bracket, "=" or ";" seen first means expression position.
func inJSXText(src string, pos int) bool {
	for i := pos - 1; i >= 0; i-- {
		switch src[i] {
		case '>':
			return i == 0 || src[i-1] != '='
		case '<', '{', '}', '(', ')', '[', ']', ';', '=':
			return false
		}
	}
	return false
}

// stripParameterAnnotations removes `: Type` inside parameter lists only,
// so object literals and ternaries elsewhere are left alone.
func stripParameterAnnotations(src string) string {
	var b strings.Builder
	last := 0

	for i := 0; i < len(src); i++ {
		switch src[i] {
		case '"', '\'', '`':
			i = skipString(src, i)
			continue
		case '(':
		default:
			continue
		}

		close := matchingClose(src, i)
		if close < 0 {
			continue
		}
		if !isParameterList(src, i, close) {
			continue
		}

		params := src[i+1 : close]
		stripped := paramAnnotation.ReplaceAllString(params, "$1$2")
		if stripped == params {
			continue
		}

		b.WriteString(src[last : i+1])
		b.WriteString(stripped)
		last = close
		i = close
	}

	if last == 0 {
		return src
	}
	b.WriteString(src[last:])
	return b.String()
}

func isParameterList(src string, open, close int) bool {
	after := strings.TrimLeft(src[close+1:], " \t\n")
	if strings.HasPrefix(after, "=>") {
		return true
	}

	before := src[:open]
	if len(before) > 120 {
		before = before[len(before)-120:]
	}
	if functionNameSuffix.MatchString(before) {
		return true
	}

	if strings.HasPrefix(after, "{") {
		m := trailingIdentifier.FindStringSubmatch(before)
		return m != nil && !reservedCallers[m[1]]
	}
	return false
}

// pass 7: no more than one blank line in a row.
func collapseBlankLines(src string) string {
	src = blankLines.ReplaceAllString(src, "\n\n")
	return strings.TrimLeft(src, "\n")
}

// pass 8: the default-exported identifier names the root component.
func rootComponentName(src string) (string, bool) {
	if m := defaultExportHOC.FindStringSubmatch(src); m != nil {
		return m[1], false
	}
	if m := defaultExportName.FindStringSubmatch(src); m != nil {
		switch m[1] {
		case "function", "class", "async":
		default:
			return m[1], false
		}
	}
	return FallbackComponentName, true
}

// pass 9: default export syntax becomes a plain declaration.
func rewriteDefaultExport(src, name string) string {
	src = anonymousDefaultFunc.ReplaceAllString(src, "$1 "+name+"(")
	src = anonymousDefaultArrow.ReplaceAllString(src, "const "+name+" = $1")
	src = defaultExportDecl.ReplaceAllString(src, "$1")
	src = standaloneDefaultLine.ReplaceAllString(src, "")
	src = namedExportList.ReplaceAllString(src, "")
	return namedExportKeyword.ReplaceAllString(src, "$1$2")
}

// matchingClose returns the index of the bracket closing the one at open,
// skipping string literals, or -1 when it is unbalanced.
func matchingClose(s string, open int) int {
	if open < 0 || open >= len(s) {
		return -1
	}
	var stack []byte
	for i := open; i < len(s); i++ {
		switch c := s[i]; c {
		case '"', '\'', '`':
			i = skipString(s, i)
		case '(':
			stack = append(stack, ')')
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case ')', '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return -1
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i
			}
		}
	}
	return -1
}

// skipString returns the index of the quote closing the literal at i, or
// the last index of s when the literal is unterminated.
func skipString(s string, i int) int {
	quote := s[i]
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case quote:
			return j
		case '\n':
			if quote != '`' {
				return j
			}
		}
	}
	return len(s) - 1
}

func lastNonSpace(s string) byte {
	t := strings.TrimRight(s, " \t\n")
	if t == "" {
		return 0
	}
	return t[len(t)-1]
}

func firstNonSpace(s string) byte {
	t := strings.TrimLeft(s, " \t\n")
	if t == "" {
		return 0
	}
	return t[0]
}
