package registry

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/zeebo/xxh3"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/designforge/mimicry/internal/types"
)

// SourceExt is the extension of generated source files.
const SourceExt = ".tsx"

var titleCaser = cases.Title(language.Und, cases.NoLower)

// NewID mints a component id: comp_<unixMillis>_<8 hex chars>.
func NewID(now time.Time) string {
	u := uuid.New()
	return fmt.Sprintf("%s%d_%x", types.GeneratedIDPrefix, now.UnixMilli(), u[:4])
}

// SanitizeFilename turns a display name into a PascalCase .tsx file name.
// "pricing card v2" becomes "PricingCardV2.tsx".
func SanitizeFilename(name string) string {
	return ComponentIdentifier(name) + SourceExt
}

// ComponentIdentifier turns a display name into a PascalCase identifier.
func ComponentIdentifier(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var b strings.Builder
	for _, w := range words {
		b.WriteString(titleCaser.String(w))
	}

	ident := strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return r
		}
		return -1
	}, b.String())

	if ident == "" {
		return "Component"
	}
	if unicode.IsDigit(rune(ident[0])) {
		return "Component" + ident
	}
	return ident
}

// NameFromFilename recovers a display name from a source file name.
func NameFromFilename(filename string) string {
	return strings.TrimSuffix(filename, SourceExt)
}

// Hash fingerprints source text for change detection.
func Hash(code string) string {
	return fmt.Sprintf("%016x", xxh3.HashString(code))
}
