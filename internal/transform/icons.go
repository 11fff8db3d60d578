package transform

import (
	"regexp"
	"strings"
)

// IconBinding is one icon imported by generated source. Local is the
// identifier the source uses, Imported the icon's name in its library.
type IconBinding struct {
	Imported string `json:"imported"`
	Local    string `json:"local"`
}

// IconLibraries are the import paths whose named imports are treated as icons.
var IconLibraries = []string{
	"lucide-react",
	"react-icons/*",
	"@heroicons/*",
	"@radix-ui/react-icons",
	"@tabler/icons-react",
	"@phosphor-icons/react",
}

var (
	iconImport = regexp.MustCompile(`import\s+(?:type\s+)?(?:[\w$]+\s*,\s*)?\{([^}]*)\}\s*from\s*["'](lucide-react|react-icons/[\w./-]+|@heroicons/[\w./-]+|@radix-ui/react-icons|@tabler/icons-react|@phosphor-icons/react)["']`)
	identifier = regexp.MustCompile(`^[A-Za-z_$][\w$]*$`)
)

// ScanIconImports lists the icons named in icon-library imports of raw,
// resolving `X as Y` aliases. Each local identifier appears once, in
// source order.
func ScanIconImports(raw string) []IconBinding {
	var bindings []IconBinding
	seen := make(map[string]bool)

	for _, m := range iconImport.FindAllStringSubmatch(raw, -1) {
		for _, clause := range strings.Split(m[1], ",") {
			clause = strings.TrimSpace(clause)
			if clause == "" || strings.HasPrefix(clause, "type ") {
				continue
			}

			imported, local := clause, clause
			if parts := strings.Fields(clause); len(parts) == 3 && parts[1] == "as" {
				imported, local = parts[0], parts[2]
			}
			if !identifier.MatchString(imported) || !identifier.MatchString(local) {
				continue
			}
			if seen[local] {
				continue
			}
			seen[local] = true
			bindings = append(bindings, IconBinding{Imported: imported, Local: local})
		}
	}
	return bindings
}

// ParseIconSpecs turns "Name" / "Name as Alias" strings into bindings.
func ParseIconSpecs(specs []string) []IconBinding {
	var b strings.Builder
	b.WriteString("import { ")
	b.WriteString(strings.Join(specs, ", "))
	b.WriteString(" } from 'lucide-react';")
	return ScanIconImports(b.String())
}
