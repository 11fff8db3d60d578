package errors

import (
	"fmt"
	"strings"
)

// Suggestion is one remedy printed under a failed command.
type Suggestion struct {
	Title   string
	Detail  string
	Run     string
	Example string
}

// hint adds its suggestion when any needle occurs in the error text.
type hint struct {
	needles []string
	suggest func() Suggestion
}

func applyHints(errText string, hints []hint) []Suggestion {
	var out []Suggestion
	lower := strings.ToLower(errText)
	for _, h := range hints {
		for _, n := range h.needles {
			if strings.Contains(lower, n) {
				out = append(out, h.suggest())
				break
			}
		}
	}
	return out
}

// ServerStartError suggests fixes for a listener that could not bind.
func ServerStartError(err error, port int) []Suggestion {
	return applyHints(err.Error(), []hint{
		{needles: []string{"address already in use", "bind"}, suggest: func() Suggestion {
			return Suggestion{
				Title:  fmt.Sprintf("Port %d is taken", port),
				Detail: "Another mimicry server may already be running; check it before starting a second one",
				Run:    fmt.Sprintf("mimicry health --url http://localhost:%d", port),
			}
		}},
		{needles: []string{"address already in use", "bind"}, suggest: func() Suggestion {
			return Suggestion{
				Title: "Serve previews on another port",
				Run:   fmt.Sprintf("mimicry serve --port %d", port+1),
			}
		}},
		{needles: []string{"permission denied"}, suggest: func() Suggestion {
			if port >= 1024 {
				return Suggestion{Title: "Check that the host address belongs to this machine"}
			}
			return Suggestion{
				Title:  "Use an unprivileged port",
				Detail: "Ports below 1024 need elevated privileges",
				Run:    "mimicry serve --port 3000",
			}
		}},
	})
}

// ConfigurationError suggests fixes for a config file that failed to load
// or validate. The first suggestion always points at config validate.
func ConfigurationError(configError string, configPath string) []Suggestion {
	suggestions := []Suggestion{{
		Title: "Validate the configuration file",
		Run:   "mimicry config validate --file " + configPath,
	}}

	return append(suggestions, applyHints(configError, []hint{
		{needles: []string{"yaml", "unmarshal", "while parsing"}, suggest: func() Suggestion {
			return Suggestion{
				Title:  "Fix the YAML syntax",
				Detail: "Indent with spaces and quote values that contain ':'",
			}
		}},
		{needles: []string{"unsupported backend"}, suggest: func() Suggestion {
			return Suggestion{
				Title:   "Pick a registry backend",
				Detail:  "registry.backend is either json (a registry.json next to the components) or sqlite",
				Example: "registry:\n  backend: sqlite\n  database_path: ./generated_components/registry.db",
			}
		}},
		{needles: []string{"database_path"}, suggest: func() Suggestion {
			return Suggestion{
				Title:  "Point registry.database_path at a local file",
				Detail: "Relative paths without '..' are resolved from the working directory",
			}
		}},
		{needles: []string{"registry config: dir", "registry config: file"}, suggest: func() Suggestion {
			return Suggestion{
				Title:   "Check the components directory",
				Detail:  "registry.dir holds the generated .tsx files; registry.file is a bare file name inside it",
				Example: "registry:\n  dir: ./generated_components\n  file: registry.json",
			}
		}},
		{needles: []string{"images_dir"}, suggest: func() Suggestion {
			return Suggestion{
				Title: "Check gallery.images_dir",
				Run:   "mkdir -p ./generated_images",
			}
		}},
		{needles: []string{"resolve_attempts", "delays", "render_timeout", "poll_interval"}, suggest: func() Suggestion {
			return Suggestion{
				Title:   "Use positive preview timings",
				Example: "preview:\n  resolve_attempts: 3\n  resolve_delay: 500ms\n  render_timeout: 5s",
			}
		}},
		{needles: []string{"server config"}, suggest: func() Suggestion {
			return Suggestion{
				Title: "Override the listen address on the command line",
				Run:   "mimicry serve --host localhost --port 3000",
			}
		}},
		{needles: []string{"log config"}, suggest: func() Suggestion {
			return Suggestion{Title: "Set log.format to text or json"}
		}},
	})...)
}

// RegistryOpenError suggests fixes for a registry store that failed to open.
func RegistryOpenError(err error, backend, dir string) []Suggestion {
	return applyHints(err.Error(), []hint{
		{needles: []string{"no such file", "not exist"}, suggest: func() Suggestion {
			return Suggestion{
				Title: "Create the components directory",
				Run:   "mkdir -p " + dir,
			}
		}},
		{needles: []string{"permission denied", "read-only"}, suggest: func() Suggestion {
			return Suggestion{
				Title:  "Make the components directory writable",
				Detail: fmt.Sprintf("The %s registry writes into %s", backend, dir),
			}
		}},
		{needles: []string{"database is locked", "sqlite", "sql:"}, suggest: func() Suggestion {
			return Suggestion{
				Title:  "Check the SQLite registry",
				Detail: "Stop other processes holding the database, or switch back to the JSON registry",
				Run:    "MIMICRY_REGISTRY_BACKEND=json mimicry list",
			}
		}},
		{needles: []string{"invalid character", "unexpected end of json"}, suggest: func() Suggestion {
			return Suggestion{
				Title: "Repair or rebuild registry.json",
				Run:   "mimicry registry reconcile",
			}
		}},
	})
}

// FormatSuggestions renders title followed by a numbered suggestion list.
func FormatSuggestions(title string, suggestions []Suggestion) string {
	if len(suggestions) == 0 {
		return title
	}

	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n\nTry:\n")
	for i, s := range suggestions {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, s.Title)
		if s.Detail != "" {
			fmt.Fprintf(&b, "     %s\n", s.Detail)
		}
		if s.Run != "" {
			fmt.Fprintf(&b, "     $ %s\n", s.Run)
		}
		if s.Example != "" {
			fmt.Fprintf(&b, "     e.g.\n%s\n", indent(s.Example, "       "))
		}
	}
	return b.String()
}

func indent(s, prefix string) string {
	return prefix + strings.ReplaceAll(s, "\n", "\n"+prefix)
}

// EnhancedError is an error printed together with suggested fixes.
type EnhancedError struct {
	Cause       error
	Title       string
	Suggestions []Suggestion
}

func (e *EnhancedError) Error() string {
	msg := FormatSuggestions(e.Title, e.Suggestions)
	if e.Cause != nil {
		if len(e.Suggestions) == 0 {
			msg += ": "
		} else {
			msg += "\nCause: "
		}
		msg += e.Cause.Error()
	}
	return msg
}

func (e *EnhancedError) Unwrap() error {
	return e.Cause
}

// NewEnhancedError wraps cause with a title and suggestions.
func NewEnhancedError(title string, cause error, suggestions []Suggestion) *EnhancedError {
	return &EnhancedError{Cause: cause, Title: title, Suggestions: suggestions}
}
