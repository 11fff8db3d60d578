package types

// SelectedElement describes an element picked inside the live preview.
// It is created by the selection overlay and never persisted.
type SelectedElement struct {
	Description string `json:"description"`
	// Path is an ancestor-chain CSS-like selector, e.g. "div#app > main > button.btn"
	Path        string `json:"path"`
	TagName     string `json:"tagName"`
	TextContent string `json:"textContent,omitempty"`
	// OuterHTML is truncated by the overlay before posting.
	OuterHTML string `json:"outerHTML,omitempty"`
}
