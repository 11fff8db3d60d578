package preview

import (
	"time"

	"github.com/designforge/mimicry/internal/transform"
)

// Builder turns raw generated source into a preview document.
type Builder struct {
	MountDelay    time.Duration
	RenderTimeout time.Duration
}

// Document is a synthesized preview together with the transform result it
// was built from.
type Document struct {
	HTML      string
	Transform transform.Result
	Icons     []transform.IconBinding
}

// Build transforms raw, scans its icon imports and synthesizes the document.
// displayName falls back to the detected root component name.
func (b Builder) Build(raw, displayName string) Document {
	result := transform.Transform(raw)
	icons := transform.ScanIconImports(raw)
	html := Synthesize(Input{
		BrowserSource:     result.BrowserSource,
		RootComponentName: result.RootComponentName,
		DisplayName:       displayName,
		Icons:             icons,
		MountDelay:        b.MountDelay,
		RenderTimeout:     b.RenderTimeout,
	})
	return Document{HTML: html, Transform: result, Icons: icons}
}
