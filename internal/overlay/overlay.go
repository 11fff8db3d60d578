// Package overlay ships the element-selection script that runs inside the
// preview iframe and the Go side of its postMessage protocol.
package overlay

import (
	"bytes"
	_ "embed"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// MessageType is the `type` field of a postMessage exchanged between the
// host page and the preview iframe.
type MessageType string

// Outbound, from the iframe to the host page.
const (
	MessageElementHover    MessageType = "element-hover"
	MessageElementSelect   MessageType = "element-select"
	MessageElementDeselect MessageType = "element-deselect"
	MessageSelectorReady   MessageType = "selector-ready"
)

// Inbound, from the host page to the iframe.
const (
	MessageToggleSelectionMode MessageType = "toggle-selection-mode"
	MessageClearSelection      MessageType = "clear-selection"
)

// ScriptPath is where the server exposes Script.
const ScriptPath = "/static/overlay.js"

// Script is the selection overlay. It is idempotent: a second evaluation in
// the same window does nothing.
//
//go:embed overlay.js
var Script []byte

// Message mirrors the payload posted by the overlay. Enabled is only set on
// toggle-selection-mode.
type Message struct {
	Type        MessageType `json:"type"`
	Description string      `json:"description,omitempty"`
	Path        string      `json:"path,omitempty"`
	TagName     string      `json:"tagName,omitempty"`
	TextContent string      `json:"textContent,omitempty"`
	OuterHTML   string      `json:"outerHTML,omitempty"`
	Enabled     *bool       `json:"enabled,omitempty"`
}

// Outbound reports whether t is sent by the iframe.
func (t MessageType) Outbound() bool {
	switch t {
	case MessageElementHover, MessageElementSelect, MessageElementDeselect, MessageSelectorReady:
		return true
	}
	return false
}

// Inbound reports whether t is accepted by the iframe.
func (t MessageType) Inbound() bool {
	return t == MessageToggleSelectionMode || t == MessageClearSelection
}

func scriptElement() []byte {
	var b bytes.Buffer
	b.WriteString("<script data-mimicry-overlay-script>\n")
	b.Write(Script)
	b.WriteString("</script>\n")
	return b.Bytes()
}

// Inject copies the HTML document from r to w with the overlay script
// inserted immediately before the closing body tag. Tokens are copied
// verbatim, so markup inside script elements is never mistaken for the
// body end. A document without a closing body tag gets the script appended.
func Inject(w io.Writer, r io.Reader) error {
	z := html.NewTokenizer(r)
	injected := false
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if err := z.Err(); err != io.EOF {
				return err
			}
			break
		}
		raw := append([]byte(nil), z.Raw()...)
		if tt == html.EndTagToken && !injected {
			name, _ := z.TagName()
			if atom.Lookup(name) == atom.Body {
				if _, err := w.Write(scriptElement()); err != nil {
					return err
				}
				injected = true
			}
		}
		if _, err := w.Write(raw); err != nil {
			return err
		}
	}
	if !injected {
		_, err := w.Write(scriptElement())
		return err
	}
	return nil
}

// InjectString is Inject over strings.
func InjectString(doc string) (string, error) {
	var b strings.Builder
	b.Grow(len(doc) + len(Script) + 64)
	if err := Inject(&b, strings.NewReader(doc)); err != nil {
		return "", err
	}
	return b.String(), nil
}
