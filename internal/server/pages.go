package server

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/microcosm-cc/bluemonday"

	"github.com/designforge/mimicry/internal/errors"
	"github.com/designforge/mimicry/internal/overlay"
	"github.com/designforge/mimicry/internal/types"
	"github.com/designforge/mimicry/internal/validation"
)

const studioScriptPath = "/static/studio.js"

var (
	//go:embed assets/studio.js
	studioJS []byte

	//go:embed assets/pages.css
	pagesCSS string

	textPolicy = bluemonday.StrictPolicy()
)

// studioConfig is handed to studio.js as JSON.
type studioConfig struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	PollInterval   int64  `json:"pollInterval"`
	WebSocketPath  string `json:"wsPath"`
	OverlayPath    string `json:"overlayPath"`
	PreviewPath    string `json:"previewPath"`
	ComponentsPath string `json:"componentsPath"`
	SelectionPath  string `json:"selectionPath"`
}

func (s *Server) handleGalleryPage(w http.ResponseWriter, r *http.Request) {
	items, err := s.gallery.List(r.Context())
	if err != nil {
		s.errHandler.Handle(r.Context(), err)
		http.Error(w, errors.Reason(err), errors.HTTPStatus(err))
		return
	}
	noCache(w)
	templ.Handler(galleryPage(items)).ServeHTTP(w, r)
}

// handleStudio serves the interactive host page for one component. The
// component does not need to exist yet; the page keeps polling until it does.
func (s *Server) handleStudio(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := validation.ValidateComponentID(id); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	name := id
	if entry, err := s.store.Get(r.Context(), id); err == nil {
		name = entry.Name
	}

	poll := s.config.Preview.PollInterval
	if poll <= 0 {
		poll = 1500 * time.Millisecond
	}
	cfg := studioConfig{
		ID:             id,
		Name:           name,
		PollInterval:   poll.Milliseconds(),
		WebSocketPath:  "/ws",
		OverlayPath:    overlay.ScriptPath,
		PreviewPath:    PreviewURL(id),
		ComponentsPath: "/api/generate",
		SelectionPath:  "/api/selection",
	}

	noCache(w)
	templ.Handler(studioPage(cfg)).ServeHTTP(w, r)
}

func pageHead(w io.Writer, title string) error {
	_, err := fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>%s</title>
<style>
%s</style>
</head>
`, templ.EscapeString(title), pagesCSS)
	return err
}

func galleryPage(items []types.GalleryItem) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := pageHead(w, "Mimicry Gallery"); err != nil {
			return err
		}

		var b strings.Builder
		b.WriteString("<body>\n<header class=\"bar\"><h1>Gallery</h1>")
		fmt.Fprintf(&b, "<span class=\"muted\">%d items</span></header>\n", len(items))

		if len(items) == 0 {
			b.WriteString("<p class=\"empty\">Nothing generated yet.</p>\n")
		} else {
			b.WriteString("<main class=\"grid\">\n")
			for _, item := range items {
				writeGalleryCard(&b, item)
			}
			b.WriteString("</main>\n")
		}
		b.WriteString("</body>\n</html>\n")

		_, err := io.WriteString(w, b.String())
		return err
	})
}

func writeGalleryCard(b *strings.Builder, item types.GalleryItem) {
	fmt.Fprintf(b, "<article class=\"card\" data-type=\"%s\">\n", templ.EscapeString(string(item.Type)))
	switch item.Type {
	case types.GalleryItemImage:
		fmt.Fprintf(b, "<a href=\"%s\"><img src=\"%s\" alt=\"%s\" loading=\"lazy\"></a>\n",
			templ.EscapeString(item.URL), templ.EscapeString(item.URL), templ.EscapeString(item.Name))
	default:
		fmt.Fprintf(b, "<a class=\"thumb\" href=\"/studio/%s\">%s</a>\n",
			templ.EscapeString(item.ID), templ.EscapeString(item.Name))
	}
	fmt.Fprintf(b, "<h2>%s</h2>\n", templ.EscapeString(item.Name))
	if item.Prompt != "" {
		// StrictPolicy strips tags and escapes what remains.
		fmt.Fprintf(b, "<p class=\"prompt\">%s</p>\n", textPolicy.Sanitize(item.Prompt))
	}
	fmt.Fprintf(b, "<time datetime=\"%s\">%s</time>\n",
		item.CreatedAt.UTC().Format(time.RFC3339), item.CreatedAt.Format("2006-01-02 15:04"))
	b.WriteString("</article>\n")
}

func studioPage(cfg studioConfig) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		config, err := json.Marshal(cfg)
		if err != nil {
			return err
		}
		if err := pageHead(w, cfg.Name+" - Studio"); err != nil {
			return err
		}

		var b strings.Builder
		b.WriteString("<body class=\"studio\">\n")
		b.WriteString("<header class=\"bar\">\n")
		fmt.Fprintf(&b, "<h1 id=\"studio-title\">%s</h1>\n", templ.EscapeString(cfg.Name))
		b.WriteString(`<nav class="tabs">
<button type="button" data-tab="preview" class="active">Preview</button>
<button type="button" data-tab="code">Code</button>
</nav>
<div class="actions">
<button type="button" id="toggle-select">Select element</button>
<button type="button" id="toggle-fullscreen">Fullscreen</button>
<button type="button" id="copy-code">Copy code</button>
<span id="status" class="muted"></span>
</div>
</header>
<main class="panes">
<section id="pane-preview" class="pane active">
`)
		fmt.Fprintf(&b, "<iframe id=\"preview-frame\" title=\"Preview\" src=\"%s\"></iframe>\n", templ.EscapeString(cfg.PreviewPath))
		b.WriteString(`</section>
<section id="pane-code" class="pane"><div id="code-view" class="code">Loading source...</div></section>
<aside id="selection" class="selection hidden">
<div class="selection-head"><strong>Selected</strong><button type="button" id="clear-selection">Clear</button></div>
<div id="selection-desc" class="muted"></div>
<code id="selection-path"></code>
<textarea id="selection-context" readonly></textarea>
</aside>
</main>
<div id="hover-label" class="hover-label hidden"></div>
`)
		// encoding/json escapes <, > and & so the config is safe inline.
		fmt.Fprintf(&b, "<script>window.__MIMICRY_STUDIO__ = %s;</script>\n", config)
		fmt.Fprintf(&b, "<script src=\"%s\"></script>\n", studioScriptPath)
		b.WriteString("</body>\n</html>\n")

		_, err = io.WriteString(w, b.String())
		return err
	})
}
