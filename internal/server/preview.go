package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/designforge/mimicry/internal/errors"
	"github.com/designforge/mimicry/internal/logging"
	"github.com/designforge/mimicry/internal/overlay"
	"github.com/designforge/mimicry/internal/preview"
	"github.com/designforge/mimicry/internal/transform"
)

// handlePreview resolves a component, transforms it and serves the
// synthesized preview document.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	noCache(w)

	perf := logging.StartOperation(s.logger, "preview")
	res, err := s.resolver.Resolve(ctx, id)
	if err != nil {
		status := errors.HTTPStatus(err)
		perf.End(ctx, "id", id, "status", status)
		s.errHandler.Handle(ctx, err)
		http.Error(w, errors.Reason(err), status)
		return
	}

	doc := s.builder.Build(res.SourceText, res.Component.Name)
	if s.config.Preview.Diagnostics {
		s.logDiagnostics(ctx, res.Component.ID, doc)
	}

	html := doc.HTML
	if r.URL.Query().Get("select") == "1" {
		html, err = overlay.InjectString(html)
		if err != nil {
			err = errors.NewInternalError("OVERLAY_INJECT", "failed to inject selection overlay", err)
			s.errHandler.Handle(ctx, err)
			http.Error(w, errors.Reason(err), errors.HTTPStatus(err))
			return
		}
	}

	perf.End(ctx, "id", res.Component.ID, "attempts", res.Attempts, "bytes", len(html))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(html)); err != nil {
		s.logger.Debug(ctx, "Preview write aborted", "id", res.Component.ID, "error", err.Error())
	}
}

// logDiagnostics parses the transformed output and logs any syntax issues.
// The document is served regardless; the browser reports the same errors.
func (s *Server) logDiagnostics(ctx context.Context, id string, doc preview.Document) {
	diag, err := transform.Diagnose(ctx, doc.Transform.BrowserSource, transform.DialectJSX)
	if err != nil {
		s.logger.Warn(ctx, err, "Diagnostics failed", "id", id)
		return
	}
	if diag.OK() {
		return
	}

	issues := make([]string, 0, len(diag.Issues))
	for _, issue := range diag.Issues {
		issues = append(issues, issue.String())
	}
	s.logger.Warn(ctx, nil, "Transformed source has syntax issues",
		"id", id,
		"root", doc.Transform.RootComponentName,
		"issues", strings.Join(issues, "; "),
	)
}
