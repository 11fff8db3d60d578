package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/designforge/mimicry/internal/gallery"
	"github.com/designforge/mimicry/internal/overlay"
)

// Handler returns the HTTP handler with every route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(securityHeaders)
	r.Use(s.corsMiddleware)

	r.Get("/", s.handleGalleryPage)
	r.Get("/health", s.handleHealth)

	r.Get("/preview/{id}", s.handlePreview)
	r.Get("/studio/{id}", s.handleStudio)

	registryAPI := func(r chi.Router) {
		r.Get("/", s.handleGetComponents)
		r.Post("/", s.handleCreateComponent)
		r.Put("/", s.handleUpdateComponent)
		r.Delete("/", s.handleDeleteComponent)
		r.Get("/{id}/highlight", s.handleHighlight)
	}
	r.Route("/api/generate", registryAPI)
	r.Route("/generate", registryAPI)

	r.Route("/api/gallery", func(r chi.Router) {
		r.Get("/", s.handleGalleryList)
		r.Post("/", s.handleGalleryUpload)
		r.Delete("/", s.handleGalleryDelete)
	})
	r.Get(gallery.ImagesRoute+"{name}", s.handleImage)

	r.Post("/api/selection", s.handleSelection)

	r.Get("/ws", s.handleWebSocket)

	r.Get(overlay.ScriptPath, serveScript(overlay.Script))
	r.Get(studioScriptPath, serveScript(studioJS))

	return r
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.hub.serve(w, r, s.config.Server.AllowedOrigins)
}

func serveScript(body []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		noCache(w)
		_, _ = w.Write(body)
	}
}
