package server

import (
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/designforge/mimicry/internal/errors"
	"github.com/designforge/mimicry/internal/types"
)

// maxImageBytes caps uploaded images.
const maxImageBytes = 20 << 20

var imageContentTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

type galleryResponse struct {
	Items []types.GalleryItem `json:"items"`
}

func (s *Server) handleGalleryList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	noCache(w)

	items, err := s.gallery.List(ctx)
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}
	if items == nil {
		items = []types.GalleryItem{}
	}
	s.writeJSON(ctx, w, http.StatusOK, galleryResponse{Items: items})
}

func (s *Server) handleGalleryDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	id := q.Get("id")
	if id == "" {
		s.writeError(ctx, w, errors.NewValidationError("ID_REQUIRED", "id query parameter is required"))
		return
	}
	kind := types.GalleryItemType(q.Get("type"))
	if kind == "" {
		kind = types.GalleryItemComponent
	}

	if err := s.gallery.Delete(ctx, id, kind); err != nil {
		s.writeError(ctx, w, err)
		return
	}
	s.writeJSON(ctx, w, http.StatusOK, map[string]bool{"success": true})
}

// handleGalleryUpload stores a raw image body. The Content-Type header
// picks the file extension.
func (s *Server) handleGalleryUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	ext, ok := imageContentTypes[mediaType]
	if err != nil || !ok {
		s.writeError(ctx, w, errors.NewValidationError("IMAGE_TYPE", "Content-Type must be image/png, image/jpeg, image/webp or image/gif"))
		return
	}

	body := http.MaxBytesReader(w, r.Body, maxImageBytes)
	item, err := s.gallery.Save(ctx, body, ext)
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}
	s.writeJSON(ctx, w, http.StatusCreated, item)
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	path, err := s.gallery.ImagePath(chi.URLParam(r, "name"))
	if err != nil {
		s.errHandler.Handle(r.Context(), err)
		http.Error(w, errors.Reason(err), errors.HTTPStatus(err))
		return
	}
	http.ServeFile(w, r, path)
}
