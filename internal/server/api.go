package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/designforge/mimicry/internal/errors"
	"github.com/designforge/mimicry/internal/highlight"
	"github.com/designforge/mimicry/internal/overlay"
	"github.com/designforge/mimicry/internal/registry"
	"github.com/designforge/mimicry/internal/types"
	"github.com/designforge/mimicry/internal/validation"
)

// maxBodyBytes caps JSON request bodies. Generated sources are large but
// never approach this.
const maxBodyBytes = 4 << 20

type createRequest struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Prompt   string `json:"prompt,omitempty"`
	ThreadID string `json:"threadId,omitempty"`
}

type updateRequest struct {
	Code     *string `json:"code,omitempty"`
	Name     *string `json:"name,omitempty"`
	Prompt   *string `json:"prompt,omitempty"`
	ThreadID *string `json:"threadId,omitempty"`
}

// ComponentResponse is returned by create and update.
type ComponentResponse struct {
	Success    bool                  `json:"success"`
	Component  *types.ComponentEntry `json:"component"`
	PreviewURL string                `json:"previewUrl"`
	FilePath   string                `json:"filePath"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type selectionRequest struct {
	Element     types.SelectedElement `json:"element"`
	ComponentID string                `json:"componentId,omitempty"`
}

type selectionResponse struct {
	Success bool   `json:"success"`
	Context string `json:"context"`
}

// PreviewURL is the preview path for a component id.
func PreviewURL(id string) string { return "/preview/" + id }

func (s *Server) handleGetComponents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	noCache(w)

	id := r.URL.Query().Get("id")
	if id == "" {
		reg, err := s.store.Load(ctx)
		if err != nil {
			s.writeError(ctx, w, err)
			return
		}
		s.writeJSON(ctx, w, http.StatusOK, reg)
		return
	}

	entry, err := s.store.Get(ctx, id)
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}
	if r.URL.Query().Get("withCode") != "true" {
		s.writeJSON(ctx, w, http.StatusOK, entry)
		return
	}

	withCode, err := registry.WithCode(ctx, s.store, entry)
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}
	s.writeJSON(ctx, w, http.StatusOK, withCode)
}

func (s *Server) handleCreateComponent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(ctx, w, err)
		return
	}

	entry, err := s.store.Create(ctx, types.NewComponent{
		Name:     req.Name,
		Code:     req.Code,
		Prompt:   req.Prompt,
		ThreadID: req.ThreadID,
	})
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}
	s.writeJSON(ctx, w, http.StatusCreated, s.componentResponse(entry))
}

func (s *Server) handleUpdateComponent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := requiredID(r)
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}

	var req updateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(ctx, w, err)
		return
	}

	entry, err := s.store.Update(ctx, id, types.ComponentPatch{
		Code:     req.Code,
		Name:     req.Name,
		Prompt:   req.Prompt,
		ThreadID: req.ThreadID,
	})
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}
	s.writeJSON(ctx, w, http.StatusOK, s.componentResponse(entry))
}

func (s *Server) handleDeleteComponent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := requiredID(r)
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}
	if err := s.store.Delete(ctx, id); err != nil {
		s.writeError(ctx, w, err)
		return
	}
	s.writeJSON(ctx, w, http.StatusOK, map[string]bool{"success": true})
}

// handleHighlight returns the component source as a highlighted HTML fragment.
func (s *Server) handleHighlight(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	noCache(w)

	entry, err := s.store.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}
	code, err := s.store.ReadSource(ctx, entry.Filename)
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}

	fragment, err := highlight.HTML(code, highlight.DefaultLanguage)
	if err != nil {
		s.writeError(ctx, w, errors.NewInternalError("HIGHLIGHT_FAILED", "failed to highlight source", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(fragment))
}

// handleSelection turns an element picked in the preview into an edit
// context snippet for the chat input.
func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req selectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(ctx, w, err)
		return
	}

	component := req.ComponentID
	if component != "" {
		if entry, err := s.store.Get(ctx, component); err == nil {
			component = entry.Name
		}
	}

	snippet, err := overlay.EditContext(req.Element, component)
	if err != nil {
		s.writeError(ctx, w, errors.WrapValidation(err, "INVALID_SELECTION", err.Error()))
		return
	}
	s.writeJSON(ctx, w, http.StatusOK, selectionResponse{Success: true, Context: snippet})
}

func (s *Server) componentResponse(entry *types.ComponentEntry) ComponentResponse {
	return ComponentResponse{
		Success:    true,
		Component:  entry,
		PreviewURL: PreviewURL(entry.ID),
		FilePath:   filepath.Join(s.store.Dir(), entry.Filename),
	}
}

func requiredID(r *http.Request) (string, error) {
	id := r.URL.Query().Get("id")
	if id == "" {
		return "", errors.NewValidationError("ID_REQUIRED", "id query parameter is required")
	}
	if err := validation.ValidateComponentID(id); err != nil {
		return "", errors.WrapValidation(err, "INVALID_ID", err.Error())
	}
	return id, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return errors.NewValidationError("INVALID_JSON", fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}

func (s *Server) writeJSON(ctx context.Context, w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn(ctx, err, "Failed to encode response")
	}
}

// writeError logs err and writes it as {success:false, error}.
func (s *Server) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	s.errHandler.Handle(ctx, err)
	s.writeJSON(ctx, w, errors.HTTPStatus(err), errorResponse{Success: false, Error: errors.Reason(err)})
}
