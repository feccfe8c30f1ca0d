package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	kerrors "github.com/kotadb/kotadb/internal/errors"
	"github.com/kotadb/kotadb/internal/types"
)

type createDocumentRequest struct {
	Path        string `json:"path"`
	Content     string `json:"content"`
	ContentType string `json:"content_type,omitempty"`
	Title       string `json:"title,omitempty"`
}

type documentResponse struct {
	ID          string `json:"id"`
	Path        string `json:"path"`
	ContentType string `json:"content_type,omitempty"`
	Title       string `json:"title,omitempty"`
	Content     string `json:"content"`
	Size        int64  `json:"size"`
}

func toDocumentResponse(d *types.Document) documentResponse {
	return documentResponse{
		ID:          d.ID.String(),
		Path:        d.Path,
		ContentType: d.ContentType,
		Title:       d.Title,
		Content:     string(d.Content),
		Size:        d.Size,
	}
}

func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	var req createDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, r, "malformed request body")
		return
	}
	if req.Path == "" {
		badRequest(w, r, "path is required")
		return
	}

	doc := types.NewDocument(types.NewDocumentID(), req.Path, []byte(req.Content), req.ContentType, req.Title)
	if err := s.Docs.Put(r.Context(), doc); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.Index.Insert(r.Context(), doc.ID, doc.Content); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toDocumentResponse(doc))
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := parseDocumentID(r.PathValue("id"))
	if !ok {
		badRequest(w, r, "malformed document id")
		return
	}

	doc, err := s.Docs.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDocumentResponse(doc))
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := parseDocumentID(r.PathValue("id"))
	if !ok {
		badRequest(w, r, "malformed document id")
		return
	}

	if err := s.Docs.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.Index.Remove(r.Context(), id); err != nil && kerrors.KindOf(err) != kerrors.NotFound {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func parseDocumentID(s string) (types.DocumentID, bool) {
	id, err := uuid.Parse(s)
	if err != nil {
		return types.DocumentID{}, false
	}
	return id, true
}
