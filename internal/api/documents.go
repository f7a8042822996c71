package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"

	"github.com/serroba/line-docs/internal/access"
	"github.com/serroba/line-docs/internal/document"
	"github.com/serroba/line-docs/internal/storage"
)

// CreateDocumentRequest is the request body for creating a document.
type CreateDocumentRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// UpdateDocumentRequest is the request body for the synchronous write path.
type UpdateDocumentRequest struct {
	Title        string `json:"title"`
	Content      string `json:"content"`
	ChangedLines []int  `json:"changedLines"`
}

// AddCollaboratorRequest is the request body for sharing a document.
type AddCollaboratorRequest struct {
	UserID string `json:"userId"`
}

// handleCreateDocument handles POST /documents.
func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req CreateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")

		return
	}

	if req.Title == "" {
		s.writeError(w, http.StatusBadRequest, "title is required")

		return
	}

	id := IdentityFromContext(r.Context())
	doc := document.New(uuid.New().String(), req.Title, id.UserID, req.Content)
	doc.ShareLink = uuid.New().String()

	if err := s.store.CreateDocument(doc); err != nil {
		if errors.Is(err, storage.ErrDocumentExists) {
			s.writeError(w, http.StatusConflict, "document already exists")

			return
		}

		s.writeError(w, http.StatusInternalServerError, "internal server error")

		return
	}

	s.writeJSON(w, http.StatusCreated, doc)
}

// handleListDocuments handles GET /documents: every document the caller
// owns or collaborates on.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	id := IdentityFromContext(r.Context())

	docs, err := s.store.ListDocuments(id.UserID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "internal server error")

		return
	}

	s.writeJSON(w, http.StatusOK, docs)
}

// handleGetDocument handles GET /documents/{id}.
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := IdentityFromContext(r.Context())

	doc, err := s.store.LoadDocument(ps.ByName("id"))
	if err != nil {
		s.writeStoreError(w, err)

		return
	}

	if !doc.HasAccess(id.UserID) {
		s.writeError(w, http.StatusForbidden, "access denied")

		return
	}

	s.writeJSON(w, http.StatusOK, doc)
}

// handleUpdateDocument handles PUT /documents/{id}. The write goes through
// the session so lock validation and persistence are serialized with the
// live WebSocket traffic; a foreign lock on any changed line rejects the
// whole write.
func (s *Server) handleUpdateDocument(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req UpdateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")

		return
	}

	id := IdentityFromContext(r.Context())

	doc, err := s.manager.Session(ps.ByName("id")).Update(id.UserID, req.Title, req.Content, req.ChangedLines)
	if err != nil {
		var lockErr document.LineLockedError
		if errors.As(err, &lockErr) {
			s.writeError(w, http.StatusLocked, lockErr.Error())

			return
		}

		s.writeAccessError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, doc)
}

// handleDeleteDocument handles DELETE /documents/{id}. Owner only.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := IdentityFromContext(r.Context())
	docID := ps.ByName("id")

	checker := access.NewChecker(s.store)
	if err := checker.RequireOwner(docID, id.UserID); err != nil {
		s.writeAccessError(w, err)

		return
	}

	if err := s.store.DeleteDocument(docID); err != nil {
		s.writeStoreError(w, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleAddCollaborator handles POST /documents/{id}/collaborators. Owner
// only; the notification sink hears about the share.
func (s *Server) handleAddCollaborator(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req AddCollaboratorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		s.writeError(w, http.StatusBadRequest, "userId is required")

		return
	}

	id := IdentityFromContext(r.Context())
	docID := ps.ByName("id")

	doc, err := s.store.LoadDocument(docID)
	if err != nil {
		s.writeStoreError(w, err)

		return
	}

	if access.RoleOf(doc, id.UserID) != access.Owner {
		s.writeError(w, http.StatusForbidden, "only the owner can share a document")

		return
	}

	doc.AddCollaborator(req.UserID)

	if err := s.store.SaveDocument(doc); err != nil {
		s.writeError(w, http.StatusInternalServerError, "internal server error")

		return
	}

	s.notifier.Notify(req.UserID, docID, "You were added as a collaborator on "+doc.Title)

	s.writeJSON(w, http.StatusOK, doc)
}

// writeStoreError maps storage errors to HTTP status codes.
func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrDocumentNotFound) {
		s.writeError(w, http.StatusNotFound, "document not found")

		return
	}

	s.writeError(w, http.StatusInternalServerError, "internal server error")
}

// writeAccessError maps access and storage errors to HTTP status codes.
func (s *Server) writeAccessError(w http.ResponseWriter, err error) {
	if errors.Is(err, access.ErrAccessDenied) {
		s.writeError(w, http.StatusForbidden, "access denied")

		return
	}

	s.writeStoreError(w, err)
}
