package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	"github.com/serroba/line-docs/internal/document"
)

// CreateVersionRequest is the request body for the synchronous version
// creation path.
type CreateVersionRequest struct {
	Content     string `json:"content"`
	Description string `json:"description"`
}

// CreateVersionResponse returns the appended snapshot and its change
// summary.
type CreateVersionResponse struct {
	Version document.Version `json:"version"`
	Summary string           `json:"summary"`
}

// RestoreVersionResponse returns the content the live buffer was reset to.
type RestoreVersionResponse struct {
	Content         string `json:"content"`
	RestoredVersion int    `json:"restoredVersion"`
}

// handleListVersions handles GET /documents/{id}/versions.
func (s *Server) handleListVersions(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := IdentityFromContext(r.Context())

	versions, err := s.manager.Session(ps.ByName("id")).Versions(id.UserID)
	if err != nil {
		s.writeAccessError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, versions)
}

// handleGetVersion handles GET /documents/{id}/versions/{number}.
func (s *Server) handleGetVersion(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	number, err := strconv.Atoi(ps.ByName("number"))
	if err != nil || number < 1 {
		s.writeError(w, http.StatusBadRequest, "invalid version number")

		return
	}

	id := IdentityFromContext(r.Context())

	versions, err := s.manager.Session(ps.ByName("id")).Versions(id.UserID)
	if err != nil {
		s.writeAccessError(w, err)

		return
	}

	for _, v := range versions {
		if v.VersionNumber == number {
			s.writeJSON(w, http.StatusOK, v)

			return
		}
	}

	s.writeError(w, http.StatusNotFound, "version not found")
}

// handleCreateVersion handles POST /documents/{id}/versions. The diff is
// computed against the stored buffer, not a client-supplied baseline.
func (s *Server) handleCreateVersion(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req CreateVersionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")

		return
	}

	id := IdentityFromContext(r.Context())

	v, summary, err := s.manager.Session(ps.ByName("id")).CreateVersion(id.UserID, req.Content, "", req.Description)
	if err != nil {
		s.writeAccessError(w, err)

		return
	}

	s.writeJSON(w, http.StatusCreated, CreateVersionResponse{Version: v, Summary: summary})
}

// handleRestoreVersion handles POST /documents/{id}/versions/{number}/restore.
func (s *Server) handleRestoreVersion(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	number, err := strconv.Atoi(ps.ByName("number"))
	if err != nil || number < 1 {
		s.writeError(w, http.StatusBadRequest, "invalid version number")

		return
	}

	id := IdentityFromContext(r.Context())

	content, err := s.manager.Session(ps.ByName("id")).RestoreVersion(id.UserID, number)
	if err != nil {
		if errors.Is(err, document.ErrVersionNotFound) {
			s.writeError(w, http.StatusNotFound, "version not found")

			return
		}

		s.writeAccessError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, RestoreVersionResponse{Content: content, RestoredVersion: number})
}
