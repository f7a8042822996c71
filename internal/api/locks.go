package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/serroba/line-docs/internal/document"
)

// LineRequest names the line a manual lock or unlock targets.
type LineRequest struct {
	LineNumber int `json:"lineNumber"`
}

// LockedLinesResponse lists the current lock set of a document.
type LockedLinesResponse struct {
	LockedLines []document.LineLock `json:"lockedLines"`
}

// handleLockLine handles POST /documents/{id}/lock.
func (s *Server) handleLockLine(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req LineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.LineNumber < 0 {
		s.writeError(w, http.StatusBadRequest, "valid lineNumber is required")

		return
	}

	id := IdentityFromContext(r.Context())

	if err := s.manager.Session(ps.ByName("id")).Lock(id.UserID, req.LineNumber); err != nil {
		if errors.Is(err, document.ErrLineAlreadyLocked) {
			s.writeError(w, http.StatusLocked, "line is already locked")

			return
		}

		s.writeAccessError(w, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleUnlockLine handles POST /documents/{id}/unlock. The holder or the
// document owner may release the line.
func (s *Server) handleUnlockLine(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req LineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.LineNumber < 0 {
		s.writeError(w, http.StatusBadRequest, "valid lineNumber is required")

		return
	}

	id := IdentityFromContext(r.Context())

	if err := s.manager.Session(ps.ByName("id")).Unlock(id.UserID, req.LineNumber); err != nil {
		if errors.Is(err, document.ErrLineNotLockedByYou) {
			s.writeError(w, http.StatusForbidden, "line is locked by another user")

			return
		}

		s.writeAccessError(w, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleLockedLines handles GET /documents/{id}/locked-lines.
func (s *Server) handleLockedLines(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := IdentityFromContext(r.Context())

	locks, err := s.manager.Session(ps.ByName("id")).LockedLines(id.UserID)
	if err != nil {
		s.writeAccessError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, LockedLinesResponse{LockedLines: locks})
}
