package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleHistory lists committed import batches, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	page := parseIntParam(r, "page", 1)
	pageSize := parseIntParam(r, "pageSize", 20)

	res, err := s.admin.History(r.Context(), page, pageSize)
	if err != nil {
		respondError(w, r, err, http.StatusBadGateway)
		return
	}
	writeJSON(w, res)
}

// handleRollback reverses a committed batch by id.
func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	res, err := s.admin.Rollback(r.Context(), chi.URLParam(r, "batchID"))
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, res)
}
