package web

// handlers_store.go serves the backing-store contract that remote.Client
// speaks: batch commit, history, rollback, and spreadsheet parsing.

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/JonMunkholm/rosterimport/internal/core"
	"github.com/JonMunkholm/rosterimport/internal/remote"
	"github.com/JonMunkholm/rosterimport/internal/sheet"
	"github.com/go-chi/chi/v5"
)

// maxBatchBody bounds one commit request.
const maxBatchBody = 16 << 20

func (s *Server) handleStoreCommit(w http.ResponseWriter, r *http.Request) {
	var req core.BatchRequest
	if err := decodeJSON(w, r, maxBatchBody, &req); err != nil {
		respondStoreError(w, r, err)
		return
	}
	if req.BatchID == "" {
		respondStoreError(w, r, fmt.Errorf("%w: batchId is required", errInvalidRequest))
		return
	}

	resp, err := s.backend.CommitBatch(r.Context(), req)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	writeJSON(w, resp)
}

func (s *Server) handleStoreList(w http.ResponseWriter, r *http.Request) {
	page, pageSize := core.NormalizePage(parseIntParam(r, "page", 1), parseIntParam(r, "pageSize", 20))

	res, err := s.backend.ListBatches(r.Context(), page, pageSize)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (s *Server) handleStoreRollback(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "batchID")

	var body struct {
		ID string `json:"id"`
	}
	if err := decodeJSON(w, r, maxJSONBody, &body); err != nil {
		respondStoreError(w, r, err)
		return
	}
	if body.ID != "" && body.ID != id {
		respondStoreError(w, r, fmt.Errorf("%w: body id %q does not match path", errInvalidRequest, body.ID))
		return
	}

	res, err := s.backend.RollbackBatch(r.Context(), id)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// handleStoreParse reads the first populated sheet of an uploaded workbook.
// Failures are reported in the body with success=false so the caller can
// fall back to its own reader.
func (s *Server) handleStoreParse(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(w, r, s.opts.MaxFileSize)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}

	tbl, err := sheet.Read(bytes.NewReader(data))
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, sheet.ErrNoData) {
			status = http.StatusOK
		}
		writeJSONStatus(w, status, remote.ParseResponse{
			Success:  false,
			Rows:     []core.RawRecord{},
			Columns:  []string{},
			Warnings: []string{},
			Error:    err.Error(),
		})
		return
	}

	cols, rows := core.SheetRecords(tbl.Header, tbl.Rows)
	writeJSON(w, remote.ParseResponse{
		Success:   true,
		Rows:      rows,
		Columns:   cols,
		TotalRows: len(rows),
		SheetName: tbl.Name,
		Warnings:  []string{},
	})
}
