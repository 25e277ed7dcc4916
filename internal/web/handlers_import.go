package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/rosterimport/internal/core"
	"github.com/JonMunkholm/rosterimport/internal/logging"
	"github.com/go-chi/chi/v5"
)

// multipartMemory is how much of a multipart upload is held in memory
// before spilling to temp files.
const multipartMemory = 32 << 20

// importResponse describes a session to the client.
type importResponse struct {
	SessionID string              `json:"sessionId"`
	Progress  core.ImportProgress `json:"progress"`
	Preview   *core.PreviewResult `json:"preview,omitempty"`
	Result    *core.ImportResult  `json:"result,omitempty"`
	Running   bool                `json:"running"`
	Error     *ErrorResponse      `json:"error,omitempty"`
}

func (s *Server) describe(sess *session) importResponse {
	res, runErr := sess.outcome()
	resp := importResponse{
		SessionID: sess.id,
		Progress:  sess.pipeline.Progress(),
		Preview:   sess.pipeline.Staged(),
		Result:    res,
		Running:   sess.pipeline.IsActive(),
	}
	if runErr != nil {
		msg := core.MapError(runErr)
		resp.Error = &ErrorResponse{Error: msg.Message, Message: msg.Message, Action: msg.Action, Code: msg.Code}
	}
	return resp
}

// session resolves the {sessionID} URL parameter.
func (s *Server) session(r *http.Request) (*session, error) {
	return s.sessions.get(chi.URLParam(r, "sessionID"))
}

// handleCreateImport stages an uploaded file in a new session.
//
// Form fields: file (required), options (JSON ImportOptions, optional),
// dataType (optional, overrides options.dataType).
func (s *Server) handleCreateImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxFileSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			respondError(w, r, fmt.Errorf("file too large: %w", err), http.StatusRequestEntityTooLarge)
			return
		}
		respondError(w, r, fmt.Errorf("%w: %v", errInvalidRequest, err), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, errors.New("no file provided"), http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, r, fmt.Errorf("read upload: %w", err), http.StatusInternalServerError)
		return
	}

	opts := s.admin.Defaults()
	if raw := r.FormValue("options"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &opts); err != nil {
			respondError(w, r, fmt.Errorf("%w options: %v", errInvalidRequest, err), http.StatusBadRequest)
			return
		}
	}
	if raw := r.FormValue("dataType"); raw != "" {
		rt, err := core.ParseRecordType(raw)
		if err != nil {
			respondError(w, r, err, http.StatusBadRequest)
			return
		}
		opts.DataType = rt
	}

	sess, err := s.sessions.create(r.Context())
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	logger := logging.WithFields(r.Context(), "session_id", sess.id)
	logger.Info("import session created", "file", header.Filename, "bytes", len(data))

	_, err = sess.pipeline.Preview(r.Context(), core.FileInput{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, opts)
	if err != nil {
		s.sessions.remove(sess.id)
		respondError(w, r, err, 0)
		return
	}

	writeJSONStatus(w, http.StatusCreated, s.describe(sess))
}

func (s *Server) handleGetImport(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, s.describe(sess))
}

// handleDeleteImport discards the staged preview and closes the session.
func (s *Server) handleDeleteImport(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	if err := sess.pipeline.Reset(); err != nil {
		respondError(w, r, err, 0)
		return
	}
	s.sessions.remove(sess.id)
	w.WriteHeader(http.StatusNoContent)
}

type setRowRequest struct {
	Enabled *bool `json:"enabled"`
}

// handleSetRow excludes a preview row from the commit set or restores it.
func (s *Server) handleSetRow(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	row, err := strconv.Atoi(chi.URLParam(r, "row"))
	if err != nil || row < 1 {
		respondError(w, r, fmt.Errorf("%w: row must be a positive integer", errInvalidRequest), http.StatusBadRequest)
		return
	}

	var req setRowRequest
	if err := decodeJSON(w, r, maxJSONBody, &req); err != nil {
		respondError(w, r, err, 0)
		return
	}
	if req.Enabled == nil {
		respondError(w, r, fmt.Errorf("%w: enabled is required", errInvalidRequest), http.StatusBadRequest)
		return
	}

	preview, err := sess.pipeline.SetRowEnabled(row, *req.Enabled)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, preview)
}

// handleExecute commits the staged preview. By default the run continues
// in the background and the response is 202; ?wait=true blocks until the
// run ends and returns the result.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	var conf core.Confirmation
	if err := decodeJSON(w, r, maxJSONBody, &conf); err != nil {
		respondError(w, r, err, 0)
		return
	}

	logger := logging.WithFields(r.Context(), "session_id", sess.id)

	if r.URL.Query().Get("wait") == "true" {
		ctx, cancel := runContext(r, s.opts.ExecuteTimeout)
		defer cancel()

		sess.clearOutcome()
		res, err := sess.pipeline.Execute(ctx, conf)
		sess.finish(res, err)
		if err != nil {
			respondError(w, r, err, 0)
			return
		}
		writeJSON(w, res)
		return
	}

	ctx, cancel := runContext(r, s.opts.ExecuteTimeout)
	sess.clearOutcome()
	err = sess.pipeline.ExecuteAsync(ctx, conf, func(res *core.ImportResult, err error) {
		defer cancel()
		sess.finish(res, err)
		if err != nil {
			logger.Warn("import run failed", "error", err)
			return
		}
		logger.Info("import run finished", "batch_id", res.BatchID, "status", res.Progress.Status)
	})
	if err != nil {
		cancel()
		respondError(w, r, err, 0)
		return
	}

	writeJSONStatus(w, http.StatusAccepted, s.describe(sess))
}

// handleCancel stops the active run at its next checkpoint.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	sess.pipeline.Cancel()
	writeJSON(w, s.describe(sess))
}

// handleProgress streams progress as Server-Sent Events until the run
// reaches complete, error, or idle, or the client disconnects.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	rc := http.NewResponseController(w)

	updates, unsubscribe := sess.pipeline.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		logging.FromContext(r.Context()).Warn("progress stream unsupported", "error", err)
		return
	}

	seq := 0
	for {
		select {
		case progress, ok := <-updates:
			if !ok {
				fmt.Fprint(w, "event: closed\ndata: {}\n\n")
				_ = rc.Flush()
				return
			}

			seq++
			data, _ := json.Marshal(progress)
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", seq, data)
			_ = rc.Flush()

			if progress.Status.Terminal() || progress.Status == core.StatusIdle {
				fmt.Fprintf(w, "event: done\ndata: {\"status\":%q}\n\n", progress.Status)
				_ = rc.Flush()
				return
			}

		case <-r.Context().Done():
			return
		}
	}
}

// handleRecordTypes lists the supported record types and their columns.
func (s *Server) handleRecordTypes(w http.ResponseWriter, r *http.Request) {
	type field struct {
		Column   string   `json:"column"`
		Label    string   `json:"label"`
		Type     string   `json:"type"`
		Required bool     `json:"required"`
		Values   []string `json:"values,omitempty"`
	}
	type recordType struct {
		Type        core.RecordType `json:"type"`
		Label       string          `json:"label"`
		Fields      []field         `json:"fields"`
		IdentityKey []string        `json:"identityKey"`
	}

	defs := core.Definitions()
	out := make([]recordType, 0, len(defs))
	for _, def := range defs {
		rt := recordType{Type: def.Type, Label: def.Label, IdentityKey: def.IdentityKey}
		for _, f := range def.Fields {
			rt.Fields = append(rt.Fields, field{
				Column:   f.Column,
				Label:    f.Label,
				Type:     f.Type.String(),
				Required: f.Required,
				Values:   f.EnumValues,
			})
		}
		out = append(out, rt)
	}
	writeJSON(w, out)
}
