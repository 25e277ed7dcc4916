package web

// errors.go turns handler errors into JSON responses.
//
// The technical error is logged with the request id; the client gets the
// mapped core.UserMessage. Status codes come from statusFor unless the
// handler already knows better.

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/rosterimport/internal/core"
	"github.com/JonMunkholm/rosterimport/internal/logging"
	"github.com/JonMunkholm/rosterimport/internal/store/postgres"
)

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes its user-facing form with status.
// A zero status is resolved with statusFor.
func respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	if status == 0 {
		status = statusFor(err)
	}
	msg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// respondStoreError answers a store-contract request. Its clients are
// programs, so the body carries the raw error text they surface as the
// backend message.
func respondStoreError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	logging.FromContext(r.Context()).Warn("store request failed",
		"path", r.URL.Path,
		"status", status,
		"error", err,
	)
	writeJSONStatus(w, status, map[string]string{"error": err.Error()})
}

// statusFor picks the HTTP status for a known error.
func statusFor(err error) int {
	var parseErr *core.ParseError
	var rollbackErr *core.RollbackError
	var backendErr *core.BackendError

	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, postgres.ErrBatchNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrTooManySessions):
		return http.StatusTooManyRequests
	case errors.Is(err, core.ErrRunActive),
		errors.Is(err, core.ErrNoPreview),
		errors.Is(err, core.ErrUnacceptedErrors),
		errors.Is(err, postgres.ErrBatchRolledBack):
		return http.StatusConflict
	case errors.Is(err, core.ErrNotConfirmed),
		errors.Is(err, errInvalidRequest),
		errors.Is(err, postgres.ErrInvalidRequest),
		errors.As(err, &parseErr):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrRowNotFound):
		return http.StatusNotFound
	case errors.As(err, &rollbackErr):
		if rollbackErr.Message == core.InvalidBatchIDMessage {
			return http.StatusBadRequest
		}
		return http.StatusBadGateway
	case errors.As(err, &backendErr):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}

	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusInternalServerError
}

// writeJSON encodes v with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("json encode error", "error", err)
	}
}
