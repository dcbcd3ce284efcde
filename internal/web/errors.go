package web

// errors.go provides unified error response handling for the web layer.
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls respondError(w, r, err)
//  3. The status comes from the error kind, the body from errs.Map
//  4. Technical error + context is logged with request ID for correlation
//  5. User message is rendered as JSON for API routes, plain text otherwise

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/datacleaner/internal/core"
	"github.com/JonMunkholm/datacleaner/internal/errs"
	"github.com/JonMunkholm/datacleaner/internal/logging"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
	RunID   string `json:"run_id,omitempty"`
}

// validationKinds are input problems the client can fix by changing the
// file or the request.
var validationKinds = []error{
	errs.ErrUnsupportedFormat,
	errs.ErrEmptyData,
	errs.ErrConversionFailure,
	errs.ErrMissingJoinKey,
	errs.ErrKeyTypeMismatch,
	errs.ErrMissingFields,
	errs.ErrLoadFailure,
	errs.ErrColumnCollision,
	errs.ErrInvalidHeader,
}

// statusFor maps an error to its HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrNotFound), errors.Is(err, core.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrInvalidPath), errors.Is(err, core.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, core.ErrTooManyJobs):
		return http.StatusServiceUnavailable
	}
	for _, kind := range validationKinds {
		if errors.Is(err, kind) {
			return http.StatusUnprocessableEntity
		}
	}
	return http.StatusInternalServerError
}

// respondError logs the technical error server-side and returns a
// user-friendly response. runID is attached when a run was recorded.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, runID string) {
	status := statusFor(err)
	userMsg := errs.Map(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
		"run_id", runID,
	)

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "5")
	}

	if wantsJSON(r) {
		respondErrorJSON(w, userMsg, status, runID)
	} else {
		respondErrorHTML(w, userMsg, status)
	}
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, msg errs.UserMessage, status int, runID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
		RunID:   runID,
	})
}

// respondErrorHTML writes a plain error response for page routes.
func respondErrorHTML(w http.ResponseWriter, msg errs.UserMessage, status int) {
	http.Error(w, msg.Message+" ("+msg.Code+"). "+msg.Action, status)
}

// writeError writes a JSON error for failures raised by the web layer
// itself (rate limiting, malformed bodies).
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{
		Error:   message,
		Message: message,
		Code:    codeForStatus(status),
	})
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusTooManyRequests:
		return "RATE001"
	case http.StatusBadRequest:
		return "REQ001"
	case http.StatusRequestEntityTooLarge:
		return "REQ002"
	}
	return "ERR000"
}

// wantsJSON checks if the client prefers JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	// API routes default to JSON
	return strings.HasPrefix(r.URL.Path, "/api/")
}
