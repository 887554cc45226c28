package web

// errors.go provides unified error response handling for the web layer.
//
// It ensures all errors are:
//   - Logged with full technical details for debugging (server-side)
//   - Returned to clients as user-friendly messages with action suggestions
//   - Formatted as JSON for API clients and plain text for pages
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls respondError(w, r, err)
//  3. Status comes from core.HTTPStatus, the message from core.MapError
//  4. Technical error + context is logged with request ID for correlation
//  5. User message is rendered in appropriate format for the client

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/astroapi/internal/core"
	"github.com/JonMunkholm/astroapi/internal/logging"
)

// ErrorBody is the machine-readable (Code) and human-readable (Message,
// Action) description of a failed request.
type ErrorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Action  string         `json:"action,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// ErrorResponse represents the JSON structure for API error responses.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// respondError handles error responses with user-friendly messages.
// It logs the technical error server-side and returns a JSON or plain
// response depending on the request.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	// The client went away; nobody reads the body and it is not a fault.
	if core.IsCancellation(err) {
		logging.FromContext(r.Context()).Info("request cancelled",
			"path", r.URL.Path,
			"method", r.Method,
			"error", err.Error(),
		)
		w.WriteHeader(core.StatusClientClosedRequest)
		return
	}

	status := core.HTTPStatus(err)
	userMsg := core.MapError(err)

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}

	// Log the technical error with context; FromContext adds the request id
	logging.FromContext(r.Context()).Log(r.Context(), level, "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
	)

	if wantsJSON(r) {
		respondErrorJSON(w, userMsg, core.ErrorContext(err), status)
	} else {
		respondErrorHTML(w, userMsg, status)
	}
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, ctx map[string]any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: ErrorBody{
		Code:    msg.Code,
		Message: msg.Message,
		Action:  msg.Action,
		Context: ctx,
	}})
}

// respondErrorHTML writes a plain HTML error response.
func respondErrorHTML(w http.ResponseWriter, msg core.UserMessage, statusCode int) {
	http.Error(w, msg.Message+" ("+msg.Code+")", statusCode)
}

// wantsJSON checks if the client prefers JSON response.
func wantsJSON(r *http.Request) bool {
	// API routes default to JSON
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}

	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
