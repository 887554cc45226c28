package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/astroapi/internal/core"
	"github.com/go-chi/chi/v5"
)

// warningsHeader carries the selections rejected by a config update.
const warningsHeader = "X-Config-Warnings"

// projectID parses the {id} URL parameter.
func projectID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &core.ValidationError{Field: "id", Reason: "must be a positive integer, got " + strconv.Quote(raw)}
	}
	return id, nil
}

// decodeJSON reads a size-limited JSON body into v.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxBodySize)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return &core.ValidationError{Field: "body", Reason: "request body too large"}
		case errors.Is(err, io.EOF):
			return &core.ValidationError{Field: "body", Reason: "request body is empty"}
		default:
			return &core.ValidationError{Field: "body", Reason: "invalid JSON: " + err.Error()}
		}
	}
	return nil
}

// setWarnings reports rejected selections without failing the request.
func setWarnings(w http.ResponseWriter, rejected []*core.InvalidRangeError) {
	if len(rejected) == 0 {
		return
	}
	msgs := make([]string, len(rejected))
	for i, r := range rejected {
		msgs[i] = r.Error()
	}
	w.Header().Set(warningsHeader, strings.Join(msgs, "; "))
}
