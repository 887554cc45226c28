package web

import (
	"net/http"

	"github.com/JonMunkholm/astroapi/internal/core"
	"github.com/JonMunkholm/astroapi/internal/logging"
)

type healthResponse struct {
	Status    string                    `json:"status"`
	Processes core.ProcessLimiterStatus `json:"processes"`
}

// handleHealth reports store reachability and process slot usage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "OK", Processes: s.service.Limiter().Status()}
	status := http.StatusOK

	if err := s.service.Ping(r.Context()); err != nil {
		logging.FromContext(r.Context()).Warn("health check failed", "error", err)
		resp.Status = "UNAVAILABLE"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// handleRanges reads the variable ranges of one or more files without
// creating a project: GET /api/ranges?path=a.hdf5&path=b.hdf5.
func (s *Server) handleRanges(w http.ResponseWriter, r *http.Request) {
	paths := r.URL.Query()["path"]
	if len(paths) == 0 {
		s.respondError(w, r, &core.ValidationError{Field: "path", Reason: "at least one path query parameter is required"})
		return
	}

	files, err := s.service.ReadRanges(r.Context(), paths)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"files":          files,
		"config_process": core.AggregateConfig(files),
	})
}
