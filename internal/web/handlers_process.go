package web

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/astroapi/internal/core"
	"github.com/vmihailenco/msgpack/v5"
)

const msgpackContentType = "application/octet-stream"

// handleProcess stores the submitted configuration and returns the combined
// table of every project file. The table is MessagePack encoded unless the
// client asks for JSON.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	id, err := projectID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var cfg core.ProjectConfig
	if err := s.decodeJSON(w, r, &cfg); err != nil {
		s.respondError(w, r, err)
		return
	}

	result, err := s.service.Process(r.Context(), id, cfg)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	setWarnings(w, result.Rejected)
	w.Header().Set("X-Process-Duration-Ms", strconv.FormatInt(result.Duration.Milliseconds(), 10))

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		writeJSON(w, http.StatusOK, result.Table)
		return
	}

	data, err := msgpack.Marshal(result.Table)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", msgpackContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
