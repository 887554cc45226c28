package web

import (
	"net/http"

	"github.com/JonMunkholm/astroapi/internal/core"
)

// addFilesRequest is the body of POST /api/projects/{id}/files.
type addFilesRequest struct {
	Paths []string `json:"paths"`
}

// handleListProjects returns every project, favourites and recent ones first.
func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.service.ListProjects(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

// handleCreateProject reads every file's ranges and stores the new project.
func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var in core.ProjectCreate
	if err := s.decodeJSON(w, r, &in); err != nil {
		s.respondError(w, r, err)
		return
	}

	project, err := s.service.CreateProject(r.Context(), in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

// handleGetProject returns one project and marks it as opened.
func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id, err := projectID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	project, err := s.service.GetProject(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// handleUpdateProject updates metadata and either replaces the file set or
// reconciles the submitted configuration.
func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	id, err := projectID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var upd core.ProjectUpdate
	if err := s.decodeJSON(w, r, &upd); err != nil {
		s.respondError(w, r, err)
		return
	}

	project, rejected, err := s.service.UpdateProject(r.Context(), id, upd)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	setWarnings(w, rejected)
	writeJSON(w, http.StatusOK, project)
}

// handleDeleteProject removes a project with its configuration.
func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id, err := projectID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if err := s.service.DeleteProject(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Project deleted successfully"})
}

// handleAddFiles links more files to a project, widening its ranges.
func (s *Server) handleAddFiles(w http.ResponseWriter, r *http.Request) {
	id, err := projectID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var in addFilesRequest
	if err := s.decodeJSON(w, r, &in); err != nil {
		s.respondError(w, r, err)
		return
	}
	if len(in.Paths) == 0 {
		s.respondError(w, r, &core.ValidationError{Field: "paths", Reason: "at least one path is required"})
		return
	}

	project, err := s.service.AddFiles(r.Context(), id, in.Paths)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}
