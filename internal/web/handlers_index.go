package web

import (
	"net/http"
	"time"

	"github.com/JonMunkholm/astroapi/internal/web/templates"
)

// handleIndex renders the project list page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	projects, err := s.service.ListProjects(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	rows := make([]templates.ProjectRow, len(projects))
	for i, p := range projects {
		rows[i] = templates.ProjectRow{
			ID:        p.ID,
			Name:      p.Name,
			Files:     len(p.Paths),
			Variables: len(p.Config.Variables),
			Favourite: p.Favourite,
		}
		if p.LastOpened != nil {
			rows[i].LastOpened = p.LastOpened.Format(time.DateTime)
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.Index(rows).Render(r.Context(), w); err != nil {
		s.respondError(w, r, err)
	}
}
