package httpapi

import (
	"net/http"

	"github.com/agentkit/orchestrator/pkg/toolkit"
)

func toolkitFilter(r *http.Request) toolkit.Filter {
	return toolkit.Filter{
		Category:     r.URL.Query().Get("category"),
		EnabledOnly:  r.URL.Query().Get("enabled_only") == "true",
		RegisteredBy: r.URL.Query().Get("registered_by"),
	}
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	descs := s.rt.Tools.List(toolkitFilter(r))
	out := make([]map[string]any, len(descs))
	for i, d := range descs {
		out[i] = map[string]any{
			"name":        d.Name,
			"description": d.Description,
			"category":    d.Category,
			"version":     d.Version,
			"author":      d.Author,
			"schema":      d.Schema,
		}
	}
	writeJSON(w, http.StatusOK, out)
}
