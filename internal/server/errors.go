package server

import (
	"context"
	"errors"
	"net/http"

	"shifttime/internal/deployment"
	"shifttime/internal/netlify"
	"shifttime/internal/project"
)

// writeError maps pipeline and upstream errors to HTTP answers. Upstream
// rejections keep their original status and body.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var upstream *project.UpstreamError
	var provider *netlify.APIError

	switch {
	case errors.As(err, &upstream):
		s.respondJSON(w, upstream.Status, upstream.Body)
		return
	case errors.As(err, &provider):
		s.respondJSON(w, provider.Status, provider.Body)
		return
	case errors.Is(err, project.ErrNotFound):
		s.respondJSON(w, http.StatusNotFound, map[string]string{"error": "Project not found"})
		return
	case errors.Is(err, deployment.ErrSiteNotLinked):
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": deployment.ErrSiteNotLinked.Error()})
		return
	case errors.Is(err, deployment.ErrMissingField):
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	case errors.Is(err, context.DeadlineExceeded):
		s.Logger.Error("Upstream timed out", "path", r.URL.Path, "error", err)
		s.respondJSON(w, http.StatusGatewayTimeout, map[string]string{"error": "Upstream timed out"})
		return
	}

	// ErrNotConfigured, ErrMalformedList and transport failures. Transport
	// errors quote the upstream URL, which must not reach the client.
	message := s.redactor.Redact(err.Error())
	s.Logger.Error("Request failed", "path", r.URL.Path, "error", message)
	s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": message})
}
