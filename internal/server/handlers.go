package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"shifttime/internal/deployment"
	"shifttime/internal/project"
	"shifttime/internal/sheets"
	"shifttime/pkg/templates"

	"github.com/go-chi/chi/v5"
)

// isoMillis matches the timestamp format browsers produce for toISOString
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// HandleHealth reports liveness and which upstreams are configured
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"ok":              true,
		"service":         ServiceName,
		"time":            s.now().UTC().Format(isoMillis),
		"hasSheetsUrl":    s.Sheets.Configured(),
		"hasNetlifyToken": s.Netlify.Configured(),
	})
}

// HandleTemplates returns the static template catalog
func (s *Server) HandleTemplates(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, templates.Catalog())
}

// HandleKVList returns the key-value entries as [{key, value}] when the
// data store answer can be read that way, and verbatim otherwise.
func (s *Server) HandleKVList(w http.ResponseWriter, r *http.Request) {
	res, err := s.KV.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if res.OK() {
		if items, ok := sheets.KeyValues(res.Body); ok {
			s.respondJSON(w, res.Status, items)
			return
		}
	}
	s.respondJSON(w, res.Status, res.Body)
}

// HandleKVUpsert forwards the body to the data store unchanged
func (s *Server) HandleKVUpsert(w http.ResponseWriter, r *http.Request) {
	body, ok := s.decodeBody(w, r)
	if !ok {
		return
	}

	res, err := s.KV.UpsertRaw(r.Context(), body)
	s.respondResult(w, r, res, err)
}

// HandleProjectsList forwards the project list
func (s *Server) HandleProjectsList(w http.ResponseWriter, r *http.Request) {
	res, err := s.Projects.List(r.Context())
	s.respondResult(w, r, res, err)
}

// HandleProjectsCreate forwards a create request
func (s *Server) HandleProjectsCreate(w http.ResponseWriter, r *http.Request) {
	body, ok := s.decodeBody(w, r)
	if !ok {
		return
	}

	res, err := s.Projects.Create(r.Context(), body)
	s.respondResult(w, r, res, err)
}

// HandleProjectGet returns one project record found by scanning the list
func (s *Server) HandleProjectGet(w http.ResponseWriter, r *http.Request) {
	id, ok := project.CoerceID(chi.URLParam(r, "id"))
	if !ok {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid project id"})
		return
	}

	rec, err := s.Projects.FindRecord(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, rec)
}

type provisionRequest struct {
	ProjectID any    `json:"projectId"`
	Prefix    string `json:"prefix"`
}

// HandleProvisionSite creates a hosting site and maps the project to it
func (s *Server) HandleProvisionSite(w http.ResponseWriter, r *http.Request) {
	var req provisionRequest
	if !s.decodeInto(w, r, &req) {
		return
	}

	id, ok := project.CoerceID(req.ProjectID)
	if !ok {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "projectId required"})
		return
	}

	site, err := s.Pipeline.ProvisionSite(r.Context(), id, req.Prefix)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, struct {
		OK bool `json:"ok"`
		*deployment.SiteResult
	}{OK: true, SiteResult: site})
}

type publishRequest struct {
	ID        any    `json:"id"`
	ProjectID any    `json:"projectId"`
	SiteID    string `json:"siteId"`
}

func (req publishRequest) projectID() (int64, bool) {
	if id, ok := project.CoerceID(req.ID); ok {
		return id, true
	}
	return project.CoerceID(req.ProjectID)
}

// HandlePublish materializes the project's files without deploying
func (s *Server) HandlePublish(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if !s.decodeInto(w, r, &req) {
		return
	}

	id, ok := req.projectID()
	if !ok {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "id required"})
		return
	}

	pub, err := s.Pipeline.Publish(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"project":  pub.Project,
		"template": pub.Template,
		"files":    pub.Files,
	})
}

// HandleDeploy packs the project and uploads it. The provider's status and
// body are returned as they came back.
func (s *Server) HandleDeploy(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if !s.decodeInto(w, r, &req) {
		return
	}

	id, ok := req.projectID()
	if !ok {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "id required"})
		return
	}

	start := time.Now()
	result, err := s.Pipeline.Deploy(r.Context(), id, req.SiteID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.Logger.Info("Deploy finished",
		"project_id", id,
		"site_id", result.SiteID,
		"status", result.Status,
		"duration_ms", time.Since(start).Milliseconds())
	s.respondJSON(w, result.Status, result.Body)
}

// HandleUnknownAPI answers every /api route that does not exist
func (s *Server) HandleUnknownAPI(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusNotFound, map[string]string{"error": "Unknown API route"})
}

// respondResult passes a data store answer through, status and body
func (s *Server) respondResult(w http.ResponseWriter, r *http.Request, res sheets.Result, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondJSON(w, res.Status, res.Body)
}

// decodeBody reads an arbitrary JSON body. An empty body becomes {}.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request) (any, bool) {
	var body any
	if !s.decodeInto(w, r, &body) {
		return nil, false
	}
	if body == nil {
		body = map[string]any{}
	}
	return body, true
}

func (s *Server) decodeInto(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil {
		return true
	}

	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		s.respondJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "Payload too large"})
		return false
	}

	s.Logger.Warn("Failed to parse JSON payload", "path", r.URL.Path, "error", err)
	s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON payload"})
	return false
}

// respondJSON sends a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	respondJSON(w, s.Logger, statusCode, data)
}

func respondJSON(w http.ResponseWriter, logger *slog.Logger, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode JSON response", "error", err)
	}
}
