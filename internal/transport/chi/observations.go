package chi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kailas-cloud/astrocat/internal/domain"
	"github.com/kailas-cloud/astrocat/internal/domain/observation"
)

// CreateObservation handles POST /api/v1/observations.
func (s *Server) CreateObservation(w http.ResponseWriter, r *http.Request) {
	var body observationRequest
	if !s.decodeJSON(w, r, &body) {
		return
	}
	o, err := s.svc.Observations.Create(r.Context(), body.toDomain())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, observationToResponse(o))
}

// ListObservations handles GET /api/v1/observations?from=&to= (RFC 3339, inclusive).
func (s *Server) ListObservations(w http.ResponseWriter, r *http.Request) {
	var from, to time.Time
	if err := bindQuery(r, "from", true, &from); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if err := bindQuery(r, "to", true, &to); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	obs, err := s.svc.Observations.ListBetween(r.Context(), from, to)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	out := make([]observationResponse, len(obs))
	for i, o := range obs {
		out[i] = observationToResponse(o)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

// GetObservation handles GET /api/v1/observations/{observationId}.
func (s *Server) GetObservation(w http.ResponseWriter, r *http.Request) {
	o, err := s.svc.Observations.Get(r.Context(), chi.URLParam(r, "observationId"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, observationToResponse(o))
}

// DeleteObservation handles DELETE /api/v1/observations/{observationId}.
func (s *Server) DeleteObservation(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Observations.Delete(r.Context(), chi.URLParam(r, "observationId")); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TransitionObservation handles POST /api/v1/observations/{observationId}/status.
func (s *Server) TransitionObservation(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if !s.decodeJSON(w, r, &body) {
		return
	}
	next := observation.Status(strings.ToUpper(body.Status))
	if !next.IsValid() {
		s.handleDomainError(w, r, domain.NewInvalidArgument("status", "unknown status "+body.Status))
		return
	}
	o, err := s.svc.Observations.Transition(r.Context(), chi.URLParam(r, "observationId"), next)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, observationToResponse(o))
}

// AddDetections handles POST /api/v1/observations/{observationId}/detections.
func (s *Server) AddDetections(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Detections []detectionDTO `json:"detections"`
	}
	if !s.decodeJSON(w, r, &body) {
		return
	}
	if len(body.Detections) == 0 {
		s.handleDomainError(w, r, domain.NewInvalidArgument("detections", "must not be empty"))
		return
	}
	specs := make([]observation.DetectionSpec, len(body.Detections))
	for i, d := range body.Detections {
		specs[i] = d.toDomain()
	}
	dets, err := s.svc.Observations.AddDetections(r.Context(), chi.URLParam(r, "observationId"), specs)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	out := make([]detectionResponse, len(dets))
	for i, d := range dets {
		out[i] = detectionToResponse(d)
	}
	writeJSON(w, http.StatusCreated, map[string]any{"items": out})
}
