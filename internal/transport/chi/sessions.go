package chi

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
)

const featureIntermediates = "intermediate storage"

// ListSession handles GET /api/v1/sessions/{sessionId}.
func (s *Server) ListSession(w http.ResponseWriter, r *http.Request) {
	if s.svc.Intermediates == nil {
		notConfigured(w, featureIntermediates)
		return
	}
	keys, err := s.svc.Intermediates.ListSession(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if keys == nil {
		keys = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"keys": keys})
}

// DeleteSession handles DELETE /api/v1/sessions/{sessionId}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if s.svc.Intermediates == nil {
		notConfigured(w, featureIntermediates)
		return
	}
	n, err := s.svc.Intermediates.DeleteSession(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

// PutIntermediate handles PUT /api/v1/sessions/{sessionId}/{stepType}/{filename}.
// The raw body is stored as is.
func (s *Server) PutIntermediate(w http.ResponseWriter, r *http.Request) {
	if s.svc.Intermediates == nil {
		notConfigured(w, featureIntermediates)
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	key, err := s.svc.Intermediates.Put(r.Context(),
		chi.URLParam(r, "sessionId"), chi.URLParam(r, "stepType"), chi.URLParam(r, "filename"),
		data, s.now())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"key": key})
}

// GetIntermediate handles GET /api/v1/intermediates?key=.
func (s *Server) GetIntermediate(w http.ResponseWriter, r *http.Request) {
	if s.svc.Intermediates == nil {
		notConfigured(w, featureIntermediates)
		return
	}
	var key string
	if err := bindQuery(r, "key", true, &key); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	data, err := s.svc.Intermediates.Get(r.Context(), key)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
