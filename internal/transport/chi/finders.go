package chi

import (
	"net/http"
	"time"

	"github.com/kailas-cloud/astrocat/internal/domain"
	"github.com/kailas-cloud/astrocat/internal/domain/object"
)

// bindPage binds the optional offset/limit pair shared by the finder routes.
func bindPage(r *http.Request) (offset, limit int, err error) {
	if err = bindQuery(r, "offset", false, &offset); err != nil {
		return 0, 0, err
	}
	if err = bindQuery(r, "limit", false, &limit); err != nil {
		return 0, 0, err
	}
	return offset, limit, nil
}

// FindHighProperMotion handles GET /api/v1/objects/high-proper-motion.
// Without min the configured threshold applies.
func (s *Server) FindHighProperMotion(w http.ResponseWriter, r *http.Request) {
	var minPM float64
	if err := bindQuery(r, "min", false, &minPM); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	offset, limit, err := bindPage(r)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	page, err := s.svc.Catalog.FindHighProperMotion(r.Context(), minPM, offset, limit)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pageToResponse(page))
}

// FindNearby handles GET /api/v1/objects/nearby.
func (s *Server) FindNearby(w http.ResponseWriter, r *http.Request) {
	var maxDist float64
	if err := bindQuery(r, "maxDistancePc", true, &maxDist); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	offset, limit, err := bindPage(r)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	page, err := s.svc.Catalog.FindNearby(r.Context(), maxDist, offset, limit)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pageToResponse(page))
}

// FindByMagnitude handles GET /api/v1/objects/magnitude.
func (s *Server) FindByMagnitude(w http.ResponseWriter, r *http.Request) {
	var lo, hi float64
	if err := bindQuery(r, "min", true, &lo); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if err := bindQuery(r, "max", true, &hi); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if lo > hi {
		s.handleDomainError(w, r, domain.NewInvalidArgument("min", "must not exceed max"))
		return
	}
	offset, limit, err := bindPage(r)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	page, err := s.svc.Catalog.FindByMagnitudeRange(r.Context(), lo, hi, offset, limit)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pageToResponse(page))
}

// FindByType handles GET /api/v1/objects/by-type.
func (s *Server) FindByType(w http.ResponseWriter, r *http.Request) {
	var raw string
	if err := bindQuery(r, "type", true, &raw); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	typ := object.Type(raw)
	if !typ.IsValid() {
		s.handleDomainError(w, r, domain.NewInvalidArgument("type", "unknown object type "+raw))
		return
	}
	offset, limit, err := bindPage(r)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	page, err := s.svc.Catalog.FindByType(r.Context(), typ, offset, limit)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pageToResponse(page))
}

// FindNeedingFollowUp handles GET /api/v1/objects/follow-up.
func (s *Server) FindNeedingFollowUp(w http.ResponseWriter, r *http.Request) {
	var days int
	if err := bindQuery(r, "maxDaysOld", true, &days); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	offset, limit, err := bindPage(r)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	page, err := s.svc.Catalog.FindNeedingFollowUp(r.Context(), days, offset, limit)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pageToResponse(page))
}

// CleanupTransients handles DELETE /api/v1/objects/transients.
func (s *Server) CleanupTransients(w http.ResponseWriter, r *http.Request) {
	var before time.Time
	if err := bindQuery(r, "olderThan", true, &before); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	n, err := s.svc.Catalog.CleanupTransients(r.Context(), before)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}
