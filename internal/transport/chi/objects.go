package chi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kailas-cloud/astrocat/internal/domain"
	"github.com/kailas-cloud/astrocat/internal/domain/astrometry"
	"github.com/kailas-cloud/astrocat/internal/domain/object"
	cataloguc "github.com/kailas-cloud/astrocat/internal/usecase/catalog"
)

// Boundary limits on cone requests; the catalog service applies its own configured cap on top.
const (
	MaxConeRadiusArcsec = 3600.0
	MaxConeResults      = 10000
)

// parseCriteria binds the shared attribute filters of the search routes.
func parseCriteria(r *http.Request) (object.Criteria, error) {
	var (
		c     object.Criteria
		types []string
	)
	if err := bindQuery(r, "type", false, &types); err != nil {
		return c, err
	}
	for _, t := range types {
		typ := object.Type(t)
		if !typ.IsValid() {
			return c, domain.NewInvalidArgument("type", "unknown object type "+t)
		}
		c.Types = append(c.Types, typ)
	}
	for _, p := range []struct {
		name string
		dest **float64
	}{
		{"minMagnitude", &c.MinMagnitude},
		{"maxMagnitude", &c.MaxMagnitude},
		{"minSignificance", &c.MinSignificance},
		{"minProperMotion", &c.MinProperMotion},
		{"minParallax", &c.MinParallax},
	} {
		if err := bindQuery(r, p.name, false, p.dest); err != nil {
			return c, err
		}
	}
	if err := bindQuery(r, "catalog", false, &c.CatalogName); err != nil {
		return c, err
	}
	return c, c.Validate()
}

// ConeSearch handles GET /api/v1/objects/cone.
func (s *Server) ConeSearch(w http.ResponseWriter, r *http.Request) {
	var (
		q      cataloguc.ConeQuery
		method string
	)
	for _, p := range []struct {
		name string
		dest any
		req  bool
	}{
		{"ra", &q.RA, true},
		{"dec", &q.Dec, true},
		{"radius", &q.RadiusArcsec, true},
		{"maxResults", &q.MaxResults, false},
		{"filter", &q.Filter, false},
		{"method", &method, false},
	} {
		if err := bindQuery(r, p.name, p.req, p.dest); err != nil {
			s.handleDomainError(w, r, err)
			return
		}
	}
	if q.RadiusArcsec <= 0 || q.RadiusArcsec > MaxConeRadiusArcsec {
		s.handleDomainError(w, r, domain.NewInvalidArgument("radius", "must be in (0, 3600] arcsec"))
		return
	}
	if r.URL.Query().Has("maxResults") && (q.MaxResults < 1 || q.MaxResults > MaxConeResults) {
		s.handleDomainError(w, r, domain.NewInvalidArgument("maxResults", "must be in [1, 10000]"))
		return
	}
	m, err := astrometry.ParseSeparationMethod(method)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	q.Method = m
	if q.Criteria, err = parseCriteria(r); err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	hits, err := s.svc.Catalog.Cone(r.Context(), q)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	items := make([]objectResponse, len(hits))
	for i, h := range hits {
		items[i] = hitToResponse(h)
	}
	writeJSON(w, http.StatusOK, coneResponse{
		Items:         items,
		Total:         len(items),
		RadiusDegrees: q.RadiusArcsec / 3600,
		RAHours:       q.RA / 15,
	})
}

// BoxSearch handles GET /api/v1/objects/box.
func (s *Server) BoxSearch(w http.ResponseWriter, r *http.Request) {
	var q cataloguc.BoxQuery
	for _, p := range []struct {
		name string
		dest any
		req  bool
	}{
		{"minRa", &q.MinRA, true},
		{"maxRa", &q.MaxRA, true},
		{"minDec", &q.MinDec, true},
		{"maxDec", &q.MaxDec, true},
		{"offset", &q.Offset, false},
		{"limit", &q.Limit, false},
	} {
		if err := bindQuery(r, p.name, p.req, p.dest); err != nil {
			s.handleDomainError(w, r, err)
			return
		}
	}
	var err error
	if q.Criteria, err = parseCriteria(r); err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	page, err := s.svc.Catalog.Box(r.Context(), q)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pageToResponse(page))
}

// FindNearest handles GET /api/v1/objects/nearest. The optional type narrows the search to one class.
func (s *Server) FindNearest(w http.ResponseWriter, r *http.Request) {
	var ra, dec, maxSep float64
	for _, p := range []struct {
		name string
		dest *float64
	}{{"ra", &ra}, {"dec", &dec}, {"maxSeparation", &maxSep}} {
		if err := bindQuery(r, p.name, true, p.dest); err != nil {
			s.handleDomainError(w, r, err)
			return
		}
	}

	var raw string
	if err := bindQuery(r, "type", false, &raw); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	typ := object.Type(raw)
	if raw != "" && !typ.IsValid() {
		s.handleDomainError(w, r, domain.NewInvalidArgument("type", "unknown object type "+raw))
		return
	}

	m, found, err := s.svc.Catalog.FindNearest(r.Context(), ra, dec, typ, maxSep)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	resp := nearestResponse{Found: found}
	if found {
		obj := hitToResponse(m.Hit)
		resp.Object = &obj
		resp.Confidence = m.Confidence
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetObject handles GET /api/v1/objects/{objectId}.
func (s *Server) GetObject(w http.ResponseWriter, r *http.Request) {
	o, err := s.svc.Catalog.Get(r.Context(), chi.URLParam(r, "objectId"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, objectToResponse(o))
}

// PutObject handles PUT /api/v1/objects/{objectId}. The path id wins over the body.
func (s *Server) PutObject(w http.ResponseWriter, r *http.Request) {
	var body objectDraft
	if !s.decodeJSON(w, r, &body) {
		return
	}
	id := chi.URLParam(r, "objectId")
	if body.ObjectID != "" && body.ObjectID != id {
		s.handleDomainError(w, r, domain.NewInvalidArgument("objectId", "does not match the path"))
		return
	}
	body.ObjectID = id

	o, err := s.svc.Catalog.Save(r.Context(), body.toDomain())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, objectToResponse(o))
}

// DeleteObject handles DELETE /api/v1/objects/{objectId}.
func (s *Server) DeleteObject(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Catalog.Delete(r.Context(), chi.URLParam(r, "objectId")); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BulkImport handles POST /api/v1/objects/bulk.
func (s *Server) BulkImport(w http.ResponseWriter, r *http.Request) {
	var body bulkRequest
	if !s.decodeJSON(w, r, &body) {
		return
	}
	if len(body.Objects) == 0 {
		s.handleDomainError(w, r, domain.NewInvalidArgument("objects", "must not be empty"))
		return
	}
	drafts := make([]object.Draft, len(body.Objects))
	for i, d := range body.Objects {
		drafts[i] = d.toDomain()
	}

	res, err := s.svc.Catalog.BulkImport(r.Context(), drafts, body.BatchSize)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	resp := bulkResponse{Imported: res.Imported, Failed: make([]rowFailure, len(res.Failed))}
	for i, f := range res.Failed {
		resp.Failed[i] = rowFailure{Index: f.Index, ObjectID: f.ObjectID, Error: safeMessage(f.Err)}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetStatistics handles GET /api/v1/statistics.
func (s *Server) GetStatistics(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Catalog.Statistics(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statisticsToResponse(st))
}
