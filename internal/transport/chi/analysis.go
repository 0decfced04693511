package chi

import (
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kailas-cloud/astrocat/internal/domain"
	"github.com/kailas-cloud/astrocat/internal/domain/processing"
	domquality "github.com/kailas-cloud/astrocat/internal/domain/quality"
	crossmatchuc "github.com/kailas-cloud/astrocat/internal/usecase/crossmatch"
	ingestuc "github.com/kailas-cloud/astrocat/internal/usecase/ingest"
	qualityuc "github.com/kailas-cloud/astrocat/internal/usecase/quality"
)

// ListCrossMatches handles GET /api/v1/objects/{objectId}/crossmatches.
func (s *Server) ListCrossMatches(w http.ResponseWriter, r *http.Request) {
	recs, err := s.svc.CrossMatch.ListMatches(r.Context(), chi.URLParam(r, "objectId"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	out := make([]crossMatchRecord, len(recs))
	for i, rec := range recs {
		out[i] = recordToResponse(rec)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

// GetLightCurve handles GET /api/v1/objects/{objectId}/lightcurve.
func (s *Server) GetLightCurve(w http.ResponseWriter, r *http.Request) {
	var filter string
	if err := bindQuery(r, "filter", false, &filter); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	dets, err := s.svc.Observations.LightCurve(r.Context(), chi.URLParam(r, "objectId"), filter)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	out := make([]detectionResponse, len(dets))
	for i, d := range dets {
		out[i] = detectionToResponse(d)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

// AnalyzeVariability handles POST /api/v1/objects/{objectId}/variability.
func (s *Server) AnalyzeVariability(w http.ResponseWriter, r *http.Request) {
	var filter string
	if err := bindQuery(r, "filter", false, &filter); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	res, obj, err := s.svc.Variability.AnalyzeObject(r.Context(), chi.URLParam(r, "objectId"), filter)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, variabilityToResponse(obj.ObjectID(), res))
}

// CrossMatch handles POST /api/v1/crossmatch.
func (s *Server) CrossMatch(w http.ResponseWriter, r *http.Request) {
	var body crossMatchRequest
	if !s.decodeJSON(w, r, &body) {
		return
	}
	if len(body.Sources) == 0 {
		s.handleDomainError(w, r, domain.NewInvalidArgument("sources", "must not be empty"))
		return
	}
	sources := make([]crossmatchuc.Source, len(body.Sources))
	for i, src := range body.Sources {
		sources[i] = crossmatchuc.Source{
			Catalog:   src.Catalog,
			ID:        src.ID,
			RA:        src.RA,
			Dec:       src.Dec,
			PosErr:    src.PositionErrorArcsec,
			Magnitude: orNaN(src.Magnitude),
		}
	}

	outcomes, err := s.svc.CrossMatch.CrossMatchPositions(r.Context(), sources, body.RadiusArcsec)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	resp := crossMatchResponse{Results: make([]crossMatchResult, len(outcomes))}
	for i, o := range outcomes {
		res := crossMatchResult{Catalog: o.Source.Catalog, ID: o.Source.ID, Candidates: o.Candidates}
		if o.Match != nil {
			res.Matched = true
			res.ObjectID = o.Match.Candidate.ID
			res.SeparationArcsec = finite(o.Match.Separation)
			res.Probability = finite(o.Match.Probability)
			res.Significance = finite(o.Match.Significance)
			res.Priority = o.Match.Priority.String()
			resp.Matched++
		}
		resp.Results[i] = res
	}
	writeJSON(w, http.StatusOK, resp)
}

// Ingest handles POST /api/v1/ingest.
func (s *Server) Ingest(w http.ResponseWriter, r *http.Request) {
	var body ingestRequest
	if !s.decodeJSON(w, r, &body) {
		return
	}
	if len(body.Sources) == 0 {
		s.handleDomainError(w, r, domain.NewInvalidArgument("sources", "must not be empty"))
		return
	}
	opts := ingestuc.Options{
		Workflow:    body.Workflow,
		SourceEpoch: body.SourceEpoch,
		TargetEpoch: body.TargetEpoch,
		Parallax:    body.Parallax,
		BatchSize:   body.BatchSize,
		SessionID:   body.SessionID,
	}
	if body.ProcessingType != "" {
		typ, err := processing.ParseType(body.ProcessingType)
		if err != nil {
			s.handleDomainError(w, r, err)
			return
		}
		opts.ProcessingType = typ
	}
	sources := make([]ingestuc.Source, len(body.Sources))
	for i, src := range body.Sources {
		sources[i] = ingestuc.Source{
			Draft:            src.Object.toDomain(),
			InstrumentalMag:  src.InstrumentalMag,
			Filter:           src.Filter,
			Airmass:          src.Airmass,
			ExposureSec:      src.ExposureSec,
			ApertureDiameter: src.ApertureDiameter,
			RadialVelocity:   src.RadialVelocity,
		}
	}

	res, err := s.svc.Ingest.Ingest(r.Context(), sources, opts)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	resp := ingestResponse{
		ProcessingID:    res.ProcessingID,
		WorkflowVersion: res.WorkflowVersion,
		Imported:        res.Imported,
		Failed:          make([]rowFailure, len(res.Failed)),
		ManifestKey:     res.ManifestKey,
	}
	for i, f := range res.Failed {
		resp.Failed[i] = rowFailure{Index: f.Index, ObjectID: f.ObjectID, Error: f.Error}
	}
	writeJSON(w, http.StatusOK, resp)
}

// AssessQuality handles GET and POST /api/v1/quality. GET takes the region from the query
// and assesses without a reference; POST may carry reference sources in the body.
func (s *Server) AssessQuality(w http.ResponseWriter, r *http.Request) {
	var body qualityRequest
	if r.Method == http.MethodPost {
		if !s.decodeJSON(w, r, &body) {
			return
		}
	} else {
		for _, p := range []struct {
			name string
			dest *float64
		}{{"minRa", &body.MinRA}, {"maxRa", &body.MaxRA}, {"minDec", &body.MinDec}, {"maxDec", &body.MaxDec}} {
			if err := bindQuery(r, p.name, true, p.dest); err != nil {
				s.handleDomainError(w, r, err)
				return
			}
		}
	}
	var reference []domquality.Source
	for i, src := range body.Reference {
		ref := src.toDomain()
		if math.IsNaN(ref.RA) || math.IsNaN(ref.Dec) {
			s.handleDomainError(w, r, domain.NewInvalidArgument("reference", "every source needs ra and dec"))
			return
		}
		if ref.ID == "" {
			ref.ID = "ref-" + strconv.Itoa(i)
		}
		reference = append(reference, ref)
	}

	report, err := s.svc.Quality.Assess(r.Context(), qualityuc.Region{
		MinRA: body.MinRA, MaxRA: body.MaxRA, MinDec: body.MinDec, MaxDec: body.MaxDec,
	}, reference)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, qualityToResponse(report))
}
