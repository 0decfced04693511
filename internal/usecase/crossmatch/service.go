// Package crossmatch associates sources from external catalogs with catalog objects.
package crossmatch

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/astrocat/internal/domain"
	xm "github.com/kailas-cloud/astrocat/internal/domain/crossmatch"
	"github.com/kailas-cloud/astrocat/internal/domain/object"
	"github.com/kailas-cloud/astrocat/internal/metrics"
	"github.com/kailas-cloud/astrocat/internal/usecase/catalog"
)

// Defaults.
const (
	DefaultRadiusArcsec = 1.0
	DefaultVersion      = "1.0"
	// MaxCandidates bounds the cone search per source.
	MaxCandidates = 1000
)

// Source is an entry of an external catalog to be matched. Magnitude is NaN when unknown.
type Source struct {
	Catalog   string
	ID        string
	RA        float64
	Dec       float64
	PosErr    float64 // arcsec, 1σ
	Magnitude float64
}

// Outcome is the result for one source. Record is nil when nothing matched.
type Outcome struct {
	Source     Source
	Candidates int
	Match      *xm.Match
	Record     *xm.Record
}

// Service runs the probabilistic matcher against the catalog.
type Service struct {
	search  Searcher
	store   Store
	radius  float64
	version string
	logger  *zap.Logger
	now     func() time.Time
}

// New creates a cross-match service.
func New(search Searcher, store Store) *Service {
	return &Service{
		search:  search,
		store:   store,
		radius:  DefaultRadiusArcsec,
		version: DefaultVersion,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
}

// WithDefaultRadius sets the radius used when a request gives none.
func (s *Service) WithDefaultRadius(arcsec float64) *Service {
	if arcsec > 0 {
		s.radius = arcsec
	}
	return s
}

// WithVersion labels persisted matches with the matcher version.
func (s *Service) WithVersion(v string) *Service {
	s.version = v
	return s
}

// WithLogger sets the logger.
func (s *Service) WithLogger(l *zap.Logger) *Service {
	if l != nil {
		s.logger = l
	}
	return s
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CrossMatchPositions matches every source against the catalog objects within radiusArcsec
// (the default when zero) and upserts the accepted matches. Sources without an acceptable
// counterpart are reported with a nil Record; that is not an error.
func (s *Service) CrossMatchPositions(ctx context.Context, sources []Source, radiusArcsec float64) ([]Outcome, error) {
	if radiusArcsec == 0 {
		radiusArcsec = s.radius
	}
	if math.IsNaN(radiusArcsec) || radiusArcsec < 0 {
		return nil, domain.NewInvalidArgument("radiusArcsec", "must be positive")
	}
	for i, src := range sources {
		if src.Catalog == "" || src.ID == "" {
			return nil, domain.NewInvalidArgument(fmt.Sprintf("sources[%d]", i), "catalog and id are required")
		}
	}

	outcomes := make([]Outcome, 0, len(sources))
	var records []xm.Record
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrCancelled, err)
		}
		out, err := s.matchOne(ctx, src, radiusArcsec)
		if err != nil {
			return nil, err
		}
		if out.Record != nil {
			records = append(records, *out.Record)
			metrics.CrossMatchesTotal.WithLabelValues("matched").Inc()
		} else {
			metrics.CrossMatchesTotal.WithLabelValues("no_match").Inc()
		}
		outcomes = append(outcomes, out)
	}

	if len(records) > 0 {
		saved, err := s.store.Upsert(ctx, records)
		if err != nil {
			return nil, fmt.Errorf("store cross-matches: %w", err)
		}
		j := 0
		for i := range outcomes {
			if outcomes[i].Record != nil {
				outcomes[i].Record = &saved[j]
				j++
			}
		}
	}
	s.logger.Info("cross-match finished",
		zap.Int("sources", len(sources)), zap.Int("matched", len(records)), zap.Float64("radius_arcsec", radiusArcsec))
	return outcomes, nil
}

func (s *Service) matchOne(ctx context.Context, src Source, radius float64) (Outcome, error) {
	out := Outcome{Source: src}
	hits, err := s.search.Cone(ctx, catalog.ConeQuery{
		RA: src.RA, Dec: src.Dec, RadiusArcsec: radius, MaxResults: MaxCandidates,
	})
	if err != nil {
		return out, fmt.Errorf("candidates for %s/%s: %w", src.Catalog, src.ID, err)
	}
	out.Candidates = len(hits)
	if len(hits) == 0 {
		return out, nil
	}

	candidates := make([]xm.Candidate, len(hits))
	for i, h := range hits {
		candidates[i] = candidateFrom(h.Object)
	}
	target := xm.Target{RA: src.RA, Dec: src.Dec, PosErr: src.PosErr, Magnitude: src.Magnitude}
	best, ok := xm.Best(target, candidates, xm.LocalDensity(len(hits), radius), radius)
	if !ok {
		return out, nil
	}
	out.Match = &best

	// The record describes the external source as seen from the matched object.
	external := xm.Match{
		Candidate: xm.Candidate{
			ID: src.ID, Catalog: src.Catalog, RA: src.RA, Dec: src.Dec,
			PosErr: src.PosErr, Magnitude: src.Magnitude,
		},
		Separation:   best.Separation,
		Probability:  best.Probability,
		Significance: best.Significance,
		Priority:     xm.PriorityFor(src.Catalog),
	}
	rec, err := xm.NewRecord(best.Candidate.ID, external, s.version, s.now())
	if err != nil {
		return out, err
	}
	out.Record = &rec
	return out, nil
}

// candidateFrom turns a catalog object into a matcher candidate. The positional error is
// the quadratic mean of the RA and Dec errors, converted to arcsec.
func candidateFrom(o object.Object) xm.Candidate {
	a := o.Attributes()
	c := xm.Candidate{
		ID:        o.ObjectID(),
		Catalog:   o.CatalogName(),
		RA:        o.RA(),
		Dec:       o.Dec(),
		Magnitude: math.NaN(),
	}
	if m := o.Magnitude(); m != nil {
		c.Magnitude = *m
	}
	var raErr, decErr float64
	if a.RAErrorMas != nil {
		raErr = *a.RAErrorMas
	}
	if a.DecErrorMas != nil {
		decErr = *a.DecErrorMas
	}
	c.PosErr = math.Sqrt((raErr*raErr+decErr*decErr)/2) / 1000
	return c
}

// ListMatches returns the cross-matches of an object, most probable first.
func (s *Service) ListMatches(ctx context.Context, objectID string) ([]xm.Record, error) {
	recs, err := s.store.ListByObject(ctx, objectID)
	if err != nil {
		return nil, fmt.Errorf("list cross-matches: %w", err)
	}
	return recs, nil
}
