package catalog

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/kailas-cloud/astrocat/internal/domain"
	"github.com/kailas-cloud/astrocat/internal/domain/astrometry"
	"github.com/kailas-cloud/astrocat/internal/domain/celestial"
	"github.com/kailas-cloud/astrocat/internal/domain/object"
	"github.com/kailas-cloud/astrocat/internal/metrics"
)

// tieArcsec is the separation difference (1e-9 deg) below which two hits count as equidistant.
const tieArcsec = 1e-9 * celestial.ArcsecPerDegree

// ConeQuery selects objects within RadiusArcsec of (RA, Dec).
type ConeQuery struct {
	RA           float64
	Dec          float64
	RadiusArcsec float64
	MaxResults   int // 0 means the configured default
	Criteria     object.Criteria
	Filter       string // photometric band the object must have measured
	Method       astrometry.SeparationMethod
}

// BoxQuery selects objects inside an RA/Dec box. MaxRA < MinRA spans RA=0.
type BoxQuery struct {
	MinRA, MaxRA   float64
	MinDec, MaxDec float64
	Criteria       object.Criteria
	Offset         int
	Limit          int // 0 means the configured default
}

// NearestMatch is the closest object to a position with a distance-based confidence.
type NearestMatch struct {
	Hit        object.Hit
	Confidence float64
}

// Cone returns the objects within the radius ordered by separation, then objectId.
// A zero radius yields an empty result.
func (s *Service) Cone(ctx context.Context, q ConeQuery) ([]object.Hit, error) {
	limit, err := s.validateCone(q)
	if err != nil {
		return nil, err
	}
	if q.RadiusArcsec == 0 {
		return nil, nil
	}

	start := time.Now()
	defer func() { metrics.QueryDuration.WithLabelValues(metrics.KindCone).Observe(time.Since(start).Seconds()) }()

	objs, err := s.repo.InWindow(ctx, celestial.ConeWindow(q.RA, q.Dec, q.RadiusArcsec), q.Criteria)
	if err != nil {
		return nil, fmt.Errorf("cone candidates: %w", err)
	}
	metrics.QueryCandidates.WithLabelValues(metrics.KindCone).Observe(float64(len(objs)))

	hits := make([]object.Hit, 0, len(objs))
	for _, o := range objs {
		if !s.matchesFilter(o, q.Filter) {
			continue
		}
		sep := astrometry.SeparationWith(q.Method, q.RA, q.Dec, o.RA(), o.Dec())
		if sep <= q.RadiusArcsec {
			hits = append(hits, object.Hit{Object: o, Separation: sep})
		}
	}
	SortHits(hits)
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (s *Service) validateCone(q ConeQuery) (int, error) {
	if err := celestial.ValidateCoordinates(q.RA, q.Dec); err != nil {
		return 0, err
	}
	if math.IsNaN(q.RadiusArcsec) || q.RadiusArcsec < 0 || q.RadiusArcsec > celestial.MaxConeRadiusArcsec {
		return 0, domain.NewInvalidArgument("radiusArcsec",
			fmt.Sprintf("must be within (0, %g], got %g", celestial.MaxConeRadiusArcsec, q.RadiusArcsec))
	}
	if err := q.Criteria.Validate(); err != nil {
		return 0, err
	}
	return s.resultLimit(q.MaxResults, s.limits.MaxResults)
}

func (s *Service) resultLimit(requested, maxAllowed int) (int, error) {
	switch {
	case requested == 0:
		return min(s.limits.DefaultMaxResults, maxAllowed), nil
	case requested < 0 || requested > maxAllowed:
		return 0, domain.NewInvalidArgument("maxResults", fmt.Sprintf("must be within [1, %d]", maxAllowed))
	}
	return requested, nil
}

func (s *Service) matchesFilter(o object.Object, band string) bool {
	if band == "" {
		return true
	}
	_, ok := o.Photometry()[band]
	return ok
}

// Box returns one page of objects inside the box, ordered by declination.
func (s *Service) Box(ctx context.Context, q BoxQuery) (object.Page, error) {
	for _, ra := range []float64{q.MinRA, q.MaxRA} {
		if err := celestial.ValidateCoordinates(ra, 0); err != nil {
			return object.Page{}, err
		}
	}
	for _, dec := range []float64{q.MinDec, q.MaxDec} {
		if err := celestial.ValidateCoordinates(0, dec); err != nil {
			return object.Page{}, err
		}
	}
	if q.MinDec > q.MaxDec {
		return object.Page{}, domain.NewInvalidArgument("dec", "minDec exceeds maxDec")
	}
	if q.Offset < 0 {
		return object.Page{}, domain.NewInvalidArgument("offset", "must be non-negative")
	}
	if err := q.Criteria.Validate(); err != nil {
		return object.Page{}, err
	}
	limit, err := s.resultLimit(q.Limit, s.limits.MaxBoxResults)
	if err != nil {
		return object.Page{}, err
	}

	start := time.Now()
	defer func() { metrics.QueryDuration.WithLabelValues(metrics.KindBox).Observe(time.Since(start).Seconds()) }()

	w := celestial.BoxWindow(q.MinRA, q.MaxRA, q.MinDec, q.MaxDec)
	page, err := s.repo.WindowPage(ctx, w, q.Criteria, q.Offset, limit)
	if err != nil {
		return object.Page{}, fmt.Errorf("box query: %w", err)
	}
	metrics.QueryCandidates.WithLabelValues(metrics.KindBox).Observe(float64(len(page.Objects)))
	return page, nil
}

// NearestOfType returns the closest object of the given type within maxSepArcsec.
// An empty type matches every class. ok is false when nothing is close enough.
func (s *Service) NearestOfType(
	ctx context.Context, ra, dec float64, typ object.Type, maxSepArcsec float64,
) (hit object.Hit, ok bool, err error) {
	if err := celestial.ValidateCoordinates(ra, dec); err != nil {
		return object.Hit{}, false, err
	}
	if math.IsNaN(maxSepArcsec) || maxSepArcsec < 0 {
		return object.Hit{}, false, domain.NewInvalidArgument("maxSeparation", "must be non-negative")
	}
	var c object.Criteria
	if typ != "" {
		c.Types = []object.Type{typ}
	}
	if err := c.Validate(); err != nil {
		return object.Hit{}, false, err
	}

	start := time.Now()
	defer func() { metrics.QueryDuration.WithLabelValues(metrics.KindNearest).Observe(time.Since(start).Seconds()) }()

	// The index orders by chord length; take a few neighbours so exact ties still resolve by objectId.
	objs, err := s.repo.Nearest(ctx, ra, dec, s.limits.NearestCandidates, c)
	if err != nil {
		return object.Hit{}, false, fmt.Errorf("nearest candidates: %w", err)
	}
	metrics.QueryCandidates.WithLabelValues(metrics.KindNearest).Observe(float64(len(objs)))

	hits := make([]object.Hit, 0, len(objs))
	for _, o := range objs {
		sep := astrometry.Separation(ra, dec, o.RA(), o.Dec())
		if sep <= maxSepArcsec {
			hits = append(hits, object.Hit{Object: o, Separation: sep})
		}
	}
	if len(hits) == 0 {
		return object.Hit{}, false, nil
	}
	SortHits(hits)
	return hits[0], true, nil
}

// FindNearest returns the closest object within maxSepArcsec with confidence
// exp(−2·sep/maxSep). An empty type matches every class.
func (s *Service) FindNearest(
	ctx context.Context, ra, dec float64, typ object.Type, maxSepArcsec float64,
) (NearestMatch, bool, error) {
	hit, ok, err := s.NearestOfType(ctx, ra, dec, typ, maxSepArcsec)
	if err != nil || !ok {
		return NearestMatch{}, ok, err
	}
	return NearestMatch{Hit: hit, Confidence: NearestConfidence(hit.Separation, maxSepArcsec)}, true, nil
}

// NearestConfidence is exp(−2·sep/maxSep), or 0 at and beyond maxSep.
func NearestConfidence(sep, maxSep float64) float64 {
	if !(maxSep > 0) || sep >= maxSep {
		return 0
	}
	return math.Exp(-2 * sep / maxSep)
}

// SortHits orders hits by ascending separation; separations within 1e-9 deg tie and
// fall back to ascending objectId.
func SortHits(hits []object.Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if math.Abs(a.Separation-b.Separation) > tieArcsec {
			return a.Separation < b.Separation
		}
		return a.Object.ObjectID() < b.Object.ObjectID()
	})
}
