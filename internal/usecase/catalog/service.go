// Package catalog implements positional queries and maintenance of the object catalog.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/astrocat/internal/domain"
	"github.com/kailas-cloud/astrocat/internal/domain/object"
	"github.com/kailas-cloud/astrocat/internal/domain/variability"
	"github.com/kailas-cloud/astrocat/internal/metrics"
)

// Limits bound result sizes and batch work.
type Limits struct {
	DefaultMaxResults int
	MaxResults        int
	MaxBoxResults     int
	BatchSize         int
	HighPMThreshold   float64 // mas/yr
	NearestCandidates int
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		DefaultMaxResults: 1000,
		MaxResults:        10000,
		MaxBoxResults:     10000,
		BatchSize:         100,
		HighPMThreshold:   100,
		NearestCandidates: 8,
	}
}

// RecentWindow is how far back Statistics counts recently observed objects.
const RecentWindow = 7 * 24 * time.Hour

// Service handles catalog queries and object lifecycle.
type Service struct {
	repo       Repository
	detections DetectionCounter
	matches    MatchRemover
	limits     Limits
	logger     *zap.Logger
	now        func() time.Time
}

// New creates a catalog service.
func New(repo Repository) *Service {
	return &Service{repo: repo, limits: DefaultLimits(), logger: zap.NewNop(), now: time.Now}
}

// WithLimits overrides the non-zero limits.
func (s *Service) WithLimits(l Limits) *Service {
	if l.DefaultMaxResults > 0 {
		s.limits.DefaultMaxResults = l.DefaultMaxResults
	}
	if l.MaxResults > 0 {
		s.limits.MaxResults = l.MaxResults
	}
	if l.MaxBoxResults > 0 {
		s.limits.MaxBoxResults = l.MaxBoxResults
	}
	if l.BatchSize > 0 {
		s.limits.BatchSize = l.BatchSize
	}
	if l.HighPMThreshold > 0 {
		s.limits.HighPMThreshold = l.HighPMThreshold
	}
	if l.NearestCandidates > 0 {
		s.limits.NearestCandidates = l.NearestCandidates
	}
	return s
}

// WithReferences wires the stores holding detections and cross-matches of an object.
func (s *Service) WithReferences(d DetectionCounter, m MatchRemover) *Service {
	s.detections, s.matches = d, m
	return s
}

// WithLogger sets the logger.
func (s *Service) WithLogger(l *zap.Logger) *Service {
	if l != nil {
		s.logger = l
	}
	return s
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create validates a draft and stores it as a new object.
func (s *Service) Create(ctx context.Context, d object.Draft) (object.Object, error) {
	o, err := object.New(d, s.now())
	if err != nil {
		return object.Object{}, err
	}
	saved, err := s.repo.Create(ctx, o)
	if err != nil {
		return object.Object{}, fmt.Errorf("create object: %w", err)
	}
	return saved, nil
}

// Save validates a draft and stores it, replacing an existing object with the same id.
// A replaced object keeps its internal id and creation time.
func (s *Service) Save(ctx context.Context, d object.Draft) (object.Object, error) {
	now := s.now()
	o, err := object.New(d, now)
	if err != nil {
		return object.Object{}, err
	}
	existing, err := s.repo.Get(ctx, o.ObjectID())
	switch {
	case err == nil:
		o = object.Reconstruct(existing.ID(), o.Attributes(), existing.CreatedAt(), now.UTC())
	case !errors.Is(err, domain.ErrNotFound):
		return object.Object{}, fmt.Errorf("load object: %w", err)
	}
	saved, err := s.repo.Save(ctx, o)
	if err != nil {
		return object.Object{}, fmt.Errorf("save object: %w", err)
	}
	return saved, nil
}

// Get returns an object by id.
func (s *Service) Get(ctx context.Context, objectID string) (object.Object, error) {
	o, err := s.repo.Get(ctx, objectID)
	if err != nil {
		return object.Object{}, fmt.Errorf("get object: %w", err)
	}
	return o, nil
}

// Delete removes an object with its cross-matches. It is refused with ErrReferenced
// while detections reference the object.
func (s *Service) Delete(ctx context.Context, objectID string) error {
	if err := s.checkUnreferenced(ctx, objectID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, objectID); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	if s.matches != nil {
		if _, err := s.matches.DeleteByObject(ctx, objectID); err != nil {
			return fmt.Errorf("delete cross-matches of %s: %w", objectID, err)
		}
	}
	return nil
}

func (s *Service) checkUnreferenced(ctx context.Context, objectID string) error {
	if s.detections == nil {
		return nil
	}
	n, err := s.detections.CountForObject(ctx, objectID)
	if err != nil {
		return fmt.Errorf("count detections: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("%w: object %s has %d detections", domain.ErrReferenced, objectID, n)
	}
	return nil
}

// RecordObservation extends the observed interval of an object and bumps its count.
func (s *Service) RecordObservation(ctx context.Context, objectID string, at time.Time) (object.Object, error) {
	o, err := s.repo.RecordObservation(ctx, objectID, at, s.now())
	if err != nil {
		return object.Object{}, fmt.Errorf("record observation: %w", err)
	}
	return o, nil
}

// ApplyVariability stores the outcome of a light-curve analysis on an object.
func (s *Service) ApplyVariability(ctx context.Context, objectID string, r variability.Result) (object.Object, error) {
	o, err := s.repo.Get(ctx, objectID)
	if err != nil {
		return object.Object{}, fmt.Errorf("get object: %w", err)
	}
	saved, err := s.repo.Save(ctx, o.WithVariability(r, s.now()))
	if err != nil {
		return object.Object{}, fmt.Errorf("save variability: %w", err)
	}
	return saved, nil
}

// RowError is a failed bulk-import row.
type RowError struct {
	Index    int
	ObjectID string
	Err      error
}

// BulkResult reports a best-effort import: how many rows landed and which failed.
type BulkResult struct {
	Imported int
	Failed   []RowError
}

// BulkImport validates and stores drafts in batches. Failed rows are logged and
// reported; the import continues. Only cancellation aborts it.
func (s *Service) BulkImport(ctx context.Context, drafts []object.Draft, batchSize int) (BulkResult, error) {
	if batchSize <= 0 {
		batchSize = s.limits.BatchSize
	}
	log := s.logger.With(zap.Int("rows", len(drafts)), zap.Int("batch_size", batchSize))

	var res BulkResult
	fail := func(i int, id string, err error) {
		res.Failed = append(res.Failed, RowError{Index: i, ObjectID: id, Err: err})
		log.Warn("bulk import row failed", zap.Int("row", i), zap.String("object_id", id), zap.Error(err))
	}

	for start := 0; start < len(drafts); start += batchSize {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("%w: bulk import stopped after %d rows: %w", domain.ErrCancelled, start, err)
		}
		end := min(start+batchSize, len(drafts))
		now := s.now()

		objs := make([]object.Object, 0, end-start)
		rows := make([]int, 0, end-start)
		for i := start; i < end; i++ {
			o, err := object.New(drafts[i], now)
			if err != nil {
				fail(i, drafts[i].ObjectID, err)
				continue
			}
			objs = append(objs, o)
			rows = append(rows, i)
		}

		_, errs := s.repo.SaveMany(ctx, objs)
		imported := len(objs)
		for j, err := range errs {
			if err != nil {
				fail(rows[j], objs[j].ObjectID(), err)
				imported--
			}
		}
		res.Imported += imported
		log.Info("bulk import batch stored",
			zap.Int("batch_start", start), zap.Int("imported", imported), zap.Int("total_imported", res.Imported))
	}

	metrics.BulkImportRowsTotal.WithLabelValues("imported").Add(float64(res.Imported))
	metrics.BulkImportRowsTotal.WithLabelValues("failed").Add(float64(len(res.Failed)))
	return res, nil
}

// Statistics summarises the catalog.
type Statistics struct {
	Total            int
	ByType           map[object.Type]int
	Magnitudes       map[object.Type]object.MagnitudeStats
	ObservedLastWeek int
}

// Statistics returns totals, per-type counts, magnitude statistics and recent activity.
func (s *Service) Statistics(ctx context.Context) (Statistics, error) {
	byType, err := s.repo.CountByType(ctx)
	if err != nil {
		return Statistics{}, fmt.Errorf("count by type: %w", err)
	}
	mags, err := s.repo.MagnitudeStats(ctx)
	if err != nil {
		return Statistics{}, fmt.Errorf("magnitude stats: %w", err)
	}
	recent, err := s.repo.Count(ctx, object.Criteria{ObservedAfter: s.now().Add(-RecentWindow)})
	if err != nil {
		return Statistics{}, fmt.Errorf("count recent: %w", err)
	}
	st := Statistics{ByType: byType, Magnitudes: mags, ObservedLastWeek: recent}
	for _, n := range byType {
		st.Total += n
	}
	return st, nil
}

// FindHighProperMotion pages through objects with total proper motion of at least minMasPerYear,
// fastest first. A non-positive threshold uses the configured default.
func (s *Service) FindHighProperMotion(ctx context.Context, minMasPerYear float64, offset, limit int) (object.Page, error) {
	if minMasPerYear <= 0 {
		minMasPerYear = s.limits.HighPMThreshold
	}
	return s.find(ctx, object.Criteria{MinProperMotion: &minMasPerYear},
		object.Sort{Field: object.SortProperMotion, Descending: true}, offset, limit)
}

// FindNearby pages through objects closer than maxDistancePc, i.e. with parallax ≥ 1000/maxDistancePc.
func (s *Service) FindNearby(ctx context.Context, maxDistancePc float64, offset, limit int) (object.Page, error) {
	if !(maxDistancePc > 0) {
		return object.Page{}, domain.NewInvalidArgument("maxDistancePc", "must be positive")
	}
	minPlx := 1000 / maxDistancePc
	return s.find(ctx, object.Criteria{MinParallax: &minPlx},
		object.Sort{Field: object.SortParallax, Descending: true}, offset, limit)
}

// FindByMagnitudeRange pages through objects with minMag ≤ magnitude ≤ maxMag, brightest first.
func (s *Service) FindByMagnitudeRange(ctx context.Context, minMag, maxMag float64, offset, limit int) (object.Page, error) {
	return s.find(ctx, object.Criteria{MinMagnitude: &minMag, MaxMagnitude: &maxMag},
		object.Sort{Field: object.SortMagnitude}, offset, limit)
}

// FindByType pages through objects of one class.
func (s *Service) FindByType(ctx context.Context, typ object.Type, offset, limit int) (object.Page, error) {
	return s.find(ctx, object.Criteria{Types: []object.Type{typ}}, object.Sort{Field: object.SortDec}, offset, limit)
}

// FindNeedingFollowUp pages through objects seen only once within the last maxDaysOld days.
func (s *Service) FindNeedingFollowUp(ctx context.Context, maxDaysOld, offset, limit int) (object.Page, error) {
	if maxDaysOld <= 0 {
		return object.Page{}, domain.NewInvalidArgument("maxDaysOld", "must be positive")
	}
	cutoff := s.now().Add(-time.Duration(maxDaysOld) * 24 * time.Hour)
	return s.find(ctx, object.Criteria{ObservedAfter: cutoff, ObservationsAtMost: 1},
		object.Sort{Field: object.SortLastObserved, Descending: true}, offset, limit)
}

func (s *Service) find(ctx context.Context, c object.Criteria, sort object.Sort, offset, limit int) (object.Page, error) {
	if err := c.Validate(); err != nil {
		return object.Page{}, err
	}
	if offset < 0 {
		return object.Page{}, domain.NewInvalidArgument("offset", "must be non-negative")
	}
	limit, err := s.resultLimit(limit, s.limits.MaxResults)
	if err != nil {
		return object.Page{}, err
	}
	page, err := s.repo.Find(ctx, c, sort, offset, limit)
	if err != nil {
		return object.Page{}, fmt.Errorf("find objects: %w", err)
	}
	return page, nil
}

// CleanupTransients deletes cosmic rays and artifacts last observed before olderThan and
// returns how many were removed. Objects still referenced by detections are kept.
func (s *Service) CleanupTransients(ctx context.Context, olderThan time.Time) (int, error) {
	ids, err := s.repo.MatchingIDs(ctx, object.Criteria{Types: object.TransientTypes, ObservedBefore: olderThan})
	if err != nil {
		return 0, fmt.Errorf("find transients: %w", err)
	}

	doomed := ids[:0]
	for _, id := range ids {
		err := s.checkUnreferenced(ctx, id)
		switch {
		case err == nil:
			doomed = append(doomed, id)
		case errors.Is(err, domain.ErrReferenced):
			s.logger.Debug("keeping referenced transient", zap.String("object_id", id))
		default:
			return 0, err
		}
	}

	n, err := s.repo.DeleteMany(ctx, doomed)
	if err != nil {
		return n, fmt.Errorf("delete transients: %w", err)
	}
	if s.matches != nil {
		for _, id := range doomed {
			if _, err := s.matches.DeleteByObject(ctx, id); err != nil {
				return n, fmt.Errorf("delete cross-matches of %s: %w", id, err)
			}
		}
	}
	s.logger.Info("transients cleaned up",
		zap.Int("deleted", n), zap.Int("kept", len(ids)-len(doomed)), zap.Time("older_than", olderThan))
	return n, nil
}
