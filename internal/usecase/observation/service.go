// Package observation records observations and the detections extracted from them.
package observation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/astrocat/internal/domain"
	obs "github.com/kailas-cloud/astrocat/internal/domain/observation"
)

// Service manages observations.
type Service struct {
	store   Store
	objects Objects
	logger  *zap.Logger
	now     func() time.Time
}

// New creates an observation service.
func New(store Store, objects Objects) *Service {
	return &Service{store: store, objects: objects, logger: zap.NewNop(), now: time.Now}
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

// Create validates and stores a new observation in PENDING state.
func (s *Service) Create(ctx context.Context, spec obs.Spec) (obs.Observation, error) {
	o, err := obs.New(spec, s.now())
	if err != nil {
		return obs.Observation{}, err
	}
	saved, err := s.store.Create(ctx, o)
	if err != nil {
		return obs.Observation{}, fmt.Errorf("create observation: %w", err)
	}
	return saved, nil
}

// Get returns an observation.
func (s *Service) Get(ctx context.Context, observationID string) (obs.Observation, error) {
	o, err := s.store.Get(ctx, observationID)
	if err != nil {
		return obs.Observation{}, fmt.Errorf("get observation: %w", err)
	}
	return o, nil
}

// ListBetween returns observations taken in [from, to).
func (s *Service) ListBetween(ctx context.Context, from, to time.Time) ([]obs.Observation, error) {
	if !from.Before(to) {
		return nil, domain.NewInvalidArgument("interval", "from must precede to")
	}
	out, err := s.store.ListBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list observations: %w", err)
	}
	return out, nil
}

// Transition moves an observation through its processing states.
func (s *Service) Transition(ctx context.Context, observationID string, next obs.Status) (obs.Observation, error) {
	o, err := s.store.Get(ctx, observationID)
	if err != nil {
		return obs.Observation{}, fmt.Errorf("get observation: %w", err)
	}
	o, err = o.Transition(next)
	if err != nil {
		return obs.Observation{}, err
	}
	if err := s.store.UpdateStatus(ctx, o); err != nil {
		return obs.Observation{}, fmt.Errorf("update status: %w", err)
	}
	return o, nil
}

// Delete removes an observation together with its detections.
func (s *Service) Delete(ctx context.Context, observationID string) error {
	if err := s.store.Delete(ctx, observationID); err != nil {
		return fmt.Errorf("delete observation: %w", err)
	}
	return nil
}

// AddDetections stores detections extracted from an observation and extends the observed
// interval of every referenced object. Every referenced object must exist.
func (s *Service) AddDetections(ctx context.Context, observationID string, specs []obs.DetectionSpec) ([]obs.Detection, error) {
	o, err := s.store.Get(ctx, observationID)
	if err != nil {
		return nil, fmt.Errorf("get observation: %w", err)
	}
	ds := make([]obs.Detection, len(specs))
	seen := make(map[string]bool)
	for i, spec := range specs {
		d, err := obs.NewDetection(o, spec)
		if err != nil {
			return nil, fmt.Errorf("detection %d: %w", i, err)
		}
		ds[i] = d
		seen[d.ObjectID()] = true
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if _, err := s.objects.Get(ctx, id); err != nil {
			return nil, fmt.Errorf("detected object %s: %w", id, err)
		}
	}

	stored, err := s.store.AddDetections(ctx, observationID, ds)
	if err != nil {
		return nil, fmt.Errorf("store detections: %w", err)
	}
	at := o.Spec().ObservedAt
	for _, id := range ids {
		if _, err := s.objects.RecordObservation(ctx, id, at); err != nil {
			return stored, fmt.Errorf("record observation of %s: %w", id, err)
		}
	}
	s.logger.Info("detections recorded",
		zap.String("observation_id", observationID), zap.Int("detections", len(stored)), zap.Int("objects", len(ids)))
	return stored, nil
}

// LightCurve returns the detections of an object ordered by time, optionally limited to one filter.
func (s *Service) LightCurve(ctx context.Context, objectID, filter string) ([]obs.Detection, error) {
	ds, err := s.store.LightCurve(ctx, objectID, filter)
	if err != nil {
		return nil, fmt.Errorf("light curve: %w", err)
	}
	return ds, nil
}
