package observation

import (
	"context"
	"time"

	"github.com/kailas-cloud/astrocat/internal/domain/object"
	obs "github.com/kailas-cloud/astrocat/internal/domain/observation"
)

// Store persists observations and their detections.
type Store interface {
	Create(ctx context.Context, o obs.Observation) (obs.Observation, error)
	Get(ctx context.Context, observationID string) (obs.Observation, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]obs.Observation, error)
	UpdateStatus(ctx context.Context, o obs.Observation) error
	Delete(ctx context.Context, observationID string) error
	AddDetections(ctx context.Context, observationID string, ds []obs.Detection) ([]obs.Detection, error)
	LightCurve(ctx context.Context, objectID, filter string) ([]obs.Detection, error)
}

// Objects is the part of the catalog detections touch.
type Objects interface {
	Get(ctx context.Context, objectID string) (object.Object, error)
	RecordObservation(ctx context.Context, objectID string, at time.Time) (object.Object, error)
}
