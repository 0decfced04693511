package variability

import (
	"context"

	"github.com/kailas-cloud/astrocat/internal/domain/object"
	obs "github.com/kailas-cloud/astrocat/internal/domain/observation"
	"github.com/kailas-cloud/astrocat/internal/domain/variability"
)

// LightCurves loads the detections of an object in time order.
type LightCurves interface {
	LightCurve(ctx context.Context, objectID, filter string) ([]obs.Detection, error)
}

// Objects stores analysis outcomes on catalog objects.
type Objects interface {
	ApplyVariability(ctx context.Context, objectID string, r variability.Result) (object.Object, error)
}
