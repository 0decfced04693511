package catalog

import (
	"context"
	"time"

	"github.com/kailas-cloud/astrocat/internal/domain/celestial"
	"github.com/kailas-cloud/astrocat/internal/domain/object"
)

// Repository defines the spatial store contract for catalog objects.
//
//nolint:interfacebloat // one typed method per catalog query
type Repository interface {
	Create(ctx context.Context, o object.Object) (object.Object, error)
	Save(ctx context.Context, o object.Object) (object.Object, error)
	SaveMany(ctx context.Context, objs []object.Object) ([]object.Object, []error)
	Get(ctx context.Context, objectID string) (object.Object, error)
	Delete(ctx context.Context, objectID string) error
	RecordObservation(ctx context.Context, objectID string, at, now time.Time) (object.Object, error)
	InWindow(ctx context.Context, w celestial.Window, c object.Criteria) ([]object.Object, error)
	WindowPage(ctx context.Context, w celestial.Window, c object.Criteria, offset, limit int) (object.Page, error)
	Find(ctx context.Context, c object.Criteria, sort object.Sort, offset, limit int) (object.Page, error)
	Count(ctx context.Context, c object.Criteria) (int, error)
	Nearest(ctx context.Context, ra, dec float64, k int, c object.Criteria) ([]object.Object, error)
	CountByType(ctx context.Context) (map[object.Type]int, error)
	MagnitudeStats(ctx context.Context) (map[object.Type]object.MagnitudeStats, error)
	MatchingIDs(ctx context.Context, c object.Criteria) ([]string, error)
	DeleteMany(ctx context.Context, objectIDs []string) (int, error)
}

// DetectionCounter reports how many detections reference an object.
type DetectionCounter interface {
	CountForObject(ctx context.Context, objectID string) (int64, error)
}

// MatchRemover drops the cross-matches owned by an object.
type MatchRemover interface {
	DeleteByObject(ctx context.Context, objectID string) (int64, error)
}
