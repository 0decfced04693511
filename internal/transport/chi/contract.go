package chi

import (
	"context"
	"time"

	"github.com/kailas-cloud/astrocat/internal/domain/crossmatch"
	"github.com/kailas-cloud/astrocat/internal/domain/object"
	"github.com/kailas-cloud/astrocat/internal/domain/observation"
	"github.com/kailas-cloud/astrocat/internal/domain/processing"
	domquality "github.com/kailas-cloud/astrocat/internal/domain/quality"
	"github.com/kailas-cloud/astrocat/internal/domain/variability"
	wf "github.com/kailas-cloud/astrocat/internal/domain/workflow"
	cataloguc "github.com/kailas-cloud/astrocat/internal/usecase/catalog"
	crossmatchuc "github.com/kailas-cloud/astrocat/internal/usecase/crossmatch"
	healthuc "github.com/kailas-cloud/astrocat/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/astrocat/internal/usecase/ingest"
	qualityuc "github.com/kailas-cloud/astrocat/internal/usecase/quality"
	workflowuc "github.com/kailas-cloud/astrocat/internal/usecase/workflow"
)

// Catalog serves object queries and lifecycle.
//
//nolint:interfacebloat // the object routes map one-to-one onto the catalog service
type Catalog interface {
	Cone(ctx context.Context, q cataloguc.ConeQuery) ([]object.Hit, error)
	Box(ctx context.Context, q cataloguc.BoxQuery) (object.Page, error)
	FindNearest(ctx context.Context, ra, dec float64, typ object.Type, maxSep float64) (cataloguc.NearestMatch, bool, error)
	Get(ctx context.Context, objectID string) (object.Object, error)
	Save(ctx context.Context, d object.Draft) (object.Object, error)
	Delete(ctx context.Context, objectID string) error
	BulkImport(ctx context.Context, drafts []object.Draft, batchSize int) (cataloguc.BulkResult, error)
	Statistics(ctx context.Context) (cataloguc.Statistics, error)
	FindHighProperMotion(ctx context.Context, minMasPerYear float64, offset, limit int) (object.Page, error)
	FindNearby(ctx context.Context, maxDistancePc float64, offset, limit int) (object.Page, error)
	FindByMagnitudeRange(ctx context.Context, minMag, maxMag float64, offset, limit int) (object.Page, error)
	FindByType(ctx context.Context, typ object.Type, offset, limit int) (object.Page, error)
	FindNeedingFollowUp(ctx context.Context, maxDaysOld, offset, limit int) (object.Page, error)
	CleanupTransients(ctx context.Context, olderThan time.Time) (int, error)
}

// CrossMatcher associates external sources with catalog objects.
type CrossMatcher interface {
	CrossMatchPositions(ctx context.Context, sources []crossmatchuc.Source, radiusArcsec float64) ([]crossmatchuc.Outcome, error)
	ListMatches(ctx context.Context, objectID string) ([]crossmatch.Record, error)
}

// Ingester runs the ingest pipeline.
type Ingester interface {
	Ingest(ctx context.Context, sources []ingestuc.Source, opts ingestuc.Options) (ingestuc.Result, error)
}

// VariabilityAnalyzer classifies light curves.
type VariabilityAnalyzer interface {
	AnalyzeObject(ctx context.Context, objectID, filter string) (variability.Result, object.Object, error)
}

// QualityAssessor reports on catalog regions.
type QualityAssessor interface {
	Assess(ctx context.Context, r qualityuc.Region, reference []domquality.Source) (domquality.Report, error)
}

// Observations records pointings and detections.
type Observations interface {
	Create(ctx context.Context, spec observation.Spec) (observation.Observation, error)
	Get(ctx context.Context, observationID string) (observation.Observation, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]observation.Observation, error)
	Transition(ctx context.Context, observationID string, next observation.Status) (observation.Observation, error)
	Delete(ctx context.Context, observationID string) error
	AddDetections(ctx context.Context, observationID string, specs []observation.DetectionSpec) ([]observation.Detection, error)
	LightCurve(ctx context.Context, objectID, filter string) ([]observation.Detection, error)
}

// Workflows manages the workflow registry.
//
//nolint:interfacebloat // the registry routes map one-to-one onto the workflow service
type Workflows interface {
	Register(ctx context.Context, spec wf.Spec, by string) (wf.Version, error)
	Activate(ctx context.Context, req workflowuc.ActivateRequest) (wf.Version, error)
	Deactivate(ctx context.Context, k wf.Key, by, reason string) (wf.Version, error)
	Promote(ctx context.Context, req workflowuc.PromoteRequest) (wf.Version, error)
	Rollback(ctx context.Context, target wf.Key, by, reason string) (wf.Version, error)
	Duplicate(ctx context.Context, name, expVersion string, req wf.DuplicationRequest) (wf.DuplicationPlan, error)
	Compare(ctx context.Context, name, baseVersion, candVersion string, typ processing.Type) (wf.Comparison, error)
	GetActiveForProcessing(ctx context.Context, name string, typ processing.Type) (wf.Version, error)
	History(ctx context.Context, name string, typ processing.Type, limit int) ([]wf.HistoryEntry, error)
	List(ctx context.Context, name string) ([]wf.Version, error)
	ListActive(ctx context.Context, typ processing.Type) ([]wf.Version, error)
}

// Intermediates stores per-session pipeline products.
type Intermediates interface {
	Put(ctx context.Context, sessionID, stepType, filename string, data []byte, at time.Time) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	ListSession(ctx context.Context, sessionID string) ([]string, error)
	DeleteSession(ctx context.Context, sessionID string) (int, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
