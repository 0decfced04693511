// Package ingest prepares raw source lists for the catalog: epoch propagation,
// photometric calibration and provenance stamping.
package ingest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/kailas-cloud/astrocat/internal/domain"
	"github.com/kailas-cloud/astrocat/internal/domain/astrometry"
	"github.com/kailas-cloud/astrocat/internal/domain/object"
	"github.com/kailas-cloud/astrocat/internal/domain/photometry"
	"github.com/kailas-cloud/astrocat/internal/domain/processing"
	"github.com/kailas-cloud/astrocat/internal/storage/blob"
)

// Manifest naming.
const (
	ManifestStep     = "ingest"
	ManifestFilename = "manifest.json"
	DefaultFilter    = "V"
	DefaultEpoch     = 2000.0
)

// Source is one raw detection to ingest. Draft positions are at Options.SourceEpoch.
type Source struct {
	Draft            object.Draft
	InstrumentalMag  *float64
	Filter           string
	Airmass          float64
	ExposureSec      float64
	ApertureDiameter float64
	RadialVelocity   *float64 // km/s
}

// Options control one ingest run.
type Options struct {
	Workflow       string // stamps the active version when set
	ProcessingType processing.Type
	SourceEpoch    float64 // Julian year, DefaultEpoch when zero
	TargetEpoch    float64 // Julian year, the current epoch when zero
	Parallax       bool
	BatchSize      int
	SessionID      string // manifest session, the processing id when empty
}

// Result summarises an ingest run.
type Result struct {
	ProcessingID    string
	WorkflowVersion string
	Imported        int
	Failed          []RowFailure
	ManifestKey     string
}

// RowFailure is a source that could not be imported.
type RowFailure struct {
	Index    int    `json:"index"`
	ObjectID string `json:"objectId"`
	Error    string `json:"error"`
}

// Manifest records the provenance of an ingest run.
type Manifest struct {
	ProcessingID    string       `json:"processingId"`
	Workflow        string       `json:"workflow,omitempty"`
	WorkflowVersion string       `json:"workflowVersion,omitempty"`
	SourceEpoch     float64      `json:"sourceEpoch"`
	TargetEpoch     float64      `json:"targetEpoch"`
	Sources         int          `json:"sources"`
	Imported        int          `json:"imported"`
	Failed          []RowFailure `json:"failed,omitempty"`
	CreatedAt       time.Time    `json:"createdAt"`
}

// Service runs ingests.
type Service struct {
	importer   Importer
	workflows  Workflows
	manifests  ManifestWriter
	calibrator *photometry.Calibrator
	logger     *zap.Logger
	now        func() time.Time
}

// New creates an ingest service.
func New(importer Importer, cal *photometry.Calibrator) *Service {
	if cal == nil {
		cal = photometry.NewCalibrator()
	}
	return &Service{
		importer:   importer,
		calibrator: cal,
		logger:     zap.NewNop(),
		now:        time.Now,
	}
}

// WithWorkflows enables workflow version stamping.
func (s *Service) WithWorkflows(w Workflows) *Service {
	s.workflows = w
	return s
}

// WithManifests enables provenance manifests.
func (s *Service) WithManifests(m ManifestWriter) *Service {
	s.manifests = m
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

// Ingest prepares and imports sources. Rows failing validation are reported, not fatal.
func (s *Service) Ingest(ctx context.Context, sources []Source, opts Options) (Result, error) {
	now := s.now()
	if opts.ProcessingType == "" {
		opts.ProcessingType = processing.Production
	}
	if opts.SourceEpoch == 0 {
		opts.SourceEpoch = DefaultEpoch
	}
	if opts.TargetEpoch == 0 {
		opts.TargetEpoch = astrometry.TimeToEpoch(now)
	}
	if opts.Workflow != "" && s.workflows == nil {
		return Result{}, domain.NewInvalidArgument("workflow", "no workflow registry configured")
	}

	id, err := processing.NewID(opts.ProcessingType, now)
	if err != nil {
		return Result{}, err
	}
	res := Result{ProcessingID: id.String()}

	if opts.Workflow != "" {
		v, err := s.workflows.GetActiveForProcessing(ctx, opts.Workflow, opts.ProcessingType)
		if err != nil {
			return Result{}, fmt.Errorf("resolve workflow: %w", err)
		}
		if _, err := s.workflows.RecordUsage(ctx, v.Key()); err != nil {
			return Result{}, err
		}
		res.WorkflowVersion = v.Version()
	}

	drafts := make([]object.Draft, len(sources))
	for i, src := range sources {
		drafts[i] = s.prepare(src, opts, res)
	}

	imported, err := s.importer.BulkImport(ctx, drafts, opts.BatchSize)
	if err != nil {
		return Result{}, fmt.Errorf("import: %w", err)
	}
	res.Imported = imported.Imported
	for _, f := range imported.Failed {
		res.Failed = append(res.Failed, RowFailure{Index: f.Index, ObjectID: f.ObjectID, Error: f.Err.Error()})
	}

	log := s.logger.With(zap.String("processing_id", res.ProcessingID))
	if s.manifests != nil {
		key, err := s.writeManifest(ctx, res, opts, len(sources), now)
		if err != nil {
			log.Warn("ingest manifest not written", zap.Error(err))
		}
		res.ManifestKey = key
	}

	log.Info("ingest finished",
		zap.Int("sources", len(sources)),
		zap.Int("imported", res.Imported),
		zap.Int("failed", len(res.Failed)),
		zap.String("workflow_version", res.WorkflowVersion))
	return res, nil
}

func (s *Service) prepare(src Source, opts Options, res Result) object.Draft {
	d := src.Draft
	d.ProcessingID = res.ProcessingID
	d.WorkflowVersion = res.WorkflowVersion

	if !math.IsNaN(d.RA) && !math.IsNaN(d.Dec) && opts.TargetEpoch != opts.SourceEpoch {
		star := astrometry.Star{
			RA: d.RA, Dec: d.Dec, PMRA: d.PMRA, PMDec: d.PMDec,
			RadialVelocity: math.NaN(), Epoch: opts.SourceEpoch,
		}
		if d.ParallaxMas != nil {
			star.Parallax = *d.ParallaxMas
		}
		if src.RadialVelocity != nil {
			star.RadialVelocity = *src.RadialVelocity
		}
		p := astrometry.Propagate(star, opts.TargetEpoch, astrometry.PropagationOptions{
			PerspectiveAcceleration: src.RadialVelocity != nil,
			Parallax:                opts.Parallax,
		})
		d.RA, d.Dec = p.RA, p.Dec
	}

	if src.InstrumentalMag != nil {
		filter := src.Filter
		if filter == "" {
			filter = DefaultFilter
		}
		r := s.calibrator.Calibrate(photometry.Measurement{
			InstrumentalMag:  *src.InstrumentalMag,
			Filter:           filter,
			Airmass:          src.Airmass,
			ExposureSec:      src.ExposureSec,
			ApertureDiameter: src.ApertureDiameter,
		})
		mag, magErr := r.Magnitude, r.Error
		d.Magnitude, d.MagnitudeError = &mag, &magErr
		phot := make(map[string]float64, len(d.Photometry)+1)
		for k, v := range d.Photometry {
			phot[k] = v
		}
		phot[filter] = mag
		d.Photometry = phot
	}
	return d
}

func (s *Service) writeManifest(ctx context.Context, res Result, opts Options, n int, now time.Time) (string, error) {
	session := opts.SessionID
	if session == "" {
		session = res.ProcessingID
	}
	key, err := blob.IntermediateKey(session, ManifestStep, ManifestFilename, now)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(Manifest{
		ProcessingID:    res.ProcessingID,
		Workflow:        opts.Workflow,
		WorkflowVersion: res.WorkflowVersion,
		SourceEpoch:     opts.SourceEpoch,
		TargetEpoch:     opts.TargetEpoch,
		Sources:         n,
		Imported:        res.Imported,
		Failed:          res.Failed,
		CreatedAt:       now.UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("encode manifest: %w", err)
	}
	if err := s.manifests.Put(ctx, blob.BucketIntermediates, key, data); err != nil {
		return "", err
	}
	return key, nil
}
