// Package variability analyses the light curves of catalog objects.
package variability

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/astrocat/internal/domain/object"
	obs "github.com/kailas-cloud/astrocat/internal/domain/observation"
	"github.com/kailas-cloud/astrocat/internal/domain/variability"
)

// mjdUnixEpoch is the Modified Julian Date of 1970-01-01.
const mjdUnixEpoch = 40587.0

// Service runs the variability analyzer over stored detections.
type Service struct {
	curves    LightCurves
	objects   Objects
	maxPoints int
	logger    *zap.Logger
}

// New creates a variability service.
func New(curves LightCurves, objects Objects) *Service {
	return &Service{curves: curves, objects: objects, maxPoints: variability.MaxPoints, logger: zap.NewNop()}
}

// WithMaxPoints sets how many of the most recent points are analysed.
// Values outside (0, variability.MaxPoints] are ignored.
func (s *Service) WithMaxPoints(n int) *Service {
	if n > 0 && n <= variability.MaxPoints {
		s.maxPoints = n
	}
	return s
}

// WithLogger sets the logger.
func (s *Service) WithLogger(l *zap.Logger) *Service {
	if l != nil {
		s.logger = l
	}
	return s
}

// AnalyzeObject analyses the light curve of an object in one filter (all filters when empty)
// and stores the outcome on the object. Detections without a magnitude and a positive
// magnitude error are skipped. Long light curves are cut to the most recent maxPoints.
func (s *Service) AnalyzeObject(ctx context.Context, objectID, filter string) (variability.Result, object.Object, error) {
	ds, err := s.curves.LightCurve(ctx, objectID, filter)
	if err != nil {
		return variability.Result{}, object.Object{}, fmt.Errorf("load light curve: %w", err)
	}
	points := Points(ds)
	if len(points) > s.maxPoints {
		s.logger.Warn("light curve truncated to most recent points",
			zap.String("object_id", objectID), zap.Int("points", len(points)), zap.Int("kept", s.maxPoints))
		points = points[len(points)-s.maxPoints:]
	}
	res, err := variability.Analyze(points)
	if err != nil {
		return variability.Result{}, object.Object{}, err
	}
	o, err := s.objects.ApplyVariability(ctx, objectID, res)
	if err != nil {
		return variability.Result{}, object.Object{}, fmt.Errorf("store variability: %w", err)
	}
	s.logger.Info("variability analysed",
		zap.String("object_id", objectID), zap.Int("points", len(points)),
		zap.String("type", string(res.Type)), zap.Bool("variable", res.IsVariable), zap.Float64("period_days", res.Period))
	return res, o, nil
}

// Points converts detections into light-curve points with time in MJD.
func Points(ds []obs.Detection) []variability.Point {
	out := make([]variability.Point, 0, len(ds))
	for _, d := range ds {
		sp := d.Spec()
		if sp.Magnitude == nil || sp.MagnitudeError == nil || !(*sp.MagnitudeError > 0) {
			continue
		}
		out = append(out, variability.Point{
			Time:      MJD(d.ObservedAt()),
			Magnitude: *sp.Magnitude,
			Error:     *sp.MagnitudeError,
		})
	}
	return out
}

// MJD returns the Modified Julian Date of t.
func MJD(t time.Time) float64 {
	return float64(t.UnixNano())/float64(24*time.Hour) + mjdUnixEpoch
}
