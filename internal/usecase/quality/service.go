// Package quality assesses the catalog contents of a sky region.
package quality

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/kailas-cloud/astrocat/internal/domain"
	"github.com/kailas-cloud/astrocat/internal/domain/object"
	"github.com/kailas-cloud/astrocat/internal/domain/quality"
	"github.com/kailas-cloud/astrocat/internal/usecase/catalog"
)

// Defaults.
const (
	DefaultPageSize   = 1000
	DefaultMaxSources = 100000
)

// Region is an RA/Dec box. MaxRA < MinRA spans RA=0.
type Region struct {
	MinRA, MaxRA   float64
	MinDec, MaxDec float64
}

// Service builds quality reports.
type Service struct {
	catalog    Catalog
	pageSize   int
	maxSources int
	logger     *zap.Logger
}

// New creates a quality service.
func New(c Catalog) *Service {
	return &Service{catalog: c, pageSize: DefaultPageSize, maxSources: DefaultMaxSources, logger: zap.NewNop()}
}

// WithLimits sets the page size and the maximum number of objects assessed.
func (s *Service) WithLimits(pageSize, maxSources int) *Service {
	if pageSize > 0 {
		s.pageSize = pageSize
	}
	if maxSources > 0 {
		s.maxSources = maxSources
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

// Assess evaluates the catalog objects inside the region, against the reference when one is given.
// Regions holding more than the configured maximum are refused.
func (s *Service) Assess(ctx context.Context, r Region, reference []quality.Source) (quality.Report, error) {
	sources, err := s.load(ctx, r)
	if err != nil {
		return quality.Report{}, err
	}
	rep := quality.Assess(sources, reference)
	s.logger.Info("quality assessed",
		zap.Int("sources", rep.Sources), zap.Int("reference", rep.ReferenceSize), zap.Float64("score", rep.Score))
	return rep, nil
}

func (s *Service) load(ctx context.Context, r Region) ([]quality.Source, error) {
	var out []quality.Source
	for offset := 0; ; {
		page, err := s.catalog.Box(ctx, catalog.BoxQuery{
			MinRA: r.MinRA, MaxRA: r.MaxRA, MinDec: r.MinDec, MaxDec: r.MaxDec,
			Offset: offset, Limit: s.pageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("load region: %w", err)
		}
		if page.Total > s.maxSources {
			return nil, domain.NewInvalidArgument("region",
				fmt.Sprintf("holds %d objects, at most %d can be assessed", page.Total, s.maxSources))
		}
		for _, o := range page.Objects {
			out = append(out, SourceFrom(o))
		}
		if !page.HasMore() || len(page.Objects) == 0 {
			return out, nil
		}
		offset += len(page.Objects)
	}
}

// SourceFrom converts a catalog object for the assessor. Position errors are converted to arcsec.
func SourceFrom(o object.Object) quality.Source {
	a := o.Attributes()
	src := quality.Source{
		ID:                       o.ObjectID(),
		RA:                       o.RA(),
		Dec:                      o.Dec(),
		Magnitude:                math.NaN(),
		MagnitudeError:           math.NaN(),
		PositionError:            math.NaN(),
		ClassificationConfidence: o.ClassificationConfidence(),
	}
	if m := o.Magnitude(); m != nil {
		src.Magnitude = *m
	}
	if e := o.MagnitudeError(); e != nil {
		src.MagnitudeError = *e
	}
	if a.RAErrorMas != nil && a.DecErrorMas != nil {
		src.PositionError = math.Hypot(*a.RAErrorMas, *a.DecErrorMas) / 1000
	}
	return src
}
