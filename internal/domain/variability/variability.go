// Package variability detects and classifies photometric variability in light curves.
package variability

import (
	"fmt"
	"math"

	"github.com/kailas-cloud/astrocat/internal/domain"
)

// Type is the variable-star class assigned to a light curve.
type Type string

// Variability classes.
const (
	Constant           Type = "CONSTANT"
	RRLyrae            Type = "RR_LYRAE"
	Cepheid            Type = "CEPHEID"
	LongPeriodVariable Type = "LONG_PERIOD_VARIABLE"
	MicroVariable      Type = "MICRO_VARIABLE"
	Irregular          Type = "IRREGULAR"
	Periodic           Type = "PERIODIC"
)

// IsValid reports whether t is a known class.
func (t Type) IsValid() bool {
	switch t {
	case Constant, RRLyrae, Cepheid, LongPeriodVariable, MicroVariable, Irregular, Periodic:
		return true
	}
	return false
}

// Analysis thresholds.
const (
	MinObservations    = 10
	VariableIndexLimit = 1.5
	VariablePowerLimit = 10.0
	IrregularPowerMax  = 5.0
	PhaseBins          = 20
)

// MaxPoints bounds a light curve. The periodogram costs O(points x frequencies).
const MaxPoints = 5000

// Point is one photometric measurement of a light curve. Time is in days.
type Point struct {
	Time      float64
	Magnitude float64
	Error     float64
}

// Statistics summarises a light curve.
type Statistics struct {
	WeightedMean float64
	RMS          float64
	MeanError    float64
	Index        float64 // RMS / mean error
	Amplitude    float64 // peak-to-peak
}

// Result is the outcome of a variability analysis.
type Result struct {
	IsVariable         bool
	Type               Type
	Period             float64 // days, 0 when not determined
	Power              float64
	Statistics         Statistics
	PhaseScatter       float64
	Skewness           float64
	Kurtosis           float64 // excess
	StetsonJ           float64
	Observations       int
	InsufficientPoints bool
}

// Validate checks that a light curve can be analysed: finite values and positive errors.
func Validate(points []Point) error {
	for i, p := range points {
		if math.IsNaN(p.Time) || math.IsInf(p.Time, 0) {
			return domain.NewInvalidArgument("time", fmt.Sprintf("point %d is not finite", i))
		}
		if math.IsNaN(p.Magnitude) || math.IsInf(p.Magnitude, 0) {
			return domain.NewInvalidArgument("magnitude", fmt.Sprintf("point %d is not finite", i))
		}
		if !(p.Error > 0) || math.IsInf(p.Error, 0) {
			return domain.NewInvalidArgument("error", fmt.Sprintf("point %d must be positive", i))
		}
	}
	return nil
}

// Analyze runs the full pipeline: statistics, periodogram, classification and shape metrics.
// Fewer than MinObservations points yield a CONSTANT result with period 0.
func Analyze(points []Point) (Result, error) {
	if len(points) > MaxPoints {
		return Result{}, domain.NewInvalidArgument("points",
			fmt.Sprintf("%d exceeds the limit of %d", len(points), MaxPoints))
	}
	if err := Validate(points); err != nil {
		return Result{}, err
	}
	if len(points) < MinObservations {
		return Result{Type: Constant, Observations: len(points), InsufficientPoints: true}, nil
	}

	stats := Describe(points)
	pg := Periodogram(points, DefaultGrid(points))

	res := Result{
		Statistics:   stats,
		Period:       pg.BestPeriod,
		Power:        pg.BestPower,
		Observations: len(points),
	}
	res.Type = Classify(stats, pg.BestPeriod, pg.BestPower)
	res.IsVariable = stats.Index > VariableIndexLimit && pg.BestPower > VariablePowerLimit

	mags := magnitudes(points)
	if pg.BestPeriod > 0 {
		res.PhaseScatter = PhaseFoldedScatter(points, pg.BestPeriod)
	}
	res.Skewness = Skewness(mags)
	res.Kurtosis = Kurtosis(mags)
	res.StetsonJ = StetsonJ(mags)
	return res, nil
}

// Describe computes the weighted mean, RMS about it, quadratic mean error,
// variability index and peak-to-peak amplitude.
func Describe(points []Point) Statistics {
	if len(points) == 0 {
		return Statistics{}
	}
	mean := weightedMean(points)
	var ss, se float64
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range points {
		d := p.Magnitude - mean
		ss += d * d
		se += p.Error * p.Error
		lo = math.Min(lo, p.Magnitude)
		hi = math.Max(hi, p.Magnitude)
	}
	n := float64(len(points))
	s := Statistics{
		WeightedMean: mean,
		RMS:          math.Sqrt(ss / n),
		MeanError:    math.Sqrt(se / n),
		Amplitude:    hi - lo,
	}
	s.Index = s.RMS / s.MeanError
	return s
}

// Classify assigns a class from the variability index, best period (days), amplitude and
// periodogram power. Rules are evaluated in order.
func Classify(s Statistics, period, power float64) Type {
	switch {
	case !(s.Index >= VariableIndexLimit):
		return Constant
	case period < 1 && s.Amplitude > 0.3:
		return RRLyrae
	case period >= 1 && period < 50 && s.Amplitude > 0.5:
		return Cepheid
	case period > 80 && period < 400:
		return LongPeriodVariable
	case s.Amplitude < 0.1:
		return MicroVariable
	case power < IrregularPowerMax:
		return Irregular
	default:
		return Periodic
	}
}

func weightedMean(points []Point) float64 {
	var sw, swm float64
	for _, p := range points {
		w := 1 / (p.Error * p.Error)
		sw += w
		swm += w * p.Magnitude
	}
	return swm / sw
}

func magnitudes(points []Point) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Magnitude
	}
	return out
}
