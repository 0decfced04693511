package variability

import (
	"errors"
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/astrocat/internal/domain"
)

func sinusoid(n int, spanDays, period, amp, sigma float64, seed int64) []Point {
	rng := rand.New(rand.NewSource(seed))
	times := make([]float64, n)
	for i := range times {
		times[i] = rng.Float64() * spanDays
	}
	sort.Float64s(times)
	pts := make([]Point, n)
	for i, t := range times {
		pts[i] = Point{Time: t, Magnitude: 15 + amp*math.Sin(2*math.Pi*t/period), Error: sigma}
	}
	return pts
}

func TestAnalyze_RRLyraeSinusoid(t *testing.T) {
	pts := sinusoid(200, 30, 0.5, 0.5, 0.01, 42)

	res, err := Analyze(pts)
	require.NoError(t, err)
	assert.True(t, res.IsVariable)
	assert.InEpsilon(t, 0.5, res.Period, 0.01)
	assert.Equal(t, RRLyrae, res.Type)
	assert.Greater(t, res.Power, VariablePowerLimit)
	assert.Greater(t, res.Statistics.Index, VariableIndexLimit)
	assert.InDelta(t, 1.0, res.Statistics.Amplitude, 0.05)
	assert.Less(t, res.PhaseScatter, 0.1, "folding on the true period collapses the curve")
	assert.Equal(t, 200, res.Observations)
}

func TestAnalyze_TooFewPoints(t *testing.T) {
	pts := sinusoid(9, 30, 0.5, 0.5, 0.01, 1)
	res, err := Analyze(pts)
	require.NoError(t, err)
	assert.Equal(t, Constant, res.Type)
	assert.False(t, res.IsVariable)
	assert.Zero(t, res.Period)
	assert.True(t, res.InsufficientPoints)
}

func TestAnalyze_ConstantStar(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	pts := make([]Point, 100)
	for i := range pts {
		pts[i] = Point{Time: float64(i) * 0.3, Magnitude: 12 + rng.NormFloat64()*0.01, Error: 0.01}
	}
	res, err := Analyze(pts)
	require.NoError(t, err)
	assert.Equal(t, Constant, res.Type)
	assert.False(t, res.IsVariable)
	assert.Less(t, res.Statistics.Index, VariableIndexLimit)
}

func TestAnalyze_InvalidErrors(t *testing.T) {
	pts := sinusoid(20, 10, 1, 0.1, 0.01, 3)
	pts[5].Error = 0
	_, err := Analyze(pts)
	assert.True(t, errors.Is(err, domain.ErrInvalidArgument))

	pts[5].Error = 0.01
	pts[6].Magnitude = math.NaN()
	_, err = Analyze(pts)
	assert.True(t, errors.Is(err, domain.ErrInvalidArgument))
}

func TestAnalyze_TooManyPoints(t *testing.T) {
	_, err := Analyze(sinusoid(MaxPoints+1, 100, 1, 0.1, 0.01, 3))
	assert.True(t, errors.Is(err, domain.ErrInvalidArgument))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		stats  Statistics
		period float64
		power  float64
		want   Type
	}{
		{"low index", Statistics{Index: 1.2, Amplitude: 2}, 0.5, 100, Constant},
		{"rr lyrae", Statistics{Index: 5, Amplitude: 0.8}, 0.6, 100, RRLyrae},
		{"cepheid", Statistics{Index: 5, Amplitude: 1.0}, 10, 100, Cepheid},
		{"long period", Statistics{Index: 5, Amplitude: 0.2}, 200, 100, LongPeriodVariable},
		{"micro", Statistics{Index: 5, Amplitude: 0.05}, 60, 100, MicroVariable},
		{"irregular", Statistics{Index: 5, Amplitude: 0.2}, 60, 3, Irregular},
		{"periodic", Statistics{Index: 5, Amplitude: 0.2}, 60, 30, Periodic},
		{"short low amplitude is not rr lyrae", Statistics{Index: 5, Amplitude: 0.2}, 0.4, 30, Periodic},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.stats, tc.period, tc.power))
		})
	}
}

func TestDefaultGrid(t *testing.T) {
	short := []Point{{Time: 0}, {Time: 0.5}}
	g := DefaultGrid(short)
	assert.Equal(t, MinFrequencies, g.N, "short baselines keep the reference grid")
	assert.InDelta(t, 2, g.MinFreq, 1e-12)
	assert.InDelta(t, 240, g.MaxFreq, 1e-12)

	month := []Point{{Time: 0}, {Time: 30}}
	g = DefaultGrid(month)
	assert.Greater(t, g.N, 30000)

	long := []Point{{Time: 0}, {Time: 5000}}
	g = DefaultGrid(long)
	assert.Equal(t, MaxFrequencies, g.N)
	assert.InDelta(t, 1.0/MaxPeriodDays, g.MinFreq, 1e-12)
}

func TestPeriodogram_ZeroSpan(t *testing.T) {
	pts := make([]Point, 12)
	for i := range pts {
		pts[i] = Point{Time: 5, Magnitude: float64(i), Error: 0.1}
	}
	res := Periodogram(pts, DefaultGrid(pts))
	assert.Zero(t, res.BestPeriod)
	assert.Empty(t, res.Powers)
}

func TestShapeMetrics(t *testing.T) {
	sym := []float64{1, 2, 3, 4, 5}
	assert.InDelta(t, 0, Skewness(sym), 1e-12)
	assert.InDelta(t, -1.3, Kurtosis(sym), 1e-12)
	assert.True(t, math.IsNaN(Skewness([]float64{2, 2, 2})))

	smooth := []float64{1, 1, 1, 1, 3, 3, 3, 3}
	assert.InDelta(t, 5.0/7.0, StetsonJ(smooth), 1e-12)
	alternating := []float64{1, 3, 1, 3, 1, 3}
	assert.InDelta(t, -1, StetsonJ(alternating), 1e-12)
	assert.Zero(t, StetsonJ([]float64{1}))
}

func TestPhaseFoldedScatter(t *testing.T) {
	pts := sinusoid(300, 20, 2, 0.5, 0.01, 11)
	onPeriod := PhaseFoldedScatter(pts, 2)
	offPeriod := PhaseFoldedScatter(pts, 2.37)
	assert.Less(t, onPeriod, offPeriod)
	assert.True(t, math.IsNaN(PhaseFoldedScatter(pts, 0)))
}

func TestTypeIsValid(t *testing.T) {
	assert.True(t, Cepheid.IsValid())
	assert.False(t, Type("ECLIPSING").IsValid())
}
