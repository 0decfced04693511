package variability

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/astrocat/internal/domain"
	"github.com/kailas-cloud/astrocat/internal/domain/object"
	obs "github.com/kailas-cloud/astrocat/internal/domain/observation"
	"github.com/kailas-cloud/astrocat/internal/domain/variability"
)

type mockCurves struct {
	ds  []obs.Detection
	err error
}

func (m *mockCurves) LightCurve(context.Context, string, string) ([]obs.Detection, error) {
	return m.ds, m.err
}

type mockObjects struct {
	applied variability.Result
	err     error
}

func (m *mockObjects) ApplyVariability(_ context.Context, _ string, r variability.Result) (object.Object, error) {
	m.applied = r
	return object.Object{}, m.err
}

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func sinusoid(n int, days, period float64) []obs.Detection {
	rng := rand.New(rand.NewSource(42))
	times := make([]float64, n)
	for i := range times {
		times[i] = rng.Float64() * days
	}
	sort.Float64s(times)
	out := make([]obs.Detection, n)
	for i, t := range times {
		mag := 15 + 0.5*math.Sin(2*math.Pi*t/period)
		sigma := 0.01
		at := start.Add(time.Duration(t * float64(24*time.Hour)))
		out[i] = obs.ReconstructDetection(int64(i+1), "o", at, "V",
			obs.DetectionSpec{ObjectID: "rr", Magnitude: &mag, MagnitudeError: &sigma})
	}
	return out
}

func TestAnalyzeObject_RRLyrae(t *testing.T) {
	objects := &mockObjects{}
	svc := New(&mockCurves{ds: sinusoid(200, 30, 0.5)}, objects)

	res, _, err := svc.AnalyzeObject(context.Background(), "rr", "V")
	require.NoError(t, err)
	assert.True(t, res.IsVariable)
	assert.InEpsilon(t, 0.5, res.Period, 0.01)
	assert.Equal(t, variability.RRLyrae, res.Type)
	assert.Equal(t, res, objects.applied)
}

func TestAnalyzeObject_KeepsMostRecentPoints(t *testing.T) {
	ds := sinusoid(300, 30, 0.5)
	objects := &mockObjects{}
	svc := New(&mockCurves{ds: ds}, objects).WithMaxPoints(100)

	res, _, err := svc.AnalyzeObject(context.Background(), "rr", "V")
	require.NoError(t, err)
	assert.Equal(t, 100, res.Observations)
	assert.Equal(t, 100, objects.applied.Observations)
}

func TestWithMaxPoints_IgnoresOutOfRange(t *testing.T) {
	svc := New(&mockCurves{}, &mockObjects{})
	svc.WithMaxPoints(0).WithMaxPoints(variability.MaxPoints + 1)
	assert.Equal(t, variability.MaxPoints, svc.maxPoints)
}

func TestAnalyzeObject_TooFewPoints(t *testing.T) {
	svc := New(&mockCurves{ds: sinusoid(9, 5, 0.5)}, &mockObjects{})
	res, _, err := svc.AnalyzeObject(context.Background(), "rr", "")
	require.NoError(t, err)
	assert.Equal(t, variability.Constant, res.Type)
	assert.False(t, res.IsVariable)
	assert.Zero(t, res.Period)
}

func TestAnalyzeObject_Errors(t *testing.T) {
	svc := New(&mockCurves{err: domain.ErrStorageUnavailable}, &mockObjects{})
	_, _, err := svc.AnalyzeObject(context.Background(), "rr", "")
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)

	svc = New(&mockCurves{ds: sinusoid(20, 5, 0.5)}, &mockObjects{err: domain.ErrNotFound})
	_, _, err = svc.AnalyzeObject(context.Background(), "rr", "")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestPoints_SkipsUnusable(t *testing.T) {
	mag, zero := 15.0, 0.0
	ds := []obs.Detection{
		obs.ReconstructDetection(1, "o", start, "V", obs.DetectionSpec{ObjectID: "a"}),
		obs.ReconstructDetection(2, "o", start, "V", obs.DetectionSpec{ObjectID: "a", Magnitude: &mag, MagnitudeError: &zero}),
	}
	assert.Empty(t, Points(ds))
}

func TestMJD(t *testing.T) {
	assert.InDelta(t, 51544.5, MJD(time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)), 1e-9)
}
