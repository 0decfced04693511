package variability

import (
	"math"
)

// Frequency grid limits.
const (
	MinPeriodHours = 0.1
	MaxPeriodDays  = 1000.0
	// MinFrequencies is the reference grid size.
	MinFrequencies = 1000
	// MaxFrequencies bounds the widened grid for very long baselines.
	MaxFrequencies = 100000
	// Oversampling is the number of grid points per periodogram peak width (1/T).
	Oversampling = 5
	refineSteps  = 64
)

// Grid is a linear frequency grid in cycles/day.
type Grid struct {
	MinFreq float64
	MaxFreq float64
	N       int
}

// DefaultGrid spans 1/min(T, 1000 d) to 1/(0.1 h). It holds at least MinFrequencies points and
// enough to sample each peak Oversampling times, capped at MaxFrequencies.
func DefaultGrid(points []Point) Grid {
	span := timeSpan(points)
	g := Grid{
		MinFreq: 1 / math.Min(MaxPeriodDays, span),
		MaxFreq: 24 / MinPeriodHours,
		N:       MinFrequencies,
	}
	if span > 0 {
		need := math.Ceil(Oversampling * span * (g.MaxFreq - g.MinFreq))
		if need > float64(g.N) {
			g.N = int(math.Min(need, MaxFrequencies))
		}
	}
	return g
}

// PeriodogramResult holds the sampled power spectrum and its peak.
type PeriodogramResult struct {
	Frequencies []float64
	Powers      []float64
	BestFreq    float64
	BestPeriod  float64
	BestPower   float64
}

// Periodogram evaluates the error-weighted Lomb–Scargle power on the grid and refines the
// strongest peak between its neighbouring grid points. A light curve with zero time span
// produces an empty result.
func Periodogram(points []Point, g Grid) PeriodogramResult {
	var res PeriodogramResult
	if len(points) < 2 || g.N < 2 || !(g.MaxFreq > g.MinFreq) || math.IsInf(g.MinFreq, 0) {
		return res
	}

	t0 := minTime(points)
	rel := make([]float64, len(points))
	w := make([]float64, len(points))
	dm := make([]float64, len(points))
	mean := weightedMean(points)
	for i, p := range points {
		rel[i] = p.Time - t0
		w[i] = 1 / (p.Error * p.Error)
		dm[i] = p.Magnitude - mean
	}

	res.Frequencies = make([]float64, g.N)
	res.Powers = make([]float64, g.N)
	step := (g.MaxFreq - g.MinFreq) / float64(g.N-1)
	best := -1
	for k := 0; k < g.N; k++ {
		f := g.MinFreq + float64(k)*step
		res.Frequencies[k] = f
		res.Powers[k] = lombScargle(rel, dm, w, f)
		if best < 0 || res.Powers[k] > res.Powers[best] {
			best = k
		}
	}

	res.BestFreq, res.BestPower = res.Frequencies[best], res.Powers[best]
	lo := math.Max(g.MinFreq, res.BestFreq-step)
	hi := math.Min(g.MaxFreq, res.BestFreq+step)
	for i := 0; i <= refineSteps; i++ {
		f := lo + (hi-lo)*float64(i)/refineSteps
		if p := lombScargle(rel, dm, w, f); p > res.BestPower {
			res.BestFreq, res.BestPower = f, p
		}
	}
	if res.BestFreq > 0 {
		res.BestPeriod = 1 / res.BestFreq
	}
	return res
}

// lombScargle returns ½·(C²/Σw·cos² + S²/Σw·sin²) at frequency f with the time offset τ
// chosen so the sine and cosine terms are orthogonal.
func lombScargle(t, dm, w []float64, f float64) float64 {
	omega := 2 * math.Pi * f
	var s2, c2 float64
	for _, ti := range t {
		s, c := math.Sincos(2 * omega * ti)
		s2 += s
		c2 += c
	}
	tau := math.Atan2(s2, c2) / (2 * omega)

	var cn, cd, sn, sd float64
	for i, ti := range t {
		s, c := math.Sincos(omega * (ti - tau))
		cn += w[i] * dm[i] * c
		cd += w[i] * c * c
		sn += w[i] * dm[i] * s
		sd += w[i] * s * s
	}
	return 0.5 * (cn*cn/math.Max(cd, 1e-10) + sn*sn/math.Max(sd, 1e-10))
}

func timeSpan(points []Point) float64 {
	if len(points) == 0 {
		return 0
	}
	lo, hi := points[0].Time, points[0].Time
	for _, p := range points[1:] {
		lo = math.Min(lo, p.Time)
		hi = math.Max(hi, p.Time)
	}
	return hi - lo
}

func minTime(points []Point) float64 {
	lo := math.Inf(1)
	for _, p := range points {
		lo = math.Min(lo, p.Time)
	}
	return lo
}
