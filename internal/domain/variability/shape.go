package variability

import (
	"math"
)

// PhaseFoldedScatter folds the light curve on period and returns the RMS of magnitudes about
// their phase-bin means (PhaseBins bins). Small values indicate a coherent period.
func PhaseFoldedScatter(points []Point, period float64) float64 {
	if len(points) == 0 || !(period > 0) {
		return math.NaN()
	}
	t0 := minTime(points)
	bins := make([]int, len(points))
	var sums [PhaseBins]float64
	var counts [PhaseBins]int
	for i, p := range points {
		phase := math.Mod(p.Time-t0, period) / period
		b := int(phase * PhaseBins)
		if b >= PhaseBins {
			b = PhaseBins - 1
		}
		bins[i] = b
		sums[b] += p.Magnitude
		counts[b]++
	}

	var ss float64
	for i, p := range points {
		d := p.Magnitude - sums[bins[i]]/float64(counts[bins[i]])
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(points)))
}

// Skewness is the third standardised moment.
func Skewness(mags []float64) float64 {
	return standardMoment(mags, 3)
}

// Kurtosis is the excess fourth standardised moment.
func Kurtosis(mags []float64) float64 {
	return standardMoment(mags, 4) - 3
}

func standardMoment(mags []float64, k float64) float64 {
	if len(mags) == 0 {
		return math.NaN()
	}
	mean, sd := meanStd(mags)
	if sd == 0 {
		return math.NaN()
	}
	var sum float64
	for _, m := range mags {
		sum += math.Pow((m-mean)/sd, k)
	}
	return sum / float64(len(mags))
}

// StetsonJ correlates successive residuals: Σ sgn(δᵢδᵢ₊₁)·√|δᵢδᵢ₊₁| / (n−1).
// Positive for smooth variability, near zero for white noise.
func StetsonJ(mags []float64) float64 {
	if len(mags) < 2 {
		return 0
	}
	mean, _ := meanStd(mags)
	var sum float64
	for i := 0; i < len(mags)-1; i++ {
		p := (mags[i] - mean) * (mags[i+1] - mean)
		sum += sign(p) * math.Sqrt(math.Abs(p))
	}
	return sum / float64(len(mags)-1)
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

func meanStd(xs []float64) (mean, sd float64) {
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	for _, x := range xs {
		sd += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(sd / float64(len(xs)))
}
