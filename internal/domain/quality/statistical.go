package quality

import (
	"fmt"
	"math"
	"sort"
)

// Turnover locates the magnitude where differential counts stop growing: the centre of the
// first local maximum among 20 equal bins. Samples smaller than TurnoverMinSources, or
// without a peak, return the faintest magnitude and bin −1.
func Turnover(sortedMags []float64) (mag float64, bin int, counts []float64) {
	n := len(sortedMags)
	if n == 0 {
		return math.NaN(), -1, nil
	}
	faintest := sortedMags[n-1]
	if n < TurnoverMinSources {
		return faintest, -1, nil
	}
	lo := sortedMags[0]
	size := (faintest - lo) / turnoverBins
	if size <= 0 {
		return faintest, -1, nil
	}
	counts = make([]float64, turnoverBins)
	for _, m := range sortedMags {
		b := int((m - lo) / size)
		if b >= turnoverBins {
			b = turnoverBins - 1
		}
		counts[b]++
	}
	for i := 1; i < turnoverBins-1; i++ {
		if counts[i] > counts[i+1] && counts[i] > counts[i-1] {
			return lo + (float64(i)+0.5)*size, i, counts
		}
	}
	return faintest, -1, counts
}

// statisticalCompleteness extrapolates the log-linear growth of counts brighter than the
// turnover to the fainter bins and compares the observed total with that expectation.
func statisticalCompleteness(catalog []Source) Completeness {
	mags := sortedMagnitudes(catalog)
	c := Completeness{ByMagnitude: map[string]float64{}, Limits: CompletenessLimits(catalog)}
	if len(mags) == 0 {
		return c
	}
	turn, bin, counts := Turnover(mags)
	c.Limits["50_percent_completeness"] = turn
	c.Percent = 100
	if bin > 0 {
		if expected := expectedTotal(counts, bin); expected > 0 {
			c.Percent = math.Min(100, 100*float64(len(mags))/expected)
		}
	}
	c.ByMagnitude["overall"] = c.Percent
	return c
}

func expectedTotal(counts []float64, turn int) float64 {
	var xs, ys []float64
	for i := 0; i <= turn; i++ {
		if counts[i] > 0 {
			xs = append(xs, float64(i))
			ys = append(ys, math.Log10(counts[i]))
		}
	}
	if len(xs) < 2 {
		return 0
	}
	a, b := fitLine(xs, ys)
	total := 0.0
	for i, n := range counts {
		if i <= turn {
			total += n
			continue
		}
		total += math.Max(n, math.Pow(10, a+b*float64(i)))
	}
	return total
}

// fitLine returns the least-squares intercept and slope.
func fitLine(xs, ys []float64) (a, b float64) {
	n := float64(len(xs))
	var sx, sy, sxx, sxy float64
	for i := range xs {
		sx += xs[i]
		sy += ys[i]
		sxx += xs[i] * xs[i]
		sxy += xs[i] * ys[i]
	}
	d := n*sxx - sx*sx
	if d == 0 {
		return sy / n, 0
	}
	b = (n*sxy - sx*sy) / d
	a = (sy - b*sx) / n
	return a, b
}

func errorProxy(catalog []Source, value func(Source) float64, scale, fallback float64) Measurement {
	var vals []float64
	for _, s := range catalog {
		if v := value(s); v > 0 && !math.IsInf(v, 0) {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return Measurement{Quality: fallback}
	}
	sort.Float64s(vals)
	med := vals[len(vals)/2]
	if len(vals)%2 == 0 {
		med = (vals[len(vals)/2-1] + vals[len(vals)/2]) / 2
	}
	return Measurement{Quality: scoreAgainst(med, scale), Accuracy: med, Samples: len(vals), Measured: true}
}

func scoreAgainst(v, scale float64) float64 {
	return 100 * math.Max(0, 1-v/scale)
}

func astrometricFromPairs(pairs []pair) Measurement {
	if len(pairs) == 0 {
		return Measurement{Quality: DefaultAstrometricQuality}
	}
	var ss float64
	for _, p := range pairs {
		ss += p.sep * p.sep
	}
	rms := math.Sqrt(ss / float64(len(pairs)))
	return Measurement{
		Quality:  scoreAgainst(rms, PositionToleranceArcsec),
		Accuracy: rms,
		Samples:  len(pairs),
		Measured: true,
	}
}

func photometricFromPairs(pairs []pair) Measurement {
	var ss float64
	n := 0
	for _, p := range pairs {
		if p.ref.hasMagnitude() && p.cat.hasMagnitude() {
			d := p.cat.Magnitude - p.ref.Magnitude
			ss += d * d
			n++
		}
	}
	if n == 0 {
		return Measurement{Quality: DefaultPhotometricQuality}
	}
	rms := math.Sqrt(ss / float64(n))
	return Measurement{Quality: scoreAgainst(rms, PhotometricScaleMag), Accuracy: rms, Samples: n, Measured: true}
}

func systematicsFromPairs(pairs []pair) Systematics {
	var dRA, dDec, dMag []float64
	for _, p := range pairs {
		ra := math.Remainder(p.cat.RA-p.ref.RA, 360) * math.Cos(p.ref.Dec*math.Pi/180) * 3600
		dRA = append(dRA, ra)
		dDec = append(dDec, (p.cat.Dec-p.ref.Dec)*3600)
		if p.ref.hasMagnitude() && p.cat.hasMagnitude() {
			dMag = append(dMag, p.cat.Magnitude-p.ref.Magnitude)
		}
	}
	s := Systematics{RA: offset(dRA), Dec: offset(dDec), Magnitude: offset(dMag)}
	if s.RA.Significant {
		s.Identified = append(s.Identified, fmt.Sprintf("ra offset %.3f\" ± %.3f\"", s.RA.Mean, s.RA.StdErr))
	}
	if s.Dec.Significant {
		s.Identified = append(s.Identified, fmt.Sprintf("dec offset %.3f\" ± %.3f\"", s.Dec.Mean, s.Dec.StdErr))
	}
	if s.Magnitude.Significant {
		s.Identified = append(s.Identified,
			fmt.Sprintf("magnitude offset %.3f ± %.3f mag", s.Magnitude.Mean, s.Magnitude.StdErr))
	}
	return s
}

// offset is significant when at least three samples put the mean beyond SystematicSigma
// standard errors of zero.
func offset(xs []float64) Offset {
	n := len(xs)
	if n == 0 {
		return Offset{}
	}
	var mean float64
	for _, x := range xs {
		mean += x
	}
	mean /= float64(n)
	o := Offset{Mean: mean, N: n}
	if n < 2 {
		return o
	}
	var ss float64
	for _, x := range xs {
		ss += (x - mean) * (x - mean)
	}
	o.StdErr = math.Sqrt(ss/float64(n-1)) / math.Sqrt(float64(n))
	o.Significant = n >= 3 && math.Abs(mean) > SystematicSigma*o.StdErr
	return o
}

var flagAdvice = map[string]string{
	FlagNegativeMagnitude:    "review photometric calibration: negative magnitudes present",
	FlagMissingCoordinates:   "remove or re-derive entries with missing coordinates",
	FlagLargePhotometricErr:  "re-measure sources with photometric errors above 1 mag",
	FlagLowClassificationCon: "re-classify sources with confidence below 0.5",
}

func recommend(r Report) []string {
	var out []string
	names := make([]string, 0, len(r.Flags))
	for name := range r.Flags {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if r.Flags[name] > 0 {
			out = append(out, flagAdvice[name])
		}
	}
	if r.Reliability.Duplicates > 0 {
		out = append(out, fmt.Sprintf("merge %d duplicate detections", r.Reliability.Duplicates))
	}
	for _, s := range r.Systematics.Identified {
		out = append(out, "correct systematic "+s)
	}
	if r.Sources > 0 && r.Completeness.Percent < 90 {
		out = append(out, "completeness below 90%: check detection thresholds")
	}
	if r.Sources > 0 && r.Reliability.Percent < 90 {
		out = append(out, "reliability below 90%: inspect spurious detections")
	}
	return out
}
