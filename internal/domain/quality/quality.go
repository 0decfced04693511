// Package quality scores a catalog's completeness, reliability and measurement quality,
// optionally against a reference catalog.
package quality

import (
	"fmt"
	"math"
	"sort"

	"github.com/kailas-cloud/astrocat/internal/domain/astrometry"
)

// Assessment parameters.
const (
	PositionToleranceArcsec = 1.0
	// PhotometricScaleMag is the RMS magnitude difference that scores zero.
	PhotometricScaleMag = 0.5
	// LargeMagnitudeError flags a photometric error above this value.
	LargeMagnitudeError = 1.0
	// LowClassificationConfidence flags confidences below this value.
	LowClassificationConfidence = 0.5
	// SystematicSigma is the number of standard errors that makes an offset significant.
	SystematicSigma = 3.0
	// TurnoverMinSources is the sample size below which the faintest magnitude is the limit.
	TurnoverMinSources = 100
	turnoverBins       = 20

	// Used when no data constrains the measurement quality.
	DefaultAstrometricQuality = 95.0
	DefaultPhotometricQuality = 98.0
)

// MagnitudeBinEdges delimit the magnitude-dependent completeness bins.
var MagnitudeBinEdges = []float64{12, 14, 16, 18, 20, 22}

// Flag names.
const (
	FlagNegativeMagnitude    = "negative_magnitude"
	FlagMissingCoordinates   = "missing_coordinates"
	FlagLargePhotometricErr  = "large_photometric_error"
	FlagLowClassificationCon = "low_classification_confidence"
)

// Source is one catalog entry as seen by the assessor. Unknown values are NaN.
type Source struct {
	ID                       string
	RA                       float64
	Dec                      float64
	Magnitude                float64
	MagnitudeError           float64
	PositionError            float64 // arcsec
	ClassificationConfidence float64
}

func (s Source) hasPosition() bool { return !math.IsNaN(s.RA) && !math.IsNaN(s.Dec) }
func (s Source) hasMagnitude() bool { return !math.IsNaN(s.Magnitude) }

// Completeness describes how much of the sky population the catalog recovers.
type Completeness struct {
	Percent           float64
	AverageSeparation float64 // arcsec, matched pairs only
	ByMagnitude       map[string]float64
	Limits            map[string]float64
}

// Reliability describes how many catalog entries are genuine.
type Reliability struct {
	Percent           float64
	FalsePositiveRate float64
	Duplicates        int
	Suspicious        int
}

// Measurement is a quality proxy in [0, 100]. Accuracy is the RMS difference of matched pairs,
// or the median quoted error when there is no reference.
type Measurement struct {
	Quality  float64
	Accuracy float64
	Samples  int
	Measured bool
}

// Offset is the mean difference (catalog − reference) with its standard error.
type Offset struct {
	Mean        float64
	StdErr      float64
	N           int
	Significant bool
}

// Systematics summarises mean offsets against the reference.
type Systematics struct {
	RA         Offset // arcsec, ΔRA·cosδ
	Dec        Offset // arcsec
	Magnitude  Offset
	Identified []string
}

// Report is the full quality assessment.
type Report struct {
	Sources         int
	ReferenceSize   int
	Completeness    Completeness
	Reliability     Reliability
	Astrometric     Measurement
	Photometric     Measurement
	Systematics     Systematics
	Flags           map[string]int
	Recommendations []string
	Score           float64
}

// Assess evaluates the catalog. A nil or empty reference switches to the statistical estimators.
func Assess(catalog, reference []Source) Report {
	r := Report{
		Sources:       len(catalog),
		ReferenceSize: len(reference),
		Flags:         CountFlags(catalog),
	}
	if len(reference) == 0 {
		r.Completeness = statisticalCompleteness(catalog)
		r.Reliability = statisticalReliability(catalog)
		r.Astrometric = errorProxy(catalog, func(s Source) float64 { return s.PositionError },
			PositionToleranceArcsec, DefaultAstrometricQuality)
		r.Photometric = errorProxy(catalog, func(s Source) float64 { return s.MagnitudeError },
			PhotometricScaleMag, DefaultPhotometricQuality)
	} else {
		pairs := matchPairs(reference, catalog)
		r.Completeness = referenceCompleteness(catalog, reference, pairs)
		r.Reliability = referenceReliability(catalog, reference)
		r.Astrometric = astrometricFromPairs(pairs)
		r.Photometric = photometricFromPairs(pairs)
		r.Systematics = systematicsFromPairs(pairs)
	}
	r.Score = Score(r.Completeness.Percent, r.Reliability.Percent, r.Astrometric.Quality, r.Photometric.Quality)
	r.Recommendations = recommend(r)
	return r
}

// Score is 0.3·completeness + 0.3·reliability + 0.2·astrometric + 0.2·photometric, clamped to [0, 100].
func Score(completeness, reliability, astrometric, photometric float64) float64 {
	s := 0.3*completeness + 0.3*reliability + 0.2*astrometric + 0.2*photometric
	if math.IsNaN(s) {
		return 0
	}
	return math.Max(0, math.Min(100, s))
}

// CountFlags counts data-quality problems per flag name.
func CountFlags(catalog []Source) map[string]int {
	flags := make(map[string]int)
	for _, s := range catalog {
		if s.hasMagnitude() && s.Magnitude < 0 {
			flags[FlagNegativeMagnitude]++
		}
		if !s.hasPosition() {
			flags[FlagMissingCoordinates]++
		}
		if s.MagnitudeError > LargeMagnitudeError {
			flags[FlagLargePhotometricErr]++
		}
		if s.ClassificationConfidence < LowClassificationConfidence {
			flags[FlagLowClassificationCon]++
		}
	}
	return flags
}

// pair is a reference source and its nearest catalog counterpart within tolerance.
type pair struct {
	ref, cat Source
	sep      float64
}

// nearestIndex answers nearest-neighbour queries within the position tolerance using a
// declination-sorted sweep.
type nearestIndex struct {
	sources []Source
}

func newNearestIndex(sources []Source) nearestIndex {
	s := make([]Source, 0, len(sources))
	for _, src := range sources {
		if src.hasPosition() {
			s = append(s, src)
		}
	}
	sort.Slice(s, func(i, j int) bool {
		if s[i].Dec != s[j].Dec {
			return s[i].Dec < s[j].Dec
		}
		return s[i].ID < s[j].ID
	})
	return nearestIndex{sources: s}
}

func (n nearestIndex) nearest(target Source, tolArcsec float64) (Source, float64, bool) {
	if !target.hasPosition() {
		return Source{}, 0, false
	}
	tolDeg := tolArcsec / 3600
	lo := sort.Search(len(n.sources), func(i int) bool { return n.sources[i].Dec >= target.Dec-tolDeg })
	best, bestSep, found := Source{}, math.Inf(1), false
	for i := lo; i < len(n.sources) && n.sources[i].Dec <= target.Dec+tolDeg; i++ {
		sep := astrometry.Separation(target.RA, target.Dec, n.sources[i].RA, n.sources[i].Dec)
		if sep <= tolArcsec && sep < bestSep {
			best, bestSep, found = n.sources[i], sep, true
		}
	}
	return best, bestSep, found
}

func matchPairs(reference, catalog []Source) []pair {
	idx := newNearestIndex(catalog)
	var out []pair
	for _, ref := range reference {
		if c, sep, ok := idx.nearest(ref, PositionToleranceArcsec); ok {
			out = append(out, pair{ref: ref, cat: c, sep: sep})
		}
	}
	return out
}

func referenceCompleteness(catalog, reference []Source, pairs []pair) Completeness {
	c := Completeness{
		Percent:     100 * float64(len(pairs)) / float64(len(reference)),
		ByMagnitude: magnitudeCompleteness(catalog, reference),
		Limits:      CompletenessLimits(catalog),
	}
	if len(pairs) > 0 {
		var sum float64
		for _, p := range pairs {
			sum += p.sep
		}
		c.AverageSeparation = sum / float64(len(pairs))
	}
	return c
}

// BinKey names a magnitude bin, e.g. "mag_12_14".
func BinKey(lo, hi float64) string {
	return fmt.Sprintf("mag_%.0f_%.0f", lo, hi)
}

func magnitudeCompleteness(catalog, reference []Source) map[string]float64 {
	out := make(map[string]float64, len(MagnitudeBinEdges)-1)
	for i := 0; i < len(MagnitudeBinEdges)-1; i++ {
		lo, hi := MagnitudeBinEdges[i], MagnitudeBinEdges[i+1]
		ref, cat := countInBin(reference, lo, hi), countInBin(catalog, lo, hi)
		pct := 100.0
		if ref > 0 {
			pct = math.Min(100, 100*float64(cat)/float64(ref))
		}
		out[BinKey(lo, hi)] = pct
	}
	return out
}

func countInBin(sources []Source, lo, hi float64) int {
	n := 0
	for _, s := range sources {
		if s.hasMagnitude() && s.Magnitude >= lo && s.Magnitude < hi {
			n++
		}
	}
	return n
}

// CompletenessLimits returns the magnitudes at the 50th, 90th and 95th percentiles and the faintest.
func CompletenessLimits(catalog []Source) map[string]float64 {
	mags := sortedMagnitudes(catalog)
	if len(mags) == 0 {
		return map[string]float64{}
	}
	n := len(mags)
	return map[string]float64{
		"50_percent": mags[n/2],
		"90_percent": mags[int(float64(n)*0.9)],
		"95_percent": mags[int(float64(n)*0.95)],
		"faintest":   mags[n-1],
	}
}

func sortedMagnitudes(sources []Source) []float64 {
	var mags []float64
	for _, s := range sources {
		if s.hasMagnitude() {
			mags = append(mags, s.Magnitude)
		}
	}
	sort.Float64s(mags)
	return mags
}

func referenceReliability(catalog, reference []Source) Reliability {
	if len(catalog) == 0 {
		return Reliability{}
	}
	idx := newNearestIndex(reference)
	reliable := 0
	for _, s := range catalog {
		if _, _, ok := idx.nearest(s, PositionToleranceArcsec); ok {
			reliable++
		}
	}
	n := float64(len(catalog))
	return Reliability{
		Percent:           100 * float64(reliable) / n,
		FalsePositiveRate: 100 * float64(len(catalog)-reliable) / n,
	}
}

func statisticalReliability(catalog []Source) Reliability {
	if len(catalog) == 0 {
		return Reliability{}
	}
	dup, sus := CountDuplicates(catalog), CountSuspicious(catalog)
	n := float64(len(catalog))
	return Reliability{
		Percent:           math.Max(0, 100-100*float64(dup+sus)/n),
		FalsePositiveRate: 100 * float64(sus) / n,
		Duplicates:        dup,
		Suspicious:        sus,
	}
}

// CountDuplicates counts sources whose position repeats another's to six decimal places.
func CountDuplicates(catalog []Source) int {
	seen := make(map[string]struct{}, len(catalog))
	dup := 0
	for _, s := range catalog {
		if !s.hasPosition() {
			continue
		}
		key := fmt.Sprintf("%.6f_%.6f", s.RA, s.Dec)
		if _, ok := seen[key]; ok {
			dup++
			continue
		}
		seen[key] = struct{}{}
	}
	return dup
}

// CountSuspicious counts sources with a negative magnitude.
func CountSuspicious(catalog []Source) int {
	n := 0
	for _, s := range catalog {
		if s.hasMagnitude() && s.Magnitude < 0 {
			n++
		}
	}
	return n
}
