// Package crossmatch identifies the same source across catalogs and scores each association.
package crossmatch

import (
	"math"
	"sort"
	"strings"

	"github.com/kailas-cloud/astrocat/internal/domain/astrometry"
)

// Model constants.
const (
	// SystematicFraction of the separation added to the positional error.
	SystematicFraction = 0.1
	// MagnitudeSigma is the expected photometric disagreement between catalogs.
	MagnitudeSigma = 0.2
	// MinSignificanceError bounds the significance denominator (arcsec).
	MinSignificanceError = 0.1
	// MinDensity is the density floor in objects per arcmin².
	MinDensity = 0.1
	// MinProbability below which the best candidate is rejected.
	MinProbability = 0.01
)

// Priority ranks catalog sources for tie-breaking. Higher is preferred.
type Priority int

// Catalog priorities.
const (
	PriorityStandard Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityHighest
)

func (p Priority) String() string {
	switch p {
	case PriorityHighest:
		return "HIGHEST"
	case PriorityHigh:
		return "HIGH"
	case PriorityMedium:
		return "MEDIUM"
	default:
		return "STANDARD"
	}
}

// PriorityFor maps a catalog name to its priority.
func PriorityFor(catalog string) Priority {
	switch strings.ToUpper(catalog) {
	case "HST", "HUBBLE", "JWST", "WEBB":
		return PriorityHighest
	case "GAIA", "GAIA_DR3":
		return PriorityHigh
	case "2MASS", "WISE", "SDSS", "PANSTARRS":
		return PriorityMedium
	default:
		return PriorityStandard
	}
}

// Target is the position being matched. Magnitude is NaN when unknown.
type Target struct {
	RA        float64
	Dec       float64
	PosErr    float64 // arcsec, 1σ
	Magnitude float64
}

// Candidate is a catalog entry that may correspond to the target.
type Candidate struct {
	ID        string
	Catalog   string
	RA        float64
	Dec       float64
	PosErr    float64 // arcsec, 1σ
	Magnitude float64 // NaN when unknown
}

// Match is a scored candidate.
type Match struct {
	Candidate    Candidate
	Separation   float64 // arcsec
	Probability  float64
	Significance float64 // σ
	Priority     Priority
}

// EffectiveError adds a systematic term proportional to the separation:
// √(posErr² + (0.1·sep)²).
func EffectiveError(posErr, sep float64) float64 {
	return math.Hypot(posErr, SystematicFraction*sep)
}

// Probability is the composed spatial, distance and magnitude likelihood in [0, 1].
// dMag is NaN when either magnitude is unknown.
func Probability(sep, densityPerArcmin2, posErr, dMag float64) float64 {
	sigma := EffectiveError(posErr, sep)
	area := math.Pi * (sigma / 60) * (sigma / 60)
	pSpatial := math.Exp(-densityPerArcmin2 * area)

	pDistance := 1.0
	if sigma > 0 {
		r := sep / sigma
		pDistance = math.Exp(-r * r)
	} else if sep > 0 {
		pDistance = 0
	}

	pMag := 1.0
	if !math.IsNaN(dMag) {
		x := dMag / MagnitudeSigma
		pMag = math.Exp(-0.5 * x * x)
	}

	p := pSpatial * pDistance * pMag
	if math.IsNaN(p) {
		return 0
	}
	return math.Max(0, math.Min(1, p))
}

// Significance is sep / max(0.1, σ_eff).
func Significance(sep, posErr float64) float64 {
	return sep / math.Max(MinSignificanceError, EffectiveError(posErr, sep))
}

// LocalDensity estimates the catalog density (objects/arcmin²) from n objects found within a
// circle of radiusArcsec. Never below MinDensity.
func LocalDensity(n int, radiusArcsec float64) float64 {
	r := radiusArcsec / 60
	area := math.Pi * r * r
	if !(area > 0) {
		return MinDensity
	}
	return math.Max(MinDensity, float64(n)/area)
}

// CombinedError is the quadrature sum of target and candidate positional errors.
func CombinedError(a, b float64) float64 {
	return math.Hypot(a, b)
}

// Score evaluates one candidate against the target.
func Score(t Target, c Candidate, density float64) Match {
	sep := astrometry.Separation(t.RA, t.Dec, c.RA, c.Dec)
	posErr := CombinedError(t.PosErr, c.PosErr)
	return Match{
		Candidate:    c,
		Separation:   sep,
		Probability:  Probability(sep, density, posErr, t.Magnitude-c.Magnitude),
		Significance: Significance(sep, posErr),
		Priority:     PriorityFor(c.Catalog),
	}
}

// Rank scores every candidate within radiusArcsec and orders them best first: probability
// descending, then priority descending, then separation ascending, then candidate id.
func Rank(t Target, candidates []Candidate, density, radiusArcsec float64) []Match {
	out := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		m := Score(t, c, density)
		if math.IsNaN(m.Separation) || m.Separation > radiusArcsec {
			continue
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool { return better(out[i], out[j]) })
	return out
}

// Best returns the winning candidate, or false when none lies within the radius or the best
// probability is below MinProbability.
func Best(t Target, candidates []Candidate, density, radiusArcsec float64) (Match, bool) {
	ranked := Rank(t, candidates, density, radiusArcsec)
	if len(ranked) == 0 || ranked[0].Probability < MinProbability {
		return Match{}, false
	}
	return ranked[0], true
}

func better(a, b Match) bool {
	if a.Probability != b.Probability {
		return a.Probability > b.Probability
	}
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if a.Separation != b.Separation {
		return a.Separation < b.Separation
	}
	return a.Candidate.ID < b.Candidate.ID
}
