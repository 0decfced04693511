// Package celestial holds the geometry of positions on the celestial sphere.
package celestial

import (
	"fmt"
	"math"

	sexa "github.com/soniakeys/sexagesimal"
	"github.com/soniakeys/unit"

	"github.com/kailas-cloud/astrocat/internal/domain"
)

// VectorDim is the fixed vector dimension for stored directions (unit sphere, 3D).
const VectorDim = 3

// Angular unit conversions.
const (
	ArcsecPerDegree = 3600.0
	MasPerDegree    = 3.6e6
	DegToRad        = math.Pi / 180
	RadToDeg        = 180 / math.Pi
	ArcsecToRad     = DegToRad / ArcsecPerDegree
)

// MaxConeRadiusArcsec is the largest accepted cone search radius.
const MaxConeRadiusArcsec = 3600.0

// ToUnitVector converts (ra, dec) in degrees to a direction on the unit sphere.
// x points at (0°, 0°), z at the north celestial pole.
func ToUnitVector(raDeg, decDeg float64) [3]float64 {
	ra := raDeg * DegToRad
	dec := decDeg * DegToRad
	cd := math.Cos(dec)
	return [3]float64{cd * math.Cos(ra), cd * math.Sin(ra), math.Sin(dec)}
}

// ToVector converts (ra, dec) in degrees to a float32 slice for KNN storage.
func ToVector(raDeg, decDeg float64) []float32 {
	v := ToUnitVector(raDeg, decDeg)
	return []float32{float32(v[0]), float32(v[1]), float32(v[2])}
}

// FromVector converts a (not necessarily unit) Cartesian vector back to (ra, dec) degrees.
func FromVector(v [3]float64) (raDeg, decDeg float64) {
	r := math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
	if r == 0 {
		return math.NaN(), math.NaN()
	}
	decDeg = math.Asin(clampUnit(v[2]/r)) * RadToDeg
	raDeg = NormalizeRA(math.Atan2(v[1], v[0]) * RadToDeg)
	return raDeg, ClampDec(decDeg)
}

// ChordFromArcsec returns the straight-line distance between two unit vectors separated by sep arcsec.
// chord = 2·sin(θ/2); this is the L2 distance the vector index works with.
func ChordFromArcsec(sepArcsec float64) float64 {
	return 2 * math.Sin(sepArcsec*ArcsecToRad/2)
}

// ArcsecFromChord inverts ChordFromArcsec: θ = 2·asin(L2/2).
func ArcsecFromChord(l2 float64) float64 {
	half := l2 / 2
	if half > 1 {
		half = 1
	}
	return 2 * math.Asin(half) / ArcsecToRad
}

// NormalizeRA wraps an angle in degrees into [0, 360).
func NormalizeRA(raDeg float64) float64 {
	if math.IsNaN(raDeg) || math.IsInf(raDeg, 0) {
		return math.NaN()
	}
	r := math.Mod(raDeg, 360)
	if r < 0 {
		r += 360
	}
	if r >= 360 {
		r = 0
	}
	return r
}

// ClampDec clamps a declination into [-90, 90].
func ClampDec(decDeg float64) float64 {
	return math.Max(-90, math.Min(90, decDeg))
}

// ValidRA reports whether ra is in [0, 360).
func ValidRA(raDeg float64) bool {
	return raDeg >= 0 && raDeg < 360
}

// ValidDec reports whether dec is in [-90, 90].
func ValidDec(decDeg float64) bool {
	return decDeg >= -90 && decDeg <= 90
}

// ValidateCoordinates checks that ra (after wrapping 360 to 0) and dec are in range.
func ValidateCoordinates(raDeg, decDeg float64) error {
	if math.IsNaN(raDeg) || math.IsNaN(decDeg) {
		return domain.NewInvalidArgument("coordinates", "must be finite")
	}
	if raDeg < 0 || raDeg > 360 {
		return domain.NewInvalidArgument("ra", fmt.Sprintf("must be in [0, 360], got %g", raDeg))
	}
	if !ValidDec(decDeg) {
		return domain.NewInvalidArgument("dec", fmt.Sprintf("must be in [-90, 90], got %g", decDeg))
	}
	return nil
}

// FormatRA renders right ascension as sexagesimal hours.
func FormatRA(raDeg float64) string {
	return fmt.Sprint(sexa.FmtRA(unit.RAFromDeg(raDeg)))
}

// FormatDec renders declination as sexagesimal degrees.
func FormatDec(decDeg float64) string {
	return fmt.Sprint(sexa.FmtAngle(unit.AngleFromDeg(decDeg)))
}

func clampUnit(x float64) float64 {
	return math.Max(-1, math.Min(1, x))
}
