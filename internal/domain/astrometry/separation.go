// Package astrometry implements the pure positional computations of the catalog:
// angular separations, frame conversions, epoch propagation and observer corrections.
// Every function is deterministic and safe for concurrent use; numeric pathologies
// yield NaN rather than errors.
package astrometry

import (
	"fmt"
	"math"

	"github.com/kailas-cloud/astrocat/internal/domain"
	"github.com/kailas-cloud/astrocat/internal/domain/celestial"
)

// SeparationMethod selects the great-circle distance formula.
type SeparationMethod int

const (
	// Vincenty is the numerator/denominator atan2 form, stable for every separation.
	Vincenty SeparationMethod = iota
	// Haversine is stable for small separations, weak near antipodes.
	Haversine
	// LawOfCosines is the fastest and loses precision below about one arcsecond.
	LawOfCosines
)

func (m SeparationMethod) String() string {
	switch m {
	case Vincenty:
		return "vincenty"
	case Haversine:
		return "haversine"
	case LawOfCosines:
		return "cosines"
	default:
		return fmt.Sprintf("SeparationMethod(%d)", int(m))
	}
}

// ParseSeparationMethod maps a name to a method; empty means Vincenty.
func ParseSeparationMethod(s string) (SeparationMethod, error) {
	switch s {
	case "", "vincenty":
		return Vincenty, nil
	case "haversine":
		return Haversine, nil
	case "cosines", "law_of_cosines":
		return LawOfCosines, nil
	default:
		return 0, domain.NewInvalidArgument("method", fmt.Sprintf("unknown separation method %q", s))
	}
}

// Separation returns the angular distance in arcseconds between two (ra, dec) positions in degrees.
func Separation(ra1, dec1, ra2, dec2 float64) float64 {
	return SeparationWith(Vincenty, ra1, dec1, ra2, dec2)
}

// SeparationWith computes the separation in arcseconds with the chosen formula.
// Any NaN input produces NaN.
func SeparationWith(m SeparationMethod, ra1, dec1, ra2, dec2 float64) float64 {
	if math.IsNaN(ra1) || math.IsNaN(dec1) || math.IsNaN(ra2) || math.IsNaN(dec2) {
		return math.NaN()
	}
	a1, d1 := ra1*celestial.DegToRad, dec1*celestial.DegToRad
	a2, d2 := ra2*celestial.DegToRad, dec2*celestial.DegToRad

	var rad float64
	switch m {
	case Haversine:
		rad = haversine(a1, d1, a2, d2)
	case LawOfCosines:
		rad = lawOfCosines(a1, d1, a2, d2)
	default:
		rad = vincenty(a1, d1, a2, d2)
	}
	return rad / celestial.ArcsecToRad
}

func vincenty(a1, d1, a2, d2 float64) float64 {
	dA := a2 - a1
	sd1, cd1 := math.Sincos(d1)
	sd2, cd2 := math.Sincos(d2)
	sdA, cdA := math.Sincos(dA)

	x := cd2 * sdA
	y := cd1*sd2 - sd1*cd2*cdA
	num := math.Hypot(x, y)
	den := sd1*sd2 + cd1*cd2*cdA
	return math.Atan2(num, den)
}

func haversine(a1, d1, a2, d2 float64) float64 {
	sdd := math.Sin((d2 - d1) / 2)
	sda := math.Sin((a2 - a1) / 2)
	h := sdd*sdd + math.Cos(d1)*math.Cos(d2)*sda*sda
	return 2 * math.Asin(math.Sqrt(math.Min(1, h)))
}

func lawOfCosines(a1, d1, a2, d2 float64) float64 {
	c := math.Sin(d1)*math.Sin(d2) + math.Cos(d1)*math.Cos(d2)*math.Cos(a2-a1)
	return math.Acos(math.Max(-1, math.Min(1, c)))
}

// PositionAngle returns the position angle in degrees (north through east) of point 2 seen from point 1.
func PositionAngle(ra1, dec1, ra2, dec2 float64) float64 {
	a1, d1 := ra1*celestial.DegToRad, dec1*celestial.DegToRad
	a2, d2 := ra2*celestial.DegToRad, dec2*celestial.DegToRad
	y := math.Sin(a2-a1) * math.Cos(d2)
	x := math.Cos(d1)*math.Sin(d2) - math.Sin(d1)*math.Cos(d2)*math.Cos(a2-a1)
	return celestial.NormalizeRA(math.Atan2(y, x) * celestial.RadToDeg)
}
