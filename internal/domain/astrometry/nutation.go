package astrometry

import (
	"math"

	"github.com/soniakeys/meeus/v3/base"
	"github.com/soniakeys/meeus/v3/nutation"

	"github.com/kailas-cloud/astrocat/internal/domain/celestial"
)

// NutationModel selects the nutation series.
type NutationModel int

const (
	// NutationPrincipal keeps only the 18.6-year term: ΔΨ ≈ −17.2″ sin Ω, Δε ≈ 9.2″ cos Ω.
	NutationPrincipal NutationModel = iota
	// NutationIAU1980 evaluates the full IAU 1980 series.
	NutationIAU1980
)

// NutationAngles returns ΔΨ and Δε in arcseconds for a Julian ephemeris day.
func NutationAngles(jde float64, model NutationModel) (dPsi, dEps float64) {
	if model == NutationIAU1980 {
		p, e := nutation.Nutation(jde)
		return p.Sec(), e.Sec()
	}
	t := base.J2000Century(jde)
	omega := (125.04452 - 1934.136261*t) * celestial.DegToRad
	return -17.2 * math.Sin(omega), 9.2 * math.Cos(omega)
}

// MeanObliquity returns the mean obliquity of the ecliptic in radians.
func MeanObliquity(jde float64) float64 {
	return nutation.MeanObliquity(jde).Rad()
}

// ApplyNutation converts a mean position of date to the true position of date.
func ApplyNutation(raDeg, decDeg, jde float64, model NutationModel) (float64, float64) {
	dPsi, dEps := NutationAngles(jde, model)
	eps := MeanObliquity(jde)

	a := raDeg * celestial.DegToRad
	d := decDeg * celestial.DegToRad
	sa, ca := math.Sincos(a)
	se, ce := math.Sincos(eps)
	td := math.Tan(d)

	dAlpha := (ce+se*sa*td)*dPsi - ca*td*dEps
	dDelta := se*ca*dPsi + sa*dEps
	return celestial.NormalizeRA(raDeg + dAlpha/celestial.ArcsecPerDegree),
		celestial.ClampDec(decDeg + dDelta/celestial.ArcsecPerDegree)
}
