package astrometry

import (
	"math"

	"github.com/soniakeys/meeus/v3/base"
	"github.com/soniakeys/meeus/v3/solar"

	"github.com/kailas-cloud/astrocat/internal/domain/celestial"
)

// Thresholds gating the second-order terms of the propagation pipeline.
const (
	PerspectiveMinParallaxMas = 10.0
	ParallacticMinParallaxMas = 1.0
	// perspectiveScale converts pm·rv·plx (mas/yr · km/s · mas) into mas/yr².
	perspectiveScale = 977813.0
)

// Star is an astrometric source at a reference epoch.
// RadialVelocity is km/s; NaN means unknown.
type Star struct {
	RA             float64 // degrees
	Dec            float64 // degrees
	PMRA           float64 // mas/yr, includes cos(dec)
	PMDec          float64 // mas/yr
	Parallax       float64 // mas
	RadialVelocity float64 // km/s
	Epoch          float64 // Julian decimal year
}

// ParallaxModel selects how annual parallax is evaluated.
type ParallaxModel int

const (
	// ParallaxAnnualCycle uses the simplified annual cycle with phase 2π·Δt.
	ParallaxAnnualCycle ParallaxModel = iota
	// ParallaxSolarEphemeris uses the Sun's geocentric position at the target epoch.
	ParallaxSolarEphemeris
)

// PropagationOptions selects the pipeline stages. The zero value runs only proper motion.
type PropagationOptions struct {
	PerspectiveAcceleration bool
	Parallax                bool
	ParallaxModel           ParallaxModel
	Precession              bool
	Nutation                bool
	NutationModel           NutationModel
}

// FullPipeline enables every stage with the reference models.
func FullPipeline() PropagationOptions {
	return PropagationOptions{
		PerspectiveAcceleration: true,
		Parallax:                true,
		Precession:              true,
		Nutation:                true,
	}
}

// Position is a propagated (ra, dec) in degrees.
type Position struct {
	RA  float64
	Dec float64
}

// Propagate moves a star from its epoch to targetEpoch.
// Stage order: proper motion, perspective acceleration, parallactic motion,
// precession, nutation. RA is wrapped and Dec clamped after every stage.
func Propagate(s Star, targetEpoch float64, opts PropagationOptions) Position {
	if math.IsNaN(s.RA) || math.IsNaN(s.Dec) || math.IsNaN(targetEpoch) {
		return Position{RA: math.NaN(), Dec: math.NaN()}
	}
	dt := targetEpoch - s.Epoch
	ra, dec := ApplyProperMotion(s.RA, s.Dec, s.PMRA, s.PMDec, dt)

	if opts.PerspectiveAcceleration {
		ra, dec = applyPerspectiveAcceleration(ra, dec, s, dt)
	}
	if opts.Parallax && s.Parallax > ParallacticMinParallaxMas {
		switch opts.ParallaxModel {
		case ParallaxSolarEphemeris:
			ra, dec = applySolarParallax(ra, dec, s.Parallax, EpochToJD(targetEpoch))
		default:
			ra, dec = applyAnnualParallax(ra, dec, s.Parallax, dt)
		}
	}
	if opts.Precession {
		ra, dec = Precess(ra, dec, s.Epoch, targetEpoch)
	}
	if opts.Nutation {
		ra, dec = ApplyNutation(ra, dec, EpochToJD(targetEpoch), opts.NutationModel)
	}
	return Position{RA: ra, Dec: dec}
}

// ApplyProperMotion applies first-order proper motion over dt years.
// pmRA includes cos(dec), so the RA shift is divided by cos(dec).
func ApplyProperMotion(raDeg, decDeg, pmRA, pmDec, dt float64) (float64, float64) {
	if dt == 0 || (pmRA == 0 && pmDec == 0) {
		return celestial.NormalizeRA(raDeg), celestial.ClampDec(decDeg)
	}
	dRA := pmRA * dt / celestial.MasPerDegree
	dDec := pmDec * dt / celestial.MasPerDegree
	return celestial.NormalizeRA(raDeg + dRA/cosDec(decDeg)), celestial.ClampDec(decDeg + dDec)
}

func applyPerspectiveAcceleration(raDeg, decDeg float64, s Star, dt float64) (float64, float64) {
	if s.Parallax <= PerspectiveMinParallaxMas || math.IsNaN(s.RadialVelocity) {
		return raDeg, decDeg
	}
	k := s.RadialVelocity * s.Parallax / perspectiveScale
	accRA := -s.PMRA * k // mas/yr²
	accDec := -s.PMDec * k
	dRA := 0.5 * accRA * dt * dt / celestial.MasPerDegree
	dDec := 0.5 * accDec * dt * dt / celestial.MasPerDegree
	return celestial.NormalizeRA(raDeg + dRA/cosDec(decDeg)), celestial.ClampDec(decDeg + dDec)
}

func applyAnnualParallax(raDeg, decDeg, plxMas, dt float64) (float64, float64) {
	p := plxMas / celestial.MasPerDegree
	phase := 2 * math.Pi * dt
	return celestial.NormalizeRA(raDeg + p*math.Cos(phase)/cosDec(decDeg)),
		celestial.ClampDec(decDeg + p*math.Sin(phase))
}

// applySolarParallax displaces a barycentric position to the geocentre using the Sun's
// geocentric rectangular coordinates (AU) at jde.
func applySolarParallax(raDeg, decDeg, plxMas, jde float64) (float64, float64) {
	sunRA, sunDec := solar.ApparentEquatorial(jde)
	r := solar.Radius(base.J2000Century(jde))
	sa, ca := math.Sincos(sunRA.Rad())
	sd, cd := math.Sincos(sunDec.Rad())
	x, y, z := r*cd*ca, r*cd*sa, r*sd

	a := raDeg * celestial.DegToRad
	d := decDeg * celestial.DegToRad
	p := plxMas / celestial.MasPerDegree
	dRAcos := p * (x*math.Sin(a) - y*math.Cos(a))
	dDec := p * (x*math.Cos(a)*math.Sin(d) + y*math.Sin(a)*math.Sin(d) - z*math.Cos(d))
	return celestial.NormalizeRA(raDeg + dRAcos/cosDec(decDeg)), celestial.ClampDec(decDeg + dDec)
}

// cosDec keeps RA shifts finite at the poles.
func cosDec(decDeg float64) float64 {
	c := math.Cos(decDeg * celestial.DegToRad)
	if math.Abs(c) < 1e-12 {
		return math.Copysign(1e-12, c)
	}
	return c
}
