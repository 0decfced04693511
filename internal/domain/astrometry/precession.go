package astrometry

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/soniakeys/meeus/v3/base"

	"github.com/kailas-cloud/astrocat/internal/domain/celestial"
)

// EpochJ2000 is the standard Julian reference epoch as a decimal year.
const EpochJ2000 = 2000.0

// Precess moves a mean equatorial position from one Julian epoch to another (decimal years)
// using the IAU 1976 angles ζ, z, θ composed as Rz(-z)·Ry(θ)·Rz(-ζ).
func Precess(raDeg, decDeg, fromEpoch, toEpoch float64) (float64, float64) {
	if math.IsNaN(raDeg) || math.IsNaN(decDeg) {
		return math.NaN(), math.NaN()
	}
	if fromEpoch == toEpoch {
		return celestial.NormalizeRA(raDeg), celestial.ClampDec(decDeg)
	}
	jd0 := base.JulianYearToJDE(fromEpoch)
	jd1 := base.JulianYearToJDE(toEpoch)
	return precessJD(raDeg, decDeg, jd0, jd1)
}

func precessJD(raDeg, decDeg, jd0, jd1 float64) (float64, float64) {
	zeta, z, theta := precessionAngles(jd0, jd1)

	a0 := raDeg * celestial.DegToRad
	d0 := decDeg * celestial.DegToRad
	sd0, cd0 := math.Sincos(d0)
	sz, cz := math.Sincos(a0 + zeta)
	st, ct := math.Sincos(theta)

	a := cd0 * sz
	b := ct*cd0*cz - st*sd0
	c := st*cd0*cz + ct*sd0

	ra := math.Atan2(a, b) + z
	dec := math.Atan2(c, math.Hypot(a, b))
	return celestial.NormalizeRA(ra * celestial.RadToDeg), celestial.ClampDec(dec * celestial.RadToDeg)
}

// precessionAngles returns ζ, z, θ in radians for precession from jd0 to jd1.
func precessionAngles(jd0, jd1 float64) (zeta, z, theta float64) {
	bigT := (jd0 - base.J2000) / base.JulianCentury
	t := (jd1 - jd0) / base.JulianCentury
	t2, t3 := t*t, t*t*t

	common := (2306.2181 + 1.39656*bigT - 0.000139*bigT*bigT) * t
	zeta = common + (0.30188-0.000344*bigT)*t2 + 0.017998*t3
	z = common + (1.09468+0.000066*bigT)*t2 + 0.018203*t3
	theta = (2004.3109-0.85330*bigT-0.000217*bigT*bigT)*t -
		(0.42665+0.000217*bigT)*t2 - 0.041833*t3

	return zeta * celestial.ArcsecToRad, z * celestial.ArcsecToRad, theta * celestial.ArcsecToRad
}

// FrameMode selects how B1950 and J2000 positions are related.
type FrameMode int

const (
	// FrameRigorous applies the FK4 → FK5 matrix with E-term handling.
	FrameRigorous FrameMode = iota
	// FrameApproximate applies the constant offset ΔRA = 0.640″, ΔDec = 0.280″.
	FrameApproximate
)

const (
	approxDeltaRA  = 0.640 / celestial.ArcsecPerDegree
	approxDeltaDec = 0.280 / celestial.ArcsecPerDegree
)

// E-terms of aberration at B1950, radians.
var eTerms = [3]float64{-1.62557e-6, -0.31919e-6, -0.13843e-6}

// position block of the FK4 → FK5 transformation at epoch B1950
var fk4ToFK5 = [3][3]float64{
	{0.9999256782, -0.0111820611, -0.0048579477},
	{0.0111820610, 0.9999374784, -0.0000271765},
	{0.0048579479, -0.0000271474, 0.9999881997},
}

// position block of the FK5 → FK4 transformation at epoch J2000
var fk5ToFK4 = [3][3]float64{
	{0.9999256795, 0.0111814828, 0.0048590039},
	{-0.0111814828, 0.9999374849, -0.0000271771},
	{-0.0048590040, -0.0000271557, 0.9999881946},
}

// B1950ToJ2000 converts an FK4 B1950 position to FK5 J2000 (proper motion assumed zero).
func B1950ToJ2000(raDeg, decDeg float64, mode FrameMode) (float64, float64) {
	if mode == FrameApproximate {
		return celestial.NormalizeRA(raDeg + approxDeltaRA), celestial.ClampDec(decDeg + approxDeltaDec)
	}
	r := celestial.ToUnitVector(raDeg, decDeg)
	dot := dot3(r, eTerms)
	var r1 [3]float64
	for i := range r1 {
		r1[i] = r[i] - eTerms[i] + dot*r[i]
	}
	return celestial.FromVector(mulMat(fk4ToFK5, r1))
}

// J2000ToB1950 converts an FK5 J2000 position to FK4 B1950 (proper motion assumed zero).
func J2000ToB1950(raDeg, decDeg float64, mode FrameMode) (float64, float64) {
	if mode == FrameApproximate {
		return celestial.NormalizeRA(raDeg - approxDeltaRA), celestial.ClampDec(decDeg - approxDeltaDec)
	}
	r1 := mulMat(fk5ToFK4, celestial.ToUnitVector(raDeg, decDeg))
	n := math.Sqrt(dot3(r1, r1))
	for i := range r1 {
		r1[i] /= n
	}
	// Restore the E-terms; two fixed-point passes converge far below a microarcsecond.
	r := r1
	for range 2 {
		d := dot3(r, eTerms)
		for i := range r {
			r[i] = r1[i] + eTerms[i] - d*r1[i]
		}
		m := math.Sqrt(dot3(r, r))
		for i := range r {
			r[i] /= m
		}
	}
	return celestial.FromVector(r)
}

// ConvertEpoch converts between named epochs: "B1950", "J2000" or a Julian year such as "J2015.5".
// B1950 ↔ J2000 uses the frame matrix; every other pair is a precession between Julian epochs.
func ConvertEpoch(raDeg, decDeg float64, from, to string, mode FrameMode) (float64, float64, error) {
	f, err := ParseEpoch(from)
	if err != nil {
		return 0, 0, err
	}
	tt, err := ParseEpoch(to)
	if err != nil {
		return 0, 0, err
	}
	fb := strings.EqualFold(from, "B1950")
	tb := strings.EqualFold(to, "B1950")
	switch {
	case fb && tb:
		return raDeg, decDeg, nil
	case fb:
		ra, dec := B1950ToJ2000(raDeg, decDeg, mode)
		ra, dec = Precess(ra, dec, EpochJ2000, tt)
		return ra, dec, nil
	case tb:
		ra, dec := Precess(raDeg, decDeg, f, EpochJ2000)
		ra, dec = J2000ToB1950(ra, dec, mode)
		return ra, dec, nil
	default:
		ra, dec := Precess(raDeg, decDeg, f, tt)
		return ra, dec, nil
	}
}

// ParseEpoch parses "B1950", "J2000", "J2015.5" or a bare decimal year into a Julian decimal year.
func ParseEpoch(s string) (float64, error) {
	u := strings.ToUpper(strings.TrimSpace(s))
	switch u {
	case "B1950":
		return base.JDEToJulianYear(base.BesselianYearToJDE(1950)), nil
	case "J2000", "":
		return EpochJ2000, nil
	}
	if strings.HasPrefix(u, "B") {
		y, err := strconv.ParseFloat(u[1:], 64)
		if err != nil {
			return 0, fmt.Errorf("parse epoch %q: %w", s, err)
		}
		return base.JDEToJulianYear(base.BesselianYearToJDE(y)), nil
	}
	y, err := strconv.ParseFloat(strings.TrimPrefix(u, "J"), 64)
	if err != nil {
		return 0, fmt.Errorf("parse epoch %q: %w", s, err)
	}
	return y, nil
}

func dot3(a, b [3]float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func mulMat(m [3][3]float64, v [3]float64) [3]float64 {
	return [3]float64{
		m[0][0]*v[0] + m[0][1]*v[1] + m[0][2]*v[2],
		m[1][0]*v[0] + m[1][1]*v[1] + m[1][2]*v[2],
		m[2][0]*v[0] + m[2][1]*v[1] + m[2][2]*v[2],
	}
}
