package astrometry

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/base"
	"github.com/soniakeys/meeus/v3/coord"
	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/meeus/v3/refraction"
	"github.com/soniakeys/meeus/v3/sidereal"
	"github.com/soniakeys/meeus/v3/solar"
	"github.com/soniakeys/unit"

	"github.com/kailas-cloud/astrocat/internal/domain/celestial"
)

// Physical constants of the observer corrections, arcseconds unless noted.
const (
	AberrationConstant  = 20.49552
	DiurnalAberration   = 0.3200 // κ_d at the equator: v_rot/c
	SolarLimbDeflection = 1.75
	SolarRadiusDeg      = 0.2666
	// MinRefractionAltitude is the altitude (degrees) at or below which refraction is undefined.
	MinRefractionAltitude = 3.0
)

// Observatory is a site on the Earth. Longitude is positive east.
type Observatory struct {
	Name         string
	LongitudeDeg float64
	LatitudeDeg  float64
	AltitudeM    float64
}

// Conditions are the ambient observing conditions used by the refraction model.
type Conditions struct {
	TemperatureC     float64
	PressureHPa      float64
	HumidityPct      float64
	WavelengthMicron float64
}

// StandardConditions returns 10 °C, 1013.25 hPa, 50 % humidity at 0.55 µm.
func StandardConditions() Conditions {
	return Conditions{TemperatureC: 10, PressureHPa: 1013.25, HumidityPct: 50, WavelengthMicron: 0.55}
}

// Refraction returns the atmospheric refraction in arcseconds for an apparent altitude in degrees.
// Returns NaN at or below MinRefractionAltitude.
func Refraction(altitudeDeg float64, c Conditions) float64 {
	if math.IsNaN(altitudeDeg) || altitudeDeg <= MinRefractionAltitude {
		return math.NaN()
	}
	tz := math.Tan((90 - altitudeDeg) * celestial.DegToRad)
	r := 58.1*tz - 0.07*tz*tz*tz + 0.000086*math.Pow(tz, 5)

	tempK := c.TemperatureC + 273.15
	if tempK <= 0 {
		return math.NaN()
	}
	r *= (c.PressureHPa / 1013.25) * (283.0 / tempK)

	if c.WavelengthMicron > 0 {
		l2 := c.WavelengthMicron * c.WavelengthMicron
		r *= 1 + 0.0075*(1/l2-1/(0.55*0.55))
	}
	r *= 1 - 0.00001*c.HumidityPct*tempK/100
	return r
}

// BennettRefraction returns Bennett's refraction (arcseconds) for an apparent altitude at
// standard conditions; used as an independent check of Refraction.
func BennettRefraction(altitudeDeg float64) float64 {
	if altitudeDeg <= MinRefractionAltitude {
		return math.NaN()
	}
	return refraction.Bennett(unit.AngleFromDeg(altitudeDeg)).Sec()
}

// AnnualAberration returns (ΔRA, ΔDec) in arcseconds of RA and Dec that aberration adds
// to a mean position at jde.
func AnnualAberration(raDeg, decDeg, jde float64) (dRA, dDec float64) {
	sunLon, _ := solar.True(base.J2000Century(jde))
	eps := MeanObliquity(jde)

	a := raDeg * celestial.DegToRad
	d := decDeg * celestial.DegToRad
	sa, ca := math.Sincos(a)
	sd, cd := math.Sincos(d)
	ss, cs := math.Sincos(sunLon.Rad())
	se, ce := math.Sincos(eps)

	dRA = -AberrationConstant * (ca*cs*ce + sa*ss) / cosDec(decDeg)
	dDec = -AberrationConstant * (cs*ce*(se/ce*cd-sa*sd) + ca*sd*ss)
	return dRA, dDec
}

// DiurnalAberrationShift returns (ΔRA, ΔDec) arcseconds added by the observer's rotation
// for hour angle h (radians) at geodetic latitude latDeg.
func DiurnalAberrationShift(decDeg, hourAngle, latDeg float64) (dRA, dDec float64) {
	k := DiurnalAberration * math.Cos(latDeg*celestial.DegToRad)
	dRA = k * math.Cos(hourAngle) / cosDec(decDeg)
	dDec = k * math.Sin(hourAngle) * math.Sin(decDeg*celestial.DegToRad)
	return dRA, dDec
}

// GravitationalDeflection returns (ΔRA, ΔDec) arcseconds by which the Sun's gravity displaces
// a position away from the Sun at jde. Zero beyond 90° from the Sun.
func GravitationalDeflection(raDeg, decDeg, jde float64) (dRA, dDec float64) {
	sRA, sDec := sunPosition(jde)
	thetaDeg := Separation(raDeg, decDeg, sRA, sDec) / celestial.ArcsecPerDegree
	if thetaDeg > 90 || math.IsNaN(thetaDeg) {
		return 0, 0
	}
	radii := math.Max(1, thetaDeg/SolarRadiusDeg)
	m := SolarLimbDeflection / radii

	pa := PositionAngle(raDeg, decDeg, sRA, sDec) * celestial.DegToRad
	dDec = -m * math.Cos(pa)
	dRA = -m * math.Sin(pa) / cosDec(decDeg)
	return dRA, dDec
}

// sunPosition returns the Sun's apparent (ra, dec) in degrees.
func sunPosition(jde float64) (float64, float64) {
	ra, dec := solar.ApparentEquatorial(jde)
	return unit.Angle(ra).Deg(), dec.Deg()
}

// Horizontal is a topocentric position. Azimuth is measured from north through east.
type Horizontal struct {
	AzimuthDeg   float64
	AltitudeDeg  float64
	HourAngleRad float64
}

// ToHorizontal converts (ra, dec) to altitude/azimuth for an observatory at instant t
// using apparent sidereal time.
func ToHorizontal(raDeg, decDeg float64, t time.Time, obs Observatory) Horizontal {
	jd := julian.TimeToJD(t.UTC())
	st := sidereal.Apparent(jd)
	// meeus measures longitude positive west and azimuth from the south.
	az, alt := coord.EqToHz(unit.RAFromDeg(raDeg), unit.AngleFromDeg(decDeg),
		unit.AngleFromDeg(obs.LatitudeDeg), unit.AngleFromDeg(-obs.LongitudeDeg), st)

	h := st.Rad() + obs.LongitudeDeg*celestial.DegToRad - raDeg*celestial.DegToRad
	return Horizontal{
		AzimuthDeg:   celestial.NormalizeRA(az.Deg() + 180),
		AltitudeDeg:  alt.Deg(),
		HourAngleRad: math.Remainder(h, 2*math.Pi),
	}
}

// ZenithDistance returns 90° − altitude for (ra, dec) seen from obs at t.
func ZenithDistance(raDeg, decDeg float64, t time.Time, obs Observatory) float64 {
	return 90 - ToHorizontal(raDeg, decDeg, t, obs).AltitudeDeg
}

// fromHorizontal converts an hour angle/altitude pair back to (ra, dec).
func fromHorizontal(azDeg, altDeg float64, t time.Time, obs Observatory) (float64, float64) {
	jd := julian.TimeToJD(t.UTC())
	lst := sidereal.Apparent(jd).Rad() + obs.LongitudeDeg*celestial.DegToRad

	az := azDeg * celestial.DegToRad
	h := altDeg * celestial.DegToRad
	phi := obs.LatitudeDeg * celestial.DegToRad
	sh, ch := math.Sincos(h)
	sp, cp := math.Sincos(phi)
	sz, cz := math.Sincos(az)

	sd := sp*sh + cp*ch*cz
	dec := math.Asin(math.Max(-1, math.Min(1, sd)))
	ha := math.Atan2(-sz*ch, cp*sh-sp*ch*cz)
	ra := lst - ha
	return celestial.NormalizeRA(ra * celestial.RadToDeg), celestial.ClampDec(dec * celestial.RadToDeg)
}

// Reduction is the outcome of reducing an observed position to an astrometric one.
// Shifts are the amounts removed, in arcseconds.
type Reduction struct {
	RA               float64
	Dec              float64
	AltitudeDeg      float64
	RefractionArcsec float64 // NaN when the object was too low to correct
	AnnualRA         float64
	AnnualDec        float64
	DiurnalRA        float64
	DiurnalDec       float64
	DeflectionRA     float64
	DeflectionDec    float64
}

// ReduceObserved removes refraction, diurnal aberration, annual aberration and solar light
// deflection (in that order) from an observed position. The altitude comes from real
// apparent sidereal time at the observatory, not a fixed zenith distance.
func ReduceObserved(raDeg, decDeg float64, t time.Time, obs Observatory, c Conditions) Reduction {
	hz := ToHorizontal(raDeg, decDeg, t, obs)
	out := Reduction{RA: raDeg, Dec: decDeg, AltitudeDeg: hz.AltitudeDeg}

	out.RefractionArcsec = Refraction(hz.AltitudeDeg, c)
	if !math.IsNaN(out.RefractionArcsec) {
		out.RA, out.Dec = fromHorizontal(hz.AzimuthDeg,
			hz.AltitudeDeg-out.RefractionArcsec/celestial.ArcsecPerDegree, t, obs)
	}

	out.DiurnalRA, out.DiurnalDec = DiurnalAberrationShift(out.Dec, hz.HourAngleRad, obs.LatitudeDeg)
	out.RA, out.Dec = shift(out.RA, out.Dec, -out.DiurnalRA, -out.DiurnalDec)

	jde := julian.TimeToJD(t.UTC())
	out.AnnualRA, out.AnnualDec = AnnualAberration(out.RA, out.Dec, jde)
	out.RA, out.Dec = shift(out.RA, out.Dec, -out.AnnualRA, -out.AnnualDec)

	out.DeflectionRA, out.DeflectionDec = GravitationalDeflection(out.RA, out.Dec, jde)
	out.RA, out.Dec = shift(out.RA, out.Dec, -out.DeflectionRA, -out.DeflectionDec)
	return out
}

func shift(raDeg, decDeg, dRAArcsec, dDecArcsec float64) (float64, float64) {
	return celestial.NormalizeRA(raDeg + dRAArcsec/celestial.ArcsecPerDegree),
		celestial.ClampDec(decDeg + dDecArcsec/celestial.ArcsecPerDegree)
}
