package astrometry

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var paranal = Observatory{Name: "Paranal", LongitudeDeg: -70.4045, LatitudeDeg: -24.6272, AltitudeM: 2635}

func TestRefraction_Standard(t *testing.T) {
	c := StandardConditions()
	r45 := Refraction(45, c)
	assert.InDelta(t, 58.0, r45, 0.5)
	assert.InDelta(t, BennettRefraction(45), r45, 3.0)

	assert.Less(t, Refraction(80, c), Refraction(30, c), "refraction grows toward the horizon")
}

func TestRefraction_Undefined(t *testing.T) {
	c := StandardConditions()
	assert.True(t, math.IsNaN(Refraction(3, c)))
	assert.True(t, math.IsNaN(Refraction(-10, c)))
	assert.True(t, math.IsNaN(BennettRefraction(2)))
}

func TestRefraction_Scaling(t *testing.T) {
	c := StandardConditions()
	low := c
	low.PressureHPa = 506.625
	assert.InDelta(t, Refraction(40, c)/2, Refraction(40, low), 1e-9)

	hot := c
	hot.TemperatureC = 40
	assert.Less(t, Refraction(40, hot), Refraction(40, c))
}

func TestAnnualAberration_Bounded(t *testing.T) {
	jde := EpochToJD(2024.3)
	for _, p := range [][2]float64{{0, 0}, {90, 45}, {200, -60}} {
		dRA, dDec := AnnualAberration(p[0], p[1], jde)
		total := math.Hypot(dRA*math.Cos(p[1]*math.Pi/180), dDec)
		assert.LessOrEqual(t, total, AberrationConstant+0.01, "position %v", p)
	}
}

func TestDiurnalAberration(t *testing.T) {
	dRA, dDec := DiurnalAberrationShift(0, 0, 0)
	assert.InDelta(t, DiurnalAberration, dRA, 1e-12)
	assert.InDelta(t, 0, dDec, 1e-12)

	dRA, _ = DiurnalAberrationShift(0, 0, 60)
	assert.InDelta(t, DiurnalAberration/2, dRA, 1e-9)
}

func TestGravitationalDeflection(t *testing.T) {
	jde := EpochToJD(2024.0)
	sunRA, sunDec := sunPosition(jde)

	// Opposite the Sun there is nothing to correct.
	dRA, dDec := GravitationalDeflection(math.Mod(sunRA+180, 360), -sunDec, jde)
	assert.Zero(t, dRA)
	assert.Zero(t, dDec)

	// Ten solar radii from the Sun the deflection is 0.175″.
	off := 10 * SolarRadiusDeg
	dRA, dDec = GravitationalDeflection(sunRA, sunDec+off, jde)
	total := math.Hypot(dRA*math.Cos((sunDec+off)*math.Pi/180), dDec)
	assert.InDelta(t, 0.175, total, 0.002)
	assert.Greater(t, dDec, 0.0, "displacement points away from the Sun")
}

func TestToHorizontal_Meridian(t *testing.T) {
	// An object on the local meridian culminates at altitude 90 − |φ − δ|.
	ts := time.Date(2024, 3, 20, 4, 0, 0, 0, time.UTC)
	hz := ToHorizontal(0, 0, ts, paranal)
	lstDeg := math.Mod(hz.HourAngleRad*180/math.Pi+360, 360)

	onMeridian := ToHorizontal(lstDeg, -24.6272, ts, paranal)
	assert.InDelta(t, 90, onMeridian.AltitudeDeg, 1e-5)
	assert.InDelta(t, 0, ZenithDistance(lstDeg, -24.6272, ts, paranal), 1e-5)

	south := ToHorizontal(lstDeg, -60, ts, paranal)
	assert.InDelta(t, 90-(60-24.6272), south.AltitudeDeg, 1e-6)
	assert.InDelta(t, 180, south.AzimuthDeg, 1e-6)
}

func TestFromHorizontal_RoundTrip(t *testing.T) {
	ts := time.Date(2024, 7, 1, 2, 30, 0, 0, time.UTC)
	hz := ToHorizontal(250, -30, ts, paranal)
	ra, dec := fromHorizontal(hz.AzimuthDeg, hz.AltitudeDeg, ts, paranal)
	assert.InDelta(t, 250, ra, 1e-7)
	assert.InDelta(t, -30, dec, 1e-7)
}

func TestReduceObserved(t *testing.T) {
	ts := time.Date(2024, 7, 1, 2, 30, 0, 0, time.UTC)
	red := ReduceObserved(250, -30, ts, paranal, StandardConditions())
	assert.Greater(t, red.AltitudeDeg, 3.0)
	assert.False(t, math.IsNaN(red.RefractionArcsec))
	assert.Greater(t, red.RefractionArcsec, 0.0)

	moved := Separation(250, -30, red.RA, red.Dec)
	assert.Greater(t, moved, 0.0)
	assert.Less(t, moved, 300.0)
}

func TestReduceObserved_BelowHorizon(t *testing.T) {
	ts := time.Date(2024, 7, 1, 2, 30, 0, 0, time.UTC)
	hz := ToHorizontal(0, 0, ts, paranal)
	lstDeg := math.Mod(hz.HourAngleRad*180/math.Pi+360, 360)
	// 180° from the meridian at the equator is below the horizon for a southern site.
	red := ReduceObserved(math.Mod(lstDeg+180, 360), 0, ts, paranal, StandardConditions())
	assert.Less(t, red.AltitudeDeg, 0.0)
	assert.True(t, math.IsNaN(red.RefractionArcsec))
	assert.False(t, math.IsNaN(red.RA))
}
