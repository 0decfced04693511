package astrometry

import (
	"math"

	"github.com/kailas-cloud/astrocat/internal/domain/celestial"
)

// IAU galactic frame constants in J2000.
const (
	GalacticPoleRA  = 192.859508 // RA of the north galactic pole, degrees
	GalacticPoleDec = 27.128336  // Dec of the north galactic pole, degrees
	GalacticNode    = 32.932     // galactic longitude of the ascending node on the equator, degrees
)

// longitude of the north celestial pole in galactic coordinates
const galacticNCPLon = GalacticNode + 90

// EquatorialToGalactic converts J2000 (ra, dec) in degrees to galactic (l, b) in degrees.
func EquatorialToGalactic(raDeg, decDeg float64) (lDeg, bDeg float64) {
	if math.IsNaN(raDeg) || math.IsNaN(decDeg) {
		return math.NaN(), math.NaN()
	}
	sdp, cdp := math.Sincos(GalacticPoleDec * celestial.DegToRad)
	sd, cd := math.Sincos(decDeg * celestial.DegToRad)
	da := (raDeg - GalacticPoleRA) * celestial.DegToRad
	sda, cda := math.Sincos(da)

	sb := sd*sdp + cd*cdp*cda
	bDeg = math.Asin(math.Max(-1, math.Min(1, sb))) * celestial.RadToDeg

	y := cd * sda
	x := sd*cdp - cd*sdp*cda
	lDeg = celestial.NormalizeRA(galacticNCPLon - math.Atan2(y, x)*celestial.RadToDeg)
	return lDeg, bDeg
}

// GalacticToEquatorial converts galactic (l, b) in degrees to J2000 (ra, dec) in degrees.
func GalacticToEquatorial(lDeg, bDeg float64) (raDeg, decDeg float64) {
	if math.IsNaN(lDeg) || math.IsNaN(bDeg) {
		return math.NaN(), math.NaN()
	}
	sdp, cdp := math.Sincos(GalacticPoleDec * celestial.DegToRad)
	sb, cb := math.Sincos(bDeg * celestial.DegToRad)
	dl := (galacticNCPLon - lDeg) * celestial.DegToRad
	sdl, cdl := math.Sincos(dl)

	sd := sb*sdp + cb*cdp*cdl
	decDeg = math.Asin(math.Max(-1, math.Min(1, sd))) * celestial.RadToDeg

	y := cb * sdl
	x := sb*cdp - cb*sdp*cdl
	raDeg = celestial.NormalizeRA(GalacticPoleRA + math.Atan2(y, x)*celestial.RadToDeg)
	return raDeg, decDeg
}
