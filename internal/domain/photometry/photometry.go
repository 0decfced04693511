// Package photometry calibrates instrumental magnitudes and converts between flux and magnitude.
//
// All functions are pure and safe for concurrent use. Numeric pathologies (non-positive flux,
// empty spectra, zero exposure) surface as NaN or ±Inf, never as errors.
package photometry

import (
	"math"
	"regexp"
	"strings"
)

// DefaultZeroPoint is used for filters with no tabulated zero point.
const DefaultZeroPoint = 25.0

// DefaultExtinction is the extinction coefficient (mag/airmass) of an unlisted filter.
const DefaultExtinction = 0.15

// Error model constants, magnitudes.
const (
	SystematicFloor = 0.01
	MinError        = 0.001
	skyErrorScale   = 0.01
	airmassError    = 0.005
)

// MaxEncircledEnergy is the asymptote of the aperture correction curve.
const MaxEncircledEnergy = 0.98

var standardZeroPoints = map[string]float64{
	// Johnson-Cousins
	"U": 22.0, "B": 22.5, "V": 21.1, "R": 21.2, "I": 20.5,
	// 2MASS
	"J": 16.8, "H": 16.4, "K": 16.0,
	// SDSS
	"u": 22.5, "g": 23.3, "r": 22.7, "i": 22.4, "z": 21.3,
	// HST
	"F555W": 25.7, "F814W": 25.1, "F606W": 26.1,
	// JWST
	"F090W": 28.1, "F150W": 28.2, "F200W": 28.5,
}

var standardExtinction = map[string]float64{
	"U": 0.60, "B": 0.40, "V": 0.20, "R": 0.10, "I": 0.08,
	"J": 0.05, "H": 0.03, "K": 0.02,
}

var jwstFilters = map[string]bool{"F090W": true, "F150W": true, "F200W": true}

var spaceFilter = regexp.MustCompile(`^F\d{3}[WMNX]$`)

// PSF FWHM in pixels by instrument family.
const (
	psfFWHMHST    = 2.5
	psfFWHMJWST   = 3.0
	psfFWHMGround = 4.0
)

// StandardZeroPoints returns a copy of the built-in zero point table.
func StandardZeroPoints() map[string]float64 {
	return copyTable(standardZeroPoints)
}

// StandardExtinction returns a copy of the built-in extinction table.
func StandardExtinction() map[string]float64 {
	return copyTable(standardExtinction)
}

func copyTable(src map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// lookup tries the exact filter name, then its upper-case form.
func lookup(table map[string]float64, filter string) (float64, bool) {
	if v, ok := table[filter]; ok {
		return v, true
	}
	v, ok := table[strings.ToUpper(filter)]
	return v, ok
}

// FluxToMagnitude returns zp − 2.5·log10(flux), or NaN for non-positive flux.
func FluxToMagnitude(flux, zp float64) float64 {
	if !(flux > 0) || math.IsInf(flux, 0) {
		return math.NaN()
	}
	return zp - 2.5*math.Log10(flux)
}

// MagnitudeToFlux returns 10^((zp − mag)/2.5).
func MagnitudeToFlux(mag, zp float64) float64 {
	return math.Pow(10, (zp-mag)/2.5)
}

// ApertureCorrection returns the magnitude correction to an infinite aperture for a circular
// aperture of the given diameter (pixels). The encircled energy curve is monotonic in
// diameter/FWHM and saturates at MaxEncircledEnergy. An unknown (non-positive) aperture
// applies no correction.
func ApertureCorrection(filter string, apertureDiameter float64) float64 {
	if !(apertureDiameter > 0) {
		return 0
	}
	ee := EncircledEnergy(apertureDiameter / psfFWHM(filter))
	if !(ee > 0) {
		return math.Inf(1)
	}
	return -2.5 * math.Log10(ee)
}

// EncircledEnergy is the approximate fraction of a point source's light inside an aperture
// of diameter ratio·FWHM.
func EncircledEnergy(ratio float64) float64 {
	var ee float64
	switch {
	case math.IsNaN(ratio) || ratio <= 0:
		return 0
	case ratio < 0.5:
		ee = 0.1 * ratio * ratio
	case ratio < 1:
		ee = 0.4 * ratio
	case ratio < 2:
		ee = 0.6 + 0.3*(ratio-1)
	case ratio < 4:
		ee = 0.9 + 0.08*(ratio-2)
	default:
		ee = MaxEncircledEnergy
	}
	return math.Min(ee, MaxEncircledEnergy)
}

func psfFWHM(filter string) float64 {
	f := strings.ToUpper(filter)
	switch {
	case jwstFilters[f]:
		return psfFWHMJWST
	case spaceFilter.MatchString(f):
		return psfFWHMHST
	default:
		return psfFWHMGround
	}
}

// ColorCorrection is the brightness-dependent colour term applied without a measured colour index.
func ColorCorrection(instrumentalMag float64) float64 {
	switch {
	case instrumentalMag < 15:
		return 0.02
	case instrumentalMag < 20:
		return 0.01
	default:
		return 0
	}
}

// EstimateError combines Poisson, sky, airmass and systematic terms in quadrature.
// Terms whose inputs are unknown (non-positive exposure, aperture or airmass) are left out.
// The result is never below MinError.
func EstimateError(instrumentalMag, exposureSec, airmass, apertureDiameter float64) float64 {
	var poisson, sky, atm float64
	if exposureSec > 0 {
		flux := math.Pow(10, -0.4*instrumentalMag)
		poisson = 1 / math.Sqrt(flux*exposureSec)
	}
	if apertureDiameter > 0 {
		skyArea := math.Pi * apertureDiameter * apertureDiameter / 4
		sky = skyErrorScale * math.Sqrt(skyArea)
	}
	if airmass > 0 {
		atm = airmassError * (airmass - 1)
	}

	total := math.Sqrt(poisson*poisson + sky*sky + atm*atm + SystematicFloor*SystematicFloor)
	if math.IsNaN(total) {
		return total
	}
	return math.Max(MinError, total)
}

// ColorIndices derives the standard colours (B−V, V−R, V−I, J−K) available from mags.
func ColorIndices(mags map[string]float64) map[string]float64 {
	pairs := [][2]string{{"B", "V"}, {"V", "R"}, {"V", "I"}, {"J", "K"}}
	out := make(map[string]float64, len(pairs))
	for _, p := range pairs {
		a, okA := mags[p[0]]
		b, okB := mags[p[1]]
		if okA && okB {
			out[p[0]+"-"+p[1]] = a - b
		}
	}
	return out
}
