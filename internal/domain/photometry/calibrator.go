package photometry

import (
	"math"
	"strings"
)

// Measurement is an instrumental magnitude with its observing context.
type Measurement struct {
	InstrumentalMag  float64
	Filter           string
	Airmass          float64
	ExposureSec      float64
	ApertureDiameter float64 // pixels
}

// Result is a calibrated magnitude together with each applied term.
type Result struct {
	Magnitude  float64
	Error      float64
	ZeroPoint  float64
	Extinction float64
	Aperture   float64
	Color      float64
}

// Calibrator holds the zero point and extinction tables. It is read-only after construction.
type Calibrator struct {
	zeroPoints map[string]float64
	extinction map[string]float64
}

// Option configures a Calibrator.
type Option func(*Calibrator)

// WithZeroPoints overrides or extends the built-in zero points.
func WithZeroPoints(zp map[string]float64) Option {
	return func(c *Calibrator) {
		for k, v := range zp {
			c.zeroPoints[k] = v
		}
	}
}

// WithExtinction overrides or extends the built-in extinction coefficients.
func WithExtinction(k map[string]float64) Option {
	return func(c *Calibrator) {
		for f, v := range k {
			c.extinction[f] = v
		}
	}
}

// NewCalibrator creates a Calibrator seeded with the standard tables.
func NewCalibrator(opts ...Option) *Calibrator {
	c := &Calibrator{
		zeroPoints: StandardZeroPoints(),
		extinction: StandardExtinction(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ZeroPoint returns the filter's zero point, DefaultZeroPoint if unknown.
func (c *Calibrator) ZeroPoint(filter string) float64 {
	if v, ok := lookup(c.zeroPoints, filter); ok {
		return v
	}
	return DefaultZeroPoint
}

// Extinction returns k·(airmass − 1) for the filter.
func (c *Calibrator) Extinction(filter string, airmass float64) float64 {
	k, ok := lookup(c.extinction, filter)
	if !ok {
		k = DefaultExtinction
	}
	if !(airmass > 0) {
		return 0
	}
	return k * (airmass - 1)
}

// Calibrate computes m_inst + ZP + k·(X−1) + ApCorr + ColorCorr and its error.
func (c *Calibrator) Calibrate(m Measurement) Result {
	r := Result{
		ZeroPoint:  c.ZeroPoint(m.Filter),
		Extinction: c.Extinction(m.Filter, m.Airmass),
		Aperture:   ApertureCorrection(m.Filter, m.ApertureDiameter),
		Color:      ColorCorrection(m.InstrumentalMag),
	}
	r.Magnitude = m.InstrumentalMag + r.ZeroPoint + r.Extinction + r.Aperture + r.Color
	r.Error = EstimateError(m.InstrumentalMag, m.ExposureSec, m.Airmass, m.ApertureDiameter)
	return r
}

// FluxToMagnitude converts a flux using the filter's zero point.
func (c *Calibrator) FluxToMagnitude(flux float64, filter string) float64 {
	return FluxToMagnitude(flux, c.ZeroPoint(filter))
}

// MagnitudeToFlux converts a magnitude using the filter's zero point.
func (c *Calibrator) MagnitudeToFlux(mag float64, filter string) float64 {
	return MagnitudeToFlux(mag, c.ZeroPoint(filter))
}

// SyntheticMagnitude integrates a spectrum through the filter's transmission curve:
// ∫f·T/λ dλ / ∫T/λ dλ by the trapezoid rule, converted with the filter zero point.
// Wavelengths are Ångström and must be ascending. Returns NaN when the
// spectrum is shorter than two samples, the arrays differ in length, or the
// integrated flux is not positive.
func (c *Calibrator) SyntheticMagnitude(wavelengths, flux []float64, filter string) float64 {
	if len(wavelengths) < 2 || len(wavelengths) != len(flux) {
		return math.NaN()
	}
	band := Bandpass(filter)

	var num, den float64
	for i := 0; i < len(wavelengths)-1; i++ {
		l1, l2 := wavelengths[i], wavelengths[i+1]
		if l1 <= 0 || l2 <= 0 {
			return math.NaN()
		}
		t1, t2 := band.Transmission(l1), band.Transmission(l2)
		dl := l2 - l1
		num += 0.5 * dl * (flux[i]*t1/l1 + flux[i+1]*t2/l2)
		den += 0.5 * dl * (t1/l1 + t2/l2)
	}
	if den == 0 {
		return math.NaN()
	}
	return FluxToMagnitude(num/den, c.ZeroPoint(filter))
}

// Band is a Gaussian filter transmission curve. Values are Ångström.
type Band struct {
	Central   float64
	Bandwidth float64 // FWHM
}

var bands = map[string]Band{
	"U": {3600, 600},
	"B": {4400, 1000},
	"V": {5500, 900},
	"R": {6400, 1200},
	"I": {8000, 1500},
	"J": {12500, 2500},
	"H": {16500, 3000},
	"K": {22000, 4000},
}

// Bandpass returns the filter's transmission curve, a V-centred 1000 Å band if unknown.
func Bandpass(filter string) Band {
	if b, ok := bands[strings.ToUpper(filter)]; ok {
		return b
	}
	return Band{Central: 5500, Bandwidth: 1000}
}

// Transmission returns the fractional throughput at wavelength λ.
func (b Band) Transmission(lambda float64) float64 {
	sigma := b.Bandwidth / 2.35
	x := (lambda - b.Central) / sigma
	return math.Exp(-0.5 * x * x)
}
