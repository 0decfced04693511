package celestial

import "math"

// windowMargin widens prefilter windows so float rounding in the store never drops an exact match.
const windowMargin = 1e-7

// RARange is a closed interval of right ascension in degrees with Min <= Max.
type RARange struct {
	Min float64
	Max float64
}

// Window is a declination band plus one or two RA intervals covering a region of the sphere.
// It is a superset of the region; exact membership is decided by the separation test.
type Window struct {
	DecMin   float64
	DecMax   float64
	RARanges []RARange
}

// FullRA reports whether the window spans every right ascension.
func (w Window) FullRA() bool {
	return len(w.RARanges) == 1 && w.RARanges[0].Min <= 0 && w.RARanges[0].Max >= 360
}

// ConeWindow returns the bounding window of a cone centred at (ra, dec) with the given radius.
// Cones touching a pole cover all RA; cones crossing RA=0 split into two intervals.
func ConeWindow(raDeg, decDeg, radiusArcsec float64) Window {
	r := radiusArcsec/ArcsecPerDegree + windowMargin
	w := Window{
		DecMin: math.Max(-90, decDeg-r),
		DecMax: math.Min(90, decDeg+r),
	}
	if decDeg+r >= 90 || decDeg-r <= -90 {
		w.RARanges = []RARange{{Min: 0, Max: 360}}
		return w
	}

	// Half-width of the RA span of a small circle: sin(Δα) = sin(r)/cos(δ).
	s := math.Sin(r*DegToRad) / math.Cos(decDeg*DegToRad)
	if s >= 1 {
		w.RARanges = []RARange{{Min: 0, Max: 360}}
		return w
	}
	half := math.Asin(s)*RadToDeg + windowMargin
	w.RARanges = splitRA(raDeg-half, raDeg+half)
	return w
}

// BoxWindow returns the window of an RA/Dec box. maxRa < minRa means the box spans RA=0.
func BoxWindow(minRa, maxRa, minDec, maxDec float64) Window {
	w := Window{DecMin: math.Max(-90, minDec), DecMax: math.Min(90, maxDec)}
	switch {
	case maxRa < minRa:
		w.RARanges = []RARange{{Min: minRa, Max: 360}, {Min: 0, Max: maxRa}}
	default:
		w.RARanges = []RARange{{Min: minRa, Max: maxRa}}
	}
	return w
}

// Contains reports whether (ra, dec) lies inside the window.
func (w Window) Contains(raDeg, decDeg float64) bool {
	if decDeg < w.DecMin || decDeg > w.DecMax {
		return false
	}
	for _, r := range w.RARanges {
		if raDeg >= r.Min && raDeg <= r.Max {
			return true
		}
	}
	return false
}

func splitRA(lo, hi float64) []RARange {
	if hi-lo >= 360 {
		return []RARange{{Min: 0, Max: 360}}
	}
	switch {
	case lo < 0:
		return []RARange{{Min: lo + 360, Max: 360}, {Min: 0, Max: hi}}
	case hi >= 360:
		return []RARange{{Min: lo, Max: 360}, {Min: 0, Max: hi - 360}}
	default:
		return []RARange{{Min: lo, Max: hi}}
	}
}
