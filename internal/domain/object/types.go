// Package object defines the astronomical object aggregate and its classification vocabulary.
package object

// Type is the object classification.
type Type string

// Object classes.
const (
	Star      Type = "STAR"
	Galaxy    Type = "GALAXY"
	Nebula    Type = "NEBULA"
	Quasar    Type = "QUASAR"
	Asteroid  Type = "ASTEROID"
	Comet     Type = "COMET"
	Planet    Type = "PLANET"
	Satellite Type = "SATELLITE"
	CosmicRay Type = "COSMIC_RAY"
	Artifact  Type = "ARTIFACT"
	Unknown   Type = "UNKNOWN"
)

// Types lists every class in declaration order.
var Types = []Type{Star, Galaxy, Nebula, Quasar, Asteroid, Comet, Planet, Satellite, CosmicRay, Artifact, Unknown}

// TransientTypes are purged by transient cleanup.
var TransientTypes = []Type{CosmicRay, Artifact}

// IsValid reports whether t is a known class.
func (t Type) IsValid() bool {
	for _, k := range Types {
		if t == k {
			return true
		}
	}
	return false
}

// PhotometricSystem tags the magnitude system of the primary magnitude.
type PhotometricSystem string

// Photometric systems.
const (
	JohnsonUBV    PhotometricSystem = "JOHNSON_UBV"
	SDSSugriz     PhotometricSystem = "SDSS_ugriz"
	HSTWFC3       PhotometricSystem = "HST_WFC3"
	JWSTNIRCam    PhotometricSystem = "JWST_NIRCam"
	GaiaBPGRP     PhotometricSystem = "GAIA_GBP_G_GRP"
	ABMagnitude   PhotometricSystem = "AB_MAGNITUDE"
	VegaMagnitude PhotometricSystem = "VEGA_MAGNITUDE"
)

// IsValid reports whether s is a known system.
func (s PhotometricSystem) IsValid() bool {
	switch s {
	case JohnsonUBV, SDSSugriz, HSTWFC3, JWSTNIRCam, GaiaBPGRP, ABMagnitude, VegaMagnitude:
		return true
	}
	return false
}

// Hit is an object found by a positional query with its separation from the query centre.
type Hit struct {
	Object     Object
	Separation float64 // arcsec
}
