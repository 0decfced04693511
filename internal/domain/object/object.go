package object

import (
	"fmt"
	"maps"
	"math"
	"regexp"
	"time"

	"github.com/kailas-cloud/astrocat/internal/domain"
	"github.com/kailas-cloud/astrocat/internal/domain/celestial"
	"github.com/kailas-cloud/astrocat/internal/domain/variability"
)

var idRegex = regexp.MustCompile(`^[A-Za-z0-9_.:+\-]+$`)

// Magnitude bounds accepted for a stored object.
const (
	MinMagnitude = -30.0
	MaxMagnitude = 50.0
	// DefaultClassificationConfidence is assumed when a draft leaves it unset.
	DefaultClassificationConfidence = 0.5
)

// Variability holds the outcome of the last light-curve analysis.
type Variability struct {
	IsVariable bool
	PeriodDays *float64
	Amplitude  *float64
	Type       variability.Type
}

// ExternalIDs are identifiers of the same source in well-known catalogs.
type ExternalIDs struct {
	GaiaSourceID *int64
	SimbadName   string
	NEDName      string
	USNOID       string
	TychoID      string
}

// Draft carries the caller-supplied attributes of an object. Nil pointers are unknown values.
type Draft struct {
	ObjectID                 string
	Name                     string
	Type                     Type
	ClassificationConfidence *float64
	CatalogName              string

	RA          float64
	Dec         float64
	RAErrorMas  *float64
	DecErrorMas *float64

	PMRA       float64
	PMDec      float64
	PMRAError  *float64
	PMDecError *float64

	ParallaxMas      *float64
	ParallaxErrorMas *float64

	Magnitude         *float64
	MagnitudeError    *float64
	PhotometricSystem PhotometricSystem
	Photometry        map[string]float64

	EffectiveTemperature *float64
	SurfaceGravity       *float64
	Metallicity          *float64

	Variability Variability
	ExternalIDs ExternalIDs

	DetectionSignificance *float64
	QualityFlags          int

	ProcessingID    string
	WorkflowVersion string

	FirstObserved    time.Time
	LastObserved     time.Time
	ObservationCount int
}

// Object is the astronomical object aggregate. Position and photometry are fixed after
// creation; only observation bookkeeping and derived variability change.
type Object struct {
	id         int64
	attrs      Draft
	distancePc *float64
	createdAt  time.Time
	updatedAt  time.Time
}

// New validates a draft and creates an Object. RA is normalised into [0, 360).
func New(d Draft, now time.Time) (Object, error) {
	if d.ObjectID == "" {
		return Object{}, domain.NewInvalidArgument("objectId", "is required")
	}
	if len(d.ObjectID) > 100 || !idRegex.MatchString(d.ObjectID) {
		return Object{}, domain.NewInvalidArgument("objectId", "must be 1-100 chars of [A-Za-z0-9_.:+-]")
	}
	if err := celestial.ValidateCoordinates(d.RA, d.Dec); err != nil {
		return Object{}, err
	}
	d.RA = celestial.NormalizeRA(d.RA)

	if d.Type == "" {
		d.Type = Unknown
	}
	if !d.Type.IsValid() {
		return Object{}, domain.NewInvalidArgument("objectType", fmt.Sprintf("unknown type %q", d.Type))
	}
	if d.PhotometricSystem != "" && !d.PhotometricSystem.IsValid() {
		return Object{}, domain.NewInvalidArgument("photometricSystem",
			fmt.Sprintf("unknown system %q", d.PhotometricSystem))
	}
	if d.ClassificationConfidence == nil {
		c := DefaultClassificationConfidence
		d.ClassificationConfidence = &c
	}
	if c := *d.ClassificationConfidence; !(c >= 0 && c <= 1) {
		return Object{}, domain.NewInvalidArgument("classificationConfidence", "must be within [0, 1]")
	}
	if m := d.Magnitude; m != nil && !(*m >= MinMagnitude && *m <= MaxMagnitude) {
		return Object{}, domain.NewInvalidArgument("magnitude", "must be within [-30, 50]")
	}
	if e := d.MagnitudeError; e != nil && !(*e >= 0 && !math.IsInf(*e, 1)) {
		return Object{}, domain.NewInvalidArgument("magnitudeError", "must be finite and non-negative")
	}
	if t := d.EffectiveTemperature; t != nil && !(*t > 0) {
		return Object{}, domain.NewInvalidArgument("effectiveTemperature", "must be positive")
	}
	if math.IsNaN(d.PMRA) || math.IsNaN(d.PMDec) {
		return Object{}, domain.NewInvalidArgument("properMotion", "must be a number")
	}
	if p := d.ParallaxMas; p != nil && math.IsNaN(*p) {
		return Object{}, domain.NewInvalidArgument("parallax", "must be a number")
	}
	if d.Variability.Type != "" && !d.Variability.Type.IsValid() {
		return Object{}, domain.NewInvalidArgument("variabilityType",
			fmt.Sprintf("unknown type %q", d.Variability.Type))
	}
	if d.ObservationCount < 0 {
		return Object{}, domain.NewInvalidArgument("observationCount", "must be non-negative")
	}
	if d.ObservationCount == 0 {
		d.ObservationCount = 1
	}

	now = now.UTC()
	if d.FirstObserved.IsZero() {
		d.FirstObserved = now
	}
	if d.LastObserved.IsZero() {
		d.LastObserved = d.FirstObserved
	}
	d.Photometry = maps.Clone(d.Photometry)

	return Object{
		attrs:      d,
		distancePc: DistanceFromParallax(d.ParallaxMas),
		createdAt:  now,
		updatedAt:  now,
	}, nil
}

// Reconstruct hydrates an Object from storage without validation.
func Reconstruct(id int64, d Draft, createdAt, updatedAt time.Time) Object {
	return Object{
		id:         id,
		attrs:      d,
		distancePc: DistanceFromParallax(d.ParallaxMas),
		createdAt:  createdAt,
		updatedAt:  updatedAt,
	}
}

// DistanceFromParallax returns 1000/plx parsecs for a positive parallax, nil otherwise.
func DistanceFromParallax(plxMas *float64) *float64 {
	if plxMas == nil || !(*plxMas > 0) {
		return nil
	}
	d := 1000 / *plxMas
	return &d
}

// ID returns the internal numeric id.
func (o Object) ID() int64 { return o.id }

// ObjectID returns the stable global identifier.
func (o Object) ObjectID() string { return o.attrs.ObjectID }

// Name returns the display name.
func (o Object) Name() string { return o.attrs.Name }

// Type returns the classification.
func (o Object) Type() Type { return o.attrs.Type }

// ClassificationConfidence returns the classification confidence in [0, 1].
func (o Object) ClassificationConfidence() float64 {
	if o.attrs.ClassificationConfidence == nil {
		return DefaultClassificationConfidence
	}
	return *o.attrs.ClassificationConfidence
}

// CatalogName returns the source catalog.
func (o Object) CatalogName() string { return o.attrs.CatalogName }

// RA returns right ascension in degrees, [0, 360).
func (o Object) RA() float64 { return o.attrs.RA }

// Dec returns declination in degrees.
func (o Object) Dec() float64 { return o.attrs.Dec }

// PMRA returns proper motion in RA (mas/yr, includes cos δ).
func (o Object) PMRA() float64 { return o.attrs.PMRA }

// PMDec returns proper motion in Dec (mas/yr).
func (o Object) PMDec() float64 { return o.attrs.PMDec }

// TotalProperMotion returns √(pmRA² + pmDec²) in mas/yr.
func (o Object) TotalProperMotion() float64 { return math.Hypot(o.attrs.PMRA, o.attrs.PMDec) }

// Parallax returns the parallax in mas, or nil.
func (o Object) Parallax() *float64 { return o.attrs.ParallaxMas }

// DistancePc returns the parallax distance in parsecs, or nil.
func (o Object) DistancePc() *float64 { return o.distancePc }

// Magnitude returns the primary magnitude, or nil.
func (o Object) Magnitude() *float64 { return o.attrs.Magnitude }

// MagnitudeError returns the primary magnitude error, or nil.
func (o Object) MagnitudeError() *float64 { return o.attrs.MagnitudeError }

// Photometry returns per-filter magnitudes.
func (o Object) Photometry() map[string]float64 { return maps.Clone(o.attrs.Photometry) }

// Variability returns the last variability analysis.
func (o Object) Variability() Variability { return o.attrs.Variability }

// DetectionSignificance returns the detection significance (σ), or nil.
func (o Object) DetectionSignificance() *float64 { return o.attrs.DetectionSignificance }

// ProcessingID returns the lineage processing id.
func (o Object) ProcessingID() string { return o.attrs.ProcessingID }

// WorkflowVersion returns the workflow version that produced the object.
func (o Object) WorkflowVersion() string { return o.attrs.WorkflowVersion }

// FirstObserved returns the earliest observation time.
func (o Object) FirstObserved() time.Time { return o.attrs.FirstObserved }

// LastObserved returns the latest observation time.
func (o Object) LastObserved() time.Time { return o.attrs.LastObserved }

// ObservationCount returns the number of recorded observations.
func (o Object) ObservationCount() int { return o.attrs.ObservationCount }

// CreatedAt returns the creation time.
func (o Object) CreatedAt() time.Time { return o.createdAt }

// UpdatedAt returns the last modification time.
func (o Object) UpdatedAt() time.Time { return o.updatedAt }

// Attributes returns a copy of all attributes.
func (o Object) Attributes() Draft {
	d := o.attrs
	d.Photometry = maps.Clone(d.Photometry)
	return d
}

// IsPointSource is true for stars and quasars.
func (o Object) IsPointSource() bool { return o.attrs.Type == Star || o.attrs.Type == Quasar }

// IsExtendedSource is true for galaxies and nebulae.
func (o Object) IsExtendedSource() bool { return o.attrs.Type == Galaxy || o.attrs.Type == Nebula }

// HasParallax reports a positive parallax.
func (o Object) HasParallax() bool { return o.distancePc != nil }

// HasProperMotion reports a non-zero proper motion.
func (o Object) HasProperMotion() bool { return o.attrs.PMRA != 0 || o.attrs.PMDec != 0 }

// AbsoluteMagnitude returns m − 5·log10(d/10), or nil without magnitude and distance.
func (o Object) AbsoluteMagnitude() *float64 {
	if o.attrs.Magnitude == nil || o.distancePc == nil {
		return nil
	}
	m := *o.attrs.Magnitude - 5*math.Log10(*o.distancePc/10)
	return &m
}

// FormattedCoordinates renders the position in sexagesimal notation.
func (o Object) FormattedCoordinates() string {
	return celestial.FormatRA(o.attrs.RA) + " " + celestial.FormatDec(o.attrs.Dec)
}

// RecordObservation widens the observed interval to include at and increments the count.
func (o Object) RecordObservation(at, now time.Time) Object {
	at = at.UTC()
	if o.attrs.FirstObserved.IsZero() || at.Before(o.attrs.FirstObserved) {
		o.attrs.FirstObserved = at
	}
	if o.attrs.LastObserved.IsZero() || at.After(o.attrs.LastObserved) {
		o.attrs.LastObserved = at
	}
	o.attrs.ObservationCount++
	o.updatedAt = now.UTC()
	return o
}

// WithVariability stores the outcome of a light-curve analysis.
func (o Object) WithVariability(r variability.Result, now time.Time) Object {
	v := Variability{IsVariable: r.IsVariable, Type: r.Type}
	if r.Period > 0 {
		p := r.Period
		v.PeriodDays = &p
	}
	if !r.InsufficientPoints {
		a := r.Statistics.Amplitude
		v.Amplitude = &a
	}
	o.attrs.Variability = v
	o.updatedAt = now.UTC()
	return o
}

// WithLineage stamps the processing id and workflow version that produced the object.
func (o Object) WithLineage(processingID, workflowVersion string) Object {
	o.attrs.ProcessingID = processingID
	o.attrs.WorkflowVersion = workflowVersion
	return o
}
