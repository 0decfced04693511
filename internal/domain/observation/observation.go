// Package observation defines telescope pointings and the detections extracted from them.
package observation

import (
	"fmt"
	"math"
	"time"

	"github.com/kailas-cloud/astrocat/internal/domain"
	"github.com/kailas-cloud/astrocat/internal/domain/celestial"
)

// Status is the processing state of an observation.
type Status string

// Observation states.
const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// IsValid reports whether s is a known state.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Conditions are the environmental conditions of an exposure. Nil means not recorded.
type Conditions struct {
	Airmass       *float64
	SeeingArcsec  *float64
	SkyBrightness *float64 // mag/arcsec²
	MoonPhase     *float64 // illuminated fraction, [0, 1]
	MoonSepDeg    *float64
}

// Field is the geometry of the imaged field.
type Field struct {
	WidthDeg    float64
	HeightDeg   float64
	PixelScale  float64 // arcsec/pixel
	RotationDeg float64
}

// Spec carries the caller-supplied attributes of an observation.
type Spec struct {
	ObservationID string
	Instrument    string
	Telescope     string
	Filter        string
	RA            float64
	Dec           float64
	ObservedAt    time.Time
	ExposureSec   float64
	Conditions    Conditions
	Field         Field
	ImagePath     string
	ProcessingID  string
}

// Observation is a pointing of a telescope at a time.
type Observation struct {
	id        int64
	spec      Spec
	status    Status
	createdAt time.Time
}

// New validates and creates a pending Observation.
func New(s Spec, now time.Time) (Observation, error) {
	if s.ObservationID == "" {
		return Observation{}, domain.NewInvalidArgument("observationId", "is required")
	}
	if err := celestial.ValidateCoordinates(s.RA, s.Dec); err != nil {
		return Observation{}, err
	}
	s.RA = celestial.NormalizeRA(s.RA)
	if s.ObservedAt.IsZero() {
		return Observation{}, domain.NewInvalidArgument("observedAt", "is required")
	}
	if !(s.ExposureSec >= 0) {
		return Observation{}, domain.NewInvalidArgument("exposure", "must be non-negative")
	}
	if a := s.Conditions.Airmass; a != nil && !(*a >= 1) {
		return Observation{}, domain.NewInvalidArgument("airmass", "must be at least 1")
	}
	if p := s.Conditions.MoonPhase; p != nil && !(*p >= 0 && *p <= 1) {
		return Observation{}, domain.NewInvalidArgument("moonPhase", "must be within [0, 1]")
	}
	s.ObservedAt = s.ObservedAt.UTC()
	return Observation{spec: s, status: StatusPending, createdAt: now.UTC()}, nil
}

// Reconstruct hydrates an Observation from storage.
func Reconstruct(id int64, s Spec, status Status, createdAt time.Time) Observation {
	return Observation{id: id, spec: s, status: status, createdAt: createdAt}
}

// ID returns the internal id.
func (o Observation) ID() int64 { return o.id }

// ObservationID returns the external identifier.
func (o Observation) ObservationID() string { return o.spec.ObservationID }

// Spec returns the observation attributes.
func (o Observation) Spec() Spec { return o.spec }

// Status returns the processing state.
func (o Observation) Status() Status { return o.status }

// CreatedAt returns the creation time.
func (o Observation) CreatedAt() time.Time { return o.createdAt }

// Transition moves the observation to next. Completed and failed are terminal.
func (o Observation) Transition(next Status) (Observation, error) {
	if !next.IsValid() {
		return o, domain.NewInvalidArgument("status", fmt.Sprintf("unknown status %q", next))
	}
	if o.status == StatusCompleted || o.status == StatusFailed {
		return o, domain.NewInvalidArgument("status",
			fmt.Sprintf("cannot leave terminal status %s", o.status))
	}
	o.status = next
	return o, nil
}

// Detection flags.
const (
	FlagSaturated = 1 << iota
	FlagBlended
	FlagEdge
	FlagExtractionFailed
)

// DetectionSpec carries the caller-supplied attributes of a detection.
type DetectionSpec struct {
	ObjectID       string
	X, Y           float64 // pixels
	RA, Dec        float64
	Magnitude      *float64
	MagnitudeError *float64
	Flux           *float64
	FluxError      *float64
	FWHMArcsec     *float64
	Ellipticity    *float64
	Flags          int
}

// Detection is one sighting of an object in an observation. It belongs to its observation and
// references exactly one object.
type Detection struct {
	id            int64
	observationID string
	observedAt    time.Time
	filter        string
	spec          DetectionSpec
}

// NewDetection validates a detection belonging to o.
func NewDetection(o Observation, s DetectionSpec) (Detection, error) {
	if s.ObjectID == "" {
		return Detection{}, domain.NewInvalidArgument("objectId", "is required")
	}
	if err := celestial.ValidateCoordinates(s.RA, s.Dec); err != nil {
		return Detection{}, err
	}
	s.RA = celestial.NormalizeRA(s.RA)
	if e := s.FluxError; e != nil && *e < 0 {
		return Detection{}, domain.NewInvalidArgument("fluxError", "must be non-negative")
	}
	if e := s.Ellipticity; e != nil && !(*e >= 0 && *e < 1) {
		return Detection{}, domain.NewInvalidArgument("ellipticity", "must be within [0, 1)")
	}
	return Detection{
		observationID: o.ObservationID(),
		observedAt:    o.spec.ObservedAt,
		filter:        o.spec.Filter,
		spec:          s,
	}, nil
}

// ReconstructDetection hydrates a Detection from storage.
func ReconstructDetection(id int64, observationID string, observedAt time.Time, filter string, s DetectionSpec) Detection {
	return Detection{id: id, observationID: observationID, observedAt: observedAt, filter: filter, spec: s}
}

// ID returns the internal id.
func (d Detection) ID() int64 { return d.id }

// ObservationID returns the owning observation.
func (d Detection) ObservationID() string { return d.observationID }

// ObjectID returns the referenced object.
func (d Detection) ObjectID() string { return d.spec.ObjectID }

// ObservedAt returns the observation time.
func (d Detection) ObservedAt() time.Time { return d.observedAt }

// Filter returns the observation filter.
func (d Detection) Filter() string { return d.filter }

// Spec returns the detection attributes.
func (d Detection) Spec() DetectionSpec { return d.spec }

// SignalToNoise returns flux/fluxError, or NaN when either is missing.
func (d Detection) SignalToNoise() float64 {
	if d.spec.Flux == nil || d.spec.FluxError == nil || *d.spec.FluxError <= 0 {
		return math.NaN()
	}
	return *d.spec.Flux / *d.spec.FluxError
}

// HasValidPhotometry is true for a positive magnitude with an error in (0, 1).
func (d Detection) HasValidPhotometry() bool {
	m, e := d.spec.Magnitude, d.spec.MagnitudeError
	return m != nil && e != nil && *m > 0 && *e > 0 && *e < 1
}

// IsSaturated reports the saturation flag.
func (d Detection) IsSaturated() bool { return d.spec.Flags&FlagSaturated != 0 }

// FormattedMagnitude renders "m ± σ", "m", or "N/A".
func (d Detection) FormattedMagnitude() string {
	switch {
	case d.spec.Magnitude != nil && d.spec.MagnitudeError != nil:
		return fmt.Sprintf("%.3f ± %.3f", *d.spec.Magnitude, *d.spec.MagnitudeError)
	case d.spec.Magnitude != nil:
		return fmt.Sprintf("%.3f", *d.spec.Magnitude)
	default:
		return "N/A"
	}
}
