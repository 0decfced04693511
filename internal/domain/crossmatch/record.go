package crossmatch

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/kailas-cloud/astrocat/internal/domain"
)

// DefaultMethod labels matches produced by the probabilistic matcher.
const DefaultMethod = "probabilistic-positional"

// External is what the foreign catalog reports for the matched source.
type External struct {
	RA             float64
	Dec            float64
	Magnitude      *float64
	MagnitudeBand  string
	PMRA           *float64
	PMDec          *float64
	Parallax       *float64
	RadialVelocity *float64
}

// Record is a persisted association between a catalog object and an external catalog entry.
// (objectID, catalogName, externalID) is unique.
type Record struct {
	id           int64
	objectID     string
	catalogName  string
	externalID   string
	separation   float64
	confidence   float64
	significance float64
	external     External
	method       string
	version      string
	createdAt    time.Time
	verified     bool
	notes        string
}

// NewRecord builds a record from a matcher result.
func NewRecord(objectID string, m Match, version string, now time.Time) (Record, error) {
	if objectID == "" {
		return Record{}, domain.NewInvalidArgument("objectId", "is required")
	}
	if m.Candidate.Catalog == "" || m.Candidate.ID == "" {
		return Record{}, domain.NewInvalidArgument("candidate", "catalog and external id are required")
	}
	if math.IsNaN(m.Separation) || m.Separation < 0 {
		return Record{}, domain.NewInvalidArgument("separation", "must be a non-negative number")
	}
	if m.Probability < 0 || m.Probability > 1 {
		return Record{}, domain.NewInvalidArgument("probability", "must be within [0, 1]")
	}
	ext := External{RA: m.Candidate.RA, Dec: m.Candidate.Dec}
	if !math.IsNaN(m.Candidate.Magnitude) {
		mag := m.Candidate.Magnitude
		ext.Magnitude = &mag
	}
	return Record{
		objectID:     objectID,
		catalogName:  m.Candidate.Catalog,
		externalID:   m.Candidate.ID,
		separation:   m.Separation,
		confidence:   m.Probability,
		significance: m.Significance,
		external:     ext,
		method:       DefaultMethod,
		version:      version,
		createdAt:    now.UTC(),
	}, nil
}

// ReconstructRecord hydrates a record from storage without validation.
func ReconstructRecord(
	id int64, objectID, catalogName, externalID string,
	separation, confidence, significance float64,
	external External, method, version string,
	createdAt time.Time, verified bool, notes string,
) Record {
	return Record{
		id: id, objectID: objectID, catalogName: catalogName, externalID: externalID,
		separation: separation, confidence: confidence, significance: significance,
		external: external, method: method, version: version,
		createdAt: createdAt, verified: verified, notes: notes,
	}
}

// ID returns the storage identifier (0 before persistence).
func (r Record) ID() int64 { return r.id }

// ObjectID returns the local object identifier.
func (r Record) ObjectID() string { return r.objectID }

// CatalogName returns the external catalog name.
func (r Record) CatalogName() string { return r.catalogName }

// ExternalID returns the identifier in the external catalog.
func (r Record) ExternalID() string { return r.externalID }

// Separation returns the angular separation in arcsec.
func (r Record) Separation() float64 { return r.separation }

// Confidence returns the match probability.
func (r Record) Confidence() float64 { return r.confidence }

// Significance returns the separation in units of σ.
func (r Record) Significance() float64 { return r.significance }

// External returns the external catalog's measurements.
func (r Record) External() External { return r.external }

// Method returns the matching method label.
func (r Record) Method() string { return r.method }

// Version returns the matcher version.
func (r Record) Version() string { return r.version }

// CreatedAt returns the creation time.
func (r Record) CreatedAt() time.Time { return r.createdAt }

// Verified reports manual verification.
func (r Record) Verified() bool { return r.verified }

// Notes returns free-form notes.
func (r Record) Notes() string { return r.notes }

// Priority returns the catalog priority of the external source.
func (r Record) Priority() Priority { return PriorityFor(r.catalogName) }

// IsHighConfidence is true for confidence > 0.8 and separation < 1″.
func (r Record) IsHighConfidence() bool {
	return r.confidence > 0.8 && r.separation < 1.0
}

// FormattedSeparation renders the separation in arcsec below 1′ and in arcmin above.
func (r Record) FormattedSeparation() string {
	switch {
	case r.separation < 1:
		return fmt.Sprintf("%.2f\"", r.separation)
	case r.separation < 60:
		return fmt.Sprintf("%.1f\"", r.separation)
	default:
		return fmt.Sprintf("%.1f'", r.separation/60)
	}
}

var displayNames = map[string]string{
	"GAIA_DR3":  "Gaia DR3",
	"2MASS":     "2MASS",
	"WISE":      "WISE",
	"SDSS":      "SDSS",
	"PANSTARRS": "Pan-STARRS",
	"HSC":       "HSC",
	"SIMBAD":    "SIMBAD",
}

// CatalogDisplayName returns a human-readable catalog name.
func (r Record) CatalogDisplayName() string {
	if n, ok := displayNames[strings.ToUpper(r.catalogName)]; ok {
		return n
	}
	return r.catalogName
}
