package catalog

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/kailas-cloud/astrocat/internal/domain/celestial"
	"github.com/kailas-cloud/astrocat/internal/domain/object"
	"github.com/kailas-cloud/astrocat/internal/domain/variability"
)

// payload is the JSON document stored alongside the indexed hash fields.
// Observation bookkeeping lives in dedicated hash fields so it can change atomically.
type payload struct {
	ObjectID                 string             `json:"objectId"`
	Name                     string             `json:"name,omitempty"`
	Type                     object.Type        `json:"objectType"`
	ClassificationConfidence *float64           `json:"classificationConfidence,omitempty"`
	CatalogName              string             `json:"catalogName,omitempty"`
	RA                       float64            `json:"ra"`
	Dec                      float64            `json:"dec"`
	RAErrorMas               *float64           `json:"raErrorMas,omitempty"`
	DecErrorMas              *float64           `json:"decErrorMas,omitempty"`
	PMRA                     float64            `json:"pmRa"`
	PMDec                    float64            `json:"pmDec"`
	PMRAError                *float64           `json:"pmRaError,omitempty"`
	PMDecError               *float64           `json:"pmDecError,omitempty"`
	ParallaxMas              *float64           `json:"parallaxMas,omitempty"`
	ParallaxErrorMas         *float64           `json:"parallaxErrorMas,omitempty"`
	Magnitude                *float64           `json:"magnitude,omitempty"`
	MagnitudeError           *float64           `json:"magnitudeError,omitempty"`
	PhotometricSystem        string             `json:"photometricSystem,omitempty"`
	Photometry               map[string]float64 `json:"photometry,omitempty"`
	EffectiveTemperature     *float64           `json:"effectiveTemperature,omitempty"`
	SurfaceGravity           *float64           `json:"surfaceGravity,omitempty"`
	Metallicity              *float64           `json:"metallicity,omitempty"`
	IsVariable               bool               `json:"isVariable"`
	VariabilityPeriod        *float64           `json:"variabilityPeriod,omitempty"`
	VariabilityAmplitude     *float64           `json:"variabilityAmplitude,omitempty"`
	VariabilityType          string             `json:"variabilityType,omitempty"`
	GaiaSourceID             *int64             `json:"gaiaSourceId,omitempty"`
	SimbadName               string             `json:"simbadName,omitempty"`
	NEDName                  string             `json:"nedName,omitempty"`
	USNOID                   string             `json:"usnoId,omitempty"`
	TychoID                  string             `json:"tychoId,omitempty"`
	DetectionSignificance    *float64           `json:"detectionSignificance,omitempty"`
	QualityFlags             int                `json:"qualityFlags,omitempty"`
	ProcessingID             string             `json:"processingId,omitempty"`
	WorkflowVersion          string             `json:"workflowVersion,omitempty"`
}

func payloadFrom(d object.Draft) payload {
	return payload{
		ObjectID:                 d.ObjectID,
		Name:                     d.Name,
		Type:                     d.Type,
		ClassificationConfidence: d.ClassificationConfidence,
		CatalogName:              d.CatalogName,
		RA:                       d.RA,
		Dec:                      d.Dec,
		RAErrorMas:               d.RAErrorMas,
		DecErrorMas:              d.DecErrorMas,
		PMRA:                     d.PMRA,
		PMDec:                    d.PMDec,
		PMRAError:                d.PMRAError,
		PMDecError:               d.PMDecError,
		ParallaxMas:              d.ParallaxMas,
		ParallaxErrorMas:         d.ParallaxErrorMas,
		Magnitude:                d.Magnitude,
		MagnitudeError:           d.MagnitudeError,
		PhotometricSystem:        string(d.PhotometricSystem),
		Photometry:               d.Photometry,
		EffectiveTemperature:     d.EffectiveTemperature,
		SurfaceGravity:           d.SurfaceGravity,
		Metallicity:              d.Metallicity,
		IsVariable:               d.Variability.IsVariable,
		VariabilityPeriod:        d.Variability.PeriodDays,
		VariabilityAmplitude:     d.Variability.Amplitude,
		VariabilityType:          string(d.Variability.Type),
		GaiaSourceID:             d.ExternalIDs.GaiaSourceID,
		SimbadName:               d.ExternalIDs.SimbadName,
		NEDName:                  d.ExternalIDs.NEDName,
		USNOID:                   d.ExternalIDs.USNOID,
		TychoID:                  d.ExternalIDs.TychoID,
		DetectionSignificance:    d.DetectionSignificance,
		QualityFlags:             d.QualityFlags,
		ProcessingID:             d.ProcessingID,
		WorkflowVersion:          d.WorkflowVersion,
	}
}

func (p payload) draft() object.Draft {
	return object.Draft{
		ObjectID:                 p.ObjectID,
		Name:                     p.Name,
		Type:                     p.Type,
		ClassificationConfidence: p.ClassificationConfidence,
		CatalogName:              p.CatalogName,
		RA:                       p.RA,
		Dec:                      p.Dec,
		RAErrorMas:               p.RAErrorMas,
		DecErrorMas:              p.DecErrorMas,
		PMRA:                     p.PMRA,
		PMDec:                    p.PMDec,
		PMRAError:                p.PMRAError,
		PMDecError:               p.PMDecError,
		ParallaxMas:              p.ParallaxMas,
		ParallaxErrorMas:         p.ParallaxErrorMas,
		Magnitude:                p.Magnitude,
		MagnitudeError:           p.MagnitudeError,
		PhotometricSystem:        object.PhotometricSystem(p.PhotometricSystem),
		Photometry:               p.Photometry,
		EffectiveTemperature:     p.EffectiveTemperature,
		SurfaceGravity:           p.SurfaceGravity,
		Metallicity:              p.Metallicity,
		Variability: object.Variability{
			IsVariable: p.IsVariable,
			PeriodDays: p.VariabilityPeriod,
			Amplitude:  p.VariabilityAmplitude,
			Type:       variability.Type(p.VariabilityType),
		},
		ExternalIDs: object.ExternalIDs{
			GaiaSourceID: p.GaiaSourceID,
			SimbadName:   p.SimbadName,
			NEDName:      p.NEDName,
			USNOID:       p.USNOID,
			TychoID:      p.TychoID,
		},
		DetectionSignificance: p.DetectionSignificance,
		QualityFlags:          p.QualityFlags,
		ProcessingID:          p.ProcessingID,
		WorkflowVersion:       p.WorkflowVersion,
	}
}

// objectToHash flattens an object into indexed hash fields plus the JSON payload.
// Absent optional numerics are omitted so range filters never match them.
func objectToHash(o object.Object) (map[string]string, error) {
	data, err := json.Marshal(payloadFrom(o.Attributes()))
	if err != nil {
		return nil, fmt.Errorf("marshal object %s: %w", o.ObjectID(), err)
	}

	m := map[string]string{
		fieldID:               strconv.FormatInt(o.ID(), 10),
		fieldObjectID:         o.ObjectID(),
		fieldType:             string(o.Type()),
		fieldRA:               formatFloat(o.RA()),
		fieldDec:              formatFloat(o.Dec()),
		fieldPMTotal:          formatFloat(o.TotalProperMotion()),
		fieldFirstObserved:    formatTime(o.FirstObserved()),
		fieldLastObserved:     formatTime(o.LastObserved()),
		fieldObservationCount: strconv.Itoa(o.ObservationCount()),
		fieldCreatedAt:        formatTime(o.CreatedAt()),
		fieldUpdatedAt:        formatTime(o.UpdatedAt()),
		fieldDirection:        vectorToBytes(celestial.ToVector(o.RA(), o.Dec())),
		fieldPayload:          string(data),
	}
	if c := o.CatalogName(); c != "" {
		m[fieldCatalog] = c
	}
	if v := o.Magnitude(); v != nil {
		m[fieldMagnitude] = formatFloat(*v)
	}
	if v := o.DetectionSignificance(); v != nil {
		m[fieldSignificance] = formatFloat(*v)
	}
	if v := o.Parallax(); v != nil {
		m[fieldParallax] = formatFloat(*v)
	}
	return m, nil
}

// objectFromHash rebuilds an object from a full hash or a search entry's returned fields.
func objectFromHash(m map[string]string) (object.Object, error) {
	raw, ok := m[fieldPayload]
	if !ok {
		return object.Object{}, fmt.Errorf("hash has no %s field", fieldPayload)
	}
	var p payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return object.Object{}, fmt.Errorf("unmarshal payload: %w", err)
	}

	id, err := strconv.ParseInt(m[fieldID], 10, 64)
	if err != nil {
		return object.Object{}, fmt.Errorf("parse %s of %s: %w", fieldID, p.ObjectID, err)
	}

	d := p.draft()
	d.FirstObserved = parseTime(m[fieldFirstObserved])
	d.LastObserved = parseTime(m[fieldLastObserved])
	if n, err := strconv.Atoi(m[fieldObservationCount]); err == nil {
		d.ObservationCount = n
	}

	return object.Reconstruct(id, d, parseTime(m[fieldCreatedAt]), parseTime(m[fieldUpdatedAt])), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Timestamps are stored as unix milliseconds so they can be range-filtered.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "0"
	}
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func timeScore(t time.Time) float64 {
	return float64(t.UnixMilli())
}

func parseTime(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
