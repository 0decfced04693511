package chi

import (
	"math"
	"time"

	"github.com/kailas-cloud/astrocat/internal/domain/celestial"
	"github.com/kailas-cloud/astrocat/internal/domain/crossmatch"
	"github.com/kailas-cloud/astrocat/internal/domain/object"
	"github.com/kailas-cloud/astrocat/internal/domain/observation"
	domquality "github.com/kailas-cloud/astrocat/internal/domain/quality"
	"github.com/kailas-cloud/astrocat/internal/domain/variability"
	wf "github.com/kailas-cloud/astrocat/internal/domain/workflow"
	cataloguc "github.com/kailas-cloud/astrocat/internal/usecase/catalog"
)

type healthResponse struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks"`
	Version string            `json:"version"`
}

// finite drops NaN and infinities, which JSON cannot carry.
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	t = t.UTC()
	return &t
}

// --- Objects ---

type variabilityDTO struct {
	IsVariable bool     `json:"isVariable"`
	PeriodDays *float64 `json:"periodDays,omitempty"`
	Amplitude  *float64 `json:"amplitude,omitempty"`
	Type       string   `json:"type,omitempty"`
}

type objectDraft struct {
	ObjectID                 string             `json:"objectId"`
	Name                     string             `json:"name,omitempty"`
	Type                     string             `json:"objectType,omitempty"`
	ClassificationConfidence *float64           `json:"classificationConfidence,omitempty"`
	CatalogName              string             `json:"catalogName,omitempty"`
	RA                       float64            `json:"ra"`
	Dec                      float64            `json:"dec"`
	RAErrorMas               *float64           `json:"raErrorMas,omitempty"`
	DecErrorMas              *float64           `json:"decErrorMas,omitempty"`
	PMRA                     float64            `json:"pmRa,omitempty"`
	PMDec                    float64            `json:"pmDec,omitempty"`
	PMRAError                *float64           `json:"pmRaError,omitempty"`
	PMDecError               *float64           `json:"pmDecError,omitempty"`
	ParallaxMas              *float64           `json:"parallax,omitempty"`
	ParallaxErrorMas         *float64           `json:"parallaxError,omitempty"`
	Magnitude                *float64           `json:"magnitude,omitempty"`
	MagnitudeError           *float64           `json:"magnitudeError,omitempty"`
	PhotometricSystem        string             `json:"photometricSystem,omitempty"`
	Photometry               map[string]float64 `json:"photometry,omitempty"`
	EffectiveTemperature     *float64           `json:"effectiveTemperature,omitempty"`
	SurfaceGravity           *float64           `json:"surfaceGravity,omitempty"`
	Metallicity              *float64           `json:"metallicity,omitempty"`
	DetectionSignificance    *float64           `json:"detectionSignificance,omitempty"`
	QualityFlags             int                `json:"qualityFlags,omitempty"`
	GaiaSourceID             *int64             `json:"gaiaSourceId,omitempty"`
	SimbadName               string             `json:"simbadName,omitempty"`
	NEDName                  string             `json:"nedName,omitempty"`
	FirstObserved            *time.Time         `json:"firstObserved,omitempty"`
	LastObserved             *time.Time         `json:"lastObserved,omitempty"`
	ObservationCount         int                `json:"observationCount,omitempty"`
}

func (d objectDraft) toDomain() object.Draft {
	out := object.Draft{
		ObjectID:                 d.ObjectID,
		Name:                     d.Name,
		Type:                     object.Type(d.Type),
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
		PhotometricSystem:        object.PhotometricSystem(d.PhotometricSystem),
		Photometry:               d.Photometry,
		EffectiveTemperature:     d.EffectiveTemperature,
		SurfaceGravity:           d.SurfaceGravity,
		Metallicity:              d.Metallicity,
		DetectionSignificance:    d.DetectionSignificance,
		QualityFlags:             d.QualityFlags,
		ExternalIDs: object.ExternalIDs{
			GaiaSourceID: d.GaiaSourceID,
			SimbadName:   d.SimbadName,
			NEDName:      d.NEDName,
		},
		ObservationCount: d.ObservationCount,
	}
	if d.FirstObserved != nil {
		out.FirstObserved = *d.FirstObserved
	}
	if d.LastObserved != nil {
		out.LastObserved = *d.LastObserved
	}
	return out
}

type objectResponse struct {
	ObjectID                 string             `json:"objectId"`
	Name                     string             `json:"name,omitempty"`
	Type                     string             `json:"objectType"`
	ClassificationConfidence float64            `json:"classificationConfidence"`
	CatalogName              string             `json:"catalogName,omitempty"`
	RA                       float64            `json:"ra"`
	Dec                      float64            `json:"dec"`
	RAHms                    string             `json:"raHms"`
	DecDms                   string             `json:"decDms"`
	RAErrorMas               *float64           `json:"raErrorMas,omitempty"`
	DecErrorMas              *float64           `json:"decErrorMas,omitempty"`
	PMRA                     float64            `json:"pmRa"`
	PMDec                    float64            `json:"pmDec"`
	TotalProperMotion        float64            `json:"totalProperMotion"`
	Parallax                 *float64           `json:"parallax,omitempty"`
	DistancePc               *float64           `json:"distancePc,omitempty"`
	Magnitude                *float64           `json:"magnitude,omitempty"`
	MagnitudeError           *float64           `json:"magnitudeError,omitempty"`
	AbsoluteMagnitude        *float64           `json:"absoluteMagnitude,omitempty"`
	PhotometricSystem        string             `json:"photometricSystem,omitempty"`
	Photometry               map[string]float64 `json:"photometry,omitempty"`
	Variability              variabilityDTO     `json:"variability"`
	ProcessingID             string             `json:"processingId,omitempty"`
	WorkflowVersion          string             `json:"workflowVersion,omitempty"`
	FirstObserved            *time.Time         `json:"firstObserved,omitempty"`
	LastObserved             *time.Time         `json:"lastObserved,omitempty"`
	ObservationCount         int                `json:"observationCount"`
	CreatedAt                *time.Time         `json:"createdAt,omitempty"`
	UpdatedAt                *time.Time         `json:"updatedAt,omitempty"`
	SeparationArcsec         *float64           `json:"separationArcsec,omitempty"`
}

func objectToResponse(o object.Object) objectResponse {
	a := o.Attributes()
	v := o.Variability()
	return objectResponse{
		ObjectID:                 o.ObjectID(),
		Name:                     o.Name(),
		Type:                     string(o.Type()),
		ClassificationConfidence: o.ClassificationConfidence(),
		CatalogName:              o.CatalogName(),
		RA:                       o.RA(),
		Dec:                      o.Dec(),
		RAHms:                    celestial.FormatRA(o.RA()),
		DecDms:                   celestial.FormatDec(o.Dec()),
		RAErrorMas:               a.RAErrorMas,
		DecErrorMas:              a.DecErrorMas,
		PMRA:                     o.PMRA(),
		PMDec:                    o.PMDec(),
		TotalProperMotion:        o.TotalProperMotion(),
		Parallax:                 o.Parallax(),
		DistancePc:               o.DistancePc(),
		Magnitude:                o.Magnitude(),
		MagnitudeError:           o.MagnitudeError(),
		AbsoluteMagnitude:        o.AbsoluteMagnitude(),
		PhotometricSystem:        string(a.PhotometricSystem),
		Photometry:               o.Photometry(),
		Variability: variabilityDTO{
			IsVariable: v.IsVariable,
			PeriodDays: v.PeriodDays,
			Amplitude:  v.Amplitude,
			Type:       string(v.Type),
		},
		ProcessingID:     o.ProcessingID(),
		WorkflowVersion:  o.WorkflowVersion(),
		FirstObserved:    timePtr(o.FirstObserved()),
		LastObserved:     timePtr(o.LastObserved()),
		ObservationCount: o.ObservationCount(),
		CreatedAt:        timePtr(o.CreatedAt()),
		UpdatedAt:        timePtr(o.UpdatedAt()),
	}
}

func hitToResponse(h object.Hit) objectResponse {
	r := objectToResponse(h.Object)
	r.SeparationArcsec = finite(h.Separation)
	return r
}

type coneResponse struct {
	Items         []objectResponse `json:"items"`
	Total         int              `json:"total"`
	RadiusDegrees float64          `json:"radiusDegrees"`
	RAHours       float64          `json:"raHours"`
}

type pageResponse struct {
	Items   []objectResponse `json:"items"`
	Total   int              `json:"total"`
	Offset  int              `json:"offset"`
	Limit   int              `json:"limit"`
	HasMore bool             `json:"hasMore"`
}

func pageToResponse(p object.Page) pageResponse {
	items := make([]objectResponse, len(p.Objects))
	for i, o := range p.Objects {
		items[i] = objectToResponse(o)
	}
	return pageResponse{Items: items, Total: p.Total, Offset: p.Offset, Limit: p.Limit, HasMore: p.HasMore()}
}

type nearestResponse struct {
	Found      bool            `json:"found"`
	Object     *objectResponse `json:"object,omitempty"`
	Confidence float64         `json:"confidence"`
}

type bulkRequest struct {
	Objects   []objectDraft `json:"objects"`
	BatchSize int           `json:"batchSize,omitempty"`
}

type rowFailure struct {
	Index    int    `json:"index"`
	ObjectID string `json:"objectId,omitempty"`
	Error    string `json:"error"`
}

type bulkResponse struct {
	Imported int          `json:"imported"`
	Failed   []rowFailure `json:"failed"`
}

type magnitudeStatsDTO struct {
	Count int      `json:"count"`
	Avg   *float64 `json:"avg,omitempty"`
	Min   *float64 `json:"min,omitempty"`
	Max   *float64 `json:"max,omitempty"`
}

type statisticsResponse struct {
	Total            int                          `json:"total"`
	ByType           map[string]int               `json:"byType"`
	Magnitudes       map[string]magnitudeStatsDTO `json:"magnitudes"`
	ObservedLastWeek int                          `json:"observedLastWeek"`
}

func statisticsToResponse(st cataloguc.Statistics) statisticsResponse {
	out := statisticsResponse{
		Total:            st.Total,
		ByType:           make(map[string]int, len(st.ByType)),
		Magnitudes:       make(map[string]magnitudeStatsDTO, len(st.Magnitudes)),
		ObservedLastWeek: st.ObservedLastWeek,
	}
	for t, n := range st.ByType {
		out.ByType[string(t)] = n
	}
	for t, m := range st.Magnitudes {
		out.Magnitudes[string(t)] = magnitudeStatsDTO{Count: m.Count, Avg: finite(m.Avg), Min: finite(m.Min), Max: finite(m.Max)}
	}
	return out
}

// --- Cross-match ---

type crossMatchSource struct {
	Catalog             string   `json:"catalog"`
	ID                  string   `json:"id"`
	RA                  float64  `json:"ra"`
	Dec                 float64  `json:"dec"`
	PositionErrorArcsec float64  `json:"positionErrorArcsec,omitempty"`
	Magnitude           *float64 `json:"magnitude,omitempty"`
}

type crossMatchRequest struct {
	RadiusArcsec float64            `json:"radiusArcsec,omitempty"`
	Sources      []crossMatchSource `json:"sources"`
}

type crossMatchResult struct {
	Catalog          string   `json:"catalog"`
	ID               string   `json:"id"`
	Candidates       int      `json:"candidates"`
	Matched          bool     `json:"matched"`
	ObjectID         string   `json:"objectId,omitempty"`
	SeparationArcsec *float64 `json:"separationArcsec,omitempty"`
	Probability      *float64 `json:"probability,omitempty"`
	Significance     *float64 `json:"significance,omitempty"`
	Priority         string   `json:"priority,omitempty"`
}

type crossMatchResponse struct {
	Results []crossMatchResult `json:"results"`
	Matched int                `json:"matched"`
}

type crossMatchRecord struct {
	ObjectID         string    `json:"objectId"`
	CatalogName      string    `json:"catalogName"`
	CatalogDisplay   string    `json:"catalogDisplayName"`
	ExternalID       string    `json:"externalId"`
	SeparationArcsec float64   `json:"separationArcsec"`
	Separation       string    `json:"separation"`
	Confidence       float64   `json:"confidence"`
	Significance     *float64  `json:"significance,omitempty"`
	HighConfidence   bool      `json:"highConfidence"`
	Method           string    `json:"method"`
	Version          string    `json:"version"`
	Verified         bool      `json:"verified"`
	CreatedAt        time.Time `json:"createdAt"`
}

func recordToResponse(r crossmatch.Record) crossMatchRecord {
	return crossMatchRecord{
		ObjectID:         r.ObjectID(),
		CatalogName:      r.CatalogName(),
		CatalogDisplay:   r.CatalogDisplayName(),
		ExternalID:       r.ExternalID(),
		SeparationArcsec: r.Separation(),
		Separation:       r.FormattedSeparation(),
		Confidence:       r.Confidence(),
		Significance:     finite(r.Significance()),
		HighConfidence:   r.IsHighConfidence(),
		Method:           r.Method(),
		Version:          r.Version(),
		Verified:         r.Verified(),
		CreatedAt:        r.CreatedAt().UTC(),
	}
}

// --- Variability ---

type variabilityResponse struct {
	ObjectID           string   `json:"objectId"`
	IsVariable         bool     `json:"isVariable"`
	Type               string   `json:"type"`
	PeriodDays         *float64 `json:"periodDays,omitempty"`
	Power              *float64 `json:"power,omitempty"`
	WeightedMean       *float64 `json:"weightedMean,omitempty"`
	RMS                *float64 `json:"rms,omitempty"`
	VariabilityIndex   *float64 `json:"variabilityIndex,omitempty"`
	Amplitude          *float64 `json:"amplitude,omitempty"`
	StetsonJ           *float64 `json:"stetsonJ,omitempty"`
	Skewness           *float64 `json:"skewness,omitempty"`
	Kurtosis           *float64 `json:"kurtosis,omitempty"`
	PhaseScatter       *float64 `json:"phaseScatter,omitempty"`
	Observations       int      `json:"observations"`
	InsufficientPoints bool     `json:"insufficientPoints"`
}

func variabilityToResponse(objectID string, r variability.Result) variabilityResponse {
	out := variabilityResponse{
		ObjectID:           objectID,
		IsVariable:         r.IsVariable,
		Type:               string(r.Type),
		Power:              finite(r.Power),
		WeightedMean:       finite(r.Statistics.WeightedMean),
		RMS:                finite(r.Statistics.RMS),
		VariabilityIndex:   finite(r.Statistics.Index),
		Amplitude:          finite(r.Statistics.Amplitude),
		StetsonJ:           finite(r.StetsonJ),
		Skewness:           finite(r.Skewness),
		Kurtosis:           finite(r.Kurtosis),
		PhaseScatter:       finite(r.PhaseScatter),
		Observations:       r.Observations,
		InsufficientPoints: r.InsufficientPoints,
	}
	if r.Period > 0 {
		out.PeriodDays = finite(r.Period)
	}
	return out
}

// --- Quality ---

type qualitySource struct {
	ID                       string   `json:"id"`
	RA                       *float64 `json:"ra"`
	Dec                      *float64 `json:"dec"`
	Magnitude                *float64 `json:"magnitude,omitempty"`
	MagnitudeError           *float64 `json:"magnitudeError,omitempty"`
	PositionErrorArcsec      *float64 `json:"positionErrorArcsec,omitempty"`
	ClassificationConfidence *float64 `json:"classificationConfidence,omitempty"`
}

func orNaN(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

func (q qualitySource) toDomain() domquality.Source {
	return domquality.Source{
		ID:                       q.ID,
		RA:                       orNaN(q.RA),
		Dec:                      orNaN(q.Dec),
		Magnitude:                orNaN(q.Magnitude),
		MagnitudeError:           orNaN(q.MagnitudeError),
		PositionError:            orNaN(q.PositionErrorArcsec),
		ClassificationConfidence: orNaN(q.ClassificationConfidence),
	}
}

type qualityRequest struct {
	MinRA     float64         `json:"minRa"`
	MaxRA     float64         `json:"maxRa"`
	MinDec    float64         `json:"minDec"`
	MaxDec    float64         `json:"maxDec"`
	Reference []qualitySource `json:"reference,omitempty"`
}

type measurementDTO struct {
	Quality  *float64 `json:"quality,omitempty"`
	Accuracy *float64 `json:"accuracy,omitempty"`
	Samples  int      `json:"samples"`
	Measured bool     `json:"measured"`
}

type offsetDTO struct {
	Mean        *float64 `json:"mean,omitempty"`
	StdErr      *float64 `json:"stdErr,omitempty"`
	N           int      `json:"n"`
	Significant bool     `json:"significant"`
}

type qualityResponse struct {
	Sources       int `json:"sources"`
	ReferenceSize int `json:"referenceSize"`
	Completeness  struct {
		Percent           *float64            `json:"percent,omitempty"`
		AverageSeparation *float64            `json:"averageSeparationArcsec,omitempty"`
		ByMagnitude       map[string]*float64 `json:"byMagnitude,omitempty"`
		Limits            map[string]*float64 `json:"limits,omitempty"`
	} `json:"completeness"`
	Reliability struct {
		Percent           *float64 `json:"percent,omitempty"`
		FalsePositiveRate *float64 `json:"falsePositiveRate,omitempty"`
		Duplicates        int      `json:"duplicates"`
		Suspicious        int      `json:"suspicious"`
	} `json:"reliability"`
	Astrometric measurementDTO `json:"astrometric"`
	Photometric measurementDTO `json:"photometric"`
	Systematics struct {
		RA         offsetDTO `json:"raArcsec"`
		Dec        offsetDTO `json:"decArcsec"`
		Magnitude  offsetDTO `json:"magnitude"`
		Identified []string  `json:"identified,omitempty"`
	} `json:"systematics"`
	Flags           map[string]int `json:"flags"`
	Recommendations []string       `json:"recommendations"`
	Score           *float64       `json:"score,omitempty"`
}

func finiteMap(m map[string]float64) map[string]*float64 {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]*float64, len(m))
	for k, v := range m {
		out[k] = finite(v)
	}
	return out
}

func measurementToDTO(m domquality.Measurement) measurementDTO {
	return measurementDTO{Quality: finite(m.Quality), Accuracy: finite(m.Accuracy), Samples: m.Samples, Measured: m.Measured}
}

func offsetToDTO(o domquality.Offset) offsetDTO {
	return offsetDTO{Mean: finite(o.Mean), StdErr: finite(o.StdErr), N: o.N, Significant: o.Significant}
}

func qualityToResponse(r domquality.Report) qualityResponse {
	var out qualityResponse
	out.Sources = r.Sources
	out.ReferenceSize = r.ReferenceSize
	out.Completeness.Percent = finite(r.Completeness.Percent)
	out.Completeness.AverageSeparation = finite(r.Completeness.AverageSeparation)
	out.Completeness.ByMagnitude = finiteMap(r.Completeness.ByMagnitude)
	out.Completeness.Limits = finiteMap(r.Completeness.Limits)
	out.Reliability.Percent = finite(r.Reliability.Percent)
	out.Reliability.FalsePositiveRate = finite(r.Reliability.FalsePositiveRate)
	out.Reliability.Duplicates = r.Reliability.Duplicates
	out.Reliability.Suspicious = r.Reliability.Suspicious
	out.Astrometric = measurementToDTO(r.Astrometric)
	out.Photometric = measurementToDTO(r.Photometric)
	out.Systematics.RA = offsetToDTO(r.Systematics.RA)
	out.Systematics.Dec = offsetToDTO(r.Systematics.Dec)
	out.Systematics.Magnitude = offsetToDTO(r.Systematics.Magnitude)
	out.Systematics.Identified = r.Systematics.Identified
	out.Flags = r.Flags
	out.Recommendations = r.Recommendations
	if out.Recommendations == nil {
		out.Recommendations = []string{}
	}
	out.Score = finite(r.Score)
	return out
}

// --- Observations ---

type observationRequest struct {
	ObservationID string    `json:"observationId"`
	Instrument    string    `json:"instrument,omitempty"`
	Telescope     string    `json:"telescope,omitempty"`
	Filter        string    `json:"filter,omitempty"`
	RA            float64   `json:"ra"`
	Dec           float64   `json:"dec"`
	ObservedAt    time.Time `json:"observedAt"`
	ExposureSec   float64   `json:"exposureSec"`
	Airmass       *float64  `json:"airmass,omitempty"`
	SeeingArcsec  *float64  `json:"seeingArcsec,omitempty"`
	SkyBrightness *float64  `json:"skyBrightness,omitempty"`
	MoonPhase     *float64  `json:"moonPhase,omitempty"`
	MoonSepDeg    *float64  `json:"moonSeparationDeg,omitempty"`
	FieldWidth    float64   `json:"fieldWidthDeg,omitempty"`
	FieldHeight   float64   `json:"fieldHeightDeg,omitempty"`
	PixelScale    float64   `json:"pixelScale,omitempty"`
	Rotation      float64   `json:"rotationDeg,omitempty"`
	ImagePath     string    `json:"imagePath,omitempty"`
	ProcessingID  string    `json:"processingId,omitempty"`
}

func (o observationRequest) toDomain() observation.Spec {
	return observation.Spec{
		ObservationID: o.ObservationID,
		Instrument:    o.Instrument,
		Telescope:     o.Telescope,
		Filter:        o.Filter,
		RA:            o.RA,
		Dec:           o.Dec,
		ObservedAt:    o.ObservedAt,
		ExposureSec:   o.ExposureSec,
		Conditions: observation.Conditions{
			Airmass:       o.Airmass,
			SeeingArcsec:  o.SeeingArcsec,
			SkyBrightness: o.SkyBrightness,
			MoonPhase:     o.MoonPhase,
			MoonSepDeg:    o.MoonSepDeg,
		},
		Field: observation.Field{
			WidthDeg:    o.FieldWidth,
			HeightDeg:   o.FieldHeight,
			PixelScale:  o.PixelScale,
			RotationDeg: o.Rotation,
		},
		ImagePath:    o.ImagePath,
		ProcessingID: o.ProcessingID,
	}
}

type observationResponse struct {
	observationRequest
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

func observationToResponse(o observation.Observation) observationResponse {
	s := o.Spec()
	return observationResponse{
		observationRequest: observationRequest{
			ObservationID: s.ObservationID,
			Instrument:    s.Instrument,
			Telescope:     s.Telescope,
			Filter:        s.Filter,
			RA:            s.RA,
			Dec:           s.Dec,
			ObservedAt:    s.ObservedAt.UTC(),
			ExposureSec:   s.ExposureSec,
			Airmass:       s.Conditions.Airmass,
			SeeingArcsec:  s.Conditions.SeeingArcsec,
			SkyBrightness: s.Conditions.SkyBrightness,
			MoonPhase:     s.Conditions.MoonPhase,
			MoonSepDeg:    s.Conditions.MoonSepDeg,
			FieldWidth:    s.Field.WidthDeg,
			FieldHeight:   s.Field.HeightDeg,
			PixelScale:    s.Field.PixelScale,
			Rotation:      s.Field.RotationDeg,
			ImagePath:     s.ImagePath,
			ProcessingID:  s.ProcessingID,
		},
		Status:    string(o.Status()),
		CreatedAt: o.CreatedAt().UTC(),
	}
}

type detectionDTO struct {
	ObjectID       string   `json:"objectId"`
	X              float64  `json:"x"`
	Y              float64  `json:"y"`
	RA             float64  `json:"ra"`
	Dec            float64  `json:"dec"`
	Magnitude      *float64 `json:"magnitude,omitempty"`
	MagnitudeError *float64 `json:"magnitudeError,omitempty"`
	Flux           *float64 `json:"flux,omitempty"`
	FluxError      *float64 `json:"fluxError,omitempty"`
	FWHMArcsec     *float64 `json:"fwhmArcsec,omitempty"`
	Ellipticity    *float64 `json:"ellipticity,omitempty"`
	Flags          int      `json:"flags,omitempty"`
}

func (d detectionDTO) toDomain() observation.DetectionSpec {
	return observation.DetectionSpec{
		ObjectID:       d.ObjectID,
		X:              d.X,
		Y:              d.Y,
		RA:             d.RA,
		Dec:            d.Dec,
		Magnitude:      d.Magnitude,
		MagnitudeError: d.MagnitudeError,
		Flux:           d.Flux,
		FluxError:      d.FluxError,
		FWHMArcsec:     d.FWHMArcsec,
		Ellipticity:    d.Ellipticity,
		Flags:          d.Flags,
	}
}

type detectionResponse struct {
	detectionDTO
	ObservationID string    `json:"observationId"`
	ObservedAt    time.Time `json:"observedAt"`
	Filter        string    `json:"filter,omitempty"`
	SignalToNoise *float64  `json:"signalToNoise,omitempty"`
	Saturated     bool      `json:"saturated"`
}

func detectionToResponse(d observation.Detection) detectionResponse {
	s := d.Spec()
	return detectionResponse{
		detectionDTO: detectionDTO{
			ObjectID:       s.ObjectID,
			X:              s.X,
			Y:              s.Y,
			RA:             s.RA,
			Dec:            s.Dec,
			Magnitude:      s.Magnitude,
			MagnitudeError: s.MagnitudeError,
			Flux:           s.Flux,
			FluxError:      s.FluxError,
			FWHMArcsec:     s.FWHMArcsec,
			Ellipticity:    s.Ellipticity,
			Flags:          s.Flags,
		},
		ObservationID: d.ObservationID(),
		ObservedAt:    d.ObservedAt().UTC(),
		Filter:        d.Filter(),
		SignalToNoise: finite(d.SignalToNoise()),
		Saturated:     d.IsSaturated(),
	}
}

// --- Workflows ---

type dependencyDTO struct {
	Name     string `json:"name"`
	Version  string `json:"version"`
	Optional bool   `json:"optional,omitempty"`
}

type registerWorkflowRequest struct {
	Name               string             `json:"name"`
	Version            string             `json:"version"`
	ProcessingType     string             `json:"processingType"`
	AlgorithmConfig    map[string]any     `json:"algorithmConfig,omitempty"`
	ParameterOverrides map[string]any     `json:"parameterOverrides,omitempty"`
	PerformanceMetrics map[string]float64 `json:"performanceMetrics,omitempty"`
	QualityMetrics     map[string]float64 `json:"qualityMetrics,omitempty"`
	Dependencies       []dependencyDTO    `json:"dependencies,omitempty"`
	By                 string             `json:"by,omitempty"`
}

type workflowVersionResponse struct {
	Name               string             `json:"name"`
	Version            string             `json:"version"`
	ProcessingType     string             `json:"processingType"`
	Active             bool               `json:"active"`
	Default            bool               `json:"default"`
	TrafficSplit       float64            `json:"trafficSplit"`
	AlgorithmConfig    map[string]any     `json:"algorithmConfig,omitempty"`
	ParameterOverrides map[string]any     `json:"parameterOverrides,omitempty"`
	PerformanceMetrics map[string]float64 `json:"performanceMetrics,omitempty"`
	QualityMetrics     map[string]float64 `json:"qualityMetrics,omitempty"`
	Dependencies       []dependencyDTO    `json:"dependencies,omitempty"`
	UsageCount         int64              `json:"usageCount"`
	CreatedAt          time.Time          `json:"createdAt"`
	ActivatedAt        *time.Time         `json:"activatedAt,omitempty"`
	DeactivatedAt      *time.Time         `json:"deactivatedAt,omitempty"`
	ActivatedBy        string             `json:"activatedBy,omitempty"`
	Reason             string             `json:"reason,omitempty"`
}

func versionToResponse(v wf.Version) workflowVersionResponse {
	var deps []dependencyDTO
	for _, d := range v.Dependencies() {
		deps = append(deps, dependencyDTO{Name: d.Name, Version: d.Version, Optional: d.Optional})
	}
	return workflowVersionResponse{
		Name:               v.Name(),
		Version:            v.Version(),
		ProcessingType:     string(v.Type()),
		Active:             v.IsActive(),
		Default:            v.IsDefault(),
		TrafficSplit:       v.TrafficSplit(),
		AlgorithmConfig:    v.AlgorithmConfig(),
		ParameterOverrides: v.ParameterOverrides(),
		PerformanceMetrics: v.PerformanceMetrics(),
		QualityMetrics:     v.QualityMetrics(),
		Dependencies:       deps,
		UsageCount:         v.UsageCount(),
		CreatedAt:          v.CreatedAt().UTC(),
		ActivatedAt:        timePtr(v.ActivatedAt()),
		DeactivatedAt:      timePtr(v.DeactivatedAt()),
		ActivatedBy:        v.ActivatedBy(),
		Reason:             v.Reason(),
	}
}

func versionsToResponse(vs []wf.Version) []workflowVersionResponse {
	out := make([]workflowVersionResponse, len(vs))
	for i, v := range vs {
		out[i] = versionToResponse(v)
	}
	return out
}

type activateRequest struct {
	TrafficSplit     *float64 `json:"trafficSplit,omitempty"`
	By               string   `json:"by,omitempty"`
	Reason           string   `json:"reason,omitempty"`
	DeactivateOthers bool     `json:"deactivateOthers,omitempty"`
	SetDefault       bool     `json:"setDefault,omitempty"`
}

type actorRequest struct {
	By     string `json:"by,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type promoteRequest struct {
	ExperimentalVersion string             `json:"experimentalVersion"`
	NewVersion          string             `json:"newVersion"`
	By                  string             `json:"by,omitempty"`
	Reason              string             `json:"reason,omitempty"`
	Performance         map[string]float64 `json:"performanceMetrics,omitempty"`
}

type duplicateRequest struct {
	ExperimentalVersion string   `json:"experimentalVersion"`
	Datasets            []string `json:"datasets"`
	Researcher          string   `json:"researcherId"`
	Hypothesis          string   `json:"hypothesis"`
	Priority            string   `json:"priority,omitempty"`
}

type historyEntryResponse struct {
	Seq            int64     `json:"seq"`
	Name           string    `json:"name"`
	Version        string    `json:"version"`
	ProcessingType string    `json:"processingType"`
	Action         string    `json:"action"`
	PerformedAt    time.Time `json:"performedAt"`
	PerformedBy    string    `json:"performedBy,omitempty"`
	Reason         string    `json:"reason,omitempty"`
}

func historyToResponse(h []wf.HistoryEntry) []historyEntryResponse {
	out := make([]historyEntryResponse, len(h))
	for i, e := range h {
		out[i] = historyEntryResponse{
			Seq:            e.Seq,
			Name:           e.Name,
			Version:        e.Version,
			ProcessingType: string(e.Type),
			Action:         string(e.Action),
			PerformedAt:    e.PerformedAt.UTC(),
			PerformedBy:    e.PerformedBy,
			Reason:         e.Reason,
		}
	}
	return out
}

type comparisonResponse struct {
	Baseline       string                    `json:"baseline"`
	Candidate      string                    `json:"candidate"`
	Performance    map[string]wf.MetricDelta `json:"performance"`
	Quality        map[string]wf.MetricDelta `json:"quality"`
	PerformanceAvg float64                   `json:"performanceChangePercent"`
	QualityAvg     float64                   `json:"qualityChangePercent"`
	Recommendation string                    `json:"recommendation"`
	Summary        string                    `json:"summary"`
}

func comparisonToResponse(c wf.Comparison) comparisonResponse {
	return comparisonResponse{
		Baseline:       c.Baseline.Version,
		Candidate:      c.Candidate.Version,
		Performance:    c.Performance,
		Quality:        c.Quality,
		PerformanceAvg: c.PerformanceAvg,
		QualityAvg:     c.QualityAvg,
		Recommendation: string(c.Recommendation),
		Summary:        c.Summary,
	}
}

// --- Ingest ---

type ingestSource struct {
	Object           objectDraft `json:"object"`
	InstrumentalMag  *float64    `json:"instrumentalMagnitude,omitempty"`
	Filter           string      `json:"filter,omitempty"`
	Airmass          float64     `json:"airmass,omitempty"`
	ExposureSec      float64     `json:"exposureSec,omitempty"`
	ApertureDiameter float64     `json:"apertureDiameter,omitempty"`
	RadialVelocity   *float64    `json:"radialVelocity,omitempty"`
}

type ingestRequest struct {
	Sources        []ingestSource `json:"sources"`
	Workflow       string         `json:"workflow,omitempty"`
	ProcessingType string         `json:"processingType,omitempty"`
	SourceEpoch    float64        `json:"sourceEpoch,omitempty"`
	TargetEpoch    float64        `json:"targetEpoch,omitempty"`
	Parallax       bool           `json:"parallax,omitempty"`
	BatchSize      int            `json:"batchSize,omitempty"`
	SessionID      string         `json:"sessionId,omitempty"`
}

type ingestResponse struct {
	ProcessingID    string       `json:"processingId"`
	WorkflowVersion string       `json:"workflowVersion,omitempty"`
	Imported        int          `json:"imported"`
	Failed          []rowFailure `json:"failed"`
	ManifestKey     string       `json:"manifestKey,omitempty"`
}
