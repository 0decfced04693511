package catalog

import (
	"github.com/kailas-cloud/astrocat/internal/db"
)

// Hash field names. Indexed fields mirror the attributes queries filter and sort on;
// the rest of the object travels in the JSON payload.
const (
	fieldID               = "id"
	fieldObjectID         = "object_id"
	fieldType             = "type"
	fieldCatalog          = "catalog"
	fieldRA               = "ra"
	fieldDec              = "dec"
	fieldMagnitude        = "magnitude"
	fieldSignificance     = "significance"
	fieldPMTotal          = "pm_total"
	fieldParallax         = "parallax"
	fieldFirstObserved    = "first_observed"
	fieldLastObserved     = "last_observed"
	fieldObservationCount = "observation_count"
	fieldCreatedAt        = "created_at"
	fieldUpdatedAt        = "updated_at"
	fieldDirection        = "direction"
	fieldPayload          = "payload"
)

// returnFields is everything needed to rebuild an object; the direction vector is skipped.
var returnFields = []string{
	fieldID, fieldPayload,
	fieldFirstObserved, fieldLastObserved, fieldObservationCount,
	fieldCreatedAt, fieldUpdatedAt,
}

func buildIndex(name, prefix string) (*db.IndexDefinition, error) {
	return db.NewIndex(name).
		Prefix(prefix).
		Tag(fieldObjectID).
		SortableTag(fieldType).
		Tag(fieldCatalog).
		SortableNumeric(fieldRA).
		SortableNumeric(fieldDec).
		SortableNumeric(fieldMagnitude).
		Numeric(fieldSignificance).
		SortableNumeric(fieldPMTotal).
		SortableNumeric(fieldParallax).
		SortableNumeric(fieldLastObserved).
		Numeric(fieldObservationCount).
		VectorFlat(fieldDirection, 3, db.DistanceL2).
		Build()
}
