// Package processing defines data-provenance types and processing identifiers.
package processing

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/astrocat/internal/domain"
)

// Type qualifies the provenance of processed data.
type Type string

// Processing types.
const (
	Production   Type = "prod"
	Experimental Type = "exp"
	Test         Type = "test"
	Validation   Type = "val"
	Reprocessing Type = "repr"
)

// Types lists every processing type.
var Types = []Type{Production, Experimental, Test, Validation, Reprocessing}

// IsValid reports whether t is a known processing type.
func (t Type) IsValid() bool {
	switch t {
	case Production, Experimental, Test, Validation, Reprocessing:
		return true
	}
	return false
}

// ParseType validates a processing type name.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", domain.NewInvalidArgument("processingType", fmt.Sprintf("unknown type %q", s))
	}
	return t, nil
}

// ID is a processing identifier of the form {type}-{YYYYMMDD}-{uuid}.
type ID struct {
	Type Type
	Date time.Time
	UUID uuid.UUID
}

// NewID mints a fresh identifier for processing started at now.
func NewID(t Type, now time.Time) (ID, error) {
	if !t.IsValid() {
		return ID{}, domain.NewInvalidArgument("processingType", fmt.Sprintf("unknown type %q", t))
	}
	now = now.UTC()
	return ID{
		Type: t,
		Date: time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
		UUID: uuid.New(),
	}, nil
}

// String renders the identifier.
func (id ID) String() string {
	return fmt.Sprintf("%s-%s-%s", id.Type, id.Date.Format("20060102"), id.UUID)
}

// PartitionKey returns {type}_{YYYYMM}.
func (id ID) PartitionKey() string {
	return PartitionKey(id.Type, id.Date)
}

// PartitionKey groups processing output by type and month.
func PartitionKey(t Type, at time.Time) string {
	return fmt.Sprintf("%s_%s", t, at.UTC().Format("200601"))
}

// ParseID parses {type}-{YYYYMMDD}-{uuid}.
func ParseID(s string) (ID, error) {
	parts := strings.SplitN(s, "-", 3)
	if len(parts) != 3 {
		return ID{}, domain.NewInvalidArgument("processingId", "expected {type}-{YYYYMMDD}-{uuid}")
	}
	t := Type(parts[0])
	if !t.IsValid() {
		return ID{}, domain.NewInvalidArgument("processingId", fmt.Sprintf("unknown type %q", parts[0]))
	}
	date, err := time.Parse("20060102", parts[1])
	if err != nil {
		return ID{}, domain.NewInvalidArgument("processingId", "bad date: "+parts[1])
	}
	u, err := uuid.Parse(parts[2])
	if err != nil {
		return ID{}, domain.NewInvalidArgument("processingId", "bad uuid: "+parts[2])
	}
	return ID{Type: t, Date: date, UUID: u}, nil
}
