package object

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/astrocat/internal/domain"
)

// Criteria narrows a catalog query by indexed attributes. Zero values do not filter.
type Criteria struct {
	Types              []Type
	CatalogName        string
	MinMagnitude       *float64
	MaxMagnitude       *float64
	MinSignificance    *float64
	MinProperMotion    *float64 // mas/yr, total
	MinParallax        *float64 // mas
	ObservedAfter      time.Time
	ObservedBefore     time.Time
	ObservationsAtMost int
}

// Validate rejects inverted ranges and unknown types.
func (c Criteria) Validate() error {
	for _, t := range c.Types {
		if !t.IsValid() {
			return domain.NewInvalidArgument("objectTypes", fmt.Sprintf("unknown type %q", t))
		}
	}
	if c.MinMagnitude != nil && c.MaxMagnitude != nil && *c.MinMagnitude > *c.MaxMagnitude {
		return domain.NewInvalidArgument("magnitude", "minMagnitude exceeds maxMagnitude")
	}
	if c.ObservationsAtMost < 0 {
		return domain.NewInvalidArgument("observationCount", "must be non-negative")
	}
	return nil
}

// Matches reports whether o satisfies the criteria. Objects without a magnitude
// never match a magnitude bound.
func (c Criteria) Matches(o Object) bool {
	if len(c.Types) > 0 {
		ok := false
		for _, t := range c.Types {
			if o.Type() == t {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if c.CatalogName != "" && o.CatalogName() != c.CatalogName {
		return false
	}
	if c.MinMagnitude != nil || c.MaxMagnitude != nil {
		m := o.Magnitude()
		if m == nil {
			return false
		}
		if c.MinMagnitude != nil && *m < *c.MinMagnitude {
			return false
		}
		if c.MaxMagnitude != nil && *m > *c.MaxMagnitude {
			return false
		}
	}
	if c.MinSignificance != nil {
		s := o.DetectionSignificance()
		if s == nil || *s < *c.MinSignificance {
			return false
		}
	}
	if c.MinProperMotion != nil && o.TotalProperMotion() < *c.MinProperMotion {
		return false
	}
	if c.MinParallax != nil {
		p := o.Parallax()
		if p == nil || *p < *c.MinParallax {
			return false
		}
	}
	if !c.ObservedAfter.IsZero() && o.LastObserved().Before(c.ObservedAfter) {
		return false
	}
	if !c.ObservedBefore.IsZero() && !o.LastObserved().Before(c.ObservedBefore) {
		return false
	}
	if c.ObservationsAtMost > 0 && o.ObservationCount() > c.ObservationsAtMost {
		return false
	}
	return true
}

// Page is one page of a paged catalog query.
type Page struct {
	Objects []Object
	Total   int
	Offset  int
	Limit   int
}

// HasMore reports whether further pages exist.
func (p Page) HasMore() bool { return p.Offset+len(p.Objects) < p.Total }

// MagnitudeStats summarises the magnitudes of one object type.
type MagnitudeStats struct {
	Count int
	Avg   float64
	Min   float64
	Max   float64
}

// SortField names an attribute catalog listings can be ordered by.
type SortField string

// Sortable attributes. SortNone leaves the store's order.
const (
	SortNone         SortField = ""
	SortDec          SortField = "dec"
	SortMagnitude    SortField = "magnitude"
	SortProperMotion SortField = "properMotion"
	SortParallax     SortField = "parallax"
	SortLastObserved SortField = "lastObserved"
)

// Sort orders a listing.
type Sort struct {
	Field      SortField
	Descending bool
}
