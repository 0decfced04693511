// Package filter describes store-side prefilters over indexed object attributes.
package filter

import "fmt"

// MaxConditionsPerGroup is the maximum number of conditions per filter group.
const MaxConditionsPerGroup = 32

// Expression combines conditions with must/should/must_not semantics.
// Should conditions form a single OR group; used for the RA intervals of a seam-crossing window.
type Expression struct {
	must    []Condition
	should  []Condition
	mustNot []Condition
}

// NewExpression validates and creates a filter Expression.
func NewExpression(must, should, mustNot []Condition) (Expression, error) {
	if len(must) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many must conditions (max %d)", MaxConditionsPerGroup)
	}
	if len(should) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many should conditions (max %d)", MaxConditionsPerGroup)
	}
	if len(mustNot) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many must_not conditions (max %d)", MaxConditionsPerGroup)
	}
	return Expression{must: must, should: should, mustNot: mustNot}, nil
}

// And returns a copy of e with extra must conditions appended.
func (e Expression) And(conds ...Condition) Expression {
	must := make([]Condition, 0, len(e.must)+len(conds))
	must = append(must, e.must...)
	must = append(must, conds...)
	return Expression{must: must, should: e.should, mustNot: e.mustNot}
}

// Must returns the must conditions.
func (e Expression) Must() []Condition { return e.must }

// Should returns the should conditions.
func (e Expression) Should() []Condition { return e.should }

// MustNot returns the must-not conditions.
func (e Expression) MustNot() []Condition { return e.mustNot }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool {
	return len(e.must) == 0 && len(e.should) == 0 && len(e.mustNot) == 0
}

// Condition is a single clause: a tag match against one of several values, or a numeric range.
type Condition struct {
	key       string
	anyOf     []string
	rangeExpr *Range
}

// NewMatch creates a tag condition matching any of the given values.
func NewMatch(key string, values ...string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if len(values) == 0 {
		return Condition{}, fmt.Errorf("match value is required for key %q", key)
	}
	for _, v := range values {
		if v == "" {
			return Condition{}, fmt.Errorf("empty match value for key %q", key)
		}
	}
	return Condition{key: key, anyOf: append([]string(nil), values...)}, nil
}

// NewRange creates a numeric range condition.
func NewRange(key string, r Range) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	return Condition{key: key, rangeExpr: &r}, nil
}

// Between is a closed numeric range condition [lo, hi]. It panics on an empty key.
func Between(key string, lo, hi float64) Condition {
	c, err := NewRange(key, Range{gte: &lo, lte: &hi})
	if err != nil {
		panic(err)
	}
	return c
}

// AtLeast is a numeric condition key >= lo. It panics on an empty key.
func AtLeast(key string, lo float64) Condition {
	c, err := NewRange(key, Range{gte: &lo})
	if err != nil {
		panic(err)
	}
	return c
}

// AtMost is a numeric condition key <= hi. It panics on an empty key.
func AtMost(key string, hi float64) Condition {
	c, err := NewRange(key, Range{lte: &hi})
	if err != nil {
		panic(err)
	}
	return c
}

// Key returns the field name.
func (c Condition) Key() string { return c.key }

// Values returns the accepted tag values.
func (c Condition) Values() []string { return c.anyOf }

// Range returns the numeric range expression.
func (c Condition) Range() *Range { return c.rangeExpr }

// IsMatch reports whether this is a tag condition.
func (c Condition) IsMatch() bool { return len(c.anyOf) > 0 }

// IsRange reports whether this is a range condition.
func (c Condition) IsRange() bool { return c.rangeExpr != nil }

// Range is a numeric range with gt/gte/lt/lte boundaries.
type Range struct {
	gt  *float64
	gte *float64
	lt  *float64
	lte *float64
}

// NewRangeFilter validates and creates a Range.
// At least one boundary required. gt/gte and lt/lte are mutually exclusive.
func NewRangeFilter(gt, gte, lt, lte *float64) (Range, error) {
	if gt == nil && gte == nil && lt == nil && lte == nil {
		return Range{}, fmt.Errorf("at least one range boundary is required")
	}
	if gt != nil && gte != nil {
		return Range{}, fmt.Errorf("cannot specify both gt and gte")
	}
	if lt != nil && lte != nil {
		return Range{}, fmt.Errorf("cannot specify both lt and lte")
	}
	return Range{gt: gt, gte: gte, lt: lt, lte: lte}, nil
}

// GT returns the lower exclusive bound.
func (r Range) GT() *float64 { return r.gt }

// GTE returns the lower inclusive bound.
func (r Range) GTE() *float64 { return r.gte }

// LT returns the upper exclusive bound.
func (r Range) LT() *float64 { return r.lt }

// LTE returns the upper inclusive bound.
func (r Range) LTE() *float64 { return r.lte }

// Contains reports whether x satisfies every bound.
func (r Range) Contains(x float64) bool {
	switch {
	case r.gt != nil && !(x > *r.gt):
		return false
	case r.gte != nil && !(x >= *r.gte):
		return false
	case r.lt != nil && !(x < *r.lt):
		return false
	case r.lte != nil && !(x <= *r.lte):
		return false
	}
	return true
}
