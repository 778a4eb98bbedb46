package filter

import "fmt"

// MaxConditions is the maximum number of conditions in one expression.
const MaxConditions = 8

// Expression is a conjunction of pre-filter conditions applied before vector ranking.
type Expression struct {
	conds []Condition
}

// And validates and combines conditions.
func And(conds ...Condition) (Expression, error) {
	if len(conds) > MaxConditions {
		return Expression{}, fmt.Errorf("too many filter conditions (max %d)", MaxConditions)
	}
	return Expression{conds: conds}, nil
}

// With returns a copy of the expression extended by c.
func (e Expression) With(c Condition) Expression {
	conds := make([]Condition, 0, len(e.conds)+1)
	conds = append(conds, e.conds...)
	return Expression{conds: append(conds, c)}
}

// Conditions returns the conditions in insertion order.
func (e Expression) Conditions() []Condition { return e.conds }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool { return len(e.conds) == 0 }

// Condition is either an exact tag match or an inclusive numeric range.
type Condition struct {
	field string
	tag   string
	lo    *float64
	hi    *float64
}

// Tag creates an exact tag match condition.
func Tag(field, value string) (Condition, error) {
	if field == "" {
		return Condition{}, fmt.Errorf("filter field is required")
	}
	if value == "" {
		return Condition{}, fmt.Errorf("tag value is required for field %q", field)
	}
	return Condition{field: field, tag: value}, nil
}

// Between creates an inclusive numeric range. A nil bound is open.
func Between(field string, lo, hi *float64) (Condition, error) {
	if field == "" {
		return Condition{}, fmt.Errorf("filter field is required")
	}
	if lo == nil && hi == nil {
		return Condition{}, fmt.Errorf("at least one bound is required for field %q", field)
	}
	if lo != nil && hi != nil && *lo > *hi {
		return Condition{}, fmt.Errorf("lower bound exceeds upper bound for field %q", field)
	}
	return Condition{field: field, lo: lo, hi: hi}, nil
}

// Field returns the indexed field name.
func (c Condition) Field() string { return c.field }

// TagValue returns the exact match value.
func (c Condition) TagValue() string { return c.tag }

// IsTag reports whether this is a tag condition.
func (c Condition) IsTag() bool { return c.tag != "" }

// Lower returns the inclusive lower bound or nil.
func (c Condition) Lower() *float64 { return c.lo }

// Upper returns the inclusive upper bound or nil.
func (c Condition) Upper() *float64 { return c.hi }
