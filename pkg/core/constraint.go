package core

import (
	"fmt"
	"strings"
)

// Constraint is a bounded version range of the form
//
//	LOWER <= v <  UPPER
//	LOWER <= v <= UPPER
//
// as written in package manifests ("1.0.0 <= v < 2.0.0"). The lower bound
// is always inclusive; the upper bound may be inclusive or exclusive.
type Constraint struct {
	lower          Version
	upper          Version
	upperInclusive bool
}

// Exactly returns the constraint satisfied only by v. Application manifests
// pin every dependency this way.
func Exactly(v Version) Constraint {
	return Constraint{lower: v, upper: v, upperInclusive: true}
}

// UntilNextMajor returns the widest constraint compatible with v under
// semantic versioning: v <= x < (v.Major+1).0.0.
func UntilNextMajor(v Version) Constraint {
	return Constraint{
		lower: v,
		upper: Version{Major: v.Major + 1},
	}
}

// ParseConstraint parses "LOWER <= v < UPPER" or "LOWER <= v <= UPPER".
func ParseConstraint(s string) (Constraint, error) {
	parts := strings.Fields(s)
	if len(parts) != 5 || parts[1] != "<=" || parts[2] != "v" {
		return Constraint{}, fmt.Errorf("invalid constraint %q", s)
	}
	lower, err := ParseVersion(parts[0])
	if err != nil {
		return Constraint{}, fmt.Errorf("invalid constraint %q: %v", s, err)
	}
	upper, err := ParseVersion(parts[4])
	if err != nil {
		return Constraint{}, fmt.Errorf("invalid constraint %q: %v", s, err)
	}
	var inclusive bool
	switch parts[3] {
	case "<":
		inclusive = false
	case "<=":
		inclusive = true
	default:
		return Constraint{}, fmt.Errorf("invalid constraint %q", s)
	}
	if upper.Less(lower) {
		return Constraint{}, fmt.Errorf("invalid constraint %q: empty range", s)
	}
	return Constraint{lower: lower, upper: upper, upperInclusive: inclusive}, nil
}

// String formats the constraint the way manifests spell it.
func (c Constraint) String() string {
	op := "<"
	if c.upperInclusive {
		op = "<="
	}
	return fmt.Sprintf("%s <= v %s %s", c.lower, op, c.upper)
}

// Lower returns the inclusive lower bound.
func (c Constraint) Lower() Version { return c.lower }

// SatisfiedBy reports whether v falls inside the constraint.
func (c Constraint) SatisfiedBy(v Version) bool {
	if v.Less(c.lower) {
		return false
	}
	if c.upperInclusive {
		return !c.upper.Less(v)
	}
	return v.Less(c.upper)
}

// Intersect narrows two constraints to their overlap. The second result is
// false when the ranges do not overlap.
func (c Constraint) Intersect(d Constraint) (Constraint, bool) {
	out := c
	if out.lower.Less(d.lower) {
		out.lower = d.lower
	}
	switch d.upper.Compare(out.upper) {
	case -1:
		out.upper = d.upper
		out.upperInclusive = d.upperInclusive
	case 0:
		out.upperInclusive = out.upperInclusive && d.upperInclusive
	}
	if out.upper.Less(out.lower) {
		return Constraint{}, false
	}
	if out.upper == out.lower && !out.upperInclusive {
		return Constraint{}, false
	}
	return out, true
}

// GoodCompiler reports whether the constraint admits the running compiler.
func (c Constraint) GoodCompiler() bool {
	return c.SatisfiedBy(Compiler)
}

// MarshalText implements encoding.TextMarshaler.
func (c Constraint) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Constraint) UnmarshalText(text []byte) error {
	parsed, err := ParseConstraint(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
