package filter

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// MaxConditionsPerGroup is the maximum number of conditions per filter group.
const MaxConditionsPerGroup = 32

// ErrUnknownComparator signals a lookup suffix that is not a comparator.
var ErrUnknownComparator = errors.New("unsupported comparator")

// Comparator is the lookup suffix of a filter key ("price__gte" -> GTE).
type Comparator string

// Comparators. Range only appears after consolidation.
const (
	Eq    Comparator = ""
	In    Comparator = "in"
	GTE   Comparator = "gte"
	LTE   Comparator = "lte"
	Range Comparator = "RANGE"
)

// IsValid reports whether c may appear in a caller-supplied key.
func (c Comparator) IsValid() bool {
	return c == Eq || c == In || c == GTE || c == LTE
}

// Split splits a lookup key on its last "__" into field and comparator.
// A key without "__" is an equality lookup.
func Split(key string) (string, Comparator, error) {
	i := strings.LastIndex(key, "__")
	if i < 0 {
		return key, Eq, nil
	}
	field, cmp := key[:i], Comparator(key[i+2:])
	if !cmp.IsValid() {
		return "", "", fmt.Errorf("%w: %q in %q", ErrUnknownComparator, string(cmp), key)
	}
	return field, cmp, nil
}

// Triple is one filter constraint: field, comparator and integer operands.
// Eq and In carry the value set; GTE and LTE carry one bound; Range carries
// [min, max].
type Triple struct {
	Field  string
	Cmp    Comparator
	Values []int64
}

// Bounds returns the inclusive [lo, hi] range of a GTE, LTE or Range triple,
// with open sides set to minValue / maxValue.
func (t Triple) Bounds(minValue, maxValue int64) (lo, hi int64, ok bool) {
	switch t.Cmp {
	case GTE:
		if len(t.Values) == 1 {
			return t.Values[0], maxValue, true
		}
	case LTE:
		if len(t.Values) == 1 {
			return minValue, t.Values[0], true
		}
	case Range:
		if len(t.Values) == 2 {
			return t.Values[0], t.Values[1], true
		}
	}
	return 0, 0, false
}

// Consolidate merges a GTE and an LTE on the same field into one Range
// triple. Lone inequalities and set lookups pass through unchanged. Output
// order is set lookups first, then inequalities sorted by field.
func Consolidate(triples []Triple) []Triple {
	out := make([]Triple, 0, len(triples))
	type pair struct{ gte, lte *Triple }
	ineq := make(map[string]*pair)

	for i := range triples {
		t := triples[i]
		switch t.Cmp {
		case GTE, LTE:
			p := ineq[t.Field]
			if p == nil {
				p = &pair{}
				ineq[t.Field] = p
			}
			if t.Cmp == GTE {
				p.gte = &t
			} else {
				p.lte = &t
			}
		default:
			out = append(out, t)
		}
	}

	fields := make([]string, 0, len(ineq))
	for f := range ineq {
		fields = append(fields, f)
	}
	slices.Sort(fields)

	for _, f := range fields {
		p := ineq[f]
		switch {
		case p.gte != nil && p.lte != nil:
			out = append(out, Triple{
				Field:  f,
				Cmp:    Range,
				Values: []int64{p.gte.Values[0], p.lte.Values[0]},
			})
		case p.gte != nil:
			out = append(out, *p.gte)
		default:
			out = append(out, *p.lte)
		}
	}
	return out
}

// Expression is a conjunction of constraints, some of them negated.
type Expression struct {
	must    []Triple
	mustNot []Triple
}

// NewExpression validates and creates a filter Expression.
func NewExpression(must, mustNot []Triple) (Expression, error) {
	if len(must) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many must conditions (max %d)", MaxConditionsPerGroup)
	}
	if len(mustNot) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many must_not conditions (max %d)", MaxConditionsPerGroup)
	}
	return Expression{must: must, mustNot: mustNot}, nil
}

// Must returns the positive constraints.
func (e Expression) Must() []Triple { return e.must }

// MustNot returns the negated constraints.
func (e Expression) MustNot() []Triple { return e.mustNot }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool {
	return len(e.must) == 0 && len(e.mustNot) == 0
}
