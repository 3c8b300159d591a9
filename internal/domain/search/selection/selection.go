// Package selection composes successive pagination requests into one.
package selection

import (
	"errors"
	"fmt"
)

var (
	// ErrNegative signals a negative start, stop or index.
	ErrNegative = errors.New("negative selection bounds are not supported")
	// ErrNotRange signals an attempt to narrow a single-index selection.
	ErrNotRange = errors.New("cannot narrow a single-index selection")
)

// Selection is either a half-open range [start, stop) with an optional stop,
// or a single index. The zero value is the unbounded range [0, ∞) that no
// caller has narrowed; an explicit [0:] is distinct from it.
type Selection struct {
	start    int
	stop     int
	bounded  bool
	index    bool
	narrowed bool
}

// All returns the unbounded selection.
func All() Selection { return Selection{} }

// Range returns [start, stop).
func Range(start, stop int) (Selection, error) {
	if start < 0 || stop < 0 {
		return Selection{}, fmt.Errorf("%w: [%d:%d]", ErrNegative, start, stop)
	}
	return Selection{start: start, stop: stop, bounded: true, narrowed: true}, nil
}

// From returns [start, ∞).
func From(start int) (Selection, error) {
	if start < 0 {
		return Selection{}, fmt.Errorf("%w: [%d:]", ErrNegative, start)
	}
	return Selection{start: start, narrowed: true}, nil
}

// Index returns the single-index selection i.
func Index(i int) (Selection, error) {
	if i < 0 {
		return Selection{}, fmt.Errorf("%w: [%d]", ErrNegative, i)
	}
	return Selection{start: i, index: true, narrowed: true}, nil
}

// Start returns the range start, or the index for single-index selections.
func (s Selection) Start() int { return s.start }

// Stop returns the range stop and whether it is bounded.
func (s Selection) Stop() (int, bool) { return s.stop, s.bounded }

// IsIndex reports whether s is a single index.
func (s Selection) IsIndex() bool { return s.index }

// IsAll reports whether s is the unbounded range no caller has narrowed.
func (s Selection) IsAll() bool { return !s.narrowed }

// IsEmpty reports whether s is a range that can select nothing.
func (s Selection) IsEmpty() bool { return !s.index && s.bounded && s.stop <= s.start }

// Limits converts s to an offset/count pair. maxResults caps open-ended
// ranges; ok is false when no limits need to be sent at all.
func (s Selection) Limits(maxResults int) (offset, count int, ok bool) {
	switch {
	case s.index:
		return s.start, 1, true
	case s.IsAll():
		return 0, 0, false
	case !s.bounded:
		return s.start, maxResults, true
	default:
		return s.start, max(0, s.stop-s.start), true
	}
}

// Apply returns the part of a sequence of length n that s selects, as
// [lo, hi) indices clamped to n.
func (s Selection) Apply(n int) (lo, hi int) {
	if s.index {
		if s.start >= n {
			return n, n
		}
		return s.start, s.start + 1
	}
	lo = min(s.start, n)
	hi = n
	if s.bounded {
		hi = min(s.stop, n)
	}
	return lo, max(lo, hi)
}

// Mix returns the selection equivalent to applying j and then k to the same
// zero-based sequence, so that seq[Mix(j, k)] == seq[j][k].
func Mix(j, k Selection) (Selection, error) {
	if j.index {
		return Selection{}, ErrNotRange
	}
	if j.start < 0 || k.start < 0 || (k.bounded && k.stop < 0) {
		return Selection{}, ErrNegative
	}

	if k.index {
		return Selection{start: j.start + k.start, index: true, narrowed: true}, nil
	}

	// min(j.stop, k.stop+j.start) where unbounded sorts above everything.
	out := Selection{start: j.start + k.start, narrowed: j.narrowed || k.narrowed}
	switch {
	case j.bounded && k.bounded:
		out.stop, out.bounded = min(j.stop, k.stop+j.start), true
	case j.bounded:
		out.stop, out.bounded = j.stop, true
	case k.bounded:
		out.stop, out.bounded = k.stop+j.start, true
	}
	return out, nil
}
