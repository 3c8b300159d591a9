package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument signals a builder call that failed a usage check.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrOutOfRange signals an index past the end of the result set.
	ErrOutOfRange = errors.New("index out of range")

	// ErrSearch signals a failed search round trip.
	ErrSearch = errors.New("search failed")

	// ErrExcerpt is the parent of every excerpt failure.
	ErrExcerpt = errors.New("excerpt failed")
	// ErrExcerptNotEvaluated signals an excerpt request before the search ran.
	ErrExcerptNotEvaluated = fmt.Errorf("%w: search has not been evaluated", ErrExcerpt)
	// ErrExcerptFieldsNotSubset signals highlight fields outside the projection.
	ErrExcerptFieldsNotSubset = fmt.Errorf("%w: highlight fields must be a subset of the projected fields", ErrExcerpt)
	// ErrExcerptTimeout signals an excerpt request that timed out.
	ErrExcerptTimeout = fmt.Errorf("%w: timed out", ErrExcerpt)
	// ErrExcerptSocket signals any other excerpt transport failure.
	ErrExcerptSocket = fmt.Errorf("%w: transport error", ErrExcerpt)
)

// StatusError carries the message a search server attached to a failed query.
type StatusError struct {
	Index   string
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: index %q: %s", ErrSearch.Error(), e.Index, e.Message)
}

func (e *StatusError) Unwrap() error { return ErrSearch }

// NewStatusError creates a search status error.
func NewStatusError(index, message string) error {
	return &StatusError{Index: index, Message: message}
}
