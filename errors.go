package lazyq

import "github.com/kailas-cloud/lazyq/internal/domain"

// Sentinel errors re-exported from the internal domain package.
// Use errors.Is to check: errors.Is(err, lazyq.ErrSearch).
var (
	ErrInvalidArgument = domain.ErrInvalidArgument
	ErrOutOfRange      = domain.ErrOutOfRange
	ErrSearch          = domain.ErrSearch

	ErrExcerpt                = domain.ErrExcerpt
	ErrExcerptNotEvaluated    = domain.ErrExcerptNotEvaluated
	ErrExcerptFieldsNotSubset = domain.ErrExcerptFieldsNotSubset
	ErrExcerptTimeout         = domain.ErrExcerptTimeout
	ErrExcerptSocket          = domain.ErrExcerptSocket
)

// StatusError is returned (wrapped) when the search server reports a failed query.
type StatusError = domain.StatusError
