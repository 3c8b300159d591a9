package lazyq

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"
)

// Excerpt builds highlighted snippets for r, one per highlight field (or per
// projected field when Highlight named none). The query must already be
// evaluated, and highlight fields must be among the projected fields when a
// projection was requested.
func (q *Query[T]) Excerpt(ctx context.Context, r Result[T]) ([]string, error) {
	ev := q.cell.cached()
	if ev == nil {
		return nil, ErrExcerptNotEvaluated
	}
	p := ev.plan

	fields := p.highlightFields
	if len(p.fields) > 0 {
		for _, f := range fields {
			if !slices.Contains(p.fields, f) {
				return nil, fmt.Errorf("%w: %q not in %v", ErrExcerptFieldsNotSubset, f, p.fields)
			}
		}
	}
	if len(fields) == 0 {
		fields = p.fields
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no fields to excerpt; call Highlight first", ErrInvalidArgument)
	}

	docs := q.view(p).contentForFields(r, fields)
	out, err := q.be.buildExcerpts(ctx, docs, p)
	q.obs.observeExcerpt(q.be.name(), err)
	if err != nil {
		return nil, q.excerptError(p, err)
	}
	return out, nil
}

func (q *Query[T]) excerptError(p *plan, err error) error {
	if errors.Is(err, ErrExcerpt) {
		q.obs.logger.Error("excerpt failed", zap.String("index", p.index), zap.Error(err))
		return err
	}
	if isTimeout(err) {
		q.obs.logger.Warn("excerpt timed out", zap.String("index", p.index), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrExcerptTimeout, err)
	}
	q.obs.logger.Error("excerpt failed", zap.String("index", p.index), zap.Error(err))
	return fmt.Errorf("%w: %w", ErrExcerptSocket, err)
}
