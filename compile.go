package lazyq

import (
	"maps"
	"slices"

	"github.com/kailas-cloud/lazyq/internal/domain/search/filter"
	"github.com/kailas-cloud/lazyq/internal/domain/search/order"
	"github.com/kailas-cloud/lazyq/internal/domain/search/shape"
	"github.com/kailas-cloud/lazyq/internal/domain/search/text"
	"github.com/kailas-cloud/lazyq/pkg/protocol"
)

// defaultOrdering applies when neither OrderBy nor Meta.Ordering is set.
var defaultOrdering = []string{"-" + order.Rank}

// appliedFilter is a consolidated constraint and whether it is negated.
type appliedFilter struct {
	filter.Triple
	exclude bool
}

// plan is the backend-neutral form of a Query: everything a backend needs to
// run one round trip and everything the result views need afterwards.
type plan struct {
	index string

	rawQuery string
	query    string // sanitized for the extended query syntax

	filters []appliedFilter
	order   []string
	group   *GroupBy
	weights map[string]int

	offset     int
	limit      int
	limited    bool
	empty      bool
	maxResults int

	shape           shape.Shape
	fields          []string
	highlightFields []string
	excerpt         protocol.ExcerptOptions
}

// compile replays the steps in order. Later order, group, highlight and
// shape steps replace earlier ones; filters and weights accumulate.
func (q *Query[T]) compile() *plan {
	p := &plan{
		index:      q.meta.Index,
		weights:    maps.Clone(q.meta.Weights),
		shape:      shape.Object,
		maxResults: q.cfg.MaxResults,
	}
	if p.weights == nil {
		p.weights = make(map[string]int)
	}
	if g := q.meta.GroupBy; g != nil {
		p.group = &GroupBy{Attr: g.Attr, Sort: groupSort(g.Sort)}
	}

	var hl highlightOptions
	for _, s := range q.steps {
		switch s.kind {
		case stepQuery:
			p.rawQuery = s.text
			p.query = text.Sanitize(s.text)
		case stepFilter, stepExclude:
			for _, t := range filter.Consolidate(s.triples) {
				p.filters = append(p.filters, appliedFilter{Triple: t, exclude: s.kind == stepExclude})
			}
		case stepOrderBy:
			p.order = s.fields
		case stepGroupBy:
			g := s.group
			p.group = &g
		case stepWeight:
			maps.Copy(p.weights, s.weights)
		case stepHighlight:
			p.highlightFields = s.fields
			hl = s.hl
		case stepValues:
			p.shape = shape.Tuple
			p.fields = s.fields
		case stepValuesDict:
			p.shape = shape.Dict
			p.fields = s.fields
		}
	}

	if len(p.order) == 0 {
		p.order = q.meta.Ordering
	}
	if len(p.order) == 0 {
		p.order = defaultOrdering
	}

	p.excerpt = hl.resolve(q.meta.Excerpt)
	p.offset, p.limit, p.limited = q.sel.Limits(q.cfg.MaxResults)
	p.empty = q.sel.IsEmpty()
	return p
}

func groupSort(s []string) []string {
	if len(s) == 0 {
		return []string{DefaultGroupSort}
	}
	return slices.Clone(s)
}

// HighlightOption sets one excerpt formatting option.
type HighlightOption func(*highlightOptions)

type highlightOptions struct {
	before *string
	after  *string
	limit  *int
}

// BeforeMatch sets the marker inserted before each matched word.
func BeforeMatch(s string) HighlightOption {
	return func(o *highlightOptions) { o.before = &s }
}

// AfterMatch sets the marker inserted after each matched word.
func AfterMatch(s string) HighlightOption {
	return func(o *highlightOptions) { o.after = &s }
}

// ExcerptLimit sets the maximum excerpt length in characters.
func ExcerptLimit(n int) HighlightOption {
	return func(o *highlightOptions) { o.limit = &n }
}

// resolve fills options left unset from defaults.
func (o highlightOptions) resolve(def protocol.ExcerptOptions) protocol.ExcerptOptions {
	out := def
	if o.before != nil {
		out.BeforeMatch = *o.before
	}
	if o.after != nil {
		out.AfterMatch = *o.after
	}
	if o.limit != nil {
		out.Limit = *o.limit
	}
	return out
}

// Highlight sets the attributes Excerpt builds snippets from and how
// matches are marked. Only the last call's fields and options apply;
// options it leaves unset come from Meta.Excerpt.
func (q *Query[T]) Highlight(fields []string, opts ...HighlightOption) *Query[T] {
	var hl highlightOptions
	for _, o := range opts {
		o(&hl)
	}
	return q.clone(step{kind: stepHighlight, fields: slices.Clone(fields), hl: hl})
}
