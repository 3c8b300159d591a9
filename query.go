package lazyq

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"

	"github.com/kailas-cloud/lazyq/internal/domain/search/filter"
	"github.com/kailas-cloud/lazyq/internal/domain/search/selection"
)

// Terms maps lookup keys to filter values. A key is a field name with an
// optional comparator suffix: "field" (equality), "field__in" (membership,
// value is a slice), "field__gte" and "field__lte" (inclusive bounds).
type Terms map[string]any

type stepKind int

const (
	stepQuery stepKind = iota
	stepFilter
	stepExclude
	stepOrderBy
	stepGroupBy
	stepWeight
	stepHighlight
	stepValues
	stepValuesDict
)

// step is one recorded builder call. Only the payload for its kind is set.
type step struct {
	kind    stepKind
	text    string
	triples []filter.Triple
	fields  []string
	weights map[string]int
	group   GroupBy
	hl      highlightOptions
}

// Query is a lazy, immutable search over entities of type T. Every chain
// method returns a new Query; nothing is sent until results are read, and
// then exactly once per Query value.
type Query[T any] struct {
	meta   Meta
	loader Loader[T]
	schema *schemaMeta // nil when T is not a struct
	be     backend
	cfg    Config
	obs    *observer

	steps []step
	sel   selection.Selection
	cell  *cell
}

// New creates a query over meta.Index. The loader hydrates object results
// and may be nil when only Values or ValuesDict results are read.
func New[T any](meta Meta, loader Loader[T], opts ...Option) (*Query[T], error) {
	qc := &queryConfig{cfg: DefaultConfig()}
	for _, o := range opts {
		o.apply(qc)
	}

	if err := meta.validate(); err != nil {
		return nil, fmt.Errorf("lazyq: %w", err)
	}
	if err := qc.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("lazyq: %w: config: %w", ErrInvalidArgument, err)
	}

	schema, err := parseSchema[T]()
	if err != nil && !errors.Is(err, errNotStruct) {
		return nil, err
	}

	obs, err := newObserver(qc.logger, qc.metricsReg)
	if err != nil {
		return nil, err
	}

	be, err := selectBackend(qc, obs)
	if err != nil {
		return nil, err
	}

	return &Query[T]{
		meta:   meta,
		loader: loader,
		schema: schema,
		be:     be,
		cfg:    qc.cfg,
		obs:    obs,
		sel:    selection.All(),
		cell:   &cell{},
	}, nil
}

// Must panics if err is non-nil. It lets fallible chain calls stay inline:
//
//	q := lazyq.Must(s.Filter(lazyq.Terms{"category": 3})).OrderBy("-@rank")
func Must[T any](q *Query[T], err error) *Query[T] {
	if err != nil {
		panic(err)
	}
	return q
}

// clone copies the query with a fresh, unevaluated cache cell.
func (q *Query[T]) clone(next ...step) *Query[T] {
	n := *q
	n.steps = append(slices.Clone(q.steps), next...)
	n.cell = &cell{}
	return &n
}

// Query sets the full-text query. The last call wins.
func (q *Query[T]) Query(text string) *Query[T] {
	return q.clone(step{kind: stepQuery, text: text})
}

// QueryFields is accepted for API compatibility and has no effect: every
// full-text field is always searched.
func (q *Query[T]) QueryFields(...string) *Query[T] {
	return q
}

// Filter restricts results to documents matching every term.
func (q *Query[T]) Filter(terms Terms) (*Query[T], error) {
	triples, err := q.triples(terms)
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}
	return q.clone(step{kind: stepFilter, triples: triples}), nil
}

// Exclude drops documents matching the terms. It takes exactly one term, or
// a __gte/__lte pair on the same field which excludes the closed range.
func (q *Query[T]) Exclude(terms Terms) (*Query[T], error) {
	if err := checkExcludeArity(terms); err != nil {
		return nil, fmt.Errorf("exclude: %w", err)
	}
	triples, err := q.triples(terms)
	if err != nil {
		return nil, fmt.Errorf("exclude: %w", err)
	}
	return q.clone(step{kind: stepExclude, triples: triples}), nil
}

func checkExcludeArity(terms Terms) error {
	switch len(terms) {
	case 1:
		return nil
	case 2:
		var fields []string
		var cmps []filter.Comparator
		for key := range terms {
			field, cmp, err := filter.Split(key)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
			}
			fields = append(fields, field)
			cmps = append(cmps, cmp)
		}
		slices.Sort(cmps)
		if fields[0] == fields[1] && cmps[0] == filter.GTE && cmps[1] == filter.LTE {
			return nil
		}
	}
	return fmt.Errorf("%w: takes one term or a __gte/__lte pair on the same field, got %d terms",
		ErrInvalidArgument, len(terms))
}

// triples splits lookup keys and converts values through the field's
// converter, in key order so compiled calls are deterministic.
func (q *Query[T]) triples(terms Terms) ([]filter.Triple, error) {
	keys := slices.Sorted(maps.Keys(terms))

	out := make([]filter.Triple, 0, len(keys))
	for _, key := range keys {
		field, cmp, err := filter.Split(key)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
		if field == "" {
			return nil, fmt.Errorf("%w: empty field in %q", ErrInvalidArgument, key)
		}
		values, err := q.convert(field, cmp, terms[key])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		out = append(out, filter.Triple{Field: field, Cmp: cmp, Values: values})
	}
	return out, nil
}

func (q *Query[T]) convert(field string, cmp filter.Comparator, v any) ([]int64, error) {
	conv := q.meta.converter(field)

	if cmp != filter.In {
		if isList(v) {
			return nil, fmt.Errorf("%w: %q takes a single value, got %T", ErrInvalidArgument, string(cmp), v)
		}
		n, err := conv(v)
		if err != nil {
			return nil, err
		}
		return []int64{n}, nil
	}

	if !isList(v) {
		return nil, fmt.Errorf("%w: \"in\" takes a slice, got %T", ErrInvalidArgument, v)
	}
	rv := reflect.ValueOf(v)
	if rv.Len() == 0 {
		return nil, fmt.Errorf("%w: \"in\" takes at least one value", ErrInvalidArgument)
	}
	out := make([]int64, rv.Len())
	for i := range rv.Len() {
		n, err := conv(rv.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

// isList reports whether v is a slice or array, excluding []byte.
func isList(v any) bool {
	if _, ok := v.([]byte); ok {
		return false
	}
	k := reflect.ValueOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

// OrderBy sets the sort. A "-" prefix sorts descending; "@rank" sorts by
// relevance with document id as tie-breaker. The last call wins; with no
// call, Meta.Ordering or "-@rank" applies.
func (q *Query[T]) OrderBy(fields ...string) *Query[T] {
	return q.clone(step{kind: stepOrderBy, fields: slices.Clone(fields)})
}

// Weight sets per-field weights in [MinWeight, MaxWeight]. Weights merge
// over Meta.Weights and earlier calls.
func (q *Query[T]) Weight(w map[string]int) (*Query[T], error) {
	if err := checkWeights(w); err != nil {
		return nil, fmt.Errorf("weight: %w", err)
	}
	return q.clone(step{kind: stepWeight, weights: maps.Clone(w)}), nil
}

// GroupBy collapses results sharing attr. Groups sort by sort fields, in
// OrderBy syntax, defaulting to DefaultGroupSort. The last call wins.
func (q *Query[T]) GroupBy(attr string, groupSort ...string) *Query[T] {
	if len(groupSort) == 0 {
		groupSort = []string{DefaultGroupSort}
	}
	return q.clone(step{kind: stepGroupBy, group: GroupBy{Attr: attr, Sort: slices.Clone(groupSort)}})
}

// Values switches results to tuples of the given attributes, in order.
func (q *Query[T]) Values(fields ...string) (*Query[T], error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("values: %w: at least one field is required", ErrInvalidArgument)
	}
	return q.clone(step{kind: stepValues, fields: slices.Clone(fields)}), nil
}

// ValuesDict switches results to maps of the given attributes. With no
// fields every attribute is returned, plus "id".
func (q *Query[T]) ValuesDict(fields ...string) *Query[T] {
	return q.clone(step{kind: stepValuesDict, fields: slices.Clone(fields)})
}

// Slice narrows results to [start, stop) of the current selection. On an
// evaluated query it slices the cached results without a new request.
func (q *Query[T]) Slice(start, stop int) (*Query[T], error) {
	k, err := selection.Range(start, stop)
	if err != nil {
		return nil, fmt.Errorf("slice: %w: %w", ErrInvalidArgument, err)
	}
	return q.narrow(k)
}

// Offset drops the first start results of the current selection.
func (q *Query[T]) Offset(start int) (*Query[T], error) {
	k, err := selection.From(start)
	if err != nil {
		return nil, fmt.Errorf("offset: %w: %w", ErrInvalidArgument, err)
	}
	return q.narrow(k)
}

func (q *Query[T]) narrow(k selection.Selection) (*Query[T], error) {
	mixed, err := selection.Mix(q.sel, k)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	n := q.clone()
	n.sel = mixed
	if ev := q.cell.cached(); ev != nil {
		lo, hi := k.Apply(len(ev.matches))
		n.cell = cachedCell(&evaluation{plan: ev.plan, matches: ev.matches[lo:hi:hi]})
	}
	return n, nil
}

// State reports where the query is in its evaluation.
func (q *Query[T]) State() State {
	return q.cell.current()
}

// Count returns the number of matches in the current selection.
func (q *Query[T]) Count(ctx context.Context) (int, error) {
	ev, err := q.evaluate(ctx)
	if err != nil {
		return 0, err
	}
	return len(ev.matches), nil
}

// Results returns the current selection, materialized in the chosen shape.
func (q *Query[T]) Results(ctx context.Context) ([]Result[T], error) {
	ev, err := q.evaluate(ctx)
	if err != nil {
		return nil, err
	}
	return q.project(ctx, ev, ev.matches)
}

// At returns the i-th result of the current selection. An unevaluated query
// fetches just that result.
func (q *Query[T]) At(ctx context.Context, i int) (Result[T], error) {
	var zero Result[T]
	if i < 0 {
		return zero, fmt.Errorf("at: %w: negative index %d", ErrInvalidArgument, i)
	}

	if ev := q.cell.cached(); ev != nil {
		if i >= len(ev.matches) {
			return zero, fmt.Errorf("at %d: %w", i, ErrOutOfRange)
		}
		return q.first(ctx, ev, ev.matches[i:i+1], i)
	}

	k, _ := selection.Index(i)
	mixed, err := selection.Mix(q.sel, k)
	if err != nil {
		return zero, fmt.Errorf("at: %w: %w", ErrInvalidArgument, err)
	}
	if stop, bounded := q.sel.Stop(); bounded && mixed.Start() >= stop {
		return zero, fmt.Errorf("at %d: %w", i, ErrOutOfRange)
	}

	n := q.clone()
	n.sel = mixed
	ev, err := n.evaluate(ctx)
	if err != nil {
		return zero, err
	}
	return n.first(ctx, ev, ev.matches, i)
}

func (q *Query[T]) first(ctx context.Context, ev *evaluation, matches []Match, i int) (Result[T], error) {
	rs, err := q.project(ctx, ev, matches)
	if err != nil {
		return Result[T]{}, err
	}
	if len(rs) == 0 {
		return Result[T]{}, fmt.Errorf("at %d: %w", i, ErrOutOfRange)
	}
	return rs[0], nil
}

// IDs returns the entity ids of the current selection: the Meta.IDField
// attribute when set, the document id otherwise.
func (q *Query[T]) IDs(ctx context.Context) ([]uint64, error) {
	ev, err := q.evaluate(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, len(ev.matches))
	for i, m := range ev.matches {
		if ids[i], err = q.entityID(m); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

func (q *Query[T]) entityID(m Match) (uint64, error) {
	if q.meta.IDField == "" {
		return m.ID, nil
	}
	v, ok := m.Attrs[q.meta.IDField]
	if !ok {
		return 0, fmt.Errorf("%w: document %d has no %q attribute", ErrInvalidArgument, m.ID, q.meta.IDField)
	}
	if u, ok := v.(uint64); ok {
		return u, nil
	}
	n, err := ToInt64(v)
	if err != nil {
		return 0, fmt.Errorf("id field %q: %w", q.meta.IDField, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: id field %q is negative: %d", ErrInvalidArgument, q.meta.IDField, n)
	}
	return uint64(n), nil
}
