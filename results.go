package lazyq

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/kailas-cloud/lazyq/internal/domain/search/shape"
	"github.com/kailas-cloud/lazyq/pkg/protocol"
)

// Match is a raw search hit.
type Match = protocol.Match

// Loader hydrates entities by id. Ids it cannot find are left out of the
// returned map.
type Loader[T any] interface {
	Load(ctx context.Context, ids []uint64) (map[uint64]T, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc[T any] func(ctx context.Context, ids []uint64) (map[uint64]T, error)

// Load calls f.
func (f LoaderFunc[T]) Load(ctx context.Context, ids []uint64) (map[uint64]T, error) {
	return f(ctx, ids)
}

// Result is one projected match. Exactly one of Object, Values or Fields is
// populated, depending on the query shape.
type Result[T any] struct {
	Object T
	Values []any
	Fields map[string]any

	match Match
}

// ID returns the document id of the underlying match.
func (r Result[T]) ID() uint64 { return r.match.ID }

// Weight returns the relevance weight of the underlying match.
func (r Result[T]) Weight() float64 { return r.match.Weight }

// Attrs returns the raw match attributes.
func (r Result[T]) Attrs() map[string]any { return r.match.Attrs }

// view projects raw matches into one result shape.
type view[T any] interface {
	project(ctx context.Context, matches []Match) ([]Result[T], error)
	// contentForFields returns the text of each highlight field, in order.
	contentForFields(r Result[T], highlightFields []string) []string
}

func (q *Query[T]) view(p *plan) view[T] {
	switch p.shape {
	case shape.Tuple:
		return tupleView[T]{fields: p.fields}
	case shape.Dict:
		return dictView[T]{fields: p.fields}
	default:
		return objectView[T]{q: q}
	}
}

func (q *Query[T]) project(ctx context.Context, ev *evaluation, matches []Match) ([]Result[T], error) {
	if len(matches) == 0 {
		return []Result[T]{}, nil
	}
	return q.view(ev.plan).project(ctx, matches)
}

// objectView hydrates entities through the loader in search order.
type objectView[T any] struct {
	q *Query[T]
}

func (v objectView[T]) project(ctx context.Context, matches []Match) ([]Result[T], error) {
	if v.q.loader == nil {
		return nil, fmt.Errorf("%w: object results need a loader; use Values or ValuesDict", ErrInvalidArgument)
	}

	ids := make([]uint64, len(matches))
	for i, m := range matches {
		id, err := v.q.entityID(m)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}

	loaded, err := v.q.loader.Load(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load %d entities: %w", len(ids), err)
	}

	out := make([]Result[T], 0, len(ids))
	for i, id := range ids {
		obj, ok := loaded[id]
		if !ok {
			continue
		}
		out = append(out, Result[T]{Object: obj, match: matches[i]})
	}
	return out, nil
}

func (v objectView[T]) contentForFields(r Result[T], highlightFields []string) []string {
	out := make([]string, len(highlightFields))
	for i, f := range highlightFields {
		if v.q.schema != nil {
			if s, ok := v.q.schema.content(r.Object, f); ok {
				out[i] = s
				continue
			}
		}
		if a, ok := r.match.Attrs[f]; ok {
			out[i] = fmt.Sprint(a)
		}
	}
	return out
}

// tupleView returns positional values over the requested fields.
type tupleView[T any] struct {
	fields []string
}

func (v tupleView[T]) project(_ context.Context, matches []Match) ([]Result[T], error) {
	out := make([]Result[T], len(matches))
	for i, m := range matches {
		vals := make([]any, len(v.fields))
		for j, f := range v.fields {
			vals[j] = attrValue(m, f)
		}
		out[i] = Result[T]{Values: vals, match: m}
	}
	return out, nil
}

func (v tupleView[T]) contentForFields(r Result[T], highlightFields []string) []string {
	out := make([]string, len(highlightFields))
	for i, f := range highlightFields {
		if j := slices.Index(v.fields, f); j >= 0 && j < len(r.Values) {
			out[i] = fmt.Sprint(r.Values[j])
		}
	}
	return out
}

// dictView returns field-named values.
type dictView[T any] struct {
	fields []string
}

func (v dictView[T]) project(_ context.Context, matches []Match) ([]Result[T], error) {
	out := make([]Result[T], len(matches))
	for i, m := range matches {
		out[i] = Result[T]{Fields: v.fieldsOf(m), match: m}
	}
	return out, nil
}

func (v dictView[T]) fieldsOf(m Match) map[string]any {
	if len(v.fields) == 0 {
		all := make(map[string]any, len(m.Attrs)+1)
		maps.Copy(all, m.Attrs)
		if _, ok := all["id"]; !ok {
			all["id"] = m.ID
		}
		return all
	}
	out := make(map[string]any, len(v.fields))
	for _, f := range v.fields {
		out[f] = attrValue(m, f)
	}
	return out
}

func (v dictView[T]) contentForFields(r Result[T], highlightFields []string) []string {
	out := make([]string, len(highlightFields))
	for i, f := range highlightFields {
		if a, ok := r.Fields[f]; ok && a != nil {
			out[i] = fmt.Sprint(a)
		}
	}
	return out
}

// attrValue reads a match attribute; "id" falls back to the document id.
func attrValue(m Match, field string) any {
	if a, ok := m.Attrs[field]; ok {
		return a
	}
	if field == "id" {
		return m.ID
	}
	return nil
}
