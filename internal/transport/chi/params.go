package chi

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/kailas-cloud/lazyq"
)

// searchParams are the decoded query-string parameters of GET /search/{index}.
type searchParams struct {
	text      *string
	filter    lazyq.Terms
	excludes  []lazyq.Terms
	order     []string
	weights   map[string]int
	fields    []string
	highlight []string
	offset    int
	limit     int
}

// parseSearchParams decodes:
//
//	q=text
//	filter=field:value      (repeatable; field__in:1,2 / field__gte:5 / field__lte:9)
//	exclude=field:value     (repeatable; field:lo..hi excludes a closed range)
//	order=-price,name
//	weight=name:3           (repeatable)
//	fields=name,price
//	highlight=name,content
//	offset=0&limit=20
func parseSearchParams(v url.Values, defaultLimit, maxLimit int) (searchParams, error) {
	p := searchParams{limit: defaultLimit}

	if v.Has("q") {
		text := v.Get("q")
		p.text = &text
	}

	if raw := v["filter"]; len(raw) > 0 {
		p.filter = make(lazyq.Terms, len(raw))
		for _, f := range raw {
			key, value, err := splitPair("filter", f)
			if err != nil {
				return p, err
			}
			if _, dup := p.filter[key]; dup {
				return p, fmt.Errorf("%w: duplicate filter %q", lazyq.ErrInvalidArgument, key)
			}
			p.filter[key] = termValue(key, value)
		}
	}

	for _, e := range v["exclude"] {
		key, value, err := splitPair("exclude", e)
		if err != nil {
			return p, err
		}
		if lo, hi, ok := strings.Cut(value, ".."); ok && !strings.Contains(key, "__") {
			p.excludes = append(p.excludes, lazyq.Terms{key + "__gte": lo, key + "__lte": hi})
			continue
		}
		p.excludes = append(p.excludes, lazyq.Terms{key: termValue(key, value)})
	}

	p.order = splitList(v.Get("order"))
	p.fields = splitList(v.Get("fields"))
	p.highlight = splitList(v.Get("highlight"))
	if len(p.fields) > 0 {
		for _, f := range p.highlight {
			if !slices.Contains(p.fields, f) {
				return p, fmt.Errorf("%w: highlight field %q is not in fields", lazyq.ErrInvalidArgument, f)
			}
		}
	}

	for _, w := range v["weight"] {
		field, value, err := splitPair("weight", w)
		if err != nil {
			return p, err
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return p, fmt.Errorf("%w: weight %q is not an integer", lazyq.ErrInvalidArgument, value)
		}
		if p.weights == nil {
			p.weights = make(map[string]int)
		}
		p.weights[field] = n
	}

	var err error
	if p.offset, err = intParam(v, "offset", 0); err != nil {
		return p, err
	}
	if p.limit, err = intParam(v, "limit", defaultLimit); err != nil {
		return p, err
	}
	if p.offset < 0 {
		return p, fmt.Errorf("%w: offset must not be negative", lazyq.ErrInvalidArgument)
	}
	if p.limit < 1 || p.limit > maxLimit {
		return p, fmt.Errorf("%w: limit must be between 1 and %d, got %d", lazyq.ErrInvalidArgument, maxLimit, p.limit)
	}
	return p, nil
}

// apply chains the parameters onto a base query.
func (p searchParams) apply(q *lazyq.Query[Doc]) (*lazyq.Query[Doc], error) {
	var err error
	if p.text != nil {
		q = q.Query(*p.text)
	}
	if len(p.filter) > 0 {
		if q, err = q.Filter(p.filter); err != nil {
			return nil, err
		}
	}
	for _, e := range p.excludes {
		if q, err = q.Exclude(e); err != nil {
			return nil, err
		}
	}
	if len(p.order) > 0 {
		q = q.OrderBy(p.order...)
	}
	if len(p.weights) > 0 {
		if q, err = q.Weight(p.weights); err != nil {
			return nil, err
		}
	}
	if len(p.highlight) > 0 {
		q = q.Highlight(p.highlight)
	}
	q = q.ValuesDict(p.fields...)
	return q.Slice(p.offset, p.offset+p.limit)
}

func splitPair(param, s string) (string, string, error) {
	key, value, ok := strings.Cut(s, ":")
	if !ok || key == "" {
		return "", "", fmt.Errorf("%w: %s %q must look like field:value", lazyq.ErrInvalidArgument, param, s)
	}
	return key, value, nil
}

func termValue(key, value string) any {
	if strings.HasSuffix(key, "__in") {
		return strings.Split(value, ",")
	}
	return value
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func intParam(v url.Values, name string, def int) (int, error) {
	raw := v.Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not an integer", lazyq.ErrInvalidArgument, name, raw)
	}
	return n, nil
}
