package chi

import (
	"fmt"

	"github.com/kailas-cloud/lazyq"
	"github.com/kailas-cloud/lazyq/internal/config"
	"github.com/kailas-cloud/lazyq/pkg/protocol"
)

// Doc is the gateway's entity type. Results are always read as field maps.
type Doc = map[string]any

// NewIndexes builds one base query per configured index. Base queries are
// immutable and shared across requests; every request chains its own copy.
func NewIndexes(cfg config.SearchConfig, opts ...lazyq.Option) (map[string]*lazyq.Query[Doc], error) {
	opts = append([]lazyq.Option{lazyq.WithMaxResults(cfg.MaxResults)}, opts...)

	out := make(map[string]*lazyq.Query[Doc], len(cfg.Indexes))
	for name, ic := range cfg.Indexes {
		q, err := lazyq.New[Doc](indexMeta(name, ic), nil, opts...)
		if err != nil {
			return nil, fmt.Errorf("index %s: %w", name, err)
		}
		out[name] = q
	}
	return out, nil
}

func indexMeta(name string, ic config.IndexConfig) lazyq.Meta {
	m := lazyq.Meta{
		Index:    name,
		Ordering: ic.Ordering,
		Weights:  ic.Weights,
		IDField:  ic.IDField,
		Excerpt: protocol.ExcerptOptions{
			BeforeMatch: ic.Excerpt.BeforeMatch,
			AfterMatch:  ic.Excerpt.AfterMatch,
			Limit:       ic.Excerpt.Limit,
		},
	}
	if len(ic.CRC32Fields) > 0 {
		m.FilterMapping = make(map[string]lazyq.Converter, len(ic.CRC32Fields))
		for _, f := range ic.CRC32Fields {
			m.FilterMapping[f] = lazyq.CRC32
		}
	}
	if ic.GroupBy != "" {
		m.GroupBy = &lazyq.GroupBy{Attr: ic.GroupBy}
	}
	return m
}
