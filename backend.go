package lazyq

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lazyq/internal/domain"
	"github.com/kailas-cloud/lazyq/internal/domain/search/filter"
	"github.com/kailas-cloud/lazyq/internal/domain/search/order"
	"github.com/kailas-cloud/lazyq/pkg/protocol"
)

// backend runs compiled plans against a search engine.
type backend interface {
	name() string
	search(ctx context.Context, p *plan) (protocol.Response, error)
	buildExcerpts(ctx context.Context, docs []string, p *plan) ([]string, error)
}

func selectBackend(qc *queryConfig, obs *observer) (backend, error) {
	switch {
	case qc.factory != nil:
		return &protocolBackend{
			newClient: qc.factory,
			host:      qc.cfg.Host,
			port:      qc.cfg.Port,
			logger:    obs.logger,
		}, nil
	case qc.ft != nil:
		return qc.ft, nil
	default:
		return nil, fmt.Errorf("lazyq: %w: search backend required (use WithClientFactory or WithFTBackend)",
			ErrInvalidArgument)
	}
}

// protocolBackend compiles plans into calls on a fresh protocol.Client per
// round trip.
type protocolBackend struct {
	newClient func() protocol.Client
	host      string
	port      int
	logger    *zap.Logger
}

func (b *protocolBackend) name() string { return "protocol" }

func (b *protocolBackend) client() protocol.Client {
	c := b.newClient()
	c.SetServer(b.host, b.port)
	return c
}

// apply issues the plan's setter calls. AddQuery comes last so it captures
// every setting.
func (b *protocolBackend) apply(c protocol.Client, p *plan) {
	c.SetMatchMode(protocol.MatchExtended2)
	c.SetRankingMode(protocol.RankProximityBM25)

	for _, f := range p.filters {
		switch f.Cmp {
		case filter.Eq, filter.In:
			c.SetFilter(f.Field, f.Values, f.exclude)
		default:
			lo, hi, _ := f.Bounds(protocol.MinLong, protocol.MaxLong)
			c.SetFilterRange(f.Field, lo, hi, f.exclude)
		}
	}

	c.SetSortMode(protocol.SortExtended, order.Expand(p.order))

	if p.group != nil {
		c.SetGroupBy(p.group.Attr, protocol.GroupByAttr, order.Expand(p.group.Sort))
	}
	if len(p.weights) > 0 {
		c.SetFieldWeights(p.weights)
	}
	if p.limited {
		c.SetLimits(p.offset, p.limit)
	}

	c.AddQuery(p.query, p.index)
}

func (b *protocolBackend) search(ctx context.Context, p *plan) (protocol.Response, error) {
	c := b.client()
	b.apply(c, p)

	results, err := c.RunQueries(ctx)
	if err != nil {
		return protocol.Response{}, err
	}
	if len(results) == 0 {
		return protocol.Response{}, fmt.Errorf("%w: index %q: empty response", ErrSearch, p.index)
	}

	r := results[0]
	switch r.Status {
	case protocol.StatusError, protocol.StatusRetry:
		return protocol.Response{}, domain.NewStatusError(p.index, r.Error)
	case protocol.StatusWarning:
		b.logger.Warn("search warning",
			zap.String("index", p.index),
			zap.String("warning", r.Warning),
		)
	}
	return r, nil
}

func (b *protocolBackend) buildExcerpts(ctx context.Context, docs []string, p *plan) ([]string, error) {
	out, err := b.client().BuildExcerpts(ctx, docs, p.index, p.query, p.excerpt)
	if err != nil {
		return nil, err
	}
	if len(out) != len(docs) {
		return nil, fmt.Errorf("%w: got %d excerpts for %d documents", domain.ErrExcerpt, len(out), len(docs))
	}
	return out, nil
}
