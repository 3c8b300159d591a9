package lazyq

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lazyq/internal/db"
	dbRedis "github.com/kailas-cloud/lazyq/internal/db/redis"
	"github.com/kailas-cloud/lazyq/internal/domain/search/filter"
	"github.com/kailas-cloud/lazyq/internal/domain/search/order"
	"github.com/kailas-cloud/lazyq/internal/domain/search/shape"
	"github.com/kailas-cloud/lazyq/internal/domain/search/text"
	"github.com/kailas-cloud/lazyq/pkg/protocol"
)

const defaultReadinessTimeout = 10 * time.Second

// Excerpt defaults used by the FT backend when neither Highlight nor
// Meta.Excerpt sets them.
const (
	DefaultBeforeMatch  = "<b>"
	DefaultAfterMatch   = "</b>"
	DefaultExcerptLimit = 256
)

// FTBackend runs queries through FT.SEARCH on Redis 8+ with the query
// engine. Grouping and field weights have no FT.SEARCH equivalent and are
// ignored; excerpts are built client-side from the raw query words.
type FTBackend struct {
	store  db.Store
	logger *zap.Logger
}

// FTOption configures an FTBackend.
type FTOption func(*ftConfig)

type ftConfig struct {
	addrs     []string
	password  string
	logger    *zap.Logger
	readiness time.Duration
	store     db.Store
}

// WithRedis sets the Redis address and password.
func WithRedis(addr, password string) FTOption {
	return WithRedisAddrs([]string{addr}, password)
}

// WithRedisAddrs sets several seed addresses, e.g. for a cluster.
func WithRedisAddrs(addrs []string, password string) FTOption {
	return func(c *ftConfig) {
		c.addrs = addrs
		c.password = password
	}
}

// WithFTLogger enables structured logging in the backend.
func WithFTLogger(l *zap.Logger) FTOption {
	return func(c *ftConfig) {
		c.logger = l
	}
}

// WithReadinessTimeout bounds the wait for the database on startup.
// Default: 10s.
func WithReadinessTimeout(d time.Duration) FTOption {
	return func(c *ftConfig) {
		c.readiness = d
	}
}

func withStore(s db.Store) FTOption {
	return func(c *ftConfig) {
		c.store = s
	}
}

// NewFTBackend connects to Redis and waits until it answers.
func NewFTBackend(opts ...FTOption) (*FTBackend, error) {
	cfg := &ftConfig{readiness: defaultReadinessTimeout}
	for _, o := range opts {
		o(cfg)
	}
	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if cfg.store != nil {
		return &FTBackend{store: cfg.store, logger: logger}, nil
	}
	if len(cfg.addrs) == 0 {
		return nil, errors.New("lazyq: database address required (use WithRedis)")
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.addrs,
		Password: cfg.password,
	})
	if err != nil {
		return nil, fmt.Errorf("lazyq: create redis store: %w", err)
	}
	if err := store.WaitForReady(context.Background(), cfg.readiness); err != nil {
		store.Close()
		return nil, fmt.Errorf("lazyq: database not ready: %w", err)
	}
	return &FTBackend{store: store, logger: logger}, nil
}

// Close releases the database connection.
func (b *FTBackend) Close() { b.store.Close() }

// Ping checks database connectivity.
func (b *FTBackend) Ping(ctx context.Context) error { return b.store.Ping(ctx) }

// IndexExists reports whether the FT index exists.
func (b *FTBackend) IndexExists(ctx context.Context, index string) (bool, error) {
	return b.store.IndexExists(ctx, index)
}

func (b *FTBackend) name() string { return "ft" }

func (b *FTBackend) search(ctx context.Context, p *plan) (protocol.Response, error) {
	q, err := b.textQuery(p)
	if err != nil {
		return protocol.Response{}, err
	}

	res, err := b.store.Search(ctx, q)
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return protocol.Response{}, fmt.Errorf("%w: index %q not found: %w", ErrSearch, p.index, err)
		}
		return protocol.Response{}, err
	}

	matches := make([]Match, 0, len(res.Entries))
	for _, e := range res.Entries {
		id, ok := docID(e.Key)
		if !ok {
			b.logger.Warn("skipping document with non-numeric key",
				zap.String("index", p.index), zap.String("key", e.Key))
			continue
		}
		matches = append(matches, Match{ID: id, Weight: e.Score, Attrs: parseAttrs(e.Fields)})
	}

	return protocol.Response{
		Status:     protocol.StatusOK,
		Total:      len(matches),
		TotalFound: res.Total,
		Matches:    matches,
	}, nil
}

func (b *FTBackend) textQuery(p *plan) (*db.TextQuery, error) {
	if p.group != nil {
		b.logger.Debug("group_by is not supported by FT.SEARCH, ignoring",
			zap.String("index", p.index), zap.String("attr", p.group.Attr))
	}
	if len(p.weights) > 0 {
		b.logger.Debug("field weights are not supported by FT.SEARCH, ignoring",
			zap.String("index", p.index))
	}

	var must, mustNot []filter.Triple
	for _, f := range p.filters {
		if f.exclude {
			mustNot = append(mustNot, f.Triple)
		} else {
			must = append(must, f.Triple)
		}
	}
	expr, err := filter.NewExpression(must, mustNot)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	q := &db.TextQuery{
		IndexName:    p.index,
		Query:        p.rawQuery,
		Filters:      expr,
		Offset:       p.offset,
		Limit:        p.maxResults,
		ReturnFields: returnFields(p),
		WithScores:   true,
	}
	if p.limited {
		q.Limit = p.limit
	}

	// FT.SEARCH sorts on one attribute; pseudo-fields keep score order.
	fields := order.Fields(p.order)
	if len(fields) > 0 && !strings.HasPrefix(fields[0].Name, "@") {
		q.SortBy = fields[0].Name
		q.SortDesc = fields[0].Desc
	}
	if sortable(fields) > 1 {
		b.logger.Debug("FT.SEARCH sorts by one attribute, ignoring the rest",
			zap.String("index", p.index), zap.Strings("order", p.order))
	}
	return q, nil
}

func sortable(fields []order.Field) int {
	n := 0
	for _, f := range fields {
		if !strings.HasPrefix(f.Name, "@") {
			n++
		}
	}
	return n
}

// returnFields limits the returned hash fields to what the view reads.
// Nil returns every field.
func returnFields(p *plan) []string {
	if p.shape == shape.Object {
		return nil
	}
	out := make([]string, 0, len(p.fields))
	for _, f := range p.fields {
		if f != "id" {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// docID extracts the numeric id from a "prefix:123" key.
func docID(key string) (uint64, bool) {
	i := strings.LastIndexByte(key, ':')
	id, err := strconv.ParseUint(key[i+1:], 10, 64)
	return id, err == nil
}

// parseAttrs converts hash values to int64 or float64 where they parse.
func parseAttrs(fields map[string]string) map[string]any {
	attrs := make(map[string]any, len(fields))
	for k, v := range fields {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			attrs[k] = n
		} else if f, err := strconv.ParseFloat(v, 64); err == nil {
			attrs[k] = f
		} else {
			attrs[k] = v
		}
	}
	return attrs
}

func (b *FTBackend) buildExcerpts(ctx context.Context, docs []string, p *plan) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := p.excerpt
	if opts.BeforeMatch == "" {
		opts.BeforeMatch = DefaultBeforeMatch
	}
	if opts.AfterMatch == "" {
		opts.AfterMatch = DefaultAfterMatch
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultExcerptLimit
	}

	terms := text.Terms(p.rawQuery)
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = text.Highlight(d, terms, opts.BeforeMatch, opts.AfterMatch, opts.Limit)
	}
	return out, nil
}

// HashLoader returns a Loader that reads entities of T from hashes stored
// under prefix+id, mapping hash fields by lazyq struct tags.
func HashLoader[T any](b *FTBackend, prefix string) (Loader[T], error) {
	schema, err := parseSchema[T]()
	if err != nil {
		return nil, err
	}
	return LoaderFunc[T](func(ctx context.Context, ids []uint64) (map[uint64]T, error) {
		keys := make([]string, len(ids))
		for i, id := range ids {
			keys[i] = prefix + strconv.FormatUint(id, 10)
		}
		hashes, err := b.loadHashes(ctx, keys)
		if err != nil {
			return nil, err
		}

		out := make(map[uint64]T, len(ids))
		for i, h := range hashes {
			if len(h) == 0 {
				continue
			}
			v, err := schema.fromHash(ids[i], h)
			if err != nil {
				return nil, fmt.Errorf("decode %s: %w", keys[i], err)
			}
			out[ids[i]] = v.(T)
		}
		return out, nil
	}), nil
}

// loadHashes reads a single hash with HGETALL and several in one pipelined
// round trip. Missing keys come back as empty maps.
func (b *FTBackend) loadHashes(ctx context.Context, keys []string) ([]map[string]string, error) {
	if len(keys) != 1 {
		return b.store.HGetAllMulti(ctx, keys)
	}
	h, err := b.store.HGetAll(ctx, keys[0])
	switch {
	case errors.Is(err, db.ErrKeyNotFound):
		return []map[string]string{nil}, nil
	case err != nil:
		return nil, err
	}
	return []map[string]string{h}, nil
}
