package lazyq

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/kailas-cloud/lazyq/pkg/protocol"
)

// recorder collects the calls made on every fakeClient it hands out.
type recorder struct {
	mu    sync.Mutex
	calls []string

	clients int
	runs    int

	responses []protocol.Response
	runErr    error

	excerpts    []string
	excerptErr  error
	excerptDocs []string
	excerptOpts protocol.ExcerptOptions
	excerptWord string
}

func newRecorder(matches ...Match) *recorder {
	return &recorder{responses: []protocol.Response{{
		Status:     protocol.StatusOK,
		Total:      len(matches),
		TotalFound: len(matches),
		Matches:    matches,
	}}}
}

func (r *recorder) factory() protocol.Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients++
	return &fakeClient{r: r}
}

func (r *recorder) record(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

// called returns the recorded calls to method, without the method name.
func (r *recorder) called(method string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, c := range r.calls {
		name, args, _ := strings.Cut(c, " ")
		if name == method {
			out = append(out, args)
		}
	}
	return out
}

func (r *recorder) roundTrips() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs
}

type fakeClient struct {
	r *recorder
}

func (c *fakeClient) SetServer(host string, port int) { c.r.record("SetServer %s %d", host, port) }
func (c *fakeClient) SetMatchMode(m protocol.MatchMode) {
	c.r.record("SetMatchMode %d", m)
}

func (c *fakeClient) SetRankingMode(m protocol.RankMode) {
	c.r.record("SetRankingMode %d", m)
}

func (c *fakeClient) SetSortMode(m protocol.SortMode, clause string) {
	c.r.record("SetSortMode %d %s", m, clause)
}

func (c *fakeClient) SetFilter(attr string, values []int64, exclude bool) {
	c.r.record("SetFilter %s %v %t", attr, values, exclude)
}

func (c *fakeClient) SetFilterRange(attr string, minValue, maxValue int64, exclude bool) {
	c.r.record("SetFilterRange %s %d %d %t", attr, minValue, maxValue, exclude)
}

func (c *fakeClient) SetGroupBy(attr string, fn protocol.GroupFunc, groupSort string) {
	c.r.record("SetGroupBy %s %d %s", attr, fn, groupSort)
}

func (c *fakeClient) SetFieldWeights(w map[string]int) { c.r.record("SetFieldWeights %v", w) }
func (c *fakeClient) SetLimits(offset, limit int)      { c.r.record("SetLimits %d %d", offset, limit) }
func (c *fakeClient) AddQuery(query, index string)     { c.r.record("AddQuery %s|%s", query, index) }

func (c *fakeClient) RunQueries(ctx context.Context) ([]protocol.Response, error) {
	c.r.record("RunQueries")
	c.r.mu.Lock()
	defer c.r.mu.Unlock()
	c.r.runs++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.r.runErr != nil {
		return nil, c.r.runErr
	}
	return c.r.responses, nil
}

func (c *fakeClient) BuildExcerpts(
	_ context.Context, docs []string, index, words string, opts protocol.ExcerptOptions,
) ([]string, error) {
	c.r.record("BuildExcerpts %s", index)
	c.r.mu.Lock()
	defer c.r.mu.Unlock()
	c.r.excerptDocs = slices.Clone(docs)
	c.r.excerptWord = words
	c.r.excerptOpts = opts
	if c.r.excerptErr != nil {
		return nil, c.r.excerptErr
	}
	if c.r.excerpts != nil {
		return c.r.excerpts, nil
	}
	return docs, nil
}

// biscuit is the entity used across tests.
type biscuit struct {
	ID      uint64 `lazyq:"id,id"`
	Name    string `lazyq:"name"`
	Content string `lazyq:"content"`
	Color   string `lazyq:"color"`
}

var biscuitMeta = Meta{
	Index:         "biscuit",
	FilterMapping: map[string]Converter{"a": CRC32},
}

// biscuitStore is an in-memory Loader keyed by id.
type biscuitStore map[uint64]biscuit

func (s biscuitStore) Load(_ context.Context, ids []uint64) (map[uint64]biscuit, error) {
	out := make(map[uint64]biscuit, len(ids))
	for _, id := range ids {
		if b, ok := s[id]; ok {
			out[id] = b
		}
	}
	return out, nil
}

func newTestQuery(t *testing.T, meta Meta, loader Loader[biscuit], r *recorder, opts ...Option) *Query[biscuit] {
	t.Helper()
	opts = append([]Option{WithClientFactory(r.factory)}, opts...)
	q, err := New(meta, loader, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return q
}

func matches(ids ...uint64) []Match {
	out := make([]Match, len(ids))
	for i, id := range ids {
		out[i] = Match{ID: id, Weight: 11111, Attrs: map[string]any{}}
	}
	return out
}
