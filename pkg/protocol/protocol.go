// Package protocol defines the full-text search client contract that lazyq
// compiles queries into. Implementations own the transport: socket I/O, wire
// encoding and ranking internals live behind this interface.
package protocol

import (
	"context"
	"math"
)

// Range filter sentinels: the signed 64-bit bounds used for "unbounded".
const (
	MinLong int64 = math.MinInt64
	MaxLong int64 = math.MaxInt64
)

// MatchMode selects how query words are matched.
type MatchMode int

// Match modes.
const (
	MatchAll MatchMode = iota
	MatchAny
	MatchPhrase
	MatchBoolean
	MatchExtended
	MatchFullScan
	MatchExtended2
)

// RankMode selects the relevance ranking function.
type RankMode int

// Ranking modes.
const (
	RankProximityBM25 RankMode = iota
	RankBM25
	RankNone
	RankWordCount
	RankProximity
	RankMatchAny
	RankFieldMask
	RankSPH04
)

// SortMode selects how the sort clause is interpreted.
type SortMode int

// Sort modes. SortExtended accepts "<field> ASC|DESC, ..." clauses.
const (
	SortRelevance SortMode = iota
	SortAttrDesc
	SortAttrAsc
	SortTimeSegments
	SortExtended
	SortExpr
)

// GroupFunc selects how the group-by attribute is bucketed.
type GroupFunc int

// Group-by functions.
const (
	GroupByDay GroupFunc = iota
	GroupByWeek
	GroupByMonth
	GroupByYear
	GroupByAttr
	GroupByAttrPair
)

// Status is the per-query status reported by the server.
type Status int

// Query statuses.
const (
	StatusOK Status = iota
	StatusError
	StatusRetry
	StatusWarning
)

// Match is a single raw hit: document id, relevance weight and attributes.
type Match struct {
	ID     uint64
	Weight float64
	Attrs  map[string]any
}

// Response is the result of one query in a RunQueries batch.
type Response struct {
	Status     Status
	Error      string
	Warning    string
	Total      int
	TotalFound int
	Matches    []Match
}

// ExcerptOptions configures BuildExcerpts. Zero values mean "server default".
type ExcerptOptions struct {
	BeforeMatch string
	AfterMatch  string
	Limit       int
}

// Client is a stateful search protocol client. Setters accumulate query
// parameters; AddQuery snapshots them into the pending batch and RunQueries
// sends the batch in a single round trip.
//
//nolint:interfacebloat // mirrors the searchd client API one-to-one
type Client interface {
	SetServer(host string, port int)
	SetMatchMode(mode MatchMode)
	SetRankingMode(mode RankMode)
	SetSortMode(mode SortMode, clause string)
	SetFilter(attr string, values []int64, exclude bool)
	SetFilterRange(attr string, minValue, maxValue int64, exclude bool)
	SetGroupBy(attr string, fn GroupFunc, groupSort string)
	SetFieldWeights(weights map[string]int)
	SetLimits(offset, limit int)
	AddQuery(query, index string)
	RunQueries(ctx context.Context) ([]Response, error)
	BuildExcerpts(
		ctx context.Context, docs []string, index, words string, opts ExcerptOptions,
	) ([]string, error)
}
