package db

import "github.com/kailas-cloud/lazyq/internal/domain/search/filter"

// TextQuery is the input for an FT.SEARCH full-text query.
type TextQuery struct {
	IndexName string
	// Query is plain user text; it is escaped by the store. Empty matches all.
	Query   string
	Filters filter.Expression

	// SortBy is a sortable attribute; empty keeps relevance order.
	SortBy   string
	SortDesc bool

	Offset int
	Limit  int

	ReturnFields []string
	WithScores   bool
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
