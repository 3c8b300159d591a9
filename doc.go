// Package lazyq provides a lazy, chainable full-text query builder for a
// searchd-style protocol client or a Redis FT.SEARCH index.
//
// A Query records builder calls and sends nothing until results are read.
// Every chain method returns a new Query; the original stays usable and
// keeps its own cache, so one base query can be shared and refined freely.
//
// # Protocol backend
//
//	q, _ := lazyq.New[Biscuit](meta, loader,
//	    lazyq.WithServer("127.0.0.1", 3381),
//	    lazyq.WithClientFactory(newClient),
//	)
//	q = lazyq.Must(q.Query("sesame").Filter(lazyq.Terms{"color": "red"}))
//	n, _ := q.Count(ctx)          // one round trip
//	page, _ := q.Slice(0, 10)     // served from the cached results
//
// # FT.SEARCH backend with hash-loaded entities
//
//	type Biscuit struct {
//	    ID      uint64 `lazyq:"id,id"`
//	    Name    string `lazyq:"name"`
//	    Content string `lazyq:"content"`
//	}
//
//	b, _ := lazyq.NewFTBackend(lazyq.WithRedis("localhost:6379", ""))
//	loader, _ := lazyq.HashLoader[Biscuit](b, "biscuit:")
//	q, _ := lazyq.New(lazyq.Meta{Index: "biscuit"}, loader, lazyq.WithFTBackend(b))
//	q = q.Query("sesame").Highlight([]string{"content"})
//	results, _ := q.Results(ctx)
//	snippets, _ := q.Excerpt(ctx, results[0])
//
// # Result shapes
//
// Results are entities by default. Values and ValuesDict switch to attribute
// tuples and maps read straight from the match, with no loader round trip.
package lazyq
