package lazyq

import (
	"context"
	"errors"
	"net"
	"slices"
	"testing"

	"github.com/kailas-cloud/lazyq/pkg/protocol"
)

func excerptBiscuits() biscuitStore {
	return biscuitStore{
		123: {ID: 123, Name: "sesame", Content: "has sesame foo"},
		124: {ID: 124, Name: "dog", Content: "biscuit fit for a dog"},
		125: {ID: 125, Name: "cup", Content: "has sesame façon foo"},
	}
}

func contentMatch(id uint64) Match {
	return Match{ID: id, Weight: 11111, Attrs: map[string]any{"name": "sesame", "content": "has sesame foo"}}
}

func TestExcerpt_NotEvaluated(t *testing.T) {
	r := newRecorder(contentMatch(123))
	s := newTestQuery(t, biscuitMeta, excerptBiscuits(), r).
		Query("foo").
		Highlight([]string{"name", "content"}, BeforeMatch("<i>"), AfterMatch("</i>"))

	results, err := s.Results(context.Background())
	if err != nil {
		t.Fatalf("Results: %v", err)
	}

	// Results from one query used with another, unevaluated one.
	s2 := newTestQuery(t, biscuitMeta, excerptBiscuits(), r).
		Highlight([]string{"name", "content"}, BeforeMatch("<i>"), AfterMatch("</i>"))
	_, err = s2.Excerpt(context.Background(), results[0])
	if !errors.Is(err, ErrExcerptNotEvaluated) || !errors.Is(err, ErrExcerpt) {
		t.Errorf("err = %v, want ErrExcerptNotEvaluated", err)
	}
	if got := r.called("BuildExcerpts"); len(got) != 0 {
		t.Errorf("BuildExcerpts called %d times, want 0", len(got))
	}
}

func TestExcerpt_FieldsNotSubset(t *testing.T) {
	r := newRecorder(contentMatch(123))
	s := Must(newTestQuery(t, biscuitMeta, nil, r).
		Query("foo").
		Highlight([]string{"name"}).
		Values("content"))

	results, err := s.Results(context.Background())
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	_, err = s.Excerpt(context.Background(), results[0])
	if !errors.Is(err, ErrExcerptFieldsNotSubset) || !errors.Is(err, ErrExcerpt) {
		t.Errorf("err = %v, want ErrExcerptFieldsNotSubset", err)
	}
}

func TestExcerpt_Object(t *testing.T) {
	r := newRecorder(contentMatch(123))
	r.excerpts = []string{"sesame", "has sesame <i>foo</i>"}
	s := newTestQuery(t, biscuitMeta, excerptBiscuits(), r).
		Query("foo").
		Highlight([]string{"name", "content"}, BeforeMatch("<i>"), AfterMatch("</i>"))
	ctx := context.Background()

	results, err := s.Results(ctx)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	got, err := s.Excerpt(ctx, results[0])
	if err != nil {
		t.Fatalf("Excerpt: %v", err)
	}

	if !slices.Equal(got, r.excerpts) {
		t.Errorf("excerpt = %q, want %q", got, r.excerpts)
	}
	if !slices.Equal(r.excerptDocs, []string{"sesame", "has sesame foo"}) {
		t.Errorf("docs = %q", r.excerptDocs)
	}
	if r.excerptWord != "foo" {
		t.Errorf("words = %q, want foo", r.excerptWord)
	}
	wantOpts := protocol.ExcerptOptions{BeforeMatch: "<i>", AfterMatch: "</i>"}
	if r.excerptOpts != wantOpts {
		t.Errorf("opts = %+v, want %+v", r.excerptOpts, wantOpts)
	}
	assertCalls(t, r, "BuildExcerpts", "biscuit")
}

func TestExcerpt_LimitFields(t *testing.T) {
	r := newRecorder(contentMatch(123))
	s := Must(newTestQuery(t, biscuitMeta, nil, r).
		Query("foo").
		Highlight([]string{"content"}, BeforeMatch("<i>"), AfterMatch("</i>")).
		Values("content"))
	ctx := context.Background()

	results, err := s.Results(ctx)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if _, err := s.Excerpt(ctx, results[0]); err != nil {
		t.Fatalf("Excerpt: %v", err)
	}
	if !slices.Equal(r.excerptDocs, []string{"has sesame foo"}) {
		t.Errorf("docs = %q, want [has sesame foo]", r.excerptDocs)
	}
}

func TestExcerpt_Unicode(t *testing.T) {
	r := newRecorder(Match{ID: 125, Attrs: map[string]any{"content": "has sesame façon foo"}})
	r.excerpts = []string{"has sesame façon <i>foo</i>"}
	s := Must(newTestQuery(t, biscuitMeta, nil, r).
		Query("foo").
		Highlight([]string{"content"}, BeforeMatch("<i>"), AfterMatch("</i>")).
		Values("content"))
	ctx := context.Background()

	results, err := s.Results(ctx)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	got, err := s.Excerpt(ctx, results[0])
	if err != nil {
		t.Fatalf("Excerpt: %v", err)
	}
	if got[0] != "has sesame façon <i>foo</i>" {
		t.Errorf("excerpt = %q", got[0])
	}
	if r.excerptDocs[0] != "has sesame façon foo" {
		t.Errorf("docs = %q", r.excerptDocs)
	}
}

func TestExcerpt_MetaDefaults(t *testing.T) {
	meta := biscuitMeta
	meta.Excerpt = protocol.ExcerptOptions{BeforeMatch: "[", AfterMatch: "]", Limit: 5}

	r := newRecorder(contentMatch(123))
	s := newTestQuery(t, meta, excerptBiscuits(), r).
		Query("foo").
		Highlight([]string{"content"}, AfterMatch("}"))
	ctx := context.Background()

	results, err := s.Results(ctx)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if _, err := s.Excerpt(ctx, results[0]); err != nil {
		t.Fatalf("Excerpt: %v", err)
	}
	want := protocol.ExcerptOptions{BeforeMatch: "[", AfterMatch: "}", Limit: 5}
	if r.excerptOpts != want {
		t.Errorf("opts = %+v, want %+v", r.excerptOpts, want)
	}
}

func TestExcerpt_NoFields(t *testing.T) {
	r := newRecorder(contentMatch(123))
	s := newTestQuery(t, biscuitMeta, excerptBiscuits(), r).Query("foo")
	ctx := context.Background()

	results, err := s.Results(ctx)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if _, err := s.Excerpt(ctx, results[0]); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestExcerpt_TransportErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"timeout", &net.OpError{Op: "read", Err: timeoutErr{}}, ErrExcerptTimeout},
		{"deadline", context.DeadlineExceeded, ErrExcerptTimeout},
		{"socket", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, ErrExcerptSocket},
		{"other", errors.New("broken pipe"), ErrExcerptSocket},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRecorder(contentMatch(123))
			r.excerptErr = tt.err
			s := Must(newTestQuery(t, biscuitMeta, nil, r).
				Query("foo").
				Highlight([]string{"content"}).
				Values("content"))
			ctx := context.Background()

			results, err := s.Results(ctx)
			if err != nil {
				t.Fatalf("Results: %v", err)
			}
			_, err = s.Excerpt(ctx, results[0])
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			if !errors.Is(err, ErrExcerpt) {
				t.Errorf("err = %v, want it to match ErrExcerpt", err)
			}
			if !errors.Is(err, tt.err) {
				t.Errorf("err = %v, want it to wrap %v", err, tt.err)
			}
		})
	}
}

func TestExcerpt_CountMismatch(t *testing.T) {
	r := newRecorder(contentMatch(123))
	r.excerpts = []string{"one", "two"}
	s := Must(newTestQuery(t, biscuitMeta, nil, r).
		Query("foo").
		Highlight([]string{"content"}).
		Values("content"))
	ctx := context.Background()

	results, err := s.Results(ctx)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	_, err = s.Excerpt(ctx, results[0])
	if !errors.Is(err, ErrExcerpt) {
		t.Fatalf("err = %v, want ErrExcerpt", err)
	}
	if errors.Is(err, ErrExcerptSocket) || errors.Is(err, ErrExcerptTimeout) {
		t.Errorf("err = %v, want a malformed-response error, not a transport one", err)
	}
}

func TestExcerpt_OneRequestPerCall(t *testing.T) {
	r := newRecorder(contentMatch(123), contentMatch(124))
	s := newTestQuery(t, biscuitMeta, excerptBiscuits(), r).
		Query("foo").
		Highlight([]string{"name", "content"})
	ctx := context.Background()

	results, err := s.Results(ctx)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	for _, res := range results {
		if _, err := s.Excerpt(ctx, res); err != nil {
			t.Fatalf("Excerpt: %v", err)
		}
	}
	if got := len(r.called("BuildExcerpts")); got != 2 {
		t.Errorf("BuildExcerpts calls = %d, want 2", got)
	}
	if got := r.roundTrips(); got != 1 {
		t.Errorf("round trips = %d, want 1", got)
	}
}
