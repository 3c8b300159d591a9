// Package text prepares user query text for the extended query syntax.
package text

import (
	"strings"
	"unicode"
)

// Sanitize neutralizes syntax that breaks extended queries: a hyphen that
// follows a non-space is escaped so it is not read as NOT, slashes are
// escaped, and the ^ and $ anchors are removed.
func Sanitize(q string) string {
	var b strings.Builder
	b.Grow(len(q) + 8)

	prevSpace := true
	for _, r := range q {
		switch r {
		case '^', '$':
			// Dropped, but still count as the non-space before a hyphen.
			prevSpace = false
			continue
		case '-':
			if !prevSpace {
				b.WriteByte('\\')
			}
		case '/':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
		prevSpace = unicode.IsSpace(r)
	}
	return b.String()
}

// Terms splits a raw query into lowercase words, dropping operators and
// punctuation. Used for client-side highlighting.
func Terms(q string) []string {
	fields := strings.FieldsFunc(strings.ToLower(q), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// Markers for text cut from either end of a snippet.
const (
	cutBefore = "... "
	cutAfter  = " ..."
)

// Highlight wraps every whole-word, case-insensitive occurrence of terms in
// doc with before and after. When limit is positive and doc is longer, the
// snippet is cut to limit runes around the first match.
func Highlight(doc string, terms []string, before, after string, limit int) string {
	set := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		set[strings.ToLower(t)] = struct{}{}
	}

	runes := []rune(doc)
	spans := matchSpans(runes, set)

	lo, hi := 0, len(runes)
	if limit > 0 && len(runes) > limit {
		if len(spans) > 0 {
			first := spans[0]
			lo = max(0, first[0]-max(0, limit-(first[1]-first[0]))/2)
		}
		hi = min(len(runes), lo+limit)
		lo = max(0, hi-limit)
	}

	var b strings.Builder
	b.Grow(hi - lo + len(spans)*(len(before)+len(after)) + len(cutBefore) + len(cutAfter))
	if lo > 0 {
		b.WriteString(cutBefore)
	}
	pos := lo
	for _, s := range spans {
		start, end := max(s[0], lo), min(s[1], hi)
		if start >= end {
			continue
		}
		b.WriteString(string(runes[pos:start]))
		b.WriteString(before)
		b.WriteString(string(runes[start:end]))
		b.WriteString(after)
		pos = end
	}
	b.WriteString(string(runes[pos:hi]))
	if hi < len(runes) {
		b.WriteString(cutAfter)
	}
	return b.String()
}

// matchSpans returns [start, end) rune offsets of words found in set.
func matchSpans(runes []rune, set map[string]struct{}) [][2]int {
	var spans [][2]int
	start := -1
	for i := 0; i <= len(runes); i++ {
		word := i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]))
		switch {
		case word && start < 0:
			start = i
		case !word && start >= 0:
			if _, ok := set[strings.ToLower(string(runes[start:i]))]; ok {
				spans = append(spans, [2]int{start, i})
			}
			start = -1
		}
	}
	return spans
}
