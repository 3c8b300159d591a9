// Package order turns order-by pseudo-fields into extended sort clauses.
package order

import "strings"

// Rank is the relevance pseudo-field. It sorts by weight with id as the
// tie-breaker.
const Rank = "@rank"

// Field is one parsed order-by entry.
type Field struct {
	Name string
	Desc bool
}

// Parse reads a "-"-prefixed field name.
func Parse(f string) Field {
	if name, ok := strings.CutPrefix(f, "-"); ok {
		return Field{Name: name, Desc: true}
	}
	return Field{Name: f}
}

// Fields parses fields and expands the rank pseudo-field.
func Fields(fields []string) []Field {
	out := make([]Field, 0, len(fields)+1)
	for _, f := range fields {
		p := Parse(f)
		if p.Name == Rank {
			out = append(out, Field{Name: "@weight", Desc: p.Desc}, Field{Name: "@id"})
			continue
		}
		out = append(out, p)
	}
	return out
}

// Expand returns the extended sort clause for fields, e.g.
// ["-@rank", "age"] -> "@weight DESC, @id ASC, age ASC".
func Expand(fields []string) string {
	parts := make([]string, 0, len(fields)+1)
	for _, f := range Fields(fields) {
		dir := " ASC"
		if f.Desc {
			dir = " DESC"
		}
		parts = append(parts, f.Name+dir)
	}
	return strings.Join(parts, ", ")
}
