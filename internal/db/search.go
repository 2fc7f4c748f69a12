package db

import (
	"fmt"
	"strings"
)

// TagMatch is an exact match against a TAG field.
type TagMatch struct {
	Key   string
	Value string
}

// Query renders the match as a RediSearch TAG clause with escaping.
func (m TagMatch) Query() string {
	return fmt.Sprintf("@%s:{%s}", m.Key, EscapeTag(m.Value))
}

// TagFilter is the fixed-shape pre-filter applied to KNN queries: every Must
// match is required, and when Any is non-empty at least one of its groups
// must hold. Within a group all matches are required, so a group expresses
// a conjunction inside the disjunction.
type TagFilter struct {
	Must []TagMatch
	Any  [][]TagMatch
}

// IsEmpty reports whether the filter has no conditions.
func (f TagFilter) IsEmpty() bool {
	return len(f.Must) == 0 && len(f.Any) == 0
}

// Query renders the filter as a RediSearch boolean expression: Must clauses
// joined by space (AND), Any clauses grouped with | (OR). Empty filters
// render as "*".
func (f TagFilter) Query() string {
	if f.IsEmpty() {
		return "*"
	}

	var parts []string
	for _, m := range f.Must {
		parts = append(parts, m.Query())
	}
	if len(f.Any) > 0 {
		anyParts := make([]string, 0, len(f.Any))
		for _, group := range f.Any {
			groupParts := make([]string, 0, len(group))
			for _, m := range group {
				groupParts = append(groupParts, m.Query())
			}
			clause := strings.Join(groupParts, " ")
			if len(groupParts) > 1 {
				clause = "(" + clause + ")"
			}
			anyParts = append(anyParts, clause)
		}
		parts = append(parts, "("+strings.Join(anyParts, " | ")+")")
	}

	return strings.Join(parts, " ")
}

// EscapeTag escapes RediSearch TAG special characters in a value.
func EscapeTag(v string) string {
	return tagEscaper.Replace(v)
}

var tagEscaper = strings.NewReplacer(
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	" ", "\\ ",
)

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	Filter       TagFilter
	Vector       []float32
	K            int
	ReturnFields []string
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
