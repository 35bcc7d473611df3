package chat

import (
	"strings"

	"golang.org/x/text/cases"
)

// Query is a parsed search query: every term must appear in the content.
type Query struct {
	terms []string
}

// NewQuery splits q on whitespace and case-folds each term.
func NewQuery(q string) Query {
	fields := strings.Fields(q)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		terms = append(terms, fold(f))
	}
	return Query{terms: terms}
}

// Empty reports whether the query has no terms. An empty query matches nothing.
func (q Query) Empty() bool {
	return len(q.terms) == 0
}

// Terms returns the folded terms.
func (q Query) Terms() []string {
	return q.terms
}

// Match reports whether content contains every term, ignoring case.
func (q Query) Match(content string) bool {
	if q.Empty() {
		return false
	}
	folded := fold(content)
	for _, t := range q.terms {
		if !strings.Contains(folded, t) {
			return false
		}
	}
	return true
}

// Search returns the messages whose content matches q, preserving order.
func Search(messages []Message, q string) []Message {
	query := NewQuery(q)
	out := make([]Message, 0)
	if query.Empty() {
		return out
	}
	for _, m := range messages {
		if query.Match(m.Content) {
			out = append(out, m)
		}
	}
	return out
}

// cases.Caser is stateful, so each call gets its own.
func fold(s string) string {
	return cases.Fold().String(s)
}
