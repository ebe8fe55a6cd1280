// Package match finds text nodes whose content names a product.
package match

import (
	"regexp"
	"strings"

	"github.com/agentic-research/pricetag/internal/graph"
)

// Normalize trims surrounding whitespace and lowercases s.
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Matcher tests node text against one normalized product name.
type Matcher struct {
	query string
	word  *regexp.Regexp
}

// Compile prepares a matcher for productName. It returns nil when the name
// is empty after normalization; a nil Matcher matches nothing.
func Compile(productName string) *Matcher {
	q := Normalize(productName)
	if q == "" {
		return nil
	}
	return &Matcher{
		query: q,
		word:  regexp.MustCompile(`\b` + regexp.QuoteMeta(q) + `\b`),
	}
}

// Match reports whether text equals the query or contains it as a whole word.
func (m *Matcher) Match(text string) bool {
	if m == nil {
		return false
	}
	t := Normalize(text)
	if t == m.query {
		return true
	}
	return m.word.MatchString(t)
}

// FindMatches returns the text nodes whose content matches productName, in
// the order of nodes. Non-text nodes are never returned.
func FindMatches(productName string, nodes []*graph.Node) []*graph.Node {
	m := Compile(productName)
	if m == nil {
		return nil
	}
	var out []*graph.Node
	for _, n := range nodes {
		if !graph.IsText(n) {
			continue
		}
		if m.Match(n.Characters) {
			out = append(out, n)
		}
	}
	return out
}
