// Package join reconciles two record collections into matched pairs and
// the records exclusive to either side.
package join

import "github.com/phobologic/methodmap/internal/model"

// Matcher decides whether two records from different origins are the same
// method.
type Matcher interface {
	Matches(a, b model.MethodRecord) bool
}

// MatchFunc adapts an ordinary function to the Matcher interface.
type MatchFunc func(a, b model.MethodRecord) bool

// Matches calls f(a, b).
func (f MatchFunc) Matches(a, b model.MethodRecord) bool { return f(a, b) }

// Join pairs every element of a with the first unconsumed element of b
// that m accepts. The matching is greedy in input order, not a maximum
// bipartite matching. Unmatched elements of a become SourceOnly in a's
// order; unmatched elements of b become CompiledOnly in b's order.
func Join(a, b []model.MethodRecord, m Matcher) model.MatchResult {
	var res model.MatchResult
	consumed := make([]bool, len(b))

	for i := range a {
		matched := false
		for j := range b {
			if consumed[j] || !m.Matches(a[i], b[j]) {
				continue
			}
			consumed[j] = true
			res.Common = append(res.Common, model.Pair{Source: a[i], Compiled: b[j]})
			matched = true
			break
		}
		if !matched {
			res.SourceOnly = append(res.SourceOnly, a[i])
		}
	}

	for j := range b {
		if !consumed[j] {
			res.CompiledOnly = append(res.CompiledOnly, b[j])
		}
	}
	return res
}
