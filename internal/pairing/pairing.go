// Package pairing associates production methods with the structural test
// methods that appear to exercise them.
//
// The association is heuristic: a test pairs with a production method when
// its type is related by name or file, and its body calls a method with
// the production method's name and arity. Overloads with equal arity are
// not told apart, so one call site may pair with several overloads.
package pairing

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/methodmap/internal/lang"
	"github.com/phobologic/methodmap/internal/model"
	"github.com/phobologic/methodmap/internal/parse"
	"github.com/phobologic/methodmap/internal/resolve"
)

// DefaultMarkers mark an enclosing type as a test carrier.
var DefaultMarkers = []string{"Test"}

// Classifier splits records into production and test methods by the simple
// name of their enclosing type.
type Classifier struct {
	markers []string
}

// NewClassifier returns a Classifier for the given markers, or
// DefaultMarkers when none are given.
func NewClassifier(markers ...string) *Classifier {
	var kept []string
	for _, m := range markers {
		if m = strings.TrimSpace(m); m != "" {
			kept = append(kept, m)
		}
	}
	if len(kept) == 0 {
		kept = DefaultMarkers
	}
	return &Classifier{markers: kept}
}

// IsTest reports whether r is declared in a test carrier type.
func (c *Classifier) IsTest(r model.MethodRecord) bool {
	name := SimpleTypeName(r.EnclosingType)
	for _, m := range c.markers {
		if strings.Contains(name, m) {
			return true
		}
	}
	return false
}

// Partition splits records, preserving order within each part.
func (c *Classifier) Partition(records []model.MethodRecord) (production, tests []model.MethodRecord) {
	for _, r := range records {
		if c.IsTest(r) {
			tests = append(tests, r)
		} else {
			production = append(production, r)
		}
	}
	return production, tests
}

// SimpleTypeName returns the last segment of a type name
// ("pkg.Outer$ParserTest" → "ParserTest").
func SimpleTypeName(enclosingType string) string {
	return resolve.SimpleToken(enclosingType)
}

// Pairer matches tests to production methods. It is not safe for
// concurrent use.
type Pairer struct {
	parser *sitter.Parser
	query  *sitter.Query
	cache  map[int][]parse.Call
}

// New returns a Pairer that scans bodies with the given language.
func New(l *lang.Language) (*Pairer, error) {
	q, err := l.GetCallQuery()
	if err != nil {
		return nil, fmt.Errorf("loading %s call query: %w", l.Name, err)
	}
	return &Pairer{parser: l.NewParser(), query: q}, nil
}

// Pair returns one pairing per (production, test) combination that passes
// the locality, invocation and arity checks, in production order and then
// test order. Each test body is scanned at most once per call.
func (p *Pairer) Pair(production, tests []model.MethodRecord) []model.TestPairing {
	p.cache = make(map[int][]parse.Call, len(tests))
	defer func() { p.cache = nil }()

	var pairings []model.TestPairing
	for i := range production {
		prod := &production[i]
		for j := range tests {
			t := &tests[j]
			if !Related(*prod, *t) {
				continue
			}
			line, ok := invokes(p.calls(j, t.Body), prod.SimpleName, prod.Arity())
			if !ok {
				continue
			}
			pairings = append(pairings, model.TestPairing{
				Production: model.ProvenanceOf(*prod),
				Test:       model.ProvenanceOf(*t),
				CallLine:   line,
			})
		}
	}
	return pairings
}

func (p *Pairer) calls(idx int, body string) []parse.Call {
	if calls, ok := p.cache[idx]; ok {
		return calls
	}
	calls := parse.CallSites(p.parser, p.query, body)
	p.cache[idx] = calls
	return calls
}

// Related reports whether test's type name contains the simple name of
// prod's type, or both were declared in the same file.
func Related(prod, test model.MethodRecord) bool {
	if name := SimpleTypeName(prod.EnclosingType); name != "" &&
		strings.Contains(SimpleTypeName(test.EnclosingType), name) {
		return true
	}
	return prod.File != "" && prod.File == test.File
}

// invokes returns the line of the first call to name with arity arguments.
func invokes(calls []parse.Call, name string, arity int) (int, bool) {
	for _, c := range parse.Named(calls, name) {
		if c.Args == arity {
			return c.Line, true
		}
	}
	return 0, false
}
