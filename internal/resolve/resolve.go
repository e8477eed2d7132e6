// Package resolve decides whether a structural record and a compiled record
// describe the same method.
//
// Structural records may carry resolved, qualified types or the literal
// spelling from source when resolution failed; compiled records carry
// erased binary names. Comparison therefore happens on simple type tokens
// (generic arguments stripped, last path segment only) and tolerates
// erasure of type variables to the object type.
package resolve

import (
	"regexp"
	"strings"

	"github.com/phobologic/methodmap/internal/model"
)

// DefaultObjectTypes are the spellings of the type that erasure collapses
// unbounded type variables to.
var DefaultObjectTypes = []string{"java.lang.Object", "Object"}

var typeVariable = regexp.MustCompile(`^[A-Z][A-Z0-9]?$`)

// Resolver compares records across origins. The zero value is not usable;
// construct one with New.
type Resolver struct {
	objectTokens map[string]struct{}
}

// New returns a Resolver treating the given spellings as the erased object
// type. With no arguments DefaultObjectTypes is used.
func New(objectTypes ...string) *Resolver {
	if len(objectTypes) == 0 {
		objectTypes = DefaultObjectTypes
	}
	r := &Resolver{objectTokens: make(map[string]struct{}, len(objectTypes))}
	for _, t := range objectTypes {
		r.objectTokens[SimpleToken(t)] = struct{}{}
	}
	return r
}

// Matches reports whether a and b denote the same method. It is symmetric
// and reflexive. Overloads that differ only in the package of a parameter
// type are indistinguishable and match.
func (r *Resolver) Matches(a, b model.MethodRecord) bool {
	if NormalizeTypeName(a.EnclosingType) != NormalizeTypeName(b.EnclosingType) {
		return false
	}
	if a.SimpleName != b.SimpleName {
		return false
	}
	if a.Arity() != b.Arity() {
		return false
	}
	for i := range a.ParameterTypes {
		if !r.paramMatches(SimpleToken(a.ParameterTypes[i]), SimpleToken(b.ParameterTypes[i])) {
			return false
		}
	}

	ra, rb := SimpleToken(a.ReturnType), SimpleToken(b.ReturnType)
	if r.isObject(ra) || r.isObject(rb) {
		return true
	}
	return r.paramMatches(ra, rb)
}

func (r *Resolver) paramMatches(x, y string) bool {
	if x == y {
		return true
	}
	bx, dx := splitArray(x)
	by, dy := splitArray(y)
	if dx != dy {
		return false
	}
	// A type variable compiles to its erasure; only unbounded ones are
	// recognisable here.
	return (r.isObject(bx) && typeVariable.MatchString(by)) ||
		(r.isObject(by) && typeVariable.MatchString(bx))
}

func (r *Resolver) isObject(token string) bool {
	_, ok := r.objectTokens[token]
	return ok
}

// NormalizeTypeName maps the nested-class separator to the package
// separator: "pkg.Outer$Inner" becomes "pkg.Outer.Inner".
func NormalizeTypeName(name string) string {
	return strings.ReplaceAll(strings.TrimSpace(name), "$", ".")
}

// SimpleToken reduces a type spelling to its simple type token.
//
//	java.util.List<java.lang.String>  → List
//	Map.Entry<K, V>[]                 → Entry[]
//	pkg.Outer$Inner                   → Inner
//	String...                         → String[]
func SimpleToken(spelling string) string {
	s := stripGenerics(strings.TrimSpace(spelling))
	s = strings.ReplaceAll(s, " ", "")
	if strings.HasSuffix(s, "...") {
		s = strings.TrimSuffix(s, "...") + "[]"
	}
	s = strings.ReplaceAll(s, "$", ".")
	base, dims := splitArray(s)
	if i := strings.LastIndexByte(base, '.'); i >= 0 {
		base = base[i+1:]
	}
	return base + strings.Repeat("[]", dims)
}

func stripGenerics(s string) string {
	if !strings.ContainsRune(s, '<') {
		return s
	}
	var b strings.Builder
	depth := 0
	for _, c := range s {
		switch {
		case c == '<':
			depth++
		case c == '>':
			if depth > 0 {
				depth--
			}
		case depth == 0:
			b.WriteRune(c)
		}
	}
	return b.String()
}

func splitArray(s string) (string, int) {
	dims := 0
	for strings.HasSuffix(s, "[]") {
		s = s[:len(s)-2]
		dims++
	}
	return s, dims
}
