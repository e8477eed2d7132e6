// Package parse finds call expressions in method bodies using tree-sitter.
package parse

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/methodmap/internal/lang"
)

// Call is one call expression found in a body.
type Call struct {
	Name string
	Args int
	Line int // 1-based, relative to the body
}

// A body is a method declaration or a bare statement list depending on the
// extractor, so it is tried in both positions. Each prefix ends in exactly
// one newline.
var wrappers = []struct{ prefix, suffix string }{
	{"class __Probe__ {\n", "\n}\n"},
	{"class __Probe__ { void __probe__() {\n", "\n} }\n"},
}

// CallSites returns the call expressions in body, in source order. The
// first wrapping that parses without errors wins; if none does, the one
// that yields the most calls is used. Comments inside an argument list are
// not counted as arguments.
func CallSites(parser *sitter.Parser, query *sitter.Query, body string) []Call {
	if strings.TrimSpace(body) == "" {
		return nil
	}

	var best []Call
	for i, w := range wrappers {
		calls, clean := scan(parser, query, []byte(w.prefix+body+w.suffix))
		if clean {
			return calls
		}
		if i == 0 || len(calls) > len(best) {
			best = calls
		}
	}
	return best
}

func scan(parser *sitter.Parser, query *sitter.Query, source []byte) ([]Call, bool) {
	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, false
	}
	defer tree.Close()

	root := tree.RootNode()
	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(query, root)

	var calls []Call
	for {
		match, ok := qc.NextMatch()
		if !ok {
			break
		}
		match = qc.FilterPredicates(match, source)

		var nameNode, argsNode *sitter.Node
		for _, c := range match.Captures {
			switch query.CaptureNameForId(c.Index) {
			case "name":
				nameNode = c.Node
			case "arguments":
				argsNode = c.Node
			}
		}
		if nameNode == nil || argsNode == nil {
			continue
		}

		calls = append(calls, Call{
			Name: lang.NodeText(nameNode, source),
			Args: countArgs(argsNode),
			// The wrapper prefix occupies the first line.
			Line: int(nameNode.StartPoint().Row),
		})
	}
	return calls, !root.HasError()
}

func countArgs(args *sitter.Node) int {
	n := 0
	for i := 0; i < int(args.NamedChildCount()); i++ {
		switch args.NamedChild(i).Type() {
		case "line_comment", "block_comment", "comment":
		default:
			n++
		}
	}
	return n
}

// Named returns the calls named name.
func Named(calls []Call, name string) []Call {
	var out []Call
	for _, c := range calls {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}
