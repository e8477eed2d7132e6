// Package callgraph builds a caller → callee graph from the instruction
// traces of compiled records.
package callgraph

import (
	"sort"

	"github.com/phobologic/methodmap/internal/jvm"
	"github.com/phobologic/methodmap/internal/model"
)

// Graph is an adjacency structure keyed by method identity. Every call
// target is a node, whether or not it was declared in the input.
type Graph struct {
	succ      map[string]map[string]struct{}
	declared  map[string]model.MethodRecord
	edges     int
	malformed int
}

// Build walks the trace of every record. Each call instruction adds one
// edge from the record to the callee named by the instruction's owner,
// name and descriptor. Repeated calls to the same callee add nothing.
// Instructions whose owner or descriptor cannot be decoded are skipped.
func Build(records []model.MethodRecord) *Graph {
	g := &Graph{
		succ:     make(map[string]map[string]struct{}),
		declared: make(map[string]model.MethodRecord),
	}

	for i := range records {
		r := &records[i]
		caller := r.Identity()
		if _, ok := g.declared[caller]; !ok {
			g.declared[caller] = *r
		}
		g.addNode(caller)

		for _, in := range r.Trace {
			if !in.IsCall() {
				continue
			}
			callee, err := CalleeIdentity(in)
			if err != nil {
				g.malformed++
				continue
			}
			g.addNode(callee)
			if _, dup := g.succ[caller][callee]; dup {
				continue
			}
			g.succ[caller][callee] = struct{}{}
			g.edges++
		}
	}
	return g
}

// CalleeIdentity renders the target of a call instruction as an identity.
func CalleeIdentity(in model.Instruction) (string, error) {
	owner, err := jvm.OwnerName(in.Owner)
	if err != nil {
		return "", err
	}
	params, ret, err := jvm.ParseMethodDescriptor(in.Desc)
	if err != nil {
		return "", err
	}
	return model.FormatIdentity(owner, in.Name, params, ret), nil
}

func (g *Graph) addNode(id string) {
	if g.succ[id] == nil {
		g.succ[id] = make(map[string]struct{})
	}
}

// Successors returns the sorted callees of id. Callee-only and unknown
// identities yield an empty slice.
func (g *Graph) Successors(id string) []string {
	set := g.succ[id]
	out := make([]string, 0, len(set))
	for callee := range set {
		out = append(out, callee)
	}
	sort.Strings(out)
	return out
}

// Nodes returns every identity in the graph, sorted.
func (g *Graph) Nodes() []string {
	out := make([]string, 0, len(g.succ))
	for id := range g.succ {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Edges returns all edges sorted by caller, then callee.
func (g *Graph) Edges() []model.CallEdge {
	edges := make([]model.CallEdge, 0, g.edges)
	for _, caller := range g.Nodes() {
		for _, callee := range g.Successors(caller) {
			edges = append(edges, model.CallEdge{Caller: caller, Callee: callee})
		}
	}
	return edges
}

// Adjacency returns a copy of the graph as identity → sorted callees.
// Every node is a key.
func (g *Graph) Adjacency() map[string][]string {
	adj := make(map[string][]string, len(g.succ))
	for id := range g.succ {
		adj[id] = g.Successors(id)
	}
	return adj
}

// Declared reports whether id belongs to an input record rather than only
// being the target of a call.
func (g *Graph) Declared(id string) bool {
	_, ok := g.declared[id]
	return ok
}

// Record returns the first input record with identity id.
func (g *Graph) Record(id string) (model.MethodRecord, bool) {
	r, ok := g.declared[id]
	return r, ok
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.succ) }

// DeclaredCount returns the number of distinct declared identities.
func (g *Graph) DeclaredCount() int { return len(g.declared) }

// EdgeCount returns the number of distinct edges.
func (g *Graph) EdgeCount() int { return g.edges }

// Malformed returns how many call instructions were skipped.
func (g *Graph) Malformed() int { return g.malformed }
