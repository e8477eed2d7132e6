// Package report renders reconciliation results as output documents.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/phobologic/methodmap/internal/callgraph"
	"github.com/phobologic/methodmap/internal/ingest"
	"github.com/phobologic/methodmap/internal/model"
	"github.com/phobologic/methodmap/internal/reconcile"
)

// Entry is one method in the mapping document: its provenance plus the
// compiled trace when there is one.
type Entry struct {
	model.Provenance
	Instructions []model.Instruction `json:"instructions,omitempty"`
}

// PairEntry is one element of the common partition.
type PairEntry struct {
	Source   Entry `json:"source"`
	Compiled Entry `json:"compiled"`
}

// Mapping is the partitioned mapping document.
type Mapping struct {
	Common       []PairEntry `json:"common"`
	SourceOnly   []Entry     `json:"sourceOnly"`
	CompiledOnly []Entry     `json:"compiledOnly"`
}

// Node is one method of the call-graph document.
type Node struct {
	Identity string  `json:"identity"`
	Declared bool    `json:"declared"`
	File     string  `json:"file,omitempty"`
	Callees  int     `json:"callees"`
	Rank     float64 `json:"rank"`
}

// Metadata summarises the call-graph document.
type Metadata struct {
	TotalMethods    int `json:"totalMethods"`
	TotalEdges      int `json:"totalEdges"`
	DeclaredMethods int `json:"declaredMethods"`
	MalformedCalls  int `json:"malformedCalls"`
}

// CallGraph is the call-graph document. Every node is a key of CallGraph,
// callee-only nodes with an empty list.
type CallGraph struct {
	Methods   []Node              `json:"methods"`
	CallGraph map[string][]string `json:"callGraph"`
	Metadata  Metadata            `json:"metadata"`
}

// NewMapping builds the mapping document.
func NewMapping(m model.MatchResult) Mapping {
	doc := Mapping{
		Common:       make([]PairEntry, 0, len(m.Common)),
		SourceOnly:   make([]Entry, 0, len(m.SourceOnly)),
		CompiledOnly: make([]Entry, 0, len(m.CompiledOnly)),
	}
	for _, p := range m.Common {
		doc.Common = append(doc.Common, PairEntry{Source: entry(p.Source), Compiled: entry(p.Compiled)})
	}
	for _, r := range m.SourceOnly {
		doc.SourceOnly = append(doc.SourceOnly, entry(r))
	}
	for _, r := range m.CompiledOnly {
		doc.CompiledOnly = append(doc.CompiledOnly, entry(r))
	}
	return doc
}

func entry(r model.MethodRecord) Entry {
	return Entry{Provenance: model.ProvenanceOf(r), Instructions: r.Trace}
}

// NewCallGraph builds the call-graph document with nodes in identity order.
func NewCallGraph(g *callgraph.Graph, ranks map[string]float64) CallGraph {
	doc := CallGraph{
		CallGraph: g.Adjacency(),
		Metadata: Metadata{
			TotalMethods:    g.NodeCount(),
			TotalEdges:      g.EdgeCount(),
			DeclaredMethods: g.DeclaredCount(),
			MalformedCalls:  g.Malformed(),
		},
	}
	doc.Methods = make([]Node, 0, g.NodeCount())
	for _, id := range g.Nodes() {
		n := Node{
			Identity: id,
			Callees:  len(doc.CallGraph[id]),
			Rank:     ranks[id],
		}
		if g.Declared(id) {
			n.Declared = true
			r, _ := g.Record(id)
			n.File = r.File
		}
		doc.Methods = append(doc.Methods, n)
	}
	return doc
}

// NewPairings returns pairings ready for encoding; never nil.
func NewPairings(p []model.TestPairing) []model.TestPairing {
	if p == nil {
		return []model.TestPairing{}
	}
	return p
}

// NewSummary collects the run counters.
func NewSummary(runID, root string, in *ingest.Result, res *reconcile.Result) *model.Summary {
	s := &model.Summary{
		RunID:         runID,
		Root:          root,
		Files:         in.Files,
		SourceCount:   len(in.Source),
		CompiledCount: len(in.Compiled),
		Common:        len(res.Mapping.Common),
		SourceOnly:    len(res.Mapping.SourceOnly),
		CompiledOnly:  len(res.Mapping.CompiledOnly),
		InvariantHeld: res.InvariantHeld,
		Nodes:         res.Graph.NodeCount(),
		Edges:         res.Graph.EdgeCount(),
		Production:    res.Production,
		Tests:         res.Tests,
		Pairings:      len(res.Pairings),
		Duplicates:    res.Duplicates,
		TopMethods:    res.Top,
		Diagnostics:   in.Diagnostics,
	}
	if s.Diagnostics == nil {
		s.Diagnostics = []model.Diagnostic{}
	}
	return s
}

// Encode writes v to w as indented JSON.
func Encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// WriteJSON writes v to path, creating parent directories.
func WriteJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := Encode(f, v); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}
