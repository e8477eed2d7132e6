// Package model defines core data structures for methodmap.
package model

import (
	"strings"
)

// Origin tells which view of the codebase a record was extracted from.
type Origin string

const (
	Source   Origin = "source"
	Compiled Origin = "compiled"
)

// Valid reports whether o is one of the known origins.
func (o Origin) Valid() bool {
	return o == Source || o == Compiled
}

var callOps = map[string]struct{}{
	"invokevirtual":   {},
	"invokestatic":    {},
	"invokespecial":   {},
	"invokeinterface": {},
}

// Instruction is one entry of a compiled method's symbolic trace.
// Only call instructions carry Owner, Name and Desc.
type Instruction struct {
	Op    string `json:"op"`
	Owner string `json:"owner,omitempty"`
	Name  string `json:"name,omitempty"`
	Desc  string `json:"desc,omitempty"`
}

// IsCall reports whether the instruction invokes an owner-qualified method.
func (in Instruction) IsCall() bool {
	if _, ok := callOps[strings.ToLower(in.Op)]; !ok {
		return false
	}
	return in.Owner != "" && in.Name != "" && in.Desc != ""
}

// MethodRecord describes one method as seen by one extraction view.
// Records are never mutated after ingestion.
type MethodRecord struct {
	Origin         Origin
	EnclosingType  string
	SimpleName     string
	ParameterTypes []string
	ReturnType     string

	File  string        // declaring file, relative to the snapshot root
	Body  string        // source payload
	Trace []Instruction // compiled payload
}

// Arity returns the declared parameter count.
func (r MethodRecord) Arity() int {
	return len(r.ParameterTypes)
}

// Identity renders the record as "Type.name(p1, p2): ret".
func (r MethodRecord) Identity() string {
	return FormatIdentity(r.EnclosingType, r.SimpleName, r.ParameterTypes, r.ReturnType)
}

// Key returns a comparable value over the four identity fields.
func (r MethodRecord) Key() Key {
	return Key{
		EnclosingType: r.EnclosingType,
		SimpleName:    r.SimpleName,
		Params:        strings.Join(r.ParameterTypes, "\x1f"),
		Arity:         len(r.ParameterTypes),
		ReturnType:    r.ReturnType,
	}
}

// Key is the structural identity of a record. Two records with equal
// keys are duplicates within their origin.
type Key struct {
	EnclosingType string
	SimpleName    string
	Params        string
	Arity         int
	ReturnType    string
}

// FormatIdentity renders an identity tuple in the output document format.
func FormatIdentity(enclosingType, name string, params []string, ret string) string {
	var b strings.Builder
	b.WriteString(enclosingType)
	b.WriteByte('.')
	b.WriteString(name)
	b.WriteByte('(')
	b.WriteString(strings.Join(params, ", "))
	b.WriteString("): ")
	b.WriteString(ret)
	return b.String()
}

// CallEdge is a directed caller → callee relation between compiled-view
// identities.
type CallEdge struct {
	Caller string
	Callee string
}

// Pair holds the two views of one method.
type Pair struct {
	Source   MethodRecord
	Compiled MethodRecord
}

// MatchResult partitions the union of two record collections.
type MatchResult struct {
	Common       []Pair
	SourceOnly   []MethodRecord
	CompiledOnly []MethodRecord
}

// Balanced reports whether the partition accounts for every input
// record exactly once: a + b = 2·common + sourceOnly + compiledOnly.
func (m MatchResult) Balanced(a, b int) bool {
	return a+b == 2*len(m.Common)+len(m.SourceOnly)+len(m.CompiledOnly)
}

// Provenance keeps enough of a record to trace a pairing back to code.
type Provenance struct {
	File           string   `json:"file"`
	Identity       string   `json:"identity"`
	EnclosingType  string   `json:"enclosingType"`
	SimpleName     string   `json:"simpleName"`
	ParameterTypes []string `json:"parameterTypes"`
	ReturnType     string   `json:"returnType"`
	Body           string   `json:"body,omitempty"`
}

// ProvenanceOf captures the provenance of r.
func ProvenanceOf(r MethodRecord) Provenance {
	params := r.ParameterTypes
	if params == nil {
		params = []string{}
	}
	return Provenance{
		File:           r.File,
		Identity:       r.Identity(),
		EnclosingType:  r.EnclosingType,
		SimpleName:     r.SimpleName,
		ParameterTypes: params,
		ReturnType:     r.ReturnType,
		Body:           r.Body,
	}
}

// TestPairing associates a production method with a test that invokes it.
type TestPairing struct {
	Production Provenance `json:"production"`
	Test       Provenance `json:"test"`
	CallLine   int        `json:"callLine"` // first matching call, 1-based within the test body
}

// Diagnostic is a recorded, non-fatal problem found while reading input.
type Diagnostic struct {
	File    string `json:"file"`
	Method  string `json:"method,omitempty"`
	Message string `json:"message"`
}

// DuplicateReport summarises same-origin identity collisions.
type DuplicateReport struct {
	Origin     Origin   `json:"origin"`
	Total      int      `json:"total"`
	Unique     int      `json:"unique"`
	Duplicate  int      `json:"duplicate"`
	Identities []string `json:"identities,omitempty"`
}

// RankedMethod is a call-graph node with its PageRank score.
type RankedMethod struct {
	Identity string  `json:"identity"`
	Rank     float64 `json:"rank"`
}

// Summary is the complete run report, ready for serialization.
type Summary struct {
	RunID         string            `json:"runId"`
	Root          string            `json:"root"`
	Files         int               `json:"files"`
	SourceCount   int               `json:"sourceRecords"`
	CompiledCount int               `json:"compiledRecords"`
	Common        int               `json:"common"`
	SourceOnly    int               `json:"sourceOnly"`
	CompiledOnly  int               `json:"compiledOnly"`
	InvariantHeld bool              `json:"invariantHeld"`
	Nodes         int               `json:"callGraphNodes"`
	Edges         int               `json:"callGraphEdges"`
	Production    int               `json:"productionMethods"`
	Tests         int               `json:"testMethods"`
	Pairings      int               `json:"pairings"`
	Duplicates    []DuplicateReport `json:"duplicates"`
	TopMethods    []RankedMethod    `json:"topMethods"`
	Outputs       []string          `json:"outputs,omitempty"`
	Diagnostics   []Diagnostic      `json:"diagnostics"`
}
