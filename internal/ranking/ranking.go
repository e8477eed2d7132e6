// Package ranking scores call-graph nodes with PageRank and selects the
// most central methods.
package ranking

import (
	"math"
	"sort"

	"github.com/phobologic/methodmap/internal/model"
)

const (
	// Damping is the PageRank damping factor.
	Damping = 0.85
	// MaxIterations bounds the power iteration.
	MaxIterations = 100
	// Tolerance is the L1 convergence threshold.
	Tolerance = 1e-6
)

// PageRank ranks every node. Edges whose endpoints are not in nodes are
// ignored. With no edges every node gets the uniform rank.
func PageRank(nodes []string, edges []model.CallEdge) map[string]float64 {
	if len(nodes) == 0 {
		return map[string]float64{}
	}

	set := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		set[n] = struct{}{}
	}

	outEdges := make(map[string][]string)
	outDegree := make(map[string]int)
	for _, e := range edges {
		_, okCaller := set[e.Caller]
		_, okCallee := set[e.Callee]
		if !okCaller || !okCallee {
			continue
		}
		outEdges[e.Caller] = append(outEdges[e.Caller], e.Callee)
		outDegree[e.Caller]++
	}

	if len(outEdges) == 0 {
		uniform := 1.0 / float64(len(set))
		ranks := make(map[string]float64, len(set))
		for n := range set {
			ranks[n] = uniform
		}
		return ranks
	}

	return pageRank(set, outEdges, outDegree, Damping, MaxIterations, Tolerance)
}

func pageRank(
	nodes map[string]struct{},
	outEdges map[string][]string,
	outDegree map[string]int,
	alpha float64,
	maxIter int,
	tol float64,
) map[string]float64 {
	n := len(nodes)
	rank := make(map[string]float64, n)
	initial := 1.0 / float64(n)
	for node := range nodes {
		rank[node] = initial
	}

	teleport := (1.0 - alpha) / float64(n)

	for iter := 0; iter < maxIter; iter++ {
		newRank := make(map[string]float64, n)

		// Nodes without callees spread their rank evenly.
		var danglingSum float64
		for node := range nodes {
			if outDegree[node] == 0 {
				danglingSum += rank[node]
			}
		}
		danglingContrib := alpha * danglingSum / float64(n)

		for node := range nodes {
			newRank[node] = teleport + danglingContrib
		}

		for src, targets := range outEdges {
			contrib := alpha * rank[src] / float64(outDegree[src])
			for _, tgt := range targets {
				newRank[tgt] += contrib
			}
		}

		var diff float64
		for node := range nodes {
			diff += math.Abs(newRank[node] - rank[node])
		}

		rank = newRank

		if diff < tol {
			break
		}
	}

	return rank
}

// Top returns the n highest-ranked identities, ties broken by identity.
// If n is <= 0 or >= len(ranks), all nodes are returned.
func Top(ranks map[string]float64, n int) []model.RankedMethod {
	out := make([]model.RankedMethod, 0, len(ranks))
	for id, r := range ranks {
		out = append(out, model.RankedMethod{Identity: id, Rank: r})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rank != out[j].Rank {
			return out[i].Rank > out[j].Rank
		}
		return out[i].Identity < out[j].Identity
	})
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}
