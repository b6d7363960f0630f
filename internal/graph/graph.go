// Package graph holds immutable topology snapshots in compressed sparse row
// form and provides neighbor access for traversals.
package graph

import (
	"github.com/graph-analysis/pkg/collections"
)

// Graph is a read-only CSR adjacency structure. The neighbors of node v are
// targets[offsets[v]:offsets[v+1]], sorted ascending. All methods are safe
// for concurrent use.
type Graph struct {
	nodeCount int64
	directed  bool

	offsets *collections.PagedArray[int64]
	targets *collections.PagedArray[int64]
	weights *collections.PagedArray[float64]

	ids *IDMap
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int64 {
	return g.nodeCount
}

// EdgeCount returns the number of stored adjacency entries. An undirected
// edge between distinct nodes counts twice.
func (g *Graph) EdgeCount() int64 {
	return g.targets.Size()
}

// Directed reports whether edges were stored one way only.
func (g *Graph) Directed() bool {
	return g.directed
}

// HasWeights reports whether edge weights are stored.
func (g *Graph) HasWeights() bool {
	return g.weights != nil
}

// Degree returns the number of outgoing adjacency entries of node.
func (g *Graph) Degree(node int64) int {
	return int(g.offsets.Get(node+1) - g.offsets.Get(node))
}

// ForEachNeighbor calls fn for every neighbor of node until fn returns false.
func (g *Graph) ForEachNeighbor(node int64, fn func(target int64) bool) {
	end := g.offsets.Get(node + 1)
	for i := g.offsets.Get(node); i < end; i++ {
		if !fn(g.targets.Get(i)) {
			return
		}
	}
}

// ForEachWeightedNeighbor is ForEachNeighbor with edge weights. Unweighted
// graphs report a weight of 1.
func (g *Graph) ForEachWeightedNeighbor(node int64, fn func(target int64, weight float64) bool) {
	end := g.offsets.Get(node + 1)
	for i := g.offsets.Get(node); i < end; i++ {
		w := 1.0
		if g.weights != nil {
			w = g.weights.Get(i)
		}
		if !fn(g.targets.Get(i), w) {
			return
		}
	}
}

// Neighbors returns a copy of node's neighbors.
func (g *Graph) Neighbors(node int64) []int64 {
	out := make([]int64, 0, g.Degree(node))
	g.ForEachNeighbor(node, func(t int64) bool {
		out = append(out, t)
		return true
	})
	return out
}

// IDs returns the mapping from dense ids to the ids found in the input, or
// nil when the graph was built from dense ids directly.
func (g *Graph) IDs() *IDMap {
	return g.ids
}

// OriginalID returns the external id of a dense node id.
func (g *Graph) OriginalID(node int64) int64 {
	if g.ids == nil {
		return node
	}
	return g.ids.Original(node)
}
