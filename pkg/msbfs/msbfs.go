// Package msbfs implements bit-parallel multi-source breadth-first search.
//
// Up to Omega sources share one traversal: bit k of a node's frontier word
// means "source k reaches this node at the current depth". One pass over the
// graph therefore answers Omega independent BFS runs.
package msbfs

import (
	"math/bits"

	"github.com/graph-analysis/pkg/collections"
	apperrors "github.com/graph-analysis/pkg/errors"
	"github.com/graph-analysis/pkg/termination"
)

// Omega is the number of sources packed into one traversal word.
const Omega = 64

// SourceMask holds one bit per source slot of the current batch.
type SourceMask uint64

// Count returns the number of sources in the mask.
func (m SourceMask) Count() int {
	return bits.OnesCount64(uint64(m))
}

// Has reports whether source slot k is in the mask.
func (m SourceMask) Has(k int) bool {
	return m&(1<<uint(k)) != 0
}

// ForEach calls fn with every source slot in the mask, lowest first.
func (m SourceMask) ForEach(fn func(k int)) {
	for w := uint64(m); w != 0; w &= w - 1 {
		fn(bits.TrailingZeros64(w))
	}
}

// Neighbors gives read-only access to a graph's adjacency. Implementations
// must be safe for concurrent use.
type Neighbors interface {
	ForEachNeighbor(node int64, fn func(target int64) bool)
}

// Callback receives every (node, depth, sources) triple with depth > 0.
// It runs on the traversing worker and must not block.
type Callback func(node int64, depth int, sources SourceMask)

// Engine holds the frontier state for one traversal at a time. Engines are
// reused across batches by the same worker; they are not safe for concurrent use.
type Engine struct {
	nodeCount int64
	graph     Neighbors

	seen      *collections.PagedArray[uint64]
	visit     *collections.PagedArray[uint64]
	visitNext *collections.PagedArray[uint64]

	active     *collections.BitSet
	activeNext *collections.BitSet

	// nodes with a non-zero seen word, for resetting between batches
	touched []int64
	sources [Omega]int64
}

// NewEngine allocates frontier state for a graph with nodeCount nodes.
func NewEngine(nodeCount int64, graph Neighbors, opts ...collections.Option) *Engine {
	return &Engine{
		nodeCount:  nodeCount,
		graph:      graph,
		seen:       collections.NewPagedArray[uint64](nodeCount, opts...),
		visit:      collections.NewPagedArray[uint64](nodeCount, opts...),
		visitNext:  collections.NewPagedArray[uint64](nodeCount, opts...),
		active:     collections.NewBitSet(nodeCount, opts...),
		activeNext: collections.NewBitSet(nodeCount, opts...),
	}
}

// NodeCount returns the number of nodes the engine was sized for.
func (e *Engine) NodeCount() int64 {
	return e.nodeCount
}

// Run traverses from up to Omega sources at once. Source i of the slice is
// assigned bit i of every mask passed to cb. The flag is polled once per
// depth level; a stopped flag aborts the traversal with a TERMINATED error.
func (e *Engine) Run(flag termination.Flag, sources []int64, cb Callback) error {
	if len(sources) > Omega {
		return apperrors.Newf(apperrors.CodeInvalidInput,
			"batch of %d sources exceeds %d", len(sources), Omega)
	}
	if len(sources) == 0 {
		return nil
	}
	defer e.reset()

	for k, s := range sources {
		apperrors.CheckIndex(s, e.nodeCount)
		bit := uint64(1) << uint(k)
		if e.seen.Get(s) == 0 {
			e.touched = append(e.touched, s)
		}
		e.seen.Set(s, e.seen.Get(s)|bit)
		e.visit.Set(s, e.visit.Get(s)|bit)
		e.active.Set(s)
	}

	for depth := 1; ; depth++ {
		if err := flag.AssertRunning(); err != nil {
			return err
		}

		// expand: every active node pushes the sources that have not yet
		// reached a neighbor into that neighbor's next word
		next := 0
		for v := e.active.NextSetBit(0); v >= 0; v = e.active.NextSetBit(v + 1) {
			frontier := e.visit.Get(v)
			e.graph.ForEachNeighbor(v, func(w int64) bool {
				if d := frontier &^ e.seen.Get(w); d != 0 {
					e.visitNext.Set(w, e.visitNext.Get(w)|d)
					if !e.activeNext.GetAndSet(w) {
						next++
					}
				}
				return true
			})
			e.visit.Set(v, 0)
			e.active.Clear(v)
		}

		if next == 0 {
			return nil
		}

		// commit: the next words only hold first arrivals, so each
		// (source, node) pair is reported exactly once
		for w := e.activeNext.NextSetBit(0); w >= 0; w = e.activeNext.NextSetBit(w + 1) {
			reached := e.visitNext.Get(w)
			seen := e.seen.Get(w)
			if seen == 0 {
				e.touched = append(e.touched, w)
			}
			e.seen.Set(w, seen|reached)
			cb(w, depth, SourceMask(reached))
		}

		e.visit, e.visitNext = e.visitNext, e.visit
		e.active, e.activeNext = e.activeNext, e.active
	}
}

// RunRange traverses from the consecutive sources [start, end), end-start <= Omega.
func (e *Engine) RunRange(flag termination.Flag, start, end int64, cb Callback) error {
	n := end - start
	if n > Omega {
		return apperrors.Newf(apperrors.CodeInvalidInput,
			"batch of %d sources exceeds %d", n, Omega)
	}
	if n <= 0 {
		return nil
	}
	batch := e.sources[:n]
	for i := range batch {
		batch[i] = start + int64(i)
	}
	return e.Run(flag, batch, cb)
}

// reset clears every word touched by the last traversal, including one
// that was aborted part way through a level.
func (e *Engine) reset() {
	for _, v := range e.touched {
		e.seen.Set(v, 0)
		e.visit.Set(v, 0)
	}
	e.touched = e.touched[:0]
	for _, set := range []*collections.BitSet{e.active, e.activeNext} {
		for v := set.NextSetBit(0); v >= 0; v = set.NextSetBit(v + 1) {
			e.visit.Set(v, 0)
			e.visitNext.Set(v, 0)
			set.Clear(v)
		}
	}
}
