package centrality

import (
	"context"

	"github.com/graph-analysis/pkg/collections"
	"github.com/graph-analysis/pkg/msbfs"
)

// Closeness computes closeness centrality as reached/farness, where farness
// is the sum of distances from every source that reaches the node. Nodes
// reached by no source score 0.
//
// With Normalize the Wasserman-Faust variant is used, which scales by the
// fraction of the graph that was reached: (reached/(n-1)) * (reached/farness).
type Closeness struct{}

// Name returns "closeness".
func (Closeness) Name() string { return "closeness" }

// Compute runs one multi-source BFS per batch of 64 sources.
func (c Closeness) Compute(ctx context.Context, req Request) (*Result, error) {
	return execute(ctx, c.Name(), req, sourceVolume, func(ctx context.Context, req Request) (*collections.PagedArray[float64], error) {
		n := req.Graph.NodeCount()
		farness := collections.NewAtomicLongArray(n, req.pageOptions()...)
		reached := collections.NewAtomicLongArray(n, req.pageOptions()...)

		err := msbfs.RunAll(ctx, req.Executor, n, req.Graph, req.Flag,
			func(node int64, depth int, sources msbfs.SourceMask) {
				count := int64(sources.Count())
				farness.GetAndAdd(node, count*int64(depth))
				reached.GetAndAdd(node, count)
			}, req.msbfsOptions()...)
		if err != nil {
			return nil, err
		}

		scores := collections.NewPagedArray[float64](n, req.pageOptions()...)
		err = req.Executor.ParallelForEachNode(ctx, n, req.Flag, func(node int64) {
			f := farness.Get(node)
			if f == 0 {
				return
			}
			r := float64(reached.Get(node))
			score := r / float64(f)
			if req.Normalize && n > 1 {
				score *= r / float64(n-1)
			}
			scores.Set(node, score)
		})
		if err != nil {
			return nil, err
		}
		return scores, nil
	})
}
