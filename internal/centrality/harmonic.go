package centrality

import (
	"context"

	"github.com/graph-analysis/pkg/collections"
	"github.com/graph-analysis/pkg/msbfs"
)

// Harmonic computes harmonic centrality: the sum of 1/d over every source
// that reaches the node at distance d. Unreachable pairs contribute nothing.
// Normalize divides by n-1.
type Harmonic struct{}

// Name returns "harmonic".
func (Harmonic) Name() string { return "harmonic" }

// Compute runs one multi-source BFS per batch of 64 sources.
func (h Harmonic) Compute(ctx context.Context, req Request) (*Result, error) {
	return execute(ctx, h.Name(), req, sourceVolume, func(ctx context.Context, req Request) (*collections.PagedArray[float64], error) {
		n := req.Graph.NodeCount()
		acc := collections.NewAtomicDoubleArray(n, req.pageOptions()...)

		err := msbfs.RunAll(ctx, req.Executor, n, req.Graph, req.Flag,
			func(node int64, depth int, sources msbfs.SourceMask) {
				acc.GetAndAdd(node, float64(sources.Count())/float64(depth))
			}, req.msbfsOptions()...)
		if err != nil {
			return nil, err
		}

		scores := acc.Snapshot()
		if req.Normalize && n > 1 {
			norm := float64(n - 1)
			scores.SetAll(func(i int64) float64 {
				return scores.Get(i) / norm
			})
		}
		return scores, nil
	})
}
