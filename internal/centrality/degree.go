package centrality

import (
	"context"

	"github.com/graph-analysis/pkg/collections"
)

// Degree scores each node by its number of adjacency entries, or by the sum
// of their weights when Weighted is set. Normalize divides by n-1.
type Degree struct {
	Weighted bool
}

// Name returns "degree" or "weighted-degree".
func (d Degree) Name() string {
	if d.Weighted {
		return "weighted-degree"
	}
	return "degree"
}

// Compute runs on the per-node executor path.
func (d Degree) Compute(ctx context.Context, req Request) (*Result, error) {
	return execute(ctx, d.Name(), req, nodeVolume, func(ctx context.Context, req Request) (*collections.PagedArray[float64], error) {
		g := req.Graph
		n := g.NodeCount()
		norm := 1.0
		if req.Normalize && n > 1 {
			norm = float64(n - 1)
		}

		scores := collections.NewPagedArray[float64](n, req.pageOptions()...)
		err := req.Executor.ParallelForEachNode(ctx, n, req.Flag, func(node int64) {
			if !d.Weighted {
				scores.Set(node, float64(g.Degree(node))/norm)
				return
			}
			var sum float64
			g.ForEachWeightedNeighbor(node, func(_ int64, w float64) bool {
				sum += w
				return true
			})
			scores.Set(node, sum/norm)
		})
		if err != nil {
			return nil, err
		}
		return scores, nil
	})
}
