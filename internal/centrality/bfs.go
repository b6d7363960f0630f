package centrality

import (
	"github.com/graph-analysis/internal/graph"
	"github.com/graph-analysis/pkg/collections"
	apperrors "github.com/graph-analysis/pkg/errors"
)

// Unreached is the distance reported for nodes the source cannot reach.
const Unreached int64 = -1

// BFSDistances runs a sequential single-source BFS and returns the hop
// distance of every node from source.
func BFSDistances(g *graph.Graph, source int64) (*collections.PagedArray[int64], error) {
	n := g.NodeCount()
	if source < 0 || source >= n {
		return nil, apperrors.Newf(apperrors.CodeInvalidInput, "source %d outside [0, %d)", source, n)
	}

	dist := collections.NewPagedArray[int64](n)
	dist.Fill(Unreached)
	dist.Set(source, 0)

	queue := collections.NewNodeQueue()
	defer queue.Release()
	queue.Push(source)
	for {
		v, ok := queue.Pop()
		if !ok {
			break
		}
		next := dist.Get(v) + 1
		g.ForEachNeighbor(v, func(w int64) bool {
			if dist.Get(w) == Unreached {
				dist.Set(w, next)
				queue.Push(w)
			}
			return true
		})
	}
	return dist, nil
}
