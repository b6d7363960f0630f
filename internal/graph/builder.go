package graph

import (
	"context"
	"sort"

	"github.com/graph-analysis/pkg/collections"
	apperrors "github.com/graph-analysis/pkg/errors"
	"github.com/graph-analysis/pkg/parallel"
	"github.com/graph-analysis/pkg/termination"
)

// Builder collects edges and produces a Graph.
type Builder struct {
	nodeCount  int64
	undirected bool
	weighted   bool

	sources []int64
	targets []int64
	weights []float64

	ids *IDMap
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// Undirected stores every edge in both directions.
func Undirected() BuilderOption {
	return func(b *Builder) {
		b.undirected = true
	}
}

// WithNodeCount fixes the minimum node count, so trailing isolated nodes exist.
func WithNodeCount(n int64) BuilderOption {
	return func(b *Builder) {
		b.nodeCount = n
	}
}

// WithIDMap attaches the mapping used to produce dense ids.
func WithIDMap(ids *IDMap) BuilderOption {
	return func(b *Builder) {
		b.ids = ids
	}
}

// NewBuilder creates an empty builder.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// AddEdge records an edge between dense ids.
func (b *Builder) AddEdge(src, dst int64) {
	b.sources = append(b.sources, src)
	b.targets = append(b.targets, dst)
	if b.weighted {
		b.weights = append(b.weights, 1)
	}
}

// AddWeightedEdge records a weighted edge. Edges added earlier without a
// weight get weight 1.
func (b *Builder) AddWeightedEdge(src, dst int64, weight float64) {
	if !b.weighted {
		b.weighted = true
		b.weights = make([]float64, len(b.sources), cap(b.sources))
		for i := range b.weights {
			b.weights[i] = 1
		}
	}
	b.sources = append(b.sources, src)
	b.targets = append(b.targets, dst)
	b.weights = append(b.weights, weight)
}

// EdgeInputCount returns the number of edges added so far.
func (b *Builder) EdgeInputCount() int {
	return len(b.sources)
}

// Build produces the CSR graph. Degrees are counted and edges scattered in
// parallel; every adjacency list is then sorted by target.
func (b *Builder) Build(ctx context.Context, exec *parallel.Executor, flag termination.Flag) (*Graph, error) {
	n := b.nodeCount
	for i := range b.sources {
		s, t := b.sources[i], b.targets[i]
		if s < 0 || t < 0 {
			return nil, apperrors.Newf(apperrors.CodeInvalidInput, "edge %d has negative node id (%d, %d)", i, s, t)
		}
		if s >= n {
			n = s + 1
		}
		if t >= n {
			n = t + 1
		}
	}
	if b.ids != nil && b.ids.Len() > n {
		n = b.ids.Len()
	}

	m := int64(len(b.sources))
	degrees := collections.NewAtomicLongArray(n)
	err := exec.ParallelForEachNode(ctx, m, flag, func(i int64) {
		s, t := b.sources[i], b.targets[i]
		degrees.GetAndAdd(s, 1)
		if b.undirected && s != t {
			degrees.GetAndAdd(t, 1)
		}
	})
	if err != nil {
		return nil, err
	}

	offsets := collections.NewPagedArray[int64](n + 1)
	cursors := collections.NewAtomicLongArray(n)
	var total int64
	for v := int64(0); v < n; v++ {
		offsets.Set(v, total)
		cursors.Set(v, total)
		total += degrees.Get(v)
	}
	offsets.Set(n, total)

	targets := collections.NewPagedArray[int64](total)
	var weights *collections.PagedArray[float64]
	if b.weighted {
		weights = collections.NewPagedArray[float64](total)
	}

	// each slot is claimed by exactly one GetAndAdd, so plain writes are safe
	err = exec.ParallelForEachNode(ctx, m, flag, func(i int64) {
		s, t := b.sources[i], b.targets[i]
		pos := cursors.GetAndAdd(s, 1)
		targets.Set(pos, t)
		if weights != nil {
			weights.Set(pos, b.weights[i])
		}
		if b.undirected && s != t {
			pos = cursors.GetAndAdd(t, 1)
			targets.Set(pos, s)
			if weights != nil {
				weights.Set(pos, b.weights[i])
			}
		}
	})
	if err != nil {
		return nil, err
	}

	if err := sortAdjacency(ctx, exec, flag, n, offsets, targets, weights); err != nil {
		return nil, err
	}

	return &Graph{
		nodeCount: n,
		directed:  !b.undirected,
		offsets:   offsets,
		targets:   targets,
		weights:   weights,
		ids:       b.ids,
	}, nil
}

type adjacencyScratch struct {
	targets []int64
	weights []float64
	order   []int
}

func sortAdjacency(ctx context.Context, exec *parallel.Executor, flag termination.Flag, n int64,
	offsets, targets *collections.PagedArray[int64], weights *collections.PagedArray[float64]) error {
	scratch := parallel.NewWorkerLocalFor(exec, func() *adjacencyScratch {
		return &adjacencyScratch{}
	})

	return exec.ParallelFor(ctx, 0, n, flag, func(_ context.Context, workerID int, r parallel.Range) error {
		buf := scratch.Get(workerID)
		for v := r.Start; v < r.End; v++ {
			start, end := offsets.Get(v), offsets.Get(v+1)
			if end-start < 2 {
				continue
			}

			buf.targets = buf.targets[:0]
			buf.weights = buf.weights[:0]
			buf.order = buf.order[:0]
			for i := start; i < end; i++ {
				buf.targets = append(buf.targets, targets.Get(i))
				if weights != nil {
					buf.weights = append(buf.weights, weights.Get(i))
				}
				buf.order = append(buf.order, int(i-start))
			}

			// stable so that parallel edges keep a deterministic weight order
			sort.SliceStable(buf.order, func(a, b int) bool {
				ta, tb := buf.targets[buf.order[a]], buf.targets[buf.order[b]]
				if ta != tb {
					return ta < tb
				}
				if weights != nil {
					return buf.weights[buf.order[a]] < buf.weights[buf.order[b]]
				}
				return false
			})

			for k, idx := range buf.order {
				targets.Set(start+int64(k), buf.targets[idx])
				if weights != nil {
					weights.Set(start+int64(k), buf.weights[idx])
				}
			}
		}
		return nil
	})
}

// FromEdges builds a graph from dense-id edge pairs. Convenient for small
// graphs and tests.
func FromEdges(ctx context.Context, exec *parallel.Executor, nodeCount int64, edges [][2]int64, opts ...BuilderOption) (*Graph, error) {
	b := NewBuilder(append([]BuilderOption{WithNodeCount(nodeCount)}, opts...)...)
	for _, e := range edges {
		b.AddEdge(e[0], e[1])
	}
	return b.Build(ctx, exec, termination.RunningTrue)
}
