package centrality

import (
	"container/heap"
	"math"
	"sort"
	"time"

	"github.com/graph-analysis/internal/graph"
	"github.com/graph-analysis/pkg/collections"
)

// NodeScore is a score together with both ids of its node.
type NodeScore struct {
	Node       int64   `json:"node"`
	OriginalID int64   `json:"original_id"`
	Score      float64 `json:"score"`
}

// Stats summarizes a score distribution.
type Stats struct {
	Count int64   `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
}

// Result holds the scores of one computation.
type Result struct {
	Algorithm string
	Scores    *collections.PagedArray[float64]
	Stats     Stats
	Duration  time.Duration

	graph *graph.Graph
}

func newResult(name string, g *graph.Graph, scores *collections.PagedArray[float64], d time.Duration) *Result {
	return &Result{
		Algorithm: name,
		Scores:    scores,
		Stats:     computeStats(scores),
		Duration:  d,
		graph:     g,
	}
}

func computeStats(scores *collections.PagedArray[float64]) Stats {
	s := Stats{Count: scores.Size()}
	if s.Count == 0 {
		return s
	}
	s.Min, s.Max = math.Inf(1), math.Inf(-1)
	var sum float64
	scores.ForEach(func(_ int64, v float64) bool {
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
		sum += v
		return true
	})
	s.Mean = sum / float64(s.Count)
	return s
}

// Graph returns the graph the scores were computed on.
func (r *Result) Graph() *graph.Graph {
	return r.graph
}

// Score returns the score of a dense node id.
func (r *Result) Score(node int64) float64 {
	return r.Scores.Get(node)
}

// TopK returns the k highest scores, ties broken by ascending node id.
func (r *Result) TopK(k int) []NodeScore {
	if k <= 0 || r.Scores.Size() == 0 {
		return nil
	}

	h := make(scoreHeap, 0, k)
	r.Scores.ForEach(func(node int64, v float64) bool {
		ns := NodeScore{Node: node, Score: v}
		if len(h) < k {
			heap.Push(&h, ns)
		} else if better(ns, h[0]) {
			h[0] = ns
			heap.Fix(&h, 0)
		}
		return true
	})

	out := []NodeScore(h)
	sort.Slice(out, func(i, j int) bool { return better(out[i], out[j]) })
	for i := range out {
		out[i].OriginalID = r.graph.OriginalID(out[i].Node)
	}
	return out
}

// All returns every score in node order.
func (r *Result) All() []NodeScore {
	out := make([]NodeScore, 0, r.Scores.Size())
	r.Scores.ForEach(func(node int64, v float64) bool {
		out = append(out, NodeScore{Node: node, OriginalID: r.graph.OriginalID(node), Score: v})
		return true
	})
	return out
}

func better(a, b NodeScore) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Node < b.Node
}

// scoreHeap keeps the worst retained score at the root.
type scoreHeap []NodeScore

func (h scoreHeap) Len() int            { return len(h) }
func (h scoreHeap) Less(i, j int) bool  { return better(h[j], h[i]) }
func (h scoreHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *scoreHeap) Push(x interface{}) { *h = append(*h, x.(NodeScore)) }
func (h *scoreHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
