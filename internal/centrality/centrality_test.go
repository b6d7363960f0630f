package centrality

import (
	"context"
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/graph-analysis/internal/graph"
	apperrors "github.com/graph-analysis/pkg/errors"
	"github.com/graph-analysis/pkg/parallel"
	"github.com/graph-analysis/pkg/progress"
	"github.com/graph-analysis/pkg/termination"
	"github.com/graph-analysis/pkg/utils"
)

func executor(concurrency int) *parallel.Executor {
	return parallel.NewExecutor(parallel.DefaultConfig().WithConcurrency(concurrency).WithMinBatchSize(16))
}

func pathGraph(t *testing.T, n int64) *graph.Graph {
	t.Helper()
	edges := make([][2]int64, 0, n)
	for i := int64(0); i+1 < n; i++ {
		edges = append(edges, [2]int64{i, i + 1})
	}
	g, err := graph.FromEdges(context.Background(), executor(1), n, edges, graph.Undirected())
	require.NoError(t, err)
	return g
}

func randomGraph(t *testing.T, n int64, m int, seed int64, opts ...graph.BuilderOption) *graph.Graph {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	edges := make([][2]int64, m)
	for i := range edges {
		edges[i] = [2]int64{rng.Int63n(n), rng.Int63n(n)}
	}
	g, err := graph.FromEdges(context.Background(), executor(1), n, edges, opts...)
	require.NoError(t, err)
	return g
}

func quietRequest(g *graph.Graph, concurrency int) Request {
	return Request{Graph: g, Executor: executor(concurrency), Logger: &utils.NullLogger{}}
}

func TestHarmonic_Path(t *testing.T) {
	g := pathGraph(t, 3)
	for _, c := range []int{1, 4} {
		res, err := Harmonic{}.Compute(context.Background(), quietRequest(g, c))
		require.NoError(t, err)
		assert.Equal(t, []float64{1.5, 2.0, 1.5}, res.Scores.ToSlice(), "concurrency %d", c)
		assert.Equal(t, "harmonic", res.Algorithm)
	}
}

func TestHarmonic_Normalized(t *testing.T) {
	req := quietRequest(pathGraph(t, 3), 2)
	req.Normalize = true
	res, err := Harmonic{}.Compute(context.Background(), req)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.75, 1.0, 0.75}, res.Scores.ToSlice(), 1e-12)
}

func TestHarmonic_MatchesReferenceBFS(t *testing.T) {
	g := randomGraph(t, 300, 900, 7)
	res, err := Harmonic{}.Compute(context.Background(), quietRequest(g, 4))
	require.NoError(t, err)

	want := make([]float64, g.NodeCount())
	for s := int64(0); s < g.NodeCount(); s++ {
		dist, err := BFSDistances(g, s)
		require.NoError(t, err)
		dist.ForEach(func(v int64, d int64) bool {
			if d > 0 {
				want[v] += 1 / float64(d)
			}
			return true
		})
	}
	assert.InDeltaSlice(t, want, res.Scores.ToSlice(), 1e-9)
}

func TestCloseness_Path(t *testing.T) {
	g := pathGraph(t, 3)
	res, err := Closeness{}.Compute(context.Background(), quietRequest(g, 2))
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2.0 / 3, 1, 2.0 / 3}, res.Scores.ToSlice(), 1e-12)
}

func TestCloseness_WassermanFaust(t *testing.T) {
	// two components: path 0-1-2 and the isolated pair 3-4
	g, err := graph.FromEdges(context.Background(), executor(1), 5,
		[][2]int64{{0, 1}, {1, 2}, {3, 4}}, graph.Undirected())
	require.NoError(t, err)

	req := quietRequest(g, 2)
	req.Normalize = true
	res, err := Closeness{}.Compute(context.Background(), req)
	require.NoError(t, err)

	// node 1: reached 2, farness 2 -> 1 * 2/4
	assert.InDelta(t, 0.5, res.Score(1), 1e-12)
	// node 3: reached 1, farness 1 -> 1 * 1/4
	assert.InDelta(t, 0.25, res.Score(3), 1e-12)
}

func TestCloseness_SameAtAnyConcurrency(t *testing.T) {
	g := randomGraph(t, 700, 2000, 3, graph.Undirected())
	ref, err := Closeness{}.Compute(context.Background(), quietRequest(g, 1))
	require.NoError(t, err)
	for _, c := range []int{2, 4, 8} {
		res, err := Closeness{}.Compute(context.Background(), quietRequest(g, c))
		require.NoError(t, err)
		assert.Equal(t, ref.Scores.ToSlice(), res.Scores.ToSlice(), "concurrency %d", c)
	}
}

func TestHarmonic_SameAtAnyConcurrency(t *testing.T) {
	g := randomGraph(t, 700, 2000, 11)
	ref, err := Harmonic{}.Compute(context.Background(), quietRequest(g, 1))
	require.NoError(t, err)
	for _, c := range []int{2, 4, 8} {
		res, err := Harmonic{}.Compute(context.Background(), quietRequest(g, c))
		require.NoError(t, err)
		assert.InDeltaSlice(t, ref.Scores.ToSlice(), res.Scores.ToSlice(), 1e-9, "concurrency %d", c)
	}
}

func TestHarmonic_Sources(t *testing.T) {
	g := pathGraph(t, 3)
	req := quietRequest(g, 1)
	req.Sources = []int64{0}
	res, err := Harmonic{}.Compute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 0.5}, res.Scores.ToSlice())
}

func TestDegree(t *testing.T) {
	g := pathGraph(t, 3)
	res, err := Degree{}.Compute(context.Background(), quietRequest(g, 4))
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 1}, res.Scores.ToSlice())
	assert.Equal(t, Stats{Count: 3, Min: 1, Max: 2, Mean: 4.0 / 3}, res.Stats)

	b := graph.NewBuilder()
	b.AddWeightedEdge(0, 1, 2.5)
	b.AddWeightedEdge(0, 2, 0.5)
	wg, err := b.Build(context.Background(), executor(1), termination.RunningTrue)
	require.NoError(t, err)

	res, err = Degree{Weighted: true}.Compute(context.Background(), quietRequest(wg, 2))
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 0, 0}, res.Scores.ToSlice())
	assert.Equal(t, "weighted-degree", res.Algorithm)
}

func TestSmallPages(t *testing.T) {
	g := randomGraph(t, 150, 400, 3)
	for _, alg := range []Algorithm{Harmonic{}, Closeness{}, Degree{}} {
		want, err := alg.Compute(context.Background(), quietRequest(g, 3))
		require.NoError(t, err)

		req := quietRequest(g, 3)
		req.PageShift = 2
		got, err := alg.Compute(context.Background(), req)
		require.NoError(t, err)
		assert.InDeltaSlice(t, want.Scores.ToSlice(), got.Scores.ToSlice(), 1e-9, alg.Name())
	}
}

func TestEmptyGraph(t *testing.T) {
	g, err := graph.NewBuilder().Build(context.Background(), executor(1), termination.RunningTrue)
	require.NoError(t, err)

	for _, alg := range []Algorithm{Harmonic{}, Closeness{}, Degree{}} {
		res, err := alg.Compute(context.Background(), quietRequest(g, 4))
		require.NoError(t, err, alg.Name())
		assert.Equal(t, int64(0), res.Scores.Size())
		assert.Empty(t, res.TopK(5))
	}
}

func TestMissingGraph(t *testing.T) {
	_, err := Harmonic{}.Compute(context.Background(), Request{})
	assert.True(t, apperrors.IsInvalidInput(err))
}

func TestTerminatedBeforeStart(t *testing.T) {
	g := pathGraph(t, 10)
	flag := termination.New()
	flag.Stop("cancelled by test")

	tracker := progress.NewTaskTracker("test", progress.UnknownVolume)
	req := quietRequest(g, 2)
	req.Flag = flag
	req.Tracker = tracker

	res, err := Harmonic{}.Compute(context.Background(), req)
	assert.Nil(t, res)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlgorithmTerminated)
	assert.True(t, apperrors.IsTerminated(err))
	assert.Contains(t, err.Error(), "algorithm terminated by user")

	children := tracker.Root().Children()
	require.Len(t, children, 1)
	assert.Equal(t, progress.StatusCancelled, children[0].Status())
	assert.True(t, apperrors.IsTerminated(children[0].Err()))
	assert.Contains(t, tracker.Summary(), "harmonic [cancelled]")
}

// countdownFlag stops after a fixed number of polls.
type countdownFlag struct {
	remaining atomic.Int64
}

func (f *countdownFlag) Running() bool {
	return f.remaining.Add(-1) >= 0
}

func (f *countdownFlag) AssertRunning() error {
	if f.Running() {
		return nil
	}
	return apperrors.ErrTerminated
}

func TestTerminatedMidRun(t *testing.T) {
	g := pathGraph(t, 2000)
	for _, alg := range []Algorithm{Harmonic{}, Closeness{}} {
		flag := &countdownFlag{}
		flag.remaining.Store(100)

		req := quietRequest(g, 4)
		req.Flag = flag
		res, err := alg.Compute(context.Background(), req)
		assert.Nil(t, res, alg.Name())
		assert.ErrorIs(t, err, ErrAlgorithmTerminated, alg.Name())
	}
}

func TestTopK(t *testing.T) {
	ctx := context.Background()
	mapping := graph.NewIDMap()
	for _, id := range []int64{10, 20, 30, 40} {
		mapping.Add(id)
	}
	b := graph.NewBuilder(graph.WithIDMap(mapping), graph.Undirected())
	// star around 20, plus 30-40
	b.AddEdge(1, 0)
	b.AddEdge(1, 2)
	b.AddEdge(1, 3)
	b.AddEdge(2, 3)
	g, err := b.Build(ctx, executor(1), termination.RunningTrue)
	require.NoError(t, err)

	res, err := Degree{}.Compute(ctx, quietRequest(g, 1))
	require.NoError(t, err)

	top := res.TopK(3)
	require.Len(t, top, 3)
	assert.Equal(t, NodeScore{Node: 1, OriginalID: 20, Score: 3}, top[0])
	// ties on 2 resolve by node id
	assert.Equal(t, NodeScore{Node: 2, OriginalID: 30, Score: 2}, top[1])
	assert.Equal(t, NodeScore{Node: 3, OriginalID: 40, Score: 2}, top[2])

	assert.Len(t, res.TopK(10), 4)
	assert.Nil(t, res.TopK(0))
	assert.Len(t, res.All(), 4)
}

func TestBFSDistances(t *testing.T) {
	g := randomGraph(t, 50, 60, 5)
	dist, err := BFSDistances(g, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), dist.Get(0))

	// every reached node has a predecessor one hop closer
	for v := int64(1); v < g.NodeCount(); v++ {
		d := dist.Get(v)
		if d == Unreached {
			continue
		}
		found := false
		for u := int64(0); u < g.NodeCount() && !found; u++ {
			if dist.Get(u) != d-1 {
				continue
			}
			g.ForEachNeighbor(u, func(w int64) bool {
				found = found || w == v
				return !found
			})
		}
		assert.True(t, found, "node %d at distance %d", v, d)
	}

	_, err = BFSDistances(g, 50)
	assert.True(t, apperrors.IsInvalidInput(err))
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()
	assert.Equal(t, []string{"closeness", "degree", "harmonic", "weighted-degree"}, r.Names())

	alg, err := r.Get("harmonic")
	require.NoError(t, err)
	assert.Equal(t, "harmonic", alg.Name())

	_, err = r.Get("pagerank")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestComputeRecordsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	defer otel.SetTracerProvider(prev)

	g := pathGraph(t, 3)
	_, err := Harmonic{}.Compute(context.Background(), quietRequest(g, 2))
	require.NoError(t, err)

	stopped := termination.New()
	stopped.Stop("stop")
	req := quietRequest(g, 2)
	req.Flag = stopped
	_, err = Closeness{}.Compute(context.Background(), req)
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "centrality.harmonic", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Equal(t, "centrality.closeness", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
}
