// Package centrality implements node centrality algorithms on top of the
// parallel substrate. Traversal-based scores use multi-source BFS; local
// scores use the plain per-node executor path.
package centrality

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/graph-analysis/internal/graph"
	"github.com/graph-analysis/pkg/collections"
	apperrors "github.com/graph-analysis/pkg/errors"
	"github.com/graph-analysis/pkg/msbfs"
	"github.com/graph-analysis/pkg/parallel"
	"github.com/graph-analysis/pkg/progress"
	"github.com/graph-analysis/pkg/telemetry"
	"github.com/graph-analysis/pkg/termination"
	"github.com/graph-analysis/pkg/utils"
)

var tracer = telemetry.Tracer("centrality")

// ErrAlgorithmTerminated is returned when a computation was stopped through its
// termination flag. It matches apperrors.ErrTerminated.
var ErrAlgorithmTerminated = apperrors.New(apperrors.CodeTerminated, "algorithm terminated by user")

// Algorithm computes one score per node.
type Algorithm interface {
	Name() string
	Compute(ctx context.Context, req Request) (*Result, error)
}

// Request is the input of a computation.
type Request struct {
	Graph *graph.Graph

	// Executor defaults to one using every CPU.
	Executor *parallel.Executor
	// Flag defaults to termination.RunningTrue.
	Flag termination.Flag
	// Tracker receives one subtask per computation.
	Tracker progress.Tracker
	Logger  utils.Logger

	// Sources restricts traversal-based algorithms to these start nodes.
	// nil means every node.
	Sources []int64
	// Normalize scales scores where the algorithm defines a normalization.
	Normalize bool
	// PageShift sets the page size of score and frontier arrays. 0 keeps
	// the collections default.
	PageShift int
}

func (r Request) withDefaults() (Request, error) {
	if r.Graph == nil {
		return r, apperrors.New(apperrors.CodeInvalidInput, "graph is required")
	}
	if r.Executor == nil {
		r.Executor = parallel.NewExecutor(parallel.DefaultConfig())
	}
	if r.Flag == nil {
		r.Flag = termination.RunningTrue
	}
	r.Tracker = progress.OrEmpty(r.Tracker)
	r.Logger = utils.OrGlobal(r.Logger)
	return r, nil
}

// sourceCount is the progress volume of a traversal-based run.
func (r Request) sourceCount() int64 {
	if r.Sources != nil {
		return int64(len(r.Sources))
	}
	return r.Graph.NodeCount()
}

func (r Request) pageOptions() []collections.Option {
	if r.PageShift == 0 {
		return nil
	}
	return []collections.Option{collections.WithPageShift(r.PageShift)}
}

func (r Request) msbfsOptions() []msbfs.RunOption {
	opts := []msbfs.RunOption{
		msbfs.WithProgress(r.Tracker),
		msbfs.WithPageOptions(r.pageOptions()...),
	}
	if r.Sources != nil {
		opts = append(opts, msbfs.WithSources(r.Sources))
	}
	return opts
}

type computeFunc func(ctx context.Context, req Request) (*collections.PagedArray[float64], error)

// execute wraps a computation with tracing, progress and error mapping.
func execute(ctx context.Context, name string, req Request, volume func(Request) int64, compute computeFunc) (*Result, error) {
	req, err := req.withDefaults()
	if err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "centrality."+name,
		trace.WithAttributes(
			attribute.Int64("node_count", req.Graph.NodeCount()),
			attribute.Int64("edge_count", req.Graph.EdgeCount()),
			attribute.Int("concurrency", req.Executor.Concurrency()),
		),
	)
	defer span.End()

	logger := req.Logger.WithField("algorithm", name)
	logger.Debug("computing on %d nodes, %d edges", req.Graph.NodeCount(), req.Graph.EdgeCount())

	start := time.Now()
	req.Tracker.BeginSubtaskWithVolume(name, volume(req))
	scores, err := compute(ctx, req)
	if err != nil {
		if apperrors.IsTerminated(err) {
			err = apperrors.Wrap(apperrors.CodeTerminated, ErrAlgorithmTerminated.Message, err)
			span.SetAttributes(attribute.Bool("terminated", true))
		}
		req.Tracker.EndSubtaskWithFailure(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn("failed: %v", err)
		return nil, err
	}
	req.Tracker.EndSubtask()

	result := newResult(name, req.Graph, scores, time.Since(start))
	span.SetAttributes(
		attribute.Float64("score_max", result.Stats.Max),
		attribute.Float64("score_mean", result.Stats.Mean),
	)
	logger.Info("done in %v: min=%.4f max=%.4f mean=%.4f",
		result.Duration, result.Stats.Min, result.Stats.Max, result.Stats.Mean)
	return result, nil
}

func nodeVolume(r Request) int64 {
	return r.Graph.NodeCount()
}

func sourceVolume(r Request) int64 {
	return r.sourceCount()
}
