package msbfs

import (
	"context"

	"github.com/graph-analysis/pkg/collections"
	apperrors "github.com/graph-analysis/pkg/errors"
	"github.com/graph-analysis/pkg/parallel"
	"github.com/graph-analysis/pkg/progress"
	"github.com/graph-analysis/pkg/termination"
)

// Batch is one group of at most Omega sources. Either Sources is set, or the
// batch covers the consecutive ids [Start, End).
type Batch struct {
	Start, End int64
	Sources    []int64
}

// Len returns the number of sources in the batch.
func (b Batch) Len() int {
	if b.Sources != nil {
		return len(b.Sources)
	}
	return int(b.End - b.Start)
}

// RangeBatches splits the sources [0, nodeCount) into consecutive batches of Omega.
// The last batch holds the remainder.
func RangeBatches(nodeCount int64) []Batch {
	if nodeCount <= 0 {
		return nil
	}
	batches := make([]Batch, 0, (nodeCount+Omega-1)/Omega)
	for start := int64(0); start < nodeCount; start += Omega {
		end := start + Omega
		if end > nodeCount {
			end = nodeCount
		}
		batches = append(batches, Batch{Start: start, End: end})
	}
	return batches
}

// SourceBatches splits an explicit source list into consecutive batches of Omega.
func SourceBatches(sources []int64) []Batch {
	batches := make([]Batch, 0, (len(sources)+Omega-1)/Omega)
	for start := 0; start < len(sources); start += Omega {
		end := start + Omega
		if end > len(sources) {
			end = len(sources)
		}
		batches = append(batches, Batch{Sources: sources[start:end]})
	}
	return batches
}

type runConfig struct {
	sources     []int64
	tracker     progress.Tracker
	pageOptions []collections.Option
}

// RunOption configures RunAll.
type RunOption func(*runConfig)

// WithSources restricts the traversal to the given sources instead of every node.
func WithSources(sources []int64) RunOption {
	return func(c *runConfig) {
		c.sources = sources
	}
}

// WithProgress logs the number of sources of every finished batch.
func WithProgress(t progress.Tracker) RunOption {
	return func(c *runConfig) {
		c.tracker = progress.OrEmpty(t)
	}
}

// WithPageOptions sets the page geometry of each worker's frontier arrays.
func WithPageOptions(opts ...collections.Option) RunOption {
	return func(c *runConfig) {
		c.pageOptions = opts
	}
}

// RunAll runs batches of Omega sources on the executor's workers. Each worker
// lazily builds one Engine and reuses it for every batch it processes.
//
// cb is called concurrently from different workers, so any shared state it
// updates must use atomic primitives.
func RunAll(ctx context.Context, exec *parallel.Executor, nodeCount int64, graph Neighbors,
	flag termination.Flag, cb Callback, opts ...RunOption) error {
	cfg := runConfig{tracker: progress.EmptyTracker{}}
	for _, opt := range opts {
		opt(&cfg)
	}

	if nodeCount == 0 {
		return nil
	}
	if err := flag.AssertRunning(); err != nil {
		return err
	}

	var batches []Batch
	if cfg.sources != nil {
		for _, s := range cfg.sources {
			if s < 0 || s >= nodeCount {
				return apperrors.Newf(apperrors.CodeInvalidInput,
					"source %d outside [0, %d)", s, nodeCount)
			}
		}
		batches = SourceBatches(cfg.sources)
	} else {
		batches = RangeBatches(nodeCount)
	}

	engines := parallel.NewWorkerLocalFor(exec, func() *Engine {
		return NewEngine(nodeCount, graph, cfg.pageOptions...)
	})

	tasks := make([]parallel.TaskFunc, len(batches))
	for i := range batches {
		batch := batches[i]
		tasks[i] = func(_ context.Context, workerID int) error {
			engine := engines.Get(workerID)
			var err error
			if batch.Sources != nil {
				err = engine.Run(flag, batch.Sources, cb)
			} else {
				err = engine.RunRange(flag, batch.Start, batch.End, cb)
			}
			if err != nil {
				return err
			}
			cfg.tracker.LogProgress(int64(batch.Len()))
			return nil
		}
	}

	return exec.RunTasks(ctx, flag, tasks)
}
