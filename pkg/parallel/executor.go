// Package parallel runs range-partitioned batches on a fixed pool of workers
// with cooperative termination.
package parallel

import (
	"context"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/graph-analysis/pkg/errors"
	"github.com/graph-analysis/pkg/progress"
	"github.com/graph-analysis/pkg/termination"
	"github.com/graph-analysis/pkg/utils"
)

// ============================================================================
// Configuration
// ============================================================================

// DefaultMinBatchSize is the smallest range handed to a worker by default.
const DefaultMinBatchSize int64 = 10_000

// batchesPerWorker oversplits the range so that uneven batches balance out.
const batchesPerWorker = 4

// Config configures an Executor.
type Config struct {
	// Concurrency is the number of workers. Default: runtime.NumCPU()
	Concurrency int

	// MinBatchSize is the lower bound on the length of a batch.
	// Default: DefaultMinBatchSize
	MinBatchSize int64
}

// DefaultConfig returns a configuration using every CPU.
func DefaultConfig() Config {
	return Config{
		Concurrency:  runtime.NumCPU(),
		MinBatchSize: DefaultMinBatchSize,
	}
}

// WithConcurrency returns a copy of the config with n workers.
func (c Config) WithConcurrency(n int) Config {
	c.Concurrency = n
	return c
}

// WithMinBatchSize returns a copy of the config with the given minimum batch size.
func (c Config) WithMinBatchSize(n int64) Config {
	c.MinBatchSize = n
	return c
}

func (c Config) normalized() Config {
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.MinBatchSize < 1 {
		c.MinBatchSize = 1
	}
	return c
}

// ============================================================================
// Partitioning
// ============================================================================

// Range is the half-open index interval [Start, End).
type Range struct {
	Start int64
	End   int64
}

// Len returns the number of indices in the range.
func (r Range) Len() int64 {
	return r.End - r.Start
}

// Partition splits [start, end) into contiguous, non-overlapping ranges that
// cover it exactly. Batch length is max(minBatch, ceil(n / (concurrency*4))).
func Partition(start, end int64, concurrency int, minBatch int64) []Range {
	n := end - start
	if n <= 0 {
		return nil
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if minBatch < 1 {
		minBatch = 1
	}

	target := int64(concurrency) * batchesPerWorker
	size := (n + target - 1) / target
	if size < minBatch {
		size = minBatch
	}

	ranges := make([]Range, 0, (n+size-1)/size)
	for s := start; s < end; s += size {
		e := s + size
		if e > end {
			e = end
		}
		ranges = append(ranges, Range{Start: s, End: e})
	}
	return ranges
}

// ============================================================================
// Executor
// ============================================================================

// BatchFunc processes one range on the worker identified by workerID.
// workerID is in [0, Concurrency) and is stable for the worker's lifetime.
type BatchFunc func(ctx context.Context, workerID int, r Range) error

// TaskFunc is a pre-built unit of work.
type TaskFunc func(ctx context.Context, workerID int) error

// Executor dispatches batches to a fixed pool of workers.
type Executor struct {
	config  Config
	tracker progress.Tracker
	logger  utils.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithTracker makes the executor log each finished batch's length as progress.
func WithTracker(t progress.Tracker) Option {
	return func(e *Executor) {
		e.tracker = progress.OrEmpty(t)
	}
}

// WithLogger sets the executor's logger.
func WithLogger(logger utils.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewExecutor creates an executor.
func NewExecutor(cfg Config, opts ...Option) *Executor {
	e := &Executor{
		config:  cfg.normalized(),
		tracker: progress.EmptyTracker{},
		logger:  &utils.NullLogger{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Concurrency returns the number of workers.
func (e *Executor) Concurrency() int {
	return e.config.Concurrency
}

// Config returns the executor configuration.
func (e *Executor) Config() Config {
	return e.config
}

// ParallelFor partitions [start, end) and runs body once per batch.
//
// The flag is checked before every batch; once it stops, no further batch is
// started and the call returns a TERMINATED error unless every batch had
// already completed. The first error or panic from body stops dispatch and
// is returned after in-flight batches finish.
func (e *Executor) ParallelFor(ctx context.Context, start, end int64, flag termination.Flag, body BatchFunc) error {
	if start >= end {
		return nil
	}
	if err := flag.AssertRunning(); err != nil {
		return err
	}

	batches := Partition(start, end, e.config.Concurrency, e.config.MinBatchSize)
	e.logger.Debug("parallel for [%d, %d): %d batches on %d workers",
		start, end, len(batches), e.config.Concurrency)

	return e.dispatch(ctx, len(batches), flag, func(ctx context.Context, workerID, i int) error {
		r := batches[i]
		if err := body(ctx, workerID, r); err != nil {
			return err
		}
		e.tracker.LogProgress(r.Len())
		return nil
	})
}

// ParallelForEachNode calls fn for every node in [0, nodeCount).
func (e *Executor) ParallelForEachNode(ctx context.Context, nodeCount int64, flag termination.Flag, fn func(node int64)) error {
	return e.ParallelFor(ctx, 0, nodeCount, flag, func(_ context.Context, _ int, r Range) error {
		for node := r.Start; node < r.End; node++ {
			fn(node)
		}
		return nil
	})
}

// RunTasks runs pre-built tasks with the same dispatch, termination and
// failure rules as ParallelFor. Tasks log their own progress.
func (e *Executor) RunTasks(ctx context.Context, flag termination.Flag, tasks []TaskFunc) error {
	if len(tasks) == 0 {
		return nil
	}
	if err := flag.AssertRunning(); err != nil {
		return err
	}
	return e.dispatch(ctx, len(tasks), flag, func(ctx context.Context, workerID, i int) error {
		return tasks[i](ctx, workerID)
	})
}

func (e *Executor) dispatch(ctx context.Context, n int, flag termination.Flag, run func(ctx context.Context, workerID, i int) error) error {
	workers := e.config.Concurrency
	if workers > n {
		workers = n
	}

	var (
		cursor    atomic.Int64
		completed atomic.Int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for w := 0; w < workers; w++ {
		workerID := w
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = apperrors.FromPanic(r)
					e.logger.Error("worker %d panicked: %v", workerID, r)
				}
			}()

			for {
				// gctx is cancelled once any worker fails
				if !flag.Running() || gctx.Err() != nil {
					return nil
				}
				i := cursor.Add(1) - 1
				if i >= int64(n) {
					return nil
				}
				if err := run(gctx, workerID, int(i)); err != nil {
					return err
				}
				completed.Add(1)
			}
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if completed.Load() == int64(n) {
		return nil
	}
	if err := flag.AssertRunning(); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return apperrors.Wrap(apperrors.CodeTerminated, "context done", ctx.Err())
	}
	return nil
}
