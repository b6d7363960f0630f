package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/graph-analysis/internal/centrality"
	"github.com/graph-analysis/internal/graph"
	"github.com/graph-analysis/internal/repository"
	"github.com/graph-analysis/internal/storage"
	"github.com/graph-analysis/pkg/config"
	apperrors "github.com/graph-analysis/pkg/errors"
	"github.com/graph-analysis/pkg/parallel"
	"github.com/graph-analysis/pkg/progress"
	"github.com/graph-analysis/pkg/telemetry"
	"github.com/graph-analysis/pkg/termination"
	"github.com/graph-analysis/pkg/utils"
)

var tracer = telemetry.Tracer("service")

// defaultTopK is used when neither the request nor the config set one.
const defaultTopK = 20

// RunRequest describes one algorithm run over an edge list file.
type RunRequest struct {
	Algorithm   string
	InputPath   string
	Directed    bool
	Normalize   bool
	Concurrency int // 0 uses the engine config
	TopK        int // 0 uses the export config
	Export      bool
	Sources     []int64
}

func (r RunRequest) validate() error {
	if r.Algorithm == "" {
		return apperrors.New(apperrors.CodeInvalidInput, "algorithm is required")
	}
	if r.InputPath == "" {
		return apperrors.New(apperrors.CodeInvalidInput, "input path is required")
	}
	if r.Concurrency < 0 {
		return apperrors.Newf(apperrors.CodeInvalidInput, "concurrency must not be negative, got %d", r.Concurrency)
	}
	if r.TopK < 0 {
		return apperrors.Newf(apperrors.CodeInvalidInput, "top k must not be negative, got %d", r.TopK)
	}
	return nil
}

func (r RunRequest) params() map[string]string {
	p := map[string]string{
		"normalize": strconv.FormatBool(r.Normalize),
	}
	if r.Sources != nil {
		p["sources"] = strconv.Itoa(len(r.Sources))
	}
	return p
}

// RunResult is the outcome of a successful run.
type RunResult struct {
	Run       *repository.Run
	Result    *centrality.Result
	Top       []centrality.NodeScore
	ExportKey string
	// Progress is the rendered task tree of the run.
	Progress string
}

// RunnerConfig holds the dependencies of a Runner.
type RunnerConfig struct {
	Engine config.EngineConfig
	Export config.ExportConfig
	Runs   repository.RunRepository
	// Storage receives exports. nil disables exporting.
	Storage  storage.Storage
	Registry *centrality.Registry
	Logger   utils.Logger
}

// Runner loads a graph, computes an algorithm under a termination flag and
// records the outcome.
type Runner struct {
	engine   config.EngineConfig
	export   config.ExportConfig
	runs     repository.RunRepository
	exporter *storage.Exporter
	registry *centrality.Registry
	logger   utils.Logger
}

// NewRunner creates a Runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Runs == nil {
		return nil, apperrors.New(apperrors.CodeConfigError, "run repository is required")
	}

	r := &Runner{
		engine:   cfg.Engine,
		export:   cfg.Export,
		runs:     cfg.Runs,
		registry: cfg.Registry,
		logger:   utils.OrGlobal(cfg.Logger),
	}
	if r.registry == nil {
		r.registry = centrality.DefaultRegistry()
	}
	if cfg.Storage != nil {
		exporter, err := storage.NewExporter(cfg.Storage, &cfg.Export, r.logger)
		if err != nil {
			return nil, err
		}
		r.exporter = exporter
	}
	return r, nil
}

// Algorithms returns the names accepted by Run.
func (r *Runner) Algorithms() []string {
	return r.registry.Names()
}

// Run executes req. Cancelling ctx stops the computation; the run is then
// recorded as terminated and no scores are saved. The returned error of a
// stopped run matches apperrors.ErrTerminated.
func (r *Runner) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	alg, err := r.registry.Get(req.Algorithm)
	if err != nil {
		return nil, err
	}
	doExport := req.Export || r.export.Enabled
	if doExport && r.exporter == nil {
		return nil, apperrors.New(apperrors.CodeConfigError, "export requested but no storage is configured")
	}

	run := &repository.Run{
		UUID:        uuid.NewString(),
		Algorithm:   alg.Name(),
		InputPath:   req.InputPath,
		Concurrency: r.concurrency(req),
		Directed:    req.Directed,
		Params:      req.params(),
	}

	ctx, span := tracer.Start(ctx, "service.run",
		trace.WithAttributes(
			attribute.String("run.uuid", run.UUID),
			attribute.String("run.algorithm", run.Algorithm),
			attribute.String("run.input", run.InputPath),
			attribute.Int("run.concurrency", run.Concurrency),
		),
	)
	defer span.End()

	logger := r.logger.WithFields(map[string]interface{}{
		"run":       run.UUID,
		"algorithm": run.Algorithm,
	})

	if err := r.runs.CreateRun(ctx, run); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	logger.Info("run started: input=%s concurrency=%d", run.InputPath, run.Concurrency)

	flag, release := termination.FromContext(ctx)
	defer release()

	tracker := progress.NewTaskTracker("run", progress.UnknownVolume, progress.WithLogger(logger))
	start := time.Now()

	res, err := r.execute(ctx, run, req, alg, flag, tracker, doExport, logger)
	run.Duration = time.Since(start)

	// bookkeeping must outlive a cancelled ctx
	bg := context.WithoutCancel(ctx)
	if err != nil {
		run.Status = repository.RunStatusFailed
		if apperrors.IsTerminated(err) {
			run.Status = repository.RunStatusTerminated
			if reason := flag.Reason(); reason != "" {
				logger.Warn("run terminated: %s", reason)
			}
		}
		run.Message = err.Error()
		// a recovered panic can leave nested subtasks open
		for tracker.Current() != nil {
			tracker.EndSubtaskWithFailure(err)
		}
		if finishErr := r.runs.FinishRun(bg, run.UUID, run.Status, run.Message, run.Duration); finishErr != nil {
			logger.Error("failed to record run status: %v", finishErr)
		}

		span.SetAttributes(attribute.String("run.status", string(run.Status)))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("run %s after %v: %v", run.Status, run.Duration, err)
		return nil, err
	}

	run.Status = repository.RunStatusSucceeded
	tracker.EndSubtask()
	if err := r.runs.FinishRun(bg, run.UUID, run.Status, "", run.Duration); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.String("run.status", string(run.Status)))
	res.Run = run
	res.Progress = tracker.Summary()
	logger.Info("run succeeded in %v", run.Duration)
	return res, nil
}

// execute performs the load, compute and persist steps. Panics are turned
// into errors so that the run is still recorded.
func (r *Runner) execute(ctx context.Context, run *repository.Run, req RunRequest, alg centrality.Algorithm,
	flag termination.Flag, tracker *progress.TaskTracker, doExport bool, logger utils.Logger) (res *RunResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = apperrors.FromPanic(p)
			res = nil
		}
	}()

	exec := parallel.NewExecutor(r.executorConfig(run.Concurrency), parallel.WithLogger(logger))

	g, err := r.load(ctx, run, req, exec, flag, tracker, logger)
	if err != nil {
		return nil, err
	}

	tracker.BeginSubtask("compute")
	result, err := alg.Compute(ctx, centrality.Request{
		Graph:     g,
		Executor:  exec,
		Flag:      flag,
		Tracker:   tracker,
		Logger:    logger,
		Sources:   req.Sources,
		Normalize: req.Normalize,
		PageShift: r.engine.PageShift,
	})
	if err != nil {
		tracker.EndSubtaskWithFailure(err)
		return nil, err
	}
	tracker.EndSubtask()

	// a stop that raced with the last batch still counts
	if err := flag.AssertRunning(); err != nil {
		return nil, err
	}

	tracker.BeginSubtask("persist")
	res, err = r.persist(ctx, run, req, result, doExport)
	if err != nil {
		tracker.EndSubtaskWithFailure(err)
		return nil, err
	}
	tracker.EndSubtask()
	return res, nil
}

func (r *Runner) load(ctx context.Context, run *repository.Run, req RunRequest, exec *parallel.Executor,
	flag termination.Flag, tracker *progress.TaskTracker, logger utils.Logger) (*graph.Graph, error) {
	tracker.BeginSubtask("load")

	g, err := graph.LoadEdgeListFile(ctx, req.InputPath, exec, flag, graph.LoadOptions{
		Undirected: !req.Directed,
		Logger:     logger,
	})
	if err != nil {
		tracker.EndSubtaskWithFailure(err)
		return nil, err
	}
	tracker.EndSubtask()

	run.NodeCount, run.EdgeCount = g.NodeCount(), g.EdgeCount()
	if err := r.runs.UpdateGraphInfo(ctx, run.UUID, run.NodeCount, run.EdgeCount); err != nil {
		return nil, err
	}

	for _, s := range req.Sources {
		if s < 0 || s >= g.NodeCount() {
			return nil, apperrors.Newf(apperrors.CodeInvalidInput,
				"source %d out of range [0, %d)", s, g.NodeCount())
		}
	}
	return g, nil
}

func (r *Runner) persist(ctx context.Context, run *repository.Run, req RunRequest, result *centrality.Result, doExport bool) (*RunResult, error) {
	top := result.TopK(r.topK(req))
	scores := make([]repository.NodeScore, len(top))
	for i, s := range top {
		scores[i] = repository.NodeScore{
			Rank:       i + 1,
			Node:       s.Node,
			OriginalID: s.OriginalID,
			Score:      s.Score,
		}
	}
	if err := r.runs.SaveScores(ctx, run.UUID, scores); err != nil {
		return nil, err
	}

	res := &RunResult{Result: result, Top: top}
	if !doExport {
		return res, nil
	}

	key, err := r.exporter.Export(ctx, run.UUID, result)
	if err != nil {
		return nil, err
	}
	if err := r.runs.SetExportKey(ctx, run.UUID, key); err != nil {
		return nil, err
	}
	run.ExportKey = key
	res.ExportKey = key
	return res, nil
}

func (r *Runner) concurrency(req RunRequest) int {
	if req.Concurrency > 0 {
		return req.Concurrency
	}
	if r.engine.Concurrency > 0 {
		return r.engine.Concurrency
	}
	return parallel.DefaultConfig().Concurrency
}

func (r *Runner) executorConfig(concurrency int) parallel.Config {
	cfg := parallel.DefaultConfig().WithConcurrency(concurrency)
	if r.engine.MinBatchSize > 0 {
		cfg = cfg.WithMinBatchSize(r.engine.MinBatchSize)
	}
	return cfg
}

func (r *Runner) topK(req RunRequest) int {
	if req.TopK > 0 {
		return req.TopK
	}
	if r.export.TopK > 0 {
		return r.export.TopK
	}
	return defaultTopK
}

// ListRuns returns the most recent runs first.
func (r *Runner) ListRuns(ctx context.Context, limit int) ([]*repository.Run, error) {
	if limit <= 0 {
		return nil, apperrors.Newf(apperrors.CodeInvalidInput, "limit must be positive, got %d", limit)
	}
	return r.runs.ListRuns(ctx, limit)
}

// ShowRun returns a run together with its k best stored scores.
func (r *Runner) ShowRun(ctx context.Context, runUUID string, k int) (*repository.Run, []repository.NodeScore, error) {
	run, err := r.runs.GetRun(ctx, runUUID)
	if err != nil {
		return nil, nil, err
	}
	if k <= 0 {
		k = r.topK(RunRequest{})
	}
	scores, err := r.runs.TopScores(ctx, runUUID, k)
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.CodeDatabaseError,
			fmt.Sprintf("failed to load scores of run %s", runUUID), err)
	}
	return run, scores, nil
}
