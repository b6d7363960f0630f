package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/graph-analysis/internal/service"
	apperrors "github.com/graph-analysis/pkg/errors"
)

var (
	// Run command flags
	algorithm   string
	inputFile   string
	concurrency int
	directed    bool
	normalize   bool
	topK        int
	export      bool
	sources     []int64
	timeout     time.Duration
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Compute a centrality algorithm over an edge list",
	Long: `Load an edge list file, compute one score per node and record the run.

The input holds one edge per line: "source target" or "source target weight".
Lines starting with # or % are ignored. Node ids may be sparse; they are
mapped to a dense range on load.

Interrupting the command (Ctrl+C) or reaching --timeout stops the computation
at the next check; the run is then recorded as terminated.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&algorithm, "algorithm", "a", "harmonic", "Algorithm to compute (see the version command for the list)")
	runCmd.Flags().StringVarP(&inputFile, "input", "i", "", "Edge list file (required)")
	runCmd.Flags().IntVarP(&concurrency, "concurrency", "c", 0, "Worker count (0 uses engine.concurrency)")
	runCmd.Flags().BoolVar(&directed, "directed", false, "Treat edges as directed")
	runCmd.Flags().BoolVar(&normalize, "normalize", false, "Normalize scores")
	runCmd.Flags().IntVarP(&topK, "top", "n", 0, "Number of best scores to store and print (0 uses export.top_k)")
	runCmd.Flags().BoolVar(&export, "export", false, "Export every score to storage")
	runCmd.Flags().Int64SliceVar(&sources, "sources", nil, "Restrict traversals to these node indices (0-based, in load order)")
	runCmd.Flags().DurationVar(&timeout, "timeout", 0, "Stop the computation after this duration (0 disables)")
	runCmd.MarkFlagRequired("input")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	svc, err := openService(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	req := service.RunRequest{
		Algorithm:   algorithm,
		InputPath:   inputFile,
		Directed:    directed,
		Normalize:   normalize,
		Concurrency: concurrency,
		TopK:        topK,
		Export:      export,
	}
	if len(sources) > 0 {
		req.Sources = sources
	}

	result, err := svc.Runner().Run(ctx, req)
	if err != nil {
		if apperrors.IsTerminated(err) {
			logger.Warn("Run stopped: %v", err)
		}
		return err
	}

	printRunResult(cmd, result)
	return nil
}

func printRunResult(cmd *cobra.Command, result *service.RunResult) {
	out := cmd.OutOrStdout()
	run := result.Run

	fmt.Fprintf(out, "Run:        %s\n", run.UUID)
	fmt.Fprintf(out, "Algorithm:  %s\n", result.Result.Algorithm)
	fmt.Fprintf(out, "Graph:      %d nodes, %d edges\n", run.NodeCount, run.EdgeCount)
	fmt.Fprintf(out, "Duration:   %v\n", run.Duration)
	stats := result.Result.Stats
	fmt.Fprintf(out, "Scores:     min=%.6g max=%.6g mean=%.6g\n", stats.Min, stats.Max, stats.Mean)
	if result.ExportKey != "" {
		fmt.Fprintf(out, "Export:     %s\n", result.ExportKey)
	}
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tNODE\tSCORE")
	for i, s := range result.Top {
		fmt.Fprintf(w, "%d\t%d\t%.6g\n", i+1, s.OriginalID, s.Score)
	}
	w.Flush()

	if verbose && result.Progress != "" {
		fmt.Fprintln(out)
		fmt.Fprintln(out, strings.TrimRight(result.Progress, "\n"))
	}
}
