package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/graph-analysis/internal/storage"
	apperrors "github.com/graph-analysis/pkg/errors"
	"github.com/graph-analysis/pkg/writer"
)

var (
	listLimit   int
	showTop     int
	fetchOut    string
	fetchDecode bool
)

// runsCmd groups the run catalog commands
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect recorded runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the most recent runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		defer svc.Close()

		runs, err := svc.Runner().ListRuns(cmd.Context(), listLimit)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "UUID\tALGORITHM\tSTATUS\tNODES\tEDGES\tDURATION\tSTARTED")
		for _, r := range runs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%v\t%s\n",
				r.UUID, r.Algorithm, r.Status, r.NodeCount, r.EdgeCount,
				r.Duration, r.StartedAt.Local().Format(time.DateTime))
		}
		return w.Flush()
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <uuid>",
	Short: "Show a run and its best stored scores",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		defer svc.Close()

		run, scores, err := svc.Runner().ShowRun(cmd.Context(), args[0], showTop)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Run:        %s\n", run.UUID)
		fmt.Fprintf(out, "Algorithm:  %s\n", run.Algorithm)
		fmt.Fprintf(out, "Status:     %s\n", run.Status)
		if run.Message != "" {
			fmt.Fprintf(out, "Message:    %s\n", run.Message)
		}
		fmt.Fprintf(out, "Input:      %s (directed=%t)\n", run.InputPath, run.Directed)
		fmt.Fprintf(out, "Graph:      %d nodes, %d edges\n", run.NodeCount, run.EdgeCount)
		fmt.Fprintf(out, "Workers:    %d\n", run.Concurrency)
		fmt.Fprintf(out, "Duration:   %v\n", run.Duration)
		for k, v := range run.Params {
			fmt.Fprintf(out, "Param:      %s=%s\n", k, v)
		}
		if run.ExportKey != "" {
			fmt.Fprintf(out, "Export:     %s\n", run.ExportKey)
		}
		if len(scores) == 0 {
			return nil
		}

		fmt.Fprintln(out)
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "RANK\tNODE\tSCORE")
		for _, s := range scores {
			fmt.Fprintf(w, "%d\t%d\t%.6g\n", s.Rank, s.OriginalID, s.Score)
		}
		return w.Flush()
	},
}

var runsFetchCmd = &cobra.Command{
	Use:   "fetch <uuid>",
	Short: "Download the exported scores of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svc, err := openService(ctx)
		if err != nil {
			return err
		}
		defer svc.Close()

		run, _, err := svc.Runner().ShowRun(ctx, args[0], 1)
		if err != nil {
			return err
		}
		if run.ExportKey == "" {
			return apperrors.Newf(apperrors.CodeNotFound, "run %s has no export", run.UUID)
		}

		dest := fetchOut
		if dest == "" {
			dest = filepath.Base(run.ExportKey)
			if fetchDecode {
				dest = storage.ExportFileName
			}
		}
		if dir := filepath.Dir(dest); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}
		if fetchDecode {
			doc, err := storage.ReadExport(ctx, svc.Storage(), run.ExportKey)
			if err != nil {
				return err
			}
			if err := writer.NewPrettyJSONWriter[*storage.Export]().WriteToFile(doc, dest); err != nil {
				return apperrors.Wrap(apperrors.CodeStorageError, "failed to write export", err)
			}
		} else if err := svc.Storage().DownloadFile(ctx, run.ExportKey, dest); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", svc.Storage().GetURL(run.ExportKey), dest)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd, runsShowCmd, runsFetchCmd)

	runsListCmd.Flags().IntVarP(&listLimit, "limit", "l", 20, "Maximum number of runs to list")
	runsShowCmd.Flags().IntVarP(&showTop, "top", "n", 0, "Number of scores to show (0 uses export.top_k)")
	runsFetchCmd.Flags().StringVarP(&fetchOut, "output", "o", "", "Local file (default: the export file name)")
	runsFetchCmd.Flags().BoolVar(&fetchDecode, "decode", false, "Decompress and write indented JSON")
}
