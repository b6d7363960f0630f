// Package cmd implements the graph-analysis command line.
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/graph-analysis/internal/service"
	"github.com/graph-analysis/pkg/config"
	"github.com/graph-analysis/pkg/pprof"
	"github.com/graph-analysis/pkg/telemetry"
	"github.com/graph-analysis/pkg/utils"
)

var (
	// Global flags
	configPath string
	verbose    bool

	cfg    *config.Config
	logger utils.Logger

	// Pprof flags
	pprofEnabled  bool
	pprofMode     string
	pprofDir      string
	pprofProfiles string
	pprofCPURate  int
	pprofAddr     string

	pprofCollector    *pprof.Collector
	telemetryShutdown telemetry.ShutdownFunc
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "graph-analysis",
	Short: "Parallel centrality analysis of large graphs",
	Long: `graph-analysis computes node centrality scores over edge list files.

Traversal-based scores (harmonic, closeness) run 64 breadth-first searches
per sweep; degree scores run one parallel pass over the nodes. Every run is
recorded in the run catalog together with its best scores and can optionally
be exported, compressed, to local or COS storage.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded

		level := utils.ParseLogLevel(cfg.Log.Level)
		if verbose {
			level = utils.LevelDebug
		}
		if cfg.Log.OutputPath != "" {
			l, err := utils.NewFileLogger(level, cfg.Log.OutputPath)
			if err != nil {
				return fmt.Errorf("failed to open log file: %w", err)
			}
			logger = l
		} else {
			logger = utils.NewDefaultLogger(level, os.Stdout)
		}
		utils.SetGlobalLogger(logger)

		shutdown, err := telemetry.Init(cmd.Context())
		if err != nil {
			logger.Warn("telemetry disabled: %v", err)
		}
		telemetryShutdown = shutdown

		if pprofEnabled {
			pcfg, err := buildPprofConfig()
			if err != nil {
				return err
			}
			collector, err := pprof.NewCollector(pcfg, logger)
			if err != nil {
				return err
			}
			if err := collector.Start(); err != nil {
				return err
			}
			pprofCollector = collector
			logger.Info("pprof collection started (mode: %s)", pcfg.Mode)
		}

		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if pprofCollector != nil {
			if err := pprofCollector.Stop(); err != nil {
				logger.Warn("Failed to stop pprof collector: %v", err)
			}
			for _, f := range pprofCollector.Files() {
				logger.Info("pprof profile written: %s", f)
			}
		}
		if telemetryShutdown != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := telemetryShutdown(ctx); err != nil {
				logger.Warn("Failed to flush traces: %v", err)
			}
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ./config.yaml, ./configs/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	rootCmd.PersistentFlags().BoolVar(&pprofEnabled, "pprof", false, "Profile the process while the command runs")
	rootCmd.PersistentFlags().StringVar(&pprofMode, "pprof-mode", "file", "Pprof mode: file (written on exit) or http (on-demand)")
	rootCmd.PersistentFlags().StringVar(&pprofDir, "pprof-dir", "./pprof", "Output directory for pprof data")
	rootCmd.PersistentFlags().StringVar(&pprofProfiles, "pprof-profiles", "cpu,heap", "Comma-separated profile types: cpu,heap,goroutine,block,mutex,allocs")
	rootCmd.PersistentFlags().IntVar(&pprofCPURate, "pprof-cpu-rate", 0, "CPU profiling rate in Hz (0 keeps the runtime default)")
	rootCmd.PersistentFlags().StringVar(&pprofAddr, "pprof-addr", "localhost:6060", "HTTP listen address for http mode")

	binName := BinName()
	rootCmd.Example = `  # Harmonic centrality of an undirected edge list
  ` + binName + ` run -a harmonic -i ./edges.txt

  # Closeness on a directed graph, exported to storage
  ` + binName + ` run -a closeness -i ./edges.txt --directed --export

  # List recent runs and show one of them
  ` + binName + ` runs list
  ` + binName + ` runs show <uuid>

  # Profile a run
  ` + binName + ` run -a harmonic -i ./edges.txt --pprof --pprof-profiles cpu,heap`
}

// BinName returns the base name of the current executable
func BinName() string {
	return filepath.Base(os.Args[0])
}

func buildPprofConfig() (*pprof.Config, error) {
	pcfg := pprof.DefaultConfig()
	pcfg.Enabled = true
	pcfg.Mode = pprof.ModeType(pprofMode)
	pcfg.OutputDir = pprofDir
	pcfg.Addr = pprofAddr
	pcfg.CPURate = pprofCPURate

	profiles, err := pprof.ParseProfileTypes(pprofProfiles)
	if err != nil {
		return nil, err
	}
	pcfg.Profiles = profiles

	if err := pcfg.Validate(); err != nil {
		return nil, err
	}
	return pcfg, nil
}

// openService initializes a Service from the loaded config. The caller
// closes it.
func openService(ctx context.Context) (*service.Service, error) {
	svc, err := service.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := svc.Initialize(ctx); err != nil {
		return nil, err
	}
	return svc, nil
}
