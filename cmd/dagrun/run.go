package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/aescanero/dagrun/internal/application/orchestrator"
	"github.com/aescanero/dagrun/internal/config"
	"github.com/aescanero/dagrun/pkg/domain"
	"github.com/aescanero/dagrun/pkg/ports"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute a graph file once",
	Long: `Execute a graph file locally with the built-in agents and print the run
result as JSON. The file may be YAML or JSON, and may hold either a bare graph
({nodes, edges}) or a request body ({graph, concurrency}).

The command exits non-zero unless every node succeeded.

Examples:
  dagrun run -f graph.yaml
  dagrun run -f graph.json -c 8`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		logLevel, _ := cmd.Flags().GetString("log-level")

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		logger := initLogger(logLevel)
		defer logger.Sync()

		spec, fileConcurrency, err := loadGraph(path)
		if err != nil {
			return err
		}
		if !cmd.Flags().Changed("concurrency") {
			concurrency = cfg.Executor.DefaultConcurrency
			if fileConcurrency != nil {
				concurrency = *fileConcurrency
			}
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		result, err := runOnce(ctx, cfg, spec, concurrency, logger)
		if err != nil {
			return err
		}

		if err := printJSON(cmd.OutOrStdout(), result); err != nil {
			return err
		}
		if result.Status != domain.RunStatusSucceeded {
			return fmt.Errorf("run %s finished with status %s", result.RunID, result.Status)
		}
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a graph file and print its layers",
	Long: `Validate a graph file without running it. On success the execution
layers are printed, one per line, in the order they would run.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")

		spec, _, err := loadGraph(path)
		if err != nil {
			return err
		}

		graph, err := orchestrator.BuildGraph(spec)
		if err != nil {
			return fmt.Errorf("invalid graph: %w", err)
		}

		out := cmd.OutOrStdout()
		for i, layer := range graph.Layers() {
			fmt.Fprintf(out, "layer %d: %v\n", i, layer)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringP("file", "f", "", "Graph file (YAML or JSON)")
	runCmd.Flags().IntP("concurrency", "c", 4, "Maximum number of nodes in flight")
	runCmd.Flags().String("log-level", "warn", "Log level (debug, info, warn, error)")
	_ = runCmd.MarkFlagRequired("file")

	validateCmd.Flags().StringP("file", "f", "", "Graph file (YAML or JSON)")
	_ = validateCmd.MarkFlagRequired("file")
}

// runOnce executes spec in-process; no events are published and no record is stored
func runOnce(ctx context.Context, cfg *config.Config, spec *domain.GraphSpec, concurrency int, logger *zap.Logger) (*domain.RunResult, error) {
	metrics := ports.NopMetrics{}

	reg, err := buildRegistry(cfg, metrics, logger)
	if err != nil {
		return nil, err
	}

	manager := orchestrator.NewManager(reg, nil, metrics, logger, executorOptions(cfg))

	result, err := manager.Run(ctx, spec, concurrency)
	if err != nil {
		return nil, fmt.Errorf("failed to run graph: %w", err)
	}
	return result, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return nil
}

