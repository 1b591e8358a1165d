package main

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/willbeason/table-linking/pkg/config"
	"github.com/willbeason/table-linking/pkg/ned"
	"github.com/willbeason/table-linking/pkg/pipeline"
	"go.uber.org/zap"
)

const (
	FlagConfig      = "config"
	FlagMetricsAddr = "metrics-addr"
	FlagVerbose     = "verbose"
)

func init() {
	cmd.Flags().String(FlagConfig, "", "path to a YAML config file")
	cmd.Flags().String(FlagMetricsAddr, "", "serve prometheus metrics on this address while running")
	cmd.Flags().BoolP(FlagVerbose, "v", false, "log at debug level")
}

func main() {
	err := cmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

var cmd = cobra.Command{
	Use:     "link-candidates EXAMPLES... OUT_DIR",
	Short:   "links table cells to candidate entities and writes the ranking dataset as Apache Parquet",
	Args:    cobra.MinimumNArgs(2),
	Version: "0.1.0",
	RunE:    runE,
}

var examplesPattern = regexp.MustCompile(`\.jsonl(\.gz)?$`)

func runE(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	inPaths := args[:len(args)-1]
	outDir := args[len(args)-1]

	configPath, err := cmd.Flags().GetString(FlagConfig)
	if err != nil {
		return err
	}
	cfg, errs := config.Load(configPath)
	if len(errs) > 0 {
		return fmt.Errorf("loading config: %w", errors.Join(errs...))
	}

	logger, err := newLogger(cmd)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	summary := cfg.LogSummary()
	fields := make([]zap.Field, 0, len(summary))
	for _, k := range slices.Sorted(maps.Keys(summary)) {
		fields = append(fields, zap.String(k, summary[k]))
	}
	logger.Info("loaded config", fields...)

	metricsAddr, err := cmd.Flags().GetString(FlagMetricsAddr)
	if err != nil {
		return err
	}
	if metricsAddr != "" {
		stop := serveMetrics(metricsAddr, logger)
		defer stop()
	}

	paths, err := examplePaths(inPaths)
	if err != nil {
		return fmt.Errorf("listing examples: %w", err)
	}
	examples, err := ned.ReadExampleFiles(paths)
	if err != nil {
		return fmt.Errorf("reading examples: %w", err)
	}
	logger.Info("read examples", zap.Int("files", len(paths)), zap.Int("examples", len(examples)))

	p, err := pipeline.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		err := p.Close()
		if err != nil {
			logger.Warn("closing pipeline", zap.Error(err))
		}
	}()

	result, err := p.Run(ctx, examples)
	if err != nil {
		return err
	}

	err = result.Write(outDir)
	if err != nil {
		return fmt.Errorf("writing results: %w", err)
	}
	logger.Info("wrote results", zap.String("dir", outDir), zap.Stringer("run_id", result.RunID))
	return nil
}

func newLogger(cmd *cobra.Command) (*zap.Logger, error) {
	verbose, err := cmd.Flags().GetBool(FlagVerbose)
	if err != nil {
		return nil, err
	}
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// examplePaths expands directories to the example files directly inside
// them, in name order.
func examplePaths(inPaths []string) ([]string, error) {
	var result []string
	for _, inPath := range inPaths {
		stat, err := os.Stat(inPath)
		if err != nil {
			return nil, err
		}
		if !stat.IsDir() {
			result = append(result, inPath)
			continue
		}

		entries, err := os.ReadDir(inPath)
		if err != nil {
			return nil, err
		}
		var names []string
		for _, entry := range entries {
			if entry.IsDir() || !examplesPattern.MatchString(entry.Name()) {
				continue
			}
			names = append(names, entry.Name())
		}
		slices.Sort(names)
		for _, name := range names {
			result = append(result, filepath.Join(inPath, name))
		}
	}
	return result, nil
}

// serveMetrics exposes the default prometheus registry until the returned
// function is called.
func serveMetrics(addr string, logger *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("serving metrics", zap.String("addr", addr), zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", addr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}
