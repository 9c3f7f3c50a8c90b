package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/deoleojr/Disaster-Relief-Project-Part-1/internal/config"
	"github.com/deoleojr/Disaster-Relief-Project-Part-1/internal/data"
	"github.com/deoleojr/Disaster-Relief-Project-Part-1/internal/experiment"
	"github.com/deoleojr/Disaster-Relief-Project-Part-1/internal/logging"
	"github.com/deoleojr/Disaster-Relief-Project-Part-1/internal/report"
)

func main() {
	configFile := flag.String("config", "config/config.yaml", "Path to configuration file")
	outputDir := flag.String("output", "", "Output directory for the report (overrides report.output_dir)")
	dataSource := flag.String("data", "", "Training CSV path or URL (overrides data.source)")
	holdOutDir := flag.String("holdout", "", "Hold-out directory (overrides holdout.dir)")
	flag.Parse()

	os.Exit(run(*configFile, *outputDir, *dataSource, *holdOutDir))
}

func run(configFile, outputDir, dataSource, holdOutDir string) int {
	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 2
	}
	if outputDir != "" {
		cfg.Report.OutputDir = outputDir
	}
	if dataSource != "" {
		cfg.Data.Source = dataSource
	}
	if holdOutDir != "" {
		cfg.HoldOut.Dir = holdOutDir
	}

	logger, err := logging.New(cfg.Log.Mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 2
	}
	defer logging.Sync(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := experiment.NewRunner(cfg, logger)
	results, err := runner.Run(ctx)
	if err != nil {
		if errors.Is(err, data.ErrDataUnavailable) {
			logger.Error("training data unavailable", zap.String("source", cfg.Data.Source), zap.Error(err))
		} else {
			logger.Error("run failed", zap.Error(err))
		}
		return 1
	}

	written, err := report.NewRenderer(cfg.Report, logger).Render(results, runner)
	if err != nil {
		logger.Error("report failed", zap.Error(err))
		return 1
	}

	fmt.Println(report.ConsoleSummary(results))
	for _, path := range written {
		fmt.Printf("Wrote %s\n", path)
	}
	return 0
}
