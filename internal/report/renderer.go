package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/deoleojr/Disaster-Relief-Project-Part-1/internal/config"
	"github.com/deoleojr/Disaster-Relief-Project-Part-1/internal/evaluation"
	"github.com/deoleojr/Disaster-Relief-Project-Part-1/internal/experiment"
	"github.com/deoleojr/Disaster-Relief-Project-Part-1/internal/persistence"
)

// File names inside the report directory.
const (
	MarkdownFile           = "report.md"
	MetricsFile            = "metrics.csv"
	PredictionsFile        = "predictions.csv"
	HoldOutPredictionsFile = "holdout_predictions.csv"
	ROCFile                = "roc_cv.png"
	ManifestFile           = "run.yaml"
)

// Exporter writes the tabular outputs of a run.
type Exporter interface {
	ExportResults(results *experiment.Results, filename string) error
	ExportPredictions(results *experiment.Results, filename string) error
	ExportHoldOutPredictions(results *experiment.Results, filename string) error
}

type Renderer struct {
	cfg    config.ReportConfig
	logger *zap.Logger
}

func NewRenderer(cfg config.ReportConfig, logger *zap.Logger) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{cfg: cfg, logger: logger}
}

// Render writes every report artifact into the output directory and
// returns the paths it wrote.
func (r *Renderer) Render(results *experiment.Results, exporter Exporter) ([]string, error) {
	dir := r.cfg.OutputDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report directory: %w", err)
	}

	var written []string
	path := func(name string) string { return filepath.Join(dir, name) }

	if err := exporter.ExportResults(results, path(MetricsFile)); err != nil {
		return written, fmt.Errorf("export metrics: %w", err)
	}
	written = append(written, path(MetricsFile))

	if err := exporter.ExportPredictions(results, path(PredictionsFile)); err != nil {
		return written, fmt.Errorf("export predictions: %w", err)
	}
	written = append(written, path(PredictionsFile))

	if err := exporter.ExportHoldOutPredictions(results, path(HoldOutPredictionsFile)); err != nil {
		return written, fmt.Errorf("export hold-out predictions: %w", err)
	}
	written = append(written, path(HoldOutPredictionsFile))

	if err := persistence.NewRunManifest(results).Save(path(ManifestFile)); err != nil {
		return written, fmt.Errorf("save manifest: %w", err)
	}
	written = append(written, path(ManifestFile))

	rocImage := ""
	if r.cfg.Plot {
		err := PlotROC(results.Succeeded(), results.Labels, path(ROCFile))
		switch {
		case err == nil:
			rocImage = ROCFile
			written = append(written, path(ROCFile))
		case errors.Is(err, evaluation.ErrUndefinedMetric):
			r.logger.Warn("ROC plot skipped", zap.Error(err))
		default:
			return written, fmt.Errorf("plot ROC: %w", err)
		}
	}

	if err := writeMarkdownFile(path(MarkdownFile), results, r.title(), rocImage); err != nil {
		return written, fmt.Errorf("write report: %w", err)
	}
	written = append(written, path(MarkdownFile))

	r.logger.Info("report written", zap.String("dir", dir), zap.Strings("files", written))
	return written, nil
}

func writeMarkdownFile(filename string, results *experiment.Results, title, rocImage string) (err error) {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(file))
	return WriteMarkdown(file, results, title, rocImage)
}

func (r *Renderer) title() string {
	if r.cfg.Title == "" {
		return "Blue Tarp Detection"
	}
	return r.cfg.Title
}
