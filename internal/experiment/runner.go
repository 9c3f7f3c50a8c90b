package experiment

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/deoleojr/Disaster-Relief-Project-Part-1/internal/config"
	"github.com/deoleojr/Disaster-Relief-Project-Part-1/internal/data"
	"github.com/deoleojr/Disaster-Relief-Project-Part-1/internal/evaluation"
	"github.com/deoleojr/Disaster-Relief-Project-Part-1/internal/preprocessing"
)

// HoldOutDataset names the hold-out sample in Metrics records.
const HoldOutDataset = "hold-out"

// ErrNoHoldOutRows means the hold-out directory produced nothing to score.
var ErrNoHoldOutRows = errors.New("no hold-out rows to evaluate")

var createFile = func(name string) (io.WriteCloser, error) {
	return os.Create(name)
}

type Runner struct {
	Config *config.Config
	logger *zap.Logger
	loader *data.Loader
}

func NewRunner(cfg *config.Config, logger *zap.Logger) *Runner {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		Config: cfg,
		logger: logger,
		loader: data.NewLoader(cfg.Data.Timeout),
	}
}

// HoldOutOutcome is the hold-out half of a run. When Err is set no model
// was scored on the hold-out rows and Err says why.
type HoldOutOutcome struct {
	Dir     string
	Scaling string
	Parsed  *data.HoldOutResult
	// Labels are the synthetic labels the hold-out rows were scored against.
	Labels  []int
	Metrics []*evaluation.Metrics
	// Proba holds each scored model's per-record BlueTarp probabilities,
	// keyed by model name.
	Proba map[string][]float64
	// ModelErrs holds models that were trained but failed to score.
	ModelErrs []error
	Err       error
}

type Results struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration
	Config    *config.Config
	Summary   data.DatasetSummary
	Scaler    preprocessing.ScalerParams
	// ScalingErr wraps preprocessing.ErrDegenerateFeature when a training
	// channel had zero variance and was left unscaled.
	ScalingErr error
	Labels     []int
	Training   []evaluation.TrainResult
	HoldOut    HoldOutOutcome
}

// Succeeded returns the models that cross-validated and refit cleanly.
func (r *Results) Succeeded() []evaluation.TrainResult {
	var out []evaluation.TrainResult
	for _, tr := range r.Training {
		if tr.OK() {
			out = append(out, tr)
		}
	}
	return out
}

func (r *Results) Failed() []evaluation.TrainResult {
	var out []evaluation.TrainResult
	for _, tr := range r.Training {
		if !tr.OK() {
			out = append(out, tr)
		}
	}
	return out
}

// Run executes the whole analysis. Only an unavailable or unusable
// training table aborts it; hold-out and per-model failures are carried in
// the returned Results.
func (r *Runner) Run(ctx context.Context) (*Results, error) {
	cfg := r.Config
	results := &Results{
		RunID:     uuid.New().String(),
		StartedAt: time.Now(),
		Config:    cfg,
	}
	r.logger.Info("starting run", zap.String("run_id", results.RunID), zap.String("source", cfg.Data.Source))

	ds, err := r.loader.Load(ctx, cfg.Data.Source)
	if err != nil {
		return nil, err
	}
	results.Summary = data.Summarize(ds, cfg.Data.TargetClass)
	r.logger.Info("loaded training table",
		zap.Int("samples", results.Summary.Samples),
		zap.Int("target", results.Summary.TargetCount),
		zap.Int("classes", len(results.Summary.Classes)),
		zap.Int("out_of_range", results.Summary.OutOfRange))

	labeler := preprocessing.NewBinaryLabeler(cfg.Data.TargetClass)
	y := labeler.Transform(ds.Classes())
	results.Labels = y

	scaler := preprocessing.NewScaler(data.FeatureColumns...)
	scaler.SkipDegenerate = true
	X, err := scaler.FitTransform(ds.Features())
	if err != nil {
		return nil, fmt.Errorf("scale training table: %w", err)
	}
	results.Scaler = scaler.Params()
	if err := results.Scaler.DegenerateErr(); err != nil {
		results.ScalingErr = err
		r.logger.Warn("training channels left unscaled", zap.Strings("columns", results.Scaler.Degenerate), zap.Error(err))
	}

	validator := data.NewDataValidator()
	if err := validator.ValidateDataset(X, y); err != nil {
		return nil, fmt.Errorf("validate training table: %w", err)
	}
	if err := validator.ValidateLabels(y); err != nil {
		return nil, fmt.Errorf("validate training labels: %w", err)
	}

	trainer := evaluation.NewTrainer(evaluation.TrainerOptions{
		Folds:      cfg.Training.Folds,
		Seed:       cfg.Training.Seed,
		Stratified: cfg.Training.Stratified,
		MaxWorkers: cfg.Training.MaxWorkers,
		Threshold:  cfg.Training.Threshold,
	}, r.logger)
	results.Training, err = trainer.Train(ctx, X, y, cfg.Training.Models)
	if err != nil {
		return nil, err
	}

	results.HoldOut = r.evaluateHoldOut(results.Scaler, results.Succeeded())
	results.Duration = time.Since(results.StartedAt)

	r.logger.Info("run finished",
		zap.String("run_id", results.RunID),
		zap.Int("models_ok", len(results.Succeeded())),
		zap.Int("models_failed", len(results.Failed())),
		zap.Int("holdout_scored", len(results.HoldOut.Metrics)),
		zap.Duration("duration", results.Duration))
	return results, nil
}

func (r *Runner) evaluateHoldOut(params preprocessing.ScalerParams, trained []evaluation.TrainResult) HoldOutOutcome {
	cfg := r.Config.HoldOut
	outcome := HoldOutOutcome{Dir: cfg.Dir, Scaling: cfg.Scaling}
	skip := func(err error) HoldOutOutcome {
		outcome.Err = err
		r.logger.Warn("hold-out evaluation skipped", zap.String("dir", cfg.Dir), zap.Error(err))
		return outcome
	}

	reader := data.NewHoldOutReader(data.HoldOutOptions{
		Pattern:     cfg.Pattern,
		HeaderLines: cfg.HeaderLines,
		MaxFields:   cfg.MaxFields,
	}, r.logger)
	parsed, err := reader.ReadDir(cfg.Dir)
	if err != nil {
		return skip(err)
	}
	outcome.Parsed = parsed
	if err := parsed.Err(); err != nil {
		r.logger.Warn("hold-out files skipped", zap.Int("count", len(parsed.SkippedFiles)), zap.Error(err))
	}
	if len(parsed.Records) == 0 {
		return skip(ErrNoHoldOutRows)
	}

	X, err := ScaleHoldOut(data.HoldOutFeatures(parsed.Records), params, cfg.Scaling)
	if err != nil {
		return skip(err)
	}
	if len(trained) == 0 {
		return skip(errors.New("no trained models"))
	}

	labels := evaluation.SyntheticLabels(len(parsed.Records), cfg.LabelSeed, cfg.PositiveRate)
	outcome.Labels = labels
	outcome.Proba = make(map[string][]float64, len(trained))
	for _, tr := range trained {
		m, proba, err := evaluation.Evaluate(tr.Name, HoldOutDataset, tr.Model, X, labels, r.Config.Training.Threshold)
		if err != nil {
			outcome.ModelErrs = append(outcome.ModelErrs, fmt.Errorf("%s: %w", tr.Name, err))
			r.logger.Error("hold-out scoring failed", zap.String("model", tr.Name), zap.Error(err))
			continue
		}
		m.Placeholder = true
		outcome.Metrics = append(outcome.Metrics, m)
		outcome.Proba[tr.Name] = proba
	}
	return outcome
}

// ScaleHoldOut standardizes hold-out features. ScalingTraining reuses the
// training parameters; ScalingIndependent refits on the hold-out rows,
// which puts them on a different scale than the models were trained on.
func ScaleHoldOut(X mat.Matrix, params preprocessing.ScalerParams, mode string) (*mat.Dense, error) {
	switch mode {
	case config.ScalingTraining:
		scaler, err := preprocessing.NewScalerFromParams(params)
		if err != nil {
			return nil, err
		}
		return scaler.Transform(X)
	case config.ScalingIndependent:
		return preprocessing.NewScaler(data.FeatureColumns...).FitTransform(X)
	default:
		return nil, fmt.Errorf("unknown hold-out scaling mode %q", mode)
	}
}

var metricsHeader = []string{
	"Dataset", "Model", "Algorithm", "Placeholder", "N",
	"Accuracy", "AUC", "PRAUC", "F1", "Sensitivity", "Specificity", "Precision",
	"BalancedAccuracy", "Kappa", "LogLoss",
	"CVMean", "CVStd", "TrainingTimeMs", "Error",
}

func metricsRow(m *evaluation.Metrics, algorithm string) []string {
	return []string{
		m.Dataset,
		m.Model,
		algorithm,
		strconv.FormatBool(m.Placeholder),
		strconv.Itoa(m.N),
		m.Accuracy.String(),
		m.AUC.String(),
		m.PRAUC.String(),
		m.F1.String(),
		m.Sensitivity.String(),
		m.Specificity.String(),
		m.Precision.String(),
		m.BalancedAccuracy.String(),
		m.Kappa.String(),
		m.LogLoss.String(),
	}
}

// ExportResults writes one CSV row per model per dataset. Failed models
// get a row carrying only their error.
func (r *Runner) ExportResults(results *Results, filename string) (err error) {
	file, err := createFile(filename)
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(file))

	writer := csv.NewWriter(file)
	if err := writer.Write(metricsHeader); err != nil {
		return err
	}

	for _, tr := range results.Training {
		if !tr.OK() {
			row := make([]string, len(metricsHeader))
			row[0], row[1], row[2] = evaluation.CVDataset, tr.Name, tr.Config.Algorithm
			row[len(row)-1] = tr.Err.Error()
			if err := writer.Write(row); err != nil {
				return err
			}
			continue
		}
		row := append(metricsRow(tr.Metrics, tr.Config.Algorithm),
			fmt.Sprintf("%.4f", tr.FoldAccuracyMean),
			fmt.Sprintf("%.4f", tr.FoldAccuracyStd),
			fmt.Sprintf("%d", tr.Duration.Milliseconds()),
			"",
		)
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	algorithms := make(map[string]string, len(results.Training))
	for _, tr := range results.Training {
		algorithms[tr.Name] = tr.Config.Algorithm
	}
	for _, m := range results.HoldOut.Metrics {
		row := append(metricsRow(m, algorithms[m.Model]), "", "", "", "")
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// ExportPredictions writes the out-of-fold BlueTarp probability of every
// training row for each model that trained.
func (r *Runner) ExportPredictions(results *Results, filename string) (err error) {
	file, err := createFile(filename)
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(file))

	trained := results.Succeeded()
	header := []string{"Row", "Fold", "Label"}
	for _, tr := range trained {
		header = append(header, probaColumn(tr))
	}

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return err
	}
	if len(trained) > 0 {
		for i, label := range results.Labels {
			row := []string{
				strconv.Itoa(i),
				strconv.Itoa(trained[0].FoldOf[i]),
				preprocessing.Label(label).String(),
			}
			for _, tr := range trained {
				row = append(row, strconv.FormatFloat(tr.OOFProba[i], 'f', 6, 64))
			}
			if err := writer.Write(row); err != nil {
				return err
			}
		}
	}

	writer.Flush()
	return writer.Error()
}

var holdOutPredictionsHeader = []string{
	"ID", "X", "Y", "Map_X", "Map_Y", "Lat", "Lon", "Red", "Green", "Blue", "SyntheticLabel",
}

// ExportHoldOutPredictions writes one row per hold-out record with its
// coordinates, the synthetic label it was scored against and the BlueTarp
// probability from each model that scored.
func (r *Runner) ExportHoldOutPredictions(results *Results, filename string) (err error) {
	file, err := createFile(filename)
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(file))

	h := results.HoldOut
	var scored []evaluation.TrainResult
	for _, tr := range results.Succeeded() {
		if _, ok := h.Proba[tr.Name]; ok {
			scored = append(scored, tr)
		}
	}

	header := append([]string(nil), holdOutPredictionsHeader...)
	for _, tr := range scored {
		header = append(header, probaColumn(tr))
	}
	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return err
	}

	if h.Parsed != nil && len(scored) > 0 {
		float := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
		for i, rec := range h.Parsed.Records {
			row := []string{
				rec.ID, float(rec.X), float(rec.Y),
				rec.MapX.String(), rec.MapY.String(), rec.Lat.String(), rec.Lon.String(),
				float(rec.Red), float(rec.Green), float(rec.Blue),
				preprocessing.Label(h.Labels[i]).String(),
			}
			for _, tr := range scored {
				row = append(row, strconv.FormatFloat(h.Proba[tr.Name][i], 'f', 6, 64))
			}
			if err := writer.Write(row); err != nil {
				return err
			}
		}
	}

	writer.Flush()
	return writer.Error()
}

// probaColumn names a model's probability column after its algorithm,
// carrying the number of a repeated algorithm's display name.
func probaColumn(tr evaluation.TrainResult) string {
	column := tr.Config.Algorithm
	if _, n, ok := strings.Cut(tr.Name, " #"); ok {
		column += "_" + n
	}
	return column + "_proba"
}
